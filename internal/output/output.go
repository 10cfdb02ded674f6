// Package output renders rule collections, change reports and reachability
// results for the terminal (styled tables) or for machines (JSON, YAML).
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v2"

	"grimm.is/policyctl/internal/manager"
	"grimm.is/policyctl/internal/reachability"
	"grimm.is/policyctl/internal/rules"
	"grimm.is/policyctl/internal/validation"
)

// Format selects how results are printed.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a --output value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
}

// Printer writes results to w in one format.
type Printer struct {
	w      io.Writer
	format Format
	styles styles
}

// NewPrinter creates a Printer. Colors are enabled only when w is a terminal.
func NewPrinter(w io.Writer, format Format) *Printer {
	return &Printer{
		w:      w,
		format: format,
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
}

// Rules prints an owner's collection.
func (p *Printer) Rules(coll rules.Collection) error {
	if p.format != FormatTable {
		return p.encode(coll)
	}

	fmt.Fprintln(p.w, p.styles.title.Render(fmt.Sprintf("%s (%s)", coll.Owner.Noun(), coll.Owner)))
	if len(coll.Rules) == 0 {
		fmt.Fprintln(p.w, p.styles.muted.Render("no rules"))
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.styles.border).
		Headers("KEY", "PRIORITY", "SOURCE", "DESTINATION", "ACTION", "PROTOCOL", "PORTS", "NEXTHOPS").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.styles.header
			}
			return p.styles.cell
		})

	keys := coll.Keys()
	for i, r := range coll.Rules {
		t.Row(
			keys[i],
			strconv.Itoa(r.Priority),
			r.Source,
			r.Destination,
			p.styles.action(r.Action),
			string(r.Protocol),
			ports(r),
			strings.Join(r.Nexthops, ", "),
		)
	}
	fmt.Fprintln(p.w, t.Render())
	return nil
}

// Report prints the outcome of a replace.
func (p *Printer) Report(rep *manager.Report) error {
	if p.format != FormatTable {
		return p.encode(rep)
	}
	for _, m := range rep.Messages {
		fmt.Fprintln(p.w, p.styles.message(m.Level).Render(m.Text))
	}
	return nil
}

// Delta prints a diff between two collections computed offline.
func (p *Printer) Delta(d rules.Delta) error {
	if p.format != FormatTable {
		return p.encode(d)
	}
	if d.Empty() {
		fmt.Fprintln(p.w, p.styles.muted.Render("no differences"))
		return nil
	}
	for _, k := range d.Removed {
		fmt.Fprintln(p.w, p.styles.removed.Render("- "+k.String()))
	}
	for _, k := range d.Added {
		fmt.Fprintln(p.w, p.styles.added.Render("+ "+k.String()))
	}
	return nil
}

// Priorities prints free priorities. In table form only the first limit
// values are shown; limit <= 0 shows all.
func (p *Printer) Priorities(avail []int, limit int) error {
	if p.format != FormatTable {
		return p.encode(avail)
	}
	shown := avail
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	parts := make([]string, len(shown))
	for i, v := range shown {
		parts[i] = strconv.Itoa(v)
	}
	fmt.Fprintln(p.w, strings.Join(parts, " "))
	if len(shown) < len(avail) {
		fmt.Fprintln(p.w, p.styles.muted.Render(fmt.Sprintf("... %d more available", len(avail)-len(shown))))
	}
	return nil
}

// Reachability prints a reachability test and, once run, its verdict.
func (p *Printer) Reachability(t reachability.Test) error {
	if p.format != FormatTable {
		return p.encode(t)
	}
	fmt.Fprintln(p.w, p.styles.title.Render(validation.SanitizeString(t.Name)))
	fmt.Fprintf(p.w, "  source:   %s (segment %s)\n", t.SrcIP, segmentLabel(t))
	fmt.Fprintf(p.w, "  dest:     %s\n", t.DstIP)
	fmt.Fprintf(p.w, "  expected: %s\n", t.ExpectedResult)
	if t.TestResult == "" {
		return nil
	}
	verdict := p.styles.message(manager.LevelSuccess).Render("PASS")
	if !t.Passed() {
		verdict = p.styles.removed.Render("FAIL")
	}
	fmt.Fprintf(p.w, "  result:   %s %s\n", t.TestResult, verdict)
	return nil
}

func (p *Printer) encode(v any) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		_, err = p.w.Write(data)
		return err
	}
	return fmt.Errorf("unknown output format %q", p.format)
}

func ports(r rules.Rule) string {
	if r.SourcePort == 0 && r.DestinationPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s->%s", portLabel(r.SourcePort), portLabel(r.DestinationPort))
}

func portLabel(p int) string {
	if p == 0 {
		return "*"
	}
	return strconv.Itoa(p)
}

func segmentLabel(t reachability.Test) string {
	if t.SrcSegmentID == "" {
		return "-"
	}
	return reachability.Segment{ID: t.SrcSegmentID, Name: t.SrcSegmentName}.Label()
}
