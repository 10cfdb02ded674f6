package config

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"grimm.is/policyctl/internal/rules"
)

// RuleFile is the HCL schema of an exported rule collection.
type RuleFile struct {
	Owner *OwnerBlock `hcl:"owner,block"`
	Rules []RuleBlock `hcl:"rule,block"`
}

// OwnerBlock names the router or tenant the rules belong to.
type OwnerBlock struct {
	Kind string `hcl:"kind"`
	ID   string `hcl:"id"`
}

// RuleBlock is one rule in a rule file.
type RuleBlock struct {
	Priority        *int     `hcl:"priority,optional"`
	Source          string   `hcl:"source"`
	Destination     string   `hcl:"destination"`
	Action          string   `hcl:"action"`
	Nexthops        []string `hcl:"nexthops,optional"`
	SourcePort      int      `hcl:"source_port,optional"`
	DestinationPort int      `hcl:"destination_port,optional"`
	Protocol        string   `hcl:"protocol,optional"`
}

// Rule converts the block, defaulting a missing priority to NoPriority.
func (b RuleBlock) Rule() rules.Rule {
	prio := rules.NoPriority
	if b.Priority != nil {
		prio = *b.Priority
	}
	return rules.Canonicalize(rules.Rule{
		Priority:        prio,
		Source:          b.Source,
		Destination:     b.Destination,
		Action:          rules.Action(b.Action),
		Nexthops:        rules.Nexthops(b.Nexthops),
		SourcePort:      b.SourcePort,
		DestinationPort: b.DestinationPort,
		Protocol:        rules.Protocol(b.Protocol),
	})
}

// LoadRuleFile reads a rule collection from an HCL file. The owner is the
// zero value when the file has no owner block.
func LoadRuleFile(path string) (rules.Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rules.Collection{}, fmt.Errorf("failed to read rule file: %w", err)
	}
	return ParseRuleFile(data, path)
}

// ParseRuleFile decodes rule file bytes.
func ParseRuleFile(data []byte, filename string) (rules.Collection, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return rules.Collection{}, fmt.Errorf("HCL parse error: %s", diags.Error())
	}

	var rf RuleFile
	if diags := gohcl.DecodeBody(file.Body, nil, &rf); diags.HasErrors() {
		return rules.Collection{}, fmt.Errorf("failed to decode rule file: %s", diags.Error())
	}

	var coll rules.Collection
	if rf.Owner != nil {
		kind := rules.OwnerKind(rf.Owner.Kind)
		if kind != rules.OwnerRouter && kind != rules.OwnerTenant {
			return rules.Collection{}, fmt.Errorf("%s: owner kind must be router or tenant, got %q", filename, rf.Owner.Kind)
		}
		coll.Owner = rules.Owner{Kind: kind, ID: rf.Owner.ID}
	}
	for _, b := range rf.Rules {
		coll.Rules = append(coll.Rules, b.Rule())
	}
	return coll, nil
}

// WriteRuleFile renders coll as HCL. Unset optional fields are left out.
func WriteRuleFile(w io.Writer, coll rules.Collection) error {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	if coll.Owner.ID != "" {
		ob := body.AppendNewBlock("owner", nil).Body()
		ob.SetAttributeValue("kind", cty.StringVal(string(coll.Owner.Kind)))
		ob.SetAttributeValue("id", cty.StringVal(coll.Owner.ID))
	}

	for _, r := range coll.Rules {
		body.AppendNewline()
		rb := body.AppendNewBlock("rule", nil).Body()
		if r.Priority != rules.NoPriority {
			rb.SetAttributeValue("priority", cty.NumberIntVal(int64(r.Priority)))
		}
		rb.SetAttributeValue("source", cty.StringVal(r.Source))
		rb.SetAttributeValue("destination", cty.StringVal(r.Destination))
		rb.SetAttributeValue("action", cty.StringVal(string(r.Action)))
		if len(r.Nexthops) > 0 {
			vals := make([]cty.Value, len(r.Nexthops))
			for i, nh := range r.Nexthops {
				vals[i] = cty.StringVal(nh)
			}
			rb.SetAttributeValue("nexthops", cty.ListVal(vals))
		}
		if r.SourcePort != 0 {
			rb.SetAttributeValue("source_port", cty.NumberIntVal(int64(r.SourcePort)))
		}
		if r.DestinationPort != 0 {
			rb.SetAttributeValue("destination_port", cty.NumberIntVal(int64(r.DestinationPort)))
		}
		if r.Protocol != rules.ProtocolNone {
			rb.SetAttributeValue("protocol", cty.StringVal(string(r.Protocol)))
		}
	}

	if _, err := w.Write(f.Bytes()); err != nil {
		return fmt.Errorf("failed to write rule file: %w", err)
	}
	return nil
}
