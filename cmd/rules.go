package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"grimm.is/policyctl/internal/config"
	"grimm.is/policyctl/internal/output"
	"grimm.is/policyctl/internal/rules"
	"grimm.is/policyctl/internal/store"
)

var rulesCmd = &cobra.Command{
	Use:     "rules",
	Aliases: []string{"rule", "policies"},
	Short:   "Manage router rules and tenant policies",
}

var (
	listOwner  ownerFlags
	listFilter string
)

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show an owner's rule collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := listOwner.owner()
		if err != nil {
			return err
		}
		m, err := newManager()
		if err != nil {
			return err
		}
		coll, err := m.List(cmd.Context(), owner)
		if err != nil {
			return err
		}
		coll.Rules = rules.Filter(coll.Rules, listFilter)
		return printer.Rules(coll)
	},
}

var (
	addOwner ownerFlags
	addInput struct {
		priority        int
		source          string
		destination     string
		action          string
		nexthops        string
		sourcePort      int
		destinationPort int
		protocol        string
	}
)

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Validate a rule and add it ahead of the existing ones",
	Example: `  policyctl rules add --router r1 --priority 100 --source 10.0.0.0/24 \
      --destination any --action permit --nexthops 10.1.0.1,10.1.0.2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := addOwner.owner()
		if err != nil {
			return err
		}

		in := rules.Input{
			Source:          addInput.source,
			Destination:     addInput.destination,
			Action:          addInput.action,
			Nexthops:        addInput.nexthops,
			SourcePort:      addInput.sourcePort,
			DestinationPort: addInput.destinationPort,
			Protocol:        addInput.protocol,
		}
		if cmd.Flags().Changed("priority") {
			p := addInput.priority
			in.Priority = &p
		}

		m, err := newManager()
		if err != nil {
			return err
		}
		rep, err := m.AddRule(cmd.Context(), owner, in.Rule())
		if err != nil {
			return err
		}
		return printer.Report(rep)
	},
}

var removeKind string

var rulesRemoveCmd = &cobra.Command{
	Use:     "remove <key>...",
	Aliases: []string{"rm", "delete"},
	Short:   "Remove rules by key (<priority>_<owner id>)",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}
		kind := rules.OwnerKind(removeKind)
		if kind != rules.OwnerRouter && kind != rules.OwnerTenant {
			return fmt.Errorf("--kind must be router or tenant, got %q", removeKind)
		}
		for _, key := range args {
			rep, err := m.RemoveRule(cmd.Context(), kind, key)
			if err != nil {
				return fmt.Errorf("failed to remove %s: %w", key, err)
			}
			if err := printer.Report(rep); err != nil {
				return err
			}
		}
		return nil
	},
}

var (
	applyFile  string
	applyOwner ownerFlags
)

var rulesApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Replace an owner's collection with the rules in an HCL file",
	RunE: func(cmd *cobra.Command, args []string) error {
		coll, err := config.LoadRuleFile(applyFile)
		if err != nil {
			return err
		}
		if applyOwner.router != "" || applyOwner.tenant != "" {
			if coll.Owner, err = applyOwner.owner(); err != nil {
				return err
			}
		}
		if coll.Owner.ID == "" {
			return fmt.Errorf("%s has no owner block; pass --router or --tenant", applyFile)
		}

		m, err := newManager()
		if err != nil {
			return err
		}
		rep, err := m.Apply(cmd.Context(), coll)
		if err != nil {
			return err
		}
		return printer.Report(rep)
	},
}

var (
	exportFile  string
	exportOwner ownerFlags
)

var rulesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write an owner's collection as an HCL rule file",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := exportOwner.owner()
		if err != nil {
			return err
		}
		m, err := newManager()
		if err != nil {
			return err
		}
		coll, err := m.List(cmd.Context(), owner)
		if err != nil {
			return err
		}

		if exportFile == "" || exportFile == "-" {
			return config.WriteRuleFile(cmd.OutOrStdout(), coll)
		}
		f, err := os.Create(exportFile)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportFile, err)
		}
		defer f.Close()
		if err := config.WriteRuleFile(f, coll); err != nil {
			return err
		}
		logger.Info("rules exported", "owner", owner.String(), "file", exportFile, "count", len(coll.Rules))
		return nil
	},
}

var diffFrom, diffTo string

var rulesDiffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare two rule files offline",
	Long: `Compare two HCL rule files the way a replace would be reported:
rules whose (source, destination, action, priority) disappeared or appeared,
followed by a unified diff of the wire payloads.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := config.LoadRuleFile(diffFrom)
		if err != nil {
			return err
		}
		b, err := config.LoadRuleFile(diffTo)
		if err != nil {
			return err
		}

		if err := printer.Delta(rules.Diff(a.Rules, b.Rules)); err != nil {
			return err
		}
		if outputFormat != string(output.FormatTable) {
			return nil
		}
		text, err := output.UnifiedDiff(a.Rules, b.Rules, diffFrom, diffTo)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	},
}

var (
	historyOwner ownerFlags
	historyLimit int
)

var rulesHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded replacements from the local SQLite store",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := historyOwner.owner()
		if err != nil {
			return err
		}
		if cfg.Backend() != config.BackendSQLite {
			return fmt.Errorf("history is only recorded by the %s backend", config.BackendSQLite)
		}
		s, err := sqliteStore()
		if err != nil {
			return err
		}
		changes, err := s.History(cmd.Context(), owner, historyLimit)
		if err != nil {
			return err
		}
		return printHistory(cmd.OutOrStdout(), changes)
	},
}

func printHistory(w io.Writer, changes []store.Change) error {
	if outputFormat != string(output.FormatTable) {
		for _, c := range changes {
			if err := printer.Rules(rules.Collection{Owner: c.Owner, Rules: c.Rules}); err != nil {
				return err
			}
		}
		return nil
	}
	var prev []rules.Rule
	for _, c := range changes {
		fmt.Fprintf(w, "v%d  %s  %d rules\n", c.Version, c.Timestamp.Format("2006-01-02 15:04:05"), len(c.Rules))
		if err := printer.Delta(rules.Diff(prev, c.Rules)); err != nil {
			return err
		}
		prev = c.Rules
	}
	return nil
}

func init() {
	listOwner.register(rulesListCmd, true)
	rulesListCmd.Flags().StringVar(&listFilter, "filter", "", "only show rules containing this text")

	addOwner.register(rulesAddCmd, true)
	f := rulesAddCmd.Flags()
	f.IntVar(&addInput.priority, "priority", rules.NoPriority, "priority (1-3000, lower wins)")
	f.StringVar(&addInput.source, "source", "", "source CIDR, any or external")
	f.StringVar(&addInput.destination, "destination", "", "destination CIDR, any or external")
	f.StringVar(&addInput.action, "action", string(rules.ActionPermit), "permit or deny")
	f.StringVar(&addInput.nexthops, "nexthops", "", "comma separated nexthop IPs (permit only)")
	f.IntVar(&addInput.sourcePort, "source-port", 0, "source port (requires --protocol)")
	f.IntVar(&addInput.destinationPort, "destination-port", 0, "destination port (requires --protocol)")
	f.StringVar(&addInput.protocol, "protocol", "", "tcp or udp")
	rulesAddCmd.MarkFlagRequired("source")
	rulesAddCmd.MarkFlagRequired("destination")

	rulesRemoveCmd.Flags().StringVar(&removeKind, "kind", string(rules.OwnerRouter), "owner kind of the keys: router or tenant")

	rulesApplyCmd.Flags().StringVarP(&applyFile, "file", "f", "", "HCL rule file")
	rulesApplyCmd.MarkFlagRequired("file")
	applyOwner.register(rulesApplyCmd, false)

	exportOwner.register(rulesExportCmd, true)
	rulesExportCmd.Flags().StringVarP(&exportFile, "file", "f", "-", "output file (- for stdout)")

	rulesDiffCmd.Flags().StringVarP(&diffFrom, "from", "a", "", "old rule file")
	rulesDiffCmd.Flags().StringVarP(&diffTo, "to", "b", "", "new rule file")
	rulesDiffCmd.MarkFlagRequired("from")
	rulesDiffCmd.MarkFlagRequired("to")

	historyOwner.register(rulesHistoryCmd, true)
	rulesHistoryCmd.Flags().IntVar(&historyLimit, "limit", 10, "number of changes to show (0 for all)")

	rulesCmd.AddCommand(rulesListCmd, rulesAddCmd, rulesRemoveCmd, rulesApplyCmd, rulesExportCmd, rulesDiffCmd, rulesHistoryCmd)
	rootCmd.AddCommand(rulesCmd)
}
