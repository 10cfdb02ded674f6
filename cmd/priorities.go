package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"grimm.is/policyctl/internal/client"
	"grimm.is/policyctl/internal/rules"
	"grimm.is/policyctl/internal/store"
	"grimm.is/policyctl/internal/validation"
)

var (
	prioRouters    []string
	prioTenants    []string
	prioAllRouters bool
	prioLimit      int
)

var prioritiesCmd = &cobra.Command{
	Use:   "priorities",
	Short: "List priorities not used by any of the given owners",
	Long: `List free priorities, highest first. Priorities are gathered from every
owner named with --router/--tenant, or from all routers with --all-routers;
owners that do not support rules are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var owners []rules.Owner
		for _, id := range prioRouters {
			owners = append(owners, rules.Router(id))
		}
		for _, id := range prioTenants {
			owners = append(owners, rules.Tenant(id))
		}
		for _, o := range owners {
			if err := validation.ValidateIdentifier(o.ID); err != nil {
				return fmt.Errorf("invalid %s: %w", o.Kind, err)
			}
		}

		s, err := ruleStore()
		if err != nil {
			return err
		}
		if prioAllRouters {
			all, err := allRouters(cmd.Context(), s)
			if err != nil {
				return err
			}
			owners = append(owners, all...)
		}
		if len(owners) == 0 {
			return fmt.Errorf("no owners given; use --router, --tenant or --all-routers")
		}

		m, err := newManager()
		if err != nil {
			return err
		}
		avail, err := m.AvailablePriorities(cmd.Context(), owners...)
		if err != nil {
			return err
		}
		return printer.Priorities(avail, prioLimit)
	},
}

// allRouters enumerates router owners from stores that can list them.
func allRouters(ctx context.Context, s rules.Store) ([]rules.Owner, error) {
	var owners []rules.Owner
	switch st := s.(type) {
	case *client.HTTPClient:
		routers, err := st.ListRouters(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range routers {
			owners = append(owners, rules.Router(r.ID))
		}
	case *store.SQLiteStore:
		all, err := st.Owners(ctx)
		if err != nil {
			return nil, err
		}
		for _, o := range all {
			if o.Kind == rules.OwnerRouter {
				owners = append(owners, o)
			}
		}
	default:
		return nil, fmt.Errorf("--all-routers is not supported by the %s backend", cfg.Backend())
	}
	return owners, nil
}

func init() {
	prioritiesCmd.Flags().StringSliceVar(&prioRouters, "router", nil, "router ID (repeatable)")
	prioritiesCmd.Flags().StringSliceVar(&prioTenants, "tenant", nil, "tenant ID (repeatable)")
	prioritiesCmd.Flags().BoolVar(&prioAllRouters, "all-routers", false, "consider every router")
	prioritiesCmd.Flags().IntVar(&prioLimit, "limit", 20, "how many to show in table output (0 for all)")
	rootCmd.AddCommand(prioritiesCmd)
}
