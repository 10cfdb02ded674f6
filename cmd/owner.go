package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"grimm.is/policyctl/internal/rules"
	"grimm.is/policyctl/internal/validation"
)

// ownerFlags selects a router or a tenant.
type ownerFlags struct {
	router string
	tenant string
}

func (o *ownerFlags) register(cmd *cobra.Command, required bool) {
	cmd.Flags().StringVar(&o.router, "router", "", "router ID")
	cmd.Flags().StringVar(&o.tenant, "tenant", "", "tenant ID")
	cmd.MarkFlagsMutuallyExclusive("router", "tenant")
	if required {
		cmd.MarkFlagsOneRequired("router", "tenant")
	}
}

func (o *ownerFlags) owner() (rules.Owner, error) {
	var owner rules.Owner
	switch {
	case o.router != "":
		owner = rules.Router(o.router)
	case o.tenant != "":
		owner = rules.Tenant(o.tenant)
	default:
		return rules.Owner{}, fmt.Errorf("one of --router or --tenant is required")
	}
	if err := validation.ValidateIdentifier(owner.ID); err != nil {
		return rules.Owner{}, fmt.Errorf("invalid %s: %w", owner.Kind, err)
	}
	return owner, nil
}

func (o *ownerFlags) reset() {
	o.router, o.tenant = "", ""
}
