package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"grimm.is/policyctl/internal/reachability"
)

var reachabilityCmd = &cobra.Command{
	Use:     "reachability",
	Aliases: []string{"reach"},
	Short:   "Create and run reachability tests",
}

type reachabilityFlags struct {
	name        string
	tenantID    string
	tenantName  string
	segmentID   string
	segmentName string
	srcIP       string
	dstIP       string
	expected    string
}

func (f *reachabilityFlags) register(cmd *cobra.Command, withName bool) {
	if withName {
		cmd.Flags().StringVar(&f.name, "name", "", "test name (max 64 characters)")
	}
	cmd.Flags().StringVar(&f.tenantID, "tenant", "", "source tenant ID")
	cmd.Flags().StringVar(&f.tenantName, "tenant-name", "", "source tenant name")
	cmd.Flags().StringVar(&f.segmentID, "segment", "", "source segment ID")
	cmd.Flags().StringVar(&f.segmentName, "segment-name", "", "source segment name")
	cmd.Flags().StringVar(&f.srcIP, "src-ip", "", "source IP")
	cmd.Flags().StringVar(&f.dstIP, "dst-ip", "", "destination IP")
	cmd.Flags().StringVar(&f.expected, "expect", "", "expected result, e.g. forwarded or \"dropped by policy\"")
}

func (f *reachabilityFlags) test() reachability.Test {
	t := reachability.Test{
		Name:           f.name,
		SrcIP:          f.srcIP,
		DstIP:          f.dstIP,
		ExpectedResult: f.expected,
	}
	t.SetSource(
		reachability.Tenant{ID: f.tenantID, Name: f.tenantName},
		reachability.Segment{ID: f.segmentID, Name: f.segmentName},
	)
	return t
}

func reachabilityService() (*reachability.Service, error) {
	api, err := reachabilityAPI()
	if err != nil {
		return nil, err
	}
	return reachability.NewService(api, logger), nil
}

var reachCreate reachabilityFlags

var reachabilityCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a named reachability test",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := reachabilityService()
		if err != nil {
			return err
		}
		t, err := svc.Create(cmd.Context(), reachCreate.test())
		if err != nil {
			return err
		}
		return printer.Reachability(t)
	},
}

var reachUpdate reachabilityFlags

var reachabilityUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace a named reachability test",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := reachabilityService()
		if err != nil {
			return err
		}
		t, err := svc.Update(cmd.Context(), args[0], reachUpdate.test())
		if err != nil {
			return err
		}
		return printer.Reachability(t)
	},
}

var reachRun reachabilityFlags

var reachabilityRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tenant's quick test with the given parameters",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := reachabilityService()
		if err != nil {
			return err
		}
		t, err := svc.RunQuick(cmd.Context(), reachRun.tenantID, reachRun.test())
		if err != nil {
			return err
		}
		registry.RecordReachabilityRun(t.Passed())
		if err := printer.Reachability(t); err != nil {
			return err
		}
		if !t.Passed() {
			return fmt.Errorf("reachability test failed: got %q, expected %q", t.TestResult, t.ExpectedResult)
		}
		return nil
	},
}

var (
	saveTenant string
	saveName   string
)

var reachabilitySaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the tenant's quick test under a name",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := reachabilityService()
		if err != nil {
			return err
		}
		t, err := svc.SaveQuick(cmd.Context(), saveTenant, saveName)
		if err != nil {
			return err
		}
		return printer.Reachability(t)
	},
}

func init() {
	reachCreate.register(reachabilityCreateCmd, true)
	reachUpdate.register(reachabilityUpdateCmd, true)
	reachRun.register(reachabilityRunCmd, false)
	reachabilityRunCmd.MarkFlagRequired("tenant")

	reachabilitySaveCmd.Flags().StringVar(&saveTenant, "tenant", "", "tenant ID")
	reachabilitySaveCmd.Flags().StringVar(&saveName, "name", "", "name for the saved test")
	reachabilitySaveCmd.MarkFlagRequired("tenant")
	reachabilitySaveCmd.MarkFlagRequired("name")

	reachabilityCmd.AddCommand(reachabilityCreateCmd, reachabilityUpdateCmd, reachabilityRunCmd, reachabilitySaveCmd)
	rootCmd.AddCommand(reachabilityCmd)
}
