package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"grimm.is/policyctl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the tool configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Loading already validated it; report what was understood.
		return RunCheck(cmd, cfg)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.MarshalIndent(redacted(cfg), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

// RunCheck summarizes a configuration that passed validation.
func RunCheck(cmd *cobra.Command, c *config.Config) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration valid!")
	fmt.Fprintf(out, "Backend: %s\n", c.Backend())
	if c.API != nil {
		fmt.Fprintf(out, "Endpoint: %s (timeout %s)\n", c.API.Endpoint, c.API.TimeoutDuration())
		if c.API.Fingerprint != "" {
			fmt.Fprintln(out, "Certificate pinning: enabled")
		}
	}
	if c.Metrics != nil && c.Metrics.Enabled {
		fmt.Fprintf(out, "Metrics textfile: %s\n", c.Metrics.Textfile)
	}
	return nil
}

func redacted(c *config.Config) *config.Config {
	cp := *c
	if c.API != nil {
		api := *c.API
		if api.Token != "" {
			api.Token = "********"
		}
		cp.API = &api
	}
	return &cp
}

func init() {
	configCmd.AddCommand(configCheckCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
