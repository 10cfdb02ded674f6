package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"grimm.is/policyctl/internal/brand"
	"grimm.is/policyctl/internal/client"
	"grimm.is/policyctl/internal/config"
	"grimm.is/policyctl/internal/logging"
	"grimm.is/policyctl/internal/manager"
	"grimm.is/policyctl/internal/metrics"
	"grimm.is/policyctl/internal/output"
	"grimm.is/policyctl/internal/reachability"
	"grimm.is/policyctl/internal/rules"
	"grimm.is/policyctl/internal/store"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
	logLevel     string
	backendFlag  string

	// Shared state set during PersistentPreRun
	cfg      *config.Config
	logger   *logging.Logger
	registry *metrics.Registry
	printer  *output.Printer

	// Opened lazily by the commands that need them
	ruleSt   rules.Store
	reachAPI reachability.API
	closers  []io.Closer

	// Injected by tests; take precedence over the configured backend.
	storeOverride rules.Store
	reachOverride reachability.API
)

// rootCmd is the base command for policyctl.
var rootCmd = &cobra.Command{
	Use:   brand.Name,
	Short: "Manage router rules and tenant policies",
	Long: brand.Description + `.

Rules are validated locally, submitted as a whole-collection replacement,
and the collection returned by the API is diffed against the previous one
to report what actually changed.`,
	Version:       brand.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}
		if backendFlag != "" {
			if cfg.Store == nil {
				cfg.Store = &config.StoreConfig{}
			}
			cfg.Store.Backend = backendFlag
		}

		level := cfg.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		logger = logging.New(logging.Config{
			Level:  logging.ParseLevel(level),
			Output: cmd.ErrOrStderr(),
			JSON:   cfg.LogJSON,
		})
		logging.SetDefault(logger)

		format, err := output.ParseFormat(outputFormat)
		if err != nil {
			return err
		}
		printer = output.NewPrinter(cmd.OutOrStdout(), format)

		registry = metrics.NewRegistry()
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// run executes the command tree, then flushes metrics and releases stores
// whether or not the command failed.
func run(ctx context.Context) error {
	cfg, registry = nil, nil
	err := rootCmd.ExecuteContext(ctx)
	if ferr := flushMetrics(); ferr != nil {
		err = errors.Join(err, ferr)
	}
	closeAll()
	return err
}

func flushMetrics() error {
	if cfg == nil || registry == nil || cfg.Metrics == nil || !cfg.Metrics.Enabled {
		return nil
	}
	return registry.WriteTextfile(cfg.Metrics.Textfile)
}

// RootCmd returns the root cobra.Command for testing purposes.
func RootCmd() *cobra.Command {
	return rootCmd
}

// SetStore makes every command use s instead of the configured backend.
func SetStore(s rules.Store) {
	storeOverride = s
}

// SetReachabilityAPI makes reachability commands use api.
func SetReachabilityAPI(api reachability.API) {
	reachOverride = api
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is "+brand.DefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "override store backend: api, sqlite, memory")
}

func loadConfig() (*config.Config, error) {
	var (
		c   *config.Config
		err error
	)
	if cfgFile != "" {
		c, err = config.LoadFile(cfgFile)
	} else {
		c, err = config.LoadOrDefault(brand.DefaultConfigPath())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return c, nil
}

// ruleStore opens the configured backend on first use.
func ruleStore() (rules.Store, error) {
	if storeOverride != nil {
		return storeOverride, nil
	}
	if ruleSt != nil {
		return ruleSt, nil
	}

	switch cfg.Backend() {
	case config.BackendSQLite:
		s, err := sqliteStore()
		if err != nil {
			return nil, err
		}
		ruleSt = s
	case config.BackendMemory:
		ruleSt = store.NewMemoryStore()
	default:
		c, err := apiClient()
		if err != nil {
			return nil, err
		}
		ruleSt = c
	}
	logger.Debug("store opened", "backend", cfg.Backend())
	return ruleSt, nil
}

func sqliteStore() (*store.SQLiteStore, error) {
	path := brand.DefaultDatabasePath()
	if cfg.Store != nil && cfg.Store.Path != "" {
		path = cfg.Store.Path
	}
	s, err := store.NewSQLiteStore(store.DefaultOptions(path))
	if err != nil {
		return nil, err
	}
	closers = append(closers, s)
	return s, nil
}

func apiClient() (*client.HTTPClient, error) {
	c, err := client.FromConfig(cfg.API)
	if err != nil {
		return nil, fmt.Errorf("%w (set api.endpoint or %s)", err, config.EnvEndpoint)
	}
	return c, nil
}

func reachabilityAPI() (reachability.API, error) {
	if reachOverride != nil {
		return reachOverride, nil
	}
	if reachAPI != nil {
		return reachAPI, nil
	}
	c, err := apiClient()
	if err != nil {
		return nil, err
	}
	reachAPI = c
	return reachAPI, nil
}

func newManager() (*manager.Manager, error) {
	s, err := ruleStore()
	if err != nil {
		return nil, err
	}
	return manager.New(s, manager.WithLogger(logger), manager.WithMetrics(registry)), nil
}

func closeAll() {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logging.Warn("failed to close store", "error", err)
		}
	}
	closers = nil
	ruleSt = nil
	reachAPI = nil
}
