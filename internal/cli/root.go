package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/ServerEye/internal/client"
	"github.com/SmitUplenchwar2687/ServerEye/internal/config"
	"github.com/SmitUplenchwar2687/ServerEye/internal/logger"
)

// app holds the global flags and the resolved config shared by commands.
type app struct {
	configPath string
	envFiles   []string
	upstream   string
	logLevel   string
	logPretty  bool
	lang       string
	timezone   string

	cfg config.Config
}

// NewRootCmd creates the root servereye command.
func NewRootCmd() *cobra.Command {
	a := &app{cfg: config.Default()}

	root := &cobra.Command{
		Use:   "servereye",
		Short: "Dashboard and tools for the ServerEye game-server event API",
		Long: `ServerEye polls a game server's event API, keeps a filtered and
aggregated view of recent events, and serves it as a live web dashboard.
The same pipeline backs one-shot terminal commands for events, cache
status, cleanup and export.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (.json or .toml)")
	pf.StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "dotenv files to load before reading SERVEREYE_* variables")
	pf.StringVar(&a.upstream, "upstream", "", "ServerEye API base URL (overrides config)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	pf.BoolVar(&a.logPretty, "log-pretty", false, "human readable log output")
	pf.StringVar(&a.lang, "lang", "", "display language (en, zh)")
	pf.StringVar(&a.timezone, "timezone", "", "IANA time zone for displayed times")

	root.AddCommand(
		newDashboardCmd(a),
		newEventsCmd(a),
		newStatusCmd(a),
		newCleanupCmd(a),
		newExportCmd(a),
		newGenerateCmd(),
		newMockAPICmd(),
		newInitConfigCmd(),
	)

	return root
}

// load resolves the config: defaults, file, dotenv and environment, then
// global flags that were set explicitly.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, a.envFiles...)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("upstream") {
		cfg.Upstream.URL = a.upstream
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-pretty") {
		cfg.Log.Pretty = a.logPretty
	}
	if flags.Changed("lang") {
		cfg.Dashboard.Language = a.lang
	}
	if flags.Changed("timezone") {
		cfg.Dashboard.Timezone = a.timezone
	}

	logger.Init(cfg.Log)
	a.cfg = cfg
	return nil
}

// validated checks the config after command flags have been applied.
func (a *app) validated() (config.Config, error) {
	if err := a.cfg.Validate(); err != nil {
		return a.cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return a.cfg, nil
}

func (a *app) newClient() (*client.Client, error) {
	cfg, err := a.validated()
	if err != nil {
		return nil, err
	}
	loc, _ := cfg.Location()
	return client.New(client.Config{
		Address:  cfg.Upstream.URL,
		Timeout:  cfg.Upstream.Timeout,
		Location: loc,
	})
}
