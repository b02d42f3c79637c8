package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ironsheep/slide-overlay/internal/config"
	"github.com/ironsheep/slide-overlay/internal/logging"
	"github.com/ironsheep/slide-overlay/internal/store"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// envConfigPath names the environment variable read when --config is not given.
const envConfigPath = "CONFIG_PATH"

// app holds the state shared by all subcommands.
type app struct {
	configPath string
	logLevel   string
	dbPath     string

	cfg *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "slide-overlay",
		Short: "Render detected cells over whole-slide images",
		Long: `slide-overlay draws cell detections onto a downsampled whole-slide image
and writes overlays/<name>.jpg and masks/<name>.jpg under an output directory.
It also runs as an MCP server over stdin/stdout.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(cmd.ErrOrStderr(), a.logLevel)
			return a.loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to YAML config (default: $"+envConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (default: $"+logging.EnvLevel+" or info)")
	rootCmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite render ledger path; overrides the configured database")

	rootCmd.AddCommand(
		newRenderCmd(a),
		newBatchCmd(a),
		newServeCmd(a),
		newHistoryCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func (a *app) loadConfig() error {
	path := a.configPath
	if path == "" {
		path = os.Getenv(envConfigPath)
	}
	if path == "" {
		a.cfg = config.Default()
		return nil
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	log.Debug().Str("path", path).Int("slides", len(cfg.Slides)).Msg("config loaded")
	a.cfg = cfg
	return nil
}

// openStore returns the render ledger, or nil when none is configured.
func (a *app) openStore() (store.Store, error) {
	if a.dbPath != "" {
		return store.New("sqlite", a.dbPath)
	}
	if a.cfg.Database.Type != "" {
		return store.New(a.cfg.Database.Type, a.cfg.Database.ConnectionString)
	}
	return nil, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Skip config loading so version works with a broken config.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "slide-overlay %s\n", Version)
	fmt.Fprintf(w, "  Build time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
}
