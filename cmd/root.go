package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/afoley587/coding-challenges-2025/usersync/internal/config"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	// Resolved in PersistentPreRunE for every subcommand.
	cfg    config.Config
	logger = zap.NewNop()
)

// rootCmd is the base command for the CLI.  It delegates to
// subcommands defined in users.go and server.go.  See init
// functions in those files for flag definitions.
var rootCmd = &cobra.Command{
	Use:           "usersync",
	Short:         "Keep a local view of a remote users collection in sync",
	Long:          "Command line interface to browse and edit a remote users collection, and to run the users API it talks to.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd, &loaded)
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		l, err := logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command.  It should be invoked from main.  An
// interrupt cancels the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlagOverrides copies explicitly set flags over the loaded
// configuration, so flags beat environment and file.
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		c.LogFormat = logFormat
	}
	for _, o := range flagOverrides {
		if o.flag.Changed {
			o.apply(c)
		}
	}
}

// flagOverride maps a subcommand flag onto the config it overrides.
type flagOverride struct {
	flag  *pflag.Flag
	apply func(*config.Config)
}

var flagOverrides []flagOverride

// overrideWith registers the already defined flag name of fs.
func overrideWith(fs *pflag.FlagSet, name string, apply func(*config.Config)) {
	f := fs.Lookup(name)
	if f == nil {
		panic("override for undefined flag " + name)
	}
	flagOverrides = append(flagOverrides, flagOverride{flag: f, apply: apply})
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath,
		"config", "c", "", "Path to a TOML config file")

	rootCmd.PersistentFlags().StringVar(&logLevel,
		"log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.PersistentFlags().StringVar(&logFormat,
		"log-format", "console", "Log format (console, json)")
}
