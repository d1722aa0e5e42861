// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/browser"
	"github.com/xkilldash9x/shelfcheck/internal/config"
	"github.com/xkilldash9x/shelfcheck/internal/observability"
)

const envPrefix = "SHELFCHECK"

type contextKey string

const configKey contextKey = "config"

// app carries the state shared by one command tree. Tests build their own
// with a fake driver.
type app struct {
	v         *viper.Viper
	cfgFile   string
	newDriver func(logger *zap.Logger) browser.Driver
}

func newApp() *app {
	return &app{
		v: viper.New(),
		newDriver: func(logger *zap.Logger) browser.Driver {
			return browser.NewManager(logger)
		},
	}
}

// NewRootCommand builds a fresh command tree with its own configuration state.
func NewRootCommand() *cobra.Command {
	return newRootCmd(newApp())
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shelfcheck",
		Short: "shelfcheck runs automated QA checks against ecommerce product pages.",
		Long: `shelfcheck drives a headless Chrome through a list of product pages and
verifies that each one shows the essentials a shopper needs, that its images
load, and that it runs without console or network errors.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.SetDefaults(a.v)

			// 1. Initialize configuration loading.
			if err := initializeConfig(a); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "shelfcheck"})
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			// 2. Create the configuration object from viper.
			cfg, err := config.NewConfigFromViper(a.v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "shelfcheck"})
				return fmt.Errorf("failed to load config: %w", err)
			}

			// 3. Initialize the logger with the loaded config.
			observability.InitializeLogger(cfg.Logger)
			if cfg.Run.Verbose {
				observability.SetVerbose(true)
			}
			observability.GetLogger().Debug("Configuration loaded.",
				zap.String("version", Version),
				zap.String("config_file", a.v.ConfigFileUsed()),
			)

			// 4. Hand the configuration to subcommands through the context.
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file, YAML or JSON (default is ./shelfcheck.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(newRunCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree for the process arguments and logs a
// failure before returning it.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger := observability.GetLogger()
		switch {
		case errors.Is(err, ErrBelowThreshold):
			logger.Warn("Run finished below the pass threshold.")
		case errors.Is(err, context.Canceled):
			logger.Warn("Command aborted.")
		default:
			logger.Error("Command execution failed.", zap.Error(err))
		}
		observability.Sync()
		return err
	}
	observability.Sync()
	return nil
}

// initializeConfig reads in the config file and environment overrides.
// Precedence is flags, then env, then the file, then defaults.
func initializeConfig(a *app) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("shelfcheck")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("%w: error reading config file: %v", config.ErrInvalid, err)
		}
		// Config file not found; proceed with defaults and env vars.
	}
	return nil
}

// configFrom returns the configuration stored by PersistentPreRunE.
func configFrom(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}
