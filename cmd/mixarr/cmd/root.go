// Package cmd implements the CLI commands for mixarr.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/mixarr/internal/config"
	"github.com/jmylchreest/mixarr/internal/observability"
	"github.com/jmylchreest/mixarr/internal/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "mixarr",
	Short:   "Autonomous radio DJ and crossfade renderer",
	Version: version.Short(),
	Long: `mixarr renders a continuous music mix as discrete audio segments:
it plans which track to play next, writes and speaks DJ handoffs, and
crossfades each pair of tracks into a self-contained MP3 segment that a
transport can deliver to a listener.

Track metadata, planning, and voice synthesis come from external
providers; a provider without credentials degrades gracefully instead
of blocking the mix.`,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	// Assigned here rather than in the literal: initLogging reads
	// rootCmd.PersistentFlags.
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initLogging()
	}

	// The log flags are deliberately not bound to viper; binding would
	// let a flag's default value shadow env and config. initLogging
	// applies them only when Changed().
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mixarr.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
}

// initConfig wires viper: defaults, config file discovery, MIXARR_ env.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/mixarr")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".mixarr")
	}

	viper.SetEnvPrefix("MIXARR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// initLogging installs the redacting slog logger as the process
// default. Precedence: explicit CLI flag, then MIXARR_LOGGING_* env,
// then config file, then built-in defaults.
func initLogging() error {
	// Viper already resolves env over config over default.
	level := viper.GetString("logging.level")
	format := viper.GetString("logging.format")

	if rootCmd.PersistentFlags().Changed("log-level") {
		level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}

	if level == "" {
		level = "info"
	}
	if format == "" {
		format = "json"
	}

	level = strings.ToLower(level)
	if level == "warning" {
		level = "warn"
	}

	logger := observability.NewLoggerWithWriter(config.LoggingConfig{
		Level:  level,
		Format: strings.ToLower(format),
	}, os.Stderr)
	observability.SetDefault(logger)

	return nil
}

// loadConfig reads the typed configuration, honoring the --config flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
