// Package commands implements the thc-recon CLI.
package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reewardius/thc-recon/pkg/collector"
	"github.com/reewardius/thc-recon/pkg/logging"
	"github.com/reewardius/thc-recon/pkg/thc"
)

// Execute runs the root command and exits non-zero on failure.
func Execute(version, commit, buildDate string) {
	root := NewRootCommand(version, commit, buildDate)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCommand builds the thc-recon command tree.
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thc-recon",
		Short: "Subdomain collector for the ip.thc.org lookup API",
		Long: `thc-recon walks the paginated ip.thc.org lookup API for one or more
domains, accumulates the unique subdomains it returns, and tracks what
changed since the previous run.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(); err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			initLogging()
			return nil
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.thc-recon/config.yaml)")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	cmd.PersistentFlags().String("log-file", "", "log file path (size-rotated)")

	_ = viper.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", cmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("log.file", cmd.PersistentFlags().Lookup("log-file"))

	cmd.AddCommand(NewCollectCommand())
	cmd.AddCommand(NewCleanCommand())
	cmd.AddCommand(NewVersionCommand(version, commit, buildDate))

	cmd.SetVersionTemplate(fmt.Sprintf("thc-recon %s (commit %s, built %s)\n", version, commit, buildDate))

	return cmd
}

func initConfig() error {
	setDefaults()

	viper.SetEnvPrefix("THC_RECON")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".thc-recon"))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.file", "")
	viper.SetDefault("api.base_url", thc.DefaultBaseURL)
	viper.SetDefault("api.timeout", thc.DefaultTimeout)
	viper.SetDefault("api.page_size", thc.DefaultPageSize)
	viper.SetDefault("api.user_agent", thc.DefaultUserAgent)
	viper.SetDefault("collect.max_pages", collector.DefaultMaxPages)
	viper.SetDefault("collect.clear_stale_delta", false)
	viper.SetDefault("metrics.addr", "")
}

func initLogging() {
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(viper.GetString("log.level")),
		Format: logging.Format(viper.GetString("log.format")),
		File:   viper.GetString("log.file"),
	})
}
