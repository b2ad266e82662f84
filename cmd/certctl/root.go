package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Yair4430/CertiGranja-2.0/config"
	"github.com/Yair4430/CertiGranja-2.0/pkg/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	config   string
	logLevel string
}

var rootCmd = &cobra.Command{
	Use:   "certctl",
	Short: "Batch certificate downloads from the registry portal",
	Long:  "certctl drives the certificate portal for every row of a batch sheet,\nwrites the colour-coded results workbook and merges the downloaded PDFs.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		logger.Init(&logger.Config{Level: rootFlags.logLevel, Format: "text", Output: cmd.ErrOrStderr()})
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.config, "config", "", "Path to config.yaml (defaults apply when empty)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "debug, info, warn or error")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.Version = version
}

// loadConfig reads --config, or falls back to built-in defaults.
func loadConfig() (*config.Config, error) {
	if rootFlags.config == "" {
		cfg := &config.Config{}
		cfg.SetDefaults()
		return cfg, nil
	}
	cfg, err := config.Load(rootFlags.config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
