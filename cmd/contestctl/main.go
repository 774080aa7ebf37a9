package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	envOnly   bool
	outFormat string
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "contestctl",
		Short:         "Contest tracker operator tool",
		Long:          `Run aggregation cycles, status sweeps and reminder ticks by hand, and manage reminder subscriptions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultCfg := os.Getenv("CT_CONFIG")
	if defaultCfg == "" {
		defaultCfg = "config/config.yaml"
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultCfg, "config file (env: CT_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&envOnly, "env-only", false, "read configuration from CT_* env vars only")
	rootCmd.PersistentFlags().StringVar(&outFormat, "output", "json", "output format: json|text")

	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(remindCmd())
	rootCmd.AddCommand(remindersCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(parseClipboardCmd())
	return rootCmd
}
