// cmd/membership-bot/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "membership-bot",
	Short: "Membership application workflow",
	Long: `membership-bot runs the membership application workflow: submissions open a
restricted discussion space, reviewers approve or reject, and every decision is
announced to the submitter and written to the audit log.

Use "serve" to run the HTTP ingress for the platform bridge, "migrate" to manage the
database schema, and the operator commands to inspect or clean up applications.`,
	SilenceUsage: true,
}

func main() {
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("config", "", "config file (defaults to configs/config.yaml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "cli", "actor identifier for operator commands")
	rootCmd.PersistentFlags().StringSlice("actor-roles", nil, "actor roles (defaults to the configured command roles)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("actor-roles", rootCmd.PersistentFlags().Lookup("actor-roles"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(panelCmd())
	rootCmd.AddCommand(applicationsCmd())
	rootCmd.AddCommand(cleanupCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(deleteSpaceCmd())
	rootCmd.AddCommand(healthCmd())
}
