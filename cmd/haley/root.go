package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "haley",
	Short: "Haley runs programme signups for the association",
	Long:  `Haley is the conversational engine behind the association's programme signups: registration, listings, applications, triage, withdrawals, and settlement.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the config file (default: ./haley.yaml)")
}
