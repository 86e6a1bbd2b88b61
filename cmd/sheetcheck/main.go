package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Environment variables already set take precedence over .env
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "sheetcheck",
		Short:        "Check the health of a spreadsheet locally",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newValidateCmd(),
		newRulesCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
