package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "discoverctl",
	Short: "Run POI discovery cycles from the command line",
	Long: `discoverctl runs a single discovery cycle against the providers configured
in the environment (.env is honoured) and prints the result.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
