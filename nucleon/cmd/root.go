// Package cmd provides the command-line interface for running machines.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "nucleon",
	Short: "Nucleon runs user programs on a simulated single-core " +
		"preemptive kernel.",
	Long: `Nucleon runs user programs on a simulated single-core preemptive ` +
		`kernel: paged address spaces, a round-robin scheduler driven by a ` +
		`timer interrupt, and a register-convention syscall interface.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// Settings may come from a .env file; missing files are fine.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
