// Command contractctl is the operator CLI for the contract analysis backend.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"contract-analyzer/internal/shared/telemetry"
)

var Version = "dev"

func main() {
	defer telemetry.Sync()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "contractctl",
		Short:         "Operate the contract analysis backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(migrateCmd())
	root.AddCommand(analyzeCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(enqueueCmd())
	root.AddCommand(tokenCmd())
	return root
}
