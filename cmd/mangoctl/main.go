// Package main is the mangoctl operator CLI: artifact and startup checks,
// schema migrations and API key provisioning.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errChecksFailed makes the process exit non-zero after a report was printed.
var errChecksFailed = errors.New("checks failed")

func main() {
	if err := rootCommand().Execute(); err != nil {
		if !errors.Is(err, errChecksFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mangoctl",
		Short:         "MangoSense operator tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		checkModelsCommand(),
		startupCheckCommand(),
		migrateCommand(),
		createKeyCommand(),
	)

	return rootCmd
}
