package main

import (
	"github.com/spf13/cobra"
	"github.com/zoobzio/mutator"
)

var version = "0.1.0"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mutator",
		Short: "Apply mutator specs to values from the command line",
		Long: `mutator resolves transformation specs such as "substr:0,5|uppercase"
and applies them to a value, the same way model attributes are mutated.

Use it to try specs out, to validate the specs in your configuration,
and to list the built-in functions.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(newApplyCmd(newMutator))
	rootCmd.AddCommand(newCheckCmd(newMutator))
	rootCmd.AddCommand(newFunctionsCmd())
	return rootCmd
}

// newMutator builds the Mutator used by the commands. The CLI has no
// classes or macros of its own, only the built-in functions.
func newMutator() *mutator.Mutator {
	return mutator.New(mutator.WithName("cli"), mutator.WithMacros(mutator.NewMacros()))
}
