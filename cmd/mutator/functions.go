package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zoobzio/mutator"
)

func newFunctionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List the built-in functions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range mutator.Builtins().Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
