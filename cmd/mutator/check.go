package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zoobzio/mutator"
)

func newCheckCmd(build func() *mutator.Mutator) *cobra.Command {
	return &cobra.Command{
		Use:   "check SPEC...",
		Short: "Validate specs without applying them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := build()
			defer m.Close()

			failed := 0
			for _, spec := range args {
				if err := m.Validate(spec); err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL  %s\n      %v\n", spec, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok    %s\n", spec)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d specs are invalid", failed, len(args))
			}
			return nil
		},
	}
}
