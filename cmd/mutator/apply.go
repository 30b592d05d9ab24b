package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zoobzio/mutator"
)

func newApplyCmd(build func() *mutator.Mutator) *cobra.Command {
	var (
		spec   string
		stages []string
	)

	cmd := &cobra.Command{
		Use:   "apply [flags] VALUE",
		Short: "Apply a spec to a value and print the result",
		Long: `Apply a spec to a value and print the result.

--spec takes a single pipe-separated spec. --stage may be repeated and
treats each occurrence as exactly one stage.`,
		Example: `  mutator apply --spec "substr:0,5|uppercase" "quick red fox"
  mutator apply --stage substr:5,10 --stage strtoupper "quick red fox"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (spec == "") == (len(stages) == 0) {
				return errors.New("exactly one of --spec or --stage is required")
			}

			m := build()
			defer m.Close()

			var (
				result any
				err    error
			)
			if spec != "" {
				result, err = m.Mutate(cmd.Context(), args[0], spec)
			} else {
				result, err = m.MutateEach(cmd.Context(), args[0], stages...)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&spec, "spec", "s", "", "pipe-separated spec")
	cmd.Flags().StringArrayVar(&stages, "stage", nil, "single stage, may be repeated")
	return cmd
}
