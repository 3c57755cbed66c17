package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/illarion/cfgvault/internal/core"
)

func diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <other-file>",
		Short: "Compare the settings file with another one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openVault(cmd.Context(), cfg.File)
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := openVault(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer b.Close()

			out, err := core.Diff(cmd.Context(), a, b)
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no differences")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
