package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func keysCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "keys",
		Aliases: []string{"ls"},
		Short:   "List the keys stored in the settings file",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault(cmd.Context(), cfg.File)
			if err != nil {
				return err
			}
			defer v.Close()

			keys, err := v.Keys(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}
