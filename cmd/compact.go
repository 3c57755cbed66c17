package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func compactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Reclaim free space in a bolt settings database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := os.Stat(cfg.File)
			if err != nil {
				return err
			}

			v, err := openVault(cmd.Context(), cfg.File)
			if err != nil {
				return err
			}
			defer v.Close()

			if err := v.Compact(cmd.Context()); err != nil {
				return err
			}

			after, err := os.Stat(cfg.File)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "compacted %s: %s -> %s\n",
				cfg.File, formatSize(before.Size()), formatSize(after.Size()))
			return nil
		},
	}
}
