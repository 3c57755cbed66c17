package cmd

import (
	"github.com/spf13/cobra"

	"github.com/illarion/cfgvault/pkg/crypto"
)

func catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat",
		Short: "Print the decrypted settings document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault(cmd.Context(), cfg.File)
			if err != nil {
				return err
			}
			defer v.Close()

			doc, err := v.Document(cmd.Context())
			if err != nil {
				return err
			}
			data, err := doc.Marshal()
			if err != nil {
				return err
			}
			defer crypto.ClearBytes(data)

			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
