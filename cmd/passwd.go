package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/illarion/cfgvault/internal/core"
	"github.com/illarion/cfgvault/internal/keyring"
)

func passwdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the password of an encrypted settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			current, _, err := GetPassword(cfg.File, "Enter current password: ")
			if err != nil {
				return err
			}
			if !core.IsInteractive() {
				return ErrPasswordRequired
			}
			next, err := core.ReadPasswordConfirm("Enter new password: ")
			if err != nil {
				return err
			}
			newPassword := string(next)

			o, err := options(cfg.File, current)
			if err != nil {
				return err
			}
			if err := core.ChangePassword(cmd.Context(), o, newPassword); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password changed: %s\n", cfg.File)

			if keyring.HasPassword(cfg.File) {
				if err := keyring.SavePassword(cfg.File, newPassword); err != nil {
					logger.Warn().Err(err).Msg("could not update keyring")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "keyring updated")
				}
			}
			return nil
		},
	}
}
