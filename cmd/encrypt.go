package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/illarion/cfgvault/internal/core"
	"github.com/illarion/cfgvault/internal/keyring"
	"github.com/illarion/cfgvault/pkg/crypto"
)

func encryptCmd() *cobra.Command {
	var remember bool

	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a plaintext settings file with a password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := GetNewPassword("Enter new password: ")
			if err != nil {
				return err
			}
			if err := crypto.ValidatePassword(pw); err != nil {
				return err
			}

			o, err := options(cfg.File, pw)
			if err != nil {
				return err
			}
			if err := core.Encrypt(cmd.Context(), o); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "encrypted: %s\n", cfg.File)

			if remember {
				if err := keyring.SavePassword(cfg.File, pw); err != nil {
					logger.Warn().Err(err).Msg("could not store password in keyring")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "password saved to keyring")
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remember, "keyring", false, "also store the password in the OS keyring")
	return cmd
}

func decryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt",
		Short: "Rewrite an encrypted settings file as plaintext",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, _, err := GetPassword(cfg.File, "Enter password: ")
			if err != nil {
				return err
			}
			o, err := options(cfg.File, pw)
			if err != nil {
				return err
			}
			if err := core.Decrypt(cmd.Context(), o); err != nil {
				return err
			}
			if err := keyring.DeletePassword(cfg.File); err != nil {
				logger.Warn().Err(err).Msg("could not remove password from keyring")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "decrypted: %s\n", cfg.File)
			return nil
		},
	}
}
