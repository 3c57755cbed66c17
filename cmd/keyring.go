package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/illarion/cfgvault/internal/core"
	"github.com/illarion/cfgvault/internal/keyring"
	"github.com/illarion/cfgvault/pkg/storage"
)

func keyringCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyring",
		Short: "Manage the password stored in the OS keyring",
	}
	cmd.AddCommand(keyringSaveCmd(), keyringDeleteCmd(), keyringStatusCmd())
	return cmd
}

func keyringSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Verify the password and store it in the OS keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, _, err := promptPassword("Enter password: ")
			if errors.Is(err, ErrPasswordRequired) && cfg.Password != "" {
				pw, err = cfg.Password, nil
			}
			if err != nil {
				return err
			}

			o, err := options(cfg.File, pw)
			if err != nil {
				return err
			}
			format, err := core.Probe(o)
			if err != nil {
				return err
			}
			if format != storage.FormatEncrypted {
				return core.ErrNotEncrypted
			}

			v, err := core.Open(o)
			if err != nil {
				return err
			}
			_, err = v.Document(cmd.Context())
			v.Close()
			if err != nil {
				return err
			}

			if err := keyring.SavePassword(cfg.File, pw); err != nil {
				return fmt.Errorf("failed to save password to keyring: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password saved to keyring for %s\n", cfg.File)
			return nil
		},
	}
}

func keyringDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete",
		Aliases: []string{"forget"},
		Short:   "Remove the stored password from the OS keyring",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := keyring.DeletePassword(cfg.File); err != nil {
				return fmt.Errorf("failed to remove password from keyring: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password removed from keyring for %s\n", cfg.File)
			return nil
		},
	}
}

func keyringStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether a password is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyring.HasPassword(cfg.File) {
				fmt.Fprintf(cmd.OutOrStdout(), "password stored for %s\n", cfg.File)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "no password stored for %s\n", cfg.File)
			}
			return nil
		},
	}
}
