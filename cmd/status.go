package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/illarion/cfgvault/internal/core"
	"github.com/illarion/cfgvault/internal/git"
	"github.com/illarion/cfgvault/internal/keyring"
	"github.com/illarion/cfgvault/pkg/storage"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show format, version and keys of the settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := options(cfg.File, "")
			if err != nil {
				return err
			}
			format, err := core.Probe(o)
			if err != nil {
				return err
			}
			if format == storage.FormatMissing {
				fmt.Fprintf(cmd.OutOrStdout(), "%s does not exist\n", cfg.File)
				return nil
			}

			// status never prompts; only a configured password unlocks the file
			o.Password = cfg.Password
			v, err := core.Open(o)
			if err != nil {
				return err
			}
			defer v.Close()

			info, err := v.Status(cmd.Context())
			if err != nil {
				return err
			}
			printStatus(cmd, info)
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, info *core.StatusInfo) {
	out := cmd.OutOrStdout()
	encrypted := info.Format == storage.FormatEncrypted

	fmt.Fprintf(out, "File:      %s\n", info.Path)
	fmt.Fprintf(out, "Backend:   %s\n", info.Backend)
	fmt.Fprintf(out, "Format:    %s\n", info.Format)
	fmt.Fprintf(out, "Size:      %s\n", formatSize(info.Size))
	if !info.Modified.IsZero() {
		fmt.Fprintf(out, "Modified:  %s\n", info.Modified.Format(time.RFC3339))
	}
	if encrypted {
		if keyring.HasPassword(info.Path) {
			fmt.Fprintf(out, "Keyring:   password stored\n")
		} else {
			fmt.Fprintf(out, "Keyring:   no password stored\n")
		}
	}

	switch {
	case info.ReadError != nil && encrypted:
		fmt.Fprintf(out, "Contents:  locked (set CFGVAULT_PASSWORD to inspect)\n")
	case info.ReadError != nil:
		fmt.Fprintf(out, "Contents:  unreadable: %s\n", info.ReadError)
	case info.Empty:
		fmt.Fprintf(out, "Contents:  empty\n")
	default:
		version := info.Version
		if version == "" {
			version = "(none)"
		}
		fmt.Fprintf(out, "Version:   %s\n", version)
		fmt.Fprintf(out, "Keys:      %d\n", len(info.Keys))
		if len(info.Keys) > 0 {
			fmt.Fprintf(out, "   %s\n", strings.Join(info.Keys, "\n   "))
		}
	}

	if info.GitStatus != nil {
		fmt.Fprint(out, git.FormatStatus(info.GitStatus, encrypted))
	}
}
