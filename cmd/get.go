package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/illarion/cfgvault/pkg/settings"
)

const (
	valueOpen  = "<value>"
	valueClose = "</value>"
)

func getCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault(cmd.Context(), cfg.File)
			if err != nil {
				return err
			}
			defer v.Close()

			e, err := v.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if e.Null {
				fmt.Fprintln(os.Stderr, "null")
				return nil
			}
			if raw {
				fmt.Fprintln(cmd.OutOrStdout(), e.Payload)
				return nil
			}

			text, err := valueText(e.Payload)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "xml", false, "print the raw XML payload")
	return cmd
}

// valueText unwraps a <value> element written by set. Structured payloads
// are returned as stored.
func valueText(payload string) (string, error) {
	p := strings.TrimSpace(payload)
	if strings.HasPrefix(p, valueOpen) && strings.HasSuffix(p, valueClose) {
		p = p[len(valueOpen) : len(p)-len(valueClose)]
	}
	text, err := settings.PayloadText(p)
	if errors.Is(err, settings.ErrNotText) {
		return payload, nil
	}
	return text, err
}
