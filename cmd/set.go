package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/illarion/cfgvault/pkg/settings"
)

func setCmd() *cobra.Command {
	var (
		raw     bool
		null    bool
		version string
	)

	cmd := &cobra.Command{
		Use:   "set <key> [value]",
		Short: "Store a value under a key, creating the file if needed",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := settings.Entry{Key: args[0]}
			switch {
			case null:
				if len(args) == 2 {
					return fmt.Errorf("--null takes no value")
				}
				e.Null = true
			case len(args) < 2:
				return fmt.Errorf("missing value for %s", args[0])
			case raw:
				if err := settings.CheckPayload(args[1]); err != nil {
					return err
				}
				e.Payload = args[1]
			default:
				e.Payload = valueOpen + settings.TextPayload(args[1]) + valueClose
			}

			var ver *settings.Version
			if version != "" {
				parsed, err := settings.ParseVersion(version)
				if err != nil {
					return err
				}
				ver = &parsed
			}

			v, err := openVault(cmd.Context(), cfg.File)
			if err != nil {
				return err
			}
			defer v.Close()

			if err := v.Set(cmd.Context(), e, ver); err != nil {
				return err
			}
			logger.Info().Str("key", e.Key).Str("file", cfg.File).Msg("value stored")
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "xml", false, "value is a raw XML payload")
	cmd.Flags().BoolVar(&null, "null", false, "store a null entry")
	cmd.Flags().StringVar(&version, "version", "", "stamp the document with this version")
	return cmd
}
