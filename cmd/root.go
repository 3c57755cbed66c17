package cmd

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/illarion/cfgvault/internal/config"
)

var (
	configPath string
	filePath   string
	backend    string
	plain      bool
	verbose    bool

	cfg    *config.Config
	logger = zerolog.Nop()
)

// Execute runs the cfgvault command line.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:           "cfgvault",
		Short:         "Inspect and edit password-protected settings files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("file") {
				c.File = filePath
			}
			if cmd.Flags().Changed("backend") {
				c.Backend = backend
			}
			if verbose {
				c.LogLevel = zerolog.DebugLevel.String()
			}
			if err := c.Validate(); err != nil {
				return err
			}

			cfg = c
			logger = newLogger(c.Level())
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVarP(&filePath, "file", "f", "", "settings file (default settings.xml)")
	root.PersistentFlags().StringVar(&backend, "backend", "", "storage backend: file or bolt")
	root.PersistentFlags().BoolVar(&plain, "plain", false, "treat the file as unencrypted, never ask for a password")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		catCmd(),
		getCmd(),
		setCmd(),
		rmCmd(),
		keysCmd(),
		statusCmd(),
		encryptCmd(),
		decryptCmd(),
		passwdCmd(),
		diffCmd(),
		keyringCmd(),
		compactCmd(),
	)
	return root.ExecuteContext(ctx)
}

func newLogger(level zerolog.Level) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
