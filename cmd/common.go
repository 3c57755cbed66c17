package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/illarion/cfgvault/internal/core"
	"github.com/illarion/cfgvault/internal/keyring"
	"github.com/illarion/cfgvault/pkg/crypto"
	"github.com/illarion/cfgvault/pkg/settings"
	"github.com/illarion/cfgvault/pkg/storage"
)

// ErrPasswordRequired is returned when a password is needed and cannot be
// asked for.
var ErrPasswordRequired = errors.New("password required")

// PasswordSource tells where a password came from.
type PasswordSource int

const (
	SourceNone PasswordSource = iota
	SourceConfig
	SourceKeyring
	SourcePrompt
)

// options builds core options for path from the loaded configuration.
func options(path, password string) (core.Options, error) {
	deriver, err := cfg.Deriver()
	if err != nil {
		return core.Options{}, err
	}
	kind, err := storage.ParseKind(cfg.Backend)
	if err != nil {
		return core.Options{}, err
	}
	return core.Options{
		Path:        path,
		Kind:        kind,
		Password:    password,
		Deriver:     deriver,
		MaxFileSize: cfg.MaxFileSize,
		WaitTimeout: cfg.WaitTimeout,
		Logger:      logger,
	}, nil
}

// GetPassword looks for the password of path in the configuration, then in
// the OS keyring, then asks on the terminal.
func GetPassword(path, prompt string) (string, PasswordSource, error) {
	if cfg.Password != "" {
		return cfg.Password, SourceConfig, nil
	}
	if cfg.Keyring {
		if pw, err := keyring.GetPassword(path); err == nil {
			logger.Debug().Str("path", path).Msg("using password from keyring")
			return pw, SourceKeyring, nil
		}
	}
	return promptPassword(prompt)
}

func promptPassword(prompt string) (string, PasswordSource, error) {
	if !core.IsInteractive() {
		return "", SourceNone, ErrPasswordRequired
	}
	pw, err := core.ReadPassword(prompt)
	if err != nil {
		return "", SourceNone, err
	}
	defer crypto.ClearBytes(pw)
	return string(pw), SourcePrompt, nil
}

// GetNewPassword returns the password for a file being encrypted: the
// configured one, or a confirmed prompt.
func GetNewPassword(prompt string) (string, error) {
	if cfg.Password != "" {
		return cfg.Password, nil
	}
	if !core.IsInteractive() {
		return "", ErrPasswordRequired
	}
	pw, err := core.ReadPasswordConfirm(prompt)
	if err != nil {
		return "", err
	}
	defer crypto.ClearBytes(pw)
	return string(pw), nil
}

// openVault opens the settings file at path. Encrypted files are unlocked
// with GetPassword; a stale keyring entry falls back to the prompt. Plain
// and missing files stay unencrypted unless a password is configured.
func openVault(ctx context.Context, path string) (*core.Vault, error) {
	o, err := options(path, "")
	if err != nil {
		return nil, err
	}
	if plain {
		return core.Open(o)
	}

	format, err := core.Probe(o)
	if err != nil {
		return nil, err
	}
	if format != storage.FormatEncrypted {
		o.Password = cfg.Password
		return core.Open(o)
	}

	pw, source, err := GetPassword(path, "Enter password: ")
	if err != nil {
		return nil, err
	}
	o.Password = pw

	v, err := core.Open(o)
	if err != nil {
		return nil, err
	}
	if source != SourceKeyring {
		return v, nil
	}

	if _, err := v.Document(ctx); !errors.Is(err, core.ErrWrongPassword) {
		return v, nil
	}
	v.Close()
	logger.Warn().Str("path", path).Msg("keyring password is stale")

	pw, _, err = promptPassword("Enter password: ")
	if err != nil {
		return nil, err
	}
	o.Password = pw
	return core.Open(o)
}

// HandleError prints err with a hint and exits.
func HandleError(err error) {
	switch {
	case errors.Is(err, crypto.ErrDisabled), errors.Is(err, crypto.ErrPasswordTooShort):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Passwords must be at least %d characters\n", crypto.MinPasswordLength)
	case errors.Is(err, settings.ErrNotFound):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Use 'cfgvault set' to create the file or --file to pick another one\n")
	case errors.Is(err, core.ErrWrongPassword), errors.Is(err, crypto.ErrDecrypt):
		fmt.Fprintf(os.Stderr, "Error: wrong password or corrupted file\n")
	case errors.Is(err, ErrPasswordRequired):
		fmt.Fprintf(os.Stderr, "Error: password required\n")
		fmt.Fprintf(os.Stderr, "Set CFGVAULT_PASSWORD or run 'cfgvault keyring save' from a terminal\n")
	case errors.Is(err, settings.ErrBusy):
		fmt.Fprintf(os.Stderr, "Error: settings file is busy, try again\n")
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(1)
}

func formatSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.1f GB", float64(size)/GB)
	case size >= MB:
		return fmt.Sprintf("%.1f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.1f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}
