package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/illarion/cfgvault/pkg/crypto"
)

// ErrPasswordMismatch is returned when the confirmation differs.
var ErrPasswordMismatch = errors.New("passwords do not match")

// Prompts are written here so stdout stays clean for document output.
var promptOut io.Writer = os.Stderr

// ReadPassword prints prompt and reads a password from the terminal
// without echo.
func ReadPassword(prompt string) ([]byte, error) {
	fmt.Fprint(promptOut, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(promptOut)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// ReadPasswordConfirm reads a new password twice. The password must be
// usable by the envelope key derivation.
func ReadPasswordConfirm(prompt string) ([]byte, error) {
	first, err := ReadPassword(prompt)
	if err != nil {
		return nil, err
	}
	if err := crypto.ValidatePassword(string(first)); err != nil {
		crypto.ClearBytes(first)
		return nil, err
	}

	second, err := ReadPassword("Confirm password: ")
	if err != nil {
		crypto.ClearBytes(first)
		return nil, err
	}
	defer crypto.ClearBytes(second)

	if !crypto.ConstantTimeCompare(first, second) {
		crypto.ClearBytes(first)
		return nil, ErrPasswordMismatch
	}
	return first, nil
}

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(syscall.Stdin))
}
