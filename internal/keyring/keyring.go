package keyring

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/zalando/go-keyring"
)

const serviceName = "cfgvault"

// ErrNotFound is returned when no password is stored for a file.
var ErrNotFound = keyring.ErrNotFound

// AccountID returns the keyring account for a settings file. It is stable
// for a given absolute path.
func AccountID(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(abs))).String(), nil
}

// SavePassword stores a password in the OS keyring
func SavePassword(path, password string) error {
	id, err := AccountID(path)
	if err != nil {
		return err
	}
	return keyring.Set(serviceName, id, password)
}

// GetPassword retrieves a password from the OS keyring
func GetPassword(path string) (string, error) {
	id, err := AccountID(path)
	if err != nil {
		return "", err
	}
	return keyring.Get(serviceName, id)
}

// DeletePassword removes a password from the OS keyring. Deleting a
// password that is not stored is not an error.
func DeletePassword(path string) error {
	id, err := AccountID(path)
	if err != nil {
		return err
	}
	if err := keyring.Delete(serviceName, id); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

// HasPassword checks if a password is stored in the keyring
func HasPassword(path string) bool {
	_, err := GetPassword(path)
	return err == nil
}
