package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/illarion/cfgvault/pkg/crypto"
)

// EncryptedFile stores the document as a signed envelope.
type EncryptedFile struct {
	path string
	enc  *crypto.FileEncryptor
	cfg  config
	mu   sync.Mutex
}

// NewEncryptedFile returns an encrypted backend for path. The backend owns
// enc and destroys its key material on Close.
func NewEncryptedFile(path string, enc *crypto.FileEncryptor, opts ...Option) *EncryptedFile {
	return &EncryptedFile{path: path, enc: enc, cfg: newConfig(opts)}
}

// Path returns the file path.
func (e *EncryptedFile) Path() string {
	return e.path
}

func (e *EncryptedFile) Exists() (bool, error) {
	if err := e.enc.Err(); err != nil {
		return false, err
	}
	return fileExists(e.path)
}

// Load decrypts the file. A file without the envelope signature is read as
// plaintext.
func (e *EncryptedFile) Load() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.enc.ReadFile(e.path)
	if errors.Is(err, crypto.ErrFormat) {
		e.cfg.logger.Warn().Str("path", e.path).Msg("no envelope signature, reading as plaintext")
		return readLimited(e.path, e.enc.MaxFileSize())
	}
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s: %w", e.path, err)
	}
	return data, nil
}

func (e *EncryptedFile) Commit(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var buf bytes.Buffer
	if err := e.enc.Encrypt(&buf, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := writeFile(e.path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", e.path, err)
	}
	e.cfg.logger.Debug().Str("path", e.path).Int("bytes", buf.Len()).Msg("encrypted settings committed")
	return nil
}

func (e *EncryptedFile) Format() (Format, error) {
	return fileFormat(e.path)
}

func (e *EncryptedFile) Describe() string {
	return "encrypted file " + e.path
}

// Close destroys the key material.
func (e *EncryptedFile) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enc.Destroy()
	return nil
}
