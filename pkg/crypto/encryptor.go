package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
)

// FileEncryptor reads and writes signed, encrypted files.
//
// The AES transform is created once and reused, so an instance must be
// confined to one goroutine at a time.
type FileEncryptor struct {
	keys    *KeyMaterial
	err     error
	block   cipher.Block
	deriver KeyDeriver
	maxSize int64
	logger  zerolog.Logger
}

// Option configures a FileEncryptor.
type Option func(*FileEncryptor)

// WithDeriver replaces the legacy key derivation.
func WithDeriver(d KeyDeriver) Option {
	return func(e *FileEncryptor) {
		e.deriver = d
	}
}

// WithMaxFileSize sets the largest file ReadFile accepts.
func WithMaxFileSize(n int64) Option {
	return func(e *FileEncryptor) {
		if n > 0 {
			e.maxSize = n
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(e *FileEncryptor) {
		e.logger = l
	}
}

// NewFileEncryptor derives key material from password. A password the
// deriver rejects leaves the encryptor disabled: every operation then fails
// with ErrDisabled without touching the filesystem.
func NewFileEncryptor(password string, opts ...Option) *FileEncryptor {
	e := &FileEncryptor{
		deriver: LegacyDeriver{},
		maxSize: DefaultMaxSize,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	keys, err := e.deriver.DeriveKey(password)
	if err != nil {
		e.err = fmt.Errorf("%w: %w", ErrDisabled, err)
		e.logger.Warn().Err(err).Msg("encryptor disabled")
		return e
	}
	e.keys = keys
	return e
}

// Err reports why the encryptor is disabled, or nil.
func (e *FileEncryptor) Err() error {
	return e.err
}

// MaxFileSize returns the configured size ceiling.
func (e *FileEncryptor) MaxFileSize() int64 {
	return e.maxSize
}

func (e *FileEncryptor) cipherBlock() (cipher.Block, error) {
	if e.block != nil {
		return e.block, nil
	}
	block, err := aes.NewCipher(e.keys.Key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	e.block = block
	return block, nil
}

// WriteFile creates or truncates path and writes the signature followed by
// the encrypted contents of plain.
func (e *FileEncryptor) WriteFile(path string, plain io.Reader) error {
	if e.err != nil {
		return e.err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteSignature(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write signature: %w", err)
	}
	if err := e.encryptStream(f, plain); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encrypt writes the envelope for plain to w.
func (e *FileEncryptor) Encrypt(w io.Writer, plain io.Reader) error {
	if e.err != nil {
		return e.err
	}
	if _, err := w.Write(signature[:]); err != nil {
		return fmt.Errorf("failed to write signature: %w", err)
	}
	return e.encryptStream(w, plain)
}

func (e *FileEncryptor) encryptStream(w io.Writer, plain io.Reader) error {
	block, err := e.cipherBlock()
	if err != nil {
		return err
	}

	cw := NewEncryptWriter(w, block, e.keys.IV[:])
	buf := make([]byte, ChunkSize)
	defer ClearBytes(buf)

	for {
		n, rerr := plain.Read(buf)
		if n > 0 {
			if _, err := cw.Write(buf[:n]); err != nil {
				return fmt.Errorf("failed to write ciphertext: %w", err)
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return fmt.Errorf("failed to read plaintext: %w", rerr)
		}
	}

	if err := cw.Close(); err != nil {
		return fmt.Errorf("failed to flush final block: %w", err)
	}
	return nil
}

// ReadFile verifies the signature of path and returns a reader that decrypts
// the rest of the file on demand. The file itself is closed before ReadFile
// returns.
func (e *FileEncryptor) ReadFile(path string) (io.Reader, error) {
	if e.err != nil {
		return nil, e.err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() > e.maxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrSizeLimit, path, info.Size(), e.maxSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	ok, err := VerifySignature(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read signature: %w", err)
	}
	if !ok {
		e.logger.Debug().Str("path", path).Msg("signature mismatch")
		return nil, fmt.Errorf("%w: %s", ErrFormat, path)
	}

	if _, err := f.Seek(SignatureSize, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek %s: %w", path, err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return e.decryptStream(data)
}

// Decrypt is ReadFile for an envelope already held in memory.
func (e *FileEncryptor) Decrypt(envelope []byte) (io.Reader, error) {
	if e.err != nil {
		return nil, e.err
	}
	if int64(len(envelope)) > e.maxSize {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", ErrSizeLimit, len(envelope), e.maxSize)
	}
	if !HasSignature(envelope) {
		return nil, ErrFormat
	}
	data := make([]byte, len(envelope)-SignatureSize)
	copy(data, envelope[SignatureSize:])
	return e.decryptStream(data)
}

func (e *FileEncryptor) decryptStream(ciphertext []byte) (io.Reader, error) {
	if len(ciphertext)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a multiple of %d", ErrDecrypt, len(ciphertext), BlockSize)
	}
	block, err := e.cipherBlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	return NewDecryptReader(bytes.NewReader(ciphertext), block, e.keys.IV[:]), nil
}

// Destroy clears the key material. The encryptor is unusable afterwards.
func (e *FileEncryptor) Destroy() {
	if e.keys != nil {
		e.keys.Clear()
		e.keys = nil
	}
	e.block = nil
	if e.err == nil {
		e.err = fmt.Errorf("%w: encryptor destroyed", ErrDisabled)
	}
}
