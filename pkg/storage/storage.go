package storage

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/illarion/cfgvault/pkg/crypto"
)

var (
	ErrNotFound    = crypto.ErrNotFound
	ErrUnknownKind = errors.New("unknown storage backend")
)

// Storage holds one settings document.
type Storage interface {
	Exists() (bool, error)
	Load() ([]byte, error)
	Commit(data []byte) error
	Format() (Format, error)
	Describe() string
	Close() error
}

// Format is the on-disk form of a stored document.
type Format string

const (
	FormatMissing   Format = "missing"
	FormatPlain     Format = "plain"
	FormatEncrypted Format = "encrypted"
)

// DetectFormat classifies stored bytes by the envelope signature.
func DetectFormat(data []byte) Format {
	switch {
	case len(data) == 0:
		return FormatMissing
	case crypto.HasSignature(data):
		return FormatEncrypted
	default:
		return FormatPlain
	}
}

// Kind selects a backend.
type Kind string

const (
	KindFile Kind = "file"
	KindBolt Kind = "bolt"
)

// ParseKind validates a backend name. An empty name selects KindFile.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindFile:
		return KindFile, nil
	case KindBolt:
		return KindBolt, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

type config struct {
	logger  zerolog.Logger
	maxSize int64
}

// Option configures a backend.
type Option func(*config)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMaxFileSize caps how many bytes Load accepts.
func WithMaxFileSize(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

func newConfig(opts []Option) config {
	c := config{
		logger:  zerolog.Nop(),
		maxSize: crypto.DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Options describes the storage Open should build.
type Options struct {
	Path     string
	Kind     Kind
	Password string // empty selects an unencrypted backend
	Deriver  crypto.KeyDeriver
	Options  []Option
}

// Open builds the backend described by o. A password the key deriver
// rejects still yields an encrypted backend, but every operation on it
// fails with crypto.ErrDisabled.
func Open(o Options) (Storage, error) {
	if o.Path == "" {
		return nil, errors.New("storage path is required")
	}
	c := newConfig(o.Options)

	var enc *crypto.FileEncryptor
	if o.Password != "" {
		encOpts := []crypto.Option{
			crypto.WithMaxFileSize(c.maxSize),
			crypto.WithLogger(c.logger),
		}
		if o.Deriver != nil {
			encOpts = append(encOpts, crypto.WithDeriver(o.Deriver))
		}
		enc = crypto.NewFileEncryptor(o.Password, encOpts...)
	}

	kind, err := ParseKind(string(o.Kind))
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindBolt:
		return OpenBoltFile(o.Path, enc, o.Options...)
	default:
		if enc == nil {
			return NewPlainFile(o.Path, o.Options...), nil
		}
		return NewEncryptedFile(o.Path, enc, o.Options...), nil
	}
}
