package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/illarion/cfgvault/internal/git"
	"github.com/illarion/cfgvault/internal/guard"
	"github.com/illarion/cfgvault/pkg/crypto"
	"github.com/illarion/cfgvault/pkg/settings"
	"github.com/illarion/cfgvault/pkg/storage"
)

// DefaultVersion stamps documents created from scratch.
var DefaultVersion = settings.Version{Major: 1}

var (
	ErrKeyNotFound       = errors.New("key not found")
	ErrWrongPassword     = errors.New("wrong password or corrupted file")
	ErrAlreadyEncrypted  = errors.New("settings file is already encrypted")
	ErrNotEncrypted      = errors.New("settings file is not encrypted")
	ErrCompactNotAllowed = errors.New("compaction is only supported by the bolt backend")
)

// Options locates and unlocks one settings file.
type Options struct {
	Path        string
	Kind        storage.Kind
	Password    string // empty opens the file unencrypted
	Deriver     crypto.KeyDeriver
	MaxFileSize int64
	WaitTimeout time.Duration
	Logger      zerolog.Logger
}

func (o Options) storageOptions() storage.Options {
	var opts []storage.Option
	opts = append(opts, storage.WithLogger(o.Logger))
	if o.MaxFileSize > 0 {
		opts = append(opts, storage.WithMaxFileSize(o.MaxFileSize))
	}
	return storage.Options{
		Path:     o.Path,
		Kind:     o.Kind,
		Password: o.Password,
		Deriver:  o.Deriver,
		Options:  opts,
	}
}

// Vault edits one settings document without a schema.
type Vault struct {
	opts   Options
	store  storage.Storage
	guard  *guard.Guard
	logger zerolog.Logger
}

// Open opens the settings file described by o.
func Open(o Options) (*Vault, error) {
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = settings.DefaultWaitTimeout
	}
	store, err := storage.Open(o.storageOptions())
	if err != nil {
		return nil, err
	}
	return &Vault{
		opts:   o,
		store:  store,
		guard:  guard.New(),
		logger: o.Logger,
	}, nil
}

// Close releases the storage and its key material.
func (v *Vault) Close() error {
	return v.store.Close()
}

// Path returns the settings file path.
func (v *Vault) Path() string {
	return v.opts.Path
}

// Storage returns the underlying backend.
func (v *Vault) Storage() storage.Storage {
	return v.store
}

func (v *Vault) lock(ctx context.Context) error {
	if err := v.guard.Acquire(ctx, v.opts.WaitTimeout); err != nil {
		if errors.Is(err, guard.ErrTimeout) {
			return fmt.Errorf("%w: %w", settings.ErrBusy, err)
		}
		return err
	}
	return nil
}

// Probe reports the stored format of the file described by o without
// unlocking it.
func Probe(o Options) (storage.Format, error) {
	o.Password = ""
	if o.Kind == storage.KindBolt {
		if _, err := os.Stat(o.Path); errors.Is(err, fs.ErrNotExist) {
			return storage.FormatMissing, nil
		}
	}
	store, err := storage.Open(o.storageOptions())
	if err != nil {
		return "", err
	}
	defer store.Close()
	return store.Format()
}

// Read returns the decrypted document bytes.
func (v *Vault) Read(ctx context.Context) ([]byte, error) {
	if err := v.lock(ctx); err != nil {
		return nil, err
	}
	defer v.guard.Release()
	return v.store.Load()
}

// Document loads and parses the stored document.
func (v *Vault) Document(ctx context.Context) (*settings.Document, error) {
	if err := v.lock(ctx); err != nil {
		return nil, err
	}
	defer v.guard.Release()
	return v.document()
}

func (v *Vault) document() (*settings.Document, error) {
	data, err := v.store.Load()
	if err != nil {
		return nil, err
	}
	doc, err := settings.ParseDocument(data)
	if err != nil {
		if format, ferr := v.store.Format(); ferr == nil && format == storage.FormatEncrypted {
			return nil, fmt.Errorf("%w: %w", ErrWrongPassword, err)
		}
		return nil, err
	}
	return doc, nil
}

// Keys lists the stored keys in document order.
func (v *Vault) Keys(ctx context.Context) ([]string, error) {
	doc, err := v.Document(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Keys(), nil
}

// Get returns the entry stored under key.
func (v *Vault) Get(ctx context.Context, key string) (settings.Entry, error) {
	doc, err := v.Document(ctx)
	if err != nil {
		return settings.Entry{}, err
	}
	e, ok := doc.Get(key)
	if !ok {
		return settings.Entry{}, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return e, nil
}

// Set stores e, creating the document when the file does not exist yet.
// A non-nil version replaces the stored version attribute.
func (v *Vault) Set(ctx context.Context, e settings.Entry, version *settings.Version) error {
	return v.update(ctx, version, func(doc *settings.Document) error {
		doc.Set(e)
		v.logger.Debug().Str("key", e.Key).Bool("null", e.Null).Msg("entry set")
		return nil
	})
}

// Remove deletes every entry stored under key.
func (v *Vault) Remove(ctx context.Context, key string) error {
	return v.update(ctx, nil, func(doc *settings.Document) error {
		if !doc.Remove(key) {
			return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
		}
		v.logger.Debug().Str("key", key).Msg("entry removed")
		return nil
	})
}

// update loads the document, applies fn and commits the result.
func (v *Vault) update(ctx context.Context, version *settings.Version, fn func(*settings.Document) error) error {
	if err := v.lock(ctx); err != nil {
		return err
	}
	defer v.guard.Release()

	exists, err := v.store.Exists()
	if err != nil {
		return err
	}

	doc := settings.NewDocument(DefaultVersion)
	if exists {
		if doc, err = v.document(); err != nil {
			return err
		}
		if _, ok := doc.RawVersion(); !ok {
			doc.SetVersion(DefaultVersion)
		}
	}

	if err := fn(doc); err != nil {
		return err
	}
	if version != nil {
		doc.SetVersion(*version)
	}

	data, err := doc.Marshal()
	if err != nil {
		return err
	}
	return v.store.Commit(data)
}

// Compact reclaims free space in a bolt backend.
func (v *Vault) Compact(ctx context.Context) error {
	b, ok := v.store.(*storage.BoltFile)
	if !ok {
		return ErrCompactNotAllowed
	}
	if err := v.lock(ctx); err != nil {
		return err
	}
	defer v.guard.Release()
	return b.Compact()
}

// StatusInfo contains status information
type StatusInfo struct {
	Path      string
	Backend   string
	Format    storage.Format
	Size      int64
	Modified  time.Time
	Version   string
	Empty     bool // no root element, the file holds no settings yet
	Keys      []string
	ReadError error // set when the document could not be read
	GitStatus *git.Status
}

// Status describes the file. Reading the document is best effort: a
// locked or damaged file still reports its format and size.
func (v *Vault) Status(ctx context.Context) (*StatusInfo, error) {
	if err := v.lock(ctx); err != nil {
		return nil, err
	}
	defer v.guard.Release()

	info := &StatusInfo{
		Path:    v.opts.Path,
		Backend: v.store.Describe(),
	}

	format, err := v.store.Format()
	if err != nil {
		return nil, err
	}
	info.Format = format
	if format == storage.FormatMissing {
		return info, nil
	}

	if fi, err := os.Stat(v.opts.Path); err == nil {
		info.Size = fi.Size()
		info.Modified = fi.ModTime()
	}
	if b, ok := v.store.(*storage.BoltFile); ok {
		if modified, err := b.Modified(); err == nil {
			info.Modified = modified
		}
	}

	doc, err := v.document()
	if err != nil {
		info.ReadError = err
	} else {
		if raw, ok := doc.RawVersion(); ok {
			info.Version = raw
		}
		info.Empty = !doc.HasRoot()
		info.Keys = doc.Keys()
	}

	info.GitStatus = git.Check(v.opts.Path)
	return info, nil
}

// Convert reads the document with from and rewrites it with to. Both may
// name the same file. The document must parse before anything is written.
func Convert(ctx context.Context, from, to Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := Open(from)
	if err != nil {
		return err
	}
	data, err := src.Read(ctx)
	srcName := src.store.Describe()
	src.Close()
	if err != nil {
		return err
	}
	if _, err := settings.ParseDocument(data); err != nil {
		if from.Password != "" {
			return fmt.Errorf("%w: %w", ErrWrongPassword, err)
		}
		return err
	}

	dst, err := Open(to)
	if err != nil {
		return err
	}
	defer dst.Close()

	if err := dst.lock(ctx); err != nil {
		return err
	}
	defer dst.guard.Release()

	if err := dst.store.Commit(data); err != nil {
		return err
	}
	to.Logger.Info().Str("from", srcName).Str("to", dst.store.Describe()).Msg("settings rewritten")
	return nil
}

// Encrypt rewrites a plaintext file as an envelope keyed by o.Password.
func Encrypt(ctx context.Context, o Options) error {
	format, err := Probe(o)
	if err != nil {
		return err
	}
	switch format {
	case storage.FormatMissing:
		return fmt.Errorf("%w: %s", settings.ErrNotFound, o.Path)
	case storage.FormatEncrypted:
		return ErrAlreadyEncrypted
	}

	from := o
	from.Password = ""
	return Convert(ctx, from, o)
}

// Decrypt rewrites an encrypted file as plaintext.
func Decrypt(ctx context.Context, o Options) error {
	format, err := Probe(o)
	if err != nil {
		return err
	}
	switch format {
	case storage.FormatMissing:
		return fmt.Errorf("%w: %s", settings.ErrNotFound, o.Path)
	case storage.FormatPlain:
		return ErrNotEncrypted
	}

	to := o
	to.Password = ""
	return Convert(ctx, o, to)
}

// ChangePassword re-encrypts the file under newPassword.
func ChangePassword(ctx context.Context, o Options, newPassword string) error {
	if err := crypto.ValidatePassword(newPassword); err != nil {
		return err
	}
	format, err := Probe(o)
	if err != nil {
		return err
	}
	if format != storage.FormatEncrypted {
		return ErrNotEncrypted
	}

	to := o
	to.Password = newPassword
	return Convert(ctx, o, to)
}
