package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/illarion/cfgvault/pkg/crypto"
)

// Bucket and key names
var (
	SettingsBucket = []byte("settings")

	KeyDocument = []byte("document")
	KeyFormat   = []byte("format")
	KeyCreated  = []byte("created")
	KeyModified = []byte("modified")
)

const boltLockTimeout = time.Second

// BoltFile stores the document inside a bbolt database.
type BoltFile struct {
	path string
	db   *bolt.DB
	enc  *crypto.FileEncryptor // nil stores plaintext
	cfg  config
	mu   sync.Mutex
}

// OpenBoltFile opens or creates the database at path. A nil enc stores the
// document unencrypted. The backend owns enc and destroys it on Close.
//
// A disabled enc never opens the database: the returned handle touches no
// file and every operation fails with crypto.ErrDisabled.
func OpenBoltFile(path string, enc *crypto.FileEncryptor, opts ...Option) (*BoltFile, error) {
	b := &BoltFile{path: path, enc: enc, cfg: newConfig(opts)}
	if err := b.encErr(); err != nil {
		b.cfg.logger.Debug().Str("path", path).Err(err).Msg("bolt backend disabled")
		return b, nil
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: boltLockTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	b.db = db
	if err := b.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// initialize creates the settings bucket on first use.
func (b *BoltFile) initialize() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(SettingsBucket)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", SettingsBucket, err)
		}
		if bucket.Get(KeyCreated) != nil {
			return nil
		}
		created, _ := time.Now().MarshalBinary()
		return bucket.Put(KeyCreated, created)
	})
}

// Path returns the database path.
func (b *BoltFile) Path() string {
	return b.path
}

func (b *BoltFile) Exists() (bool, error) {
	if err := b.encErr(); err != nil {
		return false, err
	}

	var exists bool
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(SettingsBucket)
		exists = bucket != nil && bucket.Get(KeyDocument) != nil
		return nil
	})
	return exists, err
}

// Load returns the stored document, decrypting it when the backend has an
// encryptor. An unsigned document is returned as plaintext.
func (b *BoltFile) Load() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.encErr(); err != nil {
		return nil, err
	}

	data, err := b.raw()
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > b.cfg.maxSize {
		return nil, fmt.Errorf("%w: document is %d bytes, limit is %d", crypto.ErrSizeLimit, len(data), b.cfg.maxSize)
	}
	if b.enc == nil {
		return data, nil
	}

	r, err := b.enc.Decrypt(data)
	if errors.Is(err, crypto.ErrFormat) {
		b.cfg.logger.Warn().Str("path", b.path).Msg("no envelope signature, reading as plaintext")
		return data, nil
	}
	if err != nil {
		return nil, err
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt document: %w", err)
	}
	return plain, nil
}

// raw returns the stored bytes without decryption.
func (b *BoltFile) raw() ([]byte, error) {
	var data []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(SettingsBucket)
		if bucket == nil {
			return fmt.Errorf("%w: %s has no settings bucket", ErrNotFound, b.path)
		}
		data = bucket.Get(KeyDocument)
		if data == nil {
			return fmt.Errorf("%w: %s holds no document", ErrNotFound, b.path)
		}
		// Make a copy since the slice is only valid during the transaction
		data = append([]byte(nil), data...)
		return nil
	})
	return data, err
}

// Commit replaces the document, its format marker and the modification
// time in one transaction.
func (b *BoltFile) Commit(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.encErr(); err != nil {
		return err
	}

	stored := data
	format := FormatPlain
	if b.enc != nil {
		var buf bytes.Buffer
		if err := b.enc.Encrypt(&buf, bytes.NewReader(data)); err != nil {
			return err
		}
		stored = buf.Bytes()
		format = FormatEncrypted
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(SettingsBucket)
		if err != nil {
			return err
		}
		if err := bucket.Put(KeyDocument, stored); err != nil {
			return err
		}
		if err := bucket.Put(KeyFormat, []byte(format)); err != nil {
			return err
		}
		modified, _ := time.Now().MarshalBinary()
		return bucket.Put(KeyModified, modified)
	})
	if err != nil {
		return fmt.Errorf("failed to commit document: %w", err)
	}

	b.cfg.logger.Debug().Str("path", b.path).Str("format", string(format)).Int("bytes", len(stored)).Msg("bolt settings committed")
	return nil
}

// Format reports how the stored document is encoded.
func (b *BoltFile) Format() (Format, error) {
	if err := b.encErr(); err != nil {
		return "", err
	}
	var format Format
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(SettingsBucket)
		if bucket == nil || bucket.Get(KeyDocument) == nil {
			format = FormatMissing
			return nil
		}
		format = DetectFormat(bucket.Get(KeyDocument))
		return nil
	})
	return format, err
}

// Modified returns the time of the last commit.
func (b *BoltFile) Modified() (time.Time, error) {
	if err := b.encErr(); err != nil {
		return time.Time{}, err
	}
	var modified time.Time
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(SettingsBucket)
		if bucket == nil {
			return fmt.Errorf("%w: settings bucket", ErrNotFound)
		}
		data := bucket.Get(KeyModified)
		if data == nil {
			return fmt.Errorf("%w: modified time", ErrNotFound)
		}
		return modified.UnmarshalBinary(data)
	})
	return modified, err
}

func (b *BoltFile) Describe() string {
	if b.enc == nil {
		return "bolt database " + b.path
	}
	return "encrypted bolt database " + b.path
}

// Close closes the database and destroys the key material.
func (b *BoltFile) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.enc != nil {
		b.enc.Destroy()
	}
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

func (b *BoltFile) encErr() error {
	if b.enc != nil {
		if err := b.enc.Err(); err != nil {
			return err
		}
	}
	if b.db == nil {
		return fmt.Errorf("%w: %s is closed", crypto.ErrDisabled, b.path)
	}
	return nil
}

// Compact copies the settings bucket into a fresh database and renames it
// over the original. Free pages left by earlier commits are not copied.
func (b *BoltFile) Compact() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.encErr(); err != nil {
		return err
	}

	before := b.size()
	tmpPath := b.path + ".compact"
	if err := b.copySettings(tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := b.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close database: %w", err)
	}
	b.db = nil

	renameErr := os.Rename(tmpPath, b.path)
	if renameErr != nil {
		os.Remove(tmpPath)
	}

	// reopen whichever file now sits at path so the handle stays usable
	db, err := bolt.Open(b.path, 0600, &bolt.Options{Timeout: boltLockTimeout})
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}
	b.db = db
	if renameErr != nil {
		return fmt.Errorf("failed to replace database: %w", renameErr)
	}

	b.cfg.logger.Debug().
		Str("path", b.path).
		Int64("before", before).
		Int64("after", b.size()).
		Msg("settings database compacted")
	return nil
}

// copySettings writes the settings bucket of b into a new database at path.
func (b *BoltFile) copySettings(path string) error {
	dst, err := bolt.Open(path, 0600, &bolt.Options{Timeout: boltLockTimeout})
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	err = b.db.View(func(src *bolt.Tx) error {
		from := src.Bucket(SettingsBucket)
		if from == nil {
			return fmt.Errorf("%w: %s has no settings bucket", ErrNotFound, b.path)
		}
		return dst.Update(func(tx *bolt.Tx) error {
			to, err := tx.CreateBucket(SettingsBucket)
			if err != nil {
				return err
			}
			return from.ForEach(to.Put)
		})
	})
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to copy settings: %w", err)
	}
	return nil
}

func (b *BoltFile) size() int64 {
	fi, err := os.Stat(b.path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
