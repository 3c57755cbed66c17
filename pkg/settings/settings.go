package settings

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/illarion/cfgvault/internal/guard"
)

// DefaultWaitTimeout bounds how long Load and Save wait for each other.
const DefaultWaitTimeout = 3 * time.Second

// Storage holds the bytes of one settings document.
type Storage interface {
	Exists() (bool, error)
	Load() ([]byte, error)
	Commit(data []byte) error
}

// MigrateFunc converts a document stored at version file into one the
// current schema can read. Returning a nil document rejects the file.
type MigrateFunc func(doc *Document, current, file Version) (*Document, error)

type options struct {
	migrate    MigrateFunc
	wait       time.Duration
	logger     zerolog.Logger
	legacyZero bool
	onLoaded   func(*Settings)
	onSaved    func(*Settings)
	onChanged  func(s *Settings, key string)
}

// Option configures Settings.
type Option func(*options)

// WithMigration registers the hook used when the stored version differs
// from the schema version.
func WithMigration(fn MigrateFunc) Option {
	return func(o *options) {
		o.migrate = fn
	}
}

// WithWaitTimeout sets how long Load and Save wait for the guard.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *options) {
		o.wait = d
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithLegacyZeroVersion treats a stored version of 0.0.0.0 as the current
// version. Some old writers stamped documents with an unset version.
func WithLegacyZeroVersion() Option {
	return func(o *options) {
		o.legacyZero = true
	}
}

// OnLoaded registers a callback run after each successful Load.
func OnLoaded(fn func(*Settings)) Option {
	return func(o *options) {
		o.onLoaded = fn
	}
}

// OnSaved registers a callback run after each successful Save.
func OnSaved(fn func(*Settings)) Option {
	return func(o *options) {
		o.onSaved = fn
	}
}

// OnChanged registers a callback run after a live value is assigned.
func OnChanged(fn func(s *Settings, key string)) Option {
	return func(o *options) {
		o.onChanged = fn
	}
}

// Settings holds the live values of one schema bound to one storage.
type Settings struct {
	schema  *Schema
	storage Storage
	guard   *guard.Guard
	opts    options

	mu           sync.RWMutex
	values       map[string]any
	unrecognized []Entry
	fileVersion  Version
	loaded       bool
}

// New creates settings initialized from the schema defaults. Nothing is
// read until Load is called.
func New(schema *Schema, storage Storage, opts ...Option) *Settings {
	o := options{
		wait:   DefaultWaitTimeout,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Settings{
		schema:  schema,
		storage: storage,
		guard:   guard.New(),
		opts:    o,
		values:  make(map[string]any, len(schema.props)),
	}
	for _, p := range schema.props {
		if p.hasDefault {
			s.values[p.key] = p.def
		} else {
			s.values[p.key] = p.zero()
		}
	}
	return s
}

// Schema returns the schema the settings were created with.
func (s *Settings) Schema() *Schema {
	return s.schema
}

// FileVersion returns the version of the last loaded document and whether
// anything has been loaded.
func (s *Settings) FileVersion() (Version, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fileVersion, s.loaded
}

// Unrecognized returns the preserved entries not defined by the schema.
func (s *Settings) Unrecognized() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEntries(s.unrecognized)
}

// Get returns the live value for key. A nil value means null.
func (s *Settings) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Values returns a snapshot of all live values.
func (s *Settings) Values() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Set assigns a live value by key. v must have the setting's declared type
// or be nil.
func (s *Settings) Set(key string, v any) error {
	p, ok := s.schema.index[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if v != nil && !p.accepts(v) {
		return fmt.Errorf("%w: %q expects %s, got %T", ErrTypeMismatch, key, p.typ, v)
	}
	s.set(key, v)
	return nil
}

func (s *Settings) set(key string, v any) {
	s.mu.Lock()
	s.values[key] = v
	s.mu.Unlock()

	if s.opts.onChanged != nil {
		s.opts.onChanged(s, key)
	}
}

func (s *Settings) acquire(ctx context.Context, op string) error {
	if err := s.guard.Acquire(ctx, s.opts.wait); err != nil {
		if errors.Is(err, guard.ErrTimeout) {
			return fmt.Errorf("%w: cannot %s: %w", ErrBusy, op, err)
		}
		return fmt.Errorf("cannot %s: %w", op, err)
	}
	return nil
}

func cloneEntries(in []Entry) []Entry {
	if in == nil {
		return nil
	}
	out := make([]Entry, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}
