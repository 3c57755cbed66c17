package settings

import (
	"errors"
	"fmt"

	"github.com/illarion/cfgvault/pkg/crypto"
)

var (
	ErrBusy               = errors.New("settings are held by another operation")
	ErrMissingVersion     = errors.New("settings document has no version")
	ErrInvalidVersion     = errors.New("invalid settings version")
	ErrVersionUnsupported = errors.New("settings file version is not supported")
	ErrMalformedDocument  = errors.New("malformed settings document")
	ErrNotText            = errors.New("payload is not plain text")
	ErrUnknownKey         = errors.New("unknown setting")
	ErrTypeMismatch       = errors.New("value does not match setting type")
	ErrNotFound           = crypto.ErrNotFound
)

// SerializationError reports a value that could not be converted to or from
// its XML payload.
type SerializationError struct {
	Op   string // "serialize" or "deserialize"
	Key  string // Setting key
	Type string // Declared Go type
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("cannot %s setting %q of type %s: %v", e.Op, e.Key, e.Type, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// InvariantError is the panic value used when a document under construction
// would contain the same key twice. It indicates a programming error.
type InvariantError struct {
	Key     string
	Message string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("settings invariant violated for key %q: %s", e.Key, e.Message)
}
