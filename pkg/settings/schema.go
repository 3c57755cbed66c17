package settings

import (
	"errors"
	"fmt"
)

// property is the type-erased view of a defined setting.
type property struct {
	key         string
	typ         string
	hasDefault  bool
	def         any
	custom      bool
	zero        func() any
	accepts     func(v any) bool
	serialize   func(v any) (string, error)
	deserialize func(payload string) (any, error)
}

// Definition is implemented by Setting and is what NewSchema accepts.
type Definition interface {
	property() *property
}

// PropertyOption configures a setting created by Define.
type PropertyOption[T any] func(*propertyConfig[T])

type propertyConfig[T any] struct {
	def         *T
	serialize   func(T) (string, error)
	deserialize func(string) (T, error)
}

// WithDefault sets the value used when the key is missing from a loaded
// document and before anything is loaded.
func WithDefault[T any](v T) PropertyOption[T] {
	return func(c *propertyConfig[T]) {
		c.def = &v
	}
}

// WithSerializer replaces the XML value encoding. fn returns the inner XML
// of the item element and must be a well-formed fragment; use TextPayload
// for plain text.
func WithSerializer[T any](fn func(T) (string, error)) PropertyOption[T] {
	return func(c *propertyConfig[T]) {
		c.serialize = fn
	}
}

// WithDeserializer replaces the XML value decoding. fn receives the inner
// XML of the item element as stored, child elements included; use
// PayloadText to read plain text.
func WithDeserializer[T any](fn func(string) (T, error)) PropertyOption[T] {
	return func(c *propertyConfig[T]) {
		c.deserialize = fn
	}
}

// Setting is a typed handle for one key of a Schema.
type Setting[T any] struct {
	p *property
}

// Define declares a setting of type T stored under key.
func Define[T any](key string, opts ...PropertyOption[T]) Setting[T] {
	var cfg propertyConfig[T]
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &property{
		key:     key,
		typ:     typeName[T](),
		zero:    func() any { var z T; return z },
		accepts: func(v any) bool { _, ok := v.(T); return ok },
	}
	if cfg.def != nil {
		p.hasDefault = true
		p.def = *cfg.def
	}

	if cfg.serialize != nil {
		p.custom = true
		p.serialize = func(v any) (string, error) {
			payload, err := cfg.serialize(v.(T))
			if err != nil {
				return "", err
			}
			if err := checkFragment(payload); err != nil {
				return "", err
			}
			return payload, nil
		}
	} else {
		p.serialize = func(v any) (string, error) {
			return marshalValue(v.(T))
		}
	}

	if cfg.deserialize != nil {
		p.custom = true
		p.deserialize = func(payload string) (any, error) {
			return cfg.deserialize(payload)
		}
	} else {
		p.deserialize = func(payload string) (any, error) {
			return unmarshalValue[T](payload)
		}
	}

	return Setting[T]{p: p}
}

func (s Setting[T]) property() *property {
	return s.p
}

// Key returns the storage key.
func (s Setting[T]) Key() string {
	return s.p.key
}

// Get returns the live value, or the zero value of T when it is null.
func (s Setting[T]) Get(st *Settings) T {
	v, _ := st.Get(s.p.key)
	if t, ok := v.(T); ok {
		return t
	}
	var zero T
	return zero
}

// Set assigns a live value. It is persisted by the next Save.
func (s Setting[T]) Set(st *Settings, v T) {
	st.set(s.p.key, v)
}

// SetNull marks the value as null.
func (s Setting[T]) SetNull(st *Settings) {
	st.set(s.p.key, nil)
}

// IsNull reports whether the live value is null.
func (s Setting[T]) IsNull(st *Settings) bool {
	v, _ := st.Get(s.p.key)
	return isNull(v)
}

// Schema is the immutable set of settings an application knows about,
// tagged with the application's settings version.
type Schema struct {
	version Version
	props   []*property
	index   map[string]*property
}

// NewSchema builds a schema. Keys must be non-empty and unique.
func NewSchema(version Version, defs ...Definition) (*Schema, error) {
	s := &Schema{
		version: version,
		index:   make(map[string]*property, len(defs)),
	}
	for _, d := range defs {
		p := d.property()
		if p == nil {
			return nil, errors.New("setting was not created with Define")
		}
		if p.key == "" {
			return nil, errors.New("setting key cannot be empty")
		}
		if _, dup := s.index[p.key]; dup {
			return nil, fmt.Errorf("duplicate setting key %q", p.key)
		}
		s.index[p.key] = p
		s.props = append(s.props, p)
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error.
func MustSchema(version Version, defs ...Definition) *Schema {
	s, err := NewSchema(version, defs...)
	if err != nil {
		panic(err)
	}
	return s
}

// Version returns the current settings version.
func (s *Schema) Version() Version {
	return s.version
}

// Keys returns the defined keys in declaration order.
func (s *Schema) Keys() []string {
	keys := make([]string, len(s.props))
	for i, p := range s.props {
		keys[i] = p.key
	}
	return keys
}

// Has reports whether key is defined.
func (s *Schema) Has(key string) bool {
	_, ok := s.index[key]
	return ok
}

// Unrecognized returns the entries of doc whose keys are not defined.
func (s *Schema) Unrecognized(doc *Document) []Entry {
	var out []Entry
	for _, e := range doc.entries {
		if !s.Has(e.Key) {
			out = append(out, e.Clone())
		}
	}
	return out
}
