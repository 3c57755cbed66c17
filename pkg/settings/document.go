package settings

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

const (
	rootElement = "Settings"
	nullAttr    = "IsNull"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Entry is one stored setting. Payload is the inner XML of the item element
// and is empty for null entries.
type Entry struct {
	Key     string
	Null    bool
	Payload string
	Attrs   []xml.Attr
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	e.Attrs = slices.Clone(e.Attrs)
	return e
}

type xmlItem struct {
	Key    string     `xml:"key,attr"`
	IsNull string     `xml:"IsNull,attr,omitempty"`
	Attrs  []xml.Attr `xml:",any,attr"`
	Inner  string     `xml:",innerxml"`
}

type xmlDocument struct {
	XMLName xml.Name
	Version *string   `xml:"version,attr"`
	Items   []xmlItem `xml:"item"`
}

// Document is a parsed or in-construction settings document.
type Document struct {
	hasRoot    bool
	rawVersion *string
	entries    []Entry
}

// NewDocument returns an empty document stamped with version v.
func NewDocument(v Version) *Document {
	d := &Document{hasRoot: true}
	d.SetVersion(v)
	return d
}

// ParseDocument parses document bytes. Input that is empty or holds only
// whitespace and NUL bytes yields an empty document with no root.
func ParseDocument(data []byte) (*Document, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.Trim(data, " \t\r\n\x00")) == 0 {
		return &Document{}, nil
	}

	var raw xmlDocument
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = passCharset
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return &Document{}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}

	d := &Document{hasRoot: true, rawVersion: raw.Version}
	for _, it := range raw.Items {
		if it.Key == "" {
			continue
		}
		e := Entry{Key: it.Key, Attrs: it.Attrs}
		if it.IsNull == "true" {
			e.Null = true
		} else {
			e.Payload = it.Inner
		}
		d.entries = append(d.entries, e)
	}
	return d, nil
}

// passCharset accepts UTF-16 labels on UTF-8 bytes, which older writers
// produce when the declaration is copied from an in-memory string.
func passCharset(label string, r io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "utf-16", "utf-16le", "unicode":
		return r, nil
	}
	return nil, fmt.Errorf("unsupported document encoding %q", label)
}

// HasRoot reports whether the document had a root element.
func (d *Document) HasRoot() bool {
	return d.hasRoot
}

// Empty reports whether there is nothing to load from the document.
func (d *Document) Empty() bool {
	return !d.hasRoot || len(d.entries) == 0
}

// Version returns the stored version. ErrMissingVersion is returned when
// the root has no version attribute.
func (d *Document) Version() (Version, error) {
	if d.rawVersion == nil {
		return Version{}, ErrMissingVersion
	}
	return ParseVersion(*d.rawVersion)
}

// RawVersion returns the version attribute as stored, if any.
func (d *Document) RawVersion() (string, bool) {
	if d.rawVersion == nil {
		return "", false
	}
	return *d.rawVersion, true
}

// SetVersion stamps v on the document.
func (d *Document) SetVersion(v Version) {
	s := v.String()
	d.rawVersion = &s
	d.hasRoot = true
}

// Len returns the number of entries.
func (d *Document) Len() int {
	return len(d.entries)
}

// Entries returns a copy of all entries in document order.
func (d *Document) Entries() []Entry {
	out := make([]Entry, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.Clone()
	}
	return out
}

// Keys returns entry keys in document order.
func (d *Document) Keys() []string {
	keys := make([]string, len(d.entries))
	for i, e := range d.entries {
		keys[i] = e.Key
	}
	return keys
}

// Get returns the first entry with the given key.
func (d *Document) Get(key string) (Entry, bool) {
	if i := d.index(key); i >= 0 {
		return d.entries[i].Clone(), true
	}
	return Entry{}, false
}

// Set replaces the first entry with e.Key or appends e.
func (d *Document) Set(e Entry) {
	d.hasRoot = true
	if i := d.index(e.Key); i >= 0 {
		d.entries[i] = e.Clone()
		return
	}
	d.entries = append(d.entries, e.Clone())
}

// Remove deletes every entry with the given key and reports whether any
// existed.
func (d *Document) Remove(key string) bool {
	n := len(d.entries)
	d.entries = slices.DeleteFunc(d.entries, func(e Entry) bool { return e.Key == key })
	return len(d.entries) != n
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := &Document{hasRoot: d.hasRoot, entries: d.Entries()}
	if d.rawVersion != nil {
		v := *d.rawVersion
		c.rawVersion = &v
	}
	return c
}

// add appends e and panics if its key is already present.
func (d *Document) add(e Entry) {
	if d.index(e.Key) >= 0 {
		panic(&InvariantError{Key: e.Key, Message: "duplicate entry in settings document"})
	}
	d.entries = append(d.entries, e)
}

func (d *Document) index(key string) int {
	return slices.IndexFunc(d.entries, func(e Entry) bool { return e.Key == key })
}

// Marshal renders the document with an XML declaration and a Settings root.
func (d *Document) Marshal() ([]byte, error) {
	raw := xmlDocument{
		XMLName: xml.Name{Local: rootElement},
		Version: d.rawVersion,
		Items:   make([]xmlItem, 0, len(d.entries)),
	}
	for _, e := range d.entries {
		it := xmlItem{Key: e.Key, Attrs: ownAttrs(e.Attrs)}
		if e.Null {
			it.IsNull = "true"
		} else {
			it.Inner = e.Payload
		}
		raw.Items = append(raw.Items, it)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(raw); err != nil {
		return nil, fmt.Errorf("failed to encode settings document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode settings document: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// ownAttrs drops attributes that Marshal writes itself.
func ownAttrs(attrs []xml.Attr) []xml.Attr {
	return slices.DeleteFunc(slices.Clone(attrs), func(a xml.Attr) bool {
		return a.Name.Space == "" && (a.Name.Local == "key" || a.Name.Local == nullAttr)
	})
}
