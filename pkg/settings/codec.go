package settings

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"reflect"
	"strings"
)

const (
	holderOpen  = "<holder>"
	holderClose = "</holder>"
)

type encodeHolder[T any] struct {
	XMLName xml.Name `xml:"holder"`
	Value   T        `xml:"value"`
}

// decodeHolder accepts any element name so payloads written by other
// serializers (for example <string>..</string>) still decode.
type decodeHolder[T any] struct {
	XMLName xml.Name `xml:"holder"`
	Value   T        `xml:",any"`
}

// marshalValue renders v as the inner XML of an item element.
func marshalValue[T any](v T) (string, error) {
	out, err := xml.Marshal(encodeHolder[T]{Value: v})
	if err != nil {
		return "", err
	}
	s := string(out)
	s = strings.TrimPrefix(s, holderOpen)
	s = strings.TrimSuffix(s, holderClose)
	return s, nil
}

// unmarshalValue decodes the inner XML of an item element into a T.
func unmarshalValue[T any](payload string) (T, error) {
	var h decodeHolder[T]
	if err := xml.Unmarshal([]byte(holderOpen+payload+holderClose), &h); err != nil {
		var zero T
		return zero, err
	}
	return h.Value, nil
}

// escapeText renders plain text as item content.
func escapeText(s string) (string, error) {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// checkFragment reports whether payload can be embedded as the inner XML
// of an item element.
func checkFragment(payload string) error {
	d := xml.NewDecoder(strings.NewReader(holderOpen + payload + holderClose))
	depth, closed := 0, false
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedDocument, err)
		}
		if closed {
			return fmt.Errorf("%w: payload closes its item element", ErrMalformedDocument)
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
			closed = depth == 0
		}
	}
}

// innerText returns the character data of a payload, unescaped. Payloads
// with child elements are not text and give ErrNotText.
func innerText(payload string) (string, error) {
	var h struct {
		Text     string `xml:",chardata"`
		Children []struct {
			XMLName xml.Name
		} `xml:",any"`
	}
	if err := xml.Unmarshal([]byte(holderOpen+payload+holderClose), &h); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	if len(h.Children) > 0 {
		return "", fmt.Errorf("%w: <%s>", ErrNotText, h.Children[0].XMLName.Local)
	}
	return h.Text, nil
}

// isNull reports whether v is stored as a null entry.
func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func typeName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t == nil {
		return "interface {}"
	}
	return t.String()
}

// TextPayload renders s as item content, escaping markup.
func TextPayload(s string) string {
	out, _ := escapeText(s)
	return out
}

// PayloadText returns the unescaped character data of a text payload.
func PayloadText(payload string) (string, error) {
	return innerText(payload)
}

// CheckPayload reports whether payload is a well-formed inner XML fragment
// for an item element.
func CheckPayload(payload string) error {
	return checkFragment(payload)
}
