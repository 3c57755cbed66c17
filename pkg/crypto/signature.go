package crypto

import (
	"bytes"
	"errors"
	"io"
)

// signature marks files written by FileEncryptor. It is a format tag, not an
// authentication code.
var signature = [SignatureSize]byte{
	123, 78, 99, 166,
	0, 43, 244, 8,
	5, 89, 239, 255,
	45, 188, 7, 33,
}

// Signature returns a copy of the envelope signature.
func Signature() []byte {
	s := signature
	return s[:]
}

// WriteSignature writes the signature at offset 0 of w.
func WriteSignature(w io.WriteSeeker) error {
	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := w.Write(signature[:])
	return err
}

// VerifySignature reads the first 16 bytes of r and compares them with the
// signature. On a match the stream is rewound to offset 0. A stream shorter
// than the signature does not verify.
func VerifySignature(r io.ReadSeeker) (bool, error) {
	var buf [SignatureSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	if buf != signature {
		return false, nil
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return false, err
	}
	return true, nil
}

// HasSignature reports whether data starts with the envelope signature.
func HasSignature(data []byte) bool {
	return len(data) >= SignatureSize && bytes.Equal(data[:SignatureSize], signature[:])
}
