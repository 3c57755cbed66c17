package crypto

import (
	"crypto/subtle"
	"errors"
	"math"
)

const (
	KeySize           = 16            // AES-128 key size
	IVSize            = 16            // CBC initialization vector size
	BlockSize         = 16            // AES block size
	SignatureSize     = 16            // Envelope signature size
	ChunkSize         = 4096          // Encryption copy buffer
	MinPasswordLength = 6             // Minimum password length in UTF-16 code units
	DefaultMaxSize    = math.MaxInt32 // Legacy file size ceiling
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrDisabled         = errors.New("encryptor disabled: invalid password")
	ErrNotFound         = errors.New("file not found")
	ErrSizeLimit        = errors.New("file exceeds size limit")
	ErrFormat           = errors.New("invalid signature: file was not written by this encryptor")
	ErrDecrypt          = errors.New("decryption failed: wrong password or corrupted data")
)

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
