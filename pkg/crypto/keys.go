package crypto

import (
	"crypto/md5"
	"crypto/sha256"
	"errors"
	"unicode/utf16"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	DefaultPBKDF2Iters = 210000    // OWASP minimum for PBKDF2-HMAC-SHA256
	DefaultArgon2Time  = 3         // Argon2id passes
	DefaultArgon2Mem   = 64 * 1024 // Argon2id memory in KiB
	DefaultArgon2Par   = 4         // Argon2id lanes
)

// KeyMaterial holds the AES key and CBC IV derived from a password.
type KeyMaterial struct {
	Key [KeySize]byte
	IV  [IVSize]byte
}

// Clear zeroes the key material.
func (m *KeyMaterial) Clear() {
	ClearBytes(m.Key[:])
	ClearBytes(m.IV[:])
}

// KeyDeriver turns a password into key material.
type KeyDeriver interface {
	DeriveKey(password string) (*KeyMaterial, error)
}

// ValidatePassword checks the minimum length rule shared by all derivers.
// Length is counted in UTF-16 code units.
func ValidatePassword(password string) error {
	if len(utf16.Encode([]rune(password))) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// LegacyDeriver derives key material the way existing settings files expect.
type LegacyDeriver struct{}

// DeriveKey hashes the swapped password into the key and the plain password
// into the IV.
func (LegacyDeriver) DeriveKey(password string) (*KeyMaterial, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	units := utf16.Encode([]rune(password))

	plain := utf16LE(units)
	defer ClearBytes(plain)

	swapped := make([]uint16, len(units))
	copy(swapped, units)
	for i := 1; i < len(swapped); i += 2 {
		swapped[i-1], swapped[i] = swapped[i], swapped[i-1]
	}
	mixed := utf16LE(swapped)
	defer ClearBytes(mixed)

	m := &KeyMaterial{
		Key: md5.Sum(mixed),
		IV:  md5.Sum(plain),
	}
	return m, nil
}

func utf16LE(units []uint16) []byte {
	b := make([]byte, 0, len(units)*2)
	for _, u := range units {
		b = append(b, byte(u), byte(u>>8))
	}
	return b
}

// PBKDF2Deriver derives key material with PBKDF2-HMAC-SHA256.
type PBKDF2Deriver struct {
	Salt       []byte
	Iterations int
}

// DeriveKey derives 32 bytes and splits them into key and IV.
func (d PBKDF2Deriver) DeriveKey(password string) (*KeyMaterial, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	if len(d.Salt) == 0 {
		return nil, errors.New("pbkdf2: salt cannot be empty")
	}
	iters := d.Iterations
	if iters <= 0 {
		iters = DefaultPBKDF2Iters
	}

	pw := []byte(password)
	defer ClearBytes(pw)

	out := pbkdf2.Key(pw, d.Salt, iters, KeySize+IVSize, sha256.New)
	defer ClearBytes(out)
	return split(out), nil
}

// Argon2Deriver derives key material with Argon2id.
type Argon2Deriver struct {
	Salt    []byte
	Time    uint32
	Memory  uint32
	Threads uint8
}

// DeriveKey derives 32 bytes and splits them into key and IV.
func (d Argon2Deriver) DeriveKey(password string) (*KeyMaterial, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	if len(d.Salt) == 0 {
		return nil, errors.New("argon2: salt cannot be empty")
	}
	t, mem, par := d.Time, d.Memory, d.Threads
	if t == 0 {
		t = DefaultArgon2Time
	}
	if mem == 0 {
		mem = DefaultArgon2Mem
	}
	if par == 0 {
		par = DefaultArgon2Par
	}

	pw := []byte(password)
	defer ClearBytes(pw)

	out := argon2.IDKey(pw, d.Salt, t, mem, par, KeySize+IVSize)
	defer ClearBytes(out)
	return split(out), nil
}

func split(b []byte) *KeyMaterial {
	m := &KeyMaterial{}
	copy(m.Key[:], b[:KeySize])
	copy(m.IV[:], b[KeySize:KeySize+IVSize])
	return m
}
