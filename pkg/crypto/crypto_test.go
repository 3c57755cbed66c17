package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// payload returns n bytes of printable text; zero padding cannot round-trip
// trailing zero bytes.
func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return b
}

func TestLegacyDeriverKnownVector(t *testing.T) {
	keys, err := LegacyDeriver{}.DeriveKey("abcdef")
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}

	if got := hex.EncodeToString(keys.Key[:]); got != "f83bf5c76590322d2ba26c388ac07160" {
		t.Errorf("key mismatch: got %s", got)
	}
	if got := hex.EncodeToString(keys.IV[:]); got != "8ab6523582d89bd285e86a85d178ed5f" {
		t.Errorf("iv mismatch: got %s", got)
	}
}

func TestLegacyDeriverOddLength(t *testing.T) {
	// The last character of an odd-length password stays in place.
	keys, err := LegacyDeriver{}.DeriveKey("abcdefg")
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	if got := hex.EncodeToString(keys.Key[:]); got != "6f0ce0727bc3f2b4d81d8d7691bc16df" {
		t.Errorf("key mismatch: got %s", got)
	}
}

func TestPasswordTooShort(t *testing.T) {
	derivers := map[string]KeyDeriver{
		"legacy": LegacyDeriver{},
		"pbkdf2": PBKDF2Deriver{Salt: []byte("salt"), Iterations: 1},
		"argon2": Argon2Deriver{Salt: []byte("salt"), Time: 1, Memory: 64, Threads: 1},
	}
	for name, d := range derivers {
		if _, err := d.DeriveKey("abcde"); !errors.Is(err, ErrPasswordTooShort) {
			t.Errorf("%s: expected ErrPasswordTooShort, got %v", name, err)
		}
	}
}

func TestModernDeriversAreDeterministic(t *testing.T) {
	derivers := []KeyDeriver{
		PBKDF2Deriver{Salt: []byte("0123456789abcdef"), Iterations: 1000},
		Argon2Deriver{Salt: []byte("0123456789abcdef"), Time: 1, Memory: 1024, Threads: 1},
	}
	legacy, _ := LegacyDeriver{}.DeriveKey("secret-password")

	for _, d := range derivers {
		a, err := d.DeriveKey("secret-password")
		if err != nil {
			t.Fatalf("DeriveKey failed: %v", err)
		}
		b, _ := d.DeriveKey("secret-password")
		if a.Key != b.Key || a.IV != b.IV {
			t.Errorf("%T: derivation is not deterministic", d)
		}
		if a.Key == legacy.Key {
			t.Errorf("%T: key should differ from legacy key", d)
		}
	}
}

func TestPBKDF2RequiresSalt(t *testing.T) {
	if _, err := (PBKDF2Deriver{}).DeriveKey("abcdefgh"); err == nil {
		t.Error("expected error for empty salt")
	}
}

func TestSignature(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sig")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	if _, err := f.Write([]byte("junk-that-gets-overwritten")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteSignature(f); err != nil {
		t.Fatalf("WriteSignature failed: %v", err)
	}

	ok, err := VerifySignature(f)
	if err != nil {
		t.Fatalf("VerifySignature failed: %v", err)
	}
	if !ok {
		t.Fatal("signature should verify")
	}
	pos, _ := f.Seek(0, io.SeekCurrent)
	if pos != 0 {
		t.Errorf("stream should be rewound, at %d", pos)
	}
}

func TestVerifySignatureShortStream(t *testing.T) {
	ok, err := VerifySignature(bytes.NewReader([]byte{123, 78, 99}))
	if err != nil {
		t.Fatalf("short stream should not error: %v", err)
	}
	if ok {
		t.Error("short stream must not verify")
	}
}

func TestCipherRoundTripBlockBoundaries(t *testing.T) {
	enc := NewFileEncryptor("correct horse")
	defer enc.Destroy()

	for _, size := range []int{0, 1, 15, 16, 17, 4095, 4096, 4097, 10000} {
		plain := payload(size)

		var buf bytes.Buffer
		if err := enc.Encrypt(&buf, bytes.NewReader(plain)); err != nil {
			t.Fatalf("size %d: Encrypt failed: %v", size, err)
		}
		ctLen := buf.Len() - SignatureSize
		if ctLen%BlockSize != 0 {
			t.Errorf("size %d: ciphertext length %d not block aligned", size, ctLen)
		}
		if want := (size + BlockSize - 1) / BlockSize * BlockSize; ctLen != want {
			t.Errorf("size %d: ciphertext length %d, want %d", size, ctLen, want)
		}

		r, err := enc.Decrypt(buf.Bytes())
		if err != nil {
			t.Fatalf("size %d: Decrypt failed: %v", size, err)
		}
		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("size %d: read failed: %v", size, err)
		}
		if !bytes.Equal(got, plain) {
			t.Errorf("size %d: round trip mismatch", size)
		}
	}
}

func TestEncryptKnownAnswer(t *testing.T) {
	enc := NewFileEncryptor("abcdef")
	defer enc.Destroy()

	var buf bytes.Buffer
	if err := enc.Encrypt(&buf, bytes.NewReader([]byte("hello world"))); err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	want := append(Signature(), mustHex(t, "d4b0e11371b3e5d96de7069b4f96122e")...)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("envelope mismatch:\n got %x\nwant %x", buf.Bytes(), want)
	}
}

func TestScenarioMinimumPassword(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.xml")
	doc := []byte(`<Settings version="1.0.0.0"><item key="K">V</item></Settings>`)

	enc := NewFileEncryptor("abcdef")
	defer enc.Destroy()
	if err := enc.Err(); err != nil {
		t.Fatalf("six character password should be valid: %v", err)
	}

	if err := enc.WriteFile(path, bytes.NewReader(doc)); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	r, err := enc.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(got, doc) {
		t.Errorf("got %q, want %q", got, doc)
	}
}

func TestScenarioShortPasswordDisables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.xml")

	enc := NewFileEncryptor("abcde")
	if !errors.Is(enc.Err(), ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", enc.Err())
	}

	if err := enc.WriteFile(path, bytes.NewReader([]byte("x"))); !errors.Is(err, ErrDisabled) {
		t.Errorf("WriteFile: expected ErrDisabled, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("disabled encryptor must not create files")
	}
	if _, err := enc.ReadFile(path); !errors.Is(err, ErrDisabled) {
		t.Errorf("ReadFile: expected ErrDisabled, got %v", err)
	}
	if err := enc.Encrypt(io.Discard, bytes.NewReader(nil)); !errors.Is(err, ErrDisabled) {
		t.Errorf("Encrypt: expected ErrDisabled, got %v", err)
	}
}

func TestWrongPasswordNeverReproducesPlaintext(t *testing.T) {
	plain := []byte(`<Settings version="1.0.0.0"><item key="K">V</item></Settings>`)

	enc := NewFileEncryptor("right-password")
	var buf bytes.Buffer
	if err := enc.Encrypt(&buf, bytes.NewReader(plain)); err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	enc.Destroy()

	wrong := NewFileEncryptor("wrong-password")
	defer wrong.Destroy()
	r, err := wrong.Decrypt(buf.Bytes())
	if err != nil {
		if !errors.Is(err, ErrDecrypt) {
			t.Fatalf("expected ErrDecrypt, got %v", err)
		}
		return
	}
	got, err := io.ReadAll(r)
	if err != nil && !errors.Is(err, ErrDecrypt) {
		t.Fatalf("unexpected error: %v", err)
	}
	if bytes.Equal(got, plain) {
		t.Fatal("wrong password reproduced the plaintext")
	}
	if len(got) > len(buf.Bytes())-SignatureSize {
		t.Errorf("garbage output longer than ciphertext: %d", len(got))
	}
}

func TestReadFileErrors(t *testing.T) {
	dir := t.TempDir()
	enc := NewFileEncryptor("abcdefgh")
	defer enc.Destroy()

	t.Run("not found", func(t *testing.T) {
		if _, err := enc.ReadFile(filepath.Join(dir, "missing")); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("plaintext is a format mismatch", func(t *testing.T) {
		path := filepath.Join(dir, "plain.xml")
		os.WriteFile(path, []byte(`<Settings version="1.0.0.0"></Settings>`), 0600)
		if _, err := enc.ReadFile(path); !errors.Is(err, ErrFormat) {
			t.Errorf("expected ErrFormat, got %v", err)
		}
	})

	t.Run("empty file is a format mismatch", func(t *testing.T) {
		path := filepath.Join(dir, "empty")
		os.WriteFile(path, nil, 0600)
		if _, err := enc.ReadFile(path); !errors.Is(err, ErrFormat) {
			t.Errorf("expected ErrFormat, got %v", err)
		}
	})

	t.Run("truncated ciphertext", func(t *testing.T) {
		path := filepath.Join(dir, "truncated")
		data := append(Signature(), payload(20)...)
		os.WriteFile(path, data, 0600)
		if _, err := enc.ReadFile(path); !errors.Is(err, ErrDecrypt) {
			t.Errorf("expected ErrDecrypt, got %v", err)
		}
	})

	t.Run("size limit", func(t *testing.T) {
		small := NewFileEncryptor("abcdefgh", WithMaxFileSize(32))
		defer small.Destroy()
		path := filepath.Join(dir, "big")
		if err := small.WriteFile(path, bytes.NewReader(payload(100))); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		if _, err := small.ReadFile(path); !errors.Is(err, ErrSizeLimit) {
			t.Errorf("expected ErrSizeLimit, got %v", err)
		}
	})
}

func TestWriteFileTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings")
	enc := NewFileEncryptor("abcdefgh")
	defer enc.Destroy()

	if err := enc.WriteFile(path, bytes.NewReader(payload(5000))); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := enc.WriteFile(path, bytes.NewReader([]byte("short"))); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	info, _ := os.Stat(path)
	if info.Size() != SignatureSize+BlockSize {
		t.Errorf("file should be truncated, size %d", info.Size())
	}
}

func TestDestroyDisables(t *testing.T) {
	enc := NewFileEncryptor("abcdefgh")
	enc.Destroy()
	if err := enc.Encrypt(io.Discard, bytes.NewReader(nil)); !errors.Is(err, ErrDisabled) {
		t.Errorf("expected ErrDisabled after Destroy, got %v", err)
	}
}

func TestDecryptReaderSmallReads(t *testing.T) {
	enc := NewFileEncryptor("abcdefgh")
	defer enc.Destroy()
	plain := payload(5000)

	var buf bytes.Buffer
	if err := enc.Encrypt(&buf, bytes.NewReader(plain)); err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	r, err := enc.Decrypt(buf.Bytes())
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}

	var got []byte
	p := make([]byte, 7)
	for {
		n, err := r.Read(p)
		got = append(got, p[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
	}
	if !bytes.Equal(got, plain) {
		t.Error("small reads produced different plaintext")
	}
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex: %v", err)
	}
	return b
}
