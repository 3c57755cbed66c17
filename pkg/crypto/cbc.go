package crypto

import (
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
)

// NewEncryptWriter returns a writer that CBC-encrypts everything written to
// it into w. Close flushes the final block padded with zero bytes; it does not
// close w. Block-aligned input gets no extra padding block and empty input
// produces no output.
func NewEncryptWriter(w io.Writer, block cipher.Block, iv []byte) io.WriteCloser {
	return &encryptWriter{
		w:    w,
		mode: cipher.NewCBCEncrypter(block, iv),
		buf:  make([]byte, 0, BlockSize),
	}
}

type encryptWriter struct {
	w       io.Writer
	mode    cipher.BlockMode
	buf     []byte // pending partial block
	scratch []byte
	closed  bool
}

func (e *encryptWriter) Write(p []byte) (int, error) {
	if e.closed {
		return 0, errors.New("crypto: write after close")
	}
	n := len(p)

	if len(e.buf) > 0 {
		k := copy(e.buf[len(e.buf):BlockSize], p)
		e.buf = e.buf[:len(e.buf)+k]
		p = p[k:]
		if len(e.buf) < BlockSize {
			return n, nil
		}
		e.mode.CryptBlocks(e.buf, e.buf)
		if _, err := e.w.Write(e.buf); err != nil {
			return 0, err
		}
		e.buf = e.buf[:0]
	}

	full := len(p) - len(p)%BlockSize
	if full > 0 {
		if cap(e.scratch) < full {
			e.scratch = make([]byte, full)
		}
		out := e.scratch[:full]
		e.mode.CryptBlocks(out, p[:full])
		_, err := e.w.Write(out)
		ClearBytes(out)
		if err != nil {
			return 0, err
		}
	}

	e.buf = append(e.buf, p[full:]...)
	return n, nil
}

// Close pads and writes the final block.
func (e *encryptWriter) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if len(e.buf) == 0 {
		return nil
	}
	for len(e.buf) < BlockSize {
		e.buf = append(e.buf, 0)
	}
	e.mode.CryptBlocks(e.buf, e.buf)
	_, err := e.w.Write(e.buf)
	ClearBytes(e.buf)
	e.buf = e.buf[:0]
	return err
}

// NewDecryptReader returns a reader that lazily CBC-decrypts r. The last
// block is held back until EOF so its zero padding can be stripped. Input
// that is not a multiple of the block size fails with ErrDecrypt.
func NewDecryptReader(r io.Reader, block cipher.Block, iv []byte) io.Reader {
	return &decryptReader{
		r:    r,
		mode: cipher.NewCBCDecrypter(block, iv),
		in:   make([]byte, ChunkSize),
		held: make([]byte, 0, BlockSize),
	}
}

type decryptReader struct {
	r    io.Reader
	mode cipher.BlockMode
	in   []byte
	held []byte // last decrypted block, not yet released
	buf  []byte
	out  []byte // decrypted bytes ready for Read
	eof  bool
	err  error
}

func (d *decryptReader) Read(p []byte) (int, error) {
	for len(d.out) == 0 {
		if d.err != nil {
			return 0, d.err
		}
		if d.eof {
			return 0, io.EOF
		}
		d.fill()
	}
	n := copy(p, d.out)
	d.out = d.out[n:]
	return n, nil
}

func (d *decryptReader) fill() {
	n, err := io.ReadFull(d.r, d.in)
	atEOF := false
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		atEOF = true
	default:
		d.err = err
		return
	}
	if n%BlockSize != 0 {
		d.err = fmt.Errorf("%w: ciphertext length is not a multiple of the block size", ErrDecrypt)
		return
	}

	chunk := d.in[:n]
	d.mode.CryptBlocks(chunk, chunk)
	d.buf = append(d.buf[:0], d.held...)
	d.buf = append(d.buf, chunk...)
	ClearBytes(chunk)

	if atEOF {
		d.buf = trimFinalBlock(d.buf)
		d.held = d.held[:0]
		d.eof = true
	} else {
		cut := len(d.buf) - BlockSize
		d.held = append(d.held[:0], d.buf[cut:]...)
		d.buf = d.buf[:cut]
	}
	d.out = d.buf
}

// trimFinalBlock strips zero padding, looking only at the last block.
func trimFinalBlock(b []byte) []byte {
	start := len(b) - BlockSize
	if start < 0 {
		start = 0
	}
	end := len(b)
	for end > start && b[end-1] == 0 {
		end--
	}
	return b[:end]
}
