package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/illarion/cfgvault/pkg/crypto"
)

// PlainFile stores the document unencrypted.
type PlainFile struct {
	path string
	cfg  config
	mu   sync.Mutex
}

// NewPlainFile returns a plain backend for path. Nothing is touched until
// the first call.
func NewPlainFile(path string, opts ...Option) *PlainFile {
	return &PlainFile{path: path, cfg: newConfig(opts)}
}

// Path returns the file path.
func (p *PlainFile) Path() string {
	return p.path
}

func (p *PlainFile) Exists() (bool, error) {
	return fileExists(p.path)
}

func (p *PlainFile) Load() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return readLimited(p.path, p.cfg.maxSize)
}

func (p *PlainFile) Commit(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := writeFile(p.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", p.path, err)
	}
	p.cfg.logger.Debug().Str("path", p.path).Int("bytes", len(data)).Msg("plain settings committed")
	return nil
}

func (p *PlainFile) Format() (Format, error) {
	return fileFormat(p.path)
}

func (p *PlainFile) Describe() string {
	return "plain file " + p.path
}

func (p *PlainFile) Close() error {
	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", path, err)
}

// readLimited reads a whole file, refusing files larger than limit.
func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", crypto.ErrSizeLimit, path, info.Size(), limit)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func fileFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FormatMissing, nil
		}
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, crypto.SignatureSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return DetectFormat(head[:n]), nil
}

// writeFile writes bytes via a temp file, then atomically replaces the target.
func writeFile(path string, b []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	f, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	// Best-effort cleanup if anything fails before rename.
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
