package settings

import (
	"context"
	"fmt"
)

// Load reads the document from storage and replaces the live values of
// every key it holds. Keys missing from the document fall back to their
// default when one is declared. On any error the live values are left
// unchanged.
func (s *Settings) Load(ctx context.Context) error {
	if err := s.load(ctx); err != nil {
		return err
	}
	if s.opts.onLoaded != nil {
		s.opts.onLoaded(s)
	}
	return nil
}

func (s *Settings) load(ctx context.Context) error {
	if err := s.acquire(ctx, "load settings"); err != nil {
		return err
	}
	defer s.guard.Release()

	data, err := s.storage.Load()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	doc, err := ParseDocument(data)
	if err != nil {
		return err
	}
	if doc.Empty() {
		s.opts.logger.Debug().Msg("settings document is empty, keeping current values")
		return nil
	}

	fileVersion, err := doc.Version()
	if err != nil {
		return err
	}

	current := s.schema.Version()
	if s.opts.legacyZero && fileVersion.IsZero() {
		fileVersion = current
	}
	if fileVersion.Compare(current) != 0 {
		doc, err = s.migrate(doc, current, fileVersion)
		if err != nil {
			return err
		}
	}

	values, err := s.decode(doc)
	if err != nil {
		return err
	}
	unrecognized := s.schema.Unrecognized(doc)

	s.mu.Lock()
	for k, v := range values {
		s.values[k] = v
	}
	s.unrecognized = unrecognized
	s.fileVersion = fileVersion
	s.loaded = true
	s.mu.Unlock()

	s.opts.logger.Debug().
		Str("version", fileVersion.String()).
		Int("values", len(values)).
		Int("unrecognized", len(unrecognized)).
		Msg("settings loaded")
	return nil
}

func (s *Settings) migrate(doc *Document, current, file Version) (*Document, error) {
	if s.opts.migrate == nil {
		return nil, fmt.Errorf("%w: file has %s, expected %s", ErrVersionUnsupported, file, current)
	}

	s.opts.logger.Info().
		Str("from", file.String()).
		Str("to", current.String()).
		Bool("downgrade", file.Compare(current) > 0).
		Msg("migrating settings document")

	migrated, err := s.opts.migrate(doc, current, file)
	if err != nil {
		return nil, fmt.Errorf("%w: migration from %s failed: %w", ErrVersionUnsupported, file, err)
	}
	if migrated == nil {
		return nil, fmt.Errorf("%w: migration from %s was rejected", ErrVersionUnsupported, file)
	}
	return migrated, nil
}

// decode converts every recognized entry of doc. The result holds only the
// keys that should change.
func (s *Settings) decode(doc *Document) (map[string]any, error) {
	values := make(map[string]any, len(s.schema.props))
	for _, p := range s.schema.props {
		e, ok := doc.Get(p.key)
		if !ok {
			if p.hasDefault {
				values[p.key] = p.def
			}
			continue
		}
		if e.Null {
			values[p.key] = nil
			continue
		}

		v, err := p.deserialize(e.Payload)
		if err != nil {
			return nil, &SerializationError{Op: "deserialize", Key: p.key, Type: p.typ, Err: err}
		}
		values[p.key] = v
	}
	return values, nil
}
