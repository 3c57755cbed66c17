package settings

import (
	"context"
	"fmt"
)

// Save writes every live value to storage, followed by the unrecognized
// entries of the document being replaced. When storage holds nothing yet,
// the unrecognized entries of the last Load are written instead.
func (s *Settings) Save(ctx context.Context) error {
	if err := s.save(ctx); err != nil {
		return err
	}
	if s.opts.onSaved != nil {
		s.opts.onSaved(s)
	}
	return nil
}

func (s *Settings) save(ctx context.Context) error {
	if err := s.acquire(ctx, "save settings"); err != nil {
		return err
	}
	defer s.guard.Release()

	unrecognized, err := s.carriedEntries()
	if err != nil {
		return err
	}

	doc, err := s.build(unrecognized)
	if err != nil {
		return err
	}

	data, err := doc.Marshal()
	if err != nil {
		return err
	}
	if err := s.storage.Commit(data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	s.mu.Lock()
	s.unrecognized = unrecognized
	s.mu.Unlock()

	s.opts.logger.Debug().
		Str("version", s.schema.Version().String()).
		Int("entries", doc.Len()).
		Int("unrecognized", len(unrecognized)).
		Msg("settings saved")
	return nil
}

// carriedEntries returns the unrecognized entries that must survive this
// save.
func (s *Settings) carriedEntries() ([]Entry, error) {
	exists, err := s.storage.Exists()
	if err != nil {
		return nil, fmt.Errorf("failed to check settings storage: %w", err)
	}
	if !exists {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return cloneEntries(s.unrecognized), nil
	}

	data, err := s.storage.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to read existing settings: %w", err)
	}
	existing, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return s.schema.Unrecognized(existing), nil
}

// build renders the live values as a document at the current version.
func (s *Settings) build(unrecognized []Entry) (*Document, error) {
	doc := NewDocument(s.schema.Version())

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.schema.props {
		v, ok := s.values[p.key]
		if !ok {
			continue
		}
		if isNull(v) {
			doc.add(Entry{Key: p.key, Null: true})
			continue
		}

		payload, err := p.serialize(v)
		if err != nil {
			return nil, &SerializationError{Op: "serialize", Key: p.key, Type: p.typ, Err: err}
		}
		doc.add(Entry{Key: p.key, Payload: payload})
	}

	// Unrecognized entries are written back exactly as they were read.
	doc.entries = append(doc.entries, cloneEntries(unrecognized)...)
	return doc, nil
}
