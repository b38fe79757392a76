package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ubuygold/keygate/internal/model"
)

// document is the serialized form shared by the file and redis backings.
type document struct {
	Keys []model.KeyRecord `json:"keys"`
}

// blob reads and writes the raw document. A nil slice from readBlob means
// nothing has been written yet.
type blob interface {
	readBlob(ctx context.Context) ([]byte, error)
	writeBlob(ctx context.Context, data []byte) error
}

// documentStore implements Store over a single JSON document that is read
// fresh on every call and rewritten whole after every mutation.
type documentStore struct {
	mu   sync.Mutex
	blob blob
}

func newDocumentStore(b blob) *documentStore {
	return &documentStore{blob: b}
}

func (s *documentStore) load(ctx context.Context) (*document, error) {
	data, err := s.blob.readBlob(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read key document: %w", err)
	}
	doc := &document{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("failed to parse key document: %w", err)
		}
	}
	if doc.Keys == nil {
		doc.Keys = []model.KeyRecord{}
	}
	return doc, nil
}

func (s *documentStore) save(ctx context.Context, doc *document) error {
	if doc.Keys == nil {
		doc.Keys = []model.KeyRecord{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode key document: %w", err)
	}
	if err := s.blob.writeBlob(ctx, data); err != nil {
		return fmt.Errorf("failed to write key document: %w", err)
	}
	return nil
}

func (s *documentStore) LoadAll(ctx context.Context) ([]model.KeyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Keys, nil
}

func (s *documentStore) FindByKey(ctx context.Context, key string) (*model.KeyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexOf(doc.Keys, key); i >= 0 {
		rec := doc.Keys[i]
		return &rec, nil
	}
	return nil, nil
}

func (s *documentStore) Insert(ctx context.Context, rec model.KeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	if indexOf(doc.Keys, rec.Key) >= 0 {
		return ErrDuplicateKey
	}
	doc.Keys = append(doc.Keys, rec.Clone())
	return s.save(ctx, doc)
}

func (s *documentStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	doc.Keys = without(doc.Keys, key)
	return s.save(ctx, doc)
}

func (s *documentStore) Mutate(ctx context.Context, key string, fn Updater) (model.KeyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return model.KeyRecord{}, err
	}
	i := indexOf(doc.Keys, key)
	if i < 0 {
		return model.KeyRecord{}, ErrNotFound
	}
	rec, err := apply(doc.Keys[i], fn)
	if err != nil {
		return model.KeyRecord{}, err
	}
	doc.Keys[i] = rec
	if err := s.save(ctx, doc); err != nil {
		return model.KeyRecord{}, err
	}
	return rec.Clone(), nil
}
