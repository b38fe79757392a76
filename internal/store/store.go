// Package store persists license key records.
//
// All backings keep records in insertion order and compare keys exactly.
// Records handed out are copies; mutating them has no effect on the store.
package store

import (
	"context"
	"errors"

	"github.com/ubuygold/keygate/internal/model"
)

var (
	// ErrDuplicateKey is returned by Insert when the key is already stored.
	ErrDuplicateKey = errors.New("key already exists")
	// ErrNotFound is returned by Mutate when no record matches the key.
	ErrNotFound = errors.New("key not found")
)

// Updater changes a record in place. A non-nil error aborts the mutation
// and nothing is persisted.
type Updater func(rec *model.KeyRecord) error

// Store defines the operations available on the key record collection.
// This allows handlers and tests to swap backings freely.
type Store interface {
	LoadAll(ctx context.Context) ([]model.KeyRecord, error)
	FindByKey(ctx context.Context, key string) (*model.KeyRecord, error)
	Insert(ctx context.Context, rec model.KeyRecord) error
	Remove(ctx context.Context, key string) error
	Mutate(ctx context.Context, key string, fn Updater) (model.KeyRecord, error)
	Close() error
}

func indexOf(keys []model.KeyRecord, key string) int {
	for i := range keys {
		if keys[i].Key == key {
			return i
		}
	}
	return -1
}

func without(keys []model.KeyRecord, key string) []model.KeyRecord {
	kept := make([]model.KeyRecord, 0, len(keys))
	for _, k := range keys {
		if k.Key != key {
			kept = append(kept, k)
		}
	}
	return kept
}

func cloneAll(keys []model.KeyRecord) []model.KeyRecord {
	out := make([]model.KeyRecord, len(keys))
	for i, k := range keys {
		out[i] = k.Clone()
	}
	return out
}

// apply runs fn on a copy of rec. Key and CreatedAt are immutable and are
// restored whatever fn does to them.
func apply(rec model.KeyRecord, fn Updater) (model.KeyRecord, error) {
	next := rec.Clone()
	if err := fn(&next); err != nil {
		return model.KeyRecord{}, err
	}
	next.Key = rec.Key
	next.CreatedAt = rec.CreatedAt
	return next, nil
}
