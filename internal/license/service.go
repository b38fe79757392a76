// Package license implements key validation and key administration on top
// of a store.Store.
package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ubuygold/keygate/internal/keygen"
	"github.com/ubuygold/keygate/internal/metrics"
	"github.com/ubuygold/keygate/internal/model"
	"github.com/ubuygold/keygate/internal/store"
)

// ErrMissingKey is returned by Check when no key was supplied.
var ErrMissingKey = errors.New("no key provided")

// errInactive aborts the usage update for a disabled key.
var errInactive = errors.New("key is inactive")

// maxGenerateAttempts bounds retries when a generated key collides.
const maxGenerateAttempts = 5

// Admin operation outcomes reported to metrics.
const (
	outcomeOK        = "ok"
	outcomeDuplicate = "duplicate"
	outcomeNotFound  = "not_found"
	outcomeError     = "error"
)

// Service validates keys and manages the key collection.
type Service struct {
	store   store.Store
	gen     keygen.Generator
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a Service. m may be nil.
func NewService(s store.Store, gen keygen.Generator, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:   s,
		gen:     gen,
		metrics: m,
		logger:  logger.With("component", "license"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Check reports whether key names an active record. A valid check stamps
// LastUsed and increments UsageCount.
func (s *Service) Check(ctx context.Context, key string) (bool, error) {
	if key == "" {
		s.metrics.ObserveCheck(metrics.CheckMissing)
		return false, ErrMissingKey
	}

	_, err := s.store.Mutate(ctx, key, func(rec *model.KeyRecord) error {
		if !rec.Active {
			return errInactive
		}
		used := s.now()
		rec.LastUsed = &used
		rec.UsageCount++
		return nil
	})
	switch {
	case err == nil:
		s.metrics.ObserveCheck(metrics.CheckValid)
		s.logger.Debug("Key check passed", "key_suffix", model.KeySuffix(key))
		return true, nil
	case errors.Is(err, store.ErrNotFound), errors.Is(err, errInactive):
		s.metrics.ObserveCheck(metrics.CheckInvalid)
		s.logger.Debug("Key check failed", "key_suffix", model.KeySuffix(key))
		return false, nil
	default:
		s.metrics.ObserveCheck(metrics.CheckError)
		return false, fmt.Errorf("failed to check key: %w", err)
	}
}

// List returns every record in insertion order.
func (s *Service) List(ctx context.Context) ([]model.KeyRecord, error) {
	keys, err := s.store.LoadAll(ctx)
	if err != nil {
		s.metrics.ObserveAdmin("list", outcomeError)
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	s.metrics.ObserveAdmin("list", outcomeOK)
	return keys, nil
}

// Add stores a new active key. When key is empty one is generated; a
// generated key that collides is regenerated a bounded number of times.
// An explicit duplicate fails with store.ErrDuplicateKey.
func (s *Service) Add(ctx context.Context, key, description string) (model.KeyRecord, error) {
	if key != "" {
		return s.insert(ctx, model.NewKeyRecord(key, description))
	}

	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		generated, err := s.gen.Generate()
		if err != nil {
			s.metrics.ObserveAdmin("add", outcomeError)
			return model.KeyRecord{}, fmt.Errorf("failed to generate key: %w", err)
		}
		rec, err := s.insert(ctx, model.NewKeyRecord(strings.ToUpper(generated), description))
		if !errors.Is(err, store.ErrDuplicateKey) {
			return rec, err
		}
		s.logger.Warn("Generated key collided, retrying", "attempt", attempt)
	}
	return model.KeyRecord{}, store.ErrDuplicateKey
}

func (s *Service) insert(ctx context.Context, rec model.KeyRecord) (model.KeyRecord, error) {
	err := s.store.Insert(ctx, rec)
	switch {
	case err == nil:
		s.metrics.ObserveAdmin("add", outcomeOK)
		s.logger.Info("Key added", "key_suffix", model.KeySuffix(rec.Key))
		return rec, nil
	case errors.Is(err, store.ErrDuplicateKey):
		s.metrics.ObserveAdmin("add", outcomeDuplicate)
		return model.KeyRecord{}, store.ErrDuplicateKey
	default:
		s.metrics.ObserveAdmin("add", outcomeError)
		return model.KeyRecord{}, fmt.Errorf("failed to add key: %w", err)
	}
}

// Delete removes every record matching key. Deleting a missing key succeeds.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.store.Remove(ctx, key); err != nil {
		s.metrics.ObserveAdmin("delete", outcomeError)
		return fmt.Errorf("failed to delete key: %w", err)
	}
	s.metrics.ObserveAdmin("delete", outcomeOK)
	s.logger.Info("Key deleted", "key_suffix", model.KeySuffix(key))
	return nil
}

// Toggle flips the active flag of key and returns the new state.
func (s *Service) Toggle(ctx context.Context, key string) (bool, error) {
	rec, err := s.store.Mutate(ctx, key, func(rec *model.KeyRecord) error {
		rec.Active = !rec.Active
		return nil
	})
	switch {
	case err == nil:
		s.metrics.ObserveAdmin("toggle", outcomeOK)
		s.logger.Info("Key status updated", "key_suffix", model.KeySuffix(key), "active", rec.Active)
		return rec.Active, nil
	case errors.Is(err, store.ErrNotFound):
		s.metrics.ObserveAdmin("toggle", outcomeNotFound)
		return false, store.ErrNotFound
	default:
		s.metrics.ObserveAdmin("toggle", outcomeError)
		return false, fmt.Errorf("failed to toggle key: %w", err)
	}
}

// Stats returns the number of stored and active keys.
func (s *Service) Stats(ctx context.Context) (total, active int, err error) {
	keys, err := s.store.LoadAll(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load keys: %w", err)
	}
	for _, k := range keys {
		if k.Active {
			active++
		}
	}
	return len(keys), active, nil
}
