package license

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ubuygold/keygate/internal/keygen"
	"github.com/ubuygold/keygate/internal/metrics"
	"github.com/ubuygold/keygate/internal/model"
	"github.com/ubuygold/keygate/internal/store"
)

// MockStore is a mock implementation of the store.Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) LoadAll(ctx context.Context) ([]model.KeyRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.KeyRecord), args.Error(1)
}

func (m *MockStore) FindByKey(ctx context.Context, key string) (*model.KeyRecord, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.KeyRecord), args.Error(1)
}

func (m *MockStore) Insert(ctx context.Context, rec model.KeyRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockStore) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStore) Mutate(ctx context.Context, key string, fn store.Updater) (model.KeyRecord, error) {
	args := m.Called(ctx, key, fn)
	return args.Get(0).(model.KeyRecord), args.Error(1)
}

func (m *MockStore) Close() error {
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	gen, err := keygen.New(keygen.StrategyHex)
	require.NoError(t, err)
	s := store.NewMemoryStore()
	return NewService(s, gen, metrics.New(), testLogger()), s
}

// sequence returns a generator yielding keys in order.
func sequence(keys ...string) keygen.Generator {
	i := 0
	return keygen.GeneratorFunc(func() (string, error) {
		k := keys[i%len(keys)]
		i++
		return k, nil
	})
}

func TestCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		mockStore := new(MockStore)
		svc := NewService(mockStore, sequence("X"), nil, testLogger())
		ok, err := svc.Check(ctx, "")
		assert.ErrorIs(t, err, ErrMissingKey)
		assert.False(t, ok)
		mockStore.AssertNotCalled(t, "Mutate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("valid key increments usage by exactly one", func(t *testing.T) {
		svc, s := newTestService(t)
		fixed := time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return fixed }
		_, err := svc.Add(ctx, "K1", "")
		require.NoError(t, err)

		for i := 1; i <= 3; i++ {
			ok, err := svc.Check(ctx, "K1")
			require.NoError(t, err)
			assert.True(t, ok)

			rec, err := s.FindByKey(ctx, "K1")
			require.NoError(t, err)
			assert.EqualValues(t, i, rec.UsageCount)
			require.NotNil(t, rec.LastUsed)
			assert.Equal(t, fixed, *rec.LastUsed)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		svc, _ := newTestService(t)
		ok, err := svc.Check(ctx, "NOPE")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("inactive key is invalid and untouched", func(t *testing.T) {
		svc, s := newTestService(t)
		_, err := svc.Add(ctx, "K2", "")
		require.NoError(t, err)
		_, err = svc.Toggle(ctx, "K2")
		require.NoError(t, err)

		ok, err := svc.Check(ctx, "K2")
		require.NoError(t, err)
		assert.False(t, ok)

		rec, err := s.FindByKey(ctx, "K2")
		require.NoError(t, err)
		assert.Zero(t, rec.UsageCount)
		assert.Nil(t, rec.LastUsed)
	})

	t.Run("storage failure", func(t *testing.T) {
		mockStore := new(MockStore)
		mockStore.On("Mutate", mock.Anything, "K", mock.Anything).Return(model.KeyRecord{}, errors.New("disk full")).Once()
		svc := NewService(mockStore, sequence("X"), nil, testLogger())

		ok, err := svc.Check(ctx, "K")
		assert.Error(t, err)
		assert.False(t, ok)
		assert.NotErrorIs(t, err, ErrMissingKey)
		mockStore.AssertExpectations(t)
	})
}

func TestAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit key", func(t *testing.T) {
		svc, _ := newTestService(t)
		rec, err := svc.Add(ctx, "ABC123", "test")
		require.NoError(t, err)
		assert.Equal(t, "ABC123", rec.Key)
		assert.Equal(t, "test", rec.Description)
		assert.True(t, rec.Active)
		assert.Zero(t, rec.UsageCount)
	})

	t.Run("explicit key keeps its case", func(t *testing.T) {
		svc, _ := newTestService(t)
		rec, err := svc.Add(ctx, "lower", "")
		require.NoError(t, err)
		assert.Equal(t, "lower", rec.Key)
	})

	t.Run("generated key is uppercased", func(t *testing.T) {
		svc := NewService(store.NewMemoryStore(), sequence("abc9"), nil, testLogger())
		rec, err := svc.Add(ctx, "", "")
		require.NoError(t, err)
		assert.Equal(t, "ABC9", rec.Key)
	})

	t.Run("duplicate explicit key leaves record alone", func(t *testing.T) {
		svc, s := newTestService(t)
		_, err := svc.Add(ctx, "DUP", "first")
		require.NoError(t, err)
		_, err = svc.Check(ctx, "DUP")
		require.NoError(t, err)

		_, err = svc.Add(ctx, "DUP", "second")
		assert.ErrorIs(t, err, store.ErrDuplicateKey)

		keys, err := s.LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Equal(t, "first", keys[0].Description)
		assert.EqualValues(t, 1, keys[0].UsageCount)
	})

	t.Run("generated collision is retried", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.Insert(ctx, model.NewKeyRecord("TAKEN", "")))
		svc := NewService(s, sequence("taken", "free"), nil, testLogger())

		rec, err := svc.Add(ctx, "", "")
		require.NoError(t, err)
		assert.Equal(t, "FREE", rec.Key)
	})

	t.Run("generated collisions give up", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.Insert(ctx, model.NewKeyRecord("TAKEN", "")))
		svc := NewService(s, sequence("TAKEN"), nil, testLogger())

		_, err := svc.Add(ctx, "", "")
		assert.ErrorIs(t, err, store.ErrDuplicateKey)
	})

	t.Run("generator failure", func(t *testing.T) {
		gen := keygen.GeneratorFunc(func() (string, error) { return "", errors.New("no entropy") })
		svc := NewService(store.NewMemoryStore(), gen, nil, testLogger())
		_, err := svc.Add(ctx, "", "")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, store.ErrDuplicateKey)
	})

	t.Run("storage failure", func(t *testing.T) {
		mockStore := new(MockStore)
		mockStore.On("Insert", mock.Anything, mock.AnythingOfType("model.KeyRecord")).Return(errors.New("io")).Once()
		svc := NewService(mockStore, sequence("X"), nil, testLogger())
		_, err := svc.Add(ctx, "K", "")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, store.ErrDuplicateKey)
		mockStore.AssertExpectations(t)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	_, err := svc.Add(ctx, "A", "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "missing"))
	keys, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	require.NoError(t, svc.Delete(ctx, "A"))
	keys, err = s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	mockStore := new(MockStore)
	mockStore.On("Remove", mock.Anything, "A").Return(errors.New("io")).Once()
	assert.Error(t, NewService(mockStore, sequence("X"), nil, testLogger()).Delete(ctx, "A"))
}

func TestToggle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.Add(ctx, "T", "")
	require.NoError(t, err)

	active, err := svc.Toggle(ctx, "T")
	require.NoError(t, err)
	assert.False(t, active)
	ok, err := svc.Check(ctx, "T")
	require.NoError(t, err)
	assert.False(t, ok)

	active, err = svc.Toggle(ctx, "T")
	require.NoError(t, err)
	assert.True(t, active)
	ok, err = svc.Check(ctx, "T")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Toggle(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListAndStats(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	keys, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	for _, k := range []string{"A", "B", "C"} {
		_, err := svc.Add(ctx, k, "")
		require.NoError(t, err)
	}
	_, err = svc.Toggle(ctx, "B")
	require.NoError(t, err)

	keys, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 3)
	assert.Equal(t, "A", keys[0].Key)

	total, active, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, active)

	mockStore := new(MockStore)
	mockStore.On("LoadAll", mock.Anything).Return(nil, errors.New("io"))
	failing := NewService(mockStore, sequence("X"), nil, testLogger())
	_, err = failing.List(ctx)
	assert.Error(t, err)
	_, _, err = failing.Stats(ctx)
	assert.Error(t, err)
}
