package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubuygold/keygate/internal/config"
	"github.com/ubuygold/keygate/internal/model"
)

// backings returns a fresh instance of every store implementation.
func backings(t *testing.T) map[string]Store {
	t.Helper()

	fileStore, err := OpenFile(filepath.Join(t.TempDir(), "keys.json"))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	redisStore := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")

	dbStore, err := OpenDatabase(config.DatabaseConfig{Type: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)

	stores := map[string]Store{
		"memory":   NewMemoryStore(),
		"file":     fileStore,
		"redis":    redisStore,
		"database": dbStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, s := range backings(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, s)
		})
	}
}

func record(key string) model.KeyRecord {
	rec := model.NewKeyRecord(key, "desc "+key)
	rec.CreatedAt = rec.CreatedAt.Truncate(time.Second)
	return rec
}

func TestInsertAndLoadAllPreservesOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		keys, err := s.LoadAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)

		for _, k := range []string{"C", "A", "B"} {
			require.NoError(t, s.Insert(ctx, record(k)))
		}

		keys, err = s.LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, keys, 3)
		assert.Equal(t, "C", keys[0].Key)
		assert.Equal(t, "A", keys[1].Key)
		assert.Equal(t, "B", keys[2].Key)
		assert.Equal(t, "desc A", keys[1].Description)
		assert.True(t, keys[1].Active)
		assert.Zero(t, keys[1].UsageCount)
	})
}

func TestInsertDuplicate(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Insert(ctx, record("DUP")))

		other := record("DUP")
		other.Description = "changed"
		err := s.Insert(ctx, other)
		assert.ErrorIs(t, err, ErrDuplicateKey)

		keys, err := s.LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Equal(t, "desc DUP", keys[0].Description)
	})
}

func TestFindByKey(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Insert(ctx, record("abc")))

		rec, err := s.FindByKey(ctx, "abc")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "abc", rec.Key)

		rec, err = s.FindByKey(ctx, "ABC")
		require.NoError(t, err)
		assert.Nil(t, rec, "lookup must be case-sensitive")

		rec, err = s.FindByKey(ctx, "")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})
}

func TestRemove(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Insert(ctx, record("A")))
		require.NoError(t, s.Insert(ctx, record("B")))

		require.NoError(t, s.Remove(ctx, "missing"))
		keys, err := s.LoadAll(ctx)
		require.NoError(t, err)
		assert.Len(t, keys, 2)

		require.NoError(t, s.Remove(ctx, "A"))
		keys, err = s.LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Equal(t, "B", keys[0].Key)
	})
}

func TestMutate(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		original := record("M")
		require.NoError(t, s.Insert(ctx, original))

		used := time.Now().UTC().Truncate(time.Second)
		updated, err := s.Mutate(ctx, "M", func(rec *model.KeyRecord) error {
			rec.Active = false
			rec.UsageCount++
			rec.LastUsed = &used
			rec.Key = "renamed"
			rec.CreatedAt = time.Time{}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "M", updated.Key)
		assert.False(t, updated.Active)
		assert.EqualValues(t, 1, updated.UsageCount)
		require.NotNil(t, updated.LastUsed)
		assert.True(t, used.Equal(*updated.LastUsed))

		stored, err := s.FindByKey(ctx, "M")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.False(t, stored.Active)
		assert.EqualValues(t, 1, stored.UsageCount)
		assert.True(t, original.CreatedAt.Equal(stored.CreatedAt))
	})
}

func TestMutateNotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.Mutate(context.Background(), "nope", func(rec *model.KeyRecord) error {
			t.Fatal("updater must not run")
			return nil
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMutateAbort(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Insert(ctx, record("X")))

		errStop := errors.New("stop")
		_, err := s.Mutate(ctx, "X", func(rec *model.KeyRecord) error {
			rec.UsageCount = 99
			return errStop
		})
		assert.ErrorIs(t, err, errStop)

		stored, err := s.FindByKey(ctx, "X")
		require.NoError(t, err)
		assert.Zero(t, stored.UsageCount)
	})
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Insert(ctx, record("C")))

		keys, err := s.LoadAll(ctx)
		require.NoError(t, err)
		keys[0].Active = false

		rec, err := s.FindByKey(ctx, "C")
		require.NoError(t, err)
		rec.UsageCount = 10

		again, err := s.FindByKey(ctx, "C")
		require.NoError(t, err)
		assert.True(t, again.Active)
		assert.Zero(t, again.UsageCount)
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Type: config.StoreMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, config.StoreConfig{Type: config.StoreFile, Path: filepath.Join(t.TempDir(), "k.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	mr := miniredis.RunT(t)
	s, err = Open(ctx, config.StoreConfig{Type: config.StoreRedis, Redis: config.RedisConfig{Addr: mr.Addr()}})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)
	s.Close()

	_, err = Open(ctx, config.StoreConfig{Type: config.StoreDatabase, Database: config.DatabaseConfig{Type: "oracle"}})
	assert.Error(t, err)

	_, err = Open(ctx, config.StoreConfig{Type: "s3"})
	assert.Error(t, err)
}
