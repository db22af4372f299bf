package idempotency

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagesmith/internal/config"
)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, open func(t *testing.T) Store) {
	t.Helper()
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		s := open(t)
		_, ok, err := s.Get(ctx, "nobody|task|1|n")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("create then resolve", func(t *testing.T) {
		s := open(t)
		key := "a@example.com|calc|1|" + uuid.NewString()
		pending, err := s.CompareAndSwap(ctx, key, 0, Record{Status: StatusPending, Task: "calc", Round: 1, CreatedAt: now, UpdatedAt: now})
		require.NoError(t, err)
		assert.NotZero(t, pending.Revision)

		got, ok, err := s.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, StatusPending, got.Status)
		assert.Equal(t, pending.Revision, got.Revision)
		assert.Equal(t, key, got.Key)

		done := got
		done.Status = StatusSucceeded
		done.Result = &Result{RepoURL: "https://github.com/acme/calc", CommitSHA: "abc"}
		done.UpdatedAt = now.Add(time.Minute)
		resolved, err := s.CompareAndSwap(ctx, key, got.Revision, done)
		require.NoError(t, err)
		assert.NotEqual(t, got.Revision, resolved.Revision)

		got, _, err = s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, StatusSucceeded, got.Status)
		require.NotNil(t, got.Result)
		assert.Equal(t, "abc", got.Result.CommitSHA)
		assert.True(t, got.UpdatedAt.Equal(now.Add(time.Minute)))
	})

	t.Run("create conflicts when present", func(t *testing.T) {
		s := open(t)
		key := "dup|" + uuid.NewString()
		_, err := s.CompareAndSwap(ctx, key, 0, Record{Status: StatusPending, UpdatedAt: now})
		require.NoError(t, err)
		_, err = s.CompareAndSwap(ctx, key, 0, Record{Status: StatusPending, UpdatedAt: now})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("stale revision conflicts", func(t *testing.T) {
		s := open(t)
		key := "stale|" + uuid.NewString()
		first, err := s.CompareAndSwap(ctx, key, 0, Record{Status: StatusPending, UpdatedAt: now})
		require.NoError(t, err)
		_, err = s.CompareAndSwap(ctx, key, first.Revision, Record{Status: StatusFailed, UpdatedAt: now})
		require.NoError(t, err)
		_, err = s.CompareAndSwap(ctx, key, first.Revision, Record{Status: StatusSucceeded, UpdatedAt: now})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("concurrent creates admit one writer", func(t *testing.T) {
		s := open(t)
		key := "race|" + uuid.NewString()
		const writers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.CompareAndSwap(ctx, key, 0, Record{Status: StatusPending, RunID: fmt.Sprint(i), UpdatedAt: now})
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		key := "del|" + uuid.NewString()
		rec, err := s.CompareAndSwap(ctx, key, 0, Record{Status: StatusPending, UpdatedAt: now})
		require.NoError(t, err)
		assert.ErrorIs(t, s.Delete(ctx, key, rec.Revision+100), ErrConflict)
		require.NoError(t, s.Delete(ctx, key, rec.Revision))
		_, ok, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = s.CompareAndSwap(ctx, key, 0, Record{Status: StatusPending, UpdatedAt: now})
		require.NoError(t, err, "key can be recreated after delete")
	})

	t.Run("prune", func(t *testing.T) {
		s := open(t)
		p, ok := s.(Pruner)
		require.True(t, ok)
		suffix := uuid.NewString()
		write := func(key string, status Status, at time.Time) {
			_, err := s.CompareAndSwap(ctx, key+suffix, 0, Record{Status: status, UpdatedAt: at})
			require.NoError(t, err)
		}
		write("old-done", StatusSucceeded, now.Add(-48*time.Hour))
		write("new-done", StatusFailed, now)
		write("old-pending", StatusPending, now.Add(-2*time.Hour))
		write("new-pending", StatusPending, now)

		n, err := p.Prune(ctx, now.Add(-24*time.Hour), now.Add(-time.Hour))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 2)

		for key, want := range map[string]bool{"old-done": false, "new-done": true, "old-pending": false, "new-pending": true} {
			_, ok, err := s.Get(ctx, key+suffix)
			require.NoError(t, err)
			assert.Equal(t, want, ok, key)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(*testing.T) Store { return NewMemoryStore() })
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, err := NewSQLiteStore(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLiteStorePersists(t *testing.T) {
	path := t.TempDir() + "/jobs.db"
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	_, err = s.CompareAndSwap(context.Background(), "k", 0, Record{Status: StatusSucceeded, UpdatedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	rec, ok, err := reopened.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), rec.Revision)
}

func TestNATSStore(t *testing.T) {
	url := os.Getenv("PAGESMITH_TEST_NATS_URL")
	if url == "" {
		t.Skip("PAGESMITH_TEST_NATS_URL not set")
	}
	runStoreContract(t, func(t *testing.T) Store {
		s, err := NewNATSStore(context.Background(), url, "pagesmith_test_"+uuid.NewString()[:8])
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.IdempotencyConfig{Backend: config.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(context.Background(), config.IdempotencyConfig{Backend: config.BackendSQLite, SQLitePath: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), config.IdempotencyConfig{Backend: "etcd"})
	require.Error(t, err)
}

func TestNATSKeyAlphabet(t *testing.T) {
	k := natsKey("A@Example.com|My Task/ü|2|nonce")
	assert.Regexp(t, `^[A-Za-z0-9_-]+$`, k)
}
