package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/pagesmith/internal/job"
)

func task(id string) *Task {
	return &Task{ID: id, Job: job.Job{Identity: job.Identity{Email: "a@example.com", Task: id}, Round: 1}}
}

func TestQueueRunsTasks(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
		wg   sync.WaitGroup
	)
	wg.Add(3)
	q := New(10, 2, time.Second, HandlerFunc(func(_ context.Context, tk *Task) {
		mu.Lock()
		seen = append(seen, tk.ID)
		mu.Unlock()
		wg.Done()
	}))
	q.Start(context.Background())
	defer q.Stop(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(task(id)))
	}
	wg.Wait()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)
}

func TestQueueFullIsQueueError(t *testing.T) {
	q := New(1, 1, 0, HandlerFunc(func(context.Context, *Task) {}))
	// Not started: the buffer fills.
	require.NoError(t, q.Enqueue(task("a")))
	err := q.Enqueue(task("b"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryQueue))
	assert.Equal(t, 1, q.Length())
}

func TestQueueAppliesJobTimeout(t *testing.T) {
	done := make(chan error, 1)
	q := New(1, 1, 20*time.Millisecond, HandlerFunc(func(ctx context.Context, _ *Task) {
		<-ctx.Done()
		done <- ctx.Err()
	}))
	q.Start(context.Background())
	defer q.Stop(context.Background())

	require.NoError(t, q.Enqueue(task("slow")))
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("job timeout did not fire")
	}
}

func TestQueueActiveSnapshot(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	q := New(5, 1, 0, HandlerFunc(func(context.Context, *Task) {
		close(started)
		<-release
	}))
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(task("running")))
	<-started
	require.NoError(t, q.Enqueue(task("waiting")))

	active := q.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "running", active[0].ID)
	assert.Equal(t, StatusRunning, active[0].Status)
	assert.Equal(t, "worker-0", active[0].Worker)
	assert.Equal(t, StatusQueued, active[1].Status)

	close(release)
	q.Stop(context.Background())
}

func TestQueueStopCancelsAfterGrace(t *testing.T) {
	var canceled atomic.Bool
	started := make(chan struct{})
	q := New(1, 1, 0, HandlerFunc(func(ctx context.Context, _ *Task) {
		close(started)
		<-ctx.Done()
		canceled.Store(true)
	}))
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(task("stuck")))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	q.Stop(ctx)
	assert.True(t, canceled.Load())

	err := q.Enqueue(task("late"))
	require.Error(t, err)
}

type abortingHandler struct {
	started chan struct{}
	release chan struct{}

	mu      sync.Mutex
	handled []string
	aborted []string
	causes  []error
}

func (h *abortingHandler) Handle(_ context.Context, tk *Task) {
	h.mu.Lock()
	h.handled = append(h.handled, tk.ID)
	h.mu.Unlock()
	close(h.started)
	<-h.release
}

func (h *abortingHandler) Abort(_ context.Context, tk *Task, cause error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.aborted = append(h.aborted, tk.ID)
	h.causes = append(h.causes, cause)
}

func TestQueueStopAbortsQueuedTasks(t *testing.T) {
	h := &abortingHandler{started: make(chan struct{}), release: make(chan struct{})}
	q := New(5, 1, 0, h)
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(task("first")))
	<-h.started
	require.NoError(t, q.Enqueue(task("second")))
	require.NoError(t, q.Enqueue(task("third")))

	stopped := make(chan struct{})
	go func() {
		q.Stop(context.Background())
		close(stopped)
	}()
	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.aborted) == 2
	}, 2*time.Second, 5*time.Millisecond)
	close(h.release)
	<-stopped

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, []string{"first"}, h.handled)
	assert.Equal(t, []string{"second", "third"}, h.aborted)
	for _, cause := range h.causes {
		assert.True(t, errors.HasCategory(cause, errors.CategoryQueue))
	}
	assert.Equal(t, 0, q.Length())
	assert.Empty(t, q.Active())
}
