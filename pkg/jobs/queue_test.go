package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	attempts map[string]int
	done     chan string
	failures map[string]int
}

func newRecorder() *recorder {
	return &recorder{
		attempts: make(map[string]int),
		failures: make(map[string]int),
		done:     make(chan string, 16),
	}
}

func (r *recorder) handle(ctx context.Context, job Job) error {
	r.mu.Lock()
	r.attempts[job.ID]++
	failLeft := r.failures[job.ID]
	if failLeft > 0 {
		r.failures[job.ID]--
	}
	r.mu.Unlock()

	if failLeft > 0 {
		return errors.New("transient failure")
	}
	r.done <- job.ID
	return nil
}

func (r *recorder) attemptCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts[id]
}

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		require.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for job %s", want)
	}
}

func TestQueueProcessesJobs(t *testing.T) {
	rec := newRecorder()
	q := NewQueue("test", rec.handle, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j1", Path: "a.txt"}))
	require.NoError(t, q.Enqueue(Job{ID: "j2", Path: "b.txt"}))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-rec.done:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	assert.True(t, seen["j1"])
	assert.True(t, seen["j2"])
}

func TestQueueRetriesFailedJob(t *testing.T) {
	rec := newRecorder()
	rec.failures["flaky"] = 2

	q := NewQueue("test", rec.handle, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "flaky", Path: "c.txt"}))
	waitFor(t, rec.done, "flaky")
	assert.Equal(t, 3, rec.attemptCount("flaky"))
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	rec := newRecorder()
	q := NewQueue("test", rec.handle, QueueConfig{})

	err := q.Enqueue(Job{ID: "early"})
	require.Error(t, err)
}

func TestQueueStopDrainsWorkers(t *testing.T) {
	rec := newRecorder()
	q := NewQueue("test", rec.handle, QueueConfig{Workers: 1})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "j1"}))
	waitFor(t, rec.done, "j1")
	q.Stop()

	err := q.Enqueue(Job{ID: "late"})
	require.Error(t, err)
}
