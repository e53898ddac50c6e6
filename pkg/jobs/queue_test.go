package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed int32
	done := make(chan struct{}, 3)
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})

	require.Error(t, q.Enqueue(Job{ID: "early"}))

	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job", Type: "credentials"}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&processed))
}

func TestQueueRetriesThenGivesUp(t *testing.T) {
	var mu sync.Mutex
	outcomes := []string{}
	finished := make(chan struct{})

	var attempts int32
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("smtp down")
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		OnResult: func(queue, jobType, outcome string) {
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
			if outcome == OutcomeFailed {
				close(finished)
			}
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "credentials"}))
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("job never failed permanently")
	}

	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{OutcomeRetry, OutcomeRetry, OutcomeFailed}, outcomes)
}

func TestQueueFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("mail", func(ctx context.Context, job Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop()
	}()

	require.NoError(t, q.Enqueue(Job{ID: "1"}))
	// wait for the worker to pick up the first job so the buffer is free again
	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(Job{ID: "2"}))
	assert.ErrorIs(t, q.Enqueue(Job{ID: "3"}), ErrQueueFull)
}
