package jobworker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolProcessesJobs(t *testing.T) {
	pool := NewPool(4, 16)
	pool.Start(context.Background())
	defer pool.Stop()

	var processed int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		ok := pool.TryDispatch(WorkflowJob{
			TenantID:   "t1",
			WorkflowID: string(rune('a' + i%5)),
			Handler: func(ctx context.Context) error {
				defer wg.Done()
				atomic.AddInt64(&processed, 1)
				return nil
			},
		})
		require.True(t, ok)
	}

	wg.Wait()
	assert.Equal(t, int64(20), atomic.LoadInt64(&processed))

	stats := pool.GetStats()
	assert.Equal(t, int64(20), stats.TotalDispatched)
	assert.Equal(t, int64(20), stats.TotalProcessed)
	assert.Zero(t, stats.TotalDropped)
}

func TestSameWorkflowIsSequential(t *testing.T) {
	pool := NewPool(8, 64)
	pool.Start(context.Background())
	defer pool.Stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		require.True(t, pool.TryDispatch(WorkflowJob{
			TenantID:   "t1",
			WorkflowID: "wf-ordered",
			Handler: func(ctx context.Context) error {
				defer wg.Done()
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			},
		}))
	}

	wg.Wait()
	require.Len(t, order, 10)
	for i, v := range order {
		assert.Equal(t, i, v, "jobs for one workflow must run in dispatch order")
	}
}

func TestTryDispatchBackpressure(t *testing.T) {
	pool := NewPool(1, 1)
	pool.Start(context.Background())
	defer pool.Stop()

	block := make(chan struct{})
	var wg sync.WaitGroup

	// First job occupies the worker, second fills the queue.
	wg.Add(1)
	require.True(t, pool.TryDispatch(WorkflowJob{
		TenantID: "t1", WorkflowID: "wf",
		Handler: func(ctx context.Context) error {
			defer wg.Done()
			<-block
			return nil
		},
	}))
	time.Sleep(20 * time.Millisecond)
	require.True(t, pool.TryDispatch(WorkflowJob{
		TenantID: "t1", WorkflowID: "wf",
		Handler: func(ctx context.Context) error { return nil },
	}))

	// Queue is full now; dispatch must refuse instead of blocking.
	assert.False(t, pool.TryDispatch(WorkflowJob{
		TenantID: "t1", WorkflowID: "wf",
		Handler: func(ctx context.Context) error { return nil },
	}))

	close(block)
	wg.Wait()

	stats := pool.GetStats()
	assert.Equal(t, int64(1), stats.TotalDropped)
}

func TestOnJobDoneObserver(t *testing.T) {
	pool := NewPool(2, 8)

	var mu sync.Mutex
	var durations int
	var failures int

	pool.OnJobDone = func(duration time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		durations++
		if err != nil {
			failures++
		}
	}
	pool.Start(context.Background())
	defer pool.Stop()

	var wg sync.WaitGroup
	wg.Add(2)
	pool.Dispatch(WorkflowJob{
		TenantID: "t1", WorkflowID: "good",
		Handler: func(ctx context.Context) error {
			defer wg.Done()
			return nil
		},
	})
	pool.Dispatch(WorkflowJob{
		TenantID: "t1", WorkflowID: "bad",
		Handler: func(ctx context.Context) error {
			defer wg.Done()
			return assert.AnError
		},
	})

	wg.Wait()
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return durations == 2 && failures == 1
	}, time.Second, 10*time.Millisecond)
}

func TestDispatchAfterStopIsDropped(t *testing.T) {
	pool := NewPool(2, 8)
	pool.Start(context.Background())
	pool.Stop()

	assert.False(t, pool.TryDispatch(WorkflowJob{
		TenantID: "t1", WorkflowID: "wf",
		Handler: func(ctx context.Context) error { return nil },
	}))
}

func TestPanickingJobDoesNotKillWorker(t *testing.T) {
	pool := NewPool(1, 8)
	pool.Start(context.Background())
	defer pool.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	pool.Dispatch(WorkflowJob{
		TenantID: "t1", WorkflowID: "wf",
		Handler: func(ctx context.Context) error {
			defer wg.Done()
			panic("boom")
		},
	})
	wg.Wait()

	// The worker must survive and keep processing.
	done := make(chan struct{})
	require.True(t, pool.TryDispatch(WorkflowJob{
		TenantID: "t1", WorkflowID: "wf",
		Handler: func(ctx context.Context) error {
			close(done)
			return nil
		},
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not recover after a panicking job")
	}

	assert.GreaterOrEqual(t, pool.GetStats().TotalErrors, int64(1))
}
