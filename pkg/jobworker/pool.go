package jobworker

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// WorkflowJob is one unit of background automation work (a workflow run, a
// campaign send step). Jobs for the same workflow are serialized; jobs for
// different workflows run in parallel.
type WorkflowJob struct {
	TenantID   string
	WorkflowID string
	Handler    func(ctx context.Context) error
}

// PoolStats is a point-in-time snapshot of the pool.
type PoolStats struct {
	NumWorkers      int           `json:"num_workers"`
	QueueSize       int           `json:"queue_size"`
	ActiveWorkers   int           `json:"active_workers"`
	TotalDispatched int64         `json:"total_dispatched"`
	TotalProcessed  int64         `json:"total_processed"`
	TotalDropped    int64         `json:"total_dropped"`
	TotalErrors     int64         `json:"total_errors"`
	WorkerStats     []WorkerStats `json:"worker_stats"`
}

type WorkerStats struct {
	WorkerID      int   `json:"worker_id"`
	QueueDepth    int   `json:"queue_depth"`
	IsProcessing  bool  `json:"is_processing"`
	JobsProcessed int64 `json:"jobs_processed"`
}

// Pool runs workflow jobs on a fixed set of workers. Each job is routed to a
// worker by hashing (tenant, workflow), which guarantees per-workflow ordering
// without any cross-worker coordination.
type Pool struct {
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopped    int32

	totalDispatched int64
	totalProcessed  int64
	totalDropped    int64
	totalErrors     int64

	// OnJobDone reports each finished job to an external observer (the
	// metrics collector). Optional.
	OnJobDone func(duration time.Duration, err error)
}

type worker struct {
	id            int
	jobQueue      chan WorkflowJob
	ctx           context.Context
	cancel        context.CancelFunc
	isProcessing  int32
	jobsProcessed int64
	pool          *Pool
}

func NewPool(numWorkers, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 10
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Pool{
		numWorkers: numWorkers,
		queueSize:  queueSize,
		workers:    make([]*worker, numWorkers),
	}
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		w := &worker{
			id:       i,
			jobQueue: make(chan WorkflowJob, p.queueSize),
			ctx:      workerCtx,
			cancel:   cancel,
			pool:     p,
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(&p.wg)
	}

	logrus.Infof("[JobWorker] Started with %d workers, queue size: %d", p.numWorkers, p.queueSize)
}

// TryDispatch routes a job to its worker without blocking and reports whether
// it was enqueued, so HTTP endpoints can apply backpressure.
func (p *Pool) TryDispatch(job WorkflowJob) bool {
	if atomic.LoadInt32(&p.stopped) == 1 {
		atomic.AddInt64(&p.totalDropped, 1)
		return false
	}

	shard := p.shardFor(job.TenantID, job.WorkflowID)
	atomic.AddInt64(&p.totalDispatched, 1)

	sent := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				ok = false
			}
		}()
		select {
		case p.workers[shard].jobQueue <- job:
			return true
		default:
			return false
		}
	}()

	if sent {
		return true
	}

	atomic.AddInt64(&p.totalDropped, 1)
	logrus.Warnf("[JobWorker] Worker %d queue full (or stopped), dropping job for %s|%s",
		shard, job.TenantID, job.WorkflowID)
	return false
}

// Dispatch routes a job without reporting the outcome.
func (p *Pool) Dispatch(job WorkflowJob) {
	_ = p.TryDispatch(job)
}

// Stop drains and stops all workers.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		atomic.StoreInt32(&p.stopped, 1)
		logrus.Info("[JobWorker] Stopping workers...")

		for _, w := range p.workers {
			w.cancel()
			close(w.jobQueue)
		}

		p.wg.Wait()

		logrus.Info("[JobWorker] All workers stopped")
	})
}

func (p *Pool) shardFor(tenantID, workflowID string) int {
	h := fnv.New32a()
	h.Write([]byte(tenantID + "|" + workflowID))
	return int(h.Sum32() % uint32(p.numWorkers))
}

// GetStats returns real-time pool statistics.
func (p *Pool) GetStats() PoolStats {
	workerStats := make([]WorkerStats, len(p.workers))
	activeWorkers := 0

	for i, w := range p.workers {
		isProcessing := atomic.LoadInt32(&w.isProcessing) == 1
		if isProcessing {
			activeWorkers++
		}
		workerStats[i] = WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.jobQueue),
			IsProcessing:  isProcessing,
			JobsProcessed: atomic.LoadInt64(&w.jobsProcessed),
		}
	}

	return PoolStats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		ActiveWorkers:   activeWorkers,
		TotalDispatched: atomic.LoadInt64(&p.totalDispatched),
		TotalProcessed:  atomic.LoadInt64(&p.totalProcessed),
		TotalDropped:    atomic.LoadInt64(&p.totalDropped),
		TotalErrors:     atomic.LoadInt64(&p.totalErrors),
		WorkerStats:     workerStats,
	}
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	logrus.Debugf("[JobWorker] Worker %d started", w.id)

	for {
		select {
		case job, ok := <-w.jobQueue:
			if !ok {
				logrus.Debugf("[JobWorker] Worker %d shutting down", w.id)
				return
			}
			w.process(job)
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *worker) process(job WorkflowJob) {
	atomic.StoreInt32(&w.isProcessing, 1)
	defer atomic.StoreInt32(&w.isProcessing, 0)

	start := time.Now()
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				logrus.Errorf("[JobWorker] Worker %d panicked on %s|%s: %v",
					w.id, job.TenantID, job.WorkflowID, r)
				atomic.AddInt64(&w.pool.totalErrors, 1)
			}
		}()
		err = job.Handler(w.ctx)
	}()
	elapsed := time.Since(start)

	if err != nil {
		atomic.AddInt64(&w.pool.totalErrors, 1)
		logrus.Warnf("[JobWorker] Job %s|%s failed after %s: %v",
			job.TenantID, job.WorkflowID, elapsed, err)
	}

	atomic.AddInt64(&w.jobsProcessed, 1)
	atomic.AddInt64(&w.pool.totalProcessed, 1)

	if w.pool.OnJobDone != nil {
		w.pool.OnJobDone(elapsed, err)
	}
}
