package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// rollingSamples holds the last N duration samples in a ring so averages
// reflect recent behavior instead of the whole process lifetime.
const rollingSamples = 100

// EmailEvent kinds accepted by RecordEmailEvent.
const (
	EmailSent    = "sent"
	EmailOpened  = "opened"
	EmailClicked = "clicked"
	EmailBounced = "bounced"
)

type ring struct {
	samples [rollingSamples]float64
	idx     int
	count   int
}

func (r *ring) add(v float64) {
	r.samples[r.idx] = v
	r.idx = (r.idx + 1) % rollingSamples
	if r.count < rollingSamples {
		r.count++
	}
}

func (r *ring) average() float64 {
	if r.count == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < r.count; i++ {
		sum += r.samples[i]
	}
	return sum / float64(r.count)
}

// Collector keeps in-process counters for requests, workflow-job executions,
// email events, cache hits/misses, data-layer queries and errors. It has no
// external dependencies; a periodic task logs the summary for operational
// visibility.
type Collector struct {
	mu        sync.Mutex
	startTime time.Time

	requestsTotal      int64
	requestsByMethod   map[string]int64
	requestsByClass    map[string]int64
	requestsByEndpoint map[string]int64

	jobExecutions int64
	jobFailures   int64
	jobDurations  ring

	emailSent    int64
	emailOpened  int64
	emailClicked int64
	emailBounced int64

	cacheHits   int64
	cacheMisses int64

	queryCount     int64
	queryErrors    int64
	queryDurations ring

	errorsByType map[string]int64
}

func NewCollector() *Collector {
	c := &Collector{}
	c.resetLocked()
	return c
}

func (c *Collector) resetLocked() {
	c.startTime = time.Now().UTC()
	c.requestsTotal = 0
	c.requestsByMethod = make(map[string]int64)
	c.requestsByClass = make(map[string]int64)
	c.requestsByEndpoint = make(map[string]int64)
	c.jobExecutions = 0
	c.jobFailures = 0
	c.jobDurations = ring{}
	c.emailSent = 0
	c.emailOpened = 0
	c.emailClicked = 0
	c.emailBounced = 0
	c.cacheHits = 0
	c.cacheMisses = 0
	c.queryCount = 0
	c.queryErrors = 0
	c.queryDurations = ring{}
	c.errorsByType = make(map[string]int64)
}

// Reset clears all counters and restarts the uptime clock.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Collector) RecordRequest(method string, statusCode int, endpoint string) {
	class := fmt.Sprintf("%dxx", statusCode/100)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestsTotal++
	c.requestsByMethod[method]++
	c.requestsByClass[class]++
	c.requestsByEndpoint[endpoint]++
}

func (c *Collector) RecordJobExecution(duration time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobExecutions++
	if err != nil {
		c.jobFailures++
	}
	c.jobDurations.add(float64(duration.Milliseconds()))
}

func (c *Collector) RecordEmailEvent(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch kind {
	case EmailSent:
		c.emailSent++
	case EmailOpened:
		c.emailOpened++
	case EmailClicked:
		c.emailClicked++
	case EmailBounced:
		c.emailBounced++
	}
}

func (c *Collector) RecordCacheHit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheHits++
}

func (c *Collector) RecordCacheMiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheMisses++
}

// CacheCounts returns hits, misses and the derived hit rate percentage.
func (c *Collector) CacheCounts() (int64, int64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.cacheHits + c.cacheMisses
	if total == 0 {
		return c.cacheHits, c.cacheMisses, 0
	}
	return c.cacheHits, c.cacheMisses, float64(c.cacheHits) / float64(total) * 100
}

func (c *Collector) RecordQuery(duration time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queryCount++
	if err != nil {
		c.queryErrors++
	}
	c.queryDurations.add(float64(duration.Milliseconds()))
}

func (c *Collector) RecordError(errType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorsByType[errType]++
}

type RequestSummary struct {
	Total         int64            `json:"total"`
	ByMethod      map[string]int64 `json:"by_method"`
	ByStatusClass map[string]int64 `json:"by_status_class"`
	ByEndpoint    map[string]int64 `json:"by_endpoint"`
	ErrorRatePct  float64          `json:"error_rate_pct"`
}

type JobSummary struct {
	Executions    int64   `json:"executions"`
	Failures      int64   `json:"failures"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

type EmailSummary struct {
	Sent         int64   `json:"sent"`
	Opened       int64   `json:"opened"`
	Clicked      int64   `json:"clicked"`
	Bounced      int64   `json:"bounced"`
	OpenRatePct  float64 `json:"open_rate_pct"`
	ClickRatePct float64 `json:"click_rate_pct"`
}

type CacheSummary struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRatePct float64 `json:"hit_rate_pct"`
}

type DatabaseSummary struct {
	Queries       int64   `json:"queries"`
	Errors        int64   `json:"errors"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

type Summary struct {
	Uptime        string           `json:"uptime"`
	UptimeSeconds float64          `json:"uptime_seconds"`
	Requests      RequestSummary   `json:"requests"`
	Jobs          JobSummary       `json:"jobs"`
	Email         EmailSummary     `json:"email"`
	Cache         CacheSummary     `json:"cache"`
	Database      DatabaseSummary  `json:"database"`
	ErrorsByType  map[string]int64 `json:"errors_by_type"`
}

// Summary derives percentages and formatted uptime on read; raw counters are
// left untouched.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	s := Summary{
		Uptime:        humanize.RelTime(c.startTime, now, "", ""),
		UptimeSeconds: now.Sub(c.startTime).Seconds(),
		Requests: RequestSummary{
			Total:         c.requestsTotal,
			ByMethod:      copyCounts(c.requestsByMethod),
			ByStatusClass: copyCounts(c.requestsByClass),
			ByEndpoint:    copyCounts(c.requestsByEndpoint),
		},
		Jobs: JobSummary{
			Executions:    c.jobExecutions,
			Failures:      c.jobFailures,
			AvgDurationMs: c.jobDurations.average(),
		},
		Email: EmailSummary{
			Sent:    c.emailSent,
			Opened:  c.emailOpened,
			Clicked: c.emailClicked,
			Bounced: c.emailBounced,
		},
		Cache: CacheSummary{
			Hits:   c.cacheHits,
			Misses: c.cacheMisses,
		},
		Database: DatabaseSummary{
			Queries:       c.queryCount,
			Errors:        c.queryErrors,
			AvgDurationMs: c.queryDurations.average(),
		},
		ErrorsByType: copyCounts(c.errorsByType),
	}

	if c.requestsTotal > 0 {
		errored := c.requestsByClass["4xx"] + c.requestsByClass["5xx"]
		s.Requests.ErrorRatePct = float64(errored) / float64(c.requestsTotal) * 100
	}
	if c.emailSent > 0 {
		s.Email.OpenRatePct = float64(c.emailOpened) / float64(c.emailSent) * 100
		s.Email.ClickRatePct = float64(c.emailClicked) / float64(c.emailSent) * 100
	}
	if total := c.cacheHits + c.cacheMisses; total > 0 {
		s.Cache.HitRatePct = float64(c.cacheHits) / float64(total) * 100
	}

	return s
}

// StartPeriodicLogging logs the summary at a fixed interval until ctx is
// cancelled. Purely a side effect for operators watching the logs.
func (c *Collector) StartPeriodicLogging(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := c.Summary()
				logrus.WithFields(logrus.Fields{
					"uptime":         s.Uptime,
					"requests":       s.Requests.Total,
					"error_rate_pct": s.Requests.ErrorRatePct,
					"jobs":           s.Jobs.Executions,
					"job_failures":   s.Jobs.Failures,
					"cache_hit_pct":  s.Cache.HitRatePct,
					"db_queries":     s.Database.Queries,
					"db_errors":      s.Database.Errors,
				}).Info("[Metrics] periodic summary")
			}
		}
	}()
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
