package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRingKeepsOnlyRecentSamples(t *testing.T) {
	c := NewCollector()

	// 50 slow jobs followed by enough fast ones to push them out of the
	// window entirely.
	for i := 0; i < 50; i++ {
		c.RecordJobExecution(1000*time.Millisecond, nil)
	}
	for i := 0; i < rollingSamples; i++ {
		c.RecordJobExecution(100*time.Millisecond, nil)
	}

	s := c.Summary()
	assert.Equal(t, int64(150), s.Jobs.Executions)
	assert.InDelta(t, 100, s.Jobs.AvgDurationMs, 0.001)
}

func TestRingPartialFill(t *testing.T) {
	c := NewCollector()
	c.RecordQuery(10*time.Millisecond, nil)
	c.RecordQuery(30*time.Millisecond, nil)

	s := c.Summary()
	assert.Equal(t, int64(2), s.Database.Queries)
	assert.InDelta(t, 20, s.Database.AvgDurationMs, 0.001)
}

func TestRequestCounters(t *testing.T) {
	c := NewCollector()

	c.RecordRequest("GET", 200, "GET /api/leads")
	c.RecordRequest("GET", 200, "GET /api/leads")
	c.RecordRequest("POST", 500, "POST /api/leads")
	c.RecordRequest("GET", 404, "GET /api/leads/:id")

	s := c.Summary()
	assert.Equal(t, int64(4), s.Requests.Total)
	assert.Equal(t, int64(3), s.Requests.ByMethod["GET"])
	assert.Equal(t, int64(2), s.Requests.ByStatusClass["2xx"])
	assert.Equal(t, int64(1), s.Requests.ByStatusClass["4xx"])
	assert.Equal(t, int64(1), s.Requests.ByStatusClass["5xx"])
	assert.InDelta(t, 50, s.Requests.ErrorRatePct, 0.001)
}

func TestEmailRates(t *testing.T) {
	c := NewCollector()

	for i := 0; i < 10; i++ {
		c.RecordEmailEvent(EmailSent)
	}
	for i := 0; i < 4; i++ {
		c.RecordEmailEvent(EmailOpened)
	}
	c.RecordEmailEvent(EmailClicked)
	c.RecordEmailEvent(EmailBounced)
	c.RecordEmailEvent("nonsense")

	s := c.Summary()
	assert.Equal(t, int64(10), s.Email.Sent)
	assert.Equal(t, int64(4), s.Email.Opened)
	assert.Equal(t, int64(1), s.Email.Clicked)
	assert.Equal(t, int64(1), s.Email.Bounced)
	assert.InDelta(t, 40, s.Email.OpenRatePct, 0.001)
	assert.InDelta(t, 10, s.Email.ClickRatePct, 0.001)
}

func TestCacheHitRate(t *testing.T) {
	c := NewCollector()

	hits, misses, rate := c.CacheCounts()
	assert.Zero(t, hits)
	assert.Zero(t, misses)
	assert.Zero(t, rate)

	c.RecordCacheHit()
	c.RecordCacheHit()
	c.RecordCacheHit()
	c.RecordCacheMiss()

	hits, misses, rate = c.CacheCounts()
	assert.Equal(t, int64(3), hits)
	assert.Equal(t, int64(1), misses)
	assert.InDelta(t, 75, rate, 0.001)
}

func TestJobFailuresCounted(t *testing.T) {
	c := NewCollector()

	c.RecordJobExecution(10*time.Millisecond, nil)
	c.RecordJobExecution(10*time.Millisecond, assert.AnError)

	s := c.Summary()
	assert.Equal(t, int64(2), s.Jobs.Executions)
	assert.Equal(t, int64(1), s.Jobs.Failures)
}

func TestReset(t *testing.T) {
	c := NewCollector()

	c.RecordRequest("GET", 200, "GET /api/leads")
	c.RecordCacheHit()
	c.RecordError("VALIDATION_ERROR")
	c.RecordJobExecution(time.Millisecond, nil)

	c.Reset()

	s := c.Summary()
	assert.Zero(t, s.Requests.Total)
	assert.Zero(t, s.Jobs.Executions)
	assert.Zero(t, s.Cache.Hits)
	assert.Empty(t, s.ErrorsByType)
}

func TestErrorsByType(t *testing.T) {
	c := NewCollector()

	c.RecordError("VALIDATION_ERROR")
	c.RecordError("VALIDATION_ERROR")
	c.RecordError("INTERNAL_SERVER_ERROR")

	s := c.Summary()
	assert.Equal(t, int64(2), s.ErrorsByType["VALIDATION_ERROR"])
	assert.Equal(t, int64(1), s.ErrorsByType["INTERNAL_SERVER_ERROR"])
}
