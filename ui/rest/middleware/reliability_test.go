package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecrm/pulse/pkg/metrics"
	"github.com/pulsecrm/pulse/reliability/application"
)

func TestReliabilityAnnotatesJSONObjects(t *testing.T) {
	monitor := application.NewMonitor(nil)
	collector := metrics.NewCollector()

	app := fiber.New()
	app.Use(Reliability(monitor, collector, "pulse-test"))
	app.Get("/api/leads", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": 200, "message": "ok"})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/leads", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "ok", body["message"], "original fields must survive")

	rel, ok := body["_reliability"].(map[string]any)
	require.True(t, ok, "response must carry the _reliability block")
	assert.Equal(t, "GET /api/leads", rel["endpoint"])
	assert.Equal(t, "success", rel["status"])
	assert.Equal(t, "pulse-test", rel["server_id"])
	assert.Contains(t, rel, "response_time_ms")
	assert.Contains(t, rel, "database_status")
	assert.Contains(t, rel, "api_status")
}

func TestReliabilityLeavesArraysAlone(t *testing.T) {
	monitor := application.NewMonitor(nil)

	app := fiber.New()
	app.Use(Reliability(monitor, nil, ""))
	app.Get("/api/list", func(c *fiber.Ctx) error {
		return c.JSON([]string{"a", "b"})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/list", nil))
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(raw))
}

func TestReliabilityFeedsMonitorAndCollector(t *testing.T) {
	monitor := application.NewMonitor(nil)
	collector := metrics.NewCollector()

	app := fiber.New()
	app.Use(Reliability(monitor, collector, ""))
	app.Get("/api/ok", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	app.Get("/api/boom", func(c *fiber.Ctx) error {
		return fiber.NewError(http.StatusBadGateway, "upstream died")
	})

	for i := 0; i < 3; i++ {
		_, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/ok", nil))
		require.NoError(t, err)
	}
	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/boom", nil))
	require.NoError(t, err)

	stats := monitor.EndpointStats()
	byEndpoint := map[string]int64{}
	var failures int64
	for _, s := range stats {
		byEndpoint[s.Endpoint] = s.TotalRequests
		failures += s.FailedRequests
	}
	assert.Equal(t, int64(3), byEndpoint["GET /api/ok"])
	assert.Equal(t, int64(1), byEndpoint["GET /api/boom"])
	assert.Equal(t, int64(1), failures)

	summary := collector.Summary()
	assert.Equal(t, int64(4), summary.Requests.Total)
	assert.Equal(t, int64(3), summary.Requests.ByStatusClass["2xx"])
	assert.Equal(t, int64(1), summary.Requests.ByStatusClass["5xx"])
}
