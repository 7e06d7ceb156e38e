package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecrm/pulse/core/config"
)

func testApp(handler fiber.Handler, routes ...func(*fiber.App)) *fiber.App {
	app := fiber.New()
	app.Use(handler)
	if len(routes) == 0 {
		app.Get("/", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"ok": true})
		})
	}
	for _, r := range routes {
		r(app)
	}
	return app
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestLimiterAllowsUpToMax(t *testing.T) {
	rl := NewRateLimiter(context.Background(), true, nil)
	app := testApp(rl.Handler(LimitOptions{
		Window: time.Minute, Max: 3, Prefix: "test", Message: "Too many requests, please try again later",
	}))

	for i := 0; i < 3; i++ {
		resp := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "3", resp.Header.Get("X-RateLimit-Limit"))
	}

	resp := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body RateLimitBody
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, http.StatusTooManyRequests, body.StatusCode)
	assert.Equal(t, "Too many requests, please try again later", body.Message)
}

func TestLimiterResetsAfterWindow(t *testing.T) {
	rl := NewRateLimiter(context.Background(), true, nil)
	app := testApp(rl.Handler(LimitOptions{
		Window: 200 * time.Millisecond, Max: 1, Prefix: "short", Message: "slow down",
	}))

	resp := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	time.Sleep(250 * time.Millisecond)

	resp = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLimiterDisabledPassesThrough(t *testing.T) {
	rl := NewRateLimiter(context.Background(), false, nil)
	app := testApp(rl.Handler(LimitOptions{
		Window: time.Minute, Max: 1, Prefix: "off", Message: "never",
	}))

	for i := 0; i < 5; i++ {
		resp := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestAuthLimiterCountsOnlyFailures(t *testing.T) {
	rl := NewRateLimiter(context.Background(), true, nil)
	handler := rl.Handler(LimitOptions{
		Window: time.Minute, Max: 2, Prefix: "auth",
		Message:           "Too many login attempts, please try again later",
		CountFailuresOnly: true,
	})

	app := fiber.New()
	app.Use(handler)
	app.Post("/login", func(c *fiber.Ctx) error {
		if c.Get("X-Creds") == "good" {
			return c.JSON(fiber.Map{"ok": true})
		}
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"ok": false})
	})

	good := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.Header.Set("X-Creds", "good")
		return req
	}
	bad := func() *http.Request {
		return httptest.NewRequest(http.MethodPost, "/login", nil)
	}

	// Successful logins never consume budget.
	for i := 0; i < 5; i++ {
		resp := doRequest(t, app, good())
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := doRequest(t, app, bad())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = doRequest(t, app, bad())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Budget exhausted by failures: even valid credentials are refused now.
	resp = doRequest(t, app, good())
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	resp = doRequest(t, app, bad())
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestPerUserIdentitySeparatesBudgets(t *testing.T) {
	rl := NewRateLimiter(context.Background(), true, nil)
	handler := rl.Handler(LimitOptions{
		Window: time.Minute, Max: 1, Prefix: "wf", Message: "limit", PerUser: true,
	})

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("username", c.Get("X-User"))
		return c.Next()
	})
	app.Use(handler)
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	as := func(user string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User", user)
		return req
	}

	resp := doRequest(t, app, as("alice"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doRequest(t, app, as("alice"))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Bob still has his own budget.
	resp = doRequest(t, app, as("bob"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouteLimitersBuildFromConfig(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled: true,
		General: config.RouteLimit{Window: time.Minute, Max: 10, Message: "g"},
		Auth:    config.RouteLimit{Window: time.Minute, Max: 2, Message: "a"},
	}

	limiters := NewRouteLimiters(context.Background(), cfg, nil)
	require.NotNil(t, limiters.General)
	require.NotNil(t, limiters.Auth)
	require.NotNil(t, limiters.WorkflowTrigger)
	require.NotNil(t, limiters.EmailTrigger)
	require.NotNil(t, limiters.Upload)
	require.NotNil(t, limiters.BulkImport)

	app := testApp(limiters.General)
	resp := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "10", resp.Header.Get("X-RateLimit-Limit"))
}

func TestMemoryCounterFixedWindow(t *testing.T) {
	m := newMemoryCounter(context.Background())

	count, remaining := m.Incr("ip:1.2.3.4", time.Minute)
	assert.Equal(t, int64(1), count)
	assert.InDelta(t, time.Minute.Seconds(), remaining.Seconds(), 1)

	count, _ = m.Incr("ip:1.2.3.4", time.Minute)
	assert.Equal(t, int64(2), count)

	count, _ = m.Peek("ip:1.2.3.4", time.Minute)
	assert.Equal(t, int64(2), count)

	// Peek on a cold identity does not create state.
	count, _ = m.Peek("ip:9.9.9.9", time.Minute)
	assert.Zero(t, count)
}

func TestMemoryCounterStopsOnContextCancel(t *testing.T) {
	before := runtime.NumGoroutine()

	ctx, cancel := context.WithCancel(context.Background())
	counters := make([]*memoryCounter, 10)
	for i := range counters {
		counters[i] = newMemoryCounter(ctx)
	}
	cancel()

	// Every cleanup goroutine must exit once the context is cancelled.
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, time.Second, 10*time.Millisecond)
}
