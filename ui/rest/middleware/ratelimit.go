package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/pulsecrm/pulse/core/config"
)

// CounterStore is the shared fixed-window counter backend. The Valkey
// implementation makes limits hold across all API processes; when it is
// absent or failing, counting falls back to this process's memory and the
// limit becomes process-local. That weakening is deliberate: degraded
// infrastructure must never take request handling down with it.
type CounterStore interface {
	Incr(ctx context.Context, identity string, window time.Duration) (int64, time.Duration, error)
	Peek(ctx context.Context, identity string, window time.Duration) (int64, time.Duration, error)
}

// RateLimitBody is the fixed 429 response shape.
type RateLimitBody struct {
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// LimitOptions configures one route group's limiter.
type LimitOptions struct {
	Window  time.Duration
	Max     int
	Prefix  string
	Message string
	// PerUser keys the counter on the authenticated user when present,
	// falling back to the network address.
	PerUser bool
	// CountFailuresOnly records a hit only when the request ultimately
	// failed. Used on authentication routes so legitimate repeated logins
	// from shared networks are not penalized while credential guessing
	// still trips the limit.
	CountFailuresOnly bool
}

// RateLimiter builds independent limiter middleware instances per logical
// route group over one shared counter backend.
type RateLimiter struct {
	enabled bool
	store   CounterStore
	memory  *memoryCounter
}

// NewRateLimiter builds the limiter. ctx bounds the fallback counter's
// cleanup goroutine to the application lifetime.
func NewRateLimiter(ctx context.Context, enabled bool, store CounterStore) *RateLimiter {
	if store == nil {
		logrus.Warn("[RateLimit] no shared counter store configured; limits are per-process only")
	}
	return &RateLimiter{
		enabled: enabled,
		store:   store,
		memory:  newMemoryCounter(ctx),
	}
}

// RouteLimiters holds one handler per logical route group.
type RouteLimiters struct {
	General         fiber.Handler
	Auth            fiber.Handler
	WorkflowTrigger fiber.Handler
	EmailTrigger    fiber.Handler
	Upload          fiber.Handler
	BulkImport      fiber.Handler
}

// NewRouteLimiters builds all route-group limiters from configuration.
func NewRouteLimiters(ctx context.Context, cfg config.RateLimitConfig, store CounterStore) *RouteLimiters {
	rl := NewRateLimiter(ctx, cfg.Enabled, store)
	return &RouteLimiters{
		General: rl.Handler(LimitOptions{
			Window: cfg.General.Window, Max: cfg.General.Max,
			Prefix: "general", Message: cfg.General.Message,
		}),
		Auth: rl.Handler(LimitOptions{
			Window: cfg.Auth.Window, Max: cfg.Auth.Max,
			Prefix: "auth", Message: cfg.Auth.Message,
			CountFailuresOnly: true,
		}),
		WorkflowTrigger: rl.Handler(LimitOptions{
			Window: cfg.WorkflowTrigger.Window, Max: cfg.WorkflowTrigger.Max,
			Prefix: "workflow", Message: cfg.WorkflowTrigger.Message,
			PerUser: true,
		}),
		EmailTrigger: rl.Handler(LimitOptions{
			Window: cfg.EmailTrigger.Window, Max: cfg.EmailTrigger.Max,
			Prefix: "email", Message: cfg.EmailTrigger.Message,
			PerUser: true,
		}),
		Upload: rl.Handler(LimitOptions{
			Window: cfg.Upload.Window, Max: cfg.Upload.Max,
			Prefix: "upload", Message: cfg.Upload.Message,
			PerUser: true,
		}),
		BulkImport: rl.Handler(LimitOptions{
			Window: cfg.BulkImport.Window, Max: cfg.BulkImport.Max,
			Prefix: "bulk", Message: cfg.BulkImport.Message,
			PerUser: true,
		}),
	}
}

// Handler builds the fiber middleware for one route group.
func (rl *RateLimiter) Handler(opts LimitOptions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rl.enabled || opts.Max <= 0 {
			return c.Next()
		}

		identity := opts.Prefix + ":" + rl.identityFor(c, opts.PerUser)

		if opts.CountFailuresOnly {
			count, remaining := rl.peek(c.UserContext(), identity, opts.Window)
			setRateLimitHeaders(c, opts.Max, count, remaining)
			if count >= int64(opts.Max) {
				return reject(c, opts, remaining)
			}

			err := c.Next()
			if err != nil || c.Response().StatusCode() >= 400 {
				rl.incr(c.UserContext(), identity, opts.Window)
			}
			return err
		}

		count, remaining := rl.incr(c.UserContext(), identity, opts.Window)
		setRateLimitHeaders(c, opts.Max, count, remaining)
		if count > int64(opts.Max) {
			return reject(c, opts, remaining)
		}
		return c.Next()
	}
}

func (rl *RateLimiter) identityFor(c *fiber.Ctx, perUser bool) string {
	if perUser {
		if user, ok := c.Locals("username").(string); ok && user != "" {
			return "user:" + user
		}
	}
	return "ip:" + c.IP()
}

// incr counts one hit, preferring the shared store. A store failure downgrades
// to the in-memory counter for this request instead of propagating.
func (rl *RateLimiter) incr(ctx context.Context, identity string, window time.Duration) (int64, time.Duration) {
	if rl.store != nil {
		count, remaining, err := rl.store.Incr(ctx, identity, window)
		if err == nil {
			return count, remaining
		}
		logrus.Warnf("[RateLimit] store incr failed, falling back to memory: %v", err)
	}
	return rl.memory.Incr(identity, window)
}

func (rl *RateLimiter) peek(ctx context.Context, identity string, window time.Duration) (int64, time.Duration) {
	if rl.store != nil {
		count, remaining, err := rl.store.Peek(ctx, identity, window)
		if err == nil {
			return count, remaining
		}
		logrus.Warnf("[RateLimit] store peek failed, falling back to memory: %v", err)
	}
	return rl.memory.Peek(identity, window)
}

// setRateLimitHeaders attaches the standard headers on every response,
// throttled or not.
func setRateLimitHeaders(c *fiber.Ctx, max int, count int64, remaining time.Duration) {
	left := int64(max) - count
	if left < 0 {
		left = 0
	}
	c.Set("X-RateLimit-Limit", strconv.Itoa(max))
	c.Set("X-RateLimit-Remaining", strconv.FormatInt(left, 10))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(int64(remaining.Seconds()+0.5), 10))
}

func reject(c *fiber.Ctx, opts LimitOptions, remaining time.Duration) error {
	c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", int64(remaining.Seconds()+0.5)))
	return c.Status(fiber.StatusTooManyRequests).JSON(RateLimitBody{
		Status:     "error",
		StatusCode: fiber.StatusTooManyRequests,
		Message:    opts.Message,
	})
}
