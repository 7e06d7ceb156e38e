package valkey

import (
	"context"
	"time"
)

// Counter implements fixed-window request counting on top of Valkey so that
// limits hold across every API process sharing the store. INCR is atomic on
// the server side; the expiry is attached when the window's first hit creates
// the key.
type Counter struct {
	client *Client
}

func NewCounter(client *Client) *Counter {
	return &Counter{client: client}
}

func (c *Counter) key(identity string) string {
	return c.client.Key("ratelimit", identity)
}

// Incr adds one hit to the identity's current window and returns the running
// count plus the time remaining until the window resets.
func (c *Counter) Incr(ctx context.Context, identity string, window time.Duration) (int64, time.Duration, error) {
	inner := c.client.Inner()
	k := c.key(identity)

	count, err := inner.Do(ctx, inner.B().Incr().Key(k).Build()).AsInt64()
	if err != nil {
		return 0, 0, err
	}

	// First hit of the window creates the key; give it the window's lifetime.
	// Millisecond precision keeps sub-second windows from collapsing to an
	// immediate expiry.
	if count == 1 {
		if err := inner.Do(ctx, inner.B().Pexpire().Key(k).Milliseconds(window.Milliseconds()).Build()).Error(); err != nil {
			return count, window, err
		}
		return count, window, nil
	}

	remaining, err := c.ttl(ctx, k, window)
	if err != nil {
		return count, window, err
	}
	return count, remaining, nil
}

// Peek reads the identity's current count without adding a hit. A missing key
// reads as zero.
func (c *Counter) Peek(ctx context.Context, identity string, window time.Duration) (int64, time.Duration, error) {
	inner := c.client.Inner()
	k := c.key(identity)

	count, err := inner.Do(ctx, inner.B().Get().Key(k).Build()).AsInt64()
	if err != nil {
		if IsNil(err) {
			return 0, window, nil
		}
		return 0, 0, err
	}

	remaining, err := c.ttl(ctx, k, window)
	if err != nil {
		return count, window, err
	}
	return count, remaining, nil
}

func (c *Counter) ttl(ctx context.Context, key string, window time.Duration) (time.Duration, error) {
	inner := c.client.Inner()
	ms, err := inner.Do(ctx, inner.B().Pttl().Key(key).Build()).AsInt64()
	if err != nil {
		return window, err
	}
	// -1 (no expiry) or -2 (missing) both mean a fresh window next hit.
	if ms < 0 {
		return window, nil
	}
	return time.Duration(ms) * time.Millisecond, nil
}
