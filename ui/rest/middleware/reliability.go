package middleware

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pulsecrm/pulse/pkg/metrics"
	"github.com/pulsecrm/pulse/reliability/application"
)

// Reliability measures every request, feeds the outcome into the monitor and
// the metrics collector, and tags JSON object responses with a `_reliability`
// block describing the health context the response was produced under.
// The envelope is rebuilt explicitly rather than patched in place; consumers
// must treat the field as additive.
func Reliability(monitor *application.Monitor, collector *metrics.Collector, serverID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		endpoint := c.Method() + " " + c.Route().Path

		status := c.Response().StatusCode()
		errMessage := ""
		if err != nil {
			status = fiber.StatusInternalServerError
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				status = fiberErr.Code
			}
			errMessage = err.Error()
		}
		success := err == nil && status < 400

		monitor.RecordRequest(endpoint, elapsed, success, errMessage)
		if collector != nil {
			collector.RecordRequest(c.Method(), status, endpoint)
		}

		if err != nil {
			return err
		}

		// Only JSON object bodies get annotated; arrays, files and
		// error-handler output pass through untouched.
		contentType := string(c.Response().Header.ContentType())
		if !strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) {
			return nil
		}
		body := c.Response().Body()
		if len(body) == 0 || body[0] != '{' {
			return nil
		}

		var envelope map[string]any
		if jsonErr := json.Unmarshal(body, &envelope); jsonErr != nil {
			return nil
		}
		envelope["_reliability"] = monitor.Annotate(endpoint, elapsed, serverID)

		annotated, jsonErr := json.Marshal(envelope)
		if jsonErr != nil {
			return nil
		}
		c.Response().SetBodyRaw(annotated)
		return nil
	}
}
