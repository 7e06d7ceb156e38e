package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pulsecrm/pulse/pkg/metrics"
	"github.com/pulsecrm/pulse/pkg/utils"
)

type Metrics struct {
	Collector *metrics.Collector
}

func InitRestMetrics(app fiber.Router, collector *metrics.Collector) Metrics {
	handler := Metrics{Collector: collector}

	group := app.Group("/metrics")
	group.Get("/summary", handler.GetSummary)
	group.Post("/reset", handler.Reset)

	return handler
}

func (h *Metrics) GetSummary(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Metrics summary retrieved",
		Results: h.Collector.Summary(),
	})
}

func (h *Metrics) Reset(c *fiber.Ctx) error {
	h.Collector.Reset()
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Metrics reset successfully",
	})
}
