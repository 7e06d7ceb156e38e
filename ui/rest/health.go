package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pulsecrm/pulse/pkg/utils"
	"github.com/pulsecrm/pulse/reliability/application"
	"github.com/pulsecrm/pulse/reliability/domain"
)

type Health struct {
	Monitor *application.Monitor
}

func InitRestHealth(app fiber.Router, monitor *application.Monitor) Health {
	handler := Health{Monitor: monitor}

	group := app.Group("/health")
	group.Get("/status", handler.GetStatus)
	group.Get("/endpoints", handler.GetEndpoints)
	group.Post("/check", handler.RunCheck)

	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Health status retrieved",
		Results: fiber.Map{
			"health": h.Monitor.Health(),
			"api":    h.Monitor.APIHealth(),
		},
	})
}

type endpointReport struct {
	domain.EndpointStats
	Status domain.Status `json:"status"`
}

func (h *Health) GetEndpoints(c *fiber.Ctx) error {
	stats := h.Monitor.EndpointStats()
	reports := make([]endpointReport, 0, len(stats))
	for _, s := range stats {
		reports = append(reports, endpointReport{
			EndpointStats: s,
			Status:        h.Monitor.EndpointStatus(s.Endpoint),
		})
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Endpoint statistics retrieved",
		Results: reports,
	})
}

func (h *Health) RunCheck(c *fiber.Ctx) error {
	h.Monitor.RunHealthCheck(c.UserContext())
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Health check executed",
		Results: h.Monitor.Health(),
	})
}
