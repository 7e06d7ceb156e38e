package rest

import (
	"github.com/gofiber/fiber/v2"

	crmdomain "github.com/pulsecrm/pulse/crm/domain"
	"github.com/pulsecrm/pulse/pkg/metrics"
	"github.com/pulsecrm/pulse/pkg/utils"
	"github.com/pulsecrm/pulse/validations"
)

// Email receives delivery events from the transactional email provider's
// webhook. Delivery itself happens outside this service; only the event
// counters live here.
type Email struct {
	Collector *metrics.Collector
}

func InitRestEmail(app fiber.Router, collector *metrics.Collector, limiter fiber.Handler) Email {
	handler := Email{Collector: collector}

	app.Post("/email/events", limiter, handler.RecordEvent)

	return handler
}

func (h *Email) RecordEvent(c *fiber.Ctx) error {
	var request crmdomain.EmailEventRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: "Invalid request body",
		})
	}

	utils.PanicIfNeeded(validations.ValidateEmailEvent(c.UserContext(), request))

	h.Collector.RecordEmailEvent(request.Event)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Email event recorded",
	})
}
