package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pulsecrm/pulse/cache/application"
	cachedomain "github.com/pulsecrm/pulse/cache/domain"
	"github.com/pulsecrm/pulse/pkg/utils"
	"github.com/pulsecrm/pulse/validations"
)

type Cache struct {
	Service *application.Service
}

func InitRestCache(app fiber.Router, service *application.Service) Cache {
	handler := Cache{Service: service}

	group := app.Group("/cache")
	group.Get("/stats", handler.GetStats)
	group.Post("/flush", handler.Flush)
	group.Post("/dashboard/invalidate", handler.InvalidateDashboard)

	return handler
}

func (h *Cache) GetStats(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache stats retrieved",
		Results: h.Service.Stats(c.UserContext()),
	})
}

func (h *Cache) Flush(c *fiber.Ctx) error {
	err := h.Service.Flush(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache flushed successfully",
	})
}

func (h *Cache) InvalidateDashboard(c *fiber.Ctx) error {
	var request cachedomain.InvalidateDashboardRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: "Invalid request body",
		})
	}

	utils.PanicIfNeeded(validations.ValidateInvalidateDashboard(c.UserContext(), request))

	if request.Tier != "" {
		h.Service.InvalidateUserDashboardTier(c.UserContext(), request.UserID, cachedomain.Tier(request.Tier))
	} else {
		h.Service.InvalidateUserDashboard(c.UserContext(), request.UserID)
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Dashboard cache invalidated",
	})
}
