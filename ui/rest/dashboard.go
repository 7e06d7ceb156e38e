package rest

import (
	"github.com/gofiber/fiber/v2"

	cachedomain "github.com/pulsecrm/pulse/cache/domain"
	"github.com/pulsecrm/pulse/crm/application"
	"github.com/pulsecrm/pulse/pkg/apperror"
	"github.com/pulsecrm/pulse/pkg/utils"
)

type Dashboard struct {
	Service *application.DashboardService
}

func InitRestDashboard(app fiber.Router, service *application.DashboardService) Dashboard {
	handler := Dashboard{Service: service}

	app.Get("/dashboard/:userId", handler.Get)

	return handler
}

func (h *Dashboard) Get(c *fiber.Ctx) error {
	userID := c.Params("userId")

	tier := cachedomain.Tier(c.Query("tier", string(cachedomain.TierRealtime)))
	if !tier.Valid() {
		panic(apperror.ValidationError("tier: must be one of realtime, hourly, daily"))
	}
	timeRange := c.Query("range", "7d")

	snapshot, err := h.Service.GetDashboard(c.UserContext(), userID, tier, timeRange)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Dashboard retrieved",
		Results: snapshot,
	})
}
