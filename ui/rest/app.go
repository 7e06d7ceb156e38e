package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pulsecrm/pulse/core/config"
	"github.com/pulsecrm/pulse/pkg/utils"
)

type App struct {
	ServerID string
}

func InitRestApp(app fiber.Router, serverID string) App {
	handler := App{ServerID: serverID}

	group := app.Group("/app")
	group.Get("/info", handler.Info)
	group.Get("/settings", handler.Settings)

	return handler
}

func (h *App) Info(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Application info retrieved",
		Results: fiber.Map{
			"version":     config.Global.App.Version,
			"environment": config.Global.App.Environment,
			"server_id":   h.ServerID,
		},
	})
}

func (h *App) Settings(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Settings retrieved",
		Results: config.GetAllSettings(),
	})
}
