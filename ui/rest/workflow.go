package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pulsecrm/pulse/crm/application"
	crmdomain "github.com/pulsecrm/pulse/crm/domain"
	"github.com/pulsecrm/pulse/pkg/apperror"
	"github.com/pulsecrm/pulse/pkg/utils"
	"github.com/pulsecrm/pulse/validations"
)

type Workflow struct {
	Service *application.WorkflowService
}

func InitRestWorkflow(app fiber.Router, service *application.WorkflowService, trigger fiber.Handler) Workflow {
	handler := Workflow{Service: service}

	group := app.Group("/workflows")
	group.Post("/", handler.Save)
	group.Get("/pool/stats", handler.PoolStats)
	group.Get("/:id", handler.Get)
	group.Post("/:id/trigger", trigger, handler.Trigger)

	return handler
}

func (h *Workflow) Save(c *fiber.Ctx) error {
	var wf crmdomain.Workflow
	if err := c.BodyParser(&wf); err != nil {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: "Invalid request body",
		})
	}

	utils.PanicIfNeeded(validations.ValidateSaveWorkflow(c.UserContext(), wf))
	utils.PanicIfNeeded(h.Service.SaveWorkflow(c.UserContext(), &wf))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Workflow saved",
		Results: wf,
	})
}

func (h *Workflow) Get(c *fiber.Ctx) error {
	wf, err := h.Service.GetWorkflow(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	if wf == nil {
		panic(apperror.NotFoundError("workflow not found"))
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Workflow retrieved",
		Results: wf,
	})
}

func (h *Workflow) Trigger(c *fiber.Ctx) error {
	id := c.Params("id")

	accepted, err := h.Service.Trigger(c.UserContext(), id)
	utils.PanicIfNeeded(err)

	if !accepted {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.ResponseData{
			Status:  503,
			Code:    "POOL_SATURATED",
			Message: "Workflow queue is full, try again shortly",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(utils.ResponseData{
		Status:  202,
		Code:    "ACCEPTED",
		Message: "Workflow run queued",
	})
}

func (h *Workflow) PoolStats(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Worker pool stats retrieved",
		Results: h.Service.PoolStats(),
	})
}
