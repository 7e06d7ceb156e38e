package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pulsecrm/pulse/crm/application"
	crmdomain "github.com/pulsecrm/pulse/crm/domain"
	"github.com/pulsecrm/pulse/pkg/apperror"
	"github.com/pulsecrm/pulse/pkg/utils"
	"github.com/pulsecrm/pulse/validations"
)

type Lead struct {
	Service *application.LeadService
}

func InitRestLead(app fiber.Router, service *application.LeadService, bulkImport fiber.Handler) Lead {
	handler := Lead{Service: service}

	group := app.Group("/leads")
	group.Get("/", handler.List)
	group.Post("/", handler.Save)
	group.Post("/import", bulkImport, handler.BulkImport)
	group.Get("/:id", handler.Get)
	group.Delete("/:id", handler.Delete)

	return handler
}

func (h *Lead) Get(c *fiber.Ctx) error {
	id := c.Params("id")
	lead, err := h.Service.GetLead(c.UserContext(), id)
	utils.PanicIfNeeded(err)

	if lead == nil {
		panic(apperror.NotFoundError("lead not found"))
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Lead retrieved",
		Results: lead,
	})
}

func (h *Lead) List(c *fiber.Ctx) error {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		panic(apperror.ValidationError("owner_id: cannot be blank"))
	}

	filters := map[string]string{}
	if stage := c.Query("stage"); stage != "" {
		filters["stage"] = stage
	}
	if search := c.Query("search"); search != "" {
		filters["search"] = search
	}

	leads, err := h.Service.ListLeads(c.UserContext(), ownerID, filters)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Leads retrieved",
		Results: leads,
	})
}

func (h *Lead) Save(c *fiber.Ctx) error {
	var request crmdomain.SaveLeadRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: "Invalid request body",
		})
	}

	utils.PanicIfNeeded(validations.ValidateSaveLead(c.UserContext(), request))

	lead := &crmdomain.Lead{
		ID:       request.ID,
		TenantID: request.TenantID,
		OwnerID:  request.OwnerID,
		Name:     request.Name,
		Email:    request.Email,
		Phone:    request.Phone,
		Stage:    request.Stage,
	}
	utils.PanicIfNeeded(h.Service.SaveLead(c.UserContext(), lead))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Lead saved",
		Results: lead,
	})
}

func (h *Lead) BulkImport(c *fiber.Ctx) error {
	var requests []crmdomain.SaveLeadRequest
	if err := c.BodyParser(&requests); err != nil {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: "Invalid request body, expected an array of leads",
		})
	}

	for _, request := range requests {
		utils.PanicIfNeeded(validations.ValidateSaveLead(c.UserContext(), request))
	}

	imported := 0
	for _, request := range requests {
		lead := &crmdomain.Lead{
			ID:       request.ID,
			TenantID: request.TenantID,
			OwnerID:  request.OwnerID,
			Name:     request.Name,
			Email:    request.Email,
			Phone:    request.Phone,
			Stage:    request.Stage,
		}
		utils.PanicIfNeeded(h.Service.SaveLead(c.UserContext(), lead))
		imported++
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Leads imported",
		Results: fiber.Map{"imported": imported},
	})
}

func (h *Lead) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	utils.PanicIfNeeded(h.Service.DeleteLead(c.UserContext(), id))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Lead deleted",
	})
}
