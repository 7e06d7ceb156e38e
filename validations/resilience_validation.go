package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	cachedomain "github.com/pulsecrm/pulse/cache/domain"
	crmdomain "github.com/pulsecrm/pulse/crm/domain"
	"github.com/pulsecrm/pulse/pkg/apperror"
)

// ozzo formats failures into field-level detail lists ("user_id: cannot be
// blank; tier: must be a valid value"), which is what reaches the client
// inside the validation error.

func ValidateInvalidateDashboard(ctx context.Context, request cachedomain.InvalidateDashboardRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.UserID, validation.Required),
		validation.Field(&request.Tier, validation.In("realtime", "hourly", "daily")),
	)

	if err != nil {
		return apperror.ValidationError(err.Error())
	}

	return nil
}

func ValidateSaveLead(ctx context.Context, request crmdomain.SaveLeadRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.TenantID, validation.Required),
		validation.Field(&request.OwnerID, validation.Required),
		validation.Field(&request.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&request.Email, is.EmailFormat),
	)

	if err != nil {
		return apperror.ValidationError(err.Error())
	}

	return nil
}

func ValidateSaveWorkflow(ctx context.Context, request crmdomain.Workflow) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.TenantID, validation.Required),
		validation.Field(&request.OwnerID, validation.Required),
		validation.Field(&request.Name, validation.Required, validation.Length(1, 255)),
	)

	if err != nil {
		return apperror.ValidationError(err.Error())
	}

	return nil
}

func ValidateEmailEvent(ctx context.Context, request crmdomain.EmailEventRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Event, validation.Required,
			validation.In("sent", "opened", "clicked", "bounced")),
	)

	if err != nil {
		return apperror.ValidationError(err.Error())
	}

	return nil
}
