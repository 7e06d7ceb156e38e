package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/pulsecrm/pulse/pkg/apperror"
	"github.com/pulsecrm/pulse/pkg/metrics"
	"github.com/pulsecrm/pulse/pkg/utils"
)

// Recovery converts panics into structured error responses. Typed apperror
// panics keep their status and code; anything else becomes a 500. Each
// recovered panic is counted by error code.
func Recovery(collector *metrics.Collector) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			err := recover()
			if err != nil {
				var res utils.ResponseData
				res.Status = 500
				res.Code = "INTERNAL_SERVER_ERROR"
				res.Message = fmt.Sprintf("%v", err)

				logrus.Errorf("Panic recovered in middleware: %v", err)

				if typed, ok := err.(apperror.GenericError); ok {
					res.Status = typed.StatusCode()
					res.Code = typed.ErrCode()
					res.Message = typed.Error()
				}

				if collector != nil {
					collector.RecordError(res.Code)
				}

				_ = ctx.Status(res.Status).JSON(res)
			}
		}()

		return ctx.Next()
	}
}
