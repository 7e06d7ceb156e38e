package rest

import (
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pulsecrm/pulse/pkg/apperror"
	"github.com/pulsecrm/pulse/pkg/utils"
)

// Upload stores attachments (import CSVs, email assets) on local disk under
// the storages directory.
type Upload struct {
	Dir string
}

func InitRestUpload(app fiber.Router, storageDir string, limiter fiber.Handler) Upload {
	handler := Upload{Dir: filepath.Join(storageDir, "uploads")}

	app.Post("/uploads", limiter, handler.Save)

	return handler
}

func (h *Upload) Save(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		panic(apperror.ValidationError("file: multipart field is required"))
	}

	if err := os.MkdirAll(h.Dir, 0o755); err != nil {
		panic(apperror.InternalServerError("failed to prepare upload directory"))
	}

	name := uuid.NewString() + filepath.Ext(file.Filename)
	dest := filepath.Join(h.Dir, name)
	utils.PanicIfNeeded(c.SaveFile(file, dest))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "File uploaded",
		Results: fiber.Map{
			"file_id":       name,
			"original_name": file.Filename,
			"size":          file.Size,
		},
	})
}
