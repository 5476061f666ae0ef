package handlers

import (
	"net/http"

	"selfie-mailer/internal/models"
	"selfie-mailer/internal/services"
	"selfie-mailer/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// AdminPhotosHandler lists every capture record, newest first
func AdminPhotosHandler(records services.RecordStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		photos, err := records.List(c.UserContext())
		if err != nil {
			utils.LogError(err, "ListPhotos")
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch photos"})
		}
		if photos == nil {
			photos = []models.CaptureRecord{}
		}
		return c.JSON(models.PhotosResponse{Photos: photos})
	}
}
