package handlers

import (
	"context"
	"errors"
	"net/http"

	"selfie-mailer/internal/models"
	"selfie-mailer/internal/services"
	"selfie-mailer/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SendPhotoHandler runs the capture pipeline for the signed-in user.
// With ?async=1 it answers 202 right after validation and reports the
// outcome over the status socket instead.
func SendPhotoHandler(capture *services.CaptureService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body models.SendPhotoRequest
		if err := c.BodyParser(&body); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}

		token, _ := c.Locals(localAccessToken).(string)
		req := services.CaptureRequest{
			AccessToken: token,
			ImageData:   body.ImageData,
			Emoji:       body.Emoji,
			CaptureID:   uuid.New().String(),
		}
		if _, err := capture.Validate(req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		if c.QueryBool("async") {
			go func() {
				// the request context ends with this handler
				if _, err := capture.Submit(context.Background(), req); err != nil {
					utils.LogError(err, "SendPhoto")
				}
			}()
			return c.Status(http.StatusAccepted).JSON(models.SendPhotoResponse{
				Success:   true,
				Message:   "Photo is being processed and will be sent to your email shortly!",
				CaptureID: req.CaptureID,
			})
		}

		res, err := capture.Submit(c.UserContext(), req)
		if err != nil {
			return captureError(c, err)
		}
		return c.JSON(models.SendPhotoResponse{
			Success:   true,
			Message:   "Photo sent successfully!",
			Recipient: res.Recipient,
			CaptureID: res.CaptureID,
		})
	}
}

func captureError(c *fiber.Ctx, err error) error {
	utils.LogError(err, "SendPhoto")
	switch {
	case errors.Is(err, services.ErrNoImage),
		errors.Is(err, services.ErrInvalidImage),
		errors.Is(err, services.ErrInvalidGlyph):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var stepErr *services.StepError
	if errors.As(err, &stepErr) {
		if stepErr.Step == services.StepProfile && isAuthError(stepErr.Err) {
			return unauthorized(c)
		}
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to send photo email",
			"step":  stepErr.Step,
		})
	}
	return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to send photo email"})
}
