package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"selfie-mailer/internal/models"
	"selfie-mailer/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// Submitter posts stills to a running server's /send-photo route
type Submitter struct {
	BaseURL string
	// Token is a session token or a Google access token
	Token   string
	Timeout time.Duration
	// Async asks the server to answer right after validation
	Async bool
}

type SubmitResult struct {
	Status   int
	Response models.SendPhotoResponse
	Err      error
}

type submitReply struct {
	models.SendPhotoResponse
	Error string `json:"error"`
	Step  string `json:"step"`
}

// Submit dispatches the still and returns at once. The single result arrives
// on the returned channel, which is then closed.
func (s *Submitter) Submit(still []byte, glyph string) <-chan SubmitResult {
	out := make(chan SubmitResult, 1)
	go func() {
		defer close(out)
		out <- s.post(still, glyph)
	}()
	return out
}

func (s *Submitter) post(still []byte, glyph string) SubmitResult {
	url := strings.TrimRight(s.BaseURL, "/") + "/send-photo"
	if s.Async {
		url += "?async=1"
	}

	a := fiber.Post(url)
	a.Set(fiber.HeaderAuthorization, "Bearer "+s.Token)
	a.JSON(models.SendPhotoRequest{ImageData: utils.EncodeImageDataURI(still), Emoji: glyph})
	if s.Timeout > 0 {
		a.Timeout(s.Timeout)
	}

	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return SubmitResult{Err: errors.Join(errs...)}
	}

	var reply submitReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return SubmitResult{Status: code, Err: fmt.Errorf("unexpected response (%d): %w", code, err)}
	}
	res := SubmitResult{Status: code, Response: reply.SendPhotoResponse}
	if code >= fiber.StatusBadRequest {
		msg := reply.Error
		if reply.Step != "" {
			msg += " (" + reply.Step + ")"
		}
		res.Err = fmt.Errorf("send-photo: %d %s", code, msg)
	}
	return res
}
