package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"selfie-mailer/internal/models"
	"selfie-mailer/internal/storage"
	"selfie-mailer/internal/utils"

	"github.com/google/uuid"
)

// Pipeline steps, in execution order
const (
	StepProfile = "profile"
	StepUpload  = "upload"
	StepCaption = "caption"
	StepRecord  = "record"
	StepEmail   = "email"
)

const maxGlyphRunes = 8

var (
	ErrNoImage      = errors.New("no image data provided")
	ErrInvalidImage = errors.New("image data is not valid base64")
	ErrInvalidGlyph = errors.New("emoji must be a single glyph")
)

// StepError names the pipeline step that failed
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Notifier receives capture status events for a user. Delivery is best effort.
type Notifier interface {
	Notify(email string, event models.StatusEvent)
}

type CaptureRequest struct {
	AccessToken string
	ImageData   string
	Emoji       string
	// CaptureID correlates status events; generated when empty
	CaptureID string
}

type CaptureResult struct {
	CaptureID string
	Recipient string
	Record    *models.CaptureRecord
}

// CaptureService runs the capture-to-delivery pipeline:
// profile -> upload -> caption -> record -> email, strictly in sequence.
type CaptureService struct {
	mailboxes MailboxFactory
	objects   storage.ObjectStore
	captioner Captioner
	records   RecordStore
	mailer    *PhotoMailer
	notifier  Notifier
	now       func() time.Time
}

func NewCaptureService(mailboxes MailboxFactory, objects storage.ObjectStore, captioner Captioner,
	records RecordStore, mailer *PhotoMailer, notifier Notifier) *CaptureService {
	return &CaptureService{
		mailboxes: mailboxes,
		objects:   objects,
		captioner: captioner,
		records:   records,
		mailer:    mailer,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Validate checks the request payload without calling any upstream and
// returns the decoded image.
func (s *CaptureService) Validate(req CaptureRequest) ([]byte, error) {
	if strings.TrimSpace(req.ImageData) == "" {
		return nil, ErrNoImage
	}
	image, err := utils.DecodeImageDataURI(req.ImageData)
	if errors.Is(err, utils.ErrEmptyPayload) {
		return nil, ErrNoImage
	}
	if err != nil {
		return nil, ErrInvalidImage
	}
	if utf8.RuneCountInString(normalizeGlyph(req.Emoji)) > maxGlyphRunes {
		return nil, ErrInvalidGlyph
	}
	return image, nil
}

// Submit runs the whole pipeline. A failed email does not undo the upload or
// the record. Retrying a failed submission uploads, records and mails again.
func (s *CaptureService) Submit(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	image, err := s.Validate(req)
	if err != nil {
		return nil, err
	}
	glyph := normalizeGlyph(req.Emoji)
	captureID := req.CaptureID
	if captureID == "" {
		captureID = uuid.New().String()
	}

	// 1. identity
	mailbox, err := s.mailboxes(ctx, req.AccessToken)
	if err != nil {
		return nil, &StepError{Step: StepProfile, Err: err}
	}
	profile, err := mailbox.Profile(ctx)
	if err != nil {
		return nil, &StepError{Step: StepProfile, Err: err}
	}
	email := profile.EmailAddress
	if email == "" {
		return nil, &StepError{Step: StepProfile, Err: errors.New("profile has no email address")}
	}
	res := &CaptureResult{CaptureID: captureID, Recipient: email}
	s.notify(email, models.StatusEvent{Event: models.EventCaptureAccepted, CaptureID: captureID})

	fail := func(step string, err error) (*CaptureResult, error) {
		s.notify(email, models.StatusEvent{
			Event:     models.EventCaptureFailed,
			CaptureID: captureID,
			Step:      step,
			Error:     err.Error(),
		})
		return res, &StepError{Step: step, Err: err}
	}

	// 2. upload
	imageURL, err := s.objects.Put(ctx, storage.SelfieKey(s.now(), email), image, "image/jpeg")
	if err != nil {
		return fail(StepUpload, err)
	}
	log.Printf("Uploaded to object store: %s", imageURL)

	// 3. caption, never fatal
	caption := s.captioner.Caption(ctx, imageURL)
	if strings.TrimSpace(caption) == "" {
		caption = FallbackCaption
	}
	log.Printf("AI Comment: %s", caption)

	// 4. record
	rec, err := s.records.Append(ctx, models.RecordInput{
		UserEmail: email,
		ImageURL:  imageURL,
		AIComment: caption,
		Emoji:     glyph,
	})
	if err != nil {
		return fail(StepRecord, err)
	}
	res.Record = rec

	// 5. email
	if err := s.mailer.Send(ctx, mailbox, email, caption, glyph, image); err != nil {
		return fail(StepEmail, err)
	}

	s.notify(email, models.StatusEvent{
		Event:     models.EventCaptureDelivered,
		CaptureID: captureID,
		RecordID:  rec.ID,
		Recipient: email,
	})
	return res, nil
}

func (s *CaptureService) notify(email string, event models.StatusEvent) {
	if s.notifier == nil {
		return
	}
	event.Timestamp = s.now().UnixMilli()
	s.notifier.Notify(email, event)
}

func normalizeGlyph(g string) string {
	return strings.TrimSpace(g)
}
