package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"selfie-mailer/internal/models"
	"selfie-mailer/internal/services"
	"selfie-mailer/internal/storage"
	"selfie-mailer/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

var testJPEG = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

type stubMailbox struct {
	mu         sync.Mutex
	email      string
	profileErr error
	sendErr    error
	sent       int
}

func (m *stubMailbox) Profile(context.Context) (*models.MailboxProfile, error) {
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	return &models.MailboxProfile{EmailAddress: m.email, MessagesTotal: 3}, nil
}

func (m *stubMailbox) Labels(context.Context) ([]models.Label, error) {
	return nil, nil
}

func (m *stubMailbox) RecentMessages(context.Context, int64) ([]models.MessageSummary, error) {
	return []models.MessageSummary{{ID: "m1", Subject: "hi"}}, nil
}

func (m *stubMailbox) SendRaw(context.Context, []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent++
	return nil
}

func (m *stubMailbox) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

type fixedCaption string

func (c fixedCaption) Caption(context.Context, string) string { return string(c) }

type recordedWriter struct {
	mu       sync.Mutex
	payloads []interface{}
	err      error
}

func (w *recordedWriter) WriteJSON(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.payloads = append(w.payloads, v)
	return nil
}

func (w *recordedWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.payloads)
}

type harness struct {
	app     *fiber.App
	mailbox *stubMailbox
	records services.RecordStore
	hub     *StatusHub
}

func newHarness(t *testing.T, admins ...string) *harness {
	t.Helper()
	objects, err := storage.NewLocalStore(t.TempDir(), "http://localhost:3001")
	require.NoError(t, err)
	sessions, err := services.NewSessionService("test-secret", time.Hour)
	require.NoError(t, err)

	h := &harness{
		mailbox: &stubMailbox{email: "me@x.com"},
		records: services.NewDocumentRecordStore(objects),
		hub:     NewStatusHub(),
	}
	mailboxes := func(context.Context, string) (services.Mailbox, error) { return h.mailbox, nil }
	capture := services.NewCaptureService(mailboxes, objects, fixedCaption("Nice hat."), h.records,
		services.NewPhotoMailer(""), h.hub)

	auth := AuthMiddleware(sessions)
	app := fiber.New()
	app.Get("/profile", auth, ProfileHandler(mailboxes))
	app.Get("/labels", auth, LabelsHandler(mailboxes))
	app.Get("/messages", auth, MessagesHandler(mailboxes))
	app.Post("/send-photo", auth, SendPhotoHandler(capture))
	app.Get("/admin/photos", auth, IdentityMiddleware(mailboxes), AdminOnly(admins), AdminPhotosHandler(h.records))
	h.app = app
	return h
}

func (h *harness) do(t *testing.T, method, target, body string, authed bool) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer ya29.google-token")
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func photoBody(emoji string) string {
	b, _ := json.Marshal(models.SendPhotoRequest{ImageData: utils.EncodeImageDataURI(testJPEG), Emoji: emoji})
	return string(b)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	h := newHarness(t)
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/profile"},
		{http.MethodGet, "/labels"},
		{http.MethodGet, "/messages"},
		{http.MethodPost, "/send-photo"},
		{http.MethodGet, "/admin/photos"},
	} {
		status, body := h.do(t, route.method, route.path, "", false)
		assert.Equal(t, http.StatusUnauthorized, status, route.path)
		assert.Equal(t, "Unauthorized", body["error"], route.path)
	}
}

func TestAuthMiddlewareAcceptsSessionCookie(t *testing.T) {
	sessions, err := services.NewSessionService("test-secret", time.Hour)
	require.NoError(t, err)
	signed, _, err := sessions.Issue("ya29.inner", time.Now().Add(time.Hour))
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/whoami", AuthMiddleware(sessions), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(localAccessToken).(string))
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: signed})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ya29.inner", string(raw))
}

func TestGmailRoutes(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, http.MethodGet, "/profile", "", true)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "me@x.com", body["emailAddress"])

	status, body = h.do(t, http.MethodGet, "/labels", "", true)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []interface{}{}, body["labels"])

	status, body = h.do(t, http.MethodGet, "/messages", "", true)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, body["messages"], 1)
}

func TestProfileRejectedTokenIsUnauthorized(t *testing.T) {
	h := newHarness(t)
	h.mailbox.profileErr = &googleapi.Error{Code: http.StatusUnauthorized}

	status, _ := h.do(t, http.MethodGet, "/profile", "", true)
	assert.Equal(t, http.StatusUnauthorized, status)

	h.mailbox.profileErr = errors.New("connection reset")
	status, body := h.do(t, http.MethodGet, "/profile", "", true)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Failed to fetch profile", body["error"])
}

func TestSendPhoto(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, http.MethodPost, "/send-photo", photoBody("🔥"), true)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Photo sent successfully!", body["message"])
	assert.Equal(t, "me@x.com", body["recipient"])
	assert.NotEmpty(t, body["capture_id"])
	assert.Equal(t, 1, h.mailbox.sentCount())

	photos, err := h.records.List(context.Background())
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, "🔥", photos[0].Emoji)
	assert.Equal(t, "Nice hat.", photos[0].AIComment)
}

func TestSendPhotoValidation(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, http.MethodPost, "/send-photo", `{"imageData":""}`, true)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, services.ErrNoImage.Error(), body["error"])

	status, _ = h.do(t, http.MethodPost, "/send-photo", `{"imageData":"data:image/jpeg;base64,@@@"}`, true)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = h.do(t, http.MethodPost, "/send-photo", `not json`, true)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid request", body["error"])

	assert.Zero(t, h.mailbox.sentCount())
}

func TestSendPhotoEmailFailure(t *testing.T) {
	h := newHarness(t)
	h.mailbox.sendErr = errors.New("quota exceeded")

	status, body := h.do(t, http.MethodPost, "/send-photo", photoBody(""), true)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Failed to send photo email", body["error"])
	assert.Equal(t, services.StepEmail, body["step"])

	// the record survives a failed email
	photos, _ := h.records.List(context.Background())
	assert.Len(t, photos, 1)
}

func TestSendPhotoRejectedToken(t *testing.T) {
	h := newHarness(t)
	h.mailbox.profileErr = &googleapi.Error{Code: http.StatusUnauthorized}

	status, _ := h.do(t, http.MethodPost, "/send-photo", photoBody(""), true)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSendPhotoAsync(t *testing.T) {
	h := newHarness(t)
	w := &recordedWriter{}
	h.hub.Register("me@x.com", "c1", w)

	status, body := h.do(t, http.MethodPost, "/send-photo?async=1", photoBody("😎"), true)
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, true, body["success"])
	captureID, _ := body["capture_id"].(string)
	require.NotEmpty(t, captureID)

	assert.Eventually(t, func() bool { return h.mailbox.sentCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		if len(w.payloads) != 2 {
			return false
		}
		last := w.payloads[1].(models.StatusEvent)
		return last.Event == models.EventCaptureDelivered && last.CaptureID == captureID
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAdminPhotos(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, http.MethodGet, "/admin/photos", "", true)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []interface{}{}, body["photos"])

	_, err := h.records.Append(context.Background(), models.RecordInput{UserEmail: "a@x.com", ImageURL: "u", AIComment: "c"})
	require.NoError(t, err)
	status, body = h.do(t, http.MethodGet, "/admin/photos", "", true)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, body["photos"], 1)
}

func TestAdminOnly(t *testing.T) {
	h := newHarness(t, "boss@x.com")
	status, body := h.do(t, http.MethodGet, "/admin/photos", "", true)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Forbidden", body["error"])

	h = newHarness(t, "ME@x.com")
	status, _ = h.do(t, http.MethodGet, "/admin/photos", "", true)
	assert.Equal(t, http.StatusOK, status)
}

func TestStatusHub(t *testing.T) {
	hub := NewStatusHub()
	a, b, other := &recordedWriter{}, &recordedWriter{err: errors.New("closed")}, &recordedWriter{}
	hub.Register("me@x.com", "a", a)
	hub.Register("me@x.com", "b", b)
	hub.Register("you@x.com", "c", other)
	assert.Equal(t, 2, hub.CountConnections("me@x.com"))

	hub.Notify("me@x.com", models.StatusEvent{Event: models.EventCaptureAccepted, CaptureID: "id"})

	// Unregister waits for queued events to be written
	hub.Unregister("me@x.com", "a")
	hub.Unregister("me@x.com", "b")
	assert.Zero(t, hub.CountConnections("me@x.com"))
	assert.Equal(t, 1, a.count())
	assert.False(t, hub.Send("me@x.com", "a", "late"))

	hub.Unregister("you@x.com", "c")
	assert.Zero(t, other.count())

	// no listeners is fine
	hub.Notify("nobody@x.com", models.StatusEvent{Event: models.EventCaptureFailed})
}

type blockingWriter struct {
	release   chan struct{}
	deadlines int32
}

func (w *blockingWriter) WriteJSON(interface{}) error {
	<-w.release
	return nil
}

func (w *blockingWriter) SetWriteDeadline(time.Time) error {
	atomic.AddInt32(&w.deadlines, 1)
	return nil
}

func TestStatusHubStalledSocketDoesNotBlockNotify(t *testing.T) {
	hub := NewStatusHub()
	stalled := &blockingWriter{release: make(chan struct{})}
	healthy := &recordedWriter{}
	hub.Register("slow@x.com", "s", stalled)
	hub.Register("b@x.com", "h", healthy)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < sendBuffer*2; i++ {
			hub.Notify("slow@x.com", models.StatusEvent{Event: models.EventCaptureAccepted})
		}
		hub.Notify("b@x.com", models.StatusEvent{Event: models.EventCaptureDelivered})
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked behind a stalled socket")
	}

	// the stalled queue is full, further events are dropped
	assert.False(t, hub.Send("slow@x.com", "s", "more"))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&stalled.deadlines) > 0 }, time.Second, 5*time.Millisecond)

	hub.Unregister("b@x.com", "h")
	assert.Equal(t, 1, healthy.count())

	close(stalled.release)
	hub.Unregister("slow@x.com", "s")
	assert.Zero(t, hub.CountConnections("slow@x.com"))
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	sessions, err := services.NewSessionService("test-secret", time.Hour)
	require.NoError(t, err)
	oauth := services.NewGoogleOAuthConfig("id", "secret", "http://localhost:3001")

	app := fiber.New()
	app.Get("/auth/login", LoginHandler(oauth))
	app.Get("/auth/callback", CallbackHandler(oauth, sessions))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/auth/login", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "accounts.google.com")

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?state=forged&code=x", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "real"})
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
