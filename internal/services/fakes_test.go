package services

import (
	"context"
	"sync"

	"selfie-mailer/internal/models"
	"selfie-mailer/internal/storage"
)

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  map[string]error
	getErr  error
	puts    int
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, putErr: map[string]error{}}
}

func (m *memObjects) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for prefix, err := range m.putErr {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			return "", err
		}
	}
	m.puts++
	m.objects[key] = append([]byte(nil), body...)
	return m.URL(key), nil
}

func (m *memObjects) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	b, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return b, nil
}

func (m *memObjects) URL(key string) string {
	return "https://bucket.s3.us-east-1.amazonaws.com/" + key
}

type fakeMailbox struct {
	mu         sync.Mutex
	email      string
	profileErr error
	sendErr    error
	sent       [][]byte
}

func (f *fakeMailbox) Profile(context.Context) (*models.MailboxProfile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return &models.MailboxProfile{EmailAddress: f.email}, nil
}

func (f *fakeMailbox) Labels(context.Context) ([]models.Label, error) {
	return []models.Label{{ID: "INBOX", Name: "INBOX"}}, nil
}

func (f *fakeMailbox) RecentMessages(context.Context, int64) ([]models.MessageSummary, error) {
	return nil, nil
}

func (f *fakeMailbox) SendRaw(_ context.Context, raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, raw)
	return nil
}

func (f *fakeMailbox) factory() MailboxFactory {
	return func(context.Context, string) (Mailbox, error) { return f, nil }
}

type fixedCaptioner string

func (c fixedCaptioner) Caption(context.Context, string) string { return string(c) }

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.StatusEvent
	emails []string
}

func (n *recordingNotifier) Notify(email string, e models.StatusEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, email)
	n.events = append(n.events, e)
}

func (n *recordingNotifier) names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, e := range n.events {
		out = append(out, e.Event)
	}
	return out
}
