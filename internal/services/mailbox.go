package services

import (
	"context"
	"encoding/base64"
	"strings"

	"selfie-mailer/internal/models"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Mailbox is the caller's own mail account: identity lookup, read-only views
// and raw message submission.
type Mailbox interface {
	Profile(ctx context.Context) (*models.MailboxProfile, error)
	Labels(ctx context.Context) ([]models.Label, error)
	RecentMessages(ctx context.Context, max int64) ([]models.MessageSummary, error)
	SendRaw(ctx context.Context, raw []byte) error
}

// MailboxFactory opens the mailbox that belongs to an OAuth access token
type MailboxFactory func(ctx context.Context, accessToken string) (Mailbox, error)

type GmailMailbox struct {
	svc *gmail.Service
}

// NewGmailMailbox authenticates every call with the given access token.
// Extra options are appended (tests point the endpoint at a local server).
func NewGmailMailbox(ctx context.Context, accessToken string, opts ...option.ClientOption) (*GmailMailbox, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	svc, err := gmail.NewService(ctx, append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &GmailMailbox{svc: svc}, nil
}

// GmailMailboxFactory adapts NewGmailMailbox to MailboxFactory
func GmailMailboxFactory(opts ...option.ClientOption) MailboxFactory {
	return func(ctx context.Context, accessToken string) (Mailbox, error) {
		return NewGmailMailbox(ctx, accessToken, opts...)
	}
}

func (m *GmailMailbox) Profile(ctx context.Context) (*models.MailboxProfile, error) {
	p, err := m.svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return &models.MailboxProfile{
		EmailAddress:  p.EmailAddress,
		MessagesTotal: p.MessagesTotal,
		ThreadsTotal:  p.ThreadsTotal,
		HistoryID:     p.HistoryId,
	}, nil
}

func (m *GmailMailbox) Labels(ctx context.Context) ([]models.Label, error) {
	resp, err := m.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	labels := make([]models.Label, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		labels = append(labels, models.Label{ID: l.Id, Name: l.Name, Type: l.Type})
	}
	return labels, nil
}

// RecentMessages lists the newest messages and fetches their headers concurrently
func (m *GmailMailbox) RecentMessages(ctx context.Context, max int64) ([]models.MessageSummary, error) {
	list, err := m.svc.Users.Messages.List("me").MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	summaries := make([]models.MessageSummary, len(list.Messages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(5)
	for i, ref := range list.Messages {
		i, id := i, ref.Id
		g.Go(func() error {
			msg, err := m.svc.Users.Messages.Get("me", id).
				Format("metadata").
				MetadataHeaders("Subject", "From", "Date").
				Context(gctx).Do()
			if err != nil {
				return err
			}
			summaries[i] = summarize(msg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (m *GmailMailbox) SendRaw(ctx context.Context, raw []byte) error {
	_, err := m.svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	return err
}

func summarize(msg *gmail.Message) models.MessageSummary {
	s := models.MessageSummary{ID: msg.Id, Snippet: msg.Snippet}
	if msg.Payload == nil {
		return s
	}
	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			s.Subject = h.Value
		case "from":
			s.From = h.Value
		case "date":
			s.Date = h.Value
		}
	}
	return s
}
