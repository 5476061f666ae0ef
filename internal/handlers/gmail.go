package handlers

import (
	"selfie-mailer/internal/models"
	"selfie-mailer/internal/services"

	"github.com/gofiber/fiber/v2"
)

const recentMessageCount = 10

// ProfileHandler returns the mailbox profile of the signed-in user
func ProfileHandler(mailboxes services.MailboxFactory) fiber.Handler {
	return func(c *fiber.Ctx) error {
		mb, err := mailboxFor(c, mailboxes)
		if err != nil {
			return upstreamError(c, err, "Failed to fetch profile")
		}
		profile, err := mb.Profile(c.UserContext())
		if err != nil {
			return upstreamError(c, err, "Failed to fetch profile")
		}
		return c.JSON(profile)
	}
}

func LabelsHandler(mailboxes services.MailboxFactory) fiber.Handler {
	return func(c *fiber.Ctx) error {
		mb, err := mailboxFor(c, mailboxes)
		if err != nil {
			return upstreamError(c, err, "Failed to fetch labels")
		}
		labels, err := mb.Labels(c.UserContext())
		if err != nil {
			return upstreamError(c, err, "Failed to fetch labels")
		}
		if labels == nil {
			labels = []models.Label{}
		}
		return c.JSON(fiber.Map{"labels": labels})
	}
}

// MessagesHandler returns the most recent messages with subject/from/date
func MessagesHandler(mailboxes services.MailboxFactory) fiber.Handler {
	return func(c *fiber.Ctx) error {
		mb, err := mailboxFor(c, mailboxes)
		if err != nil {
			return upstreamError(c, err, "Failed to fetch messages")
		}
		messages, err := mb.RecentMessages(c.UserContext(), recentMessageCount)
		if err != nil {
			return upstreamError(c, err, "Failed to fetch messages")
		}
		if messages == nil {
			messages = []models.MessageSummary{}
		}
		return c.JSON(fiber.Map{"messages": messages})
	}
}
