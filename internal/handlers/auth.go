package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"selfie-mailer/internal/services"
	"selfie-mailer/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

const (
	SessionCookie = "session"
	stateCookie   = "oauth_state"

	localAccessToken = "access_token"
	localSessionID   = "session_id"
	localEmail       = "email"
	localMailbox     = "mailbox"
)

func unauthorized(c *fiber.Ctx) error {
	return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
}

// AuthMiddleware accepts a session cookie, a session token as Bearer, or a
// raw Google access token as Bearer, and stores the access token in locals.
func AuthMiddleware(sessions *services.SessionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cookie := c.Cookies(SessionCookie); cookie != "" {
			if sess, err := sessions.Parse(cookie); err == nil {
				c.Locals(localAccessToken, sess.AccessToken)
				c.Locals(localSessionID, sess.ID)
				return c.Next()
			}
		}

		var token string
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			token = strings.Clone(strings.TrimSpace(authHeader[7:]))
		}
		if token == "" {
			return unauthorized(c)
		}

		if sess, err := sessions.Parse(token); err == nil {
			c.Locals(localAccessToken, sess.AccessToken)
			c.Locals(localSessionID, sess.ID)
			return c.Next()
		}
		c.Locals(localAccessToken, token)
		return c.Next()
	}
}

// IdentityMiddleware resolves the caller's email through the mailbox profile
func IdentityMiddleware(mailboxes services.MailboxFactory) fiber.Handler {
	return func(c *fiber.Ctx) error {
		mb, err := mailboxFor(c, mailboxes)
		if err != nil {
			return upstreamError(c, err, "Failed to fetch profile")
		}
		profile, err := mb.Profile(c.UserContext())
		if err != nil || profile.EmailAddress == "" {
			if err == nil {
				err = errors.New("profile has no email address")
			}
			return upstreamError(c, err, "Failed to fetch profile")
		}
		c.Locals(localEmail, profile.EmailAddress)
		return c.Next()
	}
}

// AdminOnly restricts a route to the listed emails; an empty list lets every
// signed-in user through.
func AdminOnly(adminEmails []string) fiber.Handler {
	allowed := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		allowed[strings.ToLower(e)] = true
	}
	return func(c *fiber.Ctx) error {
		if len(allowed) == 0 {
			return c.Next()
		}
		email, _ := c.Locals(localEmail).(string)
		if !allowed[strings.ToLower(email)] {
			return c.Status(http.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		}
		return c.Next()
	}
}

// LoginHandler redirects to the Google consent screen
func LoginHandler(oauth *oauth2.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		state := uuid.New().String()
		c.Cookie(&fiber.Cookie{
			Name:     stateCookie,
			Value:    state,
			Path:     "/auth",
			Expires:  time.Now().Add(10 * time.Minute),
			HTTPOnly: true,
			Secure:   c.Protocol() == "https",
			SameSite: fiber.CookieSameSiteLaxMode,
		})
		return c.Redirect(oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), http.StatusFound)
	}
}

// CallbackHandler exchanges the authorization code and starts a session
func CallbackHandler(oauth *oauth2.Config, sessions *services.SessionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		state := c.Query("state")
		if state == "" || state != c.Cookies(stateCookie) {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid oauth state"})
		}
		c.ClearCookie(stateCookie)

		if e := c.Query("error"); e != "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": e})
		}
		code := c.Query("code")
		if code == "" {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "missing code"})
		}

		tok, err := oauth.Exchange(c.UserContext(), code)
		if err != nil {
			utils.LogError(err, "OAuthExchange")
			return unauthorized(c)
		}
		signed, sess, err := sessions.Issue(tok.AccessToken, tok.Expiry)
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create session"})
		}

		c.Cookie(&fiber.Cookie{
			Name:     SessionCookie,
			Value:    signed,
			Path:     "/",
			Expires:  sess.ExpiresAt,
			HTTPOnly: true,
			Secure:   c.Protocol() == "https",
			SameSite: fiber.CookieSameSiteLaxMode,
		})
		return c.Redirect("/", http.StatusFound)
	}
}

func LogoutHandler(c *fiber.Ctx) error {
	c.ClearCookie(SessionCookie)
	return c.JSON(fiber.Map{"success": true})
}

func mailboxFor(c *fiber.Ctx, mailboxes services.MailboxFactory) (services.Mailbox, error) {
	if mb, ok := c.Locals(localMailbox).(services.Mailbox); ok {
		return mb, nil
	}
	token, _ := c.Locals(localAccessToken).(string)
	mb, err := mailboxes(c.UserContext(), token)
	if err != nil {
		return nil, err
	}
	c.Locals(localMailbox, mb)
	return mb, nil
}

// upstreamError maps a rejected credential to 401 and anything else to 500
func upstreamError(c *fiber.Ctx, err error, msg string) error {
	utils.LogError(err, msg)
	if isAuthError(err) {
		return unauthorized(c)
	}
	return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": msg})
}

func isAuthError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden
	}
	var rerr *oauth2.RetrieveError
	return errors.As(err, &rerr)
}
