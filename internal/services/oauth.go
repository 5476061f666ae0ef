package services

import (
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// NewGoogleOAuthConfig asks for the scopes the app needs: read the mailbox
// profile/labels/messages and send mail as the user.
func NewGoogleOAuthConfig(clientID, clientSecret, baseURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  strings.TrimRight(baseURL, "/") + "/auth/callback",
		Scopes: []string{
			"openid",
			"email",
			gmail.GmailReadonlyScope,
			gmail.GmailSendScope,
		},
	}
}
