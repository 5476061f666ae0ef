package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionIssueAndParse(t *testing.T) {
	s, err := NewSessionService("test-secret", time.Hour)
	require.NoError(t, err)

	token, issued, err := s.Issue("ya29.access", time.Time{})
	require.NoError(t, err)
	assert.NotContains(t, token, "ya29.access")

	sess, err := s.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "ya29.access", sess.AccessToken)
	assert.Equal(t, issued.ID, sess.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, 5*time.Second)
}

func TestSessionExpiryFollowsAccessToken(t *testing.T) {
	s, err := NewSessionService("test-secret", 72*time.Hour)
	require.NoError(t, err)

	tokenExpiry := time.Now().Add(30 * time.Minute)
	_, issued, err := s.Issue("tok", tokenExpiry)
	require.NoError(t, err)
	assert.WithinDuration(t, tokenExpiry, issued.ExpiresAt, time.Second)
}

func TestSessionRejectsTampering(t *testing.T) {
	s, err := NewSessionService("test-secret", time.Hour)
	require.NoError(t, err)
	other, err := NewSessionService("other-secret", time.Hour)
	require.NoError(t, err)

	token, _, err := other.Issue("tok", time.Time{})
	require.NoError(t, err)
	_, err = s.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = s.Parse("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionRejectsExpired(t *testing.T) {
	s, err := NewSessionService("test-secret", time.Hour)
	require.NoError(t, err)

	token, _, err := s.Issue("tok", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = s.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}
