package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

var ErrInvalidSession = errors.New("invalid session")

// Session is what the session cookie carries: the Google access token,
// sealed so the cookie does not expose it.
type Session struct {
	ID          string
	AccessToken string
	ExpiresAt   time.Time
}

type SessionService struct {
	secret []byte
	key    [32]byte
	ttl    time.Duration
}

func NewSessionService(secret string, ttl time.Duration) (*SessionService, error) {
	s := &SessionService{secret: []byte(secret), ttl: ttl}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("selfie-mailer session token"))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, err
	}
	return s, nil
}

// Issue signs a session for accessToken. The session never outlives the
// access token when tokenExpiry is set.
func (s *SessionService) Issue(accessToken string, tokenExpiry time.Time) (string, *Session, error) {
	exp := time.Now().Add(s.ttl)
	if !tokenExpiry.IsZero() && tokenExpiry.Before(exp) {
		exp = tokenExpiry
	}
	sealed, err := s.seal([]byte(accessToken))
	if err != nil {
		return "", nil, err
	}
	sess := &Session{ID: uuid.New().String(), AccessToken: accessToken, ExpiresAt: exp}

	claims := jwt.MapClaims{
		"sid": sess.ID,
		"tok": sealed,
		"exp": exp.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, sess, nil
}

func (s *SessionService) Parse(tokenString string) (*Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSession
	}
	sid, _ := claims["sid"].(string)
	sealed, _ := claims["tok"].(string)
	if sid == "" || sealed == "" {
		return nil, ErrInvalidSession
	}
	accessToken, err := s.open(sealed)
	if err != nil {
		return nil, ErrInvalidSession
	}

	sess := &Session{ID: sid, AccessToken: string(accessToken)}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		sess.ExpiresAt = exp.Time
	}
	return sess, nil
}

func (s *SessionService) seal(plain []byte) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nonce[:], plain, &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(box), nil
}

func (s *SessionService) open(sealed string) ([]byte, error) {
	box, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, err
	}
	if len(box) < 24+secretbox.Overhead {
		return nil, ErrInvalidSession
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, &s.key)
	if !ok {
		return nil, ErrInvalidSession
	}
	return plain, nil
}
