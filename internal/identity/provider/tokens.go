package provider

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// AccessClaims is the access-token payload.
type AccessClaims struct {
	SessionID string `json:"sid"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type tokenManager struct {
	secret []byte
	ttl    time.Duration
}

func (tm *tokenManager) issue(userID, email, sessionID string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(tm.ttl)
	claims := &AccessClaims{
		SessionID: sessionID,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign access token")
	}
	return s, expiresAt, nil
}

func (tm *tokenManager) parse(raw string) (*AccessClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parse access token")
	}
	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// newRefreshToken returns "<sessionID>.<secret>" and the hash to store.
func newRefreshToken(sessionID string) (string, string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", errors.Wrap(err, "random refresh secret")
	}
	tok := sessionID + "." + base64.RawURLEncoding.EncodeToString(buf)
	return tok, hashRefreshToken(tok), nil
}

func hashRefreshToken(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}

// splitRefreshToken returns the session id, or "" when tok is malformed.
func splitRefreshToken(tok string) string {
	sid, secret, ok := strings.Cut(tok, ".")
	if !ok || secret == "" {
		return ""
	}
	if _, err := uuid.Parse(sid); err != nil {
		return ""
	}
	return sid
}
