// Package identity authenticates sessions and resolves principal display
// metadata.
package identity

import (
	"errors"
	"time"

	"chatcore/internal/domain/principal"
	chat_errors "chatcore/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	Kind principal.Kind `json:"kind"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 session tokens. The subject carries the
// principal id and the kind claim tells users from external parties.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(who principal.Ref) (string, error) {
	if who.IsZero() || !who.Kind.Valid() {
		return "", chat_errors.ErrInvalidInput
	}
	now := t.now()
	claims := Claims{
		Kind: who.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   who.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *Tokens) Parse(token string) (principal.Ref, error) {
	if token == "" {
		return principal.Ref{}, chat_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, chat_errors.ErrUnauthorized
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return principal.Ref{}, errors.Join(chat_errors.ErrUnauthorized, err)
		}
		return principal.Ref{}, chat_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return principal.Ref{}, chat_errors.ErrUnauthorized
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return principal.Ref{}, chat_errors.ErrUnauthorized
	}
	kind := claims.Kind
	if kind == "" {
		kind = principal.KindUser
	}
	if !kind.Valid() {
		return principal.Ref{}, chat_errors.ErrUnauthorized
	}
	return principal.Ref{ID: id, Kind: kind}, nil
}
