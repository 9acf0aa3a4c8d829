// Package identity resolves the current principal from portal-issued
// credentials. Credential authentication itself (passwords, sessions)
// belongs to the portal's identity provider; this package only verifies
// the tokens it mints.
package identity

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/avukic/skolar/internal/domain"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenVerifier turns a portal-issued JWT into a Principal. Expected
// claims: sub (principal id), role, name.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

func (v *TokenVerifier) Verify(tokenStr string) (domain.Principal, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return domain.Principal{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Principal{}, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return domain.Principal{}, ErrInvalidToken
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return domain.Principal{}, ErrInvalidToken
	}

	role, _ := claims["role"].(string)
	if !domain.ValidRole(role) {
		return domain.Principal{}, ErrInvalidToken
	}
	name, _ := claims["name"].(string)

	return domain.Principal{
		ID:          id,
		DisplayName: name,
		Role:        domain.Role(role),
	}, nil
}
