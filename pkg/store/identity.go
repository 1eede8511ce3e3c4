package store

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kamalraji/planit-go/pkg/models"
)

// principalFromToken extracts the actor identity from the session's
// access token. The claims are read unverified: the client only stamps
// audit columns with them, while enforcement happens server-side
// against the same token.
func principalFromToken(token string) (models.Principal, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return models.Principal{}, fmt.Errorf("parse access token: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return models.Principal{}, fmt.Errorf("access token has no subject: %w", ErrNoIdentity)
	}

	p := models.Principal{ID: sub}
	if email, ok := claims["email"].(string); ok {
		p.Email = email
	}
	if role, ok := claims["role"].(string); ok {
		p.Role = role
	}
	if tenant, ok := claims["tenant_id"].(string); ok {
		p.Tenant = tenant
	}
	return p, nil
}
