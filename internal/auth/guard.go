package auth

import (
	"github.com/weiawesome/wes-io-live/party-service/internal/domain"
	"github.com/weiawesome/wes-io-live/party-service/pkg/jwt"
)

// Guard resolves the identity behind a frame's token.
type Guard interface {
	Authenticate(token string) (domain.Identity, error)
}

// TokenValidator is satisfied by *jwt.Manager.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// JWTGuard verifies tokens locally; every worker shares the key material so
// no network call is needed per frame.
type JWTGuard struct {
	validator TokenValidator
}

func NewJWTGuard(v TokenValidator) *JWTGuard {
	return &JWTGuard{validator: v}
}

// Authenticate returns the token's identity or an error wrapping domain.ErrAuth.
func (g *JWTGuard) Authenticate(token string) (domain.Identity, error) {
	claims, err := g.validator.ValidateToken(token)
	if err != nil {
		return domain.Identity{}, domain.Unauthorized(err)
	}

	return IdentityFor(claims.UserID, claims.UserName), nil
}

// IdentityFor builds an identity, falling back to the friendly name when the
// token carried no display name.
func IdentityFor(userID, userName string) domain.Identity {
	if userName == "" {
		userName = FriendlyName(userID)
	}
	return domain.Identity{UserID: userID, DisplayName: userName}
}
