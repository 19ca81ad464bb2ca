package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed or fails verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when a token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// InviteClaims holds JWT claims on invitation tokens. The jti is the
// invitation ID; single-use enforcement happens against the stored record.
type InviteClaims struct {
	jwt.RegisteredClaims
	TeamID string `json:"team_id"`
	Email  string `json:"email"`
}

// InviteTokenProvider signs and verifies invitation tokens with HS256.
type InviteTokenProvider struct {
	secret []byte
	issuer string
}

// NewInviteTokenProvider returns a provider signing with the given secret.
// issuer is set as the iss claim and validated on parse.
func NewInviteTokenProvider(secret []byte, issuer string) *InviteTokenProvider {
	return &InviteTokenProvider{secret: secret, issuer: issuer}
}

// Issue signs an invitation token for the given invitation, team, and email,
// expiring at expiresAt.
func (p *InviteTokenProvider) Issue(invitationID, teamID, email string, expiresAt time.Time) (string, error) {
	now := time.Now().UTC()
	claims := InviteClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        invitationID,
			Issuer:    p.issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt.UTC()),
		},
		TeamID: teamID,
		Email:  email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// Parse verifies the token signature, issuer, and expiry, and returns the claims.
// Expired tokens fail with ErrTokenExpired; anything else invalid fails with ErrInvalidToken.
func (p *InviteTokenProvider) Parse(token string) (*InviteClaims, error) {
	claims := &InviteClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	}, jwt.WithIssuer(p.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
