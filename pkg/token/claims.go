package token

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidTokenFormat indicates a bearer token that is not a
	// three-segment JWT-shaped string.
	ErrInvalidTokenFormat = errors.New("invalid bearer token format")
	// ErrClaimsDecode indicates a claims segment that could not be
	// base64- or JSON-decoded.
	ErrClaimsDecode = errors.New("bearer token claims decode failed")
)

// BearerClaims is the subset of token claims the tool relies on. The
// signature is never verified; the claims are informational only.
type BearerClaims struct {
	Subject       string
	ExpiresAtUnix int64
}

// Expiry describes a token's expiration relative to a point in time.
type Expiry struct {
	ExpiresAt     time.Time
	IsExpired     bool
	RemainingDays int
}

// DecodeBearerClaims extracts the subject and expiry from a bearer token's
// claims segment without verifying the signature.
func DecodeBearerClaims(tok string) (BearerClaims, error) {
	if strings.Count(tok, ".") != 2 {
		return BearerClaims{}, fmt.Errorf("%w: expected 3 segments", ErrInvalidTokenFormat)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return BearerClaims{}, fmt.Errorf("%w: %v", ErrClaimsDecode, err)
	}

	out := BearerClaims{}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAtUnix = exp.Unix()
	}
	return out, nil
}

// ExtractUserID returns the user id embedded in the claims subject. The
// identity provider prefixes subjects with a provider tag ("auth0|abc123");
// the part after the first pipe is the stable user id.
func ExtractUserID(c BearerClaims) string {
	if i := strings.Index(c.Subject, "|"); i >= 0 {
		return c.Subject[i+1:]
	}
	return c.Subject
}

// ExtractExpiry evaluates the claims expiry against now. A token whose
// expiry equals now is already expired; remaining days round up and never
// go negative.
func ExtractExpiry(c BearerClaims, now time.Time) Expiry {
	return ExpiryAt(time.Unix(c.ExpiresAtUnix, 0), now)
}

// ExpiryAt evaluates an absolute expiry time against now with the same
// rounding as ExtractExpiry.
func ExpiryAt(expiresAt, now time.Time) Expiry {
	remaining := expiresAt.Sub(now)
	days := int(math.Ceil(remaining.Hours() / 24))
	if days < 0 {
		days = 0
	}
	return Expiry{
		ExpiresAt:     expiresAt,
		IsExpired:     !expiresAt.After(now),
		RemainingDays: days,
	}
}
