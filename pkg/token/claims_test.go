package token

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeJWT builds an unsigned JWT-shaped token from raw claims.
func makeJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func TestDecodeBearerClaims(t *testing.T) {
	tok := makeJWT(t, map[string]any{"sub": "auth0|user123", "exp": float64(1900000000)})
	claims, err := DecodeBearerClaims(tok)
	require.NoError(t, err)
	assert.Equal(t, "auth0|user123", claims.Subject)
	assert.Equal(t, int64(1900000000), claims.ExpiresAtUnix)
}

func TestDecodeBearerClaimsErrors(t *testing.T) {
	tests := []struct {
		name string
		tok  string
		want error
	}{
		{"not a jwt", "plaintoken", ErrInvalidTokenFormat},
		{"two segments", "abc.def", ErrInvalidTokenFormat},
		{"four segments", "a.b.c.d", ErrInvalidTokenFormat},
		{"garbage claims", "aGVhZGVy.!!!notbase64!!!.sig", ErrClaimsDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBearerClaims(tt.tok)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExtractUserID(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		expected string
	}{
		{"provider prefix", "auth0|user123", "user123"},
		{"no pipe", "user123", "user123"},
		{"multiple pipes keep everything after first", "auth0|org|user", "org|user"},
		{"empty subject", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractUserID(BearerClaims{Subject: tt.subject}))
		})
	}
}

func TestExtractExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		exp           time.Time
		wantExpired   bool
		wantRemaining int
	}{
		{"one hour left rounds up to a day", now.Add(time.Hour), false, 1},
		{"exactly 3 days", now.Add(72 * time.Hour), false, 3},
		{"3 days and change rounds up", now.Add(73 * time.Hour), false, 4},
		{"expires exactly now is expired", now, true, 0},
		{"already expired", now.Add(-time.Hour), true, 0},
		{"long expired stays at zero days", now.Add(-100 * 24 * time.Hour), true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractExpiry(BearerClaims{ExpiresAtUnix: tt.exp.Unix()}, now)
			assert.Equal(t, tt.wantExpired, got.IsExpired)
			assert.Equal(t, tt.wantRemaining, got.RemainingDays)
			assert.True(t, got.ExpiresAt.Equal(tt.exp))
		})
	}
}
