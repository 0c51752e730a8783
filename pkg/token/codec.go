// Package token implements the session cookie and bearer token formats used
// by cursor.com authentication.
package token

import (
	"errors"
	"fmt"
	"strings"
)

// Separator is the percent-encoded double colon that joins the user id and
// access token inside the session cookie value.
const Separator = "%3A%3A"

// ErrMalformedCookie indicates a session cookie value that does not decode
// into a user id and access token.
var ErrMalformedCookie = errors.New("malformed session cookie value")

// SessionCookie is the decoded form of the session cookie value.
type SessionCookie struct {
	UserID      string
	AccessToken string
}

// EncodeSessionCookie builds the session cookie value `userID%3A%3Atoken`.
// User ids containing the separator sequence are rejected so that decoding
// stays unambiguous.
func EncodeSessionCookie(sc SessionCookie) (string, error) {
	if sc.UserID == "" || sc.AccessToken == "" {
		return "", fmt.Errorf("%w: empty user id or access token", ErrMalformedCookie)
	}
	if strings.Contains(sc.UserID, Separator) {
		return "", fmt.Errorf("%w: user id contains separator sequence", ErrMalformedCookie)
	}
	return sc.UserID + Separator + sc.AccessToken, nil
}

// DecodeSessionCookie splits a session cookie value on the first occurrence
// of the separator. The access token part may itself contain the separator;
// the user id part may not (EncodeSessionCookie enforces this).
func DecodeSessionCookie(value string) (SessionCookie, error) {
	parts := strings.SplitN(value, Separator, 2)
	if len(parts) != 2 {
		return SessionCookie{}, fmt.Errorf("%w: separator not found", ErrMalformedCookie)
	}
	if parts[0] == "" || parts[1] == "" {
		return SessionCookie{}, fmt.Errorf("%w: empty user id or access token", ErrMalformedCookie)
	}
	return SessionCookie{UserID: parts[0], AccessToken: parts[1]}, nil
}
