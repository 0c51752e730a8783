// Package reconcile compares the persisted current account against the
// live session cookie and recommends a remediation.
package reconcile

import (
	"context"
	"time"

	"github.com/client2login/cli/pkg/cookie"
	"github.com/client2login/cli/pkg/store"
	"github.com/client2login/cli/pkg/token"
)

// Recommendation tags the remediation for a verdict.
type Recommendation string

const (
	// RecommendConsistent means storage and cookie agree.
	RecommendConsistent Recommendation = "consistent"
	// RecommendCookiePresentNoStorage means a valid cookie exists but no
	// account is saved; importing it would adopt the live session.
	RecommendCookiePresentNoStorage Recommendation = "cookiePresentNoStorage"
	// RecommendNoAccountSelectImport means neither storage nor cookie hold
	// a usable identity.
	RecommendNoAccountSelectImport Recommendation = "noAccountSelectImport"
	// RecommendCookieMissingReselect means the saved account has no
	// backing cookie; re-selecting the account rewrites it.
	RecommendCookieMissingReselect Recommendation = "cookieMissingReselect"
	// RecommendCookieExpiredReselect means the cookie's token is expired.
	RecommendCookieExpiredReselect Recommendation = "cookieExpiredReselect"
	// RecommendMismatchReselect means the cookie belongs to a different
	// user than the saved account.
	RecommendMismatchReselect Recommendation = "mismatchReselect"
)

// CookieData is the decoded content of a present session cookie.
type CookieData struct {
	UserID      string
	AccessToken string
	ExpiresAt   *time.Time
	IsExpired   bool
}

// CookieState describes the live cookie side of a verdict.
type CookieState struct {
	Present bool
	Data    *CookieData
}

// Verdict is the reconciliation result. It is computed fresh on every call
// and never cached.
type Verdict struct {
	IsConsistent   bool
	StorageAccount *store.Account
	CookieState    CookieState
	Recommendation Recommendation
}

// Validate inspects the current-account pointer and the live session
// cookie and classifies their relationship. The cookie lookup broadens
// progressively, so a cookie stored under a differently normalized domain
// still counts as present.
func Validate(ctx context.Context, st store.Store, jar cookie.Jar, now time.Time) (Verdict, error) {
	current, err := st.Current(ctx)
	if err != nil {
		return Verdict{}, err
	}

	live, err := cookie.Lookup(ctx, jar, cookie.SessionCookieName, cookie.SessionCookieDomain)
	if err != nil {
		return Verdict{}, err
	}

	state := inspectCookie(live, now)
	v := Verdict{StorageAccount: current, CookieState: state}

	valid := state.Present && state.Data != nil
	switch {
	case current == nil && valid && !state.Data.IsExpired:
		v.Recommendation = RecommendCookiePresentNoStorage
	case current == nil:
		v.Recommendation = RecommendNoAccountSelectImport
	case !valid:
		v.Recommendation = RecommendCookieMissingReselect
	case state.Data.IsExpired:
		v.Recommendation = RecommendCookieExpiredReselect
	case state.Data.UserID == current.UserID:
		v.IsConsistent = true
		v.Recommendation = RecommendConsistent
	default:
		v.Recommendation = RecommendMismatchReselect
	}
	return v, nil
}

// inspectCookie decodes a found cookie. A cookie whose value does not
// decode is reported present but with no data, which the decision logic
// treats the same as missing for a saved account.
func inspectCookie(c *cookie.Cookie, now time.Time) CookieState {
	if c == nil {
		return CookieState{}
	}

	sc, err := token.DecodeSessionCookie(c.Value)
	if err != nil {
		return CookieState{Present: true}
	}

	data := &CookieData{UserID: sc.UserID, AccessToken: sc.AccessToken}
	if claims, err := token.DecodeBearerClaims(sc.AccessToken); err == nil && claims.ExpiresAtUnix != 0 {
		exp := token.ExtractExpiry(claims, now)
		data.ExpiresAt = &exp.ExpiresAt
		data.IsExpired = exp.IsExpired
	} else if c.Expires != nil {
		data.ExpiresAt = c.Expires
		data.IsExpired = !c.Expires.After(now)
	}
	return CookieState{Present: true, Data: data}
}
