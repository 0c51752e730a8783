// Package account orchestrates the saved-account list, the current-account
// pointer, and the live session cookie so the three stay in step.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/client2login/cli/pkg/cookie"
	"github.com/client2login/cli/pkg/deeptoken"
	"github.com/client2login/cli/pkg/nativehost"
	"github.com/client2login/cli/pkg/store"
	"github.com/client2login/cli/pkg/token"
)

// ErrAccountNotFound wraps store.ErrNotFound for switch/delete targets.
var ErrAccountNotFound = store.ErrNotFound

// Refresher mints a new deep token. Satisfied by *deeptoken.Flow.
type Refresher interface {
	Run(ctx context.Context) (*deeptoken.Result, error)
}

// ClientReader fetches credentials from the installed desktop client.
// Satisfied by *nativehost.Client.
type ClientReader interface {
	FetchClientData(ctx context.Context) (*nativehost.ClientData, error)
}

// Manager wires the store and the cookie jar together. All operations
// treat the store as the source of truth and the cookie as a projection
// of the current account.
type Manager struct {
	Store store.Store
	Jar   cookie.Jar
	Log   *slog.Logger
	NowFn func() time.Time
}

func (m *Manager) now() time.Time {
	if m.NowFn != nil {
		return m.NowFn()
	}
	return time.Now()
}

// SaveResult reports a save/switch outcome. CookieErr is non-nil when the
// store write succeeded but the cookie write did not; the store is never
// rolled back for a cookie failure.
type SaveResult struct {
	Account   store.Account
	CookieErr error
}

// SaveInput is the material for SaveAccount. UserID and ExpiresAt are
// derived from the token when omitted.
type SaveInput struct {
	Email       string
	UserID      string
	AccessToken string
	TokenType   store.TokenType
	ExpiresAt   *time.Time
}

// SaveAccount upserts the account, makes it current, and rewrites the
// session cookie. The account keeps its original CreatedAt on update.
func (m *Manager) SaveAccount(ctx context.Context, in SaveInput) (*SaveResult, error) {
	if in.Email == "" {
		return nil, errors.New("email is required")
	}
	if in.AccessToken == "" {
		return nil, errors.New("access token is required")
	}

	a := store.Account{
		Email:       in.Email,
		UserID:      in.UserID,
		AccessToken: in.AccessToken,
		TokenType:   in.TokenType,
		ExpiresAt:   in.ExpiresAt,
		CreatedAt:   m.now(),
	}
	if a.TokenType == "" {
		a.TokenType = store.TokenTypeManual
	}

	if claims, err := token.DecodeBearerClaims(a.AccessToken); err == nil {
		if a.UserID == "" {
			a.UserID = token.ExtractUserID(claims)
		}
		if a.ExpiresAt == nil && claims.ExpiresAtUnix != 0 {
			exp := time.Unix(claims.ExpiresAtUnix, 0)
			a.ExpiresAt = &exp
		}
	}
	if a.UserID == "" {
		return nil, errors.New("user id could not be derived from the token")
	}

	if prev, err := m.Store.Get(ctx, a.Email); err == nil {
		a.CreatedAt = prev.CreatedAt
	}

	if err := m.Store.Put(ctx, a); err != nil {
		return nil, fmt.Errorf("saving account: %w", err)
	}
	if err := m.Store.SetCurrent(ctx, a); err != nil {
		return nil, fmt.Errorf("setting current account: %w", err)
	}

	res := &SaveResult{Account: a}
	if err := m.writeSessionCookie(ctx, a); err != nil {
		m.Log.Warn("account saved but cookie write failed", "email", a.Email, "err", err)
		res.CookieErr = err
	}
	return res, nil
}

// SwitchAccount makes an already-saved account current and rewrites the
// session cookie to it.
func (m *Manager) SwitchAccount(ctx context.Context, email string) (*SaveResult, error) {
	a, err := m.Store.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := m.Store.SetCurrent(ctx, a); err != nil {
		return nil, fmt.Errorf("setting current account: %w", err)
	}

	res := &SaveResult{Account: a}
	if err := m.writeSessionCookie(ctx, a); err != nil {
		m.Log.Warn("switched but cookie write failed", "email", a.Email, "err", err)
		res.CookieErr = err
	}
	return res, nil
}

// DeleteAccount removes the account. When it is the current one, the
// current pointer is cleared and the live cookie is removed best-effort.
func (m *Manager) DeleteAccount(ctx context.Context, email string) error {
	if _, err := m.Store.Get(ctx, email); err != nil {
		return err
	}

	cur, err := m.Store.Current(ctx)
	if err != nil {
		return err
	}
	wasCurrent := cur != nil && cur.Email == email

	if err := m.Store.Delete(ctx, email); err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	if !wasCurrent {
		return nil
	}

	if err := m.Store.ClearCurrent(ctx); err != nil {
		return fmt.Errorf("clearing current account: %w", err)
	}
	if err := m.Jar.Remove(ctx, cookie.Query{Name: cookie.SessionCookieName, Domain: cookie.SessionCookieDomain}); err != nil {
		m.Log.Warn("deleted account but cookie removal failed", "email", email, "err", err)
	}
	return nil
}

// RefreshAccountToken runs the deep login flow for an existing account and
// saves the minted token under it.
func (m *Manager) RefreshAccountToken(ctx context.Context, email string, flow Refresher) (*SaveResult, error) {
	a, err := m.Store.Get(ctx, email)
	if err != nil {
		return nil, err
	}

	minted, err := flow.Run(ctx)
	if err != nil {
		return nil, err
	}

	in := SaveInput{
		Email:       a.Email,
		UserID:      minted.UserID,
		AccessToken: minted.AccessToken,
		TokenType:   store.TokenTypeDeep,
		ExpiresAt:   &minted.ExpiresAt,
	}
	if in.UserID == "" {
		in.UserID = a.UserID
	}
	return m.SaveAccount(ctx, in)
}

// ImportFromClient reads the desktop client's credentials through the
// native host and saves them as an account.
func (m *Manager) ImportFromClient(ctx context.Context, reader ClientReader) (*SaveResult, error) {
	data, err := reader.FetchClientData(ctx)
	if err != nil {
		return nil, err
	}
	if data.Email == "" {
		return nil, errors.New("desktop client returned no signed-in account")
	}
	return m.SaveAccount(ctx, SaveInput{
		Email:       data.Email,
		UserID:      data.UserID,
		AccessToken: data.AccessToken,
		TokenType:   store.TokenTypeClient,
	})
}

func (m *Manager) writeSessionCookie(ctx context.Context, a store.Account) error {
	value, err := token.EncodeSessionCookie(token.SessionCookie{
		UserID:      a.UserID,
		AccessToken: a.AccessToken,
	})
	if err != nil {
		return err
	}
	// The site's own scripts read this cookie, so it must not be httpOnly.
	return m.Jar.Set(ctx, cookie.Cookie{
		Name:     cookie.SessionCookieName,
		Domain:   cookie.SessionCookieDomain,
		Path:     "/",
		Value:    value,
		Secure:   true,
		HTTPOnly: false,
		SameSite: cookie.SameSiteLax,
		Expires:  a.ExpiresAt,
	})
}
