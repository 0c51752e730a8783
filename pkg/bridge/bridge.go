// Package bridge exposes the account operations as named actions over a
// JSON message protocol, for callers driving the tool programmatically.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/client2login/cli/pkg/account"
	"github.com/client2login/cli/pkg/cookie"
	"github.com/client2login/cli/pkg/reconcile"
	"github.com/client2login/cli/pkg/store"
	"github.com/client2login/cli/pkg/token"
)

// Action names accepted by the dispatcher.
const (
	ActionSaveAccount       = "saveAccount"
	ActionSwitchAccount     = "switchAccount"
	ActionDeleteAccount     = "deleteAccount"
	ActionRefreshToken      = "refreshAccountToken"
	ActionGetAccountList    = "getAccountList"
	ActionGetCurrentAccount = "getCurrentAccount"
	ActionValidateStatus    = "validateAccountStatus"
	ActionSetCookie         = "setCookie"
	ActionClearCookie       = "clearCookie"
	ActionImportClient      = "importClientAccount"
)

// Request is one inbound message.
type Request struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the uniform reply envelope.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Dispatcher routes actions to the account manager. Unknown actions and
// payloads that fail validation are rejected before any state changes.
type Dispatcher struct {
	Manager *account.Manager
	Store   store.Store
	Jar     cookie.Jar
	NewFlow func() account.Refresher
	Client  account.ClientReader
	Log     *slog.Logger
	NowFn   func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.NowFn != nil {
		return d.NowFn()
	}
	return time.Now()
}

// SaveData is the wire form of a save/switch/refresh/import outcome. The
// cookie error is flattened to a string so the caller learns why the
// browser session was not updated alongside the kept store write.
type SaveData struct {
	Account     store.Account `json:"account"`
	CookieError string        `json:"cookieError,omitempty"`
}

func newSaveData(res *account.SaveResult) SaveData {
	out := SaveData{Account: res.Account}
	if res.CookieErr != nil {
		out.CookieError = res.CookieErr.Error()
	}
	return out
}

type savePayload struct {
	Email       string `json:"email"`
	UserID      string `json:"userId"`
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresAt   string `json:"expiresAt"`
}

type emailPayload struct {
	Email string `json:"email"`
}

type setCookiePayload struct {
	Value string `json:"value"`
}

// Dispatch executes one request. Errors are folded into the response
// envelope; the error return is reserved for encoding failures.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	d.Log.Debug("dispatching action", "action", req.Action)
	data, err := d.route(ctx, req)
	if err != nil {
		return Response{Error: err.Error()}
	}
	return Response{Success: true, Data: data}
}

func (d *Dispatcher) route(ctx context.Context, req Request) (any, error) {
	switch req.Action {
	case ActionSaveAccount:
		var p savePayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Email == "" || p.AccessToken == "" {
			return nil, fmt.Errorf("saveAccount requires email and accessToken")
		}
		in := account.SaveInput{
			Email:       p.Email,
			UserID:      p.UserID,
			AccessToken: p.AccessToken,
			TokenType:   store.TokenType(p.TokenType),
		}
		if p.ExpiresAt != "" {
			t, err := time.Parse(time.RFC3339, p.ExpiresAt)
			if err != nil {
				return nil, fmt.Errorf("invalid expiresAt: %w", err)
			}
			in.ExpiresAt = &t
		}
		res, err := d.Manager.SaveAccount(ctx, in)
		if err != nil {
			return nil, err
		}
		return newSaveData(res), nil

	case ActionSwitchAccount:
		var p emailPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Email == "" {
			return nil, fmt.Errorf("switchAccount requires email")
		}
		res, err := d.Manager.SwitchAccount(ctx, p.Email)
		if err != nil {
			return nil, err
		}
		return newSaveData(res), nil

	case ActionDeleteAccount:
		var p emailPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Email == "" {
			return nil, fmt.Errorf("deleteAccount requires email")
		}
		return nil, d.Manager.DeleteAccount(ctx, p.Email)

	case ActionRefreshToken:
		var p emailPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if p.Email == "" {
			return nil, fmt.Errorf("refreshAccountToken requires email")
		}
		if d.NewFlow == nil {
			return nil, fmt.Errorf("token refresh is not available")
		}
		res, err := d.Manager.RefreshAccountToken(ctx, p.Email, d.NewFlow())
		if err != nil {
			return nil, err
		}
		return newSaveData(res), nil

	case ActionGetAccountList:
		accounts, err := d.Store.List(ctx)
		if err != nil {
			return nil, err
		}
		return accounts, nil

	case ActionGetCurrentAccount:
		cur, err := d.Store.Current(ctx)
		if err != nil {
			return nil, err
		}
		return cur, nil

	case ActionValidateStatus:
		verdict, err := reconcile.Validate(ctx, d.Store, d.Jar, d.now())
		if err != nil {
			return nil, err
		}
		return verdict, nil

	case ActionSetCookie:
		var p setCookiePayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if _, err := token.DecodeSessionCookie(p.Value); err != nil {
			return nil, fmt.Errorf("invalid cookie value: %w", err)
		}
		return nil, d.Jar.Set(ctx, cookie.Cookie{
			Name:     cookie.SessionCookieName,
			Domain:   cookie.SessionCookieDomain,
			Path:     "/",
			Value:    p.Value,
			Secure:   true,
			HTTPOnly: false,
			SameSite: cookie.SameSiteLax,
		})

	case ActionClearCookie:
		return nil, ClearSessionCookies(ctx, d.Jar)

	case ActionImportClient:
		if d.Client == nil {
			return nil, fmt.Errorf("desktop client import is not available")
		}
		res, err := d.Manager.ImportFromClient(ctx, d.Client)
		if err != nil {
			return nil, err
		}
		return newSaveData(res), nil

	default:
		return nil, fmt.Errorf("unknown action %q", req.Action)
	}
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing payload")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// relatedCookieNames are auth cookies cleared alongside the session cookie
// so a sign-out leaves no stale credential behind.
var relatedCookieNames = []string{
	cookie.SessionCookieName,
	"WorkosCursorAuthToken",
	"cursor_session",
}

// ClearSessionCookies removes the session cookie and its companions on the
// session domain. The first failure aborts.
func ClearSessionCookies(ctx context.Context, jar cookie.Jar) error {
	for _, name := range relatedCookieNames {
		if err := jar.Remove(ctx, cookie.Query{Name: name, Domain: cookie.SessionCookieDomain}); err != nil {
			return fmt.Errorf("clearing %s: %w", name, err)
		}
	}
	return nil
}
