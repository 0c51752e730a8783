// Package deeptoken mints a longer-lived access token through the
// browser-mediated deep login handshake: a PKCE challenge is bound to a
// login confirmation page, and a poll endpoint releases the token once the
// user approves.
package deeptoken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/client2login/cli/pkg/token"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	// DefaultMaxAttempts bounds the poll loop.
	DefaultMaxAttempts = 30
	// DefaultPollInterval is the pause between poll attempts.
	DefaultPollInterval = 2 * time.Second

	// fallbackValidity is assumed when the minted token's claims are
	// opaque and carry no expiry.
	fallbackValidity = 60 * 24 * time.Hour
)

var (
	// ErrTimedOut indicates the poll budget was exhausted without the
	// endpoint releasing a token. The flow must be re-triggered by the
	// user; it is never retried automatically.
	ErrTimedOut = errors.New("deep login timed out waiting for confirmation")
	// ErrTransport indicates the flow could not be started at all.
	ErrTransport = errors.New("deep login transport error")
)

// Window is a handle to the opened login page. Close is best-effort and is
// called on every exit path.
type Window interface {
	Close() error
}

// Opener opens the login confirmation page and returns its window handle.
type Opener interface {
	Open(url string) (Window, error)
}

// Config parameterizes a Flow. Zero values fall back to defaults.
type Config struct {
	WebBaseURL   string
	APIBaseURL   string
	MaxAttempts  int
	PollInterval time.Duration
	HTTPClient   *http.Client
	Opener       Opener
	Log          *slog.Logger
}

// Result is the minted credential.
type Result struct {
	AccessToken string
	AuthID      string
	UserID      string
	ExpiresAt   time.Time
}

// Flow runs one deep login handshake. Only one flow may run per
// invocation; callers disable the triggering action for the duration.
type Flow struct {
	cfg   Config
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New builds a flow from cfg.
func New(cfg Config) *Flow {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Opener == nil {
		cfg.Opener = BrowserOpener{Log: cfg.Log}
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Flow{cfg: cfg, sleep: sleepCtx, now: time.Now}
}

type pollResponse struct {
	AccessToken string `json:"accessToken"`
	AuthID      string `json:"authId"`
}

// Run executes the handshake: generate the PKCE pair, open the login
// window, and poll until the token is released, the budget is exhausted,
// or the context is cancelled. No partial state is written on failure.
func (f *Flow) Run(ctx context.Context) (*Result, error) {
	verifier := oauth2.GenerateVerifier()
	challenge := oauth2.S256ChallengeFromVerifier(verifier)
	id := uuid.NewString()

	loginURL := fmt.Sprintf("%s/cn/loginDeepControl?challenge=%s&uuid=%s&mode=login",
		f.cfg.WebBaseURL, url.QueryEscape(challenge), url.QueryEscape(id))

	win, err := f.cfg.Opener.Open(loginURL)
	if err != nil {
		return nil, fmt.Errorf("%w: opening login window: %v", ErrTransport, err)
	}
	defer func() {
		if err := win.Close(); err != nil {
			f.cfg.Log.Warn("failed to close login window", "err", err)
		}
	}()

	f.cfg.Log.Info("deep login started", "uuid", id, "maxAttempts", f.cfg.MaxAttempts)

	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		resp, err := f.poll(ctx, id, verifier)
		if err == nil && resp.AccessToken != "" {
			f.cfg.Log.Info("deep login confirmed", "attempt", attempt)
			return f.buildResult(resp), nil
		}
		if err != nil {
			f.cfg.Log.Debug("poll attempt failed", "attempt", attempt, "err", err)
		}
		if attempt == f.cfg.MaxAttempts {
			break
		}
		if err := f.sleep(ctx, f.cfg.PollInterval); err != nil {
			return nil, err
		}
	}
	return nil, ErrTimedOut
}

func (f *Flow) poll(ctx context.Context, id, verifier string) (*pollResponse, error) {
	pollURL := fmt.Sprintf("%s/auth/poll?uuid=%s&verifier=%s",
		f.cfg.APIBaseURL, url.QueryEscape(id), url.QueryEscape(verifier))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")

	resp, err := f.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll endpoint returned %s", resp.Status)
	}

	var body pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

// buildResult derives the user id preferentially from the minted token's
// claims, falling back to the auxiliary authId field when the token is
// opaque. Expiry defaults to the historical deep-token validity when the
// claims carry none.
func (f *Flow) buildResult(resp *pollResponse) *Result {
	res := &Result{
		AccessToken: resp.AccessToken,
		AuthID:      resp.AuthID,
		ExpiresAt:   f.now().Add(fallbackValidity),
	}

	if claims, err := token.DecodeBearerClaims(resp.AccessToken); err == nil {
		res.UserID = token.ExtractUserID(claims)
		if claims.ExpiresAtUnix != 0 {
			res.ExpiresAt = time.Unix(claims.ExpiresAtUnix, 0)
		}
	}
	if res.UserID == "" && resp.AuthID != "" {
		res.UserID = token.ExtractUserID(token.BearerClaims{Subject: resp.AuthID})
	}
	return res
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
