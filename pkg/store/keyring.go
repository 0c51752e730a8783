package store

import (
	"context"
	"log/slog"

	"github.com/zalando/go-keyring"
)

// keyringService is the service name tokens are filed under in the OS
// keyring, keyed by account email.
const keyringService = "client2login"

// tokenInKeyring is the placeholder written to disk when the real access
// token lives in the OS keyring.
const tokenInKeyring = "@keyring"

// KeyringStore decorates a Store so access tokens are kept in the OS
// keyring and only a placeholder reaches the JSON file. When no keyring
// backend is available the decorator degrades to storing tokens inline,
// matching the plain FileStore behaviour.
type KeyringStore struct {
	inner Store
	log   *slog.Logger
}

// NewKeyringStore wraps inner with keyring-backed token storage.
func NewKeyringStore(inner Store, log *slog.Logger) *KeyringStore {
	return &KeyringStore{inner: inner, log: log}
}

func (s *KeyringStore) resolve(a Account) Account {
	if a.AccessToken != tokenInKeyring {
		return a
	}
	secret, err := keyring.Get(keyringService, a.Email)
	if err != nil {
		s.log.Warn("keyring read failed, token unavailable", "email", a.Email, "err", err)
		a.AccessToken = ""
		return a
	}
	a.AccessToken = secret
	return a
}

// List returns all accounts with tokens resolved from the keyring.
func (s *KeyringStore) List(ctx context.Context) ([]Account, error) {
	accounts, err := s.inner.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		accounts[i] = s.resolve(accounts[i])
	}
	return accounts, nil
}

// Get returns one account with its token resolved.
func (s *KeyringStore) Get(ctx context.Context, email string) (Account, error) {
	a, err := s.inner.Get(ctx, email)
	if err != nil {
		return Account{}, err
	}
	return s.resolve(a), nil
}

// Put files the token in the keyring and persists a placeholder. A keyring
// failure falls back to inline storage.
func (s *KeyringStore) Put(ctx context.Context, a Account) error {
	if err := keyring.Set(keyringService, a.Email, a.AccessToken); err == nil {
		a.AccessToken = tokenInKeyring
	} else {
		s.log.Warn("keyring unavailable, storing token inline", "err", err)
	}
	return s.inner.Put(ctx, a)
}

// Delete removes the account and its keyring entry (best-effort).
func (s *KeyringStore) Delete(ctx context.Context, email string) error {
	if err := keyring.Delete(keyringService, email); err != nil {
		s.log.Debug("keyring delete failed", "email", email, "err", err)
	}
	return s.inner.Delete(ctx, email)
}

// Current returns the current account with its token resolved.
func (s *KeyringStore) Current(ctx context.Context) (*Account, error) {
	cur, err := s.inner.Current(ctx)
	if err != nil || cur == nil {
		return cur, err
	}
	resolved := s.resolve(*cur)
	return &resolved, nil
}

// SetCurrent persists the current pointer with a placeholder token when the
// keyring holds the real one.
func (s *KeyringStore) SetCurrent(ctx context.Context, a Account) error {
	if _, err := keyring.Get(keyringService, a.Email); err == nil {
		a.AccessToken = tokenInKeyring
	}
	return s.inner.SetCurrent(ctx, a)
}

// ClearCurrent unsets the current pointer.
func (s *KeyringStore) ClearCurrent(ctx context.Context) error {
	return s.inner.ClearCurrent(ctx)
}

// Reset drops persisted data. Keyring entries for known accounts are
// removed first, best-effort.
func (s *KeyringStore) Reset(ctx context.Context) error {
	if accounts, err := s.inner.List(ctx); err == nil {
		for _, a := range accounts {
			_ = keyring.Delete(keyringService, a.Email)
		}
	}
	return s.inner.Reset(ctx)
}
