// Package store persists the account list and the current-account pointer.
package store

import (
	"context"
	"errors"
	"time"
)

// TokenType records how an account's access token was obtained.
type TokenType string

const (
	// TokenTypeClient is a token read from the installed desktop client.
	TokenTypeClient TokenType = "client"
	// TokenTypeDeep is a longer-lived token minted by the deep login flow.
	TokenTypeDeep TokenType = "deep"
	// TokenTypeManual is a token pasted in by the user.
	TokenTypeManual TokenType = "manual"
)

// Account is one saved identity. Email is the unique key within the list;
// matching is case-sensitive and exact.
type Account struct {
	Email       string     `json:"email"`
	UserID      string     `json:"userId"`
	AccessToken string     `json:"accessToken"`
	TokenType   TokenType  `json:"tokenType"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ErrNotFound indicates no account exists for the requested email.
var ErrNotFound = errors.New("account not found")

// Store holds the account list and the current-account pointer. The
// current account is a full copy, not a reference into the list, so the
// two can diverge; the reconcile package exists to detect that.
type Store interface {
	List(ctx context.Context) ([]Account, error)
	Get(ctx context.Context, email string) (Account, error)
	Put(ctx context.Context, a Account) error
	Delete(ctx context.Context, email string) error

	Current(ctx context.Context) (*Account, error)
	SetCurrent(ctx context.Context, a Account) error
	ClearCurrent(ctx context.Context) error

	Reset(ctx context.Context) error
}
