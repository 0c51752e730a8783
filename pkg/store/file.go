package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/client2login/cli/pkg/token"
	"github.com/samber/lo"
)

// currentSchemaVersion tags the persisted blob. Version 0 (untagged) is the
// layout written by early releases, before token type and expiry existed.
const currentSchemaVersion = 1

type fileBlob struct {
	SchemaVersion  int       `json:"schemaVersion"`
	AccountList    []Account `json:"accountList"`
	CurrentAccount *Account  `json:"currentAccount,omitempty"`
}

// FileStore keeps accounts in a single JSON file. All mutations rewrite the
// file atomically (write to temp, rename).
type FileStore struct {
	path string
	mu   sync.Mutex
}

// DefaultPath returns the accounts file under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "client2login", "accounts.json"), nil
}

// NewFileStore opens (and migrates, if needed) the store at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	blob, err := s.load()
	if err != nil {
		return nil, err
	}
	if blob.SchemaVersion < currentSchemaVersion {
		if err := s.save(blob); err != nil {
			return nil, fmt.Errorf("schema migration: %w", err)
		}
	}
	return s, nil
}

func (s *FileStore) load() (fileBlob, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return fileBlob{SchemaVersion: currentSchemaVersion}, nil
	}
	if err != nil {
		return fileBlob{}, err
	}
	return migrate(raw)
}

func (s *FileStore) save(blob fileBlob) error {
	blob.SchemaVersion = currentSchemaVersion
	data, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// List returns all saved accounts in insertion order.
func (s *FileStore) List(_ context.Context) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, err := s.load()
	if err != nil {
		return nil, err
	}
	return blob.AccountList, nil
}

// Get returns the account with the exact email, or ErrNotFound.
func (s *FileStore) Get(_ context.Context, email string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, err := s.load()
	if err != nil {
		return Account{}, err
	}
	a, ok := lo.Find(blob.AccountList, func(a Account) bool { return a.Email == email })
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrNotFound, email)
	}
	return a, nil
}

// Put upserts the account keyed by email.
func (s *FileStore) Put(_ context.Context, a Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, err := s.load()
	if err != nil {
		return err
	}
	_, idx, found := lo.FindIndexOf(blob.AccountList, func(x Account) bool { return x.Email == a.Email })
	if found {
		blob.AccountList[idx] = a
	} else {
		blob.AccountList = append(blob.AccountList, a)
	}
	return s.save(blob)
}

// Delete removes the account with the exact email. Deleting an absent
// account is not an error.
func (s *FileStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, err := s.load()
	if err != nil {
		return err
	}
	blob.AccountList = lo.Filter(blob.AccountList, func(a Account, _ int) bool { return a.Email != email })
	return s.save(blob)
}

// Current returns a copy of the current-account pointer, or nil when unset.
func (s *FileStore) Current(_ context.Context) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, err := s.load()
	if err != nil {
		return nil, err
	}
	return blob.CurrentAccount, nil
}

// SetCurrent stores a full copy of the account as the current pointer.
func (s *FileStore) SetCurrent(_ context.Context, a Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, err := s.load()
	if err != nil {
		return err
	}
	blob.CurrentAccount = &a
	return s.save(blob)
}

// ClearCurrent unsets the current-account pointer.
func (s *FileStore) ClearCurrent(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, err := s.load()
	if err != nil {
		return err
	}
	blob.CurrentAccount = nil
	return s.save(blob)
}

// Reset drops all persisted data.
func (s *FileStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(fileBlob{})
}

// legacyAccount is the field layout the original extension persisted.
type legacyAccount struct {
	Email        string `json:"email"`
	UserID       string `json:"userid"`
	AccessToken  string `json:"accessToken"`
	SessionToken string `json:"WorkosCursorSessionToken"`
	TokenType    string `json:"tokenType"`
	CreateTime   string `json:"createTime"`
	ExpiresTime  string `json:"expiresTime"`
}

// migrate parses a persisted blob, upgrading untagged (version 0) layouts
// to the current schema in memory. The caller persists the result.
func migrate(raw []byte) (fileBlob, error) {
	var probe struct {
		SchemaVersion int `json:"schemaVersion"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fileBlob{}, fmt.Errorf("corrupt store: %w", err)
	}
	if probe.SchemaVersion >= 1 {
		var blob fileBlob
		if err := json.Unmarshal(raw, &blob); err != nil {
			return fileBlob{}, fmt.Errorf("corrupt store: %w", err)
		}
		return blob, nil
	}

	var legacy struct {
		AccountList    []legacyAccount `json:"accountList"`
		CurrentAccount *legacyAccount  `json:"currentAccount"`
	}
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return fileBlob{}, fmt.Errorf("corrupt store: %w", err)
	}

	// SchemaVersion stays 0 so the caller knows to persist the upgrade.
	var blob fileBlob
	for _, la := range legacy.AccountList {
		blob.AccountList = append(blob.AccountList, upgradeLegacy(la))
	}
	if legacy.CurrentAccount != nil {
		cur := upgradeLegacy(*legacy.CurrentAccount)
		blob.CurrentAccount = &cur
	}
	return blob, nil
}

func upgradeLegacy(la legacyAccount) Account {
	a := Account{
		Email:       la.Email,
		UserID:      la.UserID,
		AccessToken: la.AccessToken,
		TokenType:   TokenType(la.TokenType),
	}
	if a.TokenType == "" {
		a.TokenType = TokenTypeClient
	}
	if a.AccessToken == "" && la.SessionToken != "" {
		if sc, err := token.DecodeSessionCookie(la.SessionToken); err == nil {
			a.AccessToken = sc.AccessToken
			if a.UserID == "" {
				a.UserID = sc.UserID
			}
		}
	}
	if t, err := time.Parse(time.RFC3339, la.CreateTime); err == nil {
		a.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, la.ExpiresTime); err == nil {
		a.ExpiresAt = &t
	}
	return a
}
