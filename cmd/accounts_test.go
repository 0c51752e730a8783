package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/client2login/cli/pkg/account"
	"github.com/client2login/cli/pkg/deeptoken"
	"github.com/client2login/cli/pkg/nativehost"
	"github.com/client2login/cli/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type FakeAccountManager struct {
	SaveAccountFunc         func(ctx context.Context, in account.SaveInput) (*account.SaveResult, error)
	SwitchAccountFunc       func(ctx context.Context, email string) (*account.SaveResult, error)
	DeleteAccountFunc       func(ctx context.Context, email string) error
	RefreshAccountTokenFunc func(ctx context.Context, email string, flow account.Refresher) (*account.SaveResult, error)
	ImportFromClientFunc    func(ctx context.Context, reader account.ClientReader) (*account.SaveResult, error)
}

func (f *FakeAccountManager) SaveAccount(ctx context.Context, in account.SaveInput) (*account.SaveResult, error) {
	if f.SaveAccountFunc != nil {
		return f.SaveAccountFunc(ctx, in)
	}
	return &account.SaveResult{Account: store.Account{Email: in.Email, UserID: in.UserID}}, nil
}

func (f *FakeAccountManager) SwitchAccount(ctx context.Context, email string) (*account.SaveResult, error) {
	if f.SwitchAccountFunc != nil {
		return f.SwitchAccountFunc(ctx, email)
	}
	return &account.SaveResult{Account: store.Account{Email: email}}, nil
}

func (f *FakeAccountManager) DeleteAccount(ctx context.Context, email string) error {
	if f.DeleteAccountFunc != nil {
		return f.DeleteAccountFunc(ctx, email)
	}
	return nil
}

func (f *FakeAccountManager) RefreshAccountToken(ctx context.Context, email string, flow account.Refresher) (*account.SaveResult, error) {
	if f.RefreshAccountTokenFunc != nil {
		return f.RefreshAccountTokenFunc(ctx, email, flow)
	}
	return &account.SaveResult{Account: store.Account{Email: email}}, nil
}

func (f *FakeAccountManager) ImportFromClient(ctx context.Context, reader account.ClientReader) (*account.SaveResult, error) {
	if f.ImportFromClientFunc != nil {
		return f.ImportFromClientFunc(ctx, reader)
	}
	return &account.SaveResult{Account: store.Account{Email: "client@example.com"}}, nil
}

func newCmdStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewFileStore(filepath.Join(t.TempDir(), "accounts.json"))
	require.NoError(t, err)
	return s
}

func TestAccountsList_MarksCurrent(t *testing.T) {
	setupStdoutCapture(t)
	ctx := context.Background()

	st := newCmdStore(t)
	exp := time.Now().Add(72 * time.Hour)
	require.NoError(t, st.Put(ctx, store.Account{Email: "a@example.com", UserID: "u1", AccessToken: "t", TokenType: store.TokenTypeClient, ExpiresAt: &exp}))
	require.NoError(t, st.Put(ctx, store.Account{Email: "b@example.com", UserID: "u2", AccessToken: "t", TokenType: store.TokenTypeDeep}))
	require.NoError(t, st.SetCurrent(ctx, store.Account{Email: "b@example.com", UserID: "u2", AccessToken: "t"}))

	c := AccountsCmd{store: st, mgr: &FakeAccountManager{}, now: time.Now}
	require.NoError(t, c.List(ctx))

	out := outBuf.String()
	assert.Contains(t, out, "a@example.com")
	assert.Contains(t, out, "b@example.com")
	assert.Contains(t, out, "u1")
	assert.Contains(t, out, "day(s) left")
	assert.Contains(t, out, "*")
}

func TestAccountsList_Empty(t *testing.T) {
	setupStdoutCapture(t)
	c := AccountsCmd{store: newCmdStore(t), mgr: &FakeAccountManager{}, now: time.Now}
	require.NoError(t, c.List(context.Background()))
	assert.Contains(t, outBuf.String(), "No accounts saved")
}

func TestAccountsSave_DecodesCookieValue(t *testing.T) {
	setupStdoutCapture(t)

	var got account.SaveInput
	fake := &FakeAccountManager{
		SaveAccountFunc: func(ctx context.Context, in account.SaveInput) (*account.SaveResult, error) {
			got = in
			return &account.SaveResult{Account: store.Account{Email: in.Email, UserID: in.UserID}}, nil
		},
	}
	c := AccountsCmd{store: newCmdStore(t), mgr: fake, now: time.Now}

	err := c.Save(context.Background(), AccountsSaveInput{Email: "a@example.com", Token: "user123%3A%3Asometoken"})
	require.NoError(t, err)
	assert.Equal(t, "user123", got.UserID)
	assert.Equal(t, "sometoken", got.AccessToken)
	assert.Equal(t, store.TokenTypeManual, got.TokenType)
}

func TestAccountsSave_ExplicitUserID(t *testing.T) {
	setupStdoutCapture(t)

	var got account.SaveInput
	fake := &FakeAccountManager{
		SaveAccountFunc: func(ctx context.Context, in account.SaveInput) (*account.SaveResult, error) {
			got = in
			return &account.SaveResult{Account: store.Account{Email: in.Email, UserID: in.UserID}}, nil
		},
	}
	c := AccountsCmd{store: newCmdStore(t), mgr: fake, now: time.Now}

	t.Run("opaque token keeps the provided id", func(t *testing.T) {
		err := c.Save(context.Background(), AccountsSaveInput{Email: "a@example.com", Token: "opaque", UserID: "user123"})
		require.NoError(t, err)
		assert.Equal(t, "user123", got.UserID)
		assert.Equal(t, "opaque", got.AccessToken)
	})

	t.Run("flag wins over the id in a cookie value", func(t *testing.T) {
		err := c.Save(context.Background(), AccountsSaveInput{Email: "a@example.com", Token: "embedded%3A%3Asometoken", UserID: "override"})
		require.NoError(t, err)
		assert.Equal(t, "override", got.UserID)
		assert.Equal(t, "sometoken", got.AccessToken)
	})
}

func TestAccountsSave_RequiresFlags(t *testing.T) {
	c := AccountsCmd{store: newCmdStore(t), mgr: &FakeAccountManager{}, now: time.Now}
	assert.Error(t, c.Save(context.Background(), AccountsSaveInput{Token: "t"}))
	assert.Error(t, c.Save(context.Background(), AccountsSaveInput{Email: "a@example.com"}))
}

func TestAccountsSwitch_NotFound(t *testing.T) {
	fake := &FakeAccountManager{
		SwitchAccountFunc: func(ctx context.Context, email string) (*account.SaveResult, error) {
			return nil, store.ErrNotFound
		},
	}
	c := AccountsCmd{store: newCmdStore(t), mgr: fake, now: time.Now}

	err := c.Switch(context.Background(), AccountsSwitchInput{Email: "missing@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing@example.com")
}

func TestAccountsSwitch_ReportsPartialCookieFailure(t *testing.T) {
	setupStdoutCapture(t)

	fake := &FakeAccountManager{
		SwitchAccountFunc: func(ctx context.Context, email string) (*account.SaveResult, error) {
			return &account.SaveResult{
				Account:   store.Account{Email: email, UserID: "u1"},
				CookieErr: errors.New("database is locked"),
			}, nil
		},
	}
	c := AccountsCmd{store: newCmdStore(t), mgr: fake, now: time.Now}

	require.NoError(t, c.Switch(context.Background(), AccountsSwitchInput{Email: "a@example.com"}))
	out := outBuf.String()
	assert.Contains(t, out, "cookie was not updated")
	assert.Contains(t, out, "database is locked")
}

func TestAccountsDelete_SkipConfirm(t *testing.T) {
	setupStdoutCapture(t)

	deleted := ""
	fake := &FakeAccountManager{
		DeleteAccountFunc: func(ctx context.Context, email string) error {
			deleted = email
			return nil
		},
	}
	c := AccountsCmd{store: newCmdStore(t), mgr: fake, now: time.Now}

	require.NoError(t, c.Delete(context.Background(), AccountsDeleteInput{Email: "a@example.com", SkipConfirm: true}))
	assert.Equal(t, "a@example.com", deleted)
}

func TestAccountsDelete_UnknownIsNotFatal(t *testing.T) {
	setupStdoutCapture(t)

	fake := &FakeAccountManager{
		DeleteAccountFunc: func(ctx context.Context, email string) error {
			return store.ErrNotFound
		},
	}
	c := AccountsCmd{store: newCmdStore(t), mgr: fake, now: time.Now}

	require.NoError(t, c.Delete(context.Background(), AccountsDeleteInput{Email: "a@example.com", SkipConfirm: true}))
	assert.Contains(t, outBuf.String(), "not found")
}

func TestAccountsRefresh_Timeout(t *testing.T) {
	setupStdoutCapture(t)

	fake := &FakeAccountManager{
		RefreshAccountTokenFunc: func(ctx context.Context, email string, flow account.Refresher) (*account.SaveResult, error) {
			return nil, deeptoken.ErrTimedOut
		},
	}
	c := AccountsCmd{store: newCmdStore(t), mgr: fake, now: time.Now}

	err := c.Refresh(context.Background(), AccountsRefreshInput{Email: "a@example.com"})
	assert.ErrorIs(t, err, deeptoken.ErrTimedOut)
	assert.Contains(t, outBuf.String(), "Timed out")
}

func TestAccountsImportClient_PrintsRemediation(t *testing.T) {
	setupStdoutCapture(t)

	fake := &FakeAccountManager{
		ImportFromClientFunc: func(ctx context.Context, reader account.ClientReader) (*account.SaveResult, error) {
			return nil, nativehost.ErrHostNotFound
		},
	}
	c := AccountsCmd{store: newCmdStore(t), mgr: fake, now: time.Now}

	err := c.ImportClient(context.Background(), AccountsImportInput{})
	assert.ErrorIs(t, err, nativehost.ErrHostNotFound)
	assert.Contains(t, outBuf.String(), "native host helper")
}

func TestAccountsImportClient_DeepChainsRefresh(t *testing.T) {
	setupStdoutCapture(t)

	refreshed := ""
	fake := &FakeAccountManager{
		ImportFromClientFunc: func(ctx context.Context, reader account.ClientReader) (*account.SaveResult, error) {
			return &account.SaveResult{Account: store.Account{Email: "c@example.com", UserID: "userC", TokenType: store.TokenTypeClient}}, nil
		},
		RefreshAccountTokenFunc: func(ctx context.Context, email string, flow account.Refresher) (*account.SaveResult, error) {
			refreshed = email
			return &account.SaveResult{Account: store.Account{Email: email, UserID: "userC", TokenType: store.TokenTypeDeep}}, nil
		},
	}
	c := AccountsCmd{store: newCmdStore(t), mgr: fake, now: time.Now}

	flow := deeptoken.New(deeptoken.Config{})
	require.NoError(t, c.ImportClient(context.Background(), AccountsImportInput{Flow: flow}))
	assert.Equal(t, "c@example.com", refreshed)

	out := outBuf.String()
	assert.Contains(t, out, "Imported account")
	assert.Contains(t, out, "Refreshed account")
}

func TestAccountsImportClient_NoDeepSkipsRefresh(t *testing.T) {
	setupStdoutCapture(t)

	fake := &FakeAccountManager{
		RefreshAccountTokenFunc: func(ctx context.Context, email string, flow account.Refresher) (*account.SaveResult, error) {
			t.Fatal("refresh must not run without the deep flag")
			return nil, nil
		},
	}
	c := AccountsCmd{store: newCmdStore(t), mgr: fake, now: time.Now}
	require.NoError(t, c.ImportClient(context.Background(), AccountsImportInput{}))
}

func TestRenderExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "-", renderExpiry(nil, now))

	future := now.Add(49 * time.Hour)
	assert.Equal(t, "3 day(s) left", renderExpiry(&future, now))

	past := now.Add(-time.Hour)
	assert.Equal(t, "expired", renderExpiry(&past, now))
}
