package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/client2login/cli/pkg/cookie"
	"github.com/client2login/cli/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_NoAccountNoCookie(t *testing.T) {
	setupStdoutCapture(t)

	c := StatusCmd{store: newCmdStore(t), jar: cookie.NewMemoryJar(), now: time.Now}
	require.NoError(t, c.Run(context.Background(), StatusInput{}))

	out := outBuf.String()
	assert.Contains(t, out, "No account is saved")
	assert.Contains(t, out, "not found")
}

func TestStatus_Mismatch(t *testing.T) {
	setupStdoutCapture(t)
	ctx := context.Background()

	st := newCmdStore(t)
	a := store.Account{Email: "a@example.com", UserID: "u1", AccessToken: "t"}
	require.NoError(t, st.Put(ctx, a))
	require.NoError(t, st.SetCurrent(ctx, a))

	jar := cookie.NewMemoryJar(cookie.Cookie{
		Name:   cookie.SessionCookieName,
		Domain: cookie.SessionCookieDomain,
		Value:  "u2%3A%3Aopaquetoken",
	})

	c := StatusCmd{store: st, jar: jar, now: time.Now}
	require.NoError(t, c.Run(ctx, StatusInput{}))

	out := outBuf.String()
	assert.Contains(t, out, "different user")
	assert.Contains(t, out, "u1")
	assert.Contains(t, out, "u2")
}

func TestStatus_JSONOutput(t *testing.T) {
	setupStdoutCapture(t)

	c := StatusCmd{store: newCmdStore(t), jar: cookie.NewMemoryJar(), now: time.Now}
	require.NoError(t, c.Run(context.Background(), StatusInput{Output: "json"}))
	assert.Contains(t, outBuf.String(), `"Recommendation"`)
}

func TestStatus_RejectsUnknownOutput(t *testing.T) {
	c := StatusCmd{store: newCmdStore(t), jar: cookie.NewMemoryJar(), now: time.Now}
	assert.Error(t, c.Run(context.Background(), StatusInput{Output: "yaml"}))
}
