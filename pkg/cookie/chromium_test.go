package cookie

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChromiumTimeConversion(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	v := timeToChromium(now)
	back, ok := chromiumToTime(v)
	require.True(t, ok)
	assert.True(t, back.Equal(now))

	_, ok = chromiumToTime(0)
	assert.False(t, ok)
}

func TestSameSiteMapping(t *testing.T) {
	for _, s := range []SameSite{SameSiteNone, SameSiteLax, SameSiteStrict} {
		assert.Equal(t, s, sameSiteFromInt(sameSiteToInt(s)))
	}
}

func TestCookieWhereClause(t *testing.T) {
	where, args := cookieWhereClause(Query{Name: "a", Domain: ".cursor.com"})
	assert.Equal(t, "name = ? AND (host_key = ? OR host_key = ? OR host_key LIKE ?)", where)
	assert.Equal(t, []any{"a", "cursor.com", ".cursor.com", "%.cursor.com"}, args)

	where, args = cookieWhereClause(Query{})
	assert.Equal(t, "1=1", where)
	assert.Nil(t, args)
}

// newTestCookiesDB creates an empty Cookies database with the Chromium
// schema subset the jar touches.
func newTestCookiesDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Cookies")

	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(path))
	require.NoError(t, err)
	defer func() { require.NoError(t, db.Close()) }()

	_, err = db.Exec(`
		CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT);
		INSERT INTO meta (key, value) VALUES ('version', '20');
		CREATE TABLE cookies (
			creation_utc INTEGER NOT NULL,
			host_key TEXT NOT NULL,
			top_frame_site_key TEXT NOT NULL,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			encrypted_value BLOB NOT NULL,
			path TEXT NOT NULL,
			expires_utc INTEGER NOT NULL,
			is_secure INTEGER NOT NULL,
			is_httponly INTEGER NOT NULL,
			last_access_utc INTEGER NOT NULL,
			has_expires INTEGER NOT NULL,
			is_persistent INTEGER NOT NULL,
			priority INTEGER NOT NULL,
			samesite INTEGER NOT NULL,
			source_scheme INTEGER NOT NULL,
			source_port INTEGER NOT NULL,
			last_update_utc INTEGER NOT NULL
		);`)
	require.NoError(t, err)
	return path
}

func TestChromiumJarRoundtrip(t *testing.T) {
	ctx := context.Background()
	path := newTestCookiesDB(t)

	jar, err := NewChromiumJar(path)
	require.NoError(t, err)

	expires := time.Now().Add(24 * time.Hour).Truncate(time.Microsecond)
	c := Cookie{
		Name:     SessionCookieName,
		Domain:   SessionCookieDomain,
		Path:     "/",
		Value:    "user123%3A%3Atok",
		Secure:   true,
		HTTPOnly: true,
		SameSite: SameSiteLax,
		Expires:  &expires,
	}
	require.NoError(t, jar.Set(ctx, c))

	found, err := Lookup(ctx, jar, SessionCookieName, SessionCookieDomain)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, c.Value, found.Value)
	assert.Equal(t, SessionCookieDomain, found.Domain)
	assert.True(t, found.Secure)
	assert.True(t, found.HTTPOnly)
	assert.Equal(t, SameSiteLax, found.SameSite)
	require.NotNil(t, found.Expires)
	assert.True(t, found.Expires.Equal(expires.UTC()))

	// Set again replaces the value in place.
	c.Value = "user123%3A%3Anewtok"
	require.NoError(t, jar.Set(ctx, c))
	all, err := jar.List(ctx, Query{Name: SessionCookieName})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "user123%3A%3Anewtok", all[0].Value)

	require.NoError(t, jar.Remove(ctx, Query{Name: SessionCookieName, Domain: "cursor.com"}))
	found, err = Lookup(ctx, jar, SessionCookieName, SessionCookieDomain)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestChromiumJarMissingDB(t *testing.T) {
	_, err := NewChromiumJar(filepath.Join(t.TempDir(), "nope", "Cookies"))
	assert.ErrorIs(t, err, ErrStoreNotFound)
}
