package cookie

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/client2login/cli/pkg/util"
	_ "modernc.org/sqlite" // SQLite driver (pure Go).
)

// ErrStoreNotFound indicates no Chromium cookie database could be located.
var ErrStoreNotFound = errors.New("chromium cookie store not found")

// ChromiumJar reads and writes cookies in a Chromium-family profile's
// Cookies SQLite database. Reads go through a snapshot copy so a running
// browser holding the database lock does not block us; writes go to the
// live database and require the browser to be closed to take effect
// reliably.
type ChromiumJar struct {
	dbPath string
}

// NewChromiumJar opens the jar backed by the given Cookies database path.
// An empty path locates the default profile's database for the current OS.
func NewChromiumJar(dbPath string) (*ChromiumJar, error) {
	if dbPath == "" {
		located, err := locateCookiesDB()
		if err != nil {
			return nil, err
		}
		dbPath = located
	}
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, dbPath)
	}
	return &ChromiumJar{dbPath: dbPath}, nil
}

// DBPath returns the backing database path.
func (j *ChromiumJar) DBPath() string { return j.dbPath }

func locateCookiesDB() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	var roots []string
	switch runtime.GOOS {
	case "darwin":
		roots = []string{
			filepath.Join(home, "Library", "Application Support", "Google", "Chrome"),
			filepath.Join(home, "Library", "Application Support", "Chromium"),
		}
	case "windows":
		local := os.Getenv("LOCALAPPDATA")
		roots = []string{
			filepath.Join(local, "Google", "Chrome", "User Data"),
			filepath.Join(local, "Chromium", "User Data"),
		}
	default:
		config := os.Getenv("XDG_CONFIG_HOME")
		if config == "" {
			config = filepath.Join(home, ".config")
		}
		roots = []string{
			filepath.Join(config, "google-chrome"),
			filepath.Join(config, "chromium"),
		}
	}

	for _, root := range roots {
		for _, candidate := range []string{
			filepath.Join(root, "Default", "Network", "Cookies"),
			filepath.Join(root, "Default", "Cookies"),
		} {
			if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
				return candidate, nil
			}
		}
	}
	return "", ErrStoreNotFound
}

// List returns cookies matching the query from a read-only snapshot of the
// database.
func (j *ChromiumJar) List(ctx context.Context, q Query) ([]Cookie, error) {
	snapshot, cleanup, err := snapshotDB(j.dbPath)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	db, err := openDB(ctx, snapshot, true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	metaVersion := chromiumMetaVersion(ctx, db)
	rows, err := queryCookieRows(ctx, db, q)
	if err != nil {
		return nil, err
	}

	var out []Cookie
	for _, row := range rows {
		c, ok := rowToCookie(row, metaVersion)
		if !ok {
			continue
		}
		if q.Matches(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Set upserts the cookie into the live database.
func (j *ChromiumJar) Set(ctx context.Context, c Cookie) error {
	if c.Name == "" || c.Domain == "" {
		return errors.New("cookie name and domain are required")
	}
	if c.Path == "" {
		c.Path = "/"
	}

	db, err := openDB(ctx, j.dbPath, false)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	now := timeToChromium(time.Now())
	var expires int64
	hasExpires := 0
	if c.Expires != nil {
		expires = timeToChromium(*c.Expires)
		hasExpires = 1
	}

	res, err := db.ExecContext(ctx,
		`UPDATE cookies
		   SET value = ?, encrypted_value = x'', expires_utc = ?, has_expires = ?,
		       is_secure = ?, is_httponly = ?, samesite = ?, last_update_utc = ?
		 WHERE host_key = ? AND name = ? AND path = ?`,
		c.Value, expires, hasExpires,
		boolToInt(c.Secure), boolToInt(c.HTTPOnly), sameSiteToInt(c.SameSite), now,
		c.Domain, c.Name, c.Path)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO cookies (
		     creation_utc, host_key, top_frame_site_key, name, value, encrypted_value,
		     path, expires_utc, is_secure, is_httponly, last_access_utc,
		     has_expires, is_persistent, priority, samesite, source_scheme,
		     source_port, last_update_utc)
		 VALUES (?, ?, '', ?, ?, x'', ?, ?, ?, ?, ?, ?, 1, 1, ?, 2, 443, ?)`,
		now, c.Domain, c.Name, c.Value,
		c.Path, expires, boolToInt(c.Secure), boolToInt(c.HTTPOnly), now,
		hasExpires, sameSiteToInt(c.SameSite), now)
	return err
}

// Remove deletes cookies matching the query from the live database.
func (j *ChromiumJar) Remove(ctx context.Context, q Query) error {
	db, err := openDB(ctx, j.dbPath, false)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	where, args := cookieWhereClause(q)
	_, err = db.ExecContext(ctx, `DELETE FROM cookies WHERE `+where, args...)
	return err
}

type cookieRow struct {
	hostKey        string
	name           string
	path           string
	value          string
	encryptedValue []byte
	expiresUTC     int64
	isSecure       bool
	isHTTPOnly     bool
	sameSite       int64
}

func queryCookieRows(ctx context.Context, db *sql.DB, q Query) ([]cookieRow, error) {
	where, args := cookieWhereClause(q)
	rows, err := db.QueryContext(ctx,
		`SELECT host_key, name, path, value, encrypted_value, expires_utc, is_secure, is_httponly, samesite
		   FROM cookies WHERE `+where+` ORDER BY expires_utc DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []cookieRow
	for rows.Next() {
		var r cookieRow
		var encrypted []byte
		var expires, secure, httpOnly, sameSite sql.NullInt64
		if err := rows.Scan(&r.hostKey, &r.name, &r.path, &r.value, &encrypted, &expires, &secure, &httpOnly, &sameSite); err != nil {
			return nil, err
		}
		r.encryptedValue = encrypted
		r.expiresUTC = expires.Int64
		r.isSecure = secure.Valid && secure.Int64 == 1
		r.isHTTPOnly = httpOnly.Valid && httpOnly.Int64 == 1
		r.sameSite = sameSite.Int64
		out = append(out, r)
	}
	return out, rows.Err()
}

func cookieWhereClause(q Query) (string, []any) {
	var clauses []string
	var args []any
	if q.Name != "" {
		clauses = append(clauses, "name = ?")
		args = append(args, q.Name)
	}
	if d := normalizeDomain(q.Domain); d != "" {
		clauses = append(clauses, "(host_key = ? OR host_key = ? OR host_key LIKE ?)")
		args = append(args, d, "."+d, "%."+d)
	}
	if len(clauses) == 0 {
		return "1=1", nil
	}
	return strings.Join(clauses, " AND "), args
}

func rowToCookie(row cookieRow, metaVersion int64) (Cookie, bool) {
	if row.name == "" || row.hostKey == "" {
		return Cookie{}, false
	}

	value := row.value
	if value == "" && len(row.encryptedValue) > 0 {
		if decrypted, ok := decryptChromiumValue(row.encryptedValue, metaVersion); ok {
			value = decrypted
		}
	}
	if value == "" {
		return Cookie{}, false
	}

	var expires *time.Time
	if row.expiresUTC != 0 {
		if t, ok := chromiumToTime(row.expiresUTC); ok {
			expires = &t
		}
	}
	if row.path == "" {
		row.path = "/"
	}

	return Cookie{
		Name:     row.name,
		Value:    value,
		Domain:   row.hostKey,
		Path:     row.path,
		Secure:   row.isSecure,
		HTTPOnly: row.isHTTPOnly,
		SameSite: sameSiteFromInt(row.sameSite),
		Expires:  expires,
	}, true
}

func sameSiteFromInt(v int64) SameSite {
	switch v {
	case 2:
		return SameSiteStrict
	case 1:
		return SameSiteLax
	default:
		return SameSiteNone
	}
}

func sameSiteToInt(s SameSite) int64 {
	switch s {
	case SameSiteStrict:
		return 2
	case SameSiteLax:
		return 1
	default:
		return 0
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Chromium stores times as microseconds since 1601-01-01 UTC.
const chromiumEpochDiffMicros = int64(11644473600000000)

func chromiumToTime(v int64) (time.Time, bool) {
	unixMicros := v - chromiumEpochDiffMicros
	if unixMicros <= 0 {
		return time.Time{}, false
	}
	return time.Unix(0, unixMicros*1000).UTC(), true
}

func timeToChromium(t time.Time) int64 {
	return t.UTC().UnixMicro() + chromiumEpochDiffMicros
}

func openDB(ctx context.Context, path string, readOnly bool) (*sql.DB, error) {
	dsn := "file:" + filepath.ToSlash(path)
	if readOnly {
		dsn += "?mode=ro"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func chromiumMetaVersion(ctx context.Context, db *sql.DB) int64 {
	var value int64
	if err := db.QueryRowContext(ctx, `SELECT CAST(value AS INTEGER) FROM meta WHERE key = 'version'`).Scan(&value); err != nil {
		return 0
	}
	return value
}

// snapshotDB copies the database and its WAL sidecars to a temp dir so
// reads never contend with the browser's lock.
func snapshotDB(dbPath string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "client2login-cookies-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	target := filepath.Join(dir, "Cookies")
	if err := util.CopyFile(dbPath, target); err != nil {
		cleanup()
		return "", nil, err
	}
	_ = copyFileIfExists(dbPath+"-wal", target+"-wal")
	_ = copyFileIfExists(dbPath+"-shm", target+"-shm")
	return target, cleanup, nil
}

func copyFileIfExists(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return nil
	}
	return util.CopyFile(src, dst)
}
