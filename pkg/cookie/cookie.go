// Package cookie wraps the browser's cookie store for the single session
// cookie that authenticates against cursor.com.
package cookie

import (
	"context"
	"strings"
	"time"
)

// SessionCookieName is the cookie the target site reads to authenticate.
const SessionCookieName = "WorkosCursorSessionToken"

// SessionCookieDomain is the leading-dot wildcard domain the cookie is
// written under.
const SessionCookieDomain = ".cursor.com"

// SameSite is the cookie SameSite attribute.
type SameSite string

const (
	// SameSiteNone is SameSite=None.
	SameSiteNone SameSite = "None"
	// SameSiteLax is SameSite=Lax.
	SameSiteLax SameSite = "Lax"
	// SameSiteStrict is SameSite=Strict.
	SameSiteStrict SameSite = "Strict"
)

// Cookie is a browser cookie record.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Secure   bool
	HTTPOnly bool
	SameSite SameSite
	Expires  *time.Time
}

// Query filters cookies. Empty fields match everything.
type Query struct {
	Name   string
	Domain string
}

// Jar is the subset of cookie store operations the tool needs.
type Jar interface {
	List(ctx context.Context, q Query) ([]Cookie, error)
	Set(ctx context.Context, c Cookie) error
	Remove(ctx context.Context, q Query) error
}

// Matches reports whether the cookie satisfies the query. Domain matching
// tolerates leading dots and subdomain placement on either side; names
// match exactly.
func (q Query) Matches(c Cookie) bool {
	if q.Name != "" && c.Name != q.Name {
		return false
	}
	if q.Domain != "" && !domainsOverlap(c.Domain, q.Domain) {
		return false
	}
	return true
}

func domainsOverlap(a, b string) bool {
	a = normalizeDomain(a)
	b = normalizeDomain(b)
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.HasSuffix(a, "."+b) || strings.HasSuffix(b, "."+a)
}

func normalizeDomain(d string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "."))
}

// Lookup finds the named cookie, trying progressively broader queries:
// name+domain first, then name across all domains, then everything on the
// domain, then the whole store. Browsers sometimes persist the cookie under
// a differently normalized domain than the one requested, so a miss on the
// narrow query is not authoritative.
func Lookup(ctx context.Context, jar Jar, name, domain string) (*Cookie, error) {
	queries := []Query{
		{Name: name, Domain: domain},
		{Name: name},
		{Domain: domain},
		{},
	}
	for _, q := range queries {
		found, err := jar.List(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, c := range found {
			if c.Name == name {
				cc := c
				return &cc, nil
			}
		}
	}
	return nil, nil
}
