// Package update checks GitHub releases for a newer build and figures out
// how the running binary was installed.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// InstallMethod identifies how the binary landed on this machine.
type InstallMethod string

const (
	InstallMethodBrew    InstallMethod = "homebrew"
	InstallMethodNPM     InstallMethod = "npm"
	InstallMethodPNPM    InstallMethod = "pnpm"
	InstallMethodBun     InstallMethod = "bun"
	InstallMethodUnknown InstallMethod = "unknown"
)

const latestReleaseAPI = "https://api.github.com/repos/client2login/cli/releases/latest"

type releaseInfo struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// FetchLatest returns the latest release tag and its release page URL.
func FetchLatest(ctx context.Context) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, latestReleaseAPI, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("release lookup returned %s", resp.Status)
	}

	var info releaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", "", err
	}
	if info.TagName == "" {
		return "", "", fmt.Errorf("release lookup returned no tag")
	}
	return info.TagName, info.HTMLURL, nil
}

// IsNewerVersion reports whether latest is strictly newer than current.
// Both accept an optional leading "v".
func IsNewerVersion(current, latest string) (bool, error) {
	cur, err := semver.NewVersion(strings.TrimPrefix(current, "v"))
	if err != nil {
		return false, fmt.Errorf("parsing current version %q: %w", current, err)
	}
	lat, err := semver.NewVersion(strings.TrimPrefix(latest, "v"))
	if err != nil {
		return false, fmt.Errorf("parsing latest version %q: %w", latest, err)
	}
	return lat.GreaterThan(cur), nil
}

type installRule struct {
	method InstallMethod
	check  func(path string) bool
}

// installMethodRules orders the path heuristics. Package-manager paths are
// checked before Homebrew so a brew-managed node does not shadow an npm
// install.
func installMethodRules() []installRule {
	return []installRule{
		{InstallMethodNPM, pathMatchesNPM},
		{InstallMethodBun, pathMatchesBun},
		{InstallMethodPNPM, pathMatchesPNPM},
		{InstallMethodBrew, pathMatchesHomebrew},
	}
}

// DetectInstallMethod resolves the running executable and classifies its
// path. The resolved path is returned either way so callers can print it.
func DetectInstallMethod() (InstallMethod, string) {
	exe, err := os.Executable()
	if err != nil {
		return InstallMethodUnknown, ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	for _, r := range installMethodRules() {
		if r.check(exe) {
			return r.method, exe
		}
	}
	return InstallMethodUnknown, exe
}

func pathMatchesNPM(path string) bool {
	return strings.Contains(path, "/.npm-global/") ||
		strings.Contains(path, "/.npm/") ||
		strings.Contains(path, "/node_modules/") ||
		strings.Contains(path, "/share/npm/")
}

func pathMatchesBun(path string) bool {
	return strings.Contains(path, "/.bun/")
}

func pathMatchesPNPM(path string) bool {
	return strings.Contains(path, "/pnpm/") || strings.Contains(path, "/.pnpm/")
}

func pathMatchesHomebrew(path string) bool {
	return strings.Contains(path, "/homebrew/") ||
		strings.Contains(path, "/Cellar/") ||
		strings.Contains(path, "/.linuxbrew/")
}

func suggestUpgradeCommandForMethod(method InstallMethod) string {
	switch method {
	case InstallMethodNPM:
		return "npm i -g @client2login/cli@latest"
	case InstallMethodPNPM:
		return "pnpm add -g @client2login/cli@latest"
	case InstallMethodBun:
		return "bun add -g @client2login/cli@latest"
	default:
		return "brew upgrade client2login/tap/client2login"
	}
}

// SuggestUpgradeCommand returns the upgrade command for the detected
// installation method.
func SuggestUpgradeCommand() string {
	method, _ := DetectInstallMethod()
	return suggestUpgradeCommandForMethod(method)
}
