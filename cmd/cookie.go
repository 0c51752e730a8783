package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/client2login/cli/pkg/bridge"
	"github.com/client2login/cli/pkg/cookie"
	"github.com/client2login/cli/pkg/token"
	"github.com/client2login/cli/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// CookieCmd handles direct session cookie operations.
type CookieCmd struct {
	jar cookie.Jar
	now func() time.Time
}

type CookieSetInput struct {
	Value string
}

// Show prints the live session cookie, decoded when possible.
func (c CookieCmd) Show(ctx context.Context) error {
	found, err := cookie.Lookup(ctx, c.jar, cookie.SessionCookieName, cookie.SessionCookieDomain)
	if err != nil {
		return err
	}
	if found == nil {
		pterm.Info.Println("No session cookie found")
		return nil
	}

	tableData := pterm.TableData{
		{"Property", "Value"},
		{"Name", found.Name},
		{"Domain", found.Domain},
	}

	sc, err := token.DecodeSessionCookie(found.Value)
	if err != nil {
		tableData = append(tableData, []string{"Decoded", "no (unrecognized value format)"})
		PrintTableNoPad(tableData, true)
		return nil
	}

	tableData = append(tableData, []string{"User ID", util.OrDash(sc.UserID)})
	if claims, err := token.DecodeBearerClaims(sc.AccessToken); err == nil && claims.ExpiresAtUnix != 0 {
		exp := token.ExtractExpiry(claims, c.now())
		tableData = append(tableData, []string{"Expires", renderExpiry(&exp.ExpiresAt, c.now())})
	} else if found.Expires != nil {
		tableData = append(tableData, []string{"Expires", renderExpiry(found.Expires, c.now())})
	}

	PrintTableNoPad(tableData, true)
	return nil
}

// Set writes a session cookie from a raw value.
func (c CookieCmd) Set(ctx context.Context, in CookieSetInput) error {
	if _, err := token.DecodeSessionCookie(in.Value); err != nil {
		return fmt.Errorf("invalid session cookie value: %w", err)
	}
	err := c.jar.Set(ctx, cookie.Cookie{
		Name:     cookie.SessionCookieName,
		Domain:   cookie.SessionCookieDomain,
		Path:     "/",
		Value:    in.Value,
		Secure:   true,
		HTTPOnly: false,
		SameSite: cookie.SameSiteLax,
	})
	if err != nil {
		return err
	}
	pterm.Success.Println("Session cookie written")
	return nil
}

// Clear removes the session cookie and its companions.
func (c CookieCmd) Clear(ctx context.Context) error {
	if err := bridge.ClearSessionCookies(ctx, c.jar); err != nil {
		return err
	}
	pterm.Success.Println("Session cookies cleared")
	return nil
}

// --- Cobra wiring ---

var cookieCmd = &cobra.Command{
	Use:   "cookie",
	Short: "Inspect and edit the browser session cookie",
}

var cookieShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the live session cookie",
	Args:  cobra.NoArgs,
	RunE:  runCookieShow,
}

var cookieSetCmd = &cobra.Command{
	Use:   "set <value>",
	Short: "Write the session cookie from a raw value",
	Long:  "Write the session cookie. The value must be <userID>%3A%3A<accessToken>.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCookieSet,
}

var cookieClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the session cookie",
	Args:  cobra.NoArgs,
	RunE:  runCookieClear,
}

func init() {
	cookieCmd.AddCommand(cookieShowCmd)
	cookieCmd.AddCommand(cookieSetCmd)
	cookieCmd.AddCommand(cookieClearCmd)
}

func getCookieCmd(cmd *cobra.Command) (CookieCmd, error) {
	jar, err := getJar(cmd)
	if err != nil {
		return CookieCmd{}, err
	}
	return CookieCmd{jar: jar, now: time.Now}, nil
}

func runCookieShow(cmd *cobra.Command, args []string) error {
	c, err := getCookieCmd(cmd)
	if err != nil {
		return err
	}
	return c.Show(cmd.Context())
}

func runCookieSet(cmd *cobra.Command, args []string) error {
	c, err := getCookieCmd(cmd)
	if err != nil {
		return err
	}
	return c.Set(cmd.Context(), CookieSetInput{Value: args[0]})
}

func runCookieClear(cmd *cobra.Command, args []string) error {
	c, err := getCookieCmd(cmd)
	if err != nil {
		return err
	}
	return c.Clear(cmd.Context())
}
