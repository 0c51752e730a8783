package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/client2login/cli/pkg/cookie"
	"github.com/client2login/cli/pkg/reconcile"
	"github.com/client2login/cli/pkg/store"
	"github.com/client2login/cli/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// StatusCmd reports whether the saved current account and the live session
// cookie agree.
type StatusCmd struct {
	store store.Store
	jar   cookie.Jar
	now   func() time.Time
}

type StatusInput struct {
	Output string
}

func (c StatusCmd) Run(ctx context.Context, in StatusInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	verdict, err := reconcile.Validate(ctx, c.store, c.jar, c.now())
	if err != nil {
		return err
	}

	if in.Output == "json" {
		return util.PrintPrettyJSON(verdict)
	}

	printVerdict(verdict, c.now())
	return nil
}

var recommendationText = map[reconcile.Recommendation]string{
	reconcile.RecommendConsistent:             "Storage and browser session agree",
	reconcile.RecommendCookiePresentNoStorage: "A live session exists but no account is saved; run 'accounts import-client' or 'accounts save' to adopt it",
	reconcile.RecommendNoAccountSelectImport:  "No account is saved and no session cookie exists; save or import an account",
	reconcile.RecommendCookieMissingReselect:  "The saved account has no session cookie; run 'accounts switch' to rewrite it",
	reconcile.RecommendCookieExpiredReselect:  "The session token is expired; switch accounts or refresh the token",
	reconcile.RecommendMismatchReselect:       "The session cookie belongs to a different user than the saved account; run 'accounts switch' to realign",
}

func printVerdict(v reconcile.Verdict, now time.Time) {
	if v.IsConsistent {
		pterm.Success.Println(recommendationText[v.Recommendation])
	} else {
		pterm.Warning.Println(recommendationText[v.Recommendation])
	}

	tableData := pterm.TableData{{"Side", "User ID", "Detail"}}
	if v.StorageAccount != nil {
		tableData = append(tableData, []string{
			"storage",
			util.OrDash(v.StorageAccount.UserID),
			v.StorageAccount.Email,
		})
	} else {
		tableData = append(tableData, []string{"storage", "-", "no current account"})
	}

	switch {
	case !v.CookieState.Present:
		tableData = append(tableData, []string{"cookie", "-", "not found"})
	case v.CookieState.Data == nil:
		tableData = append(tableData, []string{"cookie", "-", "present but undecodable"})
	default:
		tableData = append(tableData, []string{
			"cookie",
			util.OrDash(v.CookieState.Data.UserID),
			renderExpiry(v.CookieState.Data.ExpiresAt, now),
		})
	}

	PrintTableNoPad(tableData, true)
}

// --- Cobra wiring ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the saved account and the browser session agree",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringP("output", "o", "", "Output format (json)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := getStore(cmd)
	if err != nil {
		return err
	}
	jar, err := getJar(cmd)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	c := StatusCmd{store: st, jar: jar, now: time.Now}
	return c.Run(cmd.Context(), StatusInput{Output: output})
}
