package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/client2login/cli/pkg/account"
	"github.com/client2login/cli/pkg/deeptoken"
	"github.com/client2login/cli/pkg/nativehost"
	"github.com/client2login/cli/pkg/store"
	"github.com/client2login/cli/pkg/token"
	"github.com/client2login/cli/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// AccountManagerService defines the subset of the account manager that the
// commands use.
type AccountManagerService interface {
	SaveAccount(ctx context.Context, in account.SaveInput) (*account.SaveResult, error)
	SwitchAccount(ctx context.Context, email string) (*account.SaveResult, error)
	DeleteAccount(ctx context.Context, email string) error
	RefreshAccountToken(ctx context.Context, email string, flow account.Refresher) (*account.SaveResult, error)
	ImportFromClient(ctx context.Context, reader account.ClientReader) (*account.SaveResult, error)
}

// AccountsCmd handles account operations independent of cobra.
type AccountsCmd struct {
	store store.Store
	mgr   AccountManagerService
	now   func() time.Time
}

type AccountsSaveInput struct {
	Email  string
	Token  string
	UserID string
}

type AccountsSwitchInput struct {
	Email string
}

type AccountsDeleteInput struct {
	Email       string
	SkipConfirm bool
}

type AccountsRefreshInput struct {
	Email string
	Flow  account.Refresher
}

type AccountsImportInput struct {
	Reader account.ClientReader
	// Flow, when set, chains the deep login flow after the import to
	// trade the client token for a longer-lived one.
	Flow account.Refresher
}

// List prints all saved accounts with the current one marked.
func (c AccountsCmd) List(ctx context.Context) error {
	accounts, err := c.store.List(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		pterm.Info.Println("No accounts saved. Use 'accounts save' or 'accounts import-client' to add one.")
		return nil
	}

	current, err := c.store.Current(ctx)
	if err != nil {
		return err
	}

	tableData := pterm.TableData{{"", "Email", "User ID", "Type", "Expires"}}
	for _, a := range accounts {
		marker := ""
		if current != nil && current.Email == a.Email {
			marker = "*"
		}
		tableData = append(tableData, []string{
			marker,
			a.Email,
			util.OrDash(a.UserID),
			string(a.TokenType),
			renderExpiry(a.ExpiresAt, c.now()),
		})
	}

	PrintTableNoPad(tableData, true)
	return nil
}

// Save stores a manually supplied token. The token may be a bare JWT or a
// full session cookie value.
func (c AccountsCmd) Save(ctx context.Context, in AccountsSaveInput) error {
	if in.Email == "" {
		return fmt.Errorf("--email is required")
	}
	if in.Token == "" {
		return fmt.Errorf("--token is required")
	}

	save := account.SaveInput{
		Email:       in.Email,
		UserID:      in.UserID,
		AccessToken: in.Token,
		TokenType:   store.TokenTypeManual,
	}
	if strings.Contains(in.Token, token.Separator) {
		sc, err := token.DecodeSessionCookie(in.Token)
		if err != nil {
			return fmt.Errorf("invalid session cookie value: %w", err)
		}
		// An explicit --user-id wins over the id embedded in the value.
		if save.UserID == "" {
			save.UserID = sc.UserID
		}
		save.AccessToken = sc.AccessToken
	}

	res, err := c.mgr.SaveAccount(ctx, save)
	if err != nil {
		return err
	}
	reportSaved(res, "Saved")
	return nil
}

// Switch makes a saved account the active one.
func (c AccountsCmd) Switch(ctx context.Context, in AccountsSwitchInput) error {
	res, err := c.mgr.SwitchAccount(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no account saved for %s", in.Email)
		}
		return err
	}
	reportSaved(res, "Switched to")
	return nil
}

// Delete removes a saved account.
func (c AccountsCmd) Delete(ctx context.Context, in AccountsDeleteInput) error {
	if !in.SkipConfirm {
		msg := fmt.Sprintf("Are you sure you want to delete account '%s'?", in.Email)
		pterm.DefaultInteractiveConfirm.DefaultText = msg
		ok, _ := pterm.DefaultInteractiveConfirm.Show()
		if !ok {
			pterm.Info.Println("Deletion cancelled")
			return nil
		}
	}

	if err := c.mgr.DeleteAccount(ctx, in.Email); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			pterm.Info.Printf("Account '%s' not found\n", in.Email)
			return nil
		}
		return err
	}
	pterm.Success.Printf("Deleted account: %s\n", in.Email)
	return nil
}

// Refresh mints a new deep token for a saved account.
func (c AccountsCmd) Refresh(ctx context.Context, in AccountsRefreshInput) error {
	pterm.Info.Println("Opening the login page; confirm the login in your browser...")

	res, err := c.mgr.RefreshAccountToken(ctx, in.Email, in.Flow)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no account saved for %s", in.Email)
		}
		if errors.Is(err, deeptoken.ErrTimedOut) {
			pterm.Error.Println("Timed out waiting for login confirmation. Run the command again to retry.")
			return err
		}
		return err
	}
	reportSaved(res, "Refreshed")
	return nil
}

// Reset drops all saved accounts and the current-account pointer.
func (c AccountsCmd) Reset(ctx context.Context, skipConfirm bool) error {
	if !skipConfirm {
		pterm.DefaultInteractiveConfirm.DefaultText = "Delete all saved accounts?"
		ok, _ := pterm.DefaultInteractiveConfirm.Show()
		if !ok {
			pterm.Info.Println("Reset cancelled")
			return nil
		}
	}
	if err := c.store.Reset(ctx); err != nil {
		return err
	}
	pterm.Success.Println("All accounts removed")
	return nil
}

// ImportClient reads credentials from the installed desktop client.
func (c AccountsCmd) ImportClient(ctx context.Context, in AccountsImportInput) error {
	res, err := c.mgr.ImportFromClient(ctx, in.Reader)
	if err != nil {
		for _, step := range nativehost.Remediation(err) {
			pterm.Println("  - " + step)
		}
		return err
	}
	reportSaved(res, "Imported")

	if in.Flow == nil {
		return nil
	}
	pterm.Info.Println("Minting a longer-lived token; confirm the login in your browser...")
	deepRes, err := c.mgr.RefreshAccountToken(ctx, res.Account.Email, in.Flow)
	if err != nil {
		if errors.Is(err, deeptoken.ErrTimedOut) {
			pterm.Error.Println("Timed out waiting for login confirmation. The imported account is kept; run 'accounts refresh' to retry.")
		}
		return err
	}
	reportSaved(deepRes, "Refreshed")
	return nil
}

func reportSaved(res *account.SaveResult, verb string) {
	pterm.Success.Printf("%s account: %s\n", verb, res.Account.Email)

	tableData := pterm.TableData{
		{"Property", "Value"},
		{"Email", res.Account.Email},
		{"User ID", util.OrDash(res.Account.UserID)},
		{"Token Type", string(res.Account.TokenType)},
		{"Expires", renderExpiry(res.Account.ExpiresAt, time.Now())},
	}
	PrintTableNoPad(tableData, true)

	if res.CookieErr != nil {
		pterm.Warning.Printf("Account saved, but the browser cookie was not updated: %v\n", res.CookieErr)
		pterm.Println("  - Close the browser so its cookie database is unlocked, then switch again")
	}
}

// renderExpiry shows remaining validity in whole days, rounded up.
func renderExpiry(expiresAt *time.Time, now time.Time) string {
	if expiresAt == nil {
		return "-"
	}
	exp := token.ExpiryAt(*expiresAt, now)
	if exp.IsExpired {
		return "expired"
	}
	return fmt.Sprintf("%d day(s) left", exp.RemainingDays)
}

// --- Cobra wiring ---

var accountsCmd = &cobra.Command{
	Use:     "accounts",
	Aliases: []string{"account"},
	Short:   "Manage saved accounts",
	Long:    "Commands for saving, switching, deleting, and refreshing cursor.com accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved accounts",
	Args:  cobra.NoArgs,
	RunE:  runAccountsList,
}

var accountsSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save an account from a pasted token",
	Long: `Save an account from a manually supplied token.

The token may be a bare access token (JWT) or a full session cookie value
in the form <userID>%3A%3A<accessToken>.`,
	Args: cobra.NoArgs,
	RunE: runAccountsSave,
}

var accountsSwitchCmd = &cobra.Command{
	Use:   "switch <email>",
	Short: "Switch the active account",
	Long:  "Make a saved account current and rewrite the browser session cookie to it",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsSwitch,
}

var accountsDeleteCmd = &cobra.Command{
	Use:   "delete <email>",
	Short: "Delete a saved account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsDelete,
}

var accountsRefreshCmd = &cobra.Command{
	Use:   "refresh <email>",
	Short: "Mint a longer-lived token via the deep login flow",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsRefresh,
}

var accountsImportClientCmd = &cobra.Command{
	Use:   "import-client",
	Short: "Import the desktop client's signed-in account",
	Args:  cobra.NoArgs,
	RunE:  runAccountsImportClient,
}

var accountsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all saved accounts",
	Args:  cobra.NoArgs,
	RunE:  runAccountsReset,
}

func init() {
	accountsSaveCmd.Flags().String("email", "", "Account email (required)")
	accountsSaveCmd.Flags().String("token", "", "Access token or session cookie value (required)")
	accountsSaveCmd.Flags().String("user-id", "", "User id, for tokens that carry no claims")
	_ = accountsSaveCmd.MarkFlagRequired("email")
	_ = accountsSaveCmd.MarkFlagRequired("token")

	accountsDeleteCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")
	accountsResetCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")

	accountsImportClientCmd.Flags().String("host-path", "", "Path to the native host helper binary")
	accountsImportClientCmd.Flags().Bool("deep", false, "Run the deep login flow after importing to mint a longer-lived token")

	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsSaveCmd)
	accountsCmd.AddCommand(accountsSwitchCmd)
	accountsCmd.AddCommand(accountsDeleteCmd)
	accountsCmd.AddCommand(accountsRefreshCmd)
	accountsCmd.AddCommand(accountsImportClientCmd)
	accountsCmd.AddCommand(accountsResetCmd)
}

func getAccountsCmd(cmd *cobra.Command) (AccountsCmd, error) {
	st, err := getStore(cmd)
	if err != nil {
		return AccountsCmd{}, err
	}
	jar, err := getJar(cmd)
	if err != nil {
		return AccountsCmd{}, err
	}
	mgr := &account.Manager{Store: st, Jar: jar, Log: getLogger()}
	return AccountsCmd{store: st, mgr: mgr, now: time.Now}, nil
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	c, err := getAccountsCmd(cmd)
	if err != nil {
		return err
	}
	return c.List(cmd.Context())
}

func runAccountsSave(cmd *cobra.Command, args []string) error {
	c, err := getAccountsCmd(cmd)
	if err != nil {
		return err
	}
	email, _ := cmd.Flags().GetString("email")
	tok, _ := cmd.Flags().GetString("token")
	userID, _ := cmd.Flags().GetString("user-id")
	return c.Save(cmd.Context(), AccountsSaveInput{Email: email, Token: tok, UserID: userID})
}

func runAccountsSwitch(cmd *cobra.Command, args []string) error {
	c, err := getAccountsCmd(cmd)
	if err != nil {
		return err
	}
	return c.Switch(cmd.Context(), AccountsSwitchInput{Email: args[0]})
}

func runAccountsDelete(cmd *cobra.Command, args []string) error {
	c, err := getAccountsCmd(cmd)
	if err != nil {
		return err
	}
	skip, _ := cmd.Flags().GetBool("yes")
	return c.Delete(cmd.Context(), AccountsDeleteInput{Email: args[0], SkipConfirm: skip})
}

func runAccountsRefresh(cmd *cobra.Command, args []string) error {
	c, err := getAccountsCmd(cmd)
	if err != nil {
		return err
	}
	flow := deeptoken.New(deeptoken.Config{
		WebBaseURL: getWebBaseURL(),
		APIBaseURL: getAPIBaseURL(),
		Log:        getLogger(),
	})
	return c.Refresh(cmd.Context(), AccountsRefreshInput{Email: args[0], Flow: flow})
}

func runAccountsReset(cmd *cobra.Command, args []string) error {
	c, err := getAccountsCmd(cmd)
	if err != nil {
		return err
	}
	skip, _ := cmd.Flags().GetBool("yes")
	return c.Reset(cmd.Context(), skip)
}

func runAccountsImportClient(cmd *cobra.Command, args []string) error {
	c, err := getAccountsCmd(cmd)
	if err != nil {
		return err
	}
	hostPath, _ := cmd.Flags().GetString("host-path")
	reader := &nativehost.Client{HostPath: hostPath, Log: getLogger()}
	in := AccountsImportInput{Reader: reader}
	if deep, _ := cmd.Flags().GetBool("deep"); deep {
		in.Flow = deeptoken.New(deeptoken.Config{
			WebBaseURL: getWebBaseURL(),
			APIBaseURL: getAPIBaseURL(),
			Log:        getLogger(),
		})
	}
	return c.ImportClient(cmd.Context(), in)
}
