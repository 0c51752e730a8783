package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/client2login/cli/pkg/cookie"
	"github.com/client2login/cli/pkg/store"
	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// Metadata carries build info injected at link time.
type Metadata struct {
	Version string
}

var metadata = Metadata{Version: "dev"}

// SetMetadata records build info before Execute.
func SetMetadata(m Metadata) {
	if m.Version != "" {
		metadata = m
	}
}

const (
	defaultWebBaseURL = "https://www.cursor.com"
	defaultAPIBaseURL = "https://api2.cursor.sh"
)

var rootCmd = &cobra.Command{
	Use:   "client2login",
	Short: "Manage cursor.com accounts and the session cookie that signs them in",
	Long: `client2login saves multiple cursor.com accounts and switches between them
by rewriting the browser's session cookie. Tokens can be imported from the
installed desktop client, pasted in manually, or refreshed through the
deep login flow.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Missing .env is fine; only a malformed one is an error.
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("loading .env: %w", err)
		}
		setupLogger(cmd)
		return nil
	},
}

// Root returns the assembled command tree for the entrypoint.
func Root() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().String("store-path", "", "Path to the accounts file (default: user config dir)")
	rootCmd.PersistentFlags().String("cookie-db", "", "Path to the browser cookie database (default: auto-detect)")
	rootCmd.PersistentFlags().Bool("no-keyring", false, "Store tokens in the accounts file instead of the OS keyring")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(cookieCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(upgradeCmd)
}

func setupLogger(cmd *cobra.Command) {
	level := slog.LevelWarn
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func getLogger() *slog.Logger {
	return slog.Default()
}

func getWebBaseURL() string {
	if u := os.Getenv("CURSOR_WEB_URL"); strings.TrimSpace(u) != "" {
		return strings.TrimRight(u, "/")
	}
	return defaultWebBaseURL
}

func getAPIBaseURL() string {
	if u := os.Getenv("CURSOR_API_URL"); strings.TrimSpace(u) != "" {
		return strings.TrimRight(u, "/")
	}
	return defaultAPIBaseURL
}

func getStore(cmd *cobra.Command) (store.Store, error) {
	path, _ := cmd.Flags().GetString("store-path")
	if path == "" {
		var err error
		path, err = store.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolving store path: %w", err)
		}
	}
	fs, err := store.NewFileStore(path)
	if err != nil {
		return nil, err
	}
	if noKeyring, _ := cmd.Flags().GetBool("no-keyring"); noKeyring {
		return fs, nil
	}
	return store.NewKeyringStore(fs, getLogger()), nil
}

func getJar(cmd *cobra.Command) (cookie.Jar, error) {
	dbPath, _ := cmd.Flags().GetString("cookie-db")
	return cookie.NewChromiumJar(dbPath)
}

// PrintTableNoPad renders rows without pterm's default left padding.
func PrintTableNoPad(data pterm.TableData, hasHeader bool) {
	t := pterm.DefaultTable.WithData(data)
	if hasHeader {
		t = t.WithHasHeader()
	}
	if err := t.Render(); err != nil {
		pterm.Error.Printf("failed to render table: %v\n", err)
	}
}
