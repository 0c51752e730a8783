package cmd

import (
	"os"

	"github.com/client2login/cli/pkg/account"
	"github.com/client2login/cli/pkg/bridge"
	"github.com/client2login/cli/pkg/deeptoken"
	"github.com/client2login/cli/pkg/nativehost"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the account actions over stdio",
	Long: `Serve the account actions as a native messaging host: length-prefixed
JSON requests on stdin, length-prefixed JSON responses on stdout. Intended
to be registered as a browser extension's native host.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	st, err := getStore(cmd)
	if err != nil {
		return err
	}
	jar, err := getJar(cmd)
	if err != nil {
		return err
	}

	log := getLogger()
	mgr := &account.Manager{Store: st, Jar: jar, Log: log}
	d := &bridge.Dispatcher{
		Manager: mgr,
		Store:   st,
		Jar:     jar,
		NewFlow: func() account.Refresher {
			return deeptoken.New(deeptoken.Config{
				WebBaseURL: getWebBaseURL(),
				APIBaseURL: getAPIBaseURL(),
				Log:        log,
			})
		},
		Client: &nativehost.Client{Log: log},
		Log:    log,
	}
	return d.Serve(cmd.Context(), os.Stdin, os.Stdout)
}
