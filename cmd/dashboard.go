package cmd

import (
	"github.com/pkg/browser"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the cursor.com dashboard in your browser",
	Args:  cobra.NoArgs,
	RunE:  runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	url := getWebBaseURL() + "/dashboard"
	if err := browser.OpenURL(url); err != nil {
		pterm.Warning.Printf("Could not open browser automatically: %v\n", err)
		pterm.Println("  " + url)
		return nil
	}
	pterm.Info.Printf("Opened %s\n", url)
	return nil
}
