package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/gatewatch/internal/client"
	"github.com/alfredjeanlab/gatewatch/internal/ui"
)

var (
	httpURL    string
	jsonOutput bool
	guard      string

	gateClient client.GateClient
)

func defaultHTTPURL() string {
	if s := os.Getenv("GATES_HTTP_URL"); s != "" {
		return s
	}
	if p := activeProfile(); p.Server != "" {
		return p.Server
	}
	return "http://localhost:8080"
}

func defaultGuard() string {
	if s := os.Getenv("GATES_GUARD"); s != "" {
		return s
	}
	return activeProfile().Guard
}

// requireGuard returns the acting guard or an error telling the user how to
// pick one.
func requireGuard() (string, error) {
	if guard == "" {
		return "", fmt.Errorf("no guard selected: run 'gw login <guard>' or pass --guard")
	}
	return guard, nil
}

var rootCmd = &cobra.Command{
	Use:   "gw <command>",
	Short: "CLI for the gate monitoring board",
	Long: `gw talks to the gate server.

A gate moves gray -> blue when a guard claims it, blue -> green when
monitoring starts, green -> yellow when an arrival window runs out,
yellow -> green again as a departure, and green or yellow -> red when
monitoring is finished. Release and reset return it to gray.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		gateClient = client.NewHTTPClient(httpURL)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if gateClient != nil {
			gateClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "gate server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&guard, "guard", defaultGuard(), "acting guard")

	rootCmd.AddGroup(
		&cobra.Group{ID: "gates", Title: "Gates:"},
		&cobra.Group{ID: "monitoring", Title: "Monitoring:"},
		&cobra.Group{ID: "admin", Title: "Administration:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Gates
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)

	// Monitoring
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(departureCmd)
	rootCmd.AddCommand(extendCmd)
	rootCmd.AddCommand(finishCmd)
	rootCmd.AddCommand(releaseCmd)

	// Administration
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(resetAllCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(guardsCmd)

	// System
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(heartbeatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
