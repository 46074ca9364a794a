package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/gatewatch/internal/ui"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List gates in the order the selected guard should work them",
	GroupID: "gates",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		viewer := guard
		if all {
			viewer = ""
		}
		gates, err := gateClient.ListGates(cmd.Context(), viewer)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(gates)
			return nil
		}
		if len(gates) == 0 {
			fmt.Println("no gates (run 'gw seed' to provision the stock list)")
			return nil
		}
		return printGateTable(os.Stdout, gates)
	},
}

var groupsCmd = &cobra.Command{
	Use:     "groups",
	Short:   "Show gates grouped by terminal letter",
	GroupID: "gates",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, err := gateClient.Groups(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(groups)
			return nil
		}
		for i, g := range groups {
			if i > 0 {
				fmt.Println()
			}
			fmt.Printf("%s (%d)\n", ui.RenderAccent(g.Key), len(g.Gates))
			if err := printGateTable(os.Stdout, g.Gates); err != nil {
				return err
			}
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:     "show <id>",
	Short:   "Show a gate with its history",
	GroupID: "gates",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := gateClient.GetGate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printGate(g)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:     "history <id>",
	Short:   "Show a gate's history, oldest first",
	GroupID: "gates",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := gateClient.History(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(history)
			return nil
		}
		for _, e := range history {
			fmt.Printf("%s  %-12s %s\n", ui.RenderMuted(formatClock(&e.Timestamp)), e.Actor, e.Event)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().Bool("all", false, "ignore the selected guard when ordering")
}
