package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/gatewatch/internal/client"
	"github.com/alfredjeanlab/gatewatch/internal/ui"
)

// stockGates is the gate list provisioned by 'gw seed'.
var stockGates = []string{
	"A4", "A6", "A7", "A8", "A9", "A10", "A11", "A12", "A13", "A14",
	"A15", "A16", "A17", "A18", "A19", "A20", "A21", "A22", "A23", "A24",
	"A25", "A26", "A27", "A30",
	"B4", "B5", "B6", "B7", "B8", "B9", "B10", "B15", "B19",
	"C26", "C27", "C30",
	"D1", "D2", "D3", "D4",
	"E20", "E22", "E24",
}

// seedRequests builds the stock gates as gray arrivals scheduled an hour from
// now, one minute apart.
func seedRequests(now time.Time) []*client.CreateGateRequest {
	reqs := make([]*client.CreateGateRequest, len(stockGates))
	for i, label := range stockGates {
		sched := now.Add(time.Hour + time.Duration(i)*time.Minute).UTC()
		reqs[i] = &client.CreateGateRequest{Label: label, Type: "ARR", ScheduledTime: &sched}
	}
	return reqs
}

var resetCmd = &cobra.Command{
	Use:     "reset <id>",
	Short:   "Return a gate to gray, keeping its history",
	GroupID: "admin",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := gateClient.Reset(cmd.Context(), args[0], guard)
		if err != nil {
			return err
		}
		printGate(g)
		return nil
	},
}

var resetAllCmd = &cobra.Command{
	Use:     "reset-all",
	Short:   "Return every gate to gray",
	GroupID: "admin",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("reset-all clears every claim and timer; pass --yes to confirm")
		}
		n, err := gateClient.ResetAll(cmd.Context(), guard)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(map[string]int{"count": n})
			return nil
		}
		fmt.Printf("reset %d gates\n", n)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:     "seed",
	Short:   "Provision the stock gate list",
	GroupID: "admin",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		gates, err := gateClient.CreateGates(cmd.Context(), seedRequests(time.Now()))
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(gates)
			return nil
		}
		fmt.Printf("created %d gates\n", len(gates))
		return nil
	},
}

var guardsCmd = &cobra.Command{
	Use:     "guards",
	Short:   "Show guards on shift and the gates they hold",
	GroupID: "admin",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stale, _ := cmd.Flags().GetDuration("stale")
		guards, err := gateClient.Guards(cmd.Context(), stale)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(guards)
			return nil
		}
		if len(guards) == 0 {
			fmt.Println("no guards on shift")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "GUARD\tLAST SEEN\tLAST ACTION\tGATES")
		for _, e := range guards {
			name := e.Guard
			if e.Idle {
				name = ui.RenderMuted(name + " (idle)")
			}
			gates := "-"
			if len(e.Gates) > 0 {
				gates = fmt.Sprint(e.Gates)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, formatClock(&e.LastSeen), orDash(e.LastAction), gates)
		}
		return tw.Flush()
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	resetAllCmd.Flags().Bool("yes", false, "confirm the reset")
	guardsCmd.Flags().Duration("stale", 12*time.Hour, "hide guards silent for longer than this")
}
