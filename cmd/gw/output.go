package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/gatewatch/internal/client"
	"github.com/alfredjeanlab/gatewatch/internal/model"
	"github.com/alfredjeanlab/gatewatch/internal/ui"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

// formatHMS renders seconds as HH:MM:SS. Negative input renders as 00:00:00.
func formatHMS(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}

// formatClock renders t as local HH:MM, or "-" when unset.
func formatClock(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("15:04")
}

func timerCell(g *client.GateView) string {
	if !g.Timer.IsActive {
		return "-"
	}
	return formatHMS(g.Timer.RemainingSeconds)
}

func printGateTable(w io.Writer, gates []*client.GateView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GATE\tTYPE\tSTATUS\tGUARD\tSCHEDULED\tTIMER\tID")
	for _, g := range gates {
		guardName := g.ResponsibleGuard
		if guardName == "" {
			guardName = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			g.Label,
			g.Type,
			ui.RenderStatus(g.Status, string(g.Status)),
			guardName,
			formatClock(g.ScheduledTime),
			timerCell(g),
			ui.RenderMuted(g.ID),
		)
	}
	return tw.Flush()
}

func printGateDetail(w io.Writer, g *client.GateView) {
	fmt.Fprintf(w, "Gate:        %s\n", g.Label)
	fmt.Fprintf(w, "ID:          %s\n", g.ID)
	fmt.Fprintf(w, "Type:        %s\n", g.Type)
	fmt.Fprintf(w, "Status:      %s\n", ui.RenderStatus(g.Status, string(g.Status)))
	if g.ResponsibleGuard != "" {
		fmt.Fprintf(w, "Guard:       %s\n", g.ResponsibleGuard)
	}
	fmt.Fprintf(w, "Scheduled:   %s\n", formatClock(g.ScheduledTime))
	if g.MonitorStart != nil {
		fmt.Fprintf(w, "Started:     %s\n", formatClock(g.MonitorStart))
	}
	if g.MonitorStop != nil {
		fmt.Fprintf(w, "Stopped:     %s\n", formatClock(g.MonitorStop))
	}
	if g.ExtraTimeMinutes > 0 {
		fmt.Fprintf(w, "Extra time:  +%d min\n", g.ExtraTimeMinutes)
	}
	if g.Timer.IsActive {
		fmt.Fprintf(w, "Remaining:   %s (until %s)\n", formatHMS(g.Timer.RemainingSeconds), formatClock(&g.Timer.StopTime))
	}
	if g.Screen != "" {
		fmt.Fprintf(w, "Screen:      %s\n", g.Screen)
	}
	if len(g.History) > 0 {
		fmt.Fprintln(w)
		printHistory(w, g.History)
	}
}

func printHistory(w io.Writer, history []*model.HistoryEntry) {
	for _, e := range history {
		fmt.Fprintf(w, "  %s  %s\n", ui.RenderMuted(formatClock(&e.Timestamp)), e.Event)
	}
}

// printGate prints a gate returned by an action, honoring --json.
func printGate(g *client.GateView) {
	if jsonOutput {
		printJSON(g)
		return
	}
	printGateDetail(os.Stdout, g)
}
