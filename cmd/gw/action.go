package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/gatewatch/internal/client"
)

// guardCommand builds a monitoring command that runs op on one gate as the
// selected guard.
func guardCommand(use, short string, op func(ctx context.Context, id, guard string) (*client.GateView, error)) *cobra.Command {
	return &cobra.Command{
		Use:     use + " <id>",
		Short:   short,
		GroupID: "monitoring",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := requireGuard()
			if err != nil {
				return err
			}
			gate, err := op(cmd.Context(), args[0], g)
			if err != nil {
				return explain(err)
			}
			printGate(gate)
			return nil
		},
	}
}

// explain turns a refused claim into a message naming the holder.
func explain(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.AlreadyClaimed() {
		return fmt.Errorf("gate is already claimed by %s", apiErr.Holder)
	}
	return err
}

var (
	claimCmd = guardCommand("claim", "Claim a gray gate",
		func(ctx context.Context, id, g string) (*client.GateView, error) { return gateClient.Claim(ctx, id, g) })
	startCmd = guardCommand("start", "Start monitoring a claimed gate (turns it green)",
		func(ctx context.Context, id, g string) (*client.GateView, error) { return gateClient.StartMonitor(ctx, id, g) })
	departureCmd = guardCommand("departure", "Monitor a yellow gate as a departure",
		func(ctx context.Context, id, g string) (*client.GateView, error) {
			return gateClient.SwitchToDeparture(ctx, id, g)
		})
	finishCmd = guardCommand("finish", "Finish monitoring a gate (turns it red)",
		func(ctx context.Context, id, g string) (*client.GateView, error) { return gateClient.MarkFinished(ctx, id, g) })
	releaseCmd = guardCommand("release", "Hand a gate back (turns it gray)",
		func(ctx context.Context, id, g string) (*client.GateView, error) { return gateClient.Release(ctx, id, g) })
)

var extendCmd = &cobra.Command{
	Use:     "extend <id>",
	Short:   "Add time to a green gate's countdown",
	GroupID: "monitoring",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := requireGuard()
		if err != nil {
			return err
		}
		minutes, _ := cmd.Flags().GetInt("minutes")
		if minutes <= 0 {
			return fmt.Errorf("--minutes must be positive")
		}
		gate, err := gateClient.Extend(cmd.Context(), args[0], g, minutes)
		if err != nil {
			return err
		}
		printGate(gate)
		return nil
	},
}

func init() {
	extendCmd.Flags().Int("minutes", 5, "minutes to add")
}
