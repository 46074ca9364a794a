package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/gatewatch/internal/events"
	"github.com/alfredjeanlab/gatewatch/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Tail gate events from the event bus",
	GroupID: "gates",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			natsURL = os.Getenv("GATES_NATS_URL")
		}
		if natsURL == "" {
			natsURL = activeProfile().NATSURL
		}
		if natsURL == "" {
			return fmt.Errorf("no NATS URL: pass --nats, set GATES_NATS_URL or use 'gw login --nats'")
		}
		topic, _ := cmd.Flags().GetString("topic")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		sub, err := events.NewNATSSubscriber(natsURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Printf("nats: disconnected: %v", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				log.Printf("nats: reconnected")
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return fmt.Errorf("subscribing to events: %w", err)
		}
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				if jsonOutput {
					fmt.Printf("{\"topic\":%q,\"data\":%s}\n", msg.Topic, msg.Data)
					continue
				}
				fmt.Println(formatEvent(time.Now(), msg))
			}
		}
	},
}

// formatEvent renders one bus message as a single line.
func formatEvent(now time.Time, msg events.Message) string {
	prefix := ui.RenderMuted(now.Format("15:04:05")) + " " + msg.Topic

	switch {
	case msg.Topic == events.TopicAllReset:
		var e events.GatesReset
		if json.Unmarshal(msg.Data, &e) == nil {
			return fmt.Sprintf("%s  %d gates reset by %s", prefix, e.Count, e.Actor)
		}
	case msg.Topic == events.TopicGuardIdle:
		var e events.GuardIdle
		if json.Unmarshal(msg.Data, &e) == nil {
			return fmt.Sprintf("%s  %s idle since %s", prefix, e.Guard, formatClock(&e.LastSeen))
		}
	case strings.HasPrefix(msg.Topic, "gates."):
		var e events.GateChanged
		if json.Unmarshal(msg.Data, &e) == nil && e.Gate != nil {
			line := fmt.Sprintf("%s  %s %s", prefix, e.Gate.Label, ui.RenderStatus(e.Gate.Status, string(e.Gate.Status)))
			if e.Actor != "" {
				line += " by " + e.Actor
			}
			return line
		}
	}
	return prefix + "  " + string(msg.Data)
}

func init() {
	watchCmd.Flags().String("nats", "", "NATS URL (default: GATES_NATS_URL or the profile)")
	watchCmd.Flags().String("topic", events.TopicAll, "topic pattern to follow")
}
