package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/gatewatch/internal/lifecycle"
	"github.com/alfredjeanlab/gatewatch/internal/model"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestNoopPublisher(t *testing.T) {
	var pub Publisher = &NoopPublisher{}
	if err := pub.Publish(context.Background(), TopicGateClaimed, GateChanged{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestTopicFor(t *testing.T) {
	seen := map[string]bool{}
	for a := lifecycle.ActionClaim; a <= lifecycle.ActionReset; a++ {
		topic := TopicFor(a)
		if topic == "gates.gate.unknown" {
			t.Errorf("%s has no topic", a)
		}
		if seen[topic] {
			t.Errorf("%s reuses topic %s", a, topic)
		}
		seen[topic] = true
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicGateClaimed, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	event := GateChanged{Gate: &model.Gate{ID: "gt-1", Label: "A12"}, Action: "claim", Actor: "Guard 1"}
	if err := pub.Publish(context.Background(), TopicGateClaimed, event); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got GateChanged
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Gate.Label != "A12" || got.Actor != "Guard 1" {
			t.Errorf("got %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_CanceledContext(t *testing.T) {
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.Publish(ctx, TopicGateClaimed, GateChanged{}); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestNATSSubscriber_WildcardCarriesTopic(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	for _, tc := range []struct {
		topic string
		event any
	}{
		{TopicTimerExpired, GateChanged{Gate: &model.Gate{ID: "gt-1"}, Action: "timer-expiry"}},
		{TopicAllReset, GatesReset{Count: 43, Actor: "ops"}},
	} {
		if err := pub.Publish(context.Background(), tc.topic, tc.event); err != nil {
			t.Fatalf("Publish(%s): %v", tc.topic, err)
		}
	}
	pub.conn.Flush()

	var topics []string
	for i := 0; i < 2; i++ {
		select {
		case msg := <-ch:
			topics = append(topics, msg.Topic)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d messages", i)
		}
	}
	if topics[0] != TopicTimerExpired || topics[1] != TopicAllReset {
		t.Errorf("topics: got %v", topics)
	}
}

func TestNATSSubscriber_CancelClosesChannel(t *testing.T) {
	url := startTestNATS(t)
	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	cancel() // idempotent

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
