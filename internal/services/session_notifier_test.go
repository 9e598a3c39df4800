package services

import (
	"testing"
	"time"

	"github.com/lessonforge/backend/internal/sse"
	"github.com/lessonforge/backend/internal/types"
)

func newTestNotifier(t *testing.T) (SessionNotifier, *sse.Hub) {
	t.Helper()
	log, err := testLogger()
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	hub := sse.NewHub(log)
	return NewSessionNotifier(log, NewHubEmitter(hub), hub), hub
}

func TestNotifier_LogEventsReachSubscribers(t *testing.T) {
	notifier, hub := newTestNotifier(t)
	client := hub.NewClient()
	hub.AddChannel(client, "sess-1")

	notifier.LogAppended("sess-1", 7, types.LogRecord{Time: "10:00:00", Message: "working"})

	select {
	case msg := <-client.Outbound:
		if msg.Type != sse.EventLog {
			t.Fatalf("type = %s, want %s", msg.Type, sse.EventLog)
		}
		data, ok := msg.Data.(map[string]any)
		if !ok {
			t.Fatalf("data shape: %T", msg.Data)
		}
		if data["index"] != 7 || data["message"] != "working" {
			t.Fatalf("data = %v", data)
		}
	case <-time.After(time.Second):
		t.Fatalf("log event not delivered")
	}
}

func TestNotifier_TerminalStatusClosesChannel(t *testing.T) {
	notifier, hub := newTestNotifier(t)
	client := hub.NewClient()
	hub.AddChannel(client, "sess-1")

	notifier.StatusChanged("sess-1", types.SessionGenerating, "topic")
	if hub.Subscribers("sess-1") != 1 {
		t.Fatalf("non-terminal status tore the channel down")
	}

	notifier.StatusChanged("sess-1", types.SessionCompleted, "")

	select {
	case <-client.Done():
	case <-time.After(time.Second):
		t.Fatalf("terminal status did not close the stream")
	}
	if hub.Subscribers("sess-1") != 0 {
		t.Fatalf("subscribers remain after terminal status")
	}

	// The status event itself was queued before the close.
	var sawTerminal bool
	for {
		select {
		case msg := <-client.Outbound:
			if msg.Type == sse.EventStatus {
				if data, ok := msg.Data.(map[string]any); ok {
					if st, ok := data["status"].(types.SessionStatus); ok && st.Terminal() {
						sawTerminal = true
					}
				}
			}
			continue
		default:
		}
		break
	}
	if !sawTerminal {
		t.Fatalf("terminal status event never delivered")
	}
}

func TestNotifier_SessionExpiredClosesChannel(t *testing.T) {
	notifier, hub := newTestNotifier(t)
	client := hub.NewClient()
	hub.AddChannel(client, "sess-1")

	notifier.SessionExpired("sess-1")

	select {
	case <-client.Done():
	case <-time.After(time.Second):
		t.Fatalf("expiry did not close the stream")
	}
}
