package services

import (
	"context"

	"github.com/lessonforge/backend/internal/logger"
	"github.com/lessonforge/backend/internal/sse"
	"github.com/lessonforge/backend/internal/types"
)

// SSEEmitter is the seam between session progress and stream delivery. The
// hub emitter delivers to local subscribers; the redis emitter publishes to
// the fanout channel so every instance's hub sees the event.
type SSEEmitter interface {
	Emit(ctx context.Context, msg sse.Message)
}

// BroadcastToHub returns the delivery callback shared by the local emitter
// and the redis forwarder: broadcast into the hub, and once a terminal
// status event has been delivered, tear the session's channel down so the
// server closes the stream.
func BroadcastToHub(hub *sse.Hub) func(msg sse.Message) {
	return func(msg sse.Message) {
		hub.Broadcast(msg)
		if msg.Type == sse.EventStatus && terminalStatusData(msg.Data) {
			hub.CloseChannel(msg.Channel)
		}
	}
}

func terminalStatusData(data any) bool {
	m, ok := data.(map[string]any)
	if !ok {
		return false
	}
	// Status arrives typed from the local emitter and as a plain string after
	// a redis round-trip.
	switch v := m["status"].(type) {
	case types.SessionStatus:
		return v.Terminal()
	case string:
		return types.SessionStatus(v).Terminal()
	default:
		return false
	}
}

type HubEmitter struct {
	deliver func(msg sse.Message)
}

func NewHubEmitter(hub *sse.Hub) *HubEmitter {
	return &HubEmitter{deliver: BroadcastToHub(hub)}
}

func (e *HubEmitter) Emit(ctx context.Context, msg sse.Message) {
	e.deliver(msg)
}

type RedisEmitter struct{ Bus SSEBus }

func (e *RedisEmitter) Emit(ctx context.Context, msg sse.Message) {
	_ = e.Bus.Publish(ctx, msg)
}

// SessionNotifier translates session-store mutations into stream events.
// Only the orchestrator (and the lifecycle manager, for teardown) calls it,
// after the corresponding store write, so stream order matches append order.
type SessionNotifier interface {
	LogAppended(sessionID string, index int, rec types.LogRecord)
	StatusChanged(sessionID string, status types.SessionStatus, currentTopic string)
	SessionExpired(sessionID string)
}

type sessionNotifier struct {
	log  *logger.Logger
	emit SSEEmitter
	hub  *sse.Hub
}

func NewSessionNotifier(baseLog *logger.Logger, emit SSEEmitter, hub *sse.Hub) SessionNotifier {
	return &sessionNotifier{
		log:  baseLog.With("service", "SessionNotifier"),
		emit: emit,
		hub:  hub,
	}
}

func (n *sessionNotifier) LogAppended(sessionID string, index int, rec types.LogRecord) {
	if n == nil || n.emit == nil || sessionID == "" {
		return
	}
	n.emit.Emit(context.Background(), sse.Message{
		Channel: sessionID,
		Type:    sse.EventLog,
		Data: map[string]any{
			"index":   index,
			"time":    rec.Time,
			"message": rec.Message,
		},
	})
}

func (n *sessionNotifier) StatusChanged(sessionID string, status types.SessionStatus, currentTopic string) {
	if n == nil || n.emit == nil || sessionID == "" {
		return
	}
	n.emit.Emit(context.Background(), sse.Message{
		Channel: sessionID,
		Type:    sse.EventStatus,
		Data: map[string]any{
			"status":        status,
			"current_topic": currentTopic,
		},
	})
}

// SessionExpired disconnects local subscribers of a session the lifecycle
// sweep removed. No event precedes the close; an expired session has nothing
// left to say.
func (n *sessionNotifier) SessionExpired(sessionID string) {
	if n == nil || n.hub == nil || sessionID == "" {
		return
	}
	n.hub.CloseChannel(sessionID)
}
