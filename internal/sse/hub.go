package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lessonforge/backend/internal/logger"
)

type EventType string

const (
	EventConnected EventType = "connected"
	EventLog       EventType = "log"
	EventHeartbeat EventType = "heartbeat"
	EventStatus    EventType = "status"
)

// Message is one event on a session's log stream. Channel is the session id.
type Message struct {
	Channel string    `json:"channel,omitempty"`
	Type    EventType `json:"type"`
	Data    any       `json:"data,omitempty"`
	Message string    `json:"message,omitempty"`
}

type Client struct {
	ID       uuid.UUID
	Channels map[string]bool
	Outbound chan Message
	done     chan struct{}
	closed   sync.Once
}

// Hub fans session events out to subscribed stream clients. Delivery is
// best-effort per client: a client whose buffer is full drops the event and
// is expected to recover via the poll endpoint.
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Client]bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "SSEHub"),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

func (hub *Hub) NewClient() *Client {
	return &Client{
		ID:       uuid.New(),
		Channels: make(map[string]bool),
		Outbound: make(chan Message, 64),
		done:     make(chan struct{}),
	}
}

func (hub *Hub) AddChannel(client *Client, channel string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	client.Channels[channel] = true

	clients, exists := hub.subscriptions[channel]
	if !exists {
		clients = make(map[*Client]bool)
		hub.subscriptions[channel] = clients
	}
	clients[client] = true

	hub.log.Debug("SSE client subscribed", "clientID", client.ID, "channel", channel)
}

func (hub *Hub) RemoveClient(client *Client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	for ch := range client.Channels {
		if subMap, ok := hub.subscriptions[ch]; ok {
			delete(subMap, client)
			if len(subMap) == 0 {
				delete(hub.subscriptions, ch)
			}
		}
	}
	client.Channels = make(map[string]bool)
}

func (hub *Hub) Broadcast(msg Message) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if msg.Channel == "" {
		return
	}
	clientsMap, ok := hub.subscriptions[msg.Channel]
	if !ok {
		return
	}
	for c := range clientsMap {
		select {
		case c.Outbound <- msg:
		default:
			hub.log.Warn("Dropping SSE message; outbound buffer full", "clientID", c.ID)
		}
	}
}

// CloseChannel disconnects every client subscribed to the channel. Called
// when a session reaches a terminal status or expires.
func (hub *Hub) CloseChannel(channel string) {
	hub.mu.Lock()
	clientsMap, ok := hub.subscriptions[channel]
	if !ok {
		hub.mu.Unlock()
		return
	}
	clients := make([]*Client, 0, len(clientsMap))
	for c := range clientsMap {
		clients = append(clients, c)
	}
	delete(hub.subscriptions, channel)
	hub.mu.Unlock()

	for _, c := range clients {
		c.signalDone()
	}
}

// Subscribers reports how many clients are attached to the channel.
func (hub *Hub) Subscribers(channel string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.subscriptions[channel])
}

func (c *Client) signalDone() {
	c.closed.Do(func() { close(c.done) })
}

// Done is closed when the hub disconnects the client.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ServeHTTP streams the client's events until the client disconnects or the
// hub closes it. Heartbeats keep intermediaries from dropping idle streams;
// consumers must ignore them.
func (hub *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *Client) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	writeMsg := func(msg Message) {
		msg.Channel = ""
		raw, err := json.Marshal(msg)
		if err != nil {
			hub.log.Warn("Failed to marshal SSE message", "error", err)
			return
		}
		_, _ = fmt.Fprintf(w, "data: %s\n\n", raw)
		flusher.Flush()
	}

	writeMsg(Message{Type: EventConnected, Message: "log stream established"})

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			hub.log.Debug("SSE client context done", "clientID", client.ID, "err", ctx.Err())
			return
		case <-client.done:
			// Drain whatever was queued before the close so terminal events
			// still reach the consumer.
			for {
				select {
				case msg := <-client.Outbound:
					writeMsg(msg)
				default:
					return
				}
			}
		case <-heartbeat.C:
			writeMsg(Message{Type: EventHeartbeat})
		case msg := <-client.Outbound:
			writeMsg(msg)
		}
	}
}

func (hub *Hub) CloseClient(client *Client) {
	client.signalDone()
	hub.RemoveClient(client)
}
