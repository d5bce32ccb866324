package api

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bbernstein/lacylights-orchestrator/internal/services/pubsub"
)

const (
	wsSendBufferSize = 64
	wsPingInterval   = 10 * time.Second
	wsWriteWait      = 5 * time.Second
	wsReadLimit      = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// wsEvent is one message on the event stream.
type wsEvent struct {
	Type      string       `json:"type"`
	Topic     pubsub.Topic `json:"topic,omitempty"`
	Timestamp string       `json:"timestamp"`
	Payload   any          `json:"payload,omitempty"`
}

// parseTopics reads the comma-separated topics query parameter. Empty means
// every topic; unknown names are ignored.
func parseTopics(raw string) []pubsub.Topic {
	if strings.TrimSpace(raw) == "" {
		return pubsub.AllTopics
	}
	known := make(map[pubsub.Topic]bool, len(pubsub.AllTopics))
	for _, t := range pubsub.AllTopics {
		known[t] = true
	}
	var out []pubsub.Topic
	for _, part := range strings.Split(raw, ",") {
		t := pubsub.Topic(strings.ToUpper(strings.TrimSpace(part)))
		if known[t] {
			out = append(out, t)
		}
	}
	return out
}

// handleEvents streams pubsub events over a websocket until the client goes
// away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	topics := parseTopics(r.URL.Query().Get("topics"))
	if len(topics) == 0 {
		writeBadRequest(w, "no known topics requested")
		return
	}
	filter := r.URL.Query().Get("filter")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Warning: websocket upgrade failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	merged := make(chan wsEvent, wsSendBufferSize)
	subs := make([]*pubsub.Subscriber, 0, len(topics))
	for _, topic := range topics {
		sub := s.pubsub.Subscribe(topic, filter, wsSendBufferSize)
		subs = append(subs, sub)
		go forward(sub, merged)
	}
	defer func() {
		for _, sub := range subs {
			s.pubsub.Unsubscribe(sub)
		}
	}()

	// The reader only watches for the close frame.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(wsReadLimit)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	hello := wsEvent{Type: "connected", Timestamp: now(), Payload: topics}
	if err := writeEvent(conn, hello); err != nil {
		return
	}

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev := <-merged:
			if err := writeEvent(conn, ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// forward copies one subscription into the merged stream until Unsubscribe
// closes its channel. Events are dropped when the stream is backed up.
func forward(sub *pubsub.Subscriber, out chan<- wsEvent) {
	for msg := range sub.Channel {
		ev := wsEvent{Type: "event", Topic: sub.Topic, Timestamp: now(), Payload: msg}
		if e, ok := msg.(pubsub.Event); ok {
			ev.Payload = e.Data
		}
		select {
		case out <- ev:
		default:
		}
	}
}

func writeEvent(conn *websocket.Conn, ev wsEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(ev)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
