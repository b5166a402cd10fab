package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/geolayers/internal/adapters/nats"
	"github.com/samirrijal/geolayers/internal/core/domain"
	"github.com/samirrijal/geolayers/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to zone updates.
type wsMessage struct {
	Action   string `json:"action"`   // "subscribe" | "unsubscribe"
	Layer    string `json:"layer"`    // layer filter (optional, "" = all)
	Category string `json:"category"` // category filter (optional, "" = all of the layer)
}

// wsSubject maps a subscription request to a NATS subject.
func wsSubject(m wsMessage) (string, error) {
	if m.Layer == "" {
		return natsadapter.ZoneSubjectAll, nil
	}
	layer, err := domain.ParseLayer(m.Layer)
	if err != nil {
		return "", err
	}
	if m.Category == "" {
		return natsadapter.ZoneSubjectPrefix + string(layer) + ".>", nil
	}
	return natsadapter.ZoneSubject(layer, m.Category), nil
}

// SubscribeFunc opens one subscription to subject and returns its cancel func.
type SubscribeFunc func(subject string) (unsubscribe func() error, err error)

var errNotSubscribed = errors.New("not subscribed")

// ZoneSubscriptions is the subject set of one WebSocket client. It starts on
// the catch-all subject; the first narrower subscription replaces it and
// removing the last one restores it. Subjects in the set never overlap, so an
// event is relayed at most once. Not safe for concurrent use.
type ZoneSubscriptions struct {
	subscribe SubscribeFunc
	subs      map[string]func() error
	fallback  bool // only the implicit catch-all is active
}

// NewZoneSubscriptions opens the catch-all subscription.
func NewZoneSubscriptions(subscribe SubscribeFunc) (*ZoneSubscriptions, error) {
	s := &ZoneSubscriptions{subscribe: subscribe, subs: make(map[string]func() error)}
	if err := s.subscribeAll(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ZoneSubscriptions) subscribeAll() error {
	unsub, err := s.subscribe(natsadapter.ZoneSubjectAll)
	if err != nil {
		return err
	}
	s.subs[natsadapter.ZoneSubjectAll] = unsub
	s.fallback = true
	return nil
}

// Subscribe adds subject. When an active subject already covers it, nothing
// changes and that subject is returned. Subjects the new one covers, and the
// implicit catch-all, are dropped.
func (s *ZoneSubscriptions) Subscribe(subject string) (coveredBy string, err error) {
	if s.fallback && subject == natsadapter.ZoneSubjectAll {
		s.fallback = false
		return natsadapter.ZoneSubjectAll, nil
	}
	if !s.fallback {
		for existing := range s.subs {
			if subjectCovers(existing, subject) {
				return existing, nil
			}
		}
	}

	unsub, err := s.subscribe(subject)
	if err != nil {
		return "", err
	}
	for existing, cancel := range s.subs {
		if s.fallback || subjectCovers(subject, existing) {
			_ = cancel()
			delete(s.subs, existing)
		}
	}
	s.fallback = false
	s.subs[subject] = unsub
	return "", nil
}

// Unsubscribe removes an explicitly subscribed subject. Removing the last
// one falls back to the catch-all.
func (s *ZoneSubscriptions) Unsubscribe(subject string) error {
	cancel, ok := s.subs[subject]
	if !ok || s.fallback {
		return errNotSubscribed
	}
	_ = cancel()
	delete(s.subs, subject)
	if len(s.subs) == 0 {
		return s.subscribeAll()
	}
	return nil
}

// Subjects lists the active subjects in sorted order.
func (s *ZoneSubscriptions) Subjects() []string {
	out := make([]string, 0, len(s.subs))
	for subject := range s.subs {
		out = append(out, subject)
	}
	sort.Strings(out)
	return out
}

// Close cancels every subscription.
func (s *ZoneSubscriptions) Close() {
	for subject, cancel := range s.subs {
		_ = cancel()
		delete(s.subs, subject)
	}
}

// subjectCovers reports whether every subject matched by subject is also
// matched by pattern, for NATS tokens with "*" and a trailing ">".
func subjectCovers(pattern, subject string) bool {
	p := strings.Split(pattern, ".")
	t := strings.Split(subject, ".")
	for i, tok := range p {
		if tok == ">" {
			return len(t) > i
		}
		if i >= len(t) {
			return false
		}
		if tok != "*" && tok != t[i] {
			return false
		}
	}
	return len(p) == len(t)
}

// WebSocketHandler returns a handler that upgrades to WebSocket and relays
// zone recommendation events to connected clients.
// Clients send JSON: {"action":"subscribe","layer":"buildings","category":"school"}
// Until a client subscribes to something narrower it receives every recommendation.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		logger := slog.Default().With("remote_addr", remoteAddr)

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		if nc == nil {
			_ = writeJSON(map[string]string{"error": "event stream not configured"})
			return
		}

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()
		logger.Info("ws client connected")

		relay := func(msg *nats.Msg) {
			_ = writeJSON(json.RawMessage(msg.Data))
		}

		subs, err := NewZoneSubscriptions(func(subject string) (func() error, error) {
			sub, err := nc.Subscribe(subject, relay)
			if err != nil {
				return nil, err
			}
			return sub.Unsubscribe, nil
		})
		if err != nil {
			logger.Error("ws default subscribe failed", "error", err)
			return
		}
		defer subs.Close()

		// Keep-alive ping
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			subject, err := wsSubject(m)
			if err != nil {
				_ = writeJSON(map[string]string{"error": "unknown layer: " + m.Layer})
				continue
			}

			switch m.Action {
			case "subscribe":
				covered, err := subs.Subscribe(subject)
				switch {
				case err != nil:
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
				case covered != "":
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": covered})
				default:
					_ = writeJSON(map[string]interface{}{"status": "subscribed", "subject": subject, "subjects": subs.Subjects()})
				}

			case "unsubscribe":
				if err := subs.Unsubscribe(subject); err != nil {
					_ = writeJSON(map[string]string{"error": err.Error() + " to " + subject})
					continue
				}
				_ = writeJSON(map[string]interface{}{"status": "unsubscribed", "subject": subject, "subjects": subs.Subjects()})

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		logger.Info("ws client disconnected")
	}
}
