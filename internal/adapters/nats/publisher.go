package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geolayers/internal/core/domain"
)

const (
	// ZoneStream holds zone recommendation events.
	ZoneStream = "ZONE_RECOMMENDATIONS"
	// ZoneSubjectPrefix prefixes layers.zone.<layer>.<category> subjects.
	ZoneSubjectPrefix = "layers.zone."
	// ZoneSubjectAll matches every zone recommendation subject.
	ZoneSubjectAll = ZoneSubjectPrefix + ">"

	allCategories = "_all"
)

var subjectTokenReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_", "\t", "_")

// ZoneSubject builds the subject for a layer/category pair. Tokens are
// sanitised so that a category never splits into extra subject levels; an
// empty category maps to "_all".
func ZoneSubject(layer domain.Layer, category string) string {
	if category == "" {
		category = allCategories
	}
	return ZoneSubjectPrefix + subjectTokenReplacer.Replace(string(layer)) + "." + subjectTokenReplacer.Replace(category)
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure stream exists
	cfg := &nats.StreamConfig{
		Name:      ZoneStream,
		Subjects:  []string{ZoneSubjectAll},
		Retention: nats.InterestPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist; try update
		if _, err := js.UpdateStream(cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishZoneRecommendation publishes rec as JSON on its layer/category subject.
func (p *Publisher) PublishZoneRecommendation(ctx context.Context, rec *domain.ZoneRecommendation) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(ZoneSubject(rec.Layer, rec.Category))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, rec.ID)
	_, err = p.js.PublishMsg(msg, nats.Context(ctx))
	return err
}

// Connected reports whether the underlying connection is up.
func (p *Publisher) Connected() bool {
	return p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("geolayers"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
