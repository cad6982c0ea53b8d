// Package events announces persisted samples on NATS.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// SnapshotEvent is published on <subject>.<camera> after a sample is written.
type SnapshotEvent struct {
	ID         string    `json:"id"`
	Camera     string    `json:"camera"`
	CameraName string    `json:"cameraName"`
	Path       string    `json:"path"`
	Persons    int       `json:"persons"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher sends snapshot events. A nil *Publisher drops every event.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// Connect dials the NATS server at url. Events go to subject.<camera>.
func Connect(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("camsampler"),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return &Publisher{conn: conn, subject: subject}, nil
}

// Subject returns the subject events of camera are published on.
func (p *Publisher) Subject(camera string) string {
	return p.subject + "." + camera
}

// PublishSnapshot fills in the event id when missing and publishes ev.
func (p *Publisher) PublishSnapshot(ev SnapshotEvent) error {
	if p == nil {
		return nil
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(ev.Camera), data); err != nil {
		return fmt.Errorf("failed to publish snapshot event: %w", err)
	}
	return nil
}

// Close flushes pending events and closes the connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.conn.Flush()
	p.conn.Close()
}
