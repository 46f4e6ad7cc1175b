package bus

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
)

// NatsSink publishes events as JSON over NATS core pub/sub, one
// subject per event name.
type NatsSink struct {
	cfg  Config
	conn *nats.Conn
}

// Connect dials the configured NATS server.
func (s *NatsSink) Connect() error {
	conn, err := nats.Connect(s.cfg.URL, nats.Name("amigo"))
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

// Publish JSON-encodes fields and publishes it on subject, prefixed
// by cfg.Prefix.
func (s *NatsSink) Publish(eventName string, fields map[string]string) error {
	data, err := json.Marshal(fields)
	if err != nil {
		s.cfg.Log.Warn("bus: failed to marshal event for nats publish", "event", eventName, "error", err)
		return err
	}
	if err := s.conn.Publish(subject(s.cfg.Prefix, eventName), data); err != nil {
		s.cfg.Log.Warn("bus: nats publish failed", "event", eventName, "error", err)
		return err
	}
	return nil
}

// Close closes the NATS connection without draining it.
func (s *NatsSink) Close() error {
	if s.conn == nil {
		return nil
	}
	s.conn.Close()
	return nil
}
