package bus

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitSink publishes events as JSON over a topic exchange, one
// routing key per event name.
type RabbitSink struct {
	cfg      Config
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// Connect dials the configured RabbitMQ broker, opens a channel, and
// declares the "amigo.events" topic exchange.
func (s *RabbitSink) Connect() error {
	conn, err := amqp.Dial(s.cfg.URL)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	s.exchange = "amigo.events"
	if err := ch.ExchangeDeclare(s.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	s.conn = conn
	s.ch = ch
	return nil
}

// Publish JSON-encodes fields and publishes it with routing key
// eventName, prefixed by cfg.Prefix.
func (s *RabbitSink) Publish(eventName string, fields map[string]string) error {
	data, err := json.Marshal(fields)
	if err != nil {
		s.cfg.Log.Warn("bus: failed to marshal event for rabbitmq publish", "event", eventName, "error", err)
		return err
	}

	err = s.ch.PublishWithContext(context.Background(), s.exchange, subject(s.cfg.Prefix, eventName), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        data,
	})
	if err != nil {
		s.cfg.Log.Warn("bus: rabbitmq publish failed", "event", eventName, "error", err)
		return err
	}
	return nil
}

// Close closes the channel and connection.
func (s *RabbitSink) Close() error {
	if s.ch != nil {
		s.ch.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
