package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"comandas/internal/notify"
)

const (
	publishTimeout = 5 * time.Second
	// confirmBuffer holds confirmations of publishes whose Deliver already
	// gave up, so the amqp dispatcher never blocks on them.
	confirmBuffer = 64
)

// channel is the part of *amqp.Channel the sink publishes through.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	GetNextPublishSeqNo() uint64
	Close() error
}

// Sink publishes lifecycle events to a fanout exchange so kitchen displays
// in other processes see them too. Publishes are serialized and wait for the
// broker's confirm.
type Sink struct {
	conn     *amqp.Connection
	ch       channel
	acks     <-chan amqp.Confirmation
	exchange string
	mu       sync.Mutex
}

func Dial(url, exchange string) (*Sink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, confirmBuffer))

	return &Sink{conn: conn, ch: ch, acks: acks, exchange: exchange}, nil
}

func (s *Sink) Deliver(ctx context.Context, ev notify.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.ch.GetNextPublishSeqNo()
	err = s.ch.PublishWithContext(ctx,
		s.exchange,
		string(ev.Kind), // routing key, ignored by fanout but kept for bindings to topic exchanges
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Transient,
			ContentType:  "application/json",
			MessageId:    uuid.NewString(),
			Type:         string(ev.Kind),
			Timestamp:    ev.At,
			Headers:      amqp.Table{"x-source": "comandas"},
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Kind, err)
	}

	if s.acks == nil {
		return nil
	}
	return s.awaitConfirm(ctx, seq, ev.Kind)
}

// awaitConfirm waits for the confirmation of the publish numbered seq.
// Confirmations for earlier publishes that timed out are discarded.
func (s *Sink) awaitConfirm(ctx context.Context, seq uint64, kind notify.Kind) error {
	for {
		select {
		case conf, ok := <-s.acks:
			if !ok {
				return errors.New("rabbitmq channel closed")
			}
			switch {
			case conf.DeliveryTag < seq:
				slog.Debug("discarding late confirmation", "tag", conf.DeliveryTag, "ack", conf.Ack)
				continue
			case conf.DeliveryTag > seq:
				return fmt.Errorf("publish %s: confirmation %d skipped past %d", kind, conf.DeliveryTag, seq)
			}
			if !conf.Ack {
				return fmt.Errorf("publish %s: NACK from broker", kind)
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Ping reports whether the broker connection is still open.
func (s *Sink) Ping() error {
	if s.conn == nil || s.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

func (s *Sink) Close() {
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
}
