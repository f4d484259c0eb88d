package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"reelpipe/internal/config"
)

const publishTimeout = 5 * time.Second

// JobEvent is the message body for one status transition.
type JobEvent struct {
	JobID         int64     `json:"job_id"`
	SourceID      string    `json:"source_id"`
	FileName      string    `json:"file_name"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	PostID        string    `json:"post_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	At            time.Time `json:"at"`
}

// RoutingKey returns the topic routing key for the event.
func (e JobEvent) RoutingKey() string {
	return "job." + strings.ToLower(strings.TrimSpace(e.Status))
}

// Publisher emits job events.
type Publisher interface {
	Publish(ctx context.Context, event JobEvent) error
	Close() error
}

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// session is one live broker connection with its publishing channel.
type session struct {
	conn io.Closer
	ch   channel
}

func (s *session) close() error {
	_ = s.ch.Close()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// dialFunc opens a session and returns the channel's close notifications.
type dialFunc func() (*session, <-chan *amqp.Error, error)

var errPublisherClosed = errors.New("amqp publisher closed")

// AMQPPublisher publishes events to a durable topic exchange. A session
// dropped by the broker is discarded and redialed on the next Publish.
type AMQPPublisher struct {
	dial     dialFunc
	exchange string

	mu     sync.Mutex
	sess   *session
	closed bool
}

// New connects to the configured broker. It returns a no-op publisher when
// events are not configured.
func New(cfg *config.Config) (Publisher, error) {
	if cfg == nil || strings.TrimSpace(cfg.Events.AMQPURL) == "" {
		return Noop{}, nil
	}
	url, exchange := cfg.Events.AMQPURL, cfg.Events.Exchange
	p := newAMQPPublisher(exchange, func() (*session, <-chan *amqp.Error, error) {
		return dialAMQP(url, exchange)
	})
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func newAMQPPublisher(exchange string, dial dialFunc) *AMQPPublisher {
	return &AMQPPublisher{dial: dial, exchange: exchange}
}

func dialAMQP(url, exchange string) (*session, <-chan *amqp.Error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp declare exchange: %w", err)
	}
	// Channel close also fires when the connection drops.
	notify := ch.NotifyClose(make(chan *amqp.Error, 1))
	return &session{conn: conn, ch: ch}, notify, nil
}

// connectLocked dials a fresh session and starts watching it. Callers hold p.mu.
func (p *AMQPPublisher) connectLocked() error {
	sess, notify, err := p.dial()
	if err != nil {
		return err
	}
	p.sess = sess
	go p.watch(sess, notify)
	return nil
}

// watch drops sess once the broker closes it.
func (p *AMQPPublisher) watch(sess *session, notify <-chan *amqp.Error) {
	<-notify
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess == sess {
		p.sess = nil
		_ = sess.close()
	}
}

// Publish sends event as a persistent JSON message, redialing first when
// the previous session was lost.
func (p *AMQPPublisher) Publish(ctx context.Context, event JobEvent) error {
	msg, err := buildPublishing(event)
	if err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errPublisherClosed
	}
	if p.sess == nil {
		if err := p.connectLocked(); err != nil {
			return fmt.Errorf("amqp reconnect: %w", err)
		}
	}
	if err := p.sess.ch.PublishWithContext(cctx, p.exchange, event.RoutingKey(), false, false, msg); err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			_ = p.sess.close()
			p.sess = nil
		}
		return fmt.Errorf("amqp publish %s: %w", event.RoutingKey(), err)
	}
	return nil
}

// connected reports whether a broker session is currently open.
func (p *AMQPPublisher) connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sess != nil
}

// Close releases the session. Later publishes fail.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.sess == nil {
		return nil
	}
	sess := p.sess
	p.sess = nil
	return sess.close()
}

func buildPublishing(event JobEvent) (amqp.Publishing, error) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode job event: %w", err)
	}
	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: event.CorrelationID,
		Timestamp:     event.At,
		Type:          "job.status",
		Body:          body,
	}, nil
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, JobEvent) error { return nil }
func (Noop) Close() error                            { return nil }
