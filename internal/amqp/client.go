package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	applog "spendlog/internal/log"
)

const (
	publishTimeout = 5 * time.Second
	dialTimeout    = 3 * time.Second
	maxBackoff     = 30 * time.Second

	// redialInterval spaces out reconnect attempts made from Publish.
	redialInterval = 5 * time.Second
)

var (
	errPublisherClosed = errors.New("publisher closed")
	errNotConnected    = errors.New("not connected, waiting before redial")
)

// channel is the subset of *amqp091.Channel the publisher needs.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// dialFunc opens a connection and a channel on it.
type dialFunc func(url string) (closer, channel, error)

type closer interface {
	Close() error
}

// Publisher sends expense events to a durable direct exchange.
type Publisher struct {
	mu           sync.Mutex
	url          string
	exchangeName string
	dial         dialFunc
	conn         closer
	ch           channel
	closed       bool
	nextDial     time.Time
	redialEvery  time.Duration
	now          func() time.Time
	logger       *applog.Logger
}

func dialAMQP(url string) (closer, channel, error) {
	conn, err := amqp091.DialConfig(url, amqp091.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp091.DefaultDial(dialTimeout),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return conn, ch, nil
}

// NewPublisher dials url, retrying with exponential backoff until
// attempts are exhausted or ctx is done, then declares the exchange.
func NewPublisher(ctx context.Context, url, exchangeName string, attempts int, logger *applog.Logger) (*Publisher, error) {
	return newPublisher(ctx, url, exchangeName, attempts, logger, dialAMQP)
}

func newPublisher(ctx context.Context, url, exchangeName string, attempts int, logger *applog.Logger, dial dialFunc) (*Publisher, error) {
	if attempts < 1 {
		attempts = 1
	}
	p := &Publisher{
		url:          url,
		exchangeName: exchangeName,
		dial:         dial,
		redialEvery:  redialInterval,
		now:          time.Now,
		logger:       logger.WithComponent(applog.ComponentAMQP),
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = p.connect(); err == nil {
			return p, nil
		}
		if attempt == attempts-1 {
			break
		}
		wait := exponentialBackoff(attempt)
		p.logger.WarnContext(ctx, "AMQP connection failed, retrying",
			applog.FieldError, err, "attempt", attempt+1, "retry_in", wait.String())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, err
}

// connect must be called with p.mu held or before p is shared.
func (p *Publisher) connect() error {
	conn, ch, err := p.dial(p.url)
	if err != nil {
		return err
	}
	err = ch.ExchangeDeclare(
		p.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

// Publish sends ev with routing key expense.<type>. A connection error
// triggers one reconnect and a single retry. When the connection is down,
// Publish redials at most once per redial interval. The whole call,
// redial included, is bounded by publishTimeout.
func (p *Publisher) Publish(ctx context.Context, ev ExpenseEvent) error {
	body, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errPublisherClosed
	}
	if p.ch == nil {
		if err := p.redialLocked(ctx); err != nil {
			return fmt.Errorf("reconnect: %w", err)
		}
	}

	err = p.publish(ctx, ev.RoutingKey(), body)
	if err != nil && isConnectionError(err) {
		p.logger.WarnContext(ctx, "AMQP publish failed, reconnecting", applog.FieldError, err)
		p.closeLocked()
		if cerr := p.redialLocked(ctx); cerr != nil {
			return fmt.Errorf("reconnect: %w", cerr)
		}
		err = p.publish(ctx, ev.RoutingKey(), body)
	}
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	p.logger.DebugContext(ctx, "Published expense event",
		applog.FieldEventType, string(ev.Type),
		applog.FieldExpenseID, ev.ID,
		"exchange", p.exchangeName)
	return nil
}

// redialLocked connects again unless the previous attempt failed less
// than redialEvery ago. p.mu must be held.
func (p *Publisher) redialLocked(ctx context.Context) error {
	if p.now().Before(p.nextDial) {
		return errNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.connect(); err != nil {
		p.nextDial = p.now().Add(p.redialEvery)
		p.logger.WarnContext(ctx, "AMQP reconnect failed", applog.FieldError, err,
			"retry_after", p.redialEvery.String())
		return err
	}
	p.nextDial = time.Time{}
	p.logger.InfoContext(ctx, "AMQP publisher reconnected", "exchange", p.exchangeName)
	return nil
}

func (p *Publisher) publish(ctx context.Context, key string, body []byte) error {
	return p.ch.PublishWithContext(
		ctx,
		p.exchangeName, // exchange
		key,            // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// Close releases the channel and connection. Later publishes fail.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.closeLocked()
}

func (p *Publisher) closeLocked() error {
	if p.ch != nil {
		p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

// exponentialBackoff returns 1s, 2s, 4s ... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection reset", "connection closed", "channel/connection is not open", "eof", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
