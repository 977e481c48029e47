package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
)

type published struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

type fakeChannel struct {
	declared   []string
	published  []published
	publishErr []error // consumed one per publish call
	closed     bool
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	if kind != "direct" || !durable {
		return fmt.Errorf("unexpected exchange kind=%s durable=%v", kind, durable)
	}
	c.declared = append(c.declared, name)
	return nil
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if len(c.publishErr) > 0 {
		err := c.publishErr[0]
		c.publishErr = c.publishErr[1:]
		if err != nil {
			return err
		}
	}
	c.published = append(c.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type fakeConn struct{ closed bool }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

// fakeDialer fails with errs[i] on the i-th call, then hands out ch.
func fakeDialer(errs []error, ch *fakeChannel) (dialFunc, *int) {
	calls := 0
	return func(string) (closer, channel, error) {
		i := calls
		calls++
		if i < len(errs) && errs[i] != nil {
			return nil, nil, errs[i]
		}
		return &fakeConn{}, ch, nil
	}, &calls
}

func sampleExpense() core.Expense {
	return core.Expense{
		ID:          7,
		Description: "Lunch",
		Amount:      decimal.RequireFromString("12.50"),
		Category:    "Food",
		Date:        "2024-01-15",
	}
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{64, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"closed connection", errors.New("connection closed"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"amqp closed", fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{"other", errors.New("invalid argument"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestExpenseEvent_JSON(t *testing.T) {
	ev := NewExpenseEvent(EventCreated, sampleExpense())

	body, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"type", "id", "description", "amount", "category", "date", "timestamp"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in %s", key, body)
		}
	}
	if raw["amount"] != "12.5" {
		t.Errorf("amount = %v, want string 12.5", raw["amount"])
	}

	got, err := ExpenseEventFromJSON(body)
	if err != nil {
		t.Fatalf("ExpenseEventFromJSON: %v", err)
	}
	if got.ID != 7 || got.Type != EventCreated || !got.Amount.Equal(ev.Amount) {
		t.Errorf("decoded %+v", got)
	}
}

func TestExpenseEventFromJSON_Invalid(t *testing.T) {
	if _, err := ExpenseEventFromJSON([]byte("{")); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := ExpenseEventFromJSON([]byte(`{"type":"renamed","id":1}`)); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestRoutingKey(t *testing.T) {
	for typ, want := range map[EventType]string{
		EventCreated: "expense.created",
		EventUpdated: "expense.updated",
		EventDeleted: "expense.deleted",
	} {
		if got := (ExpenseEvent{Type: typ}).RoutingKey(); got != want {
			t.Errorf("RoutingKey(%s) = %q, want %q", typ, got, want)
		}
	}
}

func TestPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	dial, _ := fakeDialer(nil, ch)

	p, err := newPublisher(context.Background(), "amqp://test", "spendlog", 1, applog.Discard(), dial)
	if err != nil {
		t.Fatalf("newPublisher: %v", err)
	}
	if len(ch.declared) != 1 || ch.declared[0] != "spendlog" {
		t.Fatalf("declared = %v", ch.declared)
	}

	if err := p.Publish(context.Background(), NewExpenseEvent(EventDeleted, sampleExpense())); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(ch.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(ch.published))
	}
	msg := ch.published[0]
	if msg.exchange != "spendlog" || msg.key != "expense.deleted" {
		t.Errorf("exchange=%q key=%q", msg.exchange, msg.key)
	}
	if msg.msg.ContentType != "application/json" || msg.msg.DeliveryMode != amqp091.Persistent {
		t.Errorf("unexpected publishing %+v", msg.msg)
	}
}

func TestPublisher_ReconnectsOnConnectionError(t *testing.T) {
	first := &fakeChannel{publishErr: []error{amqp091.ErrClosed}}
	second := &fakeChannel{}
	chans := []*fakeChannel{first, second}
	calls := 0
	dial := func(string) (closer, channel, error) {
		ch := chans[calls]
		calls++
		return &fakeConn{}, ch, nil
	}

	p, err := newPublisher(context.Background(), "amqp://test", "spendlog", 1, applog.Discard(), dial)
	if err != nil {
		t.Fatalf("newPublisher: %v", err)
	}
	if err := p.Publish(context.Background(), NewExpenseEvent(EventUpdated, sampleExpense())); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if calls != 2 {
		t.Errorf("dial calls = %d, want 2", calls)
	}
	if !first.closed {
		t.Error("broken channel should be closed")
	}
	if len(second.published) != 1 || second.published[0].key != "expense.updated" {
		t.Errorf("retry not published on new channel: %+v", second.published)
	}
}

func TestPublisher_RecoversAfterFailedReconnect(t *testing.T) {
	ch := &fakeChannel{publishErr: []error{errors.New("write: connection reset by peer")}}
	refused := errors.New("dial AMQP: connection refused")
	dial, calls := fakeDialer([]error{nil, refused}, ch)

	p, err := newPublisher(context.Background(), "amqp://test", "spendlog", 1, applog.Discard(), dial)
	if err != nil {
		t.Fatalf("newPublisher: %v", err)
	}
	p.redialEvery = 0

	err = p.Publish(context.Background(), NewExpenseEvent(EventCreated, sampleExpense()))
	if !errors.Is(err, refused) {
		t.Fatalf("first publish err = %v, want %v", err, refused)
	}

	// Broker is back: the next publish dials again instead of staying closed.
	if err := p.Publish(context.Background(), NewExpenseEvent(EventUpdated, sampleExpense())); err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if *calls != 3 {
		t.Errorf("dial calls = %d, want 3", *calls)
	}
	if len(ch.published) != 1 || ch.published[0].key != "expense.updated" {
		t.Errorf("published = %+v", ch.published)
	}
}

func TestPublisher_RedialIsRateLimited(t *testing.T) {
	ch := &fakeChannel{publishErr: []error{amqp091.ErrClosed}}
	refused := errors.New("dial AMQP: connection refused")
	dial, calls := fakeDialer([]error{nil, refused}, ch)

	p, err := newPublisher(context.Background(), "amqp://test", "spendlog", 1, applog.Discard(), dial)
	if err != nil {
		t.Fatalf("newPublisher: %v", err)
	}
	clock := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	if err := p.Publish(context.Background(), NewExpenseEvent(EventCreated, sampleExpense())); err == nil {
		t.Fatal("expected error while broker is down")
	}

	err = p.Publish(context.Background(), NewExpenseEvent(EventCreated, sampleExpense()))
	if !errors.Is(err, errNotConnected) {
		t.Fatalf("err = %v, want %v", err, errNotConnected)
	}
	if *calls != 2 {
		t.Fatalf("dial calls = %d, want 2 (no redial inside the interval)", *calls)
	}

	clock = clock.Add(redialInterval)
	if err := p.Publish(context.Background(), NewExpenseEvent(EventDeleted, sampleExpense())); err != nil {
		t.Fatalf("publish after interval: %v", err)
	}
	if *calls != 3 {
		t.Errorf("dial calls = %d, want 3", *calls)
	}
	if len(ch.published) != 1 || ch.published[0].key != "expense.deleted" {
		t.Errorf("published = %+v", ch.published)
	}
}

func TestPublisher_NonConnectionErrorIsReturned(t *testing.T) {
	ch := &fakeChannel{publishErr: []error{errors.New("precondition failed")}}
	dial, calls := fakeDialer(nil, ch)

	p, err := newPublisher(context.Background(), "amqp://test", "spendlog", 1, applog.Discard(), dial)
	if err != nil {
		t.Fatalf("newPublisher: %v", err)
	}
	if err := p.Publish(context.Background(), NewExpenseEvent(EventCreated, sampleExpense())); err == nil {
		t.Fatal("expected publish error")
	}
	if *calls != 1 {
		t.Errorf("dial calls = %d, want 1 (no reconnect)", *calls)
	}
}

func TestPublisher_ClosedRejectsPublish(t *testing.T) {
	dial, _ := fakeDialer(nil, &fakeChannel{})
	p, err := newPublisher(context.Background(), "amqp://test", "spendlog", 1, applog.Discard(), dial)
	if err != nil {
		t.Fatalf("newPublisher: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	err = p.Publish(context.Background(), NewExpenseEvent(EventCreated, sampleExpense()))
	if !errors.Is(err, errPublisherClosed) {
		t.Fatalf("err = %v, want %v", err, errPublisherClosed)
	}
}

func TestNewPublisher_GivesUpAfterAttempts(t *testing.T) {
	dialErr := errors.New("dial AMQP: connection refused")
	dial, calls := fakeDialer([]error{dialErr}, &fakeChannel{})

	_, err := newPublisher(context.Background(), "amqp://test", "spendlog", 1, applog.Discard(), dial)
	if !errors.Is(err, dialErr) {
		t.Fatalf("err = %v, want %v", err, dialErr)
	}
	if *calls != 1 {
		t.Errorf("dial calls = %d, want 1", *calls)
	}
}

func TestNewPublisher_StopsOnContextCancel(t *testing.T) {
	dialErr := errors.New("connection refused")
	dial, _ := fakeDialer([]error{dialErr, dialErr, dialErr}, &fakeChannel{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPublisher(ctx, "amqp://test", "spendlog", 3, applog.Discard(), dial)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
