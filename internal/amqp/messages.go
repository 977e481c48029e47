package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"spendlog/internal/core"
)

// EventType names a change made to the expense collection.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// ExpenseEvent describes one successful mutation. Deleted events carry
// the expense as it was right before removal.
type ExpenseEvent struct {
	Type        EventType       `json:"type"`
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
	Timestamp   time.Time       `json:"timestamp"`
}

// NewExpenseEvent snapshots e for the given event type.
func NewExpenseEvent(t EventType, e core.Expense) ExpenseEvent {
	return ExpenseEvent{
		Type:        t,
		ID:          e.ID,
		Description: e.Description,
		Amount:      e.Amount,
		Category:    e.Category,
		Date:        e.Date,
		Timestamp:   time.Now().UTC(),
	}
}

// RoutingKey is "expense.<type>".
func (m ExpenseEvent) RoutingKey() string {
	return "expense." + string(m.Type)
}

// ToJSON converts the message to JSON bytes
func (m ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes a message and checks its type.
func ExpenseEventFromJSON(data []byte) (ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return ExpenseEvent{}, err
	}
	switch msg.Type {
	case EventCreated, EventUpdated, EventDeleted:
	default:
		return ExpenseEvent{}, fmt.Errorf("unknown event type %q", msg.Type)
	}
	return msg, nil
}
