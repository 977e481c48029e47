package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"spendlog/internal/amqp"
	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/metrics"
	"spendlog/internal/store"
)

// EventPublisher delivers expense change events. *amqp.Publisher implements it.
type EventPublisher interface {
	Publish(ctx context.Context, ev amqp.ExpenseEvent) error
}

// ExpenseService orchestrates expense operations across the store and the event publisher
type ExpenseService struct {
	store     store.Store
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *applog.Logger
}

// NewExpenseService wires a store with an optional publisher and metrics (both may be nil).
func NewExpenseService(st store.Store, publisher EventPublisher, m *metrics.Metrics, logger *applog.Logger) *ExpenseService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &ExpenseService{
		store:     st,
		publisher: publisher,
		metrics:   m,
		logger:    logger.WithComponent(applog.ComponentExpense),
	}
}

// List returns every expense in insertion order.
func (s *ExpenseService) List(ctx context.Context) ([]core.Expense, error) {
	return s.store.List(ctx)
}

// Get returns the expense with the given id or core.ErrNotFound.
func (s *ExpenseService) Get(ctx context.Context, id int64) (core.Expense, error) {
	return s.store.Get(ctx, id)
}

// CreateExpense validates the submitted form, saves the expense and publishes an event
func (s *ExpenseService) CreateExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	e, err := in.ToExpense()
	if err != nil {
		s.metrics.ObserveExpenseOp(applog.OpCreate, outcome(err))
		return core.Expense{}, err
	}

	created, err := s.store.Create(ctx, e)
	s.metrics.ObserveExpenseOp(applog.OpCreate, outcome(err))
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense created", applog.NewFields().
		WithOperation(applog.OpCreate).
		WithExpense(created.ID, created.Description, created.Amount, created.Category).
		ToSlice()...)

	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventCreated, created))
	return created, nil
}

// UpdateExpense replaces the four fields of expense id. An unknown id is
// reported before the amount is validated.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id int64, in core.ExpenseInput) (core.Expense, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		s.metrics.ObserveExpenseOp(applog.OpUpdate, outcome(err))
		return core.Expense{}, err
	}

	e, err := in.ToExpense()
	if err != nil {
		s.metrics.ObserveExpenseOp(applog.OpUpdate, outcome(err))
		return core.Expense{}, err
	}
	e.ID = id

	err = s.store.Update(ctx, e)
	s.metrics.ObserveExpenseOp(applog.OpUpdate, outcome(err))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense updated", applog.NewFields().
		WithOperation(applog.OpUpdate).
		WithExpense(e.ID, e.Description, e.Amount, e.Category).
		ToSlice()...)

	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventUpdated, e))
	return e, nil
}

// DeleteExpense removes an expense and publishes a delete event
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	existing, err := s.store.Get(ctx, id)
	if err == nil {
		err = s.store.Delete(ctx, id)
	}
	s.metrics.ObserveExpenseOp(applog.OpDelete, outcome(err))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete expense: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense deleted", applog.NewFields().
		WithOperation(applog.OpDelete).
		WithExpense(existing.ID, existing.Description, existing.Amount, existing.Category).
		ToSlice()...)

	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventDeleted, existing))
	return nil
}

// Summary computes the total, count and per-category totals.
func (s *ExpenseService) Summary(ctx context.Context) (core.Summary, error) {
	expenses, err := s.store.List(ctx)
	if err != nil {
		return core.Summary{}, fmt.Errorf("list expenses: %w", err)
	}
	return core.Summarize(expenses), nil
}

// Ping reports whether the store can serve requests.
func (s *ExpenseService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// publish never fails the caller; the mutation is already applied.
func (s *ExpenseService) publish(ctx context.Context, ev amqp.ExpenseEvent) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, ev)
	s.metrics.ObserveEvent(string(ev.Type), err)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			applog.FieldEventType, string(ev.Type),
			applog.FieldExpenseID, ev.ID,
			applog.FieldError, err)
	}
}

// Close closes both the store and the publisher
func (s *ExpenseService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrInvalidAmount):
		return "invalid"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
