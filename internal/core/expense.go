package core

import (
	"errors"

	"github.com/shopspring/decimal"
)

type (
	Expense struct {
		ID          int64
		Description string
		Amount      decimal.Decimal
		Category    string
		Date        string // free text, not validated
	}

	// ExpenseInput holds the raw form fields of a create or edit submission.
	ExpenseInput struct {
		Description string
		Amount      string
		Category    string
		Date        string
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrNotFound      = errors.New("expense not found")
)

// Validate checks the expense invariant: the amount must be positive.
func (e Expense) Validate() error {
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// ToExpense parses the amount and returns an expense without an id.
// Only the amount is validated; every other field is kept as submitted.
func (in ExpenseInput) ToExpense() (Expense, error) {
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return Expense{}, err
	}
	return Expense{
		Description: in.Description,
		Amount:      amount,
		Category:    in.Category,
		Date:        in.Date,
	}, nil
}

// Input returns the form representation of e, used to pre-fill the edit form.
func (e Expense) Input() ExpenseInput {
	return ExpenseInput{
		Description: e.Description,
		Amount:      e.Amount.StringFixed(2),
		Category:    e.Category,
		Date:        e.Date,
	}
}

// Apply copies the user-editable fields of src into e, keeping e.ID.
func (e *Expense) Apply(src Expense) {
	e.Description = src.Description
	e.Amount = src.Amount
	e.Category = src.Category
	e.Date = src.Date
}
