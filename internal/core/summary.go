package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// Summary aggregates every recorded expense.
type Summary struct {
	Total      decimal.Decimal
	Count      int
	ByCategory []CategoryAmount // sorted by name
}

// Total returns the exact sum of all amounts.
func Total(expenses []Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// Summarize computes the total, the count and per-category totals.
func Summarize(expenses []Expense) Summary {
	byName := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		byName[e.Category] = byName[e.Category].Add(e.Amount)
	}

	cats := make([]CategoryAmount, 0, len(byName))
	for name, amount := range byName {
		cats = append(cats, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })

	return Summary{
		Total:      Total(expenses),
		Count:      len(expenses),
		ByCategory: cats,
	}
}
