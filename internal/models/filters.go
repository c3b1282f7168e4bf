package models

import (
	"github.com/shopspring/decimal"
)

// FilterAll is the sentinel the UI sends for enum filters that should not
// constrain the query.
const FilterAll = "all"

// FilterOptions contains filtering options for transaction queries. Dates
// use the "2006-01-02" form and constrain whole days; amounts are major
// units (reais) and are converted to minor units before comparison.
type FilterOptions struct {
	DateFrom        string
	DateTo          string
	TransactionType string
	Status          string
	Category        string
	MinAmount       *decimal.Decimal
	MaxAmount       *decimal.Decimal
	Description     string
	SenderName      string
}

// HasTypeFilter reports whether the type filter constrains the query.
func (f FilterOptions) HasTypeFilter() bool {
	return filterSet(f.TransactionType)
}

// HasStatusFilter reports whether the status filter constrains the query.
func (f FilterOptions) HasStatusFilter() bool {
	return filterSet(f.Status)
}

// HasCategoryFilter reports whether the category filter constrains the query.
func (f FilterOptions) HasCategoryFilter() bool {
	return filterSet(f.Category)
}

func filterSet(value string) bool {
	return value != "" && value != FilterAll
}
