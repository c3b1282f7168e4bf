package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransactionTypeDeposit    = "deposit"
	TransactionTypeWithdrawal = "withdrawal"
	TransactionTypeTransfer   = "transfer"
	TransactionTypePayment    = "payment"
	TransactionTypeFee        = "fee"

	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
	TransactionStatusCancelled = "cancelled"
)

// Transaction categories as defined by the backend schema
const (
	CategoryAlimentacao    = "alimentacao"
	CategoryTransporte     = "transporte"
	CategorySaude          = "saude"
	CategoryEducacao       = "educacao"
	CategoryEntretenimento = "entretenimento"
	CategoryCompras        = "compras"
	CategoryCasa           = "casa"
	CategoryTrabalho       = "trabalho"
	CategoryInvestimentos  = "investimentos"
	CategoryViagem         = "viagem"
	CategoryOutros         = "outros"
)

var (
	ErrInvalidTransactionType     = errors.New("invalid transaction type")
	ErrInvalidTransactionStatus   = errors.New("invalid transaction status")
	ErrInvalidTransactionCategory = errors.New("invalid transaction category")
	ErrInvalidAmount              = errors.New("transaction amount must be positive")
)

// Transaction mirrors a row of the backend's transactions table. Amount is
// always integer minor units (centavos); conversion to reais happens at the
// service boundary only.
type Transaction struct {
	ID              uuid.UUID      `json:"id"`
	FromAccountID   *uuid.UUID     `json:"from_account_id,omitempty"`
	ToAccountID     *uuid.UUID     `json:"to_account_id,omitempty"`
	UserID          uuid.UUID      `json:"user_id"`
	TransactionType string         `json:"transaction_type"`
	Amount          int64          `json:"amount"`
	Currency        string         `json:"currency"`
	Description     string         `json:"description,omitempty"`
	ReferenceNumber string         `json:"reference_number,omitempty"`
	Status          string         `json:"status"`
	Category        string         `json:"category,omitempty"`
	SenderName      string         `json:"sender_name,omitempty"`
	ReceiptURL      string         `json:"receipt_url,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Validate validates the transaction fields
func (t *Transaction) Validate() error {
	if t.UserID == uuid.Nil {
		return errors.New("user ID is required")
	}

	if !IsValidTransactionType(t.TransactionType) {
		return ErrInvalidTransactionType
	}

	if !IsValidTransactionStatus(t.Status) {
		return ErrInvalidTransactionStatus
	}

	if t.Category != "" && !IsValidTransactionCategory(t.Category) {
		return ErrInvalidTransactionCategory
	}

	if t.Amount <= 0 {
		return ErrInvalidAmount
	}

	return nil
}

// IsCompleted returns true if the transaction is completed
func (t *Transaction) IsCompleted() bool {
	return t.Status == TransactionStatusCompleted
}

// IsPending returns true if the transaction is pending
func (t *Transaction) IsPending() bool {
	return t.Status == TransactionStatusPending
}

// HasReceipt returns true if a receipt file is attached
func (t *Transaction) HasReceipt() bool {
	return t.ReceiptURL != ""
}

// AmountReais returns the amount in major units (reais).
func (t *Transaction) AmountReais() decimal.Decimal {
	return decimal.New(t.Amount, -2)
}

// CanTransitionTo checks if a transaction can transition to a new status
func (t *Transaction) CanTransitionTo(newStatus string) bool {
	validTransitions := map[string][]string{
		TransactionStatusPending:   {TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled},
		TransactionStatusCompleted: {},
		TransactionStatusFailed:    {},
		TransactionStatusCancelled: {},
	}

	allowed, exists := validTransitions[t.Status]
	if !exists {
		return false
	}

	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

// IsValidTransactionType checks if the transaction type is valid
func IsValidTransactionType(transactionType string) bool {
	switch transactionType {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeTransfer,
		TransactionTypePayment, TransactionTypeFee:
		return true
	default:
		return false
	}
}

// IsValidTransactionStatus checks if the transaction status is valid
func IsValidTransactionStatus(status string) bool {
	switch status {
	case TransactionStatusPending, TransactionStatusCompleted,
		TransactionStatusFailed, TransactionStatusCancelled:
		return true
	default:
		return false
	}
}

// IsValidTransactionCategory checks if the category is one the backend schema accepts
func IsValidTransactionCategory(category string) bool {
	switch category {
	case CategoryAlimentacao, CategoryTransporte, CategorySaude, CategoryEducacao,
		CategoryEntretenimento, CategoryCompras, CategoryCasa, CategoryTrabalho,
		CategoryInvestimentos, CategoryViagem, CategoryOutros:
		return true
	default:
		return false
	}
}

// TransactionCategories lists every category the backend schema accepts.
func TransactionCategories() []string {
	return []string{
		CategoryAlimentacao, CategoryTransporte, CategorySaude, CategoryEducacao,
		CategoryEntretenimento, CategoryCompras, CategoryCasa, CategoryTrabalho,
		CategoryInvestimentos, CategoryViagem, CategoryOutros,
	}
}

// TransactionTypes lists every valid transaction type.
func TransactionTypes() []string {
	return []string{
		TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeTransfer,
		TransactionTypePayment, TransactionTypeFee,
	}
}
