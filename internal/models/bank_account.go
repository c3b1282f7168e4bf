package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AccountTypeChecking = "checking"
	AccountTypeSavings  = "savings"
	AccountTypeBusiness = "business"
)

var (
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrNegativeBalance    = errors.New("account balance cannot be negative")
)

// BankAccount mirrors a row of the backend's bank_accounts table. Balance is
// integer minor units.
type BankAccount struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	AccountNumber string    `json:"account_number"`
	AccountType   string    `json:"account_type"`
	Balance       int64     `json:"balance"`
	Currency      string    `json:"currency"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Validate validates the bank account fields
func (a *BankAccount) Validate() error {
	if a.UserID == uuid.Nil {
		return errors.New("user ID is required")
	}

	if a.AccountNumber == "" {
		return errors.New("account number is required")
	}

	if !IsValidAccountType(a.AccountType) {
		return ErrInvalidAccountType
	}

	if a.Balance < 0 {
		return ErrNegativeBalance
	}

	return nil
}

// BalanceReais returns the balance in major units (reais).
func (a *BankAccount) BalanceReais() decimal.Decimal {
	return decimal.New(a.Balance, -2)
}

// IsValidAccountType checks if the account type is valid
func IsValidAccountType(accountType string) bool {
	switch accountType {
	case AccountTypeChecking, AccountTypeSavings, AccountTypeBusiness:
		return true
	default:
		return false
	}
}
