package services

import (
	"context"
	"io"

	"github.com/google/uuid"

	apperrors "bytebank/internal/errors"
	"bytebank/internal/models"
)

// TransactionServiceInterface defines the contract for transaction operations
type TransactionServiceInterface interface {
	List(ctx context.Context, page models.PaginationOptions) (*models.PaginatedTransactions, error)
	ListFiltered(ctx context.Context, filters models.FilterOptions, page models.PaginationOptions) (*models.PaginatedTransactions, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	Create(ctx context.Context, input CreateTransactionInput) (*models.Transaction, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateTransactionInput) (*models.Transaction, error)
	Delete(ctx context.Context, id uuid.UUID) (apperrors.Warnings, error)
	AttachReceipt(ctx context.Context, id uuid.UUID, filename, contentType string, content io.Reader, size int64) (*models.Transaction, apperrors.Warnings, error)
	ReprocessPending(ctx context.Context) (int, apperrors.Warnings, error)
}

// BankAccountServiceInterface defines the contract for bank account operations
type BankAccountServiceInterface interface {
	ListActive(ctx context.Context) ([]models.BankAccount, error)
	Primary(ctx context.Context) (*models.BankAccount, error)
	ByNumber(ctx context.Context, accountNumber string) (*models.BankAccount, error)
	CreateBankAccount(ctx context.Context, accountType string) (*models.BankAccount, error)
}

// SampleDataGeneratorInterface defines the contract for demo data seeding
type SampleDataGeneratorInterface interface {
	Generate(ctx context.Context, count int) (int, apperrors.Warnings, error)
}
