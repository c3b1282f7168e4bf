package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"bytebank/internal/cache"
	apperrors "bytebank/internal/errors"
	"bytebank/internal/functions"
	"bytebank/internal/models"
	"bytebank/internal/money"
	"bytebank/internal/rest"
	"bytebank/internal/session"
	"bytebank/internal/storage"
	"bytebank/internal/validation"
)

const (
	tableTransactions = "transactions"
	tableBankAccounts = "bank_accounts"

	defaultCurrency = "BRL"

	// reprocessWorkers bounds the fan-out of process-transaction calls.
	reprocessWorkers = 4
)

// CreateTransactionInput carries the fields a caller supplies when recording
// a transaction. Amount is in reais; conversion to centavos happens here.
type CreateTransactionInput struct {
	TransactionType string          `json:"transaction_type" validate:"required,transaction_type"`
	Amount          decimal.Decimal `json:"amount" validate:"required"`
	Description     string          `json:"description" validate:"omitempty,max=500"`
	Category        string          `json:"category" validate:"omitempty,transaction_category"`
	SenderName      string          `json:"sender_name" validate:"omitempty,max=200"`
	FromAccountID   *uuid.UUID      `json:"from_account_id"`
	ToAccountID     *uuid.UUID      `json:"to_account_id"`
	Metadata        map[string]any  `json:"metadata"`
}

// UpdateTransactionInput carries the mutable fields of a transaction. Nil
// pointers leave the column untouched.
type UpdateTransactionInput struct {
	Description *string `json:"description" validate:"omitempty,max=500"`
	Category    *string `json:"category" validate:"omitempty,transaction_category"`
	SenderName  *string `json:"sender_name" validate:"omitempty,max=200"`
	Status      *string `json:"status" validate:"omitempty,transaction_status"`
}

type transactionService struct {
	client    *rest.Client
	session   *session.Accessor
	receipts  *storage.ReceiptStore
	processor *functions.Processor
	cache     *cache.QueryCache
	validator *validation.Validator
	logger    *slog.Logger
	// warms the bank account projection after balance-changing writes
	refreshAccounts func(ctx context.Context) error
	now             func() time.Time
}

// NewTransactionService creates a new TransactionServiceInterface instance.
// accounts may be nil when no account projection needs refreshing.
func NewTransactionService(
	client *rest.Client,
	sess *session.Accessor,
	receipts *storage.ReceiptStore,
	processor *functions.Processor,
	queryCache *cache.QueryCache,
	accounts BankAccountServiceInterface,
) TransactionServiceInterface {
	s := &transactionService{
		client:    client,
		session:   sess,
		receipts:  receipts,
		processor: processor,
		cache:     queryCache,
		validator: validation.GetValidator(),
		logger:    slog.Default(),
		now:       time.Now,
	}
	if accounts != nil {
		s.refreshAccounts = func(ctx context.Context) error {
			_, err := accounts.ListActive(ctx)
			return err
		}
	}
	return s
}

// List returns a page of the caller's transactions, newest first.
func (s *transactionService) List(ctx context.Context, page models.PaginationOptions) (*models.PaginatedTransactions, error) {
	return s.ListFiltered(ctx, models.FilterOptions{}, page)
}

// ListFiltered returns a page of the caller's transactions matching the
// given filters. The row fetch and the count run in parallel; a failed
// count degrades the result to an unknown total instead of failing the page.
func (s *transactionService) ListFiltered(ctx context.Context, filters models.FilterOptions, page models.PaginationOptions) (*models.PaginatedTransactions, error) {
	userID, err := s.session.UserID()
	if err != nil {
		return nil, err
	}

	offset, limit := page.Resolve()
	q := buildFilterQuery(userID, filters).
		Order("created_at", false).
		Offset(offset).
		Limit(limit)

	key := cache.Key(cache.GroupTransactions, "list", userID.String(), q.Encode())
	value, err := s.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return s.loadPage(ctx, q, offset, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	result := value.(*models.PaginatedTransactions)
	return result, nil
}

func (s *transactionService) loadPage(ctx context.Context, q *rest.Query, offset, limit int) (*models.PaginatedTransactions, error) {
	var (
		wg    sync.WaitGroup
		total *int64
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		count, err := s.client.Count(ctx, tableTransactions, q.WithoutPagination())
		if err != nil {
			s.logger.Warn("transaction count failed, total unknown", slog.String("error", err.Error()))
			return
		}
		total = &count
	}()

	var rows []models.Transaction
	err := s.client.Get(ctx, tableTransactions, q, &rows)
	wg.Wait()
	if err != nil {
		return nil, err
	}

	hasNext := len(rows) == limit
	if total != nil {
		hasNext = int64(offset+len(rows)) < *total
	}

	size := limit
	pageNumber := offset/size + 1
	return &models.PaginatedTransactions{
		Data: rows,
		Pagination: models.Pagination{
			Page:            pageNumber,
			PageSize:        size,
			From:            offset,
			To:              offset + len(rows) - 1,
			Total:           total,
			HasNextPage:     hasNext,
			HasPreviousPage: offset > 0,
		},
	}, nil
}

// Get returns one of the caller's transactions by id.
func (s *transactionService) Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	userID, err := s.session.UserID()
	if err != nil {
		return nil, err
	}
	return s.getOwned(ctx, userID, id)
}

// getOwned fetches the row constrained to the caller's user id, so foreign
// rows are indistinguishable from missing ones.
func (s *transactionService) getOwned(ctx context.Context, userID, id uuid.UUID) (*models.Transaction, error) {
	q := rest.NewQuery().
		Select("*").
		Eq("id", id.String()).
		Eq("user_id", userID.String()).
		Limit(1)

	var rows []models.Transaction
	if err := s.client.Get(ctx, tableTransactions, q, &rows); err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	if len(rows) == 0 {
		return nil, apperrors.Newf(apperrors.TransactionNotFound, "transaction %s not found", id)
	}
	return &rows[0], nil
}

// Create records a new transaction for the caller. Transactions are
// recorded as already completed; the amount arrives in reais and is stored
// in centavos.
func (s *transactionService) Create(ctx context.Context, input CreateTransactionInput) (*models.Transaction, error) {
	userID, err := s.session.UserID()
	if err != nil {
		return nil, err
	}

	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}

	cents := money.ReaisToCents(input.Amount)
	if cents <= 0 {
		return nil, apperrors.Newf(apperrors.TransactionInvalidAmount, "amount must be positive, got %s", input.Amount)
	}

	processedAt := s.now().UTC()
	row := models.Transaction{
		UserID:          userID,
		FromAccountID:   input.FromAccountID,
		ToAccountID:     input.ToAccountID,
		TransactionType: input.TransactionType,
		Amount:          cents,
		Currency:        defaultCurrency,
		Description:     input.Description,
		Category:        input.Category,
		SenderName:      input.SenderName,
		Status:          models.TransactionStatusCompleted,
		Metadata:        input.Metadata,
		ProcessedAt:     &processedAt,
	}

	var created models.Transaction
	if err := s.client.Post(ctx, tableTransactions, insertPayload(row), &created); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	s.cache.Invalidate(cache.GroupTransactions, cache.GroupBankAccounts)

	// Completed transactions move balances; refresh the account view
	// before returning so the caller never reads a stale balance.
	if s.refreshAccounts != nil {
		if err := s.refreshAccounts(ctx); err != nil {
			s.logger.Warn("bank account refresh after create failed", slog.String("error", err.Error()))
		}
	}

	return &created, nil
}

// Update patches the mutable fields of one of the caller's transactions.
func (s *transactionService) Update(ctx context.Context, id uuid.UUID, input UpdateTransactionInput) (*models.Transaction, error) {
	userID, err := s.session.UserID()
	if err != nil {
		return nil, err
	}

	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}

	existing, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	patch := map[string]any{}
	if input.Description != nil {
		patch["description"] = *input.Description
	}
	if input.Category != nil {
		patch["category"] = *input.Category
	}
	if input.SenderName != nil {
		patch["sender_name"] = *input.SenderName
	}
	if input.Status != nil {
		if !existing.CanTransitionTo(*input.Status) {
			return nil, apperrors.Newf(apperrors.ValidationOutOfRange,
				"cannot transition transaction from %s to %s", existing.Status, *input.Status)
		}
		patch["status"] = *input.Status
		if *input.Status == models.TransactionStatusCompleted {
			patch["processed_at"] = s.now().UTC()
		}
	}
	if len(patch) == 0 {
		return existing, nil
	}
	patch["updated_at"] = s.now().UTC()

	q := rest.NewQuery().
		Eq("id", id.String()).
		Eq("user_id", userID.String())

	var updated models.Transaction
	if err := s.client.Patch(ctx, tableTransactions, q, patch, &updated); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	s.cache.Invalidate(cache.GroupTransactions)
	return &updated, nil
}

// Delete removes one of the caller's transactions. Ownership is verified by
// requerying the row first. A failed receipt cleanup is reported as a
// warning, not an error.
func (s *transactionService) Delete(ctx context.Context, id uuid.UUID) (apperrors.Warnings, error) {
	userID, err := s.session.UserID()
	if err != nil {
		return nil, err
	}

	existing, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	var warnings apperrors.Warnings
	if existing.HasReceipt() && s.receipts != nil {
		if err := s.receipts.Delete(ctx, existing.ReceiptURL); err != nil {
			s.logger.Warn("receipt cleanup failed",
				slog.String("transaction_id", id.String()),
				slog.String("error", err.Error()))
			warnings.Add(err)
		}
	}

	q := rest.NewQuery().
		Eq("id", id.String()).
		Eq("user_id", userID.String())
	if err := s.client.Delete(ctx, tableTransactions, q); err != nil {
		return warnings, fmt.Errorf("failed to delete transaction: %w", err)
	}

	s.cache.Invalidate(cache.GroupTransactions, cache.GroupBankAccounts)
	return warnings, nil
}

// AttachReceipt uploads a receipt file and links it to the transaction. The
// upload is best effort: a failure comes back as a warning with the
// transaction unchanged.
func (s *transactionService) AttachReceipt(ctx context.Context, id uuid.UUID, filename, contentType string, content io.Reader, size int64) (*models.Transaction, apperrors.Warnings, error) {
	userID, err := s.session.UserID()
	if err != nil {
		return nil, nil, err
	}

	existing, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}

	var warnings apperrors.Warnings
	receiptURL, err := s.receipts.Upload(ctx, userID, id, filename, contentType, content, size)
	if err != nil {
		s.logger.Warn("receipt upload failed",
			slog.String("transaction_id", id.String()),
			slog.String("error", err.Error()))
		warnings.Add(err)
		return existing, warnings, nil
	}

	q := rest.NewQuery().
		Eq("id", id.String()).
		Eq("user_id", userID.String())

	var updated models.Transaction
	if err := s.client.Patch(ctx, tableTransactions, q, map[string]any{"receipt_url": receiptURL}, &updated); err != nil {
		// The object is orphaned if the link is never written.
		if cleanupErr := s.receipts.Delete(ctx, receiptURL); cleanupErr != nil {
			warnings.Add(cleanupErr)
		}
		warnings.Add(err)
		return existing, warnings, nil
	}

	s.cache.Invalidate(cache.GroupTransactions)
	return &updated, warnings, nil
}

// ReprocessPending pushes every pending transaction of the caller through
// the process-transaction function. Individual failures are collected as
// warnings; the returned count is the number of successful completions.
func (s *transactionService) ReprocessPending(ctx context.Context) (int, apperrors.Warnings, error) {
	userID, err := s.session.UserID()
	if err != nil {
		return 0, nil, err
	}

	q := rest.NewQuery().
		Select("*").
		Eq("user_id", userID.String()).
		Eq("status", models.TransactionStatusPending).
		Order("created_at", true)

	var pending []models.Transaction
	if err := s.client.Get(ctx, tableTransactions, q, &pending); err != nil {
		return 0, nil, fmt.Errorf("failed to load pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil, nil
	}

	var (
		mu        sync.Mutex
		warnings  apperrors.Warnings
		processed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reprocessWorkers)
	for _, tx := range pending {
		tx := tx
		g.Go(func() error {
			_, err := s.processor.Process(gctx, tx.ID, functions.ActionComplete, "")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("reprocess failed",
					slog.String("transaction_id", tx.ID.String()),
					slog.String("error", err.Error()))
				warnings.Add(err)
				return nil
			}
			processed++
			return nil
		})
	}
	_ = g.Wait()

	s.cache.Invalidate(cache.GroupTransactions, cache.GroupBankAccounts)

	s.logger.Info("pending transactions reprocessed",
		slog.Int("total", len(pending)),
		slog.Int("processed", processed),
		slog.Int("failed", len(warnings)))

	return processed, warnings, nil
}

// buildFilterQuery translates the UI filter options into PostgREST
// parameters. Sentinel values ("" and "all") leave the column
// unconstrained; dates expand to whole-day timestamp ranges and amounts are
// compared in centavos.
func buildFilterQuery(userID uuid.UUID, f models.FilterOptions) *rest.Query {
	q := rest.NewQuery().
		Select("*").
		Eq("user_id", userID.String())

	if f.DateFrom != "" {
		q.Gte("created_at", f.DateFrom+"T00:00:00.000Z")
	}
	if f.DateTo != "" {
		q.Lte("created_at", f.DateTo+"T23:59:59.999Z")
	}
	if f.HasTypeFilter() {
		q.Eq("transaction_type", f.TransactionType)
	}
	if f.HasStatusFilter() {
		q.Eq("status", f.Status)
	}
	if f.HasCategoryFilter() {
		q.Eq("category", f.Category)
	}
	if f.MinAmount != nil {
		q.Gte("amount", strconv.FormatInt(money.ReaisToCents(*f.MinAmount), 10))
	}
	if f.MaxAmount != nil {
		q.Lte("amount", strconv.FormatInt(money.ReaisToCents(*f.MaxAmount), 10))
	}
	if f.Description != "" {
		q.Ilike("description", f.Description)
	}
	if f.SenderName != "" {
		q.Ilike("sender_name", f.SenderName)
	}

	return q
}

// insertPayload strips the server-generated columns from a row so inserts
// never send zero ids or timestamps.
func insertPayload(t models.Transaction) map[string]any {
	payload := map[string]any{
		"user_id":          t.UserID,
		"transaction_type": t.TransactionType,
		"amount":           t.Amount,
		"currency":         t.Currency,
		"status":           t.Status,
	}
	if t.FromAccountID != nil {
		payload["from_account_id"] = *t.FromAccountID
	}
	if t.ToAccountID != nil {
		payload["to_account_id"] = *t.ToAccountID
	}
	if t.Description != "" {
		payload["description"] = t.Description
	}
	if t.Category != "" {
		payload["category"] = t.Category
	}
	if t.SenderName != "" {
		payload["sender_name"] = t.SenderName
	}
	if t.Metadata != nil {
		payload["metadata"] = t.Metadata
	}
	if t.ProcessedAt != nil {
		payload["processed_at"] = t.ProcessedAt
	}
	return payload
}
