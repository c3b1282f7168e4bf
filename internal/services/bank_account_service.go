package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"bytebank/internal/cache"
	apperrors "bytebank/internal/errors"
	"bytebank/internal/models"
	"bytebank/internal/rest"
	"bytebank/internal/session"
)

// maxAccountNumberAttempts bounds the unique number generation retry loop.
const maxAccountNumberAttempts = 5

type bankAccountService struct {
	client  *rest.Client
	session *session.Accessor
	cache   *cache.QueryCache
	logger  *slog.Logger
	now     func() time.Time
	randInt func(n int) int
}

// NewBankAccountService creates a new BankAccountServiceInterface instance
func NewBankAccountService(client *rest.Client, sess *session.Accessor, queryCache *cache.QueryCache) BankAccountServiceInterface {
	return &bankAccountService{
		client:  client,
		session: sess,
		cache:   queryCache,
		logger:  slog.Default(),
		now:     time.Now,
		randInt: rand.Intn,
	}
}

// ListActive returns the caller's active accounts, newest first.
func (s *bankAccountService) ListActive(ctx context.Context) ([]models.BankAccount, error) {
	userID, err := s.session.UserID()
	if err != nil {
		return nil, err
	}

	key := cache.Key(cache.GroupBankAccounts, "list", userID.String())
	value, err := s.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		q := rest.NewQuery().
			Select("*").
			Eq("user_id", userID.String()).
			Is("is_active", "true").
			Order("created_at", false)

		var accounts []models.BankAccount
		if err := s.client.Get(ctx, tableBankAccounts, q, &accounts); err != nil {
			return nil, err
		}
		return accounts, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bank accounts: %w", err)
	}

	return value.([]models.BankAccount), nil
}

// Primary returns the caller's most recently opened active account.
func (s *bankAccountService) Primary(ctx context.Context) (*models.BankAccount, error) {
	accounts, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, apperrors.New(apperrors.AccountNotFound)
	}
	return &accounts[0], nil
}

// ByNumber looks up one of the caller's accounts by its account number.
// Inactive accounts are reported as such rather than returned.
func (s *bankAccountService) ByNumber(ctx context.Context, accountNumber string) (*models.BankAccount, error) {
	userID, err := s.session.UserID()
	if err != nil {
		return nil, err
	}

	q := rest.NewQuery().
		Select("*").
		Eq("user_id", userID.String()).
		Eq("account_number", accountNumber).
		Limit(1)

	var accounts []models.BankAccount
	if err := s.client.Get(ctx, tableBankAccounts, q, &accounts); err != nil {
		return nil, fmt.Errorf("failed to look up bank account: %w", err)
	}
	if len(accounts) == 0 {
		return nil, apperrors.Newf(apperrors.AccountNotFound, "account %s not found", accountNumber)
	}
	if !accounts[0].IsActive {
		return nil, apperrors.Newf(apperrors.AccountInactive, "account %s is inactive", accountNumber)
	}
	return &accounts[0], nil
}

// CreateBankAccount opens an account of the given type for the caller. The
// account number is generated client side and re-rolled on collision, up to
// maxAccountNumberAttempts times.
func (s *bankAccountService) CreateBankAccount(ctx context.Context, accountType string) (*models.BankAccount, error) {
	userID, err := s.session.UserID()
	if err != nil {
		return nil, err
	}

	if !models.IsValidAccountType(accountType) {
		return nil, apperrors.Newf(apperrors.AccountInvalidType, "unknown account type %q", accountType)
	}

	for attempt := 1; attempt <= maxAccountNumberAttempts; attempt++ {
		number := s.generateAccountNumber(userID)

		taken, err := s.numberTaken(ctx, number)
		if err != nil {
			return nil, fmt.Errorf("failed to check account number: %w", err)
		}
		if taken {
			s.logger.Debug("account number collision, retrying",
				slog.String("account_number", number),
				slog.Int("attempt", attempt))
			continue
		}

		payload := map[string]any{
			"user_id":        userID,
			"account_number": number,
			"account_type":   accountType,
			"balance":        0,
			"currency":       defaultCurrency,
			"is_active":      true,
		}

		var created models.BankAccount
		if err := s.client.Post(ctx, tableBankAccounts, payload, &created); err != nil {
			// A concurrent signup can win the number between the
			// check and the insert; re-roll on a rejected insert.
			if apperrors.HasCode(err, apperrors.NetworkBadStatus) {
				continue
			}
			return nil, fmt.Errorf("failed to create bank account: %w", err)
		}

		s.cache.Invalidate(cache.GroupBankAccounts)
		return &created, nil
	}

	return nil, apperrors.Newf(apperrors.AccountNumberExhausted,
		"could not find a free account number in %d attempts", maxAccountNumberAttempts)
}

func (s *bankAccountService) numberTaken(ctx context.Context, number string) (bool, error) {
	q := rest.NewQuery().Eq("account_number", number)
	count, err := s.client.Count(ctx, tableBankAccounts, q)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// generateAccountNumber builds a 15 digit number from a timestamp fragment,
// a random fragment and a fragment derived from the user id, so numbers are
// unique across time and mostly unique across users.
func (s *bankAccountService) generateAccountNumber(userID uuid.UUID) string {
	timestampPart := s.now().UnixMilli() % 100_000_000
	randomPart := s.randInt(1000)
	userPart := (int64(userID[12])<<8 | int64(userID[13])) % 10_000

	return fmt.Sprintf("%08d", timestampPart) +
		fmt.Sprintf("%03d", randomPart) +
		fmt.Sprintf("%04d", userPart)
}
