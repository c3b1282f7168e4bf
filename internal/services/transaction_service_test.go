package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bytebank/internal/cache"
	apperrors "bytebank/internal/errors"
	"bytebank/internal/functions"
	"bytebank/internal/models"
	"bytebank/internal/rest"
	"bytebank/internal/session"
	"bytebank/internal/storage"
)

func signTestToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()

	claims := &session.TokenClaims{
		Email: "ana@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func newTestAccessor(t *testing.T, userID uuid.UUID) *session.Accessor {
	t.Helper()

	store := session.NewMemoryStore()
	require.NoError(t, store.Save(&session.Session{AccessToken: signTestToken(t, userID)}))
	return session.NewAccessor(store)
}

func newTestClient(t *testing.T, baseURL string, accessor *session.Accessor) *rest.Client {
	t.Helper()

	return rest.NewClient(baseURL, "test-anon-key", accessor,
		rest.WithMaxRetries(0),
		rest.WithRetryBackoff(0),
		rest.WithRateLimit(1000, 1000),
	)
}

func newService(t *testing.T, server *httptest.Server, userID uuid.UUID, accounts BankAccountServiceInterface) TransactionServiceInterface {
	t.Helper()

	accessor := newTestAccessor(t, userID)
	client := newTestClient(t, server.URL, accessor)
	receipts := storage.NewReceiptStore(server.URL, "test-anon-key", "byte-bank", accessor, server.Client())
	processor := functions.NewProcessor(server.URL, "test-anon-key", accessor, server.Client())
	return NewTransactionService(client, accessor, receipts, processor, cache.New(time.Minute, false), accounts)
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func sampleTransaction(userID uuid.UUID) models.Transaction {
	return models.Transaction{
		ID:              uuid.New(),
		UserID:          userID,
		TransactionType: models.TransactionTypePayment,
		Amount:          12345,
		Currency:        "BRL",
		Description:     "Supermercado",
		Status:          models.TransactionStatusCompleted,
		Category:        models.CategoryAlimentacao,
		CreatedAt:       time.Now().Add(-time.Hour),
		UpdatedAt:       time.Now().Add(-time.Hour),
	}
}

func TestListFiltered_BuildsQueryAndPagination(t *testing.T) {
	userID := uuid.New()
	rows := []models.Transaction{sampleTransaction(userID), sampleTransaction(userID)}

	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Range", "20-21/42")
			w.WriteHeader(http.StatusOK)
			return
		}
		gotQuery = r.URL.RawQuery
		writeJSON(t, w, http.StatusOK, rows)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newService(t, server, userID, nil)

	min := decimal.NewFromFloat(10.50)
	filters := models.FilterOptions{
		DateFrom:        "2026-01-01",
		DateTo:          "2026-01-31",
		TransactionType: "payment",
		Status:          models.FilterAll,
		Category:        models.CategoryAlimentacao,
		MinAmount:       &min,
		Description:     "mercado",
	}

	result, err := svc.ListFiltered(context.Background(), filters, models.PaginationOptions{Page: 2, PageSize: 2})
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "user_id=eq."+userID.String())
	assert.Contains(t, gotQuery, "created_at=gte.2026-01-01T00%3A00%3A00.000Z")
	assert.Contains(t, gotQuery, "created_at=lte.2026-01-31T23%3A59%3A59.999Z")
	assert.Contains(t, gotQuery, "transaction_type=eq.payment")
	assert.NotContains(t, gotQuery, "status=")
	assert.Contains(t, gotQuery, "category=eq.alimentacao")
	assert.Contains(t, gotQuery, "amount=gte.1050")
	assert.Contains(t, gotQuery, "description=ilike.%2Amercado%2A")
	assert.Contains(t, gotQuery, "order=created_at.desc")
	assert.Contains(t, gotQuery, "offset=2")
	assert.Contains(t, gotQuery, "limit=2")

	require.Len(t, result.Data, 2)
	require.NotNil(t, result.Pagination.Total)
	assert.Equal(t, int64(42), *result.Pagination.Total)
	assert.Equal(t, 2, result.Pagination.Page)
	assert.True(t, result.Pagination.HasNextPage)
	assert.True(t, result.Pagination.HasPreviousPage)
}

func TestListFiltered_CountFailureDegrades(t *testing.T) {
	userID := uuid.New()
	rows := []models.Transaction{sampleTransaction(userID), sampleTransaction(userID)}

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, http.StatusOK, rows)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newService(t, server, userID, nil)

	result, err := svc.List(context.Background(), models.PaginationOptions{Page: 1, PageSize: 2})
	require.NoError(t, err)

	assert.Nil(t, result.Pagination.Total)
	// A full page means there is probably more.
	assert.True(t, result.Pagination.HasNextPage)
	assert.False(t, result.Pagination.HasPreviousPage)
}

func TestList_NoSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected without a session")
	}))
	defer server.Close()

	accessor := session.NewAccessor(session.NewMemoryStore())
	client := newTestClient(t, server.URL, accessor)
	svc := NewTransactionService(client, accessor, nil, nil, cache.New(time.Minute, false), nil)

	_, err := svc.List(context.Background(), models.PaginationOptions{})
	assert.Equal(t, apperrors.AuthMissingToken, apperrors.CodeOf(err))
}

func TestGet_NotFound(t *testing.T) {
	userID := uuid.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, []models.Transaction{})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newService(t, server, userID, nil)

	_, err := svc.Get(context.Background(), uuid.New())
	assert.Equal(t, apperrors.TransactionNotFound, apperrors.CodeOf(err))
}

type fakeAccounts struct {
	BankAccountServiceInterface
	listCalls int32
}

func (f *fakeAccounts) ListActive(ctx context.Context) ([]models.BankAccount, error) {
	atomic.AddInt32(&f.listCalls, 1)
	return nil, nil
}

func TestCreate_ConvertsAmountAndRefreshesAccounts(t *testing.T) {
	userID := uuid.New()

	var payload map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "return=representation", r.Header.Get("Prefer"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		created := sampleTransaction(userID)
		created.Amount = 12345
		writeJSON(t, w, http.StatusCreated, []models.Transaction{created})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	accounts := &fakeAccounts{}
	svc := newService(t, server, userID, accounts)

	created, err := svc.Create(context.Background(), CreateTransactionInput{
		TransactionType: models.TransactionTypePayment,
		Amount:          decimal.NewFromFloat(123.45),
		Description:     "Supermercado",
		Category:        models.CategoryAlimentacao,
	})
	require.NoError(t, err)

	assert.Equal(t, float64(12345), payload["amount"])
	assert.Equal(t, "BRL", payload["currency"])
	assert.Equal(t, models.TransactionStatusCompleted, payload["status"])
	assert.Equal(t, userID.String(), payload["user_id"])
	assert.NotEmpty(t, payload["processed_at"])
	assert.NotContains(t, payload, "id")
	assert.NotContains(t, payload, "created_at")

	assert.Equal(t, int64(12345), created.Amount)
	assert.Equal(t, int32(1), atomic.LoadInt32(&accounts.listCalls))
}

func TestCreate_RejectsBadInput(t *testing.T) {
	userID := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("invalid input must not reach the backend")
	}))
	defer server.Close()

	svc := newService(t, server, userID, nil)

	tests := []struct {
		name  string
		input CreateTransactionInput
		code  apperrors.ErrorCode
	}{
		{
			name:  "unknown type",
			input: CreateTransactionInput{TransactionType: "loan", Amount: decimal.NewFromInt(10)},
			code:  apperrors.ValidationRequiredField,
		},
		{
			name:  "unknown category",
			input: CreateTransactionInput{TransactionType: "payment", Amount: decimal.NewFromInt(10), Category: "crypto"},
			code:  apperrors.ValidationRequiredField,
		},
		{
			name:  "negative amount",
			input: CreateTransactionInput{TransactionType: "payment", Amount: decimal.NewFromInt(-10)},
			code:  apperrors.TransactionInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.input)
			assert.Equal(t, tt.code, apperrors.CodeOf(err))
		})
	}
}

func TestUpdate_RejectsInvalidTransition(t *testing.T) {
	userID := uuid.New()
	existing := sampleTransaction(userID)

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method, "a completed row must never be patched")
		writeJSON(t, w, http.StatusOK, []models.Transaction{existing})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newService(t, server, userID, nil)

	pending := models.TransactionStatusPending
	_, err := svc.Update(context.Background(), existing.ID, UpdateTransactionInput{Status: &pending})
	assert.Equal(t, apperrors.ValidationOutOfRange, apperrors.CodeOf(err))
}

func TestUpdate_PatchesFields(t *testing.T) {
	userID := uuid.New()
	existing := sampleTransaction(userID)
	existing.Status = models.TransactionStatusPending

	var patch map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(t, w, http.StatusOK, []models.Transaction{existing})
		case http.MethodPatch:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
			updated := existing
			updated.Status = models.TransactionStatusCompleted
			updated.Description = "Mercado mensal"
			writeJSON(t, w, http.StatusOK, []models.Transaction{updated})
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newService(t, server, userID, nil)

	description := "Mercado mensal"
	completed := models.TransactionStatusCompleted
	updated, err := svc.Update(context.Background(), existing.ID, UpdateTransactionInput{
		Description: &description,
		Status:      &completed,
	})
	require.NoError(t, err)

	assert.Equal(t, "Mercado mensal", patch["description"])
	assert.Equal(t, models.TransactionStatusCompleted, patch["status"])
	assert.NotEmpty(t, patch["processed_at"])
	assert.Equal(t, models.TransactionStatusCompleted, updated.Status)
}

func TestDelete_ForeignRowLooksMissing(t *testing.T) {
	userID := uuid.New()

	var deleteCalled bool
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deleteCalled = true
			w.WriteHeader(http.StatusNoContent)
			return
		}
		// Ownership requery finds nothing for this user.
		writeJSON(t, w, http.StatusOK, []models.Transaction{})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newService(t, server, userID, nil)

	_, err := svc.Delete(context.Background(), uuid.New())
	assert.Equal(t, apperrors.TransactionNotFound, apperrors.CodeOf(err))
	assert.False(t, deleteCalled)
}

func TestDelete_ReceiptCleanupFailureIsWarning(t *testing.T) {
	userID := uuid.New()
	existing := sampleTransaction(userID)

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			row := existing
			row.ReceiptURL = fmt.Sprintf("%s/storage/v1/object/public/byte-bank/receipts/%s/%s/1.pdf",
				"http://localhost:54321", userID, existing.ID)
			writeJSON(t, w, http.StatusOK, []models.Transaction{row})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	// The receipt URL points at a different host, so cleanup fails while
	// the delete itself succeeds.
	svc := newService(t, server, userID, nil)

	warnings, err := svc.Delete(context.Background(), existing.ID)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, apperrors.StorageInvalidURL, warnings[0].Code)
}

func TestAttachReceipt_UploadFailureIsWarning(t *testing.T) {
	userID := uuid.New()
	existing := sampleTransaction(userID)

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method, "a failed upload must not patch the row")
		writeJSON(t, w, http.StatusOK, []models.Transaction{existing})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newService(t, server, userID, nil)

	tx, warnings, err := svc.AttachReceipt(context.Background(), existing.ID,
		"huge.pdf", "application/pdf", strings.NewReader("x"), 6*1024*1024)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, apperrors.StorageFileTooLarge, warnings[0].Code)
	assert.Empty(t, tx.ReceiptURL)
}

func TestAttachReceipt_UploadsAndPatches(t *testing.T) {
	userID := uuid.New()
	existing := sampleTransaction(userID)

	var patch map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(t, w, http.StatusOK, []models.Transaction{existing})
		case http.MethodPatch:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
			updated := existing
			updated.ReceiptURL = patch["receipt_url"].(string)
			writeJSON(t, w, http.StatusOK, []models.Transaction{updated})
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})
	mux.HandleFunc("/storage/v1/object/byte-bank/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		writeJSON(t, w, http.StatusOK, map[string]string{"Key": "ok"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newService(t, server, userID, nil)

	tx, warnings, err := svc.AttachReceipt(context.Background(), existing.ID,
		"nota.pdf", "application/pdf", strings.NewReader("receipt body"), 12)
	require.NoError(t, err)
	assert.True(t, warnings.Empty())

	url, ok := patch["receipt_url"].(string)
	require.True(t, ok)
	assert.Contains(t, url, "/storage/v1/object/public/byte-bank/receipts/")
	assert.Contains(t, url, existing.ID.String())
	assert.Equal(t, url, tx.ReceiptURL)
}

func TestReprocessPending(t *testing.T) {
	userID := uuid.New()

	first := sampleTransaction(userID)
	first.Status = models.TransactionStatusPending
	second := sampleTransaction(userID)
	second.Status = models.TransactionStatusPending

	var processCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "status=eq.pending")
		writeJSON(t, w, http.StatusOK, []models.Transaction{first, second})
	})
	mux.HandleFunc("/functions/v1/process-transaction", func(w http.ResponseWriter, r *http.Request) {
		var req functions.ProcessRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		atomic.AddInt32(&processCalls, 1)

		if req.TransactionID == second.ID {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(t, w, http.StatusOK, functions.ProcessResult{Success: true, Status: "completed"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newService(t, server, userID, nil)

	processed, warnings, err := svc.ReprocessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Len(t, warnings, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&processCalls))
}

func TestReprocessPending_NothingPending(t *testing.T) {
	userID := uuid.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, []models.Transaction{})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newService(t, server, userID, nil)

	processed, warnings, err := svc.ReprocessPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.True(t, warnings.Empty())
}
