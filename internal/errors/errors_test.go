package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := New(AuthMissingToken)
	assert.Equal(t, AuthMissingToken, err.Code)
	assert.Contains(t, err.Error(), "AUTH_001")
	assert.Contains(t, err.Error(), "Authentication token not found")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(NetworkRequestFailed, cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"plain coded error", New(TransactionNotFound), TransactionNotFound},
		{"wrapped coded error", fmt.Errorf("listing: %w", New(TransactionLoadFailed)), TransactionLoadFailed},
		{"uncoded error", stderrors.New("boom"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", Wrap(TransactionNotFound, stderrors.New("row missing")))
	assert.True(t, stderrors.Is(err, New(TransactionNotFound)))
	assert.False(t, stderrors.Is(err, New(AccountNotFound)))
}

func TestIsAuth(t *testing.T) {
	assert.True(t, IsAuth(New(AuthMissingToken)))
	assert.True(t, IsAuth(New(AuthExpiredToken)))
	assert.True(t, IsAuth(fmt.Errorf("wrapped: %w", New(AuthInvalidToken))))
	assert.False(t, IsAuth(New(NetworkRequestFailed)))
	assert.False(t, IsAuth(stderrors.New("plain")))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(NetworkRequestFailed)))
	assert.True(t, Retryable(New(NetworkUnavailable)))
	assert.True(t, Retryable(New(NetworkRateLimited)))

	// Auth failures and business errors are never retried.
	assert.False(t, Retryable(New(AuthMissingToken)))
	assert.False(t, Retryable(New(TransactionNotFound)))
	assert.False(t, Retryable(New(NetworkBadStatus)))
}

func TestWarnings(t *testing.T) {
	var ws Warnings
	assert.True(t, ws.Empty())

	ws.Add(nil)
	assert.True(t, ws.Empty())

	ws.Add(New(StorageUploadFailed))
	ws.Add(stderrors.New("uncoded side failure"))

	assert.Len(t, ws, 2)
	assert.Equal(t, StorageUploadFailed, ws[0].Code)
	assert.Equal(t, NetworkRequestFailed, ws[1].Code)
}

func TestGetErrorMessageUnknownCode(t *testing.T) {
	assert.Equal(t, "An error occurred", GetErrorMessage("NOPE_999"))
	assert.False(t, IsValidErrorCode("NOPE_999"))
	assert.True(t, IsValidErrorCode(StorageFileType))
}
