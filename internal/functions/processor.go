// Package functions calls the backend's serverless functions. Transaction
// settlement is delegated entirely to the hosted process-transaction
// function; this client only shapes the request and reads the verdict.
package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "bytebank/internal/errors"
)

const (
	ActionComplete = "complete"
	ActionFail     = "fail"
)

// TokenSource supplies the bearer token attached to function calls.
type TokenSource interface {
	Token() (string, error)
}

// ProcessRequest is the payload of a process-transaction invocation.
type ProcessRequest struct {
	TransactionID uuid.UUID `json:"transactionId"`
	Action        string    `json:"action"`
	Reason        string    `json:"reason,omitempty"`
}

// ProcessResult is the function's verdict on a transaction.
type ProcessResult struct {
	Success     bool   `json:"success"`
	Status      string `json:"status"`
	Message     string `json:"message"`
	ProcessedAt string `json:"processedAt"`
}

// Processor invokes the process-transaction function.
type Processor struct {
	baseURL string
	anonKey string
	tokens  TokenSource
	http    *http.Client
}

// NewProcessor creates a processor for the backend at baseURL.
func NewProcessor(baseURL, anonKey string, tokens TokenSource, httpClient *http.Client) *Processor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Processor{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		tokens:  tokens,
		http:    httpClient,
	}
}

// Process asks the backend to settle a pending transaction. An empty action
// defaults to completing it.
func (p *Processor) Process(ctx context.Context, transactionID uuid.UUID, action, reason string) (*ProcessResult, error) {
	if action == "" {
		action = ActionComplete
	}
	if action != ActionComplete && action != ActionFail {
		return nil, apperrors.Newf(apperrors.ValidationInvalidFormat, "unknown processing action %q", action)
	}

	token, err := p.tokens.Token()
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(ProcessRequest{
		TransactionID: transactionID,
		Action:        action,
		Reason:        reason,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode processing request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/functions/v1/process-transaction", bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.TransactionProcessFailed, err)
	}
	req.Header.Set("apikey", p.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.TransactionProcessFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.TransactionProcessFailed, err)
	}

	if resp.StatusCode >= 400 {
		return nil, apperrors.Wrap(apperrors.TransactionProcessFailed,
			fmt.Errorf("function returned %s: %s", resp.Status, string(body)))
	}

	var result ProcessResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apperrors.Wrap(apperrors.TransactionProcessFailed, err)
	}
	return &result, nil
}
