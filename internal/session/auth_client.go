package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "bytebank/internal/errors"
)

// AuthClient drives password sign in and sign up against the hosted
// backend's auth endpoints and persists the resulting session.
type AuthClient struct {
	baseURL string
	anonKey string
	http    *http.Client
	store   Store
}

// NewAuthClient creates an auth client for the backend at baseURL.
func NewAuthClient(baseURL, anonKey string, httpClient *http.Client, store Store) *AuthClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AuthClient{
		baseURL: baseURL,
		anonKey: anonKey,
		http:    httpClient,
		store:   store,
	}
}

type credentials struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

// SignIn exchanges email/password for a session and persists it.
func (c *AuthClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	sess, err := c.postAuth(ctx, "/auth/v1/token?grant_type=password", credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	if err := c.store.Save(sess); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	return sess, nil
}

// SignUp registers a new user. The optional full name travels in the user
// metadata block, matching what the backend's signup endpoint expects.
func (c *AuthClient) SignUp(ctx context.Context, email, password, fullName string) (*Session, error) {
	body := credentials{Email: email, Password: password}
	if fullName != "" {
		body.Data = map[string]any{"full_name": fullName}
	}

	sess, err := c.postAuth(ctx, "/auth/v1/signup", body)
	if err != nil {
		return nil, err
	}

	// Some backends require email confirmation and return no token yet;
	// only persist sessions that can actually authenticate requests.
	if sess.AccessToken != "" {
		if err := c.store.Save(sess); err != nil {
			return nil, fmt.Errorf("failed to persist session: %w", err)
		}
	}
	return sess, nil
}

// SignOut drops the persisted session.
func (c *AuthClient) SignOut() error {
	return c.store.Clear()
}

func (c *AuthClient) postAuth(ctx context.Context, path string, payload any) (*Session, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.NetworkRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.NetworkRequestFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Wrap(apperrors.AuthSignInFailed,
			fmt.Errorf("auth request returned %s: %s", resp.Status, string(body)))
	}

	var sess Session
	if err := json.Unmarshal(body, &sess); err != nil {
		return nil, apperrors.Wrap(apperrors.AuthSignInFailed, err)
	}
	return &sess, nil
}
