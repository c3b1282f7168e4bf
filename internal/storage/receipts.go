// Package storage talks to the hosted backend's object storage, where
// transaction receipts live.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "bytebank/internal/errors"
)

// MaxFileSize caps receipt uploads at 5 MB.
const MaxFileSize = 5 * 1024 * 1024

var allowedContentTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/jpg":       {},
	"image/png":       {},
	"application/pdf": {},
}

// TokenSource supplies the bearer token attached to storage requests.
type TokenSource interface {
	Token() (string, error)
}

// ObjectInfo describes a stored receipt file.
type ObjectInfo struct {
	Name      string    `json:"name"`
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ReceiptStore uploads, lists and removes receipt files in a bucket.
type ReceiptStore struct {
	baseURL string
	anonKey string
	bucket  string
	tokens  TokenSource
	http    *http.Client
	now     func() time.Time
}

// NewReceiptStore creates a store over the given bucket.
func NewReceiptStore(baseURL, anonKey, bucket string, tokens TokenSource, httpClient *http.Client) *ReceiptStore {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ReceiptStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		bucket:  bucket,
		tokens:  tokens,
		http:    httpClient,
		now:     time.Now,
	}
}

// ValidateFile checks size and content type ahead of an upload.
func ValidateFile(size int64, contentType string) error {
	if size > MaxFileSize {
		return apperrors.New(apperrors.StorageFileTooLarge)
	}
	if _, ok := allowedContentTypes[contentType]; !ok {
		return apperrors.New(apperrors.StorageFileType)
	}
	return nil
}

// Upload stores a receipt under receipts/{user}/{transaction}/ and returns
// its public URL.
func (s *ReceiptStore) Upload(ctx context.Context, userID, transactionID uuid.UUID, filename, contentType string, content io.Reader, size int64) (string, error) {
	if err := ValidateFile(size, contentType); err != nil {
		return "", err
	}

	token, err := s.tokens.Token()
	if err != nil {
		return "", err
	}

	objectPath := fmt.Sprintf("receipts/%s/%s/%d%s",
		userID, transactionID, s.now().UnixMilli(), path.Ext(filename))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", path.Base(filename))
	if err != nil {
		return "", apperrors.Wrap(apperrors.StorageUploadFailed, err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", apperrors.Wrap(apperrors.StorageUploadFailed, err)
	}
	if err := writer.Close(); err != nil {
		return "", apperrors.Wrap(apperrors.StorageUploadFailed, err)
	}

	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &body)
	if err != nil {
		return "", apperrors.Wrap(apperrors.StorageUploadFailed, err)
	}
	req.Header.Set("apikey", s.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.http.Do(req)
	if err != nil {
		return "", apperrors.Wrap(apperrors.StorageUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(resp.Body)
		return "", apperrors.Wrap(apperrors.StorageUploadFailed,
			fmt.Errorf("upload returned %s: %s", resp.Status, string(detail)))
	}

	return s.PublicURL(objectPath), nil
}

// PublicURL derives the public URL for an object path in the bucket.
func (s *ReceiptStore) PublicURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, objectPath)
}

// Delete removes the receipt identified by its public URL.
func (s *ReceiptStore) Delete(ctx context.Context, receiptURL string) error {
	objectPath, err := s.objectPathFromURL(receiptURL)
	if err != nil {
		return err
	}

	token, err := s.tokens.Token()
	if err != nil {
		return err
	}

	deleteURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, deleteURL, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.StorageDeleteFailed, err)
	}
	req.Header.Set("apikey", s.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.http.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.StorageDeleteFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(resp.Body)
		return apperrors.Wrap(apperrors.StorageDeleteFailed,
			fmt.Errorf("delete returned %s: %s", resp.Status, string(detail)))
	}
	return nil
}

// List returns the stored receipts for a user, newest first.
func (s *ReceiptStore) List(ctx context.Context, userID uuid.UUID) ([]ObjectInfo, error) {
	token, err := s.tokens.Token()
	if err != nil {
		return nil, err
	}

	listURL := fmt.Sprintf("%s/storage/v1/object/list/%s?prefix=%s&limit=100&offset=0&sortBy=created_at&order=desc",
		s.baseURL, s.bucket, url.QueryEscape("receipts/"+userID.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.NetworkRequestFailed, err)
	}
	req.Header.Set("apikey", s.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.NetworkRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(resp.Body)
		return nil, apperrors.Wrap(apperrors.NetworkBadStatus,
			fmt.Errorf("list returned %s: %s", resp.Status, string(detail)))
	}

	var objects []ObjectInfo
	if err := json.NewDecoder(resp.Body).Decode(&objects); err != nil {
		return nil, apperrors.Wrap(apperrors.NetworkBadStatus, err)
	}
	return objects, nil
}

func (s *ReceiptStore) objectPathFromURL(receiptURL string) (string, error) {
	marker := fmt.Sprintf("/storage/v1/object/public/%s/", s.bucket)
	idx := strings.Index(receiptURL, marker)
	if idx < 0 {
		return "", apperrors.Newf(apperrors.StorageInvalidURL, "receipt URL %q does not belong to bucket %s", receiptURL, s.bucket)
	}
	return receiptURL[idx+len(marker):], nil
}
