// Package faceverify calls the external face verification service.
package faceverify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
)

const (
	DefaultTimeout = 10 * time.Second

	// MaxImageBytes bounds what is forwarded upstream.
	MaxImageBytes = 5 << 20

	maxResponseBytes = 64 << 10
)

var (
	ErrEmptyImage    = errors.New("faceverify: empty image")
	ErrImageTooLarge = errors.New("faceverify: image too large")
)

// StatusError is a non-2xx answer from the verification service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("faceverify: unexpected status %d: %s", e.StatusCode, e.Body)
}

type verifyRequest struct {
	UserID string `json:"userId"`
	Image  string `json:"image"` // base64
}

// Client talks to POST {BaseURL}/verify. Any transport or decoding failure is
// returned as an error and never retried here.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) VerifyFace(ctx context.Context, userID string, image []byte) (domain.FaceMatch, error) {
	if len(image) == 0 {
		return domain.FaceMatch{}, ErrEmptyImage
	}
	if len(image) > MaxImageBytes {
		return domain.FaceMatch{}, ErrImageTooLarge
	}

	body, err := json.Marshal(verifyRequest{
		UserID: userID,
		Image:  base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return domain.FaceMatch{}, fmt.Errorf("faceverify: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return domain.FaceMatch{}, fmt.Errorf("faceverify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return domain.FaceMatch{}, fmt.Errorf("faceverify: send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.FaceMatch{}, fmt.Errorf("faceverify: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.FaceMatch{}, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var match domain.FaceMatch
	if err := json.Unmarshal(raw, &match); err != nil {
		return domain.FaceMatch{}, fmt.Errorf("faceverify: decode response: %w", err)
	}
	return match, nil
}

// Ping reports whether the service answers on GET {BaseURL}/health.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}
