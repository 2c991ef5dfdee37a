package authsdk

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrSecondFactorRequired is returned by Authenticate when the account has a
// second factor. The LoginResponse still carries the TempToken.
var ErrSecondFactorRequired = errors.New("second factor required")

// SDKClient is a client for the lockbox authentication service.
// It provides access to unauthenticated operations and can create authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new auth service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Authenticate performs the password step and returns a Session when no
// second factor is needed. Otherwise it returns the challenge together with
// ErrSecondFactorRequired.
func (c *SDKClient) Authenticate(ctx context.Context, email, password string) (*Session, *LoginResponse, error) {
	resp, err := c.Login(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}
	if resp.TwoFactorRequired {
		return nil, resp, ErrSecondFactorRequired
	}
	return c.NewSession(resp.AccessToken), resp, nil
}

// NewSession creates an authenticated session from a final credential, for
// example the one delivered over the realtime channel after Face ID.
func (c *SDKClient) NewSession(accessToken string) *Session {
	return &Session{client: c, accessToken: accessToken}
}
