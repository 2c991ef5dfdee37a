package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Register creates a user account.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*UserProfile, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/register", "", req)
	if err != nil {
		return nil, err
	}

	var out RegisterResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Login performs the password step. Check TwoFactorRequired on the result.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/login", "", LoginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	var out LoginResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyTOTPLogin exchanges the intermediate credential and a TOTP code for
// a final credential.
func (c *SDKClient) VerifyTOTPLogin(ctx context.Context, tempToken, code string) (*LoginResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/2fa/totp/login", "", TOTPLoginRequest{
		TempToken: tempToken,
		Code:      code,
	})
	if err != nil {
		return nil, err
	}

	var out LoginResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartFaceLogin asks the service to push a Face ID request to the user's
// devices. Follow up with WaitForFaceLogin on the returned request id.
func (c *SDKClient) StartFaceLogin(ctx context.Context, req FaceLoginRequest) (*FaceLoginResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/2fa/face/login/web", "", req)
	if err != nil {
		return nil, err
	}

	var out FaceLoginResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteFaceLogin is the mobile app's call. It only reports whether the
// face matched; the credential goes to the waiting web client.
func (c *SDKClient) CompleteFaceLogin(ctx context.Context, requestID string, image []byte) (*StatusResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/2fa/face/complete", "", FaceCompleteRequest{
		RequestID: requestID,
		Image:     image,
	})
	if err != nil {
		return nil, err
	}

	var out StatusResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// FaceRequestStatus polls a Face ID request started with tempToken.
func (c *SDKClient) FaceRequestStatus(ctx context.Context, tempToken, requestID string) (*FaceRequestStatusResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/auth/2fa/face/requests/"+url.PathEscape(requestID), tempToken, nil)
	if err != nil {
		return nil, err
	}

	var out FaceRequestStatusResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes accessToken.
func (c *SDKClient) Logout(ctx context.Context, accessToken string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/logout", accessToken, nil)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}
