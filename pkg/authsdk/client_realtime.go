package authsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// Realtime frame types sent by the service.
const (
	FrameJoined           = "joined"
	FrameError            = "error"
	FrameFaceAuthStatus   = "face_auth_status"
	FrameFaceAuthComplete = "face_auth_complete"
)

// RealtimeFrame is one message read from the realtime socket. Acknowledgements
// carry Message, room events carry Payload.
type RealtimeFrame struct {
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	Message string          `json:"message,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// FaceAuthStatus is the payload of a face_auth_status frame.
type FaceAuthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type faceAuthComplete struct {
	Success bool `json:"success"`
	Data    *struct {
		AccessToken string      `json:"access_token"`
		User        UserProfile `json:"user"`
	} `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// WaitForFaceLogin joins the realtime room of requestID and blocks until the
// mobile app completes it. onStatus, when set, sees intermediate status
// updates. A failed verification is returned as *APIError.
//
// Cancel ctx to stop waiting; the request itself stays open until it expires.
func (c *SDKClient) WaitForFaceLogin(
	ctx context.Context,
	tempToken, requestID string,
	onStatus func(FaceAuthStatus),
) (*LoginResponse, error) {
	wsURL, err := c.realtimeURL(requestID, tempToken)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to open realtime channel: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to open realtime channel: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var frame RealtimeFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("realtime channel closed: %w", err)
		}

		switch frame.Type {
		case FrameError:
			return nil, NewAPIError(http.StatusUnauthorized, frame.Message)
		case FrameFaceAuthStatus:
			if onStatus == nil {
				continue
			}
			var st FaceAuthStatus
			if err := json.Unmarshal(frame.Payload, &st); err == nil {
				onStatus(st)
			}
		case FrameFaceAuthComplete:
			var done faceAuthComplete
			if err := json.Unmarshal(frame.Payload, &done); err != nil {
				return nil, fmt.Errorf("failed to decode completion: %w", err)
			}
			if !done.Success || done.Data == nil {
				return nil, NewAPIError(http.StatusUnauthorized, done.Error)
			}
			user := done.Data.User
			return &LoginResponse{
				Success:     true,
				AccessToken: done.Data.AccessToken,
				User:        &user,
			}, nil
		}
	}
}

func (c *SDKClient) realtimeURL(requestID, token string) (string, error) {
	u, err := url.Parse(c.url("/realtime"))
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"requestId": {requestID}, "token": {token}}.Encode()
	return u.String(), nil
}
