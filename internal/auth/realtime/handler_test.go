package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, origins []string) (*Channel, string) {
	t.Helper()
	ch := &Channel{
		Hub:      NewHub(nil, slogx.Discard()),
		Verifier: stubVerifier{"alice-token": "alice"},
		Requests: stubRequests{"req-1": "alice"},
	}
	srv := httptest.NewServer(NewHandler(ch, origins))
	t.Cleanup(srv.Close)
	return ch, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame map[string]json.RawMessage
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func frameType(t *testing.T, frame map[string]json.RawMessage) string {
	t.Helper()
	var typ string
	require.NoError(t, json.Unmarshal(frame["type"], &typ))
	return typ
}

func TestHandlerJoinViaQueryAndReceive(t *testing.T) {
	ch, url := newTestServer(t, nil)
	conn := dial(t, url+"?requestId=req-1&token=alice-token", nil)

	require.Equal(t, ReplyJoined, frameType(t, readFrame(t, conn)))
	require.Equal(t, 1, ch.Hub.Members(domain.RoomName("req-1")))

	require.NoError(t, ch.Hub.PublishCompletion(context.Background(), "req-1", domain.FaceAuthCompletePayload{
		Success: true,
		Data:    &domain.FaceAuthCompleteData{AccessToken: "final", User: domain.Profile{ID: "alice"}},
	}))

	frame := readFrame(t, conn)
	require.Equal(t, domain.EventFaceAuthComplete, frameType(t, frame))

	var payload domain.FaceAuthCompletePayload
	require.NoError(t, json.Unmarshal(frame["payload"], &payload))
	require.True(t, payload.Success)
	require.Equal(t, "final", payload.Data.AccessToken)
}

func TestHandlerMessages(t *testing.T) {
	ch, url := newTestServer(t, nil)
	conn := dial(t, url, nil)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionJoin, RequestID: "req-1", Token: "forged"}))
	frame := readFrame(t, conn)
	require.Equal(t, ReplyError, frameType(t, frame))
	require.JSONEq(t, `"Unauthorized"`, string(frame["message"]))

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionJoin, RequestID: "req-1"}))
	require.Equal(t, ReplyJoined, frameType(t, readFrame(t, conn)))

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionLeave, RequestID: "req-1"}))
	require.Equal(t, ReplyLeft, frameType(t, readFrame(t, conn)))
	require.Zero(t, ch.Hub.Members(domain.RoomName("req-1")))

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "dance"}))
	require.Equal(t, ReplyError, frameType(t, readFrame(t, conn)))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.Equal(t, ReplyError, frameType(t, readFrame(t, conn)))
}

func TestHandlerDisconnectLeavesRooms(t *testing.T) {
	ch, url := newTestServer(t, nil)
	conn := dial(t, url+"?requestId=req-1", nil)
	require.Equal(t, ReplyJoined, frameType(t, readFrame(t, conn)))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return ch.Hub.Members(domain.RoomName("req-1")) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHandlerOrigins(t *testing.T) {
	_, url := newTestServer(t, []string{"https://app.lockbox.test"})

	conn := dial(t, url, http.Header{"Origin": {"https://app.lockbox.test"}})
	require.NotNil(t, conn)

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.test"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}
