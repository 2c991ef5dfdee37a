package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
	full   bool
}

func (r *recorder) Deliver(ev domain.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return false
	}
	r.events = append(r.events, ev)
	return true
}

func (r *recorder) received() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

func TestHubFanOut(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(nil, slogx.Discard())

	a, b, other := &recorder{}, &recorder{}, &recorder{}
	hub.Join(domain.RoomName("r1"), a)
	hub.Join(domain.RoomName("r1"), b)
	hub.Join(domain.RoomName("r1"), b)
	hub.Join(domain.RoomName("r2"), other)
	require.Equal(t, 2, hub.Members(domain.RoomName("r1")))

	require.NoError(t, hub.PublishStatus(ctx, "r1", domain.StatusNotificationsSent, "sent"))

	require.Len(t, a.received(), 1)
	require.Len(t, b.received(), 1)
	require.Empty(t, other.received())

	ev := a.received()[0]
	require.Equal(t, domain.EventFaceAuthStatus, ev.Type)
	require.Equal(t, "face_auth_r1", ev.Room)

	var payload domain.FaceAuthStatusPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	require.Equal(t, domain.FaceAuthStatusPayload{Status: "notifications_sent", Message: "sent"}, payload)
}

func TestHubNoRetroactiveDelivery(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(nil, slogx.Discard())

	require.NoError(t, hub.PublishStatus(ctx, "r1", domain.StatusNotificationsSent, ""))

	late := &recorder{}
	hub.Join(domain.RoomName("r1"), late)
	require.Empty(t, late.received())

	require.NoError(t, hub.PublishCompletion(ctx, "r1", domain.FaceAuthCompletePayload{Success: false, Error: "nope"}))
	require.Len(t, late.received(), 1)
	require.Equal(t, domain.EventFaceAuthComplete, late.received()[0].Type)
}

func TestHubLeave(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(nil, slogx.Discard())
	sub := &recorder{}

	hub.Join(domain.RoomName("r1"), sub)
	hub.Join(domain.RoomName("r2"), sub)

	hub.Leave(domain.RoomName("r1"), sub)
	require.Zero(t, hub.Members(domain.RoomName("r1")))
	require.NoError(t, hub.PublishStatus(ctx, "r1", domain.StatusVerifying, ""))
	require.Empty(t, sub.received())

	hub.LeaveAll(sub)
	require.Zero(t, hub.Members(domain.RoomName("r2")))
	require.NoError(t, hub.PublishStatus(ctx, "r2", domain.StatusVerifying, ""))
	require.Empty(t, sub.received())

	hub.Leave(domain.RoomName("never-joined"), sub)
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub(nil, slogx.Discard())
	slow := &recorder{full: true}
	fast := &recorder{}
	hub.Join("room", slow)
	hub.Join("room", fast)

	delivered := hub.Broadcast(domain.Event{Type: "x", Room: "room"})
	require.Equal(t, 1, delivered)
	require.Len(t, fast.received(), 1)
}

func TestHubConcurrentUse(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(nil, slogx.Discard())

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := &recorder{}
			hub.Join(domain.RoomName("busy"), sub)
			_ = hub.PublishStatus(ctx, "busy", domain.StatusVerifying, "")
			hub.LeaveAll(sub)
		}()
	}
	wg.Wait()
	require.Zero(t, hub.Members(domain.RoomName("busy")))
}
