// Package realtime is the room-based notification channel a web client uses
// to await the outcome of a Face ID request confirmed on a phone.
package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
)

// Subscriber receives room events. Deliver must not block; returning false
// means the event was dropped.
type Subscriber interface {
	Deliver(ev domain.Event) bool
}

// Broker carries events between instances. Every instance, including the
// publisher, hands received events to its own Hub.Broadcast.
type Broker interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// Hub tracks room membership on this instance and fans events out to the
// members. Delivery is at most once and nothing is retained for late joiners.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Subscriber]struct{}

	broker Broker
	logger *slog.Logger
}

// NewHub returns a hub. With a nil broker events only reach local members.
func NewHub(broker Broker, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[string]map[Subscriber]struct{}),
		broker: broker,
		logger: logger,
	}
}

// Join adds sub to room. Joining twice is a no-op.
func (h *Hub) Join(room string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[Subscriber]struct{})
		h.rooms[room] = members
	}
	members[sub] = struct{}{}
}

// Leave removes sub from room. Future events for the room are not delivered
// to it; the underlying request is unaffected.
func (h *Hub) Leave(room string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(room, sub)
}

// LeaveAll removes sub from every room, e.g. when its connection closes.
func (h *Hub) LeaveAll(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.rooms {
		h.removeLocked(room, sub)
	}
}

func (h *Hub) removeLocked(room string, sub Subscriber) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Members returns the number of local members of room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast delivers ev to the local members of its room and returns how many
// accepted it.
func (h *Hub) Broadcast(ev domain.Event) int {
	h.mu.RLock()
	members := make([]Subscriber, 0, len(h.rooms[ev.Room]))
	for sub := range h.rooms[ev.Room] {
		members = append(members, sub)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, sub := range members {
		if sub.Deliver(ev) {
			delivered++
			continue
		}
		h.logger.Warn("realtime event dropped", "room", ev.Room, "type", ev.Type)
	}
	return delivered
}

// PublishStatus sends a face_auth_status event to the request's room.
func (h *Hub) PublishStatus(ctx context.Context, requestID, status, message string) error {
	ev, err := domain.NewEvent(domain.EventFaceAuthStatus, domain.RoomName(requestID), domain.FaceAuthStatusPayload{
		Status:  status,
		Message: message,
	})
	if err != nil {
		return err
	}
	return h.publish(ctx, ev)
}

// PublishCompletion sends the terminal face_auth_complete event.
func (h *Hub) PublishCompletion(ctx context.Context, requestID string, result domain.FaceAuthCompletePayload) error {
	ev, err := domain.NewEvent(domain.EventFaceAuthComplete, domain.RoomName(requestID), result)
	if err != nil {
		return err
	}
	return h.publish(ctx, ev)
}

func (h *Hub) publish(ctx context.Context, ev domain.Event) error {
	if h.broker == nil {
		h.Broadcast(ev)
		return nil
	}
	return h.broker.Publish(ctx, ev)
}
