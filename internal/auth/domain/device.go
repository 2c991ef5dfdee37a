package domain

import "time"

// Device is a registered mobile app installation that can receive push
// notifications and complete Face ID challenges.
type Device struct {
	ID         string
	UserID     string
	PushToken  string
	Platform   string // "ios", "android"
	Name       string
	CreatedAt  time.Time
	LastSeenAt time.Time
}
