// Package event provides the shared LiveEvent model for LiveTrack Companion.
// This package is used by normalize, session, trigger, ingest, api, and store.
package event

import "time"

// Kind identifies the variant of a LiveEvent.
type Kind string

// Event kind constants.
const (
	KindComment          Kind = "comment"
	KindGift             Kind = "gift"
	KindLike             Kind = "like"
	KindFollow           Kind = "follow"
	KindShare            Kind = "share"
	KindViewerUpdate     Kind = "viewer_update"
	KindConnectionStatus Kind = "connection_status"
)

// LiveEvent is the normalized event shape produced by the normalizer.
// It is a tagged variant: Kind selects which payload field is populated.
// Events are immutable once constructed and discarded after consumption.
type LiveEvent struct {
	Kind     Kind      `json:"kind"`
	Ts       time.Time `json:"ts"`
	UserID   string    `json:"user_id,omitempty"`
	Username string    `json:"username,omitempty"`
	Nickname string    `json:"nickname,omitempty"`

	Comment *CommentPayload    `json:"comment,omitempty"`
	Gift    *GiftPayload       `json:"gift,omitempty"`
	Like    *LikePayload       `json:"like,omitempty"`
	Viewers *ViewerPayload     `json:"viewers,omitempty"`
	Status  *ConnectionPayload `json:"status,omitempty"`
}

// CommentPayload carries the text of a chat comment.
type CommentPayload struct {
	Text string `json:"text"`
}

// GiftPayload describes a finished gift send. The normalizer only emits
// gift events whose streak (if any) has completed, so RepeatCount is the
// final number of sends in the combo.
type GiftPayload struct {
	Name         string `json:"name"`
	GiftID       int64  `json:"gift_id"`
	DiamondCount int    `json:"diamond_count"`
	RepeatCount  int    `json:"repeat_count"`
	Streakable   bool   `json:"streakable"`
}

// LikePayload carries a like-count delta, not a running total.
type LikePayload struct {
	Count int `json:"count"`
}

// ViewerPayload carries a room viewer count sample.
type ViewerPayload struct {
	Count int `json:"count"`
}

// ConnectionPayload describes a connection state change.
type ConnectionPayload struct {
	Connected bool   `json:"connected"`
	Reason    string `json:"reason,omitempty"`
	RoomID    string `json:"room_id,omitempty"`
}

// DisplayName returns the best available name for the event's user:
// nickname first, then username, then a placeholder.
func (e *LiveEvent) DisplayName() string {
	if e.Nickname != "" {
		return e.Nickname
	}
	if e.Username != "" {
		return e.Username
	}
	return "Unknown"
}
