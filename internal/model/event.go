package model

import "time"

type EventType string

const (
	EventPostCreated         EventType = "post.created"
	EventPostLiked           EventType = "post.liked"
	EventCommentCreated      EventType = "comment.created"
	EventUserFollowed        EventType = "user.followed"
	EventGenerationCompleted EventType = "generation.completed"
	EventGenerationFailed    EventType = "generation.failed"
	EventTipCompleted        EventType = "tip.completed"
	EventCreditsPurchased    EventType = "credits.purchased"
	EventWithdrawalCompleted EventType = "withdrawal.completed"
)

func (t EventType) String() string { return string(t) }

// Event is the payload written to the outbox and published to Kafka.
// OwnerID is the user whose content or account the event concerns.
type Event struct {
	ID         string            `json:"id"` // ULID
	Type       EventType         `json:"type"`
	ActorID    int64             `json:"actor_id"`
	OwnerID    int64             `json:"owner_id"`
	SubjectID  string            `json:"subject_id"`
	Attrs      map[string]string `json:"attrs,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// EventCount is one row of the per-type analytics rollup.
type EventCount struct {
	Type  string `db:"type" json:"type"`
	Count uint64 `db:"count" json:"count"`
}
