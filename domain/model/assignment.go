package model

import "time"

type AssignmentStatus string

const (
	AssignmentStatusPending   AssignmentStatus = "pending"
	AssignmentStatusPublished AssignmentStatus = "published"
	AssignmentStatusFailed    AssignmentStatus = "failed"
)

// MaxErrorHistory bounds the per-assignment error log (most recent last).
const MaxErrorHistory = 10

// AssignmentError is one entry of an assignment's bounded error history.
type AssignmentError struct {
	Message    string    `json:"message" bson:"message"`
	OccurredAt time.Time `json:"occurred_at" bson:"occurred_at"`
}

// Assignment joins a story to one linked account. Its status is monotonic:
// once published it is never reverted; failed assignments may be retried only
// while still pending and under the retry ceiling.
type Assignment struct {
	StoryID      string            `json:"story_id" bson:"story_id"`
	AccountID    string            `json:"account_id" bson:"account_id"`
	Status       AssignmentStatus  `json:"status" bson:"status"`
	AssignedAt   time.Time         `json:"assigned_at" bson:"assigned_at"`
	PublishedAt  *time.Time        `json:"published_at,omitempty" bson:"published_at,omitempty"`
	LastError    *string           `json:"last_error,omitempty" bson:"last_error,omitempty"`
	RetryCount   int               `json:"retry_count" bson:"retry_count"`
	ErrorHistory []AssignmentError `json:"error_history,omitempty" bson:"error_history,omitempty"`
	NextRetryAt  *time.Time        `json:"next_retry_at,omitempty" bson:"next_retry_at,omitempty"`
	ExternalRef  *string           `json:"external_ref,omitempty" bson:"external_ref,omitempty"`
}

// AssignmentPatch is a partial update for one assignment. AppendError is
// pushed onto the bounded history; IncRetryCount is an atomic increment at the
// store.
type AssignmentPatch struct {
	Status         *AssignmentStatus
	PublishedAt    *time.Time
	LastError      *string
	IncRetryCount  bool
	AppendError    *AssignmentError
	NextRetryAt    *time.Time
	ClearNextRetry bool
	ExternalRef    *string
}
