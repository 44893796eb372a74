package model

import "time"

// StoryEvent is published on story/assignment status transitions so the
// dashboard pipeline can react without polling.
type StoryEvent struct {
	Type       string     `json:"type"`
	StoryID    string     `json:"story_id"`
	AccountID  string     `json:"account_id,omitempty"`
	Platform   Platform   `json:"platform,omitempty"`
	Status     string     `json:"status"`
	Message    string     `json:"message,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
	RetryAt    *time.Time `json:"retry_at,omitempty"`
}

const (
	EventAssignmentPublished = "assignment.published"
	EventAssignmentRetry     = "assignment.retry"
	EventAssignmentFailed    = "assignment.failed"
	EventStoryStatus         = "story.status"
)
