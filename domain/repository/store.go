package repository

import (
	"context"
	"time"

	"storycast/domain/model"
)

// IStoryStore is the document-store view of stories used by the scheduling
// engine. Implementations own the documents; the engine only patches them.
type IStoryStore interface {
	// GetDueScheduledStories returns stories with status=scheduled whose
	// scheduled instant has passed.
	GetDueScheduledStories(ctx context.Context) ([]*model.Story, error)
	// GetStory returns (nil, nil) when the story does not exist.
	GetStory(ctx context.Context, id string) (*model.Story, error)
	// GetStoriesAwaitingVideo returns scheduled video stories with pending
	// generation whose scheduled instant falls at or before until, ordered
	// ascending by scheduled instant.
	GetStoriesAwaitingVideo(ctx context.Context, until time.Time) ([]*model.Story, error)
	UpdateStory(ctx context.Context, id string, patch *model.StoryPatch) error
	// AddPublishedPlatform records a successful platform atomically
	// (set-union semantics, safe under concurrent dispatch).
	AddPublishedPlatform(ctx context.Context, id string, platform model.Platform) error
}

type IAssignmentStore interface {
	GetAssignments(ctx context.Context, storyID string) ([]*model.Assignment, error)
	UpdateAssignment(ctx context.Context, storyID, accountID string, patch *model.AssignmentPatch) error
}

type IAccountStore interface {
	// GetAccount returns (nil, nil) when the account does not exist.
	GetAccount(ctx context.Context, id string) (*model.LinkedAccount, error)
	ListAccounts(ctx context.Context) ([]*model.LinkedAccount, error)
	UpdateAccount(ctx context.Context, id string, patch *model.AccountPatch) error
	// RecordPublish increments quota counters and last-published-at in one
	// atomic statement at the store; callers must never write counters back
	// from in-memory copies.
	RecordPublish(ctx context.Context, id string, at time.Time) error
	// ResetExpiredQuotas zeroes counters whose reset instant has passed.
	ResetExpiredQuotas(ctx context.Context, now time.Time) error
}
