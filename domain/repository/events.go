package repository

import (
	"context"

	"storycast/domain/model"
)

// IEventPublisher fans out status transitions; delivery is best-effort and
// failures must never affect dispatch outcomes.
type IEventPublisher interface {
	PublishEvent(ctx context.Context, event model.StoryEvent) error
}
