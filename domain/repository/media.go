package repository

import (
	"context"
	"time"

	"storycast/domain/model"
)

// IObjectStore abstracts the internal media bucket.
type IObjectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	// Head returns object size and content type.
	Head(ctx context.Context, key string) (int64, string, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// RenderResult is the outcome of a video generation job.
type RenderResult struct {
	URL        string
	StorageKey string
	Size       int64
}

// IMediaRenderer is the external video pipeline.
type IMediaRenderer interface {
	Render(ctx context.Context, story *model.Story) (*RenderResult, error)
}
