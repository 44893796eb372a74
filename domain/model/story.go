package model

import "time"

type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
)

// AllPlatforms lists the supported platform families in dispatch order.
var AllPlatforms = []Platform{PlatformFacebook, PlatformInstagram, PlatformTikTok}

func (p Platform) Valid() bool {
	switch p {
	case PlatformFacebook, PlatformInstagram, PlatformTikTok:
		return true
	}
	return false
}

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

type StoryStatus string

const (
	StoryStatusDraft     StoryStatus = "draft"
	StoryStatusScheduled StoryStatus = "scheduled"
	StoryStatusPublished StoryStatus = "published"
	StoryStatusFailed    StoryStatus = "failed"
)

type VideoGenerationStatus string

const (
	VideoGenPending    VideoGenerationStatus = "pending"
	VideoGenGenerating VideoGenerationStatus = "generating"
	VideoGenGenerated  VideoGenerationStatus = "generated"
	VideoGenError      VideoGenerationStatus = "error"
)

// Story is one unit of content fanned out across platforms at a scheduled
// instant. ScheduledAt is always stored in UTC.
type Story struct {
	ID                    string                `json:"id" bson:"_id"`
	Content               string                `json:"content" bson:"content"`
	Platforms             []Platform            `json:"platforms" bson:"platforms"`
	ScheduledAt           time.Time             `json:"scheduled_at" bson:"scheduled_at"`
	MediaURL              string                `json:"media_url" bson:"media_url"`
	MediaType             MediaType             `json:"media_type" bson:"media_type"`
	MediaKey              string                `json:"media_key,omitempty" bson:"media_key,omitempty"`
	MediaSize             int64                 `json:"media_size,omitempty" bson:"media_size,omitempty"`
	MediaContentType      string                `json:"media_content_type,omitempty" bson:"media_content_type,omitempty"`
	Status                StoryStatus           `json:"status" bson:"status"`
	VideoGenerationStatus VideoGenerationStatus `json:"video_generation_status,omitempty" bson:"video_generation_status,omitempty"`
	PublishedPlatforms    []Platform            `json:"published_platforms" bson:"published_platforms"`
	CreatedAt             time.Time             `json:"created_at" bson:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at" bson:"updated_at"`
	PublishedAt           *time.Time            `json:"published_at,omitempty" bson:"published_at,omitempty"`
}

func (s *Story) HasPlatform(p Platform) bool {
	for _, sp := range s.Platforms {
		if sp == p {
			return true
		}
	}
	return false
}

func (s *Story) HasPublishedPlatform(p Platform) bool {
	for _, sp := range s.PublishedPlatforms {
		if sp == p {
			return true
		}
	}
	return false
}

// StoryPatch is a partial update applied by the persistence layer. Nil fields
// are left untouched.
type StoryPatch struct {
	Status                *StoryStatus
	VideoGenerationStatus *VideoGenerationStatus
	MediaURL              *string
	MediaKey              *string
	MediaSize             *int64
	MediaContentType      *string
	PublishedAt           *time.Time
}
