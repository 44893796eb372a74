package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"storycast/domain/model"
	"storycast/domain/repository"
	"storycast/infrastructure/logger"
)

// ErrMediaObjectMissing means the backing object was deleted from the store;
// the only recovery is re-generating the asset.
var ErrMediaObjectMissing = errors.New("media object missing from store: re-generate the asset")

// MediaLimits are the per-platform ceilings for media payloads.
type MediaLimits struct {
	MaxImageBytes int64
	MaxVideoBytes int64
	ImageTypes    []string
	VideoTypes    []string
}

// platformMediaLimits holds the three independent platform limit tables.
var platformMediaLimits = map[model.Platform]MediaLimits{
	model.PlatformFacebook: {
		MaxImageBytes: 4 << 20,
		MaxVideoBytes: 1 << 30,
		ImageTypes:    []string{"image/jpeg", "image/png"},
		VideoTypes:    []string{"video/mp4", "video/quicktime"},
	},
	model.PlatformInstagram: {
		MaxImageBytes: 8 << 20,
		MaxVideoBytes: 300 << 20,
		ImageTypes:    []string{"image/jpeg", "image/png"},
		VideoTypes:    []string{"video/mp4", "video/quicktime"},
	},
	model.PlatformTikTok: {
		MaxImageBytes: 20 << 20,
		MaxVideoBytes: 500 << 20,
		ImageTypes:    []string{"image/jpeg", "image/png", "image/webp"},
		VideoTypes:    []string{"video/mp4", "video/quicktime", "video/webm"},
	},
}

// IMediaValidator guards against handing broken or expiring media links to a
// platform client.
type IMediaValidator interface {
	Validate(ctx context.Context, story *model.Story, platform model.Platform) error
	// EnsureFreshURL returns a media URL guaranteed not to lapse mid-publish,
	// re-signing store-backed URLs that expire within the refresh horizon.
	EnsureFreshURL(ctx context.Context, story *model.Story) (string, error)
}

type MediaValidator struct {
	store          repository.IObjectStore
	refreshHorizon time.Duration
	signTTL        time.Duration
	now            func() time.Time
}

func NewMediaValidator(store repository.IObjectStore, refreshHorizon, signTTL time.Duration) *MediaValidator {
	if refreshHorizon <= 0 {
		refreshHorizon = time.Hour
	}
	if signTTL <= 0 {
		signTTL = 24 * time.Hour
	}
	return &MediaValidator{store: store, refreshHorizon: refreshHorizon, signTTL: signTTL, now: time.Now}
}

// Validate checks URL shape, object existence for store-backed media, and the
// platform's size/content-type ceilings. Every violation is fatal.
func (v *MediaValidator) Validate(ctx context.Context, story *model.Story, platform model.Platform) error {
	if story.MediaURL == "" {
		return nil
	}
	u, err := url.Parse(story.MediaURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("media url %q is not a valid http(s) url", story.MediaURL)
	}
	if story.MediaType != model.MediaTypeImage && story.MediaType != model.MediaTypeVideo {
		return fmt.Errorf("media type %q is not supported", story.MediaType)
	}

	size := story.MediaSize
	contentType := story.MediaContentType
	if story.MediaKey != "" {
		exists, err := v.store.Exists(ctx, story.MediaKey)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w (key=%s)", ErrMediaObjectMissing, story.MediaKey)
		}
		objSize, objType, err := v.store.Head(ctx, story.MediaKey)
		if err != nil {
			return err
		}
		size = objSize
		if objType != "" {
			contentType = objType
		}
	}

	limits, ok := platformMediaLimits[platform]
	if !ok {
		return fmt.Errorf("no media limits defined for platform %s", platform)
	}
	switch story.MediaType {
	case model.MediaTypeImage:
		if size > limits.MaxImageBytes {
			return fmt.Errorf("image size %d exceeds %s limit %d", size, platform, limits.MaxImageBytes)
		}
		if contentType != "" && !containsString(limits.ImageTypes, contentType) {
			return fmt.Errorf("image content type %q not accepted by %s", contentType, platform)
		}
	case model.MediaTypeVideo:
		if size > limits.MaxVideoBytes {
			return fmt.Errorf("video size %d exceeds %s limit %d", size, platform, limits.MaxVideoBytes)
		}
		if contentType != "" && !containsString(limits.VideoTypes, contentType) {
			return fmt.Errorf("video content type %q not accepted by %s", contentType, platform)
		}
	}
	return nil
}

func (v *MediaValidator) EnsureFreshURL(ctx context.Context, story *model.Story) (string, error) {
	if story.MediaKey == "" {
		return story.MediaURL, nil
	}
	exists, err := v.store.Exists(ctx, story.MediaKey)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w (key=%s)", ErrMediaObjectMissing, story.MediaKey)
	}
	if expiry, ok := signedURLExpiry(story.MediaURL); ok && expiry.Sub(v.now()) > v.refreshHorizon {
		return story.MediaURL, nil
	}
	fresh, err := v.store.SignedURL(ctx, story.MediaKey, v.signTTL)
	if err != nil {
		return "", err
	}
	logger.GetLogger().WithField("story_id", story.ID).WithField("key", story.MediaKey).Info("Re-signed media URL before publish")
	return fresh, nil
}

// signedURLExpiry extracts the expiry of an AWS-style presigned URL from its
// X-Amz-Date and X-Amz-Expires parameters.
func signedURLExpiry(raw string) (time.Time, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return time.Time{}, false
	}
	q := u.Query()
	signedAt, err := time.Parse("20060102T150405Z", q.Get("X-Amz-Date"))
	if err != nil {
		return time.Time{}, false
	}
	seconds, err := strconv.Atoi(q.Get("X-Amz-Expires"))
	if err != nil || seconds <= 0 {
		return time.Time{}, false
	}
	return signedAt.Add(time.Duration(seconds) * time.Second), true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
