package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"storycast/domain/model"
	"storycast/usecase"
)

func TestBackoff(t *testing.T) {
	assert.Equal(t, 1*time.Second, usecase.Backoff(0))
	assert.Equal(t, 2*time.Second, usecase.Backoff(1))
	assert.Equal(t, 4*time.Second, usecase.Backoff(2))
	assert.Equal(t, 8*time.Second, usecase.Backoff(3))
	assert.Equal(t, 60*time.Second, usecase.Backoff(10), "backoff is capped at a minute")
	assert.Equal(t, 1*time.Second, usecase.Backoff(-1), "negative counts behave like zero")
}

func TestClassify_PermissionIsFatal(t *testing.T) {
	c := usecase.NewErrorClassifier(usecase.NewRateLimiter(10))

	cls := c.Classify(&model.PlatformError{
		Platform:   model.PlatformFacebook,
		StatusCode: 403,
		Message:    "user does not have permission",
	}, model.PlatformFacebook, "acc-1", 0)

	assert.False(t, cls.Retryable)
	assert.Equal(t, usecase.MsgNoPermission, cls.UserMessage)
}

func TestClassify_InvalidTokenIsFatal(t *testing.T) {
	c := usecase.NewErrorClassifier(usecase.NewRateLimiter(10))

	for _, pe := range []*model.PlatformError{
		{Platform: model.PlatformInstagram, StatusCode: 401, Message: "bad credentials"},
		{Platform: model.PlatformFacebook, StatusCode: 400, Code: "190", Message: "Error validating access token"},
	} {
		cls := c.Classify(pe, pe.Platform, "acc-1", 0)
		assert.False(t, cls.Retryable)
		assert.Equal(t, usecase.MsgTokenExpired, cls.UserMessage)
	}
}

func TestClassify_MalformedMediaIsFatal(t *testing.T) {
	c := usecase.NewErrorClassifier(usecase.NewRateLimiter(10))

	cls := c.Classify(&model.PlatformError{
		Platform:   model.PlatformTikTok,
		StatusCode: 400,
		Code:       "video_format_unsupported",
		Message:    "unsupported format",
	}, model.PlatformTikTok, "acc-1", 0)

	assert.False(t, cls.Retryable)
	assert.Equal(t, usecase.MsgInvalidMedia, cls.UserMessage)
}

func TestClassify_ServerErrorIsRetryable(t *testing.T) {
	c := usecase.NewErrorClassifier(usecase.NewRateLimiter(10))

	cls := c.Classify(&model.PlatformError{
		Platform:   model.PlatformFacebook,
		StatusCode: 503,
		Message:    "service unavailable",
	}, model.PlatformFacebook, "acc-1", 2)

	assert.True(t, cls.Retryable)
	assert.Equal(t, usecase.MsgPlatformDown, cls.UserMessage)
	assert.Equal(t, 4*time.Second, cls.Backoff, "backoff follows the retry count")
}

func TestClassify_RateLimitHonoursRetryAfter(t *testing.T) {
	c := usecase.NewErrorClassifier(usecase.NewRateLimiter(10))

	cls := c.Classify(&model.PlatformError{
		Platform:   model.PlatformInstagram,
		StatusCode: 429,
		RetryAfter: 15 * time.Second,
	}, model.PlatformInstagram, "acc-1", 0)

	assert.True(t, cls.Retryable)
	assert.Equal(t, usecase.MsgRateLimited, cls.UserMessage)
	assert.Equal(t, 15*time.Second, cls.Backoff)
}

func TestClassify_RateLimitDelayGrowsWithOverage(t *testing.T) {
	limiter := usecase.NewRateLimiter(2)
	c := usecase.NewErrorClassifier(limiter)

	// Blow through the per-minute window so the local overage accumulates.
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		limiter.Allow(ctx, model.PlatformTikTok, "acc-1")
	}

	cls := c.Classify(&model.PlatformError{
		Platform:   model.PlatformTikTok,
		StatusCode: 429,
	}, model.PlatformTikTok, "acc-1", 0)

	assert.True(t, cls.Retryable)
	assert.Equal(t, 1*time.Second+3*time.Second, cls.Backoff, "base backoff plus one second per request over the window")
}

func TestClassify_TimeoutIsRetryable(t *testing.T) {
	c := usecase.NewErrorClassifier(usecase.NewRateLimiter(10))

	cls := c.Classify(context.DeadlineExceeded, model.PlatformFacebook, "acc-1", 1)
	assert.True(t, cls.Retryable)
	assert.Equal(t, usecase.MsgNetworkIssue, cls.UserMessage)
	assert.Equal(t, 2*time.Second, cls.Backoff)

	cls = c.Classify(errors.New("dial tcp: connection refused"), model.PlatformFacebook, "acc-1", 0)
	assert.True(t, cls.Retryable)
	assert.Equal(t, usecase.MsgNetworkIssue, cls.UserMessage)
}

func TestClassify_UnknownErrorDefaultsToRetryable(t *testing.T) {
	c := usecase.NewErrorClassifier(usecase.NewRateLimiter(10))

	cls := c.Classify(errors.New("something inexplicable"), model.PlatformInstagram, "acc-1", 0)
	assert.True(t, cls.Retryable, "unknown failures must never drop content silently")
	assert.Equal(t, usecase.MsgUnknownError, cls.UserMessage)
}
