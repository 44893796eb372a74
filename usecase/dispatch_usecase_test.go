package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"storycast/domain/model"
	"storycast/domain/repository"
	"storycast/usecase"
)

type dispatchFixture struct {
	stories     *MockStoryStore
	assignments *MockAssignmentStore
	accounts    *MockAccountStore
	media       *MockMediaValidator
	tokens      *MockTokenLifecycle
	fbClient    *MockPlatformClient
	igClient    *MockPlatformClient
	dispatcher  *usecase.PublishDispatcher
}

func newDispatchFixture() *dispatchFixture {
	f := &dispatchFixture{
		stories:     new(MockStoryStore),
		assignments: new(MockAssignmentStore),
		accounts:    new(MockAccountStore),
		media:       new(MockMediaValidator),
		tokens:      new(MockTokenLifecycle),
		fbClient:    &MockPlatformClient{platform: model.PlatformFacebook},
		igClient:    &MockPlatformClient{platform: model.PlatformInstagram},
	}
	limiter := usecase.NewRateLimiter(100)
	f.dispatcher = usecase.NewPublishDispatcher(
		f.stories,
		f.assignments,
		f.accounts,
		map[model.Platform]repository.IPlatformClient{
			model.PlatformFacebook:  f.fbClient,
			model.PlatformInstagram: f.igClient,
		},
		f.media,
		f.tokens,
		usecase.NewErrorClassifier(limiter),
		limiter,
	)
	return f
}

func scheduledStory(platforms ...model.Platform) *model.Story {
	return &model.Story{
		ID:          "story-1",
		Content:     "content",
		Platforms:   platforms,
		ScheduledAt: time.Now().Add(-time.Minute).UTC(),
		MediaURL:    "https://media.example.com/asset.jpg",
		MediaType:   model.MediaTypeImage,
		Status:      model.StoryStatusScheduled,
	}
}

func activeAccount(id string, platform model.Platform) *model.LinkedAccount {
	return &model.LinkedAccount{
		ID:             id,
		Platform:       platform,
		ExternalID:     "ext-" + id,
		AccessToken:    "token-" + id,
		RefreshToken:   "refresh-" + id,
		TokenExpiresAt: time.Now().Add(2 * time.Hour),
		Status:         model.AccountStatusActive,
	}
}

func TestDispatch_PartialSuccessPublishesStory(t *testing.T) {
	f := newDispatchFixture()
	story := scheduledStory(model.PlatformFacebook, model.PlatformInstagram)

	fbAccount := activeAccount("fb-1", model.PlatformFacebook)
	igAccount := activeAccount("ig-1", model.PlatformInstagram)
	igAccount.Status = model.AccountStatusExpired

	f.accounts.On("GetAccount", mock.Anything, "fb-1").Return(fbAccount, nil)
	f.accounts.On("GetAccount", mock.Anything, "ig-1").Return(igAccount, nil)
	f.media.On("Validate", mock.Anything, story, model.PlatformFacebook).Return(nil)
	f.media.On("EnsureFreshURL", mock.Anything, story).Return(story.MediaURL, nil)
	f.fbClient.On("Publish", mock.Anything, fbAccount, mock.Anything).
		Return(&repository.Receipt{ExternalID: "post-99"}, nil)

	f.assignments.On("UpdateAssignment", mock.Anything, "story-1", "fb-1", mock.MatchedBy(func(p *model.AssignmentPatch) bool {
		return p.Status != nil && *p.Status == model.AssignmentStatusPublished &&
			p.ExternalRef != nil && *p.ExternalRef == "post-99"
	})).Return(nil)
	f.assignments.On("UpdateAssignment", mock.Anything, "story-1", "ig-1", mock.MatchedBy(func(p *model.AssignmentPatch) bool {
		return p.Status != nil && *p.Status == model.AssignmentStatusFailed &&
			p.LastError != nil && *p.LastError == usecase.MsgTokenExpired
	})).Return(nil)
	f.accounts.On("RecordPublish", mock.Anything, "fb-1", mock.Anything).Return(nil)
	f.stories.On("AddPublishedPlatform", mock.Anything, "story-1", model.PlatformFacebook).Return(nil)
	f.stories.On("UpdateStory", mock.Anything, "story-1", mock.MatchedBy(func(p *model.StoryPatch) bool {
		return p.Status != nil && *p.Status == model.StoryStatusPublished && p.PublishedAt != nil
	})).Return(nil)

	err := f.dispatcher.Dispatch(context.Background(), story, []*model.Assignment{
		{StoryID: "story-1", AccountID: "fb-1", Status: model.AssignmentStatusPending},
		{StoryID: "story-1", AccountID: "ig-1", Status: model.AssignmentStatusPending},
	})

	assert.NoError(t, err)
	f.assignments.AssertExpectations(t)
	f.stories.AssertExpectations(t)
	f.accounts.AssertExpectations(t)
}

func TestDispatch_MissingMediaObjectIsFatal(t *testing.T) {
	f := newDispatchFixture()
	story := scheduledStory(model.PlatformFacebook)
	story.MediaKey = "media/story-1.jpg"
	account := activeAccount("fb-1", model.PlatformFacebook)

	f.accounts.On("GetAccount", mock.Anything, "fb-1").Return(account, nil)
	f.media.On("Validate", mock.Anything, story, model.PlatformFacebook).Return(nil)
	f.media.On("EnsureFreshURL", mock.Anything, story).Return("", usecase.ErrMediaObjectMissing)

	f.assignments.On("UpdateAssignment", mock.Anything, "story-1", "fb-1", mock.MatchedBy(func(p *model.AssignmentPatch) bool {
		return p.Status != nil && *p.Status == model.AssignmentStatusFailed &&
			p.LastError != nil && *p.LastError == usecase.MsgMediaMissing &&
			!p.IncRetryCount
	})).Return(nil)
	f.stories.On("UpdateStory", mock.Anything, "story-1", mock.MatchedBy(func(p *model.StoryPatch) bool {
		return p.Status != nil && *p.Status == model.StoryStatusFailed
	})).Return(nil)

	err := f.dispatcher.Dispatch(context.Background(), story, []*model.Assignment{
		{StoryID: "story-1", AccountID: "fb-1", Status: model.AssignmentStatusPending},
	})

	assert.NoError(t, err)
	f.fbClient.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	f.assignments.AssertExpectations(t)
	f.stories.AssertExpectations(t)
}

func TestDispatch_TransientFailureSchedulesRetry(t *testing.T) {
	f := newDispatchFixture()
	story := scheduledStory(model.PlatformFacebook)
	account := activeAccount("fb-1", model.PlatformFacebook)

	f.accounts.On("GetAccount", mock.Anything, "fb-1").Return(account, nil)
	f.media.On("Validate", mock.Anything, story, model.PlatformFacebook).Return(nil)
	f.media.On("EnsureFreshURL", mock.Anything, story).Return(story.MediaURL, nil)
	f.fbClient.On("Publish", mock.Anything, account, mock.Anything).
		Return(nil, &model.PlatformError{Platform: model.PlatformFacebook, StatusCode: 503, Message: "unavailable"})

	f.assignments.On("UpdateAssignment", mock.Anything, "story-1", "fb-1", mock.MatchedBy(func(p *model.AssignmentPatch) bool {
		return p.Status == nil && p.IncRetryCount && p.NextRetryAt != nil &&
			p.LastError != nil && *p.LastError == usecase.MsgPlatformDown
	})).Return(nil)

	err := f.dispatcher.Dispatch(context.Background(), story, []*model.Assignment{
		{StoryID: "story-1", AccountID: "fb-1", Status: model.AssignmentStatusPending},
	})

	assert.NoError(t, err)
	// A retry is outstanding, the story must stay scheduled.
	f.stories.AssertNotCalled(t, "UpdateStory", mock.Anything, mock.Anything, mock.Anything)
	f.assignments.AssertExpectations(t)
}

func TestDispatch_RetryCeilingFailsTerminally(t *testing.T) {
	f := newDispatchFixture()
	story := scheduledStory(model.PlatformFacebook)
	account := activeAccount("fb-1", model.PlatformFacebook)

	f.accounts.On("GetAccount", mock.Anything, "fb-1").Return(account, nil)
	f.media.On("Validate", mock.Anything, story, model.PlatformFacebook).Return(nil)
	f.media.On("EnsureFreshURL", mock.Anything, story).Return(story.MediaURL, nil)
	f.fbClient.On("Publish", mock.Anything, account, mock.Anything).
		Return(nil, &model.PlatformError{Platform: model.PlatformFacebook, StatusCode: 503, Message: "unavailable"})

	f.assignments.On("UpdateAssignment", mock.Anything, "story-1", "fb-1", mock.MatchedBy(func(p *model.AssignmentPatch) bool {
		return p.Status != nil && *p.Status == model.AssignmentStatusFailed &&
			p.LastError != nil && *p.LastError == usecase.MsgRetriesExhausted &&
			p.ClearNextRetry
	})).Return(nil)
	f.stories.On("UpdateStory", mock.Anything, "story-1", mock.MatchedBy(func(p *model.StoryPatch) bool {
		return p.Status != nil && *p.Status == model.StoryStatusFailed
	})).Return(nil)

	// Fourth attempt: three retries already recorded.
	err := f.dispatcher.Dispatch(context.Background(), story, []*model.Assignment{
		{StoryID: "story-1", AccountID: "fb-1", Status: model.AssignmentStatusPending, RetryCount: 3},
	})

	assert.NoError(t, err)
	f.assignments.AssertExpectations(t)
	f.stories.AssertExpectations(t)
}

func TestDispatch_PublishedAssignmentIsNeverRepublished(t *testing.T) {
	f := newDispatchFixture()
	story := scheduledStory(model.PlatformFacebook)
	story.Status = model.StoryStatusScheduled
	publishedAt := time.Now().Add(-time.Hour)

	f.stories.On("UpdateStory", mock.Anything, "story-1", mock.MatchedBy(func(p *model.StoryPatch) bool {
		return p.Status != nil && *p.Status == model.StoryStatusPublished
	})).Return(nil)

	err := f.dispatcher.Dispatch(context.Background(), story, []*model.Assignment{
		{StoryID: "story-1", AccountID: "fb-1", Status: model.AssignmentStatusPublished, PublishedAt: &publishedAt},
	})

	assert.NoError(t, err)
	f.fbClient.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	f.accounts.AssertNotCalled(t, "GetAccount", mock.Anything, mock.Anything)
}

func TestDispatch_FutureRetryIsNotAttempted(t *testing.T) {
	f := newDispatchFixture()
	story := scheduledStory(model.PlatformFacebook)
	retryAt := time.Now().Add(30 * time.Second)

	err := f.dispatcher.Dispatch(context.Background(), story, []*model.Assignment{
		{StoryID: "story-1", AccountID: "fb-1", Status: model.AssignmentStatusPending, RetryCount: 1, NextRetryAt: &retryAt},
	})

	assert.NoError(t, err)
	f.accounts.AssertNotCalled(t, "GetAccount", mock.Anything, mock.Anything)
	f.stories.AssertNotCalled(t, "UpdateStory", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_PlatformOutsideTargetSetIsSkipped(t *testing.T) {
	f := newDispatchFixture()
	story := scheduledStory(model.PlatformFacebook)
	igAccount := activeAccount("ig-1", model.PlatformInstagram)

	f.accounts.On("GetAccount", mock.Anything, "ig-1").Return(igAccount, nil)
	// The lone assignment never belonged to this story's platform set, so the
	// story has nothing publishable left.
	f.stories.On("UpdateStory", mock.Anything, "story-1", mock.MatchedBy(func(p *model.StoryPatch) bool {
		return p.Status != nil && *p.Status == model.StoryStatusFailed
	})).Return(nil)

	err := f.dispatcher.Dispatch(context.Background(), story, []*model.Assignment{
		{StoryID: "story-1", AccountID: "ig-1", Status: model.AssignmentStatusPending},
	})

	assert.NoError(t, err)
	f.igClient.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	f.assignments.AssertNotCalled(t, "UpdateAssignment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_UnknownAccountIsFatal(t *testing.T) {
	f := newDispatchFixture()
	story := scheduledStory(model.PlatformFacebook)

	f.accounts.On("GetAccount", mock.Anything, "ghost").Return(nil, nil)
	f.assignments.On("UpdateAssignment", mock.Anything, "story-1", "ghost", mock.MatchedBy(func(p *model.AssignmentPatch) bool {
		return p.Status != nil && *p.Status == model.AssignmentStatusFailed &&
			p.LastError != nil && *p.LastError == usecase.MsgAccountNotFound
	})).Return(nil)
	f.stories.On("UpdateStory", mock.Anything, "story-1", mock.MatchedBy(func(p *model.StoryPatch) bool {
		return p.Status != nil && *p.Status == model.StoryStatusFailed
	})).Return(nil)

	err := f.dispatcher.Dispatch(context.Background(), story, []*model.Assignment{
		{StoryID: "story-1", AccountID: "ghost", Status: model.AssignmentStatusPending},
	})

	assert.NoError(t, err)
	f.assignments.AssertExpectations(t)
}

func TestDispatch_QuotaExhaustedIsFatal(t *testing.T) {
	f := newDispatchFixture()
	story := scheduledStory(model.PlatformFacebook)
	account := activeAccount("fb-1", model.PlatformFacebook)
	account.DailyLimit = 5
	account.DailyUsed = 5

	f.accounts.On("GetAccount", mock.Anything, "fb-1").Return(account, nil)
	f.media.On("Validate", mock.Anything, story, model.PlatformFacebook).Return(nil)
	f.assignments.On("UpdateAssignment", mock.Anything, "story-1", "fb-1", mock.MatchedBy(func(p *model.AssignmentPatch) bool {
		return p.Status != nil && *p.Status == model.AssignmentStatusFailed &&
			p.LastError != nil && *p.LastError == usecase.MsgDailyQuotaFull
	})).Return(nil)
	f.stories.On("UpdateStory", mock.Anything, "story-1", mock.Anything).Return(nil)

	err := f.dispatcher.Dispatch(context.Background(), story, []*model.Assignment{
		{StoryID: "story-1", AccountID: "fb-1", Status: model.AssignmentStatusPending},
	})

	assert.NoError(t, err)
	f.fbClient.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	f.assignments.AssertExpectations(t)
}

func TestDispatch_NoAssignmentsFailsStory(t *testing.T) {
	f := newDispatchFixture()
	story := scheduledStory(model.PlatformFacebook)

	f.stories.On("UpdateStory", mock.Anything, "story-1", mock.MatchedBy(func(p *model.StoryPatch) bool {
		return p.Status != nil && *p.Status == model.StoryStatusFailed
	})).Return(nil)

	err := f.dispatcher.Dispatch(context.Background(), story, nil)
	assert.NoError(t, err)
	f.stories.AssertExpectations(t)
}
