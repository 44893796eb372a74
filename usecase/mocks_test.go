package usecase_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"storycast/domain/model"
	"storycast/domain/repository"
	"storycast/usecase"
)

// Mock implementations

type MockStoryStore struct {
	mock.Mock
}

func (m *MockStoryStore) GetDueScheduledStories(ctx context.Context) ([]*model.Story, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Story), args.Error(1)
}

func (m *MockStoryStore) GetStory(ctx context.Context, id string) (*model.Story, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Story), args.Error(1)
}

func (m *MockStoryStore) GetStoriesAwaitingVideo(ctx context.Context, until time.Time) ([]*model.Story, error) {
	args := m.Called(ctx, until)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Story), args.Error(1)
}

func (m *MockStoryStore) UpdateStory(ctx context.Context, id string, patch *model.StoryPatch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}

func (m *MockStoryStore) AddPublishedPlatform(ctx context.Context, id string, platform model.Platform) error {
	args := m.Called(ctx, id, platform)
	return args.Error(0)
}

type MockAssignmentStore struct {
	mock.Mock
}

func (m *MockAssignmentStore) GetAssignments(ctx context.Context, storyID string) ([]*model.Assignment, error) {
	args := m.Called(ctx, storyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Assignment), args.Error(1)
}

func (m *MockAssignmentStore) UpdateAssignment(ctx context.Context, storyID, accountID string, patch *model.AssignmentPatch) error {
	args := m.Called(ctx, storyID, accountID, patch)
	return args.Error(0)
}

type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) GetAccount(ctx context.Context, id string) (*model.LinkedAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkedAccount), args.Error(1)
}

func (m *MockAccountStore) ListAccounts(ctx context.Context) ([]*model.LinkedAccount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LinkedAccount), args.Error(1)
}

func (m *MockAccountStore) UpdateAccount(ctx context.Context, id string, patch *model.AccountPatch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}

func (m *MockAccountStore) RecordPublish(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockAccountStore) ResetExpiredQuotas(ctx context.Context, now time.Time) error {
	args := m.Called(ctx, now)
	return args.Error(0)
}

type MockPlatformClient struct {
	mock.Mock
	platform model.Platform
}

func (m *MockPlatformClient) Platform() model.Platform { return m.platform }

func (m *MockPlatformClient) Publish(ctx context.Context, account *model.LinkedAccount, content repository.RenderedContent) (*repository.Receipt, error) {
	args := m.Called(ctx, account, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Receipt), args.Error(1)
}

func (m *MockPlatformClient) VerifyTokenHealth(ctx context.Context, accessToken string) (bool, error) {
	args := m.Called(ctx, accessToken)
	return args.Bool(0), args.Error(1)
}

func (m *MockPlatformClient) RefreshToken(ctx context.Context, account *model.LinkedAccount) (*repository.RefreshedToken, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.RefreshedToken), args.Error(1)
}

type MockMediaValidator struct {
	mock.Mock
}

func (m *MockMediaValidator) Validate(ctx context.Context, story *model.Story, platform model.Platform) error {
	args := m.Called(ctx, story, platform)
	return args.Error(0)
}

func (m *MockMediaValidator) EnsureFreshURL(ctx context.Context, story *model.Story) (string, error) {
	args := m.Called(ctx, story)
	return args.String(0), args.Error(1)
}

type MockTokenLifecycle struct {
	mock.Mock
}

func (m *MockTokenLifecycle) RefreshIfNeeded(ctx context.Context, account *model.LinkedAccount) (*model.LinkedAccount, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkedAccount), args.Error(1)
}

func (m *MockTokenLifecycle) RefreshAccount(ctx context.Context, account *model.LinkedAccount, trigger usecase.RefreshTrigger) (*model.LinkedAccount, error) {
	args := m.Called(ctx, account, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkedAccount), args.Error(1)
}

func (m *MockTokenLifecycle) Sweep(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockObjectStore) Head(ctx context.Context, key string) (int64, string, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.String(1), args.Error(2)
}

func (m *MockObjectStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(ctx context.Context, story *model.Story) (*repository.RenderResult, error) {
	args := m.Called(ctx, story)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.RenderResult), args.Error(1)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, story *model.Story, assignments []*model.Assignment) error {
	args := m.Called(ctx, story, assignments)
	return args.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishEvent(ctx context.Context, event model.StoryEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
