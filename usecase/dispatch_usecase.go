package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storycast/domain/model"
	"storycast/domain/repository"
	"storycast/infrastructure/logger"
)

// Broadcaster receives per-assignment outcomes for real-time fan-out (SSE).
type Broadcaster func(story *model.Story, assignment *model.Assignment)

// IPublishDispatcher publishes one due story across its account assignments.
type IPublishDispatcher interface {
	Dispatch(ctx context.Context, story *model.Story, assignments []*model.Assignment) error
}

// PublishDispatcher walks a story's assignments in order, resolves each
// account, validates, refreshes credentials and media, publishes through the
// platform client and records the outcome. One platform failing never blocks
// another platform's success for the same story.
type PublishDispatcher struct {
	stories        repository.IStoryStore
	assignments    repository.IAssignmentStore
	accounts       repository.IAccountStore
	clients        map[model.Platform]repository.IPlatformClient
	media          IMediaValidator
	tokens         ITokenLifecycle
	classifier     *ErrorClassifier
	limiter        *RateLimiter
	events         repository.IEventPublisher
	broadcast      Broadcaster
	maxRetries     int
	publishTimeout time.Duration
	now            func() time.Time
}

func NewPublishDispatcher(
	stories repository.IStoryStore,
	assignments repository.IAssignmentStore,
	accounts repository.IAccountStore,
	clients map[model.Platform]repository.IPlatformClient,
	media IMediaValidator,
	tokens ITokenLifecycle,
	classifier *ErrorClassifier,
	limiter *RateLimiter,
) *PublishDispatcher {
	return &PublishDispatcher{
		stories:        stories,
		assignments:    assignments,
		accounts:       accounts,
		clients:        clients,
		media:          media,
		tokens:         tokens,
		classifier:     classifier,
		limiter:        limiter,
		maxRetries:     4,
		publishTimeout: 45 * time.Second,
		now:            time.Now,
	}
}

// WithBroadcaster attaches a real-time outcome hook.
func (d *PublishDispatcher) WithBroadcaster(b Broadcaster) *PublishDispatcher {
	d.broadcast = b
	return d
}

// WithEventPublisher attaches the best-effort status event sink.
func (d *PublishDispatcher) WithEventPublisher(ev repository.IEventPublisher) *PublishDispatcher {
	d.events = ev
	return d
}

// assignmentOutcome tracks what this cycle decided for one assignment, so
// story finalization never needs a re-read.
type assignmentOutcome int

const (
	outcomePublished assignmentOutcome = iota
	outcomeRetryScheduled
	outcomeFailed
	outcomeSkipped
	outcomeNotDue
)

func (d *PublishDispatcher) Dispatch(ctx context.Context, story *model.Story, assignments []*model.Assignment) error {
	lg := logger.GetLogger().WithField("story_id", story.ID)

	if len(assignments) == 0 {
		failed := model.StoryStatusFailed
		lg.Warn("Story has no assignments, marking failed")
		return d.stories.UpdateStory(ctx, story.ID, &model.StoryPatch{Status: &failed})
	}

	anyPublished := false
	anyPending := false
	anyConsidered := false

	for _, a := range assignments {
		switch a.Status {
		case model.AssignmentStatusPublished:
			anyPublished = true
			anyConsidered = true
			continue
		case model.AssignmentStatusFailed:
			anyConsidered = true
			continue
		}
		if a.NextRetryAt != nil && a.NextRetryAt.After(d.now()) {
			anyPending = true
			anyConsidered = true
			continue
		}

		outcome := d.dispatchAssignment(ctx, story, a)
		switch outcome {
		case outcomePublished:
			anyPublished = true
			anyConsidered = true
		case outcomeRetryScheduled:
			anyPending = true
			anyConsidered = true
		case outcomeFailed:
			anyConsidered = true
		case outcomeSkipped:
			// Platform not in the story's target set: never valid for this
			// story, excluded from finalization entirely.
		}
	}

	return d.finalizeStory(ctx, story, anyPublished, anyPending, anyConsidered)
}

// finalizeStory applies the document-level outcome: any success means
// published (partial success counts, the content reached an audience), all
// terminal failures mean failed, anything still pending leaves the story
// scheduled for the next cycle.
func (d *PublishDispatcher) finalizeStory(ctx context.Context, story *model.Story, anyPublished, anyPending, anyConsidered bool) error {
	lg := logger.GetLogger().WithField("story_id", story.ID)

	var status model.StoryStatus
	switch {
	case anyPublished:
		status = model.StoryStatusPublished
	case anyPending:
		return nil // stays scheduled, retries outstanding
	case anyConsidered:
		status = model.StoryStatusFailed
	default:
		// Every assignment targeted a platform outside the story's set.
		status = model.StoryStatusFailed
	}

	if story.Status == status {
		return nil
	}
	patch := &model.StoryPatch{Status: &status}
	if status == model.StoryStatusPublished && story.PublishedAt == nil {
		now := d.now().UTC()
		patch.PublishedAt = &now
	}
	if err := d.stories.UpdateStory(ctx, story.ID, patch); err != nil {
		return err
	}
	story.Status = status
	lg.WithField("status", string(status)).Info("Story finalized")
	d.emitEvent(ctx, model.StoryEvent{
		Type:       model.EventStoryStatus,
		StoryID:    story.ID,
		Status:     string(status),
		OccurredAt: d.now().UTC(),
	})
	return nil
}

func (d *PublishDispatcher) dispatchAssignment(ctx context.Context, story *model.Story, a *model.Assignment) assignmentOutcome {
	lg := logger.GetLogger().WithField("story_id", story.ID).WithField("account_id", a.AccountID)

	account, err := d.accounts.GetAccount(ctx, a.AccountID)
	if err != nil {
		lg.WithField("error", err).Warn("Account lookup failed, retrying next cycle")
		return d.recordFailure(ctx, story, a, "", err, Classification{Retryable: true, UserMessage: MsgUnknownError, Backoff: Backoff(a.RetryCount)})
	}
	if account == nil {
		return d.recordFailure(ctx, story, a, "", errors.New("linked account not found"),
			Classification{Retryable: false, UserMessage: MsgAccountNotFound})
	}

	lg = lg.WithField("platform", string(account.Platform))

	if account.Status != model.AccountStatusActive {
		msg := MsgAccountInactive
		if account.Status == model.AccountStatusExpired {
			msg = MsgTokenExpired
		}
		return d.recordFailure(ctx, story, a, account.Platform,
			fmt.Errorf("account status is %s", account.Status),
			Classification{Retryable: false, UserMessage: msg})
	}

	if !story.HasPlatform(account.Platform) {
		lg.Debug("Assignment platform outside story target set, skipping")
		return outcomeSkipped
	}

	if cls, err := d.validate(ctx, story, account); err != nil {
		return d.recordFailure(ctx, story, a, account.Platform, err, cls)
	}

	if account.TokenTimeRemaining(d.now()) <= 5*time.Minute {
		refreshed, err := d.tokens.RefreshIfNeeded(ctx, account)
		if err != nil {
			return d.recordFailure(ctx, story, a, account.Platform, err,
				Classification{Retryable: false, UserMessage: MsgTokenExpired})
		}
		account = refreshed
	}

	mediaURL, err := d.media.EnsureFreshURL(ctx, story)
	if err != nil {
		if errors.Is(err, ErrMediaObjectMissing) {
			return d.recordFailure(ctx, story, a, account.Platform, err,
				Classification{Retryable: false, UserMessage: MsgMediaMissing})
		}
		return d.recordFailure(ctx, story, a, account.Platform, err,
			Classification{Retryable: true, UserMessage: MsgUnknownError, Backoff: Backoff(a.RetryCount)})
	}

	if !d.limiter.Allow(ctx, account.Platform, account.ID) {
		rateErr := &model.PlatformError{Platform: account.Platform, StatusCode: 429, Message: "local publish window exhausted"}
		return d.recordFailure(ctx, story, a, account.Platform, rateErr,
			d.classifier.Classify(rateErr, account.Platform, account.ID, a.RetryCount))
	}

	client, ok := d.clients[account.Platform]
	if !ok {
		return d.recordFailure(ctx, story, a, account.Platform,
			fmt.Errorf("no platform client registered for %s", account.Platform),
			Classification{Retryable: false, UserMessage: MsgUnknownError})
	}

	pubCtx, cancel := context.WithTimeout(ctx, d.publishTimeout)
	receipt, err := client.Publish(pubCtx, account, repository.RenderedContent{
		Text:      story.Content,
		MediaURL:  mediaURL,
		MediaType: story.MediaType,
	})
	cancel()
	if err != nil {
		return d.recordFailure(ctx, story, a, account.Platform, err,
			d.classifier.Classify(err, account.Platform, account.ID, a.RetryCount))
	}

	return d.recordSuccess(ctx, story, a, account, receipt)
}

// validate aggregates the pre-flight checks that require human correction:
// quota, unusable credentials, and the media rules of §4.5. Any violation is
// fatal for this assignment.
func (d *PublishDispatcher) validate(ctx context.Context, story *model.Story, account *model.LinkedAccount) (Classification, error) {
	var violations []string
	userMsg := ""

	if account.DailyQuotaExhausted() {
		violations = append(violations, "daily quota exhausted")
		userMsg = MsgDailyQuotaFull
	}
	if account.MonthlyQuotaExhausted() {
		violations = append(violations, "monthly quota exhausted")
		if userMsg == "" {
			userMsg = MsgMonthlyQuotaFull
		}
	}
	// Expired with no refresh token: nothing the refresh path can do.
	if account.TokenTimeRemaining(d.now()) <= 0 && account.RefreshToken == "" {
		violations = append(violations, "token expired and no refresh token")
		if userMsg == "" {
			userMsg = MsgTokenExpired
		}
	}
	if story.MediaURL != "" && story.MediaType == model.MediaTypeVideo {
		switch story.VideoGenerationStatus {
		case model.VideoGenError:
			violations = append(violations, "video generation failed, media unusable")
			if userMsg == "" {
				userMsg = MsgMediaMissing
			}
		case model.VideoGenPending, model.VideoGenGenerating:
			// Not a configuration fault: the render simply has not finished.
			return Classification{Retryable: true, UserMessage: MsgMediaNotReady, Backoff: Backoff(0)},
				errors.New("video generation not finished")
		}
	}
	if err := d.media.Validate(ctx, story, account.Platform); err != nil {
		violations = append(violations, err.Error())
		if userMsg == "" {
			if errors.Is(err, ErrMediaObjectMissing) {
				userMsg = MsgMediaMissing
			} else {
				userMsg = MsgInvalidMedia
			}
		}
	}

	if len(violations) == 0 {
		return Classification{}, nil
	}
	return Classification{Retryable: false, UserMessage: userMsg},
		errors.New(strings.Join(violations, "; "))
}

func (d *PublishDispatcher) recordSuccess(ctx context.Context, story *model.Story, a *model.Assignment, account *model.LinkedAccount, receipt *repository.Receipt) assignmentOutcome {
	now := d.now().UTC()
	status := model.AssignmentStatusPublished
	patch := &model.AssignmentPatch{
		Status:         &status,
		PublishedAt:    &now,
		ClearNextRetry: true,
	}
	if receipt != nil && receipt.ExternalID != "" {
		patch.ExternalRef = &receipt.ExternalID
	}
	if err := d.assignments.UpdateAssignment(ctx, story.ID, a.AccountID, patch); err != nil {
		logger.GetLogger().WithField("story_id", story.ID).WithField("account_id", a.AccountID).WithField("error", err).Error("Failed recording published assignment")
	}
	if err := d.accounts.RecordPublish(ctx, account.ID, now); err != nil {
		logger.GetLogger().WithField("account_id", account.ID).WithField("error", err).Error("Failed incrementing account quota")
	}
	if err := d.stories.AddPublishedPlatform(ctx, story.ID, account.Platform); err != nil {
		logger.GetLogger().WithField("story_id", story.ID).WithField("error", err).Error("Failed recording published platform")
	}

	a.Status = model.AssignmentStatusPublished
	a.PublishedAt = &now
	if !story.HasPublishedPlatform(account.Platform) {
		story.PublishedPlatforms = append(story.PublishedPlatforms, account.Platform)
	}

	logger.GetLogger().
		WithField("story_id", story.ID).
		WithField("account_id", account.ID).
		WithField("platform", string(account.Platform)).
		Info("Assignment published")

	d.emitEvent(ctx, model.StoryEvent{
		Type:       model.EventAssignmentPublished,
		StoryID:    story.ID,
		AccountID:  account.ID,
		Platform:   account.Platform,
		Status:     string(model.AssignmentStatusPublished),
		OccurredAt: now,
	})
	if d.broadcast != nil {
		d.broadcast(story, a)
	}
	return outcomePublished
}

func (d *PublishDispatcher) recordFailure(ctx context.Context, story *model.Story, a *model.Assignment, platform model.Platform, rawErr error, cls Classification) assignmentOutcome {
	now := d.now().UTC()
	lg := logger.GetLogger().
		WithField("story_id", story.ID).
		WithField("account_id", a.AccountID).
		WithField("error", rawErr)

	entry := &model.AssignmentError{Message: rawErr.Error(), OccurredAt: now}
	patch := &model.AssignmentPatch{
		LastError:   &cls.UserMessage,
		AppendError: entry,
	}

	newCount := a.RetryCount + 1
	retrying := cls.Retryable && newCount < d.maxRetries
	eventType := model.EventAssignmentFailed
	outcome := outcomeFailed

	if retrying {
		retryAt := now.Add(cls.Backoff)
		patch.IncRetryCount = true
		patch.NextRetryAt = &retryAt
		a.RetryCount = newCount
		a.NextRetryAt = &retryAt
		eventType = model.EventAssignmentRetry
		outcome = outcomeRetryScheduled
		lg.WithField("retry_count", newCount).WithField("retry_at", retryAt).Warn("Assignment publish failed, retry scheduled")
	} else {
		failed := model.AssignmentStatusFailed
		patch.Status = &failed
		patch.ClearNextRetry = true
		if cls.Retryable {
			// Transient classification but the ceiling is reached.
			patch.IncRetryCount = true
			a.RetryCount = newCount
			exhausted := MsgRetriesExhausted
			patch.LastError = &exhausted
			cls.UserMessage = exhausted
		}
		a.Status = model.AssignmentStatusFailed
		a.NextRetryAt = nil
		lg.WithField("retryable", cls.Retryable).Warn("Assignment failed terminally")
	}
	a.LastError = &cls.UserMessage

	if err := d.assignments.UpdateAssignment(ctx, story.ID, a.AccountID, patch); err != nil {
		lg.WithField("update_error", err).Error("Failed persisting assignment failure")
	}

	evt := model.StoryEvent{
		Type:       eventType,
		StoryID:    story.ID,
		AccountID:  a.AccountID,
		Platform:   platform,
		Status:     string(a.Status),
		Message:    cls.UserMessage,
		OccurredAt: now,
	}
	if a.NextRetryAt != nil {
		evt.RetryAt = a.NextRetryAt
	}
	d.emitEvent(ctx, evt)
	if d.broadcast != nil {
		d.broadcast(story, a)
	}
	return outcome
}

func (d *PublishDispatcher) emitEvent(ctx context.Context, evt model.StoryEvent) {
	if d.events == nil {
		return
	}
	if err := d.events.PublishEvent(ctx, evt); err != nil {
		logger.GetLogger().WithField("event", evt.Type).WithField("error", err).Warn("Status event publish failed")
	}
}
