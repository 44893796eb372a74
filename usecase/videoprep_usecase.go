package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"storycast/domain/model"
	"storycast/domain/repository"
	"storycast/infrastructure/logger"
)

// VideoPrepCoordinator pre-renders heavy media ahead of publish time. It
// sweeps for scheduled video stories entering the lead window, earliest
// first, and runs generation jobs one at a time with a stagger delay so the
// rendering/upload pipeline is never flooded. It never touches the publish
// path; the dispatcher only observes videoGenerationStatus.
type VideoPrepCoordinator struct {
	stories       repository.IStoryStore
	renderer      repository.IMediaRenderer
	interval      time.Duration
	leadWindow    time.Duration
	stagger       time.Duration
	renderTimeout time.Duration
	running       atomic.Bool
	now           func() time.Time

	mu        sync.Mutex
	lastSweep time.Time
}

func NewVideoPrepCoordinator(stories repository.IStoryStore, renderer repository.IMediaRenderer, interval, leadWindow, stagger time.Duration) *VideoPrepCoordinator {
	if interval <= 0 {
		interval = time.Minute
	}
	if leadWindow <= 0 {
		leadWindow = 4 * time.Hour
	}
	if stagger < 0 {
		stagger = 5 * time.Minute
	}
	return &VideoPrepCoordinator{
		stories:       stories,
		renderer:      renderer,
		interval:      interval,
		leadWindow:    leadWindow,
		stagger:       stagger,
		renderTimeout: 10 * time.Minute,
		now:           time.Now,
	}
}

func (c *VideoPrepCoordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	logger.GetLogger().
		WithField("lead_window", c.leadWindow.String()).
		WithField("stagger", c.stagger.String()).
		Info("Video preparation coordinator started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Sweep(ctx); err != nil {
				logger.GetLogger().WithField("error", err).Error("Video prep sweep failed, will retry next cycle")
			}
		}
	}
}

// Sweep runs one batch. A sweep arriving while a previous staggered batch is
// still draining is skipped entirely.
func (c *VideoPrepCoordinator) Sweep(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		logger.GetLogger().Debug("Video prep batch still running, skipping sweep")
		return nil
	}
	defer c.running.Store(false)

	c.mu.Lock()
	c.lastSweep = c.now()
	c.mu.Unlock()

	until := c.now().Add(c.leadWindow).UTC()
	pending, err := c.stories.GetStoriesAwaitingVideo(ctx, until)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	logger.GetLogger().WithField("count", len(pending)).Info("Stories awaiting video generation")

	for i, story := range pending {
		if i > 0 {
			if err := sleepCtx(ctx, c.stagger); err != nil {
				return err
			}
		}
		// The stagger gives the story time to change underneath us; a job is
		// cancelled when its story left the scheduled state meanwhile.
		current, err := c.stories.GetStory(ctx, story.ID)
		if err != nil {
			logger.GetLogger().WithField("story_id", story.ID).WithField("error", err).Warn("Story re-read failed, skipping job")
			continue
		}
		if current == nil || current.Status != model.StoryStatusScheduled || current.VideoGenerationStatus != model.VideoGenPending {
			logger.GetLogger().WithField("story_id", story.ID).Info("Story no longer eligible, video job cancelled")
			continue
		}
		c.generateOne(ctx, current)
	}
	return nil
}

func (c *VideoPrepCoordinator) generateOne(ctx context.Context, story *model.Story) {
	lg := logger.GetLogger().WithField("story_id", story.ID)

	generating := model.VideoGenGenerating
	if err := c.stories.UpdateStory(ctx, story.ID, &model.StoryPatch{VideoGenerationStatus: &generating}); err != nil {
		lg.WithField("error", err).Error("Failed marking story generating")
		return
	}

	renderCtx, cancel := context.WithTimeout(ctx, c.renderTimeout)
	result, err := c.renderer.Render(renderCtx, story)
	cancel()
	if err != nil {
		genError := model.VideoGenError
		if uErr := c.stories.UpdateStory(ctx, story.ID, &model.StoryPatch{VideoGenerationStatus: &genError}); uErr != nil {
			lg.WithField("error", uErr).Error("Failed marking generation error")
		}
		lg.WithField("error", err).Error("Video generation failed")
		return
	}

	generated := model.VideoGenGenerated
	patch := &model.StoryPatch{
		VideoGenerationStatus: &generated,
		MediaURL:              &result.URL,
		MediaKey:              &result.StorageKey,
	}
	if result.Size > 0 {
		patch.MediaSize = &result.Size
	}
	if err := c.stories.UpdateStory(ctx, story.ID, patch); err != nil {
		lg.WithField("error", err).Error("Failed recording generated video")
		return
	}
	lg.WithField("key", result.StorageKey).Info("Video generated")
}

func (c *VideoPrepCoordinator) LastSweep() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSweep
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
