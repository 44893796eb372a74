package usecase

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"storycast/domain/model"
	"storycast/domain/repository"
	"storycast/infrastructure/logger"
)

// ScheduleLoop is the time-driven publish controller: every interval it pulls
// due scheduled stories and hands each to the dispatcher at most once per
// cycle. Polling failures are logged and the next cycle retries; a transient
// store outage must self-heal without operator action.
type ScheduleLoop struct {
	stories     repository.IStoryStore
	assignments repository.IAssignmentStore
	dispatcher  IPublishDispatcher
	inflight    *inFlightSet
	interval    time.Duration
	concurrency int
	now         func() time.Time

	mu       sync.Mutex
	lastTick time.Time
}

func NewScheduleLoop(stories repository.IStoryStore, assignments repository.IAssignmentStore, dispatcher IPublishDispatcher, interval time.Duration) *ScheduleLoop {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ScheduleLoop{
		stories:     stories,
		assignments: assignments,
		dispatcher:  dispatcher,
		inflight:    newInFlightSet(),
		interval:    interval,
		concurrency: 4,
		now:         time.Now,
	}
}

// Run blocks until ctx is done, ticking at the configured interval.
func (l *ScheduleLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	logger.GetLogger().WithField("interval", l.interval.String()).Info("Schedule loop started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := l.Tick(ctx); err != nil {
				logger.GetLogger().WithField("error", err).Error("Schedule tick failed, will retry next cycle")
			}
		}
	}
}

// Tick runs one polling cycle. Due stories are dispatched with bounded
// parallelism; a story already in flight from a previous cycle is skipped.
func (l *ScheduleLoop) Tick(ctx context.Context) error {
	l.mu.Lock()
	l.lastTick = l.now()
	l.mu.Unlock()

	due, err := l.stories.GetDueScheduledStories(ctx)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}
	logger.GetLogger().WithField("count", len(due)).Info("Due stories found")

	g := new(errgroup.Group)
	g.SetLimit(l.concurrency)
	for _, story := range due {
		story := story
		if !l.inflight.TryAdd(story.ID) {
			logger.GetLogger().WithField("story_id", story.ID).Debug("Story already in flight, skipping this cycle")
			continue
		}
		g.Go(func() error {
			defer l.inflight.Remove(story.ID)
			l.processStory(ctx, story)
			return nil
		})
	}
	return g.Wait()
}

func (l *ScheduleLoop) processStory(ctx context.Context, story *model.Story) {
	lg := logger.GetLogger().WithField("story_id", story.ID)
	defer func() {
		if r := recover(); r != nil {
			lg.WithField("panic", r).Error("Dispatch panicked, story released from guard")
		}
	}()

	assignments, err := l.assignments.GetAssignments(ctx, story.ID)
	if err != nil {
		lg.WithField("error", err).Error("Failed loading assignments, will retry next cycle")
		return
	}
	if len(assignments) == 0 {
		// Fatal configuration fault: nothing to publish to.
		failed := model.StoryStatusFailed
		if err := l.stories.UpdateStory(ctx, story.ID, &model.StoryPatch{Status: &failed}); err != nil {
			lg.WithField("error", err).Error("Failed marking assignment-less story failed")
			return
		}
		lg.Warn("Story has no assignments, marked failed")
		return
	}

	if err := l.dispatcher.Dispatch(ctx, story, assignments); err != nil {
		lg.WithField("error", err).Error("Dispatch failed, story stays scheduled")
	}
}

// InFlight reports how many stories are currently being dispatched.
func (l *ScheduleLoop) InFlight() int { return l.inflight.Len() }

func (l *ScheduleLoop) LastTick() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastTick
}
