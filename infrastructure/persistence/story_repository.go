package persistence

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"storycast/domain/model"
	"storycast/infrastructure/logger"
)

const (
	storiesCollection     = "stories"
	assignmentsCollection = "story_assignments"
)

// StoryRepository implements the story and assignment stores on MongoDB.
// All engine writes go through partial patches translated to $set/$inc/$push
// so concurrent dispatchers never clobber each other's fields.
type StoryRepository struct {
	db       *mongo.Client
	database string
}

func NewStoryRepository(db *mongo.Client, database string) *StoryRepository {
	return &StoryRepository{db: db, database: database}
}

func (r *StoryRepository) stories() *mongo.Collection {
	return r.db.Database(r.database).Collection(storiesCollection)
}

func (r *StoryRepository) assignments() *mongo.Collection {
	return r.db.Database(r.database).Collection(assignmentsCollection)
}

func (r *StoryRepository) GetDueScheduledStories(ctx context.Context) ([]*model.Story, error) {
	filter := bson.M{
		"status":       model.StoryStatusScheduled,
		"scheduled_at": bson.M{"$lte": time.Now().UTC()},
	}
	cursor, err := r.stories().Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	return decodeStories(ctx, cursor)
}

func (r *StoryRepository) GetStory(ctx context.Context, id string) (*model.Story, error) {
	var story model.Story
	err := r.stories().FindOne(ctx, bson.M{"_id": id}).Decode(&story)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &story, nil
}

func (r *StoryRepository) GetStoriesAwaitingVideo(ctx context.Context, until time.Time) ([]*model.Story, error) {
	filter := bson.M{
		"status":                  model.StoryStatusScheduled,
		"media_type":              model.MediaTypeVideo,
		"video_generation_status": model.VideoGenPending,
		"scheduled_at":            bson.M{"$lte": until},
	}
	opts := options.Find().SetSort(bson.D{{Key: "scheduled_at", Value: 1}})
	cursor, err := r.stories().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return decodeStories(ctx, cursor)
}

func (r *StoryRepository) UpdateStory(ctx context.Context, id string, patch *model.StoryPatch) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.VideoGenerationStatus != nil {
		set["video_generation_status"] = *patch.VideoGenerationStatus
	}
	if patch.MediaURL != nil {
		set["media_url"] = *patch.MediaURL
	}
	if patch.MediaKey != nil {
		set["media_key"] = *patch.MediaKey
	}
	if patch.MediaSize != nil {
		set["media_size"] = *patch.MediaSize
	}
	if patch.MediaContentType != nil {
		set["media_content_type"] = *patch.MediaContentType
	}
	if patch.PublishedAt != nil {
		set["published_at"] = *patch.PublishedAt
	}
	_, err := r.stories().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

func (r *StoryRepository) AddPublishedPlatform(ctx context.Context, id string, platform model.Platform) error {
	update := bson.M{
		"$addToSet": bson.M{"published_platforms": platform},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}
	_, err := r.stories().UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

func (r *StoryRepository) GetAssignments(ctx context.Context, storyID string) ([]*model.Assignment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "assigned_at", Value: 1}})
	cursor, err := r.assignments().Find(ctx, bson.M{"story_id": storyID}, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while closing cursor")
		}
	}()

	var list []*model.Assignment
	for cursor.Next(ctx) {
		var a model.Assignment
		if err := cursor.Decode(&a); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while decoding assignment")
			continue
		}
		list = append(list, &a)
	}
	return list, cursor.Err()
}

func (r *StoryRepository) UpdateAssignment(ctx context.Context, storyID, accountID string, patch *model.AssignmentPatch) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	update := bson.M{}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.PublishedAt != nil {
		set["published_at"] = *patch.PublishedAt
	}
	if patch.LastError != nil {
		set["last_error"] = *patch.LastError
	}
	if patch.NextRetryAt != nil {
		set["next_retry_at"] = *patch.NextRetryAt
	} else if patch.ClearNextRetry {
		update["$unset"] = bson.M{"next_retry_at": ""}
	}
	if patch.ExternalRef != nil {
		set["external_ref"] = *patch.ExternalRef
	}
	if patch.IncRetryCount {
		update["$inc"] = bson.M{"retry_count": 1}
	}
	if patch.AppendError != nil {
		// Bounded history, most recent last.
		update["$push"] = bson.M{"error_history": bson.M{
			"$each":  []model.AssignmentError{*patch.AppendError},
			"$slice": -model.MaxErrorHistory,
		}}
	}
	update["$set"] = set

	filter := bson.M{"story_id": storyID, "account_id": accountID}
	_, err := r.assignments().UpdateOne(ctx, filter, update)
	return err
}

func decodeStories(ctx context.Context, cursor *mongo.Cursor) ([]*model.Story, error) {
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while closing cursor")
		}
	}()
	var stories []*model.Story
	for cursor.Next(ctx) {
		var s model.Story
		if err := cursor.Decode(&s); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while decoding story")
			continue
		}
		stories = append(stories, &s)
	}
	return stories, cursor.Err()
}
