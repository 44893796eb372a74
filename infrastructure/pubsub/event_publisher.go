package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"storycast/domain/model"
	"storycast/infrastructure/logger"
)

// NewPubSub creates the Pub/Sub client. A nil client is a valid result when
// no project is configured; the publisher then degrades to a no-op.
func NewPubSub(ctx context.Context, projectID string) (*pubsub.Client, error) {
	if projectID == "" {
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	return client, nil
}

// StoryEventPublisher pushes story/assignment transitions onto one topic.
type StoryEventPublisher struct {
	client *pubsub.Client
	topic  string
}

func NewStoryEventPublisher(client *pubsub.Client, topic string) *StoryEventPublisher {
	return &StoryEventPublisher{client: client, topic: topic}
}

func (p *StoryEventPublisher) PublishEvent(ctx context.Context, event model.StoryEvent) error {
	if p.client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	topic := p.client.Topic(p.topic)

	exists, err := topic.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		logger.GetLogger().WithField("topic", p.topic).Info("Topic doesn't exist - creating it")
		if _, err := p.client.CreateTopic(ctx, p.topic); err != nil {
			return err
		}
	}

	serverID, err := topic.Publish(ctx, &pubsub.Message{Data: payload}).Get(ctx)
	if err != nil {
		return err
	}
	logger.GetLogger().WithField("server ID", serverID).Debug("Event published")
	return nil
}
