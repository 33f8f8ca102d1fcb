package events

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// Client owns the Pub/Sub client and the publisher bound to the configured topic.
type Client struct {
	client    *pubsub.Client
	Publisher *PubSubPublisher
}

// Dial connects to Pub/Sub and resolves the topic. The topic must already exist.
func Dial(ctx context.Context, projectID, topicID string, opts ...option.ClientOption) (*Client, error) {
	if projectID == "" || topicID == "" {
		return nil, errors.New("events: project id and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("events: new pubsub client: %w", err)
	}
	publisher, err := NewPubSubPublisher(client.Topic(topicID))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Client{client: client, Publisher: publisher}, nil
}

// Close stops the publisher and closes the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.Publisher.Stop()
	return c.client.Close()
}
