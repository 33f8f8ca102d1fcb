package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/almarpuit/site/internal/content"
)

// ContentChangedMessage is the payload published after every successful content write.
type ContentChangedMessage struct {
	Type       string    `json:"type"`
	Table      string    `json:"table"`
	Op         string    `json:"op"`
	SectionKey string    `json:"sectionKey,omitempty"`
	SectionID  string    `json:"sectionId,omitempty"`
	Field      string    `json:"field,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	At         time.Time `json:"at"`
}

// MessageType identifies content change messages on the topic.
const MessageType = "content.changed"

// PubSubPublisher publishes content events to a Pub/Sub topic.
type PubSubPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubPublisher constructs a publisher for the given topic.
func NewPubSubPublisher(topic *pubsub.Topic) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub content publisher: topic is required")
	}
	return &PubSubPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishContentEvent implements content.EventPublisher.
func (p *PubSubPublisher) PublishContentEvent(ctx context.Context, event content.Event) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub content publisher: not initialised")
	}

	msg := ContentChangedMessage{
		Type:       MessageType,
		Table:      string(event.Table),
		Op:         string(event.Op),
		SectionKey: event.SectionKey,
		SectionID:  event.SectionID,
		Field:      event.Field,
		Actor:      event.Actor,
		At:         event.At.UTC(),
	}
	data, err := p.marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal content event: %w", err)
	}

	attrs := map[string]string{"type": MessageType}
	setAttr(attrs, "table", msg.Table)
	setAttr(attrs, "op", msg.Op)
	setAttr(attrs, "section", msg.SectionKey)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish content event: %w", err)
	}
	return nil
}

// Stop flushes pending messages.
func (p *PubSubPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
