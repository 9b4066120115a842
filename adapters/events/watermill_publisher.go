package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/vaultauth/ports"
)

const (
	TopicLogin  = "vaultauth.login"
	TopicLogout = "vaultauth.logout"
)

// SessionEvent is the payload published on login and logout
type SessionEvent struct {
	Address    string    `json:"address"`
	TokenID    string    `json:"token_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	now       func() time.Time
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		now:       time.Now,
	}
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, address string, tokenID string) error {
	return p.publish(ctx, TopicLogin, address, tokenID)
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, address string, tokenID string) error {
	return p.publish(ctx, TopicLogout, address, tokenID)
}

func (p *WatermillPublisher) publish(ctx context.Context, topic, address, tokenID string) error {
	event := SessionEvent{
		Address:    address,
		TokenID:    tokenID,
		OccurredAt: p.now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("token_id", tokenID)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
