package services

import (
	"context"
	"encoding/json"
	"time"

	"staypricing/internal/models"
	"staypricing/internal/utils"
	"staypricing/pkg/logger"
	"staypricing/pkg/websocket"

	"github.com/redis/go-redis/v9"
)

// CalendarUpdatedEvent tells listeners that resolved prices changed for a
// property and date range. An empty PropertyID means every property.
type CalendarUpdatedEvent struct {
	Type       string         `json:"type"`
	PropertyID string         `json:"property_id,omitempty"`
	StartDate  string         `json:"start_date,omitempty"`
	EndDate    string         `json:"end_date,omitempty"`
	Channel    models.Channel `json:"channel,omitempty"`
	RuleIDs    []string       `json:"rule_ids,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func newCalendarEvent(eventType, propertyID string, dateRange *models.DateRange, channel models.Channel, ruleIDs []string) CalendarUpdatedEvent {
	event := CalendarUpdatedEvent{
		Type:       eventType,
		PropertyID: propertyID,
		Channel:    channel,
		RuleIDs:    ruleIDs,
		OccurredAt: time.Now().UTC(),
	}
	if dateRange != nil {
		event.StartDate = utils.FormatDate(dateRange.Start)
		event.EndDate = utils.FormatDate(dateRange.End)
	}
	return event
}

type EventPublisher interface {
	PublishCalendarUpdate(ctx context.Context, event CalendarUpdatedEvent) error
}

// MessagePublisher is satisfied by *cache.RedisCache.
type MessagePublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

type redisEventPublisher struct {
	publisher MessagePublisher
}

// NewRedisEventPublisher fans events out to every instance through Redis
// pub/sub. Each instance relays them to its own websocket hub.
func NewRedisEventPublisher(publisher MessagePublisher) EventPublisher {
	return &redisEventPublisher{publisher: publisher}
}

func (p *redisEventPublisher) PublishCalendarUpdate(ctx context.Context, event CalendarUpdatedEvent) error {
	return p.publisher.Publish(ctx, utils.ChannelCalendarUpdates, event)
}

type hubEventPublisher struct {
	hub *websocket.Hub
}

// NewHubEventPublisher delivers events straight to local websocket clients.
func NewHubEventPublisher(hub *websocket.Hub) EventPublisher {
	return &hubEventPublisher{hub: hub}
}

func (p *hubEventPublisher) PublishCalendarUpdate(_ context.Context, event CalendarUpdatedEvent) error {
	return p.hub.BroadcastCalendarUpdate(event.PropertyID, utils.EventCalendarUpdated, event)
}

type nopEventPublisher struct{}

func NewNopEventPublisher() EventPublisher {
	return nopEventPublisher{}
}

func (nopEventPublisher) PublishCalendarUpdate(context.Context, CalendarUpdatedEvent) error {
	return nil
}

// RelayCalendarUpdates forwards events received on the Redis channel to the
// local hub until ctx is done or the subscription is closed.
func RelayCalendarUpdates(ctx context.Context, sub *redis.PubSub, hub *websocket.Hub, log *logger.Logger) {
	defer sub.Close()

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var event CalendarUpdatedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.WithError(err).Warn("Dropping malformed calendar event")
				continue
			}
			if err := hub.BroadcastCalendarUpdate(event.PropertyID, utils.EventCalendarUpdated, event); err != nil {
				log.WithError(err).Warn("Failed to broadcast calendar event")
			}
		}
	}
}
