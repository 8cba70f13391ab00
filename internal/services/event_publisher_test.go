package services

import (
	"context"
	"testing"

	"staypricing/internal/models"
	"staypricing/internal/utils"
	"staypricing/pkg/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedMessage struct {
	channel string
	message interface{}
}

type capturingMessagePublisher struct {
	messages []capturedMessage
}

func (p *capturingMessagePublisher) Publish(_ context.Context, channel string, message interface{}) error {
	p.messages = append(p.messages, capturedMessage{channel: channel, message: message})
	return nil
}

func TestRedisEventPublisherUsesCalendarChannel(t *testing.T) {
	transport := &capturingMessagePublisher{}
	dateRange := models.DateRange{Start: jul1, End: jul5}
	event := newCalendarEvent(utils.EventBulkPriceEdit, "42", &dateRange, models.ChannelAirbnb, []string{"r1"})

	require.NoError(t, NewRedisEventPublisher(transport).PublishCalendarUpdate(context.Background(), event))

	require.Len(t, transport.messages, 1)
	assert.Equal(t, utils.ChannelCalendarUpdates, transport.messages[0].channel)
	assert.Equal(t, event, transport.messages[0].message)
}

func TestNewCalendarEventWithoutRange(t *testing.T) {
	event := newCalendarEvent(utils.EventRuleDeleted, "", nil, "", []string{"r1"})

	assert.Empty(t, event.StartDate)
	assert.Empty(t, event.EndDate)
	assert.False(t, event.OccurredAt.IsZero())
}

func TestHubEventPublisherWithoutClients(t *testing.T) {
	hub := websocket.NewHub(nil)
	event := newCalendarEvent(utils.EventRuleCreated, "42", nil, "", nil)

	assert.NoError(t, NewHubEventPublisher(hub).PublishCalendarUpdate(context.Background(), event))
	assert.NoError(t, NewNopEventPublisher().PublishCalendarUpdate(context.Background(), event))
}
