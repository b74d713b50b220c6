package sightings

import (
	"context"
	"encoding/json"
	"time"

	"github.com/findrapp/findr/internal/logger"
)

// EventSightingCreated is published after a sighting reaches the hosted store.
const EventSightingCreated = "sighting.created"

// Publisher delivers events. The MQTT client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic, payload string) error
}

// Event is the JSON payload of a published event.
type Event struct {
	Event     string    `json:"event"`
	Sighting  Sighting  `json:"sighting"`
	LocalID   string    `json:"localId,omitempty"` // set when the sighting was reconciled from the queue
	Timestamp time.Time `json:"timestamp"`
}

func (s *Service) publishCreated(ctx context.Context, created Sighting) {
	s.publish(ctx, Event{Event: EventSightingCreated, Sighting: created})
}

// publish is best effort; failures are logged.
func (s *Service) publish(ctx context.Context, ev Event) {
	if s.publisher == nil || s.topic == "" {
		return
	}
	ev.Timestamp = s.now().UTC()
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("failed to encode event", logger.String("event", ev.Event), logger.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, s.topic, string(payload)); err != nil {
		s.log.Warn("failed to publish event",
			logger.String("event", ev.Event),
			logger.String("topic", s.topic),
			logger.Error(err))
	}
}
