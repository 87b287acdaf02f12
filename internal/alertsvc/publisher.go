package alertsvc

import (
	"context"
	"encoding/json"
	"log/slog"

	"cloud.google.com/go/pubsub"
)

// DeferredFanoutTopic is the Pub/Sub topic functions/fanout-deferred
// subscribes to in order to run a sighting's ring fan-out once its media
// upload completes (§6: "Fan-out runs immediately unless has_media=true, in
// which case fan-out is deferred until media upload completes").
const DeferredFanoutTopic = "sighting-fanout-deferred"

// DeferredFanoutMessage is the payload published to DeferredFanoutTopic, also
// what functions/fanout-deferred unmarshals on the subscribing side.
type DeferredFanoutMessage struct {
	SightingID        string  `json:"sighting_id"`
	Lat               float64 `json:"lat"`
	Lon               float64 `json:"lon"`
	SubmitterDeviceID string  `json:"submitter_device_id"`
}

// Publisher abstracts the Pub/Sub publish call, grounded on
// pkg/infrastructure/pubsub/publisher.go's PubSubAdapter/LogPublisher pair.
type Publisher interface {
	Publish(ctx context.Context, topicID string, data []byte) (string, error)
}

// PubSubPublisher is the production Publisher, backed by a real topic client.
type PubSubPublisher struct {
	Client *pubsub.Client
}

func (p *PubSubPublisher) Publish(ctx context.Context, topicID string, data []byte) (string, error) {
	topic := p.Client.Topic(topicID)
	result := topic.Publish(ctx, &pubsub.Message{Data: data})
	return result.Get(ctx)
}

// LogPublisher logs instead of publishing, for local development and tests
// that don't need a real Pub/Sub emulator.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p *LogPublisher) Publish(ctx context.Context, topicID string, data []byte) (string, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mock publish", "topic", topicID, "data", string(data))
	return "mock-msg-id", nil
}

func publishDeferredFanout(ctx context.Context, pub Publisher, logger *slog.Logger, msg DeferredFanoutMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("failed to marshal deferred fan-out message", "error", err)
		return
	}
	if _, err := pub.Publish(ctx, DeferredFanoutTopic, data); err != nil {
		logger.Error("failed to publish deferred fan-out message", "sighting_id", msg.SightingID, "error", err)
	}
}
