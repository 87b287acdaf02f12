// Package fanoutdeferred subscribes to alertsvc.DeferredFanoutTopic and runs
// the ring fan-out that an ingestion held back because the sighting carried
// media (§6: "Fan-out runs immediately unless has_media=true, in which case
// fan-out is deferred until media upload completes"). Grounded on
// functions/router/function.go's CloudEvent registration and lazy service
// init, without its execution-log persistence — this repository has no
// execution-tracking entity in scope, only the sighting/witness/device model
// §3 names.
package fanoutdeferred

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/ufobeep/beepnet/internal/alertsvc"
	"github.com/ufobeep/beepnet/internal/bootstrap"
)

var (
	core     *bootstrap.Core
	coreOnce sync.Once
	coreErr  error
)

func init() {
	functions.CloudEvent("FanoutDeferred", FanoutDeferred)
}

func initCore(ctx context.Context) (*bootstrap.Core, error) {
	coreOnce.Do(func() {
		core, coreErr = bootstrap.NewCore(ctx, bootstrap.LoadConfig())
	})
	return core, coreErr
}

// pubSubMessage is the CloudEvent's Pub/Sub envelope.
type pubSubMessage struct {
	Message struct {
		Data []byte `json:"data"`
	} `json:"message"`
}

// FanoutDeferred is the CloudEvent entrypoint the Functions Framework
// dispatches to.
func FanoutDeferred(ctx context.Context, e event.Event) error {
	c, err := initCore(ctx)
	if err != nil {
		return fmt.Errorf("core init failed: %w", err)
	}

	var envelope pubSubMessage
	if err := e.DataAs(&envelope); err != nil {
		return fmt.Errorf("failed to decode event data: %w", err)
	}

	var msg alertsvc.DeferredFanoutMessage
	if err := json.Unmarshal(envelope.Message.Data, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal deferred fan-out message: %w", err)
	}

	logger := c.Logger.With("component", "fanout-deferred", "sighting_id", msg.SightingID)
	logger.Info("running deferred fan-out")

	result, err := c.RunDeferredFanout(ctx, msg)
	if err != nil {
		logger.Error("deferred fan-out failed", "error", err)
		return err
	}

	logger.Info("deferred fan-out complete", "total_sent", result.TotalSent)
	return nil
}
