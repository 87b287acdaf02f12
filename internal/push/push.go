// Package push is the push dispatcher (§4.F): assembles a per-device payload
// carrying ring/level/witness_count/bearing/distance, delivers it via FCM, and
// reports per-token outcomes back to the caller (the fan-out engine) so that
// invalid tokens can be invalidated without ever blocking the ingestion path.
//
// Grounded on pkg/infrastructure/notifications/fcm.go's FCMAdapter; generalised
// from a single-user multicast call into a per-device payload batch with
// outcome reporting, since the teacher's adapter assumes one notification body
// shared by every token for one user, while fan-out needs a distinct bearing/
// distance per recipient device.
package push

import (
	"context"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"

	"github.com/ufobeep/beepnet/internal/beeperr"
)

// Payload is one device's fully-formed notification, built before send per
// §4.G's "per-device payload is fully formed before send" ordering guarantee.
type Payload struct {
	DeviceID string
	Token    string
	Title    string
	Body     string
	Data     map[string]string
}

// Outcome is the per-token delivery result reported back to the fan-out engine.
type Outcome struct {
	DeviceID       string
	Delivered      bool
	ErrorCode      string
	TokenInvalid   bool
}

// Dispatcher delivers payloads via FCM. Delivery is best-effort: it is never on
// the critical ingestion path (§4.F), so every method here takes its own ctx
// and returns quickly even on partial failure.
type Dispatcher struct {
	client *messaging.Client
	logger *slog.Logger
}

// NewDispatcher wraps a firebase App's messaging client.
func NewDispatcher(ctx context.Context, app *firebase.App, logger *slog.Logger) (*Dispatcher, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, beeperr.Wrap(beeperr.KindDispatchUnavailable, "push", "failed to init messaging client", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{client: client, logger: logger.With("component", "push")}, nil
}

// Send delivers a batch of payloads (typically one ring's worth of devices) in
// a single FCM multicast call and returns the per-device outcome for each.
// Fatal configuration errors (e.g. an uninitialised client) are the only case
// that yields a DispatchUnavailable error; partial per-token failures are
// reported as Outcomes, never as an error.
func (d *Dispatcher) Send(ctx context.Context, payloads []Payload) ([]Outcome, error) {
	if len(payloads) == 0 {
		return nil, nil
	}
	if d.client == nil {
		return nil, beeperr.New(beeperr.KindDispatchUnavailable, "push", "messaging client not configured")
	}

	outcomes := make([]Outcome, len(payloads))
	// FCM's SendEachForMulticast shares one title/body/data across all tokens;
	// our payloads are individualised, so group by identical body content to
	// minimise calls, falling back to one call per distinct payload.
	groups := groupByContent(payloads)

	for _, group := range groups {
		tokens := make([]string, len(group.indices))
		for i, idx := range group.indices {
			tokens[i] = payloads[idx].Token
		}

		message := &messaging.MulticastMessage{
			Tokens: tokens,
			Notification: &messaging.Notification{
				Title: group.payload.Title,
				Body:  group.payload.Body,
			},
			Data: group.payload.Data,
		}

		resp, err := d.client.SendEachForMulticast(ctx, message)
		if err != nil {
			d.logger.Error("multicast send failed", "error", err)
			for _, idx := range group.indices {
				outcomes[idx] = Outcome{DeviceID: payloads[idx].DeviceID, Delivered: false, ErrorCode: "send_failed"}
			}
			continue
		}

		for i, idx := range group.indices {
			r := resp.Responses[i]
			if r.Success {
				outcomes[idx] = Outcome{DeviceID: payloads[idx].DeviceID, Delivered: true}
				continue
			}
			invalid := r.Error != nil && messaging.IsRegistrationTokenNotRegistered(r.Error)
			outcomes[idx] = Outcome{
				DeviceID:     payloads[idx].DeviceID,
				Delivered:    false,
				ErrorCode:    errCode(r.Error),
				TokenInvalid: invalid,
			}
		}
	}

	return outcomes, nil
}

func errCode(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

type contentGroup struct {
	payload Payload
	indices []int
}

// groupByContent batches payloads that share identical title/body/data (common
// when many devices land in the same ring with the same witness-count-derived
// templates) so a single FCM multicast call can serve them.
func groupByContent(payloads []Payload) []contentGroup {
	var groups []contentGroup
	keyToGroup := map[string]int{}
	for i, p := range payloads {
		key := contentKey(p)
		if gi, ok := keyToGroup[key]; ok {
			groups[gi].indices = append(groups[gi].indices, i)
			continue
		}
		keyToGroup[key] = len(groups)
		groups = append(groups, contentGroup{payload: p, indices: []int{i}})
	}
	return groups
}

func contentKey(p Payload) string {
	key := p.Title + "\x00" + p.Body
	for _, k := range sortedKeys(p.Data) {
		key += "\x00" + k + "=" + p.Data[k]
	}
	return key
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		j := i
		for j > 0 && keys[j-1] > keys[j] {
			keys[j-1], keys[j] = keys[j], keys[j-1]
			j--
		}
	}
	return keys
}

// NoopDispatcher is used when push credentials are unconfigured: per §7,
// ingestion must still report total_alerted=0 rather than failing.
type NoopDispatcher struct{}

// Send reports every payload as undelivered without contacting any backend.
func (NoopDispatcher) Send(ctx context.Context, payloads []Payload) ([]Outcome, error) {
	outcomes := make([]Outcome, len(payloads))
	for i, p := range payloads {
		outcomes[i] = Outcome{DeviceID: p.DeviceID, Delivered: false, ErrorCode: "dispatch_unavailable"}
	}
	return outcomes, nil
}

// Sender abstracts Dispatcher/NoopDispatcher for the fan-out engine.
type Sender interface {
	Send(ctx context.Context, payloads []Payload) ([]Outcome, error)
}

var (
	_ Sender = (*Dispatcher)(nil)
	_ Sender = NoopDispatcher{}
)
