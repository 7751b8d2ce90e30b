package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/TimurManjosov/flagship-go-sdk/internal/transport"
)

// Item is one serialized event ready for the wire, tagged with its type so
// the batch payload can route it to the right array. Recovered durable rows
// and freshly produced events both become Items before dispatch.
type Item struct {
	Type Type
	Body []byte
}

// Serialize flattens one event to its wire shape: epoch-millis timestamp,
// identifier and property maps, and type-specific fields.
func Serialize(e UserEvent) (Item, error) {
	body, err := json.Marshal(wireShape(e))
	if err != nil {
		return Item{}, err
	}
	return Item{Type: e.EventType(), Body: body}, nil
}

func wireShape(e UserEvent) map[string]any {
	out := map[string]any{
		"insertId":       e.InsertID(),
		"timestamp":      e.Timestamp().UnixMilli(),
		"identifiers":    e.User().Identifiers,
		"userProperties": e.User().Properties,
	}
	switch ev := e.(type) {
	case Exposure:
		out["experimentId"] = ev.ExperimentID
		out["experimentKey"] = ev.ExperimentKey
		out["variationId"] = ev.VariationID
		out["variationKey"] = ev.VariationKey
		out["decisionReason"] = ev.Reason
		out["properties"] = ev.Properties
	case RemoteConfig:
		out["parameterId"] = ev.ParameterID
		out["parameterKey"] = ev.ParameterKey
		out["valueId"] = ev.ValueID
		out["decisionReason"] = ev.Reason
		out["properties"] = ev.Properties
	case Track:
		out["eventTypeId"] = ev.EventTypeID
		out["eventKey"] = ev.EventKey
		out["value"] = ev.Value
		out["properties"] = ev.Properties
	}
	return out
}

// Dispatcher delivers event batches to the collection endpoint as one JSON
// payload with an exposureEvents array and a trackEvents array. An item whose
// body is not valid JSON is dropped rather than failing the whole batch.
type Dispatcher struct {
	client   transport.Client
	endpoint string
	sdkKey   string
	logger   *slog.Logger
}

// NewDispatcher returns a dispatcher posting to <baseURL>/api/v2/events.
func NewDispatcher(client transport.Client, baseURL, sdkKey string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		client:   client,
		endpoint: baseURL + "/api/v2/events",
		sdkKey:   sdkKey,
		logger:   logger,
	}
}

type batchPayload struct {
	ExposureEvents []json.RawMessage `json:"exposureEvents"`
	TrackEvents    []json.RawMessage `json:"trackEvents"`
}

// Dispatch posts one batch. A non-2xx status or transport error is returned
// so the caller can preserve durable rows for retry.
func (d *Dispatcher) Dispatch(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	payload := batchPayload{
		ExposureEvents: make([]json.RawMessage, 0, len(items)),
		TrackEvents:    make([]json.RawMessage, 0),
	}
	for _, item := range items {
		if !json.Valid(item.Body) {
			d.logger.Warn("dropping invalid event payload", slog.Int("type", int(item.Type)))
			continue
		}
		switch item.Type {
		case TypeTrack:
			payload.TrackEvents = append(payload.TrackEvents, json.RawMessage(item.Body))
		default:
			payload.ExposureEvents = append(payload.ExposureEvents, json.RawMessage(item.Body))
		}
	}
	if len(payload.ExposureEvents) == 0 && len(payload.TrackEvents) == 0 {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event batch: %w", err)
	}

	resp, err := d.client.Execute(ctx, transport.Request{
		URL:  d.endpoint,
		Body: body,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"X-SDK-Key":    d.sdkKey,
		},
	})
	if err != nil {
		return fmt.Errorf("dispatch events: %w", err)
	}
	if !resp.Successful() {
		return fmt.Errorf("dispatch events: status %d", resp.StatusCode)
	}
	return nil
}
