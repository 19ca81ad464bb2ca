// Package domain defines the inbound billing provider event contract. The
// provider delivers events at-least-once; consumers deduplicate by event ID.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType names a billing provider event.
type EventType string

const (
	// EventPaymentCaptured signals a successful payment or retry.
	EventPaymentCaptured EventType = "payment.captured"
	// EventChargeFailed signals a failed renewal charge.
	EventChargeFailed EventType = "charge.failed"
	// EventCancelled signals an explicit cancellation at the provider.
	EventCancelled EventType = "subscription.cancelled"
)

// Event is one billing provider webhook event relayed to the worker.
type Event struct {
	ID      string          `json:"event_id"`
	Type    EventType       `json:"type"`
	OrgRef  string          `json:"organization_ref"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrMalformedEvent is returned for events that cannot be parsed or are
// missing required fields. Such events are parked for manual review, never
// retried here.
var ErrMalformedEvent = errors.New("malformed billing event")

// Parse decodes and validates a raw billing event.
func Parse(raw []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.ID == "" {
		return nil, fmt.Errorf("%w: missing event_id", ErrMalformedEvent)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}
	if ev.OrgRef == "" {
		return nil, fmt.Errorf("%w: missing organization_ref", ErrMalformedEvent)
	}
	switch ev.Type {
	case EventPaymentCaptured, EventChargeFailed, EventCancelled:
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, ev.Type)
	}
	return &ev, nil
}
