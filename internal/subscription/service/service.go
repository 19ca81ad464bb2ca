package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"tenant-control-plane/core/internal/activity"
	activitydomain "tenant-control-plane/core/internal/activity/domain"
	billingdomain "tenant-control-plane/core/internal/billing/domain"
	"tenant-control-plane/core/internal/subscription/domain"
)

// Store is the subscription persistence needed by the service.
type Store interface {
	GetLiveByOrg(ctx context.Context, orgID string) (*domain.Subscription, error)
	Create(ctx context.Context, s *domain.Subscription) error
	Update(ctx context.Context, s *domain.Subscription) error
	ListLapsed(ctx context.Context, now time.Time) ([]*domain.Subscription, error)

	// ApplyEvent records the event ID, loads the org's live subscription, and
	// invokes apply with it (nil when the org has none), committing the event
	// row and the outcome in one transaction. apply returns update to persist
	// the mutated subscription, or a non-empty review reason to park the event
	// instead. Returns false without invoking apply when the event ID was
	// already recorded.
	ApplyEvent(ctx context.Context, eventID, orgID string, payload []byte, now time.Time,
		apply func(sub *domain.Subscription) (update bool, reviewReason string)) (bool, error)
}

// Service drives the subscription lifecycle: trial start, idempotent billing
// event application, explicit cancellation, and window expiry sweeps.
type Service struct {
	store       Store
	recorder    activity.Recorder
	maxRetries  int
	graceWindow time.Duration
	trialPeriod time.Duration
	nowF        func() time.Time
}

// NewService returns a subscription service. maxRetries is the number of
// failed charges in past_due before the subscription moves to grace.
func NewService(store Store, recorder activity.Recorder, maxRetries int, trialPeriod, graceWindow time.Duration) *Service {
	return &Service{
		store:       store,
		recorder:    recorder,
		maxRetries:  maxRetries,
		graceWindow: graceWindow,
		trialPeriod: trialPeriod,
		nowF:        func() time.Time { return time.Now().UTC() },
	}
}

// StartTrial creates a trialing subscription for the org. Called once at
// organization creation; a live subscription must not already exist.
func (s *Service) StartTrial(ctx context.Context, orgID string) (*domain.Subscription, error) {
	existing, err := s.store.GetLiveByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("org %s already has a live subscription", orgID)
	}
	now := s.nowF()
	sub := &domain.Subscription{
		ID:          uuid.New().String(),
		OrgID:       orgID,
		Status:      domain.StatusTrialing,
		TrialEndsAt: now.Add(s.trialPeriod),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Status returns the org's current subscription status. Orgs without a live
// subscription report cancelled, which fails closed at the authorization gate.
func (s *Service) Status(ctx context.Context, orgID string) (domain.Status, error) {
	sub, err := s.store.GetLiveByOrg(ctx, orgID)
	if err != nil {
		return "", err
	}
	if sub == nil {
		return domain.StatusCancelled, nil
	}
	return sub.Status, nil
}

// ApplyRaw parses and applies one raw billing event. Malformed events are
// parked for manual review and do not fail the consumer; only store errors
// are returned.
func (s *Service) ApplyRaw(ctx context.Context, raw []byte) error {
	ev, err := billingdomain.Parse(raw)
	if err != nil {
		// Reuse the event ID when one is present so redelivered malformed
		// events collapse onto a single review row.
		var partial struct {
			ID string `json:"event_id"`
		}
		_ = json.Unmarshal(raw, &partial)
		reviewID := partial.ID
		if reviewID == "" {
			reviewID = "unparsed-" + uuid.New().String()
		}
		log.Printf("billing: parking malformed event %s: %v", reviewID, err)
		reason := err.Error()
		_, ierr := s.store.ApplyEvent(ctx, reviewID, "", raw, s.nowF(),
			func(*domain.Subscription) (bool, string) { return false, reason })
		return ierr
	}
	return s.ApplyBillingEvent(ctx, ev)
}

// ApplyBillingEvent applies one billing event, idempotent by event ID: the ID
// and the transition commit in the same transaction, so a store failure rolls
// both back and the broker's redelivery applies the event cleanly. A duplicate
// delivery is a no-op. Events that cannot be applied (no live subscription, no
// legal transition) are parked for review rather than returned as errors,
// matching the at-least-once redelivery contract of the provider.
func (s *Service) ApplyBillingEvent(ctx context.Context, ev *billingdomain.Event) error {
	now := s.nowF()
	var prev, next domain.Status
	fresh, err := s.store.ApplyEvent(ctx, ev.ID, ev.OrgRef, ev.Payload, now,
		func(sub *domain.Subscription) (bool, string) {
			if sub == nil {
				log.Printf("billing: event %s for org %s with no live subscription", ev.ID, ev.OrgRef)
				return false, domain.ErrSubscriptionTerminal.Error()
			}
			prev = sub.Status
			if err := s.transition(sub, ev.Type, now); err != nil {
				log.Printf("billing: event %s (%s) has no transition from %s", ev.ID, ev.Type, prev)
				return false, err.Error()
			}
			sub.UpdatedAt = now
			next = sub.Status
			return true, ""
		})
	if err != nil || !fresh {
		return err
	}
	if next != "" && next != prev {
		s.recorder.Record(ctx, ev.OrgRef, "", activitydomain.ActionSubscriptionChanged,
			fmt.Sprintf("%s -> %s (event=%s)", prev, next, ev.ID))
	}
	return nil
}

// transition mutates sub according to the event type. Returns
// domain.ErrInvalidTransition when the event has no effect defined for the
// current state.
func (s *Service) transition(sub *domain.Subscription, t billingdomain.EventType, now time.Time) error {
	switch t {
	case billingdomain.EventPaymentCaptured:
		switch sub.Status {
		case domain.StatusTrialing, domain.StatusPastDue, domain.StatusGrace:
			sub.Status = domain.StatusActive
			sub.FailedCharges = 0
			sub.GraceEndsAt = nil
		case domain.StatusActive:
			// renewal; nothing to change
		default:
			return domain.ErrInvalidTransition
		}
	case billingdomain.EventChargeFailed:
		switch sub.Status {
		case domain.StatusActive:
			sub.Status = domain.StatusPastDue
			sub.FailedCharges = 1
		case domain.StatusPastDue:
			sub.FailedCharges++
			if sub.FailedCharges >= s.maxRetries {
				sub.Status = domain.StatusGrace
				graceEnd := now.Add(s.graceWindow)
				sub.GraceEndsAt = &graceEnd
			}
		case domain.StatusGrace:
			// access is preserved; the grace clock keeps running
			sub.FailedCharges++
		default:
			return domain.ErrInvalidTransition
		}
	case billingdomain.EventCancelled:
		s.cancel(sub, now)
	default:
		return domain.ErrInvalidTransition
	}
	return nil
}

// Cancel cancels the org's live subscription. Fails with
// domain.ErrSubscriptionTerminal when none exists; cancelled is terminal.
func (s *Service) Cancel(ctx context.Context, orgID string) error {
	sub, err := s.store.GetLiveByOrg(ctx, orgID)
	if err != nil {
		return err
	}
	if sub == nil {
		return domain.ErrSubscriptionTerminal
	}
	now := s.nowF()
	prev := sub.Status
	s.cancel(sub, now)
	sub.UpdatedAt = now
	if err := s.store.Update(ctx, sub); err != nil {
		return err
	}
	s.recorder.Record(ctx, sub.OrgID, "", activitydomain.ActionSubscriptionChanged,
		fmt.Sprintf("%s -> %s (explicit)", prev, sub.Status))
	return nil
}

func (s *Service) cancel(sub *domain.Subscription, now time.Time) {
	sub.Status = domain.StatusCancelled
	sub.GraceEndsAt = nil
	t := now
	sub.CancelledAt = &t
}

// ExpireOverdue cancels subscriptions whose trial or grace window elapsed
// without payment. Returns the number of subscriptions cancelled. Invoked
// periodically by the worker.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.nowF()
	lapsed, err := s.store.ListLapsed(ctx, now)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, sub := range lapsed {
		prev := sub.Status
		s.cancel(sub, now)
		sub.UpdatedAt = now
		if err := s.store.Update(ctx, sub); err != nil {
			return expired, err
		}
		expired++
		s.recorder.Record(ctx, sub.OrgID, "", activitydomain.ActionSubscriptionChanged,
			fmt.Sprintf("%s -> %s (window elapsed)", prev, sub.Status))
	}
	return expired, nil
}
