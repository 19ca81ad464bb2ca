package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/metric/noop"
)

// fakeSource redelivers the oldest uncommitted message, like a broker does
// for a consumer group that fetched without committing. Once everything is
// committed it cancels the run context to stop the loop.
type fakeSource struct {
	msgs      []kafka.Message
	committed map[int64]bool
	cancel    context.CancelFunc
}

func newFakeSource(cancel context.CancelFunc, values ...string) *fakeSource {
	f := &fakeSource{committed: make(map[int64]bool), cancel: cancel}
	for i, v := range values {
		f.msgs = append(f.msgs, kafka.Message{Offset: int64(i), Value: []byte(v)})
	}
	return f
}

func (f *fakeSource) FetchMessage(ctx context.Context) (kafka.Message, error) {
	for _, m := range f.msgs {
		if !f.committed[m.Offset] {
			return m, nil
		}
	}
	f.cancel()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeSource) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed[m.Offset] = true
	}
	return nil
}

func (f *fakeSource) Close() error { return nil }

type flakyApplier struct {
	failures int
	applied  []string
}

func (a *flakyApplier) ApplyRaw(_ context.Context, raw []byte) error {
	if a.failures > 0 {
		a.failures--
		return errors.New("store unavailable")
	}
	a.applied = append(a.applied, string(raw))
	return nil
}

func newTestConsumer(t *testing.T, source messageSource, applier Applier) *Consumer {
	t.Helper()
	meter := noop.NewMeterProvider().Meter("test")
	applied, err := meter.Int64Counter("billing.events.applied")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	failed, err := meter.Int64Counter("billing.events.failed")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	return &Consumer{reader: source, applier: applier, eventsApplied: applied, eventsFailed: failed}
}

func TestRunAppliesAndCommitsInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := newFakeSource(cancel, "evt-1", "evt-2")
	applier := &flakyApplier{}

	if err := newTestConsumer(t, source, applier).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(applier.applied) != 2 || applier.applied[0] != "evt-1" || applier.applied[1] != "evt-2" {
		t.Fatalf("unexpected applied messages: %v", applier.applied)
	}
	if !source.committed[0] || !source.committed[1] {
		t.Fatalf("both offsets must be committed, got %v", source.committed)
	}
}

func TestRunDoesNotCommitFailedApply(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := newFakeSource(cancel, "evt-1")
	applier := &flakyApplier{failures: 1}

	if err := newTestConsumer(t, source, applier).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The first delivery failed; the offset stayed uncommitted, the message
	// came back, and only the successful apply committed it.
	if len(applier.applied) != 1 || applier.applied[0] != "evt-1" {
		t.Fatalf("event must be applied exactly once after retry: %v", applier.applied)
	}
	if !source.committed[0] {
		t.Fatal("offset must be committed after the successful apply")
	}
}
