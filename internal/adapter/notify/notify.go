// Package notify implements secondary.Notifier adapters.
package notify

import (
	"context"
	"errors"
	"sync"

	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/ports/secondary"
	"gitlab.com/baseline-2025.net/internal/domain"
)

var (
	_ secondary.Notifier = (*LogNotifier)(nil)
	_ secondary.Notifier = (Fanout)(nil)
	_ secondary.Notifier = (*Recorder)(nil)
)

// LogNotifier writes events to the service log
type LogNotifier struct {
	logger primary.Logger
}

func NewLogNotifier(logger primary.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, event domain.Event) error {
	n.logger.Info("Pipeline event",
		"type", event.Type,
		"team", event.TeamSlug,
		"suite", event.SuiteSlug,
		"batchId", event.BatchID,
		"version", event.Version,
		"testcase", event.Testcase,
		"subscribers", len(event.SubscriberIDs))
	return nil
}

// Fanout delivers each event to every notifier and joins their errors
type Fanout []secondary.Notifier

func (f Fanout) Notify(ctx context.Context, event domain.Event) error {
	var errList []error
	for _, n := range f {
		if err := n.Notify(ctx, event); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// Recorder keeps delivered events in memory
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(ctx context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// OfType returns the recorded events of one type
func (r *Recorder) OfType(eventType domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Event, 0)
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
