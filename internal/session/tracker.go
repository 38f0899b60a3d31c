package session

import (
	"context"
	"fmt"
	"time"

	"pageguard/internal/logger"
	"pageguard/internal/store"
	"pageguard/pkg/model"
)

const (
	startTitle  = "Started watching Shorts"
	startReason = "Shorts Session (Start)"
	endReason   = "Shorts Session (End)"
)

// Sink posts audit events to the remote log endpoint.
type Sink interface {
	LogEvent(ctx context.Context, token string, ev model.LogEvent) error
}

// TokenSource exposes the cached credential.
type TokenSource interface {
	Token() string
}

// Tracker aggregates continuous short-form viewing into one durable session
// record, logging only the start and end boundaries. It is called from a
// single goroutine (the router), so the durable record has one writer.
type Tracker struct {
	store *store.Store
	sink  Sink
	creds TokenSource
	log   logger.Logger
	now   func() time.Time
}

func NewTracker(s *store.Store, sink Sink, creds TokenSource, l logger.Logger) *Tracker {
	if l == nil {
		l = logger.NewNop()
	}
	return &Tracker{store: s, sink: sink, creds: creds, log: l, now: time.Now}
}

// Handle applies one entering/leaving signal. url is the page being entered
// (or, on leave, the destination the user navigated to).
func (t *Tracker) Handle(ctx context.Context, entering bool, url string) {
	if entering {
		started, err := t.store.EnterShorts(ctx, t.now().UnixMilli())
		if err != nil {
			t.log.Err(err, "shorts session update failed", "url", url)
			return
		}
		if !started {
			// continuing: count only, no event
			return
		}
		t.log.Info("shorts session started", "url", url)
		t.emit(ctx, model.LogEvent{
			Title:    startTitle,
			Reason:   startReason,
			Decision: model.DecisionAllow,
			URL:      url,
		})
		return
	}

	count, ended, err := t.store.EndShorts(ctx)
	if err != nil {
		t.log.Err(err, "shorts session teardown failed", "url", url)
		return
	}
	if !ended {
		return
	}
	t.log.Info("shorts session ended", "count", count, "url", url)
	t.emit(ctx, model.LogEvent{
		Title:    fmt.Sprintf("Finished watching Shorts (Total: %d)", count),
		Reason:   endReason,
		Decision: model.DecisionAllow,
		URL:      url,
	})
}

// emit is fire-and-forget: a failed audit log never blocks the user flow.
func (t *Tracker) emit(ctx context.Context, ev model.LogEvent) {
	if err := t.sink.LogEvent(ctx, t.creds.Token(), ev); err != nil {
		t.log.Warn("session event not delivered", "reason", ev.Reason, "error", err)
	}
}
