package detect_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageguard/internal/detect"
	"pageguard/pkg/model"
)

func testConfig() detect.Config {
	return detect.Config{
		ScanInterval: 2 * time.Millisecond,
		VerifyDelay:  time.Millisecond,
		MaxAttempts:  4,
	}
}

// snapBox lets a test swap the page state under the detector.
type snapBox struct {
	mu sync.Mutex
	fn func() model.Extraction
}

func (b *snapBox) set(fn func() model.Extraction) {
	b.mu.Lock()
	b.fn = fn
	b.mu.Unlock()
}

func (b *snapBox) snap(ctx context.Context) (model.Extraction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fn(), nil
}

func pageEx(title, url string) model.Extraction {
	return model.Extraction{
		Kind:    model.ExtractPage,
		Summary: model.PageSummary{Title: title, URL: url},
	}
}

func start(t *testing.T, box *snapBox) (*detect.Detector, chan model.Message) {
	t.Helper()
	out := make(chan model.Message, 32)
	d := detect.New("tab-1", testConfig(), box.snap, out, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go d.Run(ctx)
	return d, out
}

func recv(t *testing.T, out chan model.Message) model.Message {
	t.Helper()
	select {
	case m := <-out:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return model.Message{}
	}
}

func recvKind(t *testing.T, out chan model.Message, kind model.MessageKind) model.Message {
	t.Helper()
	for {
		m := recv(t, out)
		if m.Kind == kind {
			return m
		}
	}
}

func expectNone(t *testing.T, out chan model.Message, wait time.Duration) {
	t.Helper()
	select {
	case m := <-out:
		t.Fatalf("unexpected message %q for %q", m.Kind, m.Summary.URL)
	case <-time.After(wait):
	}
}

func TestStableReadCommitsOnce(t *testing.T) {
	box := &snapBox{}
	box.set(func() model.Extraction { return pageEx("Article A", "https://example.com/a") })
	d, out := start(t, box)

	d.Trigger("https://example.com/a")

	sig := recv(t, out)
	require.Equal(t, model.MsgSessionSignal, sig.Kind)
	assert.False(t, sig.Entering)

	sub := recv(t, out)
	require.Equal(t, model.MsgPageData, sub.Kind)
	assert.Equal(t, "Article A", sub.Summary.Title)

	// committed identity is locked: repeated triggers are no-ops
	d.Trigger("https://example.com/a")
	d.Trigger("https://example.com/a")
	expectNone(t, out, 50*time.Millisecond)
}

func TestFlickerIsNeverSubmitted(t *testing.T) {
	box := &snapBox{}
	var calls int
	var mu sync.Mutex
	box.set(func() model.Extraction {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return pageEx("Half-rend", "https://example.com/post")
		}
		return pageEx("Stable Title", "https://example.com/post")
	})
	d, out := start(t, box)

	d.Trigger("https://example.com/post")
	recvKind(t, out, model.MsgSessionSignal)

	sub := recvKind(t, out, model.MsgPageData)
	assert.Equal(t, "Stable Title", sub.Summary.Title)
	expectNone(t, out, 50*time.Millisecond)
}

func TestIdenticalTitleAcrossIdentitiesStillSubmits(t *testing.T) {
	box := &snapBox{}
	box.set(func() model.Extraction { return pageEx("Same Title", "https://example.com/a") })
	d, out := start(t, box)

	d.Trigger("https://example.com/a")
	recvKind(t, out, model.MsgSessionSignal)
	first := recvKind(t, out, model.MsgPageData)
	require.Equal(t, "https://example.com/a", first.Summary.URL)

	// new identity renders the very same title: freshness never fires, the
	// attempt budget accepts it instead
	box.set(func() model.Extraction { return pageEx("Same Title", "https://example.com/b") })
	d.Trigger("https://example.com/b")
	recvKind(t, out, model.MsgSessionSignal)
	second := recvKind(t, out, model.MsgPageData)
	assert.Equal(t, "https://example.com/b", second.Summary.URL)
	assert.Equal(t, "Same Title", second.Summary.Title)
}

func TestShortFormBypassesVerification(t *testing.T) {
	const u = "https://www.youtube.com/shorts/abc123"
	box := &snapBox{}
	box.set(func() model.Extraction {
		return model.Extraction{Kind: model.ExtractShortForm, Summary: model.ShortFormFlag(u)}
	})
	d, out := start(t, box)

	d.Trigger(u)
	sig := recvKind(t, out, model.MsgSessionSignal)
	assert.True(t, sig.Entering)

	sub := recvKind(t, out, model.MsgPageData)
	assert.Equal(t, model.ShortFormTitle, sub.Summary.Title)
	assert.Equal(t, u, sub.Summary.URL)

	// re-entering the same item is locked out
	d.Trigger(u)
	expectNone(t, out, 50*time.Millisecond)
}

func TestNoDataGivesUpWithoutSubmitting(t *testing.T) {
	box := &snapBox{}
	box.set(func() model.Extraction { return model.Extraction{Kind: model.ExtractNone} })
	d, out := start(t, box)

	d.Trigger("https://example.com/empty")
	recvKind(t, out, model.MsgSessionSignal)
	expectNone(t, out, 100*time.Millisecond)

	// content appearing later plus a fresh trigger still gets through
	box.set(func() model.Extraction { return pageEx("Late Title", "https://example.com/empty") })
	d.Trigger("https://example.com/empty")
	sub := recvKind(t, out, model.MsgPageData)
	assert.Equal(t, "Late Title", sub.Summary.Title)
}

func TestNewTriggerMidScanRestartsForNewIdentity(t *testing.T) {
	box := &snapBox{}
	box.set(func() model.Extraction { return model.Extraction{Kind: model.ExtractNone} })
	d, out := start(t, box)

	d.Trigger("https://example.com/slow")
	recvKind(t, out, model.MsgSessionSignal)

	box.set(func() model.Extraction { return pageEx("Next Page", "https://example.com/next") })
	d.Trigger("https://example.com/next")
	recvKind(t, out, model.MsgSessionSignal)
	sub := recvKind(t, out, model.MsgPageData)
	assert.Equal(t, "https://example.com/next", sub.Summary.URL)
}
