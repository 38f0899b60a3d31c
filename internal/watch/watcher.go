package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/rpcc"

	"pageguard/internal/detect"
	"pageguard/internal/extract"
	"pageguard/internal/logger"
	"pageguard/pkg/model"
)

// Watcher attaches to the browser's page targets over the DevTools
// protocol and runs one detector per attached page context. It also
// implements enforce.Navigator, so verdicts land on the same connection the
// page is observed through.
type Watcher struct {
	devtoolsURL string
	pollEvery   time.Duration
	debounceFor time.Duration
	detCfg      detect.Config
	extractor   *extract.Extractor
	out         chan<- model.Message
	log         logger.Logger

	mu      sync.Mutex
	targets map[model.TabID]*pageContext
}

type pageContext struct {
	id     model.TabID
	conn   *rpcc.Conn
	client *cdp.Client
	det    *detect.Detector
	cancel context.CancelFunc
}

type Config struct {
	DevToolsURL string
	PollEvery   time.Duration
	DebounceFor time.Duration
	Detector    detect.Config
}

func New(cfg Config, ex *extract.Extractor, out chan<- model.Message, l logger.Logger) *Watcher {
	if l == nil {
		l = logger.NewNop()
	}
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 3 * time.Second
	}
	if cfg.DebounceFor <= 0 {
		cfg.DebounceFor = 500 * time.Millisecond
	}
	return &Watcher{
		devtoolsURL: cfg.DevToolsURL,
		pollEvery:   cfg.PollEvery,
		debounceFor: cfg.DebounceFor,
		detCfg:      cfg.Detector,
		extractor:   ex,
		out:         out,
		log:         l,
		targets:     make(map[model.TabID]*pageContext),
	}
}

// Run discovers page targets until ctx is done, attaching to new ones and
// dropping vanished ones.
func (w *Watcher) Run(ctx context.Context) {
	w.sync(ctx)
	t := time.NewTicker(w.pollEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.detachAll()
			return
		case <-t.C:
			w.sync(ctx)
		}
	}
}

func (w *Watcher) sync(ctx context.Context) {
	dt := devtool.New(w.devtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		w.log.Warn("devtools target list failed", "error", err)
		return
	}
	seen := make(map[model.TabID]bool, len(targets))
	for _, t := range targets {
		if t.Type != devtool.Page {
			continue
		}
		id := model.TabID(t.ID)
		seen[id] = true
		w.mu.Lock()
		_, attached := w.targets[id]
		w.mu.Unlock()
		if !attached {
			w.attach(ctx, t)
		}
	}
	w.mu.Lock()
	var gone []*pageContext
	for id, pc := range w.targets {
		if !seen[id] {
			gone = append(gone, pc)
		}
	}
	w.mu.Unlock()
	for _, pc := range gone {
		w.remove(pc)
	}
}

func (w *Watcher) attach(ctx context.Context, t *devtool.Target) {
	pctx, cancel := context.WithCancel(ctx)
	conn, err := rpcc.DialContext(pctx, t.WebSocketDebuggerURL)
	if err != nil {
		cancel()
		w.log.Warn("target dial failed", "target", t.ID, "error", err)
		return
	}
	client := cdp.NewClient(conn)
	if err := client.Page.Enable(pctx); err != nil {
		conn.Close()
		cancel()
		w.log.Warn("page domain enable failed", "target", t.ID, "error", err)
		return
	}
	if err := client.DOM.Enable(pctx, nil); err != nil {
		w.log.Debug("dom domain enable failed", "target", t.ID, "error", err)
	}

	id := model.TabID(t.ID)
	pc := &pageContext{
		id:     id,
		conn:   conn,
		client: client,
		cancel: cancel,
	}
	pc.det = detect.New(id, w.detCfg, w.snapshotFn(client), w.out, w.log)

	w.mu.Lock()
	w.targets[id] = pc
	w.mu.Unlock()

	go pc.det.Run(pctx)
	go w.consume(pctx, pc)
	pc.det.Trigger(t.URL)
	w.log.Info("attached page target", "target", string(id), "url", t.URL)
}

// consume subscribes the trigger-bearing event streams. Any stream error
// tears down this page context only.
func (w *Watcher) consume(ctx context.Context, pc *pageContext) {
	nav, err := pc.client.Page.FrameNavigated(ctx)
	if err != nil {
		w.log.Warn("frameNavigated subscribe failed", "target", string(pc.id), "error", err)
		w.remove(pc)
		return
	}
	defer nav.Close()
	inDoc, err := pc.client.Page.NavigatedWithinDocument(ctx)
	if err != nil {
		w.log.Warn("navigatedWithinDocument subscribe failed", "target", string(pc.id), "error", err)
		w.remove(pc)
		return
	}
	defer inDoc.Close()
	loaded, err := pc.client.Page.LoadEventFired(ctx)
	if err != nil {
		w.log.Warn("loadEventFired subscribe failed", "target", string(pc.id), "error", err)
		w.remove(pc)
		return
	}
	defer loaded.Close()
	updated, err := pc.client.DOM.DocumentUpdated(ctx)
	if err != nil {
		w.log.Debug("documentUpdated subscribe failed", "target", string(pc.id), "error", err)
		updated = nil
	}
	if updated != nil {
		defer updated.Close()
	}

	// mutation bursts collapse into one trigger
	deb := debounce.New(w.debounceFor)
	mutated := func() { deb(func() { w.triggerLive(ctx, pc) }) }

	var wg sync.WaitGroup
	done := func(err error) {
		if ctx.Err() == nil {
			w.log.Warn("event stream interrupted, dropping target", "target", string(pc.id), "error", err)
		}
		w.remove(pc)
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		for {
			ev, err := nav.Recv()
			if err != nil {
				done(err)
				return
			}
			if !mainFrame(ev.Frame) {
				continue
			}
			pc.det.Trigger(ev.Frame.URL)
		}
	}()
	go func() {
		defer wg.Done()
		for {
			ev, err := inDoc.Recv()
			if err != nil {
				done(err)
				return
			}
			pc.det.Trigger(ev.URL)
		}
	}()
	go func() {
		defer wg.Done()
		for {
			if _, err := loaded.Recv(); err != nil {
				done(err)
				return
			}
			w.triggerLive(ctx, pc)
		}
	}()
	if updated != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if _, err := updated.Recv(); err != nil {
					// DOM stream loss is not fatal, navigation still triggers
					return
				}
				mutated()
			}
		}()
	}
	wg.Wait()
}

// mainFrame reports whether the frame is the top-level document; subframe
// navigations must not feed the detector.
func mainFrame(f page.Frame) bool {
	return f.ParentID == nil
}

// triggerLive reads the live URL and feeds it to the detector.
func (w *Watcher) triggerLive(ctx context.Context, pc *pageContext) {
	u, err := currentURL(ctx, pc.client)
	if err != nil {
		w.log.Debug("live url read failed", "target", string(pc.id), "error", err)
		return
	}
	pc.det.Trigger(u)
}

func (w *Watcher) remove(pc *pageContext) {
	w.mu.Lock()
	cur, ok := w.targets[pc.id]
	if !ok || cur != pc {
		w.mu.Unlock()
		return
	}
	delete(w.targets, pc.id)
	w.mu.Unlock()
	pc.cancel()
	pc.conn.Close()
	w.log.Info("detached page target", "target", string(pc.id))
}

func (w *Watcher) detachAll() {
	w.mu.Lock()
	all := make([]*pageContext, 0, len(w.targets))
	for _, pc := range w.targets {
		all = append(all, pc)
	}
	w.mu.Unlock()
	for _, pc := range all {
		w.remove(pc)
	}
}

func (w *Watcher) lookup(tab model.TabID) (*pageContext, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pc, ok := w.targets[tab]
	return pc, ok
}

// Exists implements enforce.Navigator.
func (w *Watcher) Exists(ctx context.Context, tab model.TabID) bool {
	_, ok := w.lookup(tab)
	return ok
}

// CurrentURL implements enforce.Navigator.
func (w *Watcher) CurrentURL(ctx context.Context, tab model.TabID) (string, error) {
	pc, ok := w.lookup(tab)
	if !ok {
		return "", fmt.Errorf("no such target %s", tab)
	}
	return currentURL(ctx, pc.client)
}

// Navigate implements enforce.Navigator.
func (w *Watcher) Navigate(ctx context.Context, tab model.TabID, url string) error {
	pc, ok := w.lookup(tab)
	if !ok {
		return fmt.Errorf("no such target %s", tab)
	}
	_, err := pc.client.Page.Navigate(ctx, page.NewNavigateArgs(url))
	return err
}
