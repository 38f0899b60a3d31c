package detect

import (
	"context"
	"time"

	"pageguard/internal/extract"
	"pageguard/internal/logger"
	"pageguard/pkg/model"
)

// Detector converts the raw trigger stream of one page context (navigation,
// history changes, DOM mutations) into a deduplicated stream of outbound
// submissions, tolerant of half-rendered reads.
//
// Per identity it moves through: scanning (bounded re-extraction until a
// fresh title appears), verifying (one delayed re-read must match the
// candidate before anything is sent), committed (locked until the identity
// changes). At most one timer is pending at any time.

type phase int

const (
	phaseIdle phase = iota
	phaseScanning
	phaseVerifying
)

// Snapshot re-reads the live page and runs extraction on it.
type Snapshot func(ctx context.Context) (model.Extraction, error)

type Config struct {
	ScanInterval time.Duration
	VerifyDelay  time.Duration
	MaxAttempts  int
}

func (c Config) withDefaults() Config {
	if c.ScanInterval <= 0 {
		c.ScanInterval = 500 * time.Millisecond
	}
	if c.VerifyDelay <= 0 {
		c.VerifyDelay = 250 * time.Millisecond
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 20
	}
	return c
}

type Detector struct {
	tab  model.TabID
	cfg  Config
	snap Snapshot
	out  chan<- model.Message
	log  logger.Logger

	triggers chan string

	// state below is owned by the Run goroutine
	phase     phase
	attempts  int
	candidate model.PageSummary
	curID     string
	lastID    string
	lastTitle string
	timer     *time.Timer
	timerC    <-chan time.Time
}

func New(tab model.TabID, cfg Config, snap Snapshot, out chan<- model.Message, l logger.Logger) *Detector {
	if l == nil {
		l = logger.NewNop()
	}
	return &Detector{
		tab:      tab,
		cfg:      cfg.withDefaults(),
		snap:     snap,
		out:      out,
		log:      l,
		triggers: make(chan string, 16),
	}
}

// Trigger feeds one navigation/mutation event. Never blocks; a full queue
// drops the event, the next one will resupply.
func (d *Detector) Trigger(url string) {
	select {
	case d.triggers <- url:
	default:
	}
}

// Run owns all detector state. It exits when ctx is done.
func (d *Detector) Run(ctx context.Context) {
	defer d.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-d.triggers:
			d.onTrigger(ctx, u)
		case <-d.timerC:
			d.onTimer(ctx)
		}
	}
}

func (d *Detector) onTrigger(ctx context.Context, rawURL string) {
	id := extract.Identity(rawURL)
	if id == d.lastID && d.lastTitle != "" {
		// locked: committed identity, ignore until it changes
		return
	}
	if id != d.curID {
		d.curID = id
		d.sendSessionSignal(rawURL)
	}
	d.stopTimer()
	d.phase = phaseScanning
	d.attempts = 0
	d.scan(ctx)
}

// scan performs one extraction attempt and decides whether the result is
// fresh enough to verify, needs another attempt, or exhausts the budget.
func (d *Detector) scan(ctx context.Context) {
	d.attempts++
	ex, err := d.snap(ctx)
	if err != nil {
		d.log.Debug("extraction attempt failed", "tab", string(d.tab), "attempt", d.attempts, "error", err)
		d.rescan()
		return
	}
	switch ex.Kind {
	case model.ExtractShortForm:
		// short-form bypasses freshness and verification entirely
		d.commit(ex.Summary)
	case model.ExtractNone:
		d.rescan()
	case model.ExtractPage:
		title := ex.Summary.Title
		if title != "" && title != d.lastTitle {
			d.candidate = ex.Summary
			d.phase = phaseVerifying
			d.resetTimer(d.cfg.VerifyDelay)
			return
		}
		if d.attempts >= d.cfg.MaxAttempts {
			// budget exhausted: accept what is present rather than starve.
			// Identity changed, so an unchanged title still submits.
			if ex.Summary.Submittable() {
				d.commit(ex.Summary)
			} else {
				d.idle()
			}
			return
		}
		d.resetTimer(d.cfg.ScanInterval)
	}
}

// rescan schedules the next attempt or gives up when the budget is spent.
func (d *Detector) rescan() {
	if d.attempts >= d.cfg.MaxAttempts {
		d.idle()
		return
	}
	d.resetTimer(d.cfg.ScanInterval)
}

func (d *Detector) onTimer(ctx context.Context) {
	d.timer = nil
	d.timerC = nil
	switch d.phase {
	case phaseScanning:
		d.scan(ctx)
	case phaseVerifying:
		d.verify(ctx)
	}
}

// verify re-reads the page once; a matching re-read commits the candidate,
// a differing one is flicker and sends us back to scanning.
func (d *Detector) verify(ctx context.Context) {
	ex, err := d.snap(ctx)
	if err == nil && ex.Kind == model.ExtractShortForm {
		d.commit(ex.Summary)
		return
	}
	if err == nil && ex.Kind == model.ExtractPage &&
		ex.Summary.Title == d.candidate.Title &&
		extract.Identity(ex.Summary.URL) == extract.Identity(d.candidate.URL) {
		d.commit(d.candidate)
		return
	}
	d.log.Debug("flicker detected, candidate discarded", "tab", string(d.tab), "title", d.candidate.Title)
	d.phase = phaseScanning
	d.rescan()
}

func (d *Detector) commit(sum model.PageSummary) {
	d.lastID = extract.Identity(sum.URL)
	d.curID = d.lastID
	d.lastTitle = sum.Title
	d.idle()
	select {
	case d.out <- model.Message{Kind: model.MsgPageData, Tab: d.tab, Summary: sum, URL: sum.URL}:
	default:
		d.log.Warn("submission dropped, message channel full", "tab", string(d.tab), "url", sum.URL)
	}
}

func (d *Detector) sendSessionSignal(url string) {
	entering := extract.IsShortForm(url)
	select {
	case d.out <- model.Message{Kind: model.MsgSessionSignal, Tab: d.tab, Entering: entering, URL: url}:
	default:
		d.log.Warn("session signal dropped, message channel full", "tab", string(d.tab))
	}
}

func (d *Detector) idle() {
	d.phase = phaseIdle
	d.stopTimer()
}

func (d *Detector) resetTimer(dur time.Duration) {
	d.stopTimer()
	d.timer = time.NewTimer(dur)
	d.timerC = d.timer.C
}

func (d *Detector) stopTimer() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
		d.timerC = nil
	}
}
