package agent

import (
	"context"
	"time"

	"pageguard/internal/backend"
	"pageguard/internal/config"
	"pageguard/internal/detect"
	"pageguard/internal/enforce"
	"pageguard/internal/extract"
	"pageguard/internal/heartbeat"
	"pageguard/internal/logger"
	"pageguard/internal/router"
	"pageguard/internal/session"
	"pageguard/internal/store"
	"pageguard/internal/watch"
	"pageguard/pkg/model"
)

// Agent wires the full pipeline: watcher → detector → router →
// enforcer/session tracker, with the credential store gating the
// network-facing flows and the heartbeat.
type Agent struct {
	cfg     *config.Config
	log     logger.Logger
	creds   *store.Credentials
	rtr     *router.Router
	watcher *watch.Watcher
	hb      *heartbeat.Scheduler
}

func New(cfg *config.Config) (*Agent, error) {
	log := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Writers: cfg.Log.Writer,
		File:    cfg.Log.File,
	})

	st, err := store.Open(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix,
		time.Duration(cfg.SearchTTLSeconds)*time.Second, log)
	if err != nil {
		return nil, err
	}

	creds := store.NewCredentials(cfg.CredentialFile, log)
	if err := creds.Load(); err != nil {
		return nil, err
	}

	client := backend.New(cfg.Backend.URL,
		time.Duration(cfg.Backend.TimeoutMS)*time.Millisecond, log)

	msgs := make(chan model.Message, 64)
	watcher := watch.New(watch.Config{
		DevToolsURL: cfg.DevTools.URL,
		PollEvery:   time.Duration(cfg.DevTools.PollMS) * time.Millisecond,
		DebounceFor: time.Duration(cfg.Detector.DebounceMS) * time.Millisecond,
		Detector: detect.Config{
			ScanInterval: time.Duration(cfg.Detector.ScanIntervalMS) * time.Millisecond,
			VerifyDelay:  time.Duration(cfg.Detector.VerifyDelayMS) * time.Millisecond,
			MaxAttempts:  cfg.Detector.MaxAttempts,
		},
	}, extract.New(st, log), msgs, log)

	enf := enforce.New(client, watcher, creds, cfg.BlockURL, log)
	tracker := session.NewTracker(st, client, creds, log)
	rtr := router.New(msgs, creds, enf, tracker, cfg.BlockURL, log)
	hb := heartbeat.New(client, creds,
		time.Duration(cfg.Heartbeat.DelayMS)*time.Millisecond,
		time.Duration(cfg.Heartbeat.PeriodMS)*time.Millisecond, log)

	return &Agent{cfg: cfg, log: log, creds: creds, rtr: rtr, watcher: watcher, hb: hb}, nil
}

// Run blocks until ctx is done.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.creds.Watch(ctx); err != nil {
		a.log.Warn("credential watch unavailable", "error", err)
	}
	a.creds.Subscribe(func(token string) {
		a.hb.Reconfigure(ctx, token)
	})
	a.hb.Reconfigure(ctx, a.creds.Token())

	go a.rtr.Run(ctx)
	a.log.Info("agent started",
		"devtools", a.cfg.DevTools.URL,
		"backend", a.cfg.Backend.URL,
		"credential", a.creds.Token() != "")
	a.watcher.Run(ctx)
	a.hb.Stop()
	a.log.Info("agent stopped")
	return nil
}
