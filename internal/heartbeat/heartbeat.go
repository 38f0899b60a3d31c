package heartbeat

import (
	"context"
	"sync"
	"time"

	"pageguard/internal/logger"
)

// Pinger performs one liveness ping.
type Pinger interface {
	Heartbeat(ctx context.Context, token string) error
}

// TokenSource exposes the cached credential.
type TokenSource interface {
	Token() string
}

// Scheduler keeps a repeating liveness timer alive while a credential is
// present and stops it when the credential goes away. Reconfigure is
// idempotent, so it can be wired directly to credential change
// notifications.
type Scheduler struct {
	pinger Pinger
	creds  TokenSource
	delay  time.Duration
	period time.Duration
	log    logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func New(p Pinger, creds TokenSource, delay, period time.Duration, l logger.Logger) *Scheduler {
	if l == nil {
		l = logger.NewNop()
	}
	if delay <= 0 {
		delay = time.Minute
	}
	if period <= 0 {
		period = 10 * time.Minute
	}
	return &Scheduler{pinger: p, creds: creds, delay: delay, period: period, log: l}
}

// Reconfigure matches the timer to credential presence. Called at startup
// and on every credential change.
func (s *Scheduler) Reconfigure(ctx context.Context, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" {
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
			s.log.Info("heartbeat stopped, credential removed")
		}
		return
	}
	if s.cancel != nil {
		return
	}
	lctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.log.Info("heartbeat scheduled", "delay", s.delay.String(), "period", s.period.String())
	go s.loop(lctx)
}

// Stop tears the timer down.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	// one ping right away on setup
	s.ping(ctx)
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return
	case <-t.C:
	}
	s.ping(ctx)
	tick := time.NewTicker(s.period)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			s.ping(ctx)
		}
	}
}

func (s *Scheduler) ping(ctx context.Context) {
	token := s.creds.Token()
	if token == "" {
		s.log.Debug("heartbeat skipped, no credential")
		return
	}
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.pinger.Heartbeat(cctx, token); err != nil {
		s.log.Warn("heartbeat failed", "error", err)
		return
	}
	s.log.Debug("heartbeat sent")
}
