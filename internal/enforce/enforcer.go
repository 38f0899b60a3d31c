package enforce

import (
	"context"
	"strings"

	"pageguard/internal/extract"
	"pageguard/internal/logger"
	"pageguard/pkg/model"
)

// Navigator is the abstract tab-navigation primitive.
type Navigator interface {
	Exists(ctx context.Context, tab model.TabID) bool
	CurrentURL(ctx context.Context, tab model.TabID) (string, error)
	Navigate(ctx context.Context, tab model.TabID, url string) error
}

// Classifier is the remote decision service.
type Classifier interface {
	CheckURL(ctx context.Context, token string, sum model.PageSummary) (model.Decision, error)
}

// TokenSource exposes the cached credential.
type TokenSource interface {
	Token() string
}

// Enforcer calls the classifier and applies the verdict to the tab.
// Any failure is treated as BLOCK: an unreachable classifier must not
// silently allow content through.
type Enforcer struct {
	classifier Classifier
	nav        Navigator
	creds      TokenSource
	blockURL   string
	log        logger.Logger
}

func New(classifier Classifier, nav Navigator, creds TokenSource, blockURL string, l logger.Logger) *Enforcer {
	if l == nil {
		l = logger.NewNop()
	}
	return &Enforcer{classifier: classifier, nav: nav, creds: creds, blockURL: blockURL, log: l}
}

// Check classifies one submission and redirects the tab on BLOCK.
func (e *Enforcer) Check(ctx context.Context, tab model.TabID, sum model.PageSummary) {
	dec, err := e.classifier.CheckURL(ctx, e.creds.Token(), sum)
	if err != nil {
		e.log.Err(err, "classifier unavailable, failing closed", "tab", string(tab), "url", sum.URL)
		dec = model.DecisionBlock
	} else {
		e.log.Debug("classifier verdict", "tab", string(tab), "url", sum.URL, "decision", string(dec))
	}
	if dec != model.DecisionBlock {
		return
	}
	e.block(ctx, tab, sum.URL)
}

func (e *Enforcer) block(ctx context.Context, tab model.TabID, verdictURL string) {
	if !e.nav.Exists(ctx, tab) {
		// tab closed before the verdict landed, benign race
		e.log.Warn("tab gone before block could be applied", "tab", string(tab))
		return
	}
	cur, err := e.nav.CurrentURL(ctx, tab)
	if err == nil {
		if strings.HasPrefix(cur, e.blockURL) {
			e.log.Debug("tab already on block page", "tab", string(tab))
			return
		}
		if extract.Identity(cur) != extract.Identity(verdictURL) {
			// superseding navigation, the verdict no longer applies
			e.log.Debug("stale verdict skipped", "tab", string(tab), "url", verdictURL, "current", cur)
			return
		}
	}
	if err := e.nav.Navigate(ctx, tab, e.blockURL); err != nil {
		e.log.Err(err, "block navigation failed", "tab", string(tab))
		return
	}
	e.log.Info("tab blocked", "tab", string(tab))
}
