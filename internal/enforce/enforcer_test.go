package enforce_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"pageguard/internal/enforce"
	"pageguard/pkg/model"
)

const blockURL = "https://dashboard.example.com/blocked"

type fakeClassifier struct {
	dec model.Decision
	err error
}

func (f *fakeClassifier) CheckURL(ctx context.Context, token string, sum model.PageSummary) (model.Decision, error) {
	return f.dec, f.err
}

type fakeNav struct {
	mu        sync.Mutex
	exists    bool
	current   string
	navigated []string
}

func (f *fakeNav) Exists(ctx context.Context, tab model.TabID) bool { return f.exists }

func (f *fakeNav) CurrentURL(ctx context.Context, tab model.TabID) (string, error) {
	return f.current, nil
}

func (f *fakeNav) Navigate(ctx context.Context, tab model.TabID, url string) error {
	f.mu.Lock()
	f.navigated = append(f.navigated, url)
	f.mu.Unlock()
	return nil
}

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newEnforcer(cl *fakeClassifier, nav *fakeNav) *enforce.Enforcer {
	return enforce.New(cl, nav, staticToken("tok"), blockURL, nil)
}

func summary() model.PageSummary {
	return model.PageSummary{Title: "t", URL: "https://example.com/a"}
}

func TestBlockVerdictRedirects(t *testing.T) {
	nav := &fakeNav{exists: true, current: "https://example.com/a"}
	e := newEnforcer(&fakeClassifier{dec: model.DecisionBlock}, nav)

	e.Check(context.Background(), "tab-1", summary())
	assert.Equal(t, []string{blockURL}, nav.navigated)
}

func TestAllowVerdictDoesNothing(t *testing.T) {
	nav := &fakeNav{exists: true, current: "https://example.com/a"}
	e := newEnforcer(&fakeClassifier{dec: model.DecisionAllow}, nav)

	e.Check(context.Background(), "tab-1", summary())
	assert.Empty(t, nav.navigated)
}

func TestClassifierFailureFailsClosed(t *testing.T) {
	nav := &fakeNav{exists: true, current: "https://example.com/a"}
	e := newEnforcer(&fakeClassifier{err: errors.New("boom")}, nav)

	e.Check(context.Background(), "tab-1", summary())
	assert.Equal(t, []string{blockURL}, nav.navigated)
}

func TestAlreadyOnBlockPageIsNoop(t *testing.T) {
	nav := &fakeNav{exists: true, current: blockURL}
	e := newEnforcer(&fakeClassifier{dec: model.DecisionBlock}, nav)

	e.Check(context.Background(), "tab-1", summary())
	assert.Empty(t, nav.navigated)
}

func TestStaleVerdictNotApplied(t *testing.T) {
	// the tab moved on before the verdict landed
	nav := &fakeNav{exists: true, current: "https://example.com/somewhere-else"}
	e := newEnforcer(&fakeClassifier{dec: model.DecisionBlock}, nav)

	e.Check(context.Background(), "tab-1", summary())
	assert.Empty(t, nav.navigated)
}

func TestMissingTabIsBenign(t *testing.T) {
	nav := &fakeNav{exists: false}
	e := newEnforcer(&fakeClassifier{dec: model.DecisionBlock}, nav)

	e.Check(context.Background(), "tab-1", summary())
	assert.Empty(t, nav.navigated)
}
