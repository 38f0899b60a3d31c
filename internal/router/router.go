package router

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"pageguard/internal/ctxkeys"
	"pageguard/internal/logger"
	"pageguard/pkg/model"
)

// Enforcer handles decision requests.
type Enforcer interface {
	Check(ctx context.Context, tab model.TabID, sum model.PageSummary)
}

// SessionTracker handles session signals.
type SessionTracker interface {
	Handle(ctx context.Context, entering bool, url string)
}

// TokenSource exposes the cached credential.
type TokenSource interface {
	Token() string
}

// Router is the single entry point for messages from page contexts. It runs
// one goroutine: decision requests fan out to their own goroutines so many
// page contexts are served concurrently, session signals are handled inline
// so the durable session record has exactly one writer.
type Router struct {
	msgs     chan model.Message
	creds    TokenSource
	enforcer Enforcer
	sessions SessionTracker
	blockURL string
	log      logger.Logger
}

func New(msgs chan model.Message, creds TokenSource, enf Enforcer, sess SessionTracker, blockURL string, l logger.Logger) *Router {
	if l == nil {
		l = logger.NewNop()
	}
	if msgs == nil {
		msgs = make(chan model.Message, 64)
	}
	return &Router{
		msgs:     msgs,
		creds:    creds,
		enforcer: enf,
		sessions: sess,
		blockURL: blockURL,
		log:      l,
	}
}

// In is the send side handed to page contexts.
func (r *Router) In() chan<- model.Message { return r.msgs }

// Run consumes messages until ctx is done.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.msgs:
			r.dispatch(ctx, msg)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, msg model.Message) {
	mctx := context.WithValue(ctx, ctxkeys.TraceIDKey{}, uuid.NewString())
	if r.creds.Token() == "" {
		// inactive agent: silent no-op, no error surfaced to the sender
		r.log.Debug("message dropped, no credential", "kind", string(msg.Kind))
		return
	}
	switch msg.Kind {
	case model.MsgPageData:
		if strings.HasPrefix(msg.Summary.URL, r.blockURL) {
			// submitting the block page itself would loop
			r.log.Debug("block page submission ignored", "tab", string(msg.Tab))
			return
		}
		go r.enforcer.Check(mctx, msg.Tab, msg.Summary)
	case model.MsgSessionSignal:
		r.sessions.Handle(mctx, msg.Entering, msg.URL)
	default:
		r.log.Warn("unhandled message kind", "kind", string(msg.Kind), "tab", string(msg.Tab))
	}
}
