package logger

type nop struct{}

// NewNop returns a Logger that discards everything. Used by tests and as a
// nil-guard default.
func NewNop() Logger { return nop{} }

func (nop) Debug(string, ...any)      {}
func (nop) Info(string, ...any)       {}
func (nop) Warn(string, ...any)       {}
func (nop) Err(error, string, ...any) {}
