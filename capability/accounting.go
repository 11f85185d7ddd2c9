package capability

import (
	"context"
	"time"
)

// Accounting is per-request token/timing bookkeeping (spec §5): threaded
// through the request context so LLM adapters -- the only place a real
// token count is known -- can record usage without every call chain
// threading a pipeline.RequestState parameter down into capability.
type Accounting struct {
	StartedAt        time.Time
	LLMCalls         int
	PromptTokens     int
	CompletionTokens int
}

// AddUsage folds one LLM call's token usage into the running total.
func (a *Accounting) AddUsage(promptTokens, completionTokens int) {
	a.LLMCalls++
	a.PromptTokens += promptTokens
	a.CompletionTokens += completionTokens
}

// Elapsed returns wall-clock time since the request began.
func (a *Accounting) Elapsed() time.Duration {
	if a.StartedAt.IsZero() {
		return 0
	}
	return time.Since(a.StartedAt)
}

// accountingKey is an unexported context key, mirroring the teacher's
// graph.WithConfig pattern (graph/utils.go) for attaching per-request
// values to a context without a package-level map.
type accountingKey struct{}

// WithAccounting attaches a to ctx, so LLM adapters reached deep inside a
// request (classify, decompose, generate, evaluate) can record usage via
// AccountingFromContext without changing every intervening signature.
func WithAccounting(ctx context.Context, a *Accounting) context.Context {
	return context.WithValue(ctx, accountingKey{}, a)
}

// AccountingFromContext retrieves the Accounting attached by
// WithAccounting, or nil if none was attached.
func AccountingFromContext(ctx context.Context) *Accounting {
	if a, ok := ctx.Value(accountingKey{}).(*Accounting); ok {
		return a
	}
	return nil
}
