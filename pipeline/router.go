package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hanbit-ai/advisor-rag/cache"
	"github.com/hanbit-ai/advisor-rag/capability"
	"github.com/hanbit-ai/advisor-rag/classify"
	"github.com/hanbit-ai/advisor-rag/config"
	"github.com/hanbit-ai/advisor-rag/decompose"
	"github.com/hanbit-ai/advisor-rag/document"
	"github.com/hanbit-ai/advisor-rag/domainlabel"
	"github.com/hanbit-ai/advisor-rag/evaluation"
	"github.com/hanbit-ai/advisor-rag/generation"
	"github.com/hanbit-ai/advisor-rag/retrieval"
)

// Router wires classify, decompose, retrieval, generation, and evaluation
// into the single end-to-end request flow of spec §4.10. It holds no
// per-request state of its own — every field here is shared, read-only
// wiring; everything request-scoped lives in RequestState.
type Router struct {
	cfg *config.Config

	llm      capability.LLM
	embedder capability.EmbeddingModel

	classifier   *classify.DomainClassifier
	decomposer   *decompose.QuestionDecomposer
	orchestrator *retrieval.Orchestrator
	generator    *generation.ResponseGenerator
	evaluator    *evaluation.AnswerEvaluator
	cacheStore   cache.Backend
}

// NewRouter builds a Router from the already-constructed subsystem
// components; each subsystem's own constructor handles its internal
// wiring (LLM, embedder, reranker, stores). llm and embedder are the same
// backends handed to the classifier/decomposer/evaluator -- the Router
// needs its own handle to them for post-eval alternative-query generation
// and optional RAGAS scoring, neither of which belongs to any one
// subsystem.
func NewRouter(
	cfg *config.Config,
	llm capability.LLM,
	embedder capability.EmbeddingModel,
	classifier *classify.DomainClassifier,
	decomposer *decompose.QuestionDecomposer,
	orchestrator *retrieval.Orchestrator,
	generator *generation.ResponseGenerator,
	evaluator *evaluation.AnswerEvaluator,
	cacheStore cache.Backend,
) *Router {
	return &Router{
		cfg:          cfg,
		llm:          llm,
		embedder:     embedder,
		classifier:   classifier,
		decomposer:   decomposer,
		orchestrator: orchestrator,
		generator:    generator,
		evaluator:    evaluator,
		cacheStore:   cacheStore,
	}
}

// Run executes the full pipeline for one query, honoring the request
// deadline (spec §4.10: a hard wall-clock cutoff that falls back to the
// best partial answer found so far).
func (r *Router) Run(ctx context.Context, query string, history []HistoryTurn, userContextFingerprint string) (result RequestState, err error) {
	state := RequestState{
		RequestID:              uuid.NewString(),
		Query:                  query,
		History:                history,
		UserContextFingerprint: userContextFingerprint,
		Usage:                  capability.Accounting{StartedAt: time.Now()},
		Timing:                 TimingMetrics{StartedAt: time.Now()},
	}
	// Finalize the returned copy: a plain `defer state.finalizeSteps()` would
	// run on the local after the result had already been copied out.
	defer func() { result.finalizeSteps() }()
	ctx = capability.WithAccounting(ctx, &state.Usage)

	if r.cfg.RequestDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RequestDeadline)
		defer cancel()
	}

	state.recordStep(stepClassify)
	state.Classification = r.classifier.Classify(ctx, query)

	if !state.Classification.IsRelevant || len(state.Classification.Domains) == 0 {
		state.recordStep(stepReject)
		state.Rejected = true
		state.Answer = generation.GeneratedAnswer{Text: generation.RejectionMessage()}
		return state, nil
	}

	if r.cfg.EnableResponseCache && r.cacheStore != nil {
		key := cache.Key(state.Classification.Domains, query, userContextFingerprint)
		if entry, ok := r.cacheStore.Get(ctx, key); ok {
			state.Answer = generation.GeneratedAnswer{Text: entry.Answer}
			state.FromCache = true
			return state, nil
		}
	}

	if err := r.runOnce(ctx, &state, query); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// The deadline expired mid-run: return the best snapshot
			// collected so far rather than propagating the error (spec §4.10
			// cancellation behavior).
			state.recordStep(stepEnd)
			state.Timing.TimedOut = true
			return state, nil
		}
		return state, err
	}

	if r.cfg.EnablePostEvalRetry && state.Evaluation.Verdict == evaluation.VerdictFail && state.RetryCount < r.cfg.MaxRetryCount {
		if err := r.retryWithAlternatives(ctx, &state); err != nil {
			// A retry failure falls back to the first-pass answer rather
			// than failing the whole request.
			_ = err
		}
	}

	r.computeRAGAS(ctx, &state)
	digest := evaluation.BuildDigest(string(state.Classification.Method), state.Evaluation, state.RAGAS, retryPathOf(&state))
	state.Digest = &digest

	if r.cfg.EnableResponseCache && r.cacheStore != nil && !state.Rejected {
		key := cache.Key(state.Classification.Domains, query, userContextFingerprint)
		ttl := r.shortestDomainTTL(state.Classification.Domains)
		_ = r.cacheStore.Set(ctx, key, cache.Entry{
			Answer: state.Answer.Text,
			Meta:   map[string]any{"origin_request_id": state.RequestID},
		}, ttl)
	}

	state.recordStep(stepEnd)
	return state, nil
}

// computeRAGAS scores the optional, log-only RAGAS metrics (spec §4.9) when
// enabled and both an LLM and an embedder are available. Failure here never
// fails the request -- RAGAS never gates retry or the response.
func (r *Router) computeRAGAS(ctx context.Context, state *RequestState) {
	if !r.cfg.EnableRAGASEvaluation || r.llm == nil || r.embedder == nil {
		return
	}
	contexts := make([]string, len(state.Retrieval.Documents))
	for i, d := range state.Retrieval.Documents {
		contexts[i] = d.Content
	}
	metrics, err := evaluation.ComputeRAGAS(ctx, r.llm, r.embedder, state.Query, state.Answer.Text, contexts, "")
	if err != nil {
		return
	}
	state.RAGAS = &metrics
}

// retryPathOf reports which retry mechanism (if any) produced state's final
// answer, for the evaluation_data digest (spec §6.2, §C.4).
func retryPathOf(state *RequestState) string {
	switch {
	case state.RetryCount > 0:
		return evaluation.RetryPathPostEval
	case state.Retrieval.NeedsRetry:
		return evaluation.RetryPathGraduatedRetrieval
	default:
		return evaluation.RetryPathNone
	}
}

// runOnce performs one DECOMPOSE -> RETRIEVE -> GENERATE -> EVALUATE pass
// for the given query text, writing results into state.
func (r *Router) runOnce(ctx context.Context, state *RequestState, query string) error {
	domains := state.Classification.Domains

	state.recordStep(stepDecompose)
	if len(domains) <= 1 {
		d := domainlabelOrZero(domains)
		state.SubQueries = []decompose.SubQuery{{Domain: d, Query: query}}
	} else {
		state.SubQueries = r.decomposer.Decompose(ctx, query, domains, historyToMessages(state.History))
	}

	state.recordStep(stepRetrieve)
	subQueries := make([]retrieval.SubQuery, len(state.SubQueries))
	for i, sq := range state.SubQueries {
		subQueries[i] = retrieval.SubQuery{Domain: sq.Domain, Query: sq.Query}
	}
	merged, err := r.orchestrator.Run(ctx, subQueries, query)
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}
	state.Retrieval = merged

	state.recordStep(stepGenerate)
	answer, err := r.generate(ctx, query, state)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	state.Answer = answer

	state.recordStep(stepEvaluate)
	threshold := r.cfg.EvaluationThreshold
	if len(domains) == 1 {
		threshold = r.cfg.DomainEvaluationThreshold(domains[0])
	}
	result, err := r.evaluator.Evaluate(ctx, query, answer.Text, formatEvaluatorContext(state.Retrieval), threshold)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	state.Evaluation = result
	return nil
}

// generate dispatches to single- or multi-domain generation depending on
// how many domains were classified.
func (r *Router) generate(ctx context.Context, query string, state *RequestState) (generation.GeneratedAnswer, error) {
	domains := state.Classification.Domains
	if len(domains) <= 1 {
		d := domainlabelOrZero(domains)
		return r.generator.Generate(ctx, query, state.Retrieval.Documents, d)
	}

	byDomain := make(map[string][]int)
	for i, d := range state.Retrieval.DomainOf {
		byDomain[string(d)] = append(byDomain[string(d)], i)
	}
	subQueryByDomain := make(map[string]string, len(state.SubQueries))
	for _, sq := range state.SubQueries {
		subQueryByDomain[string(sq.Domain)] = sq.Query
	}

	contexts := make([]generation.DomainContext, 0, len(domains))
	for _, d := range domains {
		idxs := byDomain[string(d)]
		docs := make([]document.Document, len(idxs))
		for i, idx := range idxs {
			docs[i] = state.Retrieval.Documents[idx]
		}
		contexts = append(contexts, generation.DomainContext{
			Domain:   d,
			SubQuery: subQueryByDomain[string(d)],
			Docs:     docs,
		})
	}
	return r.generator.GenerateMultiDomain(ctx, query, contexts)
}

// retryWithAlternatives implements spec §4.9's bounded post-evaluation
// retry: generate post_eval_alt_query_count alternative queries via the
// LLM, run retrieval+generation+evaluation for each, and keep the
// highest-scoring candidate (including the original first-pass answer).
func (r *Router) retryWithAlternatives(ctx context.Context, state *RequestState) error {
	state.RetryCount++
	state.recordStep(stepRetryGen)

	n := r.cfg.PostEvalAltQueryCount
	if n <= 0 {
		return nil
	}

	altQueries := r.generateAlternativeQueries(ctx, state.Query, n)
	if len(altQueries) == 0 {
		// The LLM failed or produced nothing usable: degrade gracefully to
		// the original first-pass answer rather than retrying with the
		// unchanged query, which could never change the outcome.
		return nil
	}

	candidates := []RequestState{*state}
	for _, altQuery := range altQueries {
		candidate := *state
		candidate.SubQueries = nil
		candidate.Retrieval = retrieval.MergedResult{}
		candidate.Timing.Steps = append([]StepRecord{}, state.Timing.Steps...)
		candidate.stepName = ""
		if err := r.runOnce(ctx, &candidate, altQuery); err != nil {
			continue
		}
		candidates = append(candidates, candidate)
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Evaluation.WeightedTotal > best.Evaluation.WeightedTotal {
			best = c
		}
	}
	best.RetryCount = state.RetryCount
	*state = best
	return nil
}

const alternativeQuerySystemPrompt = "Rewrite the following Korean small-business advisory question as " +
	"%d distinct paraphrases that preserve its meaning and target domain. Reply with exactly one " +
	"paraphrase per line, no numbering, no explanation."

// generateAlternativeQueries asks the LLM for up to n distinct paraphrases
// of query, for the bounded post-evaluation retry (spec §4.9). Returns nil
// on any LLM failure or empty response, never fabricated placeholders, so
// the caller can fall back to the original answer.
func (r *Router) generateAlternativeQueries(ctx context.Context, query string, n int) []string {
	if r.llm == nil || n <= 0 {
		return nil
	}

	resp, err := r.llm.Complete(ctx, []capability.Message{
		{Role: "system", Content: fmt.Sprintf(alternativeQuerySystemPrompt, n)},
		{Role: "user", Content: query},
	}, 512, 0.7)
	if err != nil {
		return nil
	}

	seen := map[string]struct{}{query: {}}
	var out []string
	for _, line := range strings.Split(resp.Content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
		if len(out) == n {
			break
		}
	}
	return out
}

func (r *Router) shortestDomainTTL(domains []domainlabel.Label) time.Duration {
	if len(domains) == 0 {
		return r.cfg.CacheTTL
	}
	shortest := r.cfg.DomainCacheTTL(domains[0])
	for _, d := range domains[1:] {
		if ttl := r.cfg.DomainCacheTTL(d); ttl < shortest {
			shortest = ttl
		}
	}
	return shortest
}

func domainlabelOrZero(domains []domainlabel.Label) domainlabel.Label {
	if len(domains) == 0 {
		return ""
	}
	return domains[0]
}

func historyToMessages(history []HistoryTurn) []capability.Message {
	msgs := make([]capability.Message, len(history))
	for i, h := range history {
		msgs[i] = capability.Message{Role: h.Role, Content: h.Content}
	}
	return msgs
}

// formatEvaluatorContext joins retrieved document content for the
// evaluator's context window; it deliberately does not reuse
// generation's sandwich ordering since the evaluator judges the retrieval
// set as a whole, not in generation-presentation order.
func formatEvaluatorContext(merged retrieval.MergedResult) string {
	docs := merged.Documents
	sorted := make([]string, len(docs))
	for i, d := range docs {
		sorted[i] = d.Content
	}
	sort.Strings(sorted) // stable, deterministic context ordering for the judge
	out := ""
	for i, c := range sorted {
		out += fmt.Sprintf("[%d] %s\n", i+1, c)
	}
	return out
}
