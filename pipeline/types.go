// Package pipeline implements the request-level orchestration of spec
// §4.10: CLASSIFY -> [reject] -> DECOMPOSE -> RETRIEVE -> GENERATE ->
// EVALUATE -> [bounded retry] -> END, wired around classify, decompose,
// retrieval, generation, and evaluation. The step sequencing mirrors the
// node/edge/conditional-edge vocabulary of graph.StateGraph, implemented
// directly against RequestState rather than through that package's
// generic machinery (see DESIGN.md).
package pipeline

import (
	"time"

	"github.com/hanbit-ai/advisor-rag/capability"
	"github.com/hanbit-ai/advisor-rag/classify"
	"github.com/hanbit-ai/advisor-rag/decompose"
	"github.com/hanbit-ai/advisor-rag/document"
	"github.com/hanbit-ai/advisor-rag/domainlabel"
	"github.com/hanbit-ai/advisor-rag/evaluation"
	"github.com/hanbit-ai/advisor-rag/generation"
	"github.com/hanbit-ai/advisor-rag/retrieval"
)

// step names mirror the teacher's graph node vocabulary (AddNode,
// AddConditionalEdge, END) without depending on graph.StateGraph directly.
const (
	stepClassify  = "CLASSIFY"
	stepReject    = "REJECT"
	stepDecompose = "DECOMPOSE"
	stepRetrieve  = "RETRIEVE"
	stepGenerate  = "GENERATE"
	stepEvaluate  = "EVALUATE"
	stepRetryGen  = "RETRY_GENERATE"
	stepEnd       = "END"
)

// HistoryTurn is one prior conversation turn, threaded into decomposition
// for pronoun/ellipsis resolution (spec §4.5).
type HistoryTurn struct {
	Role    string
	Content string
}

// StepRecord is one named stage's wall-clock duration (spec §6.2
// timing_metrics.per_agent).
type StepRecord struct {
	Name     string
	Duration time.Duration
}

// TimingMetrics is the request's wall-clock trace (spec §6.2
// timing_metrics, §4.10 cancellation behavior).
type TimingMetrics struct {
	StartedAt    time.Time
	TotalElapsed time.Duration
	TimedOut     bool
	Steps        []StepRecord
}

// RequestState is the task-local state threaded through one query's run.
// It is never shared across requests or held in a package-level variable
// (spec §5: state is task-local, never a global).
type RequestState struct {
	RequestID              string
	Query                  string
	History                []HistoryTurn
	UserContextFingerprint string

	Classification classify.Classification
	SubQueries     []decompose.SubQuery
	Retrieval      retrieval.MergedResult

	Answer     generation.GeneratedAnswer
	Evaluation evaluation.Result
	RAGAS      *evaluation.RAGASMetrics
	Digest     *evaluation.Digest

	RetryCount int
	Rejected   bool
	FromCache  bool

	Usage  capability.Accounting
	Timing TimingMetrics

	stepName      string
	stepStartedAt time.Time
}

// DomainAnswer is one domain's contribution to a multi-domain answer,
// used when building generation.DomainContext inputs.
type DomainAnswer struct {
	Domain   domainlabel.Label
	SubQuery string
	Docs     []document.Document
}

// recordStep closes the currently-open step's duration (if any) and opens
// name as the new current step. Stages call this at their start, so
// duration can only be known in arrears -- recordStep is what closes the
// previous stage's clock.
func (s *RequestState) recordStep(name string) {
	s.closeStep()
	s.stepName = name
	s.stepStartedAt = time.Now()
}

func (s *RequestState) closeStep() {
	if s.stepName == "" {
		return
	}
	s.Timing.Steps = append(s.Timing.Steps, StepRecord{Name: s.stepName, Duration: time.Since(s.stepStartedAt)})
	s.stepName = ""
}

// finalizeSteps closes any still-open step and stamps TotalElapsed. Deferred
// once near the top of Router.Run so every return path -- reject, cache
// hit, normal completion, or error -- gets consistent timing without
// duplicating this logic at each return site.
func (s *RequestState) finalizeSteps() {
	s.closeStep()
	s.Timing.TotalElapsed = time.Since(s.Timing.StartedAt)
}

// stepNames returns the trace of step names executed, in order; used by
// tests and logging in place of the old flat []string Steps field.
func (s *RequestState) stepNames() []string {
	names := make([]string, len(s.Timing.Steps))
	for i, st := range s.Timing.Steps {
		names[i] = st.Name
	}
	return names
}
