// Package generation implements ResponseGenerator (spec §4.8): sandwich
// context assembly, domain system prompts, action-rule hints, and both
// single- and multi-domain synthesis, with a streaming variant.
package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hanbit-ai/advisor-rag/capability"
	"github.com/hanbit-ai/advisor-rag/document"
	"github.com/hanbit-ai/advisor-rag/domainlabel"
	"github.com/hanbit-ai/advisor-rag/tokenbudget"
)

// sourceSanitizer strips markup from retrieved document content before it
// is interpolated into a prompt, a defense against LLM-echoed or
// source-embedded HTML (spec §7.1's input-sanitization heuristic).
var sourceSanitizer = bluemonday.StrictPolicy()

// answerSanitizer renders the LLM's markdown-formatted answer to HTML and
// strips anything beyond a safe citation/formatting subset, so a returned
// answer can be displayed without re-sanitizing downstream.
var answerSanitizer = bluemonday.UGCPolicy()

func sanitizeSourceContent(content string) string {
	return sourceSanitizer.Sanitize(content)
}

// renderAnswer converts the model's markdown answer into sanitized HTML,
// mirroring the teacher's gomarkdown+bluemonday pairing.
func renderAnswer(markdownText string) string {
	opts := mdhtml.RendererOptions{Flags: mdhtml.CommonFlags}
	renderer := mdhtml.NewRenderer(opts)
	rendered := markdown.ToHTML([]byte(markdownText), nil, renderer)
	return answerSanitizer.Sanitize(string(rendered))
}

// GeneratedAnswer is ResponseGenerator's output. HTML is the sanitized
// rendering of Text for callers that display rich formatting directly;
// Text remains the raw model output for evaluation/caching/logging.
type GeneratedAnswer struct {
	Text  string
	HTML  string
	Usage capability.TokenUsage
}

// ActionSuggestion is a user-facing recommendation surfaced alongside the
// answer when an ActionRule's keyword matches the retrieved context.
type ActionSuggestion struct {
	Label string
	Hint  string
}

// Clone deep-copies the suggestion (spec §4.8 "instances are deep-copied to
// avoid shared mutable state" — ActionSuggestion has no reference fields
// today, but Clone keeps that invariant explicit as the type grows).
func (a ActionSuggestion) Clone() ActionSuggestion { return a }

// ActionRule maps a keyword to an ActionSuggestion template, evaluated
// before generation so matched labels can be injected into the system
// prompt (spec §4.8 "Actions").
type ActionRule struct {
	Keyword    string
	Suggestion ActionSuggestion
}

// domainActionRules are the curated per-domain action rules (spec §4.8).
var domainActionRules = map[domainlabel.Label][]ActionRule{
	domainlabel.HRLabor: {
		{Keyword: "해고", Suggestion: ActionSuggestion{Label: "해고 예고 통지 검토", Hint: "해고 예고 수당 지급 요건을 확인하세요."}},
		{Keyword: "퇴직금", Suggestion: ActionSuggestion{Label: "퇴직금 정산", Hint: "퇴직금 산정 기초임금과 근속기간을 확인하세요."}},
	},
	domainlabel.FinanceTax: {
		{Keyword: "부가가치세", Suggestion: ActionSuggestion{Label: "부가가치세 신고", Hint: "신고 기한 내 전자세금계산서 발행 여부를 확인하세요."}},
	},
	domainlabel.StartupFunding: {
		{Keyword: "지원금", Suggestion: ActionSuggestion{Label: "정부지원금 신청", Hint: "공고문의 신청 자격과 마감일을 확인하세요."}},
	},
	domainlabel.LawCommon: {
		{Keyword: "소송", Suggestion: ActionSuggestion{Label: "법적 절차 상담", Hint: "소송 전 내용증명 발송 등 사전 절차를 검토하세요."}},
	},
}

// matchActions evaluates a domain's ActionRules against the retrieved
// context, returning deep-copied suggestions for every matching rule.
func matchActions(domain domainlabel.Label, context string) []ActionSuggestion {
	var out []ActionSuggestion
	for _, rule := range domainActionRules[domain] {
		if strings.Contains(context, rule.Keyword) {
			out = append(out, rule.Suggestion.Clone())
		}
	}
	return out
}

// domainSystemPrompts are the grounding/citation rules per domain (spec
// §4.8).
var domainSystemPrompts = map[domainlabel.Label]string{
	domainlabel.StartupFunding: "당신은 대한민국 소상공인 창업 및 정부지원 전문 상담사입니다.",
	domainlabel.FinanceTax:     "당신은 대한민국 세무 및 회계 전문 상담사입니다.",
	domainlabel.HRLabor:        "당신은 대한민국 노무 및 인사 전문 상담사입니다.",
	domainlabel.LawCommon:      "당신은 대한민국 법률 전문 상담사입니다.",
}

const groundingRules = "\n\n제공된 문서의 내용에만 근거하여 답변하세요. 문서에 없는 사실이나 법령, 수치를 " +
	"지어내지 마세요. 각 주장에는 [n] 형식의 인용 번호를 표기하세요."

const domainTemperatureFallback = 0.1

// Config collects ResponseGenerator's tunable knobs (spec §6.5).
type Config struct {
	FormatContextLength int
	GenerationMaxTokens int
	StreamHardTimeout    time.Duration
	DomainTemperature   func(domainlabel.Label) float64
}

// RejectionMessage is the canonical out-of-scope response (spec §6.4),
// listing the supported domains.
func RejectionMessage() string {
	return "죄송하지만 이 질문은 창업/정부지원, 세무/회계, 노무/인사, 법률 상담 범위를 벗어난 것으로 보입니다. " +
		"해당 네 가지 분야에 대해 다시 질문해 주세요."
}

// ResponseGenerator implements spec §4.8.
type ResponseGenerator struct {
	cfg       Config
	llm       capability.LLM
	estimator *tokenbudget.Estimator
}

// NewResponseGenerator wires the generator's dependencies.
func NewResponseGenerator(cfg Config, llm capability.LLM, estimator *tokenbudget.Estimator) *ResponseGenerator {
	return &ResponseGenerator{cfg: cfg, llm: llm, estimator: estimator}
}

// sandwichOrder reorders scored documents per spec §4.8: highest at
// position 1, second-highest last, remainder in the middle.
func sandwichOrder(docs []document.Document) []document.Document {
	if len(docs) <= 2 {
		return docs
	}
	out := make([]document.Document, len(docs))
	out[0] = docs[0]
	out[len(out)-1] = docs[1]
	copy(out[1:len(out)-1], docs[2:])
	return out
}

func (g *ResponseGenerator) formatContext(docs []document.Document) string {
	ordered := sandwichOrder(docs)
	var sb strings.Builder
	for i, d := range ordered {
		content := tokenbudget.TruncateToChars(sanitizeSourceContent(d.Content), g.cfg.FormatContextLength)
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, content)
	}
	return sb.String()
}

// Generate implements the single-domain contract of spec §4.8.
func (g *ResponseGenerator) Generate(ctx context.Context, query string, docs []document.Document, domain domainlabel.Label) (GeneratedAnswer, error) {
	contextText := g.formatContext(docs)
	actions := matchActions(domain, contextText)

	systemPrompt := domainSystemPrompts[domain] + groundingRules
	if len(actions) > 0 {
		systemPrompt += "\n\n다음 조치를 참고하여 안내에 포함하세요:\n"
		for _, a := range actions {
			systemPrompt += fmt.Sprintf("- %s: %s\n", a.Label, a.Hint)
		}
	}

	temperature := domainTemperatureFallback
	if g.cfg.DomainTemperature != nil {
		temperature = g.cfg.DomainTemperature(domain)
	}

	resp, err := g.llm.Complete(ctx, []capability.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("참고 문서:\n%s\n\n질문: %s", contextText, query)},
	}, g.cfg.GenerationMaxTokens, temperature)
	if err != nil {
		return GeneratedAnswer{}, fmt.Errorf("generate answer: %w", err)
	}
	return GeneratedAnswer{Text: resp.Content, HTML: renderAnswer(resp.Content), Usage: resp.Usage}, nil
}

// DomainContext groups one domain's sub-query and retrieved documents for
// multi-domain synthesis.
type DomainContext struct {
	Domain   domainlabel.Label
	SubQuery string
	Docs     []document.Document
}

// GenerateMultiDomain implements the multi-domain contract of spec §4.8:
// one synthesis prompt covering every domain's sub-question in a dedicated
// section, with cross-references, still grounded and cited.
func (g *ResponseGenerator) GenerateMultiDomain(ctx context.Context, originalQuery string, domains []DomainContext) (GeneratedAnswer, error) {
	var sb strings.Builder
	sb.WriteString("원본 질문: " + originalQuery + "\n\n")

	var allActions []ActionSuggestion
	for _, dc := range domains {
		contextText := g.formatContext(dc.Docs)
		fmt.Fprintf(&sb, "=== %s 분야 질문: %s ===\n%s\n\n", dc.Domain, dc.SubQuery, contextText)
		allActions = append(allActions, matchActions(dc.Domain, contextText)...)
	}

	systemPrompt := "당신은 대한민국 소상공인을 위한 창업/세무/노무/법률 통합 상담사입니다. " +
		"각 분야 질문에 대해 별도의 섹션으로 답변하고, 분야 간 연관성이 있으면 상호 참조하세요." + groundingRules
	if len(allActions) > 0 {
		systemPrompt += "\n\n다음 조치를 참고하여 안내에 포함하세요:\n"
		for _, a := range allActions {
			systemPrompt += fmt.Sprintf("- %s: %s\n", a.Label, a.Hint)
		}
	}

	maxTokens := g.cfg.GenerationMaxTokens
	if maxTokens < 1500 {
		maxTokens = 1500 // spec §4.8: higher length cap for complex multi-domain questions
	}

	resp, err := g.llm.Complete(ctx, []capability.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: sb.String()},
	}, maxTokens, domainTemperatureFallback)
	if err != nil {
		return GeneratedAnswer{}, fmt.Errorf("generate multi-domain answer: %w", err)
	}
	return GeneratedAnswer{Text: resp.Content, HTML: renderAnswer(resp.Content), Usage: resp.Usage}, nil
}

// GenerateStream implements the streaming variant with a hard wall-clock
// cap that aborts stalled streams (spec §4.8, §5).
func (g *ResponseGenerator) GenerateStream(ctx context.Context, query string, docs []document.Document, domain domainlabel.Label) (<-chan capability.StreamChunk, error) {
	contextText := g.formatContext(docs)
	systemPrompt := domainSystemPrompts[domain] + groundingRules

	temperature := domainTemperatureFallback
	if g.cfg.DomainTemperature != nil {
		temperature = g.cfg.DomainTemperature(domain)
	}

	streamCtx := ctx
	var cancel context.CancelFunc
	if g.cfg.StreamHardTimeout > 0 {
		streamCtx, cancel = context.WithTimeout(ctx, g.cfg.StreamHardTimeout)
	}

	upstream, err := g.llm.Stream(streamCtx, []capability.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("참고 문서:\n%s\n\n질문: %s", contextText, query)},
	}, g.cfg.GenerationMaxTokens, temperature)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, fmt.Errorf("start stream: %w", err)
	}

	out := make(chan capability.StreamChunk)
	go func() {
		defer close(out)
		if cancel != nil {
			defer cancel()
		}
		for chunk := range upstream {
			select {
			case out <- chunk:
			case <-streamCtx.Done():
				return
			}
			if chunk.Done {
				return
			}
		}
	}()
	return out, nil
}
