// Package classify implements DomainClassifier (spec §4.4): LLM-based,
// keyword/compound-rule, and vector-centroid domain classification with
// union semantics across the three signals.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hanbit-ai/advisor-rag/capability"
	"github.com/hanbit-ai/advisor-rag/domainlabel"
	"github.com/hanbit-ai/advisor-rag/korean"
)

// Method records which signal(s) produced a Classification (spec §3.1),
// for observability and for evaluation_data digests built downstream.
type Method string

const (
	MethodLLM             Method = "llm"
	MethodKeyword         Method = "keyword"
	MethodVector          Method = "vector"
	MethodKeywordVector   Method = "keyword+vector"
	MethodFallbackRejected Method = "fallback_rejected"
	MethodLLMRetryFailed  Method = "llm_retry_failed"
)

// Classification is the result of classifying one query.
type Classification struct {
	Domains       []domainlabel.Label
	IsRelevant    bool
	LLMRetryFailed bool
	Confidence    map[domainlabel.Label]float64
	Method          Method
	MatchedKeywords []string
}

const classifierSystemPrompt = "You classify a Korean small-business advisory question into zero or more " +
	"of these domains: startup_funding, finance_tax, hr_labor, law_common. Reply as JSON: " +
	"{\"domains\": [{\"domain\": \"...\", \"confidence\": 0.0-1.0}, ...]}. If the question is unrelated " +
	"to small-business advisory, reply {\"domains\": []}."

// KeywordStore resolves a domain's keyword set, DB-backed in production
// with the embedded domainlabel.DefaultKeywordSets as fallback (spec §4.4
// step 2).
type KeywordStore interface {
	KeywordSet(ctx context.Context, domain domainlabel.Label) (domainlabel.KeywordSet, error)
}

// CentroidStore resolves a domain's representative-query centroid
// embedding (spec §4.4 step 3).
type CentroidStore interface {
	Centroid(ctx context.Context, domain domainlabel.Label) ([]float32, error)
}

// Config collects the classifier's tunable thresholds (spec §6.5).
type Config struct {
	EnableLLM                   bool
	DomainClassificationThreshold float64
	MultiDomainGapThreshold      float64
	KeywordHitRatioBoostThreshold float64
	KeywordBoostDelta            float64
}

// DomainClassifier implements spec §4.4.
type DomainClassifier struct {
	cfg       Config
	llm       capability.LLM
	embedder  capability.EmbeddingModel
	keywords  KeywordStore
	centroids CentroidStore
}

// NewDomainClassifier wires the classifier's dependencies.
func NewDomainClassifier(cfg Config, llm capability.LLM, embedder capability.EmbeddingModel, keywords KeywordStore, centroids CentroidStore) *DomainClassifier {
	return &DomainClassifier{cfg: cfg, llm: llm, embedder: embedder, keywords: keywords, centroids: centroids}
}

// Classify implements spec §4.4's full algorithm.
func (c *DomainClassifier) Classify(ctx context.Context, query string) Classification {
	if c.cfg.EnableLLM {
		if result, ok := c.classifyWithLLM(ctx, query, false); ok {
			return result
		}
		// retry once (spec §4.4 step 1)
		if result, ok := c.classifyWithLLM(ctx, query, false); ok {
			return result
		}
		return Classification{IsRelevant: true, LLMRetryFailed: true, Method: MethodLLMRetryFailed}
	}
	return c.classifyWithHeuristics(ctx, query)
}

func (c *DomainClassifier) classifyWithLLM(ctx context.Context, query string, _ bool) (Classification, bool) {
	resp, err := c.llm.Complete(ctx, []capability.Message{
		{Role: "system", Content: classifierSystemPrompt},
		{Role: "user", Content: query},
	}, 256, 0.0)
	if err != nil {
		return Classification{}, false
	}

	var parsed struct {
		Domains []struct {
			Domain     string  `json:"domain"`
			Confidence float64 `json:"confidence"`
		} `json:"domains"`
	}
	content := strings.TrimSpace(resp.Content)
	if idx := strings.Index(content, "{"); idx > 0 {
		content = content[idx:]
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return Classification{}, false
	}

	result := Classification{Confidence: map[domainlabel.Label]float64{}}
	for _, d := range parsed.Domains {
		label, err := domainlabel.Resolve(d.Domain)
		if err != nil {
			continue
		}
		result.Domains = append(result.Domains, label)
		result.Confidence[label] = d.Confidence
	}
	result.IsRelevant = len(result.Domains) > 0
	result.Method = MethodLLM
	return result, true
}

// classifyWithHeuristics runs the keyword/compound-rule and vector-centroid
// signals and combines them with union semantics (spec §4.4 steps 2-6).
func (c *DomainClassifier) classifyWithHeuristics(ctx context.Context, query string) Classification {
	lemmas := korean.Lemmas(query)

	type scoredDomain struct {
		label        domainlabel.Label
		vecScore     float64
		keywordRatio float64
		hitKeywords  []string
	}
	var scored []scoredDomain

	queryVec, embErr := c.embedder.Embed(ctx, query)

	for _, label := range domainlabel.All {
		ks, err := c.keywords.KeywordSet(ctx, label)
		if err != nil {
			ks = domainlabel.DefaultKeywordSets[label]
		}

		hits := 0
		var hitKeywords []string
		for lemma := range lemmas {
			if ks.Contains(lemma) {
				hits++
				hitKeywords = append(hitKeywords, lemma)
			}
		}
		hits += ks.MatchCompoundRules(lemmas)
		keywordRatio := 0.0
		if len(lemmas) > 0 {
			keywordRatio = float64(hits) / float64(len(lemmas))
		}

		vecScore := 0.0
		if embErr == nil {
			if centroid, err := c.centroids.Centroid(ctx, label); err == nil {
				vecScore = cosine(queryVec, centroid)
			}
		}
		if keywordRatio >= c.cfg.KeywordHitRatioBoostThreshold {
			vecScore += c.cfg.KeywordBoostDelta
		}

		scored = append(scored, scoredDomain{label: label, vecScore: vecScore, keywordRatio: keywordRatio, hitKeywords: hitKeywords})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].vecScore > scored[j].vecScore })

	var vecAccepted []domainlabel.Label
	confidence := map[domainlabel.Label]float64{}
	if len(scored) > 0 && scored[0].vecScore >= c.cfg.DomainClassificationThreshold {
		vecAccepted = append(vecAccepted, scored[0].label)
		confidence[scored[0].label] = scored[0].vecScore
		for _, s := range scored[1:] {
			if s.vecScore >= c.cfg.DomainClassificationThreshold &&
				scored[0].vecScore-s.vecScore <= c.cfg.MultiDomainGapThreshold {
				vecAccepted = append(vecAccepted, s.label)
				confidence[s.label] = s.vecScore
			}
		}
	}

	var keywordOnly []domainlabel.Label
	for _, s := range scored {
		if s.keywordRatio >= c.cfg.KeywordHitRatioBoostThreshold && !containsLabel(vecAccepted, s.label) {
			keywordOnly = append(keywordOnly, s.label)
			if _, ok := confidence[s.label]; !ok {
				confidence[s.label] = s.keywordRatio
			}
		}
	}

	domains := append(append([]domainlabel.Label{}, vecAccepted...), keywordOnly...)

	method := MethodFallbackRejected
	switch {
	case len(vecAccepted) > 0 && len(keywordOnly) > 0:
		method = MethodKeywordVector
	case len(vecAccepted) > 0:
		method = MethodVector
	case len(keywordOnly) > 0:
		method = MethodKeyword
	}

	matched := map[string]struct{}{}
	for _, s := range scored {
		if !containsLabel(domains, s.label) {
			continue
		}
		for _, kw := range s.hitKeywords {
			matched[kw] = struct{}{}
		}
	}
	var matchedKeywords []string
	for kw := range matched {
		matchedKeywords = append(matchedKeywords, kw)
	}
	sort.Strings(matchedKeywords)

	return Classification{
		Domains:         domains,
		IsRelevant:      len(domains) > 0,
		Confidence:      confidence,
		Method:          method,
		MatchedKeywords: matchedKeywords,
	}
}

func containsLabel(list []domainlabel.Label, l domainlabel.Label) bool {
	for _, x := range list {
		if x == l {
			return true
		}
	}
	return false
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ fmt.Stringer = Classification{}

// String implements fmt.Stringer for logging.
func (c Classification) String() string {
	if !c.IsRelevant {
		return "not_relevant"
	}
	parts := make([]string, len(c.Domains))
	for i, d := range c.Domains {
		parts[i] = string(d)
	}
	return strings.Join(parts, "+")
}
