// Package config holds the recognised configuration surface (spec §6.5)
// and defaults, mirroring the teacher's one-function-per-config-type
// pattern (graph.DefaultStreamConfig, retriever.DefaultLLMRerankerConfig).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hanbit-ai/advisor-rag/domainlabel"
	"gopkg.in/yaml.v3"
)

// Config is the full recognised configuration surface.
type Config struct {
	// Budget bounds
	RetrievalK        int `yaml:"retrieval_k"`
	MaxRetrievalDocs  int `yaml:"max_retrieval_docs"`
	MinDomainK        int `yaml:"min_domain_k"`
	DynamicKMin       int `yaml:"dynamic_k_min"`
	DynamicKMax       int `yaml:"dynamic_k_max"`

	// Fusion/search knobs
	VectorSearchWeight  float64 `yaml:"vector_search_weight"`
	RRFK                int     `yaml:"rrf_k"`
	MMRLambdaMult       float64 `yaml:"mmr_lambda_mult"`
	MMRFetchKMultiplier float64 `yaml:"mmr_fetch_k_multiplier"`

	// Search toggles
	EnableHybridSearch     bool    `yaml:"enable_hybrid_search"`
	EnableReranking        bool    `yaml:"enable_reranking"`
	EnableAdaptiveSearch   bool    `yaml:"enable_adaptive_search"`
	EnableFixedDocLimit    bool    `yaml:"enable_fixed_doc_limit"`
	EnableCrossDomainRerank bool   `yaml:"enable_cross_domain_rerank"`
	CrossDomainRerankRatio float64 `yaml:"cross_domain_rerank_ratio"`

	// Query expansion
	EnableMultiQuery bool `yaml:"enable_multi_query"`
	MultiQueryCount  int  `yaml:"multi_query_count"`

	// Legal augmentation
	EnableLegalSupplement bool `yaml:"enable_legal_supplement"`
	LegalSupplementK      int  `yaml:"legal_supplement_k"`

	// Retrieval retry
	EnableGraduatedRetry bool `yaml:"enable_graduated_retry"`
	MaxRetryLevel        int  `yaml:"max_retry_level"`

	// Evaluation
	EnableLLMEvaluation        bool               `yaml:"enable_llm_evaluation"`
	EvaluationThreshold        float64            `yaml:"evaluation_threshold"`
	EvaluationWeights          ScoreWeights       `yaml:"evaluation_weights"`
	DomainEvaluationThresholds map[domainlabel.Label]float64 `yaml:"domain_evaluation_thresholds"`
	EnableRAGASEvaluation      bool               `yaml:"enable_ragas_evaluation"`

	// Answer retry
	EnablePostEvalRetry   bool `yaml:"enable_post_eval_retry"`
	PostEvalAltQueryCount int  `yaml:"post_eval_alt_query_count"`
	MaxRetryCount         int  `yaml:"max_retry_count"`

	// Classification
	EnableDomainRejection           bool    `yaml:"enable_domain_rejection"`
	DomainClassificationThreshold   float64 `yaml:"domain_classification_threshold"`
	MultiDomainGapThreshold         float64 `yaml:"multi_domain_gap_threshold"`
	EnableLLMDomainClassification   bool    `yaml:"enable_llm_domain_classification"`
	KeywordHitRatioBoostThreshold   float64 `yaml:"keyword_hit_ratio_boost_threshold"`
	KeywordBoostDelta               float64 `yaml:"keyword_boost_delta"`

	// Caching
	EnableResponseCache bool                     `yaml:"enable_response_cache"`
	CacheTTL            time.Duration            `yaml:"cache_ttl"`
	CacheTTLByDomain    map[domainlabel.Label]time.Duration `yaml:"cache_ttl_by_domain"`
	CacheMaxSize        int                      `yaml:"cache_max_size"`

	// Generation
	FormatContextLength  int                          `yaml:"format_context_length"`
	EvaluatorContextLength int                        `yaml:"evaluator_context_length"`
	GenerationMaxTokens  int                          `yaml:"generation_max_tokens"`
	OpenAITemperature    float64                      `yaml:"openai_temperature"`
	DomainTemperatures   map[domainlabel.Label]float64 `yaml:"domain_temperatures"`
	StreamHardTimeout    time.Duration                `yaml:"stream_hard_timeout"`

	// Retrieval quality floors
	MinRetrievalDocCount    int     `yaml:"min_retrieval_doc_count"`
	MinKeywordMatchRatio    float64 `yaml:"min_keyword_match_ratio"`
	MinAvgSimilarityScore   float64 `yaml:"min_avg_similarity_score"`
	MinDocEmbeddingSimilarity float64 `yaml:"min_doc_embedding_similarity"`

	// Request-level
	RequestDeadline time.Duration `yaml:"request_deadline"`
}

// ScoreWeights are the five per-criterion weights for answer evaluation
// (spec §3.1 EvaluationScore), each sub-score in 0-20.
type ScoreWeights struct {
	Accuracy         float64 `yaml:"accuracy"`
	Completeness     float64 `yaml:"completeness"`
	Relevance        float64 `yaml:"relevance"`
	Citation         float64 `yaml:"citation"`
	RetrievalQuality float64 `yaml:"retrieval_quality"`
}

// Default returns the configuration with every spec-documented default
// applied.
func Default() *Config {
	return &Config{
		RetrievalK:       5,
		MaxRetrievalDocs: 20,
		MinDomainK:       2,
		DynamicKMin:      3,
		DynamicKMax:      8,

		VectorSearchWeight:  0.7,
		RRFK:                30,
		MMRLambdaMult:       0.7,
		MMRFetchKMultiplier: 3.0,

		EnableHybridSearch:      true,
		EnableReranking:         true,
		EnableAdaptiveSearch:    true,
		EnableFixedDocLimit:     false,
		EnableCrossDomainRerank: true,
		CrossDomainRerankRatio:  0.7,

		EnableMultiQuery: true,
		MultiQueryCount:  2,

		EnableLegalSupplement: true,
		LegalSupplementK:      3,

		EnableGraduatedRetry: true,
		MaxRetryLevel:        2,

		EnableLLMEvaluation: true,
		EvaluationThreshold: 70,
		EvaluationWeights: ScoreWeights{
			Accuracy: 1, Completeness: 1, Relevance: 1, Citation: 1, RetrievalQuality: 1,
		},
		DomainEvaluationThresholds: map[domainlabel.Label]float64{
			domainlabel.LawCommon:      75,
			domainlabel.FinanceTax:     75,
			domainlabel.HRLabor:        70,
			domainlabel.StartupFunding: 65,
		},
		EnableRAGASEvaluation: false,

		EnablePostEvalRetry:   true,
		PostEvalAltQueryCount: 2,
		MaxRetryCount:         1,

		EnableDomainRejection:         true,
		DomainClassificationThreshold: 0.6,
		MultiDomainGapThreshold:       0.1,
		EnableLLMDomainClassification: true,
		KeywordHitRatioBoostThreshold: 0.3,
		KeywordBoostDelta:             0.1,

		EnableResponseCache: true,
		CacheTTL:            30 * time.Minute,
		CacheTTLByDomain: map[domainlabel.Label]time.Duration{
			domainlabel.StartupFunding: 15 * time.Minute,
			domainlabel.LawCommon:      60 * time.Minute,
		},
		CacheMaxSize: 1000,

		FormatContextLength:       3500,
		EvaluatorContextLength:    2000,
		GenerationMaxTokens:       1200,
		OpenAITemperature:         0.1,
		DomainTemperatures: map[domainlabel.Label]float64{
			domainlabel.LawCommon:      0.0,
			domainlabel.FinanceTax:     0.0,
			domainlabel.HRLabor:        0.05,
			domainlabel.StartupFunding: 0.15,
		},
		StreamHardTimeout: 90 * time.Second,

		MinRetrievalDocCount:      1,
		MinKeywordMatchRatio:      0.3,
		MinAvgSimilarityScore:     0.5,
		MinDocEmbeddingSimilarity: 0.2,

		RequestDeadline: 45 * time.Second,
	}
}

// DomainEvaluationThreshold returns the per-domain evaluation threshold,
// falling back to EvaluationThreshold.
func (c *Config) DomainEvaluationThreshold(d domainlabel.Label) float64 {
	if v, ok := c.DomainEvaluationThresholds[d]; ok {
		return v
	}
	return c.EvaluationThreshold
}

// DomainTemperature returns the per-domain generation temperature, falling
// back to OpenAITemperature.
func (c *Config) DomainTemperature(d domainlabel.Label) float64 {
	if v, ok := c.DomainTemperatures[d]; ok {
		return v
	}
	return c.OpenAITemperature
}

// DomainCacheTTL returns the per-domain cache TTL, falling back to CacheTTL.
func (c *Config) DomainCacheTTL(d domainlabel.Label) time.Duration {
	if v, ok := c.CacheTTLByDomain[d]; ok {
		return v
	}
	return c.CacheTTL
}

// Load reads a YAML config file and overlays it on Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
