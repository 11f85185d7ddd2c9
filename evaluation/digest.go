package evaluation

// Retry paths recorded on a Digest (spec §6.2 evaluation_data, §C.4).
const (
	RetryPathNone               = "none"
	RetryPathGraduatedRetrieval = "graduated-retrieval"
	RetryPathPostEval           = "post-eval"
)

// Digest is the JSON-serializable evaluation summary of spec §6.2
// evaluation_data: the classification method, the scores, which retry path
// (if any) produced the final answer, and RAGAS metrics if computed. The
// pipeline returns it but does not persist it -- there is no persistence
// layer in scope.
type Digest struct {
	Method        string        `json:"method"`
	Scores        Scores        `json:"scores"`
	WeightedTotal float64       `json:"weighted_total"`
	Verdict       Verdict       `json:"verdict"`
	RetryPath     string        `json:"retry_path"`
	RAGAS         *RAGASMetrics `json:"ragas,omitempty"`
}

// BuildDigest assembles a Digest from one request's classification method
// and evaluation result.
func BuildDigest(method string, result Result, ragas *RAGASMetrics, retryPath string) Digest {
	return Digest{
		Method:        method,
		Scores:        result.Scores,
		WeightedTotal: result.WeightedTotal,
		Verdict:       result.Verdict,
		RetryPath:     retryPath,
		RAGAS:         ragas,
	}
}
