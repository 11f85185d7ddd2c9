// Package domainlabel holds the closed set of advisory domains and the
// keyword tables the classifier and legal-supplement heuristics key off of.
package domainlabel

import "fmt"

// Label is one of the four advisory domains the service can answer in.
type Label string

const (
	StartupFunding Label = "startup_funding"
	FinanceTax     Label = "finance_tax"
	HRLabor        Label = "hr_labor"
	LawCommon      Label = "law_common"
)

// All lists every known label in a stable order (primary-first ties break
// on this order).
var All = []Label{StartupFunding, FinanceTax, HRLabor, LawCommon}

// ExternalAlias maps external JSONL domain tags to collection keys.
var ExternalAlias = map[string]Label{
	"legal": LawCommon,
}

// Valid reports whether l is one of the closed set of labels.
func (l Label) Valid() bool {
	switch l {
	case StartupFunding, FinanceTax, HRLabor, LawCommon:
		return true
	}
	return false
}

// Resolve maps an external domain string (including aliases) to a Label.
func Resolve(s string) (Label, error) {
	if alias, ok := ExternalAlias[s]; ok {
		return alias, nil
	}
	l := Label(s)
	if !l.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownDomain, s)
	}
	return l, nil
}

// AdjacentDomains is the static cross-domain map used by graduated retry
// level L3 (spec §4.6.3) to search neighbouring collections when a domain's
// own retrieval starves.
var AdjacentDomains = map[Label][]Label{
	StartupFunding: {FinanceTax},
	FinanceTax:     {StartupFunding, LawCommon},
	HRLabor:        {LawCommon},
	LawCommon:      {HRLabor, FinanceTax},
}

// KeywordSet is a domain's bag of lemma keywords plus compound rules (all
// lemmas of a rule must be present for it to count as a match).
type KeywordSet struct {
	Domain        Label
	Keywords      map[string]struct{}
	CompoundRules [][]string
}

// Contains reports whether kw is one of the domain's bare keywords.
func (k KeywordSet) Contains(kw string) bool {
	_, ok := k.Keywords[kw]
	return ok
}

// MatchCompoundRules returns the count of compound rules fully satisfied by
// the given lemma set.
func (k KeywordSet) MatchCompoundRules(lemmas map[string]struct{}) int {
	n := 0
	for _, rule := range k.CompoundRules {
		all := true
		for _, lemma := range rule {
			if _, ok := lemmas[lemma]; !ok {
				all = false
				break
			}
		}
		if all {
			n++
		}
	}
	return n
}

func keywords(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// DefaultKeywordSets is the embedded fallback keyword table used when no
// DB-backed KeywordStore is configured (spec §4.4 step 2).
var DefaultKeywordSets = map[Label]KeywordSet{
	StartupFunding: {
		Domain: StartupFunding,
		Keywords: keywords(
			"창업", "사업자등록", "투자", "지원금", "벤처", "스타트업",
			"펀딩", "엔젤투자", "정부지원", "사업계획서", "초기자금",
		),
		CompoundRules: [][]string{
			{"사업자", "등록"},
			{"정부", "지원금"},
		},
	},
	FinanceTax: {
		Domain: FinanceTax,
		Keywords: keywords(
			"세금", "부가세", "법인세", "소득세", "세무", "신고",
			"절세", "공제", "원천징수", "종합소득세", "세금계산서",
		),
		CompoundRules: [][]string{
			{"부가세", "신고"},
			{"법인세", "계산"},
		},
	},
	HRLabor: {
		Domain: HRLabor,
		Keywords: keywords(
			"직원", "해고", "퇴직금", "근로계약", "4대보험", "연차",
			"최저임금", "근로시간", "노무", "채용",
		),
		CompoundRules: [][]string{
			{"직원", "해고"},
			{"퇴직금", "계산"},
		},
	},
	LawCommon: {
		Domain: LawCommon,
		Keywords: keywords(
			"소송", "판례", "법적절차", "계약서", "변호사", "법원",
			"분쟁", "손해배상", "고소", "고발",
		),
		CompoundRules: [][]string{
			{"법적", "절차"},
		},
	},
}
