// Package korean provides lightweight, dependency-free Korean text analysis
// used by classification and query-characteristic heuristics.
//
// No morphological analyzer library for Korean turned up anywhere in the
// retrieved example pack (see DESIGN.md) — this is a deliberate
// standard-library fallback, not an oversight. It approximates lemma
// extraction by stripping common verb/adjective endings and josa
// (particles) rather than doing full morphological analysis.
package korean

import (
	"regexp"
	"strings"
	"unicode"
)

var josaSuffixes = []string{
	"으로부터", "에게서", "로부터",
	"이라는", "에서의", "와의", "과의",
	"에서", "에게", "한테", "까지", "부터", "마다", "조차", "마저", "밖에",
	"이나", "나", "이든", "든", "이라도", "라도",
	"이랑", "랑", "하고",
	"이고", "고",
	"으로", "로",
	"의", "을", "를", "이", "가", "은", "는", "도", "만", "과", "와", "에",
}

var predicateSuffixes = []string{
	"하겠습니다", "했습니다", "합니다", "됩니다", "입니다",
	"했어요", "해요", "이에요", "예요",
	"했다", "한다", "된다", "이다",
	"하는", "되는", "인", "한",
	"하고", "되고",
}

// Tokenize splits s on whitespace and punctuation, keeping only tokens that
// contain at least one Hangul syllable.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		if unicode.Is(unicode.Hangul, r) || unicode.IsDigit(r) {
			return false
		}
		return !unicode.IsLetter(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if containsHangul(f) {
			out = append(out, f)
		}
	}
	return out
}

func containsHangul(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}

// Lemmatize strips a trailing predicate or josa suffix from a single token,
// longest suffix first. It is an approximation: enough to dedupe
// "해고했습니다" and "해고" to a shared stem for keyword matching, not a
// linguistically complete lemmatizer.
func Lemmatize(token string) string {
	for _, suf := range predicateSuffixes {
		if strings.HasSuffix(token, suf) && len([]rune(token)) > len([]rune(suf)) {
			return strings.TrimSuffix(token, suf)
		}
	}
	for _, suf := range josaSuffixes {
		if strings.HasSuffix(token, suf) && len([]rune(token)) > len([]rune(suf)) {
			return strings.TrimSuffix(token, suf)
		}
	}
	return token
}

// Lemmas tokenizes and lemmatizes s, returning the set of distinct lemmas.
func Lemmas(s string) map[string]struct{} {
	tokens := Tokenize(s)
	out := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		out[Lemmatize(t)] = struct{}{}
	}
	return out
}

// articleCitationRe matches statute article citations such as "제123조" or
// "제 12 조" (spec §3.1 QueryCharacteristics.cites_article).
var articleCitationRe = regexp.MustCompile(`제\s*\d+\s*조`)

// CitesArticle reports whether s cites a statute article.
func CitesArticle(s string) bool {
	return articleCitationRe.MatchString(s)
}

// ExtractArticleCitations returns every distinct article citation token in
// s, whitespace-normalized (e.g. "제 12 조" -> "제12조").
func ExtractArticleCitations(s string) []string {
	matches := articleCitationRe.FindAllString(s, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		norm := normalizeArticle(m)
		if _, ok := seen[norm]; !ok {
			seen[norm] = struct{}{}
			out = append(out, norm)
		}
	}
	return out
}

func normalizeArticle(m string) string {
	var b strings.Builder
	for _, r := range m {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// legalKeywords are curated Korean legal-process terms used by the legal
// supplement trigger (spec §4.6.4), in addition to the "~법" statute-suffix
// regex.
var legalKeywords = []string{
	"소송", "판례", "법적 절차", "법적절차", "변호사", "고소", "고발",
	"손해배상", "법원", "분쟁",
}

var statuteSuffixRe = regexp.MustCompile(`[가-힣]+법(?:[시행령규칙]*)?`)

// MatchesLegalKeywords reports whether s contains a statute-suffix token or
// a curated legal-process keyword, triggering legal supplementation.
func MatchesLegalKeywords(s string) bool {
	if statuteSuffixRe.MatchString(s) {
		return true
	}
	for _, kw := range legalKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
