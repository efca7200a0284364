// Package naming canonicalizes Korean apartment-complex names and scores
// matches between an external name and a set of candidates. It is kept as a
// pure, side-effect-free package so its laws (idempotence, threshold) are
// directly property-testable.
package naming

import (
	"regexp"
	"strings"
)

var (
	reParen       = regexp.MustCompile(`\([^)]*\)`)
	reDongRange   = regexp.MustCompile(`\d+동[~\-]\d+동`)
	reTrailingTok = regexp.MustCompile(`(\d+동|\d+차|\d+단지)$`)
	reNonWord     = regexp.MustCompile(`[^\p{Hangul}0-9A-Za-z]`)
	reHangulRun   = regexp.MustCompile(`\p{Hangul}+`)
)

// Normalize canonicalizes a complex name: drops parenthesized substrings,
// trailing "N동"/"N차"/"N단지" tokens, dong-range patterns ("101동~106동"),
// whitespace/hyphens/interpuncts, and lowercases the remainder while
// preserving Korean syllables and digits. Normalize(Normalize(x)) == Normalize(x).
func Normalize(name string) string {
	n := reParen.ReplaceAllString(name, "")
	n = reDongRange.ReplaceAllString(n, "")
	for {
		trimmed := reTrailingTok.ReplaceAllString(strings.TrimSpace(n), "")
		if trimmed == n {
			n = trimmed
			break
		}
		n = trimmed
	}
	n = reNonWord.ReplaceAllString(n, "")
	n = strings.ToLower(strings.TrimSpace(n))
	return n
}

// tokens extracts Hangul-only word tokens of length >= 2 runes from a raw
// (pre-normalization) name, splitting on whitespace and stripping
// parenthesized content first.
func tokens(name string) map[string]struct{} {
	s := reParen.ReplaceAllString(name, " ")
	out := make(map[string]struct{})
	for _, field := range strings.Fields(s) {
		for _, run := range reHangulRun.FindAllString(field, -1) {
			if len([]rune(run)) >= 2 {
				out[run] = struct{}{}
			}
		}
	}
	return out
}

// Score computes the spec's 100/70/40/0 similarity ladder between two raw
// (pre-normalization) names.
func Score(a, b string) int {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 100
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 70
	}
	ta, tb := tokens(a), tokens(b)
	for t := range ta {
		if _, ok := tb[t]; ok {
			return 40
		}
	}
	return 0
}

// Match returns the index of the highest-scoring candidate whose score is
// >= 40, or ok=false if no candidate clears the threshold.
func Match(name string, candidates []string) (idx int, ok bool) {
	best := -1
	bestScore := 0
	for i, c := range candidates {
		s := Score(name, c)
		if s >= 40 && s > bestScore {
			bestScore = s
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// ResolveTransactionName runs the longer waterfall used for noisy
// transaction-source names (dong suffixes, parenthetical notes): exact ->
// case-insensitive substring -> whitespace-stripped exact -> normalized
// exact -> normalized bidirectional substring (longest match wins, both
// sides >= 3 chars).
func ResolveTransactionName(name string, candidates []string) (idx int, ok bool) {
	// 1. exact
	for i, c := range candidates {
		if c == name {
			return i, true
		}
	}
	// 2. case-insensitive substring
	lowerName := strings.ToLower(name)
	for i, c := range candidates {
		lc := strings.ToLower(c)
		if strings.Contains(lc, lowerName) || strings.Contains(lowerName, lc) {
			return i, true
		}
	}
	// 3. whitespace-stripped exact
	stripped := strings.ReplaceAll(name, " ", "")
	for i, c := range candidates {
		if strings.ReplaceAll(c, " ", "") == stripped {
			return i, true
		}
	}
	// 4. normalized exact
	nName := Normalize(name)
	if len([]rune(nName)) >= 2 {
		for i, c := range candidates {
			if Normalize(c) == nName {
				return i, true
			}
		}
	}
	// 5. normalized bidirectional substring, longest match wins, both sides >= 3 chars
	if len([]rune(nName)) >= 3 {
		best := -1
		bestLen := 0
		for i, c := range candidates {
			nc := Normalize(c)
			if len([]rune(nc)) < 3 {
				continue
			}
			if strings.Contains(nName, nc) || strings.Contains(nc, nName) {
				matchLen := len([]rune(nName))
				if len([]rune(nc)) < matchLen {
					matchLen = len([]rune(nc))
				}
				if matchLen > bestLen {
					best = i
					bestLen = matchLen
				}
			}
		}
		if best >= 0 {
			return best, true
		}
	}
	return 0, false
}
