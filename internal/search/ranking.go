package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"

	"github.com/address-lookup/internal/normalizer"
)

const (
	jaroWeight        = 0.6
	levenshteinWeight = 0.4
)

// Similarity scores a against b in [0, 1]. Both are compared in normalized
// form, so case and diacritics do not count.
func Similarity(a, b string) float64 {
	a, b = normalizer.NormalizeQuery(a), normalizer.NormalizeQuery(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	jaro := smetrics.JaroWinkler(a, b, 0.7, 4)

	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	lev := 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
	if lev < 0 {
		lev = 0
	}

	return jaroWeight*jaro + levenshteinWeight*lev
}

// Rank scores docs against query and sorts them best first. Equal scores
// keep the index order.
func Rank(query string, docs []Document) []Hit {
	hits := make([]Hit, 0, len(docs))
	for _, d := range docs {
		line := d.Text
		if line == "" {
			line = d.Line()
		}
		hits = append(hits, Hit{Document: d, Score: lineScore(query, line)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits
}

// lineScore compares query with the prefix of line of the same word count,
// so "dorpsstr 10" is not punished for the postcode and city it omits.
func lineScore(query, line string) float64 {
	qWords := strings.Fields(normalizer.NormalizeQuery(query))
	lWords := strings.Fields(normalizer.NormalizeQuery(line))
	if len(qWords) == 0 || len(lWords) == 0 {
		return 0
	}

	prefix := lWords[:min(len(qWords), len(lWords))]
	best := Similarity(strings.Join(qWords, " "), strings.Join(prefix, " "))
	if whole := Similarity(strings.Join(qWords, " "), strings.Join(lWords, " ")); whole > best {
		best = whole
	}
	return best
}

// ClosestAddition returns the candidate closest to typed, if it is at most
// one edit away. Used to preselect an addition the shopper almost typed.
func ClosestAddition(typed string, candidates []string) (string, bool) {
	typed = strings.ToUpper(strings.TrimSpace(typed))
	if typed == "" {
		return "", false
	}

	best, bestDist := "", 2
	for _, c := range candidates {
		if c == "" {
			continue
		}
		d := levenshtein.ComputeDistance(typed, strings.ToUpper(c))
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, best != ""
}
