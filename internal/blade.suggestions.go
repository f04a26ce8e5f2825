package internal

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// DefaultMaxSuggestions is the number of names a not-found diagnostic lists.
const DefaultMaxSuggestions = 3

// SuggestTemplates returns up to max template names resembling target.
// Subsequence matches (e.g. "btn" for "button") rank first; names within a
// small edit distance fill the remaining slots.
func SuggestTemplates(target string, candidates []string, max int) []string {
	if len(candidates) == 0 || max <= 0 || target == StringValueEmpty {
		return nil
	}

	seen := make(map[string]bool)
	var result []string
	for _, m := range fuzzy.Find(target, candidates) {
		if len(result) == max {
			return result
		}
		seen[m.Str] = true
		result = append(result, m.Str)
	}

	type scored struct {
		name     string
		distance int
	}
	limit := len(target) / 2
	if limit < 2 {
		limit = 2
	}
	lower := strings.ToLower(target)
	var near []scored
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		if d := editDistance(lower, strings.ToLower(c)); d <= limit {
			near = append(near, scored{name: c, distance: d})
		}
	}
	sort.SliceStable(near, func(i, j int) bool { return near[i].distance < near[j].distance })
	for _, s := range near {
		if len(result) == max {
			break
		}
		result = append(result, s.name)
	}
	return result
}

// editDistance is the Levenshtein distance between a and b.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minOf(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minOf(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// FormatSuggestions renders suggestions as "did you mean 'a', 'b' or 'c'?".
func FormatSuggestions(suggestions []string) string {
	if len(suggestions) == 0 {
		return StringValueEmpty
	}
	var sb strings.Builder
	sb.WriteString("did you mean ")
	for i, s := range suggestions {
		if i > 0 {
			if i == len(suggestions)-1 {
				sb.WriteString(" or ")
			} else {
				sb.WriteString(", ")
			}
		}
		sb.WriteByte('\'')
		sb.WriteString(s)
		sb.WriteByte('\'')
	}
	sb.WriteByte('?')
	return sb.String()
}
