// Package analytics ranks the keywords users write about in chat.
package analytics

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultLimit is applied when Analyze receives a non-positive limit.
const DefaultLimit = 50

// trendThreshold is the relative change above which a keyword counts as rising or falling.
const trendThreshold = 0.1

// Trend classifies a keyword's movement against the previous window.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// KeywordStat is one ranked keyword of the current window.
type KeywordStat struct {
	Keyword    string  `json:"keyword"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
	Trend      Trend   `json:"trend"`
}

// Summary describes the current window as a whole.
type Summary struct {
	TotalMessages         int     `json:"total_messages"`
	UniqueKeywords        int     `json:"unique_keywords"`
	AvgKeywordsPerMessage float64 `json:"avg_keywords_per_message"`
}

// Result is the output of Analyze.
type Result struct {
	Keywords []KeywordStat `json:"keywords"`
	Summary  Summary       `json:"summary"`
}

// frequencies is a word counter that remembers first-occurrence order.
type frequencies struct {
	order  []string
	counts map[string]int
	total  int
}

func newFrequencies() *frequencies {
	return &frequencies{counts: make(map[string]int)}
}

func (f *frequencies) add(word string) {
	if _, seen := f.counts[word]; !seen {
		f.order = append(f.order, word)
	}
	f.counts[word]++
	f.total++
}

func countKeywords(texts []string) *frequencies {
	f := newFrequencies()
	for _, text := range texts {
		for _, token := range Tokenize(text) {
			f.add(token)
		}
	}
	return f
}

// Analyze ranks the keywords of current and classifies each against previous.
// Priority keywords come first, then higher counts; ties keep the order in
// which keywords first appear in current. The result holds at most limit
// keywords. Analyze does no I/O and is safe for concurrent use.
func Analyze(current, previous []string, limit int) Result {
	if limit <= 0 {
		limit = DefaultLimit
	}

	cur := countKeywords(current)
	prev := countKeywords(previous)

	stats := make([]KeywordStat, 0, len(cur.order))
	for _, word := range cur.order {
		count := cur.counts[word]
		stats = append(stats, KeywordStat{
			Keyword:    word,
			Count:      count,
			Percentage: percentage(count, cur.total),
			Trend:      classify(count, prev.counts[word]),
		})
	}

	sort.SliceStable(stats, func(i, j int) bool {
		pi, pj := IsPriority(stats[i].Keyword), IsPriority(stats[j].Keyword)
		if pi != pj {
			return pi
		}
		return stats[i].Count > stats[j].Count
	})

	if len(stats) > limit {
		stats = stats[:limit]
	}

	summary := Summary{
		TotalMessages:  len(current),
		UniqueKeywords: len(cur.order),
	}
	if len(current) > 0 {
		summary.AvgKeywordsPerMessage = ratio2(cur.total, len(current))
	}

	return Result{Keywords: stats, Summary: summary}
}

// Tokenize lowercases text, splits it on anything other than letters, digits
// and underscores, and drops short, numeric and stop-word tokens.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), isSeparator)
	tokens := fields[:0]
	for _, field := range fields {
		if keep(field) {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

func isSeparator(r rune) bool {
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}

func keep(token string) bool {
	if len([]rune(token)) < 3 {
		return false
	}
	if isNumeric(token) {
		return false
	}
	return !IsStopWord(token)
}

func isNumeric(token string) bool {
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func classify(count, previousCount int) Trend {
	if previousCount == 0 {
		return TrendStable
	}
	change := float64(count-previousCount) / float64(previousCount)
	switch {
	case change > trendThreshold:
		return TrendUp
	case change < -trendThreshold:
		return TrendDown
	default:
		return TrendStable
	}
}

func percentage(count, total int) float64 {
	return ratio2(100*count, total)
}

// ratio2 is num/den rounded half away from zero to two decimals. It rounds
// in integers so that ties like 201/200 are not lost to float error.
// num and den are non-negative.
func ratio2(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64((200*num+den)/(2*den)) / 100
}
