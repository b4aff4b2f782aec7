// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package merge

import (
	"regexp"
	"strings"

	"github.com/pdiddy/bibcomplete/pkg/types"
)

// fieldWeights ranks bibliographic fields by how much they contribute
// to an entry's completeness score. Identity fields dominate, wrapper
// metadata trails.
var fieldWeights = map[string]int{
	"author":       10,
	"title":        10,
	"year":         9,
	"doi":          9,
	"journal":      8,
	"booktitle":    8,
	"abstract":     8,
	"volume":       7,
	"number":       7,
	"pages":        7,
	"keywords":     7,
	"publisher":    6,
	"organization": 6,
	"issn":         6,
	"isbn":         6,
	"edition":      6,
	"address":      5,
	"month":        5,
	"url":          5,
	"series":       5,
	"note":         4,
}

// entryTypePriority orders BibTeX entry types from most to least
// specific. When sources disagree on the type the most specific wins.
var entryTypePriority = []string{
	"article", "inproceedings", "book", "incollection", "inbook",
	"proceedings", "conference", "techreport", "phdthesis",
	"mastersthesis", "unpublished", "misc",
}

var (
	andPattern        = regexp.MustCompile(`(?i)\s+and\s+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CompletenessScore rates a record between 0 and 100 by which weighted
// fields it carries. Longer values earn a small bonus since truncated
// metadata is a common source defect.
func CompletenessScore(rec *types.RawRecord) float64 {
	var score, maxScore float64
	for field, weight := range fieldWeights {
		maxScore += float64(weight)
		value := cleanValue(rec.Get(field))
		if value == "" {
			continue
		}
		lengthBonus := float64(len(value)) / 100
		if lengthBonus > 1 {
			lengthBonus = 1
		}
		score += float64(weight) * (0.7 + 0.3*lengthBonus)
	}
	if maxScore == 0 {
		return 0
	}
	return score / maxScore * 100
}

// Combine folds records from several sources into one best-of record.
// Each field takes the most complete value across all sources; authors
// prefer the longest author list, pages prefer a full range over a
// single number. The result then merges into the entry through the
// normal fill-only path.
func Combine(records []*types.RawRecord) *types.RawRecord {
	records = nonNil(records)
	if len(records) == 0 {
		return nil
	}
	if len(records) == 1 {
		return records[0]
	}

	// Seed from the most complete record so fields outside the weight
	// table still carry over.
	best := records[0]
	for _, rec := range records[1:] {
		if CompletenessScore(rec) > CompletenessScore(best) {
			best = rec
		}
	}

	combined := &types.RawRecord{
		EntryType: bestEntryType(records),
		Fields:    make(map[string]string, len(best.Fields)),
		Source:    combinedSource(records),
	}
	for name, value := range best.Fields {
		combined.Fields[name] = value
	}

	for field := range fieldWeights {
		var values []string
		for _, rec := range records {
			if v := rec.Get(field); strings.TrimSpace(v) != "" {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}

		switch field {
		case "author":
			combined.Fields[field] = bestAuthorList(values)
		case "pages":
			combined.Fields[field] = bestPageValue(values)
		default:
			best := values[0]
			for _, v := range values[1:] {
				if moreComplete(v, best) {
					best = v
				}
			}
			combined.Fields[field] = best
		}
	}

	return combined
}

func nonNil(records []*types.RawRecord) []*types.RawRecord {
	var out []*types.RawRecord
	for _, r := range records {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func combinedSource(records []*types.RawRecord) string {
	var names []string
	for _, r := range records {
		names = append(names, r.Source)
	}
	return strings.Join(names, "+")
}

// bestEntryType picks the most specific type any source reported.
func bestEntryType(records []*types.RawRecord) string {
	seen := make(map[string]bool)
	for _, rec := range records {
		seen[strings.ToLower(rec.EntryType)] = true
	}
	for _, t := range entryTypePriority {
		if seen[t] {
			return t
		}
	}
	return records[0].EntryType
}

// cleanValue collapses whitespace and strips one layer of surrounding
// braces or quotes.
func cleanValue(s string) string {
	s = whitespacePattern.ReplaceAllString(strings.TrimSpace(s), " ")
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '{' && s[len(s)-1] == '}') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

// moreComplete reports whether a beats b as a field value. Clearly
// longer values win outright; otherwise the value with more words wins.
func moreComplete(a, b string) bool {
	ca, cb := cleanValue(a), cleanValue(b)
	if ca == "" {
		return false
	}
	if cb == "" {
		return true
	}

	longer := len(ca)
	if len(cb) > longer {
		longer = len(cb)
	}
	diff := len(ca) - len(cb)
	if diff < 0 {
		diff = -diff
	}
	if float64(diff) > float64(longer)*0.3 {
		return len(ca) > len(cb)
	}

	return len(strings.Fields(ca)) >= len(strings.Fields(cb))
}

// bestAuthorList prefers the value naming the most authors, breaking
// ties by length.
func bestAuthorList(values []string) string {
	best := values[0]
	bestCount := authorCount(best)
	for _, v := range values[1:] {
		c := authorCount(v)
		if c > bestCount || (c == bestCount && len(v) > len(best)) {
			best, bestCount = v, c
		}
	}
	return best
}

func authorCount(s string) int {
	return len(andPattern.Split(s, -1))
}

// bestPageValue prefers a page range over a lone page number, then the
// longest value.
func bestPageValue(values []string) string {
	var ranges []string
	for _, v := range values {
		if strings.Contains(v, "-") {
			ranges = append(ranges, v)
		}
	}
	pool := values
	if len(ranges) > 0 {
		pool = ranges
	}
	best := pool[0]
	for _, v := range pool[1:] {
		if len(v) > len(best) {
			best = v
		}
	}
	return best
}
