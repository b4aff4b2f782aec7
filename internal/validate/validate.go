// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate decides whether a fetched candidate record describes
// the same publication as the entry it was fetched for. Validation is
// deliberately conservative: a wrong match silently corrupts an entry,
// while a missed match only leaves it incomplete.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/bibcomplete/internal/resolve"
	"github.com/pdiddy/bibcomplete/pkg/types"
)

// TitleOverlapThreshold is the minimum share of the shorter title's
// token set that must appear in the other title. Inclusive.
const TitleOverlapThreshold = 0.6

// MaxYearDelta is the largest publication-year difference still treated
// as the same work. Online-first versus print dates commonly differ by
// one year.
const MaxYearDelta = 1

// Verdict is the outcome of comparing a candidate against an entry.
type Verdict int

const (
	// Accept means the candidate describes the same publication.
	Accept Verdict = iota
	// Reject means the candidate contradicts the entry.
	Reject
	// Uncertain means the similarity checks failed but an operator may
	// still approve the match. Produced only in interactive mode, and
	// never for an identifier contradiction.
	Uncertain
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	case Uncertain:
		return "uncertain"
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// Result carries the verdict and the evidence behind it.
type Result struct {
	Verdict Verdict

	// TitleOverlap is the computed token overlap ratio, valid only when
	// TitleCompared is true.
	TitleOverlap  float64
	TitleCompared bool

	// YearDelta is the absolute year difference, valid only when
	// YearCompared is true.
	YearDelta    int
	YearCompared bool

	// DOICompared reports whether both sides carried a DOI.
	DOICompared bool
	DOIMatch    bool

	// Reason explains a Reject or Uncertain verdict.
	Reason string
}

// Backslash commands and braces are BibTeX markup, not title content.
var (
	latexCmdPattern = regexp.MustCompile(`\\[a-zA-Z]+`)
	tokenPattern    = regexp.MustCompile(`[a-z0-9]+`)
)

// TitleTokens normalizes a title into its comparison token set:
// lowercased alphanumeric runs with BibTeX markup removed.
func TitleTokens(title string) map[string]struct{} {
	s := strings.ToLower(latexCmdPattern.ReplaceAllString(title, " "))
	tokens := make(map[string]struct{})
	for _, tok := range tokenPattern.FindAllString(s, -1) {
		tokens[tok] = struct{}{}
	}
	return tokens
}

// TitleOverlap computes the share of the shorter token set present in
// the longer one. Returns 0 when either title has no tokens.
func TitleOverlap(a, b string) float64 {
	ta, tb := TitleTokens(a), TitleTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	if len(tb) < len(ta) {
		ta, tb = tb, ta
	}
	common := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			common++
		}
	}
	return float64(common) / float64(len(ta))
}

// Validate compares a fetched candidate against the original entry.
// fetchedDOI is the identifier the candidate was fetched for; search
// results may carry a different DOI, and a contradiction there is a
// hard reject regardless of how well the titles agree.
//
// In interactive mode a reject on title or year similarity alone
// becomes Uncertain so an operator can decide. An identifier mismatch
// is never downgraded.
func Validate(original *types.Entry, candidate *types.RawRecord, fetchedDOI string, interactive bool) Result {
	return validateChecks(original, candidate, fetchedDOI, interactive, true)
}

// ValidateReplacement compares a published-version candidate against
// the preprint entry it would replace. The year gate is skipped: formal
// publication routinely trails the preprint by several years, so a year
// difference is expected rather than suspicious. Title and identifier
// checks apply unchanged, and there is no interactive downgrade on this
// path.
func ValidateReplacement(original *types.Entry, candidate *types.RawRecord, fetchedDOI string) Result {
	return validateChecks(original, candidate, fetchedDOI, false, false)
}

func validateChecks(original *types.Entry, candidate *types.RawRecord, fetchedDOI string, interactive, checkYear bool) Result {
	var res Result

	// DOI contradiction rejects outright. A matching DOI is necessary
	// but not sufficient: registries occasionally hold wrong metadata
	// under a DOI, so the title check still runs.
	if fetchedDOI != "" {
		if candDOI := resolve.Normalize(candidate.Get("doi")); candDOI != "" {
			res.DOICompared = true
			res.DOIMatch = resolve.Equal(candDOI, fetchedDOI)
			if !res.DOIMatch {
				res.Verdict = Reject
				res.Reason = fmt.Sprintf("candidate DOI %s does not match %s", candDOI, fetchedDOI)
				return res
			}
		}
	}

	// Title overlap is checked only when the entry has a title of its
	// own; a bare stub cannot contradict anything.
	if origTitle := original.Get("title"); origTitle != "" {
		res.TitleCompared = true
		res.TitleOverlap = TitleOverlap(origTitle, candidate.Get("title"))
		if res.TitleOverlap < TitleOverlapThreshold {
			res.Verdict = softReject(interactive)
			res.Reason = fmt.Sprintf("title overlap %.2f below threshold %.2f",
				res.TitleOverlap, TitleOverlapThreshold)
			return res
		}
	}

	// Years are compared only when both sides have one; a missing year
	// is not evidence of a mismatch.
	origYear, okA := parseYear(original.Get("year"))
	candYear, okB := parseYear(candidate.Get("year"))
	if checkYear && okA && okB {
		res.YearCompared = true
		res.YearDelta = origYear - candYear
		if res.YearDelta < 0 {
			res.YearDelta = -res.YearDelta
		}
		if res.YearDelta > MaxYearDelta {
			res.Verdict = softReject(interactive)
			res.Reason = fmt.Sprintf("year difference %d exceeds %d", res.YearDelta, MaxYearDelta)
			return res
		}
	}

	res.Verdict = Accept
	return res
}

// softReject downgrades a similarity failure to Uncertain when an
// operator is available to decide.
func softReject(interactive bool) Verdict {
	if interactive {
		return Uncertain
	}
	return Reject
}

// parseYear extracts a four-digit year from a BibTeX year field, which
// may carry extra text like "2017 (to appear)".
var yearPattern = regexp.MustCompile(`\d{4}`)

func parseYear(s string) (int, bool) {
	m := yearPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return y, true
}
