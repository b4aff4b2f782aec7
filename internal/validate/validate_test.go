// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"math"
	"testing"

	"github.com/pdiddy/bibcomplete/pkg/types"
)

func entryWith(fields map[string]string) *types.Entry {
	return &types.Entry{ID: "test2020", Type: "article", Fields: fields}
}

func candidateWith(fields map[string]string) *types.RawRecord {
	return &types.RawRecord{EntryType: "article", Fields: fields, Source: "crossref"}
}

func TestTitleOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Attention Is All You Need", "Attention Is All You Need", 1.0},
		{"case insensitive", "ATTENTION IS ALL YOU NEED", "attention is all you need", 1.0},
		{"latex braces ignored", "{BERT}: Pre-training of Transformers", "BERT: Pre-training of Transformers", 1.0},
		{"subtitle extension", "Deep Learning", "Deep Learning: Methods and Applications", 1.0},
		{"partial overlap", "one two three four five", "one two three six seven", 0.6},
		{"no overlap", "alpha beta", "gamma delta", 0.0},
		{"empty title", "", "Deep Learning", 0.0},
		{"punctuation ignored", "End-to-End Learning", "End to End Learning", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TitleOverlap(tt.a, tt.b)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("TitleOverlap(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestValidateAccept(t *testing.T) {
	res := Validate(
		entryWith(map[string]string{"title": "Attention Is All You Need", "year": "2017"}),
		candidateWith(map[string]string{"title": "Attention Is All You Need", "year": "2017", "doi": "10.5555/3295222"}),
		"10.5555/3295222", false,
	)
	if res.Verdict != Accept {
		t.Fatalf("Verdict = %v, want Accept (reason: %s)", res.Verdict, res.Reason)
	}
	if !res.DOICompared || !res.DOIMatch {
		t.Error("DOI should have been compared and matched")
	}
	if !res.TitleCompared || res.TitleOverlap != 1.0 {
		t.Errorf("TitleOverlap = %f, want 1.0", res.TitleOverlap)
	}
	if !res.YearCompared || res.YearDelta != 0 {
		t.Errorf("YearDelta = %d, want 0", res.YearDelta)
	}
}

func TestValidateTitleThresholdBoundary(t *testing.T) {
	// Shorter set has 5 tokens; 3 shared = 0.6 exactly, which is
	// inclusive. 2 shared = 0.4 rejects.
	tests := []struct {
		name      string
		candTitle string
		want      Verdict
	}{
		{"exactly at threshold accepts", "one two three six seven", Accept},
		{"below threshold rejects", "one two eight six seven", Reject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(
				entryWith(map[string]string{"title": "one two three four five"}),
				candidateWith(map[string]string{"title": tt.candTitle}),
				"", false,
			)
			if res.Verdict != tt.want {
				t.Errorf("Verdict = %v (overlap %f), want %v", res.Verdict, res.TitleOverlap, tt.want)
			}
		})
	}
}

func TestValidateYearDelta(t *testing.T) {
	tests := []struct {
		name     string
		origYear string
		candYear string
		want     Verdict
	}{
		{"same year", "2017", "2017", Accept},
		{"one year later", "2017", "2018", Accept},
		{"one year earlier", "2017", "2016", Accept},
		{"two years apart", "2017", "2019", Reject},
		{"year with extra text", "2017 (to appear)", "2017", Accept},
		{"missing original year", "", "2017", Accept},
		{"missing candidate year", "2017", "", Accept},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(
				entryWith(map[string]string{"title": "Deep Learning", "year": tt.origYear}),
				candidateWith(map[string]string{"title": "Deep Learning", "year": tt.candYear}),
				"", false,
			)
			if res.Verdict != tt.want {
				t.Errorf("Verdict = %v (reason: %s), want %v", res.Verdict, res.Reason, tt.want)
			}
		})
	}
}

func TestValidateDOIMismatchRejects(t *testing.T) {
	// A perfect title match cannot save a DOI contradiction, and
	// interactive mode never downgrades it.
	for _, interactive := range []bool{false, true} {
		res := Validate(
			entryWith(map[string]string{"title": "Deep Learning", "year": "2015"}),
			candidateWith(map[string]string{"title": "Deep Learning", "year": "2015", "doi": "10.1038/nature14539"}),
			"10.1109/5.771073", interactive,
		)
		if res.Verdict != Reject {
			t.Fatalf("interactive=%t: Verdict = %v, want Reject", interactive, res.Verdict)
		}
		if !res.DOICompared || res.DOIMatch {
			t.Error("DOI should have been compared and mismatched")
		}
	}
}

func TestValidateInteractiveDowngrades(t *testing.T) {
	tests := []struct {
		name       string
		origFields map[string]string
		candFields map[string]string
	}{
		{
			"title mismatch",
			map[string]string{"title": "alpha beta gamma"},
			map[string]string{"title": "delta epsilon zeta"},
		},
		{
			"year mismatch",
			map[string]string{"title": "Deep Learning", "year": "2015"},
			map[string]string{"title": "Deep Learning", "year": "2019"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nonInteractive := Validate(entryWith(tt.origFields), candidateWith(tt.candFields), "", false)
			if nonInteractive.Verdict != Reject {
				t.Errorf("non-interactive Verdict = %v, want Reject", nonInteractive.Verdict)
			}

			interactive := Validate(entryWith(tt.origFields), candidateWith(tt.candFields), "", true)
			if interactive.Verdict != Uncertain {
				t.Errorf("interactive Verdict = %v, want Uncertain", interactive.Verdict)
			}
			if interactive.Reason == "" {
				t.Error("Uncertain verdict should carry a reason")
			}
		})
	}
}

func TestValidateDOICaseInsensitive(t *testing.T) {
	res := Validate(
		entryWith(map[string]string{"title": "Deep Learning"}),
		candidateWith(map[string]string{"title": "Deep Learning", "doi": "10.1109/JPROC.1998.658762"}),
		"10.1109/jproc.1998.658762", false,
	)
	if res.Verdict != Accept {
		t.Errorf("Verdict = %v, want Accept (reason: %s)", res.Verdict, res.Reason)
	}
}

func TestValidateStubWithoutTitlePasses(t *testing.T) {
	// An entry with no title cannot contradict the candidate; the
	// title check is skipped entirely.
	res := Validate(
		entryWith(map[string]string{"year": "2017"}),
		candidateWith(map[string]string{"title": "Deep Learning", "year": "2017"}),
		"", false,
	)
	if res.Verdict != Accept {
		t.Errorf("Verdict = %v, want Accept", res.Verdict)
	}
	if res.TitleCompared {
		t.Error("title should not have been compared")
	}
}

func TestValidateCandidateWithoutTitleRejects(t *testing.T) {
	// The entry has a title but the candidate has none: overlap is 0.
	res := Validate(
		entryWith(map[string]string{"title": "Deep Learning"}),
		candidateWith(map[string]string{"year": "2017"}),
		"", false,
	)
	if res.Verdict != Reject {
		t.Errorf("Verdict = %v, want Reject", res.Verdict)
	}
}

func TestValidateCandidateWithoutDOI(t *testing.T) {
	// A candidate with no DOI field skips the DOI check entirely.
	res := Validate(
		entryWith(map[string]string{"title": "Deep Learning", "year": "2015"}),
		candidateWith(map[string]string{"title": "Deep Learning", "year": "2015"}),
		"10.1038/nature14539", false,
	)
	if res.DOICompared {
		t.Error("DOI should not have been compared")
	}
	if res.Verdict != Accept {
		t.Errorf("Verdict = %v, want Accept", res.Verdict)
	}
}

func TestVerdictString(t *testing.T) {
	tests := []struct {
		v    Verdict
		want string
	}{
		{Accept, "accept"},
		{Reject, "reject"},
		{Uncertain, "uncertain"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("Verdict(%d).String() = %q, want %q", int(tt.v), got, tt.want)
		}
	}
}

func TestValidateReplacementIgnoresYearGap(t *testing.T) {
	// A 2014 preprint formally published in 2017: the year difference
	// is expected on the replacement path, not evidence of a mismatch.
	res := ValidateReplacement(
		entryWith(map[string]string{
			"title": "Fully Convolutional Networks for Semantic Segmentation",
			"year":  "2014",
		}),
		candidateWith(map[string]string{
			"title": "Fully Convolutional Networks for Semantic Segmentation",
			"year":  "2017",
			"doi":   "10.1109/tpami.2016.2572683",
		}),
		"10.1109/tpami.2016.2572683",
	)
	if res.Verdict != Accept {
		t.Fatalf("Verdict = %v, want Accept (reason: %s)", res.Verdict, res.Reason)
	}
	if res.YearCompared {
		t.Error("YearCompared = true, want year check skipped")
	}
}

func TestValidateReplacementStillChecksTitleAndDOI(t *testing.T) {
	entry := map[string]string{
		"title": "Fully Convolutional Networks for Semantic Segmentation",
		"year":  "2014",
	}

	res := ValidateReplacement(
		entryWith(entry),
		candidateWith(map[string]string{
			"title": "An Entirely Unrelated Survey of Databases",
			"doi":   "10.1109/tpami.2016.2572683",
		}),
		"10.1109/tpami.2016.2572683",
	)
	if res.Verdict != Reject {
		t.Errorf("title mismatch: Verdict = %v, want Reject", res.Verdict)
	}

	res = ValidateReplacement(
		entryWith(entry),
		candidateWith(map[string]string{
			"title": "Fully Convolutional Networks for Semantic Segmentation",
			"doi":   "10.1109/other.2016.1",
		}),
		"10.1109/tpami.2016.2572683",
	)
	if res.Verdict != Reject {
		t.Errorf("DOI mismatch: Verdict = %v, want Reject", res.Verdict)
	}
}
