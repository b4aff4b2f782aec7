// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package complete

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pdiddy/bibcomplete/internal/faillog"
	"github.com/pdiddy/bibcomplete/internal/ledger"
	"github.com/pdiddy/bibcomplete/internal/sources"
	"github.com/pdiddy/bibcomplete/pkg/types"
)

func TestIsPreprint(t *testing.T) {
	tests := []struct {
		name  string
		entry *types.Entry
		want  bool
	}{
		{
			name: "misc with eprint",
			entry: &types.Entry{Type: "misc", Fields: map[string]string{
				"title": "Attention Is All You Need", "eprint": "1706.03762"}},
			want: true,
		},
		{
			name: "misc without any arXiv id",
			entry: &types.Entry{Type: "misc", Fields: map[string]string{
				"title": "Some Technical Report"}},
			want: false,
		},
		{
			name: "article with archiveprefix",
			entry: &types.Entry{Type: "article", Fields: map[string]string{
				"archiveprefix": "arXiv", "eprint": "1810.04805"}},
			want: true,
		},
		{
			name: "article with arXiv journal",
			entry: &types.Entry{Type: "article", Fields: map[string]string{
				"journal": "arXiv preprint arXiv:1810.04805"}},
			want: true,
		},
		{
			name: "published journal article",
			entry: &types.Entry{Type: "article", Fields: map[string]string{
				"journal": "Communications of the ACM", "doi": "10.1145/3065386"}},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPreprint(tt.entry); got != tt.want {
				t.Errorf("IsPreprint() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPreprintID(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		want   string
	}{
		{"eprint field", map[string]string{"eprint": "1706.03762"}, "1706.03762"},
		{"arxivid field", map[string]string{"arxivid": "2410.03805"}, "2410.03805"},
		{"abstract URL", map[string]string{"url": "https://arxiv.org/abs/1810.04805v2"}, "1810.04805v2"},
		{"pdf URL", map[string]string{"url": "https://arxiv.org/pdf/2001.08361"}, "2001.08361"},
		{"synthetic DOI", map[string]string{"doi": "10.48550/arXiv.1706.03762"}, "1706.03762"},
		{"eprint wins over URL", map[string]string{
			"eprint": "1706.03762", "url": "https://arxiv.org/abs/9999.99999"}, "1706.03762"},
		{"nothing", map[string]string{"title": "T"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &types.Entry{Type: "misc", Fields: tt.fields}
			if got := PreprintID(e); got != tt.want {
				t.Errorf("PreprintID() = %q, want %q", got, tt.want)
			}
		})
	}
}

// publishedFunc adapts a function to the PublishedLookup interface.
type publishedFunc func(ctx context.Context, arxivID string) (*sources.Published, error)

func (f publishedFunc) LookupPublished(ctx context.Context, arxivID string) (*sources.Published, error) {
	return f(ctx, arxivID)
}

func bertPreprint() *types.Entry {
	return &types.Entry{ID: "devlin2019", Type: "misc", Fields: map[string]string{
		"title":  "BERT: Pre-training of Deep Bidirectional Transformers for Language Understanding",
		"author": "Devlin, Jacob and Chang, Ming-Wei",
		"eprint": "1810.04805",
		"year":   "2018",
	}}
}

func TestReplacePreprintSwapsRecord(t *testing.T) {
	publishedDOI := "10.18653/v1/n19-1423"
	reg := adapterFunc(func(ctx context.Context, doi string, hint sources.Hint) (*types.RawRecord, error) {
		if doi != publishedDOI {
			return nil, fmt.Errorf("%w: unexpected DOI %s", sources.ErrEmpty, doi)
		}
		return &types.RawRecord{
			EntryType: "inproceedings",
			Source:    "crossref",
			Fields: map[string]string{
				"title":     "BERT: Pre-training of Deep Bidirectional Transformers for Language Understanding",
				"author":    "Devlin, Jacob and Chang, Ming-Wei and Lee, Kenton and Toutanova, Kristina",
				"booktitle": "Proceedings of NAACL-HLT 2019",
				"year":      "2019",
				"doi":       publishedDOI,
			},
		}, nil
	}, "crossref", sources.KindRegistry)

	cfg := testConfig()
	cfg.ReplacePreprints = true
	c, led, _ := newTestCompleter(t, cfg, reg)
	c.deps.Published = publishedFunc(func(_ context.Context, arxivID string) (*sources.Published, error) {
		if arxivID != "1810.04805" {
			t.Errorf("looked up arXiv id %q, want 1810.04805", arxivID)
		}
		return &sources.Published{DOI: publishedDOI, Title: "BERT", Venue: "NAACL-HLT", Year: 2019}, nil
	})

	e := bertPreprint()
	if _, err := c.CompleteEntry(context.Background(), e); err != nil {
		t.Fatalf("CompleteEntry: %v", err)
	}

	if e.ID != "devlin2019" {
		t.Errorf("ID = %q, want preserved cite key", e.ID)
	}
	if e.Type != "inproceedings" {
		t.Errorf("Type = %q, want inproceedings", e.Type)
	}
	if got := e.Get("doi"); got != publishedDOI {
		t.Errorf("doi = %q, want %q", got, publishedDOI)
	}
	if got := e.Get("booktitle"); got != "Proceedings of NAACL-HLT 2019" {
		t.Errorf("booktitle = %q", got)
	}
	// The preprint lineage survives the swap.
	if got := e.Get("eprint"); got != "1810.04805" {
		t.Errorf("eprint = %q, want carried over", got)
	}

	var replaced int
	for _, ev := range led.Events() {
		if ev.Kind == types.RecordReplaced {
			replaced++
			if ev.NewValue != publishedDOI {
				t.Errorf("replacement NewValue = %q, want %q", ev.NewValue, publishedDOI)
			}
		}
	}
	if replaced != 1 {
		t.Errorf("got %d replacement events, want exactly 1", replaced)
	}
}

func TestReplacePreprintNoPublishedVersion(t *testing.T) {
	reg := adapterFunc(func(ctx context.Context, doi string, hint sources.Hint) (*types.RawRecord, error) {
		return &types.RawRecord{EntryType: "article", Source: "crossref", Fields: map[string]string{
			"title": "BERT: Pre-training of Deep Bidirectional Transformers for Language Understanding",
			"pages": "4171-4186",
		}}, nil
	}, "crossref", sources.KindRegistry)

	cfg := testConfig()
	cfg.ReplacePreprints = true
	c, led, _ := newTestCompleter(t, cfg, reg)
	c.deps.Published = publishedFunc(func(context.Context, string) (*sources.Published, error) {
		return nil, fmt.Errorf("%w: only the preprint is indexed", sources.ErrEmpty)
	})

	e := bertPreprint()
	e.Set("doi", "10.48550/arXiv.1810.04805")
	if _, err := c.CompleteEntry(context.Background(), e); err != nil {
		t.Fatalf("CompleteEntry: %v", err)
	}

	// No replacement, but the normal chain still fills gaps.
	for _, ev := range led.Events() {
		if ev.Kind == types.RecordReplaced {
			t.Fatal("unexpected replacement event")
		}
	}
	if got := e.Get("pages"); got != "4171-4186" {
		t.Errorf("pages = %q, want filled by the normal chain", got)
	}
	if e.Type != "misc" {
		t.Errorf("Type = %q, want unchanged", e.Type)
	}
}

func TestReplacePreprintRejectsMismatchedCandidate(t *testing.T) {
	publishedDOI := "10.1145/wrong.1"
	reg := adapterFunc(func(ctx context.Context, doi string, hint sources.Hint) (*types.RawRecord, error) {
		return &types.RawRecord{EntryType: "article", Source: "crossref", Fields: map[string]string{
			"title": "An Entirely Unrelated Survey of Databases",
			"doi":   publishedDOI,
		}}, nil
	}, "crossref", sources.KindRegistry)

	cfg := testConfig()
	cfg.ReplacePreprints = true
	c, led, _ := newTestCompleter(t, cfg, reg)
	c.deps.Published = publishedFunc(func(context.Context, string) (*sources.Published, error) {
		return &sources.Published{DOI: publishedDOI}, nil
	})

	e := bertPreprint()
	c.CompleteEntry(context.Background(), e)

	for _, ev := range led.Events() {
		if ev.Kind == types.RecordReplaced {
			t.Fatal("mismatched published candidate must not replace the entry")
		}
	}
	if e.Type != "misc" {
		t.Errorf("Type = %q, want unchanged", e.Type)
	}
}

func TestReplacePreprintToleratesYearGap(t *testing.T) {
	// A 2014 preprint whose formal version appeared in 2017. The year
	// difference must not block the replacement.
	publishedDOI := "10.1109/tpami.2016.2572683"
	reg := adapterFunc(func(ctx context.Context, doi string, hint sources.Hint) (*types.RawRecord, error) {
		return &types.RawRecord{
			EntryType: "article",
			Source:    "crossref",
			Fields: map[string]string{
				"title":   "Fully Convolutional Networks for Semantic Segmentation",
				"journal": "IEEE Transactions on Pattern Analysis and Machine Intelligence",
				"year":    "2017",
				"doi":     publishedDOI,
			},
		}, nil
	}, "crossref", sources.KindRegistry)

	cfg := testConfig()
	cfg.ReplacePreprints = true
	c, led, _ := newTestCompleter(t, cfg, reg)
	c.deps.Published = publishedFunc(func(context.Context, string) (*sources.Published, error) {
		return &sources.Published{DOI: publishedDOI, Year: 2017}, nil
	})

	e := &types.Entry{ID: "long2014", Type: "misc", Fields: map[string]string{
		"title":  "Fully Convolutional Networks for Semantic Segmentation",
		"eprint": "1411.4038",
		"year":   "2014",
	}}
	if _, err := c.CompleteEntry(context.Background(), e); err != nil {
		t.Fatalf("CompleteEntry: %v", err)
	}

	var replaced int
	for _, ev := range led.Events() {
		if ev.Kind == types.RecordReplaced {
			replaced++
		}
	}
	if replaced != 1 {
		t.Fatalf("got %d replacement events, want 1", replaced)
	}
	if got := e.Get("year"); got != "2017" {
		t.Errorf("year = %q, want published year", got)
	}
	if got := e.Get("doi"); got != publishedDOI {
		t.Errorf("doi = %q, want %q", got, publishedDOI)
	}
}

func TestReplacePreprintFallsBackToTitleSearch(t *testing.T) {
	// Semantic Scholar answers empty; the search adapter finds the
	// published venue by title and supplies the DOI.
	publishedDOI := "10.1109/tpami.2016.2572683"
	reg := adapterFunc(func(ctx context.Context, doi string, hint sources.Hint) (*types.RawRecord, error) {
		if doi != publishedDOI {
			return nil, fmt.Errorf("%w: unexpected DOI %s", sources.ErrEmpty, doi)
		}
		return &types.RawRecord{
			EntryType: "article",
			Source:    "crossref",
			Fields: map[string]string{
				"title":   "Fully Convolutional Networks for Semantic Segmentation",
				"journal": "IEEE Transactions on Pattern Analysis and Machine Intelligence",
				"year":    "2017",
				"doi":     publishedDOI,
			},
		}, nil
	}, "crossref", sources.KindRegistry)
	search := adapterFunc(func(ctx context.Context, doi string, hint sources.Hint) (*types.RawRecord, error) {
		if hint.Title == "" {
			t.Error("search adapter called without a title hint")
		}
		return &types.RawRecord{
			EntryType: "article",
			Source:    "dblp",
			Fields: map[string]string{
				"title":   "Fully Convolutional Networks for Semantic Segmentation",
				"journal": "IEEE Trans. Pattern Anal. Mach. Intell.",
				"doi":     publishedDOI,
			},
		}, nil
	}, "dblp", sources.KindSearch)

	cfg := testConfig()
	cfg.ReplacePreprints = true
	c, led, _ := newTestCompleter(t, cfg, reg, search)
	c.deps.Published = publishedFunc(func(context.Context, string) (*sources.Published, error) {
		return nil, fmt.Errorf("%w: paper not indexed", sources.ErrEmpty)
	})

	e := &types.Entry{ID: "long2014", Type: "misc", Fields: map[string]string{
		"title":  "Fully Convolutional Networks for Semantic Segmentation",
		"eprint": "1411.4038",
		"year":   "2014",
	}}
	if _, err := c.CompleteEntry(context.Background(), e); err != nil {
		t.Fatalf("CompleteEntry: %v", err)
	}

	var replaced int
	for _, ev := range led.Events() {
		if ev.Kind == types.RecordReplaced {
			replaced++
			if ev.NewValue != publishedDOI {
				t.Errorf("replacement NewValue = %q, want %q", ev.NewValue, publishedDOI)
			}
		}
	}
	if replaced != 1 {
		t.Fatalf("got %d replacement events, want 1", replaced)
	}
}

func TestCompleteBatchCountsReplacedThenExhausted(t *testing.T) {
	// The registry serves the published record once for the replacement
	// fetch, then fails; the entry is failed for the remaining fields
	// but still counts as modified.
	publishedDOI := "10.18653/v1/n19-1423"
	var calls int32
	reg := adapterFunc(func(ctx context.Context, doi string, hint sources.Hint) (*types.RawRecord, error) {
		if atomic.AddInt32(&calls, 1) > 1 {
			return nil, fmt.Errorf("%w: registry outage", sources.ErrUnavailable)
		}
		return &types.RawRecord{
			EntryType: "inproceedings",
			Source:    "crossref",
			Fields: map[string]string{
				"title":     "BERT: Pre-training of Deep Bidirectional Transformers for Language Understanding",
				"booktitle": "Proceedings of NAACL-HLT 2019",
				"year":      "2019",
				"doi":       publishedDOI,
			},
		}, nil
	}, "crossref", sources.KindRegistry)

	cfg := testConfig()
	cfg.ReplacePreprints = true
	out := &bytes.Buffer{}
	led := ledger.New()
	c := New(cfg, Deps{
		Adapters: []sources.Adapter{reg},
		Ledger:   led,
		FailLog:  faillog.New(filepath.Join(t.TempDir(), "f.json")),
		Out:      out,
	})
	c.deps.Published = publishedFunc(func(context.Context, string) (*sources.Published, error) {
		return &sources.Published{DOI: publishedDOI, Year: 2019}, nil
	})

	result, err := c.CompleteBatch(context.Background(), []*types.Entry{bertPreprint()})
	if err != nil {
		t.Fatalf("CompleteBatch: %v", err)
	}
	if result.Processed != 1 || result.Modified != 1 || result.Failed != 1 {
		t.Errorf("result = %+v, want 1 processed, 1 modified, 1 failed", result)
	}
	if !strings.Contains(out.String(), "partially completed") {
		t.Errorf("output missing partial-completion line:\n%s", out.String())
	}
}
