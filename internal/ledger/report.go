// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pdiddy/bibcomplete/pkg/types"
)

// kindLabels maps change kinds to their report headings.
var kindLabels = map[types.ChangeKind]string{
	types.FieldAdded:     "fields added",
	types.FieldUpdated:   "fields updated",
	types.RecordReplaced: "records replaced",
}

// Markdown renders the ledger as a markdown change report, grouped by
// entry in cite-key order.
func (l *Ledger) Markdown() string {
	var b strings.Builder
	b.WriteString("# Completion Report\n\n")
	b.WriteString(fmt.Sprintf("Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05")))

	events := l.Events()
	if len(events) == 0 {
		b.WriteString("No changes.\n")
		return b.String()
	}

	counts := l.CountByKind()
	b.WriteString("## Summary\n\n")
	b.WriteString(fmt.Sprintf("- Entries changed: %d\n", len(l.EntryIDs())))
	for _, kind := range []types.ChangeKind{types.FieldAdded, types.FieldUpdated, types.RecordReplaced} {
		if n := counts[kind]; n > 0 {
			b.WriteString(fmt.Sprintf("- %s: %d\n", capitalize(kindLabels[kind]), n))
		}
	}
	b.WriteString("\n## Changes by Entry\n")

	for _, id := range l.EntryIDs() {
		b.WriteString(fmt.Sprintf("\n### %s\n\n", id))
		for _, ev := range l.ByEntry(id) {
			switch ev.Kind {
			case types.RecordReplaced:
				b.WriteString(fmt.Sprintf("- **replaced with published version** (%s): doi `%s` -> `%s`\n",
					ev.Source, valueOrDash(ev.OldValue), valueOrDash(ev.NewValue)))
			case types.FieldUpdated:
				b.WriteString(fmt.Sprintf("- `%s` updated (%s): `%s` -> `%s`\n",
					ev.Field, ev.Source, valueOrDash(ev.OldValue), truncate(ev.NewValue)))
			default:
				b.WriteString(fmt.Sprintf("- `%s` added (%s): %s\n",
					ev.Field, ev.Source, truncate(ev.NewValue)))
			}
		}
	}

	return b.String()
}

// WriteMarkdown writes the markdown report to a file.
func (l *Ledger) WriteMarkdown(path string) error {
	if err := os.WriteFile(path, []byte(l.Markdown()), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// Summarize prints a one-screen summary of the run to w.
func (l *Ledger) Summarize(w io.Writer) {
	counts := l.CountByKind()
	fmt.Fprintf(w, "Entries changed: %d\n", len(l.EntryIDs()))
	for _, kind := range []types.ChangeKind{types.FieldAdded, types.FieldUpdated, types.RecordReplaced} {
		fmt.Fprintf(w, "  %-16s %d\n", kindLabels[kind]+":", counts[kind])
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate keeps report lines readable when a source hands back a long
// abstract.
func truncate(s string) string {
	if len(s) <= 80 {
		return s
	}
	return s[:77] + "..."
}
