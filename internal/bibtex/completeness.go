// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibtex

import "github.com/pdiddy/bibcomplete/pkg/types"

// importantFields are the fields checked for completeness, roughly in
// descending order of importance.
var importantFields = []string{
	"author", "title", "year", "journal", "booktitle",
	"volume", "number", "pages", "publisher", "doi",
}

// ImportantFields returns the fields expected for an entry type. The
// venue field depends on the type: journal for article-like entries,
// booktitle for inproceedings-like ones; the opposite is never required.
func ImportantFields(entryType string) []string {
	fields := make([]string, 0, len(importantFields))
	for _, f := range importantFields {
		switch {
		case f == "journal" && entryType == "inproceedings":
			continue
		case f == "booktitle" && entryType == "article":
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

// Completeness reports which important fields are present and missing
// for the entry's type.
func Completeness(e *types.Entry) (present, missing []string) {
	for _, f := range ImportantFields(e.Type) {
		if e.Has(f) {
			present = append(present, f)
		} else {
			missing = append(missing, f)
		}
	}
	return present, missing
}
