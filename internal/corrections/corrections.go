// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package corrections maintains the curated DOI corrections table.
// Entries in source .bib files sometimes carry DOIs with typos, dead
// registrations, or publisher migrations; the table overrides what the
// resolver extracted before any network fetch happens.
package corrections

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bibcomplete/internal/resolve"
)

// Status classifies a correction record.
type Status string

const (
	// StatusCorrected means a replacement DOI is known.
	StatusCorrected Status = "corrected"
	// StatusInvalid means the DOI is known-bad with no replacement.
	StatusInvalid Status = "invalid"
	// StatusPending means the DOI is suspect but unresearched.
	StatusPending Status = "pending"
)

// Correction is one curated record about a problematic DOI.
type Correction struct {
	OriginalDOI  string `yaml:"original_doi"`
	CorrectedDOI string `yaml:"corrected_doi,omitempty"`
	Status       Status `yaml:"status"`
	Reason       string `yaml:"reason,omitempty"`
}

type tableFile struct {
	Corrections []Correction `yaml:"corrections"`
}

// Table indexes corrections by normalized original DOI.
type Table struct {
	byDOI map[string]Correction
}

// Load reads a corrections table from a YAML file. A missing file is
// not an error; it yields an empty table.
func Load(path string) (*Table, error) {
	t := &Table{byDOI: make(map[string]Correction)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading corrections: %w", err)
	}

	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing corrections: %w", err)
	}

	for _, c := range file.Corrections {
		id, err := resolve.Parse(c.OriginalDOI)
		if err != nil {
			// A correction keyed on a malformed DOI can never match a
			// resolved identifier, so it is dropped rather than fatal.
			continue
		}
		switch c.Status {
		case StatusCorrected, StatusInvalid, StatusPending:
		default:
			return nil, fmt.Errorf("correction for %s has unknown status %q", c.OriginalDOI, c.Status)
		}
		if c.Status == StatusCorrected && c.CorrectedDOI == "" {
			return nil, fmt.Errorf("correction for %s is marked corrected but has no corrected_doi", c.OriginalDOI)
		}
		t.byDOI[id.DOI] = c
	}
	return t, nil
}

// Lookup finds the correction for a DOI, if any. Matching is
// case-insensitive through DOI normalization.
func (t *Table) Lookup(doi string) (Correction, bool) {
	c, ok := t.byDOI[resolve.Normalize(doi)]
	return c, ok
}

// Len reports the number of loaded corrections.
func (t *Table) Len() int { return len(t.byDOI) }
