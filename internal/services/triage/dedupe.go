// Package triage turns raw incident reports into canonical disasters and
// submits new field reports.
package triage

import "github.com/idro/idro/internal/models"

// Deduplicate keeps one disaster per distinct location string. The first
// occurrence wins and order of first appearance is preserved. Locations are
// compared verbatim, so "Bhuj" and "Bhuj, Gujarat" stay separate.
func Deduplicate(ds []models.Disaster) []models.Disaster {
	seen := make(map[string]struct{}, len(ds))
	out := make([]models.Disaster, 0, len(ds))
	for _, d := range ds {
		if _, dup := seen[d.Location]; dup {
			continue
		}
		seen[d.Location] = struct{}{}
		out = append(out, d)
	}
	return out
}

// OpenOnly returns the disasters whose mission is still OPEN.
func OpenOnly(ds []models.Disaster) []models.Disaster {
	out := make([]models.Disaster, 0, len(ds))
	for _, d := range ds {
		if d.IsOpen() {
			out = append(out, d)
		}
	}
	return out
}

// ActiveDisasters is the canonical list of open, deduplicated disasters.
func ActiveDisasters(ds []models.Disaster) []models.Disaster {
	return Deduplicate(OpenOnly(ds))
}
