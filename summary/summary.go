// Package summary describes a trip in numbers and one sentence.
package summary

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/capsule/tripoverview/common"
	"github.com/capsule/tripoverview/types/sample"
)

type Summary struct {
	DurationDays int      `json:"duration_days"`
	Countries    []string `json:"countries"`
	TotalKm      float64  `json:"total_km"`
	Text         string   `json:"text"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CountryCount returns the number of distinct countries visited.
func (s Summary) CountryCount() int {
	return len(s.Countries)
}

// Describe summarizes raw samples. Days are calendar days in loc, or UTC when nil.
// TotalKm is the cumulative km of the latest sample that has one.
// Countries lists distinct non-blank labels in order of first appearance.
func Describe(samples []sample.Sample, loc *time.Location) (Summary, error) {
	if len(samples) == 0 {
		return Summary{}, sample.ErrEmptyTrace
	}
	if loc == nil {
		loc = time.UTC
	}
	sorted := slices.Clone(samples)
	slices.SortStableFunc(sorted, sample.SortKey)

	first, last := sorted[0], sorted[len(sorted)-1]
	out := Summary{
		Start:     first.Time(),
		End:       last.Time(),
		Countries: []string{},
	}
	out.DurationDays = daysBetween(first.Date(loc), last.Date(loc))

	seen := map[string]bool{}
	for _, s := range sorted {
		if s.Country == "" || seen[s.Country] {
			continue
		}
		seen[s.Country] = true
		out.Countries = append(out.Countries, s.Country)
	}

	for i := len(sorted) - 1; i >= 0; i-- {
		if !math.IsNaN(sorted[i].Km) {
			out.TotalKm = sorted[i].Km
			break
		}
	}

	out.Text = fmt.Sprintf("The current trip lasted %d days, %d country traveled for a total of %s km",
		out.DurationDays, out.CountryCount(), common.FormatFixed(out.TotalKm))
	return out, nil
}

// daysBetween counts calendar days from a to b, both midnights of the same location.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	// Calendar arithmetic in UTC avoids DST-shortened days.
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
