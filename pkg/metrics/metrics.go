package metrics

import (
	"math"
	"slices"
	"strconv"
)

const (
	// WeakThreshold is the score below which a password counts as weak.
	WeakThreshold = 40.0
	// StrongThreshold is the score at or above which a password counts as strong.
	StrongThreshold = 80.0

	scorePlaces = 3
	pctPlaces   = 4
)

// Batch is the aggregate summary of a scored batch.
type Batch struct {
	Count       int     `json:"count" yaml:"count"`
	AvgScore    float64 `json:"avg_score" yaml:"avgScore"`
	MedianScore float64 `json:"median_score" yaml:"medianScore"`
	WeakPct     float64 `json:"weak_pct" yaml:"weakPct"`
	StrongPct   float64 `json:"strong_pct" yaml:"strongPct"`
	P10         float64 `json:"p10" yaml:"p10"`
	P90         float64 `json:"p90" yaml:"p90"`
}

// Compute summarizes the scores. An empty input yields a zero Batch.
func Compute(scores []float64) *Batch {
	if len(scores) == 0 {
		return &Batch{}
	}

	sorted := slices.Clone(scores)
	slices.Sort(sorted)

	n := float64(len(sorted))
	var sum float64
	var weak, strong int
	for _, s := range sorted {
		sum += s
		if s < WeakThreshold {
			weak++
		}
		if s >= StrongThreshold {
			strong++
		}
	}

	return &Batch{
		Count:       len(sorted),
		AvgScore:    Round(sum/n, scorePlaces),
		MedianScore: Round(median(sorted), scorePlaces),
		WeakPct:     Round(float64(weak)/n, pctPlaces),
		StrongPct:   Round(float64(strong)/n, pctPlaces),
		P10:         Round(Percentile(sorted, 10), scorePlaces),
		P90:         Round(Percentile(sorted, 90), scorePlaces),
	}
}

// Percentile returns the p-th percentile (0-100) of ascending sorted values
// using linear interpolation between the closest order statistics.
func Percentile(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}

	k := float64(len(sorted)-1) * (p / 100.0)
	f := math.Floor(k)
	c := math.Ceil(k)
	if f == c {
		return sorted[int(k)]
	}

	return sorted[int(f)]*(c-k) + sorted[int(c)]*(k-f)
}

// Round rounds v to the given number of decimal places. Exact ties go to
// the even digit, and the decision is made on the exact binary value of v.
func Round(v float64, places int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return v
	}
	return r
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
