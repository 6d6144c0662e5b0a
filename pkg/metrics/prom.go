package metrics

import (
	"fmt"
	"io"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const namespace = "pwgate"

var scoreBuckets = prometheus.LinearBuckets(10, 10, 9)

// WriteText renders the batch summary and score distribution of a run in
// the Prometheus text exposition format (node_exporter textfile compatible).
func WriteText(w io.Writer, scores []float64, b *Batch, version int) error {
	if b == nil {
		return fmt.Errorf("batch metrics required")
	}

	families, err := gather(scores, b, version)
	if err != nil {
		return fmt.Errorf("error gathering metrics: %w", err)
	}

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("error encoding metric family %s: %w", mf.GetName(), err)
		}
	}

	return nil
}

func gather(scores []float64, b *Batch, version int) ([]*dto.MetricFamily, error) {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"version": strconv.Itoa(version)}

	gauges := []struct {
		name  string
		help  string
		value float64
	}{
		{"count", "Number of scored passwords.", float64(b.Count)},
		{"avg_score", "Mean password strength score.", b.AvgScore},
		{"median_score", "Median password strength score.", b.MedianScore},
		{"weak_ratio", "Fraction of passwords scoring below the weak threshold.", b.WeakPct},
		{"strong_ratio", "Fraction of passwords scoring at or above the strong threshold.", b.StrongPct},
		{"p10_score", "10th percentile password strength score.", b.P10},
		{"p90_score", "90th percentile password strength score.", b.P90},
	}

	for _, g := range gauges {
		m := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "batch",
			Name:        g.name,
			Help:        g.help,
			ConstLabels: labels,
		})
		m.Set(g.value)
		if err := reg.Register(m); err != nil {
			return nil, fmt.Errorf("error registering %s: %w", g.name, err)
		}
	}

	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   "batch",
		Name:        "score",
		Help:        "Distribution of password strength scores.",
		ConstLabels: labels,
		Buckets:     scoreBuckets,
	})
	for _, s := range scores {
		h.Observe(s)
	}
	if err := reg.Register(h); err != nil {
		return nil, fmt.Errorf("error registering score histogram: %w", err)
	}

	return reg.Gather()
}
