package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mchmarny/pwgate/pkg/metrics"
	"github.com/mchmarny/pwgate/pkg/store"
)

const (
	// PrefixDefault is the folder under which reports are uploaded.
	PrefixDefault = "reports"
	// SampleSizeDefault is the number of rows in the sample report.
	SampleSizeDefault = 100

	timestampFormat = "20060102150405"
	dirMode         = 0700
	fileMode        = 0600
)

var csvHeader = []string{"password", "score"}

// Artifacts are the local report files of a single run.
type Artifacts struct {
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	Metrics   string `json:"metrics" yaml:"metrics"`
	Weak      string `json:"weak" yaml:"weak"`
	Sample    string `json:"sample" yaml:"sample"`
	Prom      string `json:"prom" yaml:"prom"`
}

// Uploaded holds the store keys of the uploaded reports.
type Uploaded struct {
	Metrics string `json:"metrics" yaml:"metrics"`
	Weak    string `json:"weak" yaml:"weak"`
	Sample  string `json:"sample" yaml:"sample"`
	Prom    string `json:"prom" yaml:"prom"`
}

// Timestamp formats t the way report names carry it.
func Timestamp(t time.Time) string {
	return t.Format(timestampFormat)
}

// Write creates the metrics summary, the weak list, the scored sample and
// the Prometheus text file in outDir.
func Write(outDir, ts string, passwords []string, scores []float64, b *metrics.Batch, version, sampleSize int) (*Artifacts, error) {
	if outDir == "" {
		return nil, errors.New("output directory required")
	}
	if len(passwords) != len(scores) {
		return nil, fmt.Errorf("passwords (%d) and scores (%d) differ in length", len(passwords), len(scores))
	}
	if b == nil {
		return nil, errors.New("batch metrics required")
	}
	if sampleSize <= 0 {
		sampleSize = SampleSizeDefault
	}

	if err := os.MkdirAll(outDir, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create dir: %s: %w", outDir, err)
	}

	a := &Artifacts{
		Timestamp: ts,
		Metrics:   filepath.Join(outDir, fmt.Sprintf("metrics_%s.json", ts)),
		Weak:      filepath.Join(outDir, fmt.Sprintf("weak_passwords_%s.csv", ts)),
		Sample:    filepath.Join(outDir, fmt.Sprintf("sample_scored_%s.csv", ts)),
		Prom:      filepath.Join(outDir, fmt.Sprintf("metrics_%s.prom", ts)),
	}

	if err := writeJSON(a.Metrics, b); err != nil {
		return nil, err
	}

	weak := make([][]string, 0)
	sample := make([][]string, 0, min(sampleSize, len(scores)))
	for i, s := range scores {
		row := []string{passwords[i], formatScore(s)}
		if s < metrics.WeakThreshold {
			weak = append(weak, row)
		}
		if i < sampleSize {
			sample = append(sample, row)
		}
	}

	if err := writeCSV(a.Weak, weak); err != nil {
		return nil, err
	}
	if err := writeCSV(a.Sample, sample); err != nil {
		return nil, err
	}
	if err := writeProm(a.Prom, scores, b, version); err != nil {
		return nil, err
	}

	slog.Debug("reports written", "dir", outDir, "weak", len(weak), "sample", len(sample))
	return a, nil
}

// Keys returns the store keys for the artifacts of a version.
func Keys(prefix string, version int, ts string) *Uploaded {
	if prefix == "" {
		prefix = PrefixDefault
	}
	return &Uploaded{
		Metrics: path.Join(prefix, fmt.Sprintf("metrics_v%d_%s.json", version, ts)),
		Weak:    path.Join(prefix, fmt.Sprintf("weak_passwords_v%d_%s.csv", version, ts)),
		Sample:  path.Join(prefix, fmt.Sprintf("sample_scored_v%d_%s.csv", version, ts)),
		Prom:    path.Join(prefix, fmt.Sprintf("metrics_v%d_%s.prom", version, ts)),
	}
}

// Upload ensures the prefix folder exists and uploads the artifacts.
func Upload(ctx context.Context, s store.Store, prefix string, version int, a *Artifacts) (*Uploaded, error) {
	if s == nil {
		return nil, errors.New("store required")
	}
	if a == nil {
		return nil, errors.New("artifacts required")
	}
	if prefix == "" {
		prefix = PrefixDefault
	}

	if err := store.EnsureFolder(ctx, s, prefix); err != nil {
		return nil, err
	}

	keys := Keys(prefix, version, a.Timestamp)
	uploads := []struct {
		key   string
		local string
	}{
		{keys.Metrics, a.Metrics},
		{keys.Weak, a.Weak},
		{keys.Sample, a.Sample},
		{keys.Prom, a.Prom},
	}

	for _, u := range uploads {
		if err := s.UploadFile(ctx, u.key, u.local); err != nil {
			return nil, fmt.Errorf("error uploading %s: %w", u.local, err)
		}
		slog.Info("uploaded", "uri", s.URI(u.key))
	}

	return keys, nil
}

// formatScore writes the shortest form of v, keeping a fractional digit on
// whole numbers so the column reads as floats ("10.0", not "10").
func formatScore(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsInf(v, 0) || math.IsNaN(v) || strings.ContainsAny(s, ".e") {
		return s
	}
	return s + ".0"
}

func writeJSON(p string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding %s: %w", p, err)
	}
	if err := os.WriteFile(p, b, fileMode); err != nil {
		return fmt.Errorf("failed to write file: %s: %w", p, err)
	}
	return nil
}

func writeCSV(p string, rows [][]string) (retErr error) {
	f, err := os.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fileMode)
	if err != nil {
		return fmt.Errorf("failed to create file: %s: %w", p, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("closing file: %w", cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("error writing header to %s: %w", p, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("error writing rows to %s: %w", p, err)
	}
	return nil
}

func writeProm(p string, scores []float64, b *metrics.Batch, version int) (retErr error) {
	f, err := os.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fileMode)
	if err != nil {
		return fmt.Errorf("failed to create file: %s: %w", p, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("closing file: %w", cerr)
		}
	}()

	return metrics.WriteText(f, scores, b, version)
}
