package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/mchmarny/pwgate/pkg/metrics"
	"github.com/mchmarny/pwgate/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, p string) [][]string {
	t.Helper()
	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestTimestamp(t *testing.T) {
	ts := Timestamp(time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC))
	assert.Equal(t, "20250304050607", ts)
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	passwords := []string{"a", "b,c", "d", "e"}
	scores := []float64{10, 20.5, 80, 90}
	b := metrics.Compute(scores)

	a, err := Write(dir, "20250101000000", passwords, scores, b, 3, 2)
	require.NoError(t, err)

	raw, err := os.ReadFile(a.Metrics)
	require.NoError(t, err)
	var got metrics.Batch
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, *b, got)
	assert.Contains(t, string(raw), `"avg_score"`)
	assert.Contains(t, string(raw), `"median_score"`)

	weak := readCSV(t, a.Weak)
	assert.Equal(t, [][]string{{"password", "score"}, {"a", "10.0"}, {"b,c", "20.5"}}, weak)

	sample := readCSV(t, a.Sample)
	assert.Equal(t, [][]string{{"password", "score"}, {"a", "10.0"}, {"b,c", "20.5"}}, sample)

	prom, err := os.ReadFile(a.Prom)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `pwgate_batch_count{version="3"} 4`)
}

func TestFormatScore(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{19, "19.0"},
		{100, "100.0"},
		{20.5, "20.5"},
		{33.333333333333336, "33.333333333333336"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatScore(tt.in))
	}
}

func TestWrite_DefaultSample(t *testing.T) {
	n := SampleSizeDefault + 20
	passwords := make([]string, n)
	scores := make([]float64, n)
	for i := range passwords {
		passwords[i] = "Str0ng!Passw0rd"
		scores[i] = 90
	}

	a, err := Write(t.TempDir(), "ts", passwords, scores, metrics.Compute(scores), 1, 0)
	require.NoError(t, err)
	assert.Len(t, readCSV(t, a.Sample), SampleSizeDefault+1)
	assert.Len(t, readCSV(t, a.Weak), 1)
}

func TestWrite_Invalid(t *testing.T) {
	b := metrics.Compute(nil)
	_, err := Write("", "ts", nil, nil, b, 1, 1)
	assert.Error(t, err)
	_, err = Write(t.TempDir(), "ts", []string{"a"}, nil, b, 1, 1)
	assert.Error(t, err)
	_, err = Write(t.TempDir(), "ts", nil, nil, nil, 1, 1)
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	k := Keys("", 4, "20250101000000")
	assert.Equal(t, "reports/metrics_v4_20250101000000.json", k.Metrics)
	assert.Equal(t, "reports/weak_passwords_v4_20250101000000.csv", k.Weak)
	assert.Equal(t, "reports/sample_scored_v4_20250101000000.csv", k.Sample)
	assert.Equal(t, "reports/metrics_v4_20250101000000.prom", k.Prom)

	assert.Equal(t, "out/x/metrics_v1_t.json", Keys("out/x", 1, "t").Metrics)
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	scores := []float64{10, 90}
	a, err := Write(t.TempDir(), "20250101000000", []string{"x", "y"}, scores, metrics.Compute(scores), 2, 10)
	require.NoError(t, err)

	s := store.NewMemory()
	up, err := Upload(ctx, s, "", 2, a)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"reports/",
		"reports/metrics_v2_20250101000000.json",
		"reports/metrics_v2_20250101000000.prom",
		"reports/sample_scored_v2_20250101000000.csv",
		"reports/weak_passwords_v2_20250101000000.csv",
	}, s.Keys())

	text, _, err := store.ReadText(ctx, s, up.Metrics)
	require.NoError(t, err)
	assert.Contains(t, text, `"count": 2`)
}

func TestUpload_Invalid(t *testing.T) {
	_, err := Upload(context.Background(), nil, "", 1, &Artifacts{})
	assert.Error(t, err)
	_, err = Upload(context.Background(), store.NewMemory(), "", 1, nil)
	assert.Error(t, err)
	_, err = Upload(context.Background(), store.NewMemory(), "", 1, &Artifacts{Metrics: "/nope/missing.json"})
	assert.Error(t, err)
}
