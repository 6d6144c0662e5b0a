package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mchmarny/pwgate/pkg/store"
)

const (
	// ManifestKeyDefault is the object holding the promoted version record.
	ManifestKeyDefault = "registry/manifest.json"
	// CounterKeyDefault is the object holding the plain-text run counter.
	CounterKeyDefault = "model_version.txt"

	// NoMetric is the metric of a registry that never promoted anything.
	NoMetric = -1.0

	promoteAttemptsDefault = 3
)

// ErrConflict is returned when concurrent writers keep invalidating the
// manifest generation read by this run.
var ErrConflict = errors.New("manifest changed concurrently")

// Manifest names the currently promoted version.
type Manifest struct {
	BestVersion int     `json:"best_version" yaml:"bestVersion"`
	Metric      float64 `json:"metric" yaml:"metric"`
	Path        string  `json:"path" yaml:"path"`
}

// DefaultManifest is used when no manifest has been written yet.
func DefaultManifest() Manifest {
	return Manifest{BestVersion: 0, Metric: NoMetric, Path: ""}
}

// CounterState is the result of reading the version counter.
type CounterState struct {
	Value      int              `json:"value" yaml:"value"`
	Generation store.Generation `json:"-" yaml:"-"`
	// Degraded is set when the counter existed but could not be read or
	// parsed and Value was defaulted to 0.
	Degraded bool  `json:"degraded" yaml:"degraded"`
	Reason   error `json:"-" yaml:"-"`
}

// Decision is the outcome of a promotion attempt.
type Decision struct {
	Promoted  bool     `json:"promoted" yaml:"promoted"`
	Candidate int      `json:"candidate" yaml:"candidate"`
	Metric    float64  `json:"metric" yaml:"metric"`
	Previous  Manifest `json:"previous" yaml:"previous"`
	Current   Manifest `json:"current" yaml:"current"`
	Attempts  int      `json:"attempts" yaml:"attempts"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithManifestKey overrides the manifest object name.
func WithManifestKey(key string) Option {
	return func(r *Registry) {
		if key != "" {
			r.manifestKey = key
		}
	}
}

// WithCounterKey overrides the version counter object name.
func WithCounterKey(key string) Option {
	return func(r *Registry) {
		if key != "" {
			r.counterKey = key
		}
	}
}

// WithLogger sets the logger used for degradations and decisions.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithPromoteAttempts bounds the re-read/re-decide cycles on conflicts.
func WithPromoteAttempts(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// Registry keeps the promoted manifest and the run counter in a Store.
type Registry struct {
	store       store.Store
	manifestKey string
	counterKey  string
	attempts    int
	logger      *slog.Logger
}

// New creates a registry over the store.
func New(s store.Store, opts ...Option) (*Registry, error) {
	if s == nil {
		return nil, errors.New("store required")
	}

	r := &Registry{
		store:       s,
		manifestKey: ManifestKeyDefault,
		counterKey:  CounterKeyDefault,
		attempts:    promoteAttemptsDefault,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// ShouldPromote returns true only when metric strictly beats the manifest.
func ShouldPromote(current Manifest, metric float64) bool {
	return metric > current.Metric
}

// ReadManifest returns the stored manifest and its generation, or the
// default manifest with generation store.Absent when none exists.
func (r *Registry) ReadManifest(ctx context.Context) (Manifest, store.Generation, error) {
	b, gen, err := r.store.Read(ctx, r.manifestKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return DefaultManifest(), store.Absent, nil
		}
		return Manifest{}, 0, fmt.Errorf("error reading manifest %s: %w", r.manifestKey, err)
	}

	m := DefaultManifest()
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, 0, fmt.Errorf("error decoding manifest %s: %w", r.manifestKey, err)
	}

	return m, gen, nil
}

// WriteManifest stores the manifest if its generation still equals match.
func (r *Registry) WriteManifest(ctx context.Context, m Manifest, match store.Generation) (store.Generation, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return 0, fmt.Errorf("error encoding manifest: %w", err)
	}

	gen, err := r.store.Write(ctx, r.manifestKey, b, match)
	if err != nil {
		return 0, fmt.Errorf("error writing manifest %s: %w", r.manifestKey, err)
	}
	return gen, nil
}

// ReadCounter returns the stored run counter. Missing counters read as 0.
// Unreadable or unparsable counters also read as 0; that degradation is
// logged and flagged on the returned state instead of being returned.
func (r *Registry) ReadCounter(ctx context.Context) CounterState {
	text, gen, err := store.ReadText(ctx, r.store, r.counterKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return CounterState{Generation: store.Absent}
		}
		r.logger.Warn("version counter unreadable, defaulting to 0",
			"key", r.counterKey, "error", err)
		return CounterState{Generation: store.Unconditional, Degraded: true, Reason: err}
	}

	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err == nil && v < 0 {
		err = fmt.Errorf("negative counter: %d", v)
	}
	if err != nil {
		r.logger.Warn("version counter unparsable, defaulting to 0",
			"key", r.counterKey, "value", text, "error", err)
		return CounterState{Generation: gen, Degraded: true, Reason: err}
	}

	return CounterState{Value: v, Generation: gen}
}

// WriteCounter stores the counter if its generation still equals match.
func (r *Registry) WriteCounter(ctx context.Context, v int, match store.Generation) error {
	if v < 0 {
		return fmt.Errorf("invalid counter value: %d", v)
	}

	if _, err := r.store.Write(ctx, r.counterKey, []byte(strconv.Itoa(v)), match); err != nil {
		return fmt.Errorf("error writing version counter %s: %w", r.counterKey, err)
	}
	return nil
}

// Promote records candidate as the best version when metric strictly beats
// the stored manifest. The write is conditional on the generation read; a
// concurrent change causes a re-read and a fresh decision, up to the
// configured number of attempts, after which ErrConflict is returned.
func (r *Registry) Promote(ctx context.Context, candidate int, metric float64, path string) (*Decision, error) {
	d := &Decision{Candidate: candidate, Metric: metric}

	for d.Attempts < r.attempts {
		d.Attempts++

		current, gen, err := r.ReadManifest(ctx)
		if err != nil {
			return nil, err
		}
		d.Previous = current
		d.Current = current

		if !ShouldPromote(current, metric) {
			r.logger.Info("not promoted",
				"candidate", candidate, "metric", metric, "best_metric", current.Metric,
				"best_version", current.BestVersion)
			return d, nil
		}

		if candidate < current.BestVersion {
			r.logger.Warn("candidate version below promoted version",
				"candidate", candidate, "best_version", current.BestVersion)
		}

		next := Manifest{BestVersion: candidate, Metric: metric, Path: path}
		if _, err := r.WriteManifest(ctx, next, gen); err != nil {
			if errors.Is(err, store.ErrPreconditionFailed) {
				r.logger.Warn("manifest changed during promotion, retrying",
					"attempt", d.Attempts, "generation", gen)
				continue
			}
			return nil, err
		}

		d.Promoted = true
		d.Current = next
		r.logger.Info("promoted",
			"version", candidate, "metric", metric, "previous_metric", current.Metric, "path", path)
		return d, nil
	}

	return nil, fmt.Errorf("promotion of version %d after %d attempts: %w", candidate, d.Attempts, ErrConflict)
}
