package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mchmarny/pwgate/pkg/config"
	"github.com/mchmarny/pwgate/pkg/data"
	"github.com/mchmarny/pwgate/pkg/input"
	"github.com/mchmarny/pwgate/pkg/metrics"
	"github.com/mchmarny/pwgate/pkg/notify"
	"github.com/mchmarny/pwgate/pkg/registry"
	"github.com/mchmarny/pwgate/pkg/report"
	"github.com/mchmarny/pwgate/pkg/score"
	"github.com/mchmarny/pwgate/pkg/store"
)

var (
	// ErrConfiguration is returned when a required setting is missing or
	// invalid. Nothing has been scored when it is returned.
	ErrConfiguration = errors.New("configuration error")
	// ErrInput is returned when the password source cannot be read.
	ErrInput = errors.New("input error")
	// ErrThreshold is returned when the batch average is below the
	// configured minimum. Reports are written locally but not uploaded.
	ErrThreshold = errors.New("average score below minimum")
)

// Notifier reports the outcome of a run on a commit.
type Notifier interface {
	Notify(ctx context.Context, sha string, o *notify.Outcome) error
}

// Result is the outcome of a successful run.
type Result struct {
	RunID          string             `json:"run_id" yaml:"runId"`
	Promoted       bool               `json:"promoted" yaml:"promoted"`
	Version        int                `json:"version" yaml:"version"`
	Metric         float64            `json:"metric" yaml:"metric"`
	CounterUpdated bool               `json:"counter_updated" yaml:"counterUpdated"`
	Degraded       bool               `json:"degraded" yaml:"degraded"`
	Batch          *metrics.Batch     `json:"batch" yaml:"batch"`
	Reports        *report.Uploaded   `json:"reports" yaml:"reports"`
	Decision       *registry.Decision `json:"decision" yaml:"decision"`
}

// Status is the current registry state.
type Status struct {
	Manifest registry.Manifest     `json:"manifest" yaml:"manifest"`
	Counter  registry.CounterState `json:"counter" yaml:"counter"`
	Location string                `json:"location" yaml:"location"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithNotifier sets the commit status notifier.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) {
		p.notifier = n
	}
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides the time source used for report names.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// Pipeline scores a password batch and advances the registry.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	registry *registry.Registry
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// New validates the config and creates a pipeline over the store.
func New(cfg *config.Config, s store.Store, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if s == nil {
		return nil, fmt.Errorf("%w: store required", ErrConfiguration)
	}

	p := &Pipeline{
		cfg:    cfg,
		store:  s,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(p)
	}

	reg, err := registry.New(s,
		registry.WithManifestKey(cfg.ManifestKey),
		registry.WithCounterKey(cfg.CounterKey),
		registry.WithLogger(p.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	p.registry = reg

	return p, nil
}

// Status returns the promoted manifest and the current counter.
func (p *Pipeline) Status(ctx context.Context) (*Status, error) {
	m, _, err := p.registry.ReadManifest(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		Manifest: m,
		Counter:  p.registry.ReadCounter(ctx),
		Location: p.store.URI(""),
	}, nil
}

// Run executes a single scoring run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := p.logger.With("run_id", res.RunID)

	passwords, err := input.LoadPasswords(p.cfg.InputPath, p.cfg.InputColumn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	log.Info("passwords loaded", "path", p.cfg.InputPath, "count", len(passwords))

	counter := p.registry.ReadCounter(ctx)
	res.Version = counter.Value + 1
	res.Degraded = counter.Degraded

	scores, err := score.All(ctx, passwords, p.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("error scoring passwords: %w", err)
	}

	res.Batch = metrics.Compute(scores)
	res.Metric = res.Batch.AvgScore
	log.Info("batch scored", "version", res.Version, "avg_score", res.Metric,
		"weak_pct", res.Batch.WeakPct, "strong_pct", res.Batch.StrongPct)

	ts := report.Timestamp(p.now())
	artifacts, err := report.Write(p.cfg.OutDir, ts, passwords, scores, res.Batch, res.Version, p.cfg.SampleSize)
	if err != nil {
		return nil, fmt.Errorf("error writing reports: %w", err)
	}

	if res.Metric < p.cfg.MinAvgScore {
		err := fmt.Errorf("%w: %.3f < %.3f", ErrThreshold, res.Metric, p.cfg.MinAvgScore)
		log.Error("threshold not met", "avg_score", res.Metric, "min_avg_score", p.cfg.MinAvgScore,
			"reports", artifacts.Metrics)
		p.record(ctx, log, res, p.bestVersion(ctx, log))
		p.notify(ctx, log, &notify.Outcome{Version: res.Version, Metric: res.Metric, Failed: true, Reason: "average score below minimum"})
		return nil, err
	}

	res.Reports, err = report.Upload(ctx, p.store, p.cfg.ReportPrefix, res.Version, artifacts)
	if err != nil {
		return nil, fmt.Errorf("error uploading reports: %w", err)
	}

	res.Decision, err = p.registry.Promote(ctx, res.Version, res.Metric, res.Reports.Metrics)
	if err != nil {
		p.notify(ctx, log, &notify.Outcome{Version: res.Version, Metric: res.Metric, Errored: true, Reason: "manifest not updated"})
		return nil, err
	}
	res.Promoted = res.Decision.Promoted

	if err := p.registry.WriteCounter(ctx, res.Version, counter.Generation); err != nil {
		log.Error("failed to update version counter", "version", res.Version, "error", err)
	} else {
		res.CounterUpdated = true
		log.Info("version counter updated", "version", res.Version)
	}

	p.record(ctx, log, res, res.Decision.Current.BestVersion)
	p.notify(ctx, log, &notify.Outcome{Version: res.Version, Metric: res.Metric, Promoted: res.Promoted})

	return res, nil
}

// bestVersion returns the version of the promoted manifest, or 0 when it
// cannot be read.
func (p *Pipeline) bestVersion(ctx context.Context, log *slog.Logger) int {
	m, _, err := p.registry.ReadManifest(ctx)
	if err != nil {
		log.Warn("failed to read manifest", "error", err)
		return 0
	}
	return m.BestVersion
}

func (p *Pipeline) record(ctx context.Context, log *slog.Logger, res *Result, best int) {
	if p.cfg.HistoryDB == "" {
		return
	}
	if err := ctx.Err(); err != nil {
		return
	}

	if err := data.Init(p.cfg.HistoryDB); err != nil {
		log.Warn("run history unavailable", "path", p.cfg.HistoryDB, "error", err)
		return
	}

	db, err := data.GetDB(p.cfg.HistoryDB)
	if err != nil {
		log.Warn("run history unavailable", "path", p.cfg.HistoryDB, "error", err)
		return
	}
	defer db.Close()

	r := &data.Run{
		ID:             res.RunID,
		Version:        res.Version,
		Metric:         res.Metric,
		Promoted:       res.Promoted,
		CounterUpdated: res.CounterUpdated,
		Degraded:       res.Degraded,
		BestVersion:    best,
		Location:       p.cfg.Location(),
	}
	if res.Batch != nil {
		r.Count = res.Batch.Count
		r.WeakPct = res.Batch.WeakPct
		r.StrongPct = res.Batch.StrongPct
	}
	if res.Reports != nil {
		r.ReportKey = res.Reports.Metrics
	}

	if err := data.SaveRun(db, r); err != nil {
		log.Warn("failed to record run", "error", err)
	}
}

func (p *Pipeline) notify(ctx context.Context, log *slog.Logger, o *notify.Outcome) {
	if p.notifier == nil || !p.cfg.GitHub.Enabled() {
		return
	}
	if err := p.notifier.Notify(ctx, p.cfg.GitHub.SHA, o); err != nil {
		log.Warn("failed to post commit status", "repo", p.cfg.GitHub.Repo, "error", err)
	}
}
