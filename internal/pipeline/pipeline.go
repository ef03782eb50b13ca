package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/hurdat-etl/internal/domain"
	"github.com/couchcryptid/hurdat-etl/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
)

// LineExtractor reads up to n raw lines from the dataset. It returns io.EOF,
// with no lines, once the source is exhausted.
type LineExtractor interface {
	ExtractLines(ctx context.Context, n int) ([]domain.RawLine, error)
}

// Transformer turns the assembled storms into the summaries of one profile.
type Transformer interface {
	Transform(ctx context.Context, profile domain.Profile, storms []domain.Storm) (ProfileResult, error)
}

// BatchLoader writes multiple summaries to a destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, summaries []domain.StormSummary) error
}

// ObservationLoader is implemented by sinks that also take the flat
// per-observation export.
type ObservationLoader interface {
	LoadObservations(ctx context.Context, records []domain.ObservationRecord) error
}

// ProfileResult is what a Transformer produced for one profile.
type ProfileResult struct {
	Summaries []domain.StormSummary
	Filtered  int
	Scales    domain.ScaleAccumulator
}

// Report describes a finished run.
type Report struct {
	LinesRead          int             `json:"lines_read"`
	MalformedSkipped   int             `json:"malformed_skipped"`
	StormsAssembled    int             `json:"storms_assembled"`
	EmptyStorms        int             `json:"empty_storms"`
	DayCountMismatches int             `json:"day_count_mismatches"`
	ObservationsLoaded int             `json:"observations_loaded"`
	Profiles           []ProfileReport `json:"profiles"`
	Err                string          `json:"error,omitempty"`
}

// ProfileReport describes one profile of a run.
type ProfileReport struct {
	Name     string                  `json:"name"`
	Loaded   int                     `json:"loaded"`
	Filtered int                     `json:"filtered"`
	Scales   domain.ScaleAccumulator `json:"scales"`
}

// Options tunes a Pipeline. Zero values take the defaults below.
type Options struct {
	BatchSize       int
	SkipMalformed   bool
	MaxLoadAttempts int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration

	// ExportObservations sends every observation to the loaders that
	// implement ObservationLoader before any profile runs.
	ExportObservations bool
}

const (
	lineBatchSize          = 500
	defaultBatchSize       = 50
	defaultMaxLoadAttempts = 5
	defaultInitialBackoff  = 200 * time.Millisecond
	defaultMaxBackoff      = 5 * time.Second
)

// Pipeline orchestrates extract, assemble, transform and load for a run.
type Pipeline struct {
	extractor   LineExtractor
	transformer Transformer
	loaders     []BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	last        atomic.Pointer[Report]
	opts        Options
}

// New creates a Pipeline with the given stages and observability.
func New(e LineExtractor, t Transformer, loaders []BatchLoader, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MaxLoadAttempts <= 0 {
		opts.MaxLoadAttempts = defaultMaxLoadAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loaders:     loaders,
		logger:      logger,
		metrics:     metrics,
		opts:        opts,
	}
}

// CheckReadiness returns nil once the pipeline has loaded at least one batch,
// or an error describing why it is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not loaded any summaries yet")
	}
	return nil
}

// LastReport returns the report of the most recent finished run.
func (p *Pipeline) LastReport() (Report, bool) {
	r := p.last.Load()
	if r == nil {
		return Report{}, false
	}
	return *r, true
}

// Run reads the whole dataset, then summarizes and loads it once per profile.
// It stops at the first fatal error; the report covers the work done so far.
func (p *Pipeline) Run(ctx context.Context, profiles []domain.Profile) (Report, error) {
	p.logger.Info("pipeline started", "profiles", len(profiles), "batch_size", p.opts.BatchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	report, err := p.run(ctx, profiles)
	if err != nil {
		report.Err = err.Error()
	}
	p.last.Store(&report)
	return report, err
}

func (p *Pipeline) run(ctx context.Context, profiles []domain.Profile) (Report, error) {
	var report Report
	storms, err := p.assemble(ctx, &report)
	if err != nil {
		return report, err
	}
	p.logger.Info("dataset assembled",
		"lines", report.LinesRead,
		"storms", report.StormsAssembled,
		"empty_storms", report.EmptyStorms,
		"malformed_skipped", report.MalformedSkipped,
	)

	if p.opts.ExportObservations {
		if err := p.exportObservations(ctx, storms, &report); err != nil {
			return report, err
		}
	}

	for _, profile := range profiles {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		pr, err := p.runProfile(ctx, profile, storms)
		report.Profiles = append(report.Profiles, pr)
		if err != nil {
			return report, err
		}
	}

	p.logger.Info("pipeline finished", "profiles", len(report.Profiles))
	return report, nil
}

// assemble drains the extractor through a fresh assembler.
func (p *Pipeline) assemble(ctx context.Context, report *Report) ([]domain.Storm, error) {
	a := domain.NewAssembler()
	var storms []domain.Storm

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lines, err := p.extractor.ExtractLines(ctx, lineBatchSize)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("extract lines: %w", err)
		}

		for _, line := range lines {
			report.LinesRead++
			p.metrics.LinesRead.Inc()

			storm, ok, err := a.Feed(line.Num, line.Text)
			if err != nil {
				if !errors.Is(err, domain.ErrMalformedRecord) {
					return nil, err
				}
				p.metrics.MalformedLines.Inc()
				if !p.opts.SkipMalformed {
					return nil, err
				}
				p.logger.Warn("skipping malformed line", "line", line.Num, "error", err)
				report.MalformedSkipped++
				continue
			}
			if ok {
				storms = append(storms, p.closed(storm, report))
			}
		}
	}

	storm, ok, err := a.Close()
	if err != nil {
		return nil, err
	}
	if ok {
		storms = append(storms, p.closed(storm, report))
	}
	return storms, nil
}

func (p *Pipeline) closed(storm domain.Storm, report *Report) domain.Storm {
	report.StormsAssembled++
	p.metrics.StormsAssembled.Inc()
	if len(storm.Observations) == 0 {
		report.EmptyStorms++
		p.metrics.EmptyStorms.Inc()
	}
	if storm.DeclaredDays != storm.DaysRead {
		report.DayCountMismatches++
		p.logger.Warn("declared day count differs from lines read",
			"storm_id", storm.ID,
			"declared", storm.DeclaredDays,
			"read", storm.DaysRead,
		)
	}
	return storm
}

func (p *Pipeline) runProfile(ctx context.Context, profile domain.Profile, storms []domain.Storm) (ProfileReport, error) {
	pr := ProfileReport{Name: profile.Name}

	res, err := p.transformer.Transform(ctx, profile, storms)
	if err != nil {
		return pr, fmt.Errorf("transform profile %s: %w", profile.Name, err)
	}
	pr.Filtered = res.Filtered
	pr.Scales = res.Scales
	p.metrics.StormsFiltered.WithLabelValues(profile.Name).Add(float64(res.Filtered))
	p.metrics.MaxScale.WithLabelValues(profile.Name).Set(res.Scales.Max)

	for start := 0; start < len(res.Summaries); start += p.opts.BatchSize {
		batch := res.Summaries[start:min(start+p.opts.BatchSize, len(res.Summaries))]
		if err := p.loadBatch(ctx, batch); err != nil {
			return pr, fmt.Errorf("load profile %s: %w", profile.Name, err)
		}
		pr.Loaded += len(batch)
		p.metrics.SummariesLoaded.WithLabelValues(profile.Name).Add(float64(len(batch)))
		p.ready.Store(true)
	}

	p.logger.Info("profile loaded",
		"profile", profile.Name,
		"loaded", pr.Loaded,
		"filtered", pr.Filtered,
		"max_scale", pr.Scales.Max,
	)
	return pr, nil
}

func (p *Pipeline) exportObservations(ctx context.Context, storms []domain.Storm, report *Report) error {
	var sinks []ObservationLoader
	for _, l := range p.loaders {
		if ol, ok := l.(ObservationLoader); ok {
			sinks = append(sinks, ol)
		}
	}
	if len(sinks) == 0 {
		return nil
	}

	var records []domain.ObservationRecord
	for _, s := range storms {
		records = append(records, s.Records()...)
	}
	for start := 0; start < len(records); start += p.opts.BatchSize {
		batch := records[start:min(start+p.opts.BatchSize, len(records))]
		for _, ol := range sinks {
			err := p.withRetry(ctx, len(batch), func(ctx context.Context) error {
				return ol.LoadObservations(ctx, batch)
			})
			if err != nil {
				return fmt.Errorf("load observations: %w", err)
			}
		}
		report.ObservationsLoaded += len(batch)
		p.metrics.ObservationsLoaded.Add(float64(len(batch)))
	}

	p.logger.Info("observations exported", "records", report.ObservationsLoaded, "sinks", len(sinks))
	return nil
}

// loadBatch hands the batch to every loader in turn. Each loader is retried on
// its own so a failure in one sink does not duplicate rows in the others.
func (p *Pipeline) loadBatch(ctx context.Context, batch []domain.StormSummary) error {
	start := time.Now()
	for _, l := range p.loaders {
		err := p.withRetry(ctx, len(batch), func(ctx context.Context) error {
			return l.LoadBatch(ctx, batch)
		})
		if err != nil {
			return err
		}
	}
	p.metrics.BatchSize.Observe(float64(len(batch)))
	p.metrics.LoadDuration.Observe(time.Since(start).Seconds())
	return nil
}

func (p *Pipeline) withRetry(ctx context.Context, size int, load func(context.Context) error) error {
	backoff := p.opts.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := load(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.metrics.LoadErrors.Inc()
		p.logger.Error("load batch failed", "error", err, "batch_size", size, "attempt", attempt)
		if attempt >= p.opts.MaxLoadAttempts {
			return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, p.opts.MaxBackoff)
	}
}

