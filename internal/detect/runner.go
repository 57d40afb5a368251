package detect

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/blue-harvest-ops/fieldaudit/internal/metrics"
	"github.com/blue-harvest-ops/fieldaudit/internal/models"
)

// Runner fans a record batch out to the detectors, one job per technician.
// Detectors are pure, so jobs run in parallel on a bounded worker pool.
type Runner struct {
	detectors []Detector
	workers   int
	log       zerolog.Logger
}

// NewRunner creates a Runner over the given detectors.
// If workers <= 0, it defaults to runtime.NumCPU().
func NewRunner(detectors []Detector, workers int, log zerolog.Logger) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Runner{detectors: detectors, workers: workers, log: log}
}

// NewDefaultRunner wires the four standard detectors from one config.
func NewDefaultRunner(cfg Config, log zerolog.Logger) (*Runner, error) {
	suppress, err := NewSuppressionPolicy(cfg.SuppressionRules)
	if err != nil {
		return nil, err
	}
	detectors := []Detector{
		NewOverlapDetector(cfg),
		NewTravelDetector(cfg, suppress),
		NewSessionDetector(cfg),
		NewReportDetector(cfg),
	}
	return NewRunner(detectors, cfg.Workers, log), nil
}

// Run executes all detectors over the batch and returns the findings
// ordered by technician, then severity. A panic inside a detector skips
// that detector for that technician only; the batch always completes.
func (r *Runner) Run(ctx context.Context, records models.RecordSet, now time.Time) []models.Finding {
	start := time.Now()
	defer func() {
		metrics.DetectionRunsTotal.Inc()
		metrics.DetectionDuration.Observe(time.Since(start).Seconds())
	}()

	inputs := splitByTechnician(records)

	kept := 0
	for _, in := range inputs {
		kept += len(in.Activities) + len(in.Timesheets) + len(in.Sessions) + len(in.Leaves)
	}
	total := len(records.Activities) + len(records.Timesheets) +
		len(records.Sessions) + len(records.Leaves)
	if dropped := total - kept; dropped > 0 {
		r.log.Debug().Int("records", dropped).Msg("dropped records violating interval invariants")
	}

	jobs := make(chan Input)
	results := make(chan []models.Finding, len(inputs))

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case in, ok := <-jobs:
					if !ok {
						return
					}
					results <- r.runOne(in, now)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, in := range inputs {
			select {
			case <-ctx.Done():
				return
			case jobs <- in:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var findings []models.Finding
	for batch := range results {
		findings = append(findings, batch...)
	}
	for _, f := range findings {
		metrics.FindingsTotal.WithLabelValues(string(f.Category)).Inc()
	}

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Technician != findings[j].Technician {
			return findings[i].Technician < findings[j].Technician
		}
		return findings[i].Severity < findings[j].Severity
	})
	return findings
}

// runOne applies every detector to one technician's records, recovering
// per-detector panics so a malformed record cannot abort the batch.
func (r *Runner) runOne(in Input, now time.Time) []models.Finding {
	var findings []models.Finding
	for _, det := range r.detectors {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error().
						Str("detector", det.Name()).
						Str("technician", in.Technician).
						Interface("panic", rec).
						Msg("detector panicked, skipping technician for this rule")
				}
			}()
			findings = append(findings, det.Detect(in, now)...)
		}()
	}
	return findings
}

// splitByTechnician partitions a record batch into per-technician inputs,
// dropping records that violate the interval invariant.
func splitByTechnician(records models.RecordSet) []Input {
	byTech := make(map[string]*Input)
	get := func(tech string) *Input {
		if tech == "" {
			return nil
		}
		in, ok := byTech[tech]
		if !ok {
			in = &Input{Technician: tech}
			byTech[tech] = in
		}
		return in
	}

	for _, a := range records.Activities {
		if in := get(a.Technician); in != nil && a.Valid() {
			in.Activities = append(in.Activities, a)
		}
	}
	for _, t := range records.Timesheets {
		if in := get(t.Technician); in != nil && t.Valid() {
			in.Timesheets = append(in.Timesheets, t)
		}
	}
	for _, s := range records.Sessions {
		if in := get(s.Technician); in != nil && s.Valid() {
			in.Sessions = append(in.Sessions, s)
		}
	}
	for _, l := range records.Leaves {
		if in := get(l.Technician); in != nil {
			in.Leaves = append(in.Leaves, l)
		}
	}

	inputs := make([]Input, 0, len(byTech))
	keys := make([]string, 0, len(byTech))
	for k := range byTech {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		inputs = append(inputs, *byTech[k])
	}
	return inputs
}
