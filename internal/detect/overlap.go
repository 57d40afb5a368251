package detect

import (
	"container/heap"
	"fmt"
	"sort"
	"time"

	"github.com/blue-harvest-ops/fieldaudit/internal/models"
)

// OverlapDetector finds pairs of activities for one technician whose billed
// intervals overlap in time.
type OverlapDetector struct {
	cfg Config
}

// NewOverlapDetector creates an OverlapDetector with the given tunables.
func NewOverlapDetector(cfg Config) *OverlapDetector {
	return &OverlapDetector{cfg: cfg}
}

// Name returns the detector name.
func (d *OverlapDetector) Name() string { return "temporal_overlap" }

// Detect runs a sweep over the start-sorted intervals, keeping a min-heap of
// open intervals ordered by end time. Every interval still open when a new
// one starts overlaps it, so all overlapping pairs are reported, not just
// neighbors in sort order (a long interval can overlap several later ones).
func (d *OverlapDetector) Detect(in Input, now time.Time) []models.Finding {
	acts := make([]models.ActivityInterval, 0, len(in.Activities))
	for _, a := range in.Activities {
		if a.Valid() {
			acts = append(acts, a)
		}
	}
	sort.Slice(acts, func(i, j int) bool { return acts[i].Start.Before(acts[j].Start) })

	var findings []models.Finding
	open := &openHeap{}
	heap.Init(open)

	for _, cur := range acts {
		for open.Len() > 0 && !(*open)[0].End.After(cur.Start) {
			heap.Pop(open)
		}
		for _, prev := range *open {
			if f, ok := d.scorePair(prev, cur, now); ok {
				findings = append(findings, f)
			}
		}
		heap.Push(open, cur)
	}

	return findings
}

// scorePair builds a finding for one overlapping pair if it clears the
// confidence gate.
func (d *OverlapDetector) scorePair(a, b models.ActivityInterval, now time.Time) (models.Finding, bool) {
	overlap := overlapDuration(a, b)
	if overlap <= 0 {
		return models.Finding{}, false
	}

	overlapMin := overlap.Minutes()
	confidence := Score(50,
		Factor{overlapMin > 60, 40},
		Factor{overlapMin > 30 && overlapMin <= 60, 30},
		Factor{overlapMin > 15 && overlapMin <= 30, 20},
		Factor{overlapMin <= 15, 10},
		Factor{a.Client != b.Client, 20},
		Factor{sameDay(a.Start, b.Start), 10},
		Factor{inWorkingHours(a.Start) && inWorkingHours(b.Start), 10},
	)

	if !MeetsThreshold(confidence, d.cfg.OverlapMinConfidence) {
		return models.Finding{}, false
	}

	return models.Finding{
		Category:   models.CategoryTemporalOverlap,
		Severity:   models.SeverityCritico,
		Confidence: confidence,
		Technician: a.Technician,
		Summary: fmt.Sprintf("%s: activities for %s and %s overlap by %.0f min",
			a.Technician, a.Client, b.Client, overlapMin),
		Evidence: models.Evidence{
			"activity_1_id":     a.ID,
			"activity_1_client": a.Client,
			"activity_1_window": formatWindow(a.Start, a.End),
			"activity_2_id":     b.ID,
			"activity_2_client": b.Client,
			"activity_2_window": formatWindow(b.Start, b.End),
			"overlap_minutes":   fmt.Sprintf("%.0f", overlapMin),
		},
		DetectedAt: now,
	}, true
}

// overlapDuration returns min(end1,end2) - max(start1,start2); zero or
// negative means no overlap. Symmetric in its arguments.
func overlapDuration(a, b models.ActivityInterval) time.Duration {
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	return end.Sub(start)
}

func formatWindow(start, end time.Time) string {
	return start.Format("2006-01-02 15:04") + " - " + end.Format("15:04")
}

// openHeap is a min-heap of activity intervals ordered by end time.
type openHeap []models.ActivityInterval

func (h openHeap) Len() int            { return len(h) }
func (h openHeap) Less(i, j int) bool  { return h[i].End.Before(h[j].End) }
func (h openHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *openHeap) Push(x interface{}) { *h = append(*h, x.(models.ActivityInterval)) }
func (h *openHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
