package detect

import (
	"fmt"
	"sort"
	"time"

	"github.com/blue-harvest-ops/fieldaudit/internal/models"
)

// TravelDetector checks whether the gap between consecutive appointments at
// different clients leaves enough time for the trip.
type TravelDetector struct {
	cfg      Config
	suppress *SuppressionPolicy
}

// NewTravelDetector creates a TravelDetector. The suppression policy may be
// nil when no tunable rules are configured.
func NewTravelDetector(cfg Config, suppress *SuppressionPolicy) *TravelDetector {
	return &TravelDetector{cfg: cfg, suppress: suppress}
}

// Name returns the detector name.
func (d *TravelDetector) Name() string { return "insufficient_travel_time" }

// Detect walks the start-sorted activities and scores each consecutive pair
// with different clients against the estimated travel requirement.
func (d *TravelDetector) Detect(in Input, now time.Time) []models.Finding {
	acts := make([]models.ActivityInterval, 0, len(in.Activities))
	for _, a := range in.Activities {
		if a.Valid() {
			acts = append(acts, a)
		}
	}
	sort.Slice(acts, func(i, j int) bool { return acts[i].Start.Before(acts[j].Start) })

	var findings []models.Finding
	for i := 0; i+1 < len(acts); i++ {
		prev, next := acts[i], acts[i+1]
		if f, ok := d.scorePair(prev, next, now); ok {
			findings = append(findings, f)
		}
	}
	return findings
}

func (d *TravelDetector) scorePair(prev, next models.ActivityInterval, now time.Time) (models.Finding, bool) {
	if prev.Client == next.Client {
		return models.Finding{}, false
	}
	if d.cfg.IsWhitelisted(prev.Client) || d.cfg.IsWhitelisted(next.Client) {
		return models.Finding{}, false
	}
	if d.cfg.SameSiteClients(prev.Client, next.Client) {
		return models.Finding{}, false
	}

	gapMin := next.Start.Sub(prev.End).Minutes()
	distanceKm := d.cfg.EstimateDistanceKm(prev.Client, next.Client)
	requiredMin := d.requiredTravelMinutes(distanceKm)

	if d.suppress != nil && d.suppress.Suppress(prev, next, gapMin, distanceKm) {
		return models.Finding{}, false
	}

	if gapMin >= requiredMin {
		return models.Finding{}, false
	}

	confidence := travelConfidence(gapMin, requiredMin, distanceKm)
	if !MeetsThreshold(confidence, d.cfg.TravelMinConfidence) {
		return models.Finding{}, false
	}

	return models.Finding{
		Category:   models.CategoryInsufficientTravel,
		Severity:   models.SeverityMedio,
		Confidence: confidence,
		Technician: prev.Technician,
		Summary: fmt.Sprintf("%s: %.0f min available for %s -> %s, at least %.0f min required",
			prev.Technician, gapMin, prev.Client, next.Client, requiredMin),
		Evidence: models.Evidence{
			"from_client":           prev.Client,
			"from_end":              prev.End.Format(time.RFC3339),
			"from_id":               prev.ID,
			"to_client":             next.Client,
			"to_start":              next.Start.Format(time.RFC3339),
			"to_id":                 next.ID,
			"gap_minutes":           fmt.Sprintf("%.0f", gapMin),
			"required_minutes":      fmt.Sprintf("%.0f", requiredMin),
			"estimated_distance_km": fmt.Sprintf("%.1f", distanceKm),
		},
		DetectedAt: now,
	}, true
}

// requiredTravelMinutes converts an estimated distance into a minimum trip
// duration, floored at the configured minimum.
func (d *TravelDetector) requiredTravelMinutes(distanceKm float64) float64 {
	required := distanceKm / d.cfg.AvgSpeedKmh * 60
	if required < d.cfg.MinTravelMinutes {
		required = d.cfg.MinTravelMinutes
	}
	return required
}

// travelConfidence scores an infeasible gap. Near-zero gaps are discounted:
// they are disproportionately co-located sites or remote work mislabeled as
// on-site, not actual impossible trips.
func travelConfidence(gapMin, requiredMin, distanceKm float64) float64 {
	if requiredMin <= 0 || gapMin >= requiredMin {
		return 0
	}
	// Overlapping appointments belong to the overlap detector; the ratio
	// treats a negative gap as zero.
	ratio := gapMin / requiredMin
	if ratio < 0 {
		ratio = 0
	}

	confidence := (1 - ratio) * 70
	if distanceKm > 15 {
		confidence += 20
	} else if distanceKm > 8 {
		confidence += 10
	}

	if gapMin == 0 {
		confidence *= 0.7
	} else if gapMin < 5 {
		confidence *= 0.8
	}

	if confidence > 85 {
		confidence = 85
	}
	return Clamp(confidence)
}
