package detect

import (
	"fmt"
	"time"
)

// ZoneRule maps a client-name fragment to an estimated distance in km.
// The matching is substring-based and deliberately fuzzy; the table is
// business-tunable, not an algorithmic contract.
type ZoneRule struct {
	Match string  `yaml:"match"`
	Km    float64 `yaml:"km"`
}

// Config holds the detection tunables. Zero values are filled by
// SetDefaults; Validate rejects configurations the detectors cannot run with.
type Config struct {
	// OverlapMinConfidence gates temporal overlap findings.
	OverlapMinConfidence float64 `yaml:"overlap_min_confidence"`
	// TravelMinConfidence gates travel-time findings.
	TravelMinConfidence float64 `yaml:"travel_min_confidence"`
	// SessionMinConfidence gates remote-session findings.
	SessionMinConfidence float64 `yaml:"session_min_confidence"`
	// ReportMinConfidence gates missing-report findings.
	ReportMinConfidence float64 `yaml:"report_min_confidence"`

	// HeadquartersWhitelist lists client-name fragments treated as internal
	// sites; travel to or from them is never flagged.
	HeadquartersWhitelist []string `yaml:"headquarters_whitelist"`
	// SameSiteGroups maps a group name to client-name fragments that share
	// one physical site.
	SameSiteGroups map[string][]string `yaml:"same_site_groups"`
	// DistanceZones estimates distance from client names; DefaultDistanceKm
	// applies when no zone matches.
	DistanceZones     []ZoneRule `yaml:"distance_zones"`
	DefaultDistanceKm float64    `yaml:"default_distance_km"`
	// AvgSpeedKmh is the assumed average travel speed, traffic included.
	AvgSpeedKmh float64 `yaml:"avg_speed_kmh"`
	// MinTravelMinutes is the floor for any required travel estimate.
	MinTravelMinutes float64 `yaml:"min_travel_minutes"`

	// SessionSearchWindow extends an activity interval on both sides when
	// matching remote sessions.
	SessionSearchWindow time.Duration `yaml:"session_search_window"`
	// MinSessionDuration is the matched-session total below which a remote
	// activity counts as uncorroborated.
	MinSessionDuration time.Duration `yaml:"min_session_duration"`

	// SuppressionRules are optional expr-lang expressions evaluated against
	// each consecutive activity pair; a pair matching any rule is skipped by
	// the travel analyzer.
	SuppressionRules []string `yaml:"suppression_rules"`

	// Workers bounds the per-technician fan-out; 0 means NumCPU.
	Workers int `yaml:"workers"`
}

// DefaultConfig returns the detection configuration with default values.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets default values for missing config fields.
func (c *Config) SetDefaults() {
	if c.OverlapMinConfidence == 0 {
		c.OverlapMinConfidence = 70
	}
	if c.TravelMinConfidence == 0 {
		c.TravelMinConfidence = 60
	}
	if c.SessionMinConfidence == 0 {
		c.SessionMinConfidence = 50
	}
	if c.ReportMinConfidence == 0 {
		c.ReportMinConfidence = 50
	}
	if c.DefaultDistanceKm == 0 {
		c.DefaultDistanceKm = 12
	}
	if c.AvgSpeedKmh == 0 {
		c.AvgSpeedKmh = 20
	}
	if c.MinTravelMinutes == 0 {
		c.MinTravelMinutes = 15
	}
	if c.SessionSearchWindow == 0 {
		c.SessionSearchWindow = 30 * time.Minute
	}
	if c.MinSessionDuration == 0 {
		c.MinSessionDuration = 5 * time.Minute
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	gates := []struct {
		name  string
		value float64
	}{
		{"overlap_min_confidence", c.OverlapMinConfidence},
		{"travel_min_confidence", c.TravelMinConfidence},
		{"session_min_confidence", c.SessionMinConfidence},
		{"report_min_confidence", c.ReportMinConfidence},
	}
	for _, g := range gates {
		if g.value < 0 || g.value > 100 {
			return fmt.Errorf("%s must be within 0..100", g.name)
		}
	}
	if c.AvgSpeedKmh <= 0 {
		return fmt.Errorf("avg_speed_kmh must be positive")
	}
	if c.DefaultDistanceKm < 0 {
		return fmt.Errorf("default_distance_km must not be negative")
	}
	if c.MinTravelMinutes < 0 {
		return fmt.Errorf("min_travel_minutes must not be negative")
	}
	for _, z := range c.DistanceZones {
		if z.Match == "" {
			return fmt.Errorf("distance zone with empty match")
		}
		if z.Km < 0 {
			return fmt.Errorf("distance zone %q with negative km", z.Match)
		}
	}
	return nil
}

// EstimateDistanceKm estimates the distance between two clients from the
// zone table. The first zone matching either client name wins.
func (c *Config) EstimateDistanceKm(client1, client2 string) float64 {
	for _, z := range c.DistanceZones {
		if containsFold(client1, z.Match) || containsFold(client2, z.Match) {
			return z.Km
		}
	}
	return c.DefaultDistanceKm
}

// IsWhitelisted reports whether the client matches the headquarters whitelist.
func (c *Config) IsWhitelisted(client string) bool {
	for _, w := range c.HeadquartersWhitelist {
		if containsFold(client, w) {
			return true
		}
	}
	return false
}

// SameSiteClients reports whether both clients belong to one same-site group.
func (c *Config) SameSiteClients(client1, client2 string) bool {
	for _, fragments := range c.SameSiteGroups {
		if matchesAny(client1, fragments) && matchesAny(client2, fragments) {
			return true
		}
	}
	return false
}

func matchesAny(client string, fragments []string) bool {
	for _, f := range fragments {
		if containsFold(client, f) {
			return true
		}
	}
	return false
}
