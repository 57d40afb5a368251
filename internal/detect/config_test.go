package detect

import (
	"testing"
	"time"
)

func TestConfigSetDefaults(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()

	if cfg.OverlapMinConfidence != 70 {
		t.Errorf("OverlapMinConfidence = %v, want 70", cfg.OverlapMinConfidence)
	}
	if cfg.TravelMinConfidence != 60 {
		t.Errorf("TravelMinConfidence = %v, want 60", cfg.TravelMinConfidence)
	}
	if cfg.AvgSpeedKmh != 20 {
		t.Errorf("AvgSpeedKmh = %v, want 20", cfg.AvgSpeedKmh)
	}
	if cfg.SessionSearchWindow != 30*time.Minute {
		t.Errorf("SessionSearchWindow = %v, want 30m", cfg.SessionSearchWindow)
	}
	if cfg.MinSessionDuration != 5*time.Minute {
		t.Errorf("MinSessionDuration = %v, want 5m", cfg.MinSessionDuration)
	}

	custom := Config{OverlapMinConfidence: 90}
	custom.SetDefaults()
	if custom.OverlapMinConfidence != 90 {
		t.Errorf("SetDefaults overwrote an explicit value: %v", custom.OverlapMinConfidence)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"zero speed", func(c *Config) { c.AvgSpeedKmh = -1 }, true},
		{"gate above 100", func(c *Config) { c.OverlapMinConfidence = 150 }, true},
		{"negative gate", func(c *Config) { c.ReportMinConfidence = -1 }, true},
		{"negative default distance", func(c *Config) { c.DefaultDistanceKm = -1 }, true},
		{"zone without match", func(c *Config) { c.DistanceZones = []ZoneRule{{Km: 5}} }, true},
		{"zone with negative km", func(c *Config) { c.DistanceZones = []ZoneRule{{Match: "x", Km: -5}} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEstimateDistanceKm(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DistanceZones = []ZoneRule{
		{Match: "Brescia", Km: 25},
		{Match: "Bergamo", Km: 18},
	}

	tests := []struct {
		client1, client2 string
		want             float64
	}{
		{"Brescia Metalli", "Alpha SRL", 25},
		{"Alpha SRL", "officine bergamo", 18},
		{"Alpha SRL", "Beta SPA", 12},
	}

	for _, tt := range tests {
		if got := cfg.EstimateDistanceKm(tt.client1, tt.client2); got != tt.want {
			t.Errorf("EstimateDistanceKm(%q, %q) = %v, want %v", tt.client1, tt.client2, got, tt.want)
		}
	}
}

func TestSameSiteClients(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SameSiteGroups = map[string][]string{
		"campus": {"Alpha SRL", "Alpha Lab"},
	}

	if !cfg.SameSiteClients("Alpha SRL", "Alpha Lab") {
		t.Error("clients in one group should match")
	}
	if cfg.SameSiteClients("Alpha SRL", "Beta SPA") {
		t.Error("clients in different groups should not match")
	}
}
