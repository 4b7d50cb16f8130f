package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort == "" {
		t.Fatalf("expected default server port")
	}
	if cfg.PostgresURL == "" {
		t.Fatalf("expected default postgres url")
	}
	if cfg.SMSSegmentChars != 160 || cfg.SMSMaxSegments != 6 {
		t.Fatalf("expected default SMS budget, got %d/%d", cfg.SMSSegmentChars, cfg.SMSMaxSegments)
	}
	if cfg.PollInterval != 15*time.Minute {
		t.Fatalf("expected default poll interval, got %v", cfg.PollInterval)
	}
	if cfg.AlertMinRating != 3 {
		t.Fatalf("expected default alert rating, got %d", cfg.AlertMinRating)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("GATEWAY_URL", "https://gw.example")
	t.Setenv("FORECAST_TTL", "30m")
	t.Setenv("PUSH_TIMES", "05:30")

	cfg := Load()
	if cfg.ServerPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.GatewayURL != "https://gw.example" {
		t.Fatalf("expected override gateway url")
	}
	if cfg.ForecastTTL != 30*time.Minute {
		t.Fatalf("expected override ttl, got %v", cfg.ForecastTTL)
	}
	if list := cfg.PushTimeList(); len(list) != 1 || list[0] != "05:30" {
		t.Fatalf("expected override push times, got %v", list)
	}
}

func TestPushTimeList(t *testing.T) {
	c := Config{PushTimes: " 06:00, 18:00 ,,"}
	list := c.PushTimeList()
	if len(list) != 2 || list[0] != "06:00" || list[1] != "18:00" {
		t.Fatalf("unexpected list %v", list)
	}

	if got := (Config{}).PushTimeList(); len(got) != 0 {
		t.Fatalf("empty config should yield no push times, got %v", got)
	}
}
