package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("unexpected default port: %d", cfg.Server.Port)
	}
	if cfg.Pipeline.DuplicateRadiusMeters != 1500 {
		t.Errorf("unexpected duplicate radius: %f", cfg.Pipeline.DuplicateRadiusMeters)
	}
	if cfg.Pipeline.JamDeactivateBatchSize != 1000 {
		t.Errorf("unexpected jam batch size: %d", cfg.Pipeline.JamDeactivateBatchSize)
	}
	if cfg.Feeds.ConnectTimeout != 5*time.Second || cfg.Feeds.RequestTimeout != 20*time.Second {
		t.Errorf("unexpected feed timeouts: %v / %v", cfg.Feeds.ConnectTimeout, cfg.Feeds.RequestTimeout)
	}
	if cfg.Feeds.InsecureSkipVerify {
		t.Error("TLS verification must be on by default")
	}
	if cfg.Notifier.BatchSize != 5 {
		t.Errorf("unexpected notifier batch size: %d", cfg.Notifier.BatchSize)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("PIPELINE_DUPLICATE_RADIUS_M", "2000")
	t.Setenv("FEED_INSECURE_SKIP_VERIFY", "true")
	t.Setenv("PIPELINE_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port override not applied: %d", cfg.Server.Port)
	}
	if cfg.Pipeline.DuplicateRadiusMeters != 2000 {
		t.Errorf("radius override not applied: %f", cfg.Pipeline.DuplicateRadiusMeters)
	}
	if !cfg.Feeds.InsecureSkipVerify {
		t.Error("tls override not applied")
	}
	if cfg.Pipeline.Interval != 30*time.Second {
		t.Errorf("interval override not applied: %v", cfg.Pipeline.Interval)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"bad port":       func(c *Config) { c.Server.Port = 0 },
		"no db conns":    func(c *Config) { c.Database.MaxConns = 0 },
		"no workers":     func(c *Config) { c.Pipeline.WorkerCount = 0 },
		"zero radius":    func(c *Config) { c.Pipeline.DuplicateRadiusMeters = 0 },
		"bad batch size": func(c *Config) { c.Notifier.BatchSize = 0 },
	}

	for name, mutate := range cases {
		cfg, err := Load()
		if err != nil {
			t.Fatal(err)
		}
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
