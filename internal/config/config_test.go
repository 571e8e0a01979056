package config

import (
	"testing"
	"time"
)

func TestParsePlatformsDefault(t *testing.T) {
	platforms, err := ParsePlatforms(DefaultPlatforms)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := map[string]int{"roblox": 10, "minecraft": 5, "fortnite": 8}
	if len(platforms) != len(want) {
		t.Fatalf("platforms = %+v", platforms)
	}
	for _, p := range platforms {
		if want[p.Name] != p.ConversionRate {
			t.Errorf("%s rate = %d, want %d", p.Name, p.ConversionRate, want[p.Name])
		}
	}
	if platforms[0].Name != "fortnite" || platforms[0].Label != "Fortnite" {
		t.Errorf("first platform = %+v, want Fortnite", platforms[0])
	}
}

func TestParsePlatformsErrors(t *testing.T) {
	for _, in := range []string{"", "roblox", "roblox:0", "roblox:x", "roblox:10,roblox:5", ":5"} {
		if _, err := ParsePlatforms(in); err == nil {
			t.Errorf("ParsePlatforms(%q) expected error", in)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ZOOZ_PORT", "")
	t.Setenv("ZOOZ_SESSION_TTL", "")
	t.Setenv("ZOOZ_S3_BUCKET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Port)
	}
	if cfg.SessionTTL != 720*time.Hour {
		t.Errorf("session ttl = %v, want 720h", cfg.SessionTTL)
	}
	if cfg.S3.Enabled() {
		t.Error("s3 should be disabled without a bucket")
	}
	if cfg.SnapshotInterval != 24*time.Hour {
		t.Errorf("snapshot interval = %v, want 24h", cfg.SnapshotInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ZOOZ_PORT", "9090")
	t.Setenv("ZOOZ_PLATFORMS", "roblox:20")
	t.Setenv("ZOOZ_REMINDER_INTERVAL", "1m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("port = %q", cfg.Port)
	}
	if len(cfg.Platforms) != 1 || cfg.Platforms[0].ConversionRate != 20 {
		t.Errorf("platforms = %+v", cfg.Platforms)
	}
	if cfg.ReminderInterval != time.Minute {
		t.Errorf("reminder interval = %v", cfg.ReminderInterval)
	}
}

func TestLoadRequiresPassphraseWithBucket(t *testing.T) {
	t.Setenv("ZOOZ_S3_BUCKET", "zooz-backups")
	t.Setenv("ZOOZ_SNAPSHOT_PASSPHRASE", "")

	if _, err := Load(); err == nil {
		t.Error("expected error without passphrase")
	}
}

func TestLoadBadDuration(t *testing.T) {
	t.Setenv("ZOOZ_SESSION_TTL", "forever")
	if _, err := Load(); err == nil {
		t.Error("expected error for bad duration")
	}
}
