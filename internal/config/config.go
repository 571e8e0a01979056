package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/zooz/internal/model"
)

const DefaultPlatforms = "roblox:10,minecraft:5,fortnite:8"

type Config struct {
	Port             string
	DBPath           string
	LogLevel         string
	LogFormat        string
	Platforms        []model.Platform
	SessionTTL       time.Duration
	ReminderInterval time.Duration
	NotifyRetry      time.Duration
	S3               S3Config
	SnapshotKey      string
	SnapshotInterval time.Duration
}

// S3Config locates the bucket encrypted snapshots are uploaded to. Snapshots
// are disabled when Bucket is empty.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Load reads configuration from the environment, after loading a .env file
// from the working directory when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	platforms, err := ParsePlatforms(getenv("ZOOZ_PLATFORMS", DefaultPlatforms))
	if err != nil {
		return nil, fmt.Errorf("ZOOZ_PLATFORMS: %w", err)
	}
	sessionTTL, err := parseDuration("ZOOZ_SESSION_TTL", "720h")
	if err != nil {
		return nil, err
	}
	reminderInterval, err := parseDuration("ZOOZ_REMINDER_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	notifyRetry, err := parseDuration("ZOOZ_NOTIFY_RETRY_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}
	snapshotInterval, err := parseDuration("ZOOZ_SNAPSHOT_INTERVAL", "24h")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:             getenv("ZOOZ_PORT", "8080"),
		DBPath:           getenv("ZOOZ_DB_PATH", "zooz.db"),
		LogLevel:         getenv("ZOOZ_LOG_LEVEL", "info"),
		LogFormat:        getenv("ZOOZ_LOG_FORMAT", "text"),
		Platforms:        platforms,
		SessionTTL:       sessionTTL,
		ReminderInterval: reminderInterval,
		NotifyRetry:      notifyRetry,
		S3: S3Config{
			Endpoint:  os.Getenv("ZOOZ_S3_ENDPOINT"),
			Region:    getenv("ZOOZ_S3_REGION", "us-east-1"),
			Bucket:    os.Getenv("ZOOZ_S3_BUCKET"),
			AccessKey: os.Getenv("ZOOZ_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("ZOOZ_S3_SECRET_KEY"),
		},
		SnapshotKey:      os.Getenv("ZOOZ_SNAPSHOT_PASSPHRASE"),
		SnapshotInterval: snapshotInterval,
	}
	if cfg.S3.Enabled() && cfg.SnapshotKey == "" {
		return nil, fmt.Errorf("ZOOZ_SNAPSHOT_PASSPHRASE is required when ZOOZ_S3_BUCKET is set")
	}
	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func parseDuration(k, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenv(k, def))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive", k)
	}
	return d, nil
}

// ParsePlatforms parses "name:rate,name:rate" into platforms sorted by name.
func ParsePlatforms(s string) ([]model.Platform, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	if len(parts) == 0 {
		return nil, fmt.Errorf("no platforms configured")
	}

	seen := make(map[string]bool, len(parts))
	out := make([]model.Platform, 0, len(parts))
	for _, p := range parts {
		name, rateStr, ok := strings.Cut(p, ":")
		name = strings.ToLower(strings.TrimSpace(name))
		if !ok || name == "" {
			return nil, fmt.Errorf("bad platform %q, want name:rate", p)
		}
		rate, err := strconv.Atoi(strings.TrimSpace(rateStr))
		if err != nil || rate <= 0 {
			return nil, fmt.Errorf("bad rate for %s: %q", name, rateStr)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate platform %s", name)
		}
		seen[name] = true
		out = append(out, model.Platform{
			Name:           name,
			Label:          strings.ToUpper(name[:1]) + name[1:],
			ConversionRate: rate,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
