package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	EnginePath   string
	EngineArgs   []string
	EnginePreset string
	EngineSide   string
	PresetsFile  string

	HandshakeTimeout time.Duration
	SearchTimeout    time.Duration

	ListenAddr string
	WatchAddr  string

	RedisURL    string
	DatabaseURL string

	MessagesDir string
	SnapshotTTL time.Duration
	ArchiveSize int
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		EnginePreset:     "master",
		EngineSide:       "black",
		HandshakeTimeout: 5 * time.Second,
		SearchTimeout:    30 * time.Second,
		ListenAddr:       "127.0.0.1:7878",
		WatchAddr:        "127.0.0.1:7879",
		SnapshotTTL:      24 * time.Hour,
		ArchiveSize:      20,
	}

	cfg.EnginePath = strings.TrimSpace(os.Getenv("XIANGQI_ENGINE_PATH"))
	cfg.EngineArgs = splitList(os.Getenv("XIANGQI_ENGINE_ARGS"), " ")
	if v := strings.TrimSpace(os.Getenv("XIANGQI_ENGINE_PRESET")); v != "" {
		cfg.EnginePreset = strings.ToLower(v)
	}
	cfg.PresetsFile = strings.TrimSpace(os.Getenv("XIANGQI_PRESETS_FILE"))
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("XIANGQI_ENGINE_SIDE"))); v != "" {
		if v != "red" && v != "black" {
			return nil, errors.New("XIANGQI_ENGINE_SIDE must be red or black")
		}
		cfg.EngineSide = v
	}
	if d, ok := parseDuration(os.Getenv("XIANGQI_HANDSHAKE_TIMEOUT")); ok {
		cfg.HandshakeTimeout = d
	}
	if d, ok := parseDuration(os.Getenv("XIANGQI_SEARCH_TIMEOUT")); ok {
		cfg.SearchTimeout = d
	}

	if v := strings.TrimSpace(os.Getenv("XIANGQI_LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("XIANGQI_WATCH_ADDR"); ok {
		// empty disables the watch feed
		cfg.WatchAddr = strings.TrimSpace(v)
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("XIANGQI_MESSAGES_DIR"))

	if d, ok := parseDuration(os.Getenv("XIANGQI_SNAPSHOT_TTL")); ok {
		cfg.SnapshotTTL = d
	}
	if v := strings.TrimSpace(os.Getenv("XIANGQI_ARCHIVE_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ArchiveSize = n
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// EngineEnabled reports whether an engine binary was configured.
func (c *AppConfig) EngineEnabled() bool { return c.EnginePath != "" }

// parseDuration accepts Go durations ("90s") or bare seconds ("90").
func parseDuration(raw string) (time.Duration, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return 0, false
		}
		return time.Duration(n) * time.Second, true
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

func splitList(raw, sep string) []string {
	var out []string
	for _, p := range strings.Split(raw, sep) {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
