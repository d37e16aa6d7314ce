// SPDX-License-Identifier: MIT

// Package config assembles the daemon configuration from an optional YAML
// file overlaid by environment variables. Environment always wins.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Modes for yt-dlp invocation.
const (
	YTDLPModeLocal  = "local"
	YTDLPModeRemote = "remote"
)

// Network preferences for yt-dlp.
const (
	NetIPv4 = "ipv4"
	NetIPv6 = "ipv6"
	NetAuto = "auto"
)

// Stream delivery modes.
const (
	StreamModeProxy    = "proxy"
	StreamModeRedirect = "redirect"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheBadger = "badger"
)

// Config is the full daemon configuration.
type Config struct {
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	DataDir   string `yaml:"data_dir"`

	Cache   Cache   `yaml:"cache"`
	YTDLP   YTDLP   `yaml:"ytdlp"`
	FFmpeg  FFmpeg  `yaml:"ffmpeg"`
	Stream  Stream  `yaml:"stream"`
	Backend Backend `yaml:"backend"`
	OTel    OTel    `yaml:"otel"`
}

// Cache selects and parameterises the probe cache backend.
type Cache struct {
	Backend  string        `yaml:"backend"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"-"`
	// TTLSeconds mirrors the REDIS_TTL wire unit for file configs.
	TTLSeconds int `yaml:"ttl_seconds"`
}

// YTDLP controls how probes are executed.
type YTDLP struct {
	Mode         string   `yaml:"mode"`
	Cmd          string   `yaml:"cmd"`
	RemoteURL    string   `yaml:"remote_url"`
	ExtraArgs    []string `yaml:"extra_args"`
	Net          string   `yaml:"net"`
	Cookies      string   `yaml:"cookies"`
	SponsorBlock bool     `yaml:"sponsorblock"`
}

// FFmpeg locates the remux binary.
type FFmpeg struct {
	Cmd string `yaml:"cmd"`
}

// Stream selects the default delivery mode.
type Stream struct {
	Mode string `yaml:"mode"`
}

// Backend points at an Invidious/Piped style metadata API for discovery.
type Backend struct {
	Provider string `yaml:"provider"`
	Base     string `yaml:"base"`
}

// OTel configures trace export.
type OTel struct {
	Enabled    bool    `yaml:"enabled"`
	Exporter   string  `yaml:"exporter"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate"`
}

func defaults() Config {
	return Config{
		Port:      8080,
		LogLevel:  "info",
		LogFormat: "json",
		DataDir:   "./data",
		Cache: Cache{
			Backend:    CacheMemory,
			TTLSeconds: 43200,
		},
		YTDLP: YTDLP{
			Mode: YTDLPModeLocal,
			Cmd:  "yt-dlp",
			Net:  NetIPv4,
		},
		FFmpeg:  FFmpeg{Cmd: "ffmpeg"},
		Stream:  Stream{Mode: StreamModeProxy},
		Backend: Backend{Provider: "none"},
		OTel:    OTel{Exporter: "grpc", SampleRate: 1.0},
	}
}

// Load builds the configuration: built-in defaults, then the optional
// CONFIG_FILE YAML overlay, then environment variables on top.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	resolveDerived(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg. Each Parse* call uses the
// current (file or default) value as its fallback, so precedence falls out of
// the call order.
func applyEnv(cfg *Config) {
	cfg.Port = ParseInt("PORT", cfg.Port)
	cfg.LogLevel = ParseString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = ParseString("LOG_FORMAT", cfg.LogFormat)
	cfg.DataDir = ParseString("DATA_DIR", cfg.DataDir)

	cfg.Cache.RedisURL = ParseString("REDIS_URL", cfg.Cache.RedisURL)
	cfg.Cache.TTLSeconds = ParseInt("REDIS_TTL", cfg.Cache.TTLSeconds)
	backendDefault := cfg.Cache.Backend
	if cfg.Cache.RedisURL != "" && backendDefault == CacheMemory {
		backendDefault = CacheRedis
	}
	cfg.Cache.Backend = strings.ToLower(ParseString("CACHE_BACKEND", backendDefault))

	cfg.YTDLP.Mode = strings.ToLower(ParseString("YTDLP_MODE", cfg.YTDLP.Mode))
	// YTDLP_BIN is the legacy alias for YTDLP_CMD.
	cfg.YTDLP.Cmd = ParseString("YTDLP_CMD", ParseString("YTDLP_BIN", cfg.YTDLP.Cmd))
	cfg.YTDLP.RemoteURL = ParseString("YTDLP_REMOTE_URL", cfg.YTDLP.RemoteURL)
	if raw := ParseString("YTDLP_ARGS", strings.Join(cfg.YTDLP.ExtraArgs, " ")); raw != "" {
		cfg.YTDLP.ExtraArgs = strings.Fields(raw)
	}
	cfg.YTDLP.Net = strings.ToLower(ParseString("YTDLP_NET", cfg.YTDLP.Net))
	cfg.YTDLP.Cookies = ParseString("YTDLP_COOKIES", cfg.YTDLP.Cookies)
	cfg.YTDLP.SponsorBlock = ParseBool("SPONSORBLOCK", cfg.YTDLP.SponsorBlock)

	cfg.FFmpeg.Cmd = ParseString("FFMPEG_CMD", cfg.FFmpeg.Cmd)
	cfg.Stream.Mode = strings.ToLower(ParseString("STREAM_MODE", cfg.Stream.Mode))

	cfg.Backend.Provider = strings.ToLower(ParseString("BACKEND_PROVIDER", cfg.Backend.Provider))
	cfg.Backend.Base = ParseString("BACKEND_BASE", cfg.Backend.Base)

	cfg.OTel.Enabled = ParseBool("OTEL_ENABLED", cfg.OTel.Enabled)
	cfg.OTel.Exporter = strings.ToLower(ParseString("OTEL_EXPORTER", cfg.OTel.Exporter))
	cfg.OTel.Endpoint = ParseString("OTEL_ENDPOINT", cfg.OTel.Endpoint)
	cfg.OTel.SampleRate = ParseFloat("OTEL_SAMPLE_RATE", cfg.OTel.SampleRate)
}

// resolveDerived fills values that depend on other settings.
func resolveDerived(cfg *Config) {
	cfg.Cache.TTL = time.Duration(cfg.Cache.TTLSeconds) * time.Second

	// Conventional cookies drop location inside the data dir.
	if cfg.YTDLP.Cookies == "" {
		candidate := filepath.Join(cfg.DataDir, "cookies.txt")
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			cfg.YTDLP.Cookies = candidate
		}
	}
}

// Validate checks cross-field consistency and rejects values the daemon
// cannot run with.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range 1-65535", c.Port)
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("REDIS_TTL must be positive, got %d", c.Cache.TTLSeconds)
	}
	switch c.Cache.Backend {
	case CacheMemory, CacheBadger:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("CACHE_BACKEND=redis requires REDIS_URL")
		}
		if u, err := url.Parse(c.Cache.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			return fmt.Errorf("REDIS_URL must be a redis:// or rediss:// URL")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q (want memory, redis or badger)", c.Cache.Backend)
	}

	switch c.YTDLP.Mode {
	case YTDLPModeLocal:
		if c.YTDLP.Cmd == "" {
			return fmt.Errorf("YTDLP_CMD must not be empty in local mode")
		}
	case YTDLPModeRemote:
		u, err := url.Parse(c.YTDLP.RemoteURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("YTDLP_MODE=remote requires an http(s) YTDLP_REMOTE_URL")
		}
	default:
		return fmt.Errorf("unknown YTDLP_MODE %q (want local or remote)", c.YTDLP.Mode)
	}
	switch c.YTDLP.Net {
	case NetIPv4, NetIPv6, NetAuto:
	default:
		return fmt.Errorf("unknown YTDLP_NET %q (want ipv4, ipv6 or auto)", c.YTDLP.Net)
	}

	switch c.Stream.Mode {
	case StreamModeProxy, StreamModeRedirect:
	default:
		return fmt.Errorf("unknown STREAM_MODE %q (want proxy or redirect)", c.Stream.Mode)
	}

	switch c.Backend.Provider {
	case "none":
	case "invidious", "piped":
		u, err := url.Parse(c.Backend.Base)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("BACKEND_PROVIDER=%s requires an http(s) BACKEND_BASE", c.Backend.Provider)
		}
	default:
		return fmt.Errorf("unknown BACKEND_PROVIDER %q (want invidious, piped or none)", c.Backend.Provider)
	}

	if c.OTel.Enabled {
		if c.OTel.Exporter != "grpc" && c.OTel.Exporter != "http" {
			return fmt.Errorf("unknown OTEL_EXPORTER %q (want grpc or http)", c.OTel.Exporter)
		}
		if c.OTel.Endpoint == "" {
			return fmt.Errorf("OTEL_ENABLED requires OTEL_ENDPOINT")
		}
	}
	return nil
}

// Redacted returns a diagnostic view of the configuration with secrets
// masked, suitable for the /diag endpoint and startup logging.
func (c Config) Redacted() map[string]any {
	return map[string]any{
		"port":       c.Port,
		"log_level":  c.LogLevel,
		"data_dir":   c.DataDir,
		"cache":      map[string]any{"backend": c.Cache.Backend, "redis_url": maskURL(c.Cache.RedisURL), "ttl_seconds": c.Cache.TTLSeconds},
		"ytdlp":      map[string]any{"mode": c.YTDLP.Mode, "cmd": c.YTDLP.Cmd, "remote_url": maskURL(c.YTDLP.RemoteURL), "net": c.YTDLP.Net, "args": c.YTDLP.ExtraArgs, "cookies_set": c.YTDLP.Cookies != "", "sponsorblock": c.YTDLP.SponsorBlock},
		"ffmpeg":     map[string]any{"cmd": c.FFmpeg.Cmd},
		"stream":     map[string]any{"mode": c.Stream.Mode},
		"backend":    map[string]any{"provider": c.Backend.Provider, "base": c.Backend.Base},
		"otel":       map[string]any{"enabled": c.OTel.Enabled, "exporter": c.OTel.Exporter},
	}
}

// maskURL hides userinfo in connection URLs for logs and diagnostics.
func maskURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	if u.User != nil {
		u.User = url.UserPassword("xxx", "xxx")
	}
	return u.String()
}
