// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Checkpoint backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config holds the application configuration.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Data       DataConfig
	Server     ServerConfig
	Music      MusicConfig
	Checkpoint CheckpointConfig
	Library    LibraryConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds on-disk storage configuration.
type DataConfig struct {
	// BasePath holds the SQLite database and, for the badger backend, the
	// checkpoint directory (default: ~/PageTune/data).
	BasePath string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        // default: 8080
	ReadTimeout  time.Duration // default: 15s
	WriteTimeout time.Duration // default: 15s, 0 disables for SSE
	IdleTimeout  time.Duration // default: 60s
	CORSOrigins  []string      // default: *
	// Name is the human-readable server name advertised over mDNS
	// (default: hostname).
	Name          string
	AdvertiseMDNS bool // default: true
}

// MusicConfig holds music-generation service configuration.
type MusicConfig struct {
	// ServiceURL is the base URL of the generation service. Empty disables
	// personalization; sessions then play precomputed chapter tracks only.
	ServiceURL string
	Timeout    time.Duration // per request, default: 30s
	RPS        float64       // per document, default: 1
	Burst      int           // default: 3
	CacheSize  int           // generated-track LRU entries, default: 256
}

// CheckpointConfig holds progress checkpoint configuration.
type CheckpointConfig struct {
	Backend  string        // sqlite or badger
	Interval time.Duration // tick interval, default: 60s
}

// LibraryConfig holds bookshelf configuration.
type LibraryConfig struct {
	// ManifestPath is an optional directory of JSON chapter manifests that
	// are imported on startup and re-imported when they change.
	ManifestPath string
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("pagetune", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for data storage")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma separated allowed origins (default: *)")
	serverName := fs.String("server-name", "", "Server name advertised on the local network (default: hostname)")
	advertiseMDNS := fs.String("advertise-mdns", "", "Advertise via mDNS/Zeroconf (default: true)")

	musicURL := fs.String("music-service-url", "", "Music generation service base URL")
	musicTimeout := fs.String("music-timeout", "", "Music generation timeout (default: 30s)")
	musicRPS := fs.String("music-rps", "", "Generation requests per second per document (default: 1)")
	musicBurst := fs.String("music-burst", "", "Generation burst size (default: 3)")
	musicCache := fs.String("music-cache-size", "", "Generated track cache entries (default: 256)")

	checkpointBackend := fs.String("checkpoint-backend", "", "Checkpoint store: sqlite or badger (default: sqlite)")
	checkpointInterval := fs.String("checkpoint-interval", "", "Checkpoint tick interval (default: 60s)")

	manifestPath := fs.String("manifest-path", "", "Directory of chapter manifests to import and watch")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSOrigins:   splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "*")),
			Name:          getConfigValue(*serverName, "SERVER_NAME", defaultServerName()),
			AdvertiseMDNS: getBoolConfigValue(*advertiseMDNS, "ADVERTISE_MDNS", true),
		},
		Music: MusicConfig{
			ServiceURL: strings.TrimRight(getConfigValue(*musicURL, "MUSIC_SERVICE_URL", ""), "/"),
			RPS:        getFloatConfigValue(*musicRPS, "MUSIC_RPS", 1),
			Burst:      getIntConfigValue(*musicBurst, "MUSIC_BURST", 3),
			CacheSize:  getIntConfigValue(*musicCache, "MUSIC_CACHE_SIZE", 256),
		},
		Checkpoint: CheckpointConfig{
			Backend: strings.ToLower(getConfigValue(*checkpointBackend, "CHECKPOINT_BACKEND", BackendSQLite)),
		},
		Library: LibraryConfig{
			ManifestPath: getConfigValue(*manifestPath, "MANIFEST_PATH", ""),
		},
	}

	durations := []struct {
		flag, key, def string
		dst            *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{*musicTimeout, "MUSIC_TIMEOUT", "30s", &cfg.Music.Timeout},
		{*checkpointInterval, "CHECKPOINT_INTERVAL", "60s", &cfg.Checkpoint.Interval},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.key, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.key, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if cfg.Library.ManifestPath != "" {
		expanded, err := expandPath(cfg.Library.ManifestPath, "")
		if err != nil {
			return nil, fmt.Errorf("invalid manifest path: %w", err)
		}
		cfg.Library.ManifestPath = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Music.ServiceURL != "" {
		u, err := url.Parse(c.Music.ServiceURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid music service url: %q", c.Music.ServiceURL)
		}
	}
	if c.Music.Timeout <= 0 {
		return errors.New("music timeout must be positive")
	}
	if c.Music.RPS <= 0 || c.Music.Burst < 1 {
		return errors.New("music rate limit must allow at least one request")
	}
	if c.Music.CacheSize < 1 {
		return errors.New("music cache size must be at least 1")
	}

	switch c.Checkpoint.Backend {
	case BackendSQLite, BackendBadger:
	default:
		return fmt.Errorf("invalid checkpoint backend: %s (must be sqlite or badger)", c.Checkpoint.Backend)
	}
	if c.Checkpoint.Interval < time.Second {
		return errors.New("checkpoint interval must be at least 1s")
	}

	return nil
}

// PortNumber returns the server port as an int, or 0 if it is not numeric.
func (c *Config) PortNumber() int {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil {
		return 0
	}
	return port
}

// DatabasePath returns the SQLite database file path.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Data.BasePath, "pagetune.db")
}

// CheckpointKVPath returns the badger directory used by the badger backend.
func (c *Config) CheckpointKVPath() string {
	return filepath.Join(c.Data.BasePath, "checkpoints")
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "PageTune", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	switch strings.ToLower(strValue) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func defaultServerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "PageTune"
	}
	return host
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Env vars take precedence over the .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
