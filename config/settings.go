package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"resolvarr/services/ranking"
)

// EnvPrefix prefixes every environment override (RESOLVARR_SERVER_PORT, ...).
const EnvPrefix = "RESOLVARR"

// ConfigPathEnv names the variable that points at the config file.
const ConfigPathEnv = "RESOLVARR_CONFIG"

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server   ServerSettings      `json:"server" mapstructure:"server"`
	Database DatabaseSettings    `json:"database" mapstructure:"database"`
	Secrets  SecretsSettings     `json:"secrets" mapstructure:"secrets"`
	Log      LogConfig           `json:"log" mapstructure:"log"`
	Backends BackendSettings     `json:"backends" mapstructure:"backends"`
	Ranking  ranking.Preferences `json:"ranking" mapstructure:"ranking"`
	Metrics  MetricsSettings     `json:"metrics" mapstructure:"metrics"`
}

type ServerSettings struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// Addr returns host:port for net/http.
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseSettings points at the sqlite file holding backend configs.
type DatabaseSettings struct {
	Path string `json:"path" mapstructure:"path"`
}

// SecretsSettings configures the encrypted credential directory. An empty
// passphrase makes the store generate a master key file.
type SecretsSettings struct {
	Dir        string `json:"dir" mapstructure:"dir"`
	Passphrase string `json:"-" mapstructure:"passphrase"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	File       string `json:"file" mapstructure:"file"`
	Level      string `json:"level" mapstructure:"level"`
	MaxSize    int    `json:"maxSize" mapstructure:"max_size"`
	MaxAge     int    `json:"maxAge" mapstructure:"max_age"`
	MaxBackups int    `json:"maxBackups" mapstructure:"max_backups"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
}

// RateLimitSettings is a token bucket for one backend. RPS 0 disables limiting.
type RateLimitSettings struct {
	RPS   float64 `json:"rps" mapstructure:"rps"`
	Burst int     `json:"burst" mapstructure:"burst"`
}

// PollSettings tunes the readiness poll of a resolution.
type PollSettings struct {
	InitialDelay time.Duration `json:"initialDelay" mapstructure:"initial_delay"`
	MaxDelay     time.Duration `json:"maxDelay" mapstructure:"max_delay"`
	MaxAttempts  uint          `json:"maxAttempts" mapstructure:"max_attempts"`
}

type BackendSettings struct {
	RequestTimeout time.Duration                `json:"requestTimeout" mapstructure:"request_timeout"`
	HealthTimeout  time.Duration                `json:"healthTimeout" mapstructure:"health_timeout"`
	UserAgent      string                       `json:"userAgent" mapstructure:"user_agent"`
	Poll           PollSettings                 `json:"poll" mapstructure:"poll"`
	RateLimits     map[string]RateLimitSettings `json:"rateLimits" mapstructure:"rate_limits"`
	// BaseURLs overrides service endpoints, keyed by backend type.
	BaseURLs map[string]string `json:"baseUrls,omitempty" mapstructure:"base_urls"`
}

type MetricsSettings struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

func DefaultSettings() Settings {
	return Settings{
		Server:   ServerSettings{Host: "0.0.0.0", Port: 7878},
		Database: DatabaseSettings{Path: "data/resolvarr.db"},
		Secrets:  SecretsSettings{Dir: "data/secrets"},
		Log: LogConfig{
			File:       "data/logs/resolvarr.log",
			Level:      "info",
			MaxSize:    50,   // 50 MB per file
			MaxBackups: 3,    // keep 3 old files
			MaxAge:     7,    // 7 days
			Compress:   true, // compress old files
		},
		Backends: BackendSettings{
			RequestTimeout: 30 * time.Second,
			HealthTimeout:  10 * time.Second,
			UserAgent:      "resolvarr",
			Poll: PollSettings{
				InitialDelay: 500 * time.Millisecond,
				MaxDelay:     5 * time.Second,
				MaxAttempts:  30,
			},
			RateLimits: map[string]RateLimitSettings{
				"realdebrid": {RPS: 4, Burst: 4},
				"alldebrid":  {RPS: 10, Burst: 10},
				"premiumize": {RPS: 5, Burst: 5},
				"torbox":     {RPS: 5, Burst: 5},
				"debridlink": {RPS: 4, Burst: 4},
				"offcloud":   {RPS: 2, Burst: 2},
				"easynews":   {RPS: 5, Burst: 5},
			},
		},
		Ranking: ranking.Preferences{PreferCached: true},
		Metrics: MetricsSettings{Enabled: true},
	}
}

// Manager loads and persists settings to a YAML file through viper.
type Manager struct {
	path string
}

// NewManager uses configPath, falling back to $RESOLVARR_CONFIG and then
// config.yaml in the working directory.
func NewManager(configPath string) *Manager {
	if strings.TrimSpace(configPath) == "" {
		configPath = os.Getenv(ConfigPathEnv)
	}
	if strings.TrimSpace(configPath) == "" {
		configPath = "config.yaml"
	}
	return &Manager{path: configPath}
}

// Path returns the config file location.
func (m *Manager) Path() string {
	return m.path
}

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (m *Manager) newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(m.path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range flatten(DefaultSettings()) {
		v.SetDefault(key, value)
	}
	return v
}

// Load reads the config file (a missing file means defaults) and applies
// environment overrides.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	v := m.newViper()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Settings{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("error parsing config: %w", err)
	}
	return normalize(s), nil
}

// Save writes the provided settings to disk.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range flatten(s) {
		v.Set(key, value)
	}
	if err := v.WriteConfigAs(m.path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func normalize(s Settings) Settings {
	s.Log.Level = strings.ToLower(strings.TrimSpace(s.Log.Level))
	if s.Log.Level == "" {
		s.Log.Level = "info"
	}
	s.Ranking.PreferredHDR = strings.TrimSpace(s.Ranking.PreferredHDR)
	if len(s.Backends.RateLimits) > 0 {
		limits := make(map[string]RateLimitSettings, len(s.Backends.RateLimits))
		for name, limit := range s.Backends.RateLimits {
			limits[strings.ToLower(name)] = limit
		}
		s.Backends.RateLimits = limits
	}
	return s
}

// flatten maps settings onto dotted viper keys.
func flatten(s Settings) map[string]any {
	out := map[string]any{
		"server.host":                  s.Server.Host,
		"server.port":                  s.Server.Port,
		"database.path":                s.Database.Path,
		"secrets.dir":                  s.Secrets.Dir,
		"secrets.passphrase":           s.Secrets.Passphrase,
		"log.file":                     s.Log.File,
		"log.level":                    s.Log.Level,
		"log.max_size":                 s.Log.MaxSize,
		"log.max_age":                  s.Log.MaxAge,
		"log.max_backups":              s.Log.MaxBackups,
		"log.compress":                 s.Log.Compress,
		"backends.request_timeout":     s.Backends.RequestTimeout.String(),
		"backends.health_timeout":      s.Backends.HealthTimeout.String(),
		"backends.user_agent":          s.Backends.UserAgent,
		"backends.poll.initial_delay":  s.Backends.Poll.InitialDelay.String(),
		"backends.poll.max_delay":      s.Backends.Poll.MaxDelay.String(),
		"backends.poll.max_attempts":   s.Backends.Poll.MaxAttempts,
		"ranking.prefer_cached":        s.Ranking.PreferCached,
		"ranking.prefer_spatial_audio": s.Ranking.PreferSpatialAudio,
		"ranking.preferred_hdr":        s.Ranking.PreferredHDR,
		"metrics.enabled":              s.Metrics.Enabled,
	}

	names := make([]string, 0, len(s.Backends.RateLimits))
	for name := range s.Backends.RateLimits {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		limit := s.Backends.RateLimits[name]
		out["backends.rate_limits."+name+".rps"] = limit.RPS
		out["backends.rate_limits."+name+".burst"] = limit.Burst
	}
	for name, url := range s.Backends.BaseURLs {
		out["backends.base_urls."+name] = url
	}
	return out
}
