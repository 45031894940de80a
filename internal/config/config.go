// Package config loads the maze service configuration.
package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/towermaze/internal/database"
	"github.com/lawnchairsociety/towermaze/internal/placement"
)

// ServiceConfig holds settings for the maze generation service.
type ServiceConfig struct {
	// Listen is the HTTP address for the generation API and websocket feed.
	Listen string `yaml:"listen"`

	// Mission is the mission YAML regenerated on every request.
	Mission string `yaml:"mission"`

	WebSocket   WebSocketConfig   `yaml:"websocket"`
	Connections ConnectionsConfig `yaml:"connections"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Store       StoreConfig       `yaml:"store"`
	Generation  GenerationConfig  `yaml:"generation"`
}

// StoreConfig controls persistence of generated mazes.
type StoreConfig struct {
	Enabled         bool `yaml:"enabled"`
	database.Config `yaml:",inline"`
}

// GenerationConfig holds defaults applied when building placement plans.
type GenerationConfig struct {
	// SubgoalTolerance is the subgoal trigger radius as a multiple of scale.
	SubgoalTolerance float64 `yaml:"subgoal_tolerance"`

	// QuitTolerance is the quit trigger radius as a multiple of scale.
	QuitTolerance float64 `yaml:"quit_tolerance"`

	// PlanDir, when set, receives a placement plan YAML per generated maze.
	PlanDir string `yaml:"plan_dir"`
}

// PlacementOptions converts the tolerances, falling back to the placement
// defaults for unset or non-positive values.
func (g GenerationConfig) PlacementOptions() placement.Options {
	opts := placement.DefaultOptions()
	if g.SubgoalTolerance > 0 {
		opts.SubgoalTolerance = g.SubgoalTolerance
	}
	if g.QuitTolerance > 0 {
		opts.QuitTolerance = g.QuitTolerance
	}
	return opts
}

// RateLimitConfig throttles generation requests per client IP.
type RateLimitConfig struct {
	// MaxRequests is the number of generations allowed per window.
	MaxRequests int `yaml:"max_requests"`

	// WindowSeconds is the length of the counting window.
	WindowSeconds int `yaml:"window_seconds"`

	// LockoutSeconds is the initial lockout once a client exceeds the window.
	LockoutSeconds int `yaml:"lockout_seconds"`

	// MaxLockoutSeconds caps the exponential backoff.
	MaxLockoutSeconds int `yaml:"max_lockout_seconds"`
}

// ConnectionsConfig holds connection limit settings.
type ConnectionsConfig struct {
	// MaxPerIP is the maximum concurrent websocket subscribers from a single IP.
	// 0 means unlimited.
	MaxPerIP int `yaml:"max_per_ip"`

	// MaxTotal is the maximum total concurrent subscribers. 0 means unlimited.
	MaxTotal int `yaml:"max_total"`
}

// WebSocketConfig holds WebSocket-specific settings.
type WebSocketConfig struct {
	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy.
	// Use "*" to allow all origins (not recommended for production).
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize is the maximum inbound WebSocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`

	// WriteTimeoutSeconds bounds each outbound snapshot write.
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds"`

	// PingIntervalSeconds is how often idle subscribers are pinged.
	PingIntervalSeconds int `yaml:"ping_interval_seconds"`
}

// WriteTimeout returns the write deadline as a duration.
func (c *WebSocketConfig) WriteTimeout() time.Duration {
	if c.WriteTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// PingInterval returns the ping period as a duration.
func (c *WebSocketConfig) PingInterval() time.Duration {
	if c.PingIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.PingIntervalSeconds) * time.Second
}

// DefaultConfig returns a ServiceConfig with secure defaults.
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		Listen:  ":8080",
		Mission: "mission.yaml",
		WebSocket: WebSocketConfig{
			AllowedOrigins:      []string{}, // Same-origin only by default
			MaxMessageSize:      4096,
			WriteTimeoutSeconds: 10,
			PingIntervalSeconds: 30,
		},
		Connections: ConnectionsConfig{
			MaxPerIP: 3,
			MaxTotal: 100,
		},
		RateLimit: RateLimitConfig{
			MaxRequests:       10,
			WindowSeconds:     60,
			LockoutSeconds:    30,
			MaxLockoutSeconds: 300,
		},
		Store: StoreConfig{
			Enabled: true,
			Config:  database.DefaultConfig("data/mazes.db"),
		},
		Generation: GenerationConfig{
			SubgoalTolerance: placement.DefaultSubgoalTolerance,
			QuitTolerance:    placement.DefaultQuitTolerance,
		},
	}
}

// LoadConfig loads service configuration from a YAML file.
// If the file doesn't exist, returns default config.
func LoadConfig(path string) (*ServiceConfig, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return DefaultConfig(), err
	}

	return config, nil
}

// IsOriginAllowed checks if the given origin is allowed based on the config.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *WebSocketConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// isSameOrigin checks if the origin matches the request host.
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // non-browser client
	}

	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
