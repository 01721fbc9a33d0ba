package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/prajjwaltripathi07/chess/game/session"
)

// Archive drivers
const (
	ArchiveNone   = "none"
	ArchiveFile   = "file"
	ArchiveSQLite = "sqlite"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "CHESS_"

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every server setting
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Game      GameConfig      `yaml:"game"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Ngrok     NgrokConfig     `yaml:"ngrok"`
}

// HTTPConfig controls the listener
type HTTPConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	StaticDir    string        `yaml:"static_dir"`
}

// WebSocketConfig controls per-connection limits
type WebSocketConfig struct {
	WriteWait      time.Duration `yaml:"write_wait"`
	PongWait       time.Duration `yaml:"pong_wait"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	SendBuffer     int           `yaml:"send_buffer"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// GameConfig controls session behaviour
type GameConfig struct {
	DisconnectPolicy string `yaml:"disconnect_policy"`
	Observers        bool   `yaml:"observers"`
	MaxChatLength    int    `yaml:"max_chat_length"`
}

// ArchiveConfig selects where finished games are recorded
type ArchiveConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// NgrokConfig controls the optional public tunnel
type NgrokConfig struct {
	Enabled   bool   `yaml:"enabled"`
	AuthToken string `yaml:"auth_token"`
	Domain    string `yaml:"domain"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:         "localhost",
			Port:         3000,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		WebSocket: WebSocketConfig{
			WriteWait:      10 * time.Second,
			PongWait:       60 * time.Second,
			MaxMessageSize: 4096,
			SendBuffer:     64,
		},
		Game: GameConfig{
			DisconnectPolicy: string(session.PolicyForfeit),
			MaxChatLength:    500,
		},
		Archive: ArchiveConfig{
			Driver: ArchiveNone,
		},
	}
}

// Load builds a configuration from defaults, the YAML file at path (if any)
// and CHESS_* environment variables, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := cast.ToIntE(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := cast.ToBoolE(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := cast.ToDurationE(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str(EnvPrefix+"HTTP_HOST", &c.HTTP.Host)
	integer(EnvPrefix+"HTTP_PORT", &c.HTTP.Port)
	duration(EnvPrefix+"HTTP_READ_TIMEOUT", &c.HTTP.ReadTimeout)
	duration(EnvPrefix+"HTTP_WRITE_TIMEOUT", &c.HTTP.WriteTimeout)
	duration(EnvPrefix+"HTTP_IDLE_TIMEOUT", &c.HTTP.IdleTimeout)
	str(EnvPrefix+"STATIC_DIR", &c.HTTP.StaticDir)

	duration(EnvPrefix+"WS_WRITE_WAIT", &c.WebSocket.WriteWait)
	duration(EnvPrefix+"WS_PONG_WAIT", &c.WebSocket.PongWait)
	if v, ok := lookup(EnvPrefix + "WS_MAX_MESSAGE_SIZE"); ok && v != "" {
		n, err := cast.ToInt64E(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sWS_MAX_MESSAGE_SIZE: %w", EnvPrefix, err))
		} else {
			c.WebSocket.MaxMessageSize = n
		}
	}
	integer(EnvPrefix+"WS_SEND_BUFFER", &c.WebSocket.SendBuffer)
	if v, ok := lookup(EnvPrefix + "WS_ALLOWED_ORIGINS"); ok && v != "" {
		c.WebSocket.AllowedOrigins = splitList(v)
	}

	str(EnvPrefix+"DISCONNECT_POLICY", &c.Game.DisconnectPolicy)
	boolean(EnvPrefix+"OBSERVERS", &c.Game.Observers)
	integer(EnvPrefix+"MAX_CHAT_LENGTH", &c.Game.MaxChatLength)

	str(EnvPrefix+"ARCHIVE_DRIVER", &c.Archive.Driver)
	str(EnvPrefix+"ARCHIVE_PATH", &c.Archive.Path)

	boolean("NGROK_ENABLED", &c.Ngrok.Enabled)
	str("NGROK_AUTH_TOKEN", &c.Ngrok.AuthToken)
	str("NGROK_AUTHTOKEN", &c.Ngrok.AuthToken)
	str("NGROK_DOMAIN", &c.Ngrok.Domain)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Validate checks that the configuration can start a server
func (c *Config) Validate() error {
	var problems []string

	if c.HTTP.Host == "" {
		problems = append(problems, "http.host cannot be empty")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		problems = append(problems, fmt.Sprintf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}
	for name, d := range map[string]time.Duration{
		"http.read_timeout":    c.HTTP.ReadTimeout,
		"http.write_timeout":   c.HTTP.WriteTimeout,
		"http.idle_timeout":    c.HTTP.IdleTimeout,
		"websocket.write_wait": c.WebSocket.WriteWait,
		"websocket.pong_wait":  c.WebSocket.PongWait,
	} {
		if d <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive", name))
		}
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		problems = append(problems, "websocket.max_message_size must be positive")
	}
	if c.WebSocket.SendBuffer <= 0 {
		problems = append(problems, "websocket.send_buffer must be positive")
	}
	if _, err := session.ParseDisconnectPolicy(c.Game.DisconnectPolicy); err != nil {
		problems = append(problems, "game."+err.Error())
	}
	if c.Game.MaxChatLength < 0 {
		problems = append(problems, "game.max_chat_length cannot be negative")
	}

	switch c.Archive.Driver {
	case ArchiveNone:
	case ArchiveFile, ArchiveSQLite:
		if c.Archive.Path == "" {
			problems = append(problems, fmt.Sprintf("archive.path is required for the %s driver", c.Archive.Driver))
		}
	default:
		problems = append(problems, fmt.Sprintf("archive.driver must be none, file or sqlite, got %q", c.Archive.Driver))
	}

	if c.Ngrok.Enabled && c.Ngrok.AuthToken == "" {
		problems = append(problems, "ngrok.auth_token is required when ngrok is enabled")
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Policy returns the parsed disconnect policy. Call Validate first.
func (c *Config) Policy() session.DisconnectPolicy {
	p, err := session.ParseDisconnectPolicy(c.Game.DisconnectPolicy)
	if err != nil {
		return session.PolicyForfeit
	}
	return p
}

// Addr returns host:port for the HTTP listener
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// YAML renders the effective configuration with secrets masked
func (c *Config) YAML() (string, error) {
	masked := *c
	if masked.Ngrok.AuthToken != "" {
		masked.Ngrok.AuthToken = "********"
	}
	data, err := yaml.Marshal(&masked)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
