package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Upstream modes.
const (
	ModeStream = "stream"
	ModePoll   = "poll"
)

type Config struct {
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// UpstreamConfig describes the third-party stock feed and the retry policy used against it.
type UpstreamConfig struct {
	Mode      string `mapstructure:"mode"`       // "stream" (WebSocket) or "poll" (REST)
	WSURL     string `mapstructure:"ws_url"`     // WebSocket endpoint
	RESTURL   string `mapstructure:"rest_url"`   // REST endpoint returning the nested stock shape
	AccountID string `mapstructure:"account_id"` // optional, appended to WSURL as user_id

	RetryDelay       time.Duration `mapstructure:"retry_delay"`       // streaming reconnect delay
	PollInterval     time.Duration `mapstructure:"poll_interval"`     // delay between polls
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`   // per-poll bound
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"` // WebSocket dial bound
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	PongWait         time.Duration `mapstructure:"pong_wait"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Debug           bool          `mapstructure:"debug"` // exposes GET /debug
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("upstream.mode", ModeStream)
	v.SetDefault("upstream.ws_url", "wss://grown.gleeze.com:2083/")
	v.SetDefault("upstream.rest_url", "")
	v.SetDefault("upstream.account_id", "")
	v.SetDefault("upstream.retry_delay", 5*time.Second)
	v.SetDefault("upstream.poll_interval", 30*time.Second)
	v.SetDefault("upstream.request_timeout", 10*time.Second)
	v.SetDefault("upstream.handshake_timeout", 10*time.Second)
	v.SetDefault("upstream.ping_interval", 20*time.Second)
	v.SetDefault("upstream.pong_wait", 60*time.Second)

	v.SetDefault("server.port", 10000)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "dev")

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "gardenrelay")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
	v.SetDefault("postgres.max_open_conns", 5)
	v.SetDefault("postgres.max_idle_conns", 2)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)
	v.SetDefault("postgres.retention", 7*24*time.Hour)
}

// Load loads application configuration using Viper.
// It reads config.yaml when one is found (path, ./config, or <exe>/../config)
// and overrides it with environment variables. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		if ex, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
		}
	}

	// Support environment variables with dot notation (e.g., UPSTREAM_WS_URL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Hosting platforms hand out the listen port as bare PORT.
	if err := v.BindEnv("server.port", "SERVER_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("bind port env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate reports the first configuration problem that would keep the relay from starting.
func (c *Config) Validate() error {
	u := c.Upstream
	switch u.Mode {
	case ModeStream:
		if u.WSURL == "" {
			return errors.New("upstream.ws_url is required in stream mode")
		}
		if u.RetryDelay <= 0 || u.PingInterval <= 0 || u.PongWait <= 0 {
			return errors.New("upstream retry_delay, ping_interval and pong_wait must be positive")
		}
		if u.PongWait <= u.PingInterval {
			return fmt.Errorf("upstream.pong_wait (%s) must exceed ping_interval (%s)", u.PongWait, u.PingInterval)
		}
	case ModePoll:
		if u.RESTURL == "" {
			return errors.New("upstream.rest_url is required in poll mode")
		}
		if u.PollInterval <= 0 || u.RequestTimeout <= 0 {
			return errors.New("upstream poll_interval and request_timeout must be positive")
		}
	default:
		return fmt.Errorf("unknown upstream.mode %q", u.Mode)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}
