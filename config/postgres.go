package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SSM parameter names holding the production database credentials.
const (
	ssmDBHost     = "GARDENRELAY_DB_HOST"
	ssmDBUser     = "GARDENRELAY_DB_USER"
	ssmDBPassword = "GARDENRELAY_DB_PASSWORD"
)

// PostgresConfig defines the connection to the database backing the connection journal.
type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	Retention time.Duration `mapstructure:"retention"` // journal rows older than this are pruned; 0 keeps everything
}

// parameterLookup fetches one SSM parameter, returning "" when unavailable.
var parameterLookup = getParameterStoreValue

// DSN builds a libpq connection string. In "prod" the host and credentials
// come from AWS SSM Parameter Store; any value SSM cannot provide falls back
// to the configured one.
func (cfg *PostgresConfig) DSN(env string) string {
	host, user, password := cfg.credentials(env)
	return cfg.dsnFor(host, user, password, cfg.DBName)
}

// AdminDSN points at the server's maintenance database, used to create DBName.
// Host and credentials resolve exactly as in DSN.
func (cfg *PostgresConfig) AdminDSN(env string) string {
	host, user, password := cfg.credentials(env)
	return cfg.dsnFor(host, user, password, "postgres")
}

// credentials resolves host, user and password for env.
func (cfg *PostgresConfig) credentials(env string) (host, user, password string) {
	host, user, password = cfg.Host, cfg.User, cfg.Password
	if env != "prod" {
		return host, user, password
	}

	// Parameter Store overrides, per value
	host = orDefault(parameterLookup(ssmDBHost, true), host)
	user = orDefault(parameterLookup(ssmDBUser, true), user)
	password = orDefault(parameterLookup(ssmDBPassword, true), password)
	return host, user, password
}

func (cfg *PostgresConfig) dsnFor(host, user, password, dbname string) string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, cfg.Port, user, password, dbname, cfg.SSLMode,
	)

	if cfg.TimeZone != "" {
		dsn += fmt.Sprintf(" TimeZone=%s", cfg.TimeZone)
	}

	return dsn
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getParameterStoreValue(parameterName string, decrypt bool) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return ""
	}

	client := ssm.NewFromConfig(cfg)

	input := &ssm.GetParameterInput{
		Name:           &parameterName,
		WithDecryption: &decrypt,
	}

	result, err := client.GetParameter(ctx, input)
	if err != nil {
		return ""
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return ""
	}

	return *result.Parameter.Value
}
