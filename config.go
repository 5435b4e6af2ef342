package pgasync

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
)

const (
	defaultPort           = 5432
	defaultSSLMode        = "prefer"
	defaultConnectTimeout = 10 * time.Second
	defaultLogLevel       = "warn"
)

// Config controls how a Conn reaches the server and reports on itself.
type Config struct {
	// Host is the server host name or address.
	Host string `env:"PGHOST" validate:"required"`

	// Database is the database name.
	Database string `env:"PGDATABASE" validate:"required"`

	User     string `env:"PGUSER"`
	Password string `env:"PGPASSWORD"`

	// Port defaults to 5432.
	Port int `env:"PGPORT" validate:"omitempty,min=1,max=65535"`

	// SSLMode defaults to prefer.
	SSLMode string `env:"PGSSLMODE" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`

	// ConnectTimeout defaults to 10s.
	ConnectTimeout time.Duration `env:"PGASYNC_CONNECT_TIMEOUT"`

	ApplicationName string `env:"PGAPPNAME"`

	// LogLevel applies to the default logger and to driver trace output.
	// Defaults to warn.
	LogLevel string `env:"PGASYNC_LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`

	// LogQueries includes SQL text and arguments in driver trace logs.
	LogQueries bool `env:"PGASYNC_LOG_QUERIES"`

	// Logger overrides the default charmbracelet/log backed logger.
	Logger *slog.Logger

	// OnReady is called, in its own goroutine, once the connection is
	// established. It is also called after every successful Reconnect.
	OnReady func(*Conn)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ConfigFromEnv builds a Config from the libpq environment variables
// (PGHOST, PGDATABASE, PGUSER, PGPASSWORD, PGPORT, PGSSLMODE, PGAPPNAME)
// plus the PGASYNC_* knobs.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("pgasync: parse environment: %w", err)
	}
	return cfg, nil
}

// Validate reports the first configuration problem found. Messages name
// fields only, never their values.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("pgasync: invalid config: %w", err)
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("pgasync: %s is required", fe.Field())
	case "oneof":
		return fmt.Errorf("pgasync: %s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Errorf("pgasync: %s failed %q validation", fe.Field(), fe.Tag())
	}
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.SSLMode == "" {
		c.SSLMode = defaultSSLMode
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	return c
}

// connString renders the config as a keyword/value connection string. Every
// value is quoted, so socket directories and arbitrary passwords survive. The
// result carries the password and must never be logged.
func (c Config) connString() string {
	var b strings.Builder
	add := func(key, value string) {
		if value == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(quoteConnValue(value))
	}

	add("host", c.Host)
	add("port", strconv.Itoa(c.Port))
	add("dbname", c.Database)
	add("user", c.User)
	add("password", c.Password)
	add("sslmode", c.SSLMode)
	add("application_name", c.ApplicationName)
	return b.String()
}

func quoteConnValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// target is the log-safe description of where the config points.
func (c Config) target() string {
	return fmt.Sprintf("%s/%s", net.JoinHostPort(c.Host, strconv.Itoa(c.Port)), strings.TrimPrefix(c.Database, "/"))
}
