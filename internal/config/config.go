package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	_ "github.com/joho/godotenv/autoload" // .env is loaded into the process env before viper reads it
	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Mail     MailConfig     `mapstructure:"mail"`
	Log      LogConfig      `mapstructure:"log"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	StaticDir   string   `mapstructure:"static_dir"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN builds the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

// RedisConfig holds Redis settings. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a Redis address is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// MailConfig holds SMTP settings. An empty Host selects the logging transport.
type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	UseTLS   bool   `mapstructure:"use_tls"`
	UseSSL   bool   `mapstructure:"use_ssl"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NotifyConfig holds notification core settings.
type NotifyConfig struct {
	EmailEnabled bool          `mapstructure:"email_enabled"`
	DueWindow    time.Duration `mapstructure:"due_window"`
	ScanSchedule string        `mapstructure:"scan_schedule"`
	SendTimeout  time.Duration `mapstructure:"send_timeout"`
	PendingLimit int           `mapstructure:"pending_limit"`
	GuardTTL     time.Duration `mapstructure:"guard_ttl"`
}

// legacyEnv maps config keys to the environment variable names the
// deployment scripts already export.
var legacyEnv = map[string]string{
	"server.port":          "PORT",
	"db.host":              "BLUEPRINT_DB_HOST",
	"db.port":              "BLUEPRINT_DB_PORT",
	"db.name":              "BLUEPRINT_DB_DATABASE",
	"db.user":              "BLUEPRINT_DB_USERNAME",
	"db.password":          "BLUEPRINT_DB_PASSWORD",
	"redis.addr":           "REDIS_ADDR",
	"mail.host":            "MAIL_SERVER",
	"mail.port":            "MAIL_PORT",
	"mail.username":        "MAIL_USERNAME",
	"mail.password":        "MAIL_PASSWORD",
	"mail.from":            "MAIL_DEFAULT_SENDER",
	"mail.use_tls":         "MAIL_USE_TLS",
	"mail.use_ssl":         "MAIL_USE_SSL",
	"notify.email_enabled": "ENABLE_EMAIL_NOTIFICATIONS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_dir", "static")
	v.SetDefault("server.cors_origins", []string{"https://*", "http://*"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "todo")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open_conns", 100)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.use_tls", true)
	v.SetDefault("mail.use_ssl", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("notify.email_enabled", true)
	v.SetDefault("notify.due_window", 24*time.Hour)
	v.SetDefault("notify.scan_schedule", "@every 15m")
	v.SetDefault("notify.send_timeout", 10*time.Second)
	v.SetDefault("notify.pending_limit", 50)
	v.SetDefault("notify.guard_ttl", time.Minute)
}

// Loader reads configuration and keeps the viper instance around so that
// file changes can be observed after startup.
type Loader struct {
	v *viper.Viper
}

// NewLoader prepares a loader. An empty path searches for config.yaml in
// ./config and the working directory.
// Precedence: environment > config file > defaults.
func NewLoader(path string) (*Loader, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TODO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "TODO_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// no file: defaults and environment only
	}

	return &Loader{v: v}, nil
}

// Load decodes and validates the current configuration.
func (l *Loader) Load() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// OnChange re-decodes the configuration whenever the backing file changes
// and hands the result to fn. Invalid reloads are reported through onErr
// and otherwise ignored.
func (l *Loader) OnChange(fn func(*Config), onErr func(error)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := l.Load()
		if err != nil {
			onErr(err)
			return
		}
		fn(cfg)
	})
	l.v.WatchConfig()
}

// Load is a shortcut for NewLoader(path) followed by Load.
func Load(path string) (*Config, error) {
	l, err := NewLoader(path)
	if err != nil {
		return nil, err
	}
	return l.Load()
}

// Validate checks the settings the process cannot run without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return errors.New("config: db.host must not be empty")
	}
	if c.Notify.DueWindow <= 0 {
		return errors.New("config: notify.due_window must be positive")
	}
	if c.Notify.SendTimeout <= 0 {
		return errors.New("config: notify.send_timeout must be positive")
	}
	if c.Notify.PendingLimit <= 0 {
		return errors.New("config: notify.pending_limit must be positive")
	}
	if c.Notify.GuardTTL <= 0 {
		return errors.New("config: notify.guard_ttl must be positive")
	}
	return nil
}
