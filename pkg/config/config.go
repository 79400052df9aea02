package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smith3v/quizsync/pkg/logger"
	"github.com/spf13/viper"
)

const EnvPrefix = "QUIZSYNC"

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Local    LocalConfig    `mapstructure:"local"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Server   ServerConfig   `mapstructure:"server"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig points at the Postgres database backing the remote store.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     int    `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
}

// LocalConfig describes the on-device sqlite store.
type LocalConfig struct {
	Path    string `mapstructure:"path"`
	Dataset string `mapstructure:"dataset"`
}

type RemoteConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Token   string        `mapstructure:"token"`
}

type SyncConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	QueueWorkers  int           `mapstructure:"queue_workers"`
	QueueSize     int           `mapstructure:"queue_size"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	JWTSecret      string   `mapstructure:"jwt_secret"`
	AllowAnonymous bool     `mapstructure:"allow_anonymous"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	File      string `mapstructure:"file"`
	Format    string `mapstructure:"format"`
	GormLevel string `mapstructure:"gorm_level"`
	// SlowQuery is the duration above which a query is logged as slow.
	SlowQuery time.Duration `mapstructure:"slow_query"`
}

var AppConfig = Default()

// Default returns the configuration used when no file is present.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Error("failed to build default config", "error", err)
	}
	return cfg
}

// LoadConfig reads a JSON config file into AppConfig. Values can be
// overridden by QUIZSYNC_* environment variables, e.g. QUIZSYNC_REMOTE_BASE_URL.
// An empty filename loads defaults and the environment only.
func LoadConfig(filename string) error {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if filename != "" {
		v.SetConfigFile(filename)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			logger.Error("failed to read config file", "file", filename, "error", err)
			return err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Error("failed to decode config file", "file", filename, "error", err)
		return err
	}
	AppConfig = cfg
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "quizsync")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("local.path", "quizsync.db")
	v.SetDefault("local.dataset", "")

	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.timeout", 15*time.Second)
	v.SetDefault("remote.token", "")

	v.SetDefault("sync.interval", 30*time.Second)
	v.SetDefault("sync.initial_delay", 2*time.Second)
	v.SetDefault("sync.probe_interval", 10*time.Second)
	v.SetDefault("sync.queue_workers", 2)
	v.SetDefault("sync.queue_size", 64)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.allow_anonymous", true)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.gorm_level", "warn")
	v.SetDefault("logging.slow_query", 200*time.Millisecond)
}

// DSN returns the Postgres connection string for the remote store.
func (c DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" port=" + strconv.Itoa(c.Port) +
		" sslmode=" + c.SSLMode
}

// RemoteEnabled reports whether a remote store is configured at all.
func (c Config) RemoteEnabled() bool {
	return strings.TrimSpace(c.Remote.BaseURL) != ""
}

func (c SyncConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive, got %s", c.Interval)
	}
	if c.InitialDelay < 0 {
		return fmt.Errorf("sync.initial_delay must not be negative, got %s", c.InitialDelay)
	}
	if c.QueueWorkers <= 0 {
		return fmt.Errorf("sync.queue_workers must be positive, got %d", c.QueueWorkers)
	}
	return nil
}
