package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/soaringjerry/stsportal/internal/utils"
)

const devSecret = "sts-dev-secret"

type DB struct {
	Driver        string `mapstructure:"driver"`
	DSN           string `mapstructure:"dsn"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

type JWT struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type Reaper struct {
	Schedule string `mapstructure:"schedule"`
}

type Admin struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type S3 struct {
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// Config is the runtime configuration. StaticDir serves the built frontend;
// DevFrontendURL proxies to a dev server instead. StaticDir wins when both
// are set.
type Config struct {
	Addr           string        `mapstructure:"addr"`
	Env            string        `mapstructure:"env"`
	LogLevel       string        `mapstructure:"log_level"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	Commit         string        `mapstructure:"commit"`
	BuildTime      string        `mapstructure:"build_time"`
	StaticDir      string        `mapstructure:"static_dir"`
	DevFrontendURL string        `mapstructure:"dev_frontend_url"`
	DB             DB            `mapstructure:"db"`
	JWT            JWT           `mapstructure:"jwt"`
	Reaper         Reaper        `mapstructure:"reaper"`
	Admin          Admin         `mapstructure:"admin"`
	Kafka          Kafka         `mapstructure:"kafka"`
	S3             S3            `mapstructure:"s3"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("session_ttl", 30*24*time.Hour)
	v.SetDefault("commit", "")
	v.SetDefault("build_time", "")
	v.SetDefault("static_dir", "")
	v.SetDefault("dev_frontend_url", "")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "data/sts.db")
	v.SetDefault("db.migrations_dir", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 12*time.Hour)
	v.SetDefault("reaper.schedule", "@every 1h")
	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "sts.sessions")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
}

// Load reads .env (when present), then an optional config file, then STS_*
// environment variables; later sources win. STS_DB_DSN maps to db.dsn.
func Load() (*Config, error) {
	envFile := utils.SafeEnv("STS_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
		slog.Debug("no .env file, using process environment", "path", envFile)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("STS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path := os.Getenv("STS_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	if cfg.JWT.Secret == "" && !cfg.Production() {
		cfg.JWT.Secret = devSecret
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitList accepts both list values and a single comma separated env var.
func splitList(in []string) []string {
	out := []string{}
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) Production() bool { return strings.EqualFold(c.Env, "production") }

func (c *Config) Validate() error {
	var errs []error
	switch c.DB.Driver {
	case "postgres", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("db.driver must be postgres, sqlite or memory, got %q", c.DB.Driver))
	}
	if c.DB.Driver != "memory" && c.DB.DSN == "" {
		errs = append(errs, errors.New("db.dsn is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required in production"))
	}
	if c.Production() && c.JWT.Secret == devSecret {
		errs = append(errs, errors.New("jwt.secret must not be the development default in production"))
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("jwt.ttl must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session_ttl must be positive"))
	}
	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		errs = append(errs, errors.New("admin.email and admin.password must be set together"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}

// SlogLevel maps log_level onto slog; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
