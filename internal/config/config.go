package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	DB      DBConfig      `mapstructure:"db"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Cron    CronConfig    `mapstructure:"cron"`
	Sources SourcesConfig `mapstructure:"sources"`
	Mail    MailConfig    `mapstructure:"mail"`
	Lock    LockConfig    `mapstructure:"lock"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Output            string `mapstructure:"output"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	// Driver is "postgres" or "memory".
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
	SlowQuery       time.Duration `mapstructure:"slow_query"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type CronConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Aggregation      string        `mapstructure:"aggregation"`
	Sweep            string        `mapstructure:"sweep"`
	ReminderInterval time.Duration `mapstructure:"reminder_interval"`
	RunOnStart       bool          `mapstructure:"run_on_start"`
}

type SourcesConfig struct {
	UserAgent   string        `mapstructure:"user_agent"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	Codeforces  SourceToggle  `mapstructure:"codeforces"`
	CodeChef    SourceToggle  `mapstructure:"codechef"`
	Leetcode    SourceToggle  `mapstructure:"leetcode"`
	Retry       RetryConfig   `mapstructure:"retry"`
}

type SourceToggle struct {
	Enabled bool `mapstructure:"enabled"`
}

type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	BaseDelay      time.Duration `mapstructure:"base_delay"`
	Multiplier     float64       `mapstructure:"multiplier"`
	JitterMin      time.Duration `mapstructure:"jitter_min"`
	JitterMax      time.Duration `mapstructure:"jitter_max"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

type MailConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	Timezone string        `mapstructure:"timezone"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type LockConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.name", "contesttracker")
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.slow_query", "500ms")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "contesttracker:lock:")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.aggregation", "0 0 */4 * * *")
	v.SetDefault("cron.sweep", "0 */5 * * * *")
	v.SetDefault("cron.reminder_interval", "60s")
	v.SetDefault("cron.run_on_start", true)
	v.SetDefault("sources.user_agent", "")
	v.SetDefault("sources.http_timeout", "20s")
	v.SetDefault("sources.codeforces.enabled", true)
	v.SetDefault("sources.codechef.enabled", true)
	v.SetDefault("sources.leetcode.enabled", true)
	v.SetDefault("sources.retry.max_attempts", 3)
	v.SetDefault("sources.retry.base_delay", "2s")
	v.SetDefault("sources.retry.multiplier", 1.5)
	v.SetDefault("sources.retry.jitter_min", "1s")
	v.SetDefault("sources.retry.jitter_max", "3s")
	v.SetDefault("sources.retry.attempt_timeout", "15s")
	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.timezone", "UTC")
	v.SetDefault("mail.timeout", "30s")
	v.SetDefault("lock.ttl", "30m")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
