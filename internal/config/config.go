package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Cron       CronConfig       `mapstructure:"cron"`
	Pool       PoolConfig       `mapstructure:"pool"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Snapshots  SnapshotsConfig  `mapstructure:"snapshots"`
	Signal     SignalConfig     `mapstructure:"signal"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	SnapshotSpec  string `mapstructure:"snapshot_spec"`
	RetentionSpec string `mapstructure:"retention_spec"`
}

// PoolConfig is the global bet-placement window. Per-pool min/max override
// these when set on the pool row; zero pool values fall back to the globals.
type PoolConfig struct {
	MinBet float64 `mapstructure:"min_bet"`
	MaxBet float64 `mapstructure:"max_bet"`
}

type SettlementConfig struct {
	// AutoConsumeShields applies a held shield automatically on a loss,
	// preserving the streak, instead of requiring an explicit election.
	AutoConsumeShields bool `mapstructure:"auto_consume_shields"`
	// AllowSettleOpen lets Settle close an OPEN pool itself instead of
	// requiring a prior ClosePool call.
	AllowSettleOpen bool `mapstructure:"allow_settle_open"`
}

type SnapshotsConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Retention time.Duration `mapstructure:"retention"`
}

// SignalConfig tunes the NVI blend. Weights are normalized at use; they do
// not have to sum to 1 here.
type SignalConfig struct {
	EntropyWeight    float64       `mapstructure:"entropy_weight"`
	DivergenceWeight float64       `mapstructure:"divergence_weight"`
	MomentumWindow   time.Duration `mapstructure:"momentum_window"`
}

type OracleConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Endpoints []string      `mapstructure:"endpoints"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.snapshot_spec", "@every 1m")
	v.SetDefault("cron.retention_spec", "@every 6h")
	v.SetDefault("pool.min_bet", 1)
	v.SetDefault("pool.max_bet", 10000)
	v.SetDefault("settlement.auto_consume_shields", true)
	v.SetDefault("settlement.allow_settle_open", false)
	v.SetDefault("snapshots.enabled", true)
	v.SetDefault("snapshots.retention", "720h")
	v.SetDefault("signal.entropy_weight", 0.6)
	v.SetDefault("signal.divergence_weight", 0.4)
	v.SetDefault("signal.momentum_window", "1h")
	v.SetDefault("oracle.enabled", false)
	v.SetDefault("oracle.timeout", "10s")

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
