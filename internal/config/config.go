package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Overpass OverpassConfig `yaml:"overpass" mapstructure:"overpass"`
	TIGERweb TIGERwebConfig `yaml:"tigerweb" mapstructure:"tigerweb"`
	TIGER    TIGERConfig    `yaml:"tiger" mapstructure:"tiger"`
	Boundary BoundaryConfig `yaml:"boundary" mapstructure:"boundary"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// OverpassConfig configures the Overpass API client.
type OverpassConfig struct {
	URL         string  `yaml:"url" mapstructure:"url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// TIGERwebConfig configures the Census TIGERweb REST client.
type TIGERwebConfig struct {
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	BlockGroupLayer string `yaml:"block_group_layer" mapstructure:"block_group_layer"`
	TractLayer      string `yaml:"tract_layer" mapstructure:"tract_layer"`
	StateLayer      string `yaml:"state_layer" mapstructure:"state_layer"`
	CountyLayer     string `yaml:"county_layer" mapstructure:"county_layer"`
}

// TIGERConfig configures TIGER/Line shapefile downloads.
type TIGERConfig struct {
	Year    int    `yaml:"year" mapstructure:"year"`
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// BoundaryConfig configures assembly.
type BoundaryConfig struct {
	Center        string `yaml:"center" mapstructure:"center"`
	Workers       int    `yaml:"workers" mapstructure:"workers"`
	ProgressEvery int    `yaml:"progress_every" mapstructure:"progress_every"`
	Provenance    string `yaml:"provenance" mapstructure:"provenance"`
}

// StoreConfig configures where assembled boundaries are written.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
	// TractsDir holds census tract FeatureCollections.
	TractsDir   string `yaml:"tracts_dir" mapstructure:"tracts_dir"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ServerConfig configures the read-only boundary HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// Load reads configuration from .env, config.yaml and BOUNDARY_* environment
// variables, in increasing priority.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BOUNDARY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("overpass.url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.timeout_secs", 25)
	v.SetDefault("overpass.max_retries", 3)
	v.SetDefault("overpass.rate_per_sec", 1.0)
	v.SetDefault("overpass.user_agent", "boundary-cli/1.0")
	v.SetDefault("tigerweb.base_url", "https://tigerweb.geo.census.gov/arcgis/rest/services/TIGERweb")
	v.SetDefault("tigerweb.block_group_layer", "tigerWMS_Current/MapServer/10")
	v.SetDefault("tigerweb.tract_layer", "tigerWMS_Current/MapServer/8")
	v.SetDefault("tigerweb.state_layer", "State_County/MapServer/0")
	v.SetDefault("tigerweb.county_layer", "tigerWMS_Current/MapServer/82")
	v.SetDefault("tiger.year", 2024)
	v.SetDefault("tiger.temp_dir", "/tmp/boundary-cli/tiger")
	v.SetDefault("tiger.base_url", "https://www2.census.gov/geo/tiger")
	v.SetDefault("boundary.center", "midpoint")
	v.SetDefault("boundary.workers", 1)
	v.SetDefault("boundary.progress_every", 50)
	v.SetDefault("boundary.provenance", "")
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.dir", "data/cities")
	v.SetDefault("store.tracts_dir", "data/census-tracts")
	v.SetDefault("store.sqlite_path", "boundaries.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that cannot work at runtime.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "file", "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required for the postgres driver")
	}
	switch c.Boundary.Center {
	case "", "midpoint", "centroid":
	default:
		return eris.Errorf("config: unknown boundary.center %q", c.Boundary.Center)
	}
	if c.Boundary.Workers < 0 {
		return eris.New("config: boundary.workers must not be negative")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
