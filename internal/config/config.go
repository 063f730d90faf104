package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	DataDir  string         `yaml:"data_dir" mapstructure:"data_dir"`
	Sources  SourcesConfig  `yaml:"sources" mapstructure:"sources"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Regions  RegionsConfig  `yaml:"regions" mapstructure:"regions"`
	Places   PlacesConfig   `yaml:"places" mapstructure:"places"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// SourcesConfig holds the remote archive locations.
type SourcesConfig struct {
	GADMURL     string `yaml:"gadm_url" mapstructure:"gadm_url"`
	GeonamesURL string `yaml:"geonames_url" mapstructure:"geonames_url"`
}

// FetchConfig configures download behavior.
type FetchConfig struct {
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	RateLimit  float64       `yaml:"rate_limit" mapstructure:"rate_limit"`
	Force      bool          `yaml:"force" mapstructure:"force"`
}

// RegionsConfig configures the boundary layers and the level selection
// heuristic.
type RegionsConfig struct {
	Layer0             string  `yaml:"layer0" mapstructure:"layer0"`
	Layer1             string  `yaml:"layer1" mapstructure:"layer1"`
	Layer2             string  `yaml:"layer2" mapstructure:"layer2"`
	DissolveMaxAreaKm2 float64 `yaml:"dissolve_max_area_km2" mapstructure:"dissolve_max_area_km2"`
	SplitMinAreaKm2    float64 `yaml:"split_min_area_km2" mapstructure:"split_min_area_km2"`
	MinSubregions      int     `yaml:"min_subregions" mapstructure:"min_subregions"`
	PatchesFile        string  `yaml:"patches_file" mapstructure:"patches_file"`
}

// PlacesConfig configures gazetteer parsing and the spatial join.
type PlacesConfig struct {
	MinPopulation    int     `yaml:"min_population" mapstructure:"min_population"`
	GeohashPrecision int     `yaml:"geohash_precision" mapstructure:"geohash_precision"`
	JoinWorkers      int     `yaml:"join_workers" mapstructure:"join_workers"`
	CellSizeDeg      float64 `yaml:"cell_size_deg" mapstructure:"cell_size_deg"`
	NearestFallback  bool    `yaml:"nearest_fallback" mapstructure:"nearest_fallback"`
	NearestMaxKm     float64 `yaml:"nearest_max_km" mapstructure:"nearest_max_km"`
}

// OutputConfig names the output directory and container files.
type OutputConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	RegionsFile string `yaml:"regions_file" mapstructure:"regions_file"`
	PlacesFile  string `yaml:"places_file" mapstructure:"places_file"`
}

// RegionsPath returns the full path of the regions container.
func (o OutputConfig) RegionsPath() string {
	return filepath.Join(o.Dir, o.RegionsFile)
}

// PlacesPath returns the full path of the places container.
func (o OutputConfig) PlacesPath() string {
	return filepath.Join(o.Dir, o.PlacesFile)
}

// PostgresConfig configures the PostGIS bulk load.
type PostgresConfig struct {
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
	Schema string `yaml:"schema" mapstructure:"schema"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GAZETTEER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data_dir", "data")
	v.SetDefault("sources.gadm_url", "https://geodata.ucdavis.edu/gadm/gadm4.1/gadm_410-levels.zip")
	v.SetDefault("sources.geonames_url", "https://download.geonames.org/export/dump/cities15000.zip")
	v.SetDefault("fetch.user_agent", "gazetteer/1.0 (+https://github.com/atlasforge/gazetteer)")
	v.SetDefault("fetch.timeout", "10m")
	v.SetDefault("fetch.max_retries", 4)
	v.SetDefault("fetch.rate_limit", 2.0)
	v.SetDefault("regions.layer0", "ADM_0")
	v.SetDefault("regions.layer1", "ADM_1")
	v.SetDefault("regions.layer2", "ADM_2")
	v.SetDefault("regions.dissolve_max_area_km2", 25_000)
	v.SetDefault("regions.split_min_area_km2", 1_500_000)
	v.SetDefault("regions.min_subregions", 8)
	v.SetDefault("places.min_population", 15_000)
	v.SetDefault("places.geohash_precision", 9)
	v.SetDefault("places.join_workers", 0)
	v.SetDefault("places.cell_size_deg", 1.0)
	v.SetDefault("places.nearest_fallback", false)
	v.SetDefault("places.nearest_max_km", 200)
	v.SetDefault("output.dir", "out")
	v.SetDefault("output.regions_file", "regions.gpkg")
	v.SetDefault("output.places_file", "places.gpkg")
	v.SetDefault("postgres.schema", "gazetteer")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the keys the given command mode depends on. Problems
// are collected so one run reports every missing key.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "fetch":
		problems = append(problems, c.sourceProblems()...)
	case "build":
		problems = append(problems, c.sourceProblems()...)
		problems = append(problems, c.regionProblems()...)
		problems = append(problems, c.placeProblems()...)
		problems = append(problems, c.outputProblems()...)
	case "export", "report", "verify", "status":
		problems = append(problems, c.outputProblems()...)
	case "load":
		problems = append(problems, c.outputProblems()...)
		if c.Postgres.DSN == "" {
			problems = append(problems, "postgres.dsn is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.DataDir == "" {
		problems = append(problems, "data_dir is required")
	}
	if len(problems) == 0 {
		return nil
	}
	return eris.Errorf("config: %s", strings.Join(problems, "; "))
}

func (c *Config) sourceProblems() []string {
	var problems []string
	if c.Sources.GADMURL == "" {
		problems = append(problems, "sources.gadm_url is required")
	}
	if c.Sources.GeonamesURL == "" {
		problems = append(problems, "sources.geonames_url is required")
	}
	if c.Fetch.MaxRetries < 1 {
		problems = append(problems, "fetch.max_retries must be >= 1")
	}
	return problems
}

func (c *Config) regionProblems() []string {
	var problems []string
	if c.Regions.Layer0 == "" || c.Regions.Layer1 == "" || c.Regions.Layer2 == "" {
		problems = append(problems, "regions.layer0/layer1/layer2 must all be set")
	}
	if c.Regions.DissolveMaxAreaKm2 <= 0 {
		problems = append(problems, "regions.dissolve_max_area_km2 must be > 0")
	}
	if c.Regions.SplitMinAreaKm2 <= c.Regions.DissolveMaxAreaKm2 {
		problems = append(problems, "regions.split_min_area_km2 must exceed dissolve_max_area_km2")
	}
	if c.Regions.MinSubregions < 0 {
		problems = append(problems, "regions.min_subregions must be >= 0")
	}
	return problems
}

func (c *Config) placeProblems() []string {
	var problems []string
	if c.Places.MinPopulation < 0 {
		problems = append(problems, "places.min_population must be >= 0")
	}
	if c.Places.GeohashPrecision < 0 || c.Places.GeohashPrecision > 12 {
		problems = append(problems, "places.geohash_precision must be between 0 and 12")
	}
	if c.Places.JoinWorkers < 0 {
		problems = append(problems, "places.join_workers must be >= 0")
	}
	if c.Places.CellSizeDeg <= 0 {
		problems = append(problems, "places.cell_size_deg must be > 0")
	}
	if c.Places.NearestFallback && c.Places.NearestMaxKm <= 0 {
		problems = append(problems, "places.nearest_max_km must be > 0 when nearest_fallback is on")
	}
	return problems
}

func (c *Config) outputProblems() []string {
	var problems []string
	if c.Output.Dir == "" {
		problems = append(problems, "output.dir is required")
	}
	if c.Output.RegionsFile == "" {
		problems = append(problems, "output.regions_file is required")
	}
	if c.Output.PlacesFile == "" {
		problems = append(problems, "output.places_file is required")
	}
	return problems
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
