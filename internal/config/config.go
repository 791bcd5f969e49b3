package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for jsonbench
type Config struct {
	Database DatabaseConfig
	Bench    BenchConfig
	Plot     PlotConfig
	Storage  StorageConfig
	History  HistoryConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
	Table    string // fixture table holding the generated documents
	Column   string // jsonb column of the fixture table
}

type BenchConfig struct {
	Runs          int    // EXPLAIN ANALYZE executions per (pair, operator)
	SampleRows    int    // rows sampled per pair for byte estimates (0 disables sampling)
	Output        string // results CSV, relative to the storage backend
	ParquetOutput string // optional Parquet mirror of Output (empty = disabled)

	// Fixed-grid variant: size indices 0..GridSizes-1, levels 0..GridLevels-1
	GridSizes  int
	GridLevels int
	GridOutput string
}

type PlotConfig struct {
	Input    string // results CSV to chart
	Output   string // PNG destination
	DPI      int
	Width    float64 // inches, 0 = layout default
	Height   float64 // inches, 0 = layout default
	Layout   string  // grid (2x2) or row (1x4)
	Theme    string  // light or dark
	Unit     string  // us (log y axis) or ms (linear y axis)
	BytesMin float64 // interpolation range when bytes_raw is unavailable
	BytesMax float64
	Open     bool // display the chart after rendering
}

type StorageConfig struct {
	Backend   string
	LocalPath string
	// S3/MinIO configuration
	S3Bucket    string
	S3Prefix    string
	S3Region    string
	S3Endpoint  string // Custom endpoint for MinIO (e.g., "http://localhost:9000")
	S3AccessKey string // AWS access key (or use AWS_ACCESS_KEY_ID env var)
	S3SecretKey string // AWS secret key (or use AWS_SECRET_ACCESS_KEY env var)
	S3UseSSL    bool
	S3PathStyle bool // Use path-style addressing (required for MinIO)
	// Azure Blob Storage configuration
	AzureConnectionString   string
	AzureAccountName        string
	AzureAccountKey         string
	AzureSASToken           string
	AzureContainer          string
	AzurePrefix             string
	AzureEndpoint           string // Custom endpoint (for Azurite testing)
	AzureUseManagedIdentity bool
}

type HistoryConfig struct {
	Enabled bool
	DBPath  string // SQLite catalog of past runs
}

type LogConfig struct {
	Level  string
	Format string
}

// legacyEnv maps the plain DB_* variables onto config keys. They are checked
// after the prefixed JSONBENCH_* names.
var legacyEnv = map[string]string{
	"database.host":     "DB_HOST",
	"database.port":     "DB_PORT",
	"database.name":     "DB_NAME",
	"database.user":     "DB_USER",
	"database.password": "DB_PASS",
}

// Load loads configuration from defaults, an optional config file and the
// environment. An empty configFile searches the usual locations for
// jsonbench.toml; a missing file there is not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("JSONBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		prefixed := "JSONBENCH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("jsonbench")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/jsonbench/")
		v.AddConfigPath("$HOME/.jsonbench/")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
			// Config file not found is OK, use defaults
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			Name:     v.GetString("database.name"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			SSLMode:  v.GetString("database.sslmode"),
			Table:    v.GetString("database.table"),
			Column:   v.GetString("database.column"),
		},
		Bench: BenchConfig{
			Runs:          v.GetInt("bench.runs"),
			SampleRows:    v.GetInt("bench.sample_rows"),
			Output:        v.GetString("bench.output"),
			ParquetOutput: v.GetString("bench.parquet_output"),
			GridSizes:     v.GetInt("bench.grid_sizes"),
			GridLevels:    v.GetInt("bench.grid_levels"),
			GridOutput:    v.GetString("bench.grid_output"),
		},
		Plot: PlotConfig{
			Input:    v.GetString("plot.input"),
			Output:   v.GetString("plot.output"),
			DPI:      v.GetInt("plot.dpi"),
			Width:    v.GetFloat64("plot.width"),
			Height:   v.GetFloat64("plot.height"),
			Layout:   strings.ToLower(v.GetString("plot.layout")),
			Theme:    strings.ToLower(v.GetString("plot.theme")),
			Unit:     strings.ToLower(v.GetString("plot.unit")),
			BytesMin: v.GetFloat64("plot.bytes_min"),
			BytesMax: v.GetFloat64("plot.bytes_max"),
			Open:     v.GetBool("plot.open"),
		},
		Storage: StorageConfig{
			Backend:                 strings.ToLower(v.GetString("storage.backend")),
			LocalPath:               v.GetString("storage.local_path"),
			S3Bucket:                v.GetString("storage.s3_bucket"),
			S3Prefix:                v.GetString("storage.s3_prefix"),
			S3Region:                v.GetString("storage.s3_region"),
			S3Endpoint:              v.GetString("storage.s3_endpoint"),
			S3AccessKey:             v.GetString("storage.s3_access_key"),
			S3SecretKey:             v.GetString("storage.s3_secret_key"),
			S3UseSSL:                v.GetBool("storage.s3_use_ssl"),
			S3PathStyle:             v.GetBool("storage.s3_path_style"),
			AzureConnectionString:   v.GetString("storage.azure_connection_string"),
			AzureAccountName:        v.GetString("storage.azure_account_name"),
			AzureAccountKey:         v.GetString("storage.azure_account_key"),
			AzureSASToken:           v.GetString("storage.azure_sas_token"),
			AzureContainer:          v.GetString("storage.azure_container"),
			AzurePrefix:             v.GetString("storage.azure_prefix"),
			AzureEndpoint:           v.GetString("storage.azure_endpoint"),
			AzureUseManagedIdentity: v.GetBool("storage.azure_use_managed_identity"),
		},
		History: HistoryConfig{
			Enabled: v.GetBool("history.enabled"),
			DBPath:  v.GetString("history.db_path"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Database defaults match the exercises database used by the fixture scripts
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "exercises")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.sslmode", "prefer")
	v.SetDefault("database.table", "test_jsonb_nesting")
	v.SetDefault("database.column", "jb")

	// Bench defaults
	v.SetDefault("bench.runs", 5)
	v.SetDefault("bench.sample_rows", 3)
	v.SetDefault("bench.output", "ex15-bench_results.csv")
	v.SetDefault("bench.parquet_output", "") // Disabled by default
	v.SetDefault("bench.grid_sizes", 120)
	v.SetDefault("bench.grid_levels", 10)
	v.SetDefault("bench.grid_output", "jsonb_performance_results.csv")

	// Plot defaults
	v.SetDefault("plot.input", "ex15-bench_results.csv")
	v.SetDefault("plot.output", "ex15-bench_results.png")
	v.SetDefault("plot.dpi", 200)
	v.SetDefault("plot.width", 0)  // 0 = layout default (16x10 grid, 22x5 row)
	v.SetDefault("plot.height", 0)
	v.SetDefault("plot.layout", "grid")
	v.SetDefault("plot.theme", "light")
	v.SetDefault("plot.unit", "us")
	v.SetDefault("plot.bytes_min", 100)
	v.SetDefault("plot.bytes_max", 1_000_000)
	v.SetDefault("plot.open", false)

	// Storage defaults
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_path", ".")
	v.SetDefault("storage.s3_region", "us-east-1")
	v.SetDefault("storage.s3_use_ssl", true)
	v.SetDefault("storage.s3_path_style", false) // Set true for MinIO

	// History defaults
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.db_path", "./data/jsonbench.db")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks values that would otherwise fail deep inside a run
func (c *Config) Validate() error {
	if c.Bench.Runs < 1 {
		return fmt.Errorf("bench.runs must be at least 1, got %d", c.Bench.Runs)
	}
	if c.Bench.SampleRows < 0 {
		return fmt.Errorf("bench.sample_rows cannot be negative, got %d", c.Bench.SampleRows)
	}
	if c.Bench.GridSizes < 1 || c.Bench.GridLevels < 1 {
		return fmt.Errorf("bench.grid_sizes and bench.grid_levels must be positive")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port out of range: %d", c.Database.Port)
	}

	switch c.Plot.Layout {
	case "grid", "row":
	default:
		return fmt.Errorf("unknown plot.layout %q (expected grid or row)", c.Plot.Layout)
	}
	switch c.Plot.Theme {
	case "light", "dark":
	default:
		return fmt.Errorf("unknown plot.theme %q (expected light or dark)", c.Plot.Theme)
	}
	switch c.Plot.Unit {
	case "us", "ms":
	default:
		return fmt.Errorf("unknown plot.unit %q (expected us or ms)", c.Plot.Unit)
	}
	if c.Plot.DPI < 1 {
		return fmt.Errorf("plot.dpi must be positive, got %d", c.Plot.DPI)
	}
	if c.Plot.Width < 0 || c.Plot.Height < 0 {
		return fmt.Errorf("plot.width and plot.height cannot be negative")
	}
	if c.Plot.BytesMin <= 0 || c.Plot.BytesMax <= c.Plot.BytesMin {
		return fmt.Errorf("plot byte range must satisfy 0 < bytes_min < bytes_max, got %g..%g", c.Plot.BytesMin, c.Plot.BytesMax)
	}

	switch c.Storage.Backend {
	case "local", "s3", "minio", "azure", "azblob":
	default:
		return fmt.Errorf("unknown storage.backend %q (expected local, s3 or azure)", c.Storage.Backend)
	}

	return nil
}
