package config

import (
	"errors"

	"github.com/spf13/viper"

	"github.com/fluwatch/pipeline/internal/db"
)

// Config is the full runtime configuration: database settings plus the
// ingestion knobs the CLI exposes.
type Config struct {
	Database       db.Config
	BatchSize      int
	SkipGeocode    bool
	MigrationsPath string
	CountyTable    string
	SourceFiles    map[string]string
	LogLevel       string
	LogFile        string
}

// DefaultConfig returns the configuration used when no file or environment
// overrides are present.
func DefaultConfig() Config {
	return Config{
		Database:       db.DefaultConfig(),
		BatchSize:      0, // loader default
		MigrationsPath: "migrations",
		SourceFiles:    map[string]string{},
		LogLevel:       "info",
	}
}

// Load reads config.yaml from configPath, overlaying defaults and allowing
// environment overrides (DB_HOST, FLUWATCH_BATCH_SIZE and friends).
func Load(configPath string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv() // allow environment overrides
	v.SetEnvPrefix("FLUWATCH")

	// Database keys keep the bare DB_ prefix for compatibility with
	// standard deployment environments.
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")

	v.BindEnv("pipeline.batch_size", "FLUWATCH_BATCH_SIZE")
	v.BindEnv("pipeline.skip_geocode", "FLUWATCH_SKIP_GEOCODE")
	v.BindEnv("pipeline.migrations_path", "FLUWATCH_MIGRATIONS_PATH")
	v.BindEnv("pipeline.county_table", "FLUWATCH_COUNTY_TABLE")
	v.BindEnv("log.level", "FLUWATCH_LOG_LEVEL")
	v.BindEnv("log.file", "FLUWATCH_LOG_FILE")

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults and env carry the run.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, err
		}
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	if v.IsSet("pipeline.batch_size") {
		cfg.BatchSize = v.GetInt("pipeline.batch_size")
	}
	if v.IsSet("pipeline.skip_geocode") {
		cfg.SkipGeocode = v.GetBool("pipeline.skip_geocode")
	}
	if v.IsSet("pipeline.migrations_path") {
		cfg.MigrationsPath = v.GetString("pipeline.migrations_path")
	}
	if v.IsSet("pipeline.county_table") {
		cfg.CountyTable = v.GetString("pipeline.county_table")
	}
	if v.IsSet("pipeline.sources") {
		cfg.SourceFiles = v.GetStringMapString("pipeline.sources")
	}
	if v.IsSet("log.level") {
		cfg.LogLevel = v.GetString("log.level")
	}
	if v.IsSet("log.file") {
		cfg.LogFile = v.GetString("log.file")
	}

	return cfg, nil
}
