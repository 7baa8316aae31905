package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultFileName    = "nearbyweather.db"
	defaultBusyTimeout = 5 * time.Second
	defaultLogLevel    = "info"
	defaultLogSizeMB   = 10
	defaultLogFiles    = 5
	defaultSweep       = 6 * time.Hour
	defaultRetention   = 7 * 24 * time.Hour
)

var ErrInvalidConfig = errors.New("invalid config")

var configValidator = validator.New()

type Config struct {
	Storage     StorageConfig     `toml:"storage"`
	Logging     LoggingConfig     `toml:"logging"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
}

type StorageConfig struct {
	DataDir     string        `toml:"data_dir" validate:"required"`
	FileName    string        `toml:"file_name" validate:"required,excludes=/"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

type LoggingConfig struct {
	Level     string `toml:"level" validate:"required,oneof=debug info warn error"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb" validate:"min=1,max=1024"`
	MaxFiles  int    `toml:"max_files" validate:"min=1,max=100"`
}

type MaintenanceConfig struct {
	SweepInterval time.Duration `toml:"sweep_interval"`
	Retention     time.Duration `toml:"retention"`
}

type LoadOptions struct {
	ConfigPath string
	Env        map[string]string
	Flags      FlagOverrides
}

type FlagOverrides struct {
	DataDir  *string
	LogLevel *string
}

func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			DataDir:     "",
			FileName:    defaultFileName,
			BusyTimeout: defaultBusyTimeout,
		},
		Logging: LoggingConfig{
			Level:     defaultLogLevel,
			File:      "",
			MaxSizeMB: defaultLogSizeMB,
			MaxFiles:  defaultLogFiles,
		},
		Maintenance: MaintenanceConfig{
			SweepInterval: defaultSweep,
			Retention:     defaultRetention,
		},
	}
}

// Load resolves the effective configuration: defaults, then the TOML file,
// then NEARBYWEATHER_* environment variables, then flag overrides. A
// missing config file is not an error.
func Load(opts LoadOptions) (Config, error) {
	cfg := DefaultConfig()

	configPath, err := resolveConfigPath(opts)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}
	if err := loadAndApplyFile(configPath, &cfg); err != nil {
		return Config{}, err
	}

	if err := applyEnvOverrides(&cfg, opts); err != nil {
		return Config{}, err
	}
	applyFlagOverrides(&cfg, opts.Flags)

	if cfg.Storage.DataDir == "" {
		dataDir, err := defaultDataDir(opts)
		if err != nil {
			return Config{}, err
		}
		cfg.Storage.DataDir = dataDir
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type rawConfig struct {
	Storage     *rawStorage     `toml:"storage"`
	Logging     *rawLogging     `toml:"logging"`
	Maintenance *rawMaintenance `toml:"maintenance"`
}

type rawStorage struct {
	DataDir     *string `toml:"data_dir"`
	FileName    *string `toml:"file_name"`
	BusyTimeout *string `toml:"busy_timeout"`
}

type rawLogging struct {
	Level     *string `toml:"level"`
	File      *string `toml:"file"`
	MaxSizeMB *int    `toml:"max_size_mb"`
	MaxFiles  *int    `toml:"max_files"`
}

type rawMaintenance struct {
	SweepInterval *string `toml:"sweep_interval"`
	Retention     *string `toml:"retention"`
}

func loadAndApplyFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %q: %w", path, err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: parse TOML file %q: %v", ErrInvalidConfig, path, err)
	}
	return applyRawConfig(cfg, raw)
}

func applyRawConfig(cfg *Config, raw rawConfig) error {
	if raw.Storage != nil {
		setString(raw.Storage.DataDir, &cfg.Storage.DataDir)
		setString(raw.Storage.FileName, &cfg.Storage.FileName)
		if err := setDuration("storage.busy_timeout", raw.Storage.BusyTimeout, &cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}

	if raw.Logging != nil {
		setString(raw.Logging.Level, &cfg.Logging.Level)
		setString(raw.Logging.File, &cfg.Logging.File)
		setInt(raw.Logging.MaxSizeMB, &cfg.Logging.MaxSizeMB)
		setInt(raw.Logging.MaxFiles, &cfg.Logging.MaxFiles)
	}

	if raw.Maintenance != nil {
		if err := setDuration("maintenance.sweep_interval", raw.Maintenance.SweepInterval, &cfg.Maintenance.SweepInterval); err != nil {
			return err
		}
		if err := setDuration("maintenance.retention", raw.Maintenance.Retention, &cfg.Maintenance.Retention); err != nil {
			return err
		}
	}

	return nil
}

func applyEnvOverrides(cfg *Config, opts LoadOptions) error {
	if value, ok := lookupEnv(opts, "NEARBYWEATHER_DATA_DIR"); ok {
		cfg.Storage.DataDir = value
	}
	if value, ok := lookupEnv(opts, "NEARBYWEATHER_DB_FILE"); ok {
		cfg.Storage.FileName = value
	}
	if value, ok := lookupEnv(opts, "NEARBYWEATHER_DB_BUSY_TIMEOUT"); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: parse NEARBYWEATHER_DB_BUSY_TIMEOUT: %v", ErrInvalidConfig, err)
		}
		cfg.Storage.BusyTimeout = d
	}

	if value, ok := lookupEnv(opts, "NEARBYWEATHER_LOG_LEVEL"); ok {
		cfg.Logging.Level = value
	}
	if value, ok := lookupEnv(opts, "NEARBYWEATHER_LOG_FILE"); ok {
		cfg.Logging.File = value
	}
	if value, ok := lookupEnv(opts, "NEARBYWEATHER_LOG_MAX_SIZE_MB"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse NEARBYWEATHER_LOG_MAX_SIZE_MB: %v", ErrInvalidConfig, err)
		}
		cfg.Logging.MaxSizeMB = parsed
	}
	if value, ok := lookupEnv(opts, "NEARBYWEATHER_LOG_MAX_FILES"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse NEARBYWEATHER_LOG_MAX_FILES: %v", ErrInvalidConfig, err)
		}
		cfg.Logging.MaxFiles = parsed
	}

	if value, ok := lookupEnv(opts, "NEARBYWEATHER_SWEEP_INTERVAL"); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: parse NEARBYWEATHER_SWEEP_INTERVAL: %v", ErrInvalidConfig, err)
		}
		cfg.Maintenance.SweepInterval = d
	}
	if value, ok := lookupEnv(opts, "NEARBYWEATHER_RETENTION"); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: parse NEARBYWEATHER_RETENTION: %v", ErrInvalidConfig, err)
		}
		cfg.Maintenance.Retention = d
	}

	return nil
}

func applyFlagOverrides(cfg *Config, flags FlagOverrides) {
	if flags.DataDir != nil && *flags.DataDir != "" {
		cfg.Storage.DataDir = *flags.DataDir
	}
	if flags.LogLevel != nil && *flags.LogLevel != "" {
		cfg.Logging.Level = *flags.LogLevel
	}
}

func validate(cfg Config) error {
	if err := configValidator.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Storage.BusyTimeout <= 0 || cfg.Storage.BusyTimeout > time.Minute {
		return fmt.Errorf("%w: storage.busy_timeout must be > 0 and <= 1m", ErrInvalidConfig)
	}
	if cfg.Maintenance.SweepInterval < time.Minute {
		return fmt.Errorf("%w: maintenance.sweep_interval must be >= 1m", ErrInvalidConfig)
	}
	if cfg.Maintenance.Retention < time.Hour {
		return fmt.Errorf("%w: maintenance.retention must be >= 1h", ErrInvalidConfig)
	}
	return nil
}

func setDuration(field string, raw *string, target *time.Duration) error {
	if raw == nil {
		return nil
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, field, err)
	}
	*target = d
	return nil
}

func setString(raw *string, target *string) {
	if raw != nil {
		*target = *raw
	}
}

func setInt(raw *int, target *int) {
	if raw != nil {
		*target = *raw
	}
}

func resolveConfigPath(opts LoadOptions) (string, error) {
	if opts.ConfigPath != "" {
		return opts.ConfigPath, nil
	}
	if value, ok := lookupEnv(opts, "NEARBYWEATHER_CONFIG_PATH"); ok {
		return value, nil
	}
	return defaultConfigPath()
}

func lookupEnv(opts LoadOptions, key string) (string, bool) {
	if opts.Env != nil {
		if value, ok := opts.Env[key]; ok {
			return value, true
		}
	}
	return os.LookupEnv(key)
}

func defaultDataDir(opts LoadOptions) (string, error) {
	if value, ok := lookupEnv(opts, "NEARBYWEATHER_HOME"); ok {
		return value, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "NearbyWeather"), nil
	}

	dataHome := filepath.Join(home, ".local", "share")
	if xdgDataHome, ok := lookupEnv(opts, "XDG_DATA_HOME"); ok && xdgDataHome != "" {
		dataHome = xdgDataHome
	}
	return filepath.Join(dataHome, "nearbyweather"), nil
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "NearbyWeather", "config.toml"), nil
	}

	configHome := filepath.Join(home, ".config")
	if xdgConfigHome, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdgConfigHome != "" {
		configHome = xdgConfigHome
	}
	return filepath.Join(configHome, "nearbyweather", "config.toml"), nil
}
