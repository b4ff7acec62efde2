// Package cfg loads pipeline settings from a YAML file or the environment.
package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"vibration-diag/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	DataPath       string
	Offset         int
	Column         int
	Separator      rune
	TargetWidth    int
	Criterion      string
	SplitRatio     float64
	Standardize    bool
	SkipDegenerate bool
	Epochs         int
	LearningRate   float64
	LogEvery       int
	Workers        int
	Seed           int64
	CachePath      string
	MetricsPort    int
	OutputPath     string
	HTTPTimeout    time.Duration
}

type ConfigFile struct {
	Data struct {
		Path           string `yaml:"path"`
		Offset         *int   `yaml:"offset"`
		Column         *int   `yaml:"column"`
		Separator      string `yaml:"separator"`
		SkipDegenerate bool   `yaml:"skipDegenerate"`
		HTTPTimeout    string `yaml:"httpTimeout"`
		Workers        int    `yaml:"workers"`
		CachePath      string `yaml:"cachePath"`
	} `yaml:"data"`

	Selection struct {
		TargetWidth *int   `yaml:"targetWidth"`
		Criterion   string `yaml:"criterion"`
	} `yaml:"selection"`

	Training struct {
		SplitRatio   float64 `yaml:"splitRatio"`
		Standardize  bool    `yaml:"standardize"`
		Epochs       int     `yaml:"epochs"`
		LearningRate float64 `yaml:"learningRate"`
		LogEvery     *int    `yaml:"logEvery"`
		Seed         int64   `yaml:"seed"`
	} `yaml:"training"`

	System struct {
		MetricsPort int    `yaml:"metricsPort"`
		OutputPath  string `yaml:"outputPath"`
	} `yaml:"system"`
}

// Load reads the optional .env file, then settings from the YAML file named
// by CONFIG_FILE or, when unset, from environment variables. Environment
// variables override file values.
func Load() (Settings, error) {
	if err := loadDotEnv(getEnvOrDefault(common.EnvEnvFile, common.DefaultEnvFile)); err != nil {
		return Settings{}, err
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

// loadDotEnv populates unset variables from path. A missing file is ignored.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	timeout, _ := time.ParseDuration(common.DefaultHTTPTimeout)
	sep, _ := utf8.DecodeRuneInString(common.DefaultSeparator)
	return Settings{
		DataPath:     common.DefaultDataPath,
		Offset:       common.DefaultOffset,
		Column:       common.DefaultColumn,
		Separator:    sep,
		TargetWidth:  common.DefaultTargetWidth,
		Criterion:    common.DefaultCriterion,
		SplitRatio:   common.DefaultSplitRatio,
		Epochs:       common.DefaultEpochs,
		LearningRate: common.DefaultLearningRate,
		LogEvery:     common.DefaultLogEvery,
		Workers:      common.DefaultWorkers,
		OutputPath:   common.DefaultOutputPath,
		HTTPTimeout:  timeout,
	}
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	d := Defaults()
	if config.Data.HTTPTimeout != "" {
		timeout, err := time.ParseDuration(config.Data.HTTPTimeout)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid httpTimeout %q: %w", config.Data.HTTPTimeout, err)
		}
		d.HTTPTimeout = timeout
	}
	separator := d.Separator
	if config.Data.Separator != "" {
		separator, err = parseSeparator(config.Data.Separator)
		if err != nil {
			return Settings{}, err
		}
	}

	settings := Settings{
		DataPath:       getEnvOrDefault(common.EnvDataPath, stringOr(config.Data.Path, d.DataPath)),
		Offset:         getIntOrDefault(common.EnvOffset, intPtrOr(config.Data.Offset, d.Offset)),
		Column:         getIntOrDefault(common.EnvColumn, intPtrOr(config.Data.Column, d.Column)),
		Separator:      getSeparatorOrDefault(common.EnvSeparator, separator),
		TargetWidth:    getIntOrDefault(common.EnvTargetWidth, intPtrOr(config.Selection.TargetWidth, d.TargetWidth)),
		Criterion:      getEnvOrDefault(common.EnvCriterion, stringOr(config.Selection.Criterion, d.Criterion)),
		SplitRatio:     getFloatOrDefault(common.EnvSplitRatio, floatOr(config.Training.SplitRatio, d.SplitRatio)),
		Standardize:    getBoolOrDefault(common.EnvStandardize, config.Training.Standardize),
		SkipDegenerate: getBoolOrDefault(common.EnvSkipDegen, config.Data.SkipDegenerate),
		Epochs:         getIntOrDefault(common.EnvEpochs, intOr(config.Training.Epochs, d.Epochs)),
		LearningRate:   getFloatOrDefault(common.EnvLearningRate, floatOr(config.Training.LearningRate, d.LearningRate)),
		LogEvery:       getIntOrDefault(common.EnvLogEvery, intPtrOr(config.Training.LogEvery, d.LogEvery)),
		Workers:        getIntOrDefault(common.EnvWorkers, intOr(config.Data.Workers, d.Workers)),
		Seed:           getInt64OrDefault(common.EnvSeed, config.Training.Seed),
		CachePath:      getEnvOrDefault(common.EnvCachePath, config.Data.CachePath),
		MetricsPort:    getIntOrDefault(common.EnvMetricsPort, config.System.MetricsPort),
		OutputPath:     getEnvOrDefault(common.EnvOutputPath, stringOr(config.System.OutputPath, d.OutputPath)),
		HTTPTimeout:    getDurationOrDefault(common.EnvHTTPTimeout, d.HTTPTimeout),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	d := Defaults()
	settings := Settings{
		DataPath:       getEnvOrDefault(common.EnvDataPath, d.DataPath),
		Offset:         getIntOrDefault(common.EnvOffset, d.Offset),
		Column:         getIntOrDefault(common.EnvColumn, d.Column),
		Separator:      getSeparatorOrDefault(common.EnvSeparator, d.Separator),
		TargetWidth:    getIntOrDefault(common.EnvTargetWidth, d.TargetWidth),
		Criterion:      getEnvOrDefault(common.EnvCriterion, d.Criterion),
		SplitRatio:     getFloatOrDefault(common.EnvSplitRatio, d.SplitRatio),
		Standardize:    getBoolOrDefault(common.EnvStandardize, false),
		SkipDegenerate: getBoolOrDefault(common.EnvSkipDegen, false),
		Epochs:         getIntOrDefault(common.EnvEpochs, d.Epochs),
		LearningRate:   getFloatOrDefault(common.EnvLearningRate, d.LearningRate),
		LogEvery:       getIntOrDefault(common.EnvLogEvery, d.LogEvery),
		Workers:        getIntOrDefault(common.EnvWorkers, d.Workers),
		Seed:           getInt64OrDefault(common.EnvSeed, 0),
		CachePath:      os.Getenv(common.EnvCachePath), // optional
		MetricsPort:    getIntOrDefault(common.EnvMetricsPort, 0),
		OutputPath:     getEnvOrDefault(common.EnvOutputPath, d.OutputPath),
		HTTPTimeout:    getDurationOrDefault(common.EnvHTTPTimeout, d.HTTPTimeout),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getSeparatorOrDefault(key string, defaultValue rune) rune {
	if v := os.Getenv(key); v != "" {
		if r, err := parseSeparator(v); err == nil {
			return r
		}
	}
	return defaultValue
}

// parseSeparator accepts a single character or the names "tab" and "space".
func parseSeparator(v string) (rune, error) {
	switch v {
	case "tab", `\t`:
		return '\t', nil
	case "space":
		return ' ', nil
	}
	if utf8.RuneCountInString(v) != 1 {
		return 0, fmt.Errorf("separator must be a single character, got %q", v)
	}
	r, _ := utf8.DecodeRuneInString(v)
	return r, nil
}

func stringOr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func intOr(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func intPtrOr(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

func floatOr(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}

// validateSettings performs range validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.DataPath == "" {
		return fmt.Errorf("data path cannot be empty")
	}
	if settings.OutputPath == "" {
		return fmt.Errorf("output path cannot be empty")
	}

	if settings.Offset < 0 {
		return fmt.Errorf("signal offset must be non-negative, got %d", settings.Offset)
	}
	if settings.Column < 0 {
		return fmt.Errorf("signal column must be non-negative, got %d", settings.Column)
	}
	switch settings.Separator {
	case 0, '\r', '\n', '"', utf8.RuneError:
		return fmt.Errorf("invalid signal separator %q", settings.Separator)
	}

	if settings.TargetWidth < 0 || settings.TargetWidth > common.MaxTargetWidth {
		return fmt.Errorf("target width must be between 0 and %d, got %d", common.MaxTargetWidth, settings.TargetWidth)
	}
	if settings.Criterion != common.CriterionVariance && settings.Criterion != common.CriterionFisher {
		return fmt.Errorf("criterion must be %q or %q, got %q", common.CriterionVariance, common.CriterionFisher, settings.Criterion)
	}

	if settings.SplitRatio <= 0 || settings.SplitRatio >= 1 {
		return fmt.Errorf("split ratio must be between 0 and 1 (exclusive), got %f", settings.SplitRatio)
	}
	if settings.Epochs <= 0 || settings.Epochs > common.MaxEpochs {
		return fmt.Errorf("epochs must be between 1 and %d, got %d", common.MaxEpochs, settings.Epochs)
	}
	if settings.LearningRate <= 0 || settings.LearningRate > common.MaxLearningRate {
		return fmt.Errorf("learning rate must be between 0 and %g, got %f", common.MaxLearningRate, settings.LearningRate)
	}
	if settings.LogEvery < 0 {
		return fmt.Errorf("log interval must be non-negative, got %d", settings.LogEvery)
	}
	if settings.Workers < 1 || settings.Workers > common.MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d, got %d", common.MaxWorkers, settings.Workers)
	}

	if settings.MetricsPort != 0 && (settings.MetricsPort < common.MinMetricsPort || settings.MetricsPort > common.MaxMetricsPort) {
		return fmt.Errorf("metrics port must be 0 (disabled) or between %d and %d, got %d", common.MinMetricsPort, common.MaxMetricsPort, settings.MetricsPort)
	}
	if settings.HTTPTimeout < time.Second || settings.HTTPTimeout > 5*time.Minute {
		return fmt.Errorf("HTTP timeout must be between 1s and 5m, got %v", settings.HTTPTimeout)
	}

	return nil
}
