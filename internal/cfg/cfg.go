package cfg

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"exoplanet-classifier/internal/common"
	"exoplanet-classifier/internal/schema"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	SourceURL        string
	SourceTimeout    time.Duration
	DataPath         string
	BundleKey        string
	TestRatio        float64
	Seed             int64
	NEstimators      int
	MaxDepth         int
	MinSamplesLeaf   int
	RejectDegenerate bool
	ServerPort       int
	CacheSize        int
	DriftWindow      int
	MetricsTextfile  string
	Features         []string
	Target           string
}

type ConfigFile struct {
	Source struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"source"`

	Schema struct {
		Features []string `yaml:"features"`
		Target   string   `yaml:"target"`
	} `yaml:"schema"`

	Training struct {
		TestRatio        float64 `yaml:"testRatio"`
		Seed             int64   `yaml:"seed"`
		NEstimators      int     `yaml:"nEstimators"`
		MaxDepth         int     `yaml:"maxDepth"`
		MinSamplesLeaf   int     `yaml:"minSamplesLeaf"`
		RejectDegenerate bool    `yaml:"rejectDegenerate"`
	} `yaml:"training"`

	Storage struct {
		DataPath  string `yaml:"dataPath"`
		BundleKey string `yaml:"bundleKey"`
	} `yaml:"storage"`

	Server struct {
		Port        int `yaml:"port"`
		CacheSize   int `yaml:"cacheSize"`
		DriftWindow int `yaml:"driftWindow"`
	} `yaml:"server"`

	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
}

// defaultConfig is the baseline every source of configuration overrides.
// YAML decoding only touches keys present in the file, so zero values such
// as maxDepth: 0 or cacheSize: 0 stay expressible.
func defaultConfig() ConfigFile {
	var c ConfigFile
	c.Source.URL = common.DefaultSourceURL
	c.Source.Timeout = "60s"
	c.Schema.Features = common.DefaultFeatures()
	c.Schema.Target = common.TargetDisposition
	c.Training.TestRatio = common.DefaultTestRatio
	c.Training.Seed = common.DefaultSeed
	c.Training.NEstimators = common.DefaultNEstimators
	c.Training.MinSamplesLeaf = common.DefaultMinSamplesLeaf
	c.Storage.DataPath = common.DefaultDataPath
	c.Storage.BundleKey = common.DefaultBundleKey
	c.Server.Port = common.DefaultServerPort
	c.Server.CacheSize = common.DefaultCacheSize
	c.Server.DriftWindow = common.DefaultDriftWindow
	return c
}

// Load reads settings. A .env file in the working directory is applied to
// the environment first; if CONFIG_FILE is set the YAML file is read and
// environment variables override it, otherwise only the environment is used.
func Load() (Settings, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return Settings{}, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return fromConfig(config)
}

func loadFromEnv() (Settings, error) {
	return fromConfig(defaultConfig())
}

func fromConfig(config ConfigFile) (Settings, error) {
	timeout, err := time.ParseDuration(config.Source.Timeout)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid source timeout %q: %w", config.Source.Timeout, err)
	}

	settings := Settings{
		SourceURL:        getEnvOrDefault(common.EnvSourceURL, config.Source.URL),
		SourceTimeout:    getDurationOrDefault(common.EnvSourceTimeout, timeout),
		DataPath:         getEnvOrDefault(common.EnvDataPath, config.Storage.DataPath),
		BundleKey:        getEnvOrDefault(common.EnvBundleKey, config.Storage.BundleKey),
		TestRatio:        getFloatOrDefault(common.EnvTestRatio, config.Training.TestRatio),
		Seed:             getInt64OrDefault(common.EnvSeed, config.Training.Seed),
		NEstimators:      getIntOrDefault(common.EnvNEstimators, config.Training.NEstimators),
		MaxDepth:         getIntOrDefault(common.EnvMaxDepth, config.Training.MaxDepth),
		MinSamplesLeaf:   getIntOrDefault(common.EnvMinSamplesLeaf, config.Training.MinSamplesLeaf),
		RejectDegenerate: getBoolOrDefault(common.EnvRejectDegenerate, config.Training.RejectDegenerate),
		ServerPort:       getIntOrDefault(common.EnvServerPort, config.Server.Port),
		CacheSize:        getIntOrDefault(common.EnvCacheSize, config.Server.CacheSize),
		DriftWindow:      getIntOrDefault(common.EnvDriftWindow, config.Server.DriftWindow),
		MetricsTextfile:  getEnvOrDefault(common.EnvMetricsTextfile, config.Metrics.Textfile),
		Features:         config.Schema.Features,
		Target:           config.Schema.Target,
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

// Schema builds the feature contract shared by training and serving.
func (s *Settings) Schema() (schema.Schema, error) {
	return schema.New(s.Features, s.Target, common.CanonicalLabels())
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

// validateSettings bounds-checks every configuration value
func validateSettings(settings *Settings) error {
	if strings.TrimSpace(settings.SourceURL) == "" {
		return errors.New("source URL cannot be empty")
	}
	if settings.SourceTimeout < time.Second || settings.SourceTimeout > 10*time.Minute {
		return fmt.Errorf("source timeout must be between 1s and 10m, got %v", settings.SourceTimeout)
	}
	if strings.TrimSpace(settings.DataPath) == "" {
		return errors.New("data path cannot be empty")
	}
	if strings.TrimSpace(settings.BundleKey) == "" {
		return errors.New("bundle key cannot be empty")
	}

	if settings.TestRatio <= 0 || settings.TestRatio >= 1 {
		return fmt.Errorf("test ratio must be between 0 and 1 (exclusive), got %f", settings.TestRatio)
	}
	if settings.NEstimators < 1 || settings.NEstimators > common.MaxNEstimators {
		return fmt.Errorf("number of estimators must be between 1 and %d, got %d", common.MaxNEstimators, settings.NEstimators)
	}
	if settings.MaxDepth < 0 || settings.MaxDepth > common.MaxMaxDepth {
		return fmt.Errorf("max depth must be between 0 (unlimited) and %d, got %d", common.MaxMaxDepth, settings.MaxDepth)
	}
	if settings.MinSamplesLeaf < 1 {
		return fmt.Errorf("min samples per leaf must be at least 1, got %d", settings.MinSamplesLeaf)
	}

	if settings.ServerPort < common.MinServerPort || settings.ServerPort > common.MaxServerPort {
		return fmt.Errorf("server port must be between %d and %d, got %d", common.MinServerPort, common.MaxServerPort, settings.ServerPort)
	}
	if settings.CacheSize < 0 || settings.CacheSize > common.MaxCacheSize {
		return fmt.Errorf("cache size must be between 0 (disabled) and %d, got %d", common.MaxCacheSize, settings.CacheSize)
	}
	if settings.DriftWindow < 0 || settings.DriftWindow > common.MaxDriftWindow {
		return fmt.Errorf("drift window must be between 0 (disabled) and %d, got %d", common.MaxDriftWindow, settings.DriftWindow)
	}

	if len(settings.Features) == 0 {
		return errors.New("at least one feature must be specified")
	}
	seen := make(map[string]bool, len(settings.Features))
	for _, f := range settings.Features {
		if strings.TrimSpace(f) == "" {
			return errors.New("feature names cannot be empty")
		}
		if seen[f] {
			return fmt.Errorf("duplicate feature %q", f)
		}
		seen[f] = true
	}
	if strings.TrimSpace(settings.Target) == "" {
		return errors.New("target column cannot be empty")
	}
	if seen[settings.Target] {
		return fmt.Errorf("target %q is also listed as a feature", settings.Target)
	}

	return nil
}
