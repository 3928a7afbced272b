package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"cancer-detect/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	Port            int
	DataPath        string
	DatasetPath     string
	DatasetURL      string
	DatasetDownload bool
	DownloadTimeout time.Duration
	StaticDir       string
	CORSOrigins     []string
	TestSize        float64
	SplitSeed       int64
	RegC            float64
	MaxIter         int
	CacheSize       int
	CacheTTL        time.Duration
	RequestTimeout  time.Duration
	RetrainOnStart  bool
	Log             LogSettings
}

// LogSettings controls zerolog output. File is optional; when set, output is
// teed into a size-rotated file.
type LogSettings struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type ConfigFile struct {
	Server struct {
		Port           int      `yaml:"port"`
		StaticDir      string   `yaml:"staticDir"`
		CORSOrigins    []string `yaml:"corsOrigins"`
		RequestTimeout string   `yaml:"requestTimeout"`
	} `yaml:"server"`

	Dataset struct {
		Path            string `yaml:"path"`
		URL             string `yaml:"url"`
		Download        *bool  `yaml:"download"`
		DownloadTimeout string `yaml:"downloadTimeout"`
	} `yaml:"dataset"`

	Model struct {
		TestSize       float64 `yaml:"testSize"`
		SplitSeed      *int64  `yaml:"splitSeed"`
		C              float64 `yaml:"c"`
		MaxIter        int     `yaml:"maxIter"`
		RetrainOnStart bool    `yaml:"retrainOnStart"`
	} `yaml:"model"`

	Cache struct {
		Size *int   `yaml:"size"`
		TTL  string `yaml:"ttl"`
	} `yaml:"cache"`

	System struct {
		DataPath string `yaml:"dataPath"`
	} `yaml:"system"`

	Logging struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"maxSizeMB"`
		MaxBackups int    `yaml:"maxBackups"`
		MaxAgeDays int    `yaml:"maxAgeDays"`
	} `yaml:"logging"`
}

// Load reads a .env file if one exists, then builds settings from the YAML file
// named by CONFIG_FILE or, failing that, from the environment alone.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to load .env: %w", err)
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

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	requestTimeout, err := parseDurationOr(config.Server.RequestTimeout, 5*time.Second)
	if err != nil {
		return Settings{}, fmt.Errorf("server.requestTimeout: %w", err)
	}
	downloadTimeout, err := parseDurationOr(config.Dataset.DownloadTimeout, 30*time.Second)
	if err != nil {
		return Settings{}, fmt.Errorf("dataset.downloadTimeout: %w", err)
	}
	cacheTTL, err := parseDurationOr(config.Cache.TTL, 5*time.Minute)
	if err != nil {
		return Settings{}, fmt.Errorf("cache.ttl: %w", err)
	}

	download := true
	if config.Dataset.Download != nil {
		download = *config.Dataset.Download
	}
	seed := int64(common.DefaultSplitSeed)
	if config.Model.SplitSeed != nil {
		seed = *config.Model.SplitSeed
	}
	cacheSize := common.DefaultCacheSize
	if config.Cache.Size != nil {
		cacheSize = *config.Cache.Size
	}

	settings := Settings{
		Port:            getIntFromEnvOrConfig(common.EnvPort, config.Server.Port, common.DefaultPort),
		DataPath:        getEnvOrDefault(common.EnvDataPath, stringOr(config.System.DataPath, common.DefaultDataPath)),
		DatasetPath:     getEnvOrDefault(common.EnvDatasetPath, stringOr(config.Dataset.Path, common.DefaultDatasetPath)),
		DatasetURL:      getEnvOrDefault(common.EnvDatasetURL, stringOr(config.Dataset.URL, common.DefaultDatasetURL)),
		DatasetDownload: getBoolOrDefault(common.EnvDatasetDownload, download),
		DownloadTimeout: getDurationOrDefault(common.EnvDownloadTimeout, downloadTimeout),
		StaticDir:       getEnvOrDefault(common.EnvStaticDir, stringOr(config.Server.StaticDir, common.DefaultStaticDir)),
		CORSOrigins:     getOriginsFromEnvOrConfig(config.Server.CORSOrigins),
		TestSize:        getFloatFromEnvOrConfig(common.EnvTestSize, config.Model.TestSize, common.DefaultTestSize),
		SplitSeed:       getInt64OrDefault(common.EnvSplitSeed, seed),
		RegC:            getFloatFromEnvOrConfig(common.EnvRegC, config.Model.C, common.DefaultRegC),
		MaxIter:         getIntFromEnvOrConfig(common.EnvMaxIter, config.Model.MaxIter, common.DefaultMaxIter),
		CacheSize:       getIntOrDefault(common.EnvCacheSize, cacheSize),
		CacheTTL:        getDurationOrDefault(common.EnvCacheTTL, cacheTTL),
		RequestTimeout:  getDurationOrDefault(common.EnvRequestTimeout, requestTimeout),
		RetrainOnStart:  getBoolOrDefault(common.EnvRetrainOnStart, config.Model.RetrainOnStart),
		Log: LogSettings{
			Level:      getEnvOrDefault(common.EnvLogLevel, stringOr(config.Logging.Level, common.DefaultLogLevel)),
			Format:     getEnvOrDefault(common.EnvLogFormat, stringOr(config.Logging.Format, common.DefaultLogFormat)),
			File:       getEnvOrDefault(common.EnvLogFile, config.Logging.File),
			MaxSizeMB:  intOr(config.Logging.MaxSizeMB, common.DefaultLogMaxSizeMB),
			MaxBackups: intOr(config.Logging.MaxBackups, common.DefaultLogMaxBackups),
			MaxAgeDays: intOr(config.Logging.MaxAgeDays, common.DefaultLogMaxAgeDays),
		},
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		Port:            getIntOrDefault(common.EnvPort, common.DefaultPort),
		DataPath:        getEnvOrDefault(common.EnvDataPath, common.DefaultDataPath),
		DatasetPath:     getEnvOrDefault(common.EnvDatasetPath, common.DefaultDatasetPath),
		DatasetURL:      getEnvOrDefault(common.EnvDatasetURL, common.DefaultDatasetURL),
		DatasetDownload: getBoolOrDefault(common.EnvDatasetDownload, true),
		DownloadTimeout: getDurationOrDefault(common.EnvDownloadTimeout, 30*time.Second),
		StaticDir:       getEnvOrDefault(common.EnvStaticDir, common.DefaultStaticDir),
		CORSOrigins:     splitOrDefault(os.Getenv(common.EnvCORSOrigins), []string{"*"}),
		TestSize:        getFloatOrDefault(common.EnvTestSize, common.DefaultTestSize),
		SplitSeed:       getInt64OrDefault(common.EnvSplitSeed, common.DefaultSplitSeed),
		RegC:            getFloatOrDefault(common.EnvRegC, common.DefaultRegC),
		MaxIter:         getIntOrDefault(common.EnvMaxIter, common.DefaultMaxIter),
		CacheSize:       getIntOrDefault(common.EnvCacheSize, common.DefaultCacheSize),
		CacheTTL:        getDurationOrDefault(common.EnvCacheTTL, 5*time.Minute),
		RequestTimeout:  getDurationOrDefault(common.EnvRequestTimeout, 5*time.Second),
		RetrainOnStart:  getBoolOrDefault(common.EnvRetrainOnStart, false),
		Log: LogSettings{
			Level:      getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
			Format:     getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
			File:       os.Getenv(common.EnvLogFile), // optional
			MaxSizeMB:  common.DefaultLogMaxSizeMB,
			MaxBackups: common.DefaultLogMaxBackups,
			MaxAgeDays: common.DefaultLogMaxAgeDays,
		},
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// Addr returns the listen address for the HTTP server.
func (s *Settings) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
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

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func getOriginsFromEnvOrConfig(configOrigins []string) []string {
	if env := os.Getenv(common.EnvCORSOrigins); env != "" {
		return splitOrDefault(env, []string{"*"})
	}
	if len(configOrigins) > 0 {
		return configOrigins
	}
	return []string{"*"}
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	return getIntOrDefault(key, intOr(configValue, defaultValue))
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if configValue == 0 {
		configValue = defaultValue
	}
	return getFloatOrDefault(key, configValue)
}

func parseDurationOr(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	return time.ParseDuration(v)
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

// Validate re-checks settings after callers override loaded values.
func (s *Settings) Validate() error {
	return validateSettings(s)
}

// validateSettings checks every value against its allowed range
func validateSettings(settings *Settings) error {
	if settings.Port < 1 || settings.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", settings.Port)
	}
	if settings.DataPath == "" {
		return fmt.Errorf("data path cannot be empty")
	}
	if settings.DatasetPath == "" {
		return fmt.Errorf("dataset path cannot be empty")
	}
	if settings.DatasetDownload && settings.DatasetURL == "" {
		return fmt.Errorf("dataset URL cannot be empty when download is enabled")
	}
	if len(settings.CORSOrigins) == 0 {
		return fmt.Errorf("at least one CORS origin must be specified")
	}

	if settings.DownloadTimeout < time.Second || settings.DownloadTimeout > 10*time.Minute {
		return fmt.Errorf("download timeout must be between 1s and 10m, got %v", settings.DownloadTimeout)
	}
	if settings.RequestTimeout < 100*time.Millisecond || settings.RequestTimeout > time.Minute {
		return fmt.Errorf("request timeout must be between 100ms and 1m, got %v", settings.RequestTimeout)
	}
	if settings.CacheSize < 0 || settings.CacheSize > 1_000_000 {
		return fmt.Errorf("cache size must be between 0 and 1000000, got %d", settings.CacheSize)
	}
	if settings.CacheSize > 0 && settings.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive when the cache is enabled, got %v", settings.CacheTTL)
	}

	if settings.TestSize <= 0 || settings.TestSize >= 1 {
		return fmt.Errorf("test size must be between 0 and 1 (exclusive), got %f", settings.TestSize)
	}
	if settings.RegC <= 0 {
		return fmt.Errorf("regularization C must be positive, got %f", settings.RegC)
	}
	if settings.MaxIter <= 0 || settings.MaxIter > 100000 {
		return fmt.Errorf("max iterations must be between 1 and 100000, got %d", settings.MaxIter)
	}

	switch settings.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log format must be console or json, got %q", settings.Log.Format)
	}

	return nil
}
