package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"photo-ingest/internal/filesystem"
	"photo-ingest/internal/logging"
	"photo-ingest/internal/memory"
)

// FileConfig is the optional YAML file named by CONFIG_FILE. Every value is
// a string so sizes and durations read the same as their environment
// variables ("6MiB", "1.5s"). Environment variables win over the file.
type FileConfig struct {
	Server struct {
		Port            string `yaml:"port"`
		MetricsPort     string `yaml:"metricsPort"`
		MetricsEnabled  string `yaml:"metricsEnabled"`
		LogHealthChecks string `yaml:"logHealthChecks"`
	} `yaml:"server"`
	Database struct {
		Dir string `yaml:"dir"`
	} `yaml:"database"`
	Storage struct {
		Backend   string `yaml:"backend"`
		Endpoint  string `yaml:"endpoint"`
		Bucket    string `yaml:"bucket"`
		AccessKey string `yaml:"accessKey"`
		SecretKey string `yaml:"secretKey"`
		UseSSL    string `yaml:"useSSL"`
		Region    string `yaml:"region"`
		PublicURL string `yaml:"publicURL"`
	} `yaml:"storage"`
	Upload struct {
		MaxUploadBytes string `yaml:"maxUploadBytes"`
		MaxBatchFiles  string `yaml:"maxBatchFiles"`
		MaxBatchBytes  string `yaml:"maxBatchBytes"`
		Concurrency    string `yaml:"concurrency"`
		MaxRetries     string `yaml:"maxRetries"`
		RetryDelay     string `yaml:"retryDelay"`
		AttemptTimeout string `yaml:"attemptTimeout"`
		WaveCooldown   string `yaml:"waveCooldown"`
	} `yaml:"upload"`
	Cache struct {
		HandleBudget    string `yaml:"handleBudget"`
		HandleHighWater string `yaml:"handleHighWater"`
		HandleSource    string `yaml:"handleSource"`
		HandleTimeout   string `yaml:"handleFetchTimeout"`
		TTLMaxSize      string `yaml:"ttlMaxSize"`
		TTLDefault      string `yaml:"ttlDefault"`
	} `yaml:"cache"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`
}

// LoadFileConfig decodes the YAML file at path.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := filesystem.ReadFileWithRetry(path, volumeRetryConfig("config", filepath.Dir(path)))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &fc, nil
}

// values maps environment variable names to the file's non-empty values.
func (fc *FileConfig) values() map[string]string {
	if fc == nil {
		return nil
	}
	all := map[string]string{
		"PORT":                       fc.Server.Port,
		"METRICS_PORT":               fc.Server.MetricsPort,
		"METRICS_ENABLED":            fc.Server.MetricsEnabled,
		"LOG_HEALTH_CHECKS":          fc.Server.LogHealthChecks,
		"DATABASE_DIR":               fc.Database.Dir,
		"STORAGE_BACKEND":            fc.Storage.Backend,
		"STORAGE_ENDPOINT":           fc.Storage.Endpoint,
		"STORAGE_BUCKET":             fc.Storage.Bucket,
		"STORAGE_ACCESS_KEY":         fc.Storage.AccessKey,
		"STORAGE_SECRET_KEY":         fc.Storage.SecretKey,
		"STORAGE_USE_SSL":            fc.Storage.UseSSL,
		"STORAGE_REGION":             fc.Storage.Region,
		"STORAGE_PUBLIC_URL":         fc.Storage.PublicURL,
		"MAX_UPLOAD_BYTES":           fc.Upload.MaxUploadBytes,
		"MAX_BATCH_FILES":            fc.Upload.MaxBatchFiles,
		"MAX_BATCH_BYTES":            fc.Upload.MaxBatchBytes,
		"UPLOAD_CONCURRENCY":         fc.Upload.Concurrency,
		"UPLOAD_MAX_RETRIES":         fc.Upload.MaxRetries,
		"UPLOAD_RETRY_DELAY":         fc.Upload.RetryDelay,
		"UPLOAD_ATTEMPT_TIMEOUT":     fc.Upload.AttemptTimeout,
		"UPLOAD_WAVE_COOLDOWN":       fc.Upload.WaveCooldown,
		"HANDLE_CACHE_BUDGET":        fc.Cache.HandleBudget,
		"HANDLE_CACHE_HIGH_WATER":    fc.Cache.HandleHighWater,
		"HANDLE_CACHE_SOURCE":        fc.Cache.HandleSource,
		"HANDLE_CACHE_FETCH_TIMEOUT": fc.Cache.HandleTimeout,
		"TTL_CACHE_MAX_SIZE":         fc.Cache.TTLMaxSize,
		"TTL_CACHE_DEFAULT_TTL":      fc.Cache.TTLDefault,
		"REDIS_ADDR":                 fc.Redis.Addr,
		"REDIS_PASSWORD":             fc.Redis.Password,
		"REDIS_CHANNEL":              fc.Redis.Channel,
	}
	out := make(map[string]string, len(all))
	for k, v := range all {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// settings resolves a key from the environment, then the config file.
type settings struct {
	file map[string]string
}

func (s settings) lookup(key string) (string, bool) {
	if value := os.Getenv(key); value != "" {
		return value, true
	}
	value, ok := s.file[key]
	return value, ok
}

func (s settings) getEnv(key, defaultValue string) string {
	if value, ok := s.lookup(key); ok {
		return value
	}
	return defaultValue
}

func (s settings) getEnvBool(key string, defaultValue bool) bool {
	value, ok := s.lookup(key)
	if !ok {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func (s settings) getEnvInt(key string, defaultValue int) int {
	value, ok := s.lookup(key)
	if !ok {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func (s settings) getEnvFloat(key string, defaultValue float64) float64 {
	value, ok := s.lookup(key)
	if !ok {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logging.Warn("Invalid number for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func (s settings) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, ok := s.lookup(key)
	if !ok {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func (s settings) getEnvBytes(key string, defaultValue int64) int64 {
	value, ok := s.lookup(key)
	if !ok {
		return defaultValue
	}
	parsed, err := memory.ParseBytes(value)
	if err != nil {
		logging.Warn("Invalid size for %s: %q, using default: %s", key, value, memory.FormatBytes(defaultValue))
		return defaultValue
	}
	return parsed
}
