package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"photo-ingest/internal/changefeed"
	"photo-ingest/internal/filesystem"
	"photo-ingest/internal/handlecache"
	"photo-ingest/internal/ingest"
	"photo-ingest/internal/logging"
	"photo-ingest/internal/memory"
	"photo-ingest/internal/storage"
	"photo-ingest/internal/ttlcache"
	"photo-ingest/internal/upload"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all application configuration
type Config struct {
	ConfigFile      string
	DatabaseDir     string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	Storage storage.Config
	Ingest  ingest.Config
	Upload  upload.Config

	HandleCache handlecache.Config
	// HandleCacheSource is handlecache.SourceStore or SourcePublic.
	HandleCacheSource string
	TTLCache          ttlcache.Config

	// Redis.Addr is empty when the change feed is disabled.
	Redis changefeed.RedisConfig

	// Derived paths
	DatabasePath string
}

// FeedEnabled reports whether a Redis change feed is configured.
func (c *Config) FeedEnabled() bool { return c.Redis.Addr != "" }

// LoadConfig loads configuration from the environment and the optional
// CONFIG_FILE, logging every value. It prints the banner first.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logConfig(config)

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := ensureDirectory(config.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(config.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable: %s", config.DatabaseDir)

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:     ENABLED (required)")
	logging.Info("    Storage:      %s", config.Storage.Backend)
	logging.Info("    Change feed:  %s", enabledString(config.FeedEnabled()))
	logging.Info("    Metrics:      %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// LoadConfigQuiet resolves configuration and prepares the database
// directory without the banner or the per-key log. Used by CLI commands.
func LoadConfigQuiet() (*Config, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := ensureDirectory(config.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	return config, nil
}

// loadConfig resolves every key without logging or touching directories.
func loadConfig() (*Config, error) {
	s := settings{}
	configFile := os.Getenv("CONFIG_FILE")
	if configFile != "" {
		fc, err := LoadFileConfig(configFile)
		if err != nil {
			return nil, err
		}
		s.file = fc.values()
	}

	databaseDir, err := filepath.Abs(s.getEnv("DATABASE_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}

	config := &Config{
		ConfigFile:      configFile,
		DatabaseDir:     databaseDir,
		DatabasePath:    filepath.Join(databaseDir, "photos.db"),
		Port:            s.getEnv("PORT", "8080"),
		MetricsPort:     s.getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:  s.getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks: s.getEnvBool("LOG_HEALTH_CHECKS", true),
		Storage: storage.Config{
			Backend:   s.getEnv("STORAGE_BACKEND", storage.BackendMinio),
			Endpoint:  s.getEnv("STORAGE_ENDPOINT", ""),
			Bucket:    s.getEnv("STORAGE_BUCKET", "photos"),
			AccessKey: s.getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey: s.getEnv("STORAGE_SECRET_KEY", ""),
			UseSSL:    s.getEnvBool("STORAGE_USE_SSL", false),
			Region:    s.getEnv("STORAGE_REGION", ""),
			PublicURL: s.getEnv("STORAGE_PUBLIC_URL", ""),
		},
		Ingest: ingest.Config{
			MaxInputBytes: s.getEnvBytes("MAX_UPLOAD_BYTES", ingest.DefaultMaxInputBytes),
			MaxBatchFiles: s.getEnvInt("MAX_BATCH_FILES", ingest.DefaultMaxBatchFiles),
			MaxBatchBytes: s.getEnvBytes("MAX_BATCH_BYTES", ingest.DefaultMaxBatchBytes),
		},
		Upload: upload.Config{
			Concurrency:    s.getEnvInt("UPLOAD_CONCURRENCY", upload.DefaultConcurrency),
			MaxRetries:     s.getEnvInt("UPLOAD_MAX_RETRIES", upload.DefaultMaxRetries),
			RetryDelay:     s.getEnvDuration("UPLOAD_RETRY_DELAY", upload.DefaultRetryDelay),
			AttemptTimeout: s.getEnvDuration("UPLOAD_ATTEMPT_TIMEOUT", upload.DefaultAttemptTimeout),
			WaveCooldown:   s.getEnvDuration("UPLOAD_WAVE_COOLDOWN", upload.DefaultWaveCooldown),
		},
		HandleCache: handlecache.Config{
			Budget:       s.getEnvBytes("HANDLE_CACHE_BUDGET", handlecache.DefaultBudget),
			HighWater:    s.getEnvFloat("HANDLE_CACHE_HIGH_WATER", handlecache.DefaultHighWater),
			FetchTimeout: s.getEnvDuration("HANDLE_CACHE_FETCH_TIMEOUT", handlecache.DefaultFetchTimeout),
		},
		HandleCacheSource: s.getEnv("HANDLE_CACHE_SOURCE", handlecache.SourceStore),
		TTLCache: ttlcache.Config{
			MaxSize:    s.getEnvInt("TTL_CACHE_MAX_SIZE", ttlcache.DefaultMaxSize),
			DefaultTTL: s.getEnvDuration("TTL_CACHE_DEFAULT_TTL", ttlcache.DefaultTTL),
		},
		Redis: changefeed.RedisConfig{
			Addr:     s.getEnv("REDIS_ADDR", ""),
			Password: s.getEnv("REDIS_PASSWORD", ""),
			Channel:  s.getEnv("REDIS_CHANNEL", changefeed.DefaultChannel),
		},
	}

	if hw := config.HandleCache.HighWater; hw <= 0 || hw > 1 {
		logging.Warn("HANDLE_CACHE_HIGH_WATER %v out of range (0.0-1.0), using default %v", hw, handlecache.DefaultHighWater)
		config.HandleCache.HighWater = handlecache.DefaultHighWater
	}
	switch config.HandleCacheSource {
	case handlecache.SourceStore, handlecache.SourcePublic:
	default:
		return nil, fmt.Errorf("HANDLE_CACHE_SOURCE must be %q or %q, got %q",
			handlecache.SourceStore, handlecache.SourcePublic, config.HandleCacheSource)
	}
	if config.Upload.MaxRetries < 0 {
		return nil, fmt.Errorf("UPLOAD_MAX_RETRIES must not be negative, got %d", config.Upload.MaxRetries)
	}
	if config.Upload.Concurrency < 1 {
		return nil, fmt.Errorf("UPLOAD_CONCURRENCY must be at least 1, got %d", config.Upload.Concurrency)
	}

	return config, nil
}

func logConfig(c *Config) {
	if c.ConfigFile != "" {
		logging.Info("  CONFIG_FILE:             %s", c.ConfigFile)
	}
	logging.Info("  DATABASE_DIR:            %s", c.DatabaseDir)
	logging.Info("  PORT:                    %s", c.Port)
	logging.Info("  METRICS_PORT:            %s", c.MetricsPort)
	logging.Info("  METRICS_ENABLED:         %v", c.MetricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:       %v", c.LogHealthChecks)
	logging.Info("  LOG_LEVEL:               %s", logging.GetLevel())
	logging.Info("  STORAGE_BACKEND:         %s", c.Storage.Backend)
	logging.Info("  STORAGE_ENDPOINT:        %s", c.Storage.Endpoint)
	logging.Info("  STORAGE_BUCKET:          %s", c.Storage.Bucket)
	logging.Info("  STORAGE_ACCESS_KEY:      %s", redact(c.Storage.AccessKey))
	logging.Info("  STORAGE_SECRET_KEY:      %s", redact(c.Storage.SecretKey))
	logging.Info("  STORAGE_USE_SSL:         %v", c.Storage.UseSSL)
	logging.Info("  STORAGE_REGION:          %s", c.Storage.Region)
	logging.Info("  STORAGE_PUBLIC_URL:      %s", c.Storage.PublicURL)
	logging.Info("  MAX_UPLOAD_BYTES:        %s", memory.FormatBytes(c.Ingest.MaxInputBytes))
	logging.Info("  MAX_BATCH_FILES:         %d", c.Ingest.MaxBatchFiles)
	logging.Info("  MAX_BATCH_BYTES:         %s", memory.FormatBytes(c.Ingest.MaxBatchBytes))
	logging.Info("  UPLOAD_CONCURRENCY:      %d", c.Upload.Concurrency)
	logging.Info("  UPLOAD_MAX_RETRIES:      %d", c.Upload.MaxRetries)
	logging.Info("  UPLOAD_RETRY_DELAY:      %v", c.Upload.RetryDelay)
	logging.Info("  UPLOAD_ATTEMPT_TIMEOUT:  %v", c.Upload.AttemptTimeout)
	logging.Info("  UPLOAD_WAVE_COOLDOWN:    %v", c.Upload.WaveCooldown)
	logging.Info("  HANDLE_CACHE_BUDGET:     %s", memory.FormatBytes(c.HandleCache.Budget))
	logging.Info("  HANDLE_CACHE_HIGH_WATER: %.2f", c.HandleCache.HighWater)
	logging.Info("  HANDLE_CACHE_SOURCE:     %s", c.HandleCacheSource)
	logging.Info("  HANDLE_CACHE_FETCH_TIMEOUT: %v", c.HandleCache.FetchTimeout)
	logging.Info("  TTL_CACHE_MAX_SIZE:      %d", c.TTLCache.MaxSize)
	logging.Info("  TTL_CACHE_DEFAULT_TTL:   %v", c.TTLCache.DefaultTTL)
	logging.Info("  REDIS_ADDR:              %s", c.Redis.Addr)
	logging.Info("  REDIS_CHANNEL:           %s", c.Redis.Channel)
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogMemoryConfig logs the outcome of memory.ConfigureFromEnv.
func LogMemoryConfig(result memory.ConfigResult) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	switch result.Source {
	case memory.SourceGOMEMLIMIT:
		logging.Info("  GOMEMLIMIT:      %s (from environment)", memory.FormatBytes(result.GoMemLimit))
	case memory.SourceMemoryLimit:
		logging.Info("  Container limit: %s", memory.FormatBytes(result.ContainerLimit))
		logging.Info("  GOMEMLIMIT:      %s (%.0f%%)", memory.FormatBytes(result.GoMemLimit), result.Ratio*100)
	default:
		logging.Info("  GOMEMLIMIT not configured (set MEMORY_LIMIT to enable)")
	}
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogStorageInit logs the object store connection.
func LogStorageInit(cfg storage.Config, publicURL string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("OBJECT STORAGE")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] %s bucket %q", cfg.Backend, cfg.Bucket)
	logging.Info("  Public URL: %s", publicURL)
}

// LogFeedInit logs whether the change feed is connected.
func LogFeedInit(channel string, err error) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CHANGE FEED")
	logging.Info("------------------------------------------------------------")
	switch {
	case channel == "":
		logging.Info("  Change feed disabled (set REDIS_ADDR to enable)")
	case err != nil:
		logging.Warn("  Change feed unavailable: %v", err)
		logging.Warn("  Caches will only be invalidated locally")
	default:
		logging.Info("  [OK] Subscribed to %s", channel)
	}
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
    ____  __          __           _                        __
   / __ \/ /_  ____  / /_____     (_)___  ____ ____  _____/ /_
  / /_/ / __ \/ __ \/ __/ __ \   / / __ \/ __ '/ _ \/ ___/ __/
 / ____/ / / / /_/ / /_/ /_/ /  / / / / / /_/ /  __(__  ) /_
/_/   /_/ /_/\____/\__/\____/  /_/_/ /_/\__, /\___/____/\__/
                                       /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := filesystem.StatWithRetry(path, volumeRetryConfig(name, path))
	if errors.Is(err, fs.ErrNotExist) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

// volumeRetryConfig labels filesystem retries under path as volume name.
func volumeRetryConfig(name, path string) filesystem.RetryConfig {
	retry := filesystem.DefaultRetryConfig()
	retry.VolumeResolver = filesystem.NewVolumeResolver(map[string]string{name: path})
	return retry
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}
