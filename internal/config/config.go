// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Log      LogConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Drive    DriveConfig
	Suggest  SuggestConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	// Driver is one of postgres, pgx or sqlite3.
	Driver   string
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

type AppConfig struct {
	UploadDir string
	DataDir   string
}

type LogConfig struct {
	Level  string
	Format string
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RunTTLSeconds int
}

// StorageConfig points at an S3 compatible bucket (MinIO, Sevalla, AWS).
type StorageConfig struct {
	// Backend is minio (default) or sevalla.
	Backend   string
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// InputPrefix holds the csv snapshot; ExportPrefix receives exports.
	InputPrefix  string
	ExportPrefix string
}

type DriveConfig struct {
	CredentialsPath string
	FolderID        string
	DownloadDir     string
}

// SuggestConfig carries the business parameters of a suggestion run.
type SuggestConfig struct {
	ForecastPeriodDays  int
	SafetyDays          int
	ForecastMethod      string
	ForecastWindow      int
	LookbackDays        int
	TotalUnitsThreshold float64
	SafetyRecencyDays   int
	SupplierRecencyDays int
	Workers             int
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults(viper.GetViper())

		// Read from environment variables
		viper.AutomaticEnv()

		// Ensure upload and data directories exist
		ensureDir(viper.GetString("APP_UPLOAD_DIR"))
		ensureDir(viper.GetString("APP_DATA_DIR"))

		instance = fromViper(viper.GetViper())
	})

	return instance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "autopo")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("APP_UPLOAD_DIR", "./data/uploads")
	v.SetDefault("APP_DATA_DIR", "./data/output")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_RUN_TTL_SECONDS", 300)
	v.SetDefault("S3_BACKEND", "minio")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_USE_SSL", true)
	v.SetDefault("S3_INPUT_PREFIX", "inputs/")
	v.SetDefault("S3_EXPORT_PREFIX", "exports/")
	v.SetDefault("GOOGLE_CREDENTIALS_PATH", "")
	v.SetDefault("GOOGLE_DRIVE_FOLDER_ID", "")
	v.SetDefault("DRIVE_DOWNLOAD_DIR", "./data/drive")
	v.SetDefault("SUGGEST_FORECAST_PERIOD_DAYS", domain.DefaultForecastPeriodDays)
	v.SetDefault("SUGGEST_SAFETY_DAYS", domain.DefaultSafetyDays)
	v.SetDefault("SUGGEST_FORECAST_METHOD", string(domain.ForecastMean))
	v.SetDefault("SUGGEST_FORECAST_WINDOW", domain.DefaultForecastWindow)
	v.SetDefault("SUGGEST_LOOKBACK_DAYS", domain.DefaultLookbackDays)
	v.SetDefault("SUGGEST_TOTAL_UNITS_THRESHOLD", domain.DefaultTotalUnitsThreshold)
	v.SetDefault("SUGGEST_SAFETY_RECENCY_DAYS", domain.DefaultSafetyRecencyDays)
	v.SetDefault("SUGGEST_SUPPLIER_RECENCY_DAYS", domain.DefaultSupplierRecencyDays)
	v.SetDefault("SUGGEST_WORKERS", 0)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Driver:   v.GetString("DB_DRIVER"),
			DSN:      v.GetString("DB_DSN"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			MaxConns: v.GetInt("DB_MAX_CONNS"),
		},
		App: AppConfig{
			UploadDir: v.GetString("APP_UPLOAD_DIR"),
			DataDir:   v.GetString("APP_DATA_DIR"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("CACHE_ENABLED"),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			RunTTLSeconds: v.GetInt("CACHE_RUN_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Backend:      v.GetString("S3_BACKEND"),
			Endpoint:     v.GetString("S3_ENDPOINT"),
			Region:       v.GetString("S3_REGION"),
			Bucket:       v.GetString("S3_BUCKET"),
			AccessKey:    v.GetString("S3_ACCESS_KEY"),
			SecretKey:    v.GetString("S3_SECRET_KEY"),
			UseSSL:       v.GetBool("S3_USE_SSL"),
			InputPrefix:  v.GetString("S3_INPUT_PREFIX"),
			ExportPrefix: v.GetString("S3_EXPORT_PREFIX"),
		},
		Drive: DriveConfig{
			CredentialsPath: v.GetString("GOOGLE_CREDENTIALS_PATH"),
			FolderID:        v.GetString("GOOGLE_DRIVE_FOLDER_ID"),
			DownloadDir:     v.GetString("DRIVE_DOWNLOAD_DIR"),
		},
		Suggest: SuggestConfig{
			ForecastPeriodDays:  v.GetInt("SUGGEST_FORECAST_PERIOD_DAYS"),
			SafetyDays:          v.GetInt("SUGGEST_SAFETY_DAYS"),
			ForecastMethod:      v.GetString("SUGGEST_FORECAST_METHOD"),
			ForecastWindow:      v.GetInt("SUGGEST_FORECAST_WINDOW"),
			LookbackDays:        v.GetInt("SUGGEST_LOOKBACK_DAYS"),
			TotalUnitsThreshold: v.GetFloat64("SUGGEST_TOTAL_UNITS_THRESHOLD"),
			SafetyRecencyDays:   v.GetInt("SUGGEST_SAFETY_RECENCY_DAYS"),
			SupplierRecencyDays: v.GetInt("SUGGEST_SUPPLIER_RECENCY_DAYS"),
			Workers:             v.GetInt("SUGGEST_WORKERS"),
		},
	}
}

// ConnString returns the DSN for the configured driver. An explicit DSN wins
// over the individual connection fields.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	if d.Driver == "sqlite3" {
		return d.DBName
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// Enabled reports whether object storage credentials are present.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

// Enabled reports whether a Drive service account is configured.
func (d DriveConfig) Enabled() bool {
	return d.CredentialsPath != ""
}

// Params converts the configured values into run parameters anchored at now.
func (s SuggestConfig) Params(now time.Time) (domain.SuggestParams, error) {
	method, ok := domain.ParseForecastMethod(s.ForecastMethod)
	if !ok {
		return domain.SuggestParams{}, fmt.Errorf("invalid SUGGEST_FORECAST_METHOD %q", strings.TrimSpace(s.ForecastMethod))
	}
	return domain.SuggestParams{
		ForecastPeriodDays:  s.ForecastPeriodDays,
		SafetyDays:          s.SafetyDays,
		ForecastMethod:      method,
		ForecastWindow:      s.ForecastWindow,
		LookbackDays:        s.LookbackDays,
		TotalUnitsThreshold: s.TotalUnitsThreshold,
		SafetyRecencyDays:   s.SafetyRecencyDays,
		SupplierRecencyDays: s.SupplierRecencyDays,
		ReferenceTime:       now,
	}, nil
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
