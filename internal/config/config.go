package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/samvad-hq/trending-seeder/internal/domain"
)

// Fetch strategies.
const (
	StrategyBulkCSV       = "bulk_csv"
	StrategyMostPopular   = "most_popular"
	StrategyYouTubeClient = "youtube_client"
)

// Datastore backends, conflict policies and write granularities.
const (
	DatastorePostgREST = "postgrest"
	DatastorePostgres  = "postgres"

	PolicyIgnore    = "ignore"
	PolicyOverwrite = "overwrite"

	WriteModePerItem = "per_item"
	WriteModeBulk    = "bulk"

	LookupREST   = "rest"
	LookupClient = "client"
)

// DefaultCSVURL is the public US trending export the bulk strategy reads by default.
const DefaultCSVURL = "https://storage.googleapis.com/yb-datasets-us-trending/US_youtube_trending_data.csv"

// Config holds the seeder configuration loaded from files and environment variables.
// It is built once per invocation and passed down explicitly.
type Config struct {
	AppName                 string        `mapstructure:"app_name"`
	Env                     string        `mapstructure:"app_env"`
	LogLevel                string        `mapstructure:"log_level"`
	ListenAddr              string        `mapstructure:"listen_addr"`
	ScheduleIntervalSeconds int64         `mapstructure:"schedule_interval_seconds"`
	ScheduleInterval        time.Duration `mapstructure:"-"`

	FetchStrategy      string        `mapstructure:"fetch_strategy"`
	CSVURL             string        `mapstructure:"csv_url"`
	YouTubeAPIBase     string        `mapstructure:"youtube_api_base"`
	RegionCode         string        `mapstructure:"region_code"`
	CategoryID         string        `mapstructure:"category_id"`
	TrendingDate       string        `mapstructure:"trending_date"`
	MaxResults         int           `mapstructure:"max_results"`
	BatchSize          int           `mapstructure:"batch_size"`
	BatchDelayMs       int64         `mapstructure:"batch_delay_ms"`
	BatchDelay         time.Duration `mapstructure:"-"`
	LookupTransport    string        `mapstructure:"lookup_transport"`
	LookupRetries      int           `mapstructure:"lookup_retries"`
	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`

	YouTubeAPIKey          string `mapstructure:"yt_api_key" validate:"required"`
	SupabaseURL            string `mapstructure:"supabase_url" validate:"required_if=DatastoreType postgrest"`
	SupabaseServiceRoleKey string `mapstructure:"supabase_service_role_key" validate:"required_if=DatastoreType postgrest"`
	DatabaseURL            string `mapstructure:"database_url" validate:"required_if=DatastoreType postgres"`
	DatastoreType          string `mapstructure:"datastore_type"`
	DatastoreTable         string `mapstructure:"datastore_table"`
	ConflictPolicy         string `mapstructure:"conflict_policy"`
	WriteMode              string `mapstructure:"write_mode"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	RedisURL               string        `mapstructure:"redis_url"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`

	PublishersFile string `mapstructure:"publishers_file"`
}

// Load reads configuration from environment variables and config files.
// Secrets are not checked here; see Validate.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "trending-seeder")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("schedule_interval_seconds", 0)

	v.SetDefault("fetch_strategy", StrategyBulkCSV)
	v.SetDefault("csv_url", DefaultCSVURL)
	v.SetDefault("youtube_api_base", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("region_code", "US")
	v.SetDefault("category_id", "10") // music
	v.SetDefault("trending_date", "")
	v.SetDefault("max_results", 50)
	v.SetDefault("batch_size", 50)
	v.SetDefault("batch_delay_ms", 100)
	v.SetDefault("lookup_transport", LookupREST)
	v.SetDefault("lookup_retries", 0)
	v.SetDefault("http_timeout_seconds", 30)

	v.SetDefault("yt_api_key", "")
	v.SetDefault("supabase_url", "")
	v.SetDefault("supabase_service_role_key", "")
	v.SetDefault("database_url", "")
	v.SetDefault("datastore_type", DatastorePostgREST)
	v.SetDefault("datastore_table", "videos")
	v.SetDefault("conflict_policy", PolicyIgnore)
	v.SetDefault("write_mode", WriteModePerItem)

	v.SetDefault("storage_type", "none")
	v.SetDefault("bbolt_path", "./data/seen.db")
	v.SetDefault("redis_url", "")
	v.SetDefault("storage_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.SetDefault("publishers_file", "")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &domain.ConfigurationError{Err: fmt.Errorf("unmarshal config: %w", err)}
	}

	if err := cfg.normalize(); err != nil {
		return nil, &domain.ConfigurationError{Err: err}
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.FetchStrategy = strings.ToLower(strings.TrimSpace(c.FetchStrategy))
	c.DatastoreType = strings.ToLower(strings.TrimSpace(c.DatastoreType))
	c.ConflictPolicy = strings.ToLower(strings.TrimSpace(c.ConflictPolicy))
	c.WriteMode = strings.ToLower(strings.TrimSpace(c.WriteMode))
	c.LookupTransport = strings.ToLower(strings.TrimSpace(c.LookupTransport))
	c.StorageType = strings.ToLower(strings.TrimSpace(c.StorageType))
	c.YouTubeAPIKey = strings.TrimSpace(c.YouTubeAPIKey)
	c.SupabaseURL = strings.TrimRight(strings.TrimSpace(c.SupabaseURL), "/")
	c.SupabaseServiceRoleKey = strings.TrimSpace(c.SupabaseServiceRoleKey)
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)

	switch c.FetchStrategy {
	case StrategyBulkCSV, StrategyMostPopular, StrategyYouTubeClient:
	default:
		return fmt.Errorf("unsupported fetch_strategy %q", c.FetchStrategy)
	}
	switch c.DatastoreType {
	case DatastorePostgREST, DatastorePostgres:
	default:
		return fmt.Errorf("unsupported datastore_type %q", c.DatastoreType)
	}
	switch c.ConflictPolicy {
	case PolicyIgnore, PolicyOverwrite:
	default:
		return fmt.Errorf("unsupported conflict_policy %q", c.ConflictPolicy)
	}
	switch c.WriteMode {
	case WriteModePerItem, WriteModeBulk:
	default:
		return fmt.Errorf("unsupported write_mode %q", c.WriteMode)
	}
	switch c.LookupTransport {
	case LookupREST, LookupClient:
	default:
		return fmt.Errorf("unsupported lookup_transport %q", c.LookupTransport)
	}

	if c.TrendingDate != "" {
		if _, err := domain.ParseWindow(c.TrendingDate); err != nil {
			return fmt.Errorf("invalid trending_date: %w", err)
		}
	}
	if c.BatchSize <= 0 || c.BatchSize > 50 {
		return fmt.Errorf("invalid batch_size (must be between 1 and 50)")
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("invalid max_results (must be positive)")
	}
	if c.BatchDelayMs < 0 {
		return fmt.Errorf("invalid batch_delay_ms (must not be negative)")
	}
	if c.LookupRetries < 0 {
		return fmt.Errorf("invalid lookup_retries (must not be negative)")
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid http_timeout_seconds (must be positive seconds)")
	}
	if c.ScheduleIntervalSeconds < 0 {
		return fmt.Errorf("invalid schedule_interval_seconds (must not be negative)")
	}
	if c.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if c.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}

	c.BatchDelay = time.Duration(c.BatchDelayMs) * time.Millisecond
	c.HTTPTimeout = time.Duration(c.HTTPTimeoutSeconds) * time.Second
	c.ScheduleInterval = time.Duration(c.ScheduleIntervalSeconds) * time.Second
	c.StorageTTL = time.Duration(c.StorageTTLSeconds) * time.Second
	c.StorageCleanupInterval = time.Duration(c.StorageCleanupSeconds) * time.Second
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report env-style names (YT_API_KEY) instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return strings.ToUpper(name)
	})
	return v
}

// Validate checks that every secret required by the selected strategy and datastore is set.
// It must run before any network call.
func (c *Config) Validate() error {
	if c == nil {
		return &domain.ConfigurationError{Err: errors.New("config must not be nil")}
	}
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &domain.ConfigurationError{Err: err}
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fe.Field())
	}
	return &domain.ConfigurationError{Missing: missing}
}

// Window returns the trending window this configuration targets at time now.
func (c *Config) Window(now time.Time) domain.Window {
	if c.TrendingDate != "" {
		if w, err := domain.ParseWindow(c.TrendingDate); err == nil {
			return w
		}
	}
	if c.FetchStrategy == StrategyBulkCSV {
		return domain.YesterdayWindow(now)
	}
	return domain.CurrentWindow()
}

// CacheEnabled reports whether the seen-video cache may short-cut writes. Overwrite runs
// must reach the datastore for every record, so the cache only applies to ignore.
func (c *Config) CacheEnabled() bool {
	switch c.StorageType {
	case "", "none", "disabled":
		return false
	}
	return c.ConflictPolicy == PolicyIgnore
}

// Redacted returns a copy that is safe to log.
func (c Config) Redacted() Config {
	c.YouTubeAPIKey = mask(c.YouTubeAPIKey)
	c.SupabaseServiceRoleKey = mask(c.SupabaseServiceRoleKey)
	c.DatabaseURL = mask(c.DatabaseURL)
	c.RedisURL = mask(c.RedisURL)
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
