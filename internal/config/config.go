package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Config is the application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	JWT           JWTConfig           `yaml:"jwt"`
	CORS          CORSConfig          `yaml:"cors"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Storage       StorageConfig       `yaml:"storage"`
	Messenger     MessengerConfig     `yaml:"messenger"`
}

// ServerConfig HTTP 서버 설정
type ServerConfig struct {
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"` // debug | release | test
	Env  string `yaml:"env"`
}

// DatabaseConfig DB 연결 설정
type DatabaseConfig struct {
	Driver          string `yaml:"driver"` // mysql | sqlite
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	DBName          string `yaml:"dbname"`
	Path            string `yaml:"path"` // sqlite file
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
}

// GetDSN returns the driver specific DSN
func (d DatabaseConfig) GetDSN() string {
	if d.Driver == "sqlite" {
		if d.Path == "" {
			return "file::memory:?cache=shared"
		}
		return d.Path
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

// RedisConfig Redis 설정
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// JWTConfig 토큰 설정 (seconds)
type JWTConfig struct {
	Secret    string `yaml:"secret"`
	ExpiresIn int    `yaml:"expires_in"`
	RefreshIn int    `yaml:"refresh_in"`
}

// CORSConfig CORS 설정
type CORSConfig struct {
	AllowOrigins string `yaml:"allow_origins"` // comma separated
}

// ElasticsearchConfig 검색 백엔드 설정
type ElasticsearchConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Index     string   `yaml:"index"`
}

// StorageConfig S3 compatible attachment storage
type StorageConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	CDNURL          string `yaml:"cdn_url"`
	BasePath        string `yaml:"base_path"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	PresignTTL      int    `yaml:"presign_ttl"` // seconds
}

// MessengerConfig inbox behaviour
type MessengerConfig struct {
	Slug                  string        `yaml:"slug"`
	PollInterval          time.Duration `yaml:"poll_interval"`
	PerPage               int           `yaml:"per_page"`
	MessagesPerPage       int           `yaml:"messages_per_page"`
	SearchLimit           int           `yaml:"search_limit"`
	AllowStatusManagement bool          `yaml:"allow_status_management"`
	StatusManagerMinLevel int           `yaml:"status_manager_min_level"`
	AllowDirectTreat      bool          `yaml:"allow_direct_treat"`
	DisplayUnreadCount    bool          `yaml:"display_unread_count"`
	UnreadCacheTTL        time.Duration `yaml:"unread_cache_ttl"`
}

// DefaultMessengerConfig returns the inbox defaults
func DefaultMessengerConfig() MessengerConfig {
	return MessengerConfig{
		Slug:                  "inbox",
		PollInterval:          5 * time.Second,
		PerPage:               20,
		MessagesPerPage:       10,
		SearchLimit:           5,
		AllowStatusManagement: true,
		StatusManagerMinLevel: 10,
		AllowDirectTreat:      true,
		DisplayUnreadCount:    true,
		UnreadCacheTTL:        time.Minute,
	}
}

// Default returns a configuration usable without any file
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8090, Mode: "debug", Env: "local"},
		Database: DatabaseConfig{Driver: "mysql", Host: "localhost", Port: 3306, MaxIdleConns: 10, MaxOpenConns: 100, ConnMaxLifetime: 3600},
		Redis:    RedisConfig{Host: "localhost", Port: 6379, PoolSize: 10},
		JWT:      JWTConfig{ExpiresIn: 900, RefreshIn: 604800},
		CORS:     CORSConfig{AllowOrigins: "http://localhost:3000"},
		Elasticsearch: ElasticsearchConfig{
			Index: "inbox_messages",
		},
		Storage:   StorageConfig{Region: "ap-northeast-2", PresignTTL: 900},
		Messenger: DefaultMessengerConfig(),
	}
}

// Load reads a YAML config file, expanding ${VAR} references, then applies env overrides.
// A missing file falls back to defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("config 파싱 실패 (%s): %w", path, err)
		}
	case os.IsNotExist(err):
		pkglogger.Warn("config file %s not found, using defaults", path)
	default:
		return nil, fmt.Errorf("config 읽기 실패 (%s): %w", path, err)
	}

	applyEnvOverrides(cfg)
	cfg.Messenger.normalize()

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret is required (set JWT_SECRET)")
	}
	return cfg, nil
}

func (m *MessengerConfig) normalize() {
	def := DefaultMessengerConfig()
	if m.PollInterval <= 0 {
		m.PollInterval = def.PollInterval
	}
	if m.PerPage < 1 {
		m.PerPage = def.PerPage
	}
	if m.MessagesPerPage < 1 {
		m.MessagesPerPage = def.MessagesPerPage
	}
	if m.SearchLimit < 1 {
		m.SearchLimit = def.SearchLimit
	}
	if m.UnreadCacheTTL <= 0 {
		m.UnreadCacheTTL = def.UnreadCacheTTL
	}
	if m.Slug == "" {
		m.Slug = def.Slug
	}
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.DBName, "DB_NAME")
	setString(&cfg.Database.Driver, "DB_DRIVER")
	setString(&cfg.Redis.Host, "REDIS_HOST")
	setInt(&cfg.Redis.Port, "REDIS_PORT")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.CORS.AllowOrigins, "CORS_ALLOW_ORIGINS")
	setString(&cfg.Storage.AccessKeyID, "S3_ACCESS_KEY_ID")
	setString(&cfg.Storage.SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	setInt(&cfg.Server.Port, "PORT")
	if env := os.Getenv("APP_ENV"); env != "" {
		cfg.Server.Env = env
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// IsDevelopment reports whether the server runs in a local/dev environment
func (c *Config) IsDevelopment() bool {
	switch c.Server.Env {
	case "", "local", "dev", "development":
		return true
	}
	return false
}

// LogResolved logs the effective configuration without secrets
func LogResolved(cfg *Config) {
	pkglogger.Info("server: port=%d mode=%s env=%s", cfg.Server.Port, cfg.Server.Mode, cfg.Server.Env)
	pkglogger.Info("database: driver=%s host=%s:%d db=%s", cfg.Database.Driver, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
	pkglogger.Info("redis: %s:%d db=%d", cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.DB)
	pkglogger.Info("elasticsearch: enabled=%v index=%s", cfg.Elasticsearch.Enabled, cfg.Elasticsearch.Index)
	pkglogger.Info("storage: enabled=%v bucket=%s cdn=%s", cfg.Storage.Enabled, cfg.Storage.Bucket, cfg.Storage.CDNURL)
	pkglogger.Info("messenger: poll=%s per_page=%d status_mgmt=%v min_level=%d direct_treat=%v",
		cfg.Messenger.PollInterval, cfg.Messenger.PerPage, cfg.Messenger.AllowStatusManagement,
		cfg.Messenger.StatusManagerMinLevel, cfg.Messenger.AllowDirectTreat)
}
