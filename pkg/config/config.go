// Package config конфигурация сервисов siting: структура, значения по
// умолчанию и загрузка из файла и окружения (см. Loader).
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	GRPC      GRPCConfig      `koanf:"grpc"`
	HTTP      HTTPConfig      `koanf:"http"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Tracing   TracingConfig   `koanf:"tracing"`
	Services  ServicesConfig  `koanf:"services"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Audit     AuditConfig     `koanf:"audit"`
	Auth      AuthConfig      `koanf:"auth"`
	Report    ReportConfig    `koanf:"report"`
	Optimizer OptimizerConfig `koanf:"optimizer"`
	Providers ProvidersConfig `koanf:"providers"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

type GRPCConfig struct {
	Port              int             `koanf:"port"`
	MaxRecvMsgSize    int             `koanf:"max_recv_msg_size"`
	MaxSendMsgSize    int             `koanf:"max_send_msg_size"`
	MaxConcurrentConn int             `koanf:"max_concurrent_conn"`
	KeepAlive         KeepAliveConfig `koanf:"keepalive"`
	TLS               TLSConfig       `koanf:"tls"`
}

type KeepAliveConfig struct {
	MaxConnectionIdle     time.Duration `koanf:"max_connection_idle"`
	MaxConnectionAge      time.Duration `koanf:"max_connection_age"`
	MaxConnectionAgeGrace time.Duration `koanf:"max_connection_age_grace"`
	Time                  time.Duration `koanf:"time"`
	Timeout               time.Duration `koanf:"timeout"`
}

// TLSConfig CAFile включает проверку клиентских сертификатов
type TLSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
	CAFile   string `koanf:"ca_file"`
}

// HTTPConfig HTTP сторона gateway-svc
type HTTPConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORS            CORSConfig    `koanf:"cors"`
	Docs            bool          `koanf:"docs"` // Swagger UI на /docs
}

type CORSConfig struct {
	Enabled          bool     `koanf:"enabled"`
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	ExposedHeaders   []string `koanf:"exposed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"` // секунды
}

type LogConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"` // json, text
	Output     string `koanf:"output"` // stdout, stderr, file
	FilePath   string `koanf:"file_path"`
	MaxSize    int    `koanf:"max_size"` // MB
	MaxBackups int    `koanf:"max_backups"`
	MaxAge     int    `koanf:"max_age"` // дни
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig пустой Subsystem заменяется именем сервиса
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"` // OTLP gRPC
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

type ServicesConfig struct {
	Siting ServiceEndpoint `koanf:"siting"`
}

type ServiceEndpoint struct {
	Host          string        `koanf:"host"`
	Port          int           `koanf:"port"`
	Timeout       time.Duration `koanf:"timeout"` // на попытку
	MaxRetries    int           `koanf:"max_retries"`
	RetryBackoff  time.Duration `koanf:"retry_backoff"`
	TLS           bool          `koanf:"tls"`
	LoadBalancing string        `koanf:"load_balancing"` // round_robin, pick_first
}

func (s ServiceEndpoint) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DatabaseConfig история прогонов в PostgreSQL
type DatabaseConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Driver          string        `koanf:"driver"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Database        string        `koanf:"database"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// DSN в URL форме с экранированным паролем; пустая строка для драйвера
// кроме postgres
func (d DatabaseConfig) DSN() string {
	switch strings.ToLower(d.Driver) {
	case "", "postgres", "postgresql":
	default:
		return ""
	}
	ssl := d.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.Username, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Database,
		RawQuery: url.Values{"sslmode": {ssl}}.Encode(),
	}
	return u.String()
}

type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Driver     string        `koanf:"driver"` // redis, memory
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	MaxEntries int           `koanf:"max_entries"` // memory
	KeyPrefix  string        `koanf:"key_prefix"`  // redis
}

func (c CacheConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type RateLimitConfig struct {
	Enabled         bool           `koanf:"enabled"`
	Requests        int            `koanf:"requests"`
	Window          time.Duration  `koanf:"window"`
	Strategy        string         `koanf:"strategy"`
	KeyFunc         string         `koanf:"key_func"` // ip, method, user, ip_method
	Backend         string         `koanf:"backend"`
	BurstSize       int            `koanf:"burst_size"`
	CleanupInterval time.Duration  `koanf:"cleanup_interval"`
	RedisAddr       string         `koanf:"redis_addr"`
	MethodCosts     map[string]int `koanf:"method_costs"` // Optimize: 5
}

// AuthConfig HS256 токены и argon2id хэши API ключей
type AuthConfig struct {
	Enabled   bool          `koanf:"enabled"`
	JWTSecret string        `koanf:"jwt_secret"`
	Issuer    string        `koanf:"issuer"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
	Leeway    time.Duration `koanf:"leeway"`
	APIKeys   []string      `koanf:"api_keys"`
}

type AuditConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Backend        string        `koanf:"backend"` // stdout, file, memory
	FilePath       string        `koanf:"file_path"`
	MaxSizeMB      int           `koanf:"max_size_mb"`
	MaxAgeDays     int           `koanf:"max_age_days"`
	Compress       bool          `koanf:"compress"`
	BufferSize     int           `koanf:"buffer_size"`
	FlushPeriod    time.Duration `koanf:"flush_period"`
	ExcludeMethods []string      `koanf:"exclude_methods"`
	IncludeRequest bool          `koanf:"include_request"`
	MaskFields     []string      `koanf:"mask_fields"`
}

type ReportConfig struct {
	MaxReportSizeBytes int64     `koanf:"max_report_size_bytes"`
	MaxSitesInTable    int       `koanf:"max_sites_in_table"`
	MaxClustersInTable int       `koanf:"max_clusters_in_table"`
	DefaultFormat      string    `koanf:"default_format"`
	CompanyName        string    `koanf:"company_name"`
	PDF                PDFConfig `koanf:"pdf"`
}

type PDFConfig struct {
	PageSize          string  `koanf:"page_size"`
	Orientation       string  `koanf:"orientation"`
	MarginTop         float64 `koanf:"margin_top"` // мм
	MarginLeft        float64 `koanf:"margin_left"`
	MarginRight       float64 `koanf:"margin_right"`
	FontSize          float64 `koanf:"font_size"` // pt
	EnablePageNumbers bool    `koanf:"enable_page_numbers"`
}

// OptimizerConfig Engine уходит в движок как есть, неизвестные ключи
// отклоняет движок
type OptimizerConfig struct {
	Timeout          time.Duration  `koanf:"timeout"`
	CacheResults     bool           `koanf:"cache_results"`
	ResultTTL        time.Duration  `koanf:"result_ttl"`
	PersistRuns      bool           `koanf:"persist_runs"`
	NarrativeTimeout time.Duration  `koanf:"narrative_timeout"`
	MaxGridCells     int            `koanf:"max_grid_cells"`
	MaxFacilitiesCap int            `koanf:"max_facilities_cap"`
	SimulatedHazards bool           `koanf:"simulated_hazards"`
	SimulatedLandUse float64        `koanf:"simulated_land_use"` // вероятность пригодности, 0 выключает
	Engine           map[string]any `koanf:"engine"`
}

type ProvidersConfig struct {
	DefaultDensityPerKm2 float64       `koanf:"default_density_per_km2"`
	GridResolutionKm     float64       `koanf:"grid_resolution_km"`
	CacheTTL             time.Duration `koanf:"cache_ttl"`
}

var (
	logLevels       = []string{"debug", "info", "warn", "error"}
	reportFormats   = []string{"markdown", "xlsx", "pdf"}
	pdfPageSizes    = []string{"A4", "Letter", "Legal", "A3"}
	pdfOrientations = []string{"portrait", "landscape"}
)

// Validate собирает все нарушения в одну ошибку
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.App.Name != "", "app.name is required")
	check(c.GRPC.Port > 0 && c.GRPC.Port <= 65535, "grpc.port must be in [1, 65535], got %d", c.GRPC.Port)
	check(c.Log.Level == "" || slices.Contains(logLevels, strings.ToLower(c.Log.Level)),
		"log.level must be one of %v, got %q", logLevels, c.Log.Level)

	check(c.Optimizer.Timeout >= 0, "optimizer.timeout must be non-negative")
	check(c.Optimizer.MaxGridCells >= 0, "optimizer.max_grid_cells must be non-negative")
	check(c.Optimizer.SimulatedLandUse >= 0 && c.Optimizer.SimulatedLandUse <= 1,
		"optimizer.simulated_land_use must be in [0, 1], got %v", c.Optimizer.SimulatedLandUse)

	check(c.Providers.DefaultDensityPerKm2 >= 0, "providers.default_density_per_km2 must be non-negative")
	check(c.Providers.GridResolutionKm > 0, "providers.grid_resolution_km must be positive, got %v", c.Providers.GridResolutionKm)

	r := c.Report
	check(r.MaxReportSizeBytes >= 0, "report.max_report_size_bytes must be non-negative")
	check(oneOf(reportFormats, r.DefaultFormat), "report.default_format must be one of %v, got %q", reportFormats, r.DefaultFormat)
	check(oneOf(pdfPageSizes, r.PDF.PageSize), "report.pdf.page_size must be one of %v, got %q", pdfPageSizes, r.PDF.PageSize)
	check(oneOf(pdfOrientations, r.PDF.Orientation), "report.pdf.orientation must be one of %v, got %q", pdfOrientations, r.PDF.Orientation)

	a := c.Auth
	check(!a.Enabled || a.JWTSecret != "" || len(a.APIKeys) > 0, "auth.enabled requires auth.jwt_secret or auth.api_keys")
	check(a.JWTSecret == "" || len(a.JWTSecret) >= 32, "auth.jwt_secret must be at least 32 bytes")

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// oneOf пустое значение допустимо
func oneOf(allowed []string, v string) bool {
	return v == "" || slices.Contains(allowed, v)
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production" || c.App.Environment == "prod"
}

// MetricsSubsystem Metrics.Subsystem или имя сервиса
func (c *Config) MetricsSubsystem() string {
	if c.Metrics.Subsystem != "" {
		return c.Metrics.Subsystem
	}
	return c.App.Name
}
