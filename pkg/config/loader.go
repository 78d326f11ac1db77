package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "SITING_"
	configEnvVar = "CONFIG_PATH"
)

// Loader собирает Config из слоёв: defaults, yaml файл, окружение.
// Каждый следующий слой перекрывает предыдущий.
type Loader struct {
	k         *koanf.Koanf
	paths     []string
	envPrefix string
	overrides map[string]any
	source    string
}

type LoaderOption func(*Loader)

// WithConfigPaths пути поиска yaml; берётся первый существующий
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) { l.paths = paths }
}

func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithDefault меняет значение по умолчанию для ключа вида "grpc.port"
func WithDefault(key string, value any) LoaderOption {
	return func(l *Loader) { l.overrides[key] = value }
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		paths:     []string{"config.yaml", "config/config.yaml", "/etc/siting/config.yaml"},
		envPrefix: envPrefix,
		overrides: map[string]any{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Source путь прочитанного yaml, пустой если файла не было
func (l *Loader) Source() string { return l.source }

func (l *Loader) Load() (*Config, error) {
	defaults := defaultValues()
	for k, v := range l.overrides {
		defaults[k] = v
	}
	if err := l.k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := l.loadFile(); err != nil {
		return nil, err
	}
	if err := l.k.Load(env.ProviderWithValue(l.envPrefix, ".", l.envValue), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := l.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
		},
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadFile: явный CONFIG_PATH обязан существовать, пути поиска нет
func (l *Loader) loadFile() error {
	if p := os.Getenv(configEnvVar); p != "" {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("%s: %w", configEnvVar, err)
		}
		return l.loadYAML(p)
	}
	for _, p := range l.paths {
		_, err := os.Stat(p)
		if err == nil {
			return l.loadYAML(p)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config %s: %w", p, err)
		}
	}
	return nil
}

func (l *Loader) loadYAML(path string) error {
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	l.source = path
	return nil
}

// envValue переводит SITING_RATE_LIMIT_KEY_FUNC в rate_limit.key_func.
// Неизвестные переменные пропускаются.
func (l *Loader) envValue(name, value string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(name, l.envPrefix))
	f, ok := envFields()[key]
	if !ok {
		return "", nil
	}
	switch f.kind {
	case envList:
		return f.path, splitList(value)
	case envPairs:
		return f.path, splitPairs(value)
	default:
		return f.path, value
	}
}

type envKind uint8

const (
	envScalar envKind = iota
	envList           // a,b,c
	envPairs          // Optimize=5,GenerateReport=2
)

type envField struct {
	path string
	kind envKind
}

// envFields индекс "rate_limit_key_func" -> rate_limit.key_func по тегам Config.
// map[string]any секции (optimizer.engine) задаются только файлом.
var envFields = sync.OnceValue(func() map[string]envField {
	out := make(map[string]envField)
	walkKoanf(reflect.TypeFor[Config](), "", out)
	return out
})

func walkKoanf(t reflect.Type, prefix string, out map[string]envField) {
	for i := range t.NumField() {
		sf := t.Field(i)
		tag := sf.Tag.Get("koanf")
		if tag == "" || tag == "-" {
			continue
		}
		path := prefix + tag
		ft := sf.Type
		switch {
		case ft.Kind() == reflect.Struct:
			walkKoanf(ft, path+".", out)
			continue
		case ft.Kind() == reflect.Slice && ft.Elem().Kind() == reflect.String:
			out[strings.ReplaceAll(path, ".", "_")] = envField{path, envList}
		case ft.Kind() == reflect.Map && ft.Elem().Kind() != reflect.Interface:
			out[strings.ReplaceAll(path, ".", "_")] = envField{path, envPairs}
		case ft.Kind() == reflect.Map:
		default:
			out[strings.ReplaceAll(path, ".", "_")] = envField{path, envScalar}
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitPairs(s string) map[string]any {
	out := make(map[string]any)
	for _, p := range splitList(s) {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

// Load с путями и префиксом по умолчанию
func Load() (*Config, error) {
	return NewLoader().Load()
}

// LoadService загружает конфигурацию сервиса; name становится app.name по умолчанию
func LoadService(name string, opts ...LoaderOption) (*Config, error) {
	return NewLoader(append([]LoaderOption{WithDefault("app.name", name)}, opts...)...).Load()
}

func defaultValues() map[string]any {
	return map[string]any{
		"app.name":        "siting-service",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"grpc.port":                               50051,
		"grpc.max_recv_msg_size":                  64 << 20,
		"grpc.max_send_msg_size":                  64 << 20,
		"grpc.max_concurrent_conn":                1000,
		"grpc.keepalive.max_connection_idle":      15 * time.Minute,
		"grpc.keepalive.max_connection_age":       30 * time.Minute,
		"grpc.keepalive.max_connection_age_grace": 5 * time.Minute,
		"grpc.keepalive.time":                     5 * time.Minute,
		"grpc.keepalive.timeout":                  20 * time.Second,

		"http.port":                 8080,
		"http.read_timeout":         30 * time.Second,
		"http.write_timeout":        120 * time.Second,
		"http.shutdown_timeout":     10 * time.Second,
		"http.docs":                 true,
		"http.cors.enabled":         true,
		"http.cors.allowed_origins": []string{"*"},
		"http.cors.allowed_methods": []string{"GET", "POST", "OPTIONS"},
		"http.cors.allowed_headers": []string{
			"Content-Type", "Accept", "Origin", "Authorization", "X-API-Key", "X-Request-ID",
			"Connect-Protocol-Version", "Connect-Timeout-Ms",
		},
		"http.cors.exposed_headers": []string{"Grpc-Status", "Grpc-Message", "X-Request-ID"},
		"http.cors.max_age":         86400,

		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		"metrics.enabled":   true,
		"metrics.port":      9090,
		"metrics.path":      "/metrics",
		"metrics.namespace": "siting",

		"tracing.endpoint":    "localhost:4317",
		"tracing.sample_rate": 0.1,

		"services.siting.host":           "localhost",
		"services.siting.port":           50051,
		"services.siting.timeout":        120 * time.Second,
		"services.siting.max_retries":    3,
		"services.siting.retry_backoff":  100 * time.Millisecond,
		"services.siting.load_balancing": "round_robin",

		"database.driver":             "postgres",
		"database.host":               "localhost",
		"database.port":               5432,
		"database.database":           "siting",
		"database.username":           "postgres",
		"database.ssl_mode":           "disable",
		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  5 * time.Minute,
		"database.conn_max_idle_time": 5 * time.Minute,
		"database.auto_migrate":       true,

		"cache.enabled":     true,
		"cache.driver":      "memory",
		"cache.host":        "localhost",
		"cache.port":        6379,
		"cache.default_ttl": 15 * time.Minute,
		"cache.max_entries": 1000,
		"cache.key_prefix":  "siting:",

		"auth.issuer":    "siting",
		"auth.token_ttl": time.Hour,
		"auth.leeway":    30 * time.Second,

		"rate_limit.enabled":  true,
		"rate_limit.requests": 60,
		"rate_limit.window":   time.Minute,
		"rate_limit.strategy": "sliding_window",
		"rate_limit.key_func": "ip",
		"rate_limit.method_costs": map[string]any{
			"Optimize":       5,
			"OptimizeWaste":  5,
			"GenerateReport": 2,
		},
		"rate_limit.backend":          "memory",
		"rate_limit.burst_size":       10,
		"rate_limit.cleanup_interval": 5 * time.Minute,

		"audit.enabled":      true,
		"audit.backend":      "stdout",
		"audit.buffer_size":  1000,
		"audit.flush_period": 5 * time.Second,
		"audit.max_size_mb":  100,
		"audit.max_age_days": 30,
		"audit.mask_fields":  []string{"api_key", "password", "token"},

		"report.max_report_size_bytes":   50 << 20,
		"report.max_sites_in_table":      100,
		"report.max_clusters_in_table":   50,
		"report.default_format":          "markdown",
		"report.company_name":            "Facility Siting",
		"report.pdf.page_size":           "A4",
		"report.pdf.orientation":         "portrait",
		"report.pdf.margin_top":          15.0,
		"report.pdf.margin_left":         15.0,
		"report.pdf.margin_right":        15.0,
		"report.pdf.font_size":           10.0,
		"report.pdf.enable_page_numbers": true,

		"optimizer.timeout":            2 * time.Minute,
		"optimizer.cache_results":      true,
		"optimizer.result_ttl":         30 * time.Minute,
		"optimizer.persist_runs":       true,
		"optimizer.narrative_timeout":  5 * time.Second,
		"optimizer.max_grid_cells":     250000,
		"optimizer.max_facilities_cap": 200,
		"optimizer.simulated_hazards":  true,

		"providers.default_density_per_km2": 1000.0,
		"providers.grid_resolution_km":      1.0,
		"providers.cache_ttl":               time.Hour,
	}
}
