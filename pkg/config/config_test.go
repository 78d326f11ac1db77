package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		App:       AppConfig{Name: "test-service"},
		GRPC:      GRPCConfig{Port: 50051},
		Log:       LogConfig{Level: "info"},
		Providers: ProvidersConfig{GridResolutionKm: 1},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing app name", func(c *Config) { c.App.Name = "" }, "app.name"},
		{"port zero", func(c *Config) { c.GRPC.Port = 0 }, "grpc.port"},
		{"port too high", func(c *Config) { c.GRPC.Port = 70000 }, "grpc.port"},
		{"invalid log level", func(c *Config) { c.Log.Level = "invalid" }, "log.level"},
		{"empty log level", func(c *Config) { c.Log.Level = "" }, ""},
		{"upper case level", func(c *Config) { c.Log.Level = "DEBUG" }, ""},
		{"negative optimizer timeout", func(c *Config) { c.Optimizer.Timeout = -time.Second }, "optimizer.timeout"},
		{"land use above one", func(c *Config) { c.Optimizer.SimulatedLandUse = 1.5 }, "simulated_land_use"},
		{"zero grid resolution", func(c *Config) { c.Providers.GridResolutionKm = 0 }, "grid_resolution_km"},
		{"negative density", func(c *Config) { c.Providers.DefaultDensityPerKm2 = -1 }, "default_density_per_km2"},
		{"invalid report format", func(c *Config) { c.Report.DefaultFormat = "docx" }, "report.default_format"},
		{"valid report config", func(c *Config) {
			c.Report = ReportConfig{DefaultFormat: "pdf", PDF: PDFConfig{PageSize: "A4", Orientation: "landscape"}}
		}, ""},
		{"invalid page size", func(c *Config) { c.Report.PDF.PageSize = "B5" }, "page_size"},
		{"invalid orientation", func(c *Config) { c.Report.PDF.Orientation = "diagonal" }, "orientation"},
		{"auth without credentials", func(c *Config) { c.Auth.Enabled = true }, "auth.enabled"},
		{"auth short secret", func(c *Config) { c.Auth = AuthConfig{Enabled: true, JWTSecret: "short"} }, "32 bytes"},
		{"auth with api keys only", func(c *Config) {
			c.Auth = AuthConfig{Enabled: true, APIKeys: []string{"$argon2id$..."}}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_ValidateCollectsAll(t *testing.T) {
	cfg := validConfig()
	cfg.App.Name = ""
	cfg.GRPC.Port = -1
	cfg.Report.DefaultFormat = "docx"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"invalid configuration", "app.name", "grpc.port", "report.default_format"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestConfig_Environment(t *testing.T) {
	for env, want := range map[string][2]bool{
		"development": {true, false},
		"dev":         {true, false},
		"staging":     {false, false},
		"production":  {false, true},
		"prod":        {false, true},
	} {
		cfg := Config{App: AppConfig{Environment: env}}
		assert.Equal(t, want[0], cfg.IsDevelopment(), env)
		assert.Equal(t, want[1], cfg.IsProduction(), env)
	}
}

func TestConfig_MetricsSubsystem(t *testing.T) {
	cfg := Config{App: AppConfig{Name: "siting-svc"}}
	assert.Equal(t, "siting-svc", cfg.MetricsSubsystem())

	cfg.Metrics.Subsystem = "engine"
	assert.Equal(t, "engine", cfg.MetricsSubsystem())
}

func TestAddresses(t *testing.T) {
	assert.Equal(t, "siting-svc:50051", ServiceEndpoint{Host: "siting-svc", Port: 50051}.Address())
	assert.Equal(t, "redis:6379", CacheConfig{Host: "redis", Port: 6379}.Address())
	assert.Equal(t, "[::1]:6379", CacheConfig{Host: "::1", Port: 6379}.Address())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	db := DatabaseConfig{
		Driver:   "postgres",
		Host:     "db",
		Port:     5432,
		Database: "siting",
		Username: "user",
		Password: "p@ss/word",
	}
	assert.Equal(t, "postgres://user:p%40ss%2Fword@db:5432/siting?sslmode=disable", db.DSN())

	db.SSLMode = "require"
	assert.Contains(t, db.DSN(), "sslmode=require")

	db.Driver = "sqlite"
	assert.Empty(t, db.DSN())
}
