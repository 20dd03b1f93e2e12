package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleTOML = `
service_name = "solarhealth"
environment = "test"

[http]
port = 8088

[grpc]
port = 50061

[database]
driver = "postgres"
dsn = "host=localhost user=solar dbname=solar sslmode=disable"

[evaluation]
default_irradiance = "5.1"
max_batch_size = 20
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HTTP.Port != 8088 || cfg.GRPC.Port != 50061 {
		t.Fatalf("unexpected ports: %d %d", cfg.HTTP.Port, cfg.GRPC.Port)
	}
	if cfg.DefaultIrradiance().String() != "5.1" {
		t.Fatalf("expected irradiance 5.1, got %s", cfg.DefaultIrradiance())
	}
	if cfg.Outbox.Topic != "solarhealth.evaluation.completed" {
		t.Fatalf("expected default outbox topic, got %q", cfg.Outbox.Topic)
	}
	if cfg.Redis.Port != 6379 {
		t.Fatalf("expected default redis port, got %d", cfg.Redis.Port)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("APP_HTTP_PORT", "9191")
	t.Setenv("APP_EVALUATION_DEFAULT_IRRADIANCE", "3.75")

	cfg, err := Load(writeConfig(t, sampleTOML))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HTTP.Port != 9191 {
		t.Fatalf("expected env port 9191, got %d", cfg.HTTP.Port)
	}
	if cfg.DefaultIrradiance().String() != "3.75" {
		t.Fatalf("expected env irradiance 3.75, got %s", cfg.DefaultIrradiance())
	}
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")
	if _, err := Load(missing); err == nil {
		t.Fatal("expected error for missing file")
	}

	t.Setenv("APP_DATABASE_DSN", "solar:solar@tcp(localhost:3306)/solar")
	cfg, err := LoadWithDefaults(missing)
	if err != nil {
		t.Fatalf("LoadWithDefaults returned error: %v", err)
	}
	if cfg.Database.Driver != "mysql" || cfg.HTTP.Port != 8080 {
		t.Fatalf("unexpected defaults: %+v", cfg.Database)
	}
	if cfg.DefaultIrradiance().String() != "4.5" {
		t.Fatalf("expected default irradiance 4.5, got %s", cfg.DefaultIrradiance())
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			ServiceName: "solarhealth",
			HTTP:        HTTPConfig{Port: 8080},
			GRPC:        GRPCConfig{Port: 50051},
			Database:    DatabaseConfig{Driver: "mysql", DSN: "dsn"},
			Evaluation:  EvaluationConfig{DefaultIrradiance: "4.5", MaxBatchSize: 10, Concurrency: 2},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, true},
		{"bad http port", func(c *Config) { c.HTTP.Port = 70000 }, true},
		{"sqlite unsupported", func(c *Config) { c.Database.Driver = "sqlite" }, true},
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }, true},
		{"bad irradiance", func(c *Config) { c.Evaluation.DefaultIrradiance = "abc" }, true},
		{"negative irradiance", func(c *Config) { c.Evaluation.DefaultIrradiance = "-1" }, true},
		{"zero batch", func(c *Config) { c.Evaluation.MaxBatchSize = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateBoundsLocalCacheTTL(t *testing.T) {
	tests := []struct {
		name                     string
		cacheTTL, localTTL, want int
	}{
		{"unset falls back to 30s", 3600, 0, 30},
		{"explicit value kept", 3600, 10, 10},
		{"capped by redis ttl", 20, 60, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				ServiceName: "solarhealth",
				HTTP:        HTTPConfig{Port: 8080},
				GRPC:        GRPCConfig{Port: 50051},
				Database:    DatabaseConfig{Driver: "mysql", DSN: "dsn"},
				Evaluation: EvaluationConfig{
					DefaultIrradiance:  "4.5",
					MaxBatchSize:       10,
					IrradianceCacheTTL: tt.cacheTTL,
					IrradianceLocalTTL: tt.localTTL,
				},
			}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if cfg.Evaluation.IrradianceLocalTTL != tt.want {
				t.Fatalf("expected local ttl %d, got %d", tt.want, cfg.Evaluation.IrradianceLocalTTL)
			}
		})
	}
}
