package config

import (
	"log/slog"
	"testing"
	"time"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("sqlscout-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Database.MaxOpenConns != 20 {
		t.Fatalf("Database.MaxOpenConns = %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Agent.RowLimit != 200 {
		t.Fatalf("Agent.RowLimit = %d", cfg.Agent.RowLimit)
	}
	if cfg.Agent.RequireValidSyntax {
		t.Fatal("Agent.RequireValidSyntax should default to false")
	}
	if cfg.Agent.Engine != EnginePostgres {
		t.Fatalf("Agent.Engine = %q", cfg.Agent.Engine)
	}
	if cfg.Agent.Checkpoints != CheckpointsMemory {
		t.Fatalf("Agent.Checkpoints = %q", cfg.Agent.Checkpoints)
	}
	if cfg.AI.Model != "gpt-5" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if len(cfg.Schema.Schemas) != 1 || cfg.Schema.Schemas[0] != "public" {
		t.Fatalf("Schema.Schemas = %v", cfg.Schema.Schemas)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"SQLSCOUT_PROFILE": "prod"})
	cfg, err := Load("sqlscout-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Agent.Checkpoints != CheckpointsPostgres {
		t.Fatalf("Agent.Checkpoints = %q, want durable store in prod", cfg.Agent.Checkpoints)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"SQLSCOUT_PROFILE":                    "test",
		"SQLSCOUT_HTTP_ADDR":                  ":9999",
		"SQLSCOUT_HTTP_READ_TIMEOUT":          "2s",
		"SQLSCOUT_LOG_LEVEL":                  "error",
		"SQLSCOUT_DB_DSN":                     "postgres://example",
		"SQLSCOUT_DB_MAX_OPEN_CONNS":          "42",
		"SQLSCOUT_SCHEMA_NAMES":               "sales, billing",
		"SQLSCOUT_AI_MODEL":                   "gpt-5-mini",
		"SQLSCOUT_AI_TIMEOUT":                 "8s",
		"SQLSCOUT_AGENT_REQUIRE_VALID_SYNTAX": "true",
		"SQLSCOUT_AGENT_ROW_LIMIT":            "50",
		"SQLSCOUT_AGENT_ENGINE":               "duckdb",
		"SQLSCOUT_AGENT_DUCKDB_PATH":          "/tmp/scout.db",
		"SQLSCOUT_AGENT_CHECKPOINTS":          "postgres",
		"SQLSCOUT_AUTH_REQUIRED":              "true",
		"SQLSCOUT_AUTH_STATIC_KEYS":           "k1:alice:agent_user",
	})
	cfg, err := Load("sqlscout-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %v", cfg.HTTP.ReadTimeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Database.DSN != "postgres://example" {
		t.Fatalf("Database.DSN = %q", cfg.Database.DSN)
	}
	if cfg.Database.MaxOpenConns != 42 {
		t.Fatalf("Database.MaxOpenConns = %d", cfg.Database.MaxOpenConns)
	}
	if len(cfg.Schema.Schemas) != 2 || cfg.Schema.Schemas[1] != "billing" {
		t.Fatalf("Schema.Schemas = %v", cfg.Schema.Schemas)
	}
	if cfg.AI.Model != "gpt-5-mini" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Timeout != 8*time.Second {
		t.Fatalf("AI.Timeout = %v", cfg.AI.Timeout)
	}
	if !cfg.Agent.RequireValidSyntax {
		t.Fatal("Agent.RequireValidSyntax should be true")
	}
	if cfg.Agent.RowLimit != 50 {
		t.Fatalf("Agent.RowLimit = %d", cfg.Agent.RowLimit)
	}
	if cfg.Agent.Engine != EngineDuckDB {
		t.Fatalf("Agent.Engine = %q", cfg.Agent.Engine)
	}
	if cfg.Agent.DuckDBPath != "/tmp/scout.db" {
		t.Fatalf("Agent.DuckDBPath = %q", cfg.Agent.DuckDBPath)
	}
	if cfg.Agent.Checkpoints != CheckpointsPostgres {
		t.Fatalf("Agent.Checkpoints = %q", cfg.Agent.Checkpoints)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should be true")
	}
}

func TestLoadRejectsInvalidProfile(t *testing.T) {
	_, err := Load("sqlscout-api", mapLookup(map[string]string{"SQLSCOUT_PROFILE": "staging"}))
	if err == nil {
		t.Fatal("expected error for invalid profile")
	}
}

func TestLoadRejectsInvalidEngine(t *testing.T) {
	_, err := Load("sqlscout-api", mapLookup(map[string]string{"SQLSCOUT_AGENT_ENGINE": "oracle"}))
	if err == nil {
		t.Fatal("expected error for invalid engine")
	}
}

func TestLoadRejectsInvalidCheckpointStore(t *testing.T) {
	_, err := Load("sqlscout-api", mapLookup(map[string]string{"SQLSCOUT_AGENT_CHECKPOINTS": "redis"}))
	if err == nil {
		t.Fatal("expected error for invalid checkpoint store")
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	_, err := Load("sqlscout-api", mapLookup(map[string]string{"SQLSCOUT_AI_TIMEOUT": "soon"}))
	if err == nil {
		t.Fatal("expected error for malformed duration")
	}
}

func TestLoadRejectsEmptySchemaList(t *testing.T) {
	_, err := Load("sqlscout-api", mapLookup(map[string]string{"SQLSCOUT_SCHEMA_NAMES": " , "}))
	if err == nil {
		t.Fatal("expected error for empty schema list")
	}
}
