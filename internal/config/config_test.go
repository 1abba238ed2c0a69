package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Recognizer.Locale != "es-ES" {
		t.Fatalf("expected es-ES locale, got %q", cfg.Recognizer.Locale)
	}
	if cfg.Classification.FallbackCategory != "Sin categoría" {
		t.Fatalf("unexpected fallback %q", cfg.Classification.FallbackCategory)
	}
	if len(cfg.Classification.BuiltinCategories) != 5 {
		t.Fatalf("expected 5 built-in categories, got %v", cfg.Classification.BuiltinCategories)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxi.yaml")
	data := []byte(`
runtime_name: voxi-test
recognizer:
  mode: mock
  mock_partials: ["hola", "hola mundo"]
permissions:
  mode: static
  microphone: denied
sentiment:
  mode: none
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RuntimeName != "voxi-test" || cfg.Recognizer.Mode != "mock" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if len(cfg.Recognizer.MockPartials) != 2 {
		t.Fatalf("expected 2 mock partials, got %v", cfg.Recognizer.MockPartials)
	}
	if cfg.Permissions.Microphone != "denied" || cfg.Permissions.Speech != "granted" {
		t.Fatalf("unexpected permissions %+v", cfg.Permissions)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VOXI_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("VOXI_BUS_USERNAME", "alice")
	t.Setenv("VOXI_BUS_PASSWORD", "secret")
	t.Setenv("VOXI_BUS_TLS_INSECURE", "true")
	t.Setenv("VOXI_BUS_CONNECT_TIMEOUT_MS", "5000")
	t.Setenv("VOXI_EVENT_STORE_PATH", "./tmp.db")
	t.Setenv("VOXI_EVENT_STORE_RETENTION_MODE", "persistent")
	t.Setenv("VOXI_EVENT_STORE_RETENTION_DAYS", "7")
	t.Setenv("VOXI_EVENT_STORE_MAX_SESSIONS", "123")
	t.Setenv("VOXI_EVENT_STORE_VACUUM_ON_START", "true")
	t.Setenv("VOXI_RECOGNIZER_LOCALE", "es-MX")
	t.Setenv("VOXI_PERMISSIONS_MODE", "static")
	t.Setenv("VOXI_CLASSIFICATION_BUILTIN_CATEGORIES", "Casa, Oficina")
	t.Setenv("VOXI_SENTIMENT_MODE", "exec")
	t.Setenv("VOXI_SENTIMENT_COMMAND", "python3 score.py")
	t.Setenv("VOXI_EXPORT_KAFKA_ENABLED", "true")
	t.Setenv("VOXI_EXPORT_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if !cfg.Bus.TLSInsecure {
		t.Fatal("expected tls insecure override true")
	}
	if cfg.Bus.ConnectTimeout != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Bus.ConnectTimeout)
	}
	if cfg.EventStore.Path != "./tmp.db" {
		t.Fatalf("expected event store path override")
	}
	if cfg.EventStore.RetentionMode != "persistent" {
		t.Fatalf("expected event store retention mode override")
	}
	if cfg.EventStore.RetentionDays != 7 {
		t.Fatalf("expected event store retention days override")
	}
	if cfg.EventStore.MaxSessions != 123 {
		t.Fatalf("expected event store max sessions override")
	}
	if !cfg.EventStore.VacuumOnStart {
		t.Fatalf("expected event store vacuum flag override")
	}
	if cfg.Recognizer.Locale != "es-MX" {
		t.Fatalf("expected locale override")
	}
	if cfg.Permissions.Mode != "static" {
		t.Fatalf("expected permissions mode override")
	}
	if len(cfg.Classification.BuiltinCategories) != 2 || cfg.Classification.BuiltinCategories[1] != "Oficina" {
		t.Fatalf("unexpected categories %v", cfg.Classification.BuiltinCategories)
	}
	if cfg.Sentiment.Mode != "exec" || cfg.Sentiment.Command != "python3 score.py" {
		t.Fatalf("expected sentiment override, got %+v", cfg.Sentiment)
	}
	if !cfg.Export.KafkaEnabled || len(cfg.Export.Brokers) != 2 {
		t.Fatalf("expected kafka export override, got %+v", cfg.Export)
	}
}

func TestValidateRejectsBadModes(t *testing.T) {
	cases := map[string]string{
		"VOXI_RECOGNIZER_MODE":     "whisper",
		"VOXI_PERMISSIONS_MODE":    "prompt",
		"VOXI_SENTIMENT_MODE":      "magic",
		"VOXI_TELEMETRY_LOG_LEVEL": "chatty",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(""); err == nil {
				t.Fatalf("expected validation error for %s=%s", key, value)
			}
		})
	}
}

func TestValidateExecNeedsCommand(t *testing.T) {
	t.Setenv("VOXI_SENTIMENT_MODE", "exec")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error when exec mode has no command")
	}
}
