package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
	StdoutTraces bool   `yaml:"stdout_traces"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName    string               `yaml:"runtime_name"`
	Environment    string               `yaml:"environment"`
	HTTP           HTTPConfig           `yaml:"http"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	Bus            BusConfig            `yaml:"bus"`
	EventStore     EventStoreConfig     `yaml:"event_store"`
	Recognizer     RecognizerConfig     `yaml:"recognizer"`
	Permissions    PermissionsConfig    `yaml:"permissions"`
	Classification ClassificationConfig `yaml:"classification"`
	Sentiment      SentimentConfig      `yaml:"sentiment"`
	Export         ExportConfig         `yaml:"export"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type RecognizerConfig struct {
	Mode           string   `yaml:"mode"` // bus, mock
	Locale         string   `yaml:"locale"`
	MockPartials   []string `yaml:"mock_partials"`
	MockIntervalMS int      `yaml:"mock_interval_ms"`
	ControlSubject string   `yaml:"control_subject"`
	PartialSubject string   `yaml:"partial_subject"`
	FinalSubject   string   `yaml:"final_subject"`
	ErrorSubject   string   `yaml:"error_subject"`
}

type PermissionsConfig struct {
	Mode              string `yaml:"mode"` // bus, static
	Speech            string `yaml:"speech"`
	Microphone        string `yaml:"microphone"`
	SpeechSubject     string `yaml:"speech_subject"`
	MicrophoneSubject string `yaml:"microphone_subject"`
}

type ClassificationConfig struct {
	BuiltinCategories []string `yaml:"builtin_categories"`
	FallbackCategory  string   `yaml:"fallback_category"`
}

type SentimentConfig struct {
	Mode      string `yaml:"mode"` // lexicon, exec, ollama, none
	Command   string `yaml:"command"`
	Endpoint  string `yaml:"endpoint"`
	Model     string `yaml:"model"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type ExportConfig struct {
	KafkaEnabled bool     `yaml:"kafka_enabled"`
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic"`
	Principal    string   `yaml:"principal"`
}

func Default() Config {
	return Config{
		RuntimeName: "voxi-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/voxi-journal.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Recognizer: RecognizerConfig{
			Mode:           "bus",
			Locale:         "es-ES",
			MockIntervalMS: 400,
			ControlSubject: "stt.control",
			PartialSubject: "stt.text.partial",
			FinalSubject:   "stt.text.final",
			ErrorSubject:   "stt.error",
		},
		Permissions: PermissionsConfig{
			Mode:              "bus",
			Speech:            "granted",
			Microphone:        "granted",
			SpeechSubject:     "permission.query.speech",
			MicrophoneSubject: "permission.query.microphone",
		},
		Classification: ClassificationConfig{
			BuiltinCategories: []string{"Trabajo", "Personal", "Salud", "Finanzas", "Educación"},
			FallbackCategory:  "Sin categoría",
		},
		Sentiment: SentimentConfig{
			Mode:      "lexicon",
			Endpoint:  "http://localhost:11434",
			Model:     "llama3.2:latest",
			TimeoutMS: 5000,
		},
		Export: ExportConfig{
			KafkaEnabled: false,
			Brokers:      []string{"localhost:9092"},
			Topic:        "voxi.notes",
			Principal:    "voxi-runtime",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "VOXI_RUNTIME_NAME")
	overrideString(&cfg.Environment, "VOXI_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "VOXI_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VOXI_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "VOXI_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VOXI_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VOXI_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Telemetry.StdoutTraces, "VOXI_TELEMETRY_STDOUT_TRACES")
	overrideBool(&cfg.Bus.Embedded, "VOXI_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "VOXI_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "VOXI_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VOXI_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VOXI_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VOXI_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VOXI_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VOXI_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "VOXI_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "VOXI_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "VOXI_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "VOXI_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "VOXI_EVENT_STORE_VACUUM_ON_START")
	overrideString(&cfg.Recognizer.Mode, "VOXI_RECOGNIZER_MODE")
	overrideString(&cfg.Recognizer.Locale, "VOXI_RECOGNIZER_LOCALE")
	overrideStringSlice(&cfg.Recognizer.MockPartials, "VOXI_RECOGNIZER_MOCK_PARTIALS")
	overrideInt(&cfg.Recognizer.MockIntervalMS, "VOXI_RECOGNIZER_MOCK_INTERVAL_MS")
	overrideString(&cfg.Permissions.Mode, "VOXI_PERMISSIONS_MODE")
	overrideString(&cfg.Permissions.Speech, "VOXI_PERMISSIONS_SPEECH")
	overrideString(&cfg.Permissions.Microphone, "VOXI_PERMISSIONS_MICROPHONE")
	overrideStringSlice(&cfg.Classification.BuiltinCategories, "VOXI_CLASSIFICATION_BUILTIN_CATEGORIES")
	overrideString(&cfg.Classification.FallbackCategory, "VOXI_CLASSIFICATION_FALLBACK_CATEGORY")
	overrideString(&cfg.Sentiment.Mode, "VOXI_SENTIMENT_MODE")
	overrideString(&cfg.Sentiment.Command, "VOXI_SENTIMENT_COMMAND")
	overrideString(&cfg.Sentiment.Endpoint, "VOXI_SENTIMENT_ENDPOINT")
	overrideString(&cfg.Sentiment.Model, "VOXI_SENTIMENT_MODEL")
	overrideInt(&cfg.Sentiment.TimeoutMS, "VOXI_SENTIMENT_TIMEOUT_MS")
	overrideBool(&cfg.Export.KafkaEnabled, "VOXI_EXPORT_KAFKA_ENABLED")
	overrideStringSlice(&cfg.Export.Brokers, "VOXI_EXPORT_BROKERS")
	overrideString(&cfg.Export.Topic, "VOXI_EXPORT_TOPIC")
	overrideString(&cfg.Export.Principal, "VOXI_EXPORT_PRINCIPAL")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	switch strings.ToLower(cfg.Telemetry.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.New("telemetry.log_level must be one of debug|info|warn|error")
	}
	switch cfg.Recognizer.Mode {
	case "bus", "mock":
	default:
		return errors.New("recognizer.mode must be one of bus|mock")
	}
	if cfg.Recognizer.Locale == "" {
		return errors.New("recognizer.locale must not be empty")
	}
	if cfg.Recognizer.Mode == "mock" && cfg.Recognizer.MockIntervalMS <= 0 {
		return errors.New("recognizer.mock_interval_ms must be positive when mode=mock")
	}
	if cfg.Recognizer.Mode == "bus" {
		if cfg.Recognizer.ControlSubject == "" || cfg.Recognizer.PartialSubject == "" ||
			cfg.Recognizer.FinalSubject == "" || cfg.Recognizer.ErrorSubject == "" {
			return errors.New("recognizer subjects must be set when mode=bus")
		}
	}
	switch cfg.Permissions.Mode {
	case "bus":
		if cfg.Permissions.SpeechSubject == "" || cfg.Permissions.MicrophoneSubject == "" {
			return errors.New("permissions subjects must be set when mode=bus")
		}
	case "static":
	default:
		return errors.New("permissions.mode must be one of bus|static")
	}
	if strings.TrimSpace(cfg.Classification.FallbackCategory) == "" {
		return errors.New("classification.fallback_category must not be empty")
	}
	switch cfg.Sentiment.Mode {
	case "lexicon", "none":
	case "exec":
		if cfg.Sentiment.Command == "" {
			return errors.New("sentiment.command must be set when mode=exec")
		}
	case "ollama":
		if cfg.Sentiment.Endpoint == "" {
			return errors.New("sentiment.endpoint must be set when mode=ollama")
		}
	default:
		return errors.New("sentiment.mode must be one of lexicon|exec|ollama|none")
	}
	if cfg.Sentiment.TimeoutMS < 0 {
		return errors.New("sentiment.timeout_ms must be >= 0")
	}
	if cfg.Export.KafkaEnabled {
		if len(cfg.Export.Brokers) == 0 {
			return errors.New("export.brokers must not be empty when kafka export is enabled")
		}
		if cfg.Export.Topic == "" {
			return errors.New("export.topic must not be empty when kafka export is enabled")
		}
	}
	return nil
}
