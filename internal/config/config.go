package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvPort = "PORT"

	EnvMQTTBrokerHost  = "MQTT_BROKER_HOST"
	EnvMQTTBrokerPort  = "MQTT_BROKER_PORT"
	EnvMQTTClientID    = "MQTT_CLIENT_ID"
	EnvMQTTUsername    = "MQTT_USERNAME"
	EnvMQTTPassword    = "MQTT_PASSWORD"
	EnvMQTTTopicPrefix = "MQTT_TOPIC_PREFIX"
	EnvMQTTTLSEnabled  = "MQTT_TLS_ENABLED"
	EnvMQTTCACert      = "MQTT_CA_CERT"
	EnvMQTTClientCert  = "MQTT_CLIENT_CERT"
	EnvMQTTClientKey   = "MQTT_CLIENT_KEY"
	EnvMQTTTLSInsecure = "MQTT_TLS_INSECURE"

	EnvStatusCheckIntervalSec = "DEVICE_STATUS_CHECK_INTERVAL_SECONDS"
	EnvOfflineTimeoutMin      = "DEVICE_OFFLINE_TIMEOUT_MINUTES"

	EnvStorageBackend = "STORAGE_BACKEND"
	EnvMongoURI       = "MONGODB_URI"
	EnvMongoDatabase  = "MONGODB_DATABASE"
	EnvSeedFile       = "SEED_FILE"
	EnvJWTSecret      = "JWT_SECRET"
	EnvLogDevelopment = "LOG_DEVELOPMENT"

	// EnvTerminalLanguage selects the language of messages shown on terminal screens
	EnvTerminalLanguage = "TERMINAL_LANGUAGE"

	StorageMemory = "memory"
	StorageMongo  = "mongo"

	LanguageEnglish = "en"
	LanguageFrench  = "fr"

	MinPortNumber = 1
	MaxPortNumber = 65535
)

// MQTTConfig holds the broker connection settings
type MQTTConfig struct {
	BrokerHost  string
	BrokerPort  int
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	TLS         TLSConfig
}

// TLSConfig holds the broker TLS settings. Paths are PEM files.
type TLSConfig struct {
	Enabled    bool
	CACert     string
	ClientCert string
	ClientKey  string
	Insecure   bool
}

// LivenessConfig controls the offline sweep
type LivenessConfig struct {
	CheckInterval  time.Duration
	OfflineTimeout time.Duration
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Backend       string
	MongoURI      string
	MongoDatabase string
	// SeedFile optionally preloads the memory backend with devices and employees
	SeedFile string
}

// Config holds gateway runtime configuration loaded from environment variables.
type Config struct {
	Port           int
	MQTT           MQTTConfig
	Liveness       LivenessConfig
	Storage        StorageConfig
	JWTSecret      string
	LogDevelopment bool
	// TerminalLanguage is LanguageEnglish or LanguageFrench
	TerminalLanguage string
}

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads and validates configuration from environment variables.
func LoadFromEnv() (Config, error) {
	env := &envReader{}
	cfg := Config{
		Port: env.int(EnvPort, 8080),
		MQTT: MQTTConfig{
			BrokerHost:  envOrDefault(EnvMQTTBrokerHost, "localhost"),
			BrokerPort:  env.int(EnvMQTTBrokerPort, 1883),
			ClientID:    envOrDefault(EnvMQTTClientID, "terminal-gateway"),
			Username:    strings.TrimSpace(os.Getenv(EnvMQTTUsername)),
			Password:    os.Getenv(EnvMQTTPassword),
			TopicPrefix: envOrDefault(EnvMQTTTopicPrefix, "devices"),
			TLS: TLSConfig{
				Enabled:    env.bool(EnvMQTTTLSEnabled, false),
				CACert:     strings.TrimSpace(os.Getenv(EnvMQTTCACert)),
				ClientCert: strings.TrimSpace(os.Getenv(EnvMQTTClientCert)),
				ClientKey:  strings.TrimSpace(os.Getenv(EnvMQTTClientKey)),
				Insecure:   env.bool(EnvMQTTTLSInsecure, false),
			},
		},
		Liveness: LivenessConfig{
			CheckInterval:  time.Duration(env.int(EnvStatusCheckIntervalSec, 60)) * time.Second,
			OfflineTimeout: time.Duration(env.int(EnvOfflineTimeoutMin, 5)) * time.Minute,
		},
		Storage: StorageConfig{
			Backend:       strings.ToLower(envOrDefault(EnvStorageBackend, StorageMemory)),
			MongoURI:      envOrDefault(EnvMongoURI, "mongodb://localhost:27017"),
			MongoDatabase: envOrDefault(EnvMongoDatabase, "kuilinga"),
			SeedFile:      strings.TrimSpace(os.Getenv(EnvSeedFile)),
		},
		JWTSecret:        os.Getenv(EnvJWTSecret),
		LogDevelopment:   env.bool(EnvLogDevelopment, false),
		TerminalLanguage: strings.ToLower(envOrDefault(EnvTerminalLanguage, LanguageEnglish)),
	}

	if env.err != nil {
		return Config{}, env.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks that the configuration is coherent.
func (c Config) Validate() error {
	if c.Port < MinPortNumber || c.Port > MaxPortNumber {
		return fmt.Errorf("invalid %s: must be in range %d..%d", EnvPort, MinPortNumber, MaxPortNumber)
	}
	if c.MQTT.BrokerHost == "" {
		return fmt.Errorf("invalid %s: must not be empty", EnvMQTTBrokerHost)
	}
	if c.MQTT.BrokerPort < MinPortNumber || c.MQTT.BrokerPort > MaxPortNumber {
		return fmt.Errorf("invalid %s: must be in range %d..%d", EnvMQTTBrokerPort, MinPortNumber, MaxPortNumber)
	}
	if c.MQTT.ClientID == "" {
		return fmt.Errorf("invalid %s: must not be empty", EnvMQTTClientID)
	}
	if strings.ContainsAny(c.MQTT.TopicPrefix, "+#") {
		return fmt.Errorf("invalid %s: must not contain wildcards", EnvMQTTTopicPrefix)
	}
	if (c.MQTT.TLS.ClientCert == "") != (c.MQTT.TLS.ClientKey == "") {
		return fmt.Errorf("invalid config: %s and %s must be set together", EnvMQTTClientCert, EnvMQTTClientKey)
	}
	if c.Liveness.CheckInterval <= 0 {
		return fmt.Errorf("invalid %s: must be > 0", EnvStatusCheckIntervalSec)
	}
	if c.Liveness.OfflineTimeout <= 0 {
		return fmt.Errorf("invalid %s: must be > 0", EnvOfflineTimeoutMin)
	}
	switch c.Storage.Backend {
	case StorageMemory:
	case StorageMongo:
		if c.Storage.MongoURI == "" {
			return fmt.Errorf("invalid %s: required for the mongo backend", EnvMongoURI)
		}
	default:
		return fmt.Errorf("invalid %s: must be %q or %q", EnvStorageBackend, StorageMemory, StorageMongo)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("invalid %s: must not be empty", EnvJWTSecret)
	}
	switch c.TerminalLanguage {
	case LanguageEnglish, LanguageFrench:
	default:
		return fmt.Errorf("invalid %s: must be %q or %q", EnvTerminalLanguage, LanguageEnglish, LanguageFrench)
	}
	return nil
}

// BrokerURL returns the paho broker address, tcp:// or ssl:// depending on TLS.
func (m MQTTConfig) BrokerURL() string {
	scheme := "tcp"
	if m.TLS.Enabled {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, m.BrokerHost, m.BrokerPort)
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// envReader keeps the first unparsable variable so LoadFromEnv can report it
type envReader struct {
	err error
}

func (r *envReader) int(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(fmt.Errorf("invalid %s: %q is not an integer", key, v))
		return fallback
	}
	return n
}

func (r *envReader) bool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(fmt.Errorf("invalid %s: %q is not a boolean", key, v))
		return fallback
	}
	return b
}

func (r *envReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}
