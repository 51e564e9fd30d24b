package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration for the campaign worker.
type Config struct {
	App       AppConfig
	Engine    EngineConfig
	Providers ProviderConfig
	Kafka     KafkaConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env          string
	LogLevel     string
	AuditLogFile string
}

// EngineConfig controls dispatch concurrency and status polling behaviour.
// The values are exposed as configuration rather than hardcoded so tests can
// run with compressed timings.
type EngineConfig struct {
	WorkerConcurrency int
	PollMaxAttempts   int
	PollDelaySeconds  int
}

// TwilioConfig stores Twilio credentials for SMS delivery. Credentials are
// supplied once per run and never persisted by the engine.
type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
}

// ProviderConfig wraps configuration for the outbound SMS provider.
type ProviderConfig struct {
	Backend string
	Twilio  TwilioConfig
}

// KafkaConfig describes the optional campaign status event stream. When no
// brokers are configured the worker runs without Kafka entirely.
type KafkaConfig struct {
	Brokers     []string
	StatusTopic string
}

// Enabled reports whether status events should be published to Kafka.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)
	cfg.App.AuditLogFile = ldr.getString("AUDIT_LOG_FILE", "", false)

	cfg.Engine.WorkerConcurrency = ldr.getInt("WORKER_CONCURRENCY", 5, false)
	cfg.Engine.PollMaxAttempts = ldr.getInt("POLL_MAX_ATTEMPTS", 10, false)
	cfg.Engine.PollDelaySeconds = ldr.getInt("POLL_DELAY_SECONDS", 2, false)

	cfg.Providers.Backend = ldr.getString("SMS_PROVIDER", "twilio", false)

	twilioRequired := strings.EqualFold(strings.TrimSpace(cfg.Providers.Backend), "twilio")
	cfg.Providers.Twilio.AccountSID = ldr.getString("TWILIO_ACCOUNT_SID", "", twilioRequired)
	cfg.Providers.Twilio.AuthToken = ldr.getString("TWILIO_AUTH_TOKEN", "", twilioRequired)
	cfg.Providers.Twilio.PhoneNumber = ldr.getString("TWILIO_PHONE_NUMBER", "", twilioRequired)

	cfg.Kafka.Brokers = ldr.getStringSlice("KAFKA_BROKERS", false)
	cfg.Kafka.StatusTopic = ldr.getString("KAFKA_STATUS_TOPIC", "", false)

	if cfg.Engine.WorkerConcurrency < 1 {
		ldr.addError("WORKER_CONCURRENCY must be >= 1")
	}
	if cfg.Engine.PollMaxAttempts < 1 {
		ldr.addError("POLL_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.Engine.PollDelaySeconds < 0 {
		ldr.addError("POLL_DELAY_SECONDS cannot be negative")
	}
	if cfg.Kafka.Enabled() && cfg.Kafka.StatusTopic == "" {
		ldr.addError("KAFKA_STATUS_TOPIC is required when KAFKA_BROKERS is set")
	}

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid integer", key))
			return def
		}
		return i
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		if required {
			return nil
		}
		return []string{}
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
