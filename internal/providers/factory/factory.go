package factory

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/sms-campaign/internal/config"
	smsprovider "github.com/example/sms-campaign/internal/providers/sms"
)

// SMS constructs the configured SMS provider. Supports Twilio and mock backends.
func SMS(cfg config.ProviderConfig, logger zerolog.Logger) (smsprovider.Provider, error) {
	backend := normalize(cfg.Backend, "twilio")
	switch backend {
	case "twilio":
		provider, err := smsprovider.NewTwilioProvider(cfg.Twilio, logger)
		if err != nil {
			return nil, fmt.Errorf("factory: twilio sms provider init: %w", err)
		}
		logger.Info().
			Str("backend", "twilio").
			Msg("sms provider initialised")
		return provider, nil
	case "mock":
		provider := smsprovider.NewMockProvider(logger)
		logger.Info().
			Str("backend", "mock").
			Msg("sms provider initialised")
		return provider, nil
	default:
		return nil, fmt.Errorf("factory: unsupported sms provider backend %q", cfg.Backend)
	}
}

func normalize(value, def string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return def
	}
	return value
}
