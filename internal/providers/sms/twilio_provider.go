package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/sms-campaign/internal/config"
)

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TwilioOption customises the behaviour of the Twilio SMS provider.
type TwilioOption func(*TwilioProvider)

// WithTwilioHTTPClient overrides the HTTP client used to talk to Twilio.
func WithTwilioHTTPClient(client HTTPClient) TwilioOption {
	return func(p *TwilioProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithTwilioBaseURL sets the base Twilio API URL. Useful for tests.
func WithTwilioBaseURL(baseURL string) TwilioOption {
	return func(p *TwilioProvider) {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTwilioClock overrides the clock used for timestamps.
func WithTwilioClock(now func() time.Time) TwilioOption {
	return func(p *TwilioProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithTwilioBodyLimit adjusts how many bytes are retained from the HTTP response body.
func WithTwilioBodyLimit(limit int64) TwilioOption {
	return func(p *TwilioProvider) {
		if limit > 0 {
			p.maxBodyBytes = limit
		}
	}
}

// TwilioProvider implements the Provider interface using Twilio's REST API.
type TwilioProvider struct {
	logger       zerolog.Logger
	accountSID   string
	authToken    string
	defaultFrom  string
	httpClient   HTTPClient
	baseURL      string
	now          func() time.Time
	maxBodyBytes int64
}

// NewTwilioProvider constructs a Twilio-backed SMS provider.
func NewTwilioProvider(cfg config.TwilioConfig, logger zerolog.Logger, opts ...TwilioOption) (*TwilioProvider, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" {
		return nil, fmt.Errorf("%w: account SID is required", ErrMissingCredentials)
	}
	if strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, fmt.Errorf("%w: auth token is required", ErrMissingCredentials)
	}
	if strings.TrimSpace(cfg.PhoneNumber) == "" {
		return nil, fmt.Errorf("%w: sender phone number is required", ErrMissingCredentials)
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	provider := &TwilioProvider{
		logger:       logger,
		accountSID:   strings.TrimSpace(cfg.AccountSID),
		authToken:    strings.TrimSpace(cfg.AuthToken),
		defaultFrom:  strings.TrimSpace(cfg.PhoneNumber),
		baseURL:      "https://api.twilio.com/2010-04-01",
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		now:          time.Now,
		maxBodyBytes: 16 * 1024,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}

	if provider.httpClient == nil {
		provider.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if provider.maxBodyBytes <= 0 {
		provider.maxBodyBytes = 16 * 1024
	}
	if provider.baseURL == "" {
		provider.baseURL = "https://api.twilio.com/2010-04-01"
	}

	return provider, nil
}

// Send delivers a single SMS payload via Twilio.
func (p *TwilioProvider) Send(ctx context.Context, payload *Payload) (*RawResponse, error) {
	if payload == nil {
		return nil, errors.New("twilio sms provider: payload is required")
	}
	if strings.TrimSpace(payload.To) == "" {
		return nil, errors.New("twilio sms provider: recipient is required")
	}

	from := strings.TrimSpace(payload.From)
	if from == "" {
		from = p.defaultFrom
	}
	if from == "" {
		return nil, errors.New("twilio sms provider: from number is required")
	}

	params := url.Values{}
	params.Set("To", strings.TrimSpace(payload.To))
	params.Set("From", from)
	if strings.TrimSpace(payload.Body) != "" {
		params.Set("Body", payload.Body)
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", p.baseURL, url.PathEscape(p.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("twilio sms provider: new request: %w", err)
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twilio sms provider: http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := p.readBody(resp.Body)
	if err != nil {
		return nil, err
	}

	parsed := parseTwilioBody(body)
	raw := &RawResponse{
		ID:        parsed.SID,
		Code:      resp.StatusCode,
		Status:    ParseStatus(parsed.Status),
		Body:      body,
		Timestamp: p.now(),
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if raw.ID == "" {
			return raw, errors.New("twilio sms provider: response missing message sid")
		}
		return raw, nil
	}

	return raw, twilioHTTPError(resp.StatusCode, parsed, body)
}

// FetchStatus retrieves the current delivery status of a previously sent message.
func (p *TwilioProvider) FetchStatus(ctx context.Context, messageID string) (Status, error) {
	if strings.TrimSpace(messageID) == "" {
		return StatusUnknown, errors.New("twilio sms provider: message id is required")
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages/%s.json",
		p.baseURL, url.PathEscape(p.accountSID), url.PathEscape(strings.TrimSpace(messageID)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return StatusUnknown, fmt.Errorf("twilio sms provider: new request: %w", err)
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return StatusUnknown, fmt.Errorf("twilio sms provider: http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := p.readBody(resp.Body)
	if err != nil {
		return StatusUnknown, err
	}

	parsed := parseTwilioBody(body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return ParseStatus(parsed.Status), nil
	}

	return StatusUnknown, twilioHTTPError(resp.StatusCode, parsed, body)
}

// VerifyCredentials fetches the configured account resource to confirm the
// credentials are valid before any message is sent.
func (p *TwilioProvider) VerifyCredentials(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s.json", p.baseURL, url.PathEscape(p.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("twilio sms provider: new request: %w", err)
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio sms provider: http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := p.readBody(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		p.logger.Debug().Str("account_sid", p.accountSID).Msg("twilio credentials verified")
		return nil
	}

	parsed := parseTwilioBody(body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %v", ErrAuthRejected, twilioHTTPError(resp.StatusCode, parsed, body))
	}
	return twilioHTTPError(resp.StatusCode, parsed, body)
}

func (p *TwilioProvider) readBody(rc io.ReadCloser) (string, error) {
	if rc == nil {
		return "", nil
	}

	limit := p.maxBodyBytes
	if limit <= 0 {
		limit = 16 * 1024
	}

	reader := io.LimitReader(rc, limit)
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("twilio sms provider: read body: %w", err)
	}
	return string(data), nil
}

type twilioBody struct {
	SID       string `json:"sid"`
	Status    string `json:"status"`
	ErrorCode int    `json:"code"`
	Message   string `json:"message"`
}

func parseTwilioBody(body string) twilioBody {
	if strings.TrimSpace(body) == "" {
		return twilioBody{}
	}

	var parsed twilioBody
	if err := json.Unmarshal([]byte(body), &parsed); err == nil {
		return parsed
	}

	var generic map[string]any
	if err := json.Unmarshal([]byte(body), &generic); err != nil {
		return twilioBody{}
	}

	result := twilioBody{}
	if v, ok := generic["sid"].(string); ok {
		result.SID = v
	}
	if v, ok := generic["status"].(string); ok {
		result.Status = v
	}
	if v, ok := generic["code"]; ok {
		switch value := v.(type) {
		case float64:
			result.ErrorCode = int(value)
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				result.ErrorCode = n
			}
		}
	}
	if v, ok := generic["message"].(string); ok {
		result.Message = v
	}
	return result
}

func twilioHTTPError(statusCode int, parsed twilioBody, body string) error {
	message := parsed.Message
	if message == "" {
		message = strings.TrimSpace(body)
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}

	if parsed.ErrorCode > 0 {
		return fmt.Errorf("twilio sms provider: error %d: %s", parsed.ErrorCode, message)
	}
	return fmt.Errorf("twilio sms provider: http %d: %s", statusCode, message)
}
