package sms_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/sms-campaign/internal/config"
	sms "github.com/example/sms-campaign/internal/providers/sms"
)

type fakeHTTPClient struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
	respond  func(req *http.Request) (*http.Response, error)
}

func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		body = string(data)
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()
	return f.respond(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func twilioTestConfig() config.TwilioConfig {
	return config.TwilioConfig{
		AccountSID:  "AC123",
		AuthToken:   "token",
		PhoneNumber: "+15550000000",
	}
}

func newTestTwilio(t *testing.T, client *fakeHTTPClient) *sms.TwilioProvider {
	t.Helper()
	provider, err := sms.NewTwilioProvider(twilioTestConfig(), zerolog.New(io.Discard),
		sms.WithTwilioHTTPClient(client),
		sms.WithTwilioBaseURL("https://twilio.test/2010-04-01"),
	)
	if err != nil {
		t.Fatalf("unexpected provider error: %v", err)
	}
	return provider
}

func TestNewTwilioProviderRequiresCredentials(t *testing.T) {
	cases := []config.TwilioConfig{
		{AuthToken: "t", PhoneNumber: "+1"},
		{AccountSID: "AC", PhoneNumber: "+1"},
		{AccountSID: "AC", AuthToken: "t"},
	}
	for i, cfg := range cases {
		_, err := sms.NewTwilioProvider(cfg, zerolog.New(io.Discard))
		if !errors.Is(err, sms.ErrMissingCredentials) {
			t.Fatalf("case %d: expected ErrMissingCredentials, got %v", i, err)
		}
	}
}

func TestTwilioSendSuccess(t *testing.T) {
	client := &fakeHTTPClient{
		respond: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(201, `{"sid":"SM123","status":"queued"}`), nil
		},
	}
	provider := newTestTwilio(t, client)

	resp, err := provider.Send(context.Background(), &sms.Payload{
		To:   "+15551234567",
		Body: "Hi Alice!",
	})
	if err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if resp.ID != "SM123" {
		t.Fatalf("expected sid SM123, got %q", resp.ID)
	}
	if resp.Status != sms.StatusQueued {
		t.Fatalf("unexpected status: %s", resp.Status)
	}

	req := client.requests[0]
	if req.Method != http.MethodPost {
		t.Fatalf("expected POST, got %s", req.Method)
	}
	if req.URL.Path != "/2010-04-01/Accounts/AC123/Messages.json" {
		t.Fatalf("unexpected path: %s", req.URL.Path)
	}
	user, pass, ok := req.BasicAuth()
	if !ok || user != "AC123" || pass != "token" {
		t.Fatalf("expected basic auth with account credentials")
	}

	form := client.bodies[0]
	for _, want := range []string{"To=%2B15551234567", "From=%2B15550000000", "Body=Hi+Alice%21"} {
		if !strings.Contains(form, want) {
			t.Fatalf("form body %q missing %q", form, want)
		}
	}
}

func TestTwilioSendErrorResponse(t *testing.T) {
	client := &fakeHTTPClient{
		respond: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(400, `{"code":21211,"message":"invalid 'To' number"}`), nil
		},
	}
	provider := newTestTwilio(t, client)

	_, err := provider.Send(context.Background(), &sms.Payload{To: "+1", Body: "hi"})
	if err == nil {
		t.Fatalf("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "21211") {
		t.Fatalf("expected twilio error code in message, got %v", err)
	}
}

func TestTwilioSendMissingSID(t *testing.T) {
	client := &fakeHTTPClient{
		respond: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(201, `{"status":"queued"}`), nil
		},
	}
	provider := newTestTwilio(t, client)

	_, err := provider.Send(context.Background(), &sms.Payload{To: "+1", Body: "hi"})
	if err == nil || !strings.Contains(err.Error(), "missing message sid") {
		t.Fatalf("expected missing sid error, got %v", err)
	}
}

func TestTwilioFetchStatus(t *testing.T) {
	client := &fakeHTTPClient{
		respond: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(200, `{"sid":"SM123","status":"delivered"}`), nil
		},
	}
	provider := newTestTwilio(t, client)

	status, err := provider.FetchStatus(context.Background(), "SM123")
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if status != sms.StatusDelivered {
		t.Fatalf("expected delivered, got %s", status)
	}

	req := client.requests[0]
	if req.Method != http.MethodGet {
		t.Fatalf("expected GET, got %s", req.Method)
	}
	if req.URL.Path != "/2010-04-01/Accounts/AC123/Messages/SM123.json" {
		t.Fatalf("unexpected path: %s", req.URL.Path)
	}
}

func TestTwilioFetchStatusTransportError(t *testing.T) {
	client := &fakeHTTPClient{
		respond: func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		},
	}
	provider := newTestTwilio(t, client)

	status, err := provider.FetchStatus(context.Background(), "SM123")
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if status != sms.StatusUnknown {
		t.Fatalf("expected unknown status on error, got %s", status)
	}
}

func TestTwilioVerifyCredentials(t *testing.T) {
	client := &fakeHTTPClient{
		respond: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(200, `{"sid":"AC123","status":"active"}`), nil
		},
	}
	provider := newTestTwilio(t, client)

	if err := provider.VerifyCredentials(context.Background()); err != nil {
		t.Fatalf("unexpected verify error: %v", err)
	}
	if client.requests[0].URL.Path != "/2010-04-01/Accounts/AC123.json" {
		t.Fatalf("unexpected path: %s", client.requests[0].URL.Path)
	}
}

func TestTwilioVerifyCredentialsRejected(t *testing.T) {
	client := &fakeHTTPClient{
		respond: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(401, `{"code":20003,"message":"Authenticate"}`), nil
		},
	}
	provider := newTestTwilio(t, client)

	err := provider.VerifyCredentials(context.Background())
	if !errors.Is(err, sms.ErrAuthRejected) {
		t.Fatalf("expected ErrAuthRejected, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]sms.Status{
		"Delivered":   sms.StatusDelivered,
		" queued ":    sms.StatusQueued,
		"UNDELIVERED": sms.StatusUndelivered,
		"":            sms.StatusUnknown,
	}
	for raw, want := range cases {
		if got := sms.ParseStatus(raw); got != want {
			t.Errorf("ParseStatus(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []sms.Status{sms.StatusDelivered, sms.StatusFailed, sms.StatusUndelivered}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []sms.Status{sms.StatusQueued, sms.StatusSending, sms.StatusSent, sms.StatusUnknown} {
		if s.Terminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}
