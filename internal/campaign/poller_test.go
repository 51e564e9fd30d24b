package campaign_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/sms-campaign/internal/campaign"
	"github.com/example/sms-campaign/internal/models"
	smsprovider "github.com/example/sms-campaign/internal/providers/sms"
)

func newTestPoller(t *testing.T, stub *providerStub, attempts int, sleeps *int) *campaign.Poller {
	t.Helper()
	sleep := func(ctx context.Context, d time.Duration) bool {
		if sleeps != nil {
			*sleeps++
		}
		return true
	}
	poller, err := campaign.NewPoller(stub, attempts, 2*time.Second, zerolog.New(io.Discard), sleep)
	if err != nil {
		t.Fatalf("unexpected poller error: %v", err)
	}
	return poller
}

func TestPollerStopsAtDelivered(t *testing.T) {
	stub := newProviderStub()
	stub.statusSeq["M1"] = []smsprovider.Status{
		smsprovider.StatusQueued,
		smsprovider.StatusQueued,
		smsprovider.StatusDelivered,
	}

	sleeps := 0
	poller := newTestPoller(t, stub, 10, &sleeps)

	outcome := poller.Track(context.Background(), "M1")
	if outcome != models.DeliveryDelivered {
		t.Fatalf("expected delivered, got %s", outcome)
	}
	if got := stub.fetches("M1"); got != 3 {
		t.Fatalf("expected exactly 3 status fetches, got %d", got)
	}
	if sleeps != 2 {
		t.Fatalf("expected 2 waits, got %d", sleeps)
	}
}

func TestPollerStopsAtFailure(t *testing.T) {
	for _, status := range []smsprovider.Status{smsprovider.StatusFailed, smsprovider.StatusUndelivered} {
		stub := newProviderStub()
		stub.statusSeq["M2"] = []smsprovider.Status{status}

		poller := newTestPoller(t, stub, 10, nil)
		outcome := poller.Track(context.Background(), "M2")
		if outcome != models.DeliveryFailed {
			t.Fatalf("status %s: expected failed outcome, got %s", status, outcome)
		}
		if got := stub.fetches("M2"); got != 1 {
			t.Fatalf("status %s: expected 1 fetch, got %d", status, got)
		}
	}
}

func TestPollerExhaustsBudget(t *testing.T) {
	stub := newProviderStub()
	stub.statusSeq["M3"] = []smsprovider.Status{smsprovider.StatusQueued}

	sleeps := 0
	poller := newTestPoller(t, stub, 10, &sleeps)

	outcome := poller.Track(context.Background(), "M3")
	if outcome != models.DeliveryUnknown {
		t.Fatalf("expected unknown, got %s", outcome)
	}
	if got := stub.fetches("M3"); got != 10 {
		t.Fatalf("expected exactly 10 fetches, got %d", got)
	}
	if sleeps != 9 {
		t.Fatalf("expected 9 waits between 10 attempts, got %d", sleeps)
	}
}

func TestPollerAbandonsOnFetchError(t *testing.T) {
	stub := newProviderStub()
	stub.statusErr["M4"] = errors.New("connection reset")

	poller := newTestPoller(t, stub, 10, nil)
	outcome := poller.Track(context.Background(), "M4")
	if outcome != models.DeliveryUnknown {
		t.Fatalf("expected unknown, got %s", outcome)
	}
	if got := stub.fetches("M4"); got != 1 {
		t.Fatalf("expected 1 fetch before abandoning, got %d", got)
	}
}

func TestPollerCancelledWait(t *testing.T) {
	stub := newProviderStub()
	stub.statusSeq["M5"] = []smsprovider.Status{smsprovider.StatusQueued}

	sleep := func(ctx context.Context, d time.Duration) bool { return false }
	poller, err := campaign.NewPoller(stub, 10, 2*time.Second, zerolog.New(io.Discard), sleep)
	if err != nil {
		t.Fatalf("unexpected poller error: %v", err)
	}

	outcome := poller.Track(context.Background(), "M5")
	if outcome != models.DeliveryUnknown {
		t.Fatalf("expected unknown after cancelled wait, got %s", outcome)
	}
	if got := stub.fetches("M5"); got != 1 {
		t.Fatalf("expected polling to stop after cancelled wait, got %d fetches", got)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if campaign.Wait(ctx, time.Second) {
		t.Fatalf("expected wait to report cancellation")
	}
	if !campaign.Wait(context.Background(), 0) {
		t.Fatalf("expected zero wait to complete")
	}
}
