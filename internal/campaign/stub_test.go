package campaign_test

import (
	"context"
	"sync"
	"time"

	smsprovider "github.com/example/sms-campaign/internal/providers/sms"
)

// providerStub is a scripted provider shared by the campaign tests. Message
// identifiers are derived from the recipient phone number so status scripts
// can be keyed ahead of time.
type providerStub struct {
	mu sync.Mutex

	sendErr   map[string]error
	sendDelay time.Duration

	statusSeq map[string][]smsprovider.Status
	statusErr map[string]error

	verifyErr error

	sendCalls   []string
	sendBodies  map[string]string
	fetchCalls  map[string]int
	inFlight    int
	maxInFlight int
}

func newProviderStub() *providerStub {
	return &providerStub{
		sendErr:    map[string]error{},
		statusSeq:  map[string][]smsprovider.Status{},
		statusErr:  map[string]error{},
		sendBodies: map[string]string{},
		fetchCalls: map[string]int{},
	}
}

func messageIDFor(phone string) string {
	return "SM-" + phone
}

func (s *providerStub) Send(ctx context.Context, payload *smsprovider.Payload) (*smsprovider.RawResponse, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.sendCalls = append(s.sendCalls, payload.To)
	s.sendBodies[payload.To] = payload.Body
	err := s.sendErr[payload.To]
	delay := s.sendDelay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &smsprovider.RawResponse{
		ID:        messageIDFor(payload.To),
		Code:      201,
		Status:    smsprovider.StatusQueued,
		Timestamp: time.Unix(0, 0),
	}, nil
}

func (s *providerStub) FetchStatus(ctx context.Context, messageID string) (smsprovider.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.fetchCalls[messageID]
	s.fetchCalls[messageID] = idx + 1

	if err := s.statusErr[messageID]; err != nil {
		return smsprovider.StatusUnknown, err
	}

	seq := s.statusSeq[messageID]
	if len(seq) == 0 {
		return smsprovider.StatusDelivered, nil
	}
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	return seq[idx], nil
}

func (s *providerStub) VerifyCredentials(ctx context.Context) error {
	return s.verifyErr
}

func (s *providerStub) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sendCalls...)
}

func (s *providerStub) fetches(messageID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls[messageID]
}

func (s *providerStub) body(phone string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendBodies[phone]
}
