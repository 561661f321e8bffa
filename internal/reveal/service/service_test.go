package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"correio/internal/platform/config"
	"correio/internal/relay"
	relaymemory "correio/internal/relay/store/memory"
	"correio/internal/reveal"
	revealmemory "correio/internal/reveal/store/memory"
	dErrors "correio/pkg/domain-errors"
	"correio/pkg/requestcontext"
)

type recordingTransport struct {
	mu  sync.Mutex
	dms map[string][]string
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{dms: make(map[string][]string)}
}

func (f *recordingTransport) Send(ctx context.Context, channelID, text string) (string, error) {
	return "cm-1", nil
}

func (f *recordingTransport) SendDM(ctx context.Context, userID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dms[userID] = append(f.dms[userID], text)
	return "dm-1", nil
}

func (f *recordingTransport) ResolveChannel(ctx context.Context, name string) (string, error) {
	return "chan-42", nil
}

func (f *recordingTransport) dmsFor(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dms[userID]...)
}

type recordingConfirmer struct {
	mu       sync.Mutex
	requests []*reveal.PaymentRequest
}

func (c *recordingConfirmer) RequestConfirmation(ctx context.Context, req *reveal.PaymentRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	return nil
}

func (c *recordingConfirmer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// flakyRelayStore fails a set number of AddReveal calls before delegating,
// standing in for a transient store outage mid-approval.
type flakyRelayStore struct {
	relay.Store
	failures int
}

func (f *flakyRelayStore) AddReveal(ctx context.Context, id, userID string) (bool, error) {
	if f.failures > 0 {
		f.failures--
		return false, dErrors.New(dErrors.CodeUnavailable, "insert reveal")
	}
	return f.Store.AddReveal(ctx, id, userID)
}

const approverID = "approver-1"

type RevealSuite struct {
	suite.Suite
	payments  *revealmemory.InMemoryStore
	messages  *relaymemory.InMemoryStore
	chat      *recordingTransport
	confirmer *recordingConfirmer
	service   *Service
	ctx       context.Context
	now       time.Time
	msg       *relay.AnonymousMessage
}

func (s *RevealSuite) SetupTest() {
	s.payments = revealmemory.New(reveal.RequestTTL)
	s.messages = relaymemory.New()
	s.chat = newRecordingTransport()
	s.confirmer = &recordingConfirmer{}
	s.now = time.Date(2025, 6, 12, 21, 0, 0, 0, time.Local)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	cfg := config.RevealConfig{
		FeeAmount:  "2.00",
		PixKey:     "correio@pix.example",
		ApproverID: approverID,
		RequestTTL: reveal.RequestTTL,
	}
	svc, err := New(s.payments, s.messages, s.chat, s.confirmer, cfg)
	s.Require().NoError(err)
	s.service = svc

	s.msg = &relay.AnonymousMessage{
		SenderID:        "sender-1",
		SenderName:      "Ana",
		RecipientHandle: "@bruno",
		Body:            "te vi na aula de quinta e não parei de pensar em você",
	}
	s.Require().NoError(s.messages.Create(s.ctx, s.msg))
	ok, err := s.messages.MarkPublished(s.ctx, s.msg.ID, "cm-1")
	s.Require().NoError(err)
	s.Require().True(ok)
}

func TestRevealSuite(t *testing.T) {
	suite.Run(t, new(RevealSuite))
}

// at pins the clock at an offset from the suite's base instant.
func (s *RevealSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(d))
}

func (s *RevealSuite) TestRequest() {
	s.Run("opens a payment request with the configured fee and key", func() {
		outcome, err := s.service.Request(s.ctx, "viewer-1", s.msg.ID)
		s.Require().NoError(err)
		s.Nil(outcome.Revealed)
		s.Require().NotNil(outcome.Payment)
		s.Equal("2.00", outcome.Payment.Amount)
		s.Equal("correio@pix.example", outcome.Payment.DestinationKey)
		s.Equal(reveal.StatusPending, outcome.Payment.Status)
	})

	s.Run("short-circuits when the requester already paid", func() {
		added, err := s.messages.AddReveal(s.ctx, s.msg.ID, "viewer-2")
		s.Require().NoError(err)
		s.Require().True(added)

		outcome, err := s.service.Request(s.ctx, "viewer-2", s.msg.ID)
		s.Require().NoError(err)
		s.Nil(outcome.Payment)
		s.Require().NotNil(outcome.Revealed)
		s.Equal("Ana", outcome.Revealed.SenderName)
	})

	s.Run("unknown message returns not found", func() {
		_, err := s.service.Request(s.ctx, "viewer-1", "missing")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("expired message behaves as missing", func() {
		_, err := s.service.Request(s.at(relay.PublishedTTL+time.Hour), "viewer-1", s.msg.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *RevealSuite) request(userID string) *reveal.PaymentRequest {
	outcome, err := s.service.Request(s.ctx, userID, s.msg.ID)
	s.Require().NoError(err)
	s.Require().NotNil(outcome.Payment)
	return outcome.Payment
}

func (s *RevealSuite) TestAssertPaid() {
	s.Run("moves to awaiting and notifies the approver", func() {
		req := s.request("viewer-1")

		s.Require().NoError(s.service.AssertPaid(s.ctx, req.ID))

		found, err := s.payments.Get(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(reveal.StatusAwaitingConfirmation, found.Status)
		s.Equal(1, s.confirmer.count())
	})

	s.Run("repeat assertion does not ping the approver again", func() {
		req := s.request("viewer-2")
		s.Require().NoError(s.service.AssertPaid(s.ctx, req.ID))
		s.Require().NoError(s.service.AssertPaid(s.ctx, req.ID))
		s.Equal(2, s.confirmer.count())
	})

	s.Run("expired request returns not found", func() {
		req := s.request("viewer-3")
		err := s.service.AssertPaid(s.at(reveal.RequestTTL+time.Minute), req.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *RevealSuite) TestApprove() {
	s.Run("approval confirms, records the reveal and DMs the requester", func() {
		req := s.request("viewer-1")
		s.Require().NoError(s.service.AssertPaid(s.ctx, req.ID))

		s.Require().NoError(s.service.Approve(s.ctx, req.ID, approverID))

		found, err := s.payments.Get(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(reveal.StatusConfirmed, found.Status)

		msg, err := s.messages.Get(s.ctx, s.msg.ID)
		s.Require().NoError(err)
		s.True(msg.RevealedFor("viewer-1"))

		dms := s.chat.dmsFor("viewer-1")
		s.Require().Len(dms, 1)
		s.Contains(dms[0], "Ana")
	})

	s.Run("wrong approver is refused and state does not move", func() {
		req := s.request("viewer-2")
		s.Require().NoError(s.service.AssertPaid(s.ctx, req.ID))

		err := s.service.Approve(s.ctx, req.ID, "intruso-1")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		found, err := s.payments.Get(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(reveal.StatusAwaitingConfirmation, found.Status)
	})

	s.Run("approve before payment assertion is a conflict", func() {
		req := s.request("viewer-3")
		err := s.service.Approve(s.ctx, req.ID, approverID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("approve after expiry returns not found", func() {
		req := s.request("viewer-4")
		s.Require().NoError(s.service.AssertPaid(s.ctx, req.ID))

		err := s.service.Approve(s.at(reveal.RequestTTL+time.Minute), req.ID, approverID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("failed reveal write leaves the payment retryable", func() {
		flaky := &flakyRelayStore{Store: s.messages, failures: 1}
		svc, err := New(s.payments, flaky, s.chat, s.confirmer, config.RevealConfig{
			FeeAmount:  "2.00",
			PixKey:     "correio@pix.example",
			ApproverID: approverID,
		})
		s.Require().NoError(err)

		outcome, err := svc.Request(s.ctx, "viewer-6", s.msg.ID)
		s.Require().NoError(err)
		req := outcome.Payment
		s.Require().NoError(svc.AssertPaid(s.ctx, req.ID))

		err = svc.Approve(s.ctx, req.ID, approverID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

		// The payment must not confirm ahead of the reveal, or the retry
		// would no-op and the reveal would be lost for good.
		found, err := s.payments.Get(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(reveal.StatusAwaitingConfirmation, found.Status)

		s.Require().NoError(svc.Approve(s.ctx, req.ID, approverID))

		found, err = s.payments.Get(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(reveal.StatusConfirmed, found.Status)

		msg, err := s.messages.Get(s.ctx, s.msg.ID)
		s.Require().NoError(err)
		s.True(msg.RevealedFor("viewer-6"))
		s.Len(s.chat.dmsFor("viewer-6"), 1)
	})

	s.Run("repeat approval is a no-op", func() {
		req := s.request("viewer-5")
		s.Require().NoError(s.service.AssertPaid(s.ctx, req.ID))
		s.Require().NoError(s.service.Approve(s.ctx, req.ID, approverID))

		s.Require().NoError(s.service.Approve(s.ctx, req.ID, approverID))
		s.Len(s.chat.dmsFor("viewer-5"), 1, "reveal delivered once")
	})
}

func (s *RevealSuite) TestDeny() {
	s.Run("denial closes the request and notifies the requester", func() {
		req := s.request("viewer-1")
		s.Require().NoError(s.service.AssertPaid(s.ctx, req.ID))

		s.Require().NoError(s.service.Deny(s.ctx, req.ID, approverID))

		found, err := s.payments.Get(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(reveal.StatusDenied, found.Status)

		msg, err := s.messages.Get(s.ctx, s.msg.ID)
		s.Require().NoError(err)
		s.False(msg.RevealedFor("viewer-1"))
		s.Len(s.chat.dmsFor("viewer-1"), 1)
	})

	s.Run("wrong approver cannot deny", func() {
		req := s.request("viewer-2")
		s.Require().NoError(s.service.AssertPaid(s.ctx, req.ID))

		err := s.service.Deny(s.ctx, req.ID, "intruso-1")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("deny after approval is a no-op", func() {
		req := s.request("viewer-3")
		s.Require().NoError(s.service.AssertPaid(s.ctx, req.ID))
		s.Require().NoError(s.service.Approve(s.ctx, req.ID, approverID))

		s.Require().NoError(s.service.Deny(s.ctx, req.ID, approverID))

		found, err := s.payments.Get(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(reveal.StatusConfirmed, found.Status)
	})
}
