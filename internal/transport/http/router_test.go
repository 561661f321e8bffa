package httptransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"correio/internal/jwttoken"
	"correio/internal/moderation"
	"correio/internal/platform/config"
	"correio/internal/platform/logger"
	"correio/internal/relay"
	"correio/internal/relay/ratelimit"
	"correio/internal/relay/scheduler"
	relayservice "correio/internal/relay/service"
	relaymemory "correio/internal/relay/store/memory"
	replyservice "correio/internal/reply/service"
	replymemory "correio/internal/reply/store/memory"
	"correio/internal/reveal"
	revealservice "correio/internal/reveal/service"
	revealmemory "correio/internal/reveal/store/memory"
	"correio/pkg/testutil"
)

type loopbackTransport struct {
	mu    sync.Mutex
	posts int
	dms   int
}

func (f *loopbackTransport) Send(ctx context.Context, channelID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts++
	return "cm-1", nil
}

func (f *loopbackTransport) SendDM(ctx context.Context, userID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dms++
	return "dm-1", nil
}

func (f *loopbackTransport) ResolveChannel(ctx context.Context, name string) (string, error) {
	return "chan-42", nil
}

const approverID = "approver-1"

type RouterSuite struct {
	suite.Suite
	router     http.Handler
	store      *relaymemory.InMemoryStore
	jwt        *jwttoken.JWTService
	adminToken string
}

func (s *RouterSuite) SetupTest() {
	log := logger.New()
	chat := &loopbackTransport{}

	s.store = relaymemory.New()
	payments := revealmemory.New(reveal.RequestTTL)
	associations := replymemory.New()

	submitSvc, err := relayservice.New(s.store, ratelimit.New(s.store, 2))
	s.Require().NoError(err)

	sched, err := scheduler.New(s.store, chat, "correio-elegante", scheduler.WithStagger(0))
	s.Require().NoError(err)

	revealCfg := config.RevealConfig{
		FeeAmount:  "2.00",
		PixKey:     "correio@pix.example",
		ApproverID: approverID,
		RequestTTL: reveal.RequestTTL,
	}
	confirmer, err := revealservice.NewManualConfirmer(chat, approverID, log)
	s.Require().NoError(err)
	revealSvc, err := revealservice.New(payments, s.store, chat, confirmer, revealCfg)
	s.Require().NoError(err)

	replySvc, err := replyservice.New(associations, s.store, chat)
	s.Require().NoError(err)

	moderationSvc, err := moderation.New(s.store)
	s.Require().NoError(err)

	s.jwt = jwttoken.NewJWTService("test-signing-key", "correio")
	token, err := s.jwt.GenerateToken(approverID, time.Hour)
	s.Require().NoError(err)
	s.adminToken = token

	s.router = NewRouter(Deps{
		Submission:   submitSvc,
		Publication:  sched,
		Moderation:   moderationSvc,
		Messages:     s.store,
		Reply:        replySvc,
		Reveal:       revealSvc,
		Logger:       log,
		JWTValidator: s.jwt,
		HealthChecks: map[string]HealthCheck{
			"self": func(ctx context.Context) error { return nil },
		},
	})
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) do(req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set("Authorization", "Bearer "+s.adminToken)
	return testutil.DoRequest(s.router, req)
}

func (s *RouterSuite) submitBody() map[string]string {
	return map[string]string{
		"sender_id":   "sender-1",
		"sender_name": "Ana",
		"recipient":   "@bruno",
		"body":        "te vi na aula de quinta e não parei de pensar em você",
	}
}

func (s *RouterSuite) TestAuth() {
	s.Run("missing token is unauthorized", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/relay/publish", nil)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("garbage token is unauthorized", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/relay/publish", nil)
		req.Header.Set("Authorization", "Bearer nonsense")
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("health and metrics stay open", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
		s.Equal(http.StatusOK, rr.Code)

		rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/metrics"))
		s.Equal(http.StatusOK, rr.Code)
	})
}

func (s *RouterSuite) TestSubmitAndPublish() {
	s.Run("valid submission returns the sanitized message", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/relay/messages", s.submitBody())
		rr := s.do(req)
		s.Equal(http.StatusCreated, rr.Code)

		resp := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
		s.Equal("pending", (*resp)["status"])
		s.NotContains(*resp, "sender_id")
		s.NotContains(*resp, "sender_name")
	})

	s.Run("too-short body maps to 400", func() {
		body := s.submitBody()
		body["body"] = "oi, tudo?"
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/relay/messages", body))
		s.Equal(http.StatusBadRequest, rr.Code)
		s.Equal("validation", testutil.UnmarshalErrorResponse(s.T(), rr)["error"])
	})

	s.Run("blocked content maps to 400", func() {
		body := s.submitBody()
		body["body"] = "mensagem com babaca no meio"
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/relay/messages", body))
		s.Equal(http.StatusBadRequest, rr.Code)
		s.Equal("offensive_content", testutil.UnmarshalErrorResponse(s.T(), rr)["error"])
	})

	s.Run("third message of the day maps to 429", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/relay/messages", s.submitBody()))
		s.Equal(http.StatusCreated, rr.Code)

		rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/relay/messages", s.submitBody()))
		s.Equal(http.StatusTooManyRequests, rr.Code)
	})

	s.Run("manual publish drains the pending queue", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/relay/publish", nil))
		s.Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[map[string]int](s.T(), rr)
		s.Equal(2, (*resp)["published"])
	})
}

func (s *RouterSuite) publishOne() string {
	msg := &relay.AnonymousMessage{
		SenderID:        "sender-1",
		SenderName:      "Ana",
		RecipientHandle: "@bruno",
		Body:            "uma mensagem publicada para os testes",
	}
	s.Require().NoError(s.store.Create(context.Background(), msg))
	ok, err := s.store.MarkPublished(context.Background(), msg.ID, "cm-1")
	s.Require().NoError(err)
	s.Require().True(ok)
	return msg.ID
}

func (s *RouterSuite) TestReportFlow() {
	id := s.publishOne()

	for _, user := range []string{"u1", "u2", "u3"} {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/relay/messages/"+id+"/report",
			map[string]string{"user_id": user, "user_name": user}))
		s.Equal(http.StatusNoContent, rr.Code)
	}

	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/relay/messages/"+id))
	s.Equal(http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	s.Equal("expired", (*resp)["status"])
}

func (s *RouterSuite) TestRevealFlow() {
	id := s.publishOne()

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/reveal/requests",
		map[string]string{"user_id": "viewer-1", "message_id": id}))
	s.Equal(http.StatusCreated, rr.Code)
	resp := testutil.UnmarshalResponse[map[string]map[string]any](s.T(), rr)
	pixID, _ := (*resp)["payment"]["pix_id"].(string)
	s.Require().NotEmpty(pixID)

	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/reveal/"+pixID+"/paid", nil))
	s.Equal(http.StatusNoContent, rr.Code)

	s.Run("approval by the JWT subject confirms", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/reveal/"+pixID+"/approve", nil))
		s.Equal(http.StatusNoContent, rr.Code)
	})

	s.Run("second request short-circuits with the sender identity", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/reveal/requests",
			map[string]string{"user_id": "viewer-1", "message_id": id}))
		s.Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[map[string]map[string]any](s.T(), rr)
		s.Equal("Ana", (*resp)["revealed"]["sender_name"])
	})

	s.Run("a token for someone else cannot approve", func() {
		otherToken, err := s.jwt.GenerateToken("intruso-1", time.Hour)
		s.Require().NoError(err)

		id2 := s.publishOne()
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/reveal/requests",
			map[string]string{"user_id": "viewer-2", "message_id": id2}))
		s.Equal(http.StatusCreated, rr.Code)
		resp := testutil.UnmarshalResponse[map[string]map[string]any](s.T(), rr)
		pix2, _ := (*resp)["payment"]["pix_id"].(string)

		rr2 := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/reveal/"+pix2+"/paid", nil))
		s.Equal(http.StatusNoContent, rr2.Code)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/reveal/"+pix2+"/approve", nil)
		req.Header.Set("Authorization", "Bearer "+otherToken)
		rr3 := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusForbidden, rr3.Code)
	})
}

func (s *RouterSuite) TestReplyFlow() {
	id := s.publishOne()

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/reply/initiate",
		map[string]string{"replier_id": "viewer-1", "message_id": id}))
	s.Equal(http.StatusNoContent, rr.Code)

	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/reply/submit",
		map[string]string{"replier_id": "viewer-1", "replier_name": "Bia", "body": "obrigada, fiquei sem jeito"}))
	s.Equal(http.StatusNoContent, rr.Code)

	s.Run("second submit without a new initiation is 404", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/reply/submit",
			map[string]string{"replier_id": "viewer-1", "replier_name": "Bia", "body": "outra resposta sem vínculo"}))
		s.Equal(http.StatusNotFound, rr.Code)
	})
}
