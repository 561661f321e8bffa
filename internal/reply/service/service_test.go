package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"correio/internal/relay"
	relaymemory "correio/internal/relay/store/memory"
	"correio/internal/reply"
	replymemory "correio/internal/reply/store/memory"
	dErrors "correio/pkg/domain-errors"
	"correio/pkg/requestcontext"
)

type stubTransport struct {
	mu  sync.Mutex
	dms map[string][]string
}

func (f *stubTransport) Send(ctx context.Context, channelID, text string) (string, error) {
	return "cm-1", nil
}

func (f *stubTransport) SendDM(ctx context.Context, userID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dms == nil {
		f.dms = make(map[string][]string)
	}
	f.dms[userID] = append(f.dms[userID], text)
	return "dm-1", nil
}

func (f *stubTransport) ResolveChannel(ctx context.Context, name string) (string, error) {
	return "chan-42", nil
}

func (f *stubTransport) dmsFor(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dms[userID]...)
}

type ReplySuite struct {
	suite.Suite
	associations *replymemory.InMemoryStore
	messages     *relaymemory.InMemoryStore
	chat         *stubTransport
	service      *Service
	ctx          context.Context
	msg          *relay.AnonymousMessage
}

func (s *ReplySuite) SetupTest() {
	s.associations = replymemory.New()
	s.messages = relaymemory.New()
	s.chat = &stubTransport{}
	s.ctx = requestcontext.WithTime(context.Background(),
		time.Date(2025, 6, 12, 14, 0, 0, 0, time.Local))

	svc, err := New(s.associations, s.messages, s.chat)
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

func TestReplySuite(t *testing.T) {
	suite.Run(t, new(ReplySuite))
}

func (s *ReplySuite) TestInitiate() {
	s.Run("binds the replier to the message", func() {
		s.Require().NoError(s.service.Initiate(s.ctx, "viewer-1", s.msg.ID))

		assoc, err := s.associations.Get(s.ctx, "viewer-1")
		s.Require().NoError(err)
		s.Equal(s.msg.ID, assoc.MessageID)
	})

	s.Run("unknown message is refused", func() {
		err := s.service.Initiate(s.ctx, "viewer-2", "missing")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		_, err = s.associations.Get(s.ctx, "viewer-2")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("a new initiation replaces the previous one", func() {
		other := &relay.AnonymousMessage{
			SenderID:        "sender-2",
			RecipientHandle: "@carla",
			Body:            "uma outra mensagem igualmente simpática",
		}
		s.Require().NoError(s.messages.Create(s.ctx, other))

		s.Require().NoError(s.service.Initiate(s.ctx, "viewer-1", s.msg.ID))
		s.Require().NoError(s.service.Initiate(s.ctx, "viewer-1", other.ID))

		assoc, err := s.associations.Get(s.ctx, "viewer-1")
		s.Require().NoError(err)
		s.Equal(other.ID, assoc.MessageID)
	})
}

func (s *ReplySuite) TestSubmit() {
	s.Run("without a pending reply returns not found", func() {
		err := s.service.Submit(s.ctx, "viewer-9", "Bia", "uma resposta sem contexto")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("too-short body is refused and the association survives", func() {
		s.Require().NoError(s.service.Initiate(s.ctx, "viewer-1", s.msg.ID))

		err := s.service.Submit(s.ctx, "viewer-1", "Bia", "oi!!")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		assoc, err := s.associations.Get(s.ctx, "viewer-1")
		s.Require().NoError(err)
		s.Equal(s.msg.ID, assoc.MessageID)

		found, err := s.messages.Get(s.ctx, s.msg.ID)
		s.Require().NoError(err)
		s.Empty(found.Replies)
	})

	s.Run("over-long body is refused", func() {
		s.Require().NoError(s.service.Initiate(s.ctx, "viewer-1", s.msg.ID))
		err := s.service.Submit(s.ctx, "viewer-1", "Bia", strings.Repeat("a", reply.BodyMaxLen+1))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("offensive body is refused and nothing is stored", func() {
		s.Require().NoError(s.service.Initiate(s.ctx, "viewer-1", s.msg.ID))

		err := s.service.Submit(s.ctx, "viewer-1", "Bia", "que resposta idiota a sua")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeOffensiveContent))

		found, err := s.messages.Get(s.ctx, s.msg.ID)
		s.Require().NoError(err)
		s.Empty(found.Replies)
	})

	s.Run("valid reply is stored, delivered and the association cleared", func() {
		s.Require().NoError(s.service.Initiate(s.ctx, "viewer-1", s.msg.ID))

		s.Require().NoError(s.service.Submit(s.ctx, "viewer-1", "Bia", "obrigada, fiquei sem jeito"))

		found, err := s.messages.Get(s.ctx, s.msg.ID)
		s.Require().NoError(err)
		s.Require().Len(found.Replies, 1)
		s.Equal("viewer-1", found.Replies[0].SenderID)

		dms := s.chat.dmsFor("sender-1")
		s.Require().Len(dms, 1)
		s.Contains(dms[0], "obrigada, fiquei sem jeito")

		_, err = s.associations.Get(s.ctx, "viewer-1")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("association expires on its own", func() {
		s.Require().NoError(s.service.Initiate(s.ctx, "viewer-1", s.msg.ID))

		late := requestcontext.WithTime(context.Background(),
			requestcontext.Now(s.ctx).Add(reply.AssociationTTL+time.Minute))
		err := s.service.Submit(late, "viewer-1", "Bia", "cheguei tarde demais com isto")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
