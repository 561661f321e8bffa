package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"correio/internal/relay"
	"correio/internal/relay/store/memory"
	dErrors "correio/pkg/domain-errors"
	"correio/pkg/requestcontext"
)

// fakeTransport records channel posts and can be told to fail per message
// body or to refuse channel resolution.
type fakeTransport struct {
	mu            sync.Mutex
	posts         []string
	dms           []string
	failContains  string
	resolveErr    error
	nextMessageID int
}

func (f *fakeTransport) Send(ctx context.Context, channelID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failContains != "" && strings.Contains(text, f.failContains) {
		return "", dErrors.New(dErrors.CodeDelivery, "send rejected")
	}
	f.nextMessageID++
	f.posts = append(f.posts, text)
	return fmt.Sprintf("cm-%d", f.nextMessageID), nil
}

func (f *fakeTransport) SendDM(ctx context.Context, userID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dms = append(f.dms, text)
	return "dm-1", nil
}

func (f *fakeTransport) ResolveChannel(ctx context.Context, name string) (string, error) {
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return "chan-42", nil
}

func (f *fakeTransport) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

type SchedulerSuite struct {
	suite.Suite
	store *memory.InMemoryStore
	chat  *fakeTransport
	ctx   context.Context
}

func (s *SchedulerSuite) SetupTest() {
	s.store = memory.New()
	s.chat = &fakeTransport{}
	s.ctx = requestcontext.WithTime(context.Background(),
		time.Date(2025, 6, 12, 9, 0, 0, 0, time.Local))
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func (s *SchedulerSuite) newScheduler(opts ...Option) *Scheduler {
	opts = append([]Option{WithStagger(0)}, opts...)
	sched, err := New(s.store, s.chat, "correio-elegante", opts...)
	s.Require().NoError(err)
	return sched
}

func (s *SchedulerSuite) pending(body string) *relay.AnonymousMessage {
	msg := &relay.AnonymousMessage{
		SenderID:        "sender-1",
		SenderName:      "Ana",
		RecipientHandle: "@bruno",
		Body:            body,
	}
	s.Require().NoError(s.store.Create(s.ctx, msg))
	return msg
}

func (s *SchedulerSuite) TestPublishAll() {
	s.Run("publishes every pending message and marks each", func() {
		first := s.pending("primeira mensagem pendente da fila")
		second := s.pending("segunda mensagem pendente da fila")

		published, err := s.newScheduler().PublishAll(s.ctx)
		s.Require().NoError(err)
		s.Equal(2, published)
		s.Equal(2, s.chat.postCount())

		for _, msg := range []*relay.AnonymousMessage{first, second} {
			found, err := s.store.Get(s.ctx, msg.ID)
			s.Require().NoError(err)
			s.Equal(relay.StatusPublished, found.Status)
			s.NotEmpty(found.PublishedChannelMessageID)
		}
	})

	s.Run("empty queue publishes nothing", func() {
		published, err := s.newScheduler().PublishAll(s.ctx)
		s.Require().NoError(err)
		s.Equal(0, published)
	})
}

func (s *SchedulerSuite) TestFailureIsolation() {
	bad := s.pending("esta mensagem vai falhar a entrega QUEBRADA")
	good := s.pending("esta mensagem sai normalmente")

	s.chat.failContains = "QUEBRADA"

	published, err := s.newScheduler().PublishAll(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, published)

	foundBad, err := s.store.Get(s.ctx, bad.ID)
	s.Require().NoError(err)
	s.Equal(relay.StatusPending, foundBad.Status)

	foundGood, err := s.store.Get(s.ctx, good.ID)
	s.Require().NoError(err)
	s.Equal(relay.StatusPublished, foundGood.Status)

	s.Run("failed message goes out on the next cycle", func() {
		s.chat.failContains = ""
		published, err := s.newScheduler().PublishAll(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, published)
	})
}

func (s *SchedulerSuite) TestUnresolvedChannelSkipsBatch() {
	msg := s.pending("mensagem à espera de um canal válido")
	s.chat.resolveErr = dErrors.New(dErrors.CodeNotFound, "no such channel")

	published, err := s.newScheduler().PublishAll(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, published)

	found, err := s.store.Get(s.ctx, msg.ID)
	s.Require().NoError(err)
	s.Equal(relay.StatusPending, found.Status)
}

func (s *SchedulerSuite) TestPublishOne() {
	s.Run("publishes the named pending message", func() {
		msg := s.pending("mensagem escolhida a dedo pelo operador")

		ok, err := s.newScheduler().PublishOne(s.ctx, msg.ID)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("already published returns false without error", func() {
		msg := s.pending("mensagem que será publicada duas vezes")
		sched := s.newScheduler()

		ok, err := sched.PublishOne(s.ctx, msg.ID)
		s.Require().NoError(err)
		s.True(ok)

		posts := s.chat.postCount()
		ok, err = sched.PublishOne(s.ctx, msg.ID)
		s.Require().NoError(err)
		s.False(ok)
		s.Equal(posts, s.chat.postCount(), "no duplicate channel post")
	})

	s.Run("unknown id returns not found", func() {
		_, err := s.newScheduler().PublishOne(s.ctx, "missing")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *SchedulerSuite) TestStartAndStop() {
	s.pending("mensagem publicada pelo laço periódico")

	sched := s.newScheduler(WithPeriod(10 * time.Millisecond))
	handle := sched.Start(context.Background())

	s.Require().Eventually(func() bool {
		return s.chat.postCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	handle.Stop()

	// A stopped loop posts nothing more.
	s.pending("mensagem criada depois do desligamento")
	time.Sleep(50 * time.Millisecond)
	s.Equal(1, s.chat.postCount())
}

func (s *SchedulerSuite) TestRenderPost() {
	msg := s.pending("que seu dia seja mais leve hoje")

	text := RenderPost(msg)
	s.Contains(text, "@bruno")
	s.Contains(text, "que seu dia seja mais leve hoje")
	s.Contains(text, msg.ID)
	s.NotContains(text, "Ana", "sender identity never appears in the channel post")
	s.NotContains(text, "sender-1")
}
