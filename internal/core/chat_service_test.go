package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wisepal/wisepal-backend/internal/store"
)

func newTestUser(t *testing.T, s *memStore, email string) *store.User {
	t.Helper()
	u := &store.User{Email: email, HashedPassword: "x", IsActive: true}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}

func TestSendMessageStoresExchange(t *testing.T) {
	db := newMemStore()
	ai := &stubCompleter{reply: "hi there"}
	svc := NewChatService(db, ai, zerolog.Nop())
	alice := newTestUser(t, db, "alice@example.com")

	reply, err := svc.SendMessage(context.Background(), alice, "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply != "hi there" {
		t.Fatalf("expected reply %q, got %q", "hi there", reply)
	}

	convs, _ := svc.ListConversations(context.Background(), alice)
	if len(convs) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(convs))
	}
	c := convs[0]
	if c.UserID != alice.ID || c.CreatedAt.IsZero() {
		t.Fatalf("unexpected conversation %+v", c)
	}
	if len(c.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(c.Messages))
	}
	if c.Messages[0].Role != store.RoleUser || c.Messages[0].Content != "hello" {
		t.Errorf("unexpected user message %+v", c.Messages[0])
	}
	if c.Messages[1].Role != store.RoleAssistant || c.Messages[1].Content != reply {
		t.Errorf("assistant message must equal reply, got %+v", c.Messages[1])
	}
	if c.Messages[1].Timestamp.Before(c.Messages[0].Timestamp) {
		t.Error("assistant message timestamped before user message")
	}
}

func TestSendMessageAIFailureCollapses(t *testing.T) {
	db := newMemStore()
	svc := NewChatService(db, &stubCompleter{err: errUpstream}, zerolog.Nop())
	alice := newTestUser(t, db, "alice@example.com")

	_, err := svc.SendMessage(context.Background(), alice, "hello")
	if KindOf(err) != KindChatProcessingFailed {
		t.Fatalf("expected ChatProcessingFailed, got %v", err)
	}
	if !errors.Is(err, ErrChatProcessingFailed) || !errors.Is(err, errUpstream) {
		t.Fatalf("expected sentinel with upstream cause, got %v", err)
	}
	if strings.Contains(Message(err), "exploded") {
		t.Fatalf("client message leaks upstream cause: %q", Message(err))
	}
	if db.conversationCount() != 0 {
		t.Fatal("nothing should be stored when the AI call fails")
	}
}

func TestSendMessageUnavailable(t *testing.T) {
	db := newMemStore()
	svc := NewChatService(db, &stubCompleter{err: ErrServiceUnavailable}, zerolog.Nop())
	alice := newTestUser(t, db, "alice@example.com")

	_, err := svc.SendMessage(context.Background(), alice, "hello")
	if KindOf(err) != KindServiceUnavailable {
		t.Fatalf("expected ServiceUnavailable, got %v", err)
	}
	if db.conversationCount() != 0 {
		t.Fatal("nothing should be stored when the AI gateway is unavailable")
	}
}

func TestSendMessageStoreFailureWithholdsReply(t *testing.T) {
	db := newMemStore()
	db.failWrites = errors.New("disk full")
	svc := NewChatService(db, &stubCompleter{reply: "hi"}, zerolog.Nop())
	alice := newTestUser(t, db, "alice@example.com")

	reply, err := svc.SendMessage(context.Background(), alice, "hello")
	if KindOf(err) != KindChatProcessingFailed {
		t.Fatalf("expected ChatProcessingFailed, got %v", err)
	}
	if reply != "" {
		t.Fatalf("reply must not be delivered when persistence fails, got %q", reply)
	}
}

func TestSendMessageRejectsBeforeAICall(t *testing.T) {
	db := newMemStore()
	ai := &stubCompleter{reply: "hi"}
	svc := NewChatService(db, ai, zerolog.Nop())
	alice := newTestUser(t, db, "alice@example.com")

	if _, err := svc.SendMessage(context.Background(), nil, "hello"); KindOf(err) != KindUnauthorized {
		t.Fatalf("expected Unauthorized for nil user, got %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), alice, "   "); KindOf(err) != KindInvalidInput {
		t.Fatalf("expected InvalidInput for blank message, got %v", err)
	}
	if ai.calls != 0 {
		t.Fatalf("AI must not be called, got %d calls", ai.calls)
	}
}

func TestListConversationsIsolation(t *testing.T) {
	db := newMemStore()
	svc := NewChatService(db, &stubCompleter{reply: "ok"}, zerolog.Nop())
	alice := newTestUser(t, db, "alice@example.com")
	bob := newTestUser(t, db, "bob@example.com")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.SendMessage(ctx, alice, fmt.Sprintf("a%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.SendMessage(ctx, bob, "b0"); err != nil {
		t.Fatal(err)
	}

	convs, err := svc.ListConversations(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 3 {
		t.Fatalf("expected 3 conversations, got %d", len(convs))
	}
	for _, c := range convs {
		if c.UserID != alice.ID {
			t.Fatalf("alice sees conversation owned by %q", c.UserID)
		}
	}

	if _, err := svc.ListConversations(ctx, nil); KindOf(err) != KindUnauthorized {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func TestSendMessageConcurrent(t *testing.T) {
	db := newMemStore()
	svc := NewChatService(db, &stubCompleter{reply: "ok"}, zerolog.Nop())
	alice := newTestUser(t, db, "alice@example.com")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.SendMessage(context.Background(), alice, fmt.Sprintf("m%d", i)); err != nil {
				t.Errorf("SendMessage: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if n := db.conversationCount(); n != 20 {
		t.Fatalf("expected 20 conversations, got %d", n)
	}
}

func TestSendMessageSurvivesClientDisconnect(t *testing.T) {
	db := newMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := NewChatService(db, &cancelingCompleter{cancel: cancel, reply: "hi there"}, zerolog.Nop())
	alice := newTestUser(t, db, "alice@example.com")

	reply, err := svc.SendMessage(ctx, alice, "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply != "hi there" {
		t.Fatalf("expected %q, got %q", "hi there", reply)
	}
	if ctx.Err() == nil {
		t.Fatal("request context should have been canceled")
	}
	if n := db.conversationCount(); n != 1 {
		t.Fatalf("expected the exchange to be stored, got %d conversations", n)
	}
}
