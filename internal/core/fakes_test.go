package core

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/wisepal/wisepal-backend/internal/store"
)

// memStore is a minimal in-memory store.Store for service tests.
type memStore struct {
	mu            sync.Mutex
	users         []*store.User
	conversations []store.Conversation
	failWrites    error
}

func newMemStore() *memStore { return &memStore{} }

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error               { return nil }

func (m *memStore) CreateUser(_ context.Context, u *store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicateEmail
		}
	}
	u.Email = strings.ToLower(u.Email)
	u.ID = store.UserID("u" + strconv.Itoa(len(m.users)+1))
	cp := *u
	m.users = append(m.users, &cp)
	return nil
}

func (m *memStore) find(match func(*store.User) bool) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	return m.find(func(u *store.User) bool { return strings.EqualFold(u.Email, email) })
}

func (m *memStore) GetUserByID(_ context.Context, id store.UserID) (*store.User, error) {
	return m.find(func(u *store.User) bool { return u.ID == id })
}

func (m *memStore) UpdateUser(_ context.Context, u *store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.ID != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicateEmail
		}
	}
	for i, existing := range m.users {
		if existing.ID == u.ID {
			cp := *u
			m.users[i] = &cp
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) CreateConversation(ctx context.Context, c *store.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites != nil {
		return m.failWrites
	}
	c.ID = "c" + strconv.Itoa(len(m.conversations)+1)
	m.conversations = append(m.conversations, *c)
	return nil
}

func (m *memStore) ListConversationsByUser(_ context.Context, userID store.UserID) ([]store.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.Conversation{}
	for _, c := range m.conversations {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) conversationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conversations)
}

// stubCompleter returns a fixed reply or error and counts calls.
type stubCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (s *stubCompleter) Complete(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

// cancelingCompleter cancels the caller's request context before replying,
// the way a client that disconnects mid-exchange does.
type cancelingCompleter struct {
	cancel context.CancelFunc
	reply  string
}

func (c *cancelingCompleter) Complete(_ context.Context, _ string) (string, error) {
	c.cancel()
	return c.reply, nil
}

var errUpstream = errors.New("upstream exploded")
