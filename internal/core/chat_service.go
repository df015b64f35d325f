package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wisepal/wisepal-backend/internal/metrics"
	"github.com/wisepal/wisepal-backend/internal/store"
)

type ChatService struct {
	dbStore store.Store
	ai      Completer
	logger  zerolog.Logger
}

func NewChatService(db store.Store, ai Completer, logger zerolog.Logger) *ChatService {
	return &ChatService{
		dbStore: db,
		ai:      ai,
		logger:  logger,
	}
}

// SendMessage runs one exchange: ask the AI, persist the user/assistant pair, return
// the reply. The reply is only returned once the conversation is stored.
// A client disconnect does not abort the exchange once it has started.
func (s *ChatService) SendMessage(ctx context.Context, user *store.User, text string) (string, error) {
	if user == nil {
		return "", ErrUnauthorized
	}
	if strings.TrimSpace(text) == "" {
		return "", InvalidInput("Message content cannot be empty")
	}

	logger := s.logger.With().Str("user_id", string(user.ID)).Logger()
	ctx = context.WithoutCancel(ctx)

	reply, err := s.ai.Complete(ctx, text)
	if err != nil {
		if errors.Is(err, ErrServiceUnavailable) {
			metrics.ChatExchanges.WithLabelValues("unavailable").Inc()
			return "", ErrServiceUnavailable
		}
		metrics.ChatExchanges.WithLabelValues("ai_error").Inc()
		logger.Error().Err(err).Msg("error generating model response")
		return "", Wrap(ErrChatProcessingFailed, err)
	}

	conv := &store.Conversation{
		UserID: user.ID,
		Messages: []store.Message{
			store.NewMessage(store.RoleUser, text),
			store.NewMessage(store.RoleAssistant, reply),
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.dbStore.CreateConversation(ctx, conv); err != nil {
		metrics.ChatExchanges.WithLabelValues("store_error").Inc()
		logger.Error().Err(err).Msg("failed to store conversation")
		return "", Wrap(ErrChatProcessingFailed, err)
	}

	metrics.ChatExchanges.WithLabelValues("ok").Inc()
	logger.Debug().Str("conversation_id", conv.ID).Msg("conversation stored")
	return reply, nil
}

// ListConversations returns the user's whole history, oldest first.
func (s *ChatService) ListConversations(ctx context.Context, user *store.User) ([]store.Conversation, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}
	return s.dbStore.ListConversationsByUser(ctx, user.ID)
}
