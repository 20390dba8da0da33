package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	chatdomain "neonote/internal/domain/chat"
)

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrInvalidFeedback = errors.New("feedback must be relevant or not_relevant")
	ErrMissingIDs      = errors.New("session id and message id are required")
)

// Gateway is the backend port for the study assistant.
type Gateway interface {
	ChatHistory(ctx context.Context) ([]chatdomain.Session, error)
	SendChat(ctx context.Context, sessionID, text string) (chatdomain.Reply, error)
	SendFeedback(ctx context.Context, sessionID, messageID string, feedback chatdomain.Feedback) error
}

// Service talks to the study assistant and remembers the active conversation.
type Service struct {
	gateway Gateway
	logger  zerolog.Logger

	mu        sync.Mutex
	sessionID string
}

// NewService creates a chat service.
func NewService(gateway Gateway, logger zerolog.Logger) *Service {
	return &Service{gateway: gateway, logger: logger.With().Str("component", "chat").Logger()}
}

// History loads stored conversations; the most recent becomes active.
func (s *Service) History(ctx context.Context) ([]chatdomain.Session, error) {
	sessions, err := s.gateway.ChatHistory(ctx)
	if err != nil {
		return nil, err
	}
	if len(sessions) > 0 && sessions[0].ID != "" {
		s.setSession(sessions[0].ID)
	}
	return sessions, nil
}

// Send posts a message. An empty sessionID continues the active conversation.
func (s *Service) Send(ctx context.Context, sessionID, text string) (chatdomain.Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chatdomain.Reply{}, ErrEmptyMessage
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = s.ActiveSession()
	}

	reply, err := s.gateway.SendChat(ctx, sessionID, text)
	if err != nil {
		return chatdomain.Reply{}, err
	}
	if reply.SessionID != "" {
		s.setSession(reply.SessionID)
	}
	return reply, nil
}

// Feedback records whether an assistant answer was relevant.
func (s *Service) Feedback(ctx context.Context, sessionID, messageID string, feedback chatdomain.Feedback) error {
	switch feedback {
	case chatdomain.FeedbackRelevant, chatdomain.FeedbackNotRelevant:
	default:
		return ErrInvalidFeedback
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = s.ActiveSession()
	}
	messageID = strings.TrimSpace(messageID)
	if sessionID == "" || messageID == "" {
		return ErrMissingIDs
	}
	if err := s.gateway.SendFeedback(ctx, sessionID, messageID, feedback); err != nil {
		return err
	}
	s.logger.Debug().Str("session_id", sessionID).Str("message_id", messageID).Str("feedback", string(feedback)).Msg("feedback recorded")
	return nil
}

// ActiveSession returns the conversation new messages are appended to.
func (s *Service) ActiveSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *Service) setSession(id string) {
	s.mu.Lock()
	s.sessionID = id
	s.mu.Unlock()
}
