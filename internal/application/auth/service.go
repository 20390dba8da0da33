package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"neonote/internal/domain/account"
	"neonote/internal/infrastructure/session"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidInput     = errors.New("invalid input")
)

// Gateway is the backend port for account endpoints.
type Gateway interface {
	Login(ctx context.Context, creds account.Credentials) (account.Grant, error)
	Register(ctx context.Context, reg account.Registration) (account.Grant, error)
}

// SessionStore persists the signed-in state.
type SessionStore interface {
	Current() (session.Session, error)
	Save(sess session.Session) error
	Clear() error
}

// InputError wraps validation failures with the offending fields.
type InputError struct {
	Fields []string
	Err    error
}

func (e *InputError) Error() string {
	if len(e.Fields) == 0 {
		return ErrInvalidInput.Error()
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(e.Fields, ", ")
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// Service signs users in and out against the backend.
type Service struct {
	gateway  Gateway
	sessions SessionStore
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewService creates an auth service.
func NewService(gateway Gateway, sessions SessionStore, logger zerolog.Logger) *Service {
	return &Service{
		gateway:  gateway,
		sessions: sessions,
		validate: validator.New(),
		logger:   logger.With().Str("component", "auth").Logger(),
	}
}

// Login authenticates and stores the issued token.
func (s *Service) Login(ctx context.Context, creds account.Credentials) (session.Session, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := s.check(creds); err != nil {
		return session.Session{}, err
	}

	grant, err := s.gateway.Login(ctx, creds)
	if err != nil {
		return session.Session{}, err
	}
	return s.store(grant)
}

// Register creates an account and stores the issued token.
func (s *Service) Register(ctx context.Context, reg account.Registration) (session.Session, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Email = strings.TrimSpace(reg.Email)
	if reg.Role == "" {
		reg.Role = account.RoleStudent
	}
	if err := s.check(reg); err != nil {
		return session.Session{}, err
	}

	grant, err := s.gateway.Register(ctx, reg)
	if err != nil {
		return session.Session{}, err
	}
	return s.store(grant)
}

// Logout clears the stored session.
func (s *Service) Logout() error {
	if err := s.sessions.Clear(); err != nil {
		return err
	}
	s.logger.Info().Msg("signed out")
	return nil
}

// Current returns the signed-in session.
func (s *Service) Current() (session.Session, error) {
	sess, err := s.sessions.Current()
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return session.Session{}, ErrNotAuthenticated
		}
		return session.Session{}, err
	}
	return sess, nil
}

func (s *Service) store(grant account.Grant) (session.Session, error) {
	sess := session.Session{Token: grant.AccessToken, User: grant.User}
	if err := s.sessions.Save(sess); err != nil {
		return session.Session{}, err
	}
	s.logger.Info().Str("user_id", grant.User.ID).Str("role", string(grant.User.Role)).Msg("signed in")
	return s.sessions.Current()
}

func (s *Service) check(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, strings.ToLower(fe.Field()))
		}
		return &InputError{Fields: fields, Err: err}
	}
	return err
}
