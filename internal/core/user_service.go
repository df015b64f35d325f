package core

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wisepal/wisepal-backend/internal/auth"
	"github.com/wisepal/wisepal-backend/internal/metrics"
	"github.com/wisepal/wisepal-backend/internal/store"
)

const (
	minPasswordLength = 3
	maxPasswordLength = 72 // bcrypt input limit in bytes
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// UserUpdate holds optional profile changes. Nil fields are left untouched.
// The flag fields are honoured only when a superuser performs the update.
type UserUpdate struct {
	Email       *string `json:"email,omitempty"`
	Password    *string `json:"password,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
	IsVerified  *bool   `json:"is_verified,omitempty"`
	IsSuperuser *bool   `json:"is_superuser,omitempty"`
}

// UserService registers users, checks credentials and resolves bearer tokens.
type UserService struct {
	store  store.Store
	tokens *auth.TokenManager
	logger zerolog.Logger
}

func NewUserService(s store.Store, tokens *auth.TokenManager, logger zerolog.Logger) *UserService {
	return &UserService{store: s, tokens: tokens, logger: logger}
}

func validateEmail(email string) error {
	if len(email) > 254 || !emailRegex.MatchString(email) {
		return InvalidInput("value is not a valid email address")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return InvalidInput("REGISTER_INVALID_PASSWORD: password should be at least 3 characters")
	}
	if len(password) > maxPasswordLength {
		return InvalidInput("REGISTER_INVALID_PASSWORD: password should be at most 72 bytes")
	}
	return nil
}

// Register creates an active, unverified, non-superuser account.
func (s *UserService) Register(ctx context.Context, email, password string) (*store.User, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, Wrap(&Error{Kind: KindInternal, Msg: "failed to hash password"}, err)
	}

	user := &store.User{
		Email:          email,
		HashedPassword: hash,
		IsActive:       true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	metrics.UsersRegistered.Inc()
	s.logger.Info().Str("user_id", string(user.ID)).Msg("user registered")
	return user, nil
}

// Login verifies credentials and issues a bearer token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !auth.CheckPasswordHash(password, user.HashedPassword) || !user.IsActive {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(string(user.ID))
	if err != nil {
		return "", Wrap(&Error{Kind: KindInternal, Msg: "failed to generate token"}, err)
	}
	return token, nil
}

// Authenticate resolves a bearer token to an active user.
func (s *UserService) Authenticate(ctx context.Context, token string) (*store.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	subject, err := s.tokens.Validate(token)
	if err != nil {
		return nil, Wrap(ErrUnauthorized, err)
	}

	user, err := s.store.GetUserByID(ctx, store.UserID(subject))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// GetUser lets a superuser read any account.
func (s *UserService) GetUser(ctx context.Context, actor *store.User, id store.UserID) (*store.User, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	if !actor.IsSuperuser {
		return nil, ErrForbidden
	}

	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateMe applies a self-service update. Flag fields are ignored.
func (s *UserService) UpdateMe(ctx context.Context, actor *store.User, upd UserUpdate) (*store.User, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	upd.IsActive, upd.IsVerified, upd.IsSuperuser = nil, nil, nil

	user := *actor
	return s.apply(ctx, &user, upd)
}

// UpdateUser lets a superuser change any account, including its flags.
func (s *UserService) UpdateUser(ctx context.Context, actor *store.User, id store.UserID, upd UserUpdate) (*store.User, error) {
	user, err := s.GetUser(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, user, upd)
}

func (s *UserService) apply(ctx context.Context, user *store.User, upd UserUpdate) (*store.User, error) {
	if upd.Email != nil {
		email := strings.TrimSpace(*upd.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		user.Email = email
	}
	if upd.Password != nil {
		if err := validatePassword(*upd.Password); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(*upd.Password)
		if err != nil {
			return nil, Wrap(&Error{Kind: KindInternal, Msg: "failed to hash password"}, err)
		}
		user.HashedPassword = hash
	}
	if upd.IsActive != nil {
		user.IsActive = *upd.IsActive
	}
	if upd.IsVerified != nil {
		user.IsVerified = *upd.IsVerified
	}
	if upd.IsSuperuser != nil {
		user.IsSuperuser = *upd.IsSuperuser
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateEmail):
			return nil, ErrEmailTaken
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
