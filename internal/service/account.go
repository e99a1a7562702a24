package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/sakif/todolist/internal/apperror"
	"github.com/sakif/todolist/internal/auth"
	"github.com/sakif/todolist/internal/model"
	"github.com/sakif/todolist/internal/repository"
	"github.com/sakif/todolist/internal/timeutil"
)

const MaxNameLength = 100

// AccountService handles sign-in and the per-user settings.
//
//	AuthHandler (HTTP) → AccountService → UserRepository (DB)
//	                   ↘ TokenService (JWT)
//
// The identity provider has already verified the email by the time SignIn is
// called, so there are no passwords here: the email is the account.
type AccountService struct {
	users       repository.UserRepository
	tokens      *auth.TokenService
	defaultZone string
	samples     *TaskService
	logger      *slog.Logger
}

// AccountOption configures an AccountService.
type AccountOption func(*AccountService)

// WithSampleTasks fills every newly created account with example tasks.
func WithSampleTasks(tasks *TaskService) AccountOption {
	return func(s *AccountService) { s.samples = tasks }
}

// NewAccountService creates an AccountService. defaultZone is given to users
// on their first sign-in; empty means timeutil.DefaultZone.
func NewAccountService(users repository.UserRepository, tokens *auth.TokenService, defaultZone string, logger *slog.Logger, opts ...AccountOption) *AccountService {
	if strings.TrimSpace(defaultZone) == "" {
		defaultZone = timeutil.DefaultZone
	}
	s := &AccountService{
		users:       users,
		tokens:      tokens,
		defaultZone: defaultZone,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignInResult bundles the user and the session token so the handler can set
// the cookie and decide where to redirect in one step.
type SignInResult struct {
	User    *model.User
	Token   string
	Created bool
}

// SignIn records a verified identity, creating the user on first sight, and
// issues a session token.
//
// Names shared by the provider prefill a new account. Users whose profile is
// still incomplete are sent to their settings page by the handler.
func (s *AccountService) SignIn(ctx context.Context, id auth.Identity) (*SignInResult, error) {
	if s.tokens == nil {
		return nil, errors.New("service/account: no token service configured")
	}

	email, err := normalizeEmail(id.Email)
	if err != nil {
		return nil, err
	}

	user, created, err := s.users.GetOrCreateUser(ctx, email, s.defaultZone)
	if err != nil {
		logStorageError(s.logger, "failed to sign in", err, slog.String("email", email))
		return nil, fmt.Errorf("signing in: %w", err)
	}

	if created {
		s.logger.Info("user created", slog.String("email", email))
		if err := s.prefillNames(ctx, user, id); err != nil {
			return nil, err
		}
		if s.samples != nil {
			if err := s.samples.AddSampleTasks(ctx, user.Email); err != nil {
				logStorageError(s.logger, "failed to add sample tasks", err, slog.String("email", email))
				return nil, fmt.Errorf("signing in: %w", err)
			}
		}
	}
	s.logger.Info("user signed in", slog.String("email", email))

	token, err := s.tokens.Generate(user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/account: generating token for %s: %w", user.Email, err)
	}

	return &SignInResult{User: user, Token: token, Created: created}, nil
}

func (s *AccountService) prefillNames(ctx context.Context, user *model.User, id auth.Identity) error {
	first := strings.TrimSpace(id.FirstName)
	last := strings.TrimSpace(id.LastName)
	if first == "" && last == "" {
		return nil
	}
	user.FirstName = first
	user.LastName = last
	if err := s.users.UpdateUser(ctx, user); err != nil {
		logStorageError(s.logger, "failed to prefill names", err, slog.String("email", user.Email))
		return fmt.Errorf("signing in: %w", err)
	}
	return nil
}

// GetUser returns the account for email.
func (s *AccountService) GetUser(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.GetUser(ctx, email)
	if err != nil {
		logStorageError(s.logger, "failed to load user", err, slog.String("email", email))
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return user, nil
}

// UpdateSettings saves first name, last name and time zone.
// Both names are required and the zone must be a known IANA name.
func (s *AccountService) UpdateSettings(ctx context.Context, email, firstName, lastName, timeZone string) (*model.User, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	timeZone = strings.TrimSpace(timeZone)

	switch {
	case firstName == "":
		return nil, apperror.ValidationFailed("first_name", "first name is required")
	case lastName == "":
		return nil, apperror.ValidationFailed("last_name", "last name is required")
	case utf8.RuneCountInString(firstName) > MaxNameLength:
		return nil, apperror.ValidationFailed("first_name",
			fmt.Sprintf("first name must be %d characters or less", MaxNameLength))
	case utf8.RuneCountInString(lastName) > MaxNameLength:
		return nil, apperror.ValidationFailed("last_name",
			fmt.Sprintf("last name must be %d characters or less", MaxNameLength))
	}

	if timeZone == "" {
		timeZone = s.defaultZone
	}
	if _, err := timeutil.LoadZone(timeZone); err != nil {
		return nil, apperror.ValidationFailed("time_zone", fmt.Sprintf("unknown time zone %q", timeZone))
	}

	user, err := s.users.GetUser(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}

	user.FirstName = firstName
	user.LastName = lastName
	user.TimeZone = timeZone
	if err := s.users.UpdateUser(ctx, user); err != nil {
		logStorageError(s.logger, "failed to update settings", err, slog.String("email", email))
		return nil, fmt.Errorf("updating settings: %w", err)
	}

	s.logger.Info("settings updated", slog.String("email", email), slog.String("timeZone", timeZone))
	return user, nil
}

// normalizeEmail lower-cases an address and checks it parses as one bare
// address.
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.ValidationFailed("email", fmt.Sprintf("%q is not a valid email address", raw))
	}
	return email, nil
}

// logStorageError logs err at Error level unless it is an ordinary domain
// answer (not found, validation).
func logStorageError(logger *slog.Logger, msg string, err error, attrs ...any) {
	if errors.Is(err, apperror.ErrNotFound) || errors.Is(err, apperror.ErrValidation) {
		return
	}
	attrs = append(attrs, slog.String("error", err.Error()))
	if cause := apperror.CauseOf(err); cause != nil {
		attrs = append(attrs, slog.String("cause", cause.Error()))
	}
	logger.Error(msg, attrs...)
}
