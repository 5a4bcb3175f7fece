// Package auth verifies user credentials against bcrypt hashes stored in the
// users table. It issues no sessions or tokens.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"github.com/tphakala/fallwatch/internal/datastore"
	"github.com/tphakala/fallwatch/internal/datastore/repository"
	"github.com/tphakala/fallwatch/internal/errors"
	"github.com/tphakala/fallwatch/internal/logger"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 64
	minPasswordLength = 6
	// bcrypt ignores input beyond 72 bytes.
	maxPasswordLength = 72

	// DefaultMaxFailedLogins is the number of failed logins allowed per
	// username inside DefaultFailedLoginWindow.
	DefaultMaxFailedLogins   = 5
	DefaultFailedLoginWindow = 5 * time.Minute
)

var (
	// ErrInvalidCredentials is returned for unknown users and wrong passwords alike.
	ErrInvalidCredentials = errors.NewStd("invalid username or password")

	// ErrForbidden is returned when valid credentials lack the required role.
	ErrForbidden = errors.NewStd("insufficient privileges")

	// ErrTooManyAttempts is returned while a username is locked out after
	// repeated failed logins.
	ErrTooManyAttempts = errors.NewStd("too many failed login attempts")
)

// Service manages user accounts.
type Service struct {
	repo repository.UserRepository
	cost int
	// dummyHash is compared against for unknown users so both failure
	// paths take similar time.
	dummyHash []byte

	// failures counts failed logins per username. Entries expire one
	// window after the first failure.
	failures    *cache.Cache
	maxFailures int
}

// Option configures a Service.
type Option func(*Service)

// WithCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithLoginThrottle locks a username out for window after maxFailures
// failed logins. A maxFailures of zero disables throttling.
func WithLoginThrottle(maxFailures int, window time.Duration) Option {
	return func(s *Service) {
		s.maxFailures = maxFailures
		s.failures = cache.New(window, 0)
	}
}

// NewService creates a Service backed by repo.
func NewService(repo repository.UserRepository, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		cost:        bcrypt.DefaultCost,
		maxFailures: DefaultMaxFailedLogins,
		// No janitor goroutine; expired entries are purged on each failure.
		failures: cache.New(DefaultFailedLoginWindow, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("fallwatch-dummy-password"), s.cost)
	return s
}

// SeedAdmin creates the administrator account when no users exist.
func (s *Service) SeedAdmin(ctx context.Context, username, password string) error {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return errors.New(err).
			Component("auth").
			Category(errors.CategoryDatabase).
			Context("operation", "seed_admin").
			Build()
	}
	if count > 0 {
		return nil
	}
	if _, err := s.Register(ctx, username, password, datastore.RoleAdmin); err != nil {
		return err
	}
	GetLogger().Warn("created default administrator account, change its password",
		logger.String("username", username))
	return nil
}

// Login verifies credentials and returns the user.
func (s *Service) Login(ctx context.Context, username, password string) (*datastore.User, error) {
	if s.lockedOut(username) {
		GetLogger().Warn("login rejected, too many failed attempts", logger.String("username", username))
		return nil, ErrTooManyAttempts
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		s.recordFailure(username)
		GetLogger().Info("login failed", logger.String("username", username))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, errors.New(err).
			Component("auth").
			Category(errors.CategoryDatabase).
			Context("operation", "login").
			Build()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.recordFailure(username)
		GetLogger().Info("login failed", logger.String("username", username))
		return nil, ErrInvalidCredentials
	}
	s.failures.Delete(failureKey(username))
	return user, nil
}

// Authorize verifies credentials and requires the given role.
func (s *Service) Authorize(ctx context.Context, username, password, role string) (*datastore.User, error) {
	user, err := s.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if user.Role != role {
		return nil, ErrForbidden
	}
	return user, nil
}

// Register creates a user. An empty role means datastore.RoleUser.
func (s *Service) Register(ctx context.Context, username, password, role string) (*datastore.User, error) {
	username = strings.TrimSpace(username)
	if role == "" {
		role = datastore.RoleUser
	}
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if role != datastore.RoleUser && role != datastore.RoleAdmin {
		return nil, validationError("role must be user or admin", "role")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, errors.New(err).
			Component("auth").
			Category(errors.CategoryAuth).
			Context("operation", "hash_password").
			Build()
	}

	user := &datastore.User{Username: username, PasswordHash: string(hash), Role: role}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, err
		}
		return nil, errors.New(err).
			Component("auth").
			Category(errors.CategoryDatabase).
			Context("operation", "register").
			Build()
	}

	GetLogger().Info("user registered",
		logger.String("username", username),
		logger.String("role", role))
	return user, nil
}

// ChangePassword replaces the password after re-verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, username, current, next string) error {
	user, err := s.Login(ctx, username, current)
	if err != nil {
		return err
	}
	if err := validatePassword(next); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return errors.New(err).
			Component("auth").
			Category(errors.CategoryAuth).
			Context("operation", "hash_password").
			Build()
	}
	if err := s.repo.UpdatePasswordHash(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	GetLogger().Info("password changed", logger.String("username", username))
	return nil
}

// Users returns all accounts.
func (s *Service) Users(ctx context.Context) ([]datastore.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.New(err).
			Component("auth").
			Category(errors.CategoryDatabase).
			Context("operation", "list_users").
			Build()
	}
	if users == nil {
		users = []datastore.User{}
	}
	return users, nil
}

// DeleteUser removes an account. Returns repository.ErrUserNotFound when absent.
func (s *Service) DeleteUser(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	GetLogger().Info("user deleted", logger.Uint64("id", uint64(id)))
	return nil
}

func validateUsername(username string) error {
	if n := len(username); n < minUsernameLength || n > maxUsernameLength {
		return validationError("username must be between 3 and 64 characters", "username")
	}
	return nil
}

func validatePassword(password string) error {
	if n := len(password); n < minPasswordLength || n > maxPasswordLength {
		return validationError("password must be between 6 and 72 characters", "password")
	}
	return nil
}

func validationError(message, field string) error {
	return errors.Newf("%s", message).
		Component("auth").
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}

func failureKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (s *Service) lockedOut(username string) bool {
	if s.maxFailures <= 0 {
		return false
	}
	v, ok := s.failures.Get(failureKey(username))
	if !ok {
		return false
	}
	count, ok := v.(int)
	return ok && count >= s.maxFailures
}

func (s *Service) recordFailure(username string) {
	if s.maxFailures <= 0 {
		return
	}
	s.failures.DeleteExpired()
	key := failureKey(username)
	if err := s.failures.Increment(key, 1); err != nil {
		s.failures.SetDefault(key, 1)
	}
}
