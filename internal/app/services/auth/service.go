// Package auth implements signup, login and role-based request
// authorization on top of stateless session tokens.
package auth

import (
	"context"
	goerrors "errors"
	"strings"

	"github.com/titanicml/prediction-backend/internal/app/domain/user"
	"github.com/titanicml/prediction-backend/internal/app/storage"
	"github.com/titanicml/prediction-backend/internal/errors"
	"github.com/titanicml/prediction-backend/pkg/logger"
)

const minPasswordLen = 8

// invalidCredentials is shared by the unknown-email and wrong-password paths
// so response shape cannot be used to enumerate accounts.
const invalidCredentials = "invalid credentials"

// Service orchestrates signup and login against the user store and enforces
// role requirements for protected routes.
type Service struct {
	users  storage.UserStore
	tokens *TokenService
	hasher PasswordHasher
	log    *logger.Logger
}

// New constructs the auth service. A nil hasher defaults to Argon2id.
func New(users storage.UserStore, tokens *TokenService, hasher PasswordHasher, log *logger.Logger) *Service {
	if hasher == nil {
		hasher = NewArgon2Hasher()
	}
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &Service{users: users, tokens: tokens, hasher: hasher, log: log}
}

// Signup registers a new standard-role user. Admin accounts are seeded out
// of band, never through this path.
func (s *Service) Signup(ctx context.Context, email, password string) (user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateEmail(email); err != nil {
		return user.User{}, err
	}
	if len(password) < minPasswordLen {
		return user.User{}, errors.Validation("password must be at least 8 characters").WithDetails("field", "password")
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return user.User{}, errors.Conflict("email already registered")
	} else if !errors.IsKind(err, errors.KindNotFound) {
		return user.User{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user.User{}, errors.Internal("hash password", err)
	}

	created, err := s.users.CreateUser(ctx, user.User{
		Email:        email,
		PasswordHash: hash,
		Role:         user.RoleStandard,
	})
	if err != nil {
		return user.User{}, err
	}

	s.log.WithContext(ctx).WithField("user_id", created.ID).Info("user registered")
	return created, nil
}

// Login verifies credentials and returns a signed session token. Unknown
// email and wrong password produce the identical failure.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			return "", errors.Unauthorized(invalidCredentials)
		}
		return "", err
	}

	ok, err := s.hasher.Verify(u.PasswordHash, password)
	if err != nil {
		return "", errors.Internal("verify password", err)
	}
	if !ok {
		return "", errors.Unauthorized(invalidCredentials)
	}

	token, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return "", errors.Internal("issue token", err)
	}

	s.log.WithContext(ctx).WithField("user_id", u.ID).Info("user logged in")
	return token, nil
}

// Authenticate verifies a bearer token and returns its claims. Invalid and
// expired tokens are logged distinctly but both surface as unauthorized.
func (s *Service) Authenticate(ctx context.Context, token string) (Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		if goerrors.Is(err, ErrTokenExpired) {
			s.log.WithContext(ctx).WithError(err).Warn("expired token presented")
		} else {
			s.log.WithContext(ctx).WithError(err).Warn("invalid token presented")
		}
		return Claims{}, errors.Unauthorized("invalid or expired credentials")
	}
	return claims, nil
}

// Authorize checks the caller's role against the route requirement. An admin
// requirement rejects every other role; a standard requirement admits any
// valid role.
func (s *Service) Authorize(claims Claims, required user.Role) error {
	if required == user.RoleAdmin && claims.Role != user.RoleAdmin {
		return errors.Forbidden("admin role required")
	}
	return nil
}

func validateEmail(email string) error {
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 || !strings.Contains(email[at:], ".") {
		return errors.Validation("malformed email address").WithDetails("field", "email")
	}
	return nil
}
