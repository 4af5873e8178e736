package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/postboard/apiserver/internal/store"
	"github.com/postboard/apiserver/types"
)

const (
	tokenTypeBearer = "bearer"
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
	maxPhoneLength   = 20
	maxEmailLength   = 255
)

// AuthService encapsulates registration, login and the auth gate.
type AuthService struct {
	tx     Transactor
	users  UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	options
}

func NewAuthService(tx Transactor, users UserRepository, hasher PasswordHasher, tokens TokenIssuer, opts ...Option) *AuthService {
	return &AuthService{
		tx:      tx,
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		options: buildOptions(opts),
	}
}

// Register creates a user. A duplicate email fails with ErrConflict.
func (s *AuthService) Register(ctx context.Context, email, password, phone string) (types.User, error) {
	email = normalizeEmail(email)
	phone = strings.TrimSpace(phone)
	if err := validateRegistration(email, password, phone); err != nil {
		return types.User{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	var created types.User
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.users.Create(ctx, types.User{
			Email:        email,
			PasswordHash: hash,
			PhoneNumber:  phone,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, fmt.Errorf("%w: email %s is already registered", ErrConflict, email)
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered", slog.Int("user_id", created.ID))
	s.publish(ctx, types.Event{Type: types.EventUserRegistered, ActorID: created.ID})
	return created, nil
}

// Login checks the credentials and issues an access token. Unknown email and
// wrong password both fail with ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (types.AccessToken, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return types.AccessToken{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.AccessToken{}, ErrInvalidCredentials
		}
		return types.AccessToken{}, fmt.Errorf("load user: %w", err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return types.AccessToken{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return types.AccessToken{}, fmt.Errorf("issue token: %w", err)
	}
	return types.AccessToken{AccessToken: token, TokenType: tokenTypeBearer}, nil
}

// Authenticate resolves a bearer token to a live user. Every rejection,
// including a valid token for a deleted user, fails with ErrUnauthorized.
func (s *AuthService) Authenticate(ctx context.Context, token string) (types.User, error) {
	if strings.TrimSpace(token) == "" {
		return types.User{}, ErrUnauthorized
	}

	userID, err := s.tokens.Verify(token)
	if err != nil {
		return types.User{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUnauthorized
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// GetUser returns the user by id.
func (s *AuthService) GetUser(ctx context.Context, id int) (types.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, fmt.Errorf("%w: user with id %d", ErrNotFound, id)
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

func validateRegistration(email, password, phone string) error {
	if email == "" || len(email) > maxEmailLength {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: %q is not a valid email address", ErrValidation, email)
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, maxPasswordBytes)
	}
	if phone == "" || utf8.RuneCountInString(phone) > maxPhoneLength {
		return fmt.Errorf("%w: phone number is required and at most %d characters", ErrValidation, maxPhoneLength)
	}
	return nil
}
