package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/postboard/apiserver/config"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

const (
	// DefaultTokenTTL applies when the TTL option is not configured at all.
	DefaultTokenTTL = 30 * time.Minute
	// fallbackTokenTTL replaces a zero or negative TTL; tokens always expire.
	fallbackTokenTTL = 15 * time.Minute
)

// TokenConfig is the immutable signing configuration built once at startup.
type TokenConfig struct {
	Secret    []byte
	Algorithm string
	TTL       time.Duration
}

// TokenConfigFrom converts the process auth configuration.
func TokenConfigFrom(cfg config.AuthConfig) TokenConfig {
	return TokenConfig{
		Secret:    []byte(cfg.JWTSecret),
		Algorithm: cfg.JWTAlgorithm,
		TTL:       time.Duration(cfg.TokenTTLMinutes) * time.Minute,
	}
}

// TokenService issues and verifies HMAC-signed JWT bearer tokens whose
// subject is the numeric user id.
type TokenService struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}

	alg := strings.ToUpper(strings.TrimSpace(cfg.Algorithm))
	if alg == "" {
		return nil, errors.New("token signing algorithm is required")
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = fallbackTokenTTL
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &TokenService{
		secret: secret,
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock returns a copy of the service that reads time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	tmp := *s
	tmp.now = now
	return &tmp
}

// TTL reports the effective token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for userID that expires after the configured TTL.
func (s *TokenService) Issue(userID int) (string, error) {
	if userID < 1 {
		return "", fmt.Errorf("invalid user id %d", userID)
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(s.method, claims)
	return token.SignedString(s.secret)
}

// Verify checks signature, algorithm and expiry and returns the subject user
// id. Every failure is reported as ErrInvalidToken.
func (s *TokenService) Verify(tokenString string) (int, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return 0, ErrInvalidToken
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return 0, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	userID, err := strconv.Atoi(subject)
	if err != nil || userID < 1 {
		return 0, fmt.Errorf("%w: malformed subject", ErrInvalidToken)
	}
	return userID, nil
}
