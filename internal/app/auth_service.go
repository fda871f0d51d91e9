package app

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/parkwise/reservation-api/internal/clock"
	"github.com/parkwise/reservation-api/internal/domain"
)

const defaultTokenTTL = 12 * time.Hour

type UserRepository interface {
	// CreateUserIfAbsent inserts user unless the username exists and reports whether it inserted.
	CreateUserIfAbsent(ctx context.Context, user domain.User) (bool, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
}

// SeedAdmin makes sure an administrator named username exists. Running it again is a no-op, and an
// existing account keeps its password.
func SeedAdmin(ctx context.Context, users UserRepository, clk clock.Clock, username, password string) (bool, error) {
	if err := validateInput(credentials{Username: username, Password: password}); err != nil {
		return false, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	return users.CreateUserIfAbsent(ctx, domain.User{
		Username:     username,
		PasswordHash: hash,
		IsAdmin:      true,
		IsActive:     true,
		CreatedAt:    clk.Now(),
	})
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

type credentials struct {
	Username string `field:"username" validate:"required,max=50"`
	Password string `field:"password" validate:"required,max=72"`
}

// Token is a signed bearer token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

type tokenClaims struct {
	Subject   string `json:"sub"`
	ExpiresAt int64  `json:"exp"`
}

type AuthService struct {
	users  UserRepository
	clock  clock.Clock
	secret []byte
	ttl    time.Duration
	logger *slog.Logger
}

type AuthServiceOption func(*AuthService)

func WithTokenTTL(d time.Duration) AuthServiceOption {
	return func(s *AuthService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func WithAuthLogger(l *slog.Logger) AuthServiceOption {
	return func(s *AuthService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewAuthService signs tokens with secret, which must be non-empty.
func NewAuthService(users UserRepository, clk clock.Clock, secret []byte, opts ...AuthServiceOption) (*AuthService, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	svc := &AuthService{
		users:  users,
		clock:  clk,
		secret: secret,
		ttl:    defaultTokenTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Login checks the credentials and issues a token for an active user.
func (s *AuthService) Login(ctx context.Context, username, password string) (Token, error) {
	logger := serviceLogger(ctx, s.logger, "AuthService", "Login", "username", username)

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			logger.WarnContext(ctx, "login rejected", "reason", "unknown user")
			return Token{}, domain.ErrInvalidCredentials
		}
		return Token{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		logger.WarnContext(ctx, "login rejected", "reason", "bad password")
		return Token{}, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		logger.WarnContext(ctx, "login rejected", "reason", "inactive user")
		return Token{}, domain.ErrInvalidCredentials
	}

	expiresAt := s.clock.Now().Add(s.ttl)
	token, err := s.sign(tokenClaims{Subject: user.ID, ExpiresAt: expiresAt.Unix()})
	if err != nil {
		return Token{}, err
	}
	logger.InfoContext(ctx, "login succeeded", "user_id", user.ID)
	return Token{AccessToken: token, ExpiresAt: expiresAt}, nil
}

// Authenticate resolves a bearer token to the principal it was issued for.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.Principal, error) {
	claims, err := s.verify(token)
	if err != nil {
		return domain.Principal{}, err
	}
	if s.clock.Now().Unix() >= claims.ExpiresAt {
		return domain.Principal{}, domain.ErrUnauthorized
	}

	user, err := s.users.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Principal{}, domain.ErrUnauthorized
		}
		return domain.Principal{}, err
	}
	if !user.IsActive {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	return domain.Principal{UserID: user.ID, Username: user.Username, IsAdmin: user.IsAdmin}, nil
}

func (s *AuthService) sign(claims tokenClaims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + base64.RawURLEncoding.EncodeToString(s.mac(body)), nil
}

func (s *AuthService) verify(token string) (tokenClaims, error) {
	body, sig, ok := strings.Cut(token, ".")
	if !ok || body == "" || sig == "" {
		return tokenClaims{}, domain.ErrUnauthorized
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(got, s.mac(body)) {
		return tokenClaims{}, domain.ErrUnauthorized
	}
	payload, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return tokenClaims{}, domain.ErrUnauthorized
	}
	var claims tokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Subject == "" {
		return tokenClaims{}, domain.ErrUnauthorized
	}
	return claims, nil
}

func (s *AuthService) mac(body string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(body))
	return h.Sum(nil)
}
