package service

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/academicchain/platform/internal/config"
)

var (
	// ErrInvalidCredentials covers every login failure: wrong password,
	// missing or wrong TOTP code. Callers get no finer detail.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidSession is returned for session tokens that fail signature
	// or expiry checks.
	ErrInvalidSession = errors.New("invalid or expired session")
)

// AuthService authenticates the single configured administrator and manages
// signed session tokens. Session state is stateless: a token is valid until
// its expiry, and logout is the client discarding its cookie.
type AuthService struct {
	cfg       config.AuthConfig
	jwtSecret []byte
}

// NewAuthService creates an AuthService from the auth configuration.
func NewAuthService(cfg config.AuthConfig) *AuthService {
	return &AuthService{cfg: cfg, jwtSecret: []byte(cfg.JWTSecret)}
}

// Login verifies the administrator credential. The password is accepted
// against the plaintext dev password or the bcrypt hash, whichever is
// configured; when a TOTP secret is configured a valid current code is also
// required.
func (s *AuthService) Login(password, totpCode string) error {
	ok := false
	if s.cfg.AdminPassword != "" &&
		subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.AdminPassword)) == 1 {
		ok = true
	}
	if !ok && s.cfg.AdminPasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password)); err == nil {
			ok = true
		}
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if s.cfg.TOTPSecret != "" && !totp.Validate(totpCode, s.cfg.TOTPSecret) {
		return ErrInvalidCredentials
	}
	return nil
}

// IssueSession creates a signed session token for the administrator.
func (s *AuthService) IssueSession() (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.SessionTTL())),
			Issuer:    "acp",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// VerifySession checks a session token's signature and expiry.
func (s *AuthService) VerifySession(tokenStr string) error {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidSession
	}
	return nil
}

// SessionTTL returns the configured session lifetime.
func (s *AuthService) SessionTTL() time.Duration {
	return s.cfg.SessionTTLDuration()
}

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}
