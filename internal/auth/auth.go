// Package auth guards the barista dashboard: a shared password (bcrypt hash
// or the basic-auth fallback) exchanged for a short-lived HS256 token.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const subject = "dashboard"

var (
	ErrBadPassword  = errors.New("invalid password")
	ErrInvalidToken = errors.New("invalid token")
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Config struct {
	Secret       []byte
	TTL          time.Duration
	PasswordHash string
	// Password is compared in constant time when no hash is configured.
	Password string
	User     string
}

type Authenticator struct {
	cfg Config
	now func() time.Time
}

func New(cfg Config) (*Authenticator, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: empty signing secret")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	return &Authenticator{cfg: cfg, now: time.Now}, nil
}

// HashPassword is used by baristactl to produce DASHBOARD_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (a *Authenticator) CheckPassword(password string) error {
	if a.cfg.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(a.cfg.PasswordHash), []byte(password)); err != nil {
			return ErrBadPassword
		}
		return nil
	}
	if a.cfg.Password == "" || subtle.ConstantTimeCompare([]byte(a.cfg.Password), []byte(password)) != 1 {
		return ErrBadPassword
	}
	return nil
}

// CheckBasic accepts the APP_USER/APP_PASS pair.
func (a *Authenticator) CheckBasic(user, password string) bool {
	if a.cfg.User == "" || a.cfg.Password == "" {
		return false
	}
	u := subtle.ConstantTimeCompare([]byte(a.cfg.User), []byte(user))
	p := subtle.ConstantTimeCompare([]byte(a.cfg.Password), []byte(password))
	return u&p == 1
}

// Login checks the password and issues a token.
func (a *Authenticator) Login(password string) (string, time.Time, error) {
	if err := a.CheckPassword(password); err != nil {
		return "", time.Time{}, err
	}
	return a.Issue()
}

func (a *Authenticator) Issue() (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.cfg.TTL)
	claims := Claims{
		Role: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, exp, nil
}

func (a *Authenticator) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return a.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid || claims.Role != subject {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
