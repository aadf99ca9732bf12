package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/m1k1o/go-portal/internal/utils"
)

const CookieName = "auth-token"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

var ErrInvalidToken = errors.New("invalid token")

type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

var Guest = User{Username: "guest", Role: RoleUser}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type Config struct {
	Secret       string
	Admin        string
	Password     string
	PasswordHash string // bcrypt, takes precedence over Password
	TokenTTL     time.Duration
	SecureCookie bool
}

func (c Config) withDefaultValues() Config {
	if c.Admin == "" {
		c.Admin = "admin"
	}
	if c.Password == "" && c.PasswordHash == "" {
		c.Password = "admin"
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 7 * 24 * time.Hour
	}
	return c
}

type claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type ManagerCtx struct {
	logger zerolog.Logger
	config Config
	secret []byte
}

func New(config *Config) *ManagerCtx {
	logger := log.With().Str("module", "auth").Logger()
	cfg := config.withDefaultValues()

	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			logger.Panic().Err(err).Msg("unable to generate token secret")
		}
		secret = []byte(hex.EncodeToString(buf))
		logger.Warn().Msg("no token secret configured, sessions will not survive restart")
	}

	if cfg.PasswordHash == "" && cfg.Password == "admin" {
		logger.Warn().Msg("using default admin password")
	}

	return &ManagerCtx{
		logger: logger,
		config: cfg,
		secret: secret,
	}
}

func (m *ManagerCtx) ValidateAdmin(username, password string) bool {
	if subtle.ConstantTimeCompare([]byte(username), []byte(m.config.Admin)) != 1 {
		return false
	}

	if m.config.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(m.config.PasswordHash), []byte(password)) == nil
	}

	return subtle.ConstantTimeCompare([]byte(password), []byte(m.config.Password)) == 1
}

func (m *ManagerCtx) SignToken(user User) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TokenTTL)),
		},
	})

	return token.SignedString(m.secret)
}

func (m *ManagerCtx) VerifyToken(tokenString string) (*User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return &User{Username: c.Username, Role: c.Role}, nil
}

// CurrentUser returns user of the request session, or nil.
func (m *ManagerCtx) CurrentUser(r *http.Request) *User {
	if user, ok := r.Context().Value(userKey{}).(*User); ok {
		return user
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	user, err := m.VerifyToken(cookie.Value)
	if err != nil {
		m.logger.Debug().Err(err).Msg("rejected session token")
		return nil
	}

	return user
}

func (m *ManagerCtx) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.config.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   m.config.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *ManagerCtx) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.config.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

type userKey struct{}

// RequireAdmin rejects requests without an admin session.
func (m *ManagerCtx) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := m.CurrentUser(r)
		if !user.IsAdmin() {
			utils.HttpError(w, http.StatusForbidden, "Permission denied")
			return
		}

		ctx := context.WithValue(r.Context(), userKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
