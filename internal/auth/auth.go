// Package auth issues and validates the session token carried by the
// "opaque session cookie that identifies the authenticated account"
// (spec §6). Adapted from the teacher's JWT auth.Service, extended
// with the is_bot/is_admin claims the router's policy table (spec
// §4.G) needs to authorize admin-only Global chat and bot endpoints.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidToken = errors.New("invalid session token")

// Claims identifies the authenticated account carried by a session token.
type Claims struct {
	UserID  string
	IsBot   bool
	IsAdmin bool
}

// Service issues and validates session tokens and hashes passwords
// for the (ambient, out-of-spec-scope) account registration surface.
type Service struct {
	secret []byte
}

// NewService builds a Service bound to a signing secret.
func NewService(secret string) *Service {
	return &Service{secret: []byte(secret)}
}

// HashPassword hashes a plaintext password with bcrypt.
func (s *Service) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

// CheckPassword reports whether password matches hash.
func (s *Service) CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken issues a signed session token for userID, valid 24h.
func (s *Service) GenerateToken(userID string, isBot, isAdmin bool) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  userID,
		"is_bot":   isBot,
		"is_admin": isAdmin,
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString(s.secret)
}

// ValidateToken parses and verifies a session token, returning the
// account's Claims. Returns ErrInvalidToken on any failure — the
// connection handshake treats this as anonymous, not as a fatal error
// (spec §4.D: "anonymous connections are allowed for spectate-only").
func (s *Service) ValidateToken(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return Claims{}, ErrInvalidToken
	}

	isBot, _ := claims["is_bot"].(bool)
	isAdmin, _ := claims["is_admin"].(bool)

	return Claims{UserID: userID, IsBot: isBot, IsAdmin: isAdmin}, nil
}

// GenerateID returns a random 128-bit hex id, used where a UserId or
// other opaque identifier is minted outside of uuid.New (e.g. schedule
// notification dedup keys).
func GenerateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
