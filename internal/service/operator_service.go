package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/quizlock/internal/config"
	"golang.org/x/crypto/bcrypt"
)

// Operator auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrOperatorDisabled   = errors.New("operator passphrase not configured")
	ErrTokenExpired       = errors.New("token expired")
)

// TokenType distinguishes token audiences.
type TokenType string

const TokenTypeOperator TokenType = "operator"

// operatorSubject is the fixed subject of every operator token; there is a
// single operator identity per deployment.
const operatorSubject = "operator"

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
}

// IssuedToken is a signed operator token and its expiry.
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OperatorService exchanges the operator passphrase for a signed token that
// unlocks the privileged skip intent.
type OperatorService struct {
	cfg *config.Config
}

// NewOperatorService creates a new OperatorService.
func NewOperatorService(cfg *config.Config) *OperatorService {
	return &OperatorService{cfg: cfg}
}

// Enabled reports whether a passphrase hash is configured.
func (s *OperatorService) Enabled() bool {
	return s.cfg.OperatorPassphraseHash != ""
}

// HashPassphrase hashes a passphrase with the configured bcrypt cost.
func (s *OperatorService) HashPassphrase(passphrase string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), s.cfg.BcryptCost)
	return string(hash), err
}

// IssueToken checks passphrase against the configured hash and signs an
// operator token.
func (s *OperatorService) IssueToken(passphrase string) (*IssuedToken, error) {
	if !s.Enabled() {
		return nil, ErrOperatorDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.OperatorPassphraseHash), []byte(passphrase)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	expires := now.Add(s.cfg.JWTExpiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   operatorSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		TokenType: TokenTypeOperator,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &IssuedToken{Token: signed, ExpiresAt: expires.UTC()}, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *OperatorService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}
