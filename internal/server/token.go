package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vouchlab/vouchd/internal/ledger"
	"golang.org/x/crypto/bcrypt"
)

// ErrBadToken is returned for missing, malformed, expired, or tampered
// actor tokens.
var ErrBadToken = errors.New("invalid actor token")

// ActorClaims are the JWT claims of an actor identity token. The gateway
// (or the bootstrap endpoint) mints one per authenticated platform user;
// every API request carries it as a bearer token.
type ActorClaims struct {
	jwt.RegisteredClaims
	ActorID     string `json:"actor_id"`
	DisplayName string `json:"display_name"`
	Tag         string `json:"tag"`
	Bot         bool   `json:"bot,omitempty"`
}

// Identity converts the claims to the ledger's identity value.
func (c *ActorClaims) Identity() ledger.Identity {
	return ledger.Identity{
		ID:          c.ActorID,
		DisplayName: c.DisplayName,
		Tag:         c.Tag,
		Bot:         c.Bot,
	}
}

// TokenIssuer issues and verifies actor identity tokens with an HMAC key.
type TokenIssuer struct {
	key []byte
	ttl time.Duration
}

// NewTokenIssuer creates a TokenIssuer. ttl zero means 24 hours.
func NewTokenIssuer(key []byte, ttl time.Duration) *TokenIssuer {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{key: key, ttl: ttl}
}

// Issue creates a signed actor token.
func (t *TokenIssuer) Issue(id ledger.Identity) (string, error) {
	now := time.Now().UTC()
	claims := ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.New().String(),
		},
		ActorID:     id.ID,
		DisplayName: id.DisplayName,
		Tag:         id.Tag,
		Bot:         id.Bot,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("sign actor token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (t *TokenIssuer) Verify(raw string) (*ActorClaims, error) {
	var claims ActorClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.key, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrBadToken
	}
	if claims.ActorID == "" {
		return nil, ErrBadToken
	}
	return &claims, nil
}

// CheckBootstrapSecret compares a presented secret against the configured
// bcrypt hash. An empty hash disables the bootstrap endpoint.
func CheckBootstrapSecret(hash, secret string) bool {
	if hash == "" || secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
