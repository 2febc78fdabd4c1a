package pager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrBadCursor is returned for malformed, expired, or tampered cursors.
var ErrBadCursor = errors.New("invalid cursor")

// ErrCursorOwner is returned when a cursor is presented by an identity
// other than the one it was issued to.
var ErrCursorOwner = errors.New("only the original requester can use this cursor")

// Cursor is the parsable pagination state exchanged with the navigation
// surface. It carries everything needed to re-derive the view, so no
// server-side session store exists.
type Cursor struct {
	RequesterID string `json:"requester_id"`
	SubjectID   string `json:"subject_id"`
	CommunityID string `json:"community_id"`
	Page        int    `json:"page"`
	TotalPages  int    `json:"total_pages"`
}

// cursorClaims are the JWT claims wrapping a Cursor.
type cursorClaims struct {
	jwt.RegisteredClaims
	Cursor
}

// CursorCodec signs and verifies cursors with an HMAC key, making them
// tamper-evident by construction.
type CursorCodec struct {
	key []byte
	ttl time.Duration
}

// NewCursorCodec creates a CursorCodec. ttl bounds how long an issued
// cursor stays usable; zero means 15 minutes.
func NewCursorCodec(key []byte, ttl time.Duration) *CursorCodec {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &CursorCodec{key: key, ttl: ttl}
}

// Encode signs the cursor into its opaque wire form.
func (c *CursorCodec) Encode(cur Cursor) (string, error) {
	now := time.Now().UTC()
	claims := cursorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Cursor: cur,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign cursor: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and expiry, checks that requesterID matches
// the identity the cursor was issued to, and returns the cursor fields.
func (c *CursorCodec) Decode(raw, requesterID string) (Cursor, error) {
	var claims cursorClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.key, nil
	})
	if err != nil || !token.Valid {
		return Cursor{}, ErrBadCursor
	}
	if claims.RequesterID != requesterID {
		return Cursor{}, ErrCursorOwner
	}
	return claims.Cursor, nil
}
