// Package auth manages API tokens for the HTTP surface.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken is returned when a presented token matches no stored hash.
var ErrInvalidToken = errors.New("invalid token")

// Service provides API token operations.
type Service struct {
	db *sql.DB
}

// NewService creates an auth service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// ResetToken generates a fresh token under the given name, replacing any
// existing token with that name. The plaintext token is returned exactly
// once; only the bcrypt hash is stored.
func (s *Service) ResetToken(ctx context.Context, name string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword(prehashToken(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing token: %w", err)
	}

	createdAt := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO api_tokens (id, name, token_hash, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			token_hash = excluded.token_hash,
			created_at = excluded.created_at
	`, uuid.New().String(), name, string(hash), createdAt)
	if err != nil {
		return "", fmt.Errorf("storing token: %w", err)
	}

	return token, nil
}

// Validate checks a presented token against every stored hash and returns
// the matching token's name.
func (s *Service) Validate(ctx context.Context, token string) (string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, token_hash FROM api_tokens")
	if err != nil {
		return "", fmt.Errorf("querying tokens: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	presented := prehashToken(token)
	for rows.Next() {
		var name, hash string
		if err := rows.Scan(&name, &hash); err != nil {
			return "", fmt.Errorf("scanning token: %w", err)
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), presented) == nil {
			return name, nil
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	return "", ErrInvalidToken
}

// HasTokens returns true if at least one API token exists.
func (s *Service) HasTokens(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM api_tokens").Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// prehashToken hashes the token with SHA-256 before bcrypt to stay within
// bcrypt's 72-byte input limit. The hex-encoded digest is 64 bytes.
func prehashToken(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return []byte(hex.EncodeToString(h[:]))
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
