// Package adminstore persists API tokens for the admin HTTP API (zone and
// key management), separate from the DNS update backends in
// internal/memstore/internal/sqlstore. Grounded on the teacher's
// storage.Token model and its token-generation convention.
package adminstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// TokenPrefix marks a string as a duppy-go admin API token, the way the
// teacher's storage package prefixed its own tokens for quick recognition
// in logs and support requests.
const TokenPrefix = "duppy_admin_"

// Token is one admin API credential, scoped to one operator account.
type Token struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	Username    string `gorm:"index"`
	TokenString string `gorm:"uniqueIndex"`
	ExpiresAt   time.Time
	ReadOnly    bool `gorm:"default:false"`
}

// Store is a GORM-backed token store. It opens its own sqlite database
// rather than sharing the DNS backend's connection, since the admin API is
// optional and independent of which Backend (memstore/sqlstore/powerdns)
// serves DNS updates.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) a sqlite database at path and
// auto-migrates the Token schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("adminstore.Open: connect: %w", err)
	}
	if err := db.AutoMigrate(&Token{}); err != nil {
		return nil, fmt.Errorf("adminstore.Open: auto-migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) GetToken(ctx context.Context, tokenString string) (*Token, error) {
	var token Token
	err := s.db.WithContext(ctx).Where("token_string = ?", tokenString).Take(&token).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("adminstore.GetToken: %w", err)
	}
	return &token, nil
}

func (s *Store) ListTokens(ctx context.Context, username string) ([]Token, error) {
	var tokens []Token
	if err := s.db.WithContext(ctx).Where("username = ?", username).Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("adminstore.ListTokens: %w", err)
	}

	now := time.Now()
	var valid []Token
	for _, t := range tokens {
		if t.ExpiresAt.After(now) {
			valid = append(valid, t)
			continue
		}
		if err := s.db.WithContext(ctx).Delete(&Token{}, t.ID).Error; err != nil {
			return nil, fmt.Errorf("adminstore.ListTokens: delete expired token %d: %w", t.ID, err)
		}
	}
	return valid, nil
}

func (s *Store) CreateToken(ctx context.Context, username string, ttl time.Duration, readOnly bool) (*Token, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("adminstore.CreateToken: %w", err)
	}

	token := &Token{
		Username:    username,
		TokenString: TokenPrefix + hex.EncodeToString(b),
		ExpiresAt:   time.Now().Add(ttl),
		ReadOnly:    readOnly,
	}
	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		return nil, fmt.Errorf("adminstore.CreateToken: %w", err)
	}
	return token, nil
}

func (s *Store) DeleteToken(ctx context.Context, username string, id uint) (bool, error) {
	result := s.db.WithContext(ctx).Where("username = ? AND id = ?", username, id).Delete(&Token{})
	if result.Error != nil {
		return false, fmt.Errorf("adminstore.DeleteToken: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
