// Package resolver maps external card codes (e.g. "OP01-001") to catalog card IDs.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"tcg-companion/logging"
	"tcg-companion/metrics"
	"tcg-companion/models"
)

// CardIDResolver resolves a card code to an internal card ID. A nil ID means the code is
// not in the catalog; callers drop the entry and carry on.
type CardIDResolver interface {
	Resolve(ctx context.Context, code string) (*uint, error)
}

// Cache is a gorm-backed CardIDResolver that memoizes every lookup, misses included, for the
// lifetime of the value. Build one per sync run.
type Cache struct {
	db  *gorm.DB
	log zerolog.Logger

	mu   sync.Mutex
	memo map[string]*uint
}

func NewCache(db *gorm.DB) *Cache {
	return &Cache{
		db:   db,
		log:  logging.For("resolver"),
		memo: make(map[string]*uint),
	}
}

// Resolve prefers the base printing (no BaseCardID), then any printing with the code.
func (c *Cache) Resolve(ctx context.Context, code string) (*uint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.memo[code]; ok {
		return id, nil
	}

	id, err := c.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if id == nil {
		c.log.Warn().Str("code", code).Msg("⚠️ [RESOLVE] no catalog card for code")
		metrics.UnresolvedCards.Inc()
	}
	c.memo[code] = id
	return id, nil
}

// Len reports how many codes are memoized.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.memo)
}

func (c *Cache) lookup(ctx context.Context, code string) (*uint, error) {
	var card models.Card
	err := c.db.WithContext(ctx).
		Select("id").
		Where("code = ? AND base_card_id IS NULL", code).
		Order("id").
		First(&card).Error
	if err == nil {
		return &card.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to resolve card %s: %w", code, err)
	}

	err = c.db.WithContext(ctx).
		Select("id").
		Where("code = ?", code).
		Order("id").
		First(&card).Error
	if err == nil {
		return &card.ID, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("failed to resolve card %s: %w", code, err)
}
