package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProductStatus tracks whether a catalog product is still listed upstream.
type ProductStatus string

const (
	ProductStatusActive  ProductStatus = "active"
	ProductStatusRemoved ProductStatus = "removed"
)

// TcgCatalogProduct mirrors one TCGplayer catalog product.
// Products missing from a full sync pass are tombstoned (ProductStatusRemoved), never deleted.
type TcgCatalogProduct struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	ProductID     int64          `json:"product_id" gorm:"uniqueIndex;not null"`
	Name          string         `json:"name" gorm:"not null"`
	CleanName     string         `json:"clean_name"`
	ImageURL      string         `json:"image_url,omitempty"`
	URL           string         `json:"url,omitempty"`
	CategoryID    int            `json:"category_id" gorm:"index"`
	GroupID       int            `json:"group_id" gorm:"index"`
	CardType      string         `json:"card_type,omitempty"`
	Rarity        string         `json:"rarity,omitempty"`
	Number        string         `json:"number,omitempty" gorm:"index"`
	IsSealed      bool           `json:"is_sealed"`
	Metadata      datatypes.JSON `json:"metadata"`
	ProductStatus ProductStatus  `json:"product_status" gorm:"type:varchar(16);not null;default:'active';index"`
	LastSyncedAt  time.Time      `json:"last_synced_at" gorm:"index;not null"`
	Timestamps
}
