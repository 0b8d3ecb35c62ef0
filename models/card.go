package models

import "time"

// Card is a catalog card. Alternate-art printings point at their base printing through BaseCardID.
type Card struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	Code       string `json:"code" gorm:"index;not null"` // e.g. "OP01-001"
	Name       string `json:"name" gorm:"not null"`
	SetCode    string `json:"set_code,omitempty" gorm:"index"`
	Rarity     string `json:"rarity,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
	BaseCardID *uint  `json:"base_card_id,omitempty" gorm:"index"`

	// Pricing, mutated only by the price sync
	TcgplayerProductID *int64     `json:"tcgplayer_product_id,omitempty" gorm:"index"`
	MarketPrice        *float64   `json:"market_price,omitempty"`
	LowPrice           *float64   `json:"low_price,omitempty"`
	HighPrice          *float64   `json:"high_price,omitempty"`
	PriceCurrency      string     `json:"price_currency,omitempty" gorm:"default:'USD'"`
	PriceUpdatedAt     *time.Time `json:"price_updated_at,omitempty"`

	Timestamps
}

// PriceType identifies which price a CardPriceLog row records.
type PriceType string

const (
	PriceTypeMarket PriceType = "MARKET"
	PriceTypeLow    PriceType = "LOW"
	PriceTypeHigh   PriceType = "HIGH"
)

// CardPriceLog is an append-only price time series. A row is written for every fetched
// price, whether or not the card's current price changed.
type CardPriceLog struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	CardID      uint      `json:"card_id" gorm:"index:idx_price_log_card_type_time;not null"`
	PriceType   PriceType `json:"price_type" gorm:"index:idx_price_log_card_type_time;type:varchar(16);not null"`
	Price       float64   `json:"price" gorm:"not null"`
	Currency    string    `json:"currency" gorm:"type:varchar(8);not null;default:'USD'"`
	CollectedAt time.Time `json:"collected_at" gorm:"index:idx_price_log_card_type_time;not null"`
}
