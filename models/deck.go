package models

// Deck is a reusable deck built from resolved catalog card IDs.
type Deck struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	Name         string `json:"name" gorm:"not null"`
	UniqueURL    string `json:"unique_url" gorm:"uniqueIndex;not null"` // limitless-{deckListId} for imported decks
	Source       string `json:"source,omitempty" gorm:"index"`
	LeaderCardID *uint  `json:"leader_card_id,omitempty"`
	IsPublic     bool   `json:"is_public" gorm:"default:true"`
	Timestamps

	Cards []DeckCard `json:"cards,omitempty" gorm:"foreignKey:DeckID"`
}

// DeckCard is one line of a deck list.
type DeckCard struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	DeckID   uint   `json:"deck_id" gorm:"index;not null"`
	CardID   uint   `json:"card_id" gorm:"index;not null"`
	Quantity int    `json:"quantity" gorm:"not null;default:1"`
	Section  string `json:"section,omitempty"`
}
