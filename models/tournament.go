package models

import (
	"time"
)

// TournamentType is inferred from the tournament name; nil means unknown/open.
type TournamentType string

const (
	TournamentTypeRegional     TournamentType = "REGIONAL"
	TournamentTypeChampionship TournamentType = "CHAMPIONSHIP"
	TournamentTypeTreasureCup  TournamentType = "TREASURE_CUP"
)

const TournamentStatusCompleted = "completed"

// Tournament is one competitive event scraped from a TournamentSource.
// (SourceID, SourceTournamentID) is the identity; re-syncs update in place.
type Tournament struct {
	ID                  uint            `json:"id" gorm:"primaryKey"`
	SourceID            uint            `json:"source_id" gorm:"uniqueIndex:idx_tournament_source_ref;not null"`
	SourceTournamentID  string          `json:"source_tournament_id" gorm:"uniqueIndex:idx_tournament_source_ref;not null"`
	Type                *TournamentType `json:"type,omitempty" gorm:"type:varchar(32)"`
	Name                string          `json:"name" gorm:"not null"`
	Region              string          `json:"region,omitempty"`
	Country             string          `json:"country,omitempty"`
	Format              string          `json:"format,omitempty"`
	EventDate           *time.Time      `json:"event_date,omitempty" gorm:"index"`
	PlayerCount         *int            `json:"player_count,omitempty"`
	IsPlayerCountApprox bool            `json:"is_player_count_approx" gorm:"default:false"`
	WinnerName          string          `json:"winner_name,omitempty"`
	WinnerURL           string          `json:"winner_url,omitempty"`
	TournamentURL       string          `json:"tournament_url,omitempty"`
	Status              string          `json:"status" gorm:"default:'completed'"`
	LastSyncedAt        *time.Time      `json:"last_synced_at,omitempty"`
	Timestamps

	// Relationships
	Source TournamentSource `json:"source,omitempty" gorm:"foreignKey:SourceID"`
	Decks  []TournamentDeck `json:"decks,omitempty" gorm:"foreignKey:TournamentID"`
}

// TournamentDeck is one player's placement and deck within a tournament.
// SourceDeckRef is a synthesized composite key; the raw deck-list ID alone repeats across tournaments.
type TournamentDeck struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	TournamentID  uint   `json:"tournament_id" gorm:"not null;index"`
	DeckID        *uint  `json:"deck_id,omitempty" gorm:"index"`
	LeaderCardID  *uint  `json:"leader_card_id,omitempty" gorm:"index"`
	PlayerID      *uint  `json:"player_id,omitempty" gorm:"index"`
	PlayerName    string `json:"player_name"` // Denormalized display fallback
	Standing      *int   `json:"standing,omitempty"`
	DeckSourceURL string `json:"deck_source_url,omitempty"`
	ArchetypeName string `json:"archetype_name,omitempty"`
	SourceDeckRef string `json:"source_deck_ref" gorm:"uniqueIndex;not null"`
	Timestamps

	Deck   *Deck   `json:"deck,omitempty" gorm:"foreignKey:DeckID"`
	Player *Player `json:"player,omitempty" gorm:"foreignKey:PlayerID"`
}
