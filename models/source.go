package models

import "time"

// SourceLimitless is the slug of the Limitless TCG tournament site.
const SourceLimitless = "limitless"

// TournamentSource is a named external provider of tournament data.
type TournamentSource struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Slug         string     `json:"slug" gorm:"uniqueIndex;not null"`
	Name         string     `json:"name" gorm:"not null"`
	BaseURL      string     `json:"base_url"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	Timestamps
}
