package models

// Player is a local snapshot of an external tournament participant.
// Identity is (Source, SourcePlayerID); display names collide and change, so Name is never used as a key.
type Player struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	Source         string `json:"source" gorm:"uniqueIndex:idx_player_source_ref;not null"`
	SourcePlayerID string `json:"source_player_id" gorm:"uniqueIndex:idx_player_source_ref;not null"`
	Name           string `json:"name" gorm:"index;not null"`
	ProfileURL     string `json:"profile_url,omitempty"`
	Timestamps
}
