package models

import (
	"github.com/google/uuid"
	"time"
)

// Message is immutable once stored. Display order is (CreatedAt, ID).
type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	MatchID   uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_match_created,priority:1"`
	SenderID  uuid.UUID `gorm:"type:uuid;not null"`
	Content   string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"index:idx_messages_match_created,priority:2"`
}
