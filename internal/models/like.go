package models

import (
	"github.com/google/uuid"
	"time"
)

// Like is a one-directional expression of interest. A pair (from, to) is
// stored at most once.
type Like struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	FromUserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_likes_pair,priority:1"`
	ToUserID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_likes_pair,priority:2;index"`
	CreatedAt  time.Time

	FromUser User `gorm:"foreignKey:FromUserID;constraint:OnDelete:CASCADE"`
	ToUser   User `gorm:"foreignKey:ToUserID;constraint:OnDelete:CASCADE"`
}
