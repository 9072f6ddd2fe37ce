package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/heartmatch/internal/models"
	"gorm.io/gorm/clause"
)

func (d *Database) SaveMessage(ctx context.Context, message *models.Message) error {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	return wrapErr("save message", d.db.WithContext(ctx).Omit(clause.Associations).Create(message).Error)
}

// ListMessages returns the newest limit messages of a match, oldest first.
func (d *Database) ListMessages(ctx context.Context, matchID uuid.UUID, limit int) ([]models.Message, error) {
	var messages []models.Message

	q := d.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&messages).Error
	if err != nil {
		return nil, wrapErr("list messages", err)
	}

	// Newest first from the query, flip to oldest first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
