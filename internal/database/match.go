package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/thereayou/heartmatch/internal/models"
	"github.com/thereayou/heartmatch/internal/services"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (d *Database) InsertMatchIfAbsent(ctx context.Context, low, high uuid.UUID) (*models.Match, bool, error) {
	if low.String() >= high.String() {
		return nil, false, fmt.Errorf("insert match: %w: pair is not canonical", services.ErrInvalidArgument)
	}

	match := models.Match{
		ID:         uuid.New(),
		UserLowID:  low,
		UserHighID: high,
	}

	res := d.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_low_id"}, {Name: "user_high_id"}},
			DoNothing: true,
		}).
		Create(&match)
	if res.Error != nil {
		return nil, false, wrapErr("insert match", res.Error)
	}
	if res.RowsAffected > 0 {
		return &match, true, nil
	}

	existing, err := d.GetMatchByPair(ctx, low, high)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (d *Database) GetMatch(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	var match models.Match
	if err := d.db.WithContext(ctx).First(&match, "id = ?", id).Error; err != nil {
		return nil, wrapErr("get match", err)
	}
	return &match, nil
}

func (d *Database) GetMatchByPair(ctx context.Context, low, high uuid.UUID) (*models.Match, error) {
	var match models.Match
	err := d.db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ?", low, high).
		First(&match).Error
	if err != nil {
		return nil, wrapErr("get match by pair", err)
	}
	return &match, nil
}

func (d *Database) ListMatchesForUser(ctx context.Context, userID uuid.UUID) ([]models.Match, error) {
	var matches []models.Match
	err := d.db.WithContext(ctx).
		Where("user_low_id = ? OR user_high_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&matches).Error
	if err != nil {
		return nil, wrapErr("list matches", err)
	}
	return matches, nil
}

func (d *Database) DeleteMatch(ctx context.Context, id uuid.UUID) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Message{}, "match_id = ?", id).Error; err != nil {
			return wrapErr("delete match messages", err)
		}

		res := tx.Delete(&models.Match{}, "id = ?", id)
		if res.Error != nil {
			return wrapErr("delete match", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("delete match: %w", services.ErrNotFound)
		}
		return nil
	})
}
