package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/heartmatch/internal/models"
	"gorm.io/gorm/clause"
)

// InsertLikeIfAbsent relies on idx_likes_pair: a concurrent duplicate
// becomes a no-op and the existing row is read back.
func (d *Database) InsertLikeIfAbsent(ctx context.Context, from, to uuid.UUID) (*models.Like, bool, error) {
	like := models.Like{
		ID:         uuid.New(),
		FromUserID: from,
		ToUserID:   to,
	}

	res := d.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "from_user_id"}, {Name: "to_user_id"}},
			DoNothing: true,
		}).
		Create(&like)
	if res.Error != nil {
		return nil, false, wrapErr("insert like", res.Error)
	}
	if res.RowsAffected > 0 {
		return &like, true, nil
	}

	var existing models.Like
	err := d.db.WithContext(ctx).
		Where("from_user_id = ? AND to_user_id = ?", from, to).
		First(&existing).Error
	if err != nil {
		return nil, false, wrapErr("load existing like", err)
	}
	return &existing, false, nil
}

func (d *Database) DeleteLike(ctx context.Context, from, to uuid.UUID) (bool, error) {
	res := d.db.WithContext(ctx).
		Where("from_user_id = ? AND to_user_id = ?", from, to).
		Delete(&models.Like{})
	if res.Error != nil {
		return false, wrapErr("delete like", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (d *Database) LikeExists(ctx context.Context, from, to uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("from_user_id = ? AND to_user_id = ?", from, to).
		Count(&count).Error
	if err != nil {
		return false, wrapErr("lookup like", err)
	}
	return count > 0, nil
}

func (d *Database) ListLikedUserIDs(ctx context.Context, from uuid.UUID) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0)
	err := d.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("from_user_id = ?", from).
		Order("created_at ASC").
		Pluck("to_user_id", &ids).Error
	if err != nil {
		return nil, wrapErr("list likes", err)
	}
	return ids, nil
}
