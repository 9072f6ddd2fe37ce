package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/heartmatch/internal/models"
)

func (d *Database) SaveUser(ctx context.Context, user *models.User) error {
	return wrapErr("save user", d.db.WithContext(ctx).Create(user).Error)
}

func (d *Database) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := models.User{}
	if err := d.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, wrapErr("get user", err)
	}
	return &user, nil
}

func (d *Database) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, wrapErr("user exists", err)
	}
	return count > 0, nil
}

func (d *Database) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := models.User{}
	if err := d.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, wrapErr("find user by email", err)
	}
	return &user, nil
}
