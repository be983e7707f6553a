package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/permission/domain"
	"github.com/smallbiznis/fieldops/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByUserID(ctx context.Context, conn *gorm.DB, userID snowflake.ID) (*domain.UserPermission, error) {
	return r.find(conn.WithContext(ctx), userID)
}

func (r *repo) FindByUserIDForUpdate(ctx context.Context, conn *gorm.DB, userID snowflake.ID) (*domain.UserPermission, error) {
	return r.find(db.ForUpdate(conn.WithContext(ctx)), userID)
}

func (r *repo) find(stmt *gorm.DB, userID snowflake.ID) (*domain.UserPermission, error) {
	var perm domain.UserPermission
	err := stmt.Where("user_id = ?", userID).First(&perm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *repo) InsertIfAbsent(ctx context.Context, conn *gorm.DB, perm *domain.UserPermission) error {
	return conn.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(perm).Error
}

func (r *repo) Save(ctx context.Context, conn *gorm.DB, perm *domain.UserPermission) error {
	return conn.WithContext(ctx).
		Model(&domain.UserPermission{}).
		Where("id = ?", perm.ID).
		Select("*").
		Omit("id", "user_id").
		Updates(perm).Error
}
