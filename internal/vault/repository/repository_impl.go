package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/vault/domain"
	"github.com/smallbiznis/fieldops/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, record *domain.DeletedServiceRecord) error {
	return conn.WithContext(ctx).Create(record).Error
}

func (r *repo) FindByServiceID(ctx context.Context, conn *gorm.DB, serviceID snowflake.ID) (*domain.DeletedServiceRecord, error) {
	return r.find(conn.WithContext(ctx), serviceID)
}

func (r *repo) FindByServiceIDForUpdate(ctx context.Context, conn *gorm.DB, serviceID snowflake.ID) (*domain.DeletedServiceRecord, error) {
	return r.find(db.ForUpdate(conn.WithContext(ctx)), serviceID)
}

func (r *repo) find(stmt *gorm.DB, serviceID snowflake.ID) (*domain.DeletedServiceRecord, error) {
	var record domain.DeletedServiceRecord
	err := stmt.Where("service_id = ?", serviceID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repo) MarkRestored(ctx context.Context, conn *gorm.DB, stamp domain.RestoreStamp) (int64, error) {
	res := conn.WithContext(ctx).
		Model(&domain.DeletedServiceRecord{}).
		Where("id = ? AND restored_at IS NULL AND can_be_restored = ?", stamp.RecordID, true).
		Updates(map[string]any{
			"restored_by":         stamp.RestoredBy,
			"restored_at":         stamp.RestoredAt,
			"restored_service_id": stamp.RestoredServiceID,
			"can_be_restored":     false,
		})
	return res.RowsAffected, res.Error
}

func (r *repo) ListRestorable(ctx context.Context, conn *gorm.DB) ([]*domain.DeletedServiceRecord, error) {
	var items []*domain.DeletedServiceRecord
	err := conn.WithContext(ctx).
		Where("restored_at IS NULL AND can_be_restored = ?", true).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "deleted_at"}, Desc: true},
			{Column: clause.Column{Name: "id"}, Desc: true},
		}}).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
