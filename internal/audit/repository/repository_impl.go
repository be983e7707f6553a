package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/audit/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLogEntry) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) ListByService(ctx context.Context, db *gorm.DB, serviceID snowflake.ID) ([]*domain.AuditLogEntry, error) {
	var logs []*domain.AuditLogEntry
	err := db.WithContext(ctx).
		Where("service_id = ?", serviceID).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "timestamp"}},
			{Column: clause.Column{Name: "id"}},
		}}).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLogEntry, error) {
	var logs []*domain.AuditLogEntry
	stmt := db.WithContext(ctx).Model(&domain.AuditLogEntry{})

	if filter.ServiceID != nil {
		stmt = stmt.Where("service_id = ?", *filter.ServiceID)
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		stmt = stmt.Where("action = ?", action)
	}
	if filter.Cursor != nil {
		ts := clause.Column{Name: "timestamp"}
		id := clause.Column{Name: "id"}
		stmt = stmt.Where(clause.Or(
			clause.Lt{Column: ts, Value: filter.Cursor.Timestamp},
			clause.And(
				clause.Eq{Column: ts, Value: filter.Cursor.Timestamp},
				clause.Lt{Column: id, Value: filter.Cursor.ID},
			),
		))
	}

	stmt = stmt.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: "timestamp"}, Desc: true},
		{Column: clause.Column{Name: "id"}, Desc: true},
	}})
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
