package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/serviceorder/domain"
	"github.com/smallbiznis/fieldops/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]*domain.ServiceOrder, error) {
	if filter.Nothing {
		return []*domain.ServiceOrder{}, nil
	}
	stmt := conn.WithContext(ctx).Model(&domain.ServiceOrder{})
	if filter.TechnicianID != nil {
		stmt = stmt.Where("technician_id = ?", *filter.TechnicianID)
	}
	if filter.BusinessPartnerID != nil {
		stmt = stmt.Where("business_partner_id = ?", *filter.BusinessPartnerID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Cursor != nil {
		createdAt := clause.Column{Name: "created_at"}
		id := clause.Column{Name: "id"}
		stmt = stmt.Where(clause.Or(
			clause.Lt{Column: createdAt, Value: filter.Cursor.CreatedAt},
			clause.And(
				clause.Eq{Column: createdAt, Value: filter.Cursor.CreatedAt},
				clause.Lt{Column: id, Value: filter.Cursor.ID},
			),
		))
	}

	stmt = stmt.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: "created_at"}, Desc: true},
		{Column: clause.Column{Name: "id"}, Desc: true},
	}})
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var rows []*domain.ServiceOrder
	if err := stmt.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.ServiceOrder, error) {
	return r.find(conn.WithContext(ctx), id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.ServiceOrder, error) {
	return r.find(db.ForUpdate(conn.WithContext(ctx)), id)
}

func (r *repo) find(stmt *gorm.DB, id snowflake.ID) (*domain.ServiceOrder, error) {
	var svc domain.ServiceOrder
	err := stmt.Where("id = ?", id).First(&svc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, svc *domain.ServiceOrder) error {
	return conn.WithContext(ctx).Create(svc).Error
}

func (r *repo) Save(ctx context.Context, conn *gorm.DB, svc *domain.ServiceOrder) error {
	return conn.WithContext(ctx).
		Model(&domain.ServiceOrder{}).
		Where("id = ?", svc.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(svc).Error
}

func (r *repo) Delete(ctx context.Context, conn *gorm.DB, id snowflake.ID) (int64, error) {
	res := conn.WithContext(ctx).Where("id = ?", id).Delete(&domain.ServiceOrder{})
	return res.RowsAffected, res.Error
}
