package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/apperror"
	auditdomain "github.com/smallbiznis/fieldops/internal/audit/domain"
	"github.com/smallbiznis/fieldops/internal/audit/masking"
	"github.com/smallbiznis/fieldops/internal/auditcontext"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/fieldops/internal/observability/metrics"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
	savepointName   = "audit_entry"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    auditdomain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    auditdomain.Repository
	metrics *obsmetrics.Metrics
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("audit.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) Append(ctx context.Context, tx *gorm.DB, entry auditdomain.Entry) (*auditdomain.AuditLogEntry, error) {
	action := auditdomain.Action(strings.TrimSpace(string(entry.Action)))
	if action == "" {
		return nil, auditdomain.ErrInvalidAction
	}
	if tx == nil {
		tx = s.db
	}

	row := &auditdomain.AuditLogEntry{
		ID:                  s.genID.Generate(),
		ServiceID:           entry.ServiceID,
		Action:              action,
		PerformedBy:         entry.Actor.ID,
		PerformedByUsername: entry.Actor.Username,
		PerformedByRole:     string(entry.Actor.Role),
		OldValues:           toJSONMap(entry.OldValues),
		NewValues:           toJSONMap(entry.NewValues),
		IPAddress:           optionalString(auditcontext.IPAddressFromContext(ctx)),
		UserAgent:           optionalString(auditcontext.UserAgentFromContext(ctx)),
		Timestamp:           s.clock.Now().UTC(),
		Notes:               optionalString(entry.Notes),
	}

	if err := s.repo.Insert(ctx, tx, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *Service) AppendGuarded(ctx context.Context, tx *gorm.DB, entry auditdomain.Entry) *auditdomain.AuditLogEntry {
	if err := tx.SavePoint(savepointName).Error; err != nil {
		s.degraded(ctx, entry, err)
		return nil
	}
	row, err := s.Append(ctx, tx, entry)
	if err != nil {
		if rbErr := tx.RollbackTo(savepointName).Error; rbErr != nil {
			logger.WithContext(ctx, s.log).Error("audit savepoint rollback failed", zap.Error(rbErr))
		}
		s.degraded(ctx, entry, err)
		return nil
	}
	return row
}

func (s *Service) degraded(ctx context.Context, entry auditdomain.Entry, err error) {
	logger.WithContext(ctx, s.log).Warn("audit degraded",
		zap.String("action", string(entry.Action)),
		zap.String("service_id", entry.ServiceID.String()),
		zap.String("performed_by", entry.Actor.ID.String()),
		zap.Error(err),
	)
	s.metrics.RecordAuditDegraded(ctx, string(entry.Action))
}

func (s *Service) Query(ctx context.Context, serviceID snowflake.ID) ([]auditdomain.AuditLogEntry, error) {
	items, err := s.repo.ListByService(ctx, s.db, serviceID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return flatten(items), nil
}

func (s *Service) QueryAll(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	decoded, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
	}
	var cursor *auditdomain.AuditCursor
	if decoded != nil {
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.AuditCursor{ID: id, Timestamp: decoded.At}
	}

	pageSize := req.Size(defaultPageSize, maxPageSize)
	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		ServiceID: req.ServiceID,
		Action:    req.Action,
		Cursor:    cursor,
		Limit:     pageSize,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, apperror.Internal(err)
	}

	items, pageInfo := pagination.Trim(items, pageSize, func(item *auditdomain.AuditLogEntry) pagination.Cursor {
		return pagination.Cursor{ID: item.ID.String(), At: item.Timestamp.UTC()}
	})
	return auditdomain.ListAuditLogResponse{PageInfo: pageInfo, AuditLogs: flatten(items)}, nil
}

func flatten(items []*auditdomain.AuditLogEntry) []auditdomain.AuditLogEntry {
	logs := make([]auditdomain.AuditLogEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}
	return logs
}

func toJSONMap(values map[string]any) datatypes.JSONMap {
	masked := masking.MaskSensitive(values)
	if masked == nil {
		return nil
	}
	return datatypes.JSONMap(masked)
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
