package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/apperror"
	auditdomain "github.com/smallbiznis/fieldops/internal/audit/domain"
	"github.com/smallbiznis/fieldops/internal/auditcontext"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/fieldops/internal/observability/metrics"
	permissiondomain "github.com/smallbiznis/fieldops/internal/permission/domain"
	servicedomain "github.com/smallbiznis/fieldops/internal/serviceorder/domain"
	userdomain "github.com/smallbiznis/fieldops/internal/user/domain"
	"github.com/smallbiznis/fieldops/internal/vault/domain"
	"github.com/smallbiznis/fieldops/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	opSoftDelete = "soft_delete"
	opRestore    = "restore"
	opHardDelete = "hard_delete"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          domain.Repository
	ServiceRepo   servicedomain.Repository
	PermissionSvc permissiondomain.Service
	AuditSvc      auditdomain.Service
	Metrics       *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          domain.Repository
	serviceRepo   servicedomain.Repository
	permissionSvc permissiondomain.Service
	auditSvc      auditdomain.Service
	metrics       *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("vault.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		serviceRepo:   p.ServiceRepo,
		permissionSvc: p.PermissionSvc,
		auditSvc:      p.AuditSvc,
		metrics:       p.Metrics,
	}
}

// SoftDelete snapshots the service into the vault and removes the live row.
// The snapshot, ledger entry and row removal commit together.
func (s *Service) SoftDelete(ctx context.Context, serviceID snowflake.ID, actor userdomain.Actor, reason *string) (*domain.SoftDeleteResult, error) {
	if err := s.authorizeDelete(ctx, actor); err != nil {
		return nil, err
	}

	var record *domain.DeletedServiceRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc, err := s.serviceRepo.FindByIDForUpdate(ctx, tx, serviceID)
		if err != nil {
			return apperror.Internal(err)
		}
		if svc == nil {
			return servicedomain.ErrServiceNotFound
		}

		existing, err := s.repo.FindByServiceIDForUpdate(ctx, tx, serviceID)
		if err != nil {
			return apperror.Internal(err)
		}
		if existing != nil {
			return domain.ErrAlreadyDeleted
		}

		raw, err := svc.Snapshot()
		if err != nil {
			return apperror.Internal(err)
		}
		snapshot, err := svc.SnapshotMap()
		if err != nil {
			return apperror.Internal(err)
		}

		record = &domain.DeletedServiceRecord{
			ID:                  s.genID.Generate(),
			ServiceID:           svc.ID,
			OriginalServiceData: datatypes.JSON(raw),
			DeletedBy:           actor.ID,
			DeletedByUsername:   actor.Username,
			DeletedByRole:       string(actor.Role),
			DeleteReason:        optionalString(reason),
			IPAddress:           optionalValue(auditcontext.IPAddressFromContext(ctx)),
			UserAgent:           optionalValue(auditcontext.UserAgentFromContext(ctx)),
			DeletedAt:           s.clock.Now().UTC(),
			CanBeRestored:       true,
		}
		if err := s.repo.Insert(ctx, tx, record); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadyDeleted
			}
			return apperror.Internal(err)
		}

		notes := ""
		if record.DeleteReason != nil {
			notes = *record.DeleteReason
		}
		s.auditSvc.AppendGuarded(ctx, tx, auditdomain.Entry{
			ServiceID: svc.ID,
			Action:    auditdomain.ActionSoftDeleted,
			Actor:     actor,
			OldValues: snapshot,
			Notes:     notes,
		})

		affected, err := s.serviceRepo.Delete(ctx, tx, svc.ID)
		if err != nil {
			return apperror.Internal(err)
		}
		if affected == 0 {
			return servicedomain.ErrServiceNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordVaultOperation(ctx, opSoftDelete)
	logger.WithService(logger.WithContext(ctx, s.log), serviceID.String()).Info("service soft deleted")
	return &domain.SoftDeleteResult{Record: record}, nil
}

// Restore recreates a soft-deleted service under a fresh id. The record is
// stamped with a conditional update so a second restore cannot insert twice.
func (s *Service) Restore(ctx context.Context, serviceID snowflake.ID, actor userdomain.Actor) (*domain.RestoreResult, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrAdminOnly
	}

	var result *domain.RestoreResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.repo.FindByServiceIDForUpdate(ctx, tx, serviceID)
		if err != nil {
			return apperror.Internal(err)
		}
		if record == nil {
			return domain.ErrDeletedNotFound
		}
		if !record.Restorable() {
			if record.RestoredAt != nil {
				return domain.ErrAlreadyRestored
			}
			return domain.ErrDeletedNotFound
		}

		svc, err := servicedomain.FromSnapshot(record.OriginalServiceData)
		if err != nil {
			return apperror.Internal(fmt.Errorf("decode snapshot for service %s: %w", serviceID, err))
		}

		now := s.clock.Now().UTC()
		svc.ID = s.genID.Generate()
		svc.UpdatedAt = now
		if svc.CreatedAt.IsZero() {
			svc.CreatedAt = now
		}
		if err := s.serviceRepo.Insert(ctx, tx, svc); err != nil {
			return apperror.Internal(err)
		}

		affected, err := s.repo.MarkRestored(ctx, tx, domain.RestoreStamp{
			RecordID:          record.ID,
			RestoredBy:        actor.ID,
			RestoredAt:        now,
			RestoredServiceID: svc.ID,
		})
		if err != nil {
			return apperror.Internal(err)
		}
		if affected == 0 {
			return domain.ErrAlreadyRestored
		}

		snapshot, err := svc.SnapshotMap()
		if err != nil {
			return apperror.Internal(err)
		}
		snapshot["original_service_id"] = serviceID.String()
		s.auditSvc.AppendGuarded(ctx, tx, auditdomain.Entry{
			ServiceID: svc.ID,
			Action:    auditdomain.ActionRestored,
			Actor:     actor,
			NewValues: snapshot,
			Notes:     fmt.Sprintf("restored from service %s as %s", serviceID, svc.ID),
		})

		result = &domain.RestoreResult{
			Service:           svc,
			OriginalServiceID: serviceID,
			NewServiceID:      svc.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordVaultOperation(ctx, opRestore)
	logger.WithContext(ctx, s.log).Info("service restored",
		zap.String("original_service_id", serviceID.String()),
		zap.String("service_id", result.NewServiceID.String()),
	)
	return result, nil
}

func (s *Service) ListDeleted(ctx context.Context, actor userdomain.Actor) ([]domain.DeletedServiceRecord, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrAdminOnly
	}
	items, err := s.repo.ListRestorable(ctx, s.db)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	records := make([]domain.DeletedServiceRecord, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		records = append(records, *item)
	}
	return records, nil
}

func (s *Service) GetDeleted(ctx context.Context, serviceID snowflake.ID, actor userdomain.Actor) (*domain.DeletedServiceRecord, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrAdminOnly
	}
	record, err := s.repo.FindByServiceID(ctx, s.db, serviceID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if record == nil {
		return nil, domain.ErrDeletedNotFound
	}
	return record, nil
}

// HardDelete permanently removes a service. The caller must repeat the
// expected confirmation value exactly; a mismatch never reveals it.
func (s *Service) HardDelete(ctx context.Context, serviceID snowflake.ID, confirmation string, actor userdomain.Actor) (*domain.HardDeleteResult, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrAdminOnly
	}
	if err := s.authorizeDelete(ctx, actor); err != nil {
		return nil, err
	}
	confirmation = strings.TrimSpace(confirmation)
	if confirmation == "" {
		return nil, domain.ErrConfirmationRequired
	}

	var deleted *servicedomain.ServiceOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc, err := s.serviceRepo.FindByIDForUpdate(ctx, tx, serviceID)
		if err != nil {
			return apperror.Internal(err)
		}
		if svc == nil {
			return servicedomain.ErrServiceNotFound
		}
		if confirmation != expectedConfirmation(*svc) {
			return domain.ErrConfirmationMismatch
		}

		snapshot, err := svc.SnapshotMap()
		if err != nil {
			return apperror.Internal(err)
		}
		s.auditSvc.AppendGuarded(ctx, tx, auditdomain.Entry{
			ServiceID: svc.ID,
			Action:    auditdomain.ActionHardDeleted,
			Actor:     actor,
			OldValues: snapshot,
			Notes:     "permanent delete",
		})

		affected, err := s.serviceRepo.Delete(ctx, tx, svc.ID)
		if err != nil {
			return apperror.Internal(err)
		}
		if affected == 0 {
			return servicedomain.ErrServiceNotFound
		}
		deleted = svc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordVaultOperation(ctx, opHardDelete)
	logger.WithService(logger.WithContext(ctx, s.log), serviceID.String()).Warn("service permanently deleted")
	return &domain.HardDeleteResult{Deleted: deleted}, nil
}

// ConfirmationFor reveals the value HardDelete expects. Every reveal is
// written to the ledger.
func (s *Service) ConfirmationFor(ctx context.Context, serviceID snowflake.ID, actor userdomain.Actor) (*domain.Confirmation, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrAdminOnly
	}

	var out *domain.Confirmation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc, err := s.serviceRepo.FindByID(ctx, tx, serviceID)
		if err != nil {
			return apperror.Internal(err)
		}
		if svc == nil {
			return servicedomain.ErrServiceNotFound
		}
		s.auditSvc.AppendGuarded(ctx, tx, auditdomain.Entry{
			ServiceID: svc.ID,
			Action:    auditdomain.ActionConfirmationRevealed,
			Actor:     actor,
		})
		out = &domain.Confirmation{ServiceID: svc.ID, Expected: expectedConfirmation(*svc)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) authorizeDelete(ctx context.Context, actor userdomain.Actor) error {
	allowed, err := s.permissionSvc.CanUserDeleteServices(ctx, actor.ID)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return domain.ErrDeleteForbidden
		}
		return err
	}
	if !allowed {
		return domain.ErrDeleteForbidden
	}
	return nil
}

func expectedConfirmation(svc servicedomain.ServiceOrder) string {
	if description := strings.TrimSpace(svc.Description); description != "" {
		return description
	}
	return svc.ID.String()
}

func optionalString(value *string) *string {
	if value == nil {
		return nil
	}
	return optionalValue(*value)
}

func optionalValue(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
