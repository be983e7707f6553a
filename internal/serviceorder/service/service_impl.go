package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/apperror"
	auditdomain "github.com/smallbiznis/fieldops/internal/audit/domain"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/fieldops/internal/observability/metrics"
	permissiondomain "github.com/smallbiznis/fieldops/internal/permission/domain"
	"github.com/smallbiznis/fieldops/internal/serviceorder/domain"
	userdomain "github.com/smallbiznis/fieldops/internal/user/domain"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          domain.Repository
	AuditSvc      auditdomain.Service
	PermissionSvc permissiondomain.Service      `optional:"true"`
	Notifier      domain.NotificationDispatcher `optional:"true"`
	Metrics       *obsmetrics.Metrics           `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          domain.Repository
	auditSvc      auditdomain.Service
	permissionSvc permissiondomain.Service
	notifier      domain.NotificationDispatcher
	metrics       *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("serviceorder.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		auditSvc:      p.AuditSvc,
		permissionSvc: p.PermissionSvc,
		notifier:      p.Notifier,
		metrics:       p.Metrics,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest, actor userdomain.Actor) (domain.ListResponse, error) {
	filter, err := s.listScope(ctx, actor)
	if err != nil {
		return domain.ListResponse{}, err
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = status
	}

	decoded, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListResponse{}, domain.ErrInvalidPageToken
	}
	if decoded != nil {
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		filter.Cursor = &domain.ListCursor{ID: id, CreatedAt: decoded.At}
	}

	filter.Limit = req.Size(defaultPageSize, maxPageSize)
	rows, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, apperror.Internal(err)
	}
	rows, pageInfo := pagination.Trim(rows, filter.Limit, func(svc *domain.ServiceOrder) pagination.Cursor {
		return pagination.Cursor{ID: svc.ID.String(), At: svc.CreatedAt.UTC()}
	})

	services := make([]domain.ServiceOrder, 0, len(rows))
	for _, row := range rows {
		services = append(services, *row)
	}
	return domain.ListResponse{PageInfo: pageInfo, Services: services}, nil
}

// listScope mirrors authorizeRead: admins and canViewAllServices holders see
// every row, technicians their assignments, partners their own services.
func (s *Service) listScope(ctx context.Context, actor userdomain.Actor) (domain.ListFilter, error) {
	if actor.Role == userdomain.RoleAdmin {
		return domain.ListFilter{}, nil
	}
	if s.permissionSvc != nil {
		perm, err := s.permissionSvc.GetUserPermissions(ctx, actor.ID)
		switch {
		case err == nil && perm.CanViewAllServices:
			return domain.ListFilter{}, nil
		case err != nil && !apperror.IsKind(err, apperror.KindNotFound):
			return domain.ListFilter{}, err
		}
	}

	switch actor.Role {
	case userdomain.RoleTechnician:
		if actor.TechnicianID == nil {
			return domain.ListFilter{Nothing: true}, nil
		}
		techID := *actor.TechnicianID
		return domain.ListFilter{TechnicianID: &techID}, nil
	case userdomain.RoleBusinessPartner:
		partnerID := actor.ID
		return domain.ListFilter{BusinessPartnerID: &partnerID}, nil
	default:
		return domain.ListFilter{Nothing: true}, nil
	}
}

func (s *Service) Get(ctx context.Context, id snowflake.ID, actor userdomain.Actor) (*domain.ServiceOrder, error) {
	svc, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if svc == nil {
		return nil, domain.ErrServiceNotFound
	}
	if err := s.authorizeRead(ctx, *svc, actor); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) authorizeRead(ctx context.Context, svc domain.ServiceOrder, actor userdomain.Actor) error {
	switch actor.Role {
	case userdomain.RoleAdmin:
		return nil
	case userdomain.RoleTechnician:
		if actor.OwnsTechnicianAssignment(svc.TechnicianID) {
			return nil
		}
	case userdomain.RoleBusinessPartner:
		if ownedByPartner(svc, actor) {
			return nil
		}
	}
	if s.permissionSvc == nil {
		return domain.ErrServiceNotFound
	}
	perm, err := s.permissionSvc.GetUserPermissions(ctx, actor.ID)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return domain.ErrServiceNotFound
		}
		return err
	}
	if !perm.CanViewAllServices {
		return domain.ErrServiceNotFound
	}
	return nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest, actor userdomain.Actor) (*domain.ServiceOrder, error) {
	if actor.Role != userdomain.RoleAdmin && actor.Role != userdomain.RoleBusinessPartner {
		return nil, domain.ErrRoleCannotCreate
	}
	if req.ClientID == 0 {
		return nil, domain.ErrClientRequired
	}
	if req.ApplianceID == 0 {
		return nil, domain.ErrApplianceRequired
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, domain.ErrDescriptionRequired
	}

	var scheduled *string
	if req.ScheduledDate != nil && strings.TrimSpace(*req.ScheduledDate) != "" {
		parsed, err := parseDate(req.ScheduledDate)
		if err != nil {
			return nil, domain.ErrScheduledDateInvalid
		}
		scheduled = &parsed
	}

	now := s.clock.Now().UTC()
	svc := &domain.ServiceOrder{
		ID:             s.genID.Generate(),
		ClientID:       req.ClientID,
		ApplianceID:    req.ApplianceID,
		Description:    description,
		Status:         domain.StatusPending,
		WarrantyStatus: optional(req.WarrantyStatus),
		ScheduledDate:  scheduled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if actor.Role == userdomain.RoleBusinessPartner {
		partnerID := actor.ID
		svc.BusinessPartnerID = &partnerID
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, svc); err != nil {
			return apperror.Internal(err)
		}
		snapshot, err := svc.SnapshotMap()
		if err != nil {
			return apperror.Internal(err)
		}
		s.auditSvc.AppendGuarded(ctx, tx, auditdomain.Entry{
			ServiceID: svc.ID,
			Action:    auditdomain.ActionCreated,
			Actor:     actor,
			NewValues: snapshot,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithService(logger.WithContext(ctx, s.log), svc.ID.String()).Info("service created")
	return svc, nil
}

func (s *Service) Edit(ctx context.Context, id snowflake.ID, req domain.EditRequest, actor userdomain.Actor) (*domain.ServiceOrder, error) {
	if actor.Role != userdomain.RoleAdmin && actor.Role != userdomain.RoleBusinessPartner {
		return nil, domain.ErrRoleCannotEdit
	}
	if req.Description == nil && req.ScheduledDate == nil {
		return nil, domain.ErrEmptyEdit
	}

	var updated *domain.ServiceOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return apperror.Internal(err)
		}
		if svc == nil {
			return domain.ErrServiceNotFound
		}
		if actor.Role == userdomain.RoleBusinessPartner && !ownedByPartner(*svc, actor) {
			return domain.ErrNotOwner
		}
		if svc.Status != domain.StatusPending && svc.Status != domain.StatusScheduled {
			return domain.ErrEditNotAllowed
		}

		oldValues := map[string]any{}
		newValues := map[string]any{}
		if req.Description != nil {
			description := strings.TrimSpace(*req.Description)
			if description == "" {
				return domain.ErrDescriptionRequired
			}
			if description != svc.Description {
				oldValues["description"] = svc.Description
				newValues["description"] = description
				svc.Description = description
			}
		}
		if req.ScheduledDate != nil {
			parsed, err := parseDate(req.ScheduledDate)
			if err != nil {
				return domain.ErrScheduledDateInvalid
			}
			if svc.ScheduledDate == nil || *svc.ScheduledDate != parsed {
				oldValues["scheduled_date"] = valueOrNil(svc.ScheduledDate)
				newValues["scheduled_date"] = parsed
				svc.ScheduledDate = &parsed
			}
		}

		updated = svc
		if len(newValues) == 0 {
			return nil
		}

		svc.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.Save(ctx, tx, svc); err != nil {
			return apperror.Internal(err)
		}
		s.auditSvc.AppendGuarded(ctx, tx, auditdomain.Entry{
			ServiceID: svc.ID,
			Action:    auditdomain.ActionUpdated,
			Actor:     actor,
			OldValues: oldValues,
			NewValues: newValues,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Transition(ctx context.Context, id snowflake.ID, req domain.TransitionRequest, actor userdomain.Actor) (*domain.TransitionResult, error) {
	var (
		result  *domain.TransitionResult
		changed map[string]any
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return apperror.Internal(err)
		}
		if svc == nil {
			return domain.ErrServiceNotFound
		}
		if err := authorizeTransition(*svc, req, actor); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		state, err := buildState(*svc, req, actor, now)
		if err != nil {
			return err
		}

		old := svc.Status
		changed = svc.Apply(state)
		svc.UpdatedAt = now
		if err := s.repo.Save(ctx, tx, svc); err != nil {
			return apperror.Internal(err)
		}

		s.auditSvc.AppendGuarded(ctx, tx, auditdomain.Entry{
			ServiceID: svc.ID,
			Action:    auditdomain.ActionStatusChanged,
			Actor:     actor,
			OldValues: map[string]any{"status": string(old)},
			NewValues: changed,
		})

		result = &domain.TransitionResult{
			Service:   svc,
			OldStatus: old,
			NewStatus: svc.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logger.WithService(logger.WithContext(ctx, s.log), id.String())
	log.Info("service status changed",
		zap.String("from_status", string(result.OldStatus)),
		zap.String("to_status", string(result.NewStatus)),
		zap.Int("changed_fields", len(changed)),
	)
	s.metrics.RecordStatusTransition(ctx, string(result.OldStatus), string(result.NewStatus), string(actor.Role))

	if s.notifier != nil {
		if err := s.notifier.OnStatusChange(ctx, *result.Service, result.OldStatus, result.NewStatus); err != nil {
			log.Warn("status change notification not dispatched", zap.Error(err))
			result.Notification = "notification could not be dispatched"
		}
	}
	return result, nil
}

func ownedByPartner(svc domain.ServiceOrder, actor userdomain.Actor) bool {
	return svc.BusinessPartnerID != nil && *svc.BusinessPartnerID == actor.ID
}

func valueOrNil(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
