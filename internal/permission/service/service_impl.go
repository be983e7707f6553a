package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/apperror"
	auditdomain "github.com/smallbiznis/fieldops/internal/audit/domain"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/observability/logger"
	"github.com/smallbiznis/fieldops/internal/permission/domain"
	userdomain "github.com/smallbiznis/fieldops/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	UserRepo userdomain.Repository
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	userRepo userdomain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("permission.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) GetUserPermissions(ctx context.Context, userID snowflake.ID) (*domain.UserPermission, error) {
	user, err := s.loadUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	perm, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if perm != nil {
		return perm, nil
	}
	return s.materializeDefaults(ctx, s.db, user)
}

func (s *Service) UpdateUserPermissions(ctx context.Context, userID snowflake.ID, update domain.Update, actor userdomain.Actor) (*domain.UserPermission, error) {
	if update.Empty() {
		return nil, domain.ErrEmptyUpdate
	}
	if err := s.authorizeManager(ctx, actor); err != nil {
		return nil, err
	}

	var updated *domain.UserPermission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		perm, err := s.repo.FindByUserIDForUpdate(ctx, tx, userID)
		if err != nil {
			return apperror.Internal(err)
		}
		if perm == nil {
			if perm, err = s.materializeDefaults(ctx, tx, user); err != nil {
				return err
			}
		}

		before := perm.Flags()
		update.ApplyTo(perm)
		grantedBy := actor.ID
		perm.GrantedBy = &grantedBy
		perm.GrantedAt = s.clock.Now().UTC()

		if err := s.repo.Save(ctx, tx, perm); err != nil {
			return apperror.Internal(err)
		}

		after := perm.Flags()
		after["user_id"] = userID.String()
		notes := ""
		if perm.Notes != nil {
			notes = *perm.Notes
		}
		s.auditSvc.AppendGuarded(ctx, tx, auditdomain.Entry{
			ServiceID: auditdomain.NonServiceID,
			Action:    auditdomain.ActionPermissionsUpdated,
			Actor:     actor,
			OldValues: before,
			NewValues: after,
			Notes:     notes,
		})

		updated = perm
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("user permissions updated",
		zap.String("user_id", userID.String()),
		zap.String("granted_by", actor.ID.String()),
	)
	return updated, nil
}

func (s *Service) CanUserDeleteServices(ctx context.Context, userID snowflake.ID) (bool, error) {
	user, err := s.loadUser(ctx, s.db, userID)
	if err != nil {
		return false, err
	}
	if user.Role == userdomain.RoleAdmin {
		return true, nil
	}
	perm, err := s.GetUserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return perm.CanDeleteServices, nil
}

// authorizeManager allows admins and users granted canManageUsers.
func (s *Service) authorizeManager(ctx context.Context, actor userdomain.Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	perm, err := s.GetUserPermissions(ctx, actor.ID)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return domain.ErrForbidden
		}
		return err
	}
	if !perm.CanManageUsers {
		return domain.ErrForbidden
	}
	return nil
}

func (s *Service) loadUser(ctx context.Context, conn *gorm.DB, userID snowflake.ID) (*userdomain.User, error) {
	user, err := s.userRepo.FindByID(ctx, conn, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if user == nil {
		return nil, userdomain.ErrUserNotFound
	}
	return user, nil
}

// materializeDefaults persists the role baseline and returns the stored row.
// A concurrent first read may win the insert, so the row is always re-read.
func (s *Service) materializeDefaults(ctx context.Context, conn *gorm.DB, user *userdomain.User) (*domain.UserPermission, error) {
	perm := domain.Defaults(user.ID, user.Role)
	perm.ID = s.genID.Generate()
	perm.GrantedAt = s.clock.Now().UTC()
	if err := s.repo.InsertIfAbsent(ctx, conn, &perm); err != nil {
		return nil, apperror.Internal(err)
	}

	stored, err := s.repo.FindByUserID(ctx, conn, user.ID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if stored == nil {
		return nil, apperror.Internal(gorm.ErrRecordNotFound)
	}
	return stored, nil
}
