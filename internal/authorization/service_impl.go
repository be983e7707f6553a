package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/fieldops/internal/apperror"
	"github.com/smallbiznis/fieldops/internal/observability/logger"
	userdomain "github.com/smallbiznis/fieldops/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectService    = "service"
	ObjectAuditLog   = "audit_log"
	ObjectVault      = "vault"
	ObjectPermission = "permission"
	ObjectSecurity   = "security"
)

const (
	ActionServiceView       = "service.view"
	ActionServiceCreate     = "service.create"
	ActionServiceEdit       = "service.edit"
	ActionServiceTransition = "service.transition"
	ActionServiceDelete     = "service.delete"

	ActionAuditLogView    = "audit_log.view"
	ActionAuditLogViewAll = "audit_log.view_all"

	ActionVaultView       = "vault.view"
	ActionVaultRestore    = "vault.restore"
	ActionVaultHardDelete = "vault.hard_delete"

	ActionPermissionView   = "permission.view"
	ActionPermissionManage = "permission.manage"

	ActionSecurityReport = "security.report"
	ActionSecurityEvents = "security.events"
	ActionSecurityAssess = "security.assess"
)

var (
	ErrForbidden     = apperror.Authorization("capability_denied", "role lacks the capability for this operation")
	ErrInvalidActor  = apperror.New(apperror.KindUnauthorized, "invalid_actor", "actor is not identified")
	ErrInvalidObject = apperror.Validation("invalid_object", "object", "object is required")
	ErrInvalidAction = apperror.Validation("invalid_action", "action", "action is required")
)

// Service answers coarse role capability questions. Row-level rules such as
// ownership and per-user permission flags stay with the owning service.
type Service interface {
	Authorize(ctx context.Context, actor userdomain.Actor, object, action string) error
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads the role matrix from casbin_rule and seeds any missing
// rows.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

// NewMemoryEnforcer builds the same matrix without persistence.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor userdomain.Actor, object, action string) error {
	if actor.ID == 0 {
		return ErrInvalidActor
	}
	role, ok := userdomain.ParseRole(string(actor.Role))
	if !ok {
		return ErrForbidden
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := fmt.Sprintf("user:%s", actor.ID.String())
	if err := s.ensureGrouping(subject, roleSubject(role)); err != nil {
		return apperror.Internal(err)
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return apperror.Internal(err)
	}
	if !allowed {
		logger.WithContext(ctx, s.log).Warn("capability denied",
			zap.String("subject", subject),
			zap.String("role", string(role)),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping keeps exactly one role link per user so a role change
// replaces the old link instead of accumulating grants.
func (s *ServiceImpl) ensureGrouping(subject, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(rule[0], rule[1]); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func roleSubject(role userdomain.Role) string {
	return "role:" + string(role)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	admin := roleSubject(userdomain.RoleAdmin)
	technician := roleSubject(userdomain.RoleTechnician)
	partner := roleSubject(userdomain.RoleBusinessPartner)
	customer := roleSubject(userdomain.RoleCustomer)

	policies := [][]string{
		{admin, ObjectService, ActionServiceView},
		{admin, ObjectService, ActionServiceCreate},
		{admin, ObjectService, ActionServiceEdit},
		{admin, ObjectService, ActionServiceTransition},
		{admin, ObjectService, ActionServiceDelete},
		{admin, ObjectAuditLog, ActionAuditLogView},
		{admin, ObjectAuditLog, ActionAuditLogViewAll},
		{admin, ObjectVault, ActionVaultView},
		{admin, ObjectVault, ActionVaultRestore},
		{admin, ObjectVault, ActionVaultHardDelete},
		{admin, ObjectPermission, ActionPermissionView},
		{admin, ObjectPermission, ActionPermissionManage},
		{admin, ObjectSecurity, ActionSecurityReport},
		{admin, ObjectSecurity, ActionSecurityEvents},
		{admin, ObjectSecurity, ActionSecurityAssess},

		// Delete is further gated by the per-user canDeleteServices flag.
		{technician, ObjectService, ActionServiceView},
		{technician, ObjectService, ActionServiceTransition},
		{technician, ObjectService, ActionServiceDelete},
		{technician, ObjectAuditLog, ActionAuditLogView},
		{technician, ObjectPermission, ActionPermissionView},
		{technician, ObjectPermission, ActionPermissionManage},
		{technician, ObjectSecurity, ActionSecurityAssess},

		{partner, ObjectService, ActionServiceView},
		{partner, ObjectService, ActionServiceCreate},
		{partner, ObjectService, ActionServiceEdit},
		{partner, ObjectService, ActionServiceDelete},
		{partner, ObjectAuditLog, ActionAuditLogView},
		{partner, ObjectPermission, ActionPermissionView},
		{partner, ObjectPermission, ActionPermissionManage},
		{partner, ObjectSecurity, ActionSecurityAssess},

		{customer, ObjectService, ActionServiceView},
		{customer, ObjectAuditLog, ActionAuditLogView},
		{customer, ObjectPermission, ActionPermissionView},
		{customer, ObjectSecurity, ActionSecurityAssess},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
