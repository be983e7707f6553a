package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/apperror"
	userdomain "github.com/smallbiznis/fieldops/internal/user/domain"
	"gorm.io/gorm"
)

// UserPermission holds per-user capability overrides.
type UserPermission struct {
	ID                  snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID              snowflake.ID  `gorm:"not null;uniqueIndex:ux_user_permissions_user_id" json:"user_id"`
	CanDeleteServices   bool          `gorm:"not null;default:false" json:"can_delete_services"`
	CanDeleteClients    bool          `gorm:"not null;default:false" json:"can_delete_clients"`
	CanDeleteAppliances bool          `gorm:"not null;default:false" json:"can_delete_appliances"`
	CanViewAllServices  bool          `gorm:"not null;default:false" json:"can_view_all_services"`
	CanManageUsers      bool          `gorm:"not null;default:false" json:"can_manage_users"`
	GrantedBy           *snowflake.ID `json:"granted_by,omitempty"`
	GrantedAt           time.Time     `gorm:"not null" json:"granted_at"`
	Notes               *string       `json:"notes,omitempty"`
}

func (UserPermission) TableName() string { return "user_permissions" }

// Flags returns the capability flags as ledger values.
func (p UserPermission) Flags() map[string]any {
	return map[string]any{
		"can_delete_services":   p.CanDeleteServices,
		"can_delete_clients":    p.CanDeleteClients,
		"can_delete_appliances": p.CanDeleteAppliances,
		"can_view_all_services": p.CanViewAllServices,
		"can_manage_users":      p.CanManageUsers,
	}
}

// Defaults synthesizes the role baseline: admins hold every capability,
// every other role holds none.
func Defaults(userID snowflake.ID, role userdomain.Role) UserPermission {
	all := role == userdomain.RoleAdmin
	return UserPermission{
		UserID:              userID,
		CanDeleteServices:   all,
		CanDeleteClients:    all,
		CanDeleteAppliances: all,
		CanViewAllServices:  all,
		CanManageUsers:      all,
	}
}

// Update is a partial change. Nil fields are left as stored.
type Update struct {
	CanDeleteServices   *bool   `json:"can_delete_services"`
	CanDeleteClients    *bool   `json:"can_delete_clients"`
	CanDeleteAppliances *bool   `json:"can_delete_appliances"`
	CanViewAllServices  *bool   `json:"can_view_all_services"`
	CanManageUsers      *bool   `json:"can_manage_users"`
	Notes               *string `json:"notes"`
}

// ApplyTo writes the set fields onto p.
func (u Update) ApplyTo(p *UserPermission) {
	if u.CanDeleteServices != nil {
		p.CanDeleteServices = *u.CanDeleteServices
	}
	if u.CanDeleteClients != nil {
		p.CanDeleteClients = *u.CanDeleteClients
	}
	if u.CanDeleteAppliances != nil {
		p.CanDeleteAppliances = *u.CanDeleteAppliances
	}
	if u.CanViewAllServices != nil {
		p.CanViewAllServices = *u.CanViewAllServices
	}
	if u.CanManageUsers != nil {
		p.CanManageUsers = *u.CanManageUsers
	}
	if u.Notes != nil {
		notes := *u.Notes
		p.Notes = &notes
	}
}

func (u Update) Empty() bool {
	return u.CanDeleteServices == nil && u.CanDeleteClients == nil && u.CanDeleteAppliances == nil &&
		u.CanViewAllServices == nil && u.CanManageUsers == nil && u.Notes == nil
}

type Repository interface {
	FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*UserPermission, error)
	FindByUserIDForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*UserPermission, error)
	// InsertIfAbsent creates the row unless one already exists for the user.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, perm *UserPermission) error
	Save(ctx context.Context, db *gorm.DB, perm *UserPermission) error
}

type Service interface {
	GetUserPermissions(ctx context.Context, userID snowflake.ID) (*UserPermission, error)
	UpdateUserPermissions(ctx context.Context, userID snowflake.ID, update Update, actor userdomain.Actor) (*UserPermission, error)
	CanUserDeleteServices(ctx context.Context, userID snowflake.ID) (bool, error)
}

var (
	ErrForbidden   = apperror.Authorization("permission_management_forbidden", "not allowed to manage permissions")
	ErrEmptyUpdate = apperror.Validation("empty_update", "request", "no permission fields provided")
)
