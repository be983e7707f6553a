package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/apperror"
	servicedomain "github.com/smallbiznis/fieldops/internal/serviceorder/domain"
	userdomain "github.com/smallbiznis/fieldops/internal/user/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DeletedServiceRecord keeps the full snapshot of a soft-deleted service. It
// is written once on delete and stamped once on restore.
type DeletedServiceRecord struct {
	ID                  snowflake.ID   `gorm:"primaryKey" json:"id"`
	ServiceID           snowflake.ID   `gorm:"not null;uniqueIndex:ux_deleted_services_service_id" json:"service_id"`
	OriginalServiceData datatypes.JSON `gorm:"not null" json:"original_service_data"`
	DeletedBy           snowflake.ID   `gorm:"not null" json:"deleted_by"`
	DeletedByUsername   string         `gorm:"size:150;not null" json:"deleted_by_username"`
	DeletedByRole       string         `gorm:"size:32;not null" json:"deleted_by_role"`
	DeleteReason        *string        `json:"delete_reason,omitempty"`
	IPAddress           *string        `json:"ip_address,omitempty"`
	UserAgent           *string        `json:"user_agent,omitempty"`
	DeletedAt           time.Time      `gorm:"not null;index" json:"deleted_at"`
	CanBeRestored       bool           `gorm:"not null;default:true" json:"can_be_restored"`
	RestoredBy          *snowflake.ID  `json:"restored_by,omitempty"`
	RestoredAt          *time.Time     `json:"restored_at,omitempty"`
	RestoredServiceID   *snowflake.ID  `json:"restored_service_id,omitempty"`
}

func (DeletedServiceRecord) TableName() string { return "deleted_services" }

// Restorable reports whether a restore may still be applied to the record.
func (r DeletedServiceRecord) Restorable() bool {
	return r.CanBeRestored && r.RestoredAt == nil
}

// RestoreStamp is the single mutation a record ever receives.
type RestoreStamp struct {
	RecordID          snowflake.ID
	RestoredBy        snowflake.ID
	RestoredAt        time.Time
	RestoredServiceID snowflake.ID
}

type SoftDeleteResult struct {
	Record *DeletedServiceRecord `json:"record"`
}

type RestoreResult struct {
	Service           *servicedomain.ServiceOrder `json:"service"`
	OriginalServiceID snowflake.ID                `json:"original_service_id"`
	NewServiceID      snowflake.ID                `json:"new_service_id"`
}

type HardDeleteResult struct {
	Deleted *servicedomain.ServiceOrder `json:"deleted"`
}

type Confirmation struct {
	ServiceID snowflake.ID `json:"service_id"`
	Expected  string       `json:"expected"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *DeletedServiceRecord) error
	FindByServiceID(ctx context.Context, db *gorm.DB, serviceID snowflake.ID) (*DeletedServiceRecord, error)
	FindByServiceIDForUpdate(ctx context.Context, db *gorm.DB, serviceID snowflake.ID) (*DeletedServiceRecord, error)
	// MarkRestored applies stamp only while the record is unrestored and
	// reports how many rows it changed.
	MarkRestored(ctx context.Context, db *gorm.DB, stamp RestoreStamp) (int64, error)
	ListRestorable(ctx context.Context, db *gorm.DB) ([]*DeletedServiceRecord, error)
}

type Service interface {
	SoftDelete(ctx context.Context, serviceID snowflake.ID, actor userdomain.Actor, reason *string) (*SoftDeleteResult, error)
	Restore(ctx context.Context, serviceID snowflake.ID, actor userdomain.Actor) (*RestoreResult, error)
	ListDeleted(ctx context.Context, actor userdomain.Actor) ([]DeletedServiceRecord, error)
	GetDeleted(ctx context.Context, serviceID snowflake.ID, actor userdomain.Actor) (*DeletedServiceRecord, error)
	HardDelete(ctx context.Context, serviceID snowflake.ID, confirmation string, actor userdomain.Actor) (*HardDeleteResult, error)
	ConfirmationFor(ctx context.Context, serviceID snowflake.ID, actor userdomain.Actor) (*Confirmation, error)
}

var (
	ErrDeleteForbidden      = apperror.Authorization("delete_forbidden", "user may not delete services")
	ErrAdminOnly            = apperror.Authorization("admin_only", "only admins may perform this operation")
	ErrDeletedNotFound      = apperror.NotFound("deleted_service_not_found", "deleted service not found")
	ErrAlreadyRestored      = apperror.Conflict("already_restored", "deleted service was already restored")
	ErrAlreadyDeleted       = apperror.Conflict("already_deleted", "service already has a deletion record")
	ErrConfirmationMismatch = apperror.Validation("confirmation_mismatch", "confirmation", "confirmation does not match")
	ErrConfirmationRequired = apperror.Validation("confirmation_required", "confirmation", "confirmation is required")
)
