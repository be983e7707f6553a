package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/apperror"
	userdomain "github.com/smallbiznis/fieldops/internal/user/domain"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Action string

const (
	ActionCreated              Action = "created"
	ActionStatusChanged        Action = "status_changed"
	ActionUpdated              Action = "updated"
	ActionSoftDeleted          Action = "soft_deleted"
	ActionRestored             Action = "restored"
	ActionHardDeleted          Action = "hard_deleted"
	ActionConfirmationRevealed Action = "hard_delete_confirmation_revealed"
	ActionPermissionsUpdated   Action = "user_permissions_updated"
)

// NonServiceID is the ledger key for entries that do not concern a service
// record, such as permission changes.
const NonServiceID snowflake.ID = 0

// AuditLogEntry is one immutable ledger row.
type AuditLogEntry struct {
	ID                  snowflake.ID      `gorm:"primaryKey" json:"id"`
	ServiceID           snowflake.ID      `gorm:"not null;index:idx_service_audit_logs_service" json:"service_id"`
	Action              Action            `gorm:"size:64;not null" json:"action"`
	PerformedBy         snowflake.ID      `gorm:"not null" json:"performed_by"`
	PerformedByUsername string            `gorm:"size:150;not null" json:"performed_by_username"`
	PerformedByRole     string            `gorm:"size:32;not null" json:"performed_by_role"`
	OldValues           datatypes.JSONMap `json:"old_values,omitempty"`
	NewValues           datatypes.JSONMap `json:"new_values,omitempty"`
	IPAddress           *string           `json:"ip_address,omitempty"`
	UserAgent           *string           `json:"user_agent,omitempty"`
	Timestamp           time.Time         `gorm:"column:timestamp;not null;index:idx_service_audit_logs_service" json:"timestamp"`
	Notes               *string           `json:"notes,omitempty"`
}

func (AuditLogEntry) TableName() string { return "service_audit_logs" }

func (AuditLogEntry) BeforeUpdate(*gorm.DB) error { return ErrImmutable }

func (AuditLogEntry) BeforeDelete(*gorm.DB) error { return ErrImmutable }

// Entry is what callers hand to the ledger. Timestamp and id are always
// assigned by the ledger itself.
type Entry struct {
	ServiceID snowflake.ID
	Action    Action
	Actor     userdomain.Actor
	OldValues map[string]any
	NewValues map[string]any
	Notes     string
}

type AuditCursor struct {
	ID        snowflake.ID
	Timestamp time.Time
}

type ListFilter struct {
	ServiceID *snowflake.ID
	Action    string
	Cursor    *AuditCursor
	Limit     int
}

type ListAuditLogRequest struct {
	pagination.Pagination
	ServiceID *snowflake.ID
	Action    string
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLogEntry `json:"audit_logs"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLogEntry) error
	ListByService(ctx context.Context, db *gorm.DB, serviceID snowflake.ID) ([]*AuditLogEntry, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLogEntry, error)
}

type Service interface {
	// Append writes entry using tx, or the service's own handle when tx is nil.
	Append(ctx context.Context, tx *gorm.DB, entry Entry) (*AuditLogEntry, error)
	// AppendGuarded writes entry inside tx behind a savepoint. A failed write is
	// rolled back to the savepoint and reported as degraded, leaving the rest of
	// the transaction intact.
	AppendGuarded(ctx context.Context, tx *gorm.DB, entry Entry) *AuditLogEntry
	Query(ctx context.Context, serviceID snowflake.ID) ([]AuditLogEntry, error)
	QueryAll(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrImmutable        = apperror.Conflict("audit_log_immutable", "audit log entries cannot be modified")
	ErrInvalidAction    = apperror.Validation("invalid_action", "action", "invalid action")
	ErrInvalidPageToken = apperror.Validation("invalid_page_token", "page_token", "invalid page token")
)
