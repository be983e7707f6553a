package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
	userdomain "github.com/smallbiznis/fieldops/internal/user/domain"
	"gorm.io/gorm"
)

// ServiceOrder is a single field-service job. Outcome flags are derived from
// the status on every write and are never set independently.
type ServiceOrder struct {
	ID                         snowflake.ID  `gorm:"primaryKey" json:"id"`
	ClientID                   snowflake.ID  `gorm:"not null;index" json:"client_id"`
	ApplianceID                snowflake.ID  `gorm:"not null;index" json:"appliance_id"`
	TechnicianID               *snowflake.ID `gorm:"index" json:"technician_id,omitempty"`
	BusinessPartnerID          *snowflake.ID `gorm:"index" json:"business_partner_id,omitempty"`
	Description                string        `gorm:"type:text;not null" json:"description"`
	Status                     Status        `gorm:"size:32;not null;index" json:"status"`
	WarrantyStatus             *string       `json:"warranty_status,omitempty"`
	ScheduledDate              *string       `json:"scheduled_date,omitempty"`
	CompletedDate              *string       `json:"completed_date,omitempty"`
	TechnicianNotes            *string       `json:"technician_notes,omitempty"`
	WorkPerformed              *string       `json:"work_performed,omitempty"`
	RepairFailed               bool          `gorm:"not null;default:false" json:"repair_failed"`
	RepairFailureReason        *string       `json:"repair_failure_reason,omitempty"`
	ReplacedPartsBeforeFailure *string       `json:"replaced_parts_before_failure,omitempty"`
	RepairFailureDate          *string       `json:"repair_failure_date,omitempty"`
	CustomerRefusesRepair      bool          `gorm:"not null;default:false" json:"customer_refuses_repair"`
	CustomerRefusalReason      *string       `json:"customer_refusal_reason,omitempty"`
	CancellationReason         *string       `json:"cancellation_reason,omitempty"`
	IsCompletelyFixed          bool          `gorm:"not null;default:false" json:"is_completely_fixed"`
	CreatedAt                  time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt                  time.Time     `gorm:"not null" json:"updated_at"`
}

func (ServiceOrder) TableName() string { return "services" }

// Snapshot serializes the full row, identity included.
func (s ServiceOrder) Snapshot() ([]byte, error) {
	return json.Marshal(s)
}

// SnapshotMap is Snapshot decoded into generic ledger values.
func (s ServiceOrder) SnapshotMap() (map[string]any, error) {
	raw, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FromSnapshot decodes a snapshot produced by Snapshot.
func FromSnapshot(raw []byte) (*ServiceOrder, error) {
	var svc ServiceOrder
	if err := json.Unmarshal(raw, &svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

// TransitionRequest carries the target status and any payload it needs.
type TransitionRequest struct {
	Status                     Status        `json:"status"`
	TechnicianID               *snowflake.ID `json:"technician_id"`
	ScheduledDate              *string       `json:"scheduled_date"`
	TechnicianNotes            *string       `json:"technician_notes"`
	WorkPerformed              *string       `json:"work_performed"`
	RepairFailureReason        *string       `json:"repair_failure_reason"`
	ReplacedPartsBeforeFailure *string       `json:"replaced_parts_before_failure"`
	RepairFailureDate          *string       `json:"repair_failure_date"`
	CustomerRefusalReason      *string       `json:"customer_refusal_reason"`
	CancellationReason         *string       `json:"cancellation_reason"`
}

type TransitionResult struct {
	Service   *ServiceOrder `json:"service"`
	OldStatus Status        `json:"old_status"`
	NewStatus Status        `json:"new_status"`
	// Notification is set when the post-commit dispatch could not be queued.
	Notification string `json:"notification,omitempty"`
}

type CreateRequest struct {
	ClientID       snowflake.ID `json:"client_id"`
	ApplianceID    snowflake.ID `json:"appliance_id"`
	Description    string       `json:"description"`
	ScheduledDate  *string      `json:"scheduled_date"`
	WarrantyStatus *string      `json:"warranty_status"`
}

// EditRequest is the limited edit available to business partners.
type EditRequest struct {
	Description   *string `json:"description"`
	ScheduledDate *string `json:"scheduled_date"`
}

type ListRequest struct {
	pagination.Pagination
	Status string
}

type ListResponse struct {
	pagination.PageInfo
	Services []ServiceOrder `json:"services"`
}

// ListCursor is the (created_at, id) of the last row of the previous page.
type ListCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

// ListFilter scopes a listing. A nil scope field is unrestricted; Nothing
// short-circuits to an empty result.
type ListFilter struct {
	TechnicianID      *snowflake.ID
	BusinessPartnerID *snowflake.ID
	Nothing           bool
	Status            Status
	Cursor            *ListCursor
	Limit             int
}

type Repository interface {
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*ServiceOrder, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ServiceOrder, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ServiceOrder, error)
	Insert(ctx context.Context, db *gorm.DB, svc *ServiceOrder) error
	Save(ctx context.Context, db *gorm.DB, svc *ServiceOrder) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}

type Service interface {
	List(ctx context.Context, req ListRequest, actor userdomain.Actor) (ListResponse, error)
	Get(ctx context.Context, id snowflake.ID, actor userdomain.Actor) (*ServiceOrder, error)
	Create(ctx context.Context, req CreateRequest, actor userdomain.Actor) (*ServiceOrder, error)
	Edit(ctx context.Context, id snowflake.ID, req EditRequest, actor userdomain.Actor) (*ServiceOrder, error)
	Transition(ctx context.Context, id snowflake.ID, req TransitionRequest, actor userdomain.Actor) (*TransitionResult, error)
}

// NotificationDispatcher is told about accepted transitions after commit.
// Implementations must not block the caller.
type NotificationDispatcher interface {
	OnStatusChange(ctx context.Context, svc ServiceOrder, from, to Status) error
}
