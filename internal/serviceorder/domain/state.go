package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/apperror"
)

type Status string

const (
	StatusPending               Status = "pending"
	StatusAssigned              Status = "assigned"
	StatusScheduled             Status = "scheduled"
	StatusInProgress            Status = "in_progress"
	StatusDevicePartsRemoved    Status = "device_parts_removed"
	StatusCompleted             Status = "completed"
	StatusRepairFailed          Status = "repair_failed"
	StatusCancelled             Status = "cancelled"
	StatusCustomerRefusedRepair Status = "customer_refused_repair"
)

func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	switch s {
	case StatusPending, StatusAssigned, StatusScheduled, StatusInProgress, StatusDevicePartsRemoved,
		StatusCompleted, StatusRepairFailed, StatusCancelled, StatusCustomerRefusedRepair:
		return s, true
	default:
		return "", false
	}
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRepairFailed, StatusCancelled, StatusCustomerRefusedRepair:
		return true
	default:
		return false
	}
}

// technicianGraph lists the moves a technician may make. Assignment itself is
// reserved to admins.
var technicianGraph = map[Status][]Status{
	StatusAssigned:           {StatusScheduled, StatusInProgress, StatusCancelled},
	StatusScheduled:          {StatusInProgress, StatusCancelled},
	StatusInProgress:         {StatusDevicePartsRemoved, StatusCompleted, StatusRepairFailed, StatusCustomerRefusedRepair, StatusCancelled},
	StatusDevicePartsRemoved: {StatusInProgress, StatusCompleted, StatusRepairFailed, StatusCustomerRefusedRepair},
}

// TechnicianMayMove reports whether the technician graph has an edge from -> to.
func TechnicianMayMove(from, to Status) bool {
	for _, next := range technicianGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}

// State is the status together with the payload only that status may carry.
type State interface {
	Status() Status
	isState()
}

type Pending struct{}

type Assigned struct {
	TechnicianID snowflake.ID
}

type Scheduled struct {
	Date string
}

type InProgress struct{}

type DevicePartsRemoved struct{}

type Completed struct {
	TechnicianNotes string
	WorkPerformed   string
	CompletedDate   string
}

type RepairFailed struct {
	Reason        string
	ReplacedParts *string
	FailureDate   string
}

type Cancelled struct {
	Reason *string
}

type CustomerRefusedRepair struct {
	Reason string
}

func (Pending) Status() Status               { return StatusPending }
func (Assigned) Status() Status              { return StatusAssigned }
func (Scheduled) Status() Status             { return StatusScheduled }
func (InProgress) Status() Status            { return StatusInProgress }
func (DevicePartsRemoved) Status() Status    { return StatusDevicePartsRemoved }
func (Completed) Status() Status             { return StatusCompleted }
func (RepairFailed) Status() Status          { return StatusRepairFailed }
func (Cancelled) Status() Status             { return StatusCancelled }
func (CustomerRefusedRepair) Status() Status { return StatusCustomerRefusedRepair }

func (Pending) isState()               {}
func (Assigned) isState()              {}
func (Scheduled) isState()             {}
func (InProgress) isState()            {}
func (DevicePartsRemoved) isState()    {}
func (Completed) isState()             {}
func (RepairFailed) isState()          {}
func (Cancelled) isState()             {}
func (CustomerRefusedRepair) isState() {}

// Apply writes state onto svc: the status column, the payload columns of the
// new variant, the derived outcome flags, and clears payload left behind by
// the previous variant. It returns every column it changed, keyed by its
// JSON name, for the ledger.
func (s *ServiceOrder) Apply(state State) map[string]any {
	changed := map[string]any{"status": string(state.Status())}
	setStr := func(key string, dst **string, value *string) {
		if equalPtr(*dst, value) {
			return
		}
		*dst = clonePtr(value)
		if value == nil {
			changed[key] = nil
		} else {
			changed[key] = *value
		}
	}
	setBool := func(key string, dst *bool, value bool) {
		if *dst == value {
			return
		}
		*dst = value
		changed[key] = value
	}

	prev := s.Status
	s.Status = state.Status()

	switch st := state.(type) {
	case Assigned:
		id := st.TechnicianID
		if s.TechnicianID == nil || *s.TechnicianID != id {
			s.TechnicianID = &id
			changed["technician_id"] = id.String()
		}
	case Scheduled:
		setStr("scheduled_date", &s.ScheduledDate, &st.Date)
	case Completed:
		setStr("technician_notes", &s.TechnicianNotes, &st.TechnicianNotes)
		setStr("work_performed", &s.WorkPerformed, &st.WorkPerformed)
		setStr("completed_date", &s.CompletedDate, &st.CompletedDate)
	case RepairFailed:
		setStr("repair_failure_reason", &s.RepairFailureReason, &st.Reason)
		setStr("replaced_parts_before_failure", &s.ReplacedPartsBeforeFailure, st.ReplacedParts)
		setStr("repair_failure_date", &s.RepairFailureDate, &st.FailureDate)
	case Cancelled:
		setStr("cancellation_reason", &s.CancellationReason, st.Reason)
	case CustomerRefusedRepair:
		setStr("customer_refusal_reason", &s.CustomerRefusalReason, &st.Reason)
	}

	if prev != s.Status {
		switch prev {
		case StatusCompleted:
			setStr("completed_date", &s.CompletedDate, nil)
		case StatusRepairFailed:
			setStr("repair_failure_reason", &s.RepairFailureReason, nil)
			setStr("replaced_parts_before_failure", &s.ReplacedPartsBeforeFailure, nil)
			setStr("repair_failure_date", &s.RepairFailureDate, nil)
		case StatusCancelled:
			setStr("cancellation_reason", &s.CancellationReason, nil)
		case StatusCustomerRefusedRepair:
			setStr("customer_refusal_reason", &s.CustomerRefusalReason, nil)
		}
	}

	setBool("is_completely_fixed", &s.IsCompletelyFixed, s.Status == StatusCompleted)
	setBool("repair_failed", &s.RepairFailed, s.Status == StatusRepairFailed)
	setBool("customer_refuses_repair", &s.CustomerRefusesRepair, s.Status == StatusCustomerRefusedRepair)
	return changed
}

// FlagsConsistent reports whether the outcome flags agree with the status.
func (s ServiceOrder) FlagsConsistent() bool {
	return s.IsCompletelyFixed == (s.Status == StatusCompleted) &&
		s.RepairFailed == (s.Status == StatusRepairFailed) &&
		s.CustomerRefusesRepair == (s.Status == StatusCustomerRefusedRepair)
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func clonePtr(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

var (
	ErrServiceNotFound      = apperror.NotFound("service_not_found", "service not found")
	ErrNotAssigned          = apperror.Authorization("service_not_assigned", "service is not assigned to this technician")
	ErrRoleCannotTransition = apperror.Authorization("status_change_forbidden", "role may not change service status")
	ErrRoleCannotReassign   = apperror.Authorization("reassign_forbidden", "only admins may assign technicians")
	ErrRoleCannotCreate     = apperror.Authorization("create_forbidden", "role may not create services")
	ErrRoleCannotEdit       = apperror.Authorization("edit_forbidden", "role may not edit services")
	ErrNotOwner             = apperror.Authorization("service_not_owned", "service does not belong to this partner")
	ErrInvalidStatus        = apperror.Validation("invalid_status", "status", "unknown status")
	ErrStatusUnchanged      = apperror.Validation("status_unchanged", "status", "service already has this status")
	ErrTransitionNotAllowed = apperror.Validation("transition_not_allowed", "status", "transition is not allowed from the current status")
	ErrTechnicianRequired   = apperror.Validation("technician_required", "technician_id", "technician_id is required")
	ErrScheduledDateInvalid = apperror.Validation("invalid_scheduled_date", "scheduled_date", "scheduled_date must be YYYY-MM-DD")
	ErrNotesRequired        = apperror.Validation("technician_notes_required", "technician_notes", "technician notes are required")
	ErrWorkRequired         = apperror.Validation("work_performed_required", "work_performed", "work performed is required")
	ErrFailureReasonShort   = apperror.Validation("repair_failure_reason_too_short", "repair_failure_reason", "repair failure reason must be at least 5 characters")
	ErrFailureDateInvalid   = apperror.Validation("invalid_repair_failure_date", "repair_failure_date", "repair_failure_date must be YYYY-MM-DD")
	ErrRefusalReasonMissing = apperror.Validation("customer_refusal_reason_required", "customer_refusal_reason", "customer refusal reason is required")
	ErrEditNotAllowed       = apperror.Validation("edit_not_allowed", "status", "service can only be edited while pending or scheduled")
	ErrDescriptionRequired  = apperror.Validation("description_required", "description", "description is required")
	ErrClientRequired       = apperror.Validation("client_required", "client_id", "client_id is required")
	ErrApplianceRequired    = apperror.Validation("appliance_required", "appliance_id", "appliance_id is required")
	ErrEmptyEdit            = apperror.Validation("empty_edit", "request", "no editable fields provided")
	ErrInvalidPageToken     = apperror.Validation("invalid_page_token", "page_token", "invalid page token")
)
