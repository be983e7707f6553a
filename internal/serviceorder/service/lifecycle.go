package service

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/serviceorder/domain"
	userdomain "github.com/smallbiznis/fieldops/internal/user/domain"
)

const minFailureReasonLength = 5

var errDateMissing = errors.New("date missing")

// authorizeTransition runs the role and ownership gates. Ownership is checked
// before anything about the target so a technician learns nothing about
// services that are not theirs.
func authorizeTransition(svc domain.ServiceOrder, req domain.TransitionRequest, actor userdomain.Actor) error {
	switch actor.Role {
	case userdomain.RoleAdmin:
		return nil
	case userdomain.RoleTechnician:
		if !actor.OwnsTechnicianAssignment(svc.TechnicianID) {
			return domain.ErrNotAssigned
		}
		if req.Status == domain.StatusAssigned {
			return domain.ErrRoleCannotReassign
		}
		if req.TechnicianID != nil && (svc.TechnicianID == nil || *req.TechnicianID != *svc.TechnicianID) {
			return domain.ErrRoleCannotReassign
		}
		return nil
	default:
		return domain.ErrRoleCannotTransition
	}
}

// buildState validates req against svc and produces the target state.
func buildState(svc domain.ServiceOrder, req domain.TransitionRequest, actor userdomain.Actor, now time.Time) (domain.State, error) {
	target, ok := domain.ParseStatus(string(req.Status))
	if !ok {
		return nil, domain.ErrInvalidStatus
	}

	reassign := target == domain.StatusAssigned && req.TechnicianID != nil &&
		(svc.TechnicianID == nil || *svc.TechnicianID != *req.TechnicianID)
	if target == svc.Status && !reassign {
		return nil, domain.ErrStatusUnchanged
	}
	if actor.Role == userdomain.RoleTechnician && !domain.TechnicianMayMove(svc.Status, target) {
		return nil, domain.ErrTransitionNotAllowed
	}

	switch target {
	case domain.StatusPending:
		return domain.Pending{}, nil

	case domain.StatusAssigned:
		techID := svc.TechnicianID
		if req.TechnicianID != nil {
			techID = req.TechnicianID
		}
		if techID == nil || *techID == 0 {
			return nil, domain.ErrTechnicianRequired
		}
		return domain.Assigned{TechnicianID: *techID}, nil

	case domain.StatusScheduled:
		date := svc.ScheduledDate
		if req.ScheduledDate != nil {
			date = req.ScheduledDate
		}
		parsed, err := parseDate(date)
		if err != nil {
			return nil, domain.ErrScheduledDateInvalid
		}
		return domain.Scheduled{Date: parsed}, nil

	case domain.StatusInProgress:
		return domain.InProgress{}, nil

	case domain.StatusDevicePartsRemoved:
		return domain.DevicePartsRemoved{}, nil

	case domain.StatusCompleted:
		notes := trimmed(req.TechnicianNotes)
		if notes == "" {
			return nil, domain.ErrNotesRequired
		}
		work := trimmed(req.WorkPerformed)
		if work == "" {
			return nil, domain.ErrWorkRequired
		}
		return domain.Completed{
			TechnicianNotes: notes,
			WorkPerformed:   work,
			CompletedDate:   now.UTC().Format(time.RFC3339),
		}, nil

	case domain.StatusRepairFailed:
		reason := trimmed(req.RepairFailureReason)
		if utf8.RuneCountInString(reason) < minFailureReasonLength {
			return nil, domain.ErrFailureReasonShort
		}
		failureDate := clock.DateString(now)
		if req.RepairFailureDate != nil && strings.TrimSpace(*req.RepairFailureDate) != "" {
			parsed, err := parseDate(req.RepairFailureDate)
			if err != nil {
				return nil, domain.ErrFailureDateInvalid
			}
			failureDate = parsed
		}
		return domain.RepairFailed{
			Reason:        reason,
			ReplacedParts: optional(req.ReplacedPartsBeforeFailure),
			FailureDate:   failureDate,
		}, nil

	case domain.StatusCancelled:
		return domain.Cancelled{Reason: optional(req.CancellationReason)}, nil

	case domain.StatusCustomerRefusedRepair:
		reason := trimmed(req.CustomerRefusalReason)
		if reason == "" {
			return nil, domain.ErrRefusalReasonMissing
		}
		return domain.CustomerRefusedRepair{Reason: reason}, nil
	}
	return nil, domain.ErrInvalidStatus
}

func parseDate(value *string) (string, error) {
	if value == nil {
		return "", errDateMissing
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(*value))
	if err != nil {
		return "", err
	}
	return t.Format(time.DateOnly), nil
}

func trimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func optional(value *string) *string {
	v := trimmed(value)
	if v == "" {
		return nil
	}
	return &v
}
