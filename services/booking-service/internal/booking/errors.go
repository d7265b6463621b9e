package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

type ConflictDetail struct {
	AppointmentID string
	Start         time.Time
	End           time.Time
	Status        model.AppointmentStatus
}

// ConflictError reports the appointments a requested slot overlaps and, when the
// search found any, available alternatives nearest to the request.
type ConflictError struct {
	Conflicts   []ConflictDetail
	Suggestions []availability.Option
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 0 {
		return "requested time overlaps an existing appointment"
	}
	ids := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		ids = append(ids, c.AppointmentID)
	}
	return "requested time overlaps appointments " + strings.Join(ids, ", ")
}

type Reason struct {
	Field   string
	Code    string
	Message string
}

type ValidationError struct {
	Reasons []Reason
	// Policy is set when the rejection came from the reschedule policy.
	Policy *policy.Result
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		msgs = append(msgs, r.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func invalid(field, code, format string, args ...any) *ValidationError {
	return &ValidationError{Reasons: []Reason{{Field: field, Code: code, Message: fmt.Sprintf(format, args...)}}}
}

func conflictFrom(appts []model.Appointment) *ConflictError {
	out := &ConflictError{Conflicts: make([]ConflictDetail, 0, len(appts))}
	for _, a := range appts {
		out.Conflicts = append(out.Conflicts, ConflictDetail{
			AppointmentID: a.ID,
			Start:         a.StartTime,
			End:           a.EndTime(),
			Status:        a.Status,
		})
	}
	return out
}

// notFound converts storage.ErrNotFound into a NotFoundError and passes other errors through.
func notFound(err error, entity, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return err
}
