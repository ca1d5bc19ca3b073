// Package access answers whether an actor may perform an operation on an
// appointment, an EMR request or an EMR file. Every function here is a pure
// predicate over its arguments.
package access

import (
	"clinic-app-server/internal/apperrors"
	"clinic-app-server/internal/models"
)

// Operation is an action an actor attempts on a resource.
type Operation string

const (
	OpRead       Operation = "read"
	OpCreate     Operation = "create"
	OpUpdate     Operation = "update"
	OpCancel     Operation = "cancel"
	OpComplete   Operation = "complete"
	OpReschedule Operation = "reschedule"
	OpReview     Operation = "review"
	OpUpload     Operation = "upload"
)

// Authorize reports whether actor may perform op on resource.
//
// Rules are applied in order: unauthenticated actors are denied, admins are
// allowed everything, patients only ever touch resources they own, then the
// resource-specific rules decide.
func Authorize(actor models.Actor, op Operation, resource models.Owned) bool {
	if !actor.Authenticated() {
		return false
	}
	if actor.Role.IsAdmin() {
		return true
	}
	if resource == nil {
		return false
	}
	if actor.Role.IsPatient() && resource.OwnerID() != actor.ID {
		return false
	}

	switch r := resource.(type) {
	case *models.Appointment:
		return authorizeAppointment(actor, op, r)
	case *models.EMRRequest:
		return authorizeEMRRequest(actor, op, r)
	case *models.EMRFile:
		return authorizeEMRFile(actor, op, r)
	}
	return false
}

func authorizeAppointment(actor models.Actor, op Operation, a *models.Appointment) bool {
	isDoctorOfRecord := actor.Role.IsDoctor() && a.DoctorID == actor.ID

	switch op {
	case OpRead:
		return actor.Role.IsPatient() || actor.Role.IsDoctor()
	case OpCreate:
		return actor.Role.IsPatient()
	case OpUpdate, OpCancel:
		return actor.Role.IsPatient() || isDoctorOfRecord
	case OpComplete:
		return isDoctorOfRecord
	case OpReschedule:
		return actor.Role.IsPatient() && a.IsScheduled()
	}
	return false
}

func authorizeEMRRequest(actor models.Actor, op Operation, r *models.EMRRequest) bool {
	switch op {
	case OpRead:
		return actor.Role.IsPatient() || actor.Role.IsDoctor()
	case OpCreate:
		return actor.Role.IsPatient()
	case OpReview:
		return actor.Role.IsDoctor() && r.Status == models.EMRPending
	}
	return false
}

func authorizeEMRFile(actor models.Actor, op Operation, f *models.EMRFile) bool {
	switch op {
	case OpRead:
		if actor.Role.IsPatient() {
			return f.IsAccessible
		}
		return actor.Role.IsDoctor()
	case OpUpload:
		return actor.Role.IsDoctor()
	}
	return false
}

// Require is Authorize returning the matching authorization error when denied.
// Patients touching someone else's resource get not_owner, everything else
// gets role_mismatch.
func Require(actor models.Actor, op Operation, resource models.Owned) error {
	if Authorize(actor, op, resource) {
		return nil
	}
	if actor.Role.IsPatient() && resource != nil && resource.OwnerID() != actor.ID {
		return apperrors.ErrNotOwner
	}
	return apperrors.ErrRoleMismatch
}
