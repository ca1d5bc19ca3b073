package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"clinic-app-server/internal/access"
	"clinic-app-server/internal/apperrors"
	"clinic-app-server/internal/logger"
	"clinic-app-server/internal/metrics"
	"clinic-app-server/internal/models"
)

// CreateInput describes a new booking. An empty PatientID books for the actor.
type CreateInput struct {
	PatientID      string
	DoctorID       string
	ScheduledTime  time.Time
	ReasonForVisit *string
	Notes          *string
}

// UpdateInput carries the free-text fields of an appointment. Nil fields are left as they are.
type UpdateInput struct {
	ReasonForVisit *string
	Notes          *string
}

type Service struct {
	repo    Repository
	locker  SlotLocker
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo Repository, locker SlotLocker, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		locker:  locker,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// SetClock replaces the time source used for the past-time check.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// normalizeTime puts every stored time in UTC at whole-second precision so that
// equal slots compare equal regardless of the caller's zone.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// Create books a SCHEDULED appointment. The doctor's slot is checked and written
// under the slot lock; the unique slot index rejects anything that slips past.
func (s *Service) Create(ctx context.Context, actor models.Actor, in CreateInput) (*models.Appointment, error) {
	patientID := in.PatientID
	if patientID == "" {
		patientID = actor.ID
	}

	appt := &models.Appointment{
		PatientID:      patientID,
		DoctorID:       in.DoctorID,
		ScheduledTime:  normalizeTime(in.ScheduledTime),
		Status:         models.StatusScheduled,
		ReasonForVisit: in.ReasonForVisit,
		Notes:          in.Notes,
	}
	if err := access.Require(actor, access.OpCreate, appt); err != nil {
		return nil, err
	}

	patient, err := s.loadUserWithRole(ctx, patientID, models.RolePatient, "patient")
	if err != nil {
		return nil, err
	}
	doctor, err := s.loadUserWithRole(ctx, in.DoctorID, models.RoleDoctor, "doctor")
	if err != nil {
		return nil, err
	}

	if !appt.ScheduledTime.After(s.now()) {
		return nil, apperrors.ErrPastTime
	}

	err = s.locker.WithSlotLock(ctx, appt.DoctorID, appt.ScheduledTime, func(lockCtx context.Context) error {
		taken, err := s.repo.HasScheduledAppointment(lockCtx, appt.DoctorID, appt.ScheduledTime, "")
		if err != nil {
			return err
		}
		if taken {
			return apperrors.ErrConflict
		}

		if err := s.repo.CreateAppointment(lockCtx, appt); err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return apperrors.Wrap(apperrors.ErrConflict, err)
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.slotFailure(err)
	}

	appt.Patient = patient
	appt.Doctor = doctor

	s.metrics.AppointmentEvent("booked")
	s.logEntry(ctx).WithFields(logrus.Fields{
		"appointment_id": appt.ID,
		"patient_id":     appt.PatientID,
		"doctor_id":      appt.DoctorID,
		"scheduled_time": appt.ScheduledTime,
	}).Info("appointment booked")

	return appt, nil
}

// Reschedule moves a SCHEDULED appointment to a new future time, keeping the doctor.
func (s *Service) Reschedule(ctx context.Context, actor models.Actor, id string, newTime time.Time) (*models.Appointment, error) {
	appt, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !appt.IsScheduled() {
		return nil, apperrors.State(apperrors.CodeInvalidTransition, "only scheduled appointments can be rescheduled")
	}
	if err := access.Require(actor, access.OpReschedule, appt); err != nil {
		return nil, err
	}

	at := normalizeTime(newTime)
	if !at.After(s.now()) {
		return nil, apperrors.ErrPastTime
	}
	previous := appt.ScheduledTime

	err = s.locker.WithSlotLock(ctx, appt.DoctorID, at, func(lockCtx context.Context) error {
		taken, err := s.repo.HasScheduledAppointment(lockCtx, appt.DoctorID, at, appt.ID)
		if err != nil {
			return err
		}
		if taken {
			return apperrors.ErrConflict
		}

		appt.ScheduledTime = at
		if err := s.repo.SaveAppointment(lockCtx, appt); err != nil {
			appt.ScheduledTime = previous
			if errors.Is(err, ErrSlotTaken) {
				return apperrors.Wrap(apperrors.ErrConflict, err)
			}
			return fmt.Errorf("save appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.slotFailure(err)
	}

	s.metrics.AppointmentEvent("rescheduled")
	s.logEntry(ctx).WithFields(logrus.Fields{
		"appointment_id": appt.ID,
		"from":           previous,
		"to":             at,
	}).Info("appointment rescheduled")

	return appt, nil
}

// Cancel marks an appointment CANCELLED, freeing its slot.
func (s *Service) Cancel(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	appt, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := access.Require(actor, access.OpCancel, appt); err != nil {
		return nil, err
	}
	if appt.Status == models.StatusCancelled {
		return nil, apperrors.ErrAlreadyCancelled
	}

	appt.Status = models.StatusCancelled
	if err := s.repo.SaveAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("save appointment: %w", err)
	}

	s.metrics.AppointmentEvent("cancelled")
	s.logEntry(ctx).WithField("appointment_id", appt.ID).Info("appointment cancelled")
	return appt, nil
}

// Complete marks a SCHEDULED appointment COMPLETED, optionally replacing its notes.
func (s *Service) Complete(ctx context.Context, actor models.Actor, id string, notes *string) (*models.Appointment, error) {
	appt, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := access.Require(actor, access.OpComplete, appt); err != nil {
		return nil, err
	}
	if !appt.IsScheduled() {
		return nil, apperrors.State(apperrors.CodeInvalidTransition, "only scheduled appointments can be completed")
	}

	appt.Status = models.StatusCompleted
	if notes != nil {
		appt.Notes = notes
	}
	if err := s.repo.SaveAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("save appointment: %w", err)
	}

	s.metrics.AppointmentEvent("completed")
	s.logEntry(ctx).WithField("appointment_id", appt.ID).Info("appointment completed")
	return appt, nil
}

// UpdateDetails edits the reason and notes without touching status or time.
func (s *Service) UpdateDetails(ctx context.Context, actor models.Actor, id string, in UpdateInput) (*models.Appointment, error) {
	appt, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := access.Require(actor, access.OpUpdate, appt); err != nil {
		return nil, err
	}

	if in.ReasonForVisit != nil {
		appt.ReasonForVisit = in.ReasonForVisit
	}
	if in.Notes != nil {
		appt.Notes = in.Notes
	}
	if err := s.repo.SaveAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("save appointment: %w", err)
	}
	return appt, nil
}

// Get returns a single appointment the actor may read.
func (s *Service) Get(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	return s.load(ctx, actor, id)
}

// List returns the appointments visible to actor. Patients see their own,
// doctors see the ones booked with them, admins see everything filter allows.
func (s *Service) List(ctx context.Context, actor models.Actor, filter ListFilter) ([]models.Appointment, error) {
	if !actor.Authenticated() {
		return nil, apperrors.ErrRoleMismatch
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.Validation(apperrors.CodeInvalidStatus, "unknown appointment status")
	}

	switch {
	case actor.Role.IsPatient():
		filter.PatientID = actor.ID
	case actor.Role.IsDoctor():
		filter.DoctorID = actor.ID
	}

	appointments, err := s.repo.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	visible := appointments[:0]
	for i := range appointments {
		if access.Authorize(actor, access.OpRead, &appointments[i]) {
			visible = append(visible, appointments[i])
		}
	}
	return visible, nil
}

func (s *Service) load(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, apperrors.NotFound("appointment")
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if err := access.Require(actor, access.OpRead, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) loadUserWithRole(ctx context.Context, id string, role models.Role, label string) (*models.User, error) {
	if id == "" {
		return nil, apperrors.Validation(apperrors.CodeBadRole, label+" is required")
	}
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperrors.NotFound(label)
		}
		return nil, fmt.Errorf("load %s: %w", label, err)
	}
	if u.Role != role {
		return nil, apperrors.Validation(apperrors.CodeBadRole, fmt.Sprintf("%s must have %s role", label, role))
	}
	return u, nil
}

func (s *Service) logEntry(ctx context.Context) *logrus.Entry {
	return s.log.WithComponent(ctx, "scheduling")
}

// slotFailure maps errors out of a slot-locked section to what callers see.
func (s *Service) slotFailure(err error) error {
	switch {
	case errors.Is(err, ErrLockNotAcquired):
		s.metrics.SlotConflict()
		return apperrors.Wrap(apperrors.ErrSlotBusy, err)
	case errors.Is(err, apperrors.ErrConflict):
		s.metrics.SlotConflict()
		return err
	}
	return err
}
