package scheduling

import (
	"context"
	"errors"
	"time"

	"clinic-app-server/internal/models"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrSlotTaken is returned by writes that hit the (doctor, time) unique index.
	ErrSlotTaken = errors.New("slot already has a scheduled appointment")
)

// ListFilter narrows appointment listings. Empty fields do not filter.
type ListFilter struct {
	PatientID string
	DoctorID  string
	Status    models.AppointmentStatus
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	GetAppointmentByID(ctx context.Context, id string) (*models.Appointment, error)
	ListAppointments(ctx context.Context, filter ListFilter) ([]models.Appointment, error)

	// For conflict checks. excludeID skips the appointment being rescheduled.
	HasScheduledAppointment(ctx context.Context, doctorID string, at time.Time, excludeID string) (bool, error)

	// Creation and updates; both return ErrSlotTaken on a slot collision.
	CreateAppointment(ctx context.Context, appt *models.Appointment) error
	SaveAppointment(ctx context.Context, appt *models.Appointment) error
}
