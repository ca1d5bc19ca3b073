package models

import (
	"time"

	"gorm.io/gorm"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "SCHEDULED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusNoShow    AppointmentStatus = "NO_SHOW"
)

// Valid reports whether s is a known appointment status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Appointment is a zero-duration booking of a doctor by a patient.
//
// ActiveSlot mirrors DoctorID while the appointment is SCHEDULED and is NULL
// otherwise. Together with ScheduledTime it forms a unique index, so the store
// rejects a second SCHEDULED appointment for the same doctor and time while
// cancelled or completed ones never block the slot.
type Appointment struct {
	BaseModel
	PatientID      string            `gorm:"size:36;not null;index" json:"patientId"`
	DoctorID       string            `gorm:"size:36;not null;index" json:"doctorId"`
	ScheduledTime  time.Time         `gorm:"not null;index;uniqueIndex:idx_doctor_active_slot,priority:2" json:"scheduledTime"`
	ActiveSlot     *string           `gorm:"size:36;uniqueIndex:idx_doctor_active_slot,priority:1" json:"-"`
	Status         AppointmentStatus `gorm:"size:10;not null;default:'SCHEDULED';index" json:"status"`
	Notes          *string           `gorm:"type:text" json:"notes,omitempty"`
	ReasonForVisit *string           `gorm:"size:200" json:"reasonForVisit,omitempty"`

	Patient *User `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor  *User `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
}

// OwnerID returns the patient the appointment belongs to.
func (a *Appointment) OwnerID() string { return a.PatientID }

// IsScheduled reports whether the appointment still holds its slot.
func (a *Appointment) IsScheduled() bool { return a.Status == StatusScheduled }

// BeforeSave keeps ActiveSlot in step with Status.
func (a *Appointment) BeforeSave(tx *gorm.DB) error {
	a.SyncActiveSlot()
	return nil
}

// SyncActiveSlot recomputes ActiveSlot from Status and DoctorID.
func (a *Appointment) SyncActiveSlot() {
	if a.Status == StatusScheduled && a.DoctorID != "" {
		doctor := a.DoctorID
		a.ActiveSlot = &doctor
		return
	}
	a.ActiveSlot = nil
}
