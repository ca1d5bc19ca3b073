package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clinic-app-server/internal/models"
)

// GormRepository persists appointments in MySQL through gorm.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *GormRepository) GetAppointmentByID(ctx context.Context, id string) (*models.Appointment, error) {
	var a models.Appointment
	err := r.db.WithContext(ctx).
		Preload("Patient").
		Preload("Doctor").
		First(&a, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *GormRepository) ListAppointments(ctx context.Context, filter ListFilter) ([]models.Appointment, error) {
	query := r.db.WithContext(ctx).Preload("Patient").Preload("Doctor").Order("scheduled_time asc")

	if filter.PatientID != "" {
		query = query.Where("patient_id = ?", filter.PatientID)
	}
	if filter.DoctorID != "" {
		query = query.Where("doctor_id = ?", filter.DoctorID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var appointments []models.Appointment
	if err := query.Find(&appointments).Error; err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *GormRepository) HasScheduledAppointment(ctx context.Context, doctorID string, at time.Time, excludeID string) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("doctor_id = ? AND scheduled_time = ? AND status = ?", doctorID, at, models.StatusScheduled)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var n int64
	if err := query.Count(&n).Error; err != nil {
		return false, fmt.Errorf("count scheduled appointments: %w", err)
	}
	return n > 0, nil
}

func (r *GormRepository) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(appt).Error
	return translateSlotError(err)
}

func (r *GormRepository) SaveAppointment(ctx context.Context, appt *models.Appointment) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Save(appt).Error
	return translateSlotError(err)
}

// The only unique index on appointments besides the primary key is the slot index.
func translateSlotError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrSlotTaken, err)
	}
	return err
}
