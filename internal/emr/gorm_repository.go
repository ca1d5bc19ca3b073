package emr

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clinic-app-server/internal/models"
)

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

func (r *GormRepository) CreateRequest(ctx context.Context, req *models.EMRRequest) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(req).Error
}

func (r *GormRepository) GetRequestByID(ctx context.Context, id string) (*models.EMRRequest, error) {
	var req models.EMRRequest
	err := r.db.WithContext(ctx).
		Preload("Patient").
		Preload("ReviewedBy").
		First(&req, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *GormRepository) ListRequests(ctx context.Context, filter RequestFilter) ([]models.EMRRequest, error) {
	query := r.db.WithContext(ctx).Preload("Patient").Preload("ReviewedBy").Order("requested_on desc")
	if filter.PatientID != "" {
		query = query.Where("patient_id = ?", filter.PatientID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var requests []models.EMRRequest
	if err := query.Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *GormRepository) DecideRequest(ctx context.Context, req *models.EMRRequest) error {
	res := r.db.WithContext(ctx).
		Model(&models.EMRRequest{}).
		Where("id = ? AND status = ?", req.ID, models.EMRPending).
		Updates(map[string]interface{}{
			"status":         req.Status,
			"reviewed_by_id": req.ReviewedByID,
			"reviewed_on":    req.ReviewedOn,
			"approval_notes": req.ApprovalNotes,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyDecided
	}
	return nil
}

func (r *GormRepository) CreateFile(ctx context.Context, file *models.EMRFile) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(file).Error
}

func (r *GormRepository) GetFileByID(ctx context.Context, id string) (*models.EMRFile, error) {
	var f models.EMRFile
	err := r.db.WithContext(ctx).
		Preload("Patient").
		Preload("UploadedBy").
		First(&f, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (r *GormRepository) ListFiles(ctx context.Context, filter FileFilter) ([]models.EMRFile, error) {
	query := r.db.WithContext(ctx).Preload("Patient").Preload("UploadedBy").Order("uploaded_on desc")
	if filter.PatientID != "" {
		query = query.Where("patient_id = ?", filter.PatientID)
	}
	if filter.AccessibleOnly {
		query = query.Where("is_accessible = ?", true)
	}

	var files []models.EMRFile
	if err := query.Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}
