package emr

import (
	"context"
	"errors"

	"clinic-app-server/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrRequestNotFound = errors.New("emr request not found")
	ErrFileNotFound    = errors.New("emr file not found")
	ErrBlobNotFound    = errors.New("emr blob not found")
	// ErrAlreadyDecided is returned when a review loses the race against another reviewer.
	ErrAlreadyDecided = errors.New("emr request already decided")
)

// RequestFilter narrows request listings. Empty fields do not filter.
type RequestFilter struct {
	PatientID string
	Status    models.EMRRequestStatus
}

// FileFilter narrows file listings.
type FileFilter struct {
	PatientID      string
	AccessibleOnly bool
}

type Repository interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	CreateRequest(ctx context.Context, req *models.EMRRequest) error
	GetRequestByID(ctx context.Context, id string) (*models.EMRRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]models.EMRRequest, error)
	// DecideRequest writes the review fields of req only if the stored request is still PENDING.
	DecideRequest(ctx context.Context, req *models.EMRRequest) error

	CreateFile(ctx context.Context, file *models.EMRFile) error
	GetFileByID(ctx context.Context, id string) (*models.EMRFile, error)
	ListFiles(ctx context.Context, filter FileFilter) ([]models.EMRFile, error)
}
