package emr

import (
	"context"
	"errors"

	"github.com/gabriel-vasile/mimetype"
	"gorm.io/gorm"

	"clinic-app-server/internal/models"
)

// BlobStore keeps uploaded file content apart from its metadata.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) (*models.EMRBlob, error)
	Get(ctx context.Context, id string) (*models.EMRBlob, error)
	Delete(ctx context.Context, id string) error
}

// GormBlobStore stores content as longblob rows in MySQL.
type GormBlobStore struct {
	db *gorm.DB
}

func NewGormBlobStore(db *gorm.DB) *GormBlobStore {
	return &GormBlobStore{db: db}
}

func (s *GormBlobStore) Put(ctx context.Context, key string, data []byte) (*models.EMRBlob, error) {
	blob := &models.EMRBlob{
		StorageKey:  key,
		ContentType: mimetype.Detect(data).String(),
		Size:        int64(len(data)),
		Data:        data,
	}
	if err := s.db.WithContext(ctx).Create(blob).Error; err != nil {
		return nil, err
	}
	return blob, nil
}

func (s *GormBlobStore) Get(ctx context.Context, id string) (*models.EMRBlob, error) {
	var blob models.EMRBlob
	if err := s.db.WithContext(ctx).First(&blob, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	return &blob, nil
}

func (s *GormBlobStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.EMRBlob{}, "id = ?", id).Error
}
