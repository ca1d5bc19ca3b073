package emr

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"clinic-app-server/internal/models"
)

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gdb, mock
}

func decidedRequest() *models.EMRRequest {
	reviewer := "doctor-1"
	on := time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC)
	return &models.EMRRequest{
		BaseModel:    models.BaseModel{ID: "req-1"},
		Status:       models.EMRApproved,
		ReviewedByID: &reviewer,
		ReviewedOn:   &on,
	}
}

func TestGormRepository_DecideRequest(t *testing.T) {
	gdb, mock := setupTestDB(t)
	repo := NewGormRepository(gdb)

	mock.ExpectExec("UPDATE `emr_requests` SET .* WHERE id = \\? AND status = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DecideRequest(context.Background(), decidedRequest()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRepository_DecideRequestAlreadyDecided(t *testing.T) {
	gdb, mock := setupTestDB(t)
	repo := NewGormRepository(gdb)

	mock.ExpectExec("UPDATE `emr_requests` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DecideRequest(context.Background(), decidedRequest())
	assert.ErrorIs(t, err, ErrAlreadyDecided)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRepository_GetRequestNotFound(t *testing.T) {
	gdb, mock := setupTestDB(t)
	repo := NewGormRepository(gdb)

	mock.ExpectQuery("SELECT \\* FROM `emr_requests` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetRequestByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestGormRepository_ListFilesAccessibleOnly(t *testing.T) {
	gdb, mock := setupTestDB(t)
	repo := NewGormRepository(gdb)

	mock.ExpectQuery("SELECT \\* FROM `emr_files` WHERE patient_id = \\? AND is_accessible = \\? ORDER BY uploaded_on desc").
		WithArgs("patient-1", true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	files, err := repo.ListFiles(context.Background(), FileFilter{PatientID: "patient-1", AccessibleOnly: true})
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormBlobStore_PutDetectsContentType(t *testing.T) {
	gdb, mock := setupTestDB(t)
	store := NewGormBlobStore(gdb)

	mock.ExpectExec("INSERT INTO `emr_blobs`").
		WillReturnResult(sqlmock.NewResult(1, 1))

	blob, err := store.Put(context.Background(), "emr_files/alice/scan.pdf", []byte("%PDF-1.7\n%binary"))
	require.NoError(t, err)

	assert.NotEmpty(t, blob.ID)
	assert.Equal(t, "application/pdf", blob.ContentType)
	assert.Equal(t, int64(16), blob.Size)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormBlobStore_GetNotFound(t *testing.T) {
	gdb, mock := setupTestDB(t)
	store := NewGormBlobStore(gdb)

	mock.ExpectQuery("SELECT \\* FROM `emr_blobs` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Get(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}
