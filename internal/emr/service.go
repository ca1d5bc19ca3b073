// Package emr implements the EMR access workflow: patients request access to
// their records, staff review the requests and upload files, and patients see
// the files staff marked accessible.
package emr

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"clinic-app-server/internal/access"
	"clinic-app-server/internal/apperrors"
	"clinic-app-server/internal/logger"
	"clinic-app-server/internal/metrics"
	"clinic-app-server/internal/models"
)

// DefaultMaxUploadBytes is the largest file accepted when no limit is configured.
const DefaultMaxUploadBytes int64 = 10 << 20

var extensions = []string{".pdf", ".doc", ".docx", ".jpg", ".jpeg", ".png", ".txt"}

var allowedExtensions = make(map[string]bool, len(extensions))

func init() {
	for _, ext := range extensions {
		allowedExtensions[ext] = true
	}
}

// AllowedExtensions lists the accepted upload extensions.
func AllowedExtensions() []string {
	return slices.Clone(extensions)
}

// UploadInput is a file upload for a patient.
type UploadInput struct {
	PatientID    string
	FileName     string
	Data         []byte
	Description  *string
	IsAccessible bool
}

type Service struct {
	repo           Repository
	blobs          BlobStore
	maxUploadBytes int64
	log            *logger.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
}

// NewService wires the workflow. A maxUploadBytes of zero uses DefaultMaxUploadBytes.
func NewService(repo Repository, blobs BlobStore, maxUploadBytes int64, log *logger.Logger, m *metrics.Metrics) *Service {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Service{
		repo:           repo,
		blobs:          blobs,
		maxUploadBytes: maxUploadBytes,
		log:            log,
		metrics:        m,
		now:            time.Now,
	}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// RequestAccess files a PENDING access request for the calling patient.
func (s *Service) RequestAccess(ctx context.Context, actor models.Actor, reason string) (*models.EMRRequest, error) {
	req := &models.EMRRequest{
		PatientID:     actor.ID,
		RequestedOn:   s.now().UTC().Truncate(time.Second),
		Status:        models.EMRPending,
		RequestReason: strings.TrimSpace(reason),
	}
	if err := access.Require(actor, access.OpCreate, req); err != nil {
		return nil, err
	}
	if req.RequestReason == "" {
		return nil, apperrors.Validation(apperrors.CodeInvalidInput, "request reason is required")
	}

	patient, err := s.loadPatient(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("create emr request: %w", err)
	}
	req.Patient = patient

	s.logEntry(ctx).WithFields(logrus.Fields{
		"emr_request_id": req.ID,
		"patient_id":     req.PatientID,
	}).Info("emr access requested")
	return req, nil
}

// Review records a staff decision on a PENDING request. Decided requests stay decided.
func (s *Service) Review(ctx context.Context, actor models.Actor, id string, decision models.EMRRequestStatus, notes *string) (*models.EMRRequest, error) {
	req, err := s.GetRequest(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() {
		return nil, apperrors.ErrRoleMismatch
	}
	if !decision.IsDecision() {
		return nil, apperrors.ErrInvalidStatus
	}
	if req.Status != models.EMRPending {
		return nil, apperrors.State(apperrors.CodeInvalidTransition, "emr request has already been reviewed")
	}
	if err := access.Require(actor, access.OpReview, req); err != nil {
		return nil, err
	}

	reviewer := actor.ID
	reviewedOn := s.now().UTC().Truncate(time.Second)
	req.Status = decision
	req.ReviewedByID = &reviewer
	req.ReviewedOn = &reviewedOn
	req.ApprovalNotes = notes

	if err := s.repo.DecideRequest(ctx, req); err != nil {
		if errors.Is(err, ErrAlreadyDecided) {
			return nil, apperrors.Wrap(apperrors.ErrInvalidTransition, err)
		}
		return nil, fmt.Errorf("review emr request: %w", err)
	}
	req.ReviewedBy = nil

	s.metrics.EMRReview(string(decision))
	s.logEntry(ctx).WithFields(logrus.Fields{
		"emr_request_id": req.ID,
		"decision":       decision,
		"reviewed_by":    reviewer,
	}).Info("emr request reviewed")
	return req, nil
}

// GetRequest returns a request the actor may read.
func (s *Service) GetRequest(ctx context.Context, actor models.Actor, id string) (*models.EMRRequest, error) {
	req, err := s.repo.GetRequestByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, apperrors.NotFound("emr request")
		}
		return nil, fmt.Errorf("load emr request: %w", err)
	}
	if err := access.Require(actor, access.OpRead, req); err != nil {
		return nil, err
	}
	return req, nil
}

// ListRequests returns the caller's own requests for patients and every request for staff.
func (s *Service) ListRequests(ctx context.Context, actor models.Actor, filter RequestFilter) ([]models.EMRRequest, error) {
	if !actor.Authenticated() {
		return nil, apperrors.ErrRoleMismatch
	}
	if filter.Status != "" && filter.Status != models.EMRPending && !filter.Status.IsDecision() {
		return nil, apperrors.Validation(apperrors.CodeInvalidStatus, "unknown emr request status")
	}
	if actor.Role.IsPatient() {
		filter.PatientID = actor.ID
	}

	requests, err := s.repo.ListRequests(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list emr requests: %w", err)
	}

	visible := requests[:0]
	for i := range requests {
		if access.Authorize(actor, access.OpRead, &requests[i]) {
			visible = append(visible, requests[i])
		}
	}
	return visible, nil
}

// UploadFile stores a file for a patient. Only staff upload.
func (s *Service) UploadFile(ctx context.Context, actor models.Actor, in UploadInput) (*models.EMRFile, error) {
	file := &models.EMRFile{
		PatientID:    in.PatientID,
		UploadedByID: actor.ID,
		Description:  in.Description,
		IsAccessible: in.IsAccessible,
	}
	if err := access.Require(actor, access.OpUpload, file); err != nil {
		return nil, err
	}

	name := cleanFileName(in.FileName)
	if err := s.validateUpload(name, int64(len(in.Data))); err != nil {
		s.metrics.EMRUpload("rejected")
		return nil, err
	}

	patient, err := s.loadPatient(ctx, in.PatientID)
	if err != nil {
		s.metrics.EMRUpload("rejected")
		return nil, err
	}

	key := storageKey(patient.Username, name)
	blob, err := s.blobs.Put(ctx, key, in.Data)
	if err != nil {
		return nil, fmt.Errorf("store emr blob: %w", err)
	}

	file.BlobID = blob.ID
	file.UploadedOn = s.now().UTC().Truncate(time.Second)
	file.SetNameFromBlob(blob.StorageKey)

	if err := s.repo.CreateFile(ctx, file); err != nil {
		if delErr := s.blobs.Delete(ctx, blob.ID); delErr != nil {
			s.logEntry(ctx).WithError(delErr).WithField("blob_id", blob.ID).Warn("failed to remove orphaned emr blob")
		}
		return nil, fmt.Errorf("create emr file: %w", err)
	}
	file.Patient = patient

	s.metrics.EMRUpload("stored")
	s.logEntry(ctx).WithFields(logrus.Fields{
		"file_id":      file.ID,
		"patient_id":   file.PatientID,
		"uploaded_by":  file.UploadedByID,
		"size":         blob.Size,
		"content_type": blob.ContentType,
	}).Info("emr file uploaded")
	return file, nil
}

// ListVisibleFiles returns the accessible files of a patient that the actor may read.
// Patients always see their own files; patientID is ignored for them.
func (s *Service) ListVisibleFiles(ctx context.Context, actor models.Actor, patientID string) ([]models.EMRFile, error) {
	if !actor.Authenticated() {
		return nil, apperrors.ErrRoleMismatch
	}
	if actor.Role.IsPatient() {
		patientID = actor.ID
	}
	return s.listFiles(ctx, actor, FileFilter{PatientID: patientID, AccessibleOnly: true})
}

// ListFiles returns every file of a patient for staff and the caller's accessible files for patients.
func (s *Service) ListFiles(ctx context.Context, actor models.Actor, patientID string) ([]models.EMRFile, error) {
	if !actor.Authenticated() {
		return nil, apperrors.ErrRoleMismatch
	}
	filter := FileFilter{PatientID: patientID}
	if actor.Role.IsPatient() {
		filter = FileFilter{PatientID: actor.ID, AccessibleOnly: true}
	}
	return s.listFiles(ctx, actor, filter)
}

// GetFile returns the metadata of a file the actor may read.
func (s *Service) GetFile(ctx context.Context, actor models.Actor, id string) (*models.EMRFile, error) {
	file, err := s.repo.GetFileByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return nil, apperrors.NotFound("emr file")
		}
		return nil, fmt.Errorf("load emr file: %w", err)
	}
	if err := access.Require(actor, access.OpRead, file); err != nil {
		return nil, err
	}
	return file, nil
}

// OpenFile returns a readable file together with its content.
func (s *Service) OpenFile(ctx context.Context, actor models.Actor, id string) (*models.EMRFile, *models.EMRBlob, error) {
	file, err := s.GetFile(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	blob, err := s.blobs.Get(ctx, file.BlobID)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return nil, nil, apperrors.NotFound("emr file content")
		}
		return nil, nil, fmt.Errorf("load emr blob: %w", err)
	}
	return file, blob, nil
}

func (s *Service) listFiles(ctx context.Context, actor models.Actor, filter FileFilter) ([]models.EMRFile, error) {
	files, err := s.repo.ListFiles(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list emr files: %w", err)
	}

	visible := files[:0]
	for i := range files {
		if access.Authorize(actor, access.OpRead, &files[i]) {
			visible = append(visible, files[i])
		}
	}
	return visible, nil
}

func (s *Service) validateUpload(name string, size int64) error {
	if size > s.maxUploadBytes {
		return apperrors.Validation(apperrors.CodeFileTooLarge, fmt.Sprintf("file size cannot exceed %dMB", s.maxUploadBytes>>20))
	}
	if !allowedExtensions[strings.ToLower(path.Ext(name))] {
		return apperrors.Validation(apperrors.CodeUnsupportedType,
			"file type not allowed. Allowed types: "+strings.Join(AllowedExtensions(), ", "))
	}
	return nil
}

func (s *Service) loadPatient(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, apperrors.Validation(apperrors.CodeBadRole, "patient is required")
	}
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperrors.NotFound("patient")
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if !u.Role.IsPatient() {
		return nil, apperrors.Validation(apperrors.CodeBadRole, "emr records can only belong to patients")
	}
	return u, nil
}

func (s *Service) logEntry(ctx context.Context) *logrus.Entry {
	return s.log.WithComponent(ctx, "emr")
}

// cleanFileName drops any directory part a client sent along with the name.
func cleanFileName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	return path.Base(name)
}

func storageKey(username, name string) string {
	return path.Join("emr_files", username, name)
}
