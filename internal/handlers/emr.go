package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"clinic-app-server/internal/apperrors"
	"clinic-app-server/internal/emr"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/utils"
)

// multipartOverhead is the room left on top of the file limit for form fields
// and part headers.
const multipartOverhead = 1 << 20

// EMRService is the part of emr.Service the HTTP layer uses.
type EMRService interface {
	RequestAccess(ctx context.Context, actor models.Actor, reason string) (*models.EMRRequest, error)
	Review(ctx context.Context, actor models.Actor, id string, decision models.EMRRequestStatus, notes *string) (*models.EMRRequest, error)
	GetRequest(ctx context.Context, actor models.Actor, id string) (*models.EMRRequest, error)
	ListRequests(ctx context.Context, actor models.Actor, filter emr.RequestFilter) ([]models.EMRRequest, error)
	UploadFile(ctx context.Context, actor models.Actor, in emr.UploadInput) (*models.EMRFile, error)
	ListVisibleFiles(ctx context.Context, actor models.Actor, patientID string) ([]models.EMRFile, error)
	ListFiles(ctx context.Context, actor models.Actor, patientID string) ([]models.EMRFile, error)
	GetFile(ctx context.Context, actor models.Actor, id string) (*models.EMRFile, error)
	OpenFile(ctx context.Context, actor models.Actor, id string) (*models.EMRFile, *models.EMRBlob, error)
}

// EMRHandler serves access requests and medical record files.
type EMRHandler struct {
	EMR            EMRService
	MaxUploadBytes int64
}

// NewEMRHandler creates a new EMRHandler. A zero limit uses emr.DefaultMaxUploadBytes.
func NewEMRHandler(svc EMRService, maxUploadBytes int64) *EMRHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = emr.DefaultMaxUploadBytes
	}
	return &EMRHandler{EMR: svc, MaxUploadBytes: maxUploadBytes}
}

// EMRFileResponse is file metadata plus the URL its content is served from.
type EMRFileResponse struct {
	*models.EMRFile
	DownloadURL string `json:"downloadUrl"`
}

func fileResponse(f *models.EMRFile) EMRFileResponse {
	return EMRFileResponse{EMRFile: f, DownloadURL: "/api/v1/emr/files/" + f.ID + "/download"}
}

// CreateAccessRequest represents the request body for requesting EMR access.
type CreateAccessRequest struct {
	RequestReason string `json:"requestReason" binding:"required"`
}

// CreateRequest files an access request for the calling patient.
func (h *EMRHandler) CreateRequest(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req CreateAccessRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	created, err := h.EMR.RequestAccess(c.Request.Context(), actor, req.RequestReason)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "EMR access request submitted successfully", created)
}

// GetRequests lists access requests, optionally filtered with ?status=.
func (h *EMRHandler) GetRequests(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	filter := emr.RequestFilter{
		PatientID: c.Query("patientId"),
		Status:    models.EMRRequestStatus(strings.ToUpper(c.Query("status"))),
	}
	requests, err := h.EMR.ListRequests(c.Request.Context(), actor, filter)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "EMR access requests fetched successfully", requests)
}

// GetRequestByID handles fetching a single access request.
func (h *EMRHandler) GetRequestByID(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	req, err := h.EMR.GetRequest(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "EMR access request fetched successfully", req)
}

// ReviewAccessRequest represents a staff decision on an access request.
type ReviewAccessRequest struct {
	Status        string  `json:"status" binding:"required"`
	ApprovalNotes *string `json:"approvalNotes"`
}

// ReviewRequest approves or denies a pending access request.
func (h *EMRHandler) ReviewRequest(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req ReviewAccessRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	decision := models.EMRRequestStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	reviewed, err := h.EMR.Review(c.Request.Context(), actor, c.Param("id"), decision, req.ApprovalNotes)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "EMR access request reviewed successfully", reviewed)
}

// UploadFile stores a multipart upload ("file" field) for a patient. The
// patientId, description and isAccessible form fields describe it.
func (h *EMRHandler) UploadFile(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+multipartOverhead)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(c, apperrors.Validation(apperrors.CodeFileTooLarge,
				fmt.Sprintf("file size cannot exceed %dMB", h.MaxUploadBytes>>20)))
			return
		}
		utils.BadRequest(c, "Error retrieving file from form: "+err.Error())
		return
	}

	isAccessible := false
	if v := c.PostForm("isAccessible"); v != "" {
		isAccessible, err = strconv.ParseBool(v)
		if err != nil {
			utils.BadRequest(c, "isAccessible must be true or false")
			return
		}
	}
	var description *string
	if v := strings.TrimSpace(c.PostForm("description")); v != "" {
		description = &v
	}

	f, err := header.Open()
	if err != nil {
		utils.BadRequest(c, "Error opening uploaded file: "+err.Error())
		return
	}
	defer f.Close()

	// One byte past the limit is enough for the service to reject the file.
	data, err := io.ReadAll(io.LimitReader(f, h.MaxUploadBytes+1))
	if err != nil {
		utils.RespondError(c, fmt.Errorf("read upload: %w", err))
		return
	}

	file, err := h.EMR.UploadFile(c.Request.Context(), actor, emr.UploadInput{
		PatientID:    c.PostForm("patientId"),
		FileName:     header.Filename,
		Data:         data,
		Description:  description,
		IsAccessible: isAccessible,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "File uploaded successfully", fileResponse(file))
}

// GetFiles lists every file of ?patientId= for staff; patients get their accessible files.
func (h *EMRHandler) GetFiles(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	files, err := h.EMR.ListFiles(c.Request.Context(), actor, c.Query("patientId"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "EMR files fetched successfully", fileResponses(files))
}

// GetVisibleFiles lists the accessible files of a patient.
func (h *EMRHandler) GetVisibleFiles(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	files, err := h.EMR.ListVisibleFiles(c.Request.Context(), actor, c.Query("patientId"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "EMR files fetched successfully", fileResponses(files))
}

// GetFileByID returns file metadata.
func (h *EMRHandler) GetFileByID(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	file, err := h.EMR.GetFile(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "EMR file fetched successfully", fileResponse(file))
}

// DownloadFile serves the stored content as an attachment.
func (h *EMRHandler) DownloadFile(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	file, blob, err := h.EMR.OpenFile(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.FileName}))
	c.Data(http.StatusOK, blob.ContentType, blob.Data)
}

func fileResponses(files []models.EMRFile) []EMRFileResponse {
	out := make([]EMRFileResponse, len(files))
	for i := range files {
		out[i] = fileResponse(&files[i])
	}
	return out
}
