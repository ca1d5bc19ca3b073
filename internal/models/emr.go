package models

import (
	"path"
	"strings"
	"time"
)

// EMRRequestStatus is the review state of an EMR access request.
type EMRRequestStatus string

const (
	EMRPending  EMRRequestStatus = "PENDING"
	EMRApproved EMRRequestStatus = "APPROVED"
	EMRDenied   EMRRequestStatus = "DENIED"
)

// IsDecision reports whether s closes a review.
func (s EMRRequestStatus) IsDecision() bool {
	return s == EMRApproved || s == EMRDenied
}

// EMRRequest is a patient's request to access their medical records.
type EMRRequest struct {
	BaseModel
	PatientID     string           `gorm:"size:36;not null;index" json:"patientId"`
	RequestedOn   time.Time        `gorm:"not null;index" json:"requestedOn"`
	Status        EMRRequestStatus `gorm:"size:10;not null;default:'PENDING';index" json:"status"`
	RequestReason string           `gorm:"type:text;not null" json:"requestReason"`
	ReviewedByID  *string          `gorm:"size:36;index" json:"reviewedBy,omitempty"`
	ReviewedOn    *time.Time       `json:"reviewedOn,omitempty"`
	ApprovalNotes *string          `gorm:"type:text" json:"approvalNotes,omitempty"`

	Patient    *User `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	ReviewedBy *User `gorm:"foreignKey:ReviewedByID" json:"reviewer,omitempty"`
}

// OwnerID returns the requesting patient.
func (r *EMRRequest) OwnerID() string { return r.PatientID }

// EMRBlob holds uploaded file content. Files are stored in the database the same
// way record attachments always were: one longblob row per upload.
type EMRBlob struct {
	BaseModel
	StorageKey  string `gorm:"size:512;not null;index" json:"storageKey"`
	ContentType string `gorm:"size:255;not null" json:"contentType"`
	Size        int64  `gorm:"not null" json:"size"`
	Data        []byte `gorm:"type:longblob;not null" json:"-"`
}

// EMRFile is the metadata of a medical record file uploaded for a patient.
type EMRFile struct {
	BaseModel
	PatientID    string    `gorm:"size:36;not null;index" json:"patientId"`
	BlobID       string    `gorm:"size:36;not null" json:"-"`
	FileName     string    `gorm:"size:255;not null" json:"fileName"`
	FileType     string    `gorm:"size:50;not null" json:"fileType"`
	Description  *string   `gorm:"type:text" json:"description,omitempty"`
	UploadedByID string    `gorm:"size:36;not null;index" json:"uploadedBy"`
	UploadedOn   time.Time `gorm:"not null;index" json:"uploadedOn"`
	IsAccessible bool      `gorm:"not null;default:false" json:"isAccessible"`

	Patient    *User `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	UploadedBy *User `gorm:"foreignKey:UploadedByID" json:"uploader,omitempty"`
}

// OwnerID returns the patient the file belongs to.
func (f *EMRFile) OwnerID() string { return f.PatientID }

// SetNameFromBlob derives FileName and FileType from the stored blob name.
func (f *EMRFile) SetNameFromBlob(storedName string) {
	f.FileName = path.Base(storedName)
	f.FileType = strings.ToLower(path.Ext(storedName))
}
