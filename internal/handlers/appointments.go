package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/scheduling"
	"clinic-app-server/internal/utils"
)

// AppointmentService is the part of scheduling.Service the HTTP layer uses.
type AppointmentService interface {
	Create(ctx context.Context, actor models.Actor, in scheduling.CreateInput) (*models.Appointment, error)
	Reschedule(ctx context.Context, actor models.Actor, id string, newTime time.Time) (*models.Appointment, error)
	Cancel(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error)
	Complete(ctx context.Context, actor models.Actor, id string, notes *string) (*models.Appointment, error)
	UpdateDetails(ctx context.Context, actor models.Actor, id string, in scheduling.UpdateInput) (*models.Appointment, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error)
	List(ctx context.Context, actor models.Actor, filter scheduling.ListFilter) ([]models.Appointment, error)
}

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Appointments AppointmentService
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(svc AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{Appointments: svc}
}

// CreateAppointmentRequest represents the request body for creating an appointment.
// Patients may leave PatientID empty to book for themselves.
type CreateAppointmentRequest struct {
	PatientID      string    `json:"patientId" binding:"omitempty,uuid"`
	DoctorID       string    `json:"doctorId" binding:"required,uuid"`
	ScheduledTime  time.Time `json:"scheduledTime" binding:"required"`
	ReasonForVisit *string   `json:"reasonForVisit" binding:"omitempty,max=200"`
	Notes          *string   `json:"notes"`
}

// CreateAppointment handles booking a new appointment.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appt, err := h.Appointments.Create(c.Request.Context(), actor, scheduling.CreateInput{
		PatientID:      req.PatientID,
		DoctorID:       req.DoctorID,
		ScheduledTime:  req.ScheduledTime,
		ReasonForVisit: req.ReasonForVisit,
		Notes:          req.Notes,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Appointment created successfully", appt)
}

// GetAppointments lists the caller's appointments. Admins may narrow the list
// with ?patientId= and ?doctorId=; everyone may filter with ?status=.
func (h *AppointmentHandler) GetAppointments(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	filter := scheduling.ListFilter{
		PatientID: c.Query("patientId"),
		DoctorID:  c.Query("doctorId"),
		Status:    models.AppointmentStatus(strings.ToUpper(c.Query("status"))),
	}
	appointments, err := h.Appointments.List(c.Request.Context(), actor, filter)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Appointments fetched successfully", appointments)
}

// GetAppointmentByID handles fetching a single appointment.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	appt, err := h.Appointments.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Appointment fetched successfully", appt)
}

// UpdateAppointmentRequest carries the editable free-text fields.
type UpdateAppointmentRequest struct {
	ReasonForVisit *string `json:"reasonForVisit" binding:"omitempty,max=200"`
	Notes          *string `json:"notes"`
}

// UpdateAppointment edits the reason and notes of an appointment.
func (h *AppointmentHandler) UpdateAppointment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req UpdateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appt, err := h.Appointments.UpdateDetails(c.Request.Context(), actor, c.Param("id"), scheduling.UpdateInput{
		ReasonForVisit: req.ReasonForVisit,
		Notes:          req.Notes,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Appointment updated successfully", appt)
}

// CancelAppointment frees the slot of a scheduled appointment.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	appt, err := h.Appointments.Cancel(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Appointment cancelled successfully", appt)
}

// CompleteAppointmentRequest lets the doctor attach closing notes.
type CompleteAppointmentRequest struct {
	Notes *string `json:"notes"`
}

// CompleteAppointment marks a scheduled appointment as completed.
func (h *AppointmentHandler) CompleteAppointment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req CompleteAppointmentRequest
	if c.Request.ContentLength != 0 && !utils.BindAndValidate(c, &req) {
		return
	}

	appt, err := h.Appointments.Complete(c.Request.Context(), actor, c.Param("id"), req.Notes)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Appointment completed successfully", appt)
}

// RescheduleAppointmentRequest represents the request body for rescheduling.
type RescheduleAppointmentRequest struct {
	ScheduledTime time.Time `json:"scheduledTime" binding:"required"`
}

// RescheduleAppointment moves a scheduled appointment to a new time.
func (h *AppointmentHandler) RescheduleAppointment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req RescheduleAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appt, err := h.Appointments.Reschedule(c.Request.Context(), actor, c.Param("id"), req.ScheduledTime)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Appointment rescheduled successfully", appt)
}
