package handlers

import (
	"github.com/gin-gonic/gin"

	"clinic-app-server/internal/accounts"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/utils"
)

// UserHandler handles user-related requests (typically admin operations).
type UserHandler struct {
	Accounts AccountService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc AccountService) *UserHandler {
	return &UserHandler{Accounts: svc}
}

// CreateUserRequest represents the request body for creating a user by an admin.
type CreateUserRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=150"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	FirstName   string `json:"firstName" binding:"max=100"`
	LastName    string `json:"lastName" binding:"max=100"`
	Role        string `json:"role" binding:"required,oneof=PATIENT DOCTOR ADMIN"`
	DateOfBirth string `json:"dateOfBirth" binding:"omitempty,datetime=2006-01-02"`
	PhoneNumber string `json:"phoneNumber" binding:"max=15"`
	Address     string `json:"address"`
}

// CreateUser handles creating a new user (admin).
func (h *UserHandler) CreateUser(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req CreateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Accounts.CreateUser(c.Request.Context(), actor, accounts.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Role:        models.Role(req.Role),
		DateOfBirth: parseDate(req.DateOfBirth),
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "User created successfully", user.Sanitize())
}

// GetUsers lists all users, optionally filtered with ?role=.
func (h *UserHandler) GetUsers(c *gin.Context) {
	role := models.Role(c.Query("role"))
	if parsed, ok := models.ParseRole(string(role)); ok {
		role = parsed
	}

	users, err := h.Accounts.ListUsers(c.Request.Context(), role)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Users fetched successfully", sanitizeUsers(users))
}

// GetUserByID handles fetching a single user by ID (admin).
func (h *UserHandler) GetUserByID(c *gin.Context) {
	user, err := h.Accounts.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "User fetched successfully", user.Sanitize())
}

// UpdateUserRequest represents the request body for updating a user by an admin.
// The role of an existing account is fixed.
type UpdateUserRequest struct {
	UpdateProfileRequest
	IsActive *bool `json:"isActive"`
}

// UpdateUser handles updating a user by ID (admin).
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	upd := req.update()
	upd.IsActive = req.IsActive
	user, err := h.Accounts.UpdateUser(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "User updated successfully", user.Sanitize())
}

// DeleteUser handles deleting a user by ID (admin).
func (h *UserHandler) DeleteUser(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	if err := h.Accounts.DeleteUser(c.Request.Context(), actor, c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "User deleted successfully", nil)
}

// GetDoctors lists active doctors. Any authenticated user may call it so
// patients can pick a doctor when booking.
func (h *UserHandler) GetDoctors(c *gin.Context) {
	doctors, err := h.Accounts.ListDoctors(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Doctors fetched successfully", sanitizeUsers(doctors))
}

// GetPatients lists active patients for doctors and admins.
func (h *UserHandler) GetPatients(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	patients, err := h.Accounts.ListPatients(c.Request.Context(), actor)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Patients fetched successfully", sanitizeUsers(patients))
}

func sanitizeUsers(users []models.User) []models.UserSanitized {
	out := make([]models.UserSanitized, len(users))
	for i := range users {
		out[i] = users[i].Sanitize()
	}
	return out
}
