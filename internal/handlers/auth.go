package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"clinic-app-server/internal/accounts"
	"clinic-app-server/internal/config"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/utils"
)

const refreshCookieName = "refresh_token"

// AccountService is the part of accounts.Service the HTTP layer uses.
type AccountService interface {
	Register(ctx context.Context, in accounts.RegisterInput) (*models.User, error)
	Login(ctx context.Context, login, password string) (*accounts.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*accounts.Session, error)
	Logout(ctx context.Context, refreshToken string) error
	Profile(ctx context.Context, actor models.Actor) (*models.User, error)
	UpdateProfile(ctx context.Context, actor models.Actor, upd accounts.ProfileUpdate) (*models.User, error)
	CreateUser(ctx context.Context, actor models.Actor, in accounts.RegisterInput) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, upd accounts.ProfileUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, actor models.Actor, id string) error
	ListUsers(ctx context.Context, role models.Role) ([]models.User, error)
	ListDoctors(ctx context.Context) ([]models.User, error)
	ListPatients(ctx context.Context, actor models.Actor) ([]models.User, error)
}

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	Accounts AccountService
	Cfg      *config.Config
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc AccountService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{Accounts: svc, Cfg: cfg}
}

// RegisterRequest represents the request body for user registration.
type RegisterRequest struct {
	Username        string `json:"username" binding:"required,min=3,max=150"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`
	FirstName       string `json:"firstName" binding:"max=100"`
	LastName        string `json:"lastName" binding:"max=100"`
	Role            string `json:"role" binding:"omitempty,oneof=PATIENT DOCTOR"`
	DateOfBirth     string `json:"dateOfBirth" binding:"omitempty,datetime=2006-01-02"`
	PhoneNumber     string `json:"phoneNumber" binding:"max=15"`
	Address         string `json:"address"`
}

func (r RegisterRequest) input() accounts.RegisterInput {
	return accounts.RegisterInput{
		Username:        r.Username,
		Email:           r.Email,
		Password:        r.Password,
		PasswordConfirm: r.PasswordConfirm,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		Role:            models.Role(r.Role),
		DateOfBirth:     parseDate(r.DateOfBirth),
		PhoneNumber:     r.PhoneNumber,
		Address:         r.Address,
	}
}

// Register handles user registration.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Accounts.Register(c.Request.Context(), req.input())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "User registered successfully", user.Sanitize())
}

// LoginRequest accepts either a username or an email as the login name.
type LoginRequest struct {
	Username string `json:"username" binding:"required_without=Email"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	User         models.UserSanitized `json:"user"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	login := req.Username
	if login == "" {
		login = req.Email
	}
	session, err := h.Accounts.Login(c.Request.Context(), login, req.Password)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	h.setRefreshCookie(c, session.RefreshToken, session.RefreshExpiresAt)
	utils.Success(c, "Login successful", LoginResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		User:         session.User.Sanitize(),
	})
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshTokenResponse represents the response body for successful token refresh.
type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken rotates the refresh token taken from the cookie or, failing
// that, from the request body.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, ok := h.refreshTokenFrom(c)
	if !ok {
		return
	}

	session, err := h.Accounts.Refresh(c.Request.Context(), token)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	h.setRefreshCookie(c, session.RefreshToken, session.RefreshExpiresAt)
	utils.Success(c, "Access token refreshed successfully", RefreshTokenResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	})
}

// Logout revokes the refresh token and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	token, ok := h.refreshTokenFrom(c)
	if !ok {
		return
	}

	if err := h.Accounts.Logout(c.Request.Context(), token); err != nil {
		utils.RespondError(c, err)
		return
	}

	c.SetCookie(refreshCookieName, "", -1, "/", "", h.secureCookies(), true)
	utils.Success(c, "Logout successful. Refresh token has been invalidated.", nil)
}

// GetProfile handles fetching the currently authenticated user's profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	user, err := h.Accounts.Profile(c.Request.Context(), actor)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Profile fetched successfully", user.Sanitize())
}

// UpdateProfileRequest represents the request body for updating user profile.
// Username and role cannot be changed.
type UpdateProfileRequest struct {
	Email       *string `json:"email" binding:"omitempty,email"`
	FirstName   *string `json:"firstName" binding:"omitempty,max=100"`
	LastName    *string `json:"lastName" binding:"omitempty,max=100"`
	PhoneNumber *string `json:"phoneNumber" binding:"omitempty,max=15"`
	Address     *string `json:"address"`
	DateOfBirth *string `json:"dateOfBirth" binding:"omitempty,datetime=2006-01-02"`
}

func (r UpdateProfileRequest) update() accounts.ProfileUpdate {
	upd := accounts.ProfileUpdate{
		Email:       r.Email,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		PhoneNumber: r.PhoneNumber,
		Address:     r.Address,
	}
	if r.DateOfBirth != nil {
		upd.DateOfBirth = parseDate(*r.DateOfBirth)
	}
	return upd
}

// UpdateProfile handles updating the currently authenticated user's profile.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Accounts.UpdateProfile(c.Request.Context(), actor, req.update())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Profile updated successfully", user.Sanitize())
}

func (h *AuthHandler) refreshTokenFrom(c *gin.Context) (string, bool) {
	if token, err := c.Cookie(refreshCookieName); err == nil && token != "" {
		return token, true
	}
	var req RefreshTokenRequest
	if !utils.BindAndValidate(c, &req) {
		return "", false
	}
	return req.RefreshToken, true
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = h.Cfg.JWTRefreshExpirationHours * 60 * 60
	}
	c.SetCookie(refreshCookieName, token, maxAge, "/", "", h.secureCookies(), true)
}

func (h *AuthHandler) secureCookies() bool {
	return !h.Cfg.IsDevelopment()
}

// parseDate reads a YYYY-MM-DD value that binding already validated.
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
