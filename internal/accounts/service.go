// Package accounts covers registration, login with rotating refresh tokens,
// profiles and the admin user directory.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic-app-server/internal/apperrors"
	"clinic-app-server/internal/config"
	"clinic-app-server/internal/logger"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/utils"
)

const minPasswordLength = 8

// RegisterInput is a new account. Role defaults to PATIENT.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	PasswordConfirm string
	FirstName       string
	LastName        string
	Role            models.Role
	DateOfBirth     *time.Time
	PhoneNumber     string
	Address         string
}

// ProfileUpdate lists editable account fields. Nil fields are left untouched.
// Username and role are fixed once the account exists.
type ProfileUpdate struct {
	Email       *string
	FirstName   *string
	LastName    *string
	PhoneNumber *string
	Address     *string
	DateOfBirth *time.Time
	IsActive    *bool
}

// Session is the result of a login or refresh.
type Session struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             *models.User
}

type Service struct {
	repo Repository
	cfg  *config.Config
	log  *logger.Logger
	now  func() time.Time
}

func NewService(repo Repository, cfg *config.Config, log *logger.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, log: log, now: time.Now}
}

// Register creates a self-service account. Admin accounts are only created by admins.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if in.Password != in.PasswordConfirm {
		return nil, apperrors.ErrPasswordMismatch
	}
	if in.Role == "" {
		in.Role = models.RolePatient
	}
	if role, ok := models.ParseRole(string(in.Role)); ok && role.IsAdmin() {
		return nil, apperrors.Validation(apperrors.CodeBadRole, "admin accounts cannot be self-registered")
	}
	return s.create(ctx, in)
}

// CreateUser is the admin path for creating accounts of any role.
func (s *Service) CreateUser(ctx context.Context, actor models.Actor, in RegisterInput) (*models.User, error) {
	if !actor.Role.IsAdmin() {
		return nil, apperrors.ErrRoleMismatch
	}
	if in.PasswordConfirm != "" && in.Password != in.PasswordConfirm {
		return nil, apperrors.ErrPasswordMismatch
	}
	return s.create(ctx, in)
}

func (s *Service) create(ctx context.Context, in RegisterInput) (*models.User, error) {
	role, ok := models.ParseRole(string(in.Role))
	if !ok {
		return nil, apperrors.Validation(apperrors.CodeBadRole, "role must be one of PATIENT, DOCTOR, ADMIN")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperrors.Validation(apperrors.CodeInvalidInput, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	user := &models.User{
		Username:    strings.TrimSpace(in.Username),
		Email:       strings.ToLower(strings.TrimSpace(in.Email)),
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Role:        role,
		DateOfBirth: in.DateOfBirth,
		PhoneNumber: in.PhoneNumber,
		Address:     in.Address,
		IsActive:    true,
	}
	if user.Username == "" || user.Email == "" {
		return nil, apperrors.Validation(apperrors.CodeInvalidInput, "username and email are required")
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			return nil, apperrors.Wrap(apperrors.ErrAlreadyExists, err)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.WithContext(ctx).WithField("user_id", user.ID).WithField("role", user.Role).Info("user registered")
	return user, nil
}

// Login authenticates by username or email and opens a session.
func (s *Service) Login(ctx context.Context, login, password string) (*Session, error) {
	user, err := s.repo.GetUserByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.CheckPassword(password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token: the presented one is revoked and a new pair issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := utils.ValidateToken(refreshToken, s.cfg.JWTRefreshSecret)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidToken, err)
	}

	stored, err := s.repo.FindActiveRefreshToken(ctx, refreshToken, s.now())
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	if stored.UserID != claims.UserID {
		return nil, apperrors.ErrInvalidToken
	}

	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}

	if err := s.repo.RevokeRefreshToken(ctx, stored.ID, s.now()); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	return s.issueSession(ctx, user)
}

// Logout revokes a refresh token. Unknown or already revoked tokens are not an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	stored, err := s.repo.FindActiveRefreshToken(ctx, refreshToken, s.now())
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil
		}
		return fmt.Errorf("load refresh token: %w", err)
	}
	if err := s.repo.RevokeRefreshToken(ctx, stored.ID, s.now()); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// Profile returns the actor's own account.
func (s *Service) Profile(ctx context.Context, actor models.Actor) (*models.User, error) {
	return s.GetUser(ctx, actor.ID)
}

// UpdateProfile edits the actor's own account. Users cannot deactivate themselves.
func (s *Service) UpdateProfile(ctx context.Context, actor models.Actor, upd ProfileUpdate) (*models.User, error) {
	upd.IsActive = nil
	return s.UpdateUser(ctx, actor.ID, upd)
}

// GetUser loads an account by id.
func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperrors.NotFound("user")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// UpdateUser applies upd to the account with the given id.
func (s *Service) UpdateUser(ctx context.Context, id string, upd ProfileUpdate) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*upd.Email))
		if email == "" {
			return nil, apperrors.Validation(apperrors.CodeInvalidInput, "email cannot be empty")
		}
		user.Email = email
	}
	if upd.FirstName != nil {
		user.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		user.LastName = *upd.LastName
	}
	if upd.PhoneNumber != nil {
		user.PhoneNumber = *upd.PhoneNumber
	}
	if upd.Address != nil {
		user.Address = *upd.Address
	}
	if upd.DateOfBirth != nil {
		user.DateOfBirth = upd.DateOfBirth
	}
	if upd.IsActive != nil {
		user.IsActive = *upd.IsActive
	}

	if err := s.repo.SaveUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			return nil, apperrors.Wrap(apperrors.ErrAlreadyExists, err)
		}
		return nil, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// DeleteUser removes an account together with its refresh tokens. Accounts that
// still own appointments or EMR rows are kept; deactivate them instead.
func (s *Service) DeleteUser(ctx context.Context, actor models.Actor, id string) error {
	if actor.ID == id {
		return apperrors.Validation(apperrors.CodeInvalidInput, "admins cannot delete their own account")
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return apperrors.NotFound("user")
		}
		if errors.Is(err, ErrUserReferenced) {
			return apperrors.Wrap(apperrors.ErrUserInUse, err)
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.WithContext(ctx).WithField("user_id", id).WithField("deleted_by", actor.ID).Info("user deleted")
	return nil
}

// ListUsers returns all accounts, optionally of one role.
func (s *Service) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	if role != "" && !role.Valid() {
		return nil, apperrors.Validation(apperrors.CodeBadRole, "role must be one of PATIENT, DOCTOR, ADMIN")
	}
	users, err := s.repo.ListUsers(ctx, role, false)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ListDoctors returns active doctors for booking.
func (s *Service) ListDoctors(ctx context.Context) ([]models.User, error) {
	doctors, err := s.repo.ListUsers(ctx, models.RoleDoctor, true)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

// ListPatients returns active patients. Staff only.
func (s *Service) ListPatients(ctx context.Context, actor models.Actor) ([]models.User, error) {
	if !actor.Role.IsStaff() {
		return nil, apperrors.ErrRoleMismatch
	}
	patients, err := s.repo.ListUsers(ctx, models.RolePatient, true)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return patients, nil
}

func (s *Service) issueSession(ctx context.Context, user *models.User) (*Session, error) {
	accessToken, refreshToken, err := utils.GenerateTokens(user, s.cfg)
	if err != nil {
		return nil, err
	}

	expiresAt := utils.RefreshExpiry(s.cfg, s.now())
	stored := &models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: expiresAt,
	}
	if err := s.repo.CreateRefreshToken(ctx, stored); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &Session{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: expiresAt,
		User:             user,
	}, nil
}
