package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clinic-app-server/internal/accounts"
	"clinic-app-server/internal/apperrors"
	"clinic-app-server/internal/config"
	"clinic-app-server/internal/models"
)

func testAuthHandler(svc *mockAccounts) *AuthHandler {
	return NewAuthHandler(svc, &config.Config{Environment: "development", JWTRefreshExpirationHours: 24})
}

func TestRegister(t *testing.T) {
	svc := new(mockAccounts)
	h := testAuthHandler(svc)
	r := newTestRouter(models.Actor{}, http.MethodPost, "/register", h.Register)

	svc.On("Register", mock.Anything, mock.MatchedBy(func(in accounts.RegisterInput) bool {
		return in.Username == "alice" && in.Role == "" && in.DateOfBirth != nil &&
			in.DateOfBirth.Equal(time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC))
	})).Return(&models.User{BaseModel: models.BaseModel{ID: "u-1"}, Username: "alice", Role: models.RolePatient}, nil).Once()

	w := doJSON(t, r, http.MethodPost, "/register", map[string]string{
		"username":        "alice",
		"email":           "alice@clinic.test",
		"password":        "supersecret",
		"passwordConfirm": "supersecret",
		"dateOfBirth":     "1990-05-01",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, "alice", data["username"])
	assert.NotContains(t, w.Body.String(), "password\":")
	svc.AssertExpectations(t)
}

func TestRegister_Rejections(t *testing.T) {
	svc := new(mockAccounts)
	h := testAuthHandler(svc)
	r := newTestRouter(models.Actor{}, http.MethodPost, "/register", h.Register)

	valid := func() map[string]string {
		return map[string]string{
			"username":        "bob",
			"email":           "bob@clinic.test",
			"password":        "supersecret",
			"passwordConfirm": "supersecret",
		}
	}

	t.Run("admin role", func(t *testing.T) {
		body := valid()
		body["role"] = "ADMIN"
		w := doJSON(t, r, http.MethodPost, "/register", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad email", func(t *testing.T) {
		body := valid()
		body["email"] = "not-an-email"
		w := doJSON(t, r, http.MethodPost, "/register", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate user", func(t *testing.T) {
		svc.On("Register", mock.Anything, mock.Anything).Return(nil, apperrors.ErrAlreadyExists).Once()
		w := doJSON(t, r, http.MethodPost, "/register", valid())
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "already_exists", decode(t, w).Code)
	})

	t.Run("password mismatch", func(t *testing.T) {
		body := valid()
		body["passwordConfirm"] = "different1"
		svc.On("Register", mock.Anything, mock.Anything).Return(nil, apperrors.ErrPasswordMismatch).Once()
		w := doJSON(t, r, http.MethodPost, "/register", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "password_mismatch", decode(t, w).Code)
	})

	svc.AssertExpectations(t)
}

func TestLogin(t *testing.T) {
	svc := new(mockAccounts)
	h := testAuthHandler(svc)
	r := newTestRouter(models.Actor{}, http.MethodPost, "/login", h.Login)

	user := &models.User{BaseModel: models.BaseModel{ID: "u-1"}, Username: "alice", Role: models.RolePatient}
	svc.On("Login", mock.Anything, "alice@clinic.test", "supersecret").Return(&accounts.Session{
		AccessToken:      "access",
		RefreshToken:     "refresh",
		RefreshExpiresAt: time.Now().Add(time.Hour),
		User:             user,
	}, nil).Once()

	w := doJSON(t, r, http.MethodPost, "/login", map[string]string{"email": "alice@clinic.test", "password": "supersecret"})

	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, "access", data["accessToken"])
	assert.Equal(t, "refresh", data["refreshToken"])

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "refresh_token", cookies[0].Name)
	assert.Equal(t, "refresh", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	svc.AssertExpectations(t)
}

func TestLogin_Failures(t *testing.T) {
	svc := new(mockAccounts)
	h := testAuthHandler(svc)
	r := newTestRouter(models.Actor{}, http.MethodPost, "/login", h.Login)

	w := doJSON(t, r, http.MethodPost, "/login", map[string]string{"password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.On("Login", mock.Anything, "alice", "wrong").Return(nil, apperrors.ErrInvalidCredentials).Once()
	w = doJSON(t, r, http.MethodPost, "/login", map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_credentials", decode(t, w).Code)

	svc.On("Login", mock.Anything, "bob", "right").Return(nil, apperrors.ErrAccountDisabled).Once()
	w = doJSON(t, r, http.MethodPost, "/login", map[string]string{"username": "bob", "password": "right"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "account_disabled", decode(t, w).Code)
	svc.AssertExpectations(t)
}

func TestRefreshToken_PrefersCookie(t *testing.T) {
	svc := new(mockAccounts)
	h := testAuthHandler(svc)
	r := newTestRouter(models.Actor{}, http.MethodPost, "/refresh", h.RefreshToken)

	svc.On("Refresh", mock.Anything, "from-cookie").Return(&accounts.Session{
		AccessToken:      "new-access",
		RefreshToken:     "new-refresh",
		RefreshExpiresAt: time.Now().Add(time.Hour),
		User:             &models.User{},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/refresh", strings.NewReader(`{"refreshToken":"from-body"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "from-cookie"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, "new-access", data["accessToken"])
	svc.AssertExpectations(t)
}

func TestRefreshToken_Invalid(t *testing.T) {
	svc := new(mockAccounts)
	h := testAuthHandler(svc)
	r := newTestRouter(models.Actor{}, http.MethodPost, "/refresh", h.RefreshToken)

	w := doJSON(t, r, http.MethodPost, "/refresh", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.On("Refresh", mock.Anything, "stale").Return(nil, apperrors.ErrInvalidToken).Once()
	w = doJSON(t, r, http.MethodPost, "/refresh", map[string]string{"refreshToken": "stale"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	svc.AssertExpectations(t)
}

func TestLogout_ClearsCookie(t *testing.T) {
	svc := new(mockAccounts)
	h := testAuthHandler(svc)
	r := newTestRouter(patientActor, http.MethodPost, "/logout", h.Logout)

	svc.On("Logout", mock.Anything, "refresh").Return(nil).Once()
	w := doJSON(t, r, http.MethodPost, "/logout", map[string]string{"refreshToken": "refresh"})

	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
	svc.AssertExpectations(t)
}

func TestProfile(t *testing.T) {
	svc := new(mockAccounts)
	h := testAuthHandler(svc)

	r := newTestRouter(models.Actor{}, http.MethodGet, "/profile", h.GetProfile)
	w := doJSON(t, r, http.MethodGet, "/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	svc.On("Profile", mock.Anything, patientActor).
		Return(&models.User{BaseModel: models.BaseModel{ID: patientActor.ID}, Username: "pat", FirstName: "Pat", LastName: "Doe"}, nil).Once()
	r = newTestRouter(patientActor, http.MethodGet, "/profile", h.GetProfile)
	w = doJSON(t, r, http.MethodGet, "/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, "Pat Doe", data["fullName"])
	svc.AssertExpectations(t)
}

func TestUpdateProfile(t *testing.T) {
	svc := new(mockAccounts)
	h := testAuthHandler(svc)
	r := newTestRouter(patientActor, http.MethodPut, "/profile", h.UpdateProfile)

	svc.On("UpdateProfile", mock.Anything, patientActor, mock.MatchedBy(func(upd accounts.ProfileUpdate) bool {
		return upd.FirstName != nil && *upd.FirstName == "Patty" && upd.LastName == nil && upd.IsActive == nil
	})).Return(&models.User{FirstName: "Patty"}, nil).Once()

	w := doJSON(t, r, http.MethodPut, "/profile", map[string]interface{}{"firstName": "Patty", "isActive": false})
	require.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}
