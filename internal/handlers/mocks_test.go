package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clinic-app-server/internal/accounts"
	"clinic-app-server/internal/emr"
	"clinic-app-server/internal/middleware"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/scheduling"
	"clinic-app-server/internal/utils"
)

type mockAccounts struct{ mock.Mock }

func (m *mockAccounts) Register(ctx context.Context, in accounts.RegisterInput) (*models.User, error) {
	args := m.Called(ctx, in)
	return userArg(args, 0), args.Error(1)
}

func (m *mockAccounts) Login(ctx context.Context, login, password string) (*accounts.Session, error) {
	args := m.Called(ctx, login, password)
	s, _ := args.Get(0).(*accounts.Session)
	return s, args.Error(1)
}

func (m *mockAccounts) Refresh(ctx context.Context, token string) (*accounts.Session, error) {
	args := m.Called(ctx, token)
	s, _ := args.Get(0).(*accounts.Session)
	return s, args.Error(1)
}

func (m *mockAccounts) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockAccounts) Profile(ctx context.Context, actor models.Actor) (*models.User, error) {
	args := m.Called(ctx, actor)
	return userArg(args, 0), args.Error(1)
}

func (m *mockAccounts) UpdateProfile(ctx context.Context, actor models.Actor, upd accounts.ProfileUpdate) (*models.User, error) {
	args := m.Called(ctx, actor, upd)
	return userArg(args, 0), args.Error(1)
}

func (m *mockAccounts) CreateUser(ctx context.Context, actor models.Actor, in accounts.RegisterInput) (*models.User, error) {
	args := m.Called(ctx, actor, in)
	return userArg(args, 0), args.Error(1)
}

func (m *mockAccounts) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	return userArg(args, 0), args.Error(1)
}

func (m *mockAccounts) UpdateUser(ctx context.Context, id string, upd accounts.ProfileUpdate) (*models.User, error) {
	args := m.Called(ctx, id, upd)
	return userArg(args, 0), args.Error(1)
}

func (m *mockAccounts) DeleteUser(ctx context.Context, actor models.Actor, id string) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *mockAccounts) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	args := m.Called(ctx, role)
	return usersArg(args, 0), args.Error(1)
}

func (m *mockAccounts) ListDoctors(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	return usersArg(args, 0), args.Error(1)
}

func (m *mockAccounts) ListPatients(ctx context.Context, actor models.Actor) ([]models.User, error) {
	args := m.Called(ctx, actor)
	return usersArg(args, 0), args.Error(1)
}

func userArg(args mock.Arguments, i int) *models.User {
	u, _ := args.Get(i).(*models.User)
	return u
}

func usersArg(args mock.Arguments, i int) []models.User {
	u, _ := args.Get(i).([]models.User)
	return u
}

type mockAppointments struct{ mock.Mock }

func (m *mockAppointments) Create(ctx context.Context, actor models.Actor, in scheduling.CreateInput) (*models.Appointment, error) {
	args := m.Called(ctx, actor, in)
	return apptArg(args), args.Error(1)
}

func (m *mockAppointments) Reschedule(ctx context.Context, actor models.Actor, id string, at time.Time) (*models.Appointment, error) {
	args := m.Called(ctx, actor, id, at)
	return apptArg(args), args.Error(1)
}

func (m *mockAppointments) Cancel(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	args := m.Called(ctx, actor, id)
	return apptArg(args), args.Error(1)
}

func (m *mockAppointments) Complete(ctx context.Context, actor models.Actor, id string, notes *string) (*models.Appointment, error) {
	args := m.Called(ctx, actor, id, notes)
	return apptArg(args), args.Error(1)
}

func (m *mockAppointments) UpdateDetails(ctx context.Context, actor models.Actor, id string, in scheduling.UpdateInput) (*models.Appointment, error) {
	args := m.Called(ctx, actor, id, in)
	return apptArg(args), args.Error(1)
}

func (m *mockAppointments) Get(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	args := m.Called(ctx, actor, id)
	return apptArg(args), args.Error(1)
}

func (m *mockAppointments) List(ctx context.Context, actor models.Actor, filter scheduling.ListFilter) ([]models.Appointment, error) {
	args := m.Called(ctx, actor, filter)
	list, _ := args.Get(0).([]models.Appointment)
	return list, args.Error(1)
}

func apptArg(args mock.Arguments) *models.Appointment {
	a, _ := args.Get(0).(*models.Appointment)
	return a
}

type mockEMR struct{ mock.Mock }

func (m *mockEMR) RequestAccess(ctx context.Context, actor models.Actor, reason string) (*models.EMRRequest, error) {
	args := m.Called(ctx, actor, reason)
	r, _ := args.Get(0).(*models.EMRRequest)
	return r, args.Error(1)
}

func (m *mockEMR) Review(ctx context.Context, actor models.Actor, id string, decision models.EMRRequestStatus, notes *string) (*models.EMRRequest, error) {
	args := m.Called(ctx, actor, id, decision, notes)
	r, _ := args.Get(0).(*models.EMRRequest)
	return r, args.Error(1)
}

func (m *mockEMR) GetRequest(ctx context.Context, actor models.Actor, id string) (*models.EMRRequest, error) {
	args := m.Called(ctx, actor, id)
	r, _ := args.Get(0).(*models.EMRRequest)
	return r, args.Error(1)
}

func (m *mockEMR) ListRequests(ctx context.Context, actor models.Actor, filter emr.RequestFilter) ([]models.EMRRequest, error) {
	args := m.Called(ctx, actor, filter)
	r, _ := args.Get(0).([]models.EMRRequest)
	return r, args.Error(1)
}

func (m *mockEMR) UploadFile(ctx context.Context, actor models.Actor, in emr.UploadInput) (*models.EMRFile, error) {
	args := m.Called(ctx, actor, in)
	f, _ := args.Get(0).(*models.EMRFile)
	return f, args.Error(1)
}

func (m *mockEMR) ListVisibleFiles(ctx context.Context, actor models.Actor, patientID string) ([]models.EMRFile, error) {
	args := m.Called(ctx, actor, patientID)
	f, _ := args.Get(0).([]models.EMRFile)
	return f, args.Error(1)
}

func (m *mockEMR) ListFiles(ctx context.Context, actor models.Actor, patientID string) ([]models.EMRFile, error) {
	args := m.Called(ctx, actor, patientID)
	f, _ := args.Get(0).([]models.EMRFile)
	return f, args.Error(1)
}

func (m *mockEMR) GetFile(ctx context.Context, actor models.Actor, id string) (*models.EMRFile, error) {
	args := m.Called(ctx, actor, id)
	f, _ := args.Get(0).(*models.EMRFile)
	return f, args.Error(1)
}

func (m *mockEMR) OpenFile(ctx context.Context, actor models.Actor, id string) (*models.EMRFile, *models.EMRBlob, error) {
	args := m.Called(ctx, actor, id)
	f, _ := args.Get(0).(*models.EMRFile)
	b, _ := args.Get(1).(*models.EMRBlob)
	return f, b, args.Error(2)
}

var (
	patientActor = models.Actor{ID: "patient-1", Role: models.RolePatient}
	doctorActor  = models.Actor{ID: "doctor-1", Role: models.RoleDoctor}
	adminActor   = models.Actor{ID: "admin-1", Role: models.RoleAdmin}
)

// newTestRouter registers h at method/path behind a stub that authenticates
// as actor. A zero actor leaves the request unauthenticated.
func newTestRouter(actor models.Actor, method, path string, h gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Handle(method, path, func(c *gin.Context) {
		if actor.ID != "" {
			middleware.SetActor(c, actor)
		}
		c.Next()
	}, h)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) utils.ResponseData {
	t.Helper()
	var resp utils.ResponseData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
