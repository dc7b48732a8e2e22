package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/employee"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/punch"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/user"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/biotime"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/sse"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/repository/memory"
	absenceService "github.com/cmlabs-hris/biotime-attendance-go/internal/service/absence"
	attendanceService "github.com/cmlabs-hris/biotime-attendance-go/internal/service/attendance"
	authService "github.com/cmlabs-hris/biotime-attendance-go/internal/service/auth"
	employeeService "github.com/cmlabs-hris/biotime-attendance-go/internal/service/employee"
	punchService "github.com/cmlabs-hris/biotime-attendance-go/internal/service/punch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	handlerTestSecret  = "test-secret-key-for-jwt"
	handlerTestWebhook = "webhook-secret"
)

var doha = time.FixedZone("AST", 3*60*60)

func at(hour, minute int) time.Time {
	return time.Date(2026, 10, 18, hour, minute, 0, 0, doha)
}

type fakeDevice struct {
	punches   []punch.Punch
	employees []employee.Employee
	err       error
}

func (f *fakeDevice) FetchAllPunches(_ context.Context, _ punch.Window, fn func([]punch.Punch) error) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return 1, fn(f.punches)
}

func (f *fakeDevice) FetchEmployees(_ context.Context, fn func([]employee.Employee) error) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return 1, fn(f.employees)
}

type testServer struct {
	store   *memory.Store
	device  *fakeDevice
	hub     *sse.Hub
	jwt     jwt.Service
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.NewStore()
	device := &fakeDevice{}
	clock := func() time.Time { return at(12, 0) }
	hub := sse.NewHub()
	jwtSvc := jwt.NewJWTService(handlerTestSecret, "1h")

	att := attendanceService.NewAttendanceService(store.Transactor(), attendanceService.DefaultRules(doha), clock,
		store.Punches(), store.Days(), store.Absences())
	punches := punchService.NewPunchService(device, store.Punches(), att, hub, doha, clock)
	reconciler := absenceService.NewReconciler(store.Absences(), store.Days(), store.Employees(), hub, doha, clock)
	employees := employeeService.NewEmployeeService(device, store.Employees())
	auth := authService.NewAuthService(store.Users(), jwtSvc)

	router := NewRouter(RouterOptions{
		Env:           "test",
		Version:       "test",
		FrontendURL:   "http://localhost:3000",
		WebhookSecret: handlerTestWebhook,
	}, jwtSvc, Handlers{
		Auth:       NewAuthHandler(jwtSvc, auth),
		Punch:      NewPunchHandler(punches, doha),
		Attendance: NewAttendanceHandler(att),
		Absence:    NewAbsenceHandler(reconciler),
		Employee:   NewEmployeeHandler(employees),
		Event:      NewEventHandler(hub, jwtSvc),
	})

	return &testServer{store: store, device: device, hub: hub, jwt: jwtSvc, handler: router}
}

func (s *testServer) createUser(t *testing.T, email, password string, isAdmin bool) user.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := s.store.Users().Create(context.Background(), user.User{
		Email:        email,
		FullName:     "Test User",
		PasswordHash: string(hash),
		IsAdmin:      isAdmin,
	})
	require.NoError(t, err)
	return u
}

func (s *testServer) token(t *testing.T, isAdmin bool) string {
	t.Helper()
	token, _, err := s.jwt.GenerateAccessToken("user-1", "user@example.com", isAdmin)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(method, path, token string, body []byte, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "viewer@example.com", "password123", false)

	body, _ := json.Marshal(map[string]string{"email": "viewer@example.com", "password": "password123"})
	rec := s.do(http.MethodPost, "/api/v1/auth/login", "", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data struct {
		AccessToken string `json:"access_token"`
		IsAdmin     bool   `json:"is_admin"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	assert.NotEmpty(t, data.AccessToken)
	assert.False(t, data.IsAdmin)

	// the issued token opens the read endpoints
	rec = s.do(http.MethodGet, "/api/v1/punches", data.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_Failures(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "viewer@example.com", "password123", false)

	body, _ := json.Marshal(map[string]string{"email": "viewer@example.com", "password": "nope"})
	rec := s.do(http.MethodPost, "/api/v1/auth/login", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/auth/login", "", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, _ = json.Marshal(map[string]string{"email": "not-an-email"})
	rec = s.do(http.MethodPost, "/api/v1/auth/login", "", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Details, "email")
	assert.Contains(t, env.Error.Details, "password")
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/v1/attendance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/attendance", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// SSE tokens only open the event stream
	sseToken, _, err := s.jwt.GenerateSSEToken("user-1")
	require.NoError(t, err)
	rec = s.do(http.MethodGet, "/api/v1/attendance", sseToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminOnly(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/punches/sync", s.token(t, false), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/absences/reconcile", s.token(t, false), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSyncThenListAttendance(t *testing.T) {
	s := newTestServer(t)
	s.device.punches = []punch.Punch{
		{ID: 1, EmployeeCode: "1001", FirstName: "Amal", PunchTime: at(8, 45)},
		{ID: 2, EmployeeCode: "1001", FirstName: "Amal", PunchTime: at(17, 10)},
	}

	rec := s.do(http.MethodPost, "/api/v1/punches/sync", s.token(t, true), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result punch.SyncResult
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &result))
	assert.Equal(t, 2, result.Saved)
	assert.Equal(t, 1, result.DaysRecomputed)

	rec = s.do(http.MethodGet, "/api/v1/attendance?date=2026-10-18", s.token(t, false), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var list struct {
		Days []struct {
			EmployeeCode string  `json:"emp_code"`
			TotalHours   float64 `json:"totalHours"`
			CheckIn      *struct {
				Status string `json:"status"`
			} `json:"checkIn"`
		} `json:"days"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &list))
	require.Len(t, list.Days, 1)
	assert.Equal(t, "1001", list.Days[0].EmployeeCode)
	assert.Equal(t, 8.42, list.Days[0].TotalHours)
	require.NotNil(t, list.Days[0].CheckIn)
	assert.Equal(t, "Late", list.Days[0].CheckIn.Status)
}

func TestSync_DeviceErrorIsBadGateway(t *testing.T) {
	s := newTestServer(t)
	s.device.err = &biotime.ExternalServiceError{StatusCode: 500, Path: "/iclock/api/transactions/", Message: "internal stack trace"}

	rec := s.do(http.MethodPost, "/api/v1/punches/sync", s.token(t, true), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "stack trace")
}

func TestSync_InvalidDate(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/punches/sync?date=18-10-2026", s.token(t, true), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestWebhook(t *testing.T) {
	s := newTestServer(t)
	payload := []byte(`{"id": 77, "emp_code": 1002, "first_name": "Bilal", "punch_time": "2026-10-18 07:55:00", "punch_state_display": "Check In"}`)

	rec := s.do(http.MethodPost, "/api/v1/webhooks/punches", "", payload)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/webhooks/punches", "", payload, middleware.WebhookSecretHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/webhooks/punches", "", payload, middleware.WebhookSecretHeader, handlerTestWebhook)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	day, ok := s.store.Day("1002", civil.Date{Year: 2026, Month: time.October, Day: 18})
	require.True(t, ok)
	require.NotNil(t, day.CheckIn)
	assert.Equal(t, at(7, 55).Unix(), day.CheckIn.Time.Unix())

	rec = s.do(http.MethodPost, "/api/v1/webhooks/punches", "", []byte("nonsense"), middleware.WebhookSecretHeader, handlerTestWebhook)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_ArrayWithMalformedRecord(t *testing.T) {
	s := newTestServer(t)
	payload := []byte(`[
		{"id": 1, "emp_code": "1001", "punch_time": "2026-10-18 08:00:00"},
		{"id": 2, "emp_code": "", "punch_time": "not a time"}
	]`)

	rec := s.do(http.MethodPost, "/api/v1/webhooks/punches", "", payload, middleware.WebhookSecretHeader, handlerTestWebhook)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result punch.SyncResult
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &result))
	assert.Equal(t, 1, result.Saved)
	assert.Equal(t, 1, result.Skipped)
}

func TestReconcile(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.store.Employees().UpsertFromDevice(ctx, employee.Employee{EmployeeCode: "1001", DisplayName: "Amal"}))
	require.NoError(t, s.store.Employees().UpsertFromDevice(ctx, employee.Employee{EmployeeCode: "1002", DisplayName: "Bilal"}))

	rec := s.do(http.MethodPost, "/api/v1/absences/reconcile", s.token(t, true), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, s.store.AbsenceCount())

	rec = s.do(http.MethodGet, "/api/v1/absences?start_date=2026-10-18&end_date=2026-10-18", s.token(t, false), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		TotalCount int64 `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &list))
	assert.EqualValues(t, 2, list.TotalCount)

	rec = s.do(http.MethodPost, "/api/v1/absences/reconcile?date=2026-10-19", s.token(t, true), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/absences/reconcile?start_date=2026-10-18", s.token(t, true), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestEmployeeExclusion(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.store.Employees().UpsertFromDevice(context.Background(), employee.Employee{EmployeeCode: "1001", DisplayName: "Amal"}))

	rec := s.do(http.MethodPatch, "/api/v1/employees/9999/exclusion", s.token(t, true), []byte(`{"excluded": true}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPatch, "/api/v1/employees/1001/exclusion", s.token(t, true), []byte(`{}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(http.MethodPatch, "/api/v1/employees/1001/exclusion", s.token(t, true), []byte(`{"excluded": true}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/employees?excluded=true", s.token(t, false), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"1001"`)
}

func TestEmployeeDirectorySync(t *testing.T) {
	s := newTestServer(t)
	s.device.employees = []employee.Employee{
		{EmployeeCode: "1001", DisplayName: "Amal"},
		{EmployeeCode: "bad code!", DisplayName: "Nobody"},
	}

	rec := s.do(http.MethodPost, "/api/v1/employees/sync", s.token(t, true), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result employee.SyncResult
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &result))
	assert.Equal(t, 1, result.Saved)
	assert.Equal(t, 1, result.Skipped)
}

func TestEventStream_RequiresSSEToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/v1/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/events?token="+s.token(t, false), "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEventStream_DeliversEvents(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/auth/sse-token", s.token(t, false), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tok struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &tok))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?token="+tok.Token, nil).WithContext(ctx)
	stream := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		s.handler.ServeHTTP(stream, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.hub.TotalSubscribers() == 1 }, time.Second, 5*time.Millisecond)

	s.device.punches = []punch.Punch{{ID: 5, EmployeeCode: "1001", PunchTime: at(8, 0)}}
	rec = s.do(http.MethodPost, "/api/v1/punches/sync", s.token(t, true), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	body := stream.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: connected"))
	assert.Contains(t, body, "event: "+sse.EventPunchesSynced)
	assert.Equal(t, 0, s.hub.TotalSubscribers())
}
