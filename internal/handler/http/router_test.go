package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/staff"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/memory"
	attendanceService "github.com/cmlabs-hris/attendance-engine/internal/service/attendance"
	notificationService "github.com/cmlabs-hris/attendance-engine/internal/service/notification"
	overtimeService "github.com/cmlabs-hris/attendance-engine/internal/service/overtime"
	payrollService "github.com/cmlabs-hris/attendance-engine/internal/service/payroll"
	shiftService "github.com/cmlabs-hris/attendance-engine/internal/service/shift"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	staffID = "0191d9a0-0000-7000-8000-000000000010"
	adminID = "0191d9a0-0000-7000-8000-000000000020"
)

type apiFixture struct {
	router     *chi.Mux
	clock      *clock.Mock
	staffToken string
	adminToken string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	mock := clock.NewMock()
	// Monday 09:05 in Jakarta.
	mock.Set(time.Date(2026, time.March, 2, 9, 5, 0, 0, jakarta))

	store := memory.NewStore()
	for _, id := range []string{staffID, adminID} {
		store.PutStaff(staff.Staff{
			ID:               id,
			BranchID:         "branch-1",
			FullName:         "Staff " + id[len(id)-2:],
			Status:           staff.StatusActive,
			JoinDate:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			PerDaySalaryRate: decimal.NewFromInt(480000),
		})
	}
	office, err := store.Shifts().Create(ctx, shift.Shift{
		BranchID:            "branch-1",
		Name:                "Office",
		Timezone:            "Asia/Jakarta",
		WorkDays:            []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		StartTime:           shift.MustClockTime("09:00"),
		EndTime:             shift.MustClockTime("17:00"),
		GracePeriodMinutes:  10,
		LateAfterMinutes:    10,
		HalfDayAfterMinutes: 240,
		OTEnabled:           true,
		MinOTMinutes:        30,
		RoundOTTo:           15,
	})
	require.NoError(t, err)
	_, err = store.Assignments().Supersede(ctx, shift.Assignment{
		StaffID:   staffID,
		ShiftID:   office.ID,
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	resolver := shift.NewResolver(store.Shifts(), store.OffDates(), store.Assignments())
	notifier := notificationService.NewNotificationService(store.NotificationRepo(), nil, notificationService.Config{})
	t.Cleanup(notifier.Stop)

	handlers := Handlers{
		Attendance: NewAttendanceHandler(attendanceService.NewAttendanceService(
			mock, resolver, store.Staff(), store.Leave(), store.Events(), store.Days())),
		Overtime: NewOvertimeHandler(overtimeService.NewOvertimeService(
			mock, overtimeService.Config{}, resolver, store.Staff(), store.Overtime(), store.Days(), store.Payroll(), notifier)),
		Payroll: NewPayrollHandler(payrollService.NewPayrollService(
			mock, store.Payroll(), store.Staff(), store.Overtime(), store.Days(), notifier)),
		Shift: NewShiftHandler(shiftService.NewShiftService(
			store.Shifts(), store.OffDates(), store.Assignments(), store.Staff())),
		Notification: NewNotificationHandler(notifier),
	}

	jwtService := jwt.NewJWTService(mock, "test-secret", time.Hour)
	staffToken, _, err := jwtService.GenerateAccessToken(jwt.Claims{StaffID: staffID, Role: jwt.RoleStaff})
	require.NoError(t, err)
	adminToken, _, err := jwtService.GenerateAccessToken(jwt.Claims{StaffID: adminID, Role: jwt.RoleAdmin})
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		AppName:  "attendance-engine-test",
		Env:      "test",
		LogLevel: slog.LevelError,
	}, jwtService, handlers)

	return &apiFixture{router: router, clock: mock, staffToken: staffToken, adminToken: adminToken}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var resp response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func TestRouter_CheckIn_CreatedThenDuplicate(t *testing.T) {
	f := newAPIFixture(t)

	rec, resp := f.do(t, http.MethodPost, "/api/v1/attendance/check-in", f.staffToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, resp.Success)
	day := resp.Data.(map[string]any)
	assert.Equal(t, "2026-03-02", day["date"])
	assert.Equal(t, "present", day["status"])
	assert.Equal(t, staffID, day["staff_id"])

	rec, resp = f.do(t, http.MethodPost, "/api/v1/attendance/check-in", f.staffToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "DUPLICATE_CHECK_IN", resp.Error.Code)
}

func TestRouter_CheckIn_StaffCannotActForOthers(t *testing.T) {
	f := newAPIFixture(t)

	rec, resp := f.do(t, http.MethodPost, "/api/v1/attendance/check-in", f.staffToken, map[string]any{
		"staff_id": adminID,
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, staffID, resp.Data.(map[string]any)["staff_id"])
}

func TestRouter_RequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	rec, resp := f.do(t, http.MethodGet, "/api/v1/attendance/today", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, resp.Success)
}

func TestRouter_ExpiredTokenRejected(t *testing.T) {
	f := newAPIFixture(t)
	f.clock.Add(2 * time.Hour)

	rec, _ := f.do(t, http.MethodGet, "/api/v1/attendance/today", f.staffToken, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_AdminRoutesForbiddenForStaff(t *testing.T) {
	f := newAPIFixture(t)

	rec, resp := f.do(t, http.MethodGet, "/api/v1/payroll/preview?month=2026-03", f.staffToken, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "FORBIDDEN", resp.Error.Code)
}

func TestRouter_Preview_InvalidMonth(t *testing.T) {
	f := newAPIFixture(t)

	rec, resp := f.do(t, http.MethodGet, "/api/v1/payroll/preview?month=2026-13", f.adminToken, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Details, "month")
}

func TestRouter_BulkPayment_ReportsEachItem(t *testing.T) {
	f := newAPIFixture(t)

	rec, resp := f.do(t, http.MethodPost, "/api/v1/payroll/payments/bulk", f.adminToken, map[string]any{
		"month": "2026-03",
		"payments": []map[string]any{
			{"staff_id": staffID, "amount": "250000"},
			{"staff_id": "missing-staff", "amount": "100000"},
			{"staff_id": adminID, "amount": "0"},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := resp.Data.(map[string]any)
	assert.EqualValues(t, 1, data["succeeded"])
	assert.EqualValues(t, 2, data["failed"])
}

func TestRouter_LockedMonthRejectsPayment(t *testing.T) {
	f := newAPIFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/api/v1/payroll/locks", f.adminToken, map[string]any{"month": "2026-02"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, resp := f.do(t, http.MethodPost, "/api/v1/payroll/payments", f.adminToken, map[string]any{
		"staff_id": staffID,
		"month":    "2026-02",
		"amount":   "100000",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "MONTH_LOCKED", resp.Error.Code)

	rec, resp = f.do(t, http.MethodPost, "/api/v1/payroll/locks", f.adminToken, map[string]any{"month": "2026-02"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "MONTH_ALREADY_LOCKED", resp.Error.Code)
}

func TestRouter_AdminGetsDay(t *testing.T) {
	f := newAPIFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/api/v1/attendance/check-in", f.staffToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := f.do(t, http.MethodGet, "/api/v1/attendance/"+staffID+"/2026-03-02", f.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "present", resp.Data.(map[string]any)["status"])

	rec, resp = f.do(t, http.MethodGet, "/api/v1/attendance/"+staffID+"/2026-03-03", f.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ATTENDANCE_DAY_NOT_FOUND", resp.Error.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	f := newAPIFixture(t)

	rec, resp := f.do(t, http.MethodGet, "/api/v2/attendance", "", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestRouter_CheckIn_AdminSourceReservedForAdmins(t *testing.T) {
	f := newAPIFixture(t)

	rec, resp := f.do(t, http.MethodPost, "/api/v1/attendance/check-in", f.staffToken, map[string]any{
		"source": "admin",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "FORBIDDEN", resp.Error.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/attendance/check-in", f.adminToken, map[string]any{
		"staff_id": staffID,
		"source":   "admin",
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}
