package http

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
	"github.com/redis/go-redis/v9"
)

// RouterConfig carries the process-level settings the router needs.
type RouterConfig struct {
	AppName        string
	Version        string
	Env            string
	AllowedOrigins []string
	LogLevel       slog.Level

	// Redis enables Idempotency-Key handling on payment endpoints when set.
	Redis          redis.Cmdable
	IdempotencyTTL time.Duration
}

type Handlers struct {
	Attendance   AttendanceHandler
	Overtime     OvertimeHandler
	Payroll      PayrollHandler
	Shift        ShiftHandler
	Notification NotificationHandler
}

func NewRouter(cfg RouterConfig, JWTService jwt.Service, h Handlers) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(cfg.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", cfg.AppName),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", middleware.IdempotencyKeyHeader},
		ExposedHeaders:   []string{"Link", middleware.IdempotentReplayedHeader},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  cfg.LogLevel,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, "Route not found")
	})

	idempotent := func(next http.Handler) http.Handler { return next }
	if cfg.Redis != nil {
		idempotent = middleware.Idempotency(cfg.Redis, cfg.IdempotencyTTL)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired)

			r.Route("/attendance", func(r chi.Router) {
				r.Post("/check-in", h.Attendance.CheckIn)
				r.Post("/check-out", h.Attendance.CheckOut)
				r.Get("/today", h.Attendance.Today)
				r.Get("/my", h.Attendance.GetMyAttendance)

				// Admin only
				r.Group(func(r chi.Router) {
					r.Use(middleware.AdminOnly)
					r.Get("/", h.Attendance.List)
					r.Route("/{staffID}/{date}", func(r chi.Router) {
						r.Get("/", h.Attendance.Get)
						r.Put("/", h.Attendance.Override)
						r.Post("/reopen", h.Attendance.Reopen)
						r.Post("/leave", h.Attendance.ApplyLeave)
					})
				})
			})

			r.Route("/overtime", func(r chi.Router) {
				r.Post("/start", h.Overtime.Start)
				r.Post("/stop", h.Overtime.Stop)
				r.Get("/current", h.Overtime.Current)
				r.Get("/my", h.Overtime.GetMyOvertime)

				// Admin only
				r.Group(func(r chi.Router) {
					r.Use(middleware.AdminOnly)
					r.Get("/", h.Overtime.List)
					r.Post("/{id}/approve", h.Overtime.Approve)
					r.Post("/{id}/reject", h.Overtime.Reject)
				})
			})

			r.Route("/payroll", func(r chi.Router) {
				r.Get("/my/{month}", h.Payroll.MyPaymentHistory)

				// Admin only
				r.Group(func(r chi.Router) {
					r.Use(middleware.AdminOnly)
					r.Get("/preview", h.Payroll.Preview)
					r.Get("/payments", h.Payroll.ListPayments)
					r.With(idempotent).Post("/payments", h.Payroll.ProcessPayment)
					r.With(idempotent).Post("/payments/bulk", h.Payroll.BulkProcessPayment)
					r.Get("/payments/{staffID}/{month}", h.Payroll.PaymentHistory)
					r.Post("/locks", h.Payroll.LockMonth)
					r.Get("/locks/{month}", h.Payroll.GetLock)
					r.Post("/grace", h.Payroll.GraceAttendance)
				})
			})

			r.Route("/shifts", func(r chi.Router) {
				r.Use(middleware.AdminOnly)
				r.Get("/", h.Shift.ListShifts)
				r.Post("/", h.Shift.CreateShift)
				r.Post("/assignments", h.Shift.AssignShift)
				r.Get("/assignments/{staffID}", h.Shift.ListAssignments)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.Shift.GetShift)
					r.Put("/", h.Shift.UpdateShift)
					r.Get("/calendar", h.Shift.Calendar)
					r.Post("/off-dates", h.Shift.AddOffDate)
					r.Delete("/off-dates/{date}", h.Shift.RemoveOffDate)
				})
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.Notification.List)
				r.Post("/read", h.Notification.MarkAsRead)
			})
		})
	})
	return r
}
