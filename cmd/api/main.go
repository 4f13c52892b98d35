package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/config"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/notification"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/overtime"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/staff"
	appHTTP "github.com/cmlabs-hris/attendance-engine/internal/handler/http"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/cron"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/kafka"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/memory"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/postgresql"
	attendanceService "github.com/cmlabs-hris/attendance-engine/internal/service/attendance"
	notificationService "github.com/cmlabs-hris/attendance-engine/internal/service/notification"
	overtimeService "github.com/cmlabs-hris/attendance-engine/internal/service/overtime"
	payrollService "github.com/cmlabs-hris/attendance-engine/internal/service/payroll"
	shiftService "github.com/cmlabs-hris/attendance-engine/internal/service/shift"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const version = "v1.0.0"

// repositories is the storage backend selected by STORAGE_DRIVER.
type repositories struct {
	staff         staff.Repository
	leave         leave.Repository
	shifts        shift.Repository
	offDates      shift.OffDateRepository
	assignments   shift.AssignmentRepository
	events        attendance.EventRepository
	days          attendance.DayRepository
	cursors       attendance.CursorRepository
	overtime      overtime.Repository
	payroll       payroll.Repository
	notifications notification.Repository
	close         func()
}

func newPostgresRepositories(ctx context.Context, cfg *config.Config) (*repositories, error) {
	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolConfig{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &repositories{
		staff:         postgresql.NewStaffRepository(db),
		leave:         postgresql.NewLeaveRepository(db),
		shifts:        postgresql.NewShiftRepository(db),
		offDates:      postgresql.NewOffDateRepository(db),
		assignments:   postgresql.NewAssignmentRepository(db),
		events:        postgresql.NewEventRepository(db),
		days:          postgresql.NewDayRepository(db),
		cursors:       postgresql.NewCursorRepository(db),
		overtime:      postgresql.NewOvertimeRepository(db),
		payroll:       postgresql.NewPayrollRepository(db),
		notifications: postgresql.NewNotificationRepository(db),
		close:         db.Close,
	}, nil
}

func newMemoryRepositories() *repositories {
	store := memory.NewStore()
	return &repositories{
		staff:         store.Staff(),
		leave:         store.Leave(),
		shifts:        store.Shifts(),
		offDates:      store.OffDates(),
		assignments:   store.Assignments(),
		events:        store.Events(),
		days:          store.Days(),
		cursors:       store.Cursors(),
		overtime:      store.Overtime(),
		payroll:       store.Payroll(),
		notifications: store.NotificationRepo(),
		close:         func() {},
	}
}

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).With(
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
	))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var repos *repositories
	switch cfg.App.StorageDriver {
	case config.StorageDriverMemory:
		slog.Warn("Using in-memory storage; data is lost on restart")
		repos = newMemoryRepositories()
	default:
		repos, err = newPostgresRepositories(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
	}
	defer repos.close()

	clk := clock.New()

	var publisher notification.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := kafka.NewNotificationPublisher(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				slog.Warn("Failed to close kafka publisher", "error", err)
			}
		}()
		publisher = kafkaPublisher
		slog.Info("Kafka notification fan-out enabled", "topic", cfg.Kafka.NotificationTopic)
	}
	notifier := notificationService.NewNotificationService(repos.notifications, publisher, notificationService.Config{
		BatchSize:     cfg.Notification.BatchSize,
		FlushInterval: cfg.Notification.FlushInterval,
		WorkerCount:   cfg.Notification.WorkerCount,
		QueueSize:     cfg.Notification.QueueSize,
	})
	defer notifier.Stop()

	resolver := shift.NewResolver(repos.shifts, repos.offDates, repos.assignments)
	attendanceSvc := attendanceService.NewAttendanceService(clk, resolver, repos.staff, repos.leave, repos.events, repos.days)
	overtimeSvc := overtimeService.NewOvertimeService(clk, overtimeService.Config{
		EarlyStopThreshold:   cfg.Overtime.EarlyStopThresholdMinutes,
		EarlyStopPenaltyMins: cfg.Overtime.EarlyStopPenaltyMinutes,
		Multiplier:           cfg.Overtime.PayrollMultiplier,
	}, resolver, repos.staff, repos.overtime, repos.days, repos.payroll, notifier)
	payrollSvc := payrollService.NewPayrollService(clk, repos.payroll, repos.staff, repos.overtime, repos.days, notifier)
	shiftSvc := shiftService.NewShiftService(repos.shifts, repos.offDates, repos.assignments, repos.staff)

	var scheduler *cron.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = cron.NewScheduler(clk, cfg.Scheduler.JobTimeout)
		jobs := cron.NewAttendanceJobs(clk, cron.AttendanceConfig{
			Interval:         cfg.Scheduler.Interval,
			StaffTimeout:     cfg.Scheduler.StaffTimeout,
			SafetyMarginDays: cfg.Scheduler.SafetyMarginDays,
			MaxBackfillDays:  cfg.Scheduler.MaxBackfillDays,
			AutoCloseAfter:   cfg.Scheduler.AutoCloseAfter,
			Concurrency:      cfg.Scheduler.Concurrency,
		}, resolver, repos.staff, repos.leave, repos.days, repos.cursors, repos.payroll, notifier)
		jobs.RegisterJobs(scheduler)
	}

	routerCfg := appHTTP.RouterConfig{
		AppName:        cfg.App.Name,
		Version:        version,
		Env:            cfg.App.Env,
		AllowedOrigins: cfg.App.AllowedOrigins,
		LogLevel:       level,
		IdempotencyTTL: cfg.Redis.IdempotencyTTL,
	}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("Redis unreachable; idempotency keys fail open until it recovers", "error", err)
		}
		routerCfg.Redis = rdb
	}

	jwtService := jwt.NewJWTService(clk, cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	router := appHTTP.NewRouter(routerCfg, jwtService, appHTTP.Handlers{
		Attendance:   appHTTP.NewAttendanceHandler(attendanceSvc),
		Overtime:     appHTTP.NewOvertimeHandler(overtimeSvc),
		Payroll:      appHTTP.NewPayrollHandler(payrollSvc),
		Shift:        appHTTP.NewShiftHandler(shiftSvc),
		Notification: appHTTP.NewNotificationHandler(notifier),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server running", "addr", server.Addr, "storage", cfg.App.StorageDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if scheduler != nil {
		scheduler.Start()
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")
		if scheduler != nil {
			scheduler.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
