package notification

import (
	"time"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	TypeAttendanceAutoAbsent   NotificationType = "attendance_auto_absent"
	TypeAttendanceAutoClosed   NotificationType = "attendance_auto_closed"
	TypeOvertimeApprovalNeeded NotificationType = "overtime_approval_needed"
	TypeOvertimeApproved       NotificationType = "overtime_approved"
	TypeOvertimeRejected       NotificationType = "overtime_rejected"
	TypePayrollPaid            NotificationType = "payroll_paid"
	TypePayrollLocked          NotificationType = "payroll_locked"
)

// RoleAdmin addresses every administrator of a branch instead of one staff member.
const RoleAdmin = "admin"

// Notification represents a notification entity
type Notification struct {
	ID            string
	BranchID      *string
	RecipientID   *string
	RecipientRole *string
	Type          NotificationType
	Title         string
	Message       string
	Data          map[string]interface{}
	IsRead        bool
	ReadAt        *time.Time
	CreatedAt     time.Time
}
