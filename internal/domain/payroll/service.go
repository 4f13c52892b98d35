package payroll

import "context"

type Service interface {
	// Preview computes per-staff pay for a month without persisting anything.
	Preview(ctx context.Context, req PreviewRequest) (PreviewResponse, error)

	// ProcessPayment adds a payment to the staff-month total.
	ProcessPayment(ctx context.Context, req ProcessPaymentRequest, paidBy string) (PaymentResponse, error)
	// BulkProcessPayment applies each payment independently and reports per-item results.
	BulkProcessPayment(ctx context.Context, req BulkProcessPaymentRequest, paidBy string) (BulkPaymentResponse, error)
	ListPayments(ctx context.Context, month string) ([]PaymentResponse, error)
	PaymentHistory(ctx context.Context, staffID, month string) (PaymentHistoryResponse, error)

	LockMonth(ctx context.Context, req LockMonthRequest, lockedBy string) (LockResponse, error)
	GetLock(ctx context.Context, month string) (LockResponse, error)

	// GraceAttendance forces a day to present with full pay and marks it manual.
	GraceAttendance(ctx context.Context, req GraceRequest, adminID string) (GraceResponse, error)
}
