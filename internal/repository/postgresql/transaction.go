package postgresql

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type txKey struct{}

// WithTransaction executes fn inside a database transaction. Repositories called
// with the ctx passed to fn join the transaction through GetQuerier. A nested call
// reuses the outer transaction.
func WithTransaction(ctx context.Context, db *database.DB, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx)
	if err != nil {
		return classify("begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Error("rollback during panic recovery failed", "error", rbErr)
			}
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback error: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit transaction", err)
	}

	return nil
}

// GetQuerier returns either transaction or pool
// Used in repositories to support both transactional and non-transactional operations
func GetQuerier(ctx context.Context, db *database.DB) database.Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return db.Pool
}

// withUnlockedMonth runs fn in a transaction that holds the payroll month's shared
// advisory lock. CreateLock takes the same key exclusively, so a month cannot be
// locked while fn is writing into it. locked reports that fn was skipped because
// the month is already locked.
func withUnlockedMonth(ctx context.Context, db *database.DB, month string, fn func(ctx context.Context, q database.Querier) error) (locked bool, err error) {
	err = WithTransaction(ctx, db, func(ctx context.Context) error {
		q := GetQuerier(ctx, db)
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock_shared(hashtextextended($1, 0))`, monthLockKey(month)); err != nil {
			return classify("acquire payroll month lock", err)
		}
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payroll_locks WHERE month = $1)`, month).Scan(&locked); err != nil {
			return classify("check payroll lock", err)
		}
		if locked {
			return nil
		}
		return fn(ctx, q)
	})
	return locked, err
}

func monthLockKey(month string) string {
	return "payroll_month:" + month
}
