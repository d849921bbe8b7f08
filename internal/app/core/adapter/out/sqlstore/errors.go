package sqlstore

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// postgres / mysql 錯誤代碼
const (
	pgUniqueViolation     = "23505"
	pgLockNotAvailable    = "55P03"
	pgDeadlockDetected    = "40P01"
	mysqlDuplicateEntry   = 1062
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlockDetected = 1213
)

// isDuplicateKey 唯一索引衝突
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return false
}

// isLockTimeout 等待列鎖逾時或死鎖被選為犧牲者
func isLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgLockNotAvailable || pgErr.Code == pgDeadlockDetected
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlLockWaitTimeout || myErr.Number == mysqlDeadlockDetected
	}
	return false
}

// mapError 將資料庫錯誤轉成 domain 錯誤，其他一律視為基礎設施錯誤
func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrAccountNotFound
	case isLockTimeout(err):
		return domain.NewLockTimeoutError(op, err)
	default:
		return domain.NewInfrastructureError(op, err)
	}
}

// mapLockError 鎖定讀取時 context 逾時也視為等待鎖逾時
func mapLockError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewLockTimeoutError(op, err)
	}
	return mapError(op, err)
}
