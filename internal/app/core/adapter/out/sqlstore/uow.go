package sqlstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/database"
)

// UnitOfWork 以資料庫交易實作 usecase.UnitOfWork
type UnitOfWork struct {
	db          *gorm.DB
	tx          *gorm.DB
	lockTimeout time.Duration
	logger      *slog.Logger
}

// Option 設定 UnitOfWork
type Option func(*UnitOfWork)

// WithLockTimeout 每個交易等待列鎖的上限
func WithLockTimeout(d time.Duration) Option {
	return func(u *UnitOfWork) {
		u.lockTimeout = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(u *UnitOfWork) {
		if logger != nil {
			u.logger = logger
		}
	}
}

func NewUnitOfWork(client *database.Client, opts ...Option) *UnitOfWork {
	u := &UnitOfWork{
		db:     client.DB(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Do 在資料庫交易內執行 fn；已在交易內時直接併入
func (u *UnitOfWork) Do(ctx context.Context, fn func(uow usecase.UnitOfWork) error) error {
	if u.tx != nil {
		return fn(u)
	}

	var fnErr error
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		restore, err := u.applyLockTimeout(tx)
		if err != nil {
			return mapError("set lock timeout", err)
		}
		defer restore()
		fnErr = fn(&UnitOfWork{db: u.db, tx: tx, lockTimeout: u.lockTimeout, logger: u.logger})
		return fnErr
	})
	if err != nil && fnErr == nil {
		// BEGIN 或 COMMIT 失敗
		u.logger.ErrorContext(ctx, "database transaction failed", slog.Any("error", err))
		return mapError("commit", err)
	}
	return err
}

// applyLockTimeout 設定本次交易的列鎖等待上限
//
// postgres 用 SET LOCAL，交易結束即失效。MySQL 只能設在 session 上，
// 回傳的 restore 會在 COMMIT 前把連線還原成原本的值，避免影響連線池中的後續使用者。
func (u *UnitOfWork) applyLockTimeout(tx *gorm.DB) (restore func(), err error) {
	noop := func() {}
	if u.lockTimeout <= 0 {
		return noop, nil
	}
	switch tx.Dialector.Name() {
	case database.DriverPostgres:
		return noop, tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", u.lockTimeout.Milliseconds())).Error
	case database.DriverMySQL:
		secs := int64(u.lockTimeout.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		var prev int64
		if err := tx.Raw("SELECT @@SESSION.innodb_lock_wait_timeout").Scan(&prev).Error; err != nil {
			return nil, err
		}
		if err := tx.Exec(fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", secs)).Error; err != nil {
			return nil, err
		}
		return func() {
			if err := tx.Exec(fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", prev)).Error; err != nil {
				u.logger.Warn("failed to restore innodb_lock_wait_timeout", slog.Any("error", err))
			}
		}, nil
	default:
		return noop, nil
	}
}

func (u *UnitOfWork) session() *session {
	if u.tx != nil {
		return &session{db: u.tx, inTx: true}
	}
	return &session{db: u.db}
}

func (u *UnitOfWork) Accounts() usecase.AccountStore {
	return u.session()
}

func (u *UnitOfWork) Journal() usecase.Journal {
	return u.session()
}

var _ usecase.UnitOfWork = (*UnitOfWork)(nil)
