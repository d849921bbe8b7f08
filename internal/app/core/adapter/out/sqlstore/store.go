package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

var errNilAccount = errors.New("nil account")

// session 同時實作 AccountStore 與 Journal
//
// inTx 為 false 時 db 是連線池本身，鎖定讀取不可用。
type session struct {
	db   *gorm.DB
	inTx bool
}

// FindByNumber 非鎖定讀取
func (s *session) FindByNumber(ctx context.Context, number string) (*domain.Account, error) {
	var row accountRow
	err := s.db.WithContext(ctx).Where("account_number = ?", number).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, number)
		}
		return nil, mapError("find account", err)
	}
	return row.toDomain(), nil
}

// FindByNumberForUpdate SELECT ... FOR UPDATE，悲觀鎖持有到交易結束
func (s *session) FindByNumberForUpdate(ctx context.Context, number string) (*domain.Account, error) {
	if !s.inTx {
		return nil, domain.ErrNoUnitOfWork
	}
	var row accountRow
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_number = ?", number).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, number)
		}
		return nil, mapLockError("find account for update", err)
	}
	return row.toDomain(), nil
}

// Save ID 為 0 時新增，否則只更新餘額
func (s *session) Save(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	if account == nil {
		return nil, domain.NewInfrastructureError("save account", errNilAccount)
	}
	db := s.db.WithContext(ctx)

	if account.ID == 0 {
		row := toAccountRow(account)
		if err := db.Create(row).Error; err != nil {
			if isDuplicateKey(err) {
				return nil, fmt.Errorf("%w: %s", domain.ErrAccountExists, account.Number)
			}
			return nil, mapError("insert account", err)
		}
		account.ID = row.ID
		return row.toDomain(), nil
	}

	updatedAt := account.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	res := db.Model(&accountRow{}).
		Where("id = ?", account.ID).
		Updates(map[string]any{"balance": account.Balance, "updated_at": updatedAt})
	if res.Error != nil {
		return nil, mapError("update account", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, account.Number)
	}
	saved := *account
	saved.UpdatedAt = updatedAt
	return &saved, nil
}

func (s *session) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&accountRow{}).Where("account_number = ?", number).Count(&count).Error
	if err != nil {
		return false, mapError("count accounts", err)
	}
	return count > 0, nil
}

// RecordBatch 寫入批次；ref 重複代表已提交過
//
// 相同 ref 的並行交易會在唯一索引上等待，前者提交後後者收到重複錯誤。
func (s *session) RecordBatch(ctx context.Context, batch *domain.Batch) error {
	if err := s.db.WithContext(ctx).Create(toBatchRow(batch)).Error; err != nil {
		if isDuplicateKey(err) {
			return domain.ErrBatchReplayed
		}
		return mapError("insert batch", err)
	}
	return nil
}

func (s *session) Append(ctx context.Context, record *domain.TransactionRecord) error {
	if err := s.db.WithContext(ctx).Create(toTransactionRow(record)).Error; err != nil {
		return mapError("insert transaction record", err)
	}
	return nil
}

var (
	_ usecase.AccountStore = (*session)(nil)
	_ usecase.Journal      = (*session)(nil)
)
