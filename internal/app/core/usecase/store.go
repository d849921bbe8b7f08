package usecase

import (
	"context"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// AccountStore 帳戶儲存層
type AccountStore interface {
	// FindByNumber 非鎖定讀取，找不到回傳 domain.ErrAccountNotFound
	FindByNumber(ctx context.Context, number string) (*domain.Account, error)
	// FindByNumberForUpdate 取得帳戶的排他鎖，鎖持有到所屬 unit of work 結束
	// 在 UnitOfWork.Do 之外呼叫會回傳 domain.ErrNoUnitOfWork
	FindByNumberForUpdate(ctx context.Context, number string) (*domain.Account, error)
	// Save ID 為 0 時新增 (並回填 ID)，否則更新餘額
	Save(ctx context.Context, account *domain.Account) (*domain.Account, error)
	ExistsByNumber(ctx context.Context, number string) (bool, error)
}

// Journal 批次與交易紀錄
type Journal interface {
	// RecordBatch 登記批次；Ref 已提交過時回傳 domain.ErrBatchReplayed
	RecordBatch(ctx context.Context, batch *domain.Batch) error
	// Append 寫入一筆交易紀錄
	Append(ctx context.Context, record *domain.TransactionRecord) error
}

// UnitOfWork 交易邊界
//
// Do 內 fn 回傳 nil 則提交，否則回滾；不論哪種結果，期間取得的帳戶鎖都會釋放。
// 在已經開啟的 unit of work 上呼叫 Do 會併入外層，不另開交易。
type UnitOfWork interface {
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error
	Accounts() AccountStore
	Journal() Journal
}

// EventPublisher 批次提交後的事件發布
type EventPublisher interface {
	PublishBatchApplied(ctx context.Context, event *domain.BatchApplied) error
}
