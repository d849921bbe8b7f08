package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// Ledger 是帳務系統對外 (HTTP / gRPC) 的介面
type Ledger interface {
	// PerformBatch 在單一 unit of work 內依序套用整個批次，任一筆失敗則全部回滾
	PerformBatch(ctx context.Context, batch *domain.Batch) (*domain.BatchResult, error)
	// GetBalance 取得帳戶 (非鎖定讀取)
	GetBalance(ctx context.Context, accountNumber string) (*domain.Account, error)
	// CreateAccount 建立新帳戶，重複時回傳 domain.ErrAccountExists
	CreateAccount(ctx context.Context, accountNumber string, initialBalance decimal.Decimal) (*domain.Account, error)
}
