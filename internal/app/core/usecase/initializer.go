package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// SeedAccount 啟動時要確保存在的帳戶
type SeedAccount struct {
	Number         string
	InitialBalance decimal.Decimal
}

// Initializer 啟動時建立種子帳戶，可重複執行
type Initializer struct {
	uow    UnitOfWork
	logger *slog.Logger
}

func NewInitializer(uow UnitOfWork, logger *slog.Logger) *Initializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Initializer{uow: uow, logger: logger}
}

// EnsureExists 帳戶不存在時以 initialBalance 建立
//
// 盡力而為: 所有錯誤都只記錄不回傳。已存在的帳戶不會被修改。
func (i *Initializer) EnsureExists(ctx context.Context, number string, initialBalance decimal.Decimal) {
	log := i.logger.With(slog.String("account", number))

	account, err := domain.NewAccount(number, initialBalance)
	if err != nil {
		log.ErrorContext(ctx, "invalid seed account",
			slog.String("initial_balance", initialBalance.String()), slog.Any("error", err))
		return
	}

	exists, err := i.uow.Accounts().ExistsByNumber(ctx, account.Number)
	if err != nil {
		log.ErrorContext(ctx, "failed to check seed account", slog.Any("error", err))
		return
	}
	if exists {
		log.DebugContext(ctx, "seed account already exists")
		return
	}

	// 檢查與新增之間可能有其他程序先建立，唯一索引衝突視為已存在
	err = i.uow.Do(ctx, func(tx UnitOfWork) error {
		_, err := tx.Accounts().Save(ctx, account)
		return err
	})
	switch {
	case errors.Is(err, domain.ErrAccountExists):
		log.DebugContext(ctx, "seed account already exists")
	case err != nil:
		log.ErrorContext(ctx, "failed to create seed account", slog.Any("error", err))
	default:
		log.InfoContext(ctx, "seed account created", slog.String("balance", account.Balance.String()))
	}
}

// SeedAll 依序確保所有種子帳戶存在
func (i *Initializer) SeedAll(ctx context.Context, seeds []SeedAccount) {
	for _, s := range seeds {
		i.EnsureExists(ctx, s.Number, s.InitialBalance)
	}
}
