package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/pkg/metrics"
)

// Processor 處理單筆交易: 鎖定 -> 驗證 -> 套用 -> 寫回
type Processor struct {
	logger  *slog.Logger
	metrics *metrics.Ledger
	now     func() time.Time
}

func NewProcessor(logger *slog.Logger, m *metrics.Ledger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Process 在 uow 內處理一筆交易
//
// 參數:
//
//	ctx: 上下文
//	uow: 已開啟的 unit of work
//	batchID: 所屬批次
//	req: 交易請求
//
// 回傳:
//
//	*domain.TransactionRecord: 寫入的交易紀錄
//	error: 業務錯誤與基礎設施錯誤原樣回傳，其餘包成 *domain.TransactionProcessingError
func (p *Processor) Process(ctx context.Context, uow UnitOfWork, batchID uuid.UUID, req domain.TransactionRequest) (*domain.TransactionRecord, error) {
	record, err := p.process(ctx, uow, batchID, req)
	if err != nil && !domain.IsClassified(err) {
		return nil, &domain.TransactionProcessingError{AccountNumber: req.AccountNumber, Err: err}
	}
	return record, err
}

func (p *Processor) process(ctx context.Context, uow UnitOfWork, batchID uuid.UUID, req domain.TransactionRequest) (*domain.TransactionRecord, error) {
	accounts := uow.Accounts()

	// 1. 取得帳戶排他鎖
	start := time.Now()
	account, err := accounts.FindByNumberForUpdate(ctx, req.AccountNumber)
	p.metrics.ObserveLockWait(time.Since(start))
	if err != nil {
		return nil, err
	}

	// 2. 交易類型
	if !req.Kind.Valid() {
		return nil, domain.ErrInvalidTransactionType
	}

	// 3. 套用，失敗時帳戶不變也不寫回
	if err := account.Apply(req.Kind, req.Amount); err != nil {
		p.logger.DebugContext(ctx, "transaction rejected",
			slog.String("account", req.AccountNumber),
			slog.String("kind", req.Kind.String()),
			slog.String("amount", req.Amount.String()),
			slog.Any("error", err))
		return nil, err
	}

	// 4. 寫回並記帳
	now := p.now()
	account.UpdatedAt = now
	saved, err := accounts.Save(ctx, account)
	if err != nil {
		return nil, err
	}
	record := domain.NewTransactionRecord(batchID, saved, req, now)
	if err := uow.Journal().Append(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}
