package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/pkg/metrics"
)

// CoreUseCase 是核心業務邏輯層，也就是批次協調者
type CoreUseCase struct {
	uow       UnitOfWork
	processor *Processor
	publisher EventPublisher
	metrics   *metrics.Ledger
	logger    *slog.Logger
}

// Option 設定 CoreUseCase
type Option func(*CoreUseCase)

func WithLogger(logger *slog.Logger) Option {
	return func(c *CoreUseCase) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPublisher 批次提交後發布 BatchApplied 事件
func WithPublisher(p EventPublisher) Option {
	return func(c *CoreUseCase) {
		c.publisher = p
	}
}

func WithMetrics(m *metrics.Ledger) Option {
	return func(c *CoreUseCase) {
		c.metrics = m
	}
}

func NewCoreUseCase(uow UnitOfWork, opts ...Option) *CoreUseCase {
	c := &CoreUseCase{
		uow:    uow,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.processor = NewProcessor(c.logger, c.metrics)
	return c
}

// PerformBatch 處理交易批次
//
// 空批次直接回傳成功。批次內依序處理，不平行；第一筆失敗即中止並回滾整批，
// 回傳的錯誤會標出失敗的索引。帶 Ref 且已提交過的批次視為成功 (Replayed)。
func (c *CoreUseCase) PerformBatch(ctx context.Context, batch *domain.Batch) (*domain.BatchResult, error) {
	if batch.Size() == 0 {
		c.metrics.ObserveBatch(metrics.OutcomeEmpty)
		c.logger.DebugContext(ctx, "empty batch, nothing to do")
		return &domain.BatchResult{}, nil
	}
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	log := c.logger.With(slog.String("batch_id", batch.ID.String()), slog.Int("size", batch.Size()))
	if batch.Ref != "" {
		log = log.With(slog.String("ref", batch.Ref))
	}

	var records []*domain.TransactionRecord
	err := c.uow.Do(ctx, func(tx UnitOfWork) error {
		records = make([]*domain.TransactionRecord, 0, batch.Size())
		if err := tx.Journal().RecordBatch(ctx, batch); err != nil {
			return err
		}
		for i, req := range batch.Transactions {
			record, err := c.processor.Process(ctx, tx, batch.ID, req)
			if err != nil {
				return fmt.Errorf("transaction %d: %w", i, err)
			}
			records = append(records, record)
		}
		return nil
	})

	switch {
	case errors.Is(err, domain.ErrBatchReplayed):
		c.metrics.ObserveBatch(metrics.OutcomeReplayed)
		log.InfoContext(ctx, "batch already applied, skipping")
		return &domain.BatchResult{Replayed: true}, nil
	case err != nil && domain.IsBusinessError(err):
		c.metrics.ObserveBatch(metrics.OutcomeRejected)
		log.WarnContext(ctx, "batch rejected", slog.String("code", domain.Code(err)), slog.Any("error", err))
		return nil, err
	case err != nil:
		c.metrics.ObserveBatch(metrics.OutcomeFailed)
		log.ErrorContext(ctx, "batch failed", slog.String("code", domain.Code(err)), slog.Any("error", err))
		return nil, err
	}

	c.metrics.ObserveBatch(metrics.OutcomeCommitted)
	for _, r := range records {
		c.metrics.ObserveTransaction(r.Kind.String())
	}
	log.InfoContext(ctx, "batch committed")
	c.publish(ctx, batch, records)

	return &domain.BatchResult{BatchID: batch.ID, Applied: len(records)}, nil
}

// publish 發布失敗只記錄，不影響已提交的批次
func (c *CoreUseCase) publish(ctx context.Context, batch *domain.Batch, records []*domain.TransactionRecord) {
	if c.publisher == nil {
		return
	}
	event := &domain.BatchApplied{
		BatchID:      batch.ID,
		Ref:          batch.Ref,
		Transactions: make([]domain.TransactionRecord, 0, len(records)),
		AppliedAt:    time.Now().UTC(),
	}
	for _, r := range records {
		event.Transactions = append(event.Transactions, *r)
	}
	if err := c.publisher.PublishBatchApplied(ctx, event); err != nil {
		c.logger.WarnContext(ctx, "failed to publish batch event",
			slog.String("batch_id", batch.ID.String()), slog.Any("error", err))
	}
}

// GetBalance 取得帳戶餘額
func (c *CoreUseCase) GetBalance(ctx context.Context, accountNumber string) (*domain.Account, error) {
	accountNumber = strings.TrimSpace(accountNumber)
	if accountNumber == "" {
		return nil, domain.ErrInvalidAccountNumber
	}
	return c.uow.Accounts().FindByNumber(ctx, accountNumber)
}

// CreateAccount 建立帳戶
func (c *CoreUseCase) CreateAccount(ctx context.Context, accountNumber string, initialBalance decimal.Decimal) (*domain.Account, error) {
	account, err := domain.NewAccount(accountNumber, initialBalance)
	if err != nil {
		return nil, err
	}
	var created *domain.Account
	err = c.uow.Do(ctx, func(tx UnitOfWork) error {
		created, err = tx.Accounts().Save(ctx, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "account created",
		slog.String("account", created.Number), slog.String("balance", created.Balance.String()))
	return created, nil
}

var _ Ledger = (*CoreUseCase)(nil)
