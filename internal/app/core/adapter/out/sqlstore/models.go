package sqlstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// accountRow 對應資料庫的 accounts 表
type accountRow struct {
	ID           int64            `gorm:"primaryKey;autoIncrement"`
	Number       string           `gorm:"column:account_number;type:varchar(64);uniqueIndex;not null"`
	Balance      decimal.Decimal  `gorm:"type:decimal(19,4);not null"`
	CreatedAt    time.Time        `gorm:"not null"`
	UpdatedAt    time.Time        `gorm:"not null"`
	Transactions []transactionRow `gorm:"foreignKey:AccountID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (*accountRow) TableName() string {
	return "accounts"
}

// batchRow 對應資料庫的 ledger_batches 表，ref 唯一 (NULL 不受限制)
type batchRow struct {
	ID        string  `gorm:"primaryKey;type:char(36)"`
	Ref       *string `gorm:"type:varchar(128);uniqueIndex"`
	Size      int     `gorm:"not null"`
	CreatedAt time.Time
}

func (*batchRow) TableName() string {
	return "ledger_batches"
}

// transactionRow 對應資料庫的 ledger_transactions 表
type transactionRow struct {
	ID            string          `gorm:"primaryKey;type:char(36)"`
	BatchID       string          `gorm:"type:char(36);index;not null"`
	AccountID     int64           `gorm:"index;not null"`
	AccountNumber string          `gorm:"type:varchar(64);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	Kind          string          `gorm:"type:varchar(8);not null"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	CreatedAt     time.Time
}

func (*transactionRow) TableName() string {
	return "ledger_transactions"
}

// Migrate 建立或更新資料表
func Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(&accountRow{}, &batchRow{}, &transactionRow{})
}

func toAccountRow(a *domain.Account) *accountRow {
	return &accountRow{
		ID:        a.ID,
		Number:    a.Number,
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func (r *accountRow) toDomain() *domain.Account {
	return &domain.Account{
		ID:        r.ID,
		Number:    r.Number,
		Balance:   r.Balance,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func toBatchRow(b *domain.Batch) *batchRow {
	row := &batchRow{
		ID:        b.ID.String(),
		Size:      b.Size(),
		CreatedAt: b.CreatedAt,
	}
	if b.Ref != "" {
		ref := b.Ref
		row.Ref = &ref
	}
	return row
}

func toTransactionRow(r *domain.TransactionRecord) *transactionRow {
	id := r.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &transactionRow{
		ID:            id.String(),
		BatchID:       r.BatchID.String(),
		AccountID:     r.AccountID,
		AccountNumber: r.AccountNumber,
		Amount:        r.Amount,
		Kind:          r.Kind.String(),
		BalanceAfter:  r.BalanceAfter,
		CreatedAt:     r.CreatedAt,
	}
}
