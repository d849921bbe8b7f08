package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind 交易類型 (封閉列舉)
type TransactionKind uint8

const (
	// TransactionKindUnknown 未設定
	TransactionKindUnknown TransactionKind = iota
	// TransactionKindDebit 扣款
	TransactionKindDebit
	// TransactionKindCredit 入款
	TransactionKindCredit
)

// ParseTransactionKind 解析 "DEBIT" / "CREDIT" (不分大小寫)
func ParseTransactionKind(s string) (TransactionKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBIT":
		return TransactionKindDebit, nil
	case "CREDIT":
		return TransactionKindCredit, nil
	default:
		return TransactionKindUnknown, fmt.Errorf("%w: %q", ErrInvalidTransactionType, s)
	}
}

func (k TransactionKind) String() string {
	switch k {
	case TransactionKindDebit:
		return "DEBIT"
	case TransactionKindCredit:
		return "CREDIT"
	default:
		return "UNKNOWN"
	}
}

// Valid 是否為已知類型
func (k TransactionKind) Valid() bool {
	return k == TransactionKindDebit || k == TransactionKindCredit
}

func (k TransactionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText 未知字串解成 TransactionKindUnknown，由處理流程拒絕
func (k *TransactionKind) UnmarshalText(text []byte) error {
	parsed, err := ParseTransactionKind(string(text))
	if err != nil {
		*k = TransactionKindUnknown
		return nil
	}
	*k = parsed
	return nil
}

// TransactionRequest 單筆交易請求
type TransactionRequest struct {
	AccountNumber string          `json:"accountNumber"`
	Amount        decimal.Decimal `json:"amount"`
	Kind          TransactionKind `json:"kind"`
}

// TransactionRecord 已套用交易的稽核紀錄，寫入後不可變
type TransactionRecord struct {
	ID            uuid.UUID       `json:"id"`
	BatchID       uuid.UUID       `json:"batchId"`
	AccountID     int64           `json:"accountId"`
	AccountNumber string          `json:"accountNumber"`
	Amount        decimal.Decimal `json:"amount"`
	Kind          TransactionKind `json:"kind"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// NewTransactionRecord 依套用後的帳戶狀態建立紀錄
func NewTransactionRecord(batchID uuid.UUID, account *Account, req TransactionRequest, now time.Time) *TransactionRecord {
	return &TransactionRecord{
		ID:            uuid.New(),
		BatchID:       batchID,
		AccountID:     account.ID,
		AccountNumber: account.Number,
		Amount:        req.Amount,
		Kind:          req.Kind,
		BalanceAfter:  account.Balance,
		CreatedAt:     now,
	}
}

// Batch 一次提交的有序交易集合，全部成功或全部不生效
//
// Ref 是選填的冪等參考值；設定時同一 Ref 只會被套用一次
type Batch struct {
	ID           uuid.UUID
	Ref          string
	Transactions []TransactionRequest
	CreatedAt    time.Time
}

func NewBatch(ref string, txs []TransactionRequest) *Batch {
	return &Batch{
		ID:           uuid.New(),
		Ref:          strings.TrimSpace(ref),
		Transactions: txs,
		CreatedAt:    time.Now().UTC(),
	}
}

// Size 批次內交易筆數
func (b *Batch) Size() int {
	if b == nil {
		return 0
	}
	return len(b.Transactions)
}

// BatchResult 批次執行結果
type BatchResult struct {
	BatchID  uuid.UUID
	Applied  int
	Replayed bool
}

// BatchApplied 批次提交後發布的事件
type BatchApplied struct {
	BatchID      uuid.UUID           `json:"batchId"`
	Ref          string              `json:"ref,omitempty"`
	Transactions []TransactionRecord `json:"transactions"`
	AppliedAt    time.Time           `json:"appliedAt"`
}
