package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AmountScale 金額允許的小數位數，與資料庫欄位 decimal(19,4) 一致
const AmountScale = 4

// Account 帳戶
type Account struct {
	ID        int64           `json:"id"`
	Number    string          `json:"number"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewAccount 建立尚未持久化的帳戶 (ID 為 0)
func NewAccount(number string, initialBalance decimal.Decimal) (*Account, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, ErrInvalidAccountNumber
	}
	if initialBalance.IsNegative() || !withinScale(initialBalance) {
		return nil, ErrInvalidAmount
	}
	now := time.Now().UTC()
	return &Account{
		Number:    number,
		Balance:   initialBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Clone 回傳副本，避免呼叫端共用同一份狀態
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// Credit 入款: 回傳 balance + amount
func Credit(balance, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := validateAmount(amount); err != nil {
		return balance, err
	}
	return balance.Add(amount), nil
}

// Debit 扣款: 餘額不足時回傳 ErrInsufficientFunds
func Debit(balance, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := validateAmount(amount); err != nil {
		return balance, err
	}
	if balance.LessThan(amount) {
		return balance, ErrInsufficientFunds
	}
	return balance.Sub(amount), nil
}

// Credit 對帳戶入款
func (a *Account) Credit(amount decimal.Decimal) error {
	next, err := Credit(a.Balance, amount)
	if err != nil {
		return err
	}
	a.Balance = next
	return nil
}

// Debit 對帳戶扣款，失敗時帳戶不變
func (a *Account) Debit(amount decimal.Decimal) error {
	next, err := Debit(a.Balance, amount)
	if err == ErrInsufficientFunds {
		return &InsufficientFundsError{
			AccountID:     a.ID,
			AccountNumber: a.Number,
			Requested:     amount,
			Balance:       a.Balance,
		}
	}
	if err != nil {
		return err
	}
	a.Balance = next
	return nil
}

// Apply 依交易類型分派，是唯一的類型分派點
func (a *Account) Apply(kind TransactionKind, amount decimal.Decimal) error {
	switch kind {
	case TransactionKindDebit:
		return a.Debit(amount)
	case TransactionKindCredit:
		return a.Credit(amount)
	default:
		return ErrInvalidTransactionType
	}
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !withinScale(amount) {
		return ErrInvalidAmount
	}
	return nil
}

func withinScale(v decimal.Decimal) bool {
	return v.Equal(v.Truncate(AmountScale))
}
