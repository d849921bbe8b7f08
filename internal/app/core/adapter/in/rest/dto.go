package rest

import (
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// TransactionDTO 批次中的單筆交易
type TransactionDTO struct {
	AccountNumber string           `json:"accountNumber" validate:"required,max=64"`
	Amount        *decimal.Decimal `json:"amount" validate:"required"`
	Kind          string           `json:"kind" validate:"required"`
}

func (d TransactionDTO) toDomain() domain.TransactionRequest {
	kind, _ := domain.ParseTransactionKind(d.Kind)
	return domain.TransactionRequest{
		AccountNumber: d.AccountNumber,
		Amount:        *d.Amount,
		Kind:          kind,
	}
}

// CreateAccountDTO 開戶請求；InitialBalance 省略時為 0
type CreateAccountDTO struct {
	AccountNumber  string           `json:"accountNumber" validate:"required,max=64"`
	InitialBalance *decimal.Decimal `json:"initialBalance"`
}

// BalanceResponse 餘額查詢回應
type BalanceResponse struct {
	AccountNumber string `json:"accountNumber"`
	Balance       string `json:"balance"`
}

func newBalanceResponse(acc *domain.Account) BalanceResponse {
	return BalanceResponse{AccountNumber: acc.Number, Balance: formatAmount(acc.Balance)}
}

// formatAmount 至少保留兩位小數
func formatAmount(d decimal.Decimal) string {
	if d.Exponent() >= -2 {
		return d.StringFixed(2)
	}
	return d.String()
}
