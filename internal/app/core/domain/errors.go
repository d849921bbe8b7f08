package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount 金額必須為正數 (且不超過 AmountScale 位小數)
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidTransactionType 未知或未設定的交易類型
	ErrInvalidTransactionType = errors.New("invalid transaction type")

	// ErrInvalidAccountNumber 帳號不可為空
	ErrInvalidAccountNumber = errors.New("invalid account number")

	// ErrAccountExists 帳戶已存在
	ErrAccountExists = errors.New("account already exists")

	// ErrInfrastructure 儲存層或底層資源失敗
	ErrInfrastructure = errors.New("infrastructure failure")

	// ErrLockTimeout 等待帳戶鎖逾時
	ErrLockTimeout = errors.New("lock wait timeout")

	// ErrNoUnitOfWork 鎖定讀取必須在 UnitOfWork.Do 之內
	ErrNoUnitOfWork = errors.New("locked read requires an active unit of work")

	// ErrBatchReplayed 相同 ref 的批次已經提交過
	ErrBatchReplayed = errors.New("batch already applied")
)

// InsufficientFundsError 帶有帳戶資訊的餘額不足錯誤
type InsufficientFundsError struct {
	AccountID     int64
	AccountNumber string
	Requested     decimal.Decimal
	Balance       decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in account %s: balance %s, requested %s",
		e.AccountNumber, e.Balance.String(), e.Requested.String())
}

// Is 讓 errors.Is(err, ErrInsufficientFunds) 成立
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// InfrastructureError 包裝儲存層錯誤，Op 為失敗的操作名稱
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrInfrastructure.Error(), e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

func (e *InfrastructureError) Is(target error) bool {
	return target == ErrInfrastructure
}

// NewInfrastructureError 包裝 err；已經是 InfrastructureError 的錯誤原樣回傳
func NewInfrastructureError(op string, err error) error {
	if err == nil {
		return nil
	}
	var infra *InfrastructureError
	if errors.As(err, &infra) {
		return err
	}
	return &InfrastructureError{Op: op, Err: err}
}

// NewLockTimeoutError 鎖等待逾時，同時符合 ErrLockTimeout 與 ErrInfrastructure
func NewLockTimeoutError(op string, cause error) error {
	if cause == nil {
		return &InfrastructureError{Op: op, Err: ErrLockTimeout}
	}
	return &InfrastructureError{Op: op, Err: fmt.Errorf("%w: %v", ErrLockTimeout, cause)}
}

// TransactionProcessingError 處理單筆交易時發生的未分類錯誤
type TransactionProcessingError struct {
	AccountNumber string
	Err           error
}

func (e *TransactionProcessingError) Error() string {
	return fmt.Sprintf("processing transaction for account %s: %v", e.AccountNumber, e.Err)
}

func (e *TransactionProcessingError) Unwrap() error {
	return e.Err
}

// 錯誤代碼，給 HTTP / gRPC 回應使用
const (
	CodeAccountNotFound       = "ACCOUNT_NOT_FOUND"
	CodeInsufficientFunds     = "INSUFFICIENT_FUNDS"
	CodeInvalidAmount         = "INVALID_AMOUNT"
	CodeInvalidTransaction    = "INVALID_TRANSACTION_TYPE"
	CodeInvalidAccountNumber  = "INVALID_ACCOUNT_NUMBER"
	CodeAccountExists         = "ACCOUNT_EXISTS"
	CodeLockTimeout           = "LOCK_TIMEOUT"
	CodeInfrastructureFailure = "INFRASTRUCTURE_FAILURE"
	CodeProcessingError       = "TRANSACTION_PROCESSING_ERROR"
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeInternal              = "INTERNAL_ERROR"
)

// IsBusinessError 回報 err 是否為可預期的業務拒絕 (非系統錯誤)
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidTransactionType) ||
		errors.Is(err, ErrInvalidAccountNumber) ||
		errors.Is(err, ErrAccountExists)
}

// IsClassified 回報 err 是否已屬於已知分類 (業務錯誤或基礎設施錯誤)
func IsClassified(err error) bool {
	if IsBusinessError(err) || errors.Is(err, ErrInfrastructure) || errors.Is(err, ErrNoUnitOfWork) {
		return true
	}
	var procErr *TransactionProcessingError
	return errors.As(err, &procErr)
}

// Code 回傳錯誤的機器可讀代碼
func Code(err error) string {
	var procErr *TransactionProcessingError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAccountNotFound):
		return CodeAccountNotFound
	case errors.Is(err, ErrInsufficientFunds):
		return CodeInsufficientFunds
	case errors.Is(err, ErrInvalidAmount):
		return CodeInvalidAmount
	case errors.Is(err, ErrInvalidTransactionType):
		return CodeInvalidTransaction
	case errors.Is(err, ErrInvalidAccountNumber):
		return CodeInvalidAccountNumber
	case errors.Is(err, ErrAccountExists):
		return CodeAccountExists
	case errors.Is(err, ErrLockTimeout):
		return CodeLockTimeout
	case errors.Is(err, ErrInfrastructure):
		return CodeInfrastructureFailure
	case errors.As(err, &procErr):
		return CodeProcessingError
	default:
		return CodeInternal
	}
}
