package grpc

import (
	"context"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// LedgerClient 帳務服務客戶端
type LedgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{cc: cc}
}

// PerformTransactions 送出一個批次；ref 為空時不做冪等檢查
func (c *LedgerClient) PerformTransactions(ctx context.Context, ref string, txs []domain.TransactionRequest, opts ...grpc.CallOption) (*domain.BatchResult, error) {
	in, err := encodeBatch(ref, txs)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, PerformTransactionsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return decodeResult(out), nil
}

// GetBalance 查詢餘額
func (c *LedgerClient) GetBalance(ctx context.Context, accountNumber string, opts ...grpc.CallOption) (decimal.Decimal, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetBalanceMethod, wrapperspb.String(accountNumber), out, opts...); err != nil {
		return decimal.Decimal{}, err
	}
	_, balance, err := decodeAccount(out)
	return balance, err
}

// CreateAccount 開戶
func (c *LedgerClient) CreateAccount(ctx context.Context, accountNumber string, initial decimal.Decimal, opts ...grpc.CallOption) (decimal.Decimal, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldAccountNumber:  structpb.NewStringValue(accountNumber),
		fieldInitialBalance: structpb.NewStringValue(initial.String()),
	}}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CreateAccountMethod, in, out, opts...); err != nil {
		return decimal.Decimal{}, err
	}
	_, balance, err := decodeAccount(out)
	return balance, err
}
