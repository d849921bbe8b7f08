package grpc

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// 欄位名稱
const (
	fieldRef            = "ref"
	fieldTransactions   = "transactions"
	fieldAccountNumber  = "accountNumber"
	fieldAmount         = "amount"
	fieldKind           = "kind"
	fieldInitialBalance = "initialBalance"
	fieldBalance        = "balance"
	fieldBatchID        = "batchId"
	fieldApplied        = "applied"
	fieldReplayed       = "replayed"
)

// decodeBatch 將 Struct 轉成 domain.Batch
//
// 金額接受字串或數字；數字經 float64 傳輸，需要精確值時請用字串
func decodeBatch(in *structpb.Struct) (*domain.Batch, error) {
	fields := in.GetFields()
	ref := fields[fieldRef].GetStringValue()

	list := fields[fieldTransactions].GetListValue().GetValues()
	txs := make([]domain.TransactionRequest, 0, len(list))
	for i, v := range list {
		item := v.GetStructValue()
		if item == nil {
			return nil, fmt.Errorf("transactions[%d]: not an object", i)
		}
		tx, err := decodeTransaction(item)
		if err != nil {
			return nil, fmt.Errorf("transactions[%d]: %w", i, err)
		}
		txs = append(txs, tx)
	}
	return domain.NewBatch(ref, txs), nil
}

func decodeTransaction(item *structpb.Struct) (domain.TransactionRequest, error) {
	f := item.GetFields()
	number := f[fieldAccountNumber].GetStringValue()
	if number == "" {
		return domain.TransactionRequest{}, fmt.Errorf("%s is required", fieldAccountNumber)
	}
	amount, err := decodeAmount(f[fieldAmount])
	if err != nil {
		return domain.TransactionRequest{}, err
	}
	kindText := f[fieldKind].GetStringValue()
	if kindText == "" {
		return domain.TransactionRequest{}, fmt.Errorf("%s is required", fieldKind)
	}
	kind, _ := domain.ParseTransactionKind(kindText)
	return domain.TransactionRequest{AccountNumber: number, Amount: amount, Kind: kind}, nil
}

func decodeAmount(v *structpb.Value) (decimal.Decimal, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(k.StringValue)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("%s: %w", fieldAmount, err)
		}
		return d, nil
	case *structpb.Value_NumberValue:
		if math.IsNaN(k.NumberValue) || math.IsInf(k.NumberValue, 0) {
			return decimal.Decimal{}, fmt.Errorf("%s must be a finite number", fieldAmount)
		}
		return decimal.NewFromFloat(k.NumberValue), nil
	case nil:
		return decimal.Decimal{}, fmt.Errorf("%s is required", fieldAmount)
	default:
		return decimal.Decimal{}, fmt.Errorf("%s must be a string or number", fieldAmount)
	}
}

// encodeBatch 用於客戶端
func encodeBatch(ref string, txs []domain.TransactionRequest) (*structpb.Struct, error) {
	items := make([]any, 0, len(txs))
	for _, tx := range txs {
		items = append(items, map[string]any{
			fieldAccountNumber: tx.AccountNumber,
			fieldAmount:        tx.Amount.String(),
			fieldKind:          tx.Kind.String(),
		})
	}
	return structpb.NewStruct(map[string]any{
		fieldRef:          ref,
		fieldTransactions: items,
	})
}

func encodeResult(res *domain.BatchResult) *structpb.Struct {
	batchID := ""
	if res.Applied > 0 {
		batchID = res.BatchID.String()
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldBatchID:  structpb.NewStringValue(batchID),
		fieldApplied:  structpb.NewNumberValue(float64(res.Applied)),
		fieldReplayed: structpb.NewBoolValue(res.Replayed),
	}}
}

func encodeAccount(acc *domain.Account) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldAccountNumber: structpb.NewStringValue(acc.Number),
		fieldBalance:       structpb.NewStringValue(acc.Balance.String()),
	}}
}

func decodeAccount(s *structpb.Struct) (string, decimal.Decimal, error) {
	f := s.GetFields()
	balance, err := decimal.NewFromString(f[fieldBalance].GetStringValue())
	if err != nil {
		return "", decimal.Decimal{}, fmt.Errorf("balance: %w", err)
	}
	return f[fieldAccountNumber].GetStringValue(), balance, nil
}

func decodeResult(s *structpb.Struct) *domain.BatchResult {
	f := s.GetFields()
	res := &domain.BatchResult{
		Applied:  int(f[fieldApplied].GetNumberValue()),
		Replayed: f[fieldReplayed].GetBoolValue(),
	}
	if id := f[fieldBatchID].GetStringValue(); id != "" {
		_ = res.BatchID.UnmarshalText([]byte(id))
	}
	return res
}
