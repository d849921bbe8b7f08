package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

func TestParseTransactionKind(t *testing.T) {
	k, err := domain.ParseTransactionKind("debit")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionKindDebit, k)

	k, err = domain.ParseTransactionKind("CREDIT")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionKindCredit, k)

	k, err = domain.ParseTransactionKind("TRANSFER")
	assert.ErrorIs(t, err, domain.ErrInvalidTransactionType)
	assert.Equal(t, domain.TransactionKindUnknown, k)
	assert.False(t, k.Valid())
}

func TestTransactionRequestJSON(t *testing.T) {
	var reqs []domain.TransactionRequest
	err := json.Unmarshal([]byte(`[
		{"accountNumber":"1001-1","amount":"100.50","kind":"CREDIT"},
		{"accountNumber":"1001-1","amount":25,"kind":"bogus"}
	]`), &reqs)
	require.NoError(t, err)
	require.Len(t, reqs, 2)

	assert.Equal(t, domain.TransactionKindCredit, reqs[0].Kind)
	assert.Equal(t, "100.5", reqs[0].Amount.String())
	assert.Equal(t, domain.TransactionKindUnknown, reqs[1].Kind)

	out, err := json.Marshal(reqs[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"accountNumber":"1001-1","amount":"100.5","kind":"CREDIT"}`, string(out))
}

func TestNewBatch(t *testing.T) {
	b := domain.NewBatch("  ref-1 ", []domain.TransactionRequest{{AccountNumber: "1001-1"}})
	assert.Equal(t, "ref-1", b.Ref)
	assert.Equal(t, 1, b.Size())
	assert.NotEmpty(t, b.ID.String())

	var nilBatch *domain.Batch
	assert.Zero(t, nilBatch.Size())
}
