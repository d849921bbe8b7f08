package domain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"not found", fmt.Errorf("transaction 0: %w", domain.ErrAccountNotFound), domain.CodeAccountNotFound},
		{"insufficient typed", &domain.InsufficientFundsError{AccountNumber: "x"}, domain.CodeInsufficientFunds},
		{"invalid amount", domain.ErrInvalidAmount, domain.CodeInvalidAmount},
		{"invalid kind", domain.ErrInvalidTransactionType, domain.CodeInvalidTransaction},
		{"exists", domain.ErrAccountExists, domain.CodeAccountExists},
		{"lock timeout", domain.NewLockTimeoutError("find account", context.DeadlineExceeded), domain.CodeLockTimeout},
		{"infrastructure", domain.NewInfrastructureError("save", errors.New("conn reset")), domain.CodeInfrastructureFailure},
		{"processing", &domain.TransactionProcessingError{AccountNumber: "x", Err: errors.New("boom")}, domain.CodeProcessingError},
		{"unknown", errors.New("boom"), domain.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.Code(tt.err))
		})
	}
}

func TestLockTimeoutIsInfrastructure(t *testing.T) {
	err := domain.NewLockTimeoutError("find account for update", errors.New("canceling statement due to lock timeout"))

	assert.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.ErrorIs(t, err, domain.ErrInfrastructure)
	assert.Contains(t, err.Error(), "find account for update")
}

func TestNewInfrastructureErrorDoesNotDoubleWrap(t *testing.T) {
	assert.Nil(t, domain.NewInfrastructureError("op", nil))

	inner := domain.NewInfrastructureError("inner", errors.New("disk full"))
	outer := domain.NewInfrastructureError("outer", inner)
	assert.Same(t, inner, outer)
}

func TestIsClassified(t *testing.T) {
	assert.True(t, domain.IsClassified(domain.ErrAccountNotFound))
	assert.True(t, domain.IsClassified(&domain.InsufficientFundsError{}))
	assert.True(t, domain.IsClassified(domain.NewInfrastructureError("op", errors.New("x"))))
	assert.True(t, domain.IsClassified(domain.ErrNoUnitOfWork))
	assert.False(t, domain.IsClassified(errors.New("something else")))

	assert.True(t, domain.IsBusinessError(domain.ErrInvalidAmount))
	assert.False(t, domain.IsBusinessError(domain.ErrLockTimeout))
}

func TestTransactionProcessingErrorUnwraps(t *testing.T) {
	cause := errors.New("unexpected")
	err := &domain.TransactionProcessingError{AccountNumber: "1001-1", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "1001-1")
}
