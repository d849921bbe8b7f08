package usecase_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

type mockUoW struct {
	mock.Mock
	accounts *mockAccounts
	journal  *mockJournal
}

func newMockUoW() *mockUoW {
	return &mockUoW{accounts: &mockAccounts{}, journal: &mockJournal{}}
}

func (m *mockUoW) Do(ctx context.Context, fn func(uow usecase.UnitOfWork) error) error {
	m.Called(ctx)
	return fn(m)
}

func (m *mockUoW) Accounts() usecase.AccountStore { return m.accounts }

func (m *mockUoW) Journal() usecase.Journal { return m.journal }

type mockAccounts struct {
	mock.Mock
}

func (m *mockAccounts) FindByNumber(ctx context.Context, number string) (*domain.Account, error) {
	args := m.Called(ctx, number)
	a, _ := args.Get(0).(*domain.Account)
	return a, args.Error(1)
}

func (m *mockAccounts) FindByNumberForUpdate(ctx context.Context, number string) (*domain.Account, error) {
	args := m.Called(ctx, number)
	a, _ := args.Get(0).(*domain.Account)
	return a, args.Error(1)
}

func (m *mockAccounts) Save(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	args := m.Called(ctx, account)
	a, _ := args.Get(0).(*domain.Account)
	return a, args.Error(1)
}

func (m *mockAccounts) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	args := m.Called(ctx, number)
	return args.Bool(0), args.Error(1)
}

type mockJournal struct {
	mock.Mock
}

func (m *mockJournal) RecordBatch(ctx context.Context, batch *domain.Batch) error {
	return m.Called(ctx, batch).Error(0)
}

func (m *mockJournal) Append(ctx context.Context, record *domain.TransactionRecord) error {
	return m.Called(ctx, record).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishBatchApplied(ctx context.Context, event *domain.BatchApplied) error {
	return m.Called(ctx, event).Error(0)
}
