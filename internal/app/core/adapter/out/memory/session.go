package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

var errNilAccount = errors.New("nil account")

// txn 一個 unit of work 的暫存狀態
type txn struct {
	held    map[string]func()
	staged  map[string]*domain.Account
	order   []string
	batches []walBatch
	records []domain.TransactionRecord
}

func newTxn() *txn {
	return &txn{
		held:   make(map[string]func()),
		staged: make(map[string]*domain.Account),
	}
}

func (t *txn) stage(a *domain.Account) {
	if _, ok := t.staged[a.Number]; !ok {
		t.order = append(t.order, a.Number)
	}
	t.staged[a.Number] = a
}

func (t *txn) releaseAll() {
	for key, release := range t.held {
		release()
		delete(t.held, key)
	}
}

// entry 轉成 WAL 紀錄，沒有任何寫入時回傳 nil
func (t *txn) entry() *walEntry {
	if len(t.staged) == 0 && len(t.batches) == 0 && len(t.records) == 0 {
		return nil
	}
	e := &walEntry{
		Accounts: make([]domain.Account, 0, len(t.order)),
		Batches:  t.batches,
		Records:  t.records,
	}
	for _, number := range t.order {
		e.Accounts = append(e.Accounts, *t.staged[number])
	}
	return e
}

// session 同時實作 UnitOfWork / AccountStore / Journal
//
// tx 為 nil 時是非交易的讀取視圖，寫入會各自包成一次 unit of work。
type session struct {
	store *Store
	tx    *txn
}

func (u *session) Do(ctx context.Context, fn func(uow usecase.UnitOfWork) error) error {
	if u.tx != nil {
		return fn(u)
	}
	return u.store.Do(ctx, fn)
}

func (u *session) Accounts() usecase.AccountStore { return u }

func (u *session) Journal() usecase.Journal { return u }

func accountKey(number string) string { return "account:" + number }

func batchKey(ref string) string { return "batch:" + ref }

// lock 取得 key 的排他鎖，同一個 unit of work 重複取得不會阻塞
func (u *session) lock(ctx context.Context, key string) error {
	if _, ok := u.tx.held[key]; ok {
		return nil
	}
	release, err := u.store.locks.acquire(ctx, key, u.store.lockTimeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.NewLockTimeoutError("acquire "+key, err)
		}
		return domain.NewInfrastructureError("acquire "+key, err)
	}
	u.tx.held[key] = release
	return nil
}

// current 先看本次 unit of work 暫存的寫入，再看已提交的狀態
func (u *session) current(number string) (*domain.Account, bool) {
	if u.tx != nil {
		if a, ok := u.tx.staged[number]; ok {
			return a.Clone(), true
		}
	}
	return u.store.committed(number)
}

func (u *session) FindByNumber(ctx context.Context, number string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewInfrastructureError("find account", err)
	}
	a, ok := u.current(number)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, number)
	}
	return a, nil
}

func (u *session) FindByNumberForUpdate(ctx context.Context, number string) (*domain.Account, error) {
	if u.tx == nil {
		return nil, domain.ErrNoUnitOfWork
	}
	if err := u.lock(ctx, accountKey(number)); err != nil {
		return nil, err
	}
	a, ok := u.current(number)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, number)
	}
	return a, nil
}

func (u *session) Save(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	if account == nil {
		return nil, domain.NewInfrastructureError("save account", errNilAccount)
	}
	if u.tx == nil {
		var saved *domain.Account
		err := u.store.Do(ctx, func(uow usecase.UnitOfWork) error {
			var err error
			saved, err = uow.Accounts().Save(ctx, account)
			return err
		})
		return saved, err
	}

	// 寫入前一律持有該帳戶的鎖，與資料庫 UPDATE 隱含的列鎖相同
	if err := u.lock(ctx, accountKey(account.Number)); err != nil {
		return nil, err
	}
	existing, exists := u.current(account.Number)

	next := account.Clone()
	if next.ID == 0 {
		if exists {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountExists, account.Number)
		}
		next.ID = u.store.nextID.Add(1)
		now := time.Now().UTC()
		if next.CreatedAt.IsZero() {
			next.CreatedAt = now
		}
		next.UpdatedAt = now
		account.ID = next.ID
	} else {
		if !exists || existing.ID != next.ID {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, account.Number)
		}
		next.CreatedAt = existing.CreatedAt
		if next.UpdatedAt.IsZero() {
			next.UpdatedAt = time.Now().UTC()
		}
	}
	u.tx.stage(next)
	return next.Clone(), nil
}

func (u *session) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	_, err := u.FindByNumber(ctx, number)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrAccountNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (u *session) RecordBatch(ctx context.Context, batch *domain.Batch) error {
	if u.tx == nil {
		return u.store.Do(ctx, func(uow usecase.UnitOfWork) error {
			return uow.Journal().RecordBatch(ctx, batch)
		})
	}
	if batch.Ref != "" {
		// 相同 ref 的並行批次在這裡排隊，後到者等前者結束後才判斷是否重複
		if err := u.lock(ctx, batchKey(batch.Ref)); err != nil {
			return err
		}
		if u.store.refCommitted(batch.Ref) {
			return domain.ErrBatchReplayed
		}
		for _, b := range u.tx.batches {
			if b.Ref == batch.Ref {
				return domain.ErrBatchReplayed
			}
		}
	}
	u.tx.batches = append(u.tx.batches, walBatch{ID: batch.ID, Ref: batch.Ref})
	return nil
}

func (u *session) Append(ctx context.Context, record *domain.TransactionRecord) error {
	if u.tx == nil {
		return u.store.Do(ctx, func(uow usecase.UnitOfWork) error {
			return uow.Journal().Append(ctx, record)
		})
	}
	u.tx.records = append(u.tx.records, *record)
	return nil
}

var (
	_ usecase.UnitOfWork   = (*session)(nil)
	_ usecase.AccountStore = (*session)(nil)
	_ usecase.Journal      = (*session)(nil)
)
