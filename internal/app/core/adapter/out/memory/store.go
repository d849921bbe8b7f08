package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

// walEntry 一次提交的內容 (帳戶的最新狀態、批次、交易紀錄)
type walEntry struct {
	Accounts []domain.Account           `json:"accounts,omitempty"`
	Batches  []walBatch                 `json:"batches,omitempty"`
	Records  []domain.TransactionRecord `json:"records,omitempty"`
}

type walBatch struct {
	ID  uuid.UUID `json:"id"`
	Ref string    `json:"ref,omitempty"`
}

// Store 是記憶體版的帳戶儲存層
//
// 結構:
//
//	accounts: 已提交的帳戶資料，以帳號為 key
//	refs: 已提交批次的 ref
//	locks: 帳戶排他鎖，持有到 unit of work 結束
//	committer: 依序寫 WAL 並套用提交
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	refs     map[string]uuid.UUID
	records  []domain.TransactionRecord
	nextID   atomic.Int64

	locks       *lockTable
	lockTimeout time.Duration
	// Write-Ahead Logging
	wal       *wal.WAL
	committer *committer
	logger    *slog.Logger
}

// Option 設定 Store
type Option func(*Store)

// WithWAL 啟用 WAL，NewStore 會先從 WAL 恢復狀態
func WithWAL(w *wal.WAL) Option {
	return func(s *Store) {
		s.wal = w
	}
}

// WithLockTimeout 等待帳戶鎖的上限，0 表示只受 ctx 限制
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.lockTimeout = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore 建立一個新的 Store 實例
//
// 回傳:
//
//	*Store: Store 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewStore(opts ...Option) (*Store, error) {
	s := &Store{
		accounts: make(map[string]*domain.Account),
		refs:     make(map[string]uuid.UUID),
		locks:    newLockTable(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.wal != nil {
		if err := s.recoverFromWAL(); err != nil {
			return nil, fmt.Errorf("recover from wal: %w", err)
		}
	}
	s.committer = newCommitter(s.wal, s.apply)
	return s, nil
}

// recoverFromWAL 從 WAL 檔案恢復狀態，只在 NewStore 呼叫 (單執行緒)
func (s *Store) recoverFromWAL() error {
	entries := 0
	err := s.wal.ReadAll(func(jsonRaw []byte) error {
		var e walEntry
		if err := json.Unmarshal(jsonRaw, &e); err != nil {
			return err
		}
		s.apply(&e)
		entries++
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("memory store recovered from wal",
		slog.Int("entries", entries), slog.Int("accounts", len(s.accounts)))
	return nil
}

// apply 套用一次提交，committer 與恢復流程共用
func (s *Store) apply(e *walEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range e.Accounts {
		a := e.Accounts[i]
		s.accounts[a.Number] = &a
		if a.ID > s.nextID.Load() {
			s.nextID.Store(a.ID)
		}
	}
	for _, b := range e.Batches {
		if b.Ref != "" {
			s.refs[b.Ref] = b.ID
		}
	}
	s.records = append(s.records, e.Records...)
}

// Close 停止 committer；WAL 由建立者關閉
func (s *Store) Close() error {
	s.committer.close()
	return nil
}

// Do 開啟 unit of work
func (s *Store) Do(ctx context.Context, fn func(uow usecase.UnitOfWork) error) error {
	sess := &session{store: s, tx: newTxn()}
	defer sess.tx.releaseAll()

	if err := fn(sess); err != nil {
		// 回滾: 直接丟棄暫存的寫入
		return err
	}
	return s.commit(sess.tx)
}

func (s *Store) Accounts() usecase.AccountStore {
	return &session{store: s}
}

func (s *Store) Journal() usecase.Journal {
	return &session{store: s}
}

func (s *Store) commit(tx *txn) error {
	entry := tx.entry()
	if entry == nil {
		return nil
	}
	if err := s.committer.submit(entry); err != nil {
		return domain.NewInfrastructureError("commit", err)
	}
	return nil
}

// Records 回傳已提交的交易紀錄副本
func (s *Store) Records() []domain.TransactionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TransactionRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) committed(number string) (*domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[number]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

func (s *Store) refCommitted(ref string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.refs[ref]
	return ok
}

var _ usecase.UnitOfWork = (*Store)(nil)
