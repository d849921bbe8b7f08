package memory

import (
	"errors"
	"sync"

	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

var errCommitterStopped = errors.New("memory store is closed")

// commitRequest 提交請求，透過 result 等待結果
type commitRequest struct {
	entry  *walEntry
	result chan error
}

// committer 單一 goroutine 依序處理提交: 寫 WAL -> 更新狀態 -> 回傳結果
//
// Submit(等待) -> Channel -> run loop -> WAL -> apply -> result channel -> Submit(收到結果)
// WAL 的順序因此與狀態更新的順序一致，重放時可以得到相同結果。
type committer struct {
	wal      *wal.WAL
	apply    func(*walEntry)
	requests chan *commitRequest
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
	// Pool 減少 GC 壓力
	pool sync.Pool
}

func newCommitter(w *wal.WAL, apply func(*walEntry)) *committer {
	c := &committer{
		wal:      w,
		apply:    apply,
		requests: make(chan *commitRequest),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		pool: sync.Pool{
			New: func() any {
				return &commitRequest{result: make(chan error, 1)}
			},
		},
	}
	go c.run()
	return c
}

// submit 送出提交並等待結果
//
// 一旦送出就一定等到結果，不因 ctx 取消而放棄，避免呼叫端以為失敗但狀態其實已套用。
func (c *committer) submit(entry *walEntry) error {
	req := c.pool.Get().(*commitRequest)
	req.entry = entry

	select {
	case c.requests <- req:
	case <-c.done:
		req.entry = nil
		c.pool.Put(req)
		return errCommitterStopped
	}

	err := <-req.result
	req.entry = nil
	c.pool.Put(req)
	return err
}

func (c *committer) run() {
	defer close(c.done)
	for {
		select {
		case <-c.stop:
			// 收到關閉信號，把剩下的提交處理完
			c.drain()
			return
		case req := <-c.requests:
			c.process(req)
		}
	}
}

func (c *committer) drain() {
	for {
		select {
		case req := <-c.requests:
			c.process(req)
		default:
			return
		}
	}
}

func (c *committer) process(req *commitRequest) {
	// 1. 寫入 WAL (Critical Path)，失敗則不套用
	if c.wal != nil {
		if err := c.wal.Write(req.entry); err != nil {
			req.result <- err
			return
		}
	}
	// 2. 更新記憶體狀態
	c.apply(req.entry)
	req.result <- nil
}

// close 停止 run loop，等待處理中的提交完成
func (c *committer) close() {
	c.once.Do(func() {
		close(c.stop)
	})
	<-c.done
}
