package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const lockShards = 64

// lockTable 以 key 為單位的排他鎖，依 hash 分片以降低 map 競爭
//
// 每個 key 的鎖是容量 1 的 channel，等待時可以同時監聽 ctx，
// 因此可以有上限地等待。沒有人持有或等待的 key 會被移除。
type lockTable struct {
	shards [lockShards]lockShard
}

type lockShard struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func newLockTable() *lockTable {
	lt := &lockTable{}
	for i := range lt.shards {
		lt.shards[i].entries = make(map[string]*lockEntry)
	}
	return lt
}

func (lt *lockTable) shard(key string) *lockShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &lt.shards[h.Sum32()%lockShards]
}

// acquire 取得 key 的鎖，timeout > 0 時最多等待 timeout
//
// 回傳的 release 可重複呼叫，只有第一次生效。
func (lt *lockTable) acquire(ctx context.Context, key string, timeout time.Duration) (release func(), err error) {
	sh := lt.shard(key)

	sh.mu.Lock()
	e, ok := sh.entries[key]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		sh.entries[key] = e
	}
	e.refs++
	sh.mu.Unlock()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case e.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.sem
				lt.unref(sh, key, e)
			})
		}, nil
	case <-ctx.Done():
		lt.unref(sh, key, e)
		return nil, ctx.Err()
	}
}

func (lt *lockTable) unref(sh *lockShard, key string, e *lockEntry) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(sh.entries, key)
	}
}

// size 目前仍有持有者或等待者的 key 數量
func (lt *lockTable) size() int {
	n := 0
	for i := range lt.shards {
		sh := &lt.shards[i]
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
