package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"cex-ledger/biz/errs"
)

// 锁键
func WalletKey(userID string, assetID uint64) string {
	return "wallet:" + userID + ":" + strconv.FormatUint(assetID, 10)
}

func PoolKey(pairKey string) string {
	return "pool:" + pairKey
}

func AssetKey(symbol string) string {
	return "asset:" + symbol
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// Locker 按键互斥；多键按字典序获取，避免交叉等待
type Locker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
	timeout time.Duration
}

func NewLocker(timeout time.Duration) *Locker {
	return &Locker{entries: make(map[string]*lockEntry), timeout: timeout}
}

// Acquire 获取全部键，超时返回 errs.Contention；成功时返回释放函数
func (l *Locker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	lockCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	held := make([]*lockEntry, 0, len(keys))
	for _, k := range keys {
		e := l.ref(k)
		if err := e.sem.Acquire(lockCtx, 1); err != nil {
			l.unref(k, e)
			l.releaseAll(keys[:len(held)], held)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, errs.Wrap(errs.Contention, fmt.Sprintf("lock %s not acquired within %s", k, l.timeout), err)
			}
			return nil, err
		}
		held = append(held, e)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.releaseAll(keys, held) })
	}, nil
}

func (l *Locker) releaseAll(keys []string, held []*lockEntry) {
	for i := len(held) - 1; i >= 0; i-- {
		held[i].sem.Release(1)
		l.unref(keys[i], held[i])
	}
}

func (l *Locker) ref(k string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[k]
	if !ok {
		e = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.entries[k] = e
	}
	e.refs++
	return e
}

func (l *Locker) unref(k string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, k)
	}
}

// size 当前持有或等待中的键数
func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	out = append(out, keys...)
	sort.Strings(out)
	n := 0
	for i, k := range out {
		if i > 0 && k == out[n-1] {
			continue
		}
		out[n] = k
		n++
	}
	return out[:n]
}
