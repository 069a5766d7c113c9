package service

import (
	"strings"
	"sync"

	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"

	"cex-ledger/biz/model"
)

type rankKey struct {
	cap    decimal.Decimal
	hasCap bool
	symbol string
}

func rankKeyOf(a *model.Asset) rankKey {
	return rankKey{cap: a.MarketCap.Decimal, hasCap: a.MarketCap.Valid, symbol: a.Symbol}
}

// 跳表市值比较器：市值降序，无市值排最后，同市值按 symbol
type marketCapComparator struct{}

func (marketCapComparator) Compare(l, r interface{}) int {
	lk, rk := l.(rankKey), r.(rankKey)
	if lk.hasCap != rk.hasCap {
		if lk.hasCap {
			return -1
		}
		return 1
	}
	if lk.hasCap {
		if c := rk.cap.Cmp(lk.cap); c != 0 {
			return c
		}
	}
	return strings.Compare(lk.symbol, rk.symbol)
}

// 排序完全由 Compare 决定
func (marketCapComparator) CalcScore(interface{}) float64 {
	return 0
}

// marketCapRank 资产市值排名索引
type marketCapRank struct {
	mu   sync.RWMutex
	list *skiplist.SkipList
	keys map[string]rankKey
}

func newMarketCapRank() *marketCapRank {
	return &marketCapRank{list: skiplist.New(marketCapComparator{}), keys: make(map[string]rankKey)}
}

func (r *marketCapRank) Reset(assets []*model.Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = skiplist.New(marketCapComparator{})
	r.keys = make(map[string]rankKey, len(assets))
	for _, a := range assets {
		r.setLocked(a)
	}
}

func (r *marketCapRank) Set(a *model.Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setLocked(a)
}

func (r *marketCapRank) setLocked(a *model.Asset) {
	if old, ok := r.keys[a.Symbol]; ok {
		r.list.Remove(old)
	}
	k := rankKeyOf(a)
	r.keys[a.Symbol] = k
	r.list.Set(k, a.Clone())
}

func (r *marketCapRank) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.list.Len()
}

// Ordered 按排名返回快照
func (r *marketCapRank) Ordered() []*model.Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]*model.Asset, 0, r.list.Len())
	for elem := r.list.Front(); elem != nil; elem = elem.Next() {
		res = append(res, elem.Value.(*model.Asset).Clone())
	}
	return res
}
