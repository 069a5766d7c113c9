package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"cex-ledger/biz/dal"
	"cex-ledger/biz/dal/memory"
	"cex-ledger/biz/errs"
	"cex-ledger/biz/model"
	"cex-ledger/conf"
)

var testCoins = []conf.BootstrapCoin{
	{Symbol: "USDT", Name: "Tether", Price: "1"},
	{Symbol: "BTC", Name: "Bitcoin", Price: "42897.53"},
	{Symbol: "ETH", Name: "Ethereum", Price: "2280.14"},
	{Symbol: "TKA", Name: "Token A", Price: "1"},
	{Symbol: "TKB", Name: "Token B", Price: "1"},
	{Symbol: "NOPX", Name: "No Price"},
}

type fixture struct {
	ex    *Exchange
	store dal.Store
	kyc   *StaticKYC
	pub   *eventRecorder
}

type fixtureOption func(*Deps)

func withOptions(fn func(*Options)) fixtureOption {
	return func(d *Deps) { fn(&d.Options) }
}

func withStore(s dal.Store) fixtureOption {
	return func(d *Deps) { d.Store = s }
}

func withCache(c dal.Cache) fixtureOption {
	return func(d *Deps) { d.Cache = c }
}

func withHistory(feed HistoryFeed) fixtureOption {
	return func(d *Deps) { d.History = feed }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	kyc := NewStaticKYC(0)
	pub := &eventRecorder{}
	d := Deps{
		Store:       memory.NewStore(),
		Publisher:   pub,
		KYC:         kyc,
		LockTimeout: 2 * time.Second,
		Options:     DefaultOptions(),
	}
	for _, o := range opts {
		o(&d)
	}
	ex := NewExchange(d)
	require.NoError(t, ex.Assets.Bootstrap(context.Background(), testCoins, "USDT"))
	return &fixture{ex: ex, store: d.Store, kyc: kyc, pub: pub}
}

func (f *fixture) asset(t *testing.T, symbol string) *model.Asset {
	t.Helper()
	a, err := f.ex.Assets.GetBySymbol(context.Background(), symbol)
	require.NoError(t, err)
	return a
}

func (f *fixture) fund(t *testing.T, userID, symbol, amount string) {
	t.Helper()
	_, err := f.ex.Deposit(context.Background(), userID, f.asset(t, symbol).ID, decimal.RequireFromString(amount))
	require.NoError(t, err)
}

// balance 钱包不存在时返回 (0, false)
func (f *fixture) balance(t *testing.T, userID, symbol string) (decimal.Decimal, bool) {
	t.Helper()
	assetID := f.asset(t, symbol).ID
	var w *model.Wallet
	require.NoError(t, f.store.View(context.Background(), func(tx dal.Tx) error {
		var err error
		w, err = tx.FindWallet(context.Background(), userID, assetID)
		return err
	}))
	if w == nil {
		return decimal.Zero, false
	}
	return w.Balance, true
}

func (f *fixture) mustBalance(t *testing.T, userID, symbol string) decimal.Decimal {
	t.Helper()
	b, _ := f.balance(t, userID, symbol)
	return b
}

type eventRecorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *eventRecorder) Publish(_ context.Context, evt model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *eventRecorder) count(typ model.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

var errInjected = errors.New("injected failure")

// faultStore 在第 failOn 次 SaveWallet 时注入失败（仅 armed 后计数）
type faultStore struct {
	dal.Store
	armed  atomic.Bool
	failOn int32
	saves  atomic.Int32
}

func (s *faultStore) Update(ctx context.Context, fn func(tx dal.Tx) error) error {
	return s.Store.Update(ctx, func(tx dal.Tx) error {
		return fn(&faultTx{Tx: tx, s: s})
	})
}

type faultTx struct {
	dal.Tx
	s *faultStore
}

func (t *faultTx) SaveWallet(ctx context.Context, w *model.Wallet) error {
	if t.s.armed.Load() && t.s.saves.Add(1) == t.s.failOn {
		return errInjected
	}
	return t.Tx.SaveWallet(ctx, w)
}

// contentionStore 前 n 次 Update 返回 Contention
type contentionStore struct {
	dal.Store
	remaining atomic.Int32
	calls     atomic.Int32
}

func (s *contentionStore) Update(ctx context.Context, fn func(tx dal.Tx) error) error {
	s.calls.Add(1)
	if s.remaining.Add(-1) >= 0 {
		return contentionErr()
	}
	return s.Store.Update(ctx, fn)
}

// memCache 进程内 dal.Cache
type memCache struct {
	dal.NopCache
	mu      sync.Mutex
	pending map[string]map[uint64]bool
}

func newMemCache() *memCache {
	return &memCache{pending: make(map[string]map[uint64]bool)}
}

func (c *memCache) AddPendingOrder(_ context.Context, userID string, orderID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[userID] == nil {
		c.pending[userID] = make(map[uint64]bool)
	}
	c.pending[userID][orderID] = true
	return nil
}

func (c *memCache) RemovePendingOrder(_ context.Context, userID string, orderID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending[userID], orderID)
	return nil
}

func (c *memCache) PendingOrders(_ context.Context, userID string) ([]uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []uint64
	for id := range c.pending[userID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func contentionErr() error {
	return errs.New(errs.Contention, "simulated lock timeout")
}
