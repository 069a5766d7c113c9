// Package memory 进程内 Store：写入先暂存，提交时在写锁内整体校验并生效
package memory

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"

	"cex-ledger/biz/dal"
	"cex-ledger/biz/errs"
	"cex-ledger/biz/model"
)

type Store struct {
	mu sync.RWMutex

	assets    *table[model.Asset]
	wallets   *table[model.Wallet]
	txs       *table[model.Transaction]
	orders    *table[model.Order]
	pools     *table[model.LiquidityPool]
	positions *table[model.LiquidityPosition]
	swaps     *table[model.Swap]
}

var _ dal.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		assets: newTable("asset", func(a *model.Asset) uint64 { return a.ID }, (*model.Asset).Clone).
			withKey(func(a *model.Asset) string { return a.Symbol }),
		wallets: newTable("wallet", func(w *model.Wallet) uint64 { return w.ID }, stripWallet).
			withKey(func(w *model.Wallet) string { return walletKey(w.UserID, w.AssetID) }).
			withVersion(func(w *model.Wallet) int64 { return w.Version }, func(w *model.Wallet) { w.Version++ }),
		txs: newTable("transaction", func(t *model.Transaction) uint64 { return t.ID }, stripTransaction).
			withVersion(func(t *model.Transaction) int64 { return t.Version }, func(t *model.Transaction) { t.Version++ }),
		orders: newTable("order", func(o *model.Order) uint64 { return o.ID }, stripOrder).
			withVersion(func(o *model.Order) int64 { return o.Version }, func(o *model.Order) { o.Version++ }),
		pools: newTable("pool", func(p *model.LiquidityPool) uint64 { return p.ID }, stripPool).
			withKey(func(p *model.LiquidityPool) string { return p.PairKey }).
			withVersion(func(p *model.LiquidityPool) int64 { return p.Version }, func(p *model.LiquidityPool) { p.Version++ }),
		positions: newTable("position", func(p *model.LiquidityPosition) uint64 { return p.ID }, (*model.LiquidityPosition).Clone).
			withKey(func(p *model.LiquidityPosition) string { return positionKey(p.UserID, p.PoolID) }),
		swaps: newTable("swap", func(s *model.Swap) uint64 { return s.ID }, (*model.Swap).Clone),
	}
}

func (s *Store) View(ctx context.Context, fn func(tx dal.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s.begin())
}

func (s *Store) Update(ctx context.Context, fn func(tx dal.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := s.begin()
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *Store) UpsertAssets(ctx context.Context, assets []*model.Asset) error {
	return s.Update(ctx, func(tx dal.Tx) error {
		for _, a := range assets {
			cur, err := tx.FindAssetBySymbol(ctx, a.Symbol)
			if err != nil {
				return err
			}
			// 与 pg 的 ON CONFLICT 一致：ID 与图标创建后不变
			if cur != nil {
				a.ID, a.Icon = cur.ID, cur.Icon
			}
			if err := tx.SaveAsset(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Close() error { return nil }

func (s *Store) begin() *memTx {
	return &memTx{
		s:         s,
		assets:    newStaged(s.assets),
		wallets:   newStaged(s.wallets),
		txs:       newStaged(s.txs),
		orders:    newStaged(s.orders),
		pools:     newStaged(s.pools),
		positions: newStaged(s.positions),
		swaps:     newStaged(s.swaps),
	}
}

func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range tx.validators() {
		if err := v(); err != nil {
			return err
		}
	}
	tx.assets.apply()
	tx.wallets.apply()
	tx.txs.apply()
	tx.orders.apply()
	tx.pools.apply()
	tx.positions.apply()
	tx.swaps.apply()
	return nil
}

type memTx struct {
	s *Store

	assets    *staged[model.Asset]
	wallets   *staged[model.Wallet]
	txs       *staged[model.Transaction]
	orders    *staged[model.Order]
	pools     *staged[model.LiquidityPool]
	positions *staged[model.LiquidityPosition]
	swaps     *staged[model.Swap]
}

func (t *memTx) validators() []func() error {
	return []func() error{
		t.assets.validate, t.wallets.validate, t.txs.validate, t.orders.validate,
		t.pools.validate, t.positions.validate, t.swaps.validate,
	}
}

func (t *memTx) rlock() func() {
	t.s.mu.RLock()
	return t.s.mu.RUnlock
}

// ---- assets ----

func (t *memTx) FindAssetByID(_ context.Context, id uint64) (*model.Asset, error) {
	defer t.rlock()()
	return t.assets.get(id), nil
}

func (t *memTx) FindAssetBySymbol(_ context.Context, symbol string) (*model.Asset, error) {
	defer t.rlock()()
	return t.assets.getByKey(symbol), nil
}

func (t *memTx) ListAssets(_ context.Context) ([]*model.Asset, error) {
	defer t.rlock()()
	res := t.assets.list(func(*model.Asset) bool { return true })
	sort.Slice(res, func(i, j int) bool { return res[i].Symbol < res[j].Symbol })
	return res, nil
}

func (t *memTx) SaveAsset(_ context.Context, a *model.Asset) error {
	defer t.rlock()()
	if t.assets.current(a.ID) == nil {
		return t.assets.insert(a)
	}
	return t.assets.update(a)
}

// ---- wallets ----

func (t *memTx) FindWallet(_ context.Context, userID string, assetID uint64) (*model.Wallet, error) {
	defer t.rlock()()
	return t.wallets.getByKey(walletKey(userID, assetID)), nil
}

func (t *memTx) FindWalletByID(_ context.Context, id uint64) (*model.Wallet, error) {
	defer t.rlock()()
	return t.wallets.get(id), nil
}

func (t *memTx) ListWallets(_ context.Context, userID string) ([]*model.Wallet, error) {
	defer t.rlock()()
	res := t.wallets.list(func(w *model.Wallet) bool { return w.UserID == userID })
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (t *memTx) CreateWallet(_ context.Context, w *model.Wallet) error {
	defer t.rlock()()
	return t.wallets.insert(w)
}

func (t *memTx) SaveWallet(_ context.Context, w *model.Wallet) error {
	defer t.rlock()()
	return t.wallets.update(w)
}

// ---- transactions ----

func (t *memTx) CreateTransaction(_ context.Context, tr *model.Transaction) error {
	defer t.rlock()()
	return t.txs.insert(tr)
}

func (t *memTx) FindTransaction(_ context.Context, id uint64) (*model.Transaction, error) {
	defer t.rlock()()
	return t.txs.get(id), nil
}

func (t *memTx) ListTransactions(_ context.Context, userID string, includeArchived bool) ([]*model.Transaction, error) {
	defer t.rlock()()
	res := t.txs.list(func(tr *model.Transaction) bool {
		return tr.UserID == userID && (includeArchived || !tr.Archived)
	})
	sort.Slice(res, func(i, j int) bool { return newerFirst(res[i].CreatedAt.UnixNano(), res[j].CreatedAt.UnixNano(), res[i].ID, res[j].ID) })
	return res, nil
}

func (t *memTx) UpdateTransactionState(_ context.Context, tr *model.Transaction) error {
	defer t.rlock()()
	cur := t.txs.get(tr.ID)
	if cur == nil {
		return errors.New("transaction " + strconv.FormatUint(tr.ID, 10) + " not found")
	}
	if cur.Version != tr.Version {
		return errs.New(errs.Contention, "transaction "+strconv.FormatUint(tr.ID, 10)+" modified concurrently")
	}
	cur.Status = tr.Status
	cur.Archived = tr.Archived
	cur.CompletedAt = tr.CompletedAt
	if err := t.txs.update(cur); err != nil {
		return err
	}
	tr.Version = cur.Version
	return nil
}

// ---- orders ----

func (t *memTx) CreateOrder(_ context.Context, o *model.Order) error {
	defer t.rlock()()
	return t.orders.insert(o)
}

func (t *memTx) FindOrder(_ context.Context, id uint64) (*model.Order, error) {
	defer t.rlock()()
	return t.orders.get(id), nil
}

func (t *memTx) ListOrders(_ context.Context, userID string) ([]*model.Order, error) {
	defer t.rlock()()
	res := t.orders.list(func(o *model.Order) bool { return o.UserID == userID })
	sort.Slice(res, func(i, j int) bool { return newerFirst(res[i].CreatedAt.UnixNano(), res[j].CreatedAt.UnixNano(), res[i].ID, res[j].ID) })
	return res, nil
}

func (t *memTx) UpdateOrderState(_ context.Context, o *model.Order) error {
	defer t.rlock()()
	cur := t.orders.get(o.ID)
	if cur == nil {
		return errors.New("order " + strconv.FormatUint(o.ID, 10) + " not found")
	}
	if cur.Version != o.Version {
		return errs.New(errs.Contention, "order "+strconv.FormatUint(o.ID, 10)+" modified concurrently")
	}
	cur.Status = o.Status
	cur.TransactionID = o.TransactionID
	cur.CompletedAt = o.CompletedAt
	if err := t.orders.update(cur); err != nil {
		return err
	}
	o.Version = cur.Version
	return nil
}

// ---- pools ----

func (t *memTx) FindPoolByID(_ context.Context, id uint64) (*model.LiquidityPool, error) {
	defer t.rlock()()
	return t.pools.get(id), nil
}

func (t *memTx) FindPoolByPair(_ context.Context, pairKey string) (*model.LiquidityPool, error) {
	defer t.rlock()()
	return t.pools.getByKey(pairKey), nil
}

func (t *memTx) ListPools(_ context.Context) ([]*model.LiquidityPool, error) {
	defer t.rlock()()
	res := t.pools.list(func(*model.LiquidityPool) bool { return true })
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (t *memTx) CreatePool(_ context.Context, p *model.LiquidityPool) error {
	defer t.rlock()()
	return t.pools.insert(p)
}

func (t *memTx) SavePool(_ context.Context, p *model.LiquidityPool) error {
	defer t.rlock()()
	return t.pools.update(p)
}

func (t *memTx) FindPosition(_ context.Context, userID string, poolID uint64) (*model.LiquidityPosition, error) {
	defer t.rlock()()
	return t.positions.getByKey(positionKey(userID, poolID)), nil
}

func (t *memTx) ListPositions(_ context.Context, userID string) ([]*model.LiquidityPosition, error) {
	defer t.rlock()()
	res := t.positions.list(func(p *model.LiquidityPosition) bool { return p.UserID == userID })
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (t *memTx) SavePosition(_ context.Context, p *model.LiquidityPosition) error {
	defer t.rlock()()
	if t.positions.current(p.ID) == nil {
		return t.positions.insert(p)
	}
	return t.positions.update(p)
}

func (t *memTx) CreateSwap(_ context.Context, sw *model.Swap) error {
	defer t.rlock()()
	return t.swaps.insert(sw)
}

func (t *memTx) ListSwaps(_ context.Context, userID string) ([]*model.Swap, error) {
	defer t.rlock()()
	res := t.swaps.list(func(sw *model.Swap) bool { return sw.UserID == userID })
	sort.Slice(res, func(i, j int) bool { return newerFirst(res[i].CreatedAt.UnixNano(), res[j].CreatedAt.UnixNano(), res[i].ID, res[j].ID) })
	return res, nil
}

func walletKey(userID string, assetID uint64) string {
	return userID + "|" + strconv.FormatUint(assetID, 10)
}

func positionKey(userID string, poolID uint64) string {
	return userID + "|" + strconv.FormatUint(poolID, 10)
}

func newerFirst(ti, tj int64, idi, idj uint64) bool {
	if ti != tj {
		return ti > tj
	}
	return idi > idj
}

// 关联字段不入库
func stripWallet(w *model.Wallet) *model.Wallet {
	c := w.Clone()
	c.Asset = nil
	return c
}

func stripTransaction(t *model.Transaction) *model.Transaction {
	c := t.Clone()
	c.Asset = nil
	return c
}

func stripOrder(o *model.Order) *model.Order {
	c := o.Clone()
	c.Asset = nil
	return c
}

func stripPool(p *model.LiquidityPool) *model.LiquidityPool {
	c := p.Clone()
	c.Token0, c.Token1 = nil, nil
	return c
}
