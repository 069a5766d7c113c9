package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cex-ledger/biz/audit"
	"cex-ledger/biz/dal"
	"cex-ledger/biz/engine"
	"cex-ledger/biz/errs"
	"cex-ledger/biz/model"
	"cex-ledger/util"
)

type SwapRequest struct {
	UserID     string
	PoolID     uint64
	TokenInID  uint64
	TokenOutID uint64
	AmountIn   decimal.Decimal
}

type LiquidityResult struct {
	Pool     *model.LiquidityPool     `json:"pool"`
	Position *model.LiquidityPosition `json:"position"`
	Share    decimal.Decimal          `json:"share"`
}

// PoolService 恒定乘积做市；同一交易对的全部操作在池锁内串行
type PoolService struct {
	store   dal.Store
	locker  *engine.Locker
	wallets *WalletService
	journal *audit.Journal
	pub     engine.Publisher
	opts    Options
}

func NewPoolService(store dal.Store, locker *engine.Locker, wallets *WalletService, journal *audit.Journal, pub engine.Publisher, opts Options) *PoolService {
	if pub == nil {
		pub = engine.NopPublisher{}
	}
	return &PoolService{store: store, locker: locker, wallets: wallets, journal: journal, pub: pub, opts: opts}
}

// CreatePool 创建池并注入初始流动性，创建者获得 √(amt0·amt1) 份额
func (s *PoolService) CreatePool(ctx context.Context, userID string, token0ID, token1ID uint64, amt0, amt1 decimal.Decimal) (*LiquidityResult, error) {
	if userID == "" {
		return nil, errs.New(errs.InvalidRequest, "user id is required")
	}
	if token0ID == token1ID {
		return nil, errs.New(errs.InvalidRequest, "pool tokens must differ")
	}
	if amt0.Sign() <= 0 || amt1.Sign() <= 0 {
		return nil, errs.New(errs.InvalidAmount, "initial amounts must be positive")
	}
	pairKey := model.PairKey(token0ID, token1ID)
	release, err := s.locker.Acquire(ctx,
		engine.PoolKey(pairKey), engine.WalletKey(userID, token0ID), engine.WalletKey(userID, token1ID))
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		res   = &LiquidityResult{}
		moves []audit.Movement
	)
	err = s.store.Update(ctx, func(tx dal.Tx) error {
		moves = moves[:0]
		token0, err := findAsset(ctx, tx, token0ID)
		if err != nil {
			return err
		}
		token1, err := findAsset(ctx, tx, token1ID)
		if err != nil {
			return err
		}
		existing, err := tx.FindPoolByPair(ctx, pairKey)
		if err != nil {
			return err
		}
		if existing != nil {
			return errs.New(errs.PoolExists, fmt.Sprintf("pool for %s/%s already exists", token0.Symbol, token1.Symbol))
		}

		if moves, err = s.debitPair(ctx, tx, userID, token0ID, token1ID, amt0, amt1, moves); err != nil {
			return err
		}

		id, err := util.NextID()
		if err != nil {
			return errs.Wrap(errs.Internal, "generate pool id", err)
		}
		now := time.Now()
		share := liquidityShare(amt0, amt1)
		pool := &model.LiquidityPool{
			ID:             id,
			Token0ID:       token0ID,
			Token1ID:       token1ID,
			PairKey:        pairKey,
			Token0Reserve:  amt0,
			Token1Reserve:  amt1,
			Fee:            s.opts.PoolFee,
			TotalLiquidity: share,
			CreatedAt:      now,
			LastUpdated:    now,
		}
		if err := tx.CreatePool(ctx, pool); err != nil {
			return poolDuplicate(err, token0, token1)
		}
		pos, err := s.mergePosition(ctx, tx, userID, pool.ID, share, now)
		if err != nil {
			return err
		}
		pool.Token0, pool.Token1 = token0, token1
		res.Pool, res.Position, res.Share = pool, pos, share
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.journal.Record("pool.create", res.Pool.ID, moves...)
	s.pub.Publish(ctx, model.NewEvent(model.EventPoolCreated, model.SwapChannel(res.Pool.ID), userID, res.Pool))
	return res, nil
}

// AddLiquidity 比例偏差超过容忍度时拒绝
func (s *PoolService) AddLiquidity(ctx context.Context, userID string, poolID uint64, amt0, amt1 decimal.Decimal) (*LiquidityResult, error) {
	if userID == "" {
		return nil, errs.New(errs.InvalidRequest, "user id is required")
	}
	if amt0.Sign() <= 0 || amt1.Sign() <= 0 {
		return nil, errs.New(errs.InvalidAmount, "liquidity amounts must be positive")
	}
	pool, err := s.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	release, err := s.locker.Acquire(ctx,
		engine.PoolKey(pool.PairKey), engine.WalletKey(userID, pool.Token0ID), engine.WalletKey(userID, pool.Token1ID))
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		res   = &LiquidityResult{}
		moves []audit.Movement
	)
	err = s.store.Update(ctx, func(tx dal.Tx) error {
		moves = moves[:0]
		pool, err := findPool(ctx, tx, poolID)
		if err != nil {
			return err
		}
		dev := ratioDeviation(amt0, amt1, pool.Token0Reserve, pool.Token1Reserve)
		if dev.GreaterThan(s.opts.RatioTolerance) {
			return errs.New(errs.RatioMismatch, fmt.Sprintf("deposit ratio deviates %s from pool ratio (max %s)",
				dev.StringFixed(4), s.opts.RatioTolerance.String()))
		}
		if moves, err = s.debitPair(ctx, tx, userID, pool.Token0ID, pool.Token1ID, amt0, amt1, moves); err != nil {
			return err
		}

		now := time.Now()
		share := liquidityShare(amt0, amt1)
		pool.Token0Reserve = pool.Token0Reserve.Add(amt0)
		pool.Token1Reserve = pool.Token1Reserve.Add(amt1)
		pool.TotalLiquidity = pool.TotalLiquidity.Add(share)
		pool.LastUpdated = now
		if err := tx.SavePool(ctx, pool); err != nil {
			return err
		}
		pos, err := s.mergePosition(ctx, tx, userID, pool.ID, share, now)
		if err != nil {
			return err
		}
		res.Pool, res.Position, res.Share = pool, pos, share
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.journal.Record("pool.add_liquidity", res.Pool.ID, moves...)
	s.pub.Publish(ctx, model.NewEvent(model.EventLiquidityAdded, model.SwapChannel(res.Pool.ID), userID, res))
	return res, nil
}

// Swap 全额 amountIn 计入输入侧储备，手续费体现在输出量公式中
func (s *PoolService) Swap(ctx context.Context, req SwapRequest) (*model.Swap, error) {
	if req.UserID == "" {
		return nil, errs.New(errs.InvalidRequest, "user id is required")
	}
	if req.AmountIn.Sign() <= 0 {
		return nil, errs.New(errs.InvalidAmount, "amount in must be positive")
	}
	pool, err := s.GetPool(ctx, req.PoolID)
	if err != nil {
		return nil, err
	}
	if err := checkPair(pool, req.TokenInID, req.TokenOutID); err != nil {
		return nil, err
	}
	release, err := s.locker.Acquire(ctx,
		engine.PoolKey(pool.PairKey), engine.WalletKey(req.UserID, req.TokenInID), engine.WalletKey(req.UserID, req.TokenOutID))
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		swap  *model.Swap
		moves []audit.Movement
	)
	err = s.store.Update(ctx, func(tx dal.Tx) error {
		moves = moves[:0]
		pool, err := findPool(ctx, tx, req.PoolID)
		if err != nil {
			return err
		}
		reserveIn, reserveOut := pool.Token0Reserve, pool.Token1Reserve
		if req.TokenInID == pool.Token1ID {
			reserveIn, reserveOut = pool.Token1Reserve, pool.Token0Reserve
		}
		q := computeSwap(reserveIn, reserveOut, req.AmountIn, pool.Fee)
		if q.AmountOut.Sign() <= 0 {
			return errs.New(errs.ZeroOutput, "swap output rounds to zero")
		}

		in, err := tx.FindWallet(ctx, req.UserID, req.TokenInID)
		if err != nil {
			return err
		}
		if in == nil {
			return errs.New(errs.InsufficientBalance, "no wallet for input token")
		}
		if in, err = s.wallets.Debit(ctx, tx, in.ID, req.AmountIn); err != nil {
			return err
		}
		moves = append(moves, movement(in, req.AmountIn.Neg()))
		out, err := s.wallets.GetOrCreateWallet(ctx, tx, req.UserID, req.TokenOutID)
		if err != nil {
			return err
		}
		if out, err = s.wallets.Credit(ctx, tx, out.ID, q.AmountOut); err != nil {
			return err
		}
		moves = append(moves, movement(out, q.AmountOut))

		now := time.Now()
		if req.TokenInID == pool.Token0ID {
			pool.Token0Reserve, pool.Token1Reserve = q.ReserveIn, q.ReserveOut
		} else {
			pool.Token1Reserve, pool.Token0Reserve = q.ReserveIn, q.ReserveOut
		}
		pool.LastUpdated = now
		if err := tx.SavePool(ctx, pool); err != nil {
			return err
		}

		id, err := util.NextID()
		if err != nil {
			return errs.Wrap(errs.Internal, "generate swap id", err)
		}
		swap = &model.Swap{
			ID:          id,
			UserID:      req.UserID,
			PoolID:      pool.ID,
			TokenInID:   req.TokenInID,
			TokenOutID:  req.TokenOutID,
			AmountIn:    req.AmountIn,
			AmountOut:   q.AmountOut,
			Fee:         q.Fee,
			PriceImpact: q.PriceImpact,
			CreatedAt:   now,
			TxHash:      util.SwapTxHash(id),
		}
		return tx.CreateSwap(ctx, swap)
	})
	if err != nil {
		return nil, err
	}
	s.journal.Record("pool.swap", swap.ID, moves...)
	s.pub.Publish(ctx, model.NewEvent(model.EventSwapExecuted, model.SwapChannel(swap.PoolID), req.UserID, swap))
	return swap, nil
}

// Quote 只读预估，不加锁
func (s *PoolService) Quote(ctx context.Context, poolID, tokenInID uint64, amountIn decimal.Decimal) (*SwapQuote, error) {
	if amountIn.Sign() <= 0 {
		return nil, errs.New(errs.InvalidAmount, "amount in must be positive")
	}
	pool, err := s.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	tokenOutID := pool.Token1ID
	reserveIn, reserveOut := pool.Token0Reserve, pool.Token1Reserve
	if tokenInID == pool.Token1ID {
		tokenOutID = pool.Token0ID
		reserveIn, reserveOut = pool.Token1Reserve, pool.Token0Reserve
	}
	if err := checkPair(pool, tokenInID, tokenOutID); err != nil {
		return nil, err
	}
	q := computeSwap(reserveIn, reserveOut, amountIn, pool.Fee)
	return &q, nil
}

func (s *PoolService) GetPool(ctx context.Context, poolID uint64) (*model.LiquidityPool, error) {
	var pool *model.LiquidityPool
	err := s.store.View(ctx, func(tx dal.Tx) error {
		var err error
		if pool, err = findPool(ctx, tx, poolID); err != nil {
			return err
		}
		return attachPoolTokens(ctx, tx, pool)
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

func (s *PoolService) ListPools(ctx context.Context) ([]*model.LiquidityPool, error) {
	var pools []*model.LiquidityPool
	err := s.store.View(ctx, func(tx dal.Tx) error {
		var err error
		if pools, err = tx.ListPools(ctx); err != nil {
			return err
		}
		for _, p := range pools {
			if err := attachPoolTokens(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	return pools, err
}

func (s *PoolService) ListPositions(ctx context.Context, userID string) ([]*model.LiquidityPosition, error) {
	var list []*model.LiquidityPosition
	err := s.store.View(ctx, func(tx dal.Tx) error {
		var err error
		list, err = tx.ListPositions(ctx, userID)
		return err
	})
	return list, err
}

func (s *PoolService) ListSwaps(ctx context.Context, userID string) ([]*model.Swap, error) {
	var list []*model.Swap
	err := s.store.View(ctx, func(tx dal.Tx) error {
		var err error
		list, err = tx.ListSwaps(ctx, userID)
		return err
	})
	return list, err
}

// debitPair 按金额扣减两个钱包；钱包缺失视为余额不足
func (s *PoolService) debitPair(ctx context.Context, tx dal.Tx, userID string, token0ID, token1ID uint64,
	amt0, amt1 decimal.Decimal, moves []audit.Movement) ([]audit.Movement, error) {
	for _, leg := range []struct {
		asset  uint64
		amount decimal.Decimal
	}{{token0ID, amt0}, {token1ID, amt1}} {
		w, err := tx.FindWallet(ctx, userID, leg.asset)
		if err != nil {
			return moves, err
		}
		if w == nil {
			return moves, errs.New(errs.InsufficientBalance, fmt.Sprintf("no wallet for asset %d", leg.asset))
		}
		if w, err = s.wallets.Debit(ctx, tx, w.ID, leg.amount); err != nil {
			return moves, err
		}
		moves = append(moves, movement(w, leg.amount.Neg()))
	}
	return moves, nil
}

// mergePosition 份额累加到已有仓位或新建
func (s *PoolService) mergePosition(ctx context.Context, tx dal.Tx, userID string, poolID uint64, share decimal.Decimal, now time.Time) (*model.LiquidityPosition, error) {
	pos, err := tx.FindPosition(ctx, userID, poolID)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		id, err := util.NextID()
		if err != nil {
			return nil, errs.Wrap(errs.Internal, "generate position id", err)
		}
		pos = &model.LiquidityPosition{ID: id, UserID: userID, PoolID: poolID, Liquidity: decimal.Zero, CreatedAt: now}
	}
	pos.Liquidity = pos.Liquidity.Add(share)
	pos.LastUpdated = now
	if err := tx.SavePosition(ctx, pos); err != nil {
		return nil, err
	}
	return pos, nil
}

func findPool(ctx context.Context, tx dal.Tx, id uint64) (*model.LiquidityPool, error) {
	p, err := tx.FindPoolByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errs.New(errs.PoolNotFound, fmt.Sprintf("pool %d not found", id))
	}
	return p, nil
}

func attachPoolTokens(ctx context.Context, tx dal.Tx, p *model.LiquidityPool) error {
	var err error
	if p.Token0, err = tx.FindAssetByID(ctx, p.Token0ID); err != nil {
		return err
	}
	p.Token1, err = tx.FindAssetByID(ctx, p.Token1ID)
	return err
}

// checkPair 输入输出必须恰好是池子的两种资产
func checkPair(p *model.LiquidityPool, tokenIn, tokenOut uint64) error {
	if tokenIn == tokenOut || !p.Has(tokenIn) || !p.Has(tokenOut) {
		return errs.New(errs.TokenPairMismatch, fmt.Sprintf("tokens %d/%d do not match pool %d", tokenIn, tokenOut, p.ID))
	}
	return nil
}

func poolDuplicate(err error, token0, token1 *model.Asset) error {
	if errors.Is(err, dal.ErrDuplicate) {
		return errs.Wrap(errs.PoolExists, fmt.Sprintf("pool for %s/%s already exists", token0.Symbol, token1.Symbol), err)
	}
	return err
}
