package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/shopspring/decimal"

	"cex-ledger/biz/audit"
	"cex-ledger/biz/dal"
	"cex-ledger/biz/engine"
	"cex-ledger/biz/errs"
	"cex-ledger/biz/model"
	"cex-ledger/util"
)

type PlaceOrderRequest struct {
	UserID    string
	AssetID   uint64
	Type      model.OrderSide
	OrderType model.OrderType
	Amount    decimal.Decimal
	Price     decimal.NullDecimal
}

type PlaceOrderResult struct {
	Order       *model.Order       `json:"order"`
	Transaction *model.Transaction `json:"transaction,omitempty"`
}

// OrderService 市价单即时成交，限价单挂起等待外部撮合
type OrderService struct {
	store   dal.Store
	cache   dal.Cache
	locker  *engine.Locker
	assets  *AssetService
	wallets *WalletService
	txlog   *TransactionService
	kyc     KYCGate
	journal *audit.Journal
	pub     engine.Publisher
	opts    Options
}

func NewOrderService(store dal.Store, cache dal.Cache, locker *engine.Locker, assets *AssetService, wallets *WalletService,
	txlog *TransactionService, kyc KYCGate, journal *audit.Journal, pub engine.Publisher, opts Options) *OrderService {
	if cache == nil {
		cache = dal.NopCache{}
	}
	if pub == nil {
		pub = engine.NopPublisher{}
	}
	return &OrderService{store: store, cache: cache, locker: locker, assets: assets, wallets: wallets,
		txlog: txlog, kyc: kyc, journal: journal, pub: pub, opts: opts}
}

// PlaceOrder 校验全部在写入前完成；市价单的扣款、入账、流水与订单一起提交
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if err := s.checkKYC(ctx, req.UserID); err != nil {
		return nil, err
	}
	asset, err := s.assets.GetByID(ctx, req.AssetID)
	if err != nil {
		return nil, err
	}
	quote, err := s.assets.GetBySymbol(ctx, s.opts.QuoteSymbol)
	if err != nil {
		return nil, err
	}
	if asset.ID == quote.ID {
		return nil, errs.New(errs.InvalidRequest, fmt.Sprintf("cannot trade %s against itself", quote.Symbol))
	}
	// 无价格资产不接受任何订单；市价单的成交价在事务内重新读取
	if _, err := currentPrice(asset); err != nil {
		return nil, err
	}
	if req.OrderType == model.OrderLimit {
		return s.placeLimit(ctx, req, asset)
	}
	return s.placeMarket(ctx, req, quote.ID)
}

func (s *OrderService) validate(req PlaceOrderRequest) error {
	if req.UserID == "" {
		return errs.New(errs.InvalidRequest, "user id is required")
	}
	if req.Type != model.SideBuy && req.Type != model.SideSell {
		return errs.New(errs.InvalidRequest, fmt.Sprintf("unknown order side %q", req.Type))
	}
	if req.OrderType != model.OrderMarket && req.OrderType != model.OrderLimit {
		return errs.New(errs.InvalidRequest, fmt.Sprintf("unknown order type %q", req.OrderType))
	}
	if req.Amount.Sign() <= 0 {
		return errs.New(errs.InvalidAmount, "amount must be positive")
	}
	if req.OrderType == model.OrderLimit && (!req.Price.Valid || req.Price.Decimal.Sign() <= 0) {
		return errs.New(errs.InvalidAmount, "limit order requires a positive price")
	}
	return nil
}

func (s *OrderService) checkKYC(ctx context.Context, userID string) error {
	if s.opts.MinTradeTier <= 0 || s.kyc == nil {
		return nil
	}
	tier, err := s.kyc.VerificationTier(ctx, userID)
	if err != nil {
		return errs.Wrap(errs.Internal, "kyc lookup", err)
	}
	if tier < s.opts.MinTradeTier {
		return errs.New(errs.KYCRequired, fmt.Sprintf("verification tier %d is below required %d", tier, s.opts.MinTradeTier))
	}
	return nil
}

func (s *OrderService) placeMarket(ctx context.Context, req PlaceOrderRequest, quoteID uint64) (*PlaceOrderResult, error) {
	keys := []string{engine.WalletKey(req.UserID, req.AssetID), engine.WalletKey(req.UserID, quoteID)}
	if s.opts.FeeCollector != "" {
		keys = append(keys, engine.WalletKey(s.opts.FeeCollector, quoteID))
	}
	release, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		res   = &PlaceOrderResult{}
		moves []audit.Movement
	)
	err = s.store.Update(ctx, func(tx dal.Tx) error {
		moves = moves[:0]
		asset, err := findAsset(ctx, tx, req.AssetID)
		if err != nil {
			return err
		}
		price, err := currentPrice(asset)
		if err != nil {
			return err
		}
		totalValue := req.Amount.Mul(price)
		fee := totalValue.Mul(s.opts.FeeRate)

		assetWallet, err := s.wallets.GetOrCreateWallet(ctx, tx, req.UserID, req.AssetID)
		if err != nil {
			return err
		}
		quoteWallet, err := s.wallets.GetOrCreateWallet(ctx, tx, req.UserID, quoteID)
		if err != nil {
			return err
		}

		var txType model.TransactionType
		if req.Type == model.SideBuy {
			txType = model.TxBuy
			cost := totalValue.Add(fee)
			w, err := s.wallets.Debit(ctx, tx, quoteWallet.ID, cost)
			if err != nil {
				return err
			}
			moves = append(moves, movement(w, cost.Neg()))
			if w, err = s.wallets.Credit(ctx, tx, assetWallet.ID, req.Amount); err != nil {
				return err
			}
			moves = append(moves, movement(w, req.Amount))
		} else {
			txType = model.TxSell
			w, err := s.wallets.Debit(ctx, tx, assetWallet.ID, req.Amount)
			if err != nil {
				return err
			}
			moves = append(moves, movement(w, req.Amount.Neg()))
			proceeds := totalValue.Sub(fee)
			if w, err = s.wallets.Credit(ctx, tx, quoteWallet.ID, proceeds); err != nil {
				return err
			}
			moves = append(moves, movement(w, proceeds))
		}

		if s.opts.FeeCollector != "" && fee.Sign() > 0 {
			sink, err := s.wallets.GetOrCreateWallet(ctx, tx, s.opts.FeeCollector, quoteID)
			if err != nil {
				return err
			}
			if sink, err = s.wallets.Credit(ctx, tx, sink.ID, fee); err != nil {
				return err
			}
			moves = append(moves, movement(sink, fee))
		}

		record := &model.Transaction{
			UserID:     req.UserID,
			Type:       txType,
			AssetID:    &asset.ID,
			Amount:     req.Amount,
			Price:      decimal.NewNullDecimal(price),
			TotalValue: totalValue,
			Fee:        decimal.NewNullDecimal(fee),
			Status:     model.TxCompleted,
		}
		if err := s.txlog.Append(ctx, tx, record); err != nil {
			return err
		}

		order, err := newOrder(req)
		if err != nil {
			return err
		}
		order.Price = decimal.NewNullDecimal(price)
		order.Status = model.OrderCompleted
		order.TransactionID = &record.ID
		order.CompletedAt = record.CompletedAt
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		record.Asset = asset
		order.Asset = asset
		res.Order, res.Transaction = order, record
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.journal.Record("order."+string(req.Type), res.Order.ID, moves...)
	s.pub.Publish(ctx, model.NewEvent(model.EventOrderPlaced, model.ChannelOrders, req.UserID, res))
	return res, nil
}

func (s *OrderService) placeLimit(ctx context.Context, req PlaceOrderRequest, asset *model.Asset) (*PlaceOrderResult, error) {
	order, err := newOrder(req)
	if err != nil {
		return nil, err
	}
	order.Status = model.OrderPending
	err = s.store.Update(ctx, func(tx dal.Tx) error {
		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	order.Asset = asset
	if err := s.cache.AddPendingOrder(ctx, req.UserID, order.ID); err != nil {
		hlog.CtxWarnf(ctx, "[OrderService] index pending order %d: %v", order.ID, err)
	}
	res := &PlaceOrderResult{Order: order}
	s.pub.Publish(ctx, model.NewEvent(model.EventOrderPlaced, model.ChannelOrders, req.UserID, res))
	return res, nil
}

func newOrder(req PlaceOrderRequest) (*model.Order, error) {
	id, err := util.NextID()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "generate order id", err)
	}
	return &model.Order{
		ID:        id,
		UserID:    req.UserID,
		AssetID:   req.AssetID,
		Type:      req.Type,
		OrderType: req.OrderType,
		Amount:    req.Amount,
		Price:     req.Price,
		CreatedAt: time.Now(),
	}, nil
}

// CancelOrder 仅挂起中的订单可撤
func (s *OrderService) CancelOrder(ctx context.Context, userID string, orderID uint64) (*model.Order, error) {
	var order *model.Order
	err := s.store.Update(ctx, func(tx dal.Tx) error {
		var err error
		order, err = tx.FindOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil || order.UserID != userID {
			return errs.New(errs.OrderNotFound, fmt.Sprintf("order %d not found", orderID))
		}
		if order.Status != model.OrderPending {
			return errs.New(errs.InvalidState, fmt.Sprintf("order %d is %s", orderID, order.Status))
		}
		now := time.Now()
		order.Status = model.OrderCancelled
		order.CompletedAt = &now
		return tx.UpdateOrderState(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	if err := s.cache.RemovePendingOrder(ctx, userID, orderID); err != nil {
		hlog.CtxWarnf(ctx, "[OrderService] unindex pending order %d: %v", orderID, err)
	}
	s.pub.Publish(ctx, model.NewEvent(model.EventOrderCancelled, model.ChannelOrders, userID, order))
	return order, nil
}

// ListOrders 用户订单，按时间倒序并附带资产
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]*model.Order, error) {
	var orders []*model.Order
	err := s.store.View(ctx, func(tx dal.Tx) error {
		var err error
		orders, err = tx.ListOrders(ctx, userID)
		if err != nil {
			return err
		}
		return attachOrderAssets(ctx, tx, orders)
	})
	return orders, err
}

// PendingOrders 优先走 redis 挂单索引，索引为空时回落到存储扫描
func (s *OrderService) PendingOrders(ctx context.Context, userID string) ([]*model.Order, error) {
	ids, err := s.cache.PendingOrders(ctx, userID)
	if err != nil {
		hlog.CtxWarnf(ctx, "[OrderService] read pending index: %v", err)
		ids = nil
	}
	if len(ids) == 0 {
		all, err := s.ListOrders(ctx, userID)
		if err != nil {
			return nil, err
		}
		pending := all[:0]
		for _, o := range all {
			if o.Status == model.OrderPending {
				pending = append(pending, o)
			}
		}
		return pending, nil
	}

	var pending []*model.Order
	var stale []uint64
	err = s.store.View(ctx, func(tx dal.Tx) error {
		for _, id := range ids {
			o, err := tx.FindOrder(ctx, id)
			if err != nil {
				return err
			}
			if o == nil || o.UserID != userID || o.Status != model.OrderPending {
				stale = append(stale, id)
				continue
			}
			pending = append(pending, o)
		}
		return attachOrderAssets(ctx, tx, pending)
	})
	if err != nil {
		return nil, err
	}
	for _, id := range stale {
		_ = s.cache.RemovePendingOrder(ctx, userID, id)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.After(pending[j].CreatedAt) })
	return pending, nil
}

func attachOrderAssets(ctx context.Context, tx dal.Tx, orders []*model.Order) error {
	for _, o := range orders {
		a, err := tx.FindAssetByID(ctx, o.AssetID)
		if err != nil {
			return err
		}
		o.Asset = a
	}
	return nil
}
