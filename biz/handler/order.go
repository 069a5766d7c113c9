package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/shopspring/decimal"

	"cex-ledger/biz/model"
	"cex-ledger/biz/service"
)

type placeOrderRequest struct {
	AssetID   uint64              `json:"asset_id,string"`
	Type      model.OrderSide     `json:"type"`
	OrderType model.OrderType     `json:"order_type"`
	Amount    decimal.Decimal     `json:"amount"`
	Price     decimal.NullDecimal `json:"price"`
}

// PlaceOrder 市价单即时成交，限价单返回 pending
func (h *Handler) PlaceOrder(ctx context.Context, c *app.RequestContext) {
	var req placeOrderRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(ctx, c, "invalid request body")
		return
	}
	if req.OrderType == "" {
		req.OrderType = model.OrderMarket
	}
	res, err := h.ex.PlaceOrder(ctx, service.PlaceOrderRequest{
		UserID:    userID(c),
		AssetID:   req.AssetID,
		Type:      req.Type,
		OrderType: req.OrderType,
		Amount:    req.Amount,
		Price:     req.Price,
	})
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, res)
}

// ListOrders ?status=pending 走挂单索引
func (h *Handler) ListOrders(ctx context.Context, c *app.RequestContext) {
	var (
		orders []*model.Order
		err    error
	)
	if c.Query("status") == string(model.OrderPending) {
		orders, err = h.ex.Orders.PendingOrders(ctx, userID(c))
	} else {
		orders, err = h.ex.Orders.ListOrders(ctx, userID(c))
	}
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, orders)
}

func (h *Handler) CancelOrder(ctx context.Context, c *app.RequestContext) {
	id, ok := pathID(c, "id")
	if !ok {
		badRequest(ctx, c, "invalid order id")
		return
	}
	order, err := h.ex.CancelOrder(ctx, userID(c), id)
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, order)
}
