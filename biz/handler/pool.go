package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/shopspring/decimal"

	"cex-ledger/biz/service"
)

type createPoolRequest struct {
	Token0ID uint64          `json:"token0_id,string"`
	Token1ID uint64          `json:"token1_id,string"`
	Amount0  decimal.Decimal `json:"amount0"`
	Amount1  decimal.Decimal `json:"amount1"`
}

type liquidityRequest struct {
	Amount0 decimal.Decimal `json:"amount0"`
	Amount1 decimal.Decimal `json:"amount1"`
}

type swapRequest struct {
	TokenInID  uint64          `json:"token_in_id,string"`
	TokenOutID uint64          `json:"token_out_id,string"`
	AmountIn   decimal.Decimal `json:"amount_in"`
}

func (h *Handler) ListPools(ctx context.Context, c *app.RequestContext) {
	pools, err := h.ex.Pools.ListPools(ctx)
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, pools)
}

func (h *Handler) GetPool(ctx context.Context, c *app.RequestContext) {
	id, ok := pathID(c, "id")
	if !ok {
		badRequest(ctx, c, "invalid pool id")
		return
	}
	pool, err := h.ex.Pools.GetPool(ctx, id)
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, pool)
}

func (h *Handler) CreatePool(ctx context.Context, c *app.RequestContext) {
	var req createPoolRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(ctx, c, "invalid request body")
		return
	}
	res, err := h.ex.CreatePool(ctx, userID(c), req.Token0ID, req.Token1ID, req.Amount0, req.Amount1)
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, res)
}

func (h *Handler) AddLiquidity(ctx context.Context, c *app.RequestContext) {
	id, ok := pathID(c, "id")
	if !ok {
		badRequest(ctx, c, "invalid pool id")
		return
	}
	var req liquidityRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(ctx, c, "invalid request body")
		return
	}
	res, err := h.ex.AddLiquidity(ctx, userID(c), id, req.Amount0, req.Amount1)
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, res)
}

func (h *Handler) Swap(ctx context.Context, c *app.RequestContext) {
	id, ok := pathID(c, "id")
	if !ok {
		badRequest(ctx, c, "invalid pool id")
		return
	}
	var req swapRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(ctx, c, "invalid request body")
		return
	}
	swap, err := h.ex.Swap(ctx, service.SwapRequest{
		UserID:     userID(c),
		PoolID:     id,
		TokenInID:  req.TokenInID,
		TokenOutID: req.TokenOutID,
		AmountIn:   req.AmountIn,
	})
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, swap)
}

// Quote ?token_in=<assetID>&amount_in=<decimal>，不修改状态
func (h *Handler) Quote(ctx context.Context, c *app.RequestContext) {
	id, ok := pathID(c, "id")
	if !ok {
		badRequest(ctx, c, "invalid pool id")
		return
	}
	tokenIn, err := strconv.ParseUint(c.Query("token_in"), 10, 64)
	if err != nil {
		badRequest(ctx, c, "invalid token_in")
		return
	}
	amountIn, err := decimal.NewFromString(c.Query("amount_in"))
	if err != nil {
		badRequest(ctx, c, "invalid amount_in")
		return
	}
	q, err := h.ex.Pools.Quote(ctx, id, tokenIn, amountIn)
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, q)
}

// ListPositions 当前用户的做市份额
func (h *Handler) ListPositions(ctx context.Context, c *app.RequestContext) {
	list, err := h.ex.Pools.ListPositions(ctx, userID(c))
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, list)
}

func (h *Handler) ListSwaps(ctx context.Context, c *app.RequestContext) {
	list, err := h.ex.Pools.ListSwaps(ctx, userID(c))
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, list)
}
