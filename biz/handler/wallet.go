package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/shopspring/decimal"
)

type movementRequest struct {
	AssetID uint64          `json:"asset_id,string"`
	Amount  decimal.Decimal `json:"amount"`
}

// GetWallets 当前用户全部钱包
func (h *Handler) GetWallets(ctx context.Context, c *app.RequestContext) {
	wallets, err := h.ex.GetWallets(ctx, userID(c))
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, wallets)
}

func (h *Handler) Deposit(ctx context.Context, c *app.RequestContext) {
	var req movementRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(ctx, c, "invalid request body")
		return
	}
	tx, err := h.ex.Deposit(ctx, userID(c), req.AssetID, req.Amount)
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, tx)
}

func (h *Handler) Withdraw(ctx context.Context, c *app.RequestContext) {
	var req movementRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(ctx, c, "invalid request body")
		return
	}
	tx, err := h.ex.Withdraw(ctx, userID(c), req.AssetID, req.Amount)
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, tx)
}
