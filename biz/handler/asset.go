package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/shopspring/decimal"

	"cex-ledger/biz/model"
)

type upsertPriceRequest struct {
	Symbol        string              `json:"symbol"`
	Name          string              `json:"name"`
	Price         decimal.NullDecimal `json:"current_price"`
	ChangePercent decimal.NullDecimal `json:"price_change_percentage_24h"`
	MarketCap     decimal.NullDecimal `json:"market_cap"`
}

// ListAssets 按市值排名
func (h *Handler) ListAssets(ctx context.Context, c *app.RequestContext) {
	assets, err := h.ex.Assets.List(ctx)
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, assets)
}

func (h *Handler) GetAsset(ctx context.Context, c *app.RequestContext) {
	asset, err := h.ex.Assets.GetBySymbol(ctx, c.Param("symbol"))
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, asset)
}

// UpsertAsset 人工录入或修正行情
func (h *Handler) UpsertAsset(ctx context.Context, c *app.RequestContext) {
	var req upsertPriceRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(ctx, c, "invalid request body")
		return
	}
	asset, err := h.ex.UpsertPrice(ctx, model.PriceQuote{
		Symbol:        req.Symbol,
		Name:          req.Name,
		Price:         req.Price,
		ChangePercent: req.ChangePercent,
		MarketCap:     req.MarketCap,
	})
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, asset)
}

// PriceHistory GET /api/crypto/history/:symbol?days=N
func (h *Handler) PriceHistory(ctx context.Context, c *app.RequestContext) {
	days := 0
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(ctx, c, "days must be an integer")
			return
		}
		days = n
	}
	history, err := h.ex.History.History(ctx, c.Param("symbol"), days)
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, history)
}
