package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// ListTransactions ?include_archived=true 时包含已归档
func (h *Handler) ListTransactions(ctx context.Context, c *app.RequestContext) {
	includeArchived := c.Query("include_archived") == "true"
	list, err := h.ex.GetTransactions(ctx, userID(c), includeArchived)
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, list)
}

func (h *Handler) GetTransaction(ctx context.Context, c *app.RequestContext) {
	id, ok := pathID(c, "id")
	if !ok {
		badRequest(ctx, c, "invalid transaction id")
		return
	}
	t, err := h.ex.Transactions.Get(ctx, userID(c), id)
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, t)
}

func (h *Handler) ArchiveTransaction(ctx context.Context, c *app.RequestContext) {
	id, ok := pathID(c, "id")
	if !ok {
		badRequest(ctx, c, "invalid transaction id")
		return
	}
	t, err := h.ex.ArchiveTransaction(ctx, userID(c), id)
	if err != nil {
		renderError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, t)
}
