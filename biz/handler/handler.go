package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"cex-ledger/biz/errs"
	"cex-ledger/biz/service"
	"cex-ledger/middleware"
)

// Handler HTTP 入口，所有写操作经 Exchange 重试边界
type Handler struct {
	ex *service.Exchange
}

func New(ex *service.Exchange) *Handler {
	return &Handler{ex: ex}
}

// Ping 健康检查
func (h *Handler) Ping(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"message": "pong"})
}

// renderError 领域错误映射为稳定的状态码与 {code, message}
func renderError(ctx context.Context, c *app.RequestContext, err error) {
	kind, msg := errs.Public(err)
	status := errs.HTTPStatus(kind)
	if status >= consts.StatusInternalServerError {
		hlog.CtxErrorf(ctx, "[Handler] %s %s: %v", c.Method(), c.Path(), err)
	}
	c.JSON(status, utils.H{"code": kind, "message": msg})
}

func badRequest(ctx context.Context, c *app.RequestContext, msg string) {
	renderError(ctx, c, errs.New(errs.InvalidRequest, msg))
}

func userID(c *app.RequestContext) string {
	return middleware.UserID(c)
}

func pathID(c *app.RequestContext, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}
