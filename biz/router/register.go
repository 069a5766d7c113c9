package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	"cex-ledger/biz/handler"
	"cex-ledger/middleware"
	wsserver "cex-ledger/server"
)

// Register 注册全部 HTTP 与 WebSocket 路由
func Register(r *server.Hertz, h *handler.Handler, hub *wsserver.Hub) {
	r.GET("/ping", h.Ping)
	if hub != nil {
		r.GET("/ws", hub.Handler())
	}

	api := r.Group("/api")

	crypto := api.Group("/crypto")
	crypto.GET("/assets", h.ListAssets)
	crypto.GET("/assets/:symbol", h.GetAsset)
	crypto.POST("/assets", h.UpsertAsset)
	crypto.GET("/history/:symbol", h.PriceHistory)

	api.GET("/pools", h.ListPools)
	api.GET("/pools/:id", h.GetPool)
	api.GET("/pools/:id/quote", h.Quote)

	user := api.Group("", middleware.UserIdentity())
	user.GET("/wallets", h.GetWallets)
	user.POST("/wallets/deposit", h.Deposit)
	user.POST("/wallets/withdraw", h.Withdraw)

	user.GET("/transactions", h.ListTransactions)
	user.GET("/transactions/:id", h.GetTransaction)
	user.POST("/transactions/:id/archive", h.ArchiveTransaction)

	user.GET("/orders", h.ListOrders)
	user.POST("/orders", h.PlaceOrder)
	user.POST("/orders/:id/cancel", h.CancelOrder)

	user.POST("/pools", h.CreatePool)
	user.POST("/pools/:id/liquidity", h.AddLiquidity)
	user.POST("/pools/:id/swap", h.Swap)
	user.GET("/positions", h.ListPositions)
	user.GET("/swaps", h.ListSwaps)
}
