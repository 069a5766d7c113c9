package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"cex-ledger/biz/dal/memory"
	"cex-ledger/biz/handler"
	"cex-ledger/biz/model"
	"cex-ledger/biz/service"
	"cex-ledger/conf"
	"cex-ledger/middleware"
)

type apiClient struct {
	t  *testing.T
	h  *server.Hertz
	ex *service.Exchange
}

type fixedHistory []model.PricePoint

func (f fixedHistory) FetchHistory(context.Context, string, int) ([]model.PricePoint, error) {
	return f, nil
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	ex := service.NewExchange(service.Deps{
		Store: memory.NewStore(),
		History: fixedHistory{
			{Timestamp: 1700000000000, Price: decimal.RequireFromString("42000.5")},
			{Timestamp: 1700086400000, Price: decimal.RequireFromString("42897.53")},
		},
		LockTimeout: time.Second,
		Options:     service.DefaultOptions(),
	})
	require.NoError(t, ex.Assets.Bootstrap(context.Background(), []conf.BootstrapCoin{
		{Symbol: "BTC", Name: "Bitcoin", Price: "42897.53"},
		{Symbol: "TKA", Name: "Token A", Price: "1"},
		{Symbol: "TKB", Name: "Token B", Price: "1"},
	}, "USDT"))
	h := server.New()
	Register(h, handler.New(ex), nil)
	return &apiClient{t: t, h: h, ex: ex}
}

func (a *apiClient) assetID(symbol string) string {
	asset, err := a.ex.Assets.GetBySymbol(context.Background(), symbol)
	require.NoError(a.t, err)
	return strconv.FormatUint(asset.ID, 10)
}

func (a *apiClient) do(method, path, user, body string) (int, map[string]any) {
	a.t.Helper()
	headers := []ut.Header{{Key: "Content-Type", Value: "application/json"}}
	if user != "" {
		headers = append(headers, ut.Header{Key: middleware.HeaderUserID, Value: user})
	}
	var b *ut.Body
	if body != "" {
		b = &ut.Body{Body: bytes.NewBufferString(body), Len: len(body)}
	}
	w := ut.PerformRequest(a.h.Engine, method, path, b, headers...)
	resp := w.Result()
	var out map[string]any
	if raw := resp.Body(); len(raw) > 0 && raw[0] == '{' {
		require.NoError(a.t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode(), out
}

func (a *apiClient) list(path, user string) []map[string]any {
	a.t.Helper()
	headers := []ut.Header{}
	if user != "" {
		headers = append(headers, ut.Header{Key: middleware.HeaderUserID, Value: user})
	}
	w := ut.PerformRequest(a.h.Engine, "GET", path, nil, headers...)
	resp := w.Result()
	require.Equal(a.t, 200, resp.StatusCode(), string(resp.Body()))
	var out []map[string]any
	require.NoError(a.t, json.Unmarshal(resp.Body(), &out))
	return out
}

func TestPingAndAssets(t *testing.T) {
	api := newAPI(t)

	code, body := api.do("GET", "/ping", "", "")
	require.Equal(t, 200, code)
	require.Equal(t, "pong", body["message"])

	require.Len(t, api.list("/api/crypto/assets", ""), 4)

	code, body = api.do("GET", "/api/crypto/assets/btc", "", "")
	require.Equal(t, 200, code)
	require.Equal(t, "42897.53", body["current_price"])

	code, body = api.do("GET", "/api/crypto/assets/DOGE", "", "")
	require.Equal(t, 404, code)
	require.Equal(t, "AssetNotFound", body["code"])

	code, body = api.do("POST", "/api/crypto/assets", "", `{"symbol":"sol","name":"Solana","current_price":"98.5"}`)
	require.Equal(t, 200, code)
	require.Equal(t, "SOL", body["symbol"])
}

func TestPriceHistory(t *testing.T) {
	api := newAPI(t)

	code, body := api.do("GET", "/api/crypto/history/btc?days=7", "", "")
	require.Equal(t, 200, code, body)
	require.Equal(t, "BTC", body["symbol"])
	require.Equal(t, float64(7), body["days"])
	points := body["price_history"].([]any)
	require.Len(t, points, 2)
	require.Equal(t, "42897.53", points[1].(map[string]any)["price"])

	code, body = api.do("GET", "/api/crypto/history/BTC", "", "")
	require.Equal(t, 200, code)
	require.Equal(t, float64(30), body["days"])

	code, body = api.do("GET", "/api/crypto/history/btc?days=abc", "", "")
	require.Equal(t, 400, code)
	require.Equal(t, "InvalidRequest", body["code"])
	code, body = api.do("GET", "/api/crypto/history/DOGE", "", "")
	require.Equal(t, 404, code)
	require.Equal(t, "AssetNotFound", body["code"])
}

func TestWalletRoutesRequireIdentity(t *testing.T) {
	api := newAPI(t)
	code, body := api.do("POST", "/api/wallets/deposit", "", `{"asset_id":"1","amount":"1"}`)
	require.Equal(t, 401, code)
	require.Equal(t, "Unauthenticated", body["code"])
}

func TestMarketOrderFlow(t *testing.T) {
	api := newAPI(t)
	usdt, btc := api.assetID("USDT"), api.assetID("BTC")

	code, body := api.do("POST", "/api/wallets/deposit", "alice", fmt.Sprintf(`{"asset_id":"%s","amount":"10000"}`, usdt))
	require.Equal(t, 201, code, body)

	order := fmt.Sprintf(`{"asset_id":"%s","type":"buy","order_type":"market","amount":"1"}`, btc)
	code, body = api.do("POST", "/api/orders", "alice", order)
	require.Equal(t, 422, code)
	require.Equal(t, "InsufficientBalance", body["code"])

	code, _ = api.do("POST", "/api/wallets/deposit", "alice", fmt.Sprintf(`{"asset_id":"%s","amount":"40000"}`, usdt))
	require.Equal(t, 201, code)
	code, body = api.do("POST", "/api/orders", "alice", order)
	require.Equal(t, 201, code, body)
	require.Equal(t, "completed", body["order"].(map[string]any)["status"])

	balances := map[string]string{}
	for _, w := range api.list("/api/wallets", "alice") {
		balances[w["asset"].(map[string]any)["symbol"].(string)] = w["balance"].(string)
	}
	require.Equal(t, map[string]string{"USDT": "6995.226175", "BTC": "1"}, balances)
	require.Len(t, api.list("/api/orders", "alice"), 1)
	require.Len(t, api.list("/api/transactions", "alice"), 3)

	code, body = api.do("POST", "/api/orders", "alice", `{"asset_id":"x"}`)
	require.Equal(t, 400, code)
	require.Equal(t, "InvalidRequest", body["code"])
}

func TestLimitOrderCancelAndArchive(t *testing.T) {
	api := newAPI(t)
	btc := api.assetID("BTC")

	code, body := api.do("POST", "/api/orders", "bob",
		fmt.Sprintf(`{"asset_id":"%s","type":"sell","order_type":"limit","amount":"0.5","price":"45000"}`, btc))
	require.Equal(t, 201, code, body)
	id := body["order"].(map[string]any)["id"].(string)
	require.Len(t, api.list("/api/orders?status=pending", "bob"), 1)

	code, body = api.do("POST", "/api/orders/"+id+"/cancel", "eve", "")
	require.Equal(t, 404, code)
	require.Equal(t, "OrderNotFound", body["code"])
	code, body = api.do("POST", "/api/orders/"+id+"/cancel", "bob", "")
	require.Equal(t, 200, code)
	require.Equal(t, "cancelled", body["status"])
	code, body = api.do("POST", "/api/orders/"+id+"/cancel", "bob", "")
	require.Equal(t, 409, code)
	require.Equal(t, "InvalidState", body["code"])

	code, body = api.do("POST", "/api/wallets/deposit", "bob", fmt.Sprintf(`{"asset_id":"%s","amount":"2"}`, btc))
	require.Equal(t, 201, code)
	txID := body["id"].(string)
	code, body = api.do("POST", "/api/transactions/"+txID+"/archive", "bob", "")
	require.Equal(t, 200, code)
	require.Equal(t, true, body["archived"])
	require.Empty(t, api.list("/api/transactions", "bob"))
	require.Len(t, api.list("/api/transactions?include_archived=true", "bob"), 1)

	code, _ = api.do("GET", "/api/transactions/abc", "bob", "")
	require.Equal(t, 400, code)
}

func TestPoolFlow(t *testing.T) {
	api := newAPI(t)
	tka, tkb := api.assetID("TKA"), api.assetID("TKB")
	for _, id := range []string{tka, tkb} {
		code, _ := api.do("POST", "/api/wallets/deposit", "lp", fmt.Sprintf(`{"asset_id":"%s","amount":"110"}`, id))
		require.Equal(t, 201, code)
	}

	code, body := api.do("POST", "/api/pools", "lp",
		fmt.Sprintf(`{"token0_id":"%s","token1_id":"%s","amount0":"100","amount1":"100"}`, tka, tkb))
	require.Equal(t, 201, code, body)
	poolID := body["pool"].(map[string]any)["id"].(string)

	code, body = api.do("POST", "/api/pools", "lp",
		fmt.Sprintf(`{"token0_id":"%s","token1_id":"%s","amount0":"1","amount1":"1"}`, tkb, tka))
	require.Equal(t, 409, code)
	require.Equal(t, "PoolExists", body["code"])

	code, body = api.do("GET", "/api/pools/"+poolID+"/quote?token_in="+tka+"&amount_in=10", "", "")
	require.Equal(t, 200, code)
	require.Equal(t, "9.066108938801491315", body["amount_out"])

	code, body = api.do("POST", "/api/pools/"+poolID+"/swap", "lp",
		fmt.Sprintf(`{"token_in_id":"%s","token_out_id":"%s","amount_in":"10"}`, tka, tkb))
	require.Equal(t, 200, code, body)
	require.Equal(t, "9.066108938801491315", body["amount_out"])

	code, body = api.do("POST", "/api/pools/"+poolID+"/swap", "lp",
		fmt.Sprintf(`{"token_in_id":"%s","token_out_id":"%s","amount_in":"1"}`, tka, api.assetID("BTC")))
	require.Equal(t, 400, code)
	require.Equal(t, "TokenPairMismatch", body["code"])

	code, body = api.do("POST", "/api/pools/"+poolID+"/liquidity", "lp", `{"amount0":"1","amount1":"5"}`)
	require.Equal(t, 400, code)
	require.Equal(t, "RatioMismatch", body["code"])

	code, body = api.do("GET", "/api/pools/"+poolID, "", "")
	require.Equal(t, 200, code)
	require.Equal(t, "110", body["token0_reserve"])
	require.Len(t, api.list("/api/pools", ""), 1)
	require.Len(t, api.list("/api/positions", "lp"), 1)
	require.Len(t, api.list("/api/swaps", "lp"), 1)

	code, body = api.do("GET", "/api/pools/999", "", "")
	require.Equal(t, 404, code)
	require.Equal(t, "PoolNotFound", body["code"])
}
