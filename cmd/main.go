package main

import (
	"context"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/netpoll"
	"github.com/hertz-contrib/cors"
	"github.com/hertz-contrib/gzip"
	"github.com/hertz-contrib/logger/accesslog"
	"github.com/hertz-contrib/pprof"
	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"cex-ledger/biz/audit"
	"cex-ledger/biz/dal/setup"
	"cex-ledger/biz/engine"
	"cex-ledger/biz/handler"
	"cex-ledger/biz/registry"
	"cex-ledger/biz/router"
	"cex-ledger/biz/service"
	"cex-ledger/conf"
	wsserver "cex-ledger/server"
	"cex-ledger/util"
)

func main() {
	_ = godotenv.Load()
	cfg := conf.GetConf()
	initLogger(cfg.Hertz)

	if cfg.Hertz.NetpollLoops > 0 {
		if err := netpoll.SetNumLoops(cfg.Hertz.NetpollLoops); err != nil {
			hlog.Warnf("set netpoll loops: %v", err)
		}
	}
	util.InitSonyFlake(cfg.Exchange.NodeID)

	ctx, cancel := context.WithCancel(context.Background())
	deps, err := setup.Init(ctx, cfg)
	if err != nil {
		hlog.Fatalf("init storage: %v", err)
	}
	journal := audit.New(cfg.Audit)

	pool, err := engine.NewBroadcastPool(cfg.Hertz.BroadcastPool)
	if err != nil {
		hlog.Fatalf("init broadcast pool: %v", err)
	}
	hub := wsserver.NewHub(pool)
	publishers := engine.Fanout{engine.NewPoolPublisher(pool, hub.Broadcast, hub.Unicast)}
	if deps.Events != nil {
		publishers = append(publishers, deps.Events)
	}

	// 历史行情查询始终可用，定时刷新由配置开关控制
	feed, err := service.NewCoinGeckoFeed(cfg.PriceFeed)
	if err != nil {
		hlog.Fatalf("price feed client: %v", err)
	}

	opts, err := service.OptionsFromConf(cfg.Exchange)
	if err != nil {
		hlog.Fatalf("exchange options: %v", err)
	}
	ex := service.NewExchange(service.Deps{
		Store:       deps.Store,
		Cache:       deps.Cache,
		Publisher:   publishers,
		Journal:     journal,
		KYC:         service.NewStaticKYC(cfg.Exchange.DefaultKYCTier),
		History:     feed,
		LockTimeout: cfg.Exchange.LockTimeout(),
		Options:     opts,
	})
	if err := ex.Assets.Bootstrap(ctx, cfg.Exchange.Assets, opts.QuoteSymbol); err != nil {
		hlog.Fatalf("bootstrap assets: %v", err)
	}

	var consul *registry.ConsulHelper
	if len(cfg.Registry.RegistryAddress) > 0 {
		consul, err = registry.NewConsulHelperWithAddrs(cfg.Registry.RegistryAddress, cfg.Registry.Username, cfg.Registry.Password)
		if err != nil {
			hlog.Warnf("consul unavailable, running standalone: %v", err)
			consul = nil
		}
	}
	nodeID := cfg.Hertz.Service + "-" + strconv.Itoa(int(cfg.Exchange.NodeID))
	if consul != nil {
		host, port, err := registry.AdvertiseAddr(cfg.Hertz.Address)
		if err == nil {
			err = consul.RegisterService(cfg.Hertz.Service, nodeID, host, port, []string{cfg.Env})
		}
		if err != nil {
			hlog.Warnf("consul register: %v", err)
		}
	}

	if cfg.PriceFeed.Enabled {
		var leader service.LeaderLock
		if consul != nil {
			leader = consul
		}
		refresher := service.NewPriceRefresher(feed, ex.Assets, leader, cfg.PriceFeed.RefreshEvery(), opts.QuoteSymbol)
		go refresher.Run(ctx)
	}

	h := server.New(server.WithHostPorts(cfg.Hertz.Address), server.WithExitWaitTime(5*time.Second))
	h.NoHijackConnPool = true
	registerMiddleware(h, cfg.Hertz)
	router.Register(h, handler.New(ex), hub)

	h.OnShutdown = append(h.OnShutdown, func(context.Context) {
		cancel()
		if consul != nil {
			_ = consul.Deregister(nodeID)
		}
		pool.Release()
		deps.Close()
		_ = journal.Sync()
	})
	h.Spin()
}

func registerMiddleware(h *server.Hertz, cfg conf.Hertz) {
	if cfg.EnablePprof {
		pprof.Register(h)
	}
	if cfg.EnableGzip {
		h.Use(gzip.Gzip(gzip.DefaultCompression))
	}
	if cfg.EnableAccessLog {
		h.Use(accesslog.New())
	}
	h.Use(cors.Default())
}

func initLogger(cfg conf.Hertz) {
	hlog.SetLevel(conf.LogLevel())
	if cfg.LogFileName == "" {
		return
	}
	hlog.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   cfg.LogFileName,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
	}))
}
