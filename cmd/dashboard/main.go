package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/Smalllight01/plc-admin-sub001/internal/apiclient"
	"github.com/Smalllight01/plc-admin-sub001/internal/cache/lru"
	"github.com/Smalllight01/plc-admin-sub001/internal/handler"
	"github.com/Smalllight01/plc-admin-sub001/internal/history"
	"github.com/Smalllight01/plc-admin-sub001/internal/middleware"
	"github.com/Smalllight01/plc-admin-sub001/internal/poller"
	"github.com/Smalllight01/plc-admin-sub001/internal/repository"
	"github.com/Smalllight01/plc-admin-sub001/internal/service"
	"github.com/Smalllight01/plc-admin-sub001/internal/session"
	"github.com/Smalllight01/plc-admin-sub001/internal/telemetry"
	"github.com/Smalllight01/plc-admin-sub001/pkg/config"
	"github.com/Smalllight01/plc-admin-sub001/pkg/etcd"
	"github.com/Smalllight01/plc-admin-sub001/pkg/hash"
)

var (
	configPath = flag.String("config", "conf/dashboard.ini", "Config file path")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	setupLogging(cfg.Log)

	logrus.Info("===========================================")
	logrus.Info("  PLC Admin Dashboard")
	logrus.Info("===========================================")
	logrus.Infof("Port: %s", cfg.Server.Port)
	logrus.Infof("Backend: %s %v", cfg.Backend.BaseURL, cfg.Backend.Nodes())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 会话持久化
	store, err := repository.NewSQLiteRepository(cfg.Session.DBPath)
	if err != nil {
		logrus.Fatalf("Failed to open session store: %v", err)
	}
	defer store.Close()

	sess := session.New(store, cfg.Session.Key)
	if err := sess.Init(ctx); err != nil {
		logrus.Warnf("Failed to restore session, starting logged out: %v", err)
	}
	toasts := session.NewToasts(50)

	// 指标
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := telemetry.NewPrometheusCollector(registry)
	if err != nil {
		logrus.Fatalf("Failed to register metrics: %v", err)
	}

	// 后端节点
	ring := hash.NewRing(150, nil)
	ring.Add(cfg.Backend.Nodes()...)
	if endpoints := cfg.Etcd.EtcdEndpoints(); len(endpoints) > 0 {
		etcdClient, err := etcd.NewClient(endpoints)
		if err != nil {
			logrus.Fatalf("Failed to connect to etcd: %v", err)
		}
		defer etcdClient.Close()

		nodes, err := etcdClient.Discover(ctx, cfg.Etcd.ServiceName)
		if err != nil {
			logrus.Errorf("Failed to discover backend nodes: %v", err)
		} else {
			ring.Add(nodes...)
			logrus.Infof("Discovered %d backend nodes", len(nodes))
		}
		etcdClient.WatchNodes(ctx, cfg.Etcd.ServiceName,
			func(node string) { ring.Add(node) },
			func(node string) { ring.Remove(node) },
		)
	}

	// 入站路由与后端接口各自熔断
	breakers := middleware.NewBreakerGroup(middleware.DefaultCircuitBreakerConfig(), middleware.RouteClasses...)
	upstream := middleware.NewBreakerGroup(middleware.DefaultCircuitBreakerConfig(), apiclient.Classes...)
	client := apiclient.New(cfg.Backend.BaseURL,
		apiclient.WithHTTPClient(apiclient.NewHTTPClient(cfg.Backend.Timeout)),
		apiclient.WithTokenStore(sess),
		apiclient.WithRedirector(apiclient.RedirectFunc(func(path string) {
			logrus.Infof("Redirecting to %s", path)
			toasts.Push(session.ToastError, "登录已过期，请重新登录")
		})),
		apiclient.WithBreakers(upstream),
		apiclient.WithMetrics(metrics),
		apiclient.WithRing(ring),
	)

	// 自动刷新
	cache := repository.NewMemoryRepository(lru.NewCache(cfg.Cache.MaxBytes, cfg.Cache.TTL, nil))
	p := poller.New(cache, metrics, cfg.Backend.Timeout)
	dashboard, err := service.NewDashboardService(client, p, cfg.Poll)
	if err != nil {
		logrus.Fatalf("Failed to init dashboard service: %v", err)
	}

	loc, err := cfg.History.Location()
	if err != nil {
		logrus.Fatalf("Invalid timezone: %v", err)
	}
	historySvc := service.NewHistoryService(client, history.Options{
		Limit:        cfg.History.Limit,
		Concurrency:  cfg.History.Concurrency,
		WindowSize:   cfg.History.WindowSize,
		AllowPartial: cfg.History.AllowPartial,
		Location:     loc,
		Metrics:      metrics,
	})
	authSvc := service.NewAuthService(client, sess)
	service.BindSession(sess, dashboard, historySvc)
	limiters := middleware.NewRateLimiterGroup(cfg.RateLimit.QPS, cfg.RateLimit.Burst)

	if cfg.Server.Mode != "" && !*debug {
		gin.SetMode(cfg.Server.Mode)
	}
	router := handler.SetupRouter(handler.RouterDeps{
		Guard:    session.NewGuard(sess, client, toasts),
		Breakers: breakers,
		Limiters: limiters,
		IPQPS:    cfg.RateLimit.IPQPS,
		Auth:     handler.NewAuthHandler(authSvc),
		Device:   handler.NewDeviceHandler(client, dashboard),
		Group:    handler.NewGroupHandler(client),
		User:     handler.NewUserHandler(client),
		Data:     handler.NewDataHandler(client, dashboard, historySvc),
		History:  handler.NewHistoryHandler(historySvc),
		System:   handler.NewSystemHandler(client, dashboard, toasts),
		Proxy:    handler.NewProxyHandler(client),
		Monitor: handler.NewMonitorHandler(handler.MonitorDeps{
			Breakers:  breakers,
			Upstream:  upstream,
			Limiters:  limiters,
			Cache:     cache,
			Dashboard: dashboard,
			Store:     store,
			Ring:      ring,
			Gatherer:  registry,
		}),
	})

	p.Start(ctx)
	defer p.Stop()

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	go func() {
		logrus.Infof("Dashboard listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down dashboard...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server shutdown failed: %v", err)
	}
}

// setupLogging 设置日志级别和输出文件
func setupLogging(cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if *debug {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)

	if cfg.File == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		logrus.Warnf("Failed to create log dir: %v", err)
		return
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logrus.Warnf("Failed to open log file: %v", err)
		return
	}
	logrus.SetOutput(io.MultiWriter(os.Stdout, f))
}
