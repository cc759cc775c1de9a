// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"globe-api/internal/api"
	"globe-api/internal/config"
	"globe-api/internal/dataset"
	"globe-api/internal/iplocate"
	"globe-api/internal/logger"
	"globe-api/internal/metrics"
	"globe-api/internal/middleware"
	"globe-api/internal/migrate"
	"globe-api/internal/revgeo"
	"globe-api/internal/store"
	"globe-api/internal/utils"
)

func main() {
	cfg := config.Load()
	// 日志初始化
	l := logger.Setup()
	l.Debug("log_init_ok")
	l.Debug("config_api_base", "base", cfg.APIBase, "data_dir", cfg.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ds, err := dataset.LoadDir(ctx, cfg.DataDir)
	if err != nil {
		l.Error("dataset_load_error", "err", err)
		os.Exit(1)
	}

	// 背景：数据库可选；启用时城市与国家元数据以库为准，并记录定位统计
	var st *store.Store
	if cfg.PGEnable {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			l.Error("db_open_error", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			l.Error("db_ping_error", "err", err)
		} else {
			l.Info("db_ping_ok")
			if err := migrate.EnsureSchema(db); err != nil {
				l.Error("schema_error", "err", err)
				os.Exit(1)
			}
			st = store.AttachDB(db)
			if err := ds.Merge(ctx, st); err != nil {
				l.Error("dataset_merge_error", "err", err)
			}
		}
	}

	locOpts := []revgeo.Option{revgeo.WithCellSize(cfg.CellSizeDeg), revgeo.WithCache(cfg.CacheSize, cfg.CacheTTL)}
	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
			locOpts = append(locOpts, revgeo.WithCellStore(utils.NewRedisCells(rc, cfg.CacheTTL)))
		}
	}

	// 失败的数据源被跳过，其余照常启用
	ipl, err := iplocate.Open(iplocate.Paths{MMDB: cfg.MMDBPath, XDB: cfg.XDBPath, IPDB: cfg.IPDBPath, IPDBLang: cfg.IPDBLang})
	if err != nil {
		l.Error("iplocate_open_error", "err", err)
	}
	if cfg.AMapKey != "" {
		ipl.Append(iplocate.NewAMap(cfg.AMapKey, nil))
		l.Info("iplocate_amap_enabled")
	}
	defer ipl.Close()

	lc, err := config.LoadLabelConfig(cfg.LabelsConfig)
	if err == nil {
		err = config.ValidateLabelConfig(lc)
	}
	if err != nil {
		l.Error("labels_config_error", "path", cfg.LabelsConfig, "err", err)
		os.Exit(1)
	}

	start := time.Now()
	loc := revgeo.NewLocator(ds.Features, locOpts...)
	l.Info("locator_ready", "features", len(ds.Features), "ms", time.Since(start).Milliseconds())

	srv := api.New(api.Deps{
		Locator:    loc,
		Dataset:    ds,
		Labels:     lc,
		IP:         ipl,
		Store:      st,
		ApproxKm:   cfg.ApproxKm,
		SessionCap: cfg.SessionCap,
		SessionTTL: cfg.SessionTTL,
	})

	mux := http.NewServeMux()
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, srv.Routes()))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())

	ui := os.Getenv("UI_DIST")
	if ui == "" {
		ui = filepath.Join("ui", "dist")
	}
	mux.Handle("/", http.FileServer(http.Dir(ui)))
	// 向前端暴露 API 基础路径，避免硬编码
	mux.HandleFunc("/config.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte("window.__API_BASE__='" + cfg.APIBase + "'\n"))
	})

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler, cfg.RateLimitRPS)
	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	if cfg.TLSEnable {
		if err := utils.EnsureSelfSignedCert(cfg.TLSCert, cfg.TLSKey, "globe-api.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLSCert)
		err = s.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
	} else {
		l.Info("listening", "addr", cfg.Addr)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("server_error", "err", err)
		os.Exit(1)
	}
	l.Info("server_stopped")
}
