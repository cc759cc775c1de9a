// 包 api：集中注册 HTTP API 路由以解耦主入口：国家命中、标签筛选、初始聚焦与统计
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"globe-api/internal/dataset"
	"globe-api/internal/iplocate"
	"globe-api/internal/labels"
	"globe-api/internal/logger"
	"globe-api/internal/metrics"
	"globe-api/internal/revgeo"
	"globe-api/internal/store"
)

// Deps 路由依赖；IP 与 Store 可为空
type Deps struct {
	Locator *revgeo.Locator
	Dataset *dataset.Dataset
	Labels  labels.Config

	IP       *iplocate.Locator
	Store    *store.Store
	ApproxKm float64 // approx=1 时的最大兜底距离

	SessionCap int
	SessionTTL time.Duration
}

// 文档注释：API 服务
// 背景：命中判定与数据集只读共享；每个标签会话（一个前端场景）独占一个 labels.Engine，
// 会话按 LRU + 空闲过期回收，websocket 连接则在连接生命周期内独占引擎。
// 约束：标签记录按城市档位预先构建，请求之间只读共享。
type Server struct {
	d       Deps
	records map[dataset.CityTier][]labels.Record
	aliases map[string]string // ISO2/ISO3/名称 -> 要素代码

	mu       sync.Mutex
	sessions *revgeo.LRU[*session]
}

type session struct {
	mu   sync.Mutex
	eng  *labels.Engine
	tier dataset.CityTier
}

func New(d Deps) *Server {
	if d.SessionCap <= 0 {
		d.SessionCap = 1024
	}
	if d.SessionTTL <= 0 {
		d.SessionTTL = 10 * time.Minute
	}
	if d.Dataset == nil {
		d.Dataset = &dataset.Dataset{Meta: map[string]dataset.CountryMeta{}}
	}
	s := &Server{
		d:        d,
		records:  make(map[dataset.CityTier][]labels.Record),
		aliases:  make(map[string]string),
		sessions: revgeo.NewLRU[*session](d.SessionCap, d.SessionTTL),
	}
	for _, t := range []dataset.CityTier{dataset.TierNone, dataset.TierKey, dataset.TierMore} {
		s.records[t] = dataset.BuildLabels(d.Dataset, t)
	}
	for _, f := range d.Dataset.Features {
		if f.Code == "" {
			continue
		}
		for _, k := range []string{"ISO_A2", "ISO_A3", "ADM0_A3", "NAME", "NAME_EN", "NAME_ZH", "ADMIN"} {
			if v, ok := f.Props[k].(string); ok {
				s.addAlias(v, f.Code)
			}
		}
		s.addAlias(f.Code, f.Code)
		s.addAlias(f.NameZh, f.Code)
	}
	logger.L().Info("api_ready", "features", len(d.Dataset.Features), "labels", len(s.records[dataset.TierMore]), "aliases", len(s.aliases))
	return s
}

func (s *Server) addAlias(k, code string) {
	k = strings.ToUpper(strings.TrimSpace(k))
	if k == "" || k == "-99" {
		return
	}
	if _, ok := s.aliases[k]; !ok {
		s.aliases[k] = code
	}
}

// Routes 构建路由；由主入口挂载到 API 前缀下
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(instrument)
	r.HandleFunc("/country", s.handleCountry).Methods(http.MethodGet)
	r.HandleFunc("/labels", s.handleLabels).Methods(http.MethodPost)
	r.HandleFunc("/labels/ws", s.handleLabelsWS).Methods(http.MethodGet)
	r.HandleFunc("/locate", s.handleLocate).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	return r
}

// instrument 按路由模板记录请求数与耗时
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		start := time.Now()
		next.ServeHTTP(w, r)
		metrics.RequestsTotal.WithLabelValues(route).Inc()
		metrics.RequestDurationMs.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
