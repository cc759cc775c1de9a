package iplocate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"globe-api/internal/logger"
	"globe-api/internal/metrics"
)

const amapIPEndpoint = "https://restapi.amap.com/v3/ip"

// amapIPResponse 高德 IP 定位返回中用到的字段；非国内 IP 时省市为空数组
type amapIPResponse struct {
	Status    string          `json:"status"`
	Info      string          `json:"info"`
	Infocode  string          `json:"infocode"`
	Province  json.RawMessage `json:"province"`
	City      json.RawMessage `json:"city"`
	Rectangle json.RawMessage `json:"rectangle"`
}

// 文档注释：高德在线 IP 定位数据源
// 背景：本地库对国内 IP 只给到省级中文名且常无坐标；高德返回城市矩形，取其中心作为聚焦坐标。
// 约束：只支持国内 IPv4；放在链尾作为最后兜底；单次请求 4 秒超时，失败视为未命中。
type AMap struct {
	key      string
	client   *http.Client
	endpoint string
}

func NewAMap(key string, client *http.Client) *AMap {
	if client == nil {
		client = &http.Client{Timeout: 4 * time.Second}
	}
	return &AMap{key: key, client: client, endpoint: amapIPEndpoint}
}

func (a *AMap) Lookup(ip string) (Result, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
	defer cancel()
	r, err := a.query(ctx, ip)
	if err != nil {
		logger.L().Debug("amap_lookup_error", "ip", ip, "err", err)
		return Result{}, false
	}
	prov, city := amapString(r.Province), amapString(r.City)
	if prov == "" && city == "" {
		return Result{}, false
	}
	out := Result{CountryCode: "CN", Country: "中国", Region: prov, City: city, Source: "amap"}
	if lon, lat, ok := rectCenter(amapString(r.Rectangle)); ok {
		out.Lat, out.Lon, out.HasCoord = lat, lon, true
	}
	return out, true
}

func (a *AMap) query(ctx context.Context, ip string) (*amapIPResponse, error) {
	if a.key == "" {
		return nil, errors.New("missing key")
	}
	q := url.Values{}
	q.Set("key", a.key)
	q.Set("ip", ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	t0 := time.Now()
	metrics.AMapRequestsTotal.Inc()
	resp, err := a.client.Do(req)
	if err != nil {
		metrics.AMapFailTotal.Inc()
		return nil, err
	}
	defer resp.Body.Close()
	var r amapIPResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		metrics.AMapFailTotal.Inc()
		return nil, err
	}
	metrics.AMapDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	if r.Status != "1" {
		metrics.AMapFailTotal.Inc()
		return &r, errors.New("amap error: " + r.Infocode + " " + r.Info)
	}
	return &r, nil
}

// amapString 字段为字符串时返回其值；空数组等其他形态返回空串
func amapString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// rectCenter 解析 "lon1,lat1;lon2,lat2" 并返回中心点
func rectCenter(rect string) (lon, lat float64, ok bool) {
	corners := strings.Split(rect, ";")
	if len(corners) != 2 {
		return 0, 0, false
	}
	var xs, ys [2]float64
	for i, c := range corners {
		parts := strings.Split(c, ",")
		if len(parts) != 2 {
			return 0, 0, false
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errX != nil || errY != nil {
			return 0, 0, false
		}
		xs[i], ys[i] = x, y
	}
	return (xs[0] + xs[1]) / 2, (ys[0] + ys[1]) / 2, true
}
