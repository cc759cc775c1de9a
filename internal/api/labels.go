package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"

	"globe-api/internal/dataset"
	"globe-api/internal/labels"
)

type vec3 [3]float64

func (v vec3) r3() r3.Vector { return r3.Vector{X: v[0], Y: v[1], Z: v[2]} }

// frameRequest 一帧的相机与显示参数
type frameRequest struct {
	Session string `json:"session,omitempty"`
	Camera  struct {
		Eye    vec3    `json:"eye"`
		Target vec3    `json:"target"`
		Up     *vec3   `json:"up,omitempty"`
		Fov    float64 `json:"fov"`
		Aspect float64 `json:"aspect"`
		Near   float64 `json:"near,omitempty"`
		Far    float64 `json:"far,omitempty"`
	} `json:"camera"`
	Viewport labels.Viewport `json:"viewport"`
	Globe    struct {
		RotY   float64 `json:"rot_y"`
		Offset vec3    `json:"offset"`
	} `json:"globe"`
	Focused string `json:"focused,omitempty"`
	Density string `json:"density,omitempty"`
	Tier    string `json:"tier,omitempty"`
	Lang    string `json:"lang,omitempty"`
	NowMs   int64  `json:"now_ms,omitempty"`
}

type labelsResponse struct {
	Session string            `json:"session,omitempty"`
	Labels  []labels.Rendered `json:"labels"`
}

// frame 请求 -> labels.Frame；now_ms 缺省时使用服务端时间
func (fr *frameRequest) frame() labels.Frame {
	cam := labels.PerspectiveCamera{
		Eye:    fr.Camera.Eye.r3(),
		Target: fr.Camera.Target.r3(),
		Up:     r3.Vector{Y: 1},
		FovY:   fr.Camera.Fov,
		Aspect: fr.Camera.Aspect,
		Near:   fr.Camera.Near,
		Far:    fr.Camera.Far,
	}
	if fr.Camera.Up != nil {
		cam.Up = fr.Camera.Up.r3()
	}
	if cam.Aspect <= 0 && fr.Viewport.H > 0 {
		cam.Aspect = fr.Viewport.W / fr.Viewport.H
	}
	now := time.Now()
	if fr.NowMs > 0 {
		now = time.UnixMilli(fr.NowMs)
	}
	lang := fr.Lang
	if lang == "" {
		lang = "zh"
	}
	return labels.Frame{
		Now:            now,
		Camera:         cam,
		Viewport:       fr.Viewport,
		Globe:          labels.Globe{RotY: fr.Globe.RotY, Offset: fr.Globe.Offset.r3()},
		FocusedCountry: fr.Focused,
		Density:        labels.ParseDensity(fr.Density),
		Lang:           lang,
	}
}

// session 取得或创建会话；档位变化时替换记录集（同时重置粘滞与平滑状态）
func (s *Server) session(id string, tier dataset.CityTier) (string, *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		sess = &session{eng: labels.NewEngine(s.d.Labels, s.records[tier]), tier: tier}
	}
	// 重新写入以刷新空闲过期时间
	s.sessions.Set(id, sess)
	return id, sess
}

func (sess *session) update(fr *frameRequest, records map[dataset.CityTier][]labels.Record) []labels.Rendered {
	tier := dataset.ParseCityTier(fr.Tier)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if tier != sess.tier {
		sess.tier = tier
		sess.eng.SetRecords(records[tier])
	}
	out := sess.eng.Update(fr.frame())
	if out == nil {
		out = []labels.Rendered{}
	}
	return out
}

// 文档注释：POST /labels
// 背景：前端每帧（或每个节流周期）提交相机状态，返回平滑后的待绘制标签；会话 ID 由首个响应下发，
// 之后随请求回传以延续粘滞与平滑状态。
// 约束：请求体上限 64KB；视口退化或相机缺失时返回空列表而不是错误。
func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	var fr frameRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&fr); err != nil {
		writeError(w, http.StatusBadRequest, "invalid frame: "+err.Error())
		return
	}
	id, sess := s.session(fr.Session, dataset.ParseCityTier(fr.Tier))
	writeJSON(w, http.StatusOK, labelsResponse{Session: id, Labels: sess.update(&fr, s.records)})
}
