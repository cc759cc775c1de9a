package api

import (
	"net/http"

	"globe-api/internal/dataset"
)

// GET /stats：数据规模与会话数；启用数据库时附带定位次数
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	m := map[string]any{
		"features": len(s.d.Dataset.Features),
		"cities":   len(s.d.Dataset.Cities),
		"labels": map[string]int{
			string(dataset.TierNone): len(s.records[dataset.TierNone]),
			string(dataset.TierKey):  len(s.records[dataset.TierKey]),
			string(dataset.TierMore): len(s.records[dataset.TierMore]),
		},
		"sessions": s.sessions.Len(),
	}
	if s.d.Store != nil {
		if t, err := s.d.Store.GetTotals(r.Context()); err == nil {
			m["queries"] = map[string]int64{"total": t.Total, "approx": t.Approx, "today": t.Today}
		}
	}
	writeJSON(w, http.StatusOK, m)
}
