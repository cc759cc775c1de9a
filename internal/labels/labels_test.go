package labels

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"globe-api/internal/geo"
)

const (
	vpW = 1200.0
	vpH = 800.0
)

var t0 = time.Unix(1700000000, 0)

func country(id string, lon, lat, imp float64) Record {
	return Record{
		ID: id, Lon: lon, Lat: lat, Importance: imp, CountryCode: id,
		Text:  map[string]string{"en": id, "zh": id + "_zh"},
		Class: CountryClass{AreaKm2: math.NaN(), Population: math.NaN()},
	}
}

func city(id, cc string, lon, lat float64, tier int) Record {
	imp := 1.0
	if tier == 1 {
		imp = 2
	}
	return Record{
		ID: id, Lon: lon, Lat: lat, Importance: imp, CountryCode: cc,
		Text:  map[string]string{"en": id},
		Class: CityClass{Tier: tier},
	}
}

// 相机位于 (lon0, lat0) 正上方 dist 处，朝向球心
func frameAt(now time.Time, lon0, lat0, dist float64) Frame {
	return Frame{
		Now:      now,
		Camera:   NewOrbitCamera(geo.LatLonToVec3(lon0, lat0, dist), 45, vpW/vpH),
		Viewport: Viewport{W: vpW, H: vpH},
		Density:  DensityDefault,
		Lang:     "en",
	}
}

func randomRecords(n int, seed int64) []Record {
	rnd := rand.New(rand.NewSource(seed))
	out := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		lon := rnd.Float64()*120 - 60
		lat := rnd.Float64()*100 - 50
		out = append(out, country(fmt.Sprintf("L%03d", i), lon, lat, 0.5+rnd.Float64()*1.5))
	}
	return out
}

func TestBudget(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		w    float64
		d    Density
		lod  LODLevel
		want int
	}{
		{1200, DensityDefault, LODMid, 30},
		{1200, DensityFew, LODMid, 15},
		{1200, DensityMany, LODNear, 72},
		{500, DensityDefault, LODFar, 11},
		{500, DensityFew, LODFar, 10},
		{500, Density("bogus"), LODMid, 18},
		{1200, DensityNone, LODNear, 0},
	}
	for _, tc := range tests {
		assert.Equalf(t, tc.want, cfg.Budget(tc.w, tc.d, tc.lod), "%v/%v/%v", tc.w, tc.d, tc.lod)
	}
}

func TestCountryLOD(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, LODNear, cfg.CountryLOD(3))
	assert.Equal(t, LODNear, cfg.CountryLOD(4))
	assert.Equal(t, LODMid, cfg.CountryLOD(7))
	assert.Equal(t, LODFar, cfg.CountryLOD(10))

	nan := math.NaN()
	tests := []struct {
		cls   CountryClass
		level LODLevel
		want  bool
	}{
		{CountryClass{1000, 1000}, LODNear, true},
		{CountryClass{1000, 1000}, LODMid, false},
		{CountryClass{nan, 1000}, LODMid, true},
		{CountryClass{1000, nan}, LODFar, true},
		{CountryClass{100000, 1000}, LODMid, true},
		{CountryClass{100000, 1000}, LODFar, false},
		{CountryClass{1000, 5e6}, LODMid, true},
		{CountryClass{1000, 5e6}, LODFar, false},
	}
	for _, tc := range tests {
		lc := lodContext{cfg: &cfg, level: tc.level}
		assert.Equalf(t, tc.want, tc.cls.passesLOD(lc, &Record{}), "%+v at %v", tc.cls, tc.level)
	}
}

func TestCityLOD(t *testing.T) {
	cfg := DefaultConfig()
	key := city("K", "CHN", 0, 0, 1)
	minor := city("M", "CHN", 0, 0, 2)
	tests := []struct {
		dist    float64
		focused string
		rec     Record
		want    bool
	}{
		{9, "", key, false},
		{7, "", key, true},
		{7, "", minor, false},
		{5, "", minor, true},
		{5, "CHN", minor, true},
		{5, "USA", key, false},
	}
	for _, tc := range tests {
		lc := lodContext{cfg: &cfg, camDist: tc.dist, focused: tc.focused}
		assert.Equalf(t, tc.want, passesLOD(lc, &tc.rec), "%s at %v focus=%q", tc.rec.ID, tc.dist, tc.focused)
	}
}

func TestScoreImportanceMonotonic(t *testing.T) {
	cfg := DefaultConfig()
	for _, kind := range []Kind{KindCountry, KindCity} {
		for _, sticky := range []bool{false, true} {
			base := ScoreInput{Alpha: 0.8, Dot: 0.9, CenterDistPx: 120, Kind: kind, CamDist: 5, Sticky: sticky}
			prev := -1.0
			for imp := 0.0; imp <= 3; imp += 0.05 {
				in := base
				in.Importance = imp
				s := Score(in, cfg)
				assert.GreaterOrEqualf(t, s, prev, "kind=%s imp=%v", kind, imp)
				prev = s
			}
		}
	}
	lo := Score(ScoreInput{Alpha: 1, Dot: 1, Importance: 0.5, Kind: KindCountry, CamDist: 5}, cfg)
	hi := Score(ScoreInput{Alpha: 1, Dot: 1, Importance: 2, Kind: KindCountry, CamDist: 5}, cfg)
	assert.Greater(t, hi, lo)
}

func TestScoreBonuses(t *testing.T) {
	cfg := DefaultConfig()
	in := ScoreInput{Alpha: 1, Dot: 1, CenterDistPx: 300, Importance: 1, Kind: KindCountry, CamDist: 5}
	base := Score(in, cfg)
	assert.InDelta(t, 1.0*0.5*2.0, base, 1e-12)

	c := in
	c.Kind = KindCity
	assert.InDelta(t, 0.5*1.2, Score(c, cfg), 1e-12)
	c.FocusedCity = true
	assert.InDelta(t, 0.5*1.2*1.5, Score(c, cfg), 1e-12)

	s := in
	s.Sticky = true
	assert.InDelta(t, base*1.25, Score(s, cfg), 1e-12)

	f := in
	f.CenterDistPx, f.CamDist = 10, 3
	assert.Greater(t, Score(f, cfg), 500*Score(ScoreInput{Alpha: 1, Dot: 1, CenterDistPx: 10, Importance: 1, Kind: KindCountry, CamDist: 5}, cfg))

	zero := cfg
	zero.CenterK = 0
	assert.False(t, math.IsNaN(Score(in, zero)))
}

func TestSelectShortCircuits(t *testing.T) {
	cfg := DefaultConfig()
	recs := randomRecords(20, 1)
	f := frameAt(t0, 0, 0, 3)

	none := f
	none.Density = DensityNone
	assert.Empty(t, Select(none, recs, nil, cfg))

	noCam := f
	noCam.Camera = nil
	assert.Empty(t, Select(noCam, recs, nil, cfg))

	flat := f
	flat.Viewport.H = 0
	assert.Empty(t, Select(flat, recs, nil, cfg))

	assert.Empty(t, Select(f, nil, nil, cfg))
	assert.NotEmpty(t, Select(f, recs, nil, cfg))
}

func TestSelectSkipsInvalidAndBackside(t *testing.T) {
	cfg := DefaultConfig()
	recs := []Record{
		country("NAN", math.NaN(), 0, 1),
		country("BAD", 0, 200, 1),
		country("BACK", 180, 0, 1),
		country("FRONT", 0, 0, 1),
	}
	w := Select(frameAt(t0, 0, 0, 3), recs, nil, cfg)
	require.Len(t, w, 1)
	assert.Equal(t, "FRONT", w[0].Record.ID)
	assert.InDelta(t, vpW/2, w[0].X, 1e-6)
	assert.InDelta(t, vpH/2, w[0].Y, 1e-6)
}

func TestSelectScreenOrientation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GridSize = 10
	recs := []Record{country("E", 10, 0, 1), country("N", 0, 10, 1)}
	f := frameAt(t0, 0, 0, 3)
	f.Viewport.X, f.Viewport.Y = 100, 50
	w := Select(f, recs, nil, cfg)
	require.Len(t, w, 2)
	pos := map[string]Winner{}
	for _, x := range w {
		pos[x.Record.ID] = x
	}
	// 东经在右，北纬在上；坐标包含视口偏移
	assert.Greater(t, pos["E"].X, 100+vpW/2)
	assert.InDelta(t, 50+vpH/2, pos["E"].Y, 1e-6)
	assert.Less(t, pos["N"].Y, 50+vpH/2)
}

func TestSelectBudgetRespected(t *testing.T) {
	cfg := DefaultConfig()
	recs := randomRecords(300, 2)
	for _, d := range []Density{DensityFew, DensityDefault, DensityMany} {
		for _, dist := range []float64{2.5, 5, 12} {
			f := frameAt(t0, 0, 0, dist)
			f.Density = d
			w := Select(f, recs, NewSelectionState(), cfg)
			budget := cfg.Budget(vpW, d, cfg.CountryLOD(dist))
			assert.LessOrEqualf(t, len(w), budget, "density=%s dist=%v", d, dist)
		}
	}
}

func TestSelectGridCollision(t *testing.T) {
	cfg := DefaultConfig()
	recs := randomRecords(400, 3)
	st := NewSelectionState()
	for i := 0; i < 20; i++ {
		f := frameAt(t0.Add(time.Duration(i)*50*time.Millisecond), float64(i)*2, 0, 3)
		f.Density = DensityMany
		w := Select(f, recs, st, cfg)
		require.NotEmpty(t, w)
		cells := map[cellKey]string{}
		ids := map[string]bool{}
		for _, x := range w {
			k := cellKey{int(math.Floor(x.X / cfg.GridSize)), int(math.Floor(x.Y / cfg.GridSize))}
			assert.Equal(t, x.cell, k)
			if other, dup := cells[k]; dup {
				t.Errorf("frame %d: %s and %s share cell %v", i, other, x.Record.ID, k)
			}
			cells[k] = x.Record.ID
			assert.False(t, ids[x.Record.ID], "label selected twice")
			ids[x.Record.ID] = true
		}
		for j := 1; j < len(w); j++ {
			assert.GreaterOrEqual(t, w[j-1].Score, w[j].Score)
		}
	}
}

func TestStickyHysteresis(t *testing.T) {
	cfg := DefaultConfig()
	p := &Record{ID: "P"}
	n := &Record{ID: "N"}
	k := cellKey{1, 1}
	const s = 2.0
	threshold := s * (1 + cfg.StickySwitchGain)

	tests := []struct {
		name   string
		dt     time.Duration
		cands  []candidate
		wantID string
		score  float64
	}{
		{"just_below_keeps", 100 * time.Millisecond, []candidate{{rec: p, score: s}, {rec: n, score: threshold - 1e-9}}, "P", s},
		{"just_above_switches", 100 * time.Millisecond, []candidate{{rec: p, score: s}, {rec: n, score: threshold + 1e-9}}, "N", threshold + 1e-9},
		{"expired_switches", cfg.StickyDuration, []candidate{{rec: p, score: s}, {rec: n, score: s * 1.01}}, "N", s * 1.01},
		{"absent_switches", 100 * time.Millisecond, []candidate{{rec: n, score: s * 0.5}}, "N", s * 0.5},
		{"stale_score_used", 100 * time.Millisecond, []candidate{{rec: p, score: s * 0.2}, {rec: n, score: s * 0.3}}, "P", s},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := NewSelectionState()
			first := st.resolve(t0, map[cellKey][]candidate{k: {{rec: p, score: s}}}, &cfg)
			require.Len(t, first, 1)
			require.Equal(t, "P", first[0].Record.ID)

			w := st.resolve(t0.Add(tc.dt), map[cellKey][]candidate{k: tc.cands}, &cfg)
			require.Len(t, w, 1)
			assert.Equal(t, tc.wantID, w[0].Record.ID)
			assert.InDelta(t, tc.score, w[0].Score, 1e-12)
		})
	}
}

func TestStickyExpiryPurged(t *testing.T) {
	cfg := DefaultConfig()
	st := NewSelectionState()
	p := &Record{ID: "P"}
	st.resolve(t0, map[cellKey][]candidate{{0, 0}: {{rec: p, score: 1}}}, &cfg)
	cells, _ := st.Len()
	assert.Equal(t, 1, cells)
	st.resolve(t0.Add(cfg.StickyDuration), map[cellKey][]candidate{}, &cfg)
	cells, _ = st.Len()
	assert.Equal(t, 0, cells)
}

func TestSelectStableScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLabelsDesktop = 10
	cfg.MinBudget = 1
	cfg.LODBudgetFactors = map[LODLevel]float64{LODNear: 1, LODMid: 1, LODFar: 1}
	recs := randomRecords(100, 4)
	f := frameAt(t0, 0, 0, 3)

	st := NewSelectionState()
	a := Select(f, recs, st, cfg)
	b := Select(f, recs, st, cfg)
	require.Len(t, a, 10)
	require.Len(t, b, 10)
	// 第二次调用获得近期显示加成，入选集合与顺序不变
	for i := range a {
		assert.Equal(t, a[i].Record.ID, b[i].Record.ID)
		assert.GreaterOrEqual(t, b[i].Score, a[i].Score)
	}

	c := Select(f, recs, NewSelectionState(), cfg)
	d := Select(f, recs, NewSelectionState(), cfg)
	assert.Equal(t, c, d)
}

func TestSelectImportanceWinsSharedCell(t *testing.T) {
	cfg := DefaultConfig()
	recs := []Record{country("LOW", 5, 5, 0.5), country("HIGH", 5, 5, 2)}
	w := Select(frameAt(t0, 0, 0, 3), recs, nil, cfg)
	require.Len(t, w, 1)
	assert.Equal(t, "HIGH", w[0].Record.ID)

	// 顺序无关
	recs[0], recs[1] = recs[1], recs[0]
	w = Select(frameAt(t0, 0, 0, 3), recs, nil, cfg)
	require.Len(t, w, 1)
	assert.Equal(t, "HIGH", w[0].Record.ID)
}

func TestSelectFocusedCountryCities(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GridSize = 5
	recs := []Record{
		city("BEIJING", "CHN", 4, 4, 1),
		city("TOKYO", "JPN", -4, -4, 1),
	}
	f := frameAt(t0, 0, 0, 3)
	f.FocusedCountry = "CHN"
	w := Select(f, recs, nil, cfg)
	require.Len(t, w, 1)
	assert.Equal(t, "BEIJING", w[0].Record.ID)

	f.FocusedCountry = ""
	assert.Len(t, Select(f, recs, nil, cfg), 2)
}

func TestSelectGlobeRotation(t *testing.T) {
	cfg := DefaultConfig()
	recs := []Record{country("FAR", 90, 0, 1)}
	f := frameAt(t0, 0, 0, 3)
	assert.Empty(t, Select(f, recs, nil, cfg))
	// 绕 Y 轴旋转把 90°E 转到相机正前方
	f.Globe.RotY = -math.Pi / 2
	w := Select(f, recs, nil, cfg)
	require.Len(t, w, 1)
	assert.InDelta(t, vpW/2, w[0].X, 1e-6)
}

func TestFontSize(t *testing.T) {
	cfg := DefaultConfig()
	assert.InDelta(t, 12, FontSize(cfg, 8, 3), 1e-9)
	assert.InDelta(t, 18, FontSize(cfg, 2, 3), 1e-9)
	assert.InDelta(t, 12+6*math.Sin(math.Pi/4), FontSize(cfg, 4.75, 4), 1e-9)
	assert.InDelta(t, 18*(1-0.012*6), FontSize(cfg, 2, 10), 1e-9)
	assert.InDelta(t, 18*0.7, FontSize(cfg, 2, 200), 1e-9)
}

func TestSmootherFadeInOut(t *testing.T) {
	cfg := DefaultConfig()
	recs := []Record{country("C", 0, 0, 1)}
	sm := NewSmoother()
	f := frameAt(t0, 0, 0, 3)
	w := Select(f, recs, nil, cfg)
	require.Len(t, w, 1)

	out := sm.Step(f, recs, w, cfg)
	require.Len(t, out, 1)
	assert.InDelta(t, cfg.AlphaSmooth, out[0].Alpha, 1e-9)
	assert.InDelta(t, vpW/2, out[0].X, 1e-6, "first sighting snaps to target")
	assert.Equal(t, "C", out[0].Text)

	out = sm.Step(f, recs, w, cfg)
	require.Len(t, out, 1)
	assert.InDelta(t, cfg.AlphaSmooth+(1-cfg.AlphaSmooth)*cfg.AlphaSmooth, out[0].Alpha, 1e-9)

	prev := out[0].Alpha
	frames := 0
	for {
		out = sm.Step(f, recs, nil, cfg)
		frames++
		if len(out) == 0 {
			break
		}
		assert.Less(t, out[0].Alpha, prev)
		assert.Greater(t, out[0].Alpha, cfg.HideAlpha)
		prev = out[0].Alpha
		require.Less(t, frames, 100)
	}
	assert.Greater(t, frames, 1, "labels fade out over several frames")
	assert.Equal(t, 0, sm.Len())
}

func TestSmootherPositionEases(t *testing.T) {
	cfg := DefaultConfig()
	recs := []Record{country("C", 0, 0, 1)}
	sm := NewSmoother()
	f := frameAt(t0, 0, 0, 3)
	out := sm.Step(f, recs, Select(f, recs, nil, cfg), cfg)
	require.Len(t, out, 1)
	x0 := out[0].X

	// 相机向西移动，标签目标向右偏移
	g := frameAt(t0, -5, 0, 3)
	target := Select(g, recs, nil, cfg)
	require.Len(t, target, 1)
	out = sm.Step(g, recs, target, cfg)
	require.Len(t, out, 1)
	assert.InDelta(t, x0+(target[0].X-x0)*cfg.PosSmooth, out[0].X, 1e-6)
}

func TestRecordDisplayText(t *testing.T) {
	r := Record{ID: "X", Text: map[string]string{"zh": "中"}}
	assert.Equal(t, "中", r.DisplayText("zh"))
	assert.Equal(t, "中", r.DisplayText("en"))
	r.Text["en"] = "Mid"
	assert.Equal(t, "Mid", r.DisplayText("fr"))
	assert.Equal(t, "Y", (&Record{ID: "Y"}).DisplayText("en"))
}

func TestEngineThrottlesSelection(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEngine(cfg, randomRecords(50, 5))
	out := e.Update(frameAt(t0, 0, 0, 3))
	assert.NotEmpty(t, out)
	assert.Equal(t, t0, e.lastSelect)
	first := e.LastWinners()

	e.Update(frameAt(t0.Add(5*time.Millisecond), 0, 0, 3))
	assert.Equal(t, t0, e.lastSelect, "reselection throttled")
	assert.Equal(t, first, e.LastWinners())

	e.Update(frameAt(t0.Add(cfg.SelectInterval), 0, 0, 3))
	assert.Equal(t, t0.Add(cfg.SelectInterval), e.lastSelect)

	// 时间回退时立即重新筛选
	e.Update(frameAt(t0, 0, 0, 3))
	assert.Equal(t, t0, e.lastSelect)
}

func TestEngineResetAndSetRecords(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEngine(cfg, randomRecords(50, 6))
	e.Update(frameAt(t0, 0, 0, 3))
	cells, lbls := e.State().Len()
	assert.Greater(t, cells, 0)
	assert.Greater(t, lbls, 0)

	e.SetRecords([]Record{country("ONLY", 0, 0, 1)})
	cells, lbls = e.State().Len()
	assert.Zero(t, cells)
	assert.Zero(t, lbls)
	assert.Nil(t, e.LastWinners())

	out := e.Update(frameAt(t0.Add(time.Millisecond), 0, 0, 3))
	require.Len(t, out, 1)
	assert.Equal(t, "ONLY", out[0].ID)

	none := frameAt(t0.Add(time.Second), 0, 0, 3)
	none.Density = DensityNone
	e.Update(none)
	assert.Empty(t, e.LastWinners())
}
