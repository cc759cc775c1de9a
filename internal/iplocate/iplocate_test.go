package iplocate

import (
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource map[string]Result

func (f fakeSource) Lookup(ip string) (Result, bool) {
	r, ok := f[ip]
	return r, ok
}

func TestLocatorChain(t *testing.T) {
	first := fakeSource{"1.1.1.1": {CountryCode: "AU", Source: "a"}}
	second := fakeSource{
		"1.1.1.1": {CountryCode: "US", Source: "b"},
		"8.8.8.8": {CountryCode: "US", Lat: 37.4, Lon: -122.1, HasCoord: true, Source: "b"},
	}
	l := New(nil, first, second)
	assert.True(t, l.Enabled())

	r, ok := l.Lookup(" 1.1.1.1 ")
	require.True(t, ok)
	assert.Equal(t, "a", r.Source)
	assert.Equal(t, "1.1.1.1", r.IP)

	r, ok = l.Lookup("8.8.8.8")
	require.True(t, ok)
	assert.True(t, r.HasCoord)

	_, ok = l.Lookup("9.9.9.9")
	assert.False(t, ok)
	_, ok = l.Lookup("not-an-ip")
	assert.False(t, ok)

	var nilLoc *Locator
	_, ok = nilLoc.Lookup("1.1.1.1")
	assert.False(t, ok)
	assert.False(t, nilLoc.Enabled())
	assert.NoError(t, nilLoc.Close())
}

func TestOpen(t *testing.T) {
	l, err := Open(Paths{})
	require.NoError(t, err)
	assert.False(t, l.Enabled())
	assert.NoError(t, l.Close())

	dir := t.TempDir()
	for _, p := range []Paths{
		{MMDB: filepath.Join(dir, "missing.mmdb")},
		{XDB: filepath.Join(dir, "missing.xdb")},
		{IPDB: filepath.Join(dir, "missing.ipdb")},
	} {
		l, err = Open(p)
		assert.Error(t, err)
		require.NotNil(t, l)
		assert.False(t, l.Enabled())
	}

	// 一个数据源损坏不影响其余数据源
	l, err = Open(Paths{
		MMDB:     filepath.Join(dir, "missing.mmdb"),
		IPDB:     writeIPDB(t, "中国\t北京\t北京"),
		IPDBLang: "CN",
		XDB:      filepath.Join(dir, "missing.xdb"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.mmdb")
	assert.Contains(t, err.Error(), "missing.xdb")
	require.True(t, l.Enabled())
	r, ok := l.Lookup("1.2.3.4")
	require.True(t, ok)
	assert.Equal(t, "ipip", r.Source)
	assert.NoError(t, l.Close())

	l, err = Open(Paths{IPDB: writeIPDB(t, "中国\t北京\t北京"), IPDBLang: "CN"})
	require.NoError(t, err)
	r, ok = l.Lookup("1.2.3.4")
	require.True(t, ok)
	assert.Equal(t, "ipip", r.Source)
	assert.Equal(t, "1.2.3.4", r.IP)
}

func TestParseRegion(t *testing.T) {
	tests := []struct {
		in   string
		want Result
	}{
		{"中国|0|广东省|深圳市|电信", Result{Country: "中国", Region: "广东省", City: "深圳市"}},
		{"美国|0|加利福尼亚|0|0", Result{Country: "美国", Region: "加利福尼亚"}},
		{"0|0|0|内网IP|内网IP", Result{City: "内网IP"}},
		{"Japan|East|0|Unknown", Result{Country: "Japan", Region: "East"}},
		{"", Result{}},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, parseRegion(tc.in), tc.in)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		headers map[string]string
		remote  string
		want    string
	}{
		{"query", "/locate?ip=5.5.5.5", map[string]string{"X-Forwarded-For": "1.1.1.1"}, "", "5.5.5.5"},
		{"xff_first", "/locate", map[string]string{"X-Forwarded-For": "1.1.1.1, 10.0.0.1"}, "", "1.1.1.1"},
		{"real_ip", "/locate", map[string]string{"X-Real-IP": "2.2.2.2"}, "", "2.2.2.2"},
		{"forwarded", "/locate", map[string]string{"Forwarded": `for="[2001:db8::1]";proto=https`}, "", "2001:db8::1"},
		{"remote_v4", "/locate", nil, "3.3.3.3:5555", "3.3.3.3"},
		{"remote_v6", "/locate", nil, "[::1]:5555", "::1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tc.url, nil)
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			if tc.remote != "" {
				r.RemoteAddr = tc.remote
			}
			assert.Equal(t, tc.want, ClientIP(r))
		})
	}
}

func TestFromHeaders(t *testing.T) {
	h := http.Header{}
	_, ok := FromHeaders(h)
	assert.False(t, ok)

	h.Set("X-EO-Geo-CountryCodeAlpha2", "cn")
	h.Set("X-EO-Geo-Latitude", "39.9")
	h.Set("X-EO-Geo-Longitude", "bad")
	r, ok := FromHeaders(h)
	require.True(t, ok)
	assert.Equal(t, "CN", r.CountryCode)
	assert.False(t, r.HasCoord)

	h.Set("X-EO-Geo-CountryCodeAlpha3", "CHN")
	h.Set("X-EO-Geo-Longitude", "116.4")
	r, ok = FromHeaders(h)
	require.True(t, ok)
	assert.Equal(t, "CHN", r.CountryCode)
	assert.True(t, r.HasCoord)
	assert.Equal(t, 116.4, r.Lon)
	assert.Equal(t, "edge", r.Source)

	coordsOnly := http.Header{}
	coordsOnly.Set("X-EO-Geo-Latitude", "-33.9")
	coordsOnly.Set("X-EO-Geo-Longitude", "151.2")
	r, ok = FromHeaders(coordsOnly)
	require.True(t, ok)
	assert.Empty(t, r.CountryCode)

	outOfRange := http.Header{}
	outOfRange.Set("X-EO-Geo-Latitude", "95")
	outOfRange.Set("X-EO-Geo-Longitude", "10")
	_, ok = FromHeaders(outOfRange)
	assert.False(t, ok)
}

func TestIsGeoIP2Layout(t *testing.T) {
	assert.True(t, isGeoIP2Layout("GeoLite2-City"))
	assert.True(t, isGeoIP2Layout("GeoIP2-Country"))
	assert.True(t, isGeoIP2Layout("DBIP-City-Lite"))
	assert.False(t, isGeoIP2Layout("ipinfo_lite.mmdb"))
	assert.False(t, isGeoIP2Layout(""))
}

func TestFromRawRecord(t *testing.T) {
	tests := []struct {
		name string
		rec  map[string]any
		want Result
		ok   bool
	}{
		{"ipinfo lite", map[string]any{"country_code": "fr", "country": "France", "continent": "Europe"},
			Result{CountryCode: "FR", Country: "France", Source: "mmdb"}, true},
		{"country as code", map[string]any{"country": "DE", "country_name": "Germany"},
			Result{CountryCode: "DE", Country: "Germany", Source: "mmdb"}, true},
		{"coords", map[string]any{"country": "JP", "city": "Tokyo", "lat": 35.68, "lng": 139.69},
			Result{CountryCode: "JP", City: "Tokyo", Lat: 35.68, Lon: 139.69, HasCoord: true, Source: "mmdb"}, true},
		{"zero coords", map[string]any{"country": "JP", "latitude": 0.0, "longitude": 0.0},
			Result{CountryCode: "JP", Source: "mmdb"}, true},
		{"empty", map[string]any{"asn": "AS13335"}, Result{}, false},
	}
	for _, tc := range tests {
		got, ok := fromRawRecord(tc.rec)
		assert.Equal(t, tc.ok, ok, tc.name)
		assert.Equal(t, tc.want, got, tc.name)
	}
}

func TestAMap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		switch r.URL.Query().Get("ip") {
		case "114.247.50.2":
			_, _ = w.Write([]byte(`{"status":"1","info":"OK","infocode":"10000","province":"北京市","city":"北京市","adcode":"110000","rectangle":"116.0119343,39.66127144;116.7829835,40.2164962"}`))
		case "8.8.8.8":
			_, _ = w.Write([]byte(`{"status":"1","info":"OK","infocode":"10000","province":[],"city":[],"adcode":[],"rectangle":[]}`))
		default:
			_, _ = w.Write([]byte(`{"status":"0","info":"INVALID_USER_KEY","infocode":"10001"}`))
		}
	}))
	defer srv.Close()
	a := NewAMap("k", srv.Client())
	a.endpoint = srv.URL

	r, ok := a.Lookup("114.247.50.2")
	require.True(t, ok)
	assert.Equal(t, "CN", r.CountryCode)
	assert.Equal(t, "北京市", r.Region)
	assert.True(t, r.HasCoord)
	assert.InDelta(t, 116.397, r.Lon, 1e-3)
	assert.InDelta(t, 39.939, r.Lat, 1e-3)

	_, ok = a.Lookup("8.8.8.8")
	assert.False(t, ok, "foreign ip")
	_, ok = a.Lookup("1.2.3.4")
	assert.False(t, ok, "api error")

	_, ok = NewAMap("", nil).Lookup("1.2.3.4")
	assert.False(t, ok, "missing key")
}

func TestRectCenter(t *testing.T) {
	lon, lat, ok := rectCenter("10,20;12,24")
	require.True(t, ok)
	assert.Equal(t, 11.0, lon)
	assert.Equal(t, 22.0, lat)
	for _, bad := range []string{"", "10,20", "10,20;x,1", "10;12"} {
		_, _, ok := rectCenter(bad)
		assert.False(t, ok, bad)
	}
}

// writeIPDB 两节点的最小 IPDB：IPv4 根的左子树为唯一叶子
func writeIPDB(t *testing.T, leaf string) string {
	t.Helper()
	const nodeCount = 2
	var data []byte
	node := func(l, r uint32) {
		data = binary.BigEndian.AppendUint32(data, l)
		data = binary.BigEndian.AppendUint32(data, r)
	}
	node(0, 1)
	node(nodeCount+1, 1)
	data = append(data, 0)
	data = binary.BigEndian.AppendUint16(data, uint16(len(leaf)))
	data = append(data, leaf...)
	meta, err := json.Marshal(map[string]any{
		"build": 1, "ip_version": 1, "node_count": nodeCount, "total_size": len(data),
		"languages": map[string]int{"CN": 0, "EN": 3},
		"fields":    []string{"country_name", "region_name", "city_name"},
	})
	require.NoError(t, err)
	body := binary.BigEndian.AppendUint32(nil, uint32(len(meta)))
	body = append(append(body, meta...), data...)
	path := filepath.Join(t.TempDir(), "test.ipdb")
	require.NoError(t, os.WriteFile(path, body, 0o644))
	return path
}

func TestIPDB(t *testing.T) {
	path := writeIPDB(t, "中国\t北京\t北京\tChina\tBeijing\tBeijing")
	db, err := OpenIPDB(path, "CN")
	require.NoError(t, err)
	assert.Equal(t, 1, db.v4offset)

	r, ok := db.Lookup("1.2.3.4")
	require.True(t, ok)
	assert.Equal(t, Result{Country: "中国", Region: "北京", City: "北京", Source: "ipip"}, r)

	_, ok = db.Lookup("255.255.255.255")
	assert.False(t, ok, "right branch never reaches a leaf")
	_, ok = db.Lookup("::1")
	assert.False(t, ok)

	en, err := OpenIPDB(path, "EN")
	require.NoError(t, err)
	r, ok = en.Lookup("10.0.0.1")
	require.True(t, ok)
	assert.Equal(t, "China", r.Country)

	fallback, err := OpenIPDB(path, "zh-CN")
	require.NoError(t, err)
	assert.Equal(t, 0, fallback.langOff)
}

func TestOpenIPDBErrors(t *testing.T) {
	dir := t.TempDir()
	short := filepath.Join(dir, "short.ipdb")
	require.NoError(t, os.WriteFile(short, []byte{0, 0}, 0o644))
	_, err := OpenIPDB(short, "CN")
	assert.Error(t, err)

	path := writeIPDB(t, "x")
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	truncated := filepath.Join(dir, "truncated.ipdb")
	require.NoError(t, os.WriteFile(truncated, body[:len(body)-1], 0o644))
	_, err = OpenIPDB(truncated, "CN")
	assert.EqualError(t, err, "bad ipdb total size")
}

func TestCoherent(t *testing.T) {
	tests := []struct {
		r    Result
		want bool
	}{
		{Result{Country: "中国", Region: "广东省", City: "深圳市"}, true},
		{Result{CountryCode: "HK", Region: "香港"}, true},
		{Result{Country: "美国", Region: "加利福尼亚"}, true},
		{Result{Region: "浙江"}, true},
		{Result{Country: "0", Region: "广东省"}, false},
		{Result{CountryCode: "US", City: "北京市"}, false},
		{Result{CountryCode: "JP", Region: "Tokyo"}, true},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, coherent(tc.r), "%+v", tc.r)
	}
}

func TestLocatorSkipsIncoherent(t *testing.T) {
	bad := fakeSource{"1.0.1.1": {Country: "0", Region: "福建省", Source: "bad"}}
	good := fakeSource{"1.0.1.1": {Country: "中国", Region: "福建省", Source: "good"}}
	r, ok := New(bad, good).Lookup("1.0.1.1")
	require.True(t, ok)
	assert.Equal(t, "good", r.Source)
}
