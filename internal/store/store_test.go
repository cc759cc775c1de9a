package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"globe-api/internal/dataset"
	"globe-api/internal/migrate"
)

var _ dataset.Source = (*Store)(nil)

// 需要可写的测试库：PG_TEST_DSN=postgres://... go test ./internal/store
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN not set")
	}
	s, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.DB().Ping())
	require.NoError(t, migrate.EnsureSchema(s.DB()))
	_, err = s.DB().Exec("TRUNCATE _globe_cities, _globe_country_meta")
	require.NoError(t, err)
	return s
}

func TestValidCity(t *testing.T) {
	assert.True(t, validCity(dataset.City{Lat: 90, Lon: -180}))
	assert.False(t, validCity(dataset.City{Lat: 91}))
	assert.False(t, validCity(dataset.City{Lon: 180.5}))
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.DB().Exec(`INSERT INTO _globe_cities(name_en, name_zh, lat, lon, country_code, importance) VALUES
		('Beijing', '北京', 39.9, 116.4, 'chn', 1),
		('Nowhere', '', 120, 0, 'XX', 1),
		('Lyon', '', 45.76, 4.84, 'FRA', NULL)`)
	require.NoError(t, err)
	_, err = s.DB().Exec(`INSERT INTO _globe_country_meta(code, name_en, area_km2, pop_est, label_lon, label_lat) VALUES
		('chn', 'China', 9600000, NULL, 103, 36),
		('FRA', 'France', NULL, NULL, 2.8, NULL)`)
	require.NoError(t, err)

	cities, err := s.Cities(ctx)
	require.NoError(t, err)
	require.Len(t, cities, 2)
	assert.Equal(t, "CHN", cities[0].CountryCode)
	assert.Equal(t, 1.0, cities[1].Importance)

	meta, err := s.CountryMeta(ctx)
	require.NoError(t, err)
	require.Contains(t, meta, "CHN")
	assert.Equal(t, 9600000.0, meta["CHN"].AreaKm2)
	assert.Zero(t, meta["CHN"].Population)
	require.NotNil(t, meta["CHN"].LabelLon)
	assert.Nil(t, meta["FRA"].LabelLon)

	before, err := s.GetTotals(ctx)
	require.NoError(t, err)
	require.NoError(t, s.IncrStats(ctx, true))
	after, err := s.GetTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Total+1, after.Total)
	assert.Equal(t, before.Approx+1, after.Approx)
}

func TestStoreImport(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	lon, lat := 103.0, 36.0
	cities := []dataset.City{
		{NameEn: "Beijing", NameZh: "北京", Lat: 39.9, Lon: 116.4, CountryCode: "chn", Importance: 1},
		{NameEn: "Bad", Lat: 99, Lon: 0, CountryCode: "XX", Importance: 1},
		{NameZh: "无名", Lat: 1, Lon: 1, CountryCode: "XX", Importance: 1},
	}
	n, err := s.ImportCities(ctx, cities)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// 重复导入只更新
	cities[0].Importance = 2
	_, err = s.ImportCities(ctx, cities[:1])
	require.NoError(t, err)
	got, err := s.Cities(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Importance)

	n, err = s.ImportCountryMeta(ctx, map[string]dataset.CountryMeta{
		"chn": {NameEn: "China", AreaKm2: 9600000, LabelLon: &lon, LabelLat: &lat},
		" ":   {NameEn: "blank"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	meta, err := s.CountryMeta(ctx)
	require.NoError(t, err)
	require.Contains(t, meta, "CHN")
	assert.Equal(t, 36.0, *meta["CHN"].LabelLat)
	assert.Zero(t, meta["CHN"].Population)
}

func TestStatsErrors(t *testing.T) {
	s, err := Open("postgres://globe@127.0.0.1:1/globe?sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	ctx := context.Background()
	assert.Error(t, s.IncrStats(ctx, true))
	totals, err := s.GetTotals(ctx)
	assert.Error(t, err)
	assert.Nil(t, totals)
}

func TestGetTotalsMissingRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.DB().Exec("DELETE FROM _globe_stats_total")
	require.NoError(t, err)
	t.Cleanup(func() { _ = migrate.EnsureSchema(s.DB()) })

	_, err = s.GetTotals(ctx)
	assert.Error(t, err)
	// 没有累计行时 UPDATE 不报错，仍返回 nil
	assert.NoError(t, s.IncrStats(ctx, false))
}

func TestPositiveOrNull(t *testing.T) {
	assert.False(t, positiveOrNull(0).Valid)
	assert.False(t, positiveOrNull(-3).Valid)
	assert.Equal(t, 5.0, positiveOrNull(5).Float64)
}
