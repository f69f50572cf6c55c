package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"popdash/internal/engine"
	"popdash/internal/models"
)

const testCSV = `Rank,CCA3,Country/Territory,Capital,Continent,2022 Population,2020 Population,2015 Population,2010 Population,2000 Population,1990 Population,1980 Population,1970 Population,Area (km²),Density (per km²),Growth Rate,World Population Percentage
1,CHN,China,Beijing,Asia,1425887337,1424929781,1393715448,1348191368,1264099069,1153704252,982372466,822534450,9706961,146.8933,1.0,17.88
2,IND,India,New Delhi,Asia,1417173173,1396387127,1322866505,1240613620,1059633675,870452165,696828385,557501301,3287590,431.0675,1.0068,17.77
3,USA,United States,"Washington, D.C.",North America,338289857,335942003,324607776,311182845,282398554,248083732,223140018,200328340,9372610,36.0935,1.0038,4.24
4,IDN,Indonesia,Jakarta,Asia,275501339,271857970,259091970,244016173,214072421,182159874,148177096,115228394,1904569,144.6529,1.0064,3.45
5,PAK,Pakistan,Islamabad,Asia,235824862,227196741,210969298,194454498,154369924,115414069,80624057,59290872,881912,267.4018,1.0191,2.96
6,NGA,Nigeria,Abuja,Africa,218541212,208327405,183995785,160952853,122851984,95214257,72951439,55569264,923768,236.5759,1.0241,2.74
7,BRA,Brazil,Brasilia,South America,215313498,213196304,205188205,196353492,175873720,150706446,122288383,96369875,8515767,25.2841,1.0046,2.7
8,SGP,Singapore,Singapore,Asia,5975689,5909869,5650018,5163590,4053602,3022209,2400729,2061831,710,8416.4634,1.0038,0.07
9,MCO,Monaco,Monaco,Europe,36469,36922,36760,33178,32465,30329,27076,24270,2,18234.5,0.9984,0
`

func loadedCache(t *testing.T) *engine.Cache {
	t.Helper()
	cache := engine.NewCache(func(ctx context.Context) (*models.Dataset, error) {
		return engine.ParseCSV(bytes.NewBufferString(testCSV))
	})
	_, err := cache.Get(context.Background())
	require.NoError(t, err)
	return cache
}

func newTestServer(cache *engine.Cache) *echo.Echo {
	h := NewHandler(cache, engine.Pipeline{DensityThreshold: 2000, TrendDefaultCount: 3}, 10)
	return NewServer(h, ServerOptions{})
}

func do(t *testing.T, e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestGetContinents(t *testing.T) {
	e := newTestServer(loadedCache(t))

	rec := do(t, e, http.MethodGet, "/api/continents")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []string
	decode(t, rec, &got)
	assert.Equal(t, []string{"All", "Africa", "Asia", "Europe", "North America", "South America"}, got)
}

func TestGetDashboard(t *testing.T) {
	e := newTestServer(loadedCache(t))

	rec := do(t, e, http.MethodGet, "/api/dashboard?continent=Asia&top_n=5&year=2022")
	require.Equal(t, http.StatusOK, rec.Code)

	var d models.Dashboard
	decode(t, rec, &d)
	assert.Equal(t, 5, d.Summary.CountryCount)
	require.Len(t, d.Top, 5)
	assert.Equal(t, "China", d.Top[0].Country)
	assert.Equal(t, "Singapore", d.Top[4].Country)
	assert.Len(t, d.Distribution, 5, "full scope by default")
	assert.Len(t, d.Scatter, 4)
	assert.Len(t, d.Trend, 3*len(models.Years))
	assert.Equal(t, "China", d.Trend[0].Country)
}

func TestGetTop(t *testing.T) {
	e := newTestServer(loadedCache(t))

	rec := do(t, e, http.MethodGet, "/api/top?top_n=5&year=1970")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.RankedCountry
	decode(t, rec, &got)
	require.Len(t, got, 5)
	assert.Equal(t, "China", got[0].Country)
	assert.Equal(t, int64(822534450), got[0].Population)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Population, got[i].Population)
	}
}

func TestGetDistributionScope(t *testing.T) {
	e := newTestServer(loadedCache(t))

	var full, filtered struct {
		Scope string                  `json:"scope"`
		Data  []models.ContinentTotal `json:"data"`
	}

	rec := do(t, e, http.MethodGet, "/api/distribution?continent=Asia")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &full)
	assert.Equal(t, "full", full.Scope)
	assert.Len(t, full.Data, 5)

	rec = do(t, e, http.MethodGet, "/api/distribution?continent=Asia&scope=filtered")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &filtered)
	require.Len(t, filtered.Data, 1)
	assert.Equal(t, "Asia", filtered.Data[0].Continent)
}

func TestGetTrend(t *testing.T) {
	e := newTestServer(loadedCache(t))

	q := url.Values{}
	q.Set("continent", "Asia")
	q.Add("countries", "India")
	q.Add("countries", "Brazil")
	rec := do(t, e, http.MethodGet, "/api/trend?"+q.Encode())
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Countries []string            `json:"countries"`
		Data      []models.TrendPoint `json:"data"`
		Warnings  []string            `json:"warnings"`
	}
	decode(t, rec, &got)
	assert.Equal(t, []string{"India", "Brazil"}, got.Countries)
	require.Len(t, got.Data, len(models.Years))
	assert.Equal(t, models.Year1970, got.Data[0].Year)
	assert.Equal(t, int64(557501301), got.Data[0].Population)
	require.Len(t, got.Warnings, 1)
	assert.Contains(t, got.Warnings[0], "Brazil")
}

func TestGetScatterOutliers(t *testing.T) {
	e := newTestServer(loadedCache(t))

	var got struct {
		Threshold float64               `json:"density_threshold"`
		Data      []models.ScatterPoint `json:"data"`
	}
	rec := do(t, e, http.MethodGet, "/api/scatter")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &got)
	assert.Equal(t, 2000.0, got.Threshold)
	assert.Len(t, got.Data, 7)

	rec = do(t, e, http.MethodGet, "/api/scatter?outliers=include")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &got)
	assert.Zero(t, got.Threshold)
	assert.Len(t, got.Data, 9)
}

func TestGetTablePagination(t *testing.T) {
	e := newTestServer(loadedCache(t))

	var got struct {
		Data  []models.TableRow `json:"data"`
		Total int               `json:"total"`
	}
	rec := do(t, e, http.MethodGet, "/api/table?limit=3&offset=2")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &got)
	assert.Equal(t, 9, got.Total)
	require.Len(t, got.Data, 3)
	assert.Equal(t, 3, got.Data[0].Rank)

	rec = do(t, e, http.MethodGet, "/api/table?offset=50")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &got)
	assert.Empty(t, got.Data)
}

func TestGetTableLimitBounds(t *testing.T) {
	e := newTestServer(loadedCache(t))

	tests := []struct {
		query     string
		wantLen   int
		wantFirst int
	}{
		{"limit=9223372036854775807&offset=1", 8, 2},
		{"limit=9223372036854775807", 9, 1},
		{"limit=100&offset=8", 1, 9},
		{"limit=-3&offset=-1", 9, 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, e, http.MethodGet, "/api/table?"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code)

			var got struct {
				Data  []models.TableRow `json:"data"`
				Total int               `json:"total"`
			}
			decode(t, rec, &got)
			assert.Equal(t, 9, got.Total)
			require.Len(t, got.Data, tt.wantLen)
			assert.Equal(t, tt.wantFirst, got.Data[0].Rank)
		})
	}
}

func TestGetSummaryAndMap(t *testing.T) {
	e := newTestServer(loadedCache(t))

	rec := do(t, e, http.MethodGet, "/api/summary?continent=Europe")
	require.Equal(t, http.StatusOK, rec.Code)
	var s models.SummaryMetrics
	decode(t, rec, &s)
	assert.Equal(t, 1, s.CountryCount)
	assert.Equal(t, int64(36469), s.TotalPopulation)

	rec = do(t, e, http.MethodGet, "/api/map?continent=Europe&scope=filtered")
	require.Equal(t, http.StatusOK, rec.Code)
	var m []models.MapPoint
	decode(t, rec, &m)
	require.Len(t, m, 1)
	assert.Equal(t, "MCO", m[0].CCA3)
}

func TestValidationErrors(t *testing.T) {
	e := newTestServer(loadedCache(t))

	tests := []struct {
		target string
		field  string
	}{
		{"/api/top?top_n=100", "top_n"},
		{"/api/top?top_n=abc", ""},
		{"/api/top?year=2021", "year"},
		{"/api/summary?year=soon", ""},
		{"/api/distribution?scope=galaxy", "scope"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(t, e, http.MethodGet, tt.target)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var body ErrorResponse
			decode(t, rec, &body)
			assert.Equal(t, CodeValidation, body.Code)
			if tt.field != "" {
				assert.Contains(t, body.Message, tt.field)
			}
		})
	}
}

func TestUnknownContinentIsEmpty(t *testing.T) {
	e := newTestServer(loadedCache(t))

	rec := do(t, e, http.MethodGet, "/api/summary?continent=Atlantis")
	require.Equal(t, http.StatusOK, rec.Code)
	var s models.SummaryMetrics
	decode(t, rec, &s)
	assert.Zero(t, s.CountryCount)
	assert.Zero(t, s.MeanDensity)
}

func TestExportCSVRoundTrip(t *testing.T) {
	e := newTestServer(loadedCache(t))

	rec := do(t, e, http.MethodGet, "/api/export?continent=Asia")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "data.csv")

	ds, err := engine.ParseCSV(rec.Body)
	require.NoError(t, err)

	src, err := engine.ParseCSV(bytes.NewBufferString(testCSV))
	require.NoError(t, err)
	assert.Equal(t, engine.FilterByContinent(src, "Asia"), ds.Countries())
}

func TestExportEmptySelectionRoundTrip(t *testing.T) {
	e := newTestServer(loadedCache(t))

	rec := do(t, e, http.MethodGet, "/api/export?continent=Atlantis")
	require.Equal(t, http.StatusOK, rec.Code)

	ds, err := engine.ParseCSV(rec.Body)
	require.NoError(t, err)
	assert.Zero(t, ds.Len())
}

func TestExportFormats(t *testing.T) {
	e := newTestServer(loadedCache(t))

	rec := do(t, e, http.MethodGet, "/api/export?format=xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	rec = do(t, e, http.MethodGet, "/api/export?format=arrow")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.apache.arrow.stream", rec.Header().Get(echo.HeaderContentType))
	assert.NotZero(t, rec.Body.Len())

	rec = do(t, e, http.MethodGet, "/api/export?format=pdf")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDatasetLoading(t *testing.T) {
	release := make(chan struct{})
	cache := engine.NewCache(func(ctx context.Context) (*models.Dataset, error) {
		<-release
		return engine.ParseCSV(bytes.NewBufferString(testCSV))
	})
	e := newTestServer(cache)

	loaded := make(chan struct{})
	go func() {
		defer close(loaded)
		_, _ = cache.Get(context.Background())
	}()

	rec := do(t, e, http.MethodGet, "/api/top")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, CodeLoading, body.Code)

	rec = do(t, e, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "loading")

	close(release)
	<-loaded
	rec = do(t, e, http.MethodGet, "/api/top")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDatasetLoadFailureAndReload(t *testing.T) {
	fail := true
	cache := engine.NewCache(func(ctx context.Context) (*models.Dataset, error) {
		if fail {
			return nil, &engine.DataLoadError{Path: "world_population.csv", Err: errors.New("missing required column")}
		}
		return engine.ParseCSV(bytes.NewBufferString(testCSV))
	})
	_, err := cache.Get(context.Background())
	require.Error(t, err)
	e := newTestServer(cache)

	rec := do(t, e, http.MethodGet, "/api/dashboard")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, CodeDataLoad, body.Code)
	assert.Contains(t, body.Message, "missing required column")

	rec = do(t, e, http.MethodPost, "/api/reload")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	fail = false
	rec = do(t, e, http.MethodPost, "/api/reload")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rows":9`)

	rec = do(t, e, http.MethodGet, "/api/dashboard")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNotFoundAndMetrics(t *testing.T) {
	e := newTestServer(loadedCache(t))

	rec := do(t, e, http.MethodGet, "/api/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, CodeNotFound, body.Code)

	do(t, e, http.MethodGet, "/api/top")
	rec = do(t, e, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "popdash_api_requests_total")
	assert.Contains(t, rec.Body.String(), "popdash_dataset_rows")
}

func TestRequestIDHeader(t *testing.T) {
	e := newTestServer(loadedCache(t))
	rec := do(t, e, http.MethodGet, "/healthz")
	assert.Len(t, rec.Header().Get(echo.HeaderXRequestID), 36)
}
