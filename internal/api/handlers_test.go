package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deerbay/olympics-dashboard/internal/engine"
	"github.com/deerbay/olympics-dashboard/internal/models"
)

type tableBody struct {
	View    string   `json:"view"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Warning string   `json:"warning"`
}

type pagedBody struct {
	Data   tableBody `json:"data"`
	Total  int       `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	ev := func(year int, country, sport string, medal models.Medal, who string, lat, lon float64) models.Event {
		return models.Event{
			Year: year, Season: models.SeasonSummer, Country: country, Sport: sport,
			Medal: medal, Participant: who, Latitude: lat, Longitude: lon,
		}
	}
	const swLat, swLon = 60.1, 18.6
	const usLat, usLon = 37.1, -95.7
	const noLat, noLon = 60.5, 8.5
	store, err := engine.NewColumnStore([]models.Event{
		ev(2016, "Sweden", "Sailing", models.MedalGold, "s1", swLat, swLon),
		ev(2016, "Sweden", "Sailing", models.MedalSilver, "s2", swLat, swLon),
		ev(2016, "USA", "Swimming", models.MedalGold, "u1", usLat, usLon),
		ev(2012, "USA", "Swimming", models.MedalGold, "u1", usLat, usLon),
		ev(2012, "Norway", "Sailing", models.MedalNone, "n1", noLat, noLon),
	})
	require.NoError(t, err)
	ds, err := engine.NewDataset(context.Background(), store, nil, engine.DatasetOptions{
		TopN:         10,
		FocusCountry: "Sweden",
		Workers:      2,
	})
	require.NoError(t, err)
	return engine.New(ds, engine.Options{CacheCapacity: 8})
}

func newTestServer(t *testing.T, ready bool) (*echo.Echo, *Handler) {
	t.Helper()
	h := NewHandler(nil)
	e := NewServer(slog.New(slog.DiscardHandler), true, h)
	if ready {
		h.SetEngine(testEngine(t))
	}
	return e, h
}

func do(t *testing.T, e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestLoadingUntilEngineIsSet(t *testing.T) {
	e, h := newTestServer(t, false)

	rec := do(t, e, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "loading", decode[statusResponse](t, rec).Status)

	for _, target := range []string{"/api/views/top_sports", "/api/views", "/api/dimensions", "/api/dimensions/year"} {
		rec := do(t, e, http.MethodGet, target, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
		assert.Equal(t, "loading", decode[statusResponse](t, rec).Status, target)
	}

	h.SetEngine(testEngine(t))
	rec = do(t, e, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[statusResponse](t, rec).Status)
}

func TestGetDimensions(t *testing.T) {
	e, _ := newTestServer(t, true)

	rec := do(t, e, http.MethodGet, "/api/dimensions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[map[string][]string](t, rec)
	assert.Equal(t, []string{"2012", "2016"}, all["year"])
	assert.Equal(t, []string{"Norway", "Sweden", "USA"}, all["country"])
	assert.Equal(t, []string{"Sailing", "Swimming"}, all["sport"])
	assert.Equal(t, []string{"Summer"}, all["season"])

	rec = do(t, e, http.MethodGet, "/api/dimensions/sport", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Sailing", "Swimming"}, decode[[]string](t, rec))

	rec = do(t, e, http.MethodGet, "/api/dimensions/medal", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetViews(t *testing.T) {
	e, _ := newTestServer(t, true)

	rec := do(t, e, http.MethodGet, "/api/views", "")
	require.Equal(t, http.StatusOK, rec.Code)
	views := decode[[]models.ViewInfo](t, rec)
	require.NotEmpty(t, views)
	assert.Equal(t, engine.ViewCountryMap, views[0].Name)
	assert.Equal(t, models.KindMap, views[0].Kind)
}

func TestGetView(t *testing.T) {
	e, _ := newTestServer(t, true)

	// USA and Sweden tie on 2 medals; Norway won nothing.
	rec := do(t, e, http.MethodGet, "/api/views/top_countries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[pagedBody](t, rec)
	assert.Equal(t, engine.ViewTopCountries, body.Data.View)
	assert.Equal(t, []string{"country", "medals", "participants"}, body.Data.Columns)
	assert.Equal(t, [][]any{{"Sweden", float64(2), float64(2)}, {"USA", float64(2), float64(1)}}, body.Data.Rows)
	assert.Equal(t, 2, body.Total)
	assert.Empty(t, body.Data.Warning)

	rec = do(t, e, http.MethodGet, "/api/views/top_countries?limit=1&offset=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[pagedBody](t, rec)
	assert.Equal(t, [][]any{{"USA", float64(2), float64(1)}}, body.Data.Rows)
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, 1, body.Limit)
	assert.Equal(t, 1, body.Offset)

	rec = do(t, e, http.MethodGet, "/api/views/top_countries?year=2012&year=2016&country=USA", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[pagedBody](t, rec)
	assert.Equal(t, [][]any{{"USA", float64(2), float64(1)}}, body.Data.Rows)

	rec = do(t, e, http.MethodGet, "/api/views/sport_breakdown?sort=country", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[pagedBody](t, rec)
	assert.Equal(t, []string{"country", "sport", "participants", "medals"}, body.Data.Columns)
}

func TestGetView_InvalidSelectionIsEmpty(t *testing.T) {
	e, _ := newTestServer(t, true)

	for _, target := range []string{
		"/api/views/country_map?country=Atlantis",
		"/api/views/country_map?year=soon",
		"/api/views/top_sports?sort=country",
		"/api/views/gold_top_countries?tier=Silver",
	} {
		rec := do(t, e, http.MethodGet, target, "")
		require.Equal(t, http.StatusOK, rec.Code, target)
		body := decode[pagedBody](t, rec)
		assert.NotEmpty(t, body.Data.Warning, target)
		assert.NotNil(t, body.Data.Rows, target)
		assert.Empty(t, body.Data.Rows, target)
		assert.NotEmpty(t, body.Data.Columns, target)
	}

	rec := do(t, e, http.MethodGet, "/api/views/pie_chart", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMalformedSelectionWarning(t *testing.T) {
	e, _ := newTestServer(t, true)

	rec := do(t, e, http.MethodGet, "/api/views/top_sports?year=soon", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[pagedBody](t, rec)
	assert.Equal(t, `invalid selection year="soon": not an integer`, body.Data.Warning)
	assert.Empty(t, body.Data.Rows)

	rec = do(t, e, http.MethodPost, "/api/query", `{"view":"top_sports","selection":{"years":["soon"]}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[pagedBody](t, rec)
	assert.Equal(t, "invalid selection on year: not an integer", body.Data.Warning)
	assert.Equal(t, []string{"sport", "medals", "participants"}, body.Data.Columns)
	assert.Empty(t, body.Data.Rows)

	rec = do(t, e, http.MethodPost, "/api/query", `{"view":"top_sports","selection":{"sports":[1]}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "invalid selection on sport: malformed value", decode[pagedBody](t, rec).Data.Warning)

	rec = do(t, e, http.MethodPost, "/api/query", `{"view":"pie_chart","selection":{"years":["soon"]}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmptySelectionValuesAreAbsent(t *testing.T) {
	e, _ := newTestServer(t, true)

	full := decode[pagedBody](t, do(t, e, http.MethodGet, "/api/views/top_countries", ""))
	rec := do(t, e, http.MethodGet, "/api/views/top_countries?sport=&country=+&tier=", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[pagedBody](t, rec)
	assert.Empty(t, body.Data.Warning)
	assert.Equal(t, full.Data.Rows, body.Data.Rows)
}

func TestPostQuery(t *testing.T) {
	e, _ := newTestServer(t, true)

	rec := do(t, e, http.MethodPost, "/api/query", `{"view":"focus_top_sports","selection":{"years":[2016]}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[pagedBody](t, rec)
	assert.Equal(t, [][]any{{"Sailing", float64(2), float64(2)}}, body.Data.Rows)

	rec = do(t, e, http.MethodPost, "/api/query", `{"selection":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/query", `{"view":"top_sports","limit":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/query", `{"view":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/query", `{"view":"top_sports","selection":{"countries":["Atlantis"]}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[pagedBody](t, rec).Data.Warning)
}

func TestMetricsEndpoint(t *testing.T) {
	e, _ := newTestServer(t, true)
	do(t, e, http.MethodGet, "/api/views/top_sports", "")

	rec := do(t, e, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "olympics_dashboard_queries_total")
}

func TestGetPaginationParams(t *testing.T) {
	e := echo.New()
	tests := []struct {
		query         string
		limit, offset int
	}{
		{"", 7, 0},
		{"?limit=3&offset=2", 3, 2},
		{"?limit=-1&offset=-4", 7, 0},
		{"?limit=x&offset=y", 7, 0},
	}
	for _, tt := range tests {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/"+tt.query, nil), httptest.NewRecorder())
		limit, offset := getPaginationParams(c, 7)
		assert.Equal(t, tt.limit, limit, tt.query)
		assert.Equal(t, tt.offset, offset, tt.query)
	}
}
