package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deerbay/olympics-dashboard/internal/engine"
	"github.com/deerbay/olympics-dashboard/internal/models"
)

// Handler serves the dashboard API. It starts without an engine and answers
// 503 on data endpoints until SetEngine publishes a fully built one.
type Handler struct {
	engine atomic.Pointer[engine.Engine]
	log    *slog.Logger
}

func NewHandler(log *slog.Logger) *Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Handler{log: log}
}

// SetEngine makes eng visible to every subsequent request.
func (h *Handler) SetEngine(eng *engine.Engine) { h.engine.Store(eng) }

func (h *Handler) Ready() bool { return h.engine.Load() != nil }

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.GET("/health", h.GetHealth)
	api.GET("/dimensions", h.GetDimensions)
	api.GET("/dimensions/:name", h.GetDimension)
	api.GET("/views", h.GetViews)
	api.GET("/views/:name", h.GetView)
	api.POST("/query", h.PostQuery)
}

type statusResponse struct {
	Status string `json:"status"`
}

var errLoading = echo.NewHTTPError(http.StatusServiceUnavailable, statusResponse{Status: "loading"})

func (h *Handler) load() (*engine.Engine, error) {
	eng := h.engine.Load()
	if eng == nil {
		return nil, errLoading
	}
	return eng, nil
}

// --- HANDLERS ---
func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *Handler) GetHealth(c echo.Context) error {
	if !h.Ready() {
		return c.JSON(http.StatusServiceUnavailable, statusResponse{Status: "loading"})
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "ready"})
}

// returns every dimension's sorted values, keyed by dimension name
func (h *Handler) GetDimensions(c echo.Context) error {
	eng, err := h.load()
	if err != nil {
		return err
	}
	out := make(map[models.Dimension][]string, len(models.Dimensions))
	for _, d := range models.Dimensions {
		values, err := eng.Index().Values(d)
		if err != nil {
			return err
		}
		out[d] = values
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetDimension(c echo.Context) error {
	eng, err := h.load()
	if err != nil {
		return err
	}
	values, err := eng.Index().ValuesOf(c.Param("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return c.JSON(http.StatusOK, values)
}

func (h *Handler) GetViews(c echo.Context) error {
	eng, err := h.load()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, eng.Views())
}

// pagedTable wraps a table page with its paging envelope.
type pagedTable struct {
	Data   *models.Table `json:"data"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// GetView answers /api/views/:name. Selection values come from repeated
// query parameters: year, sport, season, country, plus tier and sort.
func (h *Handler) GetView(c echo.Context) error {
	eng, err := h.load()
	if err != nil {
		return err
	}
	view := c.Param("name")

	var sel engine.Selection
	bindErr := echo.QueryParamsBinder(c).
		Ints("year", &sel.Years).
		Strings("sport", &sel.Sports).
		Strings("season", &sel.Seasons).
		Strings("country", &sel.Countries).
		String("tier", &sel.Tier).
		String("sort", &sel.SortMode).
		BindError()
	if bindErr != nil {
		return h.respondInvalid(c, eng, view, sel.SortMode, selectionBindError(bindErr))
	}

	limit, offset := getPaginationParams(c, 0)
	return h.respond(c, eng, view, sel, limit, offset)
}

type queryRequest struct {
	View string `json:"view" validate:"required"`
	// Selection is decoded after validation; a malformed one is an
	// invalid selection, not a bad request.
	Selection json.RawMessage `json:"selection"`
	Limit     int             `json:"limit" validate:"gte=0"`
	Offset    int             `json:"offset" validate:"gte=0"`
}

func (h *Handler) PostQuery(c echo.Context) error {
	eng, err := h.load()
	if err != nil {
		return err
	}
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	var sel engine.Selection
	if len(req.Selection) > 0 {
		if err := json.Unmarshal(req.Selection, &sel); err != nil {
			return h.respondInvalid(c, eng, req.View, "", selectionBindError(err))
		}
	}
	return h.respond(c, eng, req.View, sel, req.Limit, req.Offset)
}

// selectionFields maps query parameter, JSON and Go field names of a
// selection to the dimension named in warnings.
var selectionFields = map[string]models.Dimension{
	"year": models.DimYear, "years": models.DimYear,
	"sport": models.DimSport, "sports": models.DimSport,
	"season": models.DimSeason, "seasons": models.DimSeason,
	"country": models.DimCountry, "countries": models.DimCountry,
	"tier": "tier",
	"sort": "sort_mode", "sort_mode": "sort_mode", "sortmode": "sort_mode",
}

// selectionBindError turns a binder or decoder failure into an
// *engine.InvalidSelectionError with a message fit for the client.
func selectionBindError(err error) error {
	ise := &engine.InvalidSelectionError{Dimension: "selection", Reason: "malformed value"}

	var field string
	var be *echo.BindingError
	var ute *json.UnmarshalTypeError
	switch {
	case errors.As(err, &be):
		field = be.Field
		if len(be.Values) > 0 {
			ise.Value = be.Values[0]
		}
	case errors.As(err, &ute):
		field = ute.Field
		if i := strings.LastIndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
	}
	if dim, ok := selectionFields[strings.ToLower(field)]; ok {
		ise.Dimension = dim
		if dim == models.DimYear {
			ise.Reason = "not an integer"
		}
	}
	return ise
}

func (h *Handler) respond(c echo.Context, eng *engine.Engine, view string, sel engine.Selection, limit, offset int) error {
	table, err := eng.Query(view, sel)
	switch {
	case errors.Is(err, engine.ErrUnknownView):
		return echo.NewHTTPError(http.StatusNotFound, err.Error()).SetInternal(err)
	case engine.IsSelectionError(err):
		return h.respondInvalid(c, eng, view, sel.SortMode, err)
	case err != nil:
		return err
	}
	if limit <= 0 {
		limit = table.Len()
	}
	return c.JSON(http.StatusOK, pagedTable{
		Data:   table.Page(limit, offset),
		Total:  table.Len(),
		Limit:  limit,
		Offset: offset,
	})
}

// respondInvalid degrades a bad selection to the view's empty table with a
// warning, so the chart renders blank instead of failing.
func (h *Handler) respondInvalid(c echo.Context, eng *engine.Engine, view, sortMode string, cause error) error {
	table, err := eng.Empty(view, sortMode, cause.Error())
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error()).SetInternal(err)
	}
	h.log.Warn("invalid selection", "view", view, "error", cause)
	return c.JSON(http.StatusOK, pagedTable{Data: table, Limit: 0, Offset: 0})
}
