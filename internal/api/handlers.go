package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"popdash/internal/engine"
	"popdash/internal/logging"
	"popdash/internal/models"
	"popdash/internal/validation"
)

type Handler struct {
	cache       *engine.Cache
	pipeline    engine.Pipeline
	defaultTopN int
}

func NewHandler(cache *engine.Cache, pipeline engine.Pipeline, defaultTopN int) *Handler {
	return &Handler{cache: cache, pipeline: pipeline, defaultTopN: defaultTopN}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	api := e.Group("/api")
	api.GET("/continents", h.GetContinents)
	api.GET("/dashboard", h.GetDashboard)
	api.GET("/summary", h.GetSummary)
	api.GET("/top", h.GetTop)
	api.GET("/distribution", h.GetDistribution)
	api.GET("/trend", h.GetTrend)
	api.GET("/scatter", h.GetScatter)
	api.GET("/map", h.GetMap)
	api.GET("/table", h.GetTable)
	api.GET("/export", h.Export)
	api.POST("/reload", h.Reload)
}

// --- HELPERS ---

// dataset returns the loaded dataset: 503 while loading, 500 when the last load failed.
func (h *Handler) dataset() (*models.Dataset, error) {
	if ds := h.cache.Peek(); ds != nil {
		return ds, nil
	}
	if err := h.cache.LastError(); err != nil {
		return nil, NewAPIError(http.StatusInternalServerError, CodeDataLoad, err.Error(), nil)
	}
	return nil, NewAPIError(http.StatusServiceUnavailable, CodeLoading, "dataset is still loading", nil)
}

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

func intParam(c echo.Context, name string, dst *int) error {
	v := c.QueryParam(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return NewAPIError(http.StatusBadRequest, CodeValidation, name+" must be an integer", map[string]interface{}{"value": v})
	}
	*dst = n
	return nil
}

// parseParams reads the filter query parameters; absent ones take defaults.
func (h *Handler) parseParams(c echo.Context) (models.FilterParams, error) {
	p := models.DefaultFilterParams()
	p.TopN = h.defaultTopN

	if v := strings.TrimSpace(c.QueryParam("continent")); v != "" {
		p.Continent = v
	}
	year := int(p.Year)
	if err := intParam(c, "year", &year); err != nil {
		return p, err
	}
	p.Year = models.Year(year)
	if err := intParam(c, "top_n", &p.TopN); err != nil {
		return p, err
	}
	if v := c.QueryParam("scope"); v != "" {
		p.Scope = models.Scope(v)
	}
	p.Countries = c.QueryParams()["countries"]

	if err := validation.ValidateParams(&p); err != nil {
		var verr *validation.RequestValidationError
		if errors.As(err, &verr) {
			return p, NewAPIError(http.StatusBadRequest, CodeValidation, verr.Error(), verr.Fields)
		}
		return p, NewAPIError(http.StatusBadRequest, CodeValidation, err.Error(), nil)
	}
	return p, nil
}

// working resolves the dataset and params of a projection request.
func (h *Handler) working(c echo.Context) (engine.Working, models.FilterParams, error) {
	ds, err := h.dataset()
	if err != nil {
		return engine.Working{}, models.FilterParams{}, err
	}
	p, err := h.parseParams(c)
	if err != nil {
		return engine.Working{}, p, err
	}
	return h.pipeline.Select(ds, p), p, nil
}

// --- HANDLERS ---

func (h *Handler) Health(c echo.Context) error {
	status := "ready"
	if h.cache.Peek() == nil {
		status = "loading"
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    status,
		"loaded_at": h.cache.LoadedAt(),
	})
}

func (h *Handler) GetContinents(c echo.Context) error {
	ds, err := h.dataset()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ds.ContinentOptions())
}

func (h *Handler) GetDashboard(c echo.Context) error {
	ds, err := h.dataset()
	if err != nil {
		return err
	}
	p, err := h.parseParams(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.pipeline.Build(ds, p))
}

func (h *Handler) GetSummary(c echo.Context) error {
	w, p, err := h.working(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.pipeline.Summary(w, p))
}

func (h *Handler) GetTop(c echo.Context) error {
	w, p, err := h.working(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.pipeline.Top(w, p))
}

func (h *Handler) GetDistribution(c echo.Context) error {
	w, p, err := h.working(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"scope": p.Scope,
		"year":  p.Year,
		"data":  h.pipeline.Distribution(w, p),
	})
}

func (h *Handler) GetTrend(c echo.Context) error {
	w, p, err := h.working(c)
	if err != nil {
		return err
	}
	points, warnings := h.pipeline.Trend(w, p)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"countries": h.pipeline.TrendSelection(w, p),
		"data":      points,
		"warnings":  warnings,
	})
}

// GetScatter drops density outliers unless outliers=include.
func (h *Handler) GetScatter(c echo.Context) error {
	w, p, err := h.working(c)
	if err != nil {
		return err
	}
	pl := h.pipeline
	if c.QueryParam("outliers") == "include" {
		pl.DensityThreshold = 0
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"density_threshold": pl.DensityThreshold,
		"data":              pl.Scatter(w, p),
	})
}

func (h *Handler) GetMap(c echo.Context) error {
	w, p, err := h.working(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.pipeline.Map(w, p))
}

func (h *Handler) GetTable(c echo.Context) error {
	w, _, err := h.working(c)
	if err != nil {
		return err
	}
	rows := h.pipeline.Table(w)
	total := len(rows)
	limit, offset := getPaginationParams(c, total)

	if offset >= total {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"data": []models.TableRow{}, "total": total, "limit": limit, "offset": offset,
		})
	}
	// clamp before adding so a huge limit cannot overflow
	if limit > total-offset {
		limit = total - offset
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   rows[offset : offset+limit],
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

type exportFormat struct {
	contentType string
	filename    string
	write       func(io.Writer, []models.Country) error
}

var exportFormats = map[string]exportFormat{
	"csv": {
		contentType: "text/csv; charset=utf-8",
		filename:    "data.csv",
		write:       engine.WriteCSV,
	},
	"xlsx": {
		contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		filename:    "data.xlsx",
		write:       engine.WriteXLSX,
	},
	"arrow": {
		contentType: "application/vnd.apache.arrow.stream",
		filename:    "data.arrows",
		write:       engine.WriteArrow,
	},
}

// Export downloads the continent-filtered table.
func (h *Handler) Export(c echo.Context) error {
	w, p, err := h.working(c)
	if err != nil {
		return err
	}

	name := c.QueryParam("format")
	if name == "" {
		name = "csv"
	}
	f, ok := exportFormats[name]
	if !ok {
		return NewAPIError(http.StatusBadRequest, CodeValidation, "format must be one of: csv xlsx arrow", map[string]interface{}{"value": name})
	}

	var buf bytes.Buffer
	if err := f.write(&buf, w.Filtered); err != nil {
		logging.Err(err).Str("format", name).Msg("export failed")
		return NewAPIError(http.StatusInternalServerError, CodeExport, err.Error(), nil)
	}

	logging.Info().Str("format", name).Str("continent", p.Continent).Int("rows", len(w.Filtered)).Msg("export")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+f.filename+`"`)
	return c.Blob(http.StatusOK, f.contentType, buf.Bytes())
}

// Reload drops the cached dataset and loads it again.
func (h *Handler) Reload(c echo.Context) error {
	ds, err := h.cache.Reload(c.Request().Context())
	if err != nil {
		return NewAPIError(http.StatusInternalServerError, CodeDataLoad, err.Error(), nil)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"rows":      ds.Len(),
		"loaded_at": h.cache.LoadedAt(),
	})
}
