package service

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"udf_feed/internal/models"
	"udf_feed/internal/storage"
	"udf_feed/pkg/logger"
)

const (
	defaultSearchLimit = 30
	maxSearchLimit     = 100
)

var supportedResolutions = []string{"1", "5", "15", "30", "60", "D", "W", "M"}

// Handler serves the UDF endpoints from a Store.
type Handler struct {
	store storage.Store
	now   func() time.Time
}

func NewHandler(store storage.Store) *Handler {
	return &Handler{store: store, now: time.Now}
}

func respond(c *gin.Context, code int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		logger.Error("udf: encode %s response: %v", c.FullPath(), err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(code, "application/json; charset=utf-8", body)
}

func historyError(c *gin.Context, msg string) {
	respond(c, http.StatusOK, models.HistoryResponse{S: models.StatusError, ErrMsg: msg})
}

func (h *Handler) Config(c *gin.Context) {
	respond(c, http.StatusOK, models.FeedConfiguration{
		SupportsSearch:       true,
		SupportsTime:         true,
		SupportedResolutions: supportedResolutions,
	})
}

func (h *Handler) Time(c *gin.Context) {
	c.String(http.StatusOK, strconv.FormatInt(h.now().Unix(), 10))
}

func (h *Handler) Search(c *gin.Context) {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		limit = defaultSearchLimit
	}
	limit = max(1, min(limit, maxSearchLimit))

	recs, err := h.store.SearchSymbols(c.Request.Context(), c.Query("query"), c.Query("type"), c.Query("exchange"), limit)
	if err != nil {
		// Empty result keeps the chart usable.
		logger.Error("udf: search: %v", err)
	}

	out := make([]models.SymbolSummary, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.SymbolSummary{
			Symbol:      r.FullName(),
			FullName:    r.FullName(),
			Description: r.Name,
			Exchange:    r.Exchange,
			Ticker:      r.FullName(),
			Type:        r.Type,
		})
	}
	respond(c, http.StatusOK, gin.H{"result": out})
}

func (h *Handler) Symbols(c *gin.Context) {
	unknown := gin.H{"s": models.StatusError, "error": models.ErrUnknownSymbol.Error()}

	exchange, code, ok := models.SplitSymbol(c.Query("symbol"))
	if !ok {
		respond(c, http.StatusOK, unknown)
		return
	}
	rec, found, err := h.store.Symbol(c.Request.Context(), exchange, code)
	if err != nil {
		logger.Error("udf: symbol %s:%s: %v", exchange, code, err)
	}
	if !found {
		respond(c, http.StatusOK, unknown)
		return
	}

	respond(c, http.StatusOK, models.SymbolInfo{
		Name:                 rec.Code,
		Ticker:               rec.FullName(),
		Description:          rec.Name,
		Type:                 rec.Type,
		Session:              rec.Session,
		Timezone:             rec.Timezone,
		Exchange:             rec.Exchange,
		ListedExchange:       rec.Exchange,
		MinMov:               1,
		PriceScale:           float64(rec.PriceScale),
		PointValue:           1,
		HasIntraday:          true,
		HasDaily:             true,
		HasWeeklyAndMonthly:  true,
		SupportedResolutions: supportedResolutions,
		DataStatus:           "streaming",
	})
}

func (h *Handler) History(c *gin.Context) {
	symbol := c.Query("symbol")
	resolution := c.DefaultQuery("resolution", "D")
	fromRaw, toRaw := c.Query("from"), c.Query("to")
	if symbol == "" || fromRaw == "" || toRaw == "" {
		historyError(c, "missing parameters: symbol, from and to are required")
		return
	}
	from, errFrom := strconv.ParseInt(fromRaw, 10, 64)
	to, errTo := strconv.ParseInt(toRaw, 10, 64)
	if errFrom != nil || errTo != nil {
		historyError(c, "invalid time range")
		return
	}
	if _, _, ok := models.SplitSymbol(symbol); !ok {
		historyError(c, "invalid symbol: "+symbol)
		return
	}
	resolution = canonicalResolution(resolution)
	if !slices.Contains(supportedResolutions, resolution) {
		historyError(c, "unsupported resolution: "+resolution)
		return
	}
	countback, _ := strconv.Atoi(c.Query("countback"))

	ctx := c.Request.Context()
	bars, err := h.store.Bars(ctx, symbol, resolution, from, to, countback)
	if err != nil {
		logger.Error("udf: history %s %s: %v", symbol, resolution, err)
		historyError(c, "internal error")
		return
	}
	if len(bars) > 0 {
		respond(c, http.StatusOK, models.NewHistoryResponse(bars))
		return
	}

	resp := models.HistoryResponse{S: models.StatusNoData}
	if prev, ok, err := h.store.LatestBefore(ctx, symbol, resolution, from); err == nil && ok {
		nb := prev.Unix()
		resp.NB = &nb
	}
	respond(c, http.StatusOK, resp)
}

func (h *Handler) SymbolsList(c *gin.Context) {
	recs, err := h.store.ListSymbols(c.Request.Context())
	if err != nil {
		logger.Error("udf: symbols list: %v", err)
	}
	if recs == nil {
		recs = []models.SymbolRecord{}
	}
	respond(c, http.StatusOK, recs)
}

// IngestRequest is the POST /bars body.
type IngestRequest struct {
	Symbol     string       `json:"symbol"`
	Resolution string       `json:"resolution"`
	Bars       []models.Bar `json:"bars"`
}

func (h *Handler) Ingest(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		respond(c, http.StatusBadRequest, gin.H{"s": models.StatusError, "errmsg": err.Error()})
		return
	}
	var req IngestRequest
	if err := sonic.Unmarshal(raw, &req); err != nil {
		respond(c, http.StatusBadRequest, gin.H{"s": models.StatusError, "errmsg": "invalid body"})
		return
	}
	req.Resolution = canonicalResolution(req.Resolution)
	if _, _, ok := models.SplitSymbol(req.Symbol); !ok || !slices.Contains(supportedResolutions, req.Resolution) {
		respond(c, http.StatusBadRequest, gin.H{"s": models.StatusError, "errmsg": "invalid symbol or resolution"})
		return
	}

	n, err := h.store.SaveBars(c.Request.Context(), req.Symbol, req.Resolution, req.Bars)
	if err != nil {
		logger.Error("udf: ingest %s %s: %v", req.Symbol, req.Resolution, err)
		respond(c, http.StatusInternalServerError, gin.H{"s": models.StatusError, "errmsg": "store failure"})
		return
	}
	respond(c, http.StatusOK, gin.H{"s": models.StatusOK, "saved": n})
}

// canonicalResolution folds the 1D/1W/1M spellings into D/W/M.
func canonicalResolution(r string) string {
	switch strings.ToUpper(r) {
	case "1D", "D":
		return "D"
	case "1W", "W":
		return "W"
	case "1M", "M":
		return "M"
	default:
		return r
	}
}
