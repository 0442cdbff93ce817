package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"gobiodiv/adapters/excel"
	"gobiodiv/domain/community"
	"gobiodiv/domain/core"
	"gobiodiv/domain/stats"
	"gobiodiv/internal/analysis"
	"gobiodiv/internal/config"
	apperrors "gobiodiv/internal/errors"
	"gobiodiv/internal/metrics"
	"gobiodiv/internal/report"
	"gobiodiv/ports"

	"github.com/gin-gonic/gin"
)

// CreateAnalysisRequest is the body of POST /api/analyses. The community is
// given either as flat records (one object per site) or as a matrix with
// per-site group labels. Omitted parameters fall back to server defaults.
type CreateAnalysisRequest struct {
	Name        string          `json:"name"`
	Records     json.RawMessage `json:"records,omitempty"`
	SiteColumn  string          `json:"site_column,omitempty"`
	Matrix      [][]float64     `json:"matrix,omitempty"`
	Groups      []string        `json:"groups,omitempty"`
	SiteIDs     []string        `json:"site_ids,omitempty"`
	Species     []string        `json:"species,omitempty"`
	GroupColumn string          `json:"group_column,omitempty"`
	Levels      []string        `json:"levels,omitempty"`
	NMin        *float64        `json:"n_min,omitempty"`
	NPerm       *int            `json:"nperm,omitempty"`
	Seed        *int64          `json:"seed,omitempty"`
	Workers     *int            `json:"workers,omitempty"`
}

// AnalysisResponse wraps a result for the API
type AnalysisResponse struct {
	Name   string              `json:"name,omitempty"`
	Cached bool                `json:"cached"`
	Result *stats.ResultBundle `json:"result"`
}

// AnalysisHandler serves the analysis endpoints
type AnalysisHandler struct {
	engine   *analysis.Engine
	repo     ports.ResultRepository
	metrics  *metrics.RunMetrics
	defaults config.AnalysisConfig
}

// NewAnalysisHandler creates a handler. runMetrics may be nil.
func NewAnalysisHandler(
	engine *analysis.Engine,
	repo ports.ResultRepository,
	runMetrics *metrics.RunMetrics,
	defaults config.AnalysisConfig,
) *AnalysisHandler {
	return &AnalysisHandler{
		engine:   engine,
		repo:     repo,
		metrics:  runMetrics,
		defaults: defaults,
	}
}

// CreateAnalysis runs an analysis and stores the result. Seeded requests
// whose input and parameters match a stored run return that run instead.
func (h *AnalysisHandler) CreateAnalysis(c *gin.Context) {
	var body CreateAnalysisRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, apperrors.InvalidInputf(err, "invalid request body"))
		return
	}

	req, name, err := h.buildRequest(body)
	if err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()

	if req.Seed != 0 {
		fp := h.engine.Fingerprint(req)
		cached, err := h.repo.FindByFingerprint(ctx, fp)
		switch {
		case err == nil:
			h.cacheLookup(true)
			log.Printf("[API] cache hit for %s: run %s", fp, cached.RunID())
			c.JSON(http.StatusOK, AnalysisResponse{Name: name, Cached: true, Result: cached})
			return
		case apperrors.Is(err, apperrors.CodeNotFound):
			h.cacheLookup(false)
		default:
			respondError(c, err)
			return
		}
	}

	bundle, err := h.engine.Run(ctx, req)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.repo.Save(ctx, name, bundle); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, AnalysisResponse{Name: name, Result: bundle})
}

func (h *AnalysisHandler) cacheLookup(hit bool) {
	if h.metrics != nil {
		h.metrics.CacheLookup(hit)
	}
}

func (h *AnalysisHandler) buildRequest(body CreateAnalysisRequest) (analysis.Request, string, error) {
	ds, err := datasetFromBody(body, h.groupColumn(body))
	if err != nil {
		return analysis.Request{}, "", err
	}

	levels := body.Levels
	if len(levels) == 0 {
		levels = h.defaults.Levels
	}
	groupColumn := h.groupColumn(body)
	g, err := ds.Grouping(groupColumn, levels)
	if err != nil {
		return analysis.Request{}, "", err
	}

	req := analysis.Request{
		Matrix:      ds.Matrix,
		Grouping:    g,
		GroupColumn: groupColumn,
		NMin:        h.defaults.NMin,
		NPerm:       h.defaults.NPerm,
		Seed:        h.defaults.Seed,
		Workers:     h.defaults.Workers,
	}
	if body.NMin != nil {
		req.NMin = *body.NMin
	}
	if body.NPerm != nil {
		req.NPerm = *body.NPerm
	}
	if body.Seed != nil {
		req.Seed = *body.Seed
	}
	if body.Workers != nil {
		req.Workers = *body.Workers
	}
	return req, ds.Name, nil
}

func (h *AnalysisHandler) groupColumn(body CreateAnalysisRequest) string {
	if body.GroupColumn != "" {
		return body.GroupColumn
	}
	return h.defaults.GroupColumn
}

func datasetFromBody(body CreateAnalysisRequest, groupColumn string) (*community.Dataset, error) {
	name := body.Name
	if name == "" {
		name = "api"
	}

	hasRecords := len(bytes.TrimSpace(body.Records)) > 0
	switch {
	case hasRecords && body.Matrix != nil:
		return nil, apperrors.InvalidInput("give either records or matrix, not both")
	case hasRecords:
		table, err := excel.ParseJSONRecords(body.Records, "")
		if err != nil {
			return nil, err
		}
		cfg := excel.DefaultReaderConfig()
		cfg.SiteColumn = body.SiteColumn
		cfg.AttributeColumns = []string{groupColumn}
		return excel.BuildDataset(name, table, cfg)
	case body.Matrix != nil:
		m, err := community.NewMatrix(body.Matrix, body.SiteIDs, body.Species)
		if err != nil {
			return nil, err
		}
		return &community.Dataset{
			Name:       name,
			Matrix:     m,
			Attributes: map[string][]string{groupColumn: body.Groups},
		}, nil
	default:
		return nil, apperrors.InvalidInput("request needs records or matrix")
	}
}

// GetAnalysis returns one stored result
func (h *AnalysisHandler) GetAnalysis(c *gin.Context) {
	bundle, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, AnalysisResponse{Result: bundle})
}

// GetReport returns the markdown report of a stored result
func (h *AnalysisHandler) GetReport(c *gin.Context) {
	bundle, ok := h.lookup(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteMarkdown(report.NewRenderContext(&buf), "Analysis "+bundle.RunID().String(), bundle); err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", buf.Bytes())
}

func (h *AnalysisHandler) lookup(c *gin.Context) (*stats.ResultBundle, bool) {
	runID, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		respondError(c, apperrors.InvalidInputf(err, "invalid run id"))
		return nil, false
	}
	bundle, err := h.repo.Get(c.Request.Context(), runID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return bundle, true
}

// ListAnalyses returns stored runs, newest first
func (h *AnalysisHandler) ListAnalyses(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		respondError(c, apperrors.InvalidInput("limit must be between 1 and 500"))
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		respondError(c, apperrors.InvalidInput("offset must be a non-negative integer"))
		return
	}

	runs, err := h.repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	if runs == nil {
		runs = []ports.ResultSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "limit": limit, "offset": offset})
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperrors.GetCode(err) {
	case apperrors.CodeInvalidInput, apperrors.CodeUnreadableInput:
		status = http.StatusBadRequest
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		log.Printf("[API] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": apperrors.GetCode(err)})
}
