package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/russtat/internal/catalog"
	"github.com/timmy/russtat/internal/domain"
	"github.com/timmy/russtat/internal/logger"
	"github.com/timmy/russtat/internal/repository"
	"github.com/timmy/russtat/internal/service"
)

// AdminHandler handles catalog refreshes and fetch runs.
type AdminHandler struct {
	fetchService *service.FetchService
	catalog      *catalog.Store
	loader       service.ResultFunc
	titles       service.TitleLookup
	runs         *repository.RunRepository
	policy       service.CachePolicy
	logger       *logger.Logger

	// Fetch run state
	mu            sync.RWMutex
	isRunning     bool
	canceller     *service.Canceller
	currentStats  *service.FetchStats
	lastRunTime   time.Time
	lastRunStatus string
}

// AdminDeps groups the collaborators of an AdminHandler.
type AdminDeps struct {
	Fetch   *service.FetchService
	Catalog *catalog.Store
	Loader  service.ResultFunc
	Titles  service.TitleLookup
	Runs    *repository.RunRepository
	Policy  service.CachePolicy
	Logger  *logger.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDeps) *AdminHandler {
	log := deps.Logger
	if log == nil {
		log = logger.GetDefault()
	}
	return &AdminHandler{
		fetchService: deps.Fetch,
		catalog:      deps.Catalog,
		loader:       deps.Loader,
		titles:       deps.Titles,
		runs:         deps.Runs,
		policy:       deps.Policy,
		logger:       log,
	}
}

// FetchRequest selects the datasets of a fetch run. Selectors are combined.
type FetchRequest struct {
	IDs          []string `json:"ids"`
	Titles       []string `json:"titles"`
	Indices      []int    `json:"indices"`
	Pattern      string   `json:"pattern"`
	Regex        bool     `json:"regex"`
	SkipExisting bool     `json:"skip_existing"`
	Overwrite    bool     `json:"overwrite"`
}

// FetchStatusResponse represents the fetch run status.
type FetchStatusResponse struct {
	IsRunning     bool                `json:"is_running"`
	LastRunTime   string              `json:"last_run_time,omitempty"`
	LastRunStatus string              `json:"last_run_status,omitempty"`
	CurrentStats  *service.FetchStats `json:"current_stats,omitempty"`
}

// RefreshCatalog handles POST /api/v1/admin/catalog/refresh.
func (h *AdminHandler) RefreshCatalog(c *gin.Context) {
	datasets, err := h.catalog.Refresh(c.Request.Context(), queryBool(c, "overwrite"))
	if err != nil {
		respondError(c, "Catalog refresh failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"datasets": len(datasets)})
}

// TriggerFetch handles POST /api/v1/admin/fetch.
// The run continues in the background; poll GetFetchStatus for the outcome.
func (h *AdminHandler) TriggerFetch(c *gin.Context) {
	ctx := c.Request.Context()

	var req FetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	descriptors, err := h.selectDatasets(ctx, &req)
	if err != nil {
		respondError(c, "Invalid selection", err)
		return
	}
	if len(descriptors) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "Nothing to fetch", "jobs": 0})
		return
	}

	policy := h.policy
	policy.Overwrite = policy.Overwrite || req.Overwrite
	jobs, err := service.BuildJobs(descriptors, policy, service.Overrides{})
	if err != nil {
		respondError(c, "Invalid fetch request", err)
		return
	}

	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		logger.CtxWarn(ctx, "Fetch request rejected: already running, client_ip=%s", c.ClientIP())
		c.JSON(http.StatusConflict, gin.H{"error": "Fetch is already running"})
		return
	}
	h.isRunning = true
	h.canceller = service.NewCanceller()
	h.currentStats = nil
	canceller := h.canceller
	h.mu.Unlock()

	logger.CtxInfo(ctx, "Starting fetch run: jobs=%d, client_ip=%s", len(jobs), c.ClientIP())

	// the run outlives the request; only the canceller stops it
	runCtx := context.WithoutCancel(ctx)
	go h.run(runCtx, jobs, canceller)

	c.JSON(http.StatusAccepted, gin.H{"message": "Fetch started", "jobs": len(jobs)})
}

func (h *AdminHandler) run(ctx context.Context, jobs []service.Job, canceller *service.Canceller) {
	res, err := h.fetchService.RunWithCanceller(ctx, jobs, h.loader, canceller)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.isRunning = false
	h.canceller = nil
	h.lastRunTime = time.Now()
	switch {
	case err != nil:
		h.lastRunStatus = "failed: " + err.Error()
		logger.FromContext(ctx).WithError(err).Error("Fetch run failed")
	case errors.Is(res.Err(), domain.ErrCancelled):
		h.currentStats = &res.Stats
		h.lastRunStatus = "cancelled"
	default:
		h.currentStats = &res.Stats
		h.lastRunStatus = "success"
	}
}

func (h *AdminHandler) selectDatasets(ctx context.Context, req *FetchRequest) ([]domain.Descriptor, error) {
	var lookups []catalog.Lookup
	for _, i := range req.Indices {
		lookups = append(lookups, catalog.ByIndex(i))
	}
	for _, id := range req.IDs {
		lookups = append(lookups, catalog.ByID(id))
	}
	for _, t := range req.Titles {
		lookups = append(lookups, catalog.ByTitle(t))
	}

	selected, err := h.catalog.ResolveAll(lookups)
	if err != nil {
		return nil, err
	}
	if req.Pattern != "" {
		found, err := h.catalog.Find(req.Pattern, catalog.FindOptions{Regex: req.Regex})
		if err != nil {
			return nil, err
		}
		selected = append(selected, found...)
	}
	if len(lookups) == 0 && req.Pattern == "" {
		return nil, fmt.Errorf("no datasets selected: %w", domain.ErrInvalidArgument)
	}

	selected = dedupe(selected)
	if req.SkipExisting && h.titles != nil {
		fresh, known, err := service.FilterNewWith(ctx, selected, h.titles)
		if err != nil {
			return nil, err
		}
		logger.CtxInfo(ctx, "Skipping %d already stored datasets", len(known))
		selected = fresh
	}
	return selected, nil
}

func dedupe(ds []domain.Descriptor) []domain.Descriptor {
	seen := make(map[string]struct{}, len(ds))
	out := ds[:0]
	for _, d := range ds {
		if _, ok := seen[d.Identifier]; ok {
			continue
		}
		seen[d.Identifier] = struct{}{}
		out = append(out, d)
	}
	return out
}

// CancelFetch handles POST /api/v1/admin/fetch/cancel.
// Jobs already started still finish and are stored.
func (h *AdminHandler) CancelFetch(c *gin.Context) {
	h.mu.RLock()
	canceller := h.canceller
	h.mu.RUnlock()

	if canceller == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "No fetch is running"})
		return
	}
	canceller.Cancel()
	logger.CtxInfo(c.Request.Context(), "Fetch cancellation requested: client_ip=%s", c.ClientIP())
	c.JSON(http.StatusAccepted, gin.H{"message": "Cancellation requested"})
}

// GetFetchStatus handles GET /api/v1/admin/fetch/status.
func (h *AdminHandler) GetFetchStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := FetchStatusResponse{
		IsRunning:     h.isRunning,
		LastRunStatus: h.lastRunStatus,
		CurrentStats:  h.currentStats,
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// ListRuns handles GET /api/v1/admin/runs.
func (h *AdminHandler) ListRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []domain.FetchRun{}})
		return
	}
	limit := queryInt(c, "limit", 20)
	if limit < 1 || limit > 200 {
		limit = 20
	}
	runs, err := h.runs.ListRecent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, "Failed to list runs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
