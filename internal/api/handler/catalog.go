package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/russtat/internal/catalog"
	"github.com/timmy/russtat/internal/domain"
)

// CatalogHandler serves the portal catalog.
type CatalogHandler struct {
	store *catalog.Store
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(store *catalog.Store) *CatalogHandler {
	return &CatalogHandler{store: store}
}

// CatalogResponse is a page of catalog entries.
type CatalogResponse struct {
	Results []domain.Descriptor `json:"results"`
	Total   int                 `json:"total"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
}

// ListCatalog handles GET /api/v1/catalog.
// Query parameters: q (title pattern), regex, case, full, limit, offset.
func (h *CatalogHandler) ListCatalog(c *gin.Context) {
	limit := queryInt(c, "limit", 100)
	offset := queryInt(c, "offset", 0)
	if limit < 1 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var (
		results []domain.Descriptor
		err     error
	)
	if q := c.Query("q"); q != "" {
		results, err = h.store.Find(q, catalog.FindOptions{
			Regex:         queryBool(c, "regex"),
			CaseSensitive: queryBool(c, "case"),
			FullMatch:     queryBool(c, "full"),
		})
		if err != nil {
			respondError(c, "Invalid pattern", err)
			return
		}
	} else {
		results = h.store.Datasets()
	}

	total := len(results)
	end := min(offset+limit, total)
	page := []domain.Descriptor{}
	if offset < total {
		page = results[offset:end]
	}

	c.JSON(http.StatusOK, CatalogResponse{
		Results: page,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

// GetCatalogEntry handles GET /api/v1/catalog/:id.
func (h *CatalogHandler) GetCatalogEntry(c *gin.Context) {
	d, err := h.store.Resolve(catalog.ByID(c.Param("id")))
	if err != nil {
		respondError(c, "Dataset not in catalog", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

func queryBool(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(c.Query(name))
	return v
}
