package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/russtat/internal/classifier"
	"github.com/timmy/russtat/internal/domain"
	"github.com/timmy/russtat/internal/repository"
)

// DatasetHandler serves stored datasets and the classifier tree built from them.
type DatasetHandler struct {
	datasets *repository.DatasetRepository
	dropRoot bool
}

// NewDatasetHandler creates a new dataset handler.
// Parameters:
//   - datasets: repository of stored datasets.
//   - dropRoot: default for the classifier tree's drop_root parameter.
// Returns:
//   - *DatasetHandler: initialized handler.
func NewDatasetHandler(datasets *repository.DatasetRepository, dropRoot bool) *DatasetHandler {
	return &DatasetHandler{datasets: datasets, dropRoot: dropRoot}
}

// DatasetResponse is a stored dataset with a page of its observations.
type DatasetResponse struct {
	*domain.DatasetRecord
	Observations []domain.ObservationRecord `json:"data"`
}

// GetDataset handles GET /api/v1/datasets/:id.
// The id may be the record UUID or the portal dataset id.
func (h *DatasetHandler) GetDataset(c *gin.Context) {
	ctx := c.Request.Context()

	record, err := h.datasets.GetByID(ctx, c.Param("id"))
	if err != nil {
		respondError(c, "Failed to get dataset", err)
		return
	}

	limit := queryInt(c, "limit", 1000)
	if limit < 0 {
		limit = 1000
	}
	obs, err := h.datasets.ListObservations(ctx, record.ID, limit, max(queryInt(c, "offset", 0), 0))
	if err != nil {
		respondError(c, "Failed to list observations", err)
		return
	}

	c.JSON(http.StatusOK, DatasetResponse{DatasetRecord: record, Observations: obs})
}

// TreeNode is the JSON form of a classifier node.
type TreeNode struct {
	Path     []string `json:"path"`
	Name     string   `json:"name"`
	Depth    int      `json:"depth"`
	Count    int      `json:"count"`
	Datasets []string `json:"datasets,omitempty"`
}

// ClassifierResponse is the classifier tree of stored datasets.
type ClassifierResponse struct {
	Nodes        []TreeNode `json:"nodes"`
	Lines        []string   `json:"lines,omitempty"`
	Unclassified []string   `json:"unclassified,omitempty"`
}

// GetClassifier handles GET /api/v1/classifier.
// drop_root overrides the configured root dropping; render=true adds indented text lines.
func (h *DatasetHandler) GetClassifier(c *gin.Context) {
	rows, err := h.datasets.ClassifierRows(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to load classifier", err)
		return
	}

	dropRoot := h.dropRoot
	if v, ok := c.GetQuery("drop_root"); ok {
		dropRoot = v == "true" || v == "1"
	}

	entries := make([]classifier.Entry, 0, len(rows))
	names := make(classifier.MapNames, len(rows))
	for _, r := range rows {
		entries = append(entries, classifier.Entry{Path: r.ClassifierPath, DatasetID: r.ID})
		names[r.ID] = r.FullName
	}
	tree := classifier.Build(entries, classifier.Options{DropRoot: dropRoot})

	resp := ClassifierResponse{
		Nodes:        make([]TreeNode, 0, len(tree.Nodes)),
		Unclassified: tree.Unclassified,
	}
	for _, n := range tree.Nodes {
		resp.Nodes = append(resp.Nodes, TreeNode{
			Path:     n.Path,
			Name:     n.Name(),
			Depth:    n.Depth,
			Count:    n.Count,
			Datasets: n.Terminal,
		})
	}
	if queryBool(c, "render") {
		for _, l := range classifier.Render(tree, names) {
			resp.Lines = append(resp.Lines, l.Indent("  "))
		}
	}

	c.JSON(http.StatusOK, resp)
}
