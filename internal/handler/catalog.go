package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/health-triage/internal/snapshot"
	"go.uber.org/zap"
)

// CatalogProvider returns option catalogs. service.Triager implements it.
type CatalogProvider interface {
	Catalog(ctx context.Context, name string) ([]byte, bool, error)
}

var knownCatalogs = map[string]bool{
	snapshot.CatalogSymptoms:      true,
	snapshot.CatalogComorbidities: true,
	snapshot.CatalogVitals:        true,
}

// CatalogHandler serves the option catalogs clients build their forms from.
type CatalogHandler struct {
	catalogs CatalogProvider
	logger   *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalogs CatalogProvider, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogs: catalogs,
		logger:   logger.Named("catalog_handler"),
	}
}

// Handle processes GET /config/:name requests.
func (h *CatalogHandler) Handle(c *gin.Context) {
	name := c.Param("name")
	if !knownCatalogs[name] {
		c.JSON(http.StatusNotFound, errorBody(codeNotFound, "unknown catalog: "+name))
		return
	}

	body, ok, err := h.catalogs.Catalog(c.Request.Context(), name)
	if err != nil {
		h.logger.Error("catalog unavailable", zap.String("catalog", name), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, errorBody(codeConfigUnavailable, "triage configuration is unavailable"))
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, errorBody(codeNotFound, "catalog not configured: "+name))
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}
