package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/freshcheck/backend/internal/domain"
	"github.com/freshcheck/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	products *usecase.ProductService
	log      *logrus.Entry
}

// NewHandler creates a new HTTP handler. A nil service makes the product endpoints answer 503.
func NewHandler(products *usecase.ProductService) *Handler {
	return &Handler{
		products: products,
		log:      logrus.WithField("component", "handler"),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "freshcheck-backend",
		"version": "1.0.0",
	})
}

// GetProduct resolves a barcode and returns the scored product page.
// Scans carrying X-Device-ID are recorded in that device's history.
func (h *Handler) GetProduct(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	barcode := c.Param("barcode")
	owner := c.GetHeader(DeviceIDHeader)

	view, err := h.products.GetProduct(c.Request.Context(), barcode, owner)
	if err != nil {
		h.respondError(c, err, logrus.Fields{"barcode": barcode})
		return
	}

	c.JSON(http.StatusOK, view)
}

// SearchProducts handles free-text product search
func (h *Handler) SearchProducts(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	query := c.Query("q")
	products, err := h.products.Search(c.Request.Context(), query)
	if err != nil {
		h.respondError(c, err, logrus.Fields{"query": query})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// GetAlternatives returns healthier products of a category
func (h *Handler) GetAlternatives(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	category := c.Query("category")
	products, err := h.products.Alternatives(c.Request.Context(), category, c.Query("exclude"))
	if err != nil {
		h.respondError(c, err, logrus.Fields{"category": category})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

// GetHistory returns the scan history of the requesting device
func (h *Handler) GetHistory(c *gin.Context) {
	history, ok := h.historyService(c)
	if !ok {
		return
	}

	entries, err := history.List(c.Request.Context(), c.GetHeader(DeviceIDHeader))
	if err != nil {
		h.respondError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// ClearHistory deletes the scan history of the requesting device
func (h *Handler) ClearHistory(c *gin.Context) {
	history, ok := h.historyService(c)
	if !ok {
		return
	}

	if err := history.Clear(c.Request.Context(), c.GetHeader(DeviceIDHeader)); err != nil {
		h.respondError(c, err, nil)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ready(c *gin.Context) bool {
	if h.products == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Product service not configured",
		})
		return false
	}
	return true
}

func (h *Handler) historyService(c *gin.Context) (*usecase.HistoryService, bool) {
	if !h.ready(c) {
		return nil, false
	}
	history := h.products.History()
	if history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "History not configured",
		})
		return nil, false
	}
	return history, true
}

// respondError maps domain errors to HTTP responses.
// A not-found that followed upstream failures is reported as retryable 503, not 404.
func (h *Handler) respondError(c *gin.Context, err error, fields logrus.Fields) {
	status, body := errorResponse(err)

	entry := h.log.WithError(err).WithField("status", status)
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	if status >= http.StatusInternalServerError {
		entry.Warn("request failed")
	} else {
		entry.Debug("request rejected")
	}

	_ = c.Error(err)
	c.JSON(status, body)
}

func errorResponse(err error) (int, gin.H) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, gin.H{"error": err.Error()}
	case errors.Is(err, domain.ErrProductNotFound) && errors.Is(err, domain.ErrUpstreamFailure):
		return http.StatusServiceUnavailable, gin.H{
			"error":     "Product could not be confirmed, Open Food Facts is unreachable",
			"retryable": true,
		}
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, gin.H{"error": "Product not found"}
	case errors.Is(err, domain.ErrUpstreamFailure):
		return http.StatusBadGateway, gin.H{
			"error":     "Open Food Facts temporarily unavailable",
			"retryable": true,
		}
	case errors.Is(err, domain.ErrHistoryUnavailable):
		return http.StatusServiceUnavailable, gin.H{"error": "History temporarily unavailable"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, gin.H{"error": "Request timed out", "retryable": true}
	default:
		return http.StatusInternalServerError, gin.H{"error": "Internal server error"}
	}
}
