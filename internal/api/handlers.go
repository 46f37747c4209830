package api

import (
	"context"
	_ "embed"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/romangod6/linkscout/internal/crawler"
	"github.com/romangod6/linkscout/internal/models"
	"github.com/romangod6/linkscout/internal/scan"
)

//go:embed static/index.html
var indexHTML []byte

// Scanner runs a validated scan request.
type Scanner interface {
	Scan(ctx context.Context, req models.ScanRequest) (*models.OpportunityReport, error)
}

type Handler struct {
	scanner  Scanner
	defaults scan.Defaults
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewHandler(scanner Scanner, defaults scan.Defaults) *Handler {
	return &Handler{scanner: scanner, defaults: defaults}
}

// Index serves the scan form.
func (h *Handler) Index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

// RunScan runs a scan synchronously and returns the report.
func (h *Handler) RunScan(c *gin.Context) {
	var params scan.Params
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid query parameters"})
		return
	}

	req, err := scan.ParseParams(params, h.defaults)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	report, err := h.scanner.Scan(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusForError(err), ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// statusForError maps whole-scan failures onto HTTP statuses.
func statusForError(err error) int {
	var verr *scan.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	switch crawler.KindOf(err) {
	case crawler.KindSitemapFetch:
		return http.StatusBadGateway
	case crawler.KindSitemapParse:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
