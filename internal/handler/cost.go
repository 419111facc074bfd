package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/gymii/dashboard/internal/cost"
	"github.com/gymii/dashboard/internal/handler/dto"
	"github.com/gymii/dashboard/internal/metrics"
)

// multipartMemory is how much of an upload is kept in memory before spilling to disk.
const multipartMemory = 8 << 20

// CostHandler aggregates uploaded usage exports.
type CostHandler struct {
	prices  cost.PriceTable
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewCostHandler creates a new CostHandler. A nil price table uses the defaults.
func NewCostHandler(prices cost.PriceTable, recorder metrics.Recorder, logger *slog.Logger) *CostHandler {
	if prices == nil {
		prices = cost.DefaultPrices()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &CostHandler{
		prices:  prices,
		metrics: recorder,
		logger:  logger.With("component", "handler.cost"),
	}
}

// Report handles POST /api/cost/report. The export is either the raw body
// (text/csv) or the "file" part of a multipart form.
func (h *CostHandler) Report(w http.ResponseWriter, r *http.Request) {
	body, closeBody, err := h.upload(r)
	if err != nil {
		h.metrics.IncCostReport("failed")
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_UPLOAD", err.Error())
		return
	}
	defer closeBody()

	rows, err := cost.Parse(body)
	if err != nil {
		h.metrics.IncCostReport("failed")
		handleServiceError(w, r, h.logger, err)
		return
	}

	usage := cost.Aggregate(rows)
	costs, err := usage.Costs(h.prices)
	if err != nil {
		h.metrics.IncCostReport("failed")
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.metrics.IncCostReport("success")
	h.logger.InfoContext(r.Context(), "cost report built",
		"rows", len(rows),
		"days", len(usage.Days),
		"models", len(usage.Models),
	)

	writeJSON(w, http.StatusOK, dto.CostReportResponse{
		Usage:  usage,
		Costs:  costs,
		Prices: h.prices,
	})
}

func (h *CostHandler) upload(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, func() {}, nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, nil, errors.New("invalid multipart form")
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errors.New(`missing "file" field`)
	}
	return file, func() {
		_ = file.Close()
		_ = r.MultipartForm.RemoveAll()
	}, nil
}
