package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/chemviz/equipment-api/internal/ingest"
	"github.com/chemviz/equipment-api/internal/service"
	"go.uber.org/zap"
)

// multipartOverhead is the slack allowed on top of the file size for form boundaries and headers
const multipartOverhead = 1 << 20

type DatasetHandler struct {
	datasetService *service.DatasetService
	logger         *zap.Logger
	debug          bool
}

func NewDatasetHandler(datasetService *service.DatasetService, logger *zap.Logger, debug bool) *DatasetHandler {
	return &DatasetHandler{
		datasetService: datasetService,
		logger:         logger,
		debug:          debug,
	}
}

// Upload godoc
// @Summary Upload equipment CSV
// @Description Validates a CSV of equipment parameters and stores it as a new dataset. Only the 5 most recent datasets are kept.
// @Tags Datasets
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file with Equipment Name, Type, Flowrate, Pressure, Temperature"
// @Success 201 {object} domain.UploadResponse
// @Failure 400 {object} domain.ErrorResponse
// @Failure 401 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /upload [post]
func (h *DatasetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.datasetService.MaxUploadBytes()
	tooLarge := map[string][]string{
		"file": {fmt.Sprintf("File size exceeds maximum allowed size of %dMB.", maxBytes>>20)},
	}
	if r.ContentLength > maxBytes+multipartOverhead {
		respondWithError(w, http.StatusBadRequest, "Invalid file upload", tooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	if err := r.ParseMultipartForm(maxBytes + multipartOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondWithError(w, http.StatusBadRequest, "Invalid file upload", tooLarge)
			return
		}
		respondWithError(w, http.StatusBadRequest, "No file provided", "Please upload a CSV file")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "No file provided", "Please upload a CSV file")
		return
	}
	defer file.Close()

	resp, err := h.datasetService.Upload(r.Context(), ingest.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		var ve *ingest.ValidationError
		if errors.As(err, &ve) {
			respondWithError(w, http.StatusBadRequest, ve.Reason, ve.Details)
			return
		}
		if errors.Is(err, service.ErrUnauthorized) {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Authentication credentials were not provided")
			return
		}
		respondInternalError(w, h.logger, h.debug, "Processing error", "An error occurred while processing the file", err)
		return
	}

	respondJSON(w, http.StatusCreated, resp)
}

// List godoc
// @Summary List datasets
// @Description Returns the caller's datasets, newest first
// @Tags Datasets
// @Produce json
// @Success 200 {array} domain.DatasetListItemDTO
// @Failure 401 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /datasets [get]
func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.datasetService.List(r.Context())
	if err != nil {
		h.respondError(w, 0, err)
		return
	}
	respondJSON(w, http.StatusOK, datasets)
}

// Get godoc
// @Summary Get dataset
// @Description Returns the dataset aggregates and every equipment record
// @Tags Datasets
// @Produce json
// @Param id path int true "Dataset ID"
// @Success 200 {object} domain.DatasetDetailDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /datasets/{id} [get]
func (h *DatasetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.datasetID(w, r)
	if !ok {
		return
	}
	dataset, err := h.datasetService.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, id, err)
		return
	}
	respondJSON(w, http.StatusOK, dataset)
}

// Summary godoc
// @Summary Get dataset summary
// @Description Returns the dataset aggregates without records
// @Tags Datasets
// @Produce json
// @Param id path int true "Dataset ID"
// @Success 200 {object} domain.DatasetSummaryDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /datasets/{id}/summary [get]
func (h *DatasetHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.datasetID(w, r)
	if !ok {
		return
	}
	summary, err := h.datasetService.Summary(r.Context(), id)
	if err != nil {
		h.respondError(w, id, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// Delete godoc
// @Summary Delete dataset
// @Description Deletes the dataset and its records
// @Tags Datasets
// @Param id path int true "Dataset ID"
// @Success 204
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /datasets/{id} [delete]
func (h *DatasetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.datasetID(w, r)
	if !ok {
		return
	}
	if err := h.datasetService.Delete(r.Context(), id); err != nil {
		h.respondError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReportPDF godoc
// @Summary Download dataset report
// @Description Renders a PDF report with statistics, type distribution and up to 50 records
// @Tags Datasets
// @Produce application/pdf
// @Param id path int true "Dataset ID"
// @Success 200 {file} binary
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /datasets/{id}/report/pdf [get]
func (h *DatasetHandler) ReportPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := h.datasetID(w, r)
	if !ok {
		return
	}
	file, err := h.datasetService.Report(r.Context(), id)
	if err != nil {
		h.respondError(w, id, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", attachmentDisposition(file.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Content); err != nil {
		h.logger.Warn("failed to write report", zap.Uint("dataset_id", id), zap.Error(err))
	}
}

func (h *DatasetHandler) datasetID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid dataset ID", "Dataset ID must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *DatasetHandler) respondError(w http.ResponseWriter, id uint, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Dataset not found",
			fmt.Sprintf("No dataset found with id %d for your account", id))
	case errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Authentication credentials were not provided")
	case errors.Is(err, service.ErrReportFailed):
		respondInternalError(w, h.logger, h.debug, "PDF generation failed", "Unable to generate the report", err)
	default:
		respondInternalError(w, h.logger, h.debug, "Internal server error", "An unexpected error occurred", err)
	}
}
