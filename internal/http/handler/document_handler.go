package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/straye-as/deal-engine/internal/domain"
	"github.com/straye-as/deal-engine/internal/mapper"
	"github.com/straye-as/deal-engine/internal/service"
	"go.uber.org/zap"
)

type DocumentHandler struct {
	documentService *service.DocumentService
	errors          *ErrorMapper
	maxUploadMB     int64
	logger          *zap.Logger
}

func NewDocumentHandler(documentService *service.DocumentService, errors *ErrorMapper, maxUploadMB int64, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		errors:          errors,
		maxUploadMB:     maxUploadMB,
		logger:          logger,
	}
}

// @Summary Upload document
// @Description Attach a file to the latest version of a deal
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param dealId path string true "Deal ID"
// @Param file formData file true "File to upload"
// @Param documentType formData string true "order, specification, contract, supply_contract, invoice or bill"
// @Param documentNumber formData string false "Document number, defaults to the file name"
// @Param documentDate formData string false "Document date (YYYY-MM-DD)"
// @Success 201 {object} domain.DealDocumentDTO
// @Failure 400 {object} domain.APIError
// @Failure 502 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{dealId}/documents [post]
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealId", "deal ID")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadMB*1024*1024)
	if err := r.ParseMultipartForm(h.maxUploadMB * 1024 * 1024); err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("File too large or invalid form (max %dMB)", h.maxUploadMB))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	meta := service.DocumentUpload{
		DocumentType:   r.FormValue("documentType"),
		DocumentNumber: r.FormValue("documentNumber"),
		FileName:       header.Filename,
		ContentType:    header.Header.Get("Content-Type"),
	}
	if raw := r.FormValue("documentDate"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid documentDate: use YYYY-MM-DD")
			return
		}
		meta.DocumentDate = &date
	}

	doc, err := h.documentService.Upload(r.Context(), dealID, companyID, meta, file)
	if err != nil {
		h.errors.respond(w, r, err, dealID, "upload document")
		return
	}
	respondJSON(w, http.StatusCreated, mapper.ToDealDocumentDTO(doc))
}

// @Summary List documents
// @Description List uploaded documents of every version of a deal
// @Tags Documents
// @Produce json
// @Param dealId path string true "Deal ID"
// @Success 200 {array} domain.DealDocumentDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{dealId}/documents [get]
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealId", "deal ID")
	if !ok {
		return
	}

	docs, err := h.documentService.List(r.Context(), dealID, companyID)
	if err != nil {
		h.errors.respond(w, r, err, dealID, "list documents")
		return
	}

	dtos := make([]domain.DealDocumentDTO, len(docs))
	for i := range docs {
		dtos[i] = mapper.ToDealDocumentDTO(&docs[i])
	}
	respondJSON(w, http.StatusOK, dtos)
}

// @Summary Download document
// @Tags Documents
// @Produce octet-stream
// @Param dealId path string true "Deal ID"
// @Param documentId path string true "Document ID"
// @Success 200 {file} binary
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{dealId}/documents/{documentId}/download [get]
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealId", "deal ID")
	if !ok {
		return
	}
	documentID, ok := uuidParam(w, r, "documentId", "document ID")
	if !ok {
		return
	}

	doc, reader, err := h.documentService.Download(r.Context(), dealID, documentID, companyID)
	if err != nil {
		h.errors.respond(w, r, err, dealID, "download document")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	if doc.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("document download interrupted",
			zap.String("document_id", documentID.String()),
			zap.Error(err))
	}
}

// @Summary Mark document sent
// @Description Flag a document as sent to the counterparty
// @Tags Documents
// @Produce json
// @Param dealId path string true "Deal ID"
// @Param documentId path string true "Document ID"
// @Success 200 {object} domain.DealDocumentDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{dealId}/documents/{documentId}/sent [post]
func (h *DocumentHandler) MarkSent(w http.ResponseWriter, r *http.Request) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealId", "deal ID")
	if !ok {
		return
	}
	documentID, ok := uuidParam(w, r, "documentId", "document ID")
	if !ok {
		return
	}

	doc, err := h.documentService.MarkSent(r.Context(), dealID, documentID, companyID)
	if err != nil {
		h.errors.respond(w, r, err, dealID, "mark document sent")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToDealDocumentDTO(doc))
}

// @Summary Delete document
// @Tags Documents
// @Param dealId path string true "Deal ID"
// @Param documentId path string true "Document ID"
// @Success 204
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{dealId}/documents/{documentId} [delete]
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealId", "deal ID")
	if !ok {
		return
	}
	documentID, ok := uuidParam(w, r, "documentId", "document ID")
	if !ok {
		return
	}

	if err := h.documentService.Delete(r.Context(), dealID, documentID, companyID); err != nil {
		h.errors.respond(w, r, err, dealID, "delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
