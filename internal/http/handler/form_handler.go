package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/deal-engine/internal/service"
	"go.uber.org/zap"
)

// maxFormBytes bounds a form draft body
const maxFormBytes = 2 << 20

type FormHandler struct {
	formService *service.DocumentFormService
	errors      *ErrorMapper
	logger      *zap.Logger
}

func NewFormHandler(formService *service.DocumentFormService, errors *ErrorMapper, logger *zap.Logger) *FormHandler {
	return &FormHandler{
		formService: formService,
		errors:      errors,
		logger:      logger,
	}
}

func formVersion(r *http.Request) *string {
	if !r.URL.Query().Has("version") {
		return nil
	}
	v := r.URL.Query().Get("version")
	return &v
}

// @Summary Get form draft
// @Description Get the JSON draft of a document form on the latest version. A missing draft returns an empty object with exists=false.
// @Tags Forms
// @Produce json
// @Param dealId path string true "Deal ID"
// @Param documentType path string true "Document type"
// @Param version query string false "Form version, newest when omitted"
// @Success 200 {object} domain.DocumentFormDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{dealId}/forms/{documentType} [get]
func (h *FormHandler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealId", "deal ID")
	if !ok {
		return
	}

	form, err := h.formService.Get(r.Context(), dealID, companyID, chi.URLParam(r, "documentType"), formVersion(r))
	if err != nil {
		h.errors.respond(w, r, err, dealID, "get form")
		return
	}
	respondJSON(w, http.StatusOK, form)
}

// @Summary Get form draft content
// @Description Return the stored form JSON exactly as it was saved, without the envelope
// @Tags Forms
// @Produce json
// @Param dealId path string true "Deal ID"
// @Param documentType path string true "Document type"
// @Param version query string false "Form version, newest when omitted"
// @Success 200 {object} object
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{dealId}/forms/{documentType}/content [get]
func (h *FormHandler) Content(w http.ResponseWriter, r *http.Request) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealId", "deal ID")
	if !ok {
		return
	}

	form, err := h.formService.Get(r.Context(), dealID, companyID, chi.URLParam(r, "documentType"), formVersion(r))
	if err != nil {
		h.errors.respond(w, r, err, dealID, "get form content")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Document-Version", form.DocumentVersion)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(form.Content)
}

// @Summary Save form draft
// @Description Store a JSON draft for a document form on the latest version. The body is stored byte for byte; the content endpoint returns it unchanged.
// @Tags Forms
// @Accept json
// @Produce json
// @Param dealId path string true "Deal ID"
// @Param documentType path string true "Document type"
// @Param version query string false "Form version"
// @Param request body object true "Form content"
// @Success 200 {object} domain.DocumentFormDTO
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{dealId}/forms/{documentType} [put]
func (h *FormHandler) Save(w http.ResponseWriter, r *http.Request) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealId", "deal ID")
	if !ok {
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFormBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Form body too large or unreadable")
		return
	}

	form, err := h.formService.Save(r.Context(), dealID, companyID, chi.URLParam(r, "documentType"), payload, formVersion(r))
	if err != nil {
		h.errors.respond(w, r, err, dealID, "save form")
		return
	}
	respondJSON(w, http.StatusOK, form)
}
