package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/domain"
	"github.com/straye-as/deal-engine/internal/mapper"
	"github.com/straye-as/deal-engine/internal/repository"
	"github.com/straye-as/deal-engine/internal/service"
	"go.uber.org/zap"
)

type DealHandler struct {
	dealService *service.DealService
	errors      *ErrorMapper
	logger      *zap.Logger
}

func NewDealHandler(dealService *service.DealService, errors *ErrorMapper, logger *zap.Logger) *DealHandler {
	return &DealHandler{
		dealService: dealService,
		errors:      errors,
		logger:      logger,
	}
}

// @Summary List deals
// @Description List the latest version of every deal the calling company is party to
// @Tags Deals
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param role query string false "Only deals where the caller is buyer or seller"
// @Param status query string false "Filter by status (active, completed)"
// @Param dealType query string false "Filter by deal type (goods, services)"
// @Param sortBy query string false "Sort field (createdAt, updatedAt, totalAmount, version)"
// @Param sortOrder query string false "asc or desc" default(desc)
// @Success 200 {object} domain.PaginatedResponse
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals [get]
func (h *DealHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	filters := domain.DealListFilters{}
	switch role := domain.PartyRole(q.Get("role")); role {
	case domain.PartyNone, domain.PartyBuyer, domain.PartySeller:
		filters.Role = role
	default:
		respondWithError(w, http.StatusBadRequest, "Invalid role: must be buyer or seller")
		return
	}
	if s := q.Get("status"); s != "" {
		status := domain.DealStatus(s)
		if status != domain.DealStatusActive && status != domain.DealStatusCompleted {
			respondWithError(w, http.StatusBadRequest, "Invalid status: must be active or completed")
			return
		}
		filters.Status = &status
	}
	if t := q.Get("dealType"); t != "" {
		dealType := domain.DealType(t)
		if !dealType.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid dealType: must be goods or services")
			return
		}
		filters.DealType = &dealType
	}

	sort := repository.DefaultSortConfig()
	if s := q.Get("sortBy"); s != "" {
		sort.Field = s
	}
	sort.Order = repository.ParseSortOrder(q.Get("sortOrder"))

	result, err := h.dealService.ListDeals(r.Context(), companyID, filters, sort, page, pageSize)
	if err != nil {
		h.errors.respond(w, r, err, uuid.Nil, "list deals")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// @Summary Create order
// @Description Place a new order between a buyer and a seller. Version 1 is agreed by the caller's side.
// @Tags Deals
// @Accept json
// @Produce json
// @Param request body domain.CreateDealRequest true "Order"
// @Success 201 {object} domain.DealDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals [post]
func (h *DealHandler) Create(w http.ResponseWriter, r *http.Request) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}

	var req domain.CreateDealRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	deal, err := h.dealService.CreateOrder(r.Context(), companyID, &req)
	if err != nil {
		h.errors.respond(w, r, err, uuid.Nil, "create order")
		return
	}

	w.Header().Set("Location", "/api/v1/deals/"+deal.DealID.String())
	respondJSON(w, http.StatusCreated, mapper.ToDealDTO(deal))
}

// @Summary Get deal
// @Description Get the active (highest agreed) version, or an explicit version with ?version=N
// @Tags Deals
// @Produce json
// @Param dealId path string true "Deal ID"
// @Param version query int false "Explicit version number"
// @Success 200 {object} domain.DealDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{dealId} [get]
func (h *DealHandler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealId", "deal ID")
	if !ok {
		return
	}

	var (
		deal *domain.Deal
		err  error
	)
	if raw := r.URL.Query().Get("version"); raw != "" {
		version, ok := versionParam(w, raw)
		if !ok {
			return
		}
		deal, err = h.dealService.GetVersion(r.Context(), dealID, version, companyID)
	} else {
		deal, err = h.dealService.GetActive(r.Context(), dealID, companyID)
	}
	if err != nil {
		h.errors.respond(w, r, err, dealID, "get deal")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToDealDTO(deal))
}

// @Summary Get latest version
// @Description Get the highest version regardless of agreement
// @Tags Deals
// @Produce json
// @Param dealId path string true "Deal ID"
// @Success 200 {object} domain.DealDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{dealId}/latest [get]
func (h *DealHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealId", "deal ID")
	if !ok {
		return
	}

	deal, err := h.dealService.GetLatest(r.Context(), dealID, companyID)
	if err != nil {
		h.errors.respond(w, r, err, dealID, "get latest version")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToDealDTO(deal))
}

// @Summary Update latest version
// @Description Edit the latest version in place. Not allowed once it is agreed or rejected.
// @Tags Deals
// @Accept json
// @Produce json
// @Param dealId path string true "Deal ID"
// @Param request body domain.DealPatch true "Fields to change"
// @Success 200 {object} domain.DealDTO
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{dealId} [put]
func (h *DealHandler) Update(w http.ResponseWriter, r *http.Request) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealId", "deal ID")
	if !ok {
		return
	}

	var patch domain.DealPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	deal, err := h.dealService.UpdateLatestVersion(r.Context(), dealID, companyID, &patch)
	if err != nil {
		h.errors.respond(w, r, err, dealID, "update deal")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToDealDTO(deal))
}

// @Summary Delete deal
// @Description Delete a deal with all versions, items, documents and history
// @Tags Deals
// @Param dealId path string true "Deal ID"
// @Success 204
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{dealId} [delete]
func (h *DealHandler) Delete(w http.ResponseWriter, r *http.Request) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealId", "deal ID")
	if !ok {
		return
	}

	if err := h.dealService.DeleteDeal(r.Context(), dealID, companyID); err != nil {
		h.errors.respond(w, r, err, dealID, "delete deal")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary List versions
// @Description List all versions of a deal, newest first
// @Tags Versions
// @Produce json
// @Param dealId path string true "Deal ID"
// @Success 200 {array} domain.DealVersionSummaryDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{dealId}/versions [get]
func (h *DealHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealId", "deal ID")
	if !ok {
		return
	}

	versions, err := h.dealService.ListVersions(r.Context(), dealID, companyID)
	if err != nil {
		h.errors.respond(w, r, err, dealID, "list versions")
		return
	}

	dtos := make([]domain.DealVersionSummaryDTO, len(versions))
	for i := range versions {
		dtos[i] = mapper.ToDealVersionSummaryDTO(&versions[i])
	}
	respondJSON(w, http.StatusOK, dtos)
}

// @Summary Propose new version
// @Description Copy the latest version into a new one proposed by the caller, optionally applying changes
// @Tags Versions
// @Accept json
// @Produce json
// @Param dealId path string true "Deal ID"
// @Param request body domain.DealPatch false "Changes for the new version"
// @Success 201 {object} domain.DealDTO
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{dealId}/versions [post]
func (h *DealHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealId", "deal ID")
	if !ok {
		return
	}

	var patch *domain.DealPatch
	var body domain.DealPatch
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	} else if err == nil {
		if err := validate.Struct(&body); err != nil {
			respondValidationError(w, err)
			return
		}
		patch = &body
	}

	deal, err := h.dealService.CreateNewVersion(r.Context(), dealID, companyID, patch)
	if err != nil {
		h.errors.respond(w, r, err, dealID, "create version")
		return
	}

	w.Header().Set("Location", "/api/v1/deals/"+dealID.String()+"?version="+strconv.Itoa(deal.Version))
	respondJSON(w, http.StatusCreated, mapper.ToDealDTO(deal))
}

// @Summary Delete last version
// @Description Withdraw the latest version. Version 1 and agreed versions cannot be deleted.
// @Tags Versions
// @Produce json
// @Param dealId path string true "Deal ID"
// @Success 200 {object} domain.DealDTO "The new latest version"
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{dealId}/versions/last [delete]
func (h *DealHandler) DeleteLastVersion(w http.ResponseWriter, r *http.Request) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealId", "deal ID")
	if !ok {
		return
	}

	deal, err := h.dealService.DeleteLastVersion(r.Context(), dealID, companyID)
	if err != nil {
		h.errors.respond(w, r, err, dealID, "delete version")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToDealDTO(deal))
}

// @Summary Accept version
// @Description Record the caller's side as accepting a version. Accepting twice is a no-op.
// @Tags Versions
// @Produce json
// @Param dealId path string true "Deal ID"
// @Param version path int true "Version number"
// @Success 200 {object} domain.DealDTO
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{dealId}/versions/{version}/accept [post]
func (h *DealHandler) AcceptVersion(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "accept version", h.dealService.AcceptVersion)
}

// @Summary Reject version
// @Description Reject a proposed version. Earlier versions are kept.
// @Tags Versions
// @Produce json
// @Param dealId path string true "Deal ID"
// @Param version path int true "Version number"
// @Success 200 {object} domain.DealDTO
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{dealId}/versions/{version}/reject [post]
func (h *DealHandler) RejectVersion(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reject version", h.dealService.RejectVersion)
}

type versionTransition func(ctx context.Context, dealID uuid.UUID, version int, actor uuid.UUID) (*domain.Deal, error)

func (h *DealHandler) transition(w http.ResponseWriter, r *http.Request, action string, fn versionTransition) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealId", "deal ID")
	if !ok {
		return
	}
	version, ok := versionParam(w, chi.URLParam(r, "version"))
	if !ok {
		return
	}

	deal, err := fn(r.Context(), dealID, version, companyID)
	if err != nil {
		h.errors.respond(w, r, err, dealID, action)
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToDealDTO(deal))
}

// @Summary Deal history
// @Description Audit trail of a deal, newest first
// @Tags Deals
// @Produce json
// @Param dealId path string true "Deal ID"
// @Success 200 {array} domain.DealHistoryDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{dealId}/history [get]
func (h *DealHandler) History(w http.ResponseWriter, r *http.Request) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealId", "deal ID")
	if !ok {
		return
	}

	entries, err := h.dealService.GetHistory(r.Context(), dealID, companyID)
	if err != nil {
		h.errors.respond(w, r, err, dealID, "get history")
		return
	}

	dtos := make([]domain.DealHistoryDTO, len(entries))
	for i := range entries {
		dtos[i] = mapper.ToDealHistoryDTO(&entries[i])
	}
	respondJSON(w, http.StatusOK, dtos)
}

// @Summary Assign number
// @Description Assign a bill, contract or supply_contract number to the latest version. Without a number the seller's next sequence number is used.
// @Tags Deals
// @Accept json
// @Produce json
// @Param dealId path string true "Deal ID"
// @Param kind path string true "bill, contract or supply_contract"
// @Param request body domain.AssignNumberRequest false "Explicit number and date"
// @Success 200 {object} domain.DealDTO
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{dealId}/numbers/{kind} [post]
func (h *DealHandler) AssignNumber(w http.ResponseWriter, r *http.Request) {
	companyID, ok := actor(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealId", "deal ID")
	if !ok {
		return
	}

	var req domain.AssignNumberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	deal, err := h.dealService.AssignNumber(r.Context(), dealID, companyID, domain.NumberKind(chi.URLParam(r, "kind")), &req)
	if err != nil {
		h.errors.respond(w, r, err, dealID, "assign number")
		return
	}
	respondJSON(w, http.StatusOK, mapper.ToDealDTO(deal))
}
