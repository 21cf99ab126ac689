package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/example/storefront/internal/catalog/application"
	"github.com/example/storefront/internal/catalog/domain"
	"github.com/example/storefront/pkg/httpjson"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("catalog-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Post("/check-quantities", h.checkQuantities)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.replace)
	r.Patch("/{id}", h.patch)
	r.Delete("/{id}", h.del)
	return r
}

type productBody struct {
	Name           *string  `json:"name"`
	Description    *string  `json:"description"`
	Price          *float64 `json:"price"`
	AvailableCount *int     `json:"availableCount"`
}

type productResponse struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Price          float64   `json:"price"`
	AvailableCount int       `json:"availableCount"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type paginatedResponse struct {
	Data       []productResponse `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		Limit      int `json:"limit"`
		Total      int `json:"total"`
		TotalPages int `json:"totalPages"`
	} `json:"pagination"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateProduct")
	defer span.End()

	var body productBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := body.toProduct()
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.service.Create(ctx, p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.log.Info("product created", "product_id", created.ID, "name", created.Name)
	httpjson.Respond(w, http.StatusCreated, toProductResponse(created))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListProducts")
	defer span.End()

	page, err := queryInt(r, "page", application.DefaultPage)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	limit, err := queryInt(r, "limit", application.DefaultLimit)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	result, err := h.service.List(ctx, page, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var resp paginatedResponse
	resp.Data = make([]productResponse, 0, len(result.Products))
	for _, p := range result.Products {
		resp.Data = append(resp.Data, toProductResponse(p))
	}
	resp.Pagination.Page = result.Page
	resp.Pagination.Limit = result.Limit
	resp.Pagination.Total = result.Total
	resp.Pagination.TotalPages = result.TotalPages
	httpjson.Respond(w, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetProduct")
	defer span.End()

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpjson.Respond(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) replace(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ReplaceProduct")
	defer span.End()

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var body productBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := body.toProduct()
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.service.Replace(ctx, id, p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpjson.Respond(w, http.StatusOK, toProductResponse(updated))
}

func (h *Handler) patch(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PatchProduct")
	defer span.End()

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var body productBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	patched, err := h.service.Patch(ctx, id, body.toPatch())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpjson.Respond(w, http.StatusOK, toProductResponse(patched))
}

func (h *Handler) del(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteProduct")
	defer span.End()

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(ctx, id); err != nil {
		h.writeError(w, err)
		return
	}
	httpjson.Respond(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Product with ID %d successfully deleted", id),
	})
}

type checkQuantitiesRequest struct {
	IDs []int64 `json:"ids"`
}

type quantityResponse struct {
	ID             int64 `json:"id"`
	AvailableCount int   `json:"availableCount"`
}

func (h *Handler) checkQuantities(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CheckQuantities")
	defer span.End()

	var req checkQuantitiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	quantities, err := h.service.Quantities(ctx, req.IDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]quantityResponse, 0, len(quantities))
	for _, q := range quantities {
		out = append(out, quantityResponse{ID: q.ID, AvailableCount: q.AvailableCount})
	}
	httpjson.Respond(w, http.StatusOK, out)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpjson.Error(w, http.StatusBadRequest, "product id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	var missing *domain.NotFoundError
	switch {
	case errors.As(err, &validation):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &missing):
		httpjson.Error(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error("catalog request failed", "err", err)
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// toProduct requires every mutable field, for create and full replace.
func (b productBody) toProduct() (domain.Product, error) {
	if b.Name == nil || b.Description == nil || b.Price == nil || b.AvailableCount == nil {
		return domain.Product{}, errors.New("name, description, price and availableCount are required")
	}
	return domain.Product{
		Name:           *b.Name,
		Description:    *b.Description,
		Price:          decimal.NewFromFloat(*b.Price),
		AvailableCount: *b.AvailableCount,
	}, nil
}

func (b productBody) toPatch() domain.Patch {
	patch := domain.Patch{
		Name:           b.Name,
		Description:    b.Description,
		AvailableCount: b.AvailableCount,
	}
	if b.Price != nil {
		price := decimal.NewFromFloat(*b.Price)
		patch.Price = &price
	}
	return patch
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price.InexactFloat64(),
		AvailableCount: p.AvailableCount,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}
