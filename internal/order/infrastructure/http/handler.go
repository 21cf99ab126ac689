package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	catalogdomain "github.com/example/storefront/internal/catalog/domain"
	"github.com/example/storefront/internal/order/application"
	"github.com/example/storefront/internal/order/domain"
	"github.com/example/storefront/pkg/httpjson"
	"github.com/example/storefront/pkg/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	idem    func(http.Handler) http.Handler
	tracer  trace.Tracer
}

// NewHandler builds the orders HTTP surface. idem guards order placement
// against duplicate submissions; pass nil to disable.
func NewHandler(log *slog.Logger, service *application.Service, idem func(http.Handler) http.Handler) *Handler {
	if idem == nil {
		idem = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		log:     log,
		service: service,
		idem:    idem,
		tracer:  otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.With(h.idem).Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	return r
}

type createOrderRequest struct {
	CustomerID string `json:"customerId"`
	Products   []struct {
		ID       int64 `json:"id"`
		Quantity int   `json:"quantity"`
	} `json:"products"`
}

type orderItemResponse struct {
	ID       int64   `json:"id"`
	Quantity int     `json:"quantity"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
}

type orderResponse struct {
	ID               string              `json:"id"`
	CustomerID       string              `json:"customerId"`
	OrderCreatedDate time.Time           `json:"orderCreatedDate"`
	OrderUpdatedDate time.Time           `json:"orderUpdatedDate"`
	Status           string              `json:"status"`
	OrderTotal       float64             `json:"orderTotal"`
	Products         []orderItemResponse `json:"products"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PlaceOrder")
	defer span.End()

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "customerId must be a valid uuid")
		return
	}
	lines := make([]application.Line, 0, len(req.Products))
	for _, p := range req.Products {
		lines = append(lines, application.Line{ProductID: p.ID, Quantity: p.Quantity})
	}

	traceparent := r.Header.Get(tracing.TraceparentHeader)
	if traceparent == "" {
		traceparent = tracing.Traceparent(ctx)
	}

	o, err := h.service.PlaceOrder(ctx, customerID, lines, traceparent)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.log.Info("order placed", "order_id", o.ID, "customer_id", o.CustomerID, "total", o.Total)
	httpjson.Respond(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListOrders")
	defer span.End()

	orders, err := h.service.List(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	httpjson.Respond(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "order id must be a valid uuid")
		return
	}
	o, err := h.service.Get(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpjson.Respond(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var validation *catalogdomain.ValidationError
	var stock *domain.InsufficientStockError
	var productMissing *catalogdomain.NotFoundError
	var orderMissing *domain.NotFoundError
	switch {
	case errors.As(err, &validation), errors.As(err, &stock):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &productMissing), errors.As(err, &orderMissing):
		httpjson.Error(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error("order request failed", "err", err)
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
	}
}

func toOrderResponse(o domain.Order) orderResponse {
	products := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		products = append(products, orderItemResponse{
			ID:       item.ProductID,
			Quantity: item.Quantity,
			Name:     item.Name,
			Price:    item.Price.InexactFloat64(),
		})
	}
	return orderResponse{
		ID:               o.ID.String(),
		CustomerID:       o.CustomerID.String(),
		OrderCreatedDate: o.CreatedAt,
		OrderUpdatedDate: o.UpdatedAt,
		Status:           string(o.Status),
		OrderTotal:       o.Total.InexactFloat64(),
		Products:         products,
	}
}
