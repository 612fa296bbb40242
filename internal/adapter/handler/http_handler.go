package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/CrLims/discord-custom-product/internal/core/domain"
	"github.com/CrLims/discord-custom-product/internal/core/service"
)

// HTTPHandler is the administrative/ops surface: catalog management,
// availability queries and headless settlement. Operator identity comes from
// the X-Operator-ID header; the engine enforces authorization.
type HTTPHandler struct {
	engine *service.Engine
	logger *slog.Logger
}

func NewHTTPHandler(engine *service.Engine, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{engine: engine, logger: logger}
}

func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.HealthCheck)
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Post("/products", h.UpsertProduct)
		r.Put("/products/{name}/stock", h.SetStock)
		r.Put("/products/{name}/price", h.SetPrice)
		r.Delete("/products/{name}", h.DeleteProduct)
		r.Get("/products/{name}/availability", h.Availability)

		r.Get("/reservations", h.ListReservations)
		r.Post("/reservations", h.CreateReservation)
		r.Post("/reservations/{id}/success", h.ResolveSuccess)
		r.Post("/reservations/{id}/cancel", h.ResolveCancel)
	})

	return r
}

type productResponse struct {
	Name  string `json:"name"`
	Stock int    `json:"stock"`
	Price int64  `json:"price"`
}

type reservationResponse struct {
	ID         string `json:"id"`
	Requester  string `json:"requester"`
	Product    string `json:"product"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	TotalPrice int64  `json:"total_price"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	ResolvedBy string `json:"resolved_by,omitempty"`
	ResolvedAt string `json:"resolved_at,omitempty"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{Name: p.Name, Stock: p.Stock, Price: p.Price}
}

func toReservationResponse(r domain.Reservation) reservationResponse {
	resp := reservationResponse{
		ID:         r.ID,
		Requester:  r.Requester,
		Product:    r.Product,
		Quantity:   r.Quantity,
		UnitPrice:  r.UnitPrice,
		TotalPrice: r.TotalPrice,
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		ResolvedBy: r.ResolvedBy,
	}
	if !r.ResolvedAt.IsZero() {
		resp.ResolvedAt = r.ResolvedAt.Format(time.RFC3339)
	}
	return resp
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.engine.Products(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := []productResponse{}
	for p := range products {
		out = append(out, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Stock int    `json:"stock"`
		Price int64  `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	p, err := h.engine.UpsertProduct(r.Context(), req.Name, req.Stock, req.Price)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *HTTPHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stock int `json:"stock"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	p, err := h.engine.SetStock(r.Context(), chi.URLParam(r, "name"), req.Stock)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *HTTPHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price int64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	p, err := h.engine.SetPrice(r.Context(), chi.URLParam(r, "name"), req.Price)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteProduct(r.Context(), chi.URLParam(r, "name")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) Availability(w http.ResponseWriter, r *http.Request) {
	av, err := h.engine.Availability(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"stock":     av.Stock,
		"pending":   av.Pending,
		"available": av.Available,
	})
}

func (h *HTTPHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.engine.Reservations(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := []reservationResponse{}
	for res := range reservations {
		out = append(out, toReservationResponse(res))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateReservation opens a reservation without a backing ticket channel.
// The id is minted here since no chat-platform channel exists to supply one.
func (h *HTTPHandler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Requester string `json:"requester"`
		Product   string `json:"product"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Requester == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "requester is required"})
		return
	}

	res, err := h.engine.RequestReservation(r.Context(), uuid.New().String(), req.Requester, req.Product, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationResponse(res))
}

func (h *HTTPHandler) ResolveSuccess(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.ResolveSuccess(r.Context(), chi.URLParam(r, "id"), r.Header.Get("X-Operator-ID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(res))
}

func (h *HTTPHandler) ResolveCancel(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.ResolveCancel(r.Context(), chi.URLParam(r, "id"), r.Header.Get("X-Operator-ID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(res))
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	var (
		validation   *domain.ValidationError
		insufficient *domain.InsufficientStockError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Reason})
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     "insufficient stock",
			"available": insufficient.Available,
			"pending":   insufficient.Pending,
			"requested": insufficient.Requested,
		})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, domain.ErrAlreadyProcessed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already processed"})
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "unauthorized"})
	default:
		h.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
