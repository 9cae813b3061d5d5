package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-shop-admin/internal/model"
	"go-shop-admin/internal/service"
)

type OrderHandler struct {
	service *service.OrderService
}

func NewOrderHandler(service *service.OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateOrderRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	order, err := h.service.Create(r.Context(), actorID(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "order created", order, nil)
}

func (h *OrderHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListByUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "orders", orders, nil)
}
