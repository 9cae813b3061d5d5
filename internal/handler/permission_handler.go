package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-shop-admin/internal/model"
	"go-shop-admin/internal/service"
)

type PermissionHandler struct {
	service *service.PermissionService
}

func NewPermissionHandler(service *service.PermissionService) *PermissionHandler {
	return &PermissionHandler{service: service}
}

func (h *PermissionHandler) List(w http.ResponseWriter, r *http.Request) {
	permissions, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "permissions", permissions, nil)
}

func (h *PermissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	permission, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "permission", permission, nil)
}

func (h *PermissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.PermissionRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	permission, err := h.service.Create(r.Context(), actorID(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "permission created", permission, nil)
}

func (h *PermissionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload model.PermissionRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	permission, err := h.service.Update(r.Context(), actorID(r), chi.URLParam(r, "id"), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "permission updated", permission, nil)
}

func (h *PermissionHandler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	permission, err := h.service.SoftDelete(r.Context(), actorID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "permission deleted", permission, nil)
}

func (h *PermissionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actorID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "permission permanently deleted", map[string]any{"deleted": true}, nil)
}
