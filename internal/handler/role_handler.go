package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-shop-admin/internal/model"
	"go-shop-admin/internal/service"
)

type RoleHandler struct {
	service *service.RoleService
}

func NewRoleHandler(service *service.RoleService) *RoleHandler {
	return &RoleHandler{service: service}
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "roles", roles, nil)
}

func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "role", role, nil)
}

// Create accepts "*" in permissions, expanded to the active catalog at write time.
func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.RoleRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	role, err := h.service.Create(r.Context(), actorID(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "role created", role, nil)
}

func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload model.RoleRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	role, err := h.service.Update(r.Context(), actorID(r), chi.URLParam(r, "id"), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "role updated", role, nil)
}

func (h *RoleHandler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.SoftDelete(r.Context(), actorID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "role deleted", role, nil)
}

func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actorID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "role permanently deleted", map[string]any{"deleted": true}, nil)
}
