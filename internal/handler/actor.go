package handler

import (
	"net/http"

	"go-shop-admin/internal/middleware"
)

// actorID is the authenticated principal recorded in createdBy, updatedBy
// and deletedBy. Admin routes always run behind RequireAuth.
func actorID(r *http.Request) string {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return ""
	}

	return principal.ID
}
