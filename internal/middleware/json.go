package middleware

import (
	"encoding/json"
	"net/http"

	"go-shop-admin/internal/model"
	"go-shop-admin/pkg/apierror"
)

func jsonEncode(w http.ResponseWriter, value any) error {
	return json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, apiErr *apierror.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus)
	_ = jsonEncode(w, model.APIResponse{
		Success: false,
		Message: apiErr.Message,
		Error:   apiErr.Code,
		Details: apiErr.Details,
	})
}
