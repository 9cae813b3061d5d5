package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"go-shop-admin/internal/model"
	"go-shop-admin/pkg/apierror"
)

// maxBodyBytes caps JSON request bodies. None of the payloads come close.
const maxBodyBytes = 1 << 20

func writeSuccess(w http.ResponseWriter, status int, message string, data any, meta *model.Meta) {
	writeJSON(w, status, model.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    meta,
	})
}

// writeSession is the login-shaped envelope: the principal in data and the
// token pair at the top level.
func writeSession(w http.ResponseWriter, status int, message string, user model.User, tokens model.TokenPair) {
	writeJSON(w, status, model.APIResponse{
		Success:      true,
		Message:      message,
		Data:         user,
		Token:        tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

func writeError(w http.ResponseWriter, err error) {
	var apiErr *apierror.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("unhandled error in writeError", "error", err)
		apiErr = apierror.Internal()
	}

	writeJSON(w, apiErr.HTTPStatus, model.APIResponse{
		Success: false,
		Message: apiErr.Message,
		Error:   apiErr.Code,
		Details: apiErr.Details,
	})
}

func writeJSON(w http.ResponseWriter, status int, body model.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeBody reads a JSON object into dst. An empty body leaves dst at its
// zero value so field validation reports what is missing.
func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apierror.InvalidInput("invalid JSON body", "")
	}

	return nil
}

func parseIntOrDefault(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}

	return value
}
