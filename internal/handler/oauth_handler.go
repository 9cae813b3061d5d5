package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-shop-admin/internal/middleware"
	"go-shop-admin/internal/oauth"
	"go-shop-admin/internal/service"
	"go-shop-admin/pkg/apierror"
)

// OAuthHandler drives the redirect and callback legs of federated login.
type OAuthHandler struct {
	providers *oauth.Registry
	states    oauth.StateStore
	federated *service.FederatedService
}

func NewOAuthHandler(providers *oauth.Registry, states oauth.StateStore, federated *service.FederatedService) *OAuthHandler {
	return &OAuthHandler{providers: providers, states: states, federated: federated}
}

func (h *OAuthHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.provider(r)
	if !ok {
		writeError(w, apierror.NotFound("identity provider not available", chi.URLParam(r, "provider")))
		return
	}

	state, err := h.states.Issue(r.Context(), provider.Name())
	if err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
}

func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.provider(r)
	if !ok {
		writeError(w, apierror.NotFound("identity provider not available", chi.URLParam(r, "provider")))
		return
	}

	query := r.URL.Query()
	if reason := query.Get("error"); reason != "" {
		writeError(w, apierror.Unauthorized("federated login was cancelled"))
		return
	}

	valid, err := h.states.Consume(r.Context(), provider.Name(), strings.TrimSpace(query.Get("state")))
	if err != nil {
		writeError(w, err)
		return
	}
	if !valid {
		writeError(w, apierror.InvalidInput("invalid or expired state", "state"))
		return
	}

	profile, err := provider.Exchange(r.Context(), strings.TrimSpace(query.Get("code")))
	if err != nil {
		slog.Warn("federated exchange failed", "request_id", middleware.RequestIDFromContext(r.Context()), "provider", provider.Name(), "error", err)
		writeError(w, apierror.Unauthorized("federated login failed"))
		return
	}

	result, err := h.federated.Login(r.Context(), profile)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSession(w, http.StatusOK, "login successful", result.User, result.Tokens)
}

func (h *OAuthHandler) provider(r *http.Request) (oauth.Provider, bool) {
	return h.providers.Get(strings.ToLower(chi.URLParam(r, "provider")))
}
