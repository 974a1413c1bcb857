package server

import (
	"net/http"

	"github.com/jrsteele09/repo-dashboard/internal/errors"
	"github.com/jrsteele09/repo-dashboard/internal/utils"
	"github.com/rs/zerolog"
)

// UserHandler returns the signed-in account.
func (s *Server) UserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := s.auth.CurrentUser(r)
		if user == nil {
			utils.WriteJSONError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		utils.WriteJSON(w, http.StatusOK, user)
	}
}

// PortalSessionHandler opens a billing portal session that returns to the dashboard.
func (s *Server) PortalSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user := s.auth.CurrentUser(r)
		if user == nil {
			utils.WriteJSONError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		customerID, err := s.subs.GetCustomerID(ctx, user.Login)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("login", user.Login).Msg("customer lookup")
			utils.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		var id string
		if customerID != nil {
			id = *customerID
		}

		url, err := s.billing.PortalSessionURL(ctx, id, s.auth.Origin(r)+"/")
		if errors.Is(err, errors.ErrNoCustomerOnRecord) {
			utils.WriteJSONError(w, http.StatusNotFound, "No subscription found")
			return
		}
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("login", user.Login).Msg("create portal session")
			utils.WriteJSONError(w, http.StatusInternalServerError, "Failed to create portal session")
			return
		}
		utils.WriteJSON(w, http.StatusOK, map[string]string{"url": url})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
