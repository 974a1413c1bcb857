package server

import (
	"net/http"

	"github.com/jrsteele09/repo-dashboard/auth"
	"github.com/jrsteele09/repo-dashboard/github"
	"github.com/rs/zerolog"
)

type landingPageData struct {
	AppName string
}

type pricingPageData struct {
	AppName     string
	User        auth.Account
	PaymentLink string
}

// IndexHandler serves the landing page to anonymous visitors, the pricing page to
// signed-in accounts without a subscription, and the dashboard to subscribers.
func (s *Server) IndexHandler() http.HandlerFunc {
	landing := mustParseTemplate("landing.html")
	pricing := mustParseTemplate("pricing.html")

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := zerolog.Ctx(ctx)

		session := s.auth.Session(r)
		if session == nil || session.AccessToken == "" {
			executeTemplate(w, r, landing, landingPageData{AppName: s.config.GetAppName()})
			return
		}
		user := session.Account

		active, err := s.subs.IsActive(ctx, user.Login)
		if err != nil {
			logger.Error().Err(err).Str("login", user.Login).Msg("subscription lookup")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if !active {
			executeTemplate(w, r, pricing, pricingPageData{
				AppName:     s.config.GetAppName(),
				User:        user,
				PaymentLink: s.billing.PaymentLink(user.Login),
			})
			return
		}

		page, err := s.engine.Page(ctx, github.User{
			Login:     user.Login,
			ID:        user.ID,
			AvatarURL: user.AvatarURL,
			Email:     user.Email,
		})
		if err != nil {
			logger.Error().Err(err).Str("login", user.Login).Msg("load dashboard")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		writeHTML(w, http.StatusOK, page)
	}
}
