package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/repo-dashboard/auth"
	"github.com/jrsteele09/repo-dashboard/billing"
	"github.com/jrsteele09/repo-dashboard/cache"
	redisstore "github.com/jrsteele09/repo-dashboard/cache/redis"
	"github.com/jrsteele09/repo-dashboard/dashboard"
	"github.com/jrsteele09/repo-dashboard/github"
	"github.com/jrsteele09/repo-dashboard/internal/config"
	"github.com/jrsteele09/repo-dashboard/server"
	"github.com/jrsteele09/repo-dashboard/subscriptions"
	"github.com/jrsteele09/repo-dashboard/subscriptions/postgres"
	"github.com/rs/zerolog/log"
)

const (
	blobKeyPrefix         = "dashboard-app:"
	subscribeRefreshLimit = 5 * time.Minute
)

// app holds the wired components and the resources to release on exit.
type app struct {
	handler   http.Handler
	engine    *dashboard.Engine
	scheduler *dashboard.Scheduler
	closers   []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, c config.Config) (*app, error) {
	a := &app{}

	repo, err := openSubscriptions(ctx, c, a)
	if err != nil {
		a.Close()
		return nil, err
	}
	blobs, err := openBlobs(ctx, c, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	gh := github.NewClient(
		github.WithBaseURL(c.GetGitHubAPIURL()),
		github.WithRateLimit(c.GetGitHubRequestsPerSecond(), int(c.GetGitHubRequestsPerSecond())+1),
	)

	renderer, err := dashboard.NewRenderer()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("[newApp] parse dashboard template: %w", err)
	}
	a.engine, err = dashboard.NewEngine(repo, blobs, gh, renderer,
		dashboard.WithPageSize(c.GetSyncPageSize()),
		dashboard.WithMaxPages(c.GetSyncMaxPages()),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.scheduler = dashboard.NewScheduler(a.engine, c.GetSyncHourUTC())

	authManager, err := auth.NewManager(auth.Config{
		ClientID:     c.GetGitHubClientID(),
		ClientSecret: c.GetGitHubClientSecret(),
		Scopes:       c.GetGitHubScopes(),
		AuthURL:      c.GetGitHubAuthURL(),
		TokenURL:     c.GetGitHubTokenURL(),
		BaseURL:      c.GetBaseURL(),
		Secret:       sessionSecret(c),
	}, gh,
		auth.WithTTLs(c.GetTransitStateExpiry(), c.GetSessionExpiry()),
		auth.WithSessionHook(func(ctx context.Context, account auth.Account, accessToken string) error {
			return repo.UpsertCredential(ctx, account.Login, accessToken)
		}),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	processor, err := billing.NewProcessor(billing.Config{
		WebhookSecret:  c.GetStripeWebhookSecret(),
		PaymentLinkID:  c.GetStripePaymentLinkID(),
		PaymentLinkURL: c.GetStripePaymentLink(),
	}, billing.NewStripeCustomers(c.GetStripeSecretKey(), nil), billing.Hooks{
		OnSubscribe: func(ctx context.Context, login, email, customerID string) error {
			if err := repo.ActivateSubscription(ctx, login, email, customerID); err != nil {
				return err
			}
			go refreshAfterSubscribe(a.engine, login)
			return nil
		},
		OnCancel: repo.DeactivateByEmail,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.handler, err = server.New(c, authManager, processor, repo, a.engine)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// openSubscriptions uses PostgreSQL when DATABASE_URL is set and memory otherwise.
func openSubscriptions(ctx context.Context, c config.Config, a *app) (subscriptions.Repo, error) {
	dsn := c.GetDatabaseURL()
	if dsn == "" {
		log.Warn().Msg("DATABASE_URL not set, subscriptions are held in memory")
		return subscriptions.NewInMemoryRepo(), nil
	}
	if err := postgres.Migrate(ctx, dsn); err != nil {
		return nil, fmt.Errorf("[newApp] migrate: %w", err)
	}
	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("[newApp] open database: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	return postgres.NewRepo(db), nil
}

// openBlobs uses Redis when REDIS_URL is set and memory otherwise.
func openBlobs(ctx context.Context, c config.Config, a *app) (cache.BlobStore, error) {
	url := c.GetRedisURL()
	if url == "" {
		log.Warn().Msg("REDIS_URL not set, dashboards are cached in memory")
		return cache.NewInMemoryStore(), nil
	}
	rdb, err := redisstore.Open(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("[newApp] open redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	return redisstore.New(rdb, blobKeyPrefix), nil
}

// sessionSecret falls back to a random per-process key, which signs everyone out on restart.
func sessionSecret(c config.Config) []byte {
	if secret := c.GetSessionSecret(); secret != "" {
		return []byte(secret)
	}
	log.Warn().Msg("SESSION_SECRET not set, using a random key; sessions will not survive a restart")
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("read random session secret: " + err.Error())
	}
	return secret
}

func refreshAfterSubscribe(engine *dashboard.Engine, login string) {
	ctx, cancel := context.WithTimeout(context.Background(), subscribeRefreshLimit)
	defer cancel()
	ctx = log.With().Str("trigger", "subscribe").Logger().WithContext(ctx)
	if err := engine.RefreshLogin(ctx, login); err != nil {
		log.Err(err).Str("login", login).Msg("refresh after subscribe failed")
	}
}
