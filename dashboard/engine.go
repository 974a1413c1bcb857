// Package dashboard synchronizes each subscriber's GitHub listings into the blob tier and
// materializes the rendered dashboard page.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/jrsteele09/repo-dashboard/cache"
	"github.com/jrsteele09/repo-dashboard/github"
	"github.com/jrsteele09/repo-dashboard/internal/errors"
	"github.com/jrsteele09/repo-dashboard/internal/ids"
	"github.com/jrsteele09/repo-dashboard/internal/metrics"
	"github.com/jrsteele09/repo-dashboard/subscriptions"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPageSize = 100
	DefaultMaxPages = 50

	listingRepos   = "repos"
	listingStarred = "starred"
	listingPRs     = "prs"
	listingReviews = "reviews"
)

// AccountAPI is the slice of the GitHub API the engine reads.
type AccountAPI interface {
	User(ctx context.Context, accessToken string) (*github.User, error)
	ListPage(ctx context.Context, accessToken, path string, query url.Values, page, perPage int) ([]json.RawMessage, error)
	SearchIssues(ctx context.Context, accessToken, query string, perPage int) ([]json.RawMessage, error)
}

// Snapshot is the last synchronized state of an account. Items are raw GitHub JSON in
// the order GitHub returned them.
type Snapshot struct {
	Repos          []json.RawMessage
	Starred        []json.RawMessage
	MyPullRequests []json.RawMessage
	ReviewRequests []json.RawMessage
	LastUpdated    string
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		Repos:          []json.RawMessage{},
		Starred:        []json.RawMessage{},
		MyPullRequests: []json.RawMessage{},
		ReviewRequests: []json.RawMessage{},
	}
}

// RunSummary describes one bulk refresh.
type RunSummary struct {
	RunID     string
	Accounts  int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

type Engine struct {
	repo     subscriptions.Repo
	blobs    cache.BlobStore
	api      AccountAPI
	renderer *Renderer
	pageSize int
	maxPages int
	now      func() time.Time
}

type Option func(*Engine)

func WithPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithMaxPages sets the pagination ceiling. Zero or less disables it.
func WithMaxPages(n int) Option {
	return func(e *Engine) {
		e.maxPages = n
	}
}

func WithNowTime(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(repo subscriptions.Repo, blobs cache.BlobStore, api AccountAPI, renderer *Renderer, opts ...Option) (*Engine, error) {
	if repo == nil {
		return nil, fmt.Errorf("[NewEngine] repo is required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("[NewEngine] blob store is required")
	}
	if api == nil {
		return nil, fmt.Errorf("[NewEngine] account api is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("[NewEngine] renderer is required")
	}
	e := &Engine{
		repo:     repo,
		blobs:    blobs,
		api:      api,
		renderer: renderer,
		pageSize: DefaultPageSize,
		maxPages: DefaultMaxPages,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RefreshAccount pulls the four listings for login, stores them, stamps the refresh time
// and renders the page. Upstream listing failures produce partial or empty listings
// rather than an error. If the profile cannot be fetched the listings are kept but no
// page is rendered.
func (e *Engine) RefreshAccount(ctx context.Context, login, accessToken string) error {
	logger := log.Ctx(ctx).With().Str("login", login).Logger()
	snap := emptySnapshot()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap.Repos = e.listAll(gctx, accessToken, listingRepos, "/user/repos", url.Values{"sort": {"pushed"}})
		return nil
	})
	g.Go(func() error {
		snap.Starred = e.listAll(gctx, accessToken, listingStarred, "/user/starred", nil)
		return nil
	})
	g.Go(func() error {
		snap.MyPullRequests = e.search(gctx, accessToken, listingPRs, "is:pr is:open author:"+login)
		return nil
	})
	g.Go(func() error {
		snap.ReviewRequests = e.search(gctx, accessToken, listingReviews, "is:pr is:open review-requested:"+login)
		return nil
	})
	_ = g.Wait()

	writes := map[string][]json.RawMessage{
		ReposKey(login):   snap.Repos,
		StarredKey(login): snap.Starred,
		PRsKey(login):     snap.MyPullRequests,
		ReviewsKey(login): snap.ReviewRequests,
	}
	for key, items := range writes {
		if err := e.putItems(ctx, key, items); err != nil {
			return err
		}
	}

	snap.LastUpdated = subscriptions.Timestamp(e.now())
	if err := e.repo.SetLastUpdated(ctx, login, snap.LastUpdated); err != nil {
		return errors.Wrapf(err, "set last updated for %s", login)
	}

	user, err := e.api.User(ctx, accessToken)
	if err != nil {
		logger.Warn().Err(err).Msg("profile unavailable, skipping render")
		return nil
	}
	page, err := e.renderer.Render(*user, snap, DisplayTime(snap.LastUpdated))
	if err != nil {
		return errors.Wrapf(err, "render dashboard for %s", login)
	}
	if err := e.blobs.Put(ctx, DashboardKey(login), page); err != nil {
		return errors.Wrapf(err, "store dashboard for %s", login)
	}

	logger.Info().
		Int("repos", len(snap.Repos)).
		Int("starred", len(snap.Starred)).
		Int("prs", len(snap.MyPullRequests)).
		Int("reviews", len(snap.ReviewRequests)).
		Msg("dashboard refreshed")
	return nil
}

// RefreshAll refreshes every active account with a stored credential. A failing account
// is logged and counted and the run continues.
func (e *Engine) RefreshAll(ctx context.Context) (*RunSummary, error) {
	start := e.now()
	summary := &RunSummary{RunID: ids.NewAt(start)}
	logger := log.With().Str("run_id", summary.RunID).Logger()
	ctx = logger.WithContext(ctx)
	metrics.RefreshRuns.Inc()

	accounts, err := e.repo.ListRefreshable(ctx)
	if err != nil {
		return summary, errors.Wrapf(err, "list refreshable accounts")
	}
	summary.Accounts = len(accounts)
	logger.Info().Int("accounts", len(accounts)).Msg("refresh run started")

	for _, acct := range accounts {
		if ctx.Err() != nil {
			logger.Warn().Err(ctx.Err()).Msg("refresh run cancelled")
			break
		}
		if err := e.RefreshAccount(ctx, acct.Login, acct.AccessToken); err != nil {
			summary.Failed++
			metrics.AccountRefreshes.WithLabelValues("error").Inc()
			logger.Error().Err(err).Str("login", acct.Login).Msg("account refresh failed")
			continue
		}
		summary.Succeeded++
		metrics.AccountRefreshes.WithLabelValues("ok").Inc()
	}

	summary.Duration = e.now().Sub(start)
	logger.Info().
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("refresh run finished")
	return summary, ctx.Err()
}

// RefreshLogin refreshes one account using its stored credential. Accounts that are
// inactive or have no credential are skipped.
func (e *Engine) RefreshLogin(ctx context.Context, login string) error {
	rec, err := e.repo.Get(ctx, login)
	if err != nil {
		return err
	}
	if !rec.IsActive() || rec.AccessToken == nil || *rec.AccessToken == "" {
		log.Ctx(ctx).Debug().Str("login", login).Msg("account not refreshable")
		return nil
	}
	return e.RefreshAccount(ctx, login, *rec.AccessToken)
}

// Snapshot reads the stored listings for login. An unknown account yields empty listings
// and an empty timestamp.
func (e *Engine) Snapshot(ctx context.Context, login string) (*Snapshot, error) {
	snap := emptySnapshot()
	rec, err := e.repo.Get(ctx, login)
	if errors.Is(err, errors.ErrNotFound) {
		return snap, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.LastUpdated != nil {
		snap.LastUpdated = *rec.LastUpdated
	}

	reads := []struct {
		key string
		dst *[]json.RawMessage
	}{
		{ReposKey(login), &snap.Repos},
		{StarredKey(login), &snap.Starred},
		{PRsKey(login), &snap.MyPullRequests},
		{ReviewsKey(login), &snap.ReviewRequests},
	}
	for _, rd := range reads {
		items, err := e.getItems(ctx, rd.key)
		if err != nil {
			return nil, err
		}
		*rd.dst = items
	}
	return snap, nil
}

// Artifact returns the rendered page stored by the last refresh, or errors.ErrNotFound.
func (e *Engine) Artifact(ctx context.Context, login string) ([]byte, error) {
	return e.blobs.Get(ctx, DashboardKey(login))
}

// Page returns the stored page for user, or renders the current snapshot when no page
// has been stored yet.
func (e *Engine) Page(ctx context.Context, user github.User) ([]byte, error) {
	page, err := e.Artifact(ctx, user.Login)
	if err == nil {
		return page, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	snap, err := e.Snapshot(ctx, user.Login)
	if err != nil {
		return nil, err
	}
	return e.renderer.Render(user, snap, DisplayTime(snap.LastUpdated))
}

func (e *Engine) listAll(ctx context.Context, accessToken, listing, path string, query url.Values) []json.RawMessage {
	fetch := func(ctx context.Context, page int) ([]json.RawMessage, error) {
		return e.api.ListPage(ctx, accessToken, path, query, page, e.pageSize)
	}
	items, reason, err := paginate(ctx, fetch, e.pageSize, e.maxPages)
	metrics.ItemsFetched.WithLabelValues(listing).Add(float64(len(items)))
	if reason != stopShortPage {
		metrics.PartialListings.WithLabelValues(listing, string(reason)).Inc()
		log.Ctx(ctx).Warn().Err(err).
			Str("listing", listing).
			Str("reason", string(reason)).
			Int("items", len(items)).
			Msg("listing stopped early")
	}
	return items
}

func (e *Engine) search(ctx context.Context, accessToken, listing, query string) []json.RawMessage {
	items, err := e.api.SearchIssues(ctx, accessToken, query, e.pageSize)
	if err != nil {
		metrics.PartialListings.WithLabelValues(listing, string(stopError)).Inc()
		log.Ctx(ctx).Warn().Err(err).Str("listing", listing).Msg("search failed")
		return []json.RawMessage{}
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	metrics.ItemsFetched.WithLabelValues(listing).Add(float64(len(items)))
	return items
}

func (e *Engine) putItems(ctx context.Context, key string, items []json.RawMessage) error {
	data, err := json.Marshal(items)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return errors.Wrapf(e.blobs.Put(ctx, key, data), "store %s", key)
}

func (e *Engine) getItems(ctx context.Context, key string) ([]json.RawMessage, error) {
	data, err := e.blobs.Get(ctx, key)
	if errors.Is(err, errors.ErrNotFound) {
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, errors.Wrapf(err, "decode %s", key)
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items, nil
}
