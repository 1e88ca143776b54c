package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"sheger-walk-admin/internal/cache"
	"sheger-walk-admin/internal/database"
	"sheger-walk-admin/internal/events"
	"sheger-walk-admin/internal/features"
	"sheger-walk-admin/internal/logger"
	"sheger-walk-admin/internal/pipeline"
	"sheger-walk-admin/internal/tracing"
	"sheger-walk-admin/internal/upstream"
)

var (
	// ErrConfirmationRequired is returned by deletes issued without confirm.
	ErrConfirmationRequired = errors.New("delete must be confirmed with confirm=true")
	// ErrUnknownScope is returned for a leaderboard scope the backend does not serve.
	ErrUnknownScope = errors.New("unknown leaderboard scope")
	// ErrFeatureDisabled is returned when a gated operation is switched off.
	ErrFeatureDisabled = errors.New("feature is disabled")
	// ErrSuperseded marks a list response discarded for a newer one.
	ErrSuperseded = upstream.ErrSuperseded
)

// UploadLimits caps image uploads in bytes.
type UploadLimits struct {
	ChallengeImage int64
	ProviderLogo   int64
}

// Service provides the dashboard's list views and mutations on top of the
// Sheger Walk API.
type Service struct {
	client   *upstream.Client
	db       *database.DB
	cache    cache.Cache
	ttl      time.Duration
	events   *events.Manager
	features *features.Manager
	seq      *upstream.Sequencer
	limits   UploadLimits
	tracer   *tracing.Tracer
	now      func() time.Time

	// gens counts invalidations per cache key prefix. A fetch writes the
	// cache only if no invalidation touched its resource while it was in
	// flight.
	genMu sync.Mutex
	gens  map[string]uint64
}

// Option configures a Service.
type Option func(*Service)

// WithCache stores fetched collections in c for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.ttl = ttl
	}
}

// WithEvents publishes mutation events on m.
func WithEvents(m *events.Manager) Option {
	return func(s *Service) { s.events = m }
}

// WithFeatures reads feature flags from f.
func WithFeatures(f *features.Manager) Option {
	return func(s *Service) { s.features = f }
}

// WithUploadLimits overrides the default upload ceilings.
func WithUploadLimits(l UploadLimits) Option {
	return func(s *Service) { s.limits = l }
}

// WithTracer records spans for fan-out and mutation work on t.
func WithTracer(t *tracing.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithClock replaces time.Now. Status, winner and window rules all read it.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new service instance. db may be nil, in which case
// the audit log is empty.
func NewService(client *upstream.Client, db *database.DB, opts ...Option) *Service {
	s := &Service{
		client:   client,
		db:       db,
		cache:    cache.NopCache{},
		events:   events.NewManager(false),
		features: features.NewManager(),
		seq:      upstream.NewSequencer(),
		limits:   UploadLimits{ChallengeImage: 5 << 20, ProviderLogo: 2 << 20},
		tracer:   tracing.Noop(),
		now:      time.Now,
		gens:     make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListRequest is the filter state of one list page as sent by the dashboard.
// ViewID identifies the browser view issuing it; a newer request from the
// same view supersedes an older one for the same resource.
type ListRequest struct {
	ViewID    string
	Search    string
	Tab       string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
	Filters   url.Values
}

func (r ListRequest) get(key string) string {
	return strings.TrimSpace(r.Filters.Get(key))
}

// list returns a multi-valued filter sent as key or key[]. Both repeated
// keys and comma-joined values are accepted.
func (r ListRequest) list(key string) []string {
	var out []string
	for _, k := range []string{key, key + "[]"} {
		for _, v := range r.Filters[k] {
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
		}
	}
	return out
}

// narrowed reports whether search, a tab or any filter restricts the list.
func (r ListRequest) narrowed() bool {
	if strings.TrimSpace(r.Search) != "" || !isAll(r.Tab) {
		return true
	}
	for key, values := range r.Filters {
		switch key {
		case "page", "pageSize", "limit", "sortBy", "sortOrder", "search", "tab", "confirm":
			continue
		}
		for _, v := range values {
			if !isAll(v) {
				return true
			}
		}
	}
	return false
}

func isAll(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, pipeline.All)
}

func (r ListRequest) descending() bool {
	return strings.EqualFold(r.SortOrder, "desc")
}

// Empty-state reasons.
const (
	EmptyNoData    = "no_data"
	EmptyNoMatches = "no_matches"
)

// UnknownTotal is reported as UnfilteredTotal when the backend filtered the
// list and did not count the whole collection.
const UnknownTotal = -1

// ListResult is one page of a filtered collection plus the stats of the
// whole filtered collection.
type ListResult[T any, S any] struct {
	pipeline.Page[T]
	Stats S `json:"stats"`
	// UnfilteredTotal counts the collection before search, tab and filters.
	UnfilteredTotal int `json:"unfiltered_total"`
	// EmptyReason tells an empty collection from one the filters emptied.
	EmptyReason string `json:"empty_reason,omitempty"`
	// Mode is "server" when the backend did the filtering and paging.
	Mode string `json:"mode,omitempty"`
}

// CountStats is used by catalogue pages that only show a total.
type CountStats struct {
	Total int `json:"total"`
}

// source names an upstream collection. resource doubles as the cache key
// and the sequencing key.
type source struct {
	resource string
	path     string
	key      string
}

var (
	srcActivities   = source{resource: "activities", path: "/api/admin/activities", key: "activities"}
	srcUsers        = source{resource: "users", path: "/api/users", key: "users"}
	srcChallenges   = source{resource: "challenges", path: "/api/challenges", key: "challenges"}
	srcProviders    = source{resource: "providers", path: "/api/providers", key: "providers"}
	srcRewards      = source{resource: "rewards", path: "/api/rewards", key: "rewards"}
	srcRewardTypes  = source{resource: "reward_types", path: "/api/reward-types", key: "rewardTypes"}
	srcTransactions = source{resource: "transactions", path: "/api/admin/transactions", key: "transactions"}
	srcWithdrawals  = source{resource: "withdrawals", path: "/api/admin/withdrawals", key: "withdrawals"}
)

func (s *Service) cacheEnabled() bool {
	return s.features.IsEnabled(features.FeatureCacheEnabled)
}

// begin registers a fetch with the sequencer when the caller identified its
// view. The returned stale func reports whether a newer fetch took over.
func (s *Service) begin(ctx context.Context, viewID, resource string) (context.Context, func(), func() bool) {
	if viewID == "" {
		return ctx, func() {}, func() bool { return false }
	}
	ctx, ticket := s.seq.Begin(ctx, viewID+":"+resource)
	return ctx, ticket.Done, ticket.Stale
}

func (s *Service) generation(resource string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generationLocked(resource)
}

func (s *Service) generationLocked(resource string) uint64 {
	var n uint64
	for prefix, g := range s.gens {
		if strings.HasPrefix(resource, prefix) {
			n += g
		}
	}
	return n
}

// invalidate drops every cached collection under prefix and fails the cache
// write of any fetch for it still in flight.
func (s *Service) invalidate(ctx context.Context, prefix string) error {
	s.genMu.Lock()
	defer s.genMu.Unlock()

	s.gens[prefix]++
	return s.cache.DeletePrefix(ctx, cache.Key(prefix))
}

// store caches items unless resource was invalidated after gen was read.
func (s *Service) store(ctx context.Context, resource string, gen uint64, items any) {
	s.genMu.Lock()
	defer s.genMu.Unlock()

	key := cache.Key(resource)
	if s.generationLocked(resource) != gen {
		logger.Debug("Dropping %s read that started before a mutation", key)
		return
	}
	if err := cache.SetJSON(ctx, s.cache, key, items, s.ttl); err != nil {
		logger.Warning("cache write %s failed: %v", key, err)
	}
}

// fetchAll returns the full collection for src, from cache unless fresh.
func fetchAll[T any](ctx context.Context, s *Service, viewID string, src source, fresh bool) ([]T, error) {
	ctx, done, stale := s.begin(ctx, viewID, src.resource)
	defer done()

	if !fresh && s.cacheEnabled() {
		key := cache.Key(src.resource)
		var cached []T
		if err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, cache.ErrNotFound) {
			logger.Warning("cache read %s failed: %v", key, err)
		}
	}

	gen := s.generation(src.resource)
	res := upstream.Get[[]T](ctx, s.client, src.path, src.key, nil)
	if stale() {
		return nil, ErrSuperseded
	}
	if !res.OK {
		return nil, res.Err()
	}

	items := res.Value
	if items == nil {
		items = []T{}
	}
	if s.cacheEnabled() {
		s.store(ctx, src.resource, gen, items)
	}
	return items, nil
}

// sortItems applies the requested sort when sortBy names a known key and
// otherwise keeps the backend's order.
func sortItems[T any](items []T, req ListRequest, keys map[string]func(a, b T) bool) []T {
	less, ok := keys[req.SortBy]
	if !ok {
		return items
	}
	if req.descending() {
		return pipeline.SortBy(items, func(a, b T) bool { return less(b, a) })
	}
	return pipeline.SortBy(items, less)
}

func newListResult[T any, S any](unfiltered int, filtered []T, req ListRequest, st S) ListResult[T, S] {
	return ListResult[T, S]{
		Page:            pipeline.Paginate(filtered, req.Page, req.PageSize),
		Stats:           st,
		UnfilteredTotal: unfiltered,
		EmptyReason:     emptyReason(unfiltered, len(filtered)),
	}
}

func emptyReason(unfiltered, filtered int) string {
	switch {
	case filtered > 0:
		return ""
	case unfiltered == 0:
		return EmptyNoData
	default:
		return EmptyNoMatches
	}
}

func mapPage[A any, B any](p pipeline.Page[A], f func(A) B) pipeline.Page[B] {
	items := make([]B, len(p.Items))
	for i, item := range p.Items {
		items[i] = f(item)
	}
	return pipeline.Page[B]{
		Items:      items,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalItems: p.TotalItems,
		TotalPages: p.TotalPages,
		StartIndex: p.StartIndex,
		EndIndex:   p.EndIndex,
		Window:     p.Window,
	}
}

// Features exposes the flag manager to the HTTP layer.
func (s *Service) Features() *features.Manager {
	return s.features
}
