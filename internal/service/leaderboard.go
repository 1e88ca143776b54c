package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sheger-walk-admin/internal/logger"
	"sheger-walk-admin/internal/models"
	"sheger-walk-admin/internal/pipeline"
	"sheger-walk-admin/internal/stats"
	"sheger-walk-admin/internal/validation"
)

// Leaderboard scopes served by the backend.
const (
	ScopeGlobal    = "global"
	ScopeChallenge = "challenge"
	ScopeYearly    = "yearly"
	ScopeMonthly   = "monthly"
	ScopeWeekly    = "weekly"
)

// refreshedScopes are re-warmed by RunLeaderboardRefresh. Challenge boards
// depend on a challenge id and are only fetched on demand.
var refreshedScopes = []string{ScopeGlobal, ScopeYearly, ScopeMonthly, ScopeWeekly}

// Leaderboard is one page of a leaderboard view.
type Leaderboard struct {
	ListResult[models.LeaderboardEntry, stats.LeaderboardStats]
	Scope    string     `json:"scope"`
	ResetsAt *time.Time `json:"resets_at,omitempty"`
}

func leaderboardSource(scope, challengeID string) (source, error) {
	switch scope {
	case ScopeGlobal, ScopeYearly, ScopeMonthly, ScopeWeekly:
		return source{
			resource: "leaderboard:" + scope,
			path:     "/api/leaderboard/" + scope,
			key:      "leaderboard",
		}, nil
	case ScopeChallenge:
		if err := validation.ValidateID(challengeID, "challengeId"); err != nil {
			return source{}, err
		}
		return source{
			resource: "leaderboard:challenge:" + challengeID,
			path:     "/api/leaderboard/challenge/" + challengeID,
			key:      "leaderboard",
		}, nil
	}
	return source{}, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
}

// ListLeaderboard returns a leaderboard ordered by rank. Leaderboards are the
// one view that is always re-sorted, by rank ascending.
func (s *Service) ListLeaderboard(ctx context.Context, scope string, req ListRequest) (Leaderboard, error) {
	scope = strings.ToLower(strings.TrimSpace(scope))
	src, err := leaderboardSource(scope, req.get("challengeId"))
	if err != nil {
		return Leaderboard{}, err
	}

	entries, err := fetchAll[models.LeaderboardEntry](ctx, s, req.ViewID, src, false)
	if err != nil {
		return Leaderboard{}, err
	}

	ranked := pipeline.SortBy(entries, func(a, b models.LeaderboardEntry) bool { return a.Rank < b.Rank })
	filtered := pipeline.Apply(ranked, pipeline.Query[models.LeaderboardEntry]{
		Search: req.Search,
		Fields: func(e models.LeaderboardEntry) []string { return []string{e.User.Name, e.User.Email} },
		Filters: []pipeline.Predicate[models.LeaderboardEntry]{
			pipeline.InSet(req.list("ranks"), func(e models.LeaderboardEntry) (string, bool) {
				return userRank(&e.User)
			}),
			pipeline.IntRange(req.get("stepsRange"), func(e models.LeaderboardEntry) int { return e.StepCount() }),
		},
	})

	return Leaderboard{
		ListResult: newListResult(len(entries), filtered, req, stats.ComputeLeaderboardStats(filtered)),
		Scope:      scope,
		ResetsAt:   NextReset(scope, s.now()),
	}, nil
}

// NextReset returns when a periodic leaderboard rolls over: weeks start on
// Monday, months and years on their first day, in now's location. Global and
// challenge boards never reset.
func NextReset(scope string, now time.Time) *time.Time {
	y, m, d := now.Date()
	loc := now.Location()
	var t time.Time
	switch scope {
	case ScopeWeekly:
		daysUntilMonday := (8 - int(now.Weekday())) % 7
		if daysUntilMonday == 0 {
			daysUntilMonday = 7
		}
		t = time.Date(y, m, d+daysUntilMonday, 0, 0, 0, 0, loc)
	case ScopeMonthly:
		t = time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	case ScopeYearly:
		t = time.Date(y+1, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return nil
	}
	return &t
}

// RunLeaderboardRefresh re-warms the periodic leaderboards every interval
// until ctx is cancelled. It refreshes once immediately.
func (s *Service) RunLeaderboardRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.refreshLeaderboards(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Leaderboard refresher stopped")
			return
		case <-ticker.C:
			s.refreshLeaderboards(ctx)
		}
	}
}

// refreshLeaderboards returns how many scopes were refreshed.
func (s *Service) refreshLeaderboards(ctx context.Context) int {
	ctx, span := s.tracer.StartSpan(ctx, "service.RefreshLeaderboards")
	defer span.End()

	refreshed := 0
	for _, scope := range refreshedScopes {
		if ctx.Err() != nil {
			return refreshed
		}
		src, _ := leaderboardSource(scope, "")
		if _, err := fetchAll[models.LeaderboardEntry](ctx, s, "", src, true); err != nil {
			if ctx.Err() == nil {
				logger.Warning("Leaderboard %s refresh failed: %v", scope, err)
			}
			continue
		}
		refreshed++
	}
	logger.Debug("Refreshed %d leaderboards", refreshed)
	return refreshed
}
