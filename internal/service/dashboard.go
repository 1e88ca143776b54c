package service

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"sheger-walk-admin/internal/database"
	"sheger-walk-admin/internal/models"
	"sheger-walk-admin/internal/pipeline"
	"sheger-walk-admin/internal/stats"
)

// dashboardFanOut bounds concurrent upstream calls for the overview.
const dashboardFanOut = 3

// recentCount is how many rows the overview's recent/top lists carry.
const recentCount = 5

// Dashboard is the landing page overview. A section whose fetch failed is
// nil and its error is reported under Errors, keyed by section name.
type Dashboard struct {
	Users            *stats.UserStats         `json:"users,omitempty"`
	Activities       *stats.ActivityStats     `json:"activities,omitempty"`
	Challenges       *stats.ChallengeOverview `json:"challenges,omitempty"`
	Withdrawals      *stats.WithdrawalStats   `json:"withdrawals,omitempty"`
	RecentActivities []models.WalkingActivity `json:"recent_activities"`
	TopChallenges    []ChallengeView          `json:"top_challenges"`
	Errors           map[string]string        `json:"errors,omitempty"`
	GeneratedAt      time.Time                `json:"generated_at"`
}

// Dashboard builds the overview from the cached collections.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	ctx, span := s.tracer.StartSpan(ctx, "service.Dashboard")
	defer span.End()

	now := s.now()
	out := Dashboard{
		RecentActivities: []models.WalkingActivity{},
		TopChallenges:    []ChallengeView{},
		GeneratedAt:      now,
	}

	var mu sync.Mutex
	fail := func(section string, err error) {
		mu.Lock()
		defer mu.Unlock()
		span.RecordError(err, trace.WithAttributes(attribute.String("section", section)))
		if out.Errors == nil {
			out.Errors = make(map[string]string)
		}
		out.Errors[section] = err.Error()
	}

	var g errgroup.Group
	g.SetLimit(dashboardFanOut)

	g.Go(func() error {
		users, err := fetchAll[models.User](ctx, s, "", srcUsers, false)
		if err != nil {
			fail("users", err)
			return nil
		}
		st := stats.ComputeUserStats(users, now)
		mu.Lock()
		out.Users = &st
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		activities, err := fetchAll[models.WalkingActivity](ctx, s, "", srcActivities, false)
		if err != nil {
			fail("activities", err)
			return nil
		}
		st := stats.ComputeActivityStats(activities)
		recent := pipeline.SortBy(activities, func(a, b models.WalkingActivity) bool {
			return a.StartTime.After(b.StartTime)
		})
		if len(recent) > recentCount {
			recent = recent[:recentCount]
		}
		mu.Lock()
		out.Activities = &st
		out.RecentActivities = recent
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		cs, err := fetchAll[models.Challenge](ctx, s, "", srcChallenges, false)
		if err != nil {
			fail("challenges", err)
			return nil
		}
		st := stats.ComputeChallengeOverview(cs, now)
		top := stats.TopN(cs, recentCount, func(c models.Challenge) float64 { return float64(c.Participants) })
		views := make([]ChallengeView, len(top))
		for i, c := range top {
			views[i] = newChallengeView(c, now)
		}
		mu.Lock()
		out.Challenges = &st
		out.TopChallenges = views
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		ws, err := fetchAll[models.Withdrawal](ctx, s, "", srcWithdrawals, false)
		if err != nil {
			fail("withdrawals", err)
			return nil
		}
		st := stats.ComputeWithdrawalStats(ws)
		mu.Lock()
		out.Withdrawals = &st
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	if err := ctx.Err(); err != nil {
		return Dashboard{}, err
	}
	return out, nil
}

// ListAudit returns recorded admin actions, newest first.
func (s *Service) ListAudit(ctx context.Context, resource string, limit int) ([]models.AuditEntry, error) {
	if s.db == nil {
		return []models.AuditEntry{}, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.db.ListAudit(ctx, database.AuditFilter{Resource: resource, Limit: limit})
}
