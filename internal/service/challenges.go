package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sheger-walk-admin/internal/challenges"
	"sheger-walk-admin/internal/models"
	"sheger-walk-admin/internal/pipeline"
	"sheger-walk-admin/internal/stats"
	"sheger-walk-admin/internal/upstream"
	"sheger-walk-admin/internal/validation"
)

// ChallengeView is a challenge with everything derived from now.
type ChallengeView struct {
	models.Challenge
	Status           challenges.Status      `json:"status"`
	Winner           *challenges.WinnerInfo `json:"winner,omitempty"`
	HasWinnerBadge   bool                   `json:"has_winner_badge"`
	CountdownSeconds int64                  `json:"countdown_seconds"`
}

// ChallengeList is one page of challenges with the overview of all matches.
type ChallengeList = ListResult[ChallengeView, stats.ChallengeOverview]

// ChallengeDetail backs the challenge detail panel.
type ChallengeDetail struct {
	ChallengeView
	RankedParticipants []models.Participant       `json:"ranked_participants"`
	Stats              stats.ChallengeStats       `json:"stats"`
	Progress           stats.ProgressDistribution `json:"progress"`
	DistributedRewards decimal.Decimal            `json:"distributed_rewards"`
}

func newChallengeView(c models.Challenge, now time.Time) ChallengeView {
	winner := challenges.Winner(c, now)
	return ChallengeView{
		Challenge:        c,
		Status:           challenges.DeriveStatus(c, now),
		Winner:           winner,
		HasWinnerBadge:   winner.HasBadge(),
		CountdownSeconds: int64(challenges.Countdown(c, now) / time.Second),
	}
}

func statusTabs(now time.Time) pipeline.Tabs[models.Challenge] {
	tab := func(st challenges.Status) pipeline.Predicate[models.Challenge] {
		return func(c models.Challenge) bool { return challenges.DeriveStatus(c, now) == st }
	}
	return pipeline.Tabs[models.Challenge]{
		string(challenges.StatusActive):    tab(challenges.StatusActive),
		string(challenges.StatusUpcoming):  tab(challenges.StatusUpcoming),
		string(challenges.StatusCompleted): tab(challenges.StatusCompleted),
	}
}

var challengeSorts = map[string]func(a, b models.Challenge) bool{
	"name":         func(a, b models.Challenge) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) },
	"startDate":    func(a, b models.Challenge) bool { return a.StartDate.Before(b.StartDate) },
	"endDate":      func(a, b models.Challenge) bool { return a.EndDate.Before(b.EndDate) },
	"participants": func(a, b models.Challenge) bool { return a.Participants < b.Participants },
	"joiningCost":  func(a, b models.Challenge) bool { return a.JoiningCost < b.JoiningCost },
}

// ListChallenges filters challenges. The status tab and the status filter
// are independent predicates and are ANDed.
func (s *Service) ListChallenges(ctx context.Context, req ListRequest) (ChallengeList, error) {
	items, err := fetchAll[models.Challenge](ctx, s, req.ViewID, srcChallenges, false)
	if err != nil {
		return ChallengeList{}, err
	}
	now := s.now()

	filtered := pipeline.Apply(items, pipeline.Query[models.Challenge]{
		Search: req.Search,
		Fields: func(c models.Challenge) []string {
			fields := []string{c.Name, c.Description}
			if c.Provider != nil {
				fields = append(fields, c.Provider.Name)
			}
			return fields
		},
		Tab:  req.Tab,
		Tabs: statusTabs(now),
		Filters: []pipeline.Predicate[models.Challenge]{
			pipeline.InSet(req.list("status"), func(c models.Challenge) (string, bool) {
				return string(challenges.DeriveStatus(c, now)), true
			}),
			pipeline.Equals(req.get("providerId"), func(c models.Challenge) (string, bool) {
				if c.Provider == nil {
					return "", false
				}
				return nonEmpty(c.Provider.ID)
			}),
			pipeline.FloatRange(req.get("costRange"), func(c models.Challenge) float64 { return c.JoiningCost }),
			pipeline.IntRange(req.get("stepsRange"), func(c models.Challenge) int { return c.StepsRequired }),
			pipeline.Within(pipeline.ParseDateWindow(req.get("startDate"), req.get("endDate")),
				func(c models.Challenge) time.Time { return c.StartDate }),
		},
	})
	filtered = sortItems(filtered, req, challengeSorts)

	page := pipeline.Paginate(filtered, req.Page, req.PageSize)
	return ChallengeList{
		Page:            mapPage(page, func(c models.Challenge) ChallengeView { return newChallengeView(c, now) }),
		Stats:           stats.ComputeChallengeOverview(filtered, now),
		UnfilteredTotal: len(items),
		EmptyReason:     emptyReason(len(items), len(filtered)),
	}, nil
}

// GetChallenge loads one challenge for the detail panel. It is always read
// fresh from the backend.
func (s *Service) GetChallenge(ctx context.Context, viewID, id string) (ChallengeDetail, error) {
	if err := validation.ValidateID(id, "id"); err != nil {
		return ChallengeDetail{}, err
	}

	ctx, done, stale := s.begin(ctx, viewID, "challenge:"+id)
	defer done()

	res := upstream.Get[models.Challenge](ctx, s.client, srcChallenges.path+"/"+id, "challenge", nil)
	if stale() {
		return ChallengeDetail{}, ErrSuperseded
	}
	if !res.OK {
		return ChallengeDetail{}, res.Err()
	}

	return buildChallengeDetail(res.Value, s.now()), nil
}

func buildChallengeDetail(c models.Challenge, now time.Time) ChallengeDetail {
	ranked := pipeline.SortBy(c.ParticipantsList, func(a, b models.Participant) bool { return a.Steps > b.Steps })
	for i := range ranked {
		if ranked[i].Rank == 0 {
			ranked[i].Rank = i + 1
		}
	}

	overview := stats.ComputeChallengeOverview([]models.Challenge{c}, now)
	return ChallengeDetail{
		ChallengeView:      newChallengeView(c, now),
		RankedParticipants: ranked,
		Stats:              stats.ComputeChallengeStats(c.ParticipantsList),
		Progress:           overview.Progress,
		DistributedRewards: overview.DistributedRewards,
	}
}
