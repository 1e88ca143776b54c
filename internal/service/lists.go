package service

import (
	"context"
	"math"
	"strings"
	"time"

	"sheger-walk-admin/internal/features"
	"sheger-walk-admin/internal/models"
	"sheger-walk-admin/internal/pipeline"
	"sheger-walk-admin/internal/stats"
	"sheger-walk-admin/internal/upstream"
)

// HighStepsThreshold is the lower bound of the "high-steps" activity tab.
const HighStepsThreshold = 10000

type (
	ActivityList    = ListResult[models.WalkingActivity, stats.ActivityStats]
	UserList        = ListResult[models.User, stats.UserStats]
	ProviderList    = ListResult[models.ChallengeProvider, CountStats]
	RewardList      = ListResult[models.Reward, stats.RewardStats]
	RewardTypeList  = ListResult[models.RewardType, CountStats]
	TransactionList = ListResult[models.Transaction, stats.TransactionStats]
	WithdrawalList  = ListResult[models.Withdrawal, stats.WithdrawalStats]
)

func userRank(u *models.UserSummary) (string, bool) {
	if u == nil || u.Rank == nil {
		return "", false
	}
	return string(*u.Rank), true
}

func nonEmpty(v string) (string, bool) {
	return v, v != ""
}

var activityTabs = pipeline.Tabs[models.WalkingActivity]{
	"walking":    func(a models.WalkingActivity) bool { return a.ActivityType == models.ActivityWalking },
	"running":    func(a models.WalkingActivity) bool { return a.ActivityType == models.ActivityRunning },
	"jogging":    func(a models.WalkingActivity) bool { return a.ActivityType == models.ActivityJogging },
	"hiking":     func(a models.WalkingActivity) bool { return a.ActivityType == models.ActivityHiking },
	"high-steps": func(a models.WalkingActivity) bool { return a.Steps >= HighStepsThreshold },
}

var activitySorts = map[string]func(a, b models.WalkingActivity) bool{
	"steps":     func(a, b models.WalkingActivity) bool { return a.Steps < b.Steps },
	"distance":  func(a, b models.WalkingActivity) bool { return a.Distance < b.Distance },
	"duration":  func(a, b models.WalkingActivity) bool { return a.Duration < b.Duration },
	"calories":  func(a, b models.WalkingActivity) bool { return a.Calories < b.Calories },
	"startTime": func(a, b models.WalkingActivity) bool { return a.StartTime.Before(b.StartTime) },
}

// ListActivities filters the activity log. With server-side filtering
// enabled the backend pages the data and stats cover the returned page only.
func (s *Service) ListActivities(ctx context.Context, req ListRequest) (ActivityList, error) {
	if s.features.IsEnabled(features.FeatureServerSideFiltering) {
		return s.listActivitiesUpstream(ctx, req)
	}

	items, err := fetchAll[models.WalkingActivity](ctx, s, req.ViewID, srcActivities, false)
	if err != nil {
		return ActivityList{}, err
	}

	filtered := pipeline.Apply(items, pipeline.Query[models.WalkingActivity]{
		Search: req.Search,
		Fields: func(a models.WalkingActivity) []string {
			fields := []string{a.ID, string(a.ActivityType)}
			if a.User != nil {
				fields = append(fields, a.User.Name, a.User.Email)
			}
			return fields
		},
		Tab:  req.Tab,
		Tabs: activityTabs,
		Filters: []pipeline.Predicate[models.WalkingActivity]{
			pipeline.Equals(req.get("activityType"), func(a models.WalkingActivity) (string, bool) {
				return nonEmpty(string(a.ActivityType))
			}),
			pipeline.IntRange(req.get("stepsRange"), func(a models.WalkingActivity) int { return a.Steps }),
			pipeline.IntRange(req.get("durationRange"), func(a models.WalkingActivity) int { return a.Duration }),
			pipeline.Within(pipeline.ParseDateWindow(req.get("startDate"), req.get("endDate")),
				func(a models.WalkingActivity) time.Time { return a.StartTime }),
			pipeline.InSet(req.list("userRanks"), func(a models.WalkingActivity) (string, bool) {
				return userRank(a.User)
			}),
		},
	})
	filtered = sortItems(filtered, req, activitySorts)

	return newListResult(len(items), filtered, req, stats.ComputeActivityStats(filtered)), nil
}

type activityPage struct {
	Activities []models.WalkingActivity `json:"activities"`
	Pagination struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
		Total int `json:"total"`
	} `json:"pagination"`
}

func (s *Service) listActivitiesUpstream(ctx context.Context, req ListRequest) (ActivityList, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = pipeline.DefaultPageSize
	}
	page := req.Page
	if page < 1 {
		page = 1
	}

	params := upstream.Params{
		"page":         page,
		"limit":        pageSize,
		"search":       req.Search,
		"sortBy":       req.SortBy,
		"sortOrder":    req.SortOrder,
		"activityType": req.get("activityType"),
		"userRanks[]":  req.list("userRanks"),
		"startDate":    req.get("startDate"),
		"endDate":      req.get("endDate"),
	}
	rangeParams(params, "steps", req.get("stepsRange"))
	rangeParams(params, "duration", req.get("durationRange"))

	ctx, done, stale := s.begin(ctx, req.ViewID, srcActivities.resource)
	defer done()

	res := upstream.Get[activityPage](ctx, s.client, srcActivities.path, "", params)
	if stale() {
		return ActivityList{}, ErrSuperseded
	}
	if !res.OK {
		return ActivityList{}, res.Err()
	}

	items := res.Value.Activities
	if items == nil {
		items = []models.WalkingActivity{}
	}
	total := res.Value.Pagination.Total
	if total < len(items) {
		total = len(items)
	}
	totalPages := pipeline.TotalPages(total, pageSize)
	page = pipeline.ClampPage(page, totalPages)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}

	// The backend reports only the filtered total.
	unfiltered, reason := total, emptyReason(total, total)
	if req.narrowed() {
		unfiltered = UnknownTotal
		if total == 0 {
			reason = EmptyNoMatches
		}
	}

	return ActivityList{
		Page: pipeline.Page[models.WalkingActivity]{
			Items:      items,
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: totalPages,
			StartIndex: start,
			EndIndex:   start + len(items),
			Window:     pipeline.PageWindow(page, totalPages),
		},
		Stats:           stats.ComputeActivityStats(items),
		UnfilteredTotal: unfiltered,
		EmptyReason:     reason,
		Mode:            "server",
	}, nil
}

// rangeParams turns a range encoding into <name>Min / <name>Max params.
func rangeParams(params upstream.Params, name, raw string) {
	r := pipeline.ParseRange(raw)
	if !r.Active {
		return
	}
	params[name+"Min"] = r.Min
	if r.HasMax {
		params[name+"Max"] = r.Max
	}
}

var userTabs = pipeline.Tabs[models.User]{
	"complete":   func(u models.User) bool { return u.IsProfileCompleted },
	"incomplete": func(u models.User) bool { return !u.IsProfileCompleted },
}

var userSorts = map[string]func(a, b models.User) bool{
	"name":          func(a, b models.User) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) },
	"walletBalance": func(a, b models.User) bool { return a.WalletBalance < b.WalletBalance },
	"createdAt":     func(a, b models.User) bool { return a.CreatedAt.Before(b.CreatedAt) },
}

// ListUsers filters registered users.
func (s *Service) ListUsers(ctx context.Context, req ListRequest) (UserList, error) {
	items, err := fetchAll[models.User](ctx, s, req.ViewID, srcUsers, false)
	if err != nil {
		return UserList{}, err
	}
	now := s.now()

	joinedAt := func(u models.User) time.Time { return u.CreatedAt }
	filtered := pipeline.Apply(items, pipeline.Query[models.User]{
		Search: req.Search,
		Fields: func(u models.User) []string { return []string{u.Name, u.Email, u.Phone} },
		Tab:    req.Tab,
		Tabs:   userTabs,
		Filters: []pipeline.Predicate[models.User]{
			pipeline.InSet(req.list("ranks"), func(u models.User) (string, bool) {
				if u.Rank == nil {
					return "", false
				}
				return string(*u.Rank), true
			}),
			userTabs.Predicate(req.get("profile")),
			pipeline.FloatRange(req.get("balanceRange"), func(u models.User) float64 { return u.WalletBalance }),
			pipeline.Within(pipeline.PresetWindow(req.get("joined"), now), joinedAt),
			pipeline.Within(pipeline.ParseDateWindow(req.get("joinedFrom"), req.get("joinedTo")), joinedAt),
		},
	})
	filtered = sortItems(filtered, req, userSorts)

	return newListResult(len(items), filtered, req, stats.ComputeUserStats(filtered, now)), nil
}

// ListProviders filters challenge providers.
func (s *Service) ListProviders(ctx context.Context, req ListRequest) (ProviderList, error) {
	items, err := fetchAll[models.ChallengeProvider](ctx, s, req.ViewID, srcProviders, false)
	if err != nil {
		return ProviderList{}, err
	}

	filtered := pipeline.Apply(items, pipeline.Query[models.ChallengeProvider]{
		Search: req.Search,
		Fields: func(p models.ChallengeProvider) []string {
			return []string{p.Name, p.Address, p.Phone, p.Description}
		},
	})
	filtered = sortItems(filtered, req, map[string]func(a, b models.ChallengeProvider) bool{
		"name": func(a, b models.ChallengeProvider) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) },
	})

	return newListResult(len(items), filtered, req, CountStats{Total: len(filtered)}), nil
}

// ListRewards filters the reward catalogue.
func (s *Service) ListRewards(ctx context.Context, req ListRequest) (RewardList, error) {
	items, err := fetchAll[models.Reward](ctx, s, req.ViewID, srcRewards, false)
	if err != nil {
		return RewardList{}, err
	}

	filtered := pipeline.Apply(items, pipeline.Query[models.Reward]{
		Search: req.Search,
		Fields: func(r models.Reward) []string { return []string{r.Name, r.Type} },
		Filters: []pipeline.Predicate[models.Reward]{
			pipeline.Equals(req.get("type"), func(r models.Reward) (string, bool) { return nonEmpty(r.Type) }),
			pipeline.FloatRange(req.get("valueRange"), func(r models.Reward) float64 { return r.Value }),
		},
	})
	filtered = sortItems(filtered, req, map[string]func(a, b models.Reward) bool{
		"name":  func(a, b models.Reward) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) },
		"value": func(a, b models.Reward) bool { return a.Value < b.Value },
	})

	return newListResult(len(items), filtered, req, stats.ComputeRewardStats(filtered)), nil
}

// ListRewardTypes filters reward categories.
func (s *Service) ListRewardTypes(ctx context.Context, req ListRequest) (RewardTypeList, error) {
	items, err := fetchAll[models.RewardType](ctx, s, req.ViewID, srcRewardTypes, false)
	if err != nil {
		return RewardTypeList{}, err
	}

	filtered := pipeline.Apply(items, pipeline.Query[models.RewardType]{
		Search: req.Search,
		Fields: func(rt models.RewardType) []string { return []string{rt.Name, rt.Description} },
	})

	return newListResult(len(items), filtered, req, CountStats{Total: len(filtered)}), nil
}

var transactionTabs = pipeline.Tabs[models.Transaction]{
	"credit": func(t models.Transaction) bool { return t.Amount >= 0 },
	"debit":  func(t models.Transaction) bool { return t.Amount < 0 },
}

// ListTransactions filters wallet movements. amountRange applies to the
// magnitude so one range covers credits and debits.
func (s *Service) ListTransactions(ctx context.Context, req ListRequest) (TransactionList, error) {
	items, err := fetchAll[models.Transaction](ctx, s, req.ViewID, srcTransactions, false)
	if err != nil {
		return TransactionList{}, err
	}

	filtered := pipeline.Apply(items, pipeline.Query[models.Transaction]{
		Search: req.Search,
		Fields: func(t models.Transaction) []string {
			return []string{t.User.Name, t.User.Email, t.TransactionType, t.AmountType}
		},
		Tab:  req.Tab,
		Tabs: transactionTabs,
		Filters: []pipeline.Predicate[models.Transaction]{
			pipeline.Equals(req.get("transactionType"), func(t models.Transaction) (string, bool) {
				return nonEmpty(t.TransactionType)
			}),
			pipeline.Equals(req.get("amountType"), func(t models.Transaction) (string, bool) {
				return nonEmpty(t.AmountType)
			}),
			pipeline.FloatRange(req.get("amountRange"), func(t models.Transaction) float64 { return math.Abs(t.Amount) }),
			pipeline.Within(pipeline.ParseDateWindow(req.get("startDate"), req.get("endDate")),
				func(t models.Transaction) time.Time { return t.CreatedAt }),
		},
	})
	filtered = sortItems(filtered, req, map[string]func(a, b models.Transaction) bool{
		"amount":    func(a, b models.Transaction) bool { return a.Amount < b.Amount },
		"createdAt": func(a, b models.Transaction) bool { return a.CreatedAt.Before(b.CreatedAt) },
	})

	return newListResult(len(items), filtered, req, stats.ComputeTransactionStats(filtered)), nil
}

var withdrawalTabs = pipeline.Tabs[models.Withdrawal]{
	"pending":  func(w models.Withdrawal) bool { return w.Status == models.WithdrawalPending },
	"approved": func(w models.Withdrawal) bool { return w.Status == models.WithdrawalApproved },
	"rejected": func(w models.Withdrawal) bool { return w.Status == models.WithdrawalRejected },
}

// ListWithdrawals filters the withdrawal review queue.
func (s *Service) ListWithdrawals(ctx context.Context, req ListRequest) (WithdrawalList, error) {
	items, err := fetchAll[models.Withdrawal](ctx, s, req.ViewID, srcWithdrawals, false)
	if err != nil {
		return WithdrawalList{}, err
	}

	filtered := pipeline.Apply(items, pipeline.Query[models.Withdrawal]{
		Search: req.Search,
		Fields: func(w models.Withdrawal) []string {
			return []string{w.User.Name, w.User.Email, w.AccountNumber, w.Method}
		},
		Tab:  req.Tab,
		Tabs: withdrawalTabs,
		Filters: []pipeline.Predicate[models.Withdrawal]{
			pipeline.Equals(req.get("method"), func(w models.Withdrawal) (string, bool) { return nonEmpty(w.Method) }),
			pipeline.FloatRange(req.get("amountRange"), func(w models.Withdrawal) float64 { return w.Amount }),
			pipeline.Within(pipeline.ParseDateWindow(req.get("startDate"), req.get("endDate")),
				func(w models.Withdrawal) time.Time { return w.CreatedAt }),
		},
	})
	filtered = sortItems(filtered, req, map[string]func(a, b models.Withdrawal) bool{
		"amount":    func(a, b models.Withdrawal) bool { return a.Amount < b.Amount },
		"createdAt": func(a, b models.Withdrawal) bool { return a.CreatedAt.Before(b.CreatedAt) },
	})

	return newListResult(len(items), filtered, req, stats.ComputeWithdrawalStats(filtered)), nil
}
