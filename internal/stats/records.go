package stats

import (
	"time"

	"github.com/shopspring/decimal"

	"sheger-walk-admin/internal/challenges"
	"sheger-walk-admin/internal/models"
)

// ActivityStats summarises the activities page.
type ActivityStats struct {
	TotalActivities int      `json:"total_activities"`
	TotalSteps      int      `json:"total_steps"`
	TotalDistance   float64  `json:"total_distance"`
	TotalCalories   int      `json:"total_calories"`
	AverageSteps    float64  `json:"average_steps"`
	AverageDuration float64  `json:"average_duration"`
	MostUsedType    string   `json:"most_used_type"`
	TypeBreakdown   []Slice  `json:"type_breakdown"`
	DailySteps      []Bucket `json:"daily_steps"`
}

// ComputeActivityStats aggregates activities.
func ComputeActivityStats(items []models.WalkingActivity) ActivityStats {
	steps := SumInt(items, func(a models.WalkingActivity) int { return a.Steps })
	duration := SumInt(items, func(a models.WalkingActivity) int { return a.Duration })
	types := Breakdown(items, func(a models.WalkingActivity) string { return string(a.ActivityType) })

	return ActivityStats{
		TotalActivities: len(items),
		TotalSteps:      steps,
		TotalDistance:   Sum(items, func(a models.WalkingActivity) float64 { return a.Distance }),
		TotalCalories:   SumInt(items, func(a models.WalkingActivity) int { return a.Calories }),
		AverageSteps:    Average(float64(steps), len(items)),
		AverageDuration: Average(float64(duration), len(items)),
		MostUsedType:    MostCommon(types),
		TypeBreakdown:   types,
		DailySteps: BucketByDay(items,
			func(a models.WalkingActivity) time.Time { return a.StartTime },
			func(a models.WalkingActivity) float64 { return float64(a.Steps) }),
	}
}

// UserStats summarises the users page.
type UserStats struct {
	TotalUsers        int             `json:"total_users"`
	CompletedProfiles int             `json:"completed_profiles"`
	CompletionRate    float64         `json:"completion_rate"`
	TotalBalance      decimal.Decimal `json:"total_balance"`
	AverageBalance    decimal.Decimal `json:"average_balance"`
	RankBreakdown     []Slice         `json:"rank_breakdown"`
	NewUsers          int             `json:"new_users"`
	Signups           []Bucket        `json:"signups"`
}

// NewUserWindow is how far back a user still counts as new.
const NewUserWindow = 30 * 24 * time.Hour

// ComputeUserStats aggregates users. Users without a rank are reported under
// "UNRANKED".
func ComputeUserStats(users []models.User, now time.Time) UserStats {
	total := decimal.Zero
	completed, fresh := 0, 0
	for _, u := range users {
		total = total.Add(decimal.NewFromFloat(u.WalletBalance))
		if u.IsProfileCompleted {
			completed++
		}
		if !u.CreatedAt.IsZero() && now.Sub(u.CreatedAt) <= NewUserWindow && !u.CreatedAt.After(now) {
			fresh++
		}
	}

	avg := decimal.Zero
	if len(users) > 0 {
		avg = total.Div(decimal.NewFromInt(int64(len(users)))).Round(2)
	}

	return UserStats{
		TotalUsers:        len(users),
		CompletedProfiles: completed,
		CompletionRate:    Percent(completed, len(users)),
		TotalBalance:      total,
		AverageBalance:    avg,
		RankBreakdown: Breakdown(users, func(u models.User) string {
			if u.Rank == nil {
				return "UNRANKED"
			}
			return string(*u.Rank)
		}),
		NewUsers: fresh,
		Signups:  BucketByDay(users, func(u models.User) time.Time { return u.CreatedAt }, nil),
	}
}

// ChallengeStats summarises the participants of one challenge.
type ChallengeStats struct {
	TotalParticipants     int     `json:"total_participants"`
	TotalSteps            int     `json:"total_steps"`
	AverageSteps          float64 `json:"average_steps"`
	TopPerformer          string  `json:"top_performer"`
	CompletedParticipants int     `json:"completed_participants"`
}

// ComputeChallengeStats aggregates a challenge's participant list.
func ComputeChallengeStats(participants []models.Participant) ChallengeStats {
	steps := SumInt(participants, func(p models.Participant) int { return p.Steps })
	top := ""
	if best := TopN(participants, 1, func(p models.Participant) float64 { return float64(p.Steps) }); len(best) == 1 {
		top = best[0].UserName
	}
	completed := 0
	for _, p := range participants {
		if p.Progress >= 100 {
			completed++
		}
	}
	return ChallengeStats{
		TotalParticipants:     len(participants),
		TotalSteps:            steps,
		AverageSteps:          Average(float64(steps), len(participants)),
		TopPerformer:          top,
		CompletedParticipants: completed,
	}
}

// ProgressDistribution counts participants per completion bucket.
type ProgressDistribution struct {
	Completed  int `json:"completed"`
	InProgress int `json:"in_progress"`
	NotStarted int `json:"not_started"`
}

// ChallengeOverview summarises the challenges page.
//
// PotentialRewards multiplies each reward by every participant, while
// DistributedRewards only counts participants who completed. Both are
// reported because the dashboard shows both figures in different places.
type ChallengeOverview struct {
	Total              int                  `json:"total"`
	Active             int                  `json:"active"`
	Upcoming           int                  `json:"upcoming"`
	Completed          int                  `json:"completed"`
	StatusBreakdown    []Slice              `json:"status_breakdown"`
	TotalParticipants  int                  `json:"total_participants"`
	AverageJoiningCost float64              `json:"average_joining_cost"`
	PotentialRewards   decimal.Decimal      `json:"potential_rewards"`
	DistributedRewards decimal.Decimal      `json:"distributed_rewards"`
	Progress           ProgressDistribution `json:"progress"`
}

// ComputeChallengeOverview aggregates challenges as of now.
func ComputeChallengeOverview(cs []models.Challenge, now time.Time) ChallengeOverview {
	out := ChallengeOverview{
		Total:              len(cs),
		PotentialRewards:   decimal.Zero,
		DistributedRewards: decimal.Zero,
	}
	for _, c := range cs {
		switch challenges.DeriveStatus(c, now) {
		case challenges.StatusActive:
			out.Active++
		case challenges.StatusUpcoming:
			out.Upcoming++
		case challenges.StatusCompleted:
			out.Completed++
		}
		out.TotalParticipants += c.Participants

		value := decimal.NewFromFloat(c.Reward.Value)
		out.PotentialRewards = out.PotentialRewards.Add(value.Mul(decimal.NewFromInt(int64(c.Participants))))
		out.DistributedRewards = out.DistributedRewards.Add(value.Mul(decimal.NewFromInt(int64(challenges.CompletedParticipants(c)))))

		for _, p := range c.ParticipantsList {
			switch challenges.ClassifyParticipant(c, p, now) {
			case challenges.ProgressCompleted:
				out.Progress.Completed++
			case challenges.ProgressInProgress:
				out.Progress.InProgress++
			default:
				out.Progress.NotStarted++
			}
		}
	}
	out.StatusBreakdown = Breakdown(cs, func(c models.Challenge) string {
		return string(challenges.DeriveStatus(c, now))
	})
	out.AverageJoiningCost = Average(Sum(cs, func(c models.Challenge) float64 { return c.JoiningCost }), len(cs))
	return out
}

// TransactionStats summarises the transactions page.
type TransactionStats struct {
	Count   int             `json:"count"`
	Credits decimal.Decimal `json:"credits"`
	Debits  decimal.Decimal `json:"debits"`
	Net     decimal.Decimal `json:"net"`
	ByType  []Slice         `json:"by_type"`
}

// ComputeTransactionStats aggregates transactions. Debits are reported as a
// positive magnitude.
func ComputeTransactionStats(txns []models.Transaction) TransactionStats {
	credits, debits := decimal.Zero, decimal.Zero
	for _, t := range txns {
		amount := decimal.NewFromFloat(t.Amount)
		if amount.IsNegative() {
			debits = debits.Add(amount.Abs())
		} else {
			credits = credits.Add(amount)
		}
	}
	return TransactionStats{
		Count:   len(txns),
		Credits: credits,
		Debits:  debits,
		Net:     credits.Sub(debits),
		ByType:  Breakdown(txns, func(t models.Transaction) string { return t.TransactionType }),
	}
}

// WithdrawalStats summarises the withdrawal review queue.
type WithdrawalStats struct {
	Pending       int             `json:"pending"`
	Approved      int             `json:"approved"`
	Rejected      int             `json:"rejected"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
}

// ComputeWithdrawalStats aggregates withdrawals.
func ComputeWithdrawalStats(ws []models.Withdrawal) WithdrawalStats {
	out := WithdrawalStats{PendingAmount: decimal.Zero}
	for _, w := range ws {
		switch w.Status {
		case models.WithdrawalPending:
			out.Pending++
			out.PendingAmount = out.PendingAmount.Add(decimal.NewFromFloat(w.Amount))
		case models.WithdrawalApproved:
			out.Approved++
		case models.WithdrawalRejected:
			out.Rejected++
		}
	}
	return out
}

// LeaderboardStats summarises one leaderboard view.
type LeaderboardStats struct {
	Entries      int     `json:"entries"`
	TotalSteps   int     `json:"total_steps"`
	AverageSteps float64 `json:"average_steps"`
	Leader       string  `json:"leader"`
}

// ComputeLeaderboardStats aggregates leaderboard entries already ordered by
// rank.
func ComputeLeaderboardStats(entries []models.LeaderboardEntry) LeaderboardStats {
	steps := SumInt(entries, func(e models.LeaderboardEntry) int { return e.StepCount() })
	leader := ""
	if len(entries) > 0 {
		leader = entries[0].User.Name
	}
	return LeaderboardStats{
		Entries:      len(entries),
		TotalSteps:   steps,
		AverageSteps: Average(float64(steps), len(entries)),
		Leader:       leader,
	}
}

// RewardStats summarises the rewards catalogue.
type RewardStats struct {
	Total      int             `json:"total"`
	TotalValue decimal.Decimal `json:"total_value"`
	Average    decimal.Decimal `json:"average_value"`
	ByType     []Slice         `json:"by_type"`
}

// ComputeRewardStats aggregates rewards.
func ComputeRewardStats(rs []models.Reward) RewardStats {
	total := decimal.Zero
	for _, r := range rs {
		total = total.Add(decimal.NewFromFloat(r.Value))
	}
	avg := decimal.Zero
	if len(rs) > 0 {
		avg = total.Div(decimal.NewFromInt(int64(len(rs)))).Round(2)
	}
	return RewardStats{
		Total:      len(rs),
		TotalValue: total,
		Average:    avg,
		ByType:     Breakdown(rs, func(r models.Reward) string { return r.Type }),
	}
}
