package stats

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheger-walk-admin/internal/models"
)

var now = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func TestComputeChallengeStats_Empty(t *testing.T) {
	got := ComputeChallengeStats(nil)

	assert.Equal(t, ChallengeStats{}, got)
	assert.False(t, math.IsNaN(got.AverageSteps))
	assert.False(t, math.IsInf(got.AverageSteps, 0))
}

func TestComputeChallengeStats(t *testing.T) {
	got := ComputeChallengeStats([]models.Participant{
		{UserName: "Abebe", Steps: 4000, Progress: 40},
		{UserName: "Sara", Steps: 12000, Progress: 100},
		{UserName: "Hana", Steps: 12000, Progress: 100},
		{UserName: "Kebede", Steps: 2000, Progress: 20},
	})

	assert.Equal(t, 4, got.TotalParticipants)
	assert.Equal(t, 30000, got.TotalSteps)
	assert.Equal(t, 7500.0, got.AverageSteps)
	assert.Equal(t, "Sara", got.TopPerformer)
	assert.Equal(t, 2, got.CompletedParticipants)
}

func TestEmptyInputsNeverProduceNaN(t *testing.T) {
	a := ComputeActivityStats(nil)
	assert.Zero(t, a.AverageSteps)
	assert.Zero(t, a.AverageDuration)
	assert.Empty(t, a.MostUsedType)

	u := ComputeUserStats(nil, now)
	assert.Zero(t, u.CompletionRate)
	assert.True(t, u.AverageBalance.IsZero())

	c := ComputeChallengeOverview(nil, now)
	assert.Zero(t, c.AverageJoiningCost)
	assert.True(t, c.PotentialRewards.IsZero())

	l := ComputeLeaderboardStats(nil)
	assert.Zero(t, l.AverageSteps)
	assert.Empty(t, l.Leader)
}

func TestBreakdown_SumsToHundred(t *testing.T) {
	items := []string{"WALKING", "RUNNING", "WALKING", "HIKING", "JOGGING", "WALKING", "RUNNING"}

	slices := Breakdown(items, func(s string) string { return s })

	require.Len(t, slices, 4)
	assert.Equal(t, "WALKING", slices[0].Label)
	assert.Equal(t, 3, slices[0].Count)

	var total float64
	for _, s := range slices {
		total += s.Percent
	}
	assert.InDelta(t, 100, total, 1e-9)
	assert.Equal(t, "WALKING", MostCommon(slices))
}

func TestTopN_StableDescending(t *testing.T) {
	type row struct {
		id    string
		score int
	}
	rows := []row{{"a", 5}, {"b", 9}, {"c", 5}, {"d", 9}, {"e", 1}}

	top := TopN(rows, 3, func(r row) float64 { return float64(r.score) })

	require.Len(t, top, 3)
	assert.Equal(t, []string{"b", "d", "a"}, []string{top[0].id, top[1].id, top[2].id})
	assert.Equal(t, "a", rows[0].id)
}

func TestBucketByDay_Chronological(t *testing.T) {
	acts := []models.WalkingActivity{
		{Steps: 100, StartTime: time.Date(2026, 10, 3, 8, 0, 0, 0, time.UTC)},
		{Steps: 200, StartTime: time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)},
		{Steps: 300, StartTime: time.Date(2026, 10, 3, 19, 0, 0, 0, time.UTC)},
		{Steps: 400, StartTime: time.Date(2026, 9, 30, 7, 0, 0, 0, time.UTC)},
	}

	got := ComputeActivityStats(acts).DailySteps

	require.Len(t, got, 3)
	assert.Equal(t, []string{"Sep 30", "Oct 01", "Oct 03"}, []string{got[0].Label, got[1].Label, got[2].Label})
	assert.Equal(t, 400.0, got[2].Value)
	assert.Equal(t, 2, got[2].Count)
}

func TestComputeUserStats(t *testing.T) {
	gold := models.RankGold
	users := []models.User{
		{Name: "Abebe", WalletBalance: 10.10, IsProfileCompleted: true, Rank: &gold, CreatedAt: now.AddDate(0, 0, -3)},
		{Name: "Sara", WalletBalance: 20.20, CreatedAt: now.AddDate(0, -6, 0)},
		{Name: "Hana", WalletBalance: 0.05, IsProfileCompleted: true, CreatedAt: now.AddDate(0, 0, -29)},
	}

	got := ComputeUserStats(users, now)

	assert.Equal(t, 3, got.TotalUsers)
	assert.Equal(t, 2, got.CompletedProfiles)
	assert.True(t, got.TotalBalance.Equal(decimal.RequireFromString("30.35")), got.TotalBalance.String())
	assert.True(t, got.AverageBalance.Equal(decimal.RequireFromString("10.12")), got.AverageBalance.String())
	assert.Equal(t, 2, got.NewUsers)
	require.Len(t, got.RankBreakdown, 2)
	assert.Equal(t, "UNRANKED", got.RankBreakdown[1].Label)
}

func TestComputeChallengeOverview_RewardFigures(t *testing.T) {
	cs := []models.Challenge{
		{
			Name:         "Completed",
			StartDate:    now.AddDate(0, 0, -10),
			EndDate:      now.AddDate(0, 0, -1),
			Participants: 3,
			Reward:       models.ChallengeReward{Value: 100},
			ParticipantsList: []models.Participant{
				{Steps: 12000, Progress: 100},
				{Steps: 9000, Progress: 90},
				{Steps: 0, Progress: 0},
			},
		},
		{
			Name:         "Active",
			StartDate:    now.AddDate(0, 0, -1),
			EndDate:      now.AddDate(0, 0, 1),
			Participants: 2,
			Reward:       models.ChallengeReward{Value: 50},
			ParticipantsList: []models.Participant{
				{Steps: 15000, Progress: 100},
				{Steps: 100, Progress: 1},
			},
		},
		{
			Name:      "Upcoming",
			StartDate: now.AddDate(0, 0, 1),
			EndDate:   now.AddDate(0, 0, 2),
		},
	}

	got := ComputeChallengeOverview(cs, now)

	assert.Equal(t, 1, got.Active)
	assert.Equal(t, 1, got.Upcoming)
	assert.Equal(t, 1, got.Completed)
	assert.Equal(t, 5, got.TotalParticipants)
	assert.True(t, got.PotentialRewards.Equal(decimal.NewFromInt(400)), got.PotentialRewards.String())
	assert.True(t, got.DistributedRewards.Equal(decimal.NewFromInt(150)), got.DistributedRewards.String())
	assert.Equal(t, ProgressDistribution{Completed: 2, InProgress: 2, NotStarted: 1}, got.Progress)
}

func TestComputeTransactionStats(t *testing.T) {
	got := ComputeTransactionStats([]models.Transaction{
		{Amount: 100.5, TransactionType: "REWARD"},
		{Amount: -40.25, TransactionType: "WITHDRAWAL"},
		{Amount: -10, TransactionType: "JOINING_FEE"},
	})

	assert.Equal(t, 3, got.Count)
	assert.True(t, got.Credits.Equal(decimal.RequireFromString("100.5")))
	assert.True(t, got.Debits.Equal(decimal.RequireFromString("50.25")))
	assert.True(t, got.Net.Equal(decimal.RequireFromString("50.25")))
}

func TestComputeWithdrawalStats(t *testing.T) {
	got := ComputeWithdrawalStats([]models.Withdrawal{
		{Status: models.WithdrawalPending, Amount: 25},
		{Status: models.WithdrawalPending, Amount: 75.5},
		{Status: models.WithdrawalApproved, Amount: 10},
		{Status: models.WithdrawalRejected, Amount: 10},
	})

	assert.Equal(t, 2, got.Pending)
	assert.Equal(t, 1, got.Approved)
	assert.Equal(t, 1, got.Rejected)
	assert.True(t, got.PendingAmount.Equal(decimal.RequireFromString("100.5")))
}

func TestComputeRewardStats(t *testing.T) {
	got := ComputeRewardStats([]models.Reward{
		{Name: "Coffee voucher", Value: 50, Type: "VOUCHER"},
		{Name: "Airtime", Value: 25.5, Type: "AIRTIME"},
		{Name: "Lunch voucher", Value: 100, Type: "VOUCHER"},
	})

	assert.Equal(t, 3, got.Total)
	assert.True(t, got.TotalValue.Equal(decimal.RequireFromString("175.5")))
	assert.True(t, got.Average.Equal(decimal.RequireFromString("58.5")))
	require.Len(t, got.ByType, 2)
	assert.Equal(t, "VOUCHER", got.ByType[0].Label)
	assert.Equal(t, 2, got.ByType[0].Count)

	empty := ComputeRewardStats(nil)
	assert.True(t, empty.Average.IsZero())
}
