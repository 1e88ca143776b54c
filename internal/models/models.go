package models

import "time"

// ActivityType is the kind of walking activity recorded by the mobile app.
type ActivityType string

const (
	ActivityWalking ActivityType = "WALKING"
	ActivityRunning ActivityType = "RUNNING"
	ActivityJogging ActivityType = "JOGGING"
	ActivityHiking  ActivityType = "HIKING"
)

// UserRank is the tier assigned to a user by the backend.
type UserRank string

const (
	RankBronze   UserRank = "BRONZE"
	RankSilver   UserRank = "SILVER"
	RankGold     UserRank = "GOLD"
	RankPlatinum UserRank = "PLATINUM"
	RankDiamond  UserRank = "DIAMOND"
)

// UserSummary is the embedded user reference carried by activities,
// transactions and withdrawals.
type UserSummary struct {
	ID    string    `json:"id,omitempty"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Rank  *UserRank `json:"rank,omitempty"` // nullable upstream
}

// WalkingActivity represents a single tracked walk, run, jog or hike.
type WalkingActivity struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	Steps        int          `json:"steps"`
	Distance     float64      `json:"distance"` // km
	Duration     int          `json:"duration"` // minutes
	Calories     int          `json:"calories"`
	ActivityType ActivityType `json:"activityType"`
	StartTime    time.Time    `json:"startTime"`
	EndTime      time.Time    `json:"endTime"`
	User         *UserSummary `json:"user,omitempty"`
}

// User represents a registered walker.
type User struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Phone              string    `json:"phone"`
	WalletBalance      float64   `json:"walletBalance"`
	Rank               *UserRank `json:"rank"`
	IsProfileCompleted bool      `json:"isProfileCompleted"`
	CreatedAt          time.Time `json:"createdAt"`
}

// ChallengeReward is the prize attached to a challenge.
type ChallengeReward struct {
	Value float64 `json:"value"`
	Type  string  `json:"type"`
	Name  string  `json:"name"`
}

// Participant is a user's standing inside a single challenge.
// Rank is the 1-based leaderboard position within the challenge.
type Participant struct {
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	Steps    int       `json:"steps"`
	Progress float64   `json:"progress"` // percent
	JoinDate time.Time `json:"joinDate"`
	Rank     int       `json:"rank"`
}

// Challenge is a time-boxed step challenge. Its status is never stored;
// see package challenges.
type Challenge struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	JoiningCost      float64            `json:"joiningCost"`
	StartDate        time.Time          `json:"startDate"`
	EndDate          time.Time          `json:"endDate"`
	ExpiryDate       *time.Time         `json:"expiryDate,omitempty"`
	StepsRequired    int                `json:"stepsRequired"`
	MinParticipants  int                `json:"minParticipants"`
	Participants     int                `json:"participants"`
	ParticipantsList []Participant      `json:"participantsList"`
	Reward           ChallengeReward    `json:"reward"`
	Provider         *ChallengeProvider `json:"provider"`
	ImageURL         string             `json:"imageUrl,omitempty"`
}

// ChallengeProvider is an organisation sponsoring challenges.
type ChallengeProvider struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Description string `json:"description"`
	LogoURL     string `json:"logoUrl"`
}

// Reward is a redeemable reward.
type Reward struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Type  string  `json:"type"`
}

// RewardType is a category of reward.
type RewardType struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// LeaderboardEntry is shared by the global, challenge, yearly, monthly and
// weekly leaderboards. Points are only reported on the global board.
type LeaderboardEntry struct {
	Rank       int         `json:"rank"`
	User       UserSummary `json:"user"`
	TotalSteps int         `json:"totalSteps"`
	Steps      int         `json:"steps,omitempty"`
	Points     *int        `json:"points,omitempty"`
}

// StepCount returns whichever step counter the backend populated.
func (e LeaderboardEntry) StepCount() int {
	if e.TotalSteps != 0 {
		return e.TotalSteps
	}
	return e.Steps
}

// Transaction is a wallet movement. A negative amount is a debit.
type Transaction struct {
	ID              string      `json:"id"`
	Amount          float64     `json:"amount"`
	AmountType      string      `json:"amountType"`
	TransactionType string      `json:"transactionType"`
	CreatedAt       time.Time   `json:"createdAt"`
	User            UserSummary `json:"user"`
}

// WithdrawalStatus is the review state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "PENDING"
	WithdrawalApproved WithdrawalStatus = "APPROVED"
	WithdrawalRejected WithdrawalStatus = "REJECTED"
)

// Withdrawal is a user's request to cash out wallet balance.
type Withdrawal struct {
	ID            string           `json:"id"`
	UserID        string           `json:"userId"`
	User          UserSummary      `json:"user"`
	Amount        float64          `json:"amount"`
	Status        WithdrawalStatus `json:"status"`
	Method        string           `json:"method"`
	AccountNumber string           `json:"accountNumber"`
	Reason        string           `json:"reason,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	ReviewedAt    *time.Time       `json:"reviewedAt,omitempty"`
}

// AuditEntry records one admin mutation performed through the gateway.
type AuditEntry struct {
	ID         string    `json:"id"`
	Resource   string    `json:"resource"`
	Action     string    `json:"action"`
	TargetID   string    `json:"target_id"`
	Succeeded  bool      `json:"succeeded"`
	Message    string    `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// RejectWithdrawalRequest is the body of POST /withdrawals/{id}/reject.
type RejectWithdrawalRequest struct {
	Reason string `json:"reason"`
}

// SetFeatureRequest is the body of PUT /features/{name}.
type SetFeatureRequest struct {
	Enabled bool `json:"enabled"`
}
