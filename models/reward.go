// models/reward.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TableRewardDistributions = "reward_distributions"
	TableLedgerTransactions  = "ledger_transactions"
)

// RewardDistribution maps one finishing position of a contest to its payout.
// Orders are 1-based and need not be contiguous.
type RewardDistribution struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	ContestKind     ActivityKind    `gorm:"size:32;not null;uniqueIndex:idx_reward_distribution_order" json:"contest_kind"`
	ContestID       string          `gorm:"size:36;not null;uniqueIndex:idx_reward_distribution_order" json:"contest_id"`
	WinnerOrder     int             `gorm:"not null;uniqueIndex:idx_reward_distribution_order" json:"winner_order"`
	RewardPrimary   decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"reward_primary"`
	RewardSecondary decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"reward_secondary"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (RewardDistribution) TableName() string { return TableRewardDistributions }

func (r *RewardDistribution) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// RankedResult is derived by ranking and persisted onto the participation at finish.
type RankedResult struct {
	ParticipationID string          `json:"participation_id"`
	UserID          string          `json:"user_id"`
	Score           int64           `json:"score"`
	Rank            int             `json:"rank"`
	RewardPrimary   decimal.Decimal `json:"reward_primary"`
	RewardSecondary decimal.Decimal `json:"reward_secondary"`
	IsSent          bool            `json:"is_sent"`
}

// StandingsSnapshot is the archived final state of a finished contest.
type StandingsSnapshot struct {
	ContestID  string         `json:"contest_id"`
	Kind       ActivityKind   `json:"kind"`
	GroupID    string         `json:"group_id"`
	Title      string         `json:"title"`
	FinishedAt time.Time      `json:"finished_at"`
	Results    []RankedResult `json:"results"`
}

type LedgerStatus string

const (
	LedgerStatusPending   LedgerStatus = "pending"
	LedgerStatusCompleted LedgerStatus = "completed"
	LedgerStatusFailed    LedgerStatus = "failed"
)

// LedgerTransaction is a create-only payout record. UniqueID makes
// re-emission a no-op.
type LedgerTransaction struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	SenderID        *string         `gorm:"size:64" json:"sender_id,omitempty"`
	ReceiverID      string          `gorm:"size:64;not null;index" json:"receiver_id"`
	GroupID         string          `gorm:"size:64;not null;index" json:"group_id"`
	ContestID       *string         `gorm:"size:36;index" json:"contest_id,omitempty"`
	Type            string          `gorm:"size:64;not null" json:"type"`
	UniqueID        string          `gorm:"size:128;not null;uniqueIndex" json:"unique_id"`
	Status          LedgerStatus    `gorm:"size:16;not null" json:"status"`
	PrimaryAmount   decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"primary_amount"`
	SecondaryAmount decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"secondary_amount"`
	Reason          string          `gorm:"size:255" json:"reason"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (LedgerTransaction) TableName() string { return TableLedgerTransactions }

func (t *LedgerTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// ActivityEvent is handed to the notification pipeline.
type ActivityEvent struct {
	UserID    string `json:"user_id"`
	EventType string `json:"event_type"`
	Category  string `json:"category"`
	Section   string `json:"section"`
	UniqueID  string `json:"unique_id"`
	Content   string `json:"content"`
}
