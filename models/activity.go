// models/activity.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// ActivityBase is the column subset every activity table shares.
type ActivityBase struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	GroupID     string    `gorm:"size:64;not null;index" json:"group_id"` // sponsoring team
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	StartAt     time.Time `gorm:"not null;index" json:"start_at"`
	EndAt       time.Time `gorm:"not null;index" json:"end_at"`
	IsDraft     bool      `gorm:"not null;index" json:"is_draft"`

	RewardPrimary   decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"reward_primary"`
	RewardSecondary decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"reward_secondary"`
	// MinBalance gates participation; zero means open to everyone.
	MinBalance decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"min_balance"`

	Timestamps
}

func (a *ActivityBase) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Activity exposes the shared columns of any embedding table model.
func (a ActivityBase) Activity() ActivityBase { return a }

// OpenAt reports whether now falls inside [StartAt, EndAt].
func (a ActivityBase) OpenAt(now time.Time) bool {
	return !now.Before(a.StartAt) && !now.After(a.EndAt)
}

func (a ActivityBase) project(kind ActivityKind) ActivityRow {
	return ActivityRow{
		ID:              a.ID,
		Kind:            kind,
		GroupID:         a.GroupID,
		Title:           a.Title,
		Description:     a.Description,
		StartAt:         a.StartAt,
		EndAt:           a.EndAt,
		IsDraft:         a.IsDraft,
		RewardPrimary:   a.RewardPrimary,
		RewardSecondary: a.RewardSecondary,
	}
}

// GameState is carried by game-family tables only.
type GameState struct {
	IsEnded bool       `gorm:"not null;index" json:"is_ended"`
	EndedAt *time.Time `json:"ended_at,omitempty"`
}

func (g GameState) Ended() bool { return g.IsEnded }

func (g GameState) apply(row ActivityRow) ActivityRow {
	ended := g.IsEnded
	row.IsEnded = &ended
	return row
}

// ActivityRow is the normalized projection every kind maps onto.
// Kind is injected in code after the per-kind query, never selected.
type ActivityRow struct {
	ID                    string          `json:"id"`
	Kind                  ActivityKind    `json:"kind" gorm:"-"`
	GroupID               string          `json:"group_id"`
	GroupName             string          `json:"group_name"`
	Title                 string          `json:"title"`
	Description           string          `json:"description"`
	StartAt               time.Time       `json:"start_at"`
	EndAt                 time.Time       `json:"end_at"`
	IsDraft               bool            `json:"is_draft"`
	IsEnded               *bool           `json:"is_ended,omitempty"`
	HasViewerParticipated *bool           `json:"has_viewer_participated,omitempty"`
	RewardPrimary         decimal.Decimal `json:"reward_primary"`
	RewardSecondary       decimal.Decimal `json:"reward_secondary"`
}

// Ended is false for rows whose kind has no ended flag.
func (r ActivityRow) Ended() bool {
	return r.IsEnded != nil && *r.IsEnded
}

// Projector is implemented by every activity table model. It is the in-memory
// form of the projection; feeds project in SQL and tests hold the two equal.
type Projector interface {
	Project() ActivityRow
}

// FeedPage is one page of the unified feed.
type FeedPage struct {
	Data  []ActivityRow `json:"data"`
	Count int64         `json:"count"`
}

// OwnerSplitFeed holds one independently ordered page per kind.
type OwnerSplitFeed struct {
	PerKind map[ActivityKind]FeedPage `json:"per_kind"`
}
