// models/game.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TablePredictionGames = "prediction_games"
	TableTriviaGames     = "trivia_games"
	TableMilestoneGames  = "milestone_games"
	TableMiniGames       = "mini_games"

	TablePredictionParticipations = "prediction_participations"
	TableTriviaParticipations     = "trivia_participations"
	TableMilestoneParticipations  = "milestone_participations"
	TableMiniGameParticipations   = "mini_game_participations"
)

// PredictionGame asks fans to call the final score of a match.
type PredictionGame struct {
	ActivityBase
	GameState
	MatchID          string `gorm:"size:64;index" json:"match_id"`
	MainTeamName     string `gorm:"size:255" json:"main_team_name"`
	OpponentTeamName string `gorm:"size:255" json:"opponent_team_name"`

	// Nil until the real result is recorded.
	ActualMainScore     *int       `json:"actual_main_score,omitempty"`
	ActualOpponentScore *int       `json:"actual_opponent_score,omitempty"`
	ResultRecordedAt    *time.Time `json:"result_recorded_at,omitempty"`
}

func (PredictionGame) TableName() string { return TablePredictionGames }

func (g PredictionGame) Project() ActivityRow {
	return g.GameState.apply(g.ActivityBase.project(KindPrediction))
}

func (g PredictionGame) HasResult() bool {
	return g.ActualMainScore != nil && g.ActualOpponentScore != nil
}

type TriviaGame struct {
	ActivityBase
	GameState
	TimeLimitSeconds int              `gorm:"not null" json:"time_limit_seconds"`
	Questions        []TriviaQuestion `gorm:"foreignKey:GameID" json:"questions,omitempty"`
}

func (TriviaGame) TableName() string { return TableTriviaGames }

func (g TriviaGame) Project() ActivityRow {
	return g.GameState.apply(g.ActivityBase.project(KindTrivia))
}

type TriviaQuestion struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	GameID    string         `gorm:"size:36;not null;index" json:"game_id"`
	Prompt    string         `gorm:"type:text;not null" json:"prompt"`
	SortOrder int            `gorm:"not null" json:"sort_order"`
	Options   []TriviaOption `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (q *TriviaQuestion) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

type TriviaOption struct {
	ID         string `gorm:"primaryKey;size:36" json:"id"`
	QuestionID string `gorm:"size:36;not null;index" json:"question_id"`
	Label      string `gorm:"size:255;not null" json:"label"`
	IsCorrect  bool   `gorm:"not null" json:"-"`
	SortOrder  int    `gorm:"not null" json:"sort_order"`
}

func (o *TriviaOption) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// MilestoneGame completes when the fan's tracked metric reaches TargetValue.
type MilestoneGame struct {
	ActivityBase
	GameState
	Metric      string `gorm:"size:64;not null" json:"metric"`
	TargetValue int64  `gorm:"not null" json:"target_value"`
}

func (MilestoneGame) TableName() string { return TableMilestoneGames }

func (g MilestoneGame) Project() ActivityRow {
	return g.GameState.apply(g.ActivityBase.project(KindMilestone))
}

// MiniGame is an embedded arcade game reporting one score per fan.
type MiniGame struct {
	ActivityBase
	GameState
	GameURL string `gorm:"size:512" json:"game_url"`
}

func (MiniGame) TableName() string { return TableMiniGames }

func (g MiniGame) Project() ActivityRow {
	return g.GameState.apply(g.ActivityBase.project(KindMiniGame))
}

// ScoredOutcome is written onto a participation when its contest finishes.
type ScoredOutcome struct {
	Rank            *int            `json:"rank,omitempty"`
	RewardPrimary   decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"reward_primary"`
	RewardSecondary decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"reward_secondary"`
	IsSent          bool            `gorm:"not null" json:"is_sent"`
	RankedAt        *time.Time      `json:"ranked_at,omitempty"`
}

type PredictionParticipation struct {
	ID                     string `gorm:"primaryKey;size:36" json:"id"`
	ActivityID             string `gorm:"size:36;not null;uniqueIndex:idx_prediction_play" json:"activity_id"`
	UserID                 string `gorm:"size:64;not null;uniqueIndex:idx_prediction_play;index" json:"user_id"`
	PredictedMainScore     int    `gorm:"not null" json:"predicted_main_score"`
	PredictedOpponentScore int    `gorm:"not null" json:"predicted_opponent_score"`
	ScoredOutcome
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (PredictionParticipation) TableName() string { return TablePredictionParticipations }

func (p *PredictionParticipation) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type TriviaParticipation struct {
	ID         string         `gorm:"primaryKey;size:36" json:"id"`
	ActivityID string         `gorm:"size:36;not null;uniqueIndex:idx_trivia_play" json:"activity_id"`
	UserID     string         `gorm:"size:64;not null;uniqueIndex:idx_trivia_play;index" json:"user_id"`
	ElapsedMs  int64          `gorm:"not null" json:"elapsed_ms"`
	Answers    []TriviaAnswer `gorm:"foreignKey:ParticipationID" json:"answers,omitempty"`
	ScoredOutcome
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (TriviaParticipation) TableName() string { return TableTriviaParticipations }

func (p *TriviaParticipation) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type TriviaAnswer struct {
	ID              string `gorm:"primaryKey;size:36" json:"id"`
	ParticipationID string `gorm:"size:36;not null;uniqueIndex:idx_trivia_answer_question" json:"participation_id"`
	QuestionID      string `gorm:"size:36;not null;uniqueIndex:idx_trivia_answer_question" json:"question_id"`
	OptionID        string `gorm:"size:36;not null" json:"option_id"`
}

func (a *TriviaAnswer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

type MilestoneParticipation struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	ActivityID  string     `gorm:"size:36;not null;uniqueIndex:idx_milestone_play" json:"activity_id"`
	UserID      string     `gorm:"size:64;not null;uniqueIndex:idx_milestone_play;index" json:"user_id"`
	Progress    int64      `gorm:"not null" json:"progress"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (MilestoneParticipation) TableName() string { return TableMilestoneParticipations }

func (p *MilestoneParticipation) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type MiniGameParticipation struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	ActivityID string    `gorm:"size:36;not null;uniqueIndex:idx_mini_game_play" json:"activity_id"`
	UserID     string    `gorm:"size:64;not null;uniqueIndex:idx_mini_game_play;index" json:"user_id"`
	Score      int64     `gorm:"not null" json:"score"`
	CreatedAt  time.Time `json:"created_at"`
}

func (MiniGameParticipation) TableName() string { return TableMiniGameParticipations }

func (p *MiniGameParticipation) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
