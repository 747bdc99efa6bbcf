// services/contest_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"fan-activity-engine/logger"
	"fan-activity-engine/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContestService covers the admin side of activities: publishing, recording
// match results and maintaining reward tables.
type ContestService struct {
	DB    *gorm.DB
	Clock func() time.Time
	log   *logger.Logger
}

func NewContestService(db *gorm.DB, log *logger.Logger) *ContestService {
	return &ContestService{DB: db, Clock: time.Now, log: logger.OrNop(log).With("service", "ContestService")}
}

// Publish flips is_draft to false. Publishing twice is not an error; there is
// no way back to draft.
func (s *ContestService) Publish(ctx context.Context, kind models.ActivityKind, id string) error {
	src, ok := kindRegistry[kind]
	if !ok {
		return invalidArgument("unknown activity kind %q", kind)
	}
	res := s.DB.WithContext(ctx).Model(src.newModel()).Where("id = ?", id).Update("is_draft", false)
	if res.Error != nil {
		return fmt.Errorf("publish %s %s: %w", kind, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrActivityNotFound
	}
	s.log.Info("activity published", "kind", kind, "activity_id", id)
	return nil
}

// RecordPredictionResult stores the real final score. It may be corrected
// until the game finishes.
func (s *ContestService) RecordPredictionResult(ctx context.Context, gameID string, mainScore, opponentScore int) (*models.PredictionGame, error) {
	if mainScore < 0 || opponentScore < 0 {
		return nil, invalidArgument("scores must not be negative")
	}
	now := s.Clock().UTC()
	var game models.PredictionGame
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", gameID).First(&game).Error
		if err != nil {
			return notFoundOr(err, ErrContestNotFound, "load prediction game")
		}
		if game.IsEnded {
			return ErrContestEnded
		}
		game.ActualMainScore = &mainScore
		game.ActualOpponentScore = &opponentScore
		game.ResultRecordedAt = &now
		return tx.Model(&game).Updates(map[string]interface{}{
			"actual_main_score":     mainScore,
			"actual_opponent_score": opponentScore,
			"result_recorded_at":    now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("prediction result recorded", "game_id", gameID, "main", mainScore, "opponent", opponentScore)
	return &game, nil
}

type RewardEntryInput struct {
	WinnerOrder     int             `json:"winner_order"`
	RewardPrimary   decimal.Decimal `json:"reward_primary"`
	RewardSecondary decimal.Decimal `json:"reward_secondary"`
}

// SetRewardDistribution replaces the contest's reward table.
func (s *ContestService) SetRewardDistribution(ctx context.Context, contestID string, entries []RewardEntryInput) ([]models.RewardDistribution, error) {
	seen := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		if e.WinnerOrder < 1 {
			return nil, invalidArgument("winner order must start at 1, got %d", e.WinnerOrder)
		}
		if _, dup := seen[e.WinnerOrder]; dup {
			return nil, invalidArgument("winner order %d listed twice", e.WinnerOrder)
		}
		if e.RewardPrimary.IsNegative() || e.RewardSecondary.IsNegative() {
			return nil, invalidArgument("reward for order %d must not be negative", e.WinnerOrder)
		}
		seen[e.WinnerOrder] = struct{}{}
	}

	var table []models.RewardDistribution
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := loadContest(tx, contestID, true)
		if err != nil {
			return err
		}
		if c.state.IsEnded {
			return ErrContestEnded
		}
		err = tx.Where("contest_kind = ? AND contest_id = ?", c.kind, contestID).
			Delete(&models.RewardDistribution{}).Error
		if err != nil {
			return fmt.Errorf("clear reward distribution: %w", err)
		}
		for _, e := range entries {
			table = append(table, models.RewardDistribution{
				ContestKind:     c.kind,
				ContestID:       contestID,
				WinnerOrder:     e.WinnerOrder,
				RewardPrimary:   e.RewardPrimary,
				RewardSecondary: e.RewardSecondary,
			})
		}
		if len(table) == 0 {
			return nil
		}
		return tx.Create(&table).Error
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

// RewardDistribution lists a contest's reward table by winner order.
func (s *ContestService) RewardDistribution(ctx context.Context, contestID string) ([]models.RewardDistribution, error) {
	db := s.DB.WithContext(ctx)
	c, err := loadContest(db, contestID, false)
	if err != nil {
		return nil, err
	}
	var table []models.RewardDistribution
	err = db.Where("contest_kind = ? AND contest_id = ?", c.kind, contestID).
		Order("winner_order ASC").
		Find(&table).Error
	if err != nil {
		return nil, fmt.Errorf("load reward distribution: %w", err)
	}
	return table, nil
}
