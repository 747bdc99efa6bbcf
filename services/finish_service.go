// services/finish_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fan-activity-engine/logger"
	"fan-activity-engine/models"

	"gorm.io/gorm"
)

const afterFinishTimeout = 10 * time.Second

// FinishService closes a scored contest: it ranks the participants, emits
// payouts, persists the outcome and flips is_ended. All of that commits
// together or not at all.
type FinishService struct {
	DB      *gorm.DB
	Ranking *RankingService
	Ledger  Ledger
	Events  EventSink
	Archive StandingsArchiver // optional
	Clock   func() time.Time
	log     *logger.Logger
}

func NewFinishService(db *gorm.DB, ranking *RankingService, ledger Ledger, events EventSink, log *logger.Logger) *FinishService {
	return &FinishService{
		DB:      db,
		Ranking: ranking,
		Ledger:  ledger,
		Events:  events,
		Clock:   time.Now,
		log:     logger.OrNop(log).With("service", "FinishService"),
	}
}

type FinishSummary struct {
	ContestID     string                `json:"contest_id"`
	Kind          models.ActivityKind   `json:"kind"`
	FinishedAt    time.Time             `json:"finished_at"`
	LedgerEntries int                   `json:"ledger_entries"`
	Results       []models.RankedResult `json:"results"`
}

// FinishContest ends a contest exactly once. A second call, concurrent or
// not, gets ErrContestEnded and emits nothing.
func (s *FinishService) FinishContest(ctx context.Context, contestID string) (*FinishSummary, error) {
	now := s.Clock().UTC()
	var contest *contestRef
	summary := &FinishSummary{ContestID: contestID, FinishedAt: now}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := loadContest(tx, contestID, true)
		if err != nil {
			return err
		}
		if c.state.IsEnded {
			return ErrContestEnded
		}
		if c.kind == models.KindPrediction && !c.prediction.HasResult() {
			return ErrResultNotRecorded
		}

		results, err := s.Ranking.rankContest(tx, c)
		if err != nil {
			return err
		}

		for _, r := range results {
			if r.IsSent {
				created, err := s.Ledger.Emit(tx, rewardTransaction(c, r))
				if err != nil {
					return err
				}
				if created {
					summary.LedgerEntries++
				}
			}
			if err := persistOutcome(tx, c, r, now); err != nil {
				return err
			}
		}

		// Compare-and-set; losing a race here rolls back the payouts above.
		res := tx.Model(c.model()).
			Where("id = ? AND is_ended = ?", c.base.ID, false).
			Updates(map[string]interface{}{"is_ended": true, "ended_at": now})
		if res.Error != nil {
			return fmt.Errorf("mark contest ended: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrContestEnded
		}

		contest = c
		summary.Kind = c.kind
		summary.Results = results
		return nil
	})
	if err != nil {
		if KindOf(err) == "" {
			s.log.Error("finish contest failed", "contest_id", contestID, "error", err)
		}
		return nil, err
	}

	s.log.Info("contest finished",
		"contest_id", contestID, "kind", summary.Kind,
		"participants", len(summary.Results), "ledger_entries", summary.LedgerEntries)
	s.afterFinish(ctx, contest, summary)
	return summary, nil
}

func rewardTransaction(c *contestRef, r models.RankedResult) *models.LedgerTransaction {
	rewardType := RewardType(c.kind)
	contestID := c.base.ID
	return &models.LedgerTransaction{
		ReceiverID:      r.UserID,
		GroupID:         c.base.GroupID,
		ContestID:       &contestID,
		Type:            rewardType,
		UniqueID:        LedgerKey(r.ParticipationID, rewardType),
		Status:          models.LedgerStatusPending,
		PrimaryAmount:   r.RewardPrimary,
		SecondaryAmount: r.RewardSecondary,
		Reason:          fmt.Sprintf("rank %d in %s", r.Rank, c.base.Title),
	}
}

func persistOutcome(tx *gorm.DB, c *contestRef, r models.RankedResult, now time.Time) error {
	res := tx.Model(c.participationModel()).
		Where("id = ?", r.ParticipationID).
		Updates(map[string]interface{}{
			"rank":             r.Rank,
			"reward_primary":   r.RewardPrimary,
			"reward_secondary": r.RewardSecondary,
			"is_sent":          r.IsSent,
			"ranked_at":        now,
		})
	if res.Error != nil {
		return fmt.Errorf("persist outcome of %s: %w", r.ParticipationID, res.Error)
	}
	return nil
}

// afterFinish runs the best-effort side effects of a committed finish.
// Failures are logged and never reach the caller.
func (s *FinishService) afterFinish(ctx context.Context, c *contestRef, summary *FinishSummary) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), afterFinishTimeout)
	defer cancel()

	if s.Events != nil {
		link := contestLink(c.kind, c.base.ID, c.base.Title)
		for _, r := range summary.Results {
			if err := s.Events.Publish(ctx, contestEndedEvent(c, r, link)); err != nil {
				s.log.Warn("contest ended event not delivered",
					"contest_id", c.base.ID, "user_id", r.UserID, "error", err)
			}
		}
	}

	if s.Archive != nil {
		snap := models.StandingsSnapshot{
			ContestID:  c.base.ID,
			Kind:       c.kind,
			GroupID:    c.base.GroupID,
			Title:      c.base.Title,
			FinishedAt: summary.FinishedAt,
			Results:    summary.Results,
		}
		url, err := s.Archive.ArchiveStandings(ctx, snap)
		if err != nil {
			s.log.Warn("standings archive failed", "contest_id", c.base.ID, "error", err)
			return
		}
		s.log.Debug("standings archived", "contest_id", c.base.ID, "url", url)
	}
}

type contestEndedContent struct {
	ContestID       string `json:"contest_id"`
	Title           string `json:"title"`
	Rank            int    `json:"rank"`
	RewardPrimary   string `json:"reward_primary"`
	RewardSecondary string `json:"reward_secondary"`
	Rewarded        bool   `json:"rewarded"`
	Link            string `json:"link"`
}

func contestEndedEvent(c *contestRef, r models.RankedResult, link string) models.ActivityEvent {
	content, _ := json.Marshal(contestEndedContent{
		ContestID:       c.base.ID,
		Title:           c.base.Title,
		Rank:            r.Rank,
		RewardPrimary:   r.RewardPrimary.String(),
		RewardSecondary: r.RewardSecondary.String(),
		Rewarded:        r.IsSent,
		Link:            link,
	})
	return models.ActivityEvent{
		UserID:    r.UserID,
		EventType: EventContestEnded,
		Category:  string(c.kind.Family()),
		Section:   string(c.kind),
		UniqueID:  c.base.ID + ":" + r.UserID,
		Content:   string(content),
	}
}
