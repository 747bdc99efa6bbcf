// services/ranking.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"fan-activity-engine/logger"
	"fan-activity-engine/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmissionTieBreak orders participants whose scores (and, for trivia,
// elapsed times) are equal.
type SubmissionTieBreak string

const (
	LatestSubmissionFirst   SubmissionTieBreak = "latest_first"
	EarliestSubmissionFirst SubmissionTieBreak = "earliest_first"
)

func ParseTieBreak(s string) (SubmissionTieBreak, error) {
	switch tb := SubmissionTieBreak(strings.ToLower(strings.TrimSpace(s))); tb {
	case "":
		return LatestSubmissionFirst, nil
	case LatestSubmissionFirst, EarliestSubmissionFirst:
		return tb, nil
	}
	return "", fmt.Errorf("unknown submission tie-break %q", s)
}

// RankingPolicy picks the submission tie-break per contest kind.
// Historical standings were produced with the latest submission first for
// both kinds, so that stays the default.
type RankingPolicy struct {
	Prediction SubmissionTieBreak
	Trivia     SubmissionTieBreak
}

func DefaultRankingPolicy() RankingPolicy {
	return RankingPolicy{Prediction: LatestSubmissionFirst, Trivia: LatestSubmissionFirst}
}

type RankingService struct {
	DB     *gorm.DB
	Policy RankingPolicy
	log    *logger.Logger
}

func NewRankingService(db *gorm.DB, policy RankingPolicy, log *logger.Logger) *RankingService {
	return &RankingService{DB: db, Policy: policy, log: logger.OrNop(log).With("service", "RankingService")}
}

// Rank computes the current standings of a scored contest without
// persisting anything. Once the contest has ended it returns the ranks and
// rewards stored at finish instead.
func (s *RankingService) Rank(ctx context.Context, contestID string) ([]models.RankedResult, error) {
	db := s.DB.WithContext(ctx)
	c, err := loadContest(db, contestID, false)
	if err != nil {
		return nil, err
	}
	if c.state.IsEnded {
		return s.finalStandings(db, c)
	}
	return s.rankContest(db, c)
}

// finalStandings reads the outcome persisted on each participation. Scores
// are recomputed since they do not depend on the tie-break policy.
func (s *RankingService) finalStandings(db *gorm.DB, c *contestRef) ([]models.RankedResult, error) {
	out := []models.RankedResult{}
	add := func(id, userID string, score int64, o models.ScoredOutcome) {
		if o.Rank == nil {
			return
		}
		out = append(out, models.RankedResult{
			ParticipationID: id,
			UserID:          userID,
			Score:           score,
			Rank:            *o.Rank,
			RewardPrimary:   o.RewardPrimary,
			RewardSecondary: o.RewardSecondary,
			IsSent:          o.IsSent,
		})
	}

	switch c.kind {
	case models.KindPrediction:
		var parts []models.PredictionParticipation
		if err := db.Where("activity_id = ?", c.base.ID).Find(&parts).Error; err != nil {
			return nil, fmt.Errorf("load prediction outcomes: %w", err)
		}
		for _, p := range parts {
			var score int64
			if c.prediction.HasResult() {
				score = PredictionScore(p.PredictedMainScore, p.PredictedOpponentScore,
					*c.prediction.ActualMainScore, *c.prediction.ActualOpponentScore)
			}
			add(p.ID, p.UserID, score, p.ScoredOutcome)
		}

	case models.KindTrivia:
		var correct []models.TriviaOption
		err := db.Model(&models.TriviaOption{}).
			Joins("JOIN trivia_questions ON trivia_questions.id = trivia_options.question_id").
			Where("trivia_questions.game_id = ? AND trivia_options.is_correct = ?", c.base.ID, true).
			Find(&correct).Error
		if err != nil {
			return nil, fmt.Errorf("load trivia answer key: %w", err)
		}
		var parts []models.TriviaParticipation
		if err := db.Preload("Answers").Where("activity_id = ?", c.base.ID).Find(&parts).Error; err != nil {
			return nil, fmt.Errorf("load trivia outcomes: %w", err)
		}
		scores := make(map[string]int64, len(parts))
		for _, e := range scoreTrivia(correct, parts) {
			scores[e.participationID] = e.score
		}
		for _, p := range parts {
			add(p.ID, p.UserID, scores[p.ID], p.ScoredOutcome)
		}

	default:
		return nil, invalidArgument("%s contests are not ranked", c.kind)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].ParticipationID < out[j].ParticipationID
	})
	return out, nil
}

// contestRef is a loaded scored contest of either kind.
type contestRef struct {
	kind       models.ActivityKind
	base       models.ActivityBase
	state      models.GameState
	prediction *models.PredictionGame
	trivia     *models.TriviaGame
}

func (c *contestRef) model() interface{} {
	if c.kind == models.KindPrediction {
		return &models.PredictionGame{}
	}
	return &models.TriviaGame{}
}

func (c *contestRef) participationModel() interface{} {
	if c.kind == models.KindPrediction {
		return &models.PredictionParticipation{}
	}
	return &models.TriviaParticipation{}
}

// loadContest resolves a contest id against both scored tables. With lock
// set, the row is read FOR UPDATE so concurrent finishes serialize on it.
func loadContest(db *gorm.DB, contestID string, lock bool) (*contestRef, error) {
	query := func() *gorm.DB {
		if lock {
			return db.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		return db
	}

	var pg models.PredictionGame
	err := query().Where("id = ?", contestID).First(&pg).Error
	if err == nil {
		return &contestRef{kind: models.KindPrediction, base: pg.ActivityBase, state: pg.GameState, prediction: &pg}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load prediction game: %w", err)
	}

	var tg models.TriviaGame
	err = query().Where("id = ?", contestID).First(&tg).Error
	if err != nil {
		return nil, notFoundOr(err, ErrContestNotFound, "load trivia game")
	}
	return &contestRef{kind: models.KindTrivia, base: tg.ActivityBase, state: tg.GameState, trivia: &tg}, nil
}

func (s *RankingService) rankContest(db *gorm.DB, c *contestRef) ([]models.RankedResult, error) {
	var entries []scoredEntry
	switch c.kind {
	case models.KindPrediction:
		if !c.prediction.HasResult() {
			return nil, ErrResultNotRecorded
		}
		var parts []models.PredictionParticipation
		if err := db.Where("activity_id = ?", c.base.ID).Find(&parts).Error; err != nil {
			return nil, fmt.Errorf("load prediction participations: %w", err)
		}
		entries = scorePredictions(*c.prediction, parts)
		orderPredictionEntries(entries, s.Policy.Prediction)

	case models.KindTrivia:
		var correct []models.TriviaOption
		err := db.Model(&models.TriviaOption{}).
			Joins("JOIN trivia_questions ON trivia_questions.id = trivia_options.question_id").
			Where("trivia_questions.game_id = ? AND trivia_options.is_correct = ?", c.base.ID, true).
			Find(&correct).Error
		if err != nil {
			return nil, fmt.Errorf("load trivia answer key: %w", err)
		}
		var parts []models.TriviaParticipation
		if err := db.Preload("Answers").Where("activity_id = ?", c.base.ID).Find(&parts).Error; err != nil {
			return nil, fmt.Errorf("load trivia participations: %w", err)
		}
		entries = scoreTrivia(correct, parts)
		orderTriviaEntries(entries, s.Policy.Trivia)

	default:
		return nil, invalidArgument("%s contests are not ranked", c.kind)
	}

	var table []models.RewardDistribution
	err := db.Where("contest_kind = ? AND contest_id = ?", c.kind, c.base.ID).Find(&table).Error
	if err != nil {
		return nil, fmt.Errorf("load reward distribution: %w", err)
	}
	return assignRanks(entries, table), nil
}

type scoredEntry struct {
	participationID string
	userID          string
	score           int64
	elapsedMs       int64
	submittedAt     time.Time
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// PredictionScore is the total goal distance from the real result; lower wins.
func PredictionScore(predMain, predOpp, actualMain, actualOpp int) int64 {
	return int64(absInt(predMain-actualMain) + absInt(predOpp-actualOpp))
}

func scorePredictions(g models.PredictionGame, parts []models.PredictionParticipation) []scoredEntry {
	out := make([]scoredEntry, 0, len(parts))
	for _, p := range parts {
		out = append(out, scoredEntry{
			participationID: p.ID,
			userID:          p.UserID,
			score:           PredictionScore(p.PredictedMainScore, p.PredictedOpponentScore, *g.ActualMainScore, *g.ActualOpponentScore),
			submittedAt:     p.CreatedAt,
		})
	}
	return out
}

// scoreTrivia counts, per participation, the answers that picked an option
// flagged correct for that same question.
func scoreTrivia(correct []models.TriviaOption, parts []models.TriviaParticipation) []scoredEntry {
	key := make(map[string]map[string]struct{}, len(correct))
	for _, o := range correct {
		if key[o.QuestionID] == nil {
			key[o.QuestionID] = make(map[string]struct{})
		}
		key[o.QuestionID][o.ID] = struct{}{}
	}

	out := make([]scoredEntry, 0, len(parts))
	for _, p := range parts {
		var score int64
		for _, a := range p.Answers {
			if _, ok := key[a.QuestionID][a.OptionID]; ok {
				score++
			}
		}
		out = append(out, scoredEntry{
			participationID: p.ID,
			userID:          p.UserID,
			score:           score,
			elapsedMs:       p.ElapsedMs,
			submittedAt:     p.CreatedAt,
		})
	}
	return out
}

// bySubmission reports (less, decided) for the submission-time tie-break.
func bySubmission(a, b scoredEntry, tb SubmissionTieBreak) (bool, bool) {
	if a.submittedAt.Equal(b.submittedAt) {
		return false, false
	}
	if tb == EarliestSubmissionFirst {
		return a.submittedAt.Before(b.submittedAt), true
	}
	return a.submittedAt.After(b.submittedAt), true
}

func orderPredictionEntries(entries []scoredEntry, tb SubmissionTieBreak) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.score != b.score {
			return a.score < b.score
		}
		if less, ok := bySubmission(a, b, tb); ok {
			return less
		}
		return a.participationID < b.participationID
	})
}

func orderTriviaEntries(entries []scoredEntry, tb SubmissionTieBreak) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.elapsedMs != b.elapsedMs {
			return a.elapsedMs < b.elapsedMs
		}
		if less, ok := bySubmission(a, b, tb); ok {
			return less
		}
		return a.participationID < b.participationID
	})
}

// assignRanks numbers ordered entries from 1 and attaches the payout whose
// winner order equals the rank. Ranks without a payout get zero.
func assignRanks(entries []scoredEntry, table []models.RewardDistribution) []models.RankedResult {
	byOrder := make(map[int]models.RewardDistribution, len(table))
	for _, d := range table {
		byOrder[d.WinnerOrder] = d
	}

	out := make([]models.RankedResult, 0, len(entries))
	for i, e := range entries {
		r := models.RankedResult{
			ParticipationID: e.participationID,
			UserID:          e.userID,
			Score:           e.score,
			Rank:            i + 1,
			RewardPrimary:   decimal.Zero,
			RewardSecondary: decimal.Zero,
		}
		if d, ok := byOrder[r.Rank]; ok {
			r.RewardPrimary = d.RewardPrimary
			r.RewardSecondary = d.RewardSecondary
			r.IsSent = true
		}
		out = append(out, r)
	}
	return out
}
