package services

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"fan-activity-engine/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedPrediction(t *testing.T, db *gorm.DB, actualMain, actualOpp *int) *models.PredictionGame {
	t.Helper()
	g := &models.PredictionGame{
		ActivityBase:        activity("g1", "Derby score", testNow.Add(-3*time.Hour), testNow.Add(-time.Hour)),
		MainTeamName:        "Arsenal",
		OpponentTeamName:    "Spurs",
		ActualMainScore:     actualMain,
		ActualOpponentScore: actualOpp,
	}
	if actualMain != nil {
		at := testNow.Add(-30 * time.Minute)
		g.ResultRecordedAt = &at
	}
	mustCreate(t, db, g)
	return g
}

func predict(t *testing.T, db *gorm.DB, gameID, userID string, main, opp int, at time.Time) *models.PredictionParticipation {
	t.Helper()
	p := &models.PredictionParticipation{
		ActivityID:             gameID,
		UserID:                 userID,
		PredictedMainScore:     main,
		PredictedOpponentScore: opp,
		CreatedAt:              at,
	}
	mustCreate(t, db, p)
	return p
}

func setRewards(t *testing.T, db *gorm.DB, kind models.ActivityKind, contestID string, rows ...[3]int64) {
	t.Helper()
	for _, r := range rows {
		mustCreate(t, db, &models.RewardDistribution{
			ContestKind:     kind,
			ContestID:       contestID,
			WinnerOrder:     int(r[0]),
			RewardPrimary:   decimal.NewFromInt(r[1]),
			RewardSecondary: decimal.NewFromInt(r[2]),
		})
	}
}

// seedTrivia creates a two-question game. The returned map holds option ids
// keyed "q<n>-right" and "q<n>-wrong", plus "q<n>" for the question ids.
func seedTrivia(t *testing.T, db *gorm.DB) (*models.TriviaGame, map[string]string) {
	t.Helper()
	g := &models.TriviaGame{
		ActivityBase:     activity("g1", "Derby quiz", testNow.Add(-time.Hour), testNow.Add(time.Hour)),
		TimeLimitSeconds: 60,
		Questions: []models.TriviaQuestion{
			{Prompt: "Founded?", SortOrder: 1, Options: []models.TriviaOption{
				{Label: "1886", IsCorrect: true, SortOrder: 1},
				{Label: "1899", SortOrder: 2},
			}},
			{Prompt: "Stadium?", SortOrder: 2, Options: []models.TriviaOption{
				{Label: "Highbury", SortOrder: 1},
				{Label: "Emirates", IsCorrect: true, SortOrder: 2},
			}},
		},
	}
	mustCreate(t, db, g)

	ids := make(map[string]string)
	for i, q := range g.Questions {
		n := fmt.Sprintf("q%d", i+1)
		ids[n] = q.ID
		for _, o := range q.Options {
			if o.IsCorrect {
				ids[n+"-right"] = o.ID
			} else {
				ids[n+"-wrong"] = o.ID
			}
		}
	}
	return g, ids
}

func answerTrivia(t *testing.T, db *gorm.DB, g *models.TriviaGame, ids map[string]string, userID string, elapsed int64, at time.Time, picks ...string) *models.TriviaParticipation {
	t.Helper()
	p := &models.TriviaParticipation{ActivityID: g.ID, UserID: userID, ElapsedMs: elapsed, CreatedAt: at}
	for i, pick := range picks {
		q := fmt.Sprintf("q%d", i+1)
		p.Answers = append(p.Answers, models.TriviaAnswer{QuestionID: ids[q], OptionID: ids[q+"-"+pick]})
	}
	mustCreate(t, db, p)
	return p
}

func resultsByUser(results []models.RankedResult) map[string]models.RankedResult {
	out := make(map[string]models.RankedResult, len(results))
	for _, r := range results {
		out[r.UserID] = r
	}
	return out
}

func users(results []models.RankedResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.UserID
	}
	return out
}

func TestPredictionScore(t *testing.T) {
	assert.Equal(t, int64(0), PredictionScore(2, 0, 2, 0))
	assert.Equal(t, int64(1), PredictionScore(2, 1, 2, 0))
	assert.Equal(t, int64(2), PredictionScore(1, 1, 2, 0))
	assert.Equal(t, int64(7), PredictionScore(0, 5, 2, 0))
}

func TestRankPredictionScenario(t *testing.T) {
	db := newTestDB(t)
	g := seedPrediction(t, db, intPtr(2), intPtr(0))
	p1 := predict(t, db, g.ID, "fan-1", 2, 1, testNow.Add(-2*time.Hour))
	p2 := predict(t, db, g.ID, "fan-2", 1, 1, testNow.Add(-2*time.Hour+time.Minute))
	setRewards(t, db, models.KindPrediction, g.ID, [3]int64{1, 100, 5})

	svc := NewRankingService(db, DefaultRankingPolicy(), nil)
	results, err := svc.Rank(context.Background(), g.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)

	first, second := results[0], results[1]
	assert.Equal(t, p1.ID, first.ParticipationID)
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, int64(1), first.Score)
	assert.True(t, first.RewardPrimary.Equal(decimal.NewFromInt(100)))
	assert.True(t, first.RewardSecondary.Equal(decimal.NewFromInt(5)))
	assert.True(t, first.IsSent)

	assert.Equal(t, p2.ID, second.ParticipationID)
	assert.Equal(t, 2, second.Rank)
	assert.Equal(t, int64(2), second.Score)
	assert.True(t, second.RewardPrimary.IsZero())
	assert.True(t, second.RewardSecondary.IsZero())
	assert.False(t, second.IsSent)
}

// Standings already published were ranked latest submission first; keep it.
func TestRankPredictionTieLatestSubmissionFirst(t *testing.T) {
	db := newTestDB(t)
	g := seedPrediction(t, db, intPtr(1), intPtr(1))
	predict(t, db, g.ID, "early", 2, 1, testNow.Add(-2*time.Hour))
	predict(t, db, g.ID, "late", 1, 2, testNow.Add(-90*time.Minute))
	predict(t, db, g.ID, "exact", 1, 1, testNow.Add(-80*time.Minute))

	svc := NewRankingService(db, DefaultRankingPolicy(), nil)
	results, err := svc.Rank(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"exact", "late", "early"}, users(results))
}

func TestRankPredictionTieEarliestSubmissionFirst(t *testing.T) {
	db := newTestDB(t)
	g := seedPrediction(t, db, intPtr(1), intPtr(1))
	predict(t, db, g.ID, "early", 2, 1, testNow.Add(-2*time.Hour))
	predict(t, db, g.ID, "late", 1, 2, testNow.Add(-90*time.Minute))

	svc := NewRankingService(db, RankingPolicy{Prediction: EarliestSubmissionFirst, Trivia: LatestSubmissionFirst}, nil)
	results, err := svc.Rank(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, users(results))
}

func TestRankPredictionWithoutResult(t *testing.T) {
	db := newTestDB(t)
	g := seedPrediction(t, db, nil, nil)
	predict(t, db, g.ID, "fan-1", 1, 0, testNow.Add(-2*time.Hour))

	_, err := NewRankingService(db, DefaultRankingPolicy(), nil).Rank(context.Background(), g.ID)
	assert.ErrorIs(t, err, ErrResultNotRecorded)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRankUnknownContest(t *testing.T) {
	db := newTestDB(t)
	_, err := NewRankingService(db, DefaultRankingPolicy(), nil).Rank(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrContestNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRankNoParticipants(t *testing.T) {
	db := newTestDB(t)
	g, _ := seedTrivia(t, db)
	setRewards(t, db, models.KindTrivia, g.ID, [3]int64{1, 50, 0})

	results, err := NewRankingService(db, DefaultRankingPolicy(), nil).Rank(context.Background(), g.ID)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestRankTrivia(t *testing.T) {
	db := newTestDB(t)
	g, ids := seedTrivia(t, db)
	base := testNow.Add(-30 * time.Minute)
	answerTrivia(t, db, g, ids, "slow-perfect", 9000, base, "right", "right")
	answerTrivia(t, db, g, ids, "fast-perfect", 5000, base.Add(time.Second), "right", "right")
	answerTrivia(t, db, g, ids, "half-early", 1000, base.Add(2*time.Second), "right", "wrong")
	answerTrivia(t, db, g, ids, "half-late", 1000, base.Add(3*time.Second), "wrong", "right")
	answerTrivia(t, db, g, ids, "blank", 500, base.Add(4*time.Second))
	setRewards(t, db, models.KindTrivia, g.ID, [3]int64{1, 30, 3}, [3]int64{3, 10, 0})

	results, err := NewRankingService(db, DefaultRankingPolicy(), nil).Rank(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"fast-perfect", "slow-perfect", "half-late", "half-early", "blank"}, users(results))

	byUser := resultsByUser(results)
	assert.Equal(t, int64(2), byUser["fast-perfect"].Score)
	assert.Equal(t, int64(1), byUser["half-early"].Score)
	assert.Equal(t, int64(0), byUser["blank"].Score)

	assert.True(t, byUser["fast-perfect"].IsSent)
	assert.False(t, byUser["slow-perfect"].IsSent, "order 2 has no payout")
	assert.True(t, byUser["half-late"].IsSent)
	assert.True(t, byUser["half-late"].RewardPrimary.Equal(decimal.NewFromInt(10)))
	assert.False(t, byUser["blank"].IsSent)
}

func TestRankTriviaIgnoresCorrectOptionOfAnotherQuestion(t *testing.T) {
	correct := []models.TriviaOption{
		{ID: "o1", QuestionID: "q1", IsCorrect: true},
		{ID: "o2", QuestionID: "q2", IsCorrect: true},
	}
	parts := []models.TriviaParticipation{{
		ID:     "p1",
		UserID: "fan-1",
		Answers: []models.TriviaAnswer{
			{QuestionID: "q1", OptionID: "o2"},
			{QuestionID: "q2", OptionID: "o2"},
		},
	}}
	entries := scoreTrivia(correct, parts)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].score)
}

func TestAssignRanksSparseDistribution(t *testing.T) {
	entries := []scoredEntry{{participationID: "a"}, {participationID: "b"}, {participationID: "c"}}
	table := []models.RewardDistribution{
		{WinnerOrder: 3, RewardPrimary: decimal.NewFromInt(5), RewardSecondary: decimal.Zero},
		{WinnerOrder: 1, RewardPrimary: decimal.NewFromInt(20), RewardSecondary: decimal.NewFromInt(2)},
		{WinnerOrder: 7, RewardPrimary: decimal.NewFromInt(1), RewardSecondary: decimal.Zero},
	}
	results := assignRanks(entries, table)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
	}
	assert.True(t, results[0].IsSent)
	assert.False(t, results[1].IsSent)
	assert.True(t, results[1].RewardPrimary.IsZero())
	assert.True(t, results[2].IsSent)
	assert.True(t, results[2].RewardPrimary.Equal(decimal.NewFromInt(5)))
}

func TestOrderingIsDeterministicUnderShuffle(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(7))
	entries := make([]scoredEntry, 40)
	for i := range entries {
		entries[i] = scoredEntry{
			participationID: fmt.Sprintf("p%02d", i),
			score:           int64(rng.Intn(4)),
			elapsedMs:       int64(rng.Intn(3) * 1000),
			submittedAt:     base.Add(time.Duration(rng.Intn(5)) * time.Second),
		}
	}

	for _, tb := range []SubmissionTieBreak{LatestSubmissionFirst, EarliestSubmissionFirst} {
		for name, order := range map[string]func([]scoredEntry, SubmissionTieBreak){
			"prediction": orderPredictionEntries,
			"trivia":     orderTriviaEntries,
		} {
			want := append([]scoredEntry(nil), entries...)
			order(want, tb)
			for round := 0; round < 5; round++ {
				got := append([]scoredEntry(nil), entries...)
				rng.Shuffle(len(got), func(i, j int) { got[i], got[j] = got[j], got[i] })
				order(got, tb)
				assert.Equal(t, want, got, "%s/%s round %d", name, tb, round)
			}

			results := assignRanks(want, nil)
			for i, r := range results {
				assert.Equal(t, i+1, r.Rank)
			}
		}
	}
}

func TestParseTieBreak(t *testing.T) {
	tb, err := ParseTieBreak("")
	require.NoError(t, err)
	assert.Equal(t, LatestSubmissionFirst, tb)

	tb, err = ParseTieBreak(" Earliest_First ")
	require.NoError(t, err)
	assert.Equal(t, EarliestSubmissionFirst, tb)

	_, err = ParseTieBreak("random")
	assert.Error(t, err)
}
