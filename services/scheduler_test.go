package services

import (
	"context"
	"testing"
	"time"

	"fan-activity-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoFinisherSweep(t *testing.T) {
	db := newTestDB(t)
	h := time.Hour

	dueTrivia := &models.TriviaGame{ActivityBase: activity("g1", "Closed quiz", testNow.Add(-3*h), testNow.Add(-h))}
	liveTrivia := &models.TriviaGame{ActivityBase: activity("g1", "Live quiz", testNow.Add(-h), testNow.Add(h))}
	draftTrivia := &models.TriviaGame{ActivityBase: activity("g1", "Draft quiz", testNow.Add(-3*h), testNow.Add(-h))}
	draftTrivia.IsDraft = true
	for _, g := range []*models.TriviaGame{dueTrivia, liveTrivia, draftTrivia} {
		mustCreate(t, db, g)
	}
	withResult := seedPrediction(t, db, intPtr(1), intPtr(0))
	awaitingResult := seedPrediction(t, db, nil, nil)

	finisher := NewAutoFinisher(newFinish(db, GormLedger{}, nil), nil)
	n, err := finisher.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ended := func(m interface{}, id string) bool {
		var state struct{ IsEnded bool }
		require.NoError(t, db.Model(m).Select("is_ended").Where("id = ?", id).Scan(&state).Error)
		return state.IsEnded
	}
	assert.True(t, ended(&models.TriviaGame{}, dueTrivia.ID))
	assert.False(t, ended(&models.TriviaGame{}, liveTrivia.ID))
	assert.False(t, ended(&models.TriviaGame{}, draftTrivia.ID))
	assert.True(t, ended(&models.PredictionGame{}, withResult.ID))
	assert.False(t, ended(&models.PredictionGame{}, awaitingResult.ID))

	n, err = finisher.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
