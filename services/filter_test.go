package services

import (
	"testing"
	"time"

	"fan-activity-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileFilterValidation(t *testing.T) {
	_, err := CompileFilter(FeedFilter{Window: "someday"}, testNow)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = CompileFilter(FeedFilter{Side: SideMine}, testNow)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = CompileFilter(FeedFilter{Side: "theirs", ViewerID: "fan-1"}, testNow)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	fs, err := CompileFilter(FeedFilter{}, testNow)
	require.NoError(t, err)
	assert.Equal(t, WindowAll, fs.Window())
	assert.Equal(t, SideAny, fs.Side())
}

func TestCompileFilterCopiesInput(t *testing.T) {
	groups := []string{"g2", "g1", "g2", "  "}
	fs, err := CompileFilter(FeedFilter{GroupIDs: groups, ViewerID: " fan-1 "}, testNow.In(time.FixedZone("CET", 3600)))
	require.NoError(t, err)

	groups[0] = "g9"
	assert.Equal(t, []string{"g1", "g2"}, fs.groupIDs)
	assert.Equal(t, "fan-1", fs.ViewerID())
	assert.Equal(t, time.UTC, fs.Now().Location())
	assert.True(t, fs.Now().Equal(testNow))
}

func TestWithSide(t *testing.T) {
	anon, err := CompileFilter(FeedFilter{}, testNow)
	require.NoError(t, err)
	_, err = anon.WithSide(SideMine)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	viewer, err := CompileFilter(FeedFilter{ViewerID: "fan-1"}, testNow)
	require.NoError(t, err)
	mine, err := viewer.WithSide(SideMine)
	require.NoError(t, err)
	assert.Equal(t, SideMine, mine.Side())
	assert.Equal(t, SideAny, viewer.Side(), "original is untouched")
}

func TestFilterMatches(t *testing.T) {
	h := time.Hour
	yes, no := true, false
	ongoing := models.ActivityRow{Kind: models.KindTrivia, GroupID: "g1", StartAt: testNow.Add(-h), EndAt: testNow.Add(h), IsEnded: &no, HasViewerParticipated: &yes}
	endedEarly := models.ActivityRow{Kind: models.KindTrivia, GroupID: "g2", StartAt: testNow.Add(-h), EndAt: testNow.Add(h), IsEnded: &yes}
	challengePast := models.ActivityRow{Kind: models.KindSurvey, GroupID: "g1", StartAt: testNow.Add(-3 * h), EndAt: testNow.Add(-h)}
	upcomingDraft := models.ActivityRow{Kind: models.KindCheckIn, GroupID: "g3", StartAt: testNow.Add(h), EndAt: testNow.Add(2 * h), IsDraft: true}

	compile := func(f FeedFilter) FilterSpec {
		fs, err := CompileFilter(f, testNow)
		require.NoError(t, err)
		return fs
	}

	ongoingSpec := compile(FeedFilter{Window: WindowOngoing})
	assert.True(t, ongoingSpec.Matches(ongoing))
	assert.False(t, ongoingSpec.Matches(endedEarly))

	pastSpec := compile(FeedFilter{Window: WindowPast})
	assert.True(t, pastSpec.Matches(endedEarly))
	assert.True(t, pastSpec.Matches(challengePast))
	assert.False(t, pastSpec.Matches(ongoing))

	upcomingSpec := compile(FeedFilter{Window: WindowUpcoming})
	assert.True(t, upcomingSpec.Matches(upcomingDraft))

	published := compile(FeedFilter{IsDraft: &no})
	assert.False(t, published.Matches(upcomingDraft))

	endedSpec := compile(FeedFilter{IsEnded: &yes})
	assert.True(t, endedSpec.Matches(endedEarly))
	assert.True(t, endedSpec.Matches(challengePast))
	assert.False(t, endedSpec.Matches(upcomingDraft))

	groups := compile(FeedFilter{GroupIDs: []string{"g3", "g2"}})
	assert.True(t, groups.Matches(endedEarly))
	assert.False(t, groups.Matches(ongoing))

	mine := compile(FeedFilter{ViewerID: "fan-1", Side: SideMine})
	other := compile(FeedFilter{ViewerID: "fan-1", Side: SideOther})
	for _, r := range []models.ActivityRow{ongoing, endedEarly, challengePast, upcomingDraft} {
		assert.NotEqual(t, mine.Matches(r), other.Matches(r))
	}
}
