// services/projection.go
package services

import (
	"strings"

	"fan-activity-engine/models"
)

// kindSource describes where one activity kind lives. Every identifier here
// is a constant; nothing a caller sends is ever spliced into SQL.
type kindSource struct {
	kind          models.ActivityKind
	table         string
	participation string // table holding (activity_id, user_id) play records
	newModel      func() interface{}
}

var kindRegistry = map[models.ActivityKind]kindSource{
	models.KindCheckIn: {
		kind: models.KindCheckIn, table: models.TableCheckInChallenges,
		participation: models.TableCheckInParticipations,
		newModel:      func() interface{} { return &models.CheckInChallenge{} },
	},
	models.KindMultiCheckIn: {
		kind: models.KindMultiCheckIn, table: models.TableMultiCheckInChallenges,
		participation: models.TableMultiCheckInParticipations,
		newModel:      func() interface{} { return &models.MultiCheckInChallenge{} },
	},
	models.KindSurvey: {
		kind: models.KindSurvey, table: models.TableSurveyChallenges,
		participation: models.TableSurveyParticipations,
		newModel:      func() interface{} { return &models.SurveyChallenge{} },
	},
	models.KindMultiReferrer: {
		kind: models.KindMultiReferrer, table: models.TableMultiReferrerChallenges,
		participation: models.TableReferralInvitations,
		newModel:      func() interface{} { return &models.MultiReferrerChallenge{} },
	},
	models.KindPrediction: {
		kind: models.KindPrediction, table: models.TablePredictionGames,
		participation: models.TablePredictionParticipations,
		newModel:      func() interface{} { return &models.PredictionGame{} },
	},
	models.KindTrivia: {
		kind: models.KindTrivia, table: models.TableTriviaGames,
		participation: models.TableTriviaParticipations,
		newModel:      func() interface{} { return &models.TriviaGame{} },
	},
	models.KindMilestone: {
		kind: models.KindMilestone, table: models.TableMilestoneGames,
		participation: models.TableMilestoneParticipations,
		newModel:      func() interface{} { return &models.MilestoneGame{} },
	},
	models.KindMiniGame: {
		kind: models.KindMiniGame, table: models.TableMiniGames,
		participation: models.TableMiniGameParticipations,
		newModel:      func() interface{} { return &models.MiniGame{} },
	},
}

// sourcesFor returns the registry entries of a family in stable kind order.
func sourcesFor(f models.ActivityFamily) []kindSource {
	kinds := models.KindsOf(f)
	out := make([]kindSource, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, kindRegistry[k])
	}
	return out
}

func (s kindSource) col(name string) string {
	return s.table + "." + name
}

// participatedBy is a correlated subquery with one bind slot for the user id.
func (s kindSource) participatedBy() string {
	return "EXISTS (SELECT 1 FROM " + s.participation + " p WHERE p.activity_id = " +
		s.col("id") + " AND p.user_id = ?)"
}

func (s kindSource) teamJoin() string {
	return "LEFT JOIN " + models.TableTeams + " ON " + models.TableTeams + ".id = " + s.col("group_id")
}

// projection maps the kind's table onto models.ActivityRow columns.
// is_ended is only selected for kinds that carry it, and
// has_viewer_participated only when a viewer is known.
func (s kindSource) projection(viewerID string) (string, []interface{}) {
	cols := []string{
		s.col("id") + " AS id",
		s.col("group_id") + " AS group_id",
		"COALESCE(" + models.TableTeams + ".name, '') AS group_name",
		s.col("title") + " AS title",
		s.col("description") + " AS description",
		s.col("start_at") + " AS start_at",
		s.col("end_at") + " AS end_at",
		s.col("is_draft") + " AS is_draft",
		s.col("reward_primary") + " AS reward_primary",
		s.col("reward_secondary") + " AS reward_secondary",
	}
	if s.kind.HasEndedFlag() {
		cols = append(cols, s.col("is_ended")+" AS is_ended")
	}
	var args []interface{}
	if viewerID != "" {
		cols = append(cols, s.participatedBy()+" AS has_viewer_participated")
		args = append(args, viewerID)
	}
	return strings.Join(cols, ", "), args
}
