// models/kind.go
package models

// ActivityKind tags which physical table an activity lives in.
type ActivityKind string

const (
	KindCheckIn       ActivityKind = "check_in"
	KindMultiCheckIn  ActivityKind = "multi_check_in"
	KindSurvey        ActivityKind = "survey"
	KindMultiReferrer ActivityKind = "multi_referrer"

	KindPrediction ActivityKind = "prediction"
	KindTrivia     ActivityKind = "trivia"
	KindMilestone  ActivityKind = "milestone"
	KindMiniGame   ActivityKind = "mini_game"
)

// ActivityFamily groups kinds that share one feed.
type ActivityFamily string

const (
	FamilyChallenge ActivityFamily = "challenge"
	FamilyGame      ActivityFamily = "game"
)

var challengeKinds = []ActivityKind{KindCheckIn, KindMultiCheckIn, KindSurvey, KindMultiReferrer}
var gameKinds = []ActivityKind{KindPrediction, KindTrivia, KindMilestone, KindMiniGame}

// AllKinds lists every kind, challenges first.
func AllKinds() []ActivityKind {
	out := make([]ActivityKind, 0, len(challengeKinds)+len(gameKinds))
	out = append(out, challengeKinds...)
	return append(out, gameKinds...)
}

// KindsOf returns the kinds of a family. An empty family means every kind.
func KindsOf(f ActivityFamily) []ActivityKind {
	switch f {
	case FamilyChallenge:
		return append([]ActivityKind(nil), challengeKinds...)
	case FamilyGame:
		return append([]ActivityKind(nil), gameKinds...)
	case "":
		return AllKinds()
	}
	return nil
}

func (f ActivityFamily) Valid() bool {
	return f == FamilyChallenge || f == FamilyGame
}

func (k ActivityKind) Family() ActivityFamily {
	for _, g := range gameKinds {
		if g == k {
			return FamilyGame
		}
	}
	return FamilyChallenge
}

func (k ActivityKind) Valid() bool {
	for _, c := range AllKinds() {
		if c == k {
			return true
		}
	}
	return false
}

// HasEndedFlag reports whether the kind's table carries is_ended.
func (k ActivityKind) HasEndedFlag() bool {
	return k.Family() == FamilyGame
}

// Scored reports whether the kind is ranked and paid out on finish.
func (k ActivityKind) Scored() bool {
	return k == KindPrediction || k == KindTrivia
}
