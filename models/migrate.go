// models/migrate.go
package models

import "gorm.io/gorm"

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&Team{},
		&Wallet{},

		&CheckInChallenge{},
		&MultiCheckInChallenge{},
		&SurveyChallenge{},
		&MultiReferrerChallenge{},
		&CheckInParticipation{},
		&MultiCheckInParticipation{},
		&SurveyParticipation{},
		&ReferralInvitation{},

		&PredictionGame{},
		&TriviaGame{},
		&TriviaQuestion{},
		&TriviaOption{},
		&MilestoneGame{},
		&MiniGame{},
		&PredictionParticipation{},
		&TriviaParticipation{},
		&TriviaAnswer{},
		&MilestoneParticipation{},
		&MiniGameParticipation{},

		&RewardDistribution{},
		&LedgerTransaction{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
