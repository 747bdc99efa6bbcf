// models/challenge.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TableCheckInChallenges       = "check_in_challenges"
	TableMultiCheckInChallenges  = "multi_check_in_challenges"
	TableSurveyChallenges        = "survey_challenges"
	TableMultiReferrerChallenges = "multi_referrer_challenges"

	TableCheckInParticipations      = "check_in_participations"
	TableMultiCheckInParticipations = "multi_check_in_participations"
	TableSurveyParticipations       = "survey_participations"
	TableReferralInvitations        = "referral_invitations"
)

// CheckInChallenge asks the fan to show up at one venue.
type CheckInChallenge struct {
	ActivityBase
	VenueName    string  `gorm:"size:255" json:"venue_name"`
	Latitude     float64 `gorm:"not null" json:"latitude"`
	Longitude    float64 `gorm:"not null" json:"longitude"`
	RadiusMeters float64 `gorm:"not null" json:"radius_meters"`
}

func (CheckInChallenge) TableName() string { return TableCheckInChallenges }

func (c CheckInChallenge) Project() ActivityRow { return c.ActivityBase.project(KindCheckIn) }

// CheckInLocation is one stop of a multi check-in route.
type CheckInLocation struct {
	Name         string  `json:"name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
}

type MultiCheckInChallenge struct {
	ActivityBase
	Locations        datatypes.JSONSlice[CheckInLocation] `json:"locations"`
	RequiredCheckIns int                                  `gorm:"not null" json:"required_check_ins"`
}

func (MultiCheckInChallenge) TableName() string { return TableMultiCheckInChallenges }

func (c MultiCheckInChallenge) Project() ActivityRow {
	return c.ActivityBase.project(KindMultiCheckIn)
}

type SurveyChallenge struct {
	ActivityBase
	Questions datatypes.JSON `json:"questions"`
}

func (SurveyChallenge) TableName() string { return TableSurveyChallenges }

func (c SurveyChallenge) Project() ActivityRow { return c.ActivityBase.project(KindSurvey) }

// MultiReferrerChallenge rewards fans for bringing in new fans.
type MultiReferrerChallenge struct {
	ActivityBase
	RequiredInvites int `gorm:"not null" json:"required_invites"`
}

func (MultiReferrerChallenge) TableName() string { return TableMultiReferrerChallenges }

func (c MultiReferrerChallenge) Project() ActivityRow {
	return c.ActivityBase.project(KindMultiReferrer)
}

type CheckInParticipation struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	ActivityID string    `gorm:"size:36;not null;uniqueIndex:idx_check_in_play" json:"activity_id"`
	UserID     string    `gorm:"size:64;not null;uniqueIndex:idx_check_in_play;index" json:"user_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	CreatedAt  time.Time `json:"created_at"`
}

func (CheckInParticipation) TableName() string { return TableCheckInParticipations }

func (p *CheckInParticipation) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// LocationSample is one recorded visit on a multi check-in route.
type LocationSample struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Location   int       `json:"location"`
	RecordedAt time.Time `json:"recorded_at"`
}

type MultiCheckInParticipation struct {
	ID         string                              `gorm:"primaryKey;size:36" json:"id"`
	ActivityID string                              `gorm:"size:36;not null;uniqueIndex:idx_multi_check_in_play" json:"activity_id"`
	UserID     string                              `gorm:"size:64;not null;uniqueIndex:idx_multi_check_in_play;index" json:"user_id"`
	Samples    datatypes.JSONSlice[LocationSample] `json:"samples"`
	Completed  bool                                `gorm:"not null" json:"completed"`
	CreatedAt  time.Time                           `json:"created_at"`
	UpdatedAt  time.Time                           `json:"updated_at"`
}

func (MultiCheckInParticipation) TableName() string { return TableMultiCheckInParticipations }

func (p *MultiCheckInParticipation) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type SurveyParticipation struct {
	ID         string         `gorm:"primaryKey;size:36" json:"id"`
	ActivityID string         `gorm:"size:36;not null;uniqueIndex:idx_survey_play" json:"activity_id"`
	UserID     string         `gorm:"size:64;not null;uniqueIndex:idx_survey_play;index" json:"user_id"`
	Answers    datatypes.JSON `json:"answers"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (SurveyParticipation) TableName() string { return TableSurveyParticipations }

func (p *SurveyParticipation) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// ReferralInvitation is additive: one row per invitee, many per referrer.
type ReferralInvitation struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	ActivityID string    `gorm:"size:36;not null;uniqueIndex:idx_referral_invitee" json:"activity_id"`
	UserID     string    `gorm:"size:64;not null;index" json:"user_id"` // referrer
	InviteeID  string    `gorm:"size:64;not null;uniqueIndex:idx_referral_invitee" json:"invitee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ReferralInvitation) TableName() string { return TableReferralInvitations }

func (p *ReferralInvitation) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
