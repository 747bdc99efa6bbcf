// services/participation_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"fan-activity-engine/logger"
	"fan-activity-engine/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ParticipationService accepts plays. Every write checks, in order: the
// activity exists, is published, is inside its window, is not ended, and the
// fan meets the balance threshold.
type ParticipationService struct {
	DB       *gorm.DB
	Balances BalanceReader
	Clock    func() time.Time
	log      *logger.Logger
}

func NewParticipationService(db *gorm.DB, balances BalanceReader, log *logger.Logger) *ParticipationService {
	return &ParticipationService{
		DB:       db,
		Balances: balances,
		Clock:    time.Now,
		log:      logger.OrNop(log).With("service", "ParticipationService"),
	}
}

type activityRecord interface {
	Activity() models.ActivityBase
}

type endable interface {
	Ended() bool
}

func checkOpen(record interface{}, now time.Time) error {
	base := record.(activityRecord).Activity()
	if base.IsDraft {
		return ErrActivityDraft
	}
	if !base.OpenAt(now) {
		return ErrOutsideWindow
	}
	if e, ok := record.(endable); ok && e.Ended() {
		return ErrActivityEnded
	}
	return nil
}

// play loads and gates the activity, then runs write in a transaction that
// holds a shared lock on the activity row, so a concurrent finish cannot slip
// in between the re-check and the insert.
func (s *ParticipationService) play(
	ctx context.Context,
	kind models.ActivityKind,
	activityID, userID string,
	write func(tx *gorm.DB, activity interface{}, now time.Time) error,
) error {
	if userID == "" {
		return invalidArgument("user id is required")
	}
	src, ok := kindRegistry[kind]
	if !ok {
		return invalidArgument("unknown activity kind %q", kind)
	}
	now := s.Clock().UTC()
	db := s.DB.WithContext(ctx)

	activity := src.newModel()
	if err := db.Where("id = ?", activityID).First(activity).Error; err != nil {
		return notFoundOr(err, ErrActivityNotFound, "load activity")
	}
	if err := checkOpen(activity, now); err != nil {
		return err
	}
	if threshold := activity.(activityRecord).Activity().MinBalance; threshold.IsPositive() {
		balance, err := s.Balances.Balance(ctx, userID)
		if err != nil {
			return err
		}
		if balance.LessThan(threshold) {
			return ErrInsufficientBalance
		}
	}

	return db.Transaction(func(tx *gorm.DB) error {
		locked := src.newModel()
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).Where("id = ?", activityID).First(locked).Error
		if err != nil {
			return notFoundOr(err, ErrActivityNotFound, "lock activity")
		}
		if err := checkOpen(locked, now); err != nil {
			return err
		}
		return write(tx, locked, now)
	})
}

// createOnce inserts a single-play record. The unique (activity_id, user_id)
// index backs up the pre-check under concurrency.
func createOnce(tx *gorm.DB, table string, record interface{}, activityID, userID string) error {
	var n int64
	if err := tx.Table(table).Where("activity_id = ? AND user_id = ?", activityID, userID).Count(&n).Error; err != nil {
		return fmt.Errorf("check existing play: %w", err)
	}
	if n > 0 {
		return ErrAlreadyPlayed
	}
	if err := tx.Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyPlayed
		}
		return fmt.Errorf("insert play: %w", err)
	}
	return nil
}

func (s *ParticipationService) PlayPrediction(ctx context.Context, gameID, userID string, mainScore, opponentScore int) (*models.PredictionParticipation, error) {
	if mainScore < 0 || opponentScore < 0 {
		return nil, invalidArgument("predicted scores must not be negative")
	}
	p := &models.PredictionParticipation{
		ActivityID:             gameID,
		UserID:                 userID,
		PredictedMainScore:     mainScore,
		PredictedOpponentScore: opponentScore,
	}
	err := s.play(ctx, models.KindPrediction, gameID, userID, func(tx *gorm.DB, _ interface{}, now time.Time) error {
		p.CreatedAt = now
		return createOnce(tx, models.TablePredictionParticipations, p, gameID, userID)
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("prediction accepted", "game_id", gameID, "user_id", userID)
	return p, nil
}

type TriviaAnswerInput struct {
	QuestionID string `json:"question_id"`
	OptionID   string `json:"option_id"`
}

func (s *ParticipationService) SubmitTrivia(ctx context.Context, gameID, userID string, elapsedMs int64, answers []TriviaAnswerInput) (*models.TriviaParticipation, error) {
	if elapsedMs < 0 {
		return nil, invalidArgument("elapsed time must not be negative")
	}
	seen := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		if _, dup := seen[a.QuestionID]; dup {
			return nil, invalidArgument("question %s answered twice", a.QuestionID)
		}
		seen[a.QuestionID] = struct{}{}
	}

	p := &models.TriviaParticipation{ActivityID: gameID, UserID: userID, ElapsedMs: elapsedMs}
	err := s.play(ctx, models.KindTrivia, gameID, userID, func(tx *gorm.DB, activity interface{}, now time.Time) error {
		game := activity.(*models.TriviaGame)
		if game.TimeLimitSeconds > 0 && elapsedMs > int64(game.TimeLimitSeconds)*1000 {
			return invalidArgument("elapsed time exceeds the %ds limit", game.TimeLimitSeconds)
		}

		var options []models.TriviaOption
		err := tx.Model(&models.TriviaOption{}).
			Joins("JOIN trivia_questions ON trivia_questions.id = trivia_options.question_id").
			Where("trivia_questions.game_id = ?", gameID).
			Find(&options).Error
		if err != nil {
			return fmt.Errorf("load trivia options: %w", err)
		}
		questionOf := make(map[string]string, len(options))
		for _, o := range options {
			questionOf[o.ID] = o.QuestionID
		}
		for _, a := range answers {
			if q, ok := questionOf[a.OptionID]; !ok || q != a.QuestionID {
				return invalidArgument("option %s does not belong to question %s", a.OptionID, a.QuestionID)
			}
			p.Answers = append(p.Answers, models.TriviaAnswer{QuestionID: a.QuestionID, OptionID: a.OptionID})
		}
		p.CreatedAt = now
		return createOnce(tx, models.TableTriviaParticipations, p, gameID, userID)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ParticipationService) SubmitSurvey(ctx context.Context, challengeID, userID string, answers json.RawMessage) (*models.SurveyParticipation, error) {
	if len(answers) == 0 || !json.Valid(answers) {
		return nil, invalidArgument("survey answers must be valid JSON")
	}
	p := &models.SurveyParticipation{ActivityID: challengeID, UserID: userID, Answers: datatypes.JSON(answers)}
	err := s.play(ctx, models.KindSurvey, challengeID, userID, func(tx *gorm.DB, _ interface{}, now time.Time) error {
		p.CreatedAt = now
		return createOnce(tx, models.TableSurveyParticipations, p, challengeID, userID)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ParticipationService) CheckIn(ctx context.Context, challengeID, userID string, lat, lng float64) (*models.CheckInParticipation, error) {
	p := &models.CheckInParticipation{ActivityID: challengeID, UserID: userID, Latitude: lat, Longitude: lng}
	err := s.play(ctx, models.KindCheckIn, challengeID, userID, func(tx *gorm.DB, activity interface{}, now time.Time) error {
		c := activity.(*models.CheckInChallenge)
		if distanceMeters(lat, lng, c.Latitude, c.Longitude) > c.RadiusMeters {
			return ErrOutOfRange
		}
		p.CreatedAt = now
		return createOnce(tx, models.TableCheckInParticipations, p, challengeID, userID)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// MultiCheckIn records a visit to one stop of the route. The first visit
// creates the participation; later visits append samples to it.
func (s *ParticipationService) MultiCheckIn(ctx context.Context, challengeID, userID string, lat, lng float64) (*models.MultiCheckInParticipation, error) {
	var out models.MultiCheckInParticipation
	err := s.play(ctx, models.KindMultiCheckIn, challengeID, userID, func(tx *gorm.DB, activity interface{}, now time.Time) error {
		c := activity.(*models.MultiCheckInChallenge)
		stop := -1
		for i, loc := range c.Locations {
			if distanceMeters(lat, lng, loc.Latitude, loc.Longitude) <= loc.RadiusMeters {
				stop = i
				break
			}
		}
		if stop < 0 {
			return ErrOutOfRange
		}

		err := tx.Where("activity_id = ? AND user_id = ?", challengeID, userID).First(&out).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("load multi check-in: %w", err)
		}
		fresh := errors.Is(err, gorm.ErrRecordNotFound)
		if fresh {
			out = models.MultiCheckInParticipation{ActivityID: challengeID, UserID: userID, CreatedAt: now}
		}

		visited := make(map[int]struct{}, len(out.Samples)+1)
		for _, smp := range out.Samples {
			visited[smp.Location] = struct{}{}
		}
		if _, dup := visited[stop]; dup {
			return ErrAlreadyPlayed
		}
		visited[stop] = struct{}{}
		out.Samples = append(out.Samples, models.LocationSample{Latitude: lat, Longitude: lng, Location: stop, RecordedAt: now})
		out.Completed = c.RequiredCheckIns > 0 && len(visited) >= c.RequiredCheckIns

		if fresh {
			return createOnce(tx, models.TableMultiCheckInParticipations, &out, challengeID, userID)
		}
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordInvitation credits referrerID with inviteeID. Invitations add up;
// each invitee can be credited once per challenge.
func (s *ParticipationService) RecordInvitation(ctx context.Context, challengeID, referrerID, inviteeID string) (*models.ReferralInvitation, error) {
	if inviteeID == "" {
		return nil, invalidArgument("invitee id is required")
	}
	if inviteeID == referrerID {
		return nil, ErrSelfReferral
	}
	inv := &models.ReferralInvitation{ActivityID: challengeID, UserID: referrerID, InviteeID: inviteeID}
	err := s.play(ctx, models.KindMultiReferrer, challengeID, referrerID, func(tx *gorm.DB, _ interface{}, now time.Time) error {
		var n int64
		err := tx.Model(&models.ReferralInvitation{}).
			Where("activity_id = ? AND invitee_id = ?", challengeID, inviteeID).
			Count(&n).Error
		if err != nil {
			return fmt.Errorf("check invitee: %w", err)
		}
		if n > 0 {
			return ErrInviteeClaimed
		}
		inv.CreatedAt = now
		if err := tx.Create(inv).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrInviteeClaimed
			}
			return fmt.Errorf("insert invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *ParticipationService) SubmitMiniGameScore(ctx context.Context, gameID, userID string, score int64) (*models.MiniGameParticipation, error) {
	if score < 0 {
		return nil, invalidArgument("score must not be negative")
	}
	p := &models.MiniGameParticipation{ActivityID: gameID, UserID: userID, Score: score}
	err := s.play(ctx, models.KindMiniGame, gameID, userID, func(tx *gorm.DB, _ interface{}, now time.Time) error {
		p.CreatedAt = now
		return createOnce(tx, models.TableMiniGameParticipations, p, gameID, userID)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// RecordMilestoneProgress raises the fan's progress; it never lowers it.
func (s *ParticipationService) RecordMilestoneProgress(ctx context.Context, gameID, userID string, progress int64) (*models.MilestoneParticipation, error) {
	if progress < 0 {
		return nil, invalidArgument("progress must not be negative")
	}
	var out models.MilestoneParticipation
	err := s.play(ctx, models.KindMilestone, gameID, userID, func(tx *gorm.DB, activity interface{}, now time.Time) error {
		g := activity.(*models.MilestoneGame)
		err := tx.Where("activity_id = ? AND user_id = ?", gameID, userID).First(&out).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			out = models.MilestoneParticipation{ActivityID: gameID, UserID: userID, Progress: progress, CreatedAt: now}
			if g.TargetValue > 0 && progress >= g.TargetValue {
				out.CompletedAt = &now
			}
			return createOnce(tx, models.TableMilestoneParticipations, &out, gameID, userID)
		case err != nil:
			return fmt.Errorf("load milestone progress: %w", err)
		}
		if progress <= out.Progress {
			return nil
		}
		out.Progress = progress
		if out.CompletedAt == nil && g.TargetValue > 0 && progress >= g.TargetValue {
			out.CompletedAt = &now
		}
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

const earthRadiusMeters = 6371000.0

// distanceMeters is the haversine great-circle distance.
func distanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}
