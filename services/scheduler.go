// services/scheduler.go
package services

import (
	"context"
	"errors"
	"time"

	"fan-activity-engine/logger"
	"fan-activity-engine/models"

	"github.com/go-co-op/gocron/v2"
)

// AutoFinisher closes contests whose window has passed. Prediction games wait
// for their result; trivia games close as soon as they end.
type AutoFinisher struct {
	Finish *FinishService
	log    *logger.Logger
	sched  gocron.Scheduler
}

func NewAutoFinisher(finish *FinishService, log *logger.Logger) *AutoFinisher {
	return &AutoFinisher{Finish: finish, log: logger.OrNop(log).With("service", "AutoFinisher")}
}

// Start runs Sweep every interval until Stop.
func (a *AutoFinisher) Start(ctx context.Context, interval time.Duration) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if n, err := a.Sweep(ctx); err != nil {
				a.log.Error("auto-finish sweep failed", "error", err)
			} else if n > 0 {
				a.log.Info("auto-finished contests", "count", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return err
	}
	sched.Start()
	a.sched = sched
	return nil
}

func (a *AutoFinisher) Stop() {
	if a.sched != nil {
		_ = a.sched.Shutdown()
	}
}

// Sweep finishes every due contest once and returns how many it closed.
func (a *AutoFinisher) Sweep(ctx context.Context) (int, error) {
	now := a.Finish.Clock().UTC()
	db := a.Finish.DB.WithContext(ctx)

	var due []string
	var ids []string
	err := db.Model(&models.TriviaGame{}).
		Where("is_draft = ? AND is_ended = ? AND end_at < ?", false, false, now).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	due = append(due, ids...)

	ids = nil
	err = db.Model(&models.PredictionGame{}).
		Where("is_draft = ? AND is_ended = ? AND end_at < ? AND result_recorded_at IS NOT NULL", false, false, now).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	due = append(due, ids...)

	finished := 0
	for _, id := range due {
		if _, err := a.Finish.FinishContest(ctx, id); err != nil {
			if errors.Is(err, ErrContestEnded) {
				continue
			}
			a.log.Warn("auto-finish skipped contest", "contest_id", id, "error", err)
			continue
		}
		finished++
	}
	return finished, nil
}
