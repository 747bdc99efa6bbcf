// workers/team_sync_worker.go
package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fan-activity-engine/logger"
	"fan-activity-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TeamSyncWorker mirrors sponsoring teams into the teams table so feeds can
// sort by group name.
type TeamSyncWorker struct {
	db       *gorm.DB
	client   *SyncClient
	path     string
	interval time.Duration
	log      *logger.Logger
}

func NewTeamSyncWorker(db *gorm.DB, client *SyncClient, path string, interval time.Duration, log *logger.Logger) *TeamSyncWorker {
	return &TeamSyncWorker{
		db:       db,
		client:   client,
		path:     path,
		interval: interval,
		log:      logger.OrNop(log).With("worker", "team_sync"),
	}
}

func (w *TeamSyncWorker) Start(ctx context.Context) {
	w.log.Info("starting team sync worker", "interval", w.interval)
	go w.run(ctx)
}

func (w *TeamSyncWorker) run(ctx context.Context) {
	if _, err := w.SyncOnce(ctx); err != nil {
		w.log.Warn("initial team sync failed", "error", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				w.log.Error("team sync failed", "error", err)
			}
		case <-ctx.Done():
			w.log.Info("team sync worker stopped")
			return
		}
	}
}

// lastSyncTime is the newest mirrored updated_at, or the zero time.
func (w *TeamSyncWorker) lastSyncTime(ctx context.Context) (time.Time, error) {
	var latest models.Team
	err := w.db.WithContext(ctx).Order("updated_at DESC").First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read last team sync: %w", err)
	}
	return latest.UpdatedAt, nil
}

// SyncOnce pulls every team changed since the last mirrored one and upserts
// them. It returns how many rows were received.
func (w *TeamSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	since, err := w.lastSyncTime(ctx)
	if err != nil {
		return 0, err
	}

	var response struct {
		Teams []models.Team `json:"teams"`
	}
	if err := w.client.getChanges(ctx, w.path, since, &response); err != nil {
		return 0, err
	}
	if len(response.Teams) == 0 {
		w.log.Debug("no team changes", "since", since)
		return 0, nil
	}

	err = w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "logo_url", "updated_at"}),
	}).Create(&response.Teams).Error
	if err != nil {
		return 0, fmt.Errorf("upsert %d team(s): %w", len(response.Teams), err)
	}
	w.log.Info("teams synced", "count", len(response.Teams))
	return len(response.Teams), nil
}
