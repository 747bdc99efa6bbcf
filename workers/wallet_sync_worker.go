// workers/wallet_sync_worker.go
package workers

import (
	"context"
	"fmt"
	"time"

	"fan-activity-engine/logger"
	"fan-activity-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletSyncWorker mirrors fan balances into the wallets table, which the
// participation eligibility check reads.
type WalletSyncWorker struct {
	db       *gorm.DB
	client   *SyncClient
	path     string
	interval time.Duration
	now      func() time.Time
	since    time.Time
	log      *logger.Logger
}

func NewWalletSyncWorker(db *gorm.DB, client *SyncClient, path string, interval time.Duration, log *logger.Logger) *WalletSyncWorker {
	return &WalletSyncWorker{
		db:       db,
		client:   client,
		path:     path,
		interval: interval,
		now:      time.Now,
		log:      logger.OrNop(log).With("worker", "wallet_sync"),
	}
}

// Start polls until ctx is cancelled. The first poll is a full pull.
func (w *WalletSyncWorker) Start(ctx context.Context) {
	w.log.Info("starting wallet balance polling", "interval", w.interval)
	go func() {
		if _, err := w.SyncOnce(ctx); err != nil {
			w.log.Warn("initial wallet sync failed", "error", err)
		}
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				w.log.Info("wallet polling stopped")
				return
			case <-ticker.C:
				if _, err := w.SyncOnce(ctx); err != nil {
					w.log.Error("wallet sync failed", "error", err)
				}
			}
		}
	}()
}

// SyncOnce pulls balances changed since the previous successful poll. The
// window only advances on success, so a failed poll is retried in full.
func (w *WalletSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	pollStarted := w.now().UTC()

	var response struct {
		Wallets []models.Wallet `json:"wallets"`
	}
	if err := w.client.getChanges(ctx, w.path, w.since, &response); err != nil {
		return 0, err
	}
	if len(response.Wallets) > 0 {
		err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_at"}),
		}).Create(&response.Wallets).Error
		if err != nil {
			return 0, fmt.Errorf("upsert %d wallet(s): %w", len(response.Wallets), err)
		}
		w.log.Info("wallet balances synced", "count", len(response.Wallets))
	}
	w.since = pollStarted
	return len(response.Wallets), nil
}
