// services/ledger.go
package services

import (
	"fmt"

	"fan-activity-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger records pending payout transactions. Emit must be a no-op for a
// UniqueID that already exists and report whether a row was created.
type Ledger interface {
	Emit(tx *gorm.DB, entry *models.LedgerTransaction) (bool, error)
}

// LedgerKey is the idempotency key of a reward payout.
func LedgerKey(participationID, rewardType string) string {
	return participationID + ":" + rewardType
}

// RewardType names the ledger transaction type for a contest kind.
func RewardType(kind models.ActivityKind) string {
	return string(kind) + "_reward"
}

// GormLedger writes into ledger_transactions inside the caller's transaction.
type GormLedger struct{}

func (GormLedger) Emit(tx *gorm.DB, entry *models.LedgerTransaction) (bool, error) {
	if entry.UniqueID == "" {
		return false, fmt.Errorf("ledger entry without unique id")
	}
	if entry.Status == "" {
		entry.Status = models.LedgerStatusPending
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "unique_id"}},
		DoNothing: true,
	}).Create(entry)
	if res.Error != nil {
		return false, fmt.Errorf("insert ledger transaction %s: %w", entry.UniqueID, res.Error)
	}
	return res.RowsAffected == 1, nil
}
