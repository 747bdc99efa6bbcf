// services/balances.go
package services

import (
	"context"
	"errors"
	"fmt"

	"fan-activity-engine/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BalanceReader answers eligibility checks against a fan's balance.
type BalanceReader interface {
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
}

// WalletBalances reads the mirrored wallets table. Unknown users hold zero.
type WalletBalances struct {
	DB *gorm.DB
}

func (b WalletBalances) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var w models.Wallet
	err := b.DB.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("load wallet: %w", err)
	}
	return w.Balance, nil
}
