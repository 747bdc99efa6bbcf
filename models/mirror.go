// models/mirror.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TableTeams   = "teams"
	TableWallets = "wallets"
)

// Team mirrors the sponsoring group from the sync service.
// Table name: teams
type Team struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:255;not null;index" json:"name"`
	LogoURL   *string   `gorm:"size:512" json:"logo_url,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index;autoUpdateTime:false" json:"updated_at"`
}

func (Team) TableName() string { return TableTeams }

// Wallet mirrors a fan's spendable balance for eligibility checks.
// Table name: wallets
type Wallet struct {
	UserID    string          `gorm:"primaryKey;size:64" json:"user_id"`
	Balance   decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"balance"`
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
}

func (Wallet) TableName() string { return TableWallets }
