package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"fan-activity-engine/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

// newTestDB opens a private in-memory database. One connection keeps every
// goroutine on the same memory store.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// tickingClock advances by one second per call so insert order is visible
// in created_at.
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		at := next
		next = next.Add(time.Second)
		return at
	}
}

func activity(group, title string, start, end time.Time) models.ActivityBase {
	return models.ActivityBase{
		GroupID:         group,
		Title:           title,
		StartAt:         start,
		EndAt:           end,
		RewardPrimary:   decimal.NewFromInt(10),
		RewardSecondary: decimal.NewFromInt(1),
		MinBalance:      decimal.Zero,
	}
}

func mustCreate(t *testing.T, db *gorm.DB, v interface{}) {
	t.Helper()
	require.NoError(t, db.Create(v).Error)
}

func intPtr(v int) *int { return &v }

type recordingSink struct {
	mu     sync.Mutex
	events []models.ActivityEvent
	err    error
}

func (r *recordingSink) Publish(_ context.Context, e models.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingSink) Events() []models.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ActivityEvent(nil), r.events...)
}

// flakyLedger fails the nth emission.
type flakyLedger struct {
	failAt int
	calls  int
	inner  GormLedger
}

func (l *flakyLedger) Emit(tx *gorm.DB, entry *models.LedgerTransaction) (bool, error) {
	l.calls++
	if l.calls == l.failAt {
		return false, errors.New("ledger unavailable")
	}
	return l.inner.Emit(tx, entry)
}

type recordingArchiver struct {
	snaps []models.StandingsSnapshot
}

func (a *recordingArchiver) ArchiveStandings(_ context.Context, snap models.StandingsSnapshot) (string, error) {
	a.snaps = append(a.snaps, snap)
	return "https://cdn.example/" + StandingsKey(snap), nil
}
