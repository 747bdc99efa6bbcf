package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fan-activity-engine/middleware"
	"fan-activity-engine/models"
	"fan-activity-engine/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

type testApp struct {
	app *fiber.App
	db  *gorm.DB
}

func newTestApp(t *testing.T) *testApp {
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

	clock := func() time.Time { return testNow }
	feed := services.NewFeedService(db, 50, nil)
	feed.Clock = clock
	contests := services.NewContestService(db, nil)
	contests.Clock = clock
	ranking := services.NewRankingService(db, services.DefaultRankingPolicy(), nil)
	finish := services.NewFinishService(db, ranking, services.GormLedger{}, nil, nil)
	finish.Clock = clock
	participation := services.NewParticipationService(db, services.WalletBalances{DB: db}, nil)
	participation.Clock = clock

	app := fiber.New()
	app.Use(middleware.UserContextMiddleware())
	SetupFeedRoutes(app, feed, 20, nil)
	SetupContestRoutes(app, NewContestHandler(contests, ranking, finish, participation, nil))
	return &testApp{app: app, db: db}
}

func (a *testApp) do(t *testing.T, method, path, userID, roles string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if roles != "" {
		req.Header.Set("X-User-Roles", roles)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (a *testApp) seedPrediction(t *testing.T, title string, draft bool, result bool) *models.PredictionGame {
	t.Helper()
	g := &models.PredictionGame{ActivityBase: models.ActivityBase{
		GroupID:         "g1",
		Title:           title,
		StartAt:         testNow.Add(-time.Hour),
		EndAt:           testNow.Add(time.Hour),
		IsDraft:         draft,
		RewardPrimary:   decimal.NewFromInt(10),
		RewardSecondary: decimal.Zero,
		MinBalance:      decimal.Zero,
	}}
	if result {
		main, opp := 2, 0
		g.ActualMainScore, g.ActualOpponentScore = &main, &opp
	}
	require.NoError(t, a.db.Create(g).Error)
	return g
}

func TestFeedHidesDraftsFromFans(t *testing.T) {
	a := newTestApp(t)
	a.seedPrediction(t, "Live", false, false)
	a.seedPrediction(t, "Draft", true, false)

	status, body := a.do(t, http.MethodGet, "/feeds/game", "", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])
	data := body["data"].([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, "Live", data[0].(map[string]interface{})["title"])
	assert.Equal(t, "prediction", data[0].(map[string]interface{})["kind"])

	status, body = a.do(t, http.MethodGet, "/feeds/game", "admin-1", "admin", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["count"])

	status, body = a.do(t, http.MethodGet, "/feeds/game?is_draft=true", "admin-1", "admin", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])
}

func TestFeedRejectsBadQueries(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do(t, http.MethodGet, "/feeds/raffle", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_argument", body["kind"])

	status, _ = a.do(t, http.MethodGet, "/feeds/game?take=lots", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(t, http.MethodGet, "/feeds/game?sort=popularity", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(t, http.MethodGet, "/feeds/game?side=mine", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(t, http.MethodGet, "/feeds/game/split", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestFeedSplitAndStats(t *testing.T) {
	a := newTestApp(t)
	g := a.seedPrediction(t, "Live", false, false)
	a.seedPrediction(t, "Other", false, false)

	status, _ := a.do(t, http.MethodPost, "/predictions/"+g.ID+"/play", "fan-1", "", map[string]int{"main_score": 1, "opponent_score": 0})
	require.Equal(t, http.StatusCreated, status)

	status, body := a.do(t, http.MethodGet, "/feeds/game/split?side=mine", "fan-1", "", nil)
	require.Equal(t, http.StatusOK, status)
	perKind := body["per_kind"].(map[string]interface{})
	assert.Equal(t, float64(1), perKind["prediction"].(map[string]interface{})["count"])

	status, body = a.do(t, http.MethodGet, "/feeds/game/stats?window=ongoing", "", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["total"])
}

func TestPlayAndFinishFlow(t *testing.T) {
	a := newTestApp(t)
	g := a.seedPrediction(t, "Cup final", false, true)
	path := "/predictions/" + g.ID + "/play"

	status, _ := a.do(t, http.MethodPost, path, "", "", map[string]int{"main_score": 2, "opponent_score": 0})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = a.do(t, http.MethodPost, path, "fan-1", "", map[string]int{"main_score": 2})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(t, http.MethodPost, path, "fan-1", "", map[string]int{"main_score": 2, "opponent_score": 0})
	require.Equal(t, http.StatusCreated, status)

	status, body := a.do(t, http.MethodPost, path, "fan-1", "", map[string]int{"main_score": 1, "opponent_score": 0})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "activity already played", body["error"])

	rewards := []map[string]interface{}{{"winner_order": 1, "reward_primary": "25", "reward_secondary": "0"}}
	status, _ = a.do(t, http.MethodPut, "/contests/"+g.ID+"/rewards", "fan-1", "", rewards)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = a.do(t, http.MethodPut, "/contests/"+g.ID+"/rewards", "admin-1", "admin", rewards)
	require.Equal(t, http.StatusOK, status)

	status, body = a.do(t, http.MethodGet, "/contests/"+g.ID+"/ranking", "admin-1", "admin", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["data"], 1)

	status, _ = a.do(t, http.MethodPost, "/contests/"+g.ID+"/finish", "fan-1", "", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = a.do(t, http.MethodPost, "/contests/"+g.ID+"/finish", "admin-1", "admin", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["ledger_entries"])

	status, body = a.do(t, http.MethodPost, "/contests/"+g.ID+"/finish", "admin-1", "admin", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "invalid_state", body["kind"])

	status, _ = a.do(t, http.MethodPost, "/contests/missing/finish", "admin-1", "admin", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPublish(t *testing.T) {
	a := newTestApp(t)
	g := a.seedPrediction(t, "Draft", true, false)

	status, _ := a.do(t, http.MethodPost, "/activities/prediction/"+g.ID+"/publish", "admin-1", "admin", nil)
	require.Equal(t, http.StatusOK, status)

	status, body := a.do(t, http.MethodGet, "/feeds/game", "", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])

	status, _ = a.do(t, http.MethodPost, "/activities/prediction/missing/publish", "admin-1", "admin", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
