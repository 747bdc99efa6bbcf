// handlers/contest.go
package handlers

import (
	"encoding/json"

	"fan-activity-engine/logger"
	"fan-activity-engine/middleware"
	"fan-activity-engine/models"
	"fan-activity-engine/services"

	"github.com/gofiber/fiber/v2"
)

type ContestHandler struct {
	Contests      *services.ContestService
	Ranking       *services.RankingService
	Finish        *services.FinishService
	Participation *services.ParticipationService
	log           *logger.Logger
}

func NewContestHandler(
	contests *services.ContestService,
	ranking *services.RankingService,
	finish *services.FinishService,
	participation *services.ParticipationService,
	log *logger.Logger,
) *ContestHandler {
	return &ContestHandler{
		Contests:      contests,
		Ranking:       ranking,
		Finish:        finish,
		Participation: participation,
		log:           logger.OrNop(log).With("handler", "contest"),
	}
}

// SetupContestRoutes mounts contest administration and the per-kind play
// endpoints. Middleware is attached per route so nothing leaks onto routes
// registered elsewhere.
func SetupContestRoutes(router fiber.Router, h *ContestHandler) {
	admin := middleware.RequireRole(middleware.RoleAdmin)
	user := middleware.RequireUser()

	router.Post("/activities/:kind/:id/publish", admin, h.Publish)
	router.Post("/predictions/:id/result", admin, h.RecordPredictionResult)
	router.Put("/contests/:id/rewards", admin, h.SetRewards)
	router.Get("/contests/:id/rewards", admin, h.GetRewards)
	router.Get("/contests/:id/ranking", admin, h.GetRanking)
	router.Post("/contests/:id/finish", admin, h.FinishContest)
	router.Post("/milestones/:id/progress", admin, h.RecordMilestoneProgress)

	router.Post("/predictions/:id/play", user, h.PlayPrediction)
	router.Post("/trivia/:id/submit", user, h.SubmitTrivia)
	router.Post("/surveys/:id/submit", user, h.SubmitSurvey)
	router.Post("/check-ins/:id", user, h.CheckIn)
	router.Post("/multi-check-ins/:id", user, h.MultiCheckIn)
	router.Post("/referrals/:id/invitations", user, h.RecordInvitation)
	router.Post("/mini-games/:id/score", user, h.SubmitMiniGameScore)
}

func (h *ContestHandler) Publish(c *fiber.Ctx) error {
	kind := models.ActivityKind(c.Params("kind"))
	if err := h.Contests.Publish(c.UserContext(), kind, c.Params("id")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"id": c.Params("id"), "kind": kind, "is_draft": false})
}

type scoreBody struct {
	MainScore     *int `json:"main_score"`
	OpponentScore *int `json:"opponent_score"`
}

func (b scoreBody) valid() bool { return b.MainScore != nil && b.OpponentScore != nil }

func (h *ContestHandler) RecordPredictionResult(c *fiber.Ctx) error {
	var body scoreBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid JSON", err)
	}
	if !body.valid() {
		return badRequest(c, "main_score and opponent_score are required", nil)
	}
	game, err := h.Contests.RecordPredictionResult(c.UserContext(), c.Params("id"), *body.MainScore, *body.OpponentScore)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(game)
}

func (h *ContestHandler) SetRewards(c *fiber.Ctx) error {
	var entries []services.RewardEntryInput
	if err := c.BodyParser(&entries); err != nil {
		return badRequest(c, "invalid JSON", err)
	}
	table, err := h.Contests.SetRewardDistribution(c.UserContext(), c.Params("id"), entries)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"data": table})
}

func (h *ContestHandler) GetRewards(c *fiber.Ctx) error {
	table, err := h.Contests.RewardDistribution(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"data": table})
}

func (h *ContestHandler) GetRanking(c *fiber.Ctx) error {
	results, err := h.Ranking.Rank(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"data": results})
}

func (h *ContestHandler) FinishContest(c *fiber.Ctx) error {
	summary, err := h.Finish.FinishContest(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(summary)
}

func (h *ContestHandler) RecordMilestoneProgress(c *fiber.Ctx) error {
	var body struct {
		UserID   string `json:"user_id"`
		Progress int64  `json:"progress"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid JSON", err)
	}
	p, err := h.Participation.RecordMilestoneProgress(c.UserContext(), c.Params("id"), body.UserID, body.Progress)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(p)
}

func (h *ContestHandler) PlayPrediction(c *fiber.Ctx) error {
	var body scoreBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid JSON", err)
	}
	if !body.valid() {
		return badRequest(c, "main_score and opponent_score are required", nil)
	}
	p, err := h.Participation.PlayPrediction(c.UserContext(), c.Params("id"), middleware.UserID(c), *body.MainScore, *body.OpponentScore)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *ContestHandler) SubmitTrivia(c *fiber.Ctx) error {
	var body struct {
		ElapsedMs int64                        `json:"elapsed_ms"`
		Answers   []services.TriviaAnswerInput `json:"answers"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid JSON", err)
	}
	p, err := h.Participation.SubmitTrivia(c.UserContext(), c.Params("id"), middleware.UserID(c), body.ElapsedMs, body.Answers)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *ContestHandler) SubmitSurvey(c *fiber.Ctx) error {
	var body struct {
		Answers json.RawMessage `json:"answers"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid JSON", err)
	}
	p, err := h.Participation.SubmitSurvey(c.UserContext(), c.Params("id"), middleware.UserID(c), body.Answers)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

type positionBody struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *ContestHandler) CheckIn(c *fiber.Ctx) error {
	var body positionBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid JSON", err)
	}
	if body.Latitude == nil || body.Longitude == nil {
		return badRequest(c, "latitude and longitude are required", nil)
	}
	p, err := h.Participation.CheckIn(c.UserContext(), c.Params("id"), middleware.UserID(c), *body.Latitude, *body.Longitude)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *ContestHandler) MultiCheckIn(c *fiber.Ctx) error {
	var body positionBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid JSON", err)
	}
	if body.Latitude == nil || body.Longitude == nil {
		return badRequest(c, "latitude and longitude are required", nil)
	}
	p, err := h.Participation.MultiCheckIn(c.UserContext(), c.Params("id"), middleware.UserID(c), *body.Latitude, *body.Longitude)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(p)
}

func (h *ContestHandler) RecordInvitation(c *fiber.Ctx) error {
	var body struct {
		InviteeID string `json:"invitee_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid JSON", err)
	}
	inv, err := h.Participation.RecordInvitation(c.UserContext(), c.Params("id"), middleware.UserID(c), body.InviteeID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(inv)
}

func (h *ContestHandler) SubmitMiniGameScore(c *fiber.Ctx) error {
	var body struct {
		Score int64 `json:"score"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid JSON", err)
	}
	p, err := h.Participation.SubmitMiniGameScore(c.UserContext(), c.Params("id"), middleware.UserID(c), body.Score)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}
