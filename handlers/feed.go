// handlers/feed.go
package handlers

import (
	"strings"

	"fan-activity-engine/logger"
	"fan-activity-engine/middleware"
	"fan-activity-engine/models"
	"fan-activity-engine/services"

	"github.com/gofiber/fiber/v2"
)

type FeedHandler struct {
	Feed            *services.FeedService
	DefaultPageSize int
	log             *logger.Logger
}

// SetupFeedRoutes mounts the feed endpoints. They are readable anonymously;
// a user context adds the participation flag and enables the ownership sides.
func SetupFeedRoutes(router fiber.Router, feed *services.FeedService, defaultPageSize int, log *logger.Logger) {
	h := &FeedHandler{Feed: feed, DefaultPageSize: defaultPageSize, log: logger.OrNop(log).With("handler", "feed")}

	router.Get("/feeds/:family", h.GetFeed)
	router.Get("/feeds/:family/split", middleware.RequireUser(), h.GetOwnerSplitFeed)
	router.Get("/feeds/:family/stats", h.GetStats)
}

// filterFromQuery reads the shared filter parameters. Only admins can see
// drafts; everyone else gets published activities whatever they ask for.
func filterFromQuery(c *fiber.Ctx) (services.FeedFilter, error) {
	f := services.FeedFilter{
		Window:   services.TimeWindow(strings.ToLower(c.Query("window"))),
		ViewerID: middleware.UserID(c),
		Side:     services.OwnershipSide(strings.ToLower(c.Query("side"))),
	}
	var err error
	if f.IsEnded, err = queryBool(c, "is_ended"); err != nil {
		return f, err
	}
	if f.IsDraft, err = queryBool(c, "is_draft"); err != nil {
		return f, err
	}
	if !middleware.HasRole(c, middleware.RoleAdmin) {
		published := false
		f.IsDraft = &published
	}
	if raw := c.Query("group_ids"); raw != "" {
		f.GroupIDs = strings.Split(raw, ",")
	}
	return f, nil
}

func (h *FeedHandler) page(c *fiber.Ctx) (skip, take int, err error) {
	if skip, err = queryInt(c, "skip", 0); err != nil {
		return 0, 0, err
	}
	if take, err = queryInt(c, "take", h.DefaultPageSize); err != nil {
		return 0, 0, err
	}
	return skip, take, nil
}

func (h *FeedHandler) GetFeed(c *fiber.Ctx) error {
	filter, err := filterFromQuery(c)
	if err != nil {
		return badRequest(c, "invalid filter", err)
	}
	field, dir, err := services.ParseSort(c.Query("sort"), c.Query("direction"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	skip, take, err := h.page(c)
	if err != nil {
		return badRequest(c, "invalid pagination", err)
	}

	page, err := h.Feed.GetFeed(c.UserContext(), services.FeedQuery{
		Family:    models.ActivityFamily(c.Params("family")),
		Filter:    filter,
		Sort:      field,
		Direction: dir,
		Skip:      skip,
		Take:      take,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(page)
}

func (h *FeedHandler) GetOwnerSplitFeed(c *fiber.Ctx) error {
	filter, err := filterFromQuery(c)
	if err != nil {
		return badRequest(c, "invalid filter", err)
	}
	side := filter.Side
	if side == services.SideAny {
		side = services.SideMine
	}
	filter.Side = services.SideAny
	field, dir, err := services.ParseSort(c.Query("sort"), c.Query("direction"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	skip, take, err := h.page(c)
	if err != nil {
		return badRequest(c, "invalid pagination", err)
	}

	split, err := h.Feed.GetOwnerSplitFeed(c.UserContext(), services.OwnerSplitQuery{
		Family:    models.ActivityFamily(c.Params("family")),
		Side:      side,
		ViewerID:  filter.ViewerID,
		Filter:    filter,
		Sort:      field,
		Direction: dir,
		Skip:      skip,
		Take:      take,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(split)
}

func (h *FeedHandler) GetStats(c *fiber.Ctx) error {
	filter, err := filterFromQuery(c)
	if err != nil {
		return badRequest(c, "invalid filter", err)
	}
	family := models.ActivityFamily(c.Params("family"))
	if family == "all" {
		family = ""
	}
	stats, err := h.Feed.CountByKind(c.UserContext(), family, filter)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(stats)
}
