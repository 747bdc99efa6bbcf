// handlers/respond.go
package handlers

import (
	"strconv"

	"fan-activity-engine/logger"
	"fan-activity-engine/services"

	"github.com/gofiber/fiber/v2"
)

var statusByKind = map[services.ErrorKind]int{
	services.KindNotFound:        fiber.StatusNotFound,
	services.KindInvalidState:    fiber.StatusConflict,
	services.KindIneligible:      fiber.StatusForbidden,
	services.KindInvalidArgument: fiber.StatusBadRequest,
}

// respondError writes domain errors as-is and hides infrastructure ones.
func respondError(c *fiber.Ctx, log *logger.Logger, err error) error {
	kind := services.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"kind":  kind,
	})
}

func badRequest(c *fiber.Ctx, msg string, cause error) error {
	body := fiber.Map{"error": msg}
	if cause != nil {
		body["cause"] = cause.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}

// queryInt returns def when the parameter is absent.
func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// queryBool is tri-state: nil when the parameter is absent.
func queryBool(c *fiber.Ctx, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
