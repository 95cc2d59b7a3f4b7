package api

import (
	"docvault/app/middleware"
	"docvault/service"
	"docvault/types"

	"github.com/gofiber/fiber/v2"
)

type SearchHandler struct {
	search *service.SearchService
}

func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{
		search: search,
	}
}

func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return ErrUnAuthorized("missing user identity")
	}

	var params types.SearchParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	resp, err := h.search.Search(c.Context(), userID, params)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (h *SearchHandler) HandleAsk(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return ErrUnAuthorized("missing user identity")
	}

	var params types.AskParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	resp, err := h.search.Ask(c.Context(), userID, params)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// HandleSearchHealth probes the embedding backend so callers can tell a
// degraded search apart from an empty result set.
func (h *SearchHandler) HandleSearchHealth(c *fiber.Ctx) error {
	dim, err := h.search.Health(c.Context())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status":    "ok",
		"dimension": dim,
	})
}
