package http

import (
	"github.com/gofiber/fiber/v2"

	"inbox_server/core/domain"
	"inbox_server/core/port/in"
)

type InboxHandler struct {
	inboxService in.InboxService
}

func NewInboxHandler(inboxService in.InboxService) *InboxHandler {
	return &InboxHandler{inboxService: inboxService}
}

// Register mounts the inbox routes. limit guards the model-backed endpoint.
func (h *InboxHandler) Register(router fiber.Router, limit fiber.Handler) {
	inbox := router.Group("/inbox")
	inbox.Get("/raw", h.RawInbox)
	inbox.Get("/", h.EnrichedInbox)
	inbox.Get("/action-items", h.ActionItems)
	inbox.Get("/:id", h.GetEmail)
	inbox.Post("/categorize", limit, h.Categorize)

	prompts := router.Group("/prompts")
	prompts.Get("/", h.GetPrompts)
	prompts.Put("/", h.UpdatePrompts)
}

func (h *InboxHandler) RawInbox(c *fiber.Ctx) error {
	emails, err := h.inboxService.RawInbox(c.UserContext())
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.StatusOK, fiber.Map{"emails": emails, "total": len(emails)})
}

// EnrichedInbox lists the committed snapshot, optionally filtered by ?category=.
func (h *InboxHandler) EnrichedInbox(c *fiber.Ctx) error {
	emails, err := h.inboxService.EnrichedInbox(c.UserContext())
	if err != nil {
		return AppErrorResponse(c, err)
	}

	if category := c.Query("category"); category != "" {
		filtered := make([]domain.EmailRecord, 0, len(emails))
		for _, e := range emails {
			if e.CategoryName() == category {
				filtered = append(filtered, e)
			}
		}
		emails = filtered
	}
	return SuccessResponse(c, fiber.StatusOK, fiber.Map{"emails": emails, "total": len(emails)})
}

func (h *InboxHandler) GetEmail(c *fiber.Ctx) error {
	emails, err := h.inboxService.EnrichedInbox(c.UserContext())
	if err != nil {
		return AppErrorResponse(c, err)
	}
	email := domain.FindEmail(emails, c.Params("id"))
	if email == nil {
		return fiber.NewError(fiber.StatusNotFound, "email not found")
	}
	return SuccessResponse(c, fiber.StatusOK, email)
}

func (h *InboxHandler) ActionItems(c *fiber.Ctx) error {
	emails, err := h.inboxService.ActionItems(c.UserContext())
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.StatusOK, fiber.Map{"emails": emails, "total": len(emails)})
}

func (h *InboxHandler) Categorize(c *fiber.Ctx) error {
	result, err := h.inboxService.Categorize(c.UserContext())
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.StatusOK, fiber.Map{
		"processed":   result.Processed,
		"spam":        result.Spam,
		"drafts":      result.Drafts,
		"duration_ms": result.Duration.Milliseconds(),
	})
}

func (h *InboxHandler) GetPrompts(c *fiber.Ctx) error {
	prompts, err := h.inboxService.Prompts(c.UserContext())
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.StatusOK, prompts)
}

func (h *InboxHandler) UpdatePrompts(c *fiber.Ctx) error {
	var prompts domain.PromptTemplateSet
	if err := parseBody(c, &prompts); err != nil {
		return AppErrorResponse(c, err)
	}
	if err := h.inboxService.UpdatePrompts(c.UserContext(), prompts); err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.StatusOK, prompts)
}
