package http

import (
	"github.com/gofiber/fiber/v2"

	"inbox_server/core/domain"
	"inbox_server/core/port/in"
)

type DraftHandler struct {
	draftService in.DraftService
}

func NewDraftHandler(draftService in.DraftService) *DraftHandler {
	return &DraftHandler{draftService: draftService}
}

func (h *DraftHandler) Register(router fiber.Router, limit fiber.Handler) {
	drafts := router.Group("/drafts")
	drafts.Get("/", h.List)
	drafts.Post("/generate", limit, h.Generate)
	drafts.Post("/", h.Save)
	drafts.Delete("/:id", h.Delete)
}

func (h *DraftHandler) List(c *fiber.Ctx) error {
	drafts, err := h.draftService.List(c.UserContext())
	if err != nil {
		return AppErrorResponse(c, err)
	}

	if status := c.Query("status"); status != "" {
		filtered := make([]domain.Draft, 0, len(drafts))
		for _, d := range drafts {
			if d.Status == status {
				filtered = append(filtered, d)
			}
		}
		drafts = filtered
	}
	return SuccessResponse(c, fiber.StatusOK, fiber.Map{"drafts": drafts, "total": len(drafts)})
}

// Generate returns an unsaved draft; clients POST it back to /drafts to keep it.
func (h *DraftHandler) Generate(c *fiber.Ctx) error {
	var req in.DraftRequest
	if err := parseBody(c, &req); err != nil {
		return AppErrorResponse(c, err)
	}
	draft, err := h.draftService.Generate(c.UserContext(), &req)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.StatusOK, draft)
}

func (h *DraftHandler) Save(c *fiber.Ctx) error {
	var draft domain.Draft
	if err := parseBody(c, &draft); err != nil {
		return AppErrorResponse(c, err)
	}
	saved, err := h.draftService.Save(c.UserContext(), &draft)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.StatusCreated, saved)
}

func (h *DraftHandler) Delete(c *fiber.Ctx) error {
	if err := h.draftService.Delete(c.UserContext(), c.Params("id")); err != nil {
		return AppErrorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
