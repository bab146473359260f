package http

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"inbox_server/core/domain"
	"inbox_server/core/port/in"
	"inbox_server/internal/session"
	"inbox_server/pkg/apperr"
	"inbox_server/pkg/logger"
)

type AgentHandler struct {
	inboxService in.InboxService
	sessions     *session.Manager
}

func NewAgentHandler(inboxService in.InboxService, sessions *session.Manager) *AgentHandler {
	return &AgentHandler{inboxService: inboxService, sessions: sessions}
}

func (h *AgentHandler) Register(router fiber.Router, limit fiber.Handler) {
	agent := router.Group("/agent")
	agent.Post("/chat", limit, h.Chat)
	agent.Get("/sessions/:id", h.GetSession)
	agent.Delete("/sessions/:id", h.DeleteSession)
}

// chatRequest is stateless when History is sent: the caller owns the history and
// no session is touched. Otherwise the turn runs against the named session,
// created on first use.
type chatRequest struct {
	SessionID string         `json:"session_id"`
	Message   string         `json:"message"`
	EmailID   string         `json:"email_id"`
	History   *[]domain.Turn `json:"history"`
}

type chatResponse struct {
	SessionID string        `json:"session_id,omitempty"`
	Reply     string        `json:"reply"`
	EmailID   string        `json:"email_id,omitempty"`
	History   []domain.Turn `json:"history"`
}

func (h *AgentHandler) Chat(c *fiber.Ctx) error {
	var req chatRequest
	if err := parseBody(c, &req); err != nil {
		return AppErrorResponse(c, err)
	}
	if strings.TrimSpace(req.Message) == "" {
		return AppErrorResponse(c, apperr.MissingField("message"))
	}

	ctx := c.UserContext()

	if req.History != nil {
		resp, err := h.inboxService.Chat(ctx, &in.ChatRequest{
			Message: req.Message,
			EmailID: req.EmailID,
			History: *req.History,
		})
		if err != nil {
			return AppErrorResponse(c, err)
		}
		return SuccessResponse(c, fiber.StatusOK, chatResponse{
			Reply:   resp.Reply,
			EmailID: resp.EmailID,
			History: resp.History,
		})
	}

	sess := h.sessions.GetOrCreate(req.SessionID)
	ctx = context.WithValue(ctx, logger.SessionIDKey, sess.ID)

	var resp *in.ChatResponse
	err := sess.Turn(func(history []domain.Turn) ([]domain.Turn, error) {
		var err error
		resp, err = h.inboxService.Chat(ctx, &in.ChatRequest{
			Message: req.Message,
			EmailID: req.EmailID,
			History: history,
		})
		if err != nil {
			return nil, err
		}
		return resp.History, nil
	})
	if err != nil {
		log := logger.WithContext(ctx)
		log.Warn().Err(err).Msg("chat turn failed, session history kept")
		return AppErrorResponse(c, err)
	}

	return SuccessResponse(c, fiber.StatusOK, chatResponse{
		SessionID: sess.ID,
		Reply:     resp.Reply,
		EmailID:   resp.EmailID,
		History:   resp.History,
	})
}

func (h *AgentHandler) GetSession(c *fiber.Ctx) error {
	sess := h.sessions.Get(c.Params("id"))
	if sess == nil {
		return AppErrorResponse(c, apperr.NotFound("session"))
	}
	return SuccessResponse(c, fiber.StatusOK, fiber.Map{
		"session_id": sess.ID,
		"history":    sess.History(),
	})
}

func (h *AgentHandler) DeleteSession(c *fiber.Ctx) error {
	if !h.sessions.Delete(c.Params("id")) {
		return AppErrorResponse(c, apperr.NotFound("session"))
	}
	return c.SendStatus(fiber.StatusNoContent)
}
