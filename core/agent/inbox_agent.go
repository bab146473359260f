package agent

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"inbox_server/core/agent/prompt"
	"inbox_server/core/domain"
	"inbox_server/core/port/out"
	"inbox_server/pkg/apperr"
	"inbox_server/pkg/metrics"
)

// TurnState tracks one agent turn. A turn moves Start -> Invoked -> Done.
type TurnState int

const (
	StateStart TurnState = iota
	StateInvoked
	StateDone
)

func (s TurnState) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateInvoked:
		return "invoked"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// NextAction is what the agent decided after the model call. Only ActionReply
// exists today; multi-step orchestration would add variants here.
type NextAction int

const (
	ActionReply NextAction = iota
)

// TurnRequest carries everything one turn needs. History is owned by the caller.
type TurnRequest struct {
	History  []domain.Turn
	Message  string
	Selected *domain.EmailRecord
	Inbox    []domain.EmailRecord
	Prompts  domain.PromptTemplateSet
}

// TurnResult is the reply plus the history extended by the user and assistant turns.
type TurnResult struct {
	Reply   string
	History []domain.Turn
	Action  NextAction
	State   TurnState
}

// Executor runs single-step agent turns. It holds no per-session state, so one
// executor may serve any number of sessions concurrently.
type Executor struct {
	llm out.LLMClient
	log zerolog.Logger
}

func NewExecutor(llm out.LLMClient, log zerolog.Logger) *Executor {
	return &Executor{
		llm: llm,
		log: log.With().Str("component", "agent").Logger(),
	}
}

// ExecuteTurn builds the system instruction, sends [system] + history + [user] to
// the model exactly once and returns the reply. The input history is never
// modified; on failure the caller keeps its history as it was.
func (e *Executor) ExecuteTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, apperr.MissingField("message")
	}

	state := StateStart
	start := time.Now()

	system := prompt.BuildSystemInstruction(req.Selected, req.Inbox, req.Prompts)

	turns := make([]domain.Turn, 0, len(req.History)+2)
	turns = append(turns, req.History...)
	turns = append(turns, domain.Turn{Role: domain.RoleUser, Content: req.Message})

	state = StateInvoked
	reply, err := e.llm.Complete(ctx, system, turns)
	if err != nil {
		e.log.Error().Err(err).
			Str("state", state.String()).
			Int("history", len(req.History)).
			Msg("agent turn failed")
		metrics.IncrementAgentTurn(metrics.StatusError)
		return nil, apperr.AgentFailed(err)
	}
	metrics.IncrementAgentTurn(metrics.StatusOK)

	turns = append(turns, domain.Turn{Role: domain.RoleAssistant, Content: reply})
	state = StateDone

	e.log.Debug().
		Str("state", state.String()).
		Bool("selected", req.Selected != nil).
		Int("history", len(turns)).
		Dur("elapsed", time.Since(start)).
		Msg("agent turn done")

	return &TurnResult{
		Reply:   reply,
		History: turns,
		Action:  ActionReply,
		State:   state,
	}, nil
}
