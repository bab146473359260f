package out

import (
	"context"

	"inbox_server/core/domain"
)

// LLMClient is the language model boundary. Implementations apply their own
// timeout and bounded retry; callers never retry.
type LLMClient interface {
	// Complete runs a chat completion over system + turns and returns the reply text.
	Complete(ctx context.Context, system string, turns []domain.Turn) (string, error)
	// CompleteJSON runs a single instruction in JSON-object mode and returns the raw
	// JSON text. Schema validation is the caller's job.
	CompleteJSON(ctx context.Context, instruction string) (string, error)
}
