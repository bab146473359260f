package domain

// Prompt template slot names as stored in the prompts document.
const (
	PromptCategorization = "categorization_prompt"
	PromptActionItem     = "action_item_prompt"
	PromptAutoReply      = "auto_reply_prompt"
)

// PromptTemplateSet maps guidance slots to user-editable instruction text.
// Absent or blank slots mean "no override".
type PromptTemplateSet map[string]string

// Get returns the slot text and whether the user supplied one.
func (p PromptTemplateSet) Get(slot string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p[slot]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Clone returns an independent copy.
func (p PromptTemplateSet) Clone() PromptTemplateSet {
	out := make(PromptTemplateSet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// =============================================================================
// Conversation
// =============================================================================

// Role identifies the sender of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a chat history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// =============================================================================
// Draft
// =============================================================================

type DraftType string

const (
	DraftNew   DraftType = "new"
	DraftReply DraftType = "reply"
)

const (
	DraftStatusSaved     = "saved"
	DraftStatusSuggested = "suggested"
)

// Draft is a user-facing email draft kept in the drafts document.
type Draft struct {
	ID             string    `json:"id"`
	Type           DraftType `json:"type"`
	RelatedEmailID *string   `json:"related_email_id"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	Status         string    `json:"status"`
}
