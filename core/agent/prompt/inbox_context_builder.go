package prompt

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"inbox_server/core/domain"
)

const agentPreamble = `You are an intelligent Email Productivity Agent designed to help the user manage their inbox.
You can summarize emails, extract action items, draft replies, and answer general questions about the inbox.
`

const closingDirective = "\nAnswer the user's request based on the context above. Be helpful, concise, and professional."

// inboxEntry is the redacted per-email view exposed when nothing is selected.
// Bodies are left out to bound the instruction size.
type inboxEntry struct {
	ID              string   `json:"id"`
	MessageID       string   `json:"message_id"`
	Sender          string   `json:"sender"`
	SenderName      string   `json:"sender_name"`
	Recipients      []string `json:"recipients"`
	Subject         string   `json:"subject"`
	Timestamp       string   `json:"timestamp"`
	Category        *string  `json:"category"`
	Priority        *string  `json:"priority"`
	IsSpam          bool     `json:"is_spam"`
	ActionItems     *string  `json:"action_items"`
	Summary         *string  `json:"summary"`
	HasAttachment   bool     `json:"has_attachment"`
	AttachmentNames []string `json:"attachment_names"`
}

// guidanceSlots is the fixed order prompt slots are rendered in.
var guidanceSlots = []struct {
	slot  string
	label string
}{
	{domain.PromptAutoReply, "DRAFTING REPLIES GUIDELINE"},
	{domain.PromptActionItem, "EXTRACTING ACTIONS GUIDELINE"},
	{domain.PromptCategorization, "CATEGORIZATION LOGIC"},
}

// BuildSystemInstruction renders the agent's system instruction. A selected email
// is shown in full; otherwise the inbox is summarized without bodies.
func BuildSystemInstruction(selected *domain.EmailRecord, inbox []domain.EmailRecord, prompts domain.PromptTemplateSet) string {
	var b strings.Builder
	b.WriteString(agentPreamble)

	if selected != nil {
		writeSelectedEmail(&b, selected)
	} else {
		writeInboxContext(&b, inbox)
	}

	b.WriteString("\n\n--- USER PREFERENCES & PROMPTS ---\n")
	for _, g := range guidanceSlots {
		if text, ok := prompts.Get(g.slot); ok {
			fmt.Fprintf(&b, "%s: %s\n", g.label, text)
		}
	}

	b.WriteString(closingDirective)
	return b.String()
}

func writeSelectedEmail(b *strings.Builder, e *domain.EmailRecord) {
	b.WriteString("\n\n--- CURRENTLY SELECTED EMAIL ---\n")
	fmt.Fprintf(b, "From: %s (%s)\n", e.Sender, e.SenderName)
	fmt.Fprintf(b, "Subject: %s\n", e.Subject)
	fmt.Fprintf(b, "Date: %s\n", e.Timestamp)
	fmt.Fprintf(b, "Category: %s\n", e.CategoryName())
	fmt.Fprintf(b, "Body:\n%s\n", e.Body)
	b.WriteString("--------------------------------\n")
	b.WriteString("The user's query likely relates to this specific email. Use this context to answer.")
}

func writeInboxContext(b *strings.Builder, inbox []domain.EmailRecord) {
	b.WriteString("\n\n--- INBOX CONTEXT ---\n")
	fmt.Fprintf(b, "No specific email is selected. You have access to %d emails in the inbox.\n", len(inbox))
	fmt.Fprintf(b, "Feel free to use these emails: %s\n", redactedInbox(inbox))
	b.WriteString("If the user asks about a specific email, ask them to select an email by its id.")
}

func redactedInbox(inbox []domain.EmailRecord) string {
	entries := make([]inboxEntry, 0, len(inbox))
	for _, e := range inbox {
		var category *string
		if e.Category != nil {
			c := string(*e.Category)
			category = &c
		}
		entries = append(entries, inboxEntry{
			ID:              e.ID,
			MessageID:       e.MessageID,
			Sender:          e.Sender,
			SenderName:      e.SenderName,
			Recipients:      e.Recipients,
			Subject:         e.Subject,
			Timestamp:       e.Timestamp,
			Category:        category,
			Priority:        e.Priority,
			IsSpam:          e.IsSpam,
			ActionItems:     e.ActionItems,
			Summary:         e.Summary,
			HasAttachment:   e.HasAttachment,
			AttachmentNames: e.AttachmentNames,
		})
	}
	data, err := json.Marshal(entries)
	if err != nil {
		// struct of strings and bools only
		return "[]"
	}
	return string(data)
}
