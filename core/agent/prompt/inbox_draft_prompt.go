package prompt

import (
	"strings"

	"inbox_server/core/domain"
)

// DefaultDraftSubject is used when the model output has no Subject line.
const DefaultDraftSubject = "Draft Subject"

// BuildDraftInstruction renders the user utterance sent to the agent when drafting.
func BuildDraftInstruction(draftType domain.DraftType, instructions string) string {
	var b strings.Builder
	b.WriteString("Draft a ")
	if draftType == domain.DraftReply {
		b.WriteString("Reply. This is a reply.")
	} else {
		b.WriteString("New Email.")
	}
	b.WriteString("\nInstructions: ")
	b.WriteString(strings.TrimSpace(instructions))
	b.WriteString("\n\nIMPORTANT: Return the draft in the following format:\nSubject: [Subject Line]\n\n[Body Text]")
	return b.String()
}

// ParseDraft splits model output into subject and body. The first non-empty line
// is the subject when it starts with "Subject:"; otherwise the whole text is the
// body and the default subject applies.
func ParseDraft(output string) (subject, body string) {
	text := strings.TrimSpace(strings.ReplaceAll(output, "\r\n", "\n"))
	first, rest, _ := strings.Cut(text, "\n")

	trimmed := strings.TrimSpace(first)
	if len(trimmed) >= len("subject:") && strings.EqualFold(trimmed[:len("subject:")], "subject:") {
		subject = strings.TrimSpace(trimmed[len("subject:"):])
		body = strings.TrimSpace(rest)
	} else {
		body = text
	}
	if subject == "" {
		subject = DefaultDraftSubject
	}
	return subject, body
}
