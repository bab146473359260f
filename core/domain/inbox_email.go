package domain

import "strings"

// =============================================================================
// Email Category
// =============================================================================

// EmailCategory is one of the fixed enrichment categories.
type EmailCategory string

const (
	CategoryImportant      EmailCategory = "Important"
	CategoryToDo           EmailCategory = "To-Do"
	CategoryMeetingRequest EmailCategory = "Meeting Request"
	CategoryProjectUpdate  EmailCategory = "Project Update"
	CategoryNewsletter     EmailCategory = "Newsletter"
	CategorySpam           EmailCategory = "Spam"
	CategoryPersonal       EmailCategory = "Personal"
)

// CategoryDefinition pairs a category with the description given to the model.
type CategoryDefinition struct {
	Category    EmailCategory
	Description string
}

// Categories lists the taxonomy in prompt order.
var Categories = []CategoryDefinition{
	{CategoryImportant, "time-sensitive or requires immediate attention."},
	{CategoryToDo, "contains a direct request, task, assignment, or instruction."},
	{CategoryMeetingRequest, "contains scheduling, invitations, or coordination messages."},
	{CategoryProjectUpdate, "contains progress updates, announcements, or work summaries."},
	{CategoryNewsletter, "promotional, informational, or automated updates."},
	{CategorySpam, "irrelevant, overly promotional, or suspicious content."},
	{CategoryPersonal, "casual, friendly, non-work communication."},
}

// IsValid reports whether c is part of the taxonomy.
func (c EmailCategory) IsValid() bool {
	for _, def := range Categories {
		if def.Category == c {
			return true
		}
	}
	return false
}

// NoActionItems is the sentinel the model returns when an email has no tasks.
const NoActionItems = "No action items."

// =============================================================================
// Email Record
// =============================================================================

// RawEmail is an inbox entry before enrichment. It shares the on-disk shape of
// EmailRecord; enrichment fields are simply empty.
type RawEmail = EmailRecord

// EmailRecord is one message at any point of its lifecycle. JSON field names are
// the interchange format and must not change.
type EmailRecord struct {
	ID              string         `json:"id" validate:"required"`
	MessageID       string         `json:"message_id" validate:"required"`
	Sender          string         `json:"sender" validate:"required"`
	SenderName      string         `json:"sender_name"`
	Recipients      []string       `json:"recipients"`
	Subject         string         `json:"subject"`
	Body            string         `json:"body"`
	Timestamp       string         `json:"timestamp"`
	Category        *EmailCategory `json:"category" validate:"required,category"`
	Priority        *string        `json:"priority"`
	IsSpam          bool           `json:"is_spam"`
	ActionItems     *string        `json:"action_items"`
	Summary         *string        `json:"summary" validate:"required,min=1"`
	HasAttachment   bool           `json:"has_attachment"`
	AttachmentNames []string       `json:"attachment_names"`
}

// CategoryName returns the category or an empty string when not yet enriched.
func (e *EmailRecord) CategoryName() string {
	if e.Category == nil {
		return ""
	}
	return string(*e.Category)
}

// IsEnriched reports whether the record carries a category and summary.
func (e *EmailRecord) IsEnriched() bool {
	return e.Category != nil && e.Summary != nil && *e.Summary != ""
}

// HasActionItems reports whether the record carries real tasks, not the sentinel.
func (e *EmailRecord) HasActionItems() bool {
	if e.ActionItems == nil {
		return false
	}
	items := strings.TrimSpace(*e.ActionItems)
	return items != "" && items != NoActionItems
}

// FindEmail looks a record up by id, falling back to message_id.
func FindEmail(inbox []EmailRecord, id string) *EmailRecord {
	if id == "" {
		return nil
	}
	for i := range inbox {
		if inbox[i].ID == id {
			return &inbox[i]
		}
	}
	for i := range inbox {
		if inbox[i].MessageID == id {
			return &inbox[i]
		}
	}
	return nil
}

// ActionItemEmails returns the records with real action items, in inbox order.
func ActionItemEmails(inbox []EmailRecord) []EmailRecord {
	result := make([]EmailRecord, 0)
	for _, e := range inbox {
		if e.HasActionItems() {
			result = append(result, e)
		}
	}
	return result
}

// =============================================================================
// No-Reply Detection
// =============================================================================

var noReplyPatterns = []string{
	"noreply", "no-reply", "no_reply", "donotreply", "do-not-reply", "do_not_reply",
	"mailer-daemon", "postmaster@",
}

// IsNoReplySender reports whether the address belongs to an automated sender that
// must never receive an auto-reply.
func IsNoReplySender(address string) bool {
	addr := strings.ToLower(strings.TrimSpace(address))
	if addr == "" {
		return false
	}
	for _, pattern := range noReplyPatterns {
		if strings.Contains(addr, pattern) {
			return true
		}
	}
	return false
}

// ShouldAutoReply reports whether an auto-reply draft may exist for the record.
func (e *EmailRecord) ShouldAutoReply() bool {
	if e.IsSpam || (e.Category != nil && *e.Category == CategorySpam) {
		return false
	}
	return !IsNoReplySender(e.Sender)
}

func ptr[T any](v T) *T {
	return &v
}
