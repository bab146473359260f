// Package prompt renders the instructions sent to the language model. Every
// builder is pure: identical input always yields byte-identical output.
package prompt

import (
	"fmt"
	"strings"

	"inbox_server/core/domain"
)

const defaultCategorizationGuidance = "No additional categorization rules. Use the categories as defined above."

const defaultActionItemGuidance = "No additional action item rules. Use the rules as defined above."

const defaultAutoReplyGuidance = "Reply on behalf of the recipient in a formal and concise tone."

const actionItemRules = `A task must include:
- What needs to be done
- Optional deadline or timeline if mentioned

Respond with a bullet list of tasks. If no task exists, return: "` + domain.NoActionItems + `"`

const autoReplyRules = `Structure:
1. Polite greeting
2. Acknowledgement of the received email
3. Clear response or confirmation
4. Any clarifying questions (if needed)
5. Polite closing

Do not invent facts. Do not include placeholders. Keep the tone professional.`

const extractionFormat = `Respond with a single JSON object and nothing else:
{
  "category": "<one category name exactly as listed>",
  "priority": "<High | Medium | Low, or null when the category is Spam>",
  "is_spam": <true | false>,
  "action_items": "<bullet list, or null when the category is Spam>",
  "summary": "<one or two sentence summary>",
  "auto_reply": "<reply text, or null when no reply may be drafted>"
}`

// BuildCategorizationInstruction renders the single extraction instruction for
// one raw email. Absent prompt slots fall back to built-in guidance.
func BuildCategorizationInstruction(raw domain.RawEmail, prompts domain.PromptTemplateSet) string {
	var b strings.Builder

	b.WriteString("You are an Email Categorization Agent. Read the following email and classify it into exactly one of these categories:\n\n")
	for i, def := range domain.Categories {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, def.Category, def.Description)
	}

	b.WriteString("\nSpecial Note: the following categorization rules are given by the master user. ")
	b.WriteString("If they differ from the categories above, use them instead. Any special or unique instruction in them takes the main priority.\n")
	fmt.Fprintf(&b, "User categorization rules: %s\n", slotOrDefault(prompts, domain.PromptCategorization, defaultCategorizationGuidance))
	b.WriteString("If the email is categorized as Spam do not give it a priority.\n")

	b.WriteString("\nYou are also an Action Item Extraction Agent. Extract all tasks the user must complete from the email.\n\n")
	b.WriteString(actionItemRules)
	b.WriteString("\n\nSpecial Note: the following action item rules are given by the master user. ")
	b.WriteString("If they describe a different way of listing action items, use them instead. Any special or unique instruction in them takes the main priority.\n")
	fmt.Fprintf(&b, "User action item rules: %s\n", slotOrDefault(prompts, domain.PromptActionItem, defaultActionItemGuidance))
	b.WriteString("If the email is categorized as Spam do not generate action items for it.\n")

	b.WriteString("\nFinally, draft a formal and concise reply to the email.\n")
	fmt.Fprintf(&b, "Reply guidance: %s\n", slotOrDefault(prompts, domain.PromptAutoReply, defaultAutoReplyGuidance))
	b.WriteString("If the email is categorized as Spam do not generate an auto reply for it.\n")
	b.WriteString("If the sender address contains noreply do not generate an auto reply either.\n")
	b.WriteString(autoReplyRules)

	b.WriteString("\n\n--- EMAIL ---\n")
	fmt.Fprintf(&b, "From: %s (%s)\n", raw.Sender, raw.SenderName)
	fmt.Fprintf(&b, "Subject: %s\n", raw.Subject)
	fmt.Fprintf(&b, "Date: %s\n", raw.Timestamp)
	fmt.Fprintf(&b, "Body:\n%s\n", raw.Body)
	b.WriteString("--- END EMAIL ---\n\n")

	b.WriteString(extractionFormat)
	return b.String()
}

func slotOrDefault(prompts domain.PromptTemplateSet, slot, fallback string) string {
	if v, ok := prompts.Get(slot); ok {
		return v
	}
	return fallback
}
