package domain

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"inbox_server/pkg/apperr"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
			field := fl.Field()
			if field.Kind() == reflect.Ptr {
				if field.IsNil() {
					return false
				}
				field = field.Elem()
			}
			return field.Kind() == reflect.String && EmailCategory(field.String()).IsValid()
		})
		validate = v
	})
	return validate
}

// ValidateRecord checks an enriched record against the record schema. Failures are
// returned as VALIDATION_FAILED application errors.
func ValidateRecord(record *EmailRecord) error {
	if record == nil {
		return apperr.ValidationFailed("record is nil")
	}
	if err := recordValidator().Struct(record); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			if fe.Tag() == "required" {
				return MissingFieldError(fe.Field())
			}
			return apperr.InvalidInput(fe.Field(), "failed '"+fe.Tag()+"' check")
		}
		return apperr.ValidationFailed(err.Error())
	}
	if *record.Category == CategorySpam {
		if record.Priority != nil {
			return apperr.InvalidInput("priority", "must be absent for Spam")
		}
		if record.HasActionItems() {
			return apperr.InvalidInput("action_items", "must be absent for Spam")
		}
	}
	return nil
}

// MissingFieldError builds the error for an absent required field.
func MissingFieldError(field string) error {
	return apperr.MissingField(field)
}

// =============================================================================
// Model Extraction
// =============================================================================

// Extraction is the JSON object the model must return for one email.
type Extraction struct {
	Category    *string `json:"category"`
	Priority    *string `json:"priority"`
	IsSpam      *bool   `json:"is_spam"`
	ActionItems *string `json:"action_items"`
	Summary     *string `json:"summary"`
	AutoReply   *string `json:"auto_reply"`
}

// ExtractionResult is either an enriched record (plus optional auto-reply text) or
// the validation error that rejected the model output.
type ExtractionResult struct {
	record    *EmailRecord
	autoReply string
	err       error
}

// Ok reports whether the model output was accepted.
func (r ExtractionResult) Ok() bool { return r.err == nil && r.record != nil }

// Record returns the enriched record or the validation error.
func (r ExtractionResult) Record() (*EmailRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.record, nil
}

// AutoReply returns the suggested reply text, empty when none is allowed.
func (r ExtractionResult) AutoReply() string { return r.autoReply }

// Err returns the validation error, if any.
func (r ExtractionResult) Err() error { return r.err }

func rejected(err error) ExtractionResult {
	return ExtractionResult{err: err}
}

// DecodeExtraction parses model output for raw, merges it onto a copy of the raw
// record under id and validates the result. Source fields (sender, body, ...) always
// come from raw; the model only supplies enrichment fields.
func DecodeExtraction(raw RawEmail, id, output string) ExtractionResult {
	payload := stripCodeFence(output)
	if payload == "" {
		return rejected(apperr.ValidationFailed("empty model output"))
	}

	var ext Extraction
	if err := json.Unmarshal([]byte(payload), &ext); err != nil {
		return rejected(apperr.ValidationFailed("model output is not a valid extraction object").WithError(err))
	}

	if ext.Category == nil || strings.TrimSpace(*ext.Category) == "" {
		return rejected(MissingFieldError("category"))
	}
	category, ok := canonicalCategory(*ext.Category)
	if !ok {
		return rejected(apperr.InvalidInput("category", "'"+*ext.Category+"' is not an allowed category"))
	}
	if ext.Summary == nil || strings.TrimSpace(*ext.Summary) == "" {
		return rejected(MissingFieldError("summary"))
	}

	record := raw
	record.Recipients = cloneStrings(raw.Recipients)
	record.AttachmentNames = cloneStrings(raw.AttachmentNames)
	if record.ID == "" {
		record.ID = id
	}
	record.Category = &category
	record.Summary = ptr(strings.TrimSpace(*ext.Summary))
	record.Priority = nonBlank(ext.Priority)
	record.ActionItems = nonBlank(ext.ActionItems)
	record.IsSpam = ext.IsSpam != nil && *ext.IsSpam

	autoReply := ""
	if ext.AutoReply != nil {
		autoReply = strings.TrimSpace(*ext.AutoReply)
	}

	if category == CategorySpam {
		record.IsSpam = true
		record.Priority = nil
		record.ActionItems = nil
	}
	if !record.ShouldAutoReply() {
		autoReply = ""
	}

	if err := ValidateRecord(&record); err != nil {
		return rejected(err)
	}
	return ExtractionResult{record: &record, autoReply: autoReply}
}

func canonicalCategory(s string) (EmailCategory, bool) {
	s = strings.TrimSpace(s)
	for _, def := range Categories {
		if strings.EqualFold(string(def.Category), s) {
			return def.Category, true
		}
	}
	return "", false
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
