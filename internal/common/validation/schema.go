package validation

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"membership-workflow/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const (
	CodeRequired  = "REQUIRED_FIELD_MISSING"
	CodeBlank     = "BLANK_VALUE"
	CodeMaxLength = "MAX_LENGTH_VIOLATION"
	CodeType      = "INVALID_TYPE"
	CodeInvalid   = "INVALID_VALUE"
)

// nonBlank requires at least one non-whitespace character.
const nonBlank = `\S`

func stringField(maxLength int, required bool) map[string]interface{} {
	prop := map[string]interface{}{
		"type":      "string",
		"maxLength": maxLength,
	}
	if required {
		prop["pattern"] = nonBlank
	}
	return prop
}

// formSchema mirrors the intake limits of models.ApplicationForm. gojsonschema counts
// maxLength in runes.
func formSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"profileName":    stringField(models.MaxProfileNameLength, true),
			"backgroundInfo": stringField(models.MaxBackgroundInfoLength, true),
			"historyNotes":   stringField(models.MaxHistoryNotesLength, true),
			"motivation":     stringField(models.MaxMotivationLength, true),
			"priorIncidents": stringField(models.MaxPriorIncidentsLength, false),
		},
		"required": []string{"profileName", "backgroundInfo", "historyNotes", "motivation"},
	}
}

// FormValidator checks submission forms against the compiled intake schema.
type FormValidator struct {
	schema *gojsonschema.Schema
}

func NewFormValidator() (*FormValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(formSchema()))
	if err != nil {
		return nil, fmt.Errorf("compile form schema: %w", err)
	}
	return &FormValidator{schema: schema}, nil
}

// ValidateForm validates a normalized form.
func (v *FormValidator) ValidateForm(form models.ApplicationForm) *ValidationResult {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(form))
	if err != nil {
		return &ValidationResult{
			Valid:  false,
			Errors: []ValidationError{{Field: "(root)", Message: err.Error(), Code: CodeInvalid}},
		}
	}
	return convertResult(result)
}

func convertResult(result *gojsonschema.Result) *ValidationResult {
	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if desc.Type() == "required" {
			if prop, ok := desc.Details()["property"].(string); ok {
				field = prop
			}
		}
		errs = append(errs, ValidationError{
			Field:   field,
			Message: describe(desc),
			Code:    codeFor(desc.Type()),
		})
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func codeFor(schemaErrType string) string {
	switch schemaErrType {
	case "required":
		return CodeRequired
	case "pattern":
		return CodeBlank
	case "string_lte":
		return CodeMaxLength
	case "invalid_type":
		return CodeType
	default:
		return CodeInvalid
	}
}

func describe(desc gojsonschema.ResultError) string {
	switch desc.Type() {
	case "required", "pattern":
		return "value is required"
	case "string_lte":
		return fmt.Sprintf("value must be at most %v characters", desc.Details()["max"])
	default:
		return desc.Description()
	}
}

// ValidateRejectionReason requires a non-blank reason within the rejection limit.
func ValidateRejectionReason(reason string) *ValidationResult {
	switch {
	case strings.TrimSpace(reason) == "":
		return &ValidationResult{Errors: []ValidationError{{Field: "reason", Message: "value is required", Code: CodeBlank}}}
	case utf8.RuneCountInString(reason) > models.MaxRejectionReasonLength:
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "reason",
			Message: fmt.Sprintf("value must be at most %d characters", models.MaxRejectionReasonLength),
			Code:    CodeMaxLength,
		}}}
	}
	return &ValidationResult{Valid: true}
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, 0, len(vr.Errors))
	for _, err := range vr.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var errs []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field {
			errs = append(errs, err)
		}
	}
	return errs
}

// FieldMessages flattens the result into field -> message, keeping the first message per field.
func (vr *ValidationResult) FieldMessages() map[string]string {
	out := make(map[string]string, len(vr.Errors))
	for _, err := range vr.Errors {
		if _, exists := out[err.Field]; !exists {
			out[err.Field] = err.Message
		}
	}
	return out
}
