package schema

import "fmt"

// Severity grades a validation issue. Only error-severity issues make a
// definition unloadable; warnings are surfaced and accepted.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationIssue pinpoints one problem in a workflow definition. Field is
// the dotted location inside the definition document, e.g. trigger.cron or
// steps[1].actions[0].config.
type ValidationIssue struct {
	Field    string   `json:"field"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// ValidationResult is the outcome of checking one workflow definition at
// load time. Issues of both severities accumulate in document order.
type ValidationResult struct {
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// Valid reports whether the definition can be loaded. Warnings alone do not
// make a definition invalid.
func (r *ValidationResult) Valid() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return false
		}
	}
	return true
}

// AddError records an issue that blocks loading the definition.
func (r *ValidationResult) AddError(field, code, message string) {
	r.Issues = append(r.Issues, ValidationIssue{
		Field: field, Code: code, Message: message, Severity: SeverityError,
	})
}

// AddWarning records a non-blocking issue.
func (r *ValidationResult) AddWarning(field, code, message string) {
	r.Issues = append(r.Issues, ValidationIssue{
		Field: field, Code: code, Message: message, Severity: SeverityWarning,
	})
}

// Errors returns the error-severity issues.
func (r *ValidationResult) Errors() []ValidationIssue {
	return r.bySeverity(SeverityError)
}

// Warnings returns the warning-severity issues.
func (r *ValidationResult) Warnings() []ValidationIssue {
	return r.bySeverity(SeverityWarning)
}

func (r *ValidationResult) bySeverity(sev Severity) []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range r.Issues {
		if issue.Severity == sev {
			out = append(out, issue)
		}
	}
	return out
}

// Merge appends another result's issues.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Issues = append(r.Issues, other.Issues...)
}

// ToError collapses an invalid result into an EngineError carrying the full
// issue list, nil when the definition is loadable.
func (r *ValidationResult) ToError() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}

	msg := errs[0].Message
	if len(errs) > 1 {
		msg = fmt.Sprintf("definition has %d validation errors", len(errs))
	}

	return NewError(ErrCodeValidation, msg).
		WithDetails(map[string]any{"issues": r.Issues})
}
