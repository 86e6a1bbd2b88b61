package core

// validation.go implements the three spreadsheet health checks.
//
// The checks always run in the same order (headers, unique column, empty
// cells) and never stop early: a file with several problems gets every
// problem reported at once, in check order.

import "fmt"

// Messages returned to callers. They are part of the public response contract.
const (
	MsgHealthy       = "The health of excel file is OK."
	MsgBadHeaders    = "Incorrect or unordered headers."
	MsgEmptyCells    = "Found empty cells."
	msgDuplicatesFmt = "The column '%s' has duplicated values."
	msgNoColumnFmt   = "The column '%s' was not found."
)

// Issue codes for rule violations.
const (
	CodeBadHeaders    = "HDR001"
	CodeDuplicates    = "UNQ001"
	CodeMissingColumn = "UNQ002"
	CodeEmptyCells    = "EMP001"
)

// ValidationError is one failed health check.
type ValidationError struct {
	Code    string
	Column  string // set for column-specific checks
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// Issue converts the error into its response entry.
func (e ValidationError) Issue() Issue {
	return Issue{Code: e.Code, Message: e.Message, Action: ruleActions[e.Code]}
}

// CheckFunc is a single health check. It returns nil when the table passes.
type CheckFunc func(t *Table, rules Rules) *ValidationError

// Validator runs the health checks for one set of rules.
type Validator struct {
	rules  Rules
	checks []CheckFunc
}

// NewValidator creates a validator for the given rules. The rules are copied.
func NewValidator(rules Rules) *Validator {
	headers := make([]string, len(rules.RequiredHeaders))
	copy(headers, rules.RequiredHeaders)

	return &Validator{
		rules: Rules{RequiredHeaders: headers, UniqueColumn: rules.UniqueColumn},
		checks: []CheckFunc{
			checkHeaders,
			checkUniqueColumn,
			checkEmptyCells,
		},
	}
}

// Rules returns a copy of the validator's rules.
func (v *Validator) Rules() Rules {
	headers := make([]string, len(v.rules.RequiredHeaders))
	copy(headers, v.rules.RequiredHeaders)
	return Rules{RequiredHeaders: headers, UniqueColumn: v.rules.UniqueColumn}
}

// Validate runs every check against t and aggregates the failures.
func (v *Validator) Validate(t *Table) ValidationResult {
	var (
		errs    []string
		details []Issue
	)

	for _, check := range v.checks {
		if verr := check(t, v.rules); verr != nil {
			errs = append(errs, verr.Message)
			details = append(details, verr.Issue())
		}
	}

	if len(errs) == 0 {
		return SuccessResult()
	}

	return ValidationResult{
		Status:  StatusError,
		Kind:    KindValidation,
		Errors:  errs,
		Details: details,
	}
}

// Validate checks t against the given header row and unique column.
func Validate(t *Table, requiredHeaders []string, uniqueColumn string) ValidationResult {
	return NewValidator(Rules{RequiredHeaders: requiredHeaders, UniqueColumn: uniqueColumn}).Validate(t)
}

// HeadersMatch reports whether columns equal required element by element.
func HeadersMatch(columns, required []string) bool {
	if len(columns) != len(required) {
		return false
	}
	for i := range columns {
		if columns[i] != required[i] {
			return false
		}
	}
	return true
}

// HasDuplicates reports whether any value occurs more than once.
// Empty cells are values too, so two blanks count as a duplicate.
func HasDuplicates(values []string) bool {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}

// HasEmptyCells reports whether any cell of any row is empty.
func HasEmptyCells(t *Table) bool {
	for _, row := range t.Rows {
		for _, cell := range row {
			if cell == "" {
				return true
			}
		}
	}
	return false
}

func checkHeaders(t *Table, rules Rules) *ValidationError {
	if HeadersMatch(t.Columns, rules.RequiredHeaders) {
		return nil
	}
	return &ValidationError{Code: CodeBadHeaders, Message: MsgBadHeaders}
}

func checkUniqueColumn(t *Table, rules Rules) *ValidationError {
	values, ok := t.Column(rules.UniqueColumn)
	if !ok {
		return &ValidationError{
			Code:    CodeMissingColumn,
			Column:  rules.UniqueColumn,
			Message: fmt.Sprintf(msgNoColumnFmt, rules.UniqueColumn),
		}
	}
	if !HasDuplicates(values) {
		return nil
	}
	return &ValidationError{
		Code:    CodeDuplicates,
		Column:  rules.UniqueColumn,
		Message: fmt.Sprintf(msgDuplicatesFmt, rules.UniqueColumn),
	}
}

func checkEmptyCells(t *Table, _ Rules) *ValidationError {
	if !HasEmptyCells(t) {
		return nil
	}
	return &ValidationError{Code: CodeEmptyCells, Message: MsgEmptyCells}
}
