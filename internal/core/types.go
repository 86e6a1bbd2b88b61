package core

// Table is one sheet loaded into memory: the header row followed by the data
// rows, both in file order. Every row holds exactly len(Columns) cells; the
// empty string is an empty cell. A Table is never mutated after NewTable.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable builds a Table from a header row and data rows.
//
// Rows shorter than the header are padded with empty cells. Rows wider than
// the header widen the table: the extra columns get empty names, so a stray
// value to the right of the header shows up as a header mismatch plus empty
// cells instead of being silently dropped.
func NewTable(header []string, rows [][]string) *Table {
	width := len(header)
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	columns := make([]string, width)
	copy(columns, header)

	padded := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, width)
		copy(cells, row)
		padded[i] = cells
	}

	return &Table{Columns: columns, Rows: padded}
}

// ColumnIndex returns the position of the first column with the given name.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, col := range t.Columns {
		if col == name {
			return i, true
		}
	}
	return -1, false
}

// Column returns every value of the named column in row order.
func (t *Table) Column(name string) ([]string, bool) {
	idx, ok := t.ColumnIndex(name)
	if !ok {
		return nil, false
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, true
}

// Value returns the cell at the given row for the named column.
func (t *Table) Value(row int, column string) (string, bool) {
	idx, ok := t.ColumnIndex(column)
	if !ok || row < 0 || row >= len(t.Rows) {
		return "", false
	}
	return t.Rows[row][idx], true
}

// Rules configures a Validator.
type Rules struct {
	RequiredHeaders []string // exact, ordered header row
	UniqueColumn    string   // column whose values must not repeat
}

// Status is the pass/fail tag of a ValidationResult.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Kind tells callers which stage produced a ValidationResult.
type Kind string

const (
	KindOK         Kind = "ok"
	KindValidation Kind = "validation"
	KindDecode     Kind = "decode"
	KindParse      Kind = "parse"
	KindUnexpected Kind = "unexpected"
)

// Issue is one structured entry of a failed result.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

// ValidationResult is the single response shape for every outcome.
//
// Errors always holds the plain messages in check order; Details carries the
// same entries with support codes. Message is set on success and on
// non-validation failures.
type ValidationResult struct {
	Status  Status   `json:"status"`
	Kind    Kind     `json:"kind"`
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	Details []Issue  `json:"details,omitempty"`
}

// OK reports whether the spreadsheet passed every check.
func (r ValidationResult) OK() bool {
	return r.Status == StatusSuccess
}

// SuccessResult is returned when all checks pass.
func SuccessResult() ValidationResult {
	return ValidationResult{
		Status:  StatusSuccess,
		Kind:    KindOK,
		Message: MsgHealthy,
	}
}

// ErrorResult reports a failure that happened before or outside the checks
// (decode, parse or unexpected). The error text is returned verbatim.
func ErrorResult(kind Kind, err error) ValidationResult {
	text := "unknown error"
	if err != nil {
		text = err.Error()
	}
	msg := MapError(err)
	return ValidationResult{
		Status:  StatusError,
		Kind:    kind,
		Message: text,
		Errors:  []string{text},
		Details: []Issue{{Code: msg.Code, Message: msg.Message, Action: msg.Action}},
	}
}
