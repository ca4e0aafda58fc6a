package uploads

import (
	"sort"

	pkgerrors "github.com/castanedo/poscore-backend/pkg/errors"
)

// RowError pins one rejected upload row. Row numbers are 1-based over the
// data rows, matching what the operator sees below the header in the file.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// RawRow is one parsed data row with its position in the file.
type RawRow struct {
	Number int
	Fields []string
}

func sortRowErrors(errs []RowError) {
	sort.Slice(errs, func(i, j int) bool {
		if errs[i].Row != errs[j].Row {
			return errs[i].Row < errs[j].Row
		}
		return errs[i].Field < errs[j].Field
	})
}

// rejectBatch wraps the accumulated row errors into the single validation
// error callers receive. The whole batch fails; nothing was persisted.
func rejectBatch(errs []RowError) error {
	sortRowErrors(errs)
	return pkgerrors.New(pkgerrors.CodeValidation, "upload rejected").
		WithDetails(map[string]any{"rows": errs})
}
