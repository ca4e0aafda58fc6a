package uploads

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	pkgerrors "github.com/castanedo/poscore-backend/pkg/errors"
)

// parseTSV reads a tab-delimited file with a mandatory header row. The
// header is validated and consumed; data rows come back numbered from 1.
// Malformed rows (wrong column count, broken quoting) are reported as
// RowErrors so the caller can surface every problem in one pass. Files with
// more than maxRows data rows are rejected outright.
func parseTSV(r io.Reader, header []string, maxRows int) ([]RawRow, []RowError, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1

	first, err := reader.Read()
	if err == io.EOF {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "file is empty")
	}
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reading header row")
	}
	if err := checkHeader(first, header); err != nil {
		return nil, nil, err
	}

	var (
		rows    []RawRow
		rowErrs []RowError
		number  int
	)
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		number++
		if number > maxRows {
			return nil, nil, pkgerrors.New(
				pkgerrors.CodeValidation,
				fmt.Sprintf("file exceeds the %d data row limit", maxRows),
			)
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rowErrs = append(rowErrs, RowError{Row: number, Message: "malformed row"})
				continue
			}
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading upload")
		}
		if len(fields) != len(header) {
			rowErrs = append(rowErrs, RowError{
				Row:     number,
				Message: fmt.Sprintf("expected %d columns, found %d", len(header), len(fields)),
			})
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		rows = append(rows, RawRow{Number: number, Fields: fields})
	}
	return rows, rowErrs, nil
}

func checkHeader(got, want []string) error {
	if len(got) != len(want) {
		return headerError(want)
	}
	for i := range want {
		if !strings.EqualFold(strings.TrimSpace(got[i]), want[i]) {
			return headerError(want)
		}
	}
	return nil
}

func headerError(want []string) error {
	return pkgerrors.New(
		pkgerrors.CodeValidation,
		fmt.Sprintf("header row must be: %s", strings.Join(want, "\t")),
	)
}
