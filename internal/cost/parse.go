// Package cost turns model usage exports into per-day token and dollar totals.
package cost

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Column names of the usage export.
const (
	ColumnDate            = "usage_date_utc"
	ColumnModel           = "model_version"
	ColumnInputNoCache    = "usage_input_tokens_no_cache"
	ColumnInputCacheWrite = "usage_input_tokens_cache_write"
	ColumnInputCacheRead  = "usage_input_tokens_cache_read"
	ColumnOutput          = "usage_output_tokens"
)

var requiredColumns = []string{
	ColumnDate,
	ColumnModel,
	ColumnInputNoCache,
	ColumnInputCacheWrite,
	ColumnInputCacheRead,
	ColumnOutput,
}

// Parse errors.
var (
	ErrEmptyFile     = errors.New("file has no header row")
	ErrMissingColumn = errors.New("missing required column")
	ErrMalformedRow  = errors.New("malformed row")
)

// Row is one usage record. Input sums the uncached, cache-write and cache-read columns.
type Row struct {
	Date         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// ParseError wraps any failure while reading an export.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("error parsing CSV file: line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("error parsing CSV file: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse reads a usage export. The first non-empty row is the header; blank
// lines are skipped. Dates keep only the part before 'T'.
func Parse(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := readRecord(reader)
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Err: ErrEmptyFile}
	}
	if err != nil {
		return nil, err
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, &ParseError{Line: 1, Err: err}
	}

	var rows []Row
	for {
		record, err := readRecord(reader)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		line, _ := reader.FieldPos(0)
		row, err := parseRow(record, index)
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// readRecord returns the next record that has at least one non-blank field.
func readRecord(reader *csv.Reader) ([]string, error) {
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, err
			}
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, &ParseError{Line: csvErr.Line, Err: csvErr.Err}
			}
			return nil, &ParseError{Err: err}
		}
		if !isBlank(record) {
			return record, nil
		}
	}
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return index, nil
}

func parseRow(record []string, index map[string]int) (Row, error) {
	field := func(col string) (string, error) {
		i := index[col]
		if i >= len(record) {
			return "", fmt.Errorf("%w: expected column %s", ErrMalformedRow, col)
		}
		return strings.TrimSpace(record[i]), nil
	}

	date, err := field(ColumnDate)
	if err != nil {
		return Row{}, err
	}
	if before, _, found := strings.Cut(date, "T"); found {
		date = before
	}
	if date == "" {
		return Row{}, fmt.Errorf("%w: empty %s", ErrMalformedRow, ColumnDate)
	}

	model, err := field(ColumnModel)
	if err != nil {
		return Row{}, err
	}

	var input int64
	for _, col := range []string{ColumnInputNoCache, ColumnInputCacheWrite, ColumnInputCacheRead} {
		n, err := tokenField(field, col)
		if err != nil {
			return Row{}, err
		}
		input += n
	}

	output, err := tokenField(field, ColumnOutput)
	if err != nil {
		return Row{}, err
	}

	return Row{Date: date, Model: model, InputTokens: input, OutputTokens: output}, nil
}

func tokenField(field func(string) (string, error), col string) (int64, error) {
	raw, err := field(col)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f < 0 {
			return 0, fmt.Errorf("%w: %s=%q is not a token count", ErrMalformedRow, col, raw)
		}
		return int64(f), nil
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s is negative", ErrMalformedRow, col)
	}
	return n, nil
}
