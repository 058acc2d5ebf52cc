package question

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// Column names expected in a question CSV.
const (
	ColumnPrompt = "問題"
	ColumnAnswer = "答え"
	ColumnField  = "分野"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrLoad is matched by every LoadError.
var ErrLoad = errors.New("load question pool")

// LoadError describes why a pool could not be loaded. Row is 1-based and
// counts the header, so it matches what a spreadsheet shows; zero means the
// problem is not tied to a row.
type LoadError struct {
	Row    int
	Column string
	Reason string
}

func (e *LoadError) Error() string {
	switch {
	case e.Row > 0 && e.Column != "":
		return fmt.Sprintf("row %d column %s: %s", e.Row, e.Column, e.Reason)
	case e.Column != "":
		return fmt.Sprintf("column %s: %s", e.Column, e.Reason)
	case e.Row > 0:
		return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
	}
	return e.Reason
}

func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// LoadOptions tunes schema validation.
type LoadOptions struct {
	// RequireField makes the 分野 column mandatory.
	RequireField bool
	// DefaultField is used when a row has no 分野 value.
	DefaultField string
}

// Load parses a question CSV, validates it and classifies every answer.
func Load(r io.Reader, opts LoadOptions) (Pool, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &LoadError{Reason: fmt.Sprintf("read file: %v", err)}
	}
	text, err := decode(raw)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &LoadError{Reason: "file is empty"}
	}
	if err != nil {
		return nil, &LoadError{Row: 1, Reason: fmt.Sprintf("read header: %v", err)}
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	required := []string{ColumnPrompt, ColumnAnswer}
	if opts.RequireField {
		required = append(required, ColumnField)
	}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return nil, &LoadError{Column: c, Reason: "required column is missing"}
		}
	}
	fieldIdx, hasField := cols[ColumnField]

	var pool Pool
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, &LoadError{Row: row, Reason: fmt.Sprintf("read row: %v", err)}
		}
		if blank(record) {
			continue
		}

		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		for _, c := range required {
			if get(c) == "" {
				return nil, &LoadError{Row: row, Column: c, Reason: "value is empty"}
			}
		}

		field := opts.DefaultField
		if hasField && fieldIdx < len(record) {
			if v := strings.TrimSpace(record[fieldIdx]); v != "" {
				field = v
			}
		}
		pool = append(pool, Question{
			ID:     len(pool),
			Prompt: get(ColumnPrompt),
			Answer: get(ColumnAnswer),
			Field:  field,
		})
	}

	if len(pool) == 0 {
		return nil, &LoadError{Reason: "no questions found"}
	}
	// one answer alone leaves nothing to draw distractors from
	if pool.DistinctAnswers() < 2 {
		return nil, &LoadError{Column: ColumnAnswer, Reason: "at least two distinct answers are required"}
	}
	ClassifyPool(pool)
	return pool, nil
}

// decode returns the file as UTF-8, falling back to Shift_JIS which is what
// spreadsheet tools on Japanese Windows save by default.
func decode(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	out, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), raw)
	if err != nil || !utf8.Valid(out) || bytes.ContainsRune(out, utf8.RuneError) {
		return "", &LoadError{Reason: "unsupported text encoding (expected UTF-8 or Shift_JIS)"}
	}
	return string(out), nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
