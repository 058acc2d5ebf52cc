// Package export renders a finished quiz round as a spreadsheet-friendly CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Excel only detects UTF-8 when the file starts with a byte order mark.
const bom = "\uFEFF"

const (
	TimestampLayout = "2006-01-02 15:04:05"
	fileStampLayout = "20060102-150405"
)

// Header is the column order of the results file.
var Header = []string{
	"問題", "答え", "選択肢", "解答", "正解か", "解答時間(秒)",
	"分野", "名前", "日時", "所要時間", "出題数",
}

// Record is one answered question.
type Record struct {
	Prompt         string
	Answer         string
	Choices        []string
	Chosen         string
	Correct        bool
	ElapsedSeconds *int
	Field          string
}

// Report is everything needed to write a results file.
type Report struct {
	UserName    string
	Dataset     string
	TargetCount int
	Elapsed     time.Duration
	At          time.Time
	Records     []Record
}

// Write emits the report as BOM-prefixed UTF-8 CSV, one row per record in
// order, with the summary columns repeated on every row.
func Write(w io.Writer, rep Report) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	elapsed := FormatElapsed(rep.Elapsed)
	stamp := rep.At.Format(TimestampLayout)
	target := strconv.Itoa(rep.TargetCount)

	for i, rec := range rep.Records {
		field := rec.Field
		if field == "" {
			field = rep.Dataset
		}
		secs := ""
		if rec.ElapsedSeconds != nil {
			secs = strconv.Itoa(*rec.ElapsedSeconds)
		}
		mark := "×"
		if rec.Correct {
			mark = "○"
		}
		row := []string{
			rec.Prompt,
			rec.Answer,
			strings.Join(rec.Choices, ";"),
			rec.Chosen,
			mark,
			secs,
			field,
			rep.UserName,
			stamp,
			elapsed,
			target,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// FormatElapsed renders a duration as "Xm Ys", truncating to whole seconds.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}

// FileName builds results_<name>_<YYYYMMDD-HHMMSS>.csv. Characters that
// file systems reject are replaced; an empty name becomes "guest".
func FileName(userName string, at time.Time) string {
	return fmt.Sprintf("results_%s_%s.csv", sanitize(userName), at.Format(fileStampLayout))
}

func sanitize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "guest"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(`\/:*?"<>|`, r), unicode.IsSpace(r), unicode.IsControl(r):
			return '_'
		}
		return r
	}, name)
}

// ContentDisposition returns an attachment header with an ASCII fallback
// filename and the exact name in RFC 5987 form.
func ContentDisposition(fileName string) string {
	fallback := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, fileName)
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, fallback, url.PathEscape(fileName))
}
