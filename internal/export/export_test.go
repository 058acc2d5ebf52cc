package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func sampleReport() Report {
	return Report{
		UserName:    "山田太郎",
		Dataset:     "歴史",
		TargetCount: 2,
		Elapsed:     125*time.Second + 400*time.Millisecond,
		At:          time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
		Records: []Record{
			{
				Prompt:         "江戸幕府を開いた人物は？",
				Answer:         "徳川家康",
				Choices:        []string{"織田信長", "徳川家康", "豊臣秀吉", "源頼朝"},
				Chosen:         "徳川家康",
				Correct:        true,
				ElapsedSeconds: intPtr(4),
			},
			{
				Prompt:  "日本一長い川は？",
				Answer:  "信濃川",
				Choices: []string{"利根川", "信濃川", "石狩川", "北上川"},
				Chosen:  "利根川",
				Field:   "地理",
			},
		},
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleReport()))

	raw := buf.Bytes()
	require.True(t, bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}), "missing BOM")

	rows, err := csv.NewReader(bytes.NewReader(raw[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{
		"江戸幕府を開いた人物は？", "徳川家康", "織田信長;徳川家康;豊臣秀吉;源頼朝", "徳川家康", "○", "4",
		"歴史", "山田太郎", "2026-03-14 15:09:26", "2m 5s", "2",
	}, rows[1])
	assert.Equal(t, "×", rows[2][4])
	assert.Equal(t, "", rows[2][5])
	assert.Equal(t, "地理", rows[2][6])
	assert.Equal(t, "2m 5s", rows[2][9])
}

func TestWriteHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	rep := sampleReport()
	rep.Records = nil
	require.NoError(t, Write(&buf, rep))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestFormatElapsed(t *testing.T) {
	cases := map[time.Duration]string{
		0:                     "0m 0s",
		59 * time.Second:      "0m 59s",
		time.Minute:           "1m 0s",
		61*time.Minute + 1500: "61m 0s",
		-time.Second:          "0m 0s",
	}
	for d, want := range cases {
		assert.Equal(t, want, FormatElapsed(d), d.String())
	}
}

func TestFileName(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	assert.Equal(t, "results_山田_20260314-150926.csv", FileName("山田", at))
	assert.Equal(t, "results_guest_20260314-150926.csv", FileName("  ", at))
	assert.Equal(t, "results_a_b_c_d_20260314-150926.csv", FileName("a/b:c d", at))
}

func TestContentDisposition(t *testing.T) {
	got := ContentDisposition("results_山田_20260314-150926.csv")
	assert.Equal(t,
		`attachment; filename="results____20260314-150926.csv"; filename*=UTF-8''results_%E5%B1%B1%E7%94%B0_20260314-150926.csv`,
		got)

	// one placeholder per non-ASCII rune or quote character
	assert.Contains(t, ContentDisposition(`a"b\c.csv`), `filename="a_b_c.csv"`)
	assert.Contains(t, ContentDisposition("歴史テスト.csv"), `filename="_____.csv"`)
}
