package question

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

const historyCSV = "問題,答え\n" +
	"江戸幕府を開いた人物は？,徳川家康\n" +
	"明治維新が始まった年は？,1868\n" +
	"1854年に結ばれた条約は？,日米和親条約\n"

func TestLoad(t *testing.T) {
	p, err := Load(strings.NewReader(historyCSV), LoadOptions{DefaultField: "歴史"})
	require.NoError(t, err)
	require.Len(t, p, 3)

	assert.Equal(t, Question{ID: 0, Prompt: "江戸幕府を開いた人物は？", Answer: "徳川家康", Category: CategoryPerson, Field: "歴史"}, p[0])
	assert.Equal(t, CategoryEraYear, p[1].Category)
	assert.Equal(t, CategoryTreatyLaw, p[2].Category)
	assert.Equal(t, 2, p[2].ID)
}

func TestLoadStripsBOMAndReadsField(t *testing.T) {
	src := "\xEF\xBB\xBF分野,問題,答え\n地理,日本一長い川は？,信濃川\n,日本一高い山は？,富士山\n"
	p, err := Load(strings.NewReader(src), LoadOptions{DefaultField: "その他"})
	require.NoError(t, err)
	require.Len(t, p, 2)
	assert.Equal(t, "地理", p[0].Field)
	assert.Equal(t, "その他", p[1].Field)
}

func TestLoadShiftJIS(t *testing.T) {
	encoded, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte(historyCSV))
	require.NoError(t, err)

	p, err := Load(bytes.NewReader(encoded), LoadOptions{})
	require.NoError(t, err)
	require.Len(t, p, 3)
	assert.Equal(t, "徳川家康", p[0].Answer)
}

func TestLoadSkipsBlankRows(t *testing.T) {
	p, err := Load(strings.NewReader("問題,答え\n\nQ1,A1\n , \nQ2,A2\n"), LoadOptions{})
	require.NoError(t, err)
	assert.Len(t, p, 2)
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name   string
		src    string
		opts   LoadOptions
		row    int
		column string
	}{
		{name: "empty file", src: ""},
		{name: "missing answer column", src: "問題,解答\nQ,A\n", column: ColumnAnswer},
		{name: "missing field column", src: "問題,答え\nQ,A\n", opts: LoadOptions{RequireField: true}, column: ColumnField},
		{name: "empty answer", src: "問題,答え\nQ1,A1\nQ2,\n", row: 3, column: ColumnAnswer},
		{name: "empty prompt", src: "問題,答え\n,A1\n", row: 2, column: ColumnPrompt},
		{name: "empty required field", src: "分野,問題,答え\n,Q,A\n", opts: LoadOptions{RequireField: true}, row: 2, column: ColumnField},
		{name: "header only", src: "問題,答え\n"},
		{name: "single row", src: "問題,答え\nQ1,東京\n", column: ColumnAnswer},
		{name: "one distinct answer", src: "問題,答え\nQ1,東京\nQ2, 東京\nQ3,東京\n", column: ColumnAnswer},
		{name: "bad encoding", src: string([]byte{0x96, 0xe2, 0x91, 0xe8, 0x2c, 0xff, 0xff, 0x0a})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tc.src), tc.opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrLoad))

			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tc.row, le.Row)
			assert.Equal(t, tc.column, le.Column)
			assert.NotEmpty(t, le.Error())
		})
	}
}

func TestCatalogReturnsPrivateCopies(t *testing.T) {
	fsys := fstest.MapFS{
		"rekishi.csv": &fstest.MapFile{Data: []byte(historyCSV)},
	}
	c := NewCatalog(fsys, []Dataset{{Name: "歴史", File: "rekishi.csv"}}, LoadOptions{})

	a, err := c.Pool("歴史")
	require.NoError(t, err)
	assert.Equal(t, "歴史", a[0].Field)

	a[0].Answer = "mutated"
	b, err := c.Pool("歴史")
	require.NoError(t, err)
	assert.Equal(t, "徳川家康", b[0].Answer)
}

func TestCatalogErrors(t *testing.T) {
	fsys := fstest.MapFS{
		"broken.csv": &fstest.MapFile{Data: []byte("foo,bar\n1,2\n")},
	}
	c := NewCatalog(fsys, []Dataset{
		{Name: "地理", File: "chiri.csv"},
		{Name: "壊れた", File: "broken.csv"},
	}, LoadOptions{})

	_, err := c.Pool("公民")
	assert.ErrorIs(t, err, ErrUnknownDataset)

	_, err = c.Pool("地理")
	assert.Error(t, err)

	_, err = c.Pool("壊れた")
	assert.ErrorIs(t, err, ErrLoad)

	assert.Len(t, c.Datasets(), 2)
}

func TestPoolHelpers(t *testing.T) {
	p := poolOf("1600", "1600", "徳川家康")
	assert.Equal(t, 2, p.DistinctAnswers())
	assert.Equal(t, 2, p.CategoryCounts()[CategoryEraYear])

	q, ok := p.ByID(2)
	require.True(t, ok)
	assert.Equal(t, "徳川家康", q.Answer)
	_, ok = p.ByID(9)
	assert.False(t, ok)

	var empty Pool
	assert.Nil(t, empty.Clone())
}

func TestBundledDatasetsLoad(t *testing.T) {
	c := NewCatalog(os.DirFS("../../data"), []Dataset{
		{Name: "歴史", File: "rekishi.csv"},
		{Name: "地理", File: "chiri.csv"},
		{Name: "公民", File: "koumin.csv"},
	}, LoadOptions{RequireField: true})

	for _, ds := range c.Datasets() {
		p, err := c.Pool(ds.Name)
		require.NoError(t, err, ds.Name)
		assert.GreaterOrEqual(t, p.DistinctAnswers(), 20, ds.Name)
	}
}
