package export

import (
	"bytes"
	"encoding/csv"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/forbiddencoding/ruddit/common/gemini"
	"github.com/forbiddencoding/ruddit/common/persistence/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func samplePosts() []*entity.Post {
	return []*entity.Post{
		{
			ID:          "abc123",
			Title:       "Freight, rates \"and\" you",
			Author:      "shipper",
			Subreddit:   "logistics",
			Score:       42,
			NumComments: 7,
			Created:     time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
			Permalink:   "https://www.reddit.com/r/logistics/comments/abc123/",
			SelfText:    "line one\nline two",
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func readXLSX(t *testing.T, path, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestExportEmptyWritesHeaderOnly(t *testing.T) {
	dir := t.TempDir()

	csvPath, err := Export(nil, filepath.Join(dir, "out", "posts.csv"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{Columns}, readCSV(t, csvPath))

	xlsxPath, err := Export([]*entity.Post{}, filepath.Join(dir, "out", "posts.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{Columns}, readXLSX(t, xlsxPath, PostsSheet))
}

func TestExportCSV(t *testing.T) {
	path, err := Export(samplePosts(), filepath.Join(t.TempDir(), "posts.csv"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))

	assert.Equal(t, [][]string{
		Columns,
		{"abc123", "Freight, rates \"and\" you", "shipper", "logistics", "42", "7", "2025-03-14 09:26:53",
			"https://www.reddit.com/r/logistics/comments/abc123/", "line one\nline two"},
	}, readCSV(t, path))
}

func TestExportXLSX(t *testing.T) {
	path, err := Export(samplePosts(), filepath.Join(t.TempDir(), "posts.xlsx"))
	require.NoError(t, err)

	rows := readXLSX(t, path, PostsSheet)
	require.Len(t, rows, 2)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, []string{"abc123", "Freight, rates \"and\" you", "shipper", "logistics", "42", "7", "2025-03-14 09:26:53",
		"https://www.reddit.com/r/logistics/comments/abc123/", "line one\nline two"}, rows[1])
}

func TestExportOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.csv")

	_, err := Export(samplePosts(), path)
	require.NoError(t, err)
	require.Len(t, readCSV(t, path), 2)

	_, err = Export(nil, path)
	require.NoError(t, err)
	assert.Len(t, readCSV(t, path), 1)
}

func TestExportUnwritableDestination(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	for _, name := range []string{"posts.csv", "posts.xlsx"} {
		_, err := Export(samplePosts(), filepath.Join(blocker, name))
		require.Error(t, err)
		assert.Equal(t, errs.KindIO, errs.KindOf(err))
	}
}

func TestExportUnknownExtension(t *testing.T) {
	_, err := Export(samplePosts(), filepath.Join(t.TempDir(), "posts.json"))
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidArgument, errs.KindOf(err))
}

func TestExportLeads(t *testing.T) {
	leads := []*gemini.Lead{{
		Title:         "Looking for a 3PL",
		URL:           "https://www.reddit.com/r/logistics/comments/abc/",
		FormattedDate: "2025-01-02",
		Relevance:     "HIGH",
		Subreddit:     "logistics",
		Sentiment:     "positive",
	}}

	path, err := ExportLeads(leads, filepath.Join(t.TempDir(), "leads.xlsx"))
	require.NoError(t, err)

	rows := readXLSX(t, path, LeadsSheet)
	assert.Equal(t, [][]string{
		LeadColumns,
		{"Looking for a 3PL", "https://www.reddit.com/r/logistics/comments/abc/", "2025-01-02", "HIGH", "logistics", "positive"},
	}, rows)
}

func TestExportXLSXTruncatesLongCells(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	posts := samplePosts()
	posts[0].SelfText = strings.Repeat("é", excelize.TotalCellChars+7233)

	dir := t.TempDir()

	xlsxPath, err := Export(posts, filepath.Join(dir, "posts.xlsx"))
	require.NoError(t, err)

	f, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()
	body, err := f.GetCellValue(PostsSheet, "I2")
	require.NoError(t, err)
	assert.Equal(t, excelize.TotalCellChars, utf8.RuneCountInString(body))

	out := logs.String()
	assert.Contains(t, out, "truncated cell")
	assert.Contains(t, out, "row=abc123")
	assert.Contains(t, out, "column=Body")

	csvPath, err := Export(posts, filepath.Join(dir, "posts.csv"))
	require.NoError(t, err)
	records := readCSV(t, csvPath)
	require.Len(t, records, 2)
	assert.Equal(t, excelize.TotalCellChars+7233, utf8.RuneCountInString(records[1][8]))
	assert.Equal(t, excelize.TotalCellChars+7233, utf8.RuneCountInString(posts[0].SelfText))
}
