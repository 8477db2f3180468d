package export

import (
	"encoding/csv"
	"fmt"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/forbiddencoding/ruddit/common/gemini"
	"github.com/forbiddencoding/ruddit/common/persistence/entity"
	"github.com/xuri/excelize/v2"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	TimeLayout = "2006-01-02 15:04:05"
	PostsSheet = "Reddit Posts"
	LeadsSheet = "Leads"
)

// Columns is the fixed column order of a posts export.
var Columns = []string{"ID", "Title", "Author", "Subreddit", "Score", "Comments", "Created", "Permalink", "Body"}

var LeadColumns = []string{"Title", "URL", "Date", "Relevance", "Subreddit", "Sentiment"}

type table struct {
	sheet  string
	header []string
	rows   [][]any
	// keys names each row in log output.
	keys []string
}

// Export writes posts to path, choosing the format from the extension (.xlsx or .csv).
// An existing file is overwritten. The absolute path of the written file is returned.
func Export(posts []*entity.Post, path string) (string, error) {
	t := &table{sheet: PostsSheet, header: Columns, rows: make([][]any, 0, len(posts)), keys: make([]string, 0, len(posts))}

	for _, p := range posts {
		t.keys = append(t.keys, p.ID)
		t.rows = append(t.rows, []any{
			p.ID,
			p.Title,
			p.Author,
			p.Subreddit,
			p.Score,
			p.NumComments,
			p.Created.UTC().Format(TimeLayout),
			p.Permalink,
			p.SelfText,
		})
	}

	return write(t, path)
}

func ExportLeads(leads []*gemini.Lead, path string) (string, error) {
	t := &table{sheet: LeadsSheet, header: LeadColumns, rows: make([][]any, 0, len(leads)), keys: make([]string, 0, len(leads))}

	for _, l := range leads {
		t.keys = append(t.keys, l.URL)
		t.rows = append(t.rows, []any{l.Title, l.URL, l.FormattedDate, l.Relevance, l.Subreddit, l.Sentiment})
	}

	return write(t, path)
}

func write(t *table, path string) (string, error) {
	const op = "export.Write"

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errs.E(errs.KindIO, op, err)
	}

	ext := strings.ToLower(filepath.Ext(abs))
	if ext != ".xlsx" && ext != ".csv" {
		return "", errs.Errorf(errs.KindInvalidArgument, op, "unsupported export format %q", ext)
	}

	if err = os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", errs.E(errs.KindIO, op, err)
	}

	switch ext {
	case ".xlsx":
		err = writeXLSX(t, abs)
	default:
		err = writeCSV(t, abs)
	}
	if err != nil {
		return "", errs.E(errs.KindIO, op, err)
	}

	slog.Debug("exported rows", slog.String("path", abs), slog.Int("rows", len(t.rows)))

	return abs, nil
}

func writeXLSX(t *table, path string) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", t.sheet); err != nil {
		return err
	}

	header := make([]any, len(t.header))
	for i, h := range t.header {
		header[i] = h
	}

	if err := f.SetSheetRow(t.sheet, "A1", &header); err != nil {
		return err
	}

	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	if err = f.SetRowStyle(t.sheet, 1, 1, style); err != nil {
		return err
	}

	for i, row := range t.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row = clipRow(t, i, row)
		if err = f.SetSheetRow(t.sheet, cell, &row); err != nil {
			return err
		}
	}

	if err = f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// clipRow cuts string cells down to the xlsx cell limit and warns about each one it cuts.
// CSV output keeps the full text.
func clipRow(t *table, i int, row []any) []any {
	var out []any
	for j, v := range row {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n := utf8.RuneCountInString(s)
		if n <= excelize.TotalCellChars {
			continue
		}

		if out == nil {
			out = slices.Clone(row)
		}
		out[j] = string([]rune(s)[:excelize.TotalCellChars])

		var key string
		if i < len(t.keys) {
			key = t.keys[i]
		}
		slog.Warn("truncated cell to the xlsx limit",
			slog.String("row", key),
			slog.String("column", t.header[j]),
			slog.Int("chars", n),
			slog.Int("limit", excelize.TotalCellChars),
		)
	}
	if out == nil {
		return row
	}
	return out
}

func writeCSV(t *table, path string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := file.Close(); err == nil {
			err = cErr
		}
	}()

	w := csv.NewWriter(file)

	if err = w.Write(t.header); err != nil {
		return err
	}

	record := make([]string, len(t.header))
	for _, row := range t.rows {
		for i, v := range row {
			record[i] = fmt.Sprint(v)
		}
		if err = w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
