package exporters

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kova98/reddit-digest/models"
)

// OutputPath returns <dir>/<prefix>_<YYYY-MM-DD>.csv for day.
func OutputPath(dir, prefix string, day time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.csv", prefix, day.Format(time.DateOnly)))
}

// WriteCSV writes table to path, replacing any existing file. Rows keep the
// table order and columns follow models.PostColumns.
func WriteCSV(table models.PostTable, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(models.PostColumns); err != nil {
		f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for i, post := range table {
		if err := w.Write(postRow(post)); err != nil {
			f.Close()
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush csv: %w", err)
	}

	return f.Close()
}

func postRow(p models.Post) []string {
	return []string{
		p.Subreddit,
		p.Title,
		p.URL,
		strconv.FormatFloat(p.UpvoteRatio, 'f', -1, 64),
		strconv.Itoa(p.Ups),
		strconv.Itoa(p.Downs),
		strconv.Itoa(p.Score),
	}
}
