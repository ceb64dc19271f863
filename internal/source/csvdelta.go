package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/incidentlab/recall/internal/domain"
)

// CSVDelta reads newly arrived tickets from *.csv drops in a directory.
// Expected columns: issue_key, text, and optionally service.
type CSVDelta struct {
	dir    string
	logger *zap.Logger
}

func NewCSVDelta(dir string, logger *zap.Logger) *CSVDelta {
	return &CSVDelta{dir: dir, logger: logger}
}

// LoadNew reads every drop file. A missing directory means the delta source
// is unavailable, which is fatal for this run but retryable on the next one.
func (s *CSVDelta) LoadNew(ctx context.Context) ([]Record, error) {
	if _, err := os.Stat(s.dir); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrIngestSource, s.dir, err)
	}

	files, err := filepath.Glob(filepath.Join(s.dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("%w: glob %s: %v", domain.ErrIngestSource, s.dir, err)
	}
	sort.Strings(files)

	var out []Record
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		recs, err := s.loadFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}

	s.logger.Info("Loaded delta drops",
		zap.String("dir", s.dir),
		zap.Int("files", len(files)),
		zap.Int("records", len(out)),
	)
	return out, nil
}

func (s *CSVDelta) loadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrIngestSource, path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read header %s: %v", domain.ErrIngestSource, path, err)
	}

	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	keyIdx, okKey := col["issue_key"]
	textIdx, okText := col["text"]
	if !okKey || !okText {
		return nil, fmt.Errorf("%w: %s: missing issue_key/text columns", domain.ErrIngestSource, path)
	}
	serviceIdx, hasService := col["service"]

	var out []Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", domain.ErrIngestSource, path, err)
		}

		rec := Record{
			IssueKey: fieldAt(row, keyIdx),
			Text:     fieldAt(row, textIdx),
		}
		if hasService {
			rec.Service = fieldAt(row, serviceIdx)
		}
		if rec.IssueKey == "" || rec.Text == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func fieldAt(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
