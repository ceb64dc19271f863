package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/incidentlab/recall/internal/domain"
)

// dumpRecord mirrors one object from the anonymized ticket dump.
// The text may live in any combination of the four fields.
type dumpRecord struct {
	IssueKey    string `json:"issue_key"`
	Service     string `json:"service"`
	Text        string `json:"text"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Resolution  string `json:"resolution"`
}

// JSONDump reads *.json files (each an array of ticket objects) from a directory.
// Files are processed in lexicographic order so a rerun sees the same sequence.
type JSONDump struct {
	dir    string
	logger *zap.Logger
}

func NewJSONDump(dir string, logger *zap.Logger) *JSONDump {
	return &JSONDump{dir: dir, logger: logger}
}

// Load reads every dump file and returns records with non-empty text.
// Records without text cannot be embedded and are dropped with a log line.
func (s *JSONDump) Load(ctx context.Context) ([]Record, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("%w: glob %s: %v", domain.ErrIngestSource, s.dir, err)
	}
	if len(files) == 0 {
		if _, statErr := os.Stat(s.dir); statErr != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrIngestSource, s.dir, statErr)
		}
		s.logger.Warn("Dump directory has no *.json files", zap.String("dir", s.dir))
		return nil, nil
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

		s.logger.Info("Loaded dump file",
			zap.String("file", filepath.Base(path)),
			zap.Int("records", len(recs)),
		)
	}
	return out, nil
}

func (s *JSONDump) loadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrIngestSource, path, err)
	}

	var raw []dumpRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrIngestSource, path, err)
	}

	out := make([]Record, 0, len(raw))
	for _, r := range raw {
		text := buildText(r)
		if r.IssueKey == "" || text == "" {
			s.logger.Debug("Skipping dump record without key or text",
				zap.String("issue_key", r.IssueKey),
				zap.String("file", filepath.Base(path)),
			)
			continue
		}
		out = append(out, Record{IssueKey: r.IssueKey, Text: text, Service: r.Service})
	}
	return out, nil
}

// buildText joins the possible text fields into one indexable string.
func buildText(r dumpRecord) string {
	parts := make([]string, 0, 4)
	for _, v := range []string{r.Text, r.Summary, r.Description, r.Resolution} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
