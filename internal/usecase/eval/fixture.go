package eval

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/incidentlab/recall/internal/domain"
)

// LoadFixture reads eval cases from a JSONL file: one case per line,
// {"query": "...", "expected": ["...", ...]}. Blank lines are skipped.
func LoadFixture(path string) ([]domain.EvalCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	var cases []domain.EvalCase
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		var c domain.EvalCase
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, fmt.Errorf("fixture %s line %d: %w", path, lineNo, err)
		}
		if c.Query == "" {
			return nil, fmt.Errorf("fixture %s line %d: empty query", path, lineNo)
		}
		cases = append(cases, c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	return cases, nil
}
