// Package cells reads and writes detected-cell records.
//
// A detection is a point in level-0 slide coordinates with an integer class
// label and one extra per-detection value (usually a confidence score). The
// score is carried through to exported files but has no effect on drawing.
package cells

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Cell is one detected cell.
type Cell struct {
	X     float64 `json:"x"`     // Level-0 X coordinate
	Y     float64 `json:"y"`     // Level-0 Y coordinate
	Label int     `json:"label"` // Class label, looked up in the palette
	Score float64 `json:"score"` // Extra field, not used for drawing
}

// csvHeader is the column order written by WriteCSV.
var csvHeader = []string{"x", "y", "label", "score"}

// Load reads detections from a .csv or .json file.
func Load(path string) ([]Cell, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cells file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(f)
	case ".json":
		return ReadJSON(f)
	default:
		return nil, fmt.Errorf("unsupported cells file format: %s", filepath.Ext(path))
	}
}

// ReadCSV parses x,y,label[,score] rows. A first row starting with the x
// column name is treated as a header and skipped; any other row must parse.
func ReadCSV(r io.Reader) ([]Cell, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read cells CSV: %w", err)
	}

	first := 0
	if len(records) > 0 && isHeader(records[0]) {
		first = 1
	}

	result := make([]Cell, 0, len(records)-first)
	for i := first; i < len(records); i++ {
		c, err := parseRecord(records[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		result = append(result, c)
	}
	return result, nil
}

func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	name := strings.TrimPrefix(strings.TrimSpace(rec[0]), "\ufeff")
	return strings.EqualFold(name, csvHeader[0])
}

func parseRecord(rec []string) (Cell, error) {
	if len(rec) < 3 {
		return Cell{}, fmt.Errorf("expected at least 3 fields, got %d", len(rec))
	}

	x, err := strconv.ParseFloat(rec[0], 64)
	if err != nil {
		return Cell{}, fmt.Errorf("invalid x %q: %w", rec[0], err)
	}
	y, err := strconv.ParseFloat(rec[1], 64)
	if err != nil {
		return Cell{}, fmt.Errorf("invalid y %q: %w", rec[1], err)
	}
	label, err := parseLabel(rec[2])
	if err != nil {
		return Cell{}, err
	}

	var score float64
	if len(rec) > 3 && rec[3] != "" {
		score, err = strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return Cell{}, fmt.Errorf("invalid score %q: %w", rec[3], err)
		}
	}

	return Cell{X: x, Y: y, Label: label, Score: score}, nil
}

// parseLabel accepts integral values written as floats ("2.0"), which is how
// numeric arrays usually get dumped.
func parseLabel(s string) (int, error) {
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid label %q", s)
	}
	return int(f), nil
}

// ReadJSON parses a JSON array of cells.
func ReadJSON(r io.Reader) ([]Cell, error) {
	var result []Cell
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode cells JSON: %w", err)
	}
	return result, nil
}

// WriteCSV writes cells with a header row to path, replacing any existing file.
func WriteCSV(path string, cells []Cell) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create cells CSV: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return fmt.Errorf("failed to write cells CSV: %w", err)
	}
	for _, c := range cells {
		row := []string{
			strconv.FormatFloat(c.X, 'f', -1, 64),
			strconv.FormatFloat(c.Y, 'f', -1, 64),
			strconv.Itoa(c.Label),
			strconv.FormatFloat(c.Score, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("failed to write cells CSV: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write cells CSV: %w", err)
	}
	return f.Close()
}

// CountByLabel returns the number of cells per label.
func CountByLabel(cells []Cell) map[int]int {
	counts := make(map[int]int)
	for _, c := range cells {
		counts[c.Label]++
	}
	return counts
}

// SortedLabels returns the keys of counts in ascending order.
func SortedLabels(counts map[int]int) []int {
	labels := make([]int, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	return labels
}
