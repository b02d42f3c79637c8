package cells

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// SummarySheet is the name of the worksheet written by WriteWorkbook.
const SummarySheet = "Summary"

// Summary describes one rendered slide for the summary workbook.
type Summary struct {
	Slide  string
	Level  int
	Width  int
	Height int
	Counts map[int]int
}

// Total returns the number of cells across all labels.
func (s Summary) Total() int {
	n := 0
	for _, c := range s.Counts {
		n += c
	}
	return n
}

// WriteWorkbook writes an .xlsx file with one row per summary. Columns are
// slide, level, width, height, total, then one column per label seen in any
// summary, in ascending label order.
func WriteWorkbook(path string, summaries []Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}

	all := make(map[int]int)
	for _, s := range summaries {
		for label := range s.Counts {
			all[label] = 0
		}
	}
	labels := SortedLabels(all)

	header := []interface{}{"slide", "level", "width", "height", "total"}
	for _, label := range labels {
		header = append(header, "label_"+strconv.Itoa(label))
	}
	if err := f.SetSheetRow(SummarySheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}

	for i, s := range summaries {
		row := []interface{}{s.Slide, s.Level, s.Width, s.Height, s.Total()}
		for _, label := range labels {
			row = append(row, s.Counts[label])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row for %s: %w", s.Slide, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save summary workbook: %w", err)
	}
	return nil
}
