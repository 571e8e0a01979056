// Package export renders ledger history as spreadsheets.
package export

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dukerupert/zooz/internal/model"
)

const (
	historySheet = "Transactions"
	summarySheet = "Summary"
)

var historyHeader = []any{"Date", "Amount", "Source", "Description", "Platform", "Game amount", "Account", "Related ID"}

// WriteHistory writes an xlsx workbook with one row per transaction and a
// summary sheet of the child's totals.
func WriteHistory(w io.Writer, child model.Child, txns []model.Transaction, stats model.TokenStats) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(historySheet, "A1", &historyHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, t := range txns {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			t.CreatedAt.UTC().Format("2006-01-02 15:04"),
			t.Amount,
			string(t.Source),
			t.Description,
			t.Platform,
			t.GameAmount,
			t.AccountID,
			t.RelatedID,
		}
		if err := f.SetSheetRow(historySheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := applyHeaderFormatting(f, historySheet, len(historyHeader)); err != nil {
		return err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("new sheet: %w", err)
	}
	summary := [][]any{
		{"Child", child.DisplayName},
		{"Total earned", stats.TotalEarned},
		{"Total spent", stats.TotalSpent},
		{"Balance", stats.Balance},
		{"Entries", len(txns)},
	}
	for i, row := range summary {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 16)
	_ = f.SetColWidth(summarySheet, "B", "B", 24)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// applyHeaderFormatting bolds row 1, adds an auto-filter and sizes columns
// to their content.
func applyHeaderFormatting(f *excelize.File, sheet string, cols int) error {
	last, err := excelize.ColumnNumberToName(cols)
	if err != nil {
		return err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(sheet, "A1", last+"1", style)
	}
	_ = f.AutoFilter(sheet, fmt.Sprintf("A1:%s1", last), nil)

	rows, err := f.GetRows(sheet)
	if err != nil {
		return err
	}
	widths := make([]float64, cols)
	for i := range widths {
		widths[i] = 10
	}
	for _, row := range rows {
		for c := 0; c < cols && c < len(row); c++ {
			w := float64(len([]rune(row[c]))) + 2
			if w > 60 {
				w = 60
			}
			if w > widths[c] {
				widths[c] = w
			}
		}
	}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, w)
	}
	return nil
}

var invalidFileRe = regexp.MustCompile(`[\\/:*?"<>|]+`)

// HistoryFilename builds a download name such as "Kim tokens 2026-05-01.xlsx".
func HistoryFilename(childName string, at time.Time) string {
	name := strings.Join(strings.Fields(childName), " ")
	if name == "" {
		name = "child"
	}
	name = invalidFileRe.ReplaceAllString(name, "_")
	return fmt.Sprintf("%s tokens %s.xlsx", name, at.UTC().Format("2006-01-02"))
}
